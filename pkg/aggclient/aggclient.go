// Package aggclient provides a client for the intent aggregator API and its
// websocket intent stream.
package aggclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mikiprotocol/miki-relayer/pkg/logger"
	"github.com/mikiprotocol/miki-relayer/pkg/models"
)

// Filter restricts the intent stream to chain pairs the relayer serves.
type Filter struct {
	SrcChains []int64
	DstChains []int64
}

// Client represents an intent aggregator API client
type Client struct {
	apiURL      string
	wsURL       string
	httpClient  *http.Client
	relayerAddr string
	logger      logger.Logger
}

// New creates a new aggregator API client
func New(apiURL, wsURL, relayerAddr string, log logger.Logger) *Client {
	return &Client{
		apiURL:      apiURL,
		wsURL:       wsURL,
		httpClient:  createHTTPClient(),
		relayerAddr: relayerAddr,
		logger:      log,
	}
}

// intentsResponse represents the structure of the intent listing response
type intentsResponse struct {
	Intents []models.Intent `json:"intents,omitempty"`
	Data    []models.Intent `json:"data,omitempty"` // some deployments use "data" as the key
}

// FetchIntents gets recent pending intents from the API, narrowed server-side
// to the filtered chain pairs. A non-empty lastID resumes listing after that
// intent.
func (c *Client) FetchIntents(ctx context.Context, limit int, lastID string, filter Filter) ([]models.Intent, error) {
	query := url.Values{}
	query.Set("status", "pending")
	query.Set("limit", strconv.Itoa(limit))
	if lastID != "" {
		query.Set("lastId", lastID)
	}
	for _, chainID := range filter.SrcChains {
		query.Add("src", strconv.FormatInt(chainID, 10))
	}
	for _, chainID := range filter.DstChains {
		query.Add("dst", strconv.FormatInt(chainID, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/api/intents?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create intents request: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch intents: %v", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.logger.Error("Failed to close response body: %v", err)
		}
	}(resp.Body)

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp intentsResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		// Some deployments return a bare array.
		var intents []models.Intent
		if err := json.Unmarshal(bodyBytes, &intents); err != nil {
			return nil, fmt.Errorf("failed to decode intents: %v, body: %s", err, string(bodyBytes))
		}
		return intents, nil
	}

	if len(apiResp.Intents) > 0 {
		return apiResp.Intents, nil
	}
	return apiResp.Data, nil
}

// RequestFill asks the aggregator to prepare the fill payload for an intent,
// reserving it for this relayer. The returned request carries the calldata to
// execute on the destination chain.
func (c *Client) RequestFill(ctx context.Context, intent *models.Intent, repaymentChain string) (*models.FillRequest, error) {
	payload := map[string]string{
		"signer":         c.relayerAddr,
		"repaymentChain": repaymentChain,
	}

	body, err := c.postJSON(ctx, fmt.Sprintf("%s/api/intents/%s/request", c.apiURL, intent.ID), payload)
	if err != nil {
		return nil, fmt.Errorf("failed to request fill for intent %s: %v", intent.ID, err)
	}

	var fillReq models.FillRequest
	if err := json.Unmarshal(body, &fillReq); err != nil {
		return nil, fmt.Errorf("failed to decode fill request for intent %s: %v", intent.ID, err)
	}
	return &fillReq, nil
}

// SubmitFill relays a signed fill transaction through the aggregator instead
// of broadcasting it directly.
func (c *Client) SubmitFill(ctx context.Context, intent *models.Intent, signedTx string) (*models.FillResponse, error) {
	payload := map[string]string{
		"signedTransaction": signedTx,
	}

	body, err := c.postJSON(ctx, fmt.Sprintf("%s/api/intents/%s/fill", c.apiURL, intent.ID), payload)
	if err != nil {
		return nil, fmt.Errorf("failed to submit fill for intent %s: %v", intent.ID, err)
	}

	var fillResp models.FillResponse
	if err := json.Unmarshal(body, &fillResp); err != nil {
		return nil, fmt.Errorf("failed to decode fill response for intent %s: %v", intent.ID, err)
	}
	return &fillResp, nil
}

func (c *Client) postJSON(ctx context.Context, url string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.logger.Error("Failed to close response body: %v", err)
		}
	}(resp.Body)

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}
	return bodyBytes, nil
}

// Helper function to create an HTTP client with timeouts
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
