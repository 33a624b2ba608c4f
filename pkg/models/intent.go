package models

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// IntentStatus represents the lifecycle status of an intent as reported by the
// aggregator.
type IntentStatus string

const (
	// StatusPending indicates the intent has not been filled yet
	StatusPending IntentStatus = "pending"
	// StatusFulfilled indicates the intent has been filled
	StatusFulfilled IntentStatus = "fulfilled"
	// StatusExpired indicates the intent deadline has passed
	StatusExpired IntentStatus = "expired"
)

// IntentInput describes the source-chain leg of an intent.
type IntentInput struct {
	ChainID         int64  `json:"chainId"`
	Hash            string `json:"hash"`
	ContractAddress string `json:"contractAddress"`
	From            string `json:"from"`
	TokenAddress    string `json:"tokenAddress"`
	Amount          string `json:"amount"`
}

// IntentOutput describes the destination-chain leg of an intent.
type IntentOutput struct {
	ChainID         int64   `json:"chainId"`
	Hash            *string `json:"hash"`
	ContractAddress string  `json:"contractAddress"`
	Recipient       string  `json:"recipient"`
	TokenAddress    string  `json:"tokenAddress"`
	Amount          string  `json:"amount"`
}

// Intent represents a cross-chain fill request recorded by the aggregator.
// Metadata is protocol-specific and stays opaque to the pipeline; only the
// protocol plugin selected by Source may decode it.
type Intent struct {
	ID       string          `json:"id"`
	Source   string          `json:"source"`
	OrderID  string          `json:"orderId"`
	Deadline *int64          `json:"deadline"`
	Status   IntentStatus    `json:"status"`
	Input    IntentInput     `json:"input"`
	Output   IntentOutput    `json:"output"`
	Metadata json.RawMessage `json:"metadata"`
}

// SourceTag returns the lower-cased protocol tag used for plugin selection.
func (i *Intent) SourceTag() string {
	return strings.ToLower(i.Source)
}

// Expired reports whether the intent deadline is set and already passed.
func (i *Intent) Expired(now time.Time) bool {
	return i.Deadline != nil && *i.Deadline < now.Unix()
}

// InputAmount parses the source-leg amount in token base units.
func (i *Intent) InputAmount() (*big.Int, error) {
	return parseAmount(i.Input.Amount)
}

// OutputAmount parses the destination-leg amount in token base units.
func (i *Intent) OutputAmount() (*big.Int, error) {
	return parseAmount(i.Output.Amount)
}

func parseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", s)
	}
	return amount, nil
}
