// Package chainclient wraps an EVM JSON-RPC endpoint with the capabilities the
// relayer needs on one chain: reads, gas estimation, batched calls and signed
// transaction submission.
package chainclient

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/mikiprotocol/miki-relayer/pkg/logger"
)

const rpcTimeout = 10 * time.Second

// Client contains client and config information for a specific blockchain
type Client struct {
	ChainID int64
	RPCURL  string
	Auth    *bind.TransactOpts

	rpc        *rpc.Client
	eth        *ethclient.Client
	privateKey *ecdsa.PrivateKey
	signer     types.Signer
	logger     logger.Logger
}

// Call is one entry of a batched eth_call.
type Call struct {
	To   common.Address
	Data []byte
}

// New creates a new client connected to the given RPC endpoint
func New(ctx context.Context, chainID int64, rpcURL string, privateKeyHex string, log logger.Logger) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain %d: %v", chainID, err)
	}

	client := &Client{
		ChainID: chainID,
		RPCURL:  rpcURL,
		rpc:     rpcClient,
		eth:     ethclient.NewClient(rpcClient),
		signer:  types.LatestSignerForChainID(big.NewInt(chainID)),
		logger:  log,
	}

	if privateKeyHex != "" {
		privateKey, err := crypto.HexToECDSA(privateKeyHex)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %v", err)
		}
		auth, err := bind.NewKeyedTransactorWithChainID(privateKey, big.NewInt(chainID))
		if err != nil {
			return nil, fmt.Errorf("failed to create transactor: %v", err)
		}
		client.privateKey = privateKey
		client.Auth = auth
	}

	return client, nil
}

// From returns the signing address, zero if no key is configured.
func (c *Client) From() common.Address {
	if c.Auth == nil {
		return common.Address{}
	}
	return c.Auth.From
}

// BalanceAt returns the native balance of an account at the latest block.
func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()
	return c.eth.BalanceAt(timeoutCtx, account, nil)
}

// CallContract executes an eth_call at the given block, nil for latest.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()
	return c.eth.CallContract(timeoutCtx, msg, blockNumber)
}

// BatchCallContract executes several eth_call requests in a single JSON-RPC
// batch, all pinned to the same block.
func (c *Client) BatchCallContract(ctx context.Context, calls []Call, blockNumber *big.Int) ([][]byte, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	results := make([]hexutil.Bytes, len(calls))
	batch := make([]rpc.BatchElem, len(calls))
	for i, call := range calls {
		to := call.To
		batch[i] = rpc.BatchElem{
			Method: "eth_call",
			Args: []interface{}{
				map[string]interface{}{
					"to":   &to,
					"data": hexutil.Bytes(call.Data),
				},
				toBlockNumArg(blockNumber),
			},
			Result: &results[i],
		}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()
	if err := c.rpc.BatchCallContext(timeoutCtx, batch); err != nil {
		return nil, fmt.Errorf("batch call failed on chain %d: %v", c.ChainID, err)
	}

	out := make([][]byte, len(calls))
	for i, elem := range batch {
		if elem.Error != nil {
			return nil, fmt.Errorf("batch call %d failed on chain %d: %v", i, c.ChainID, elem.Error)
		}
		out[i] = results[i]
	}
	return out, nil
}

// EstimateGas estimates the gas needed to execute the call.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()
	return c.eth.EstimateGas(timeoutCtx, msg)
}

// LatestHeader returns the latest block header.
func (c *Client) LatestHeader(ctx context.Context) (*types.Header, error) {
	return c.HeaderByNumber(ctx, nil)
}

// HeaderByNumber returns the header of the given block, nil for latest.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()
	return c.eth.HeaderByNumber(timeoutCtx, number)
}

// SuggestGasPrice returns the node's suggested gas price.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()
	return c.eth.SuggestGasPrice(timeoutCtx)
}

// PendingNonceAt returns the next nonce for the signing account.
func (c *Client) PendingNonceAt(ctx context.Context) (uint64, error) {
	if c.Auth == nil {
		return 0, fmt.Errorf("no signing key configured for chain %d", c.ChainID)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()
	return c.eth.PendingNonceAt(timeoutCtx, c.Auth.From)
}

// SignTx signs a transaction with the configured key.
func (c *Client) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	if c.privateKey == nil {
		return nil, fmt.Errorf("no signing key configured for chain %d", c.ChainID)
	}
	return types.SignTx(tx, c.signer, c.privateKey)
}

// SendTransaction broadcasts a signed transaction.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()
	if err := c.eth.SendTransaction(timeoutCtx, tx); err != nil {
		return fmt.Errorf("failed to send transaction on chain %d: %v", c.ChainID, err)
	}
	c.logger.DebugWithChain(c.ChainID, "Sent transaction %s", tx.Hash().Hex())
	return nil
}

// WaitMined blocks until the transaction is mined and returns its receipt.
func (c *Client) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, c.eth, tx)
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.rpc.Close()
}

func toBlockNumArg(number *big.Int) string {
	if number == nil {
		return "latest"
	}
	return hexutil.EncodeBig(number)
}
