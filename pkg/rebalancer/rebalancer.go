// Package rebalancer keeps the relayer's native and wrapped token balances
// near a configured split, wrapping or unwrapping as fills drain one side.
package rebalancer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/mikiprotocol/miki-relayer/pkg/chainclient"
	"github.com/mikiprotocol/miki-relayer/pkg/config"
	"github.com/mikiprotocol/miki-relayer/pkg/contracts"
	"github.com/mikiprotocol/miki-relayer/pkg/logger"
)

// gasReserve is native balance never wrapped, kept for transaction fees.
var gasReserve = big.NewInt(1e16) // 0.01 ETH

// Action is the rebalancing move decided for one cycle.
type Action int

const (
	// ActionNone leaves the balances untouched.
	ActionNone Action = iota
	// ActionWrap deposits native into the wrapped token.
	ActionWrap
	// ActionUnwrap withdraws native from the wrapped token.
	ActionUnwrap
)

// Rebalancer watches one chain's balances and corrects drift periodically.
type Rebalancer struct {
	client *chainclient.Client
	cfg    config.WrapConfig
	weth   abi.ABI
	logger logger.Logger
}

// New creates a rebalancer for one chain
func New(client *chainclient.Client, cfg config.WrapConfig, log logger.Logger) (*Rebalancer, error) {
	weth, err := contracts.WETHABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse WETH ABI: %v", err)
	}
	return &Rebalancer{
		client: client,
		cfg:    cfg,
		weth:   weth,
		logger: log,
	}, nil
}

// Start runs the rebalance loop until the context is cancelled.
func (r *Rebalancer) Start(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.rebalance(ctx); err != nil {
				r.logger.WarnWithChain(r.cfg.ChainID, "Rebalance failed: %v", err)
			}
		}
	}
}

func (r *Rebalancer) rebalance(ctx context.Context) error {
	nativeBalance, err := r.client.BalanceAt(ctx, r.client.From())
	if err != nil {
		return fmt.Errorf("failed to read native balance: %v", err)
	}

	wethBalance, err := r.wethBalance(ctx)
	if err != nil {
		return err
	}

	action, amount := Plan(nativeBalance, wethBalance, r.cfg.WethPct, r.cfg.AllowancePct)
	switch action {
	case ActionWrap:
		r.logger.InfoWithChain(r.cfg.ChainID, "Wrapping %s native into WETH", amount)
		return r.execute(ctx, "deposit", amount, nil)
	case ActionUnwrap:
		r.logger.InfoWithChain(r.cfg.ChainID, "Unwrapping %s WETH into native", amount)
		return r.execute(ctx, "withdraw", nil, amount)
	default:
		return nil
	}
}

// Plan decides the rebalancing move. wethPct is the target share of the total
// held wrapped; bandPct is the tolerated drift of the total before acting.
// The amount returned moves the wrapped balance exactly onto target.
func Plan(nativeBalance, wethBalance *big.Int, wethPct, bandPct float64) (Action, *big.Int) {
	total := new(big.Int).Add(nativeBalance, wethBalance)
	if total.Sign() <= 0 {
		return ActionNone, nil
	}

	target := scale(total, wethPct)
	band := scale(total, bandPct)

	diff := new(big.Int).Sub(wethBalance, target)
	if diff.CmpAbs(band) <= 0 {
		return ActionNone, nil
	}

	if diff.Sign() > 0 {
		return ActionUnwrap, diff
	}

	deficit := new(big.Int).Neg(diff)
	// Never wrap the gas reserve.
	available := new(big.Int).Sub(nativeBalance, gasReserve)
	if available.Sign() <= 0 {
		return ActionNone, nil
	}
	if deficit.Cmp(available) > 0 {
		deficit = available
	}
	return ActionWrap, deficit
}

// scale multiplies a balance by a fractional percentage using ppm precision.
func scale(amount *big.Int, pct float64) *big.Int {
	scaled := new(big.Int).Mul(amount, big.NewInt(int64(pct*1e6)))
	return scaled.Div(scaled, big.NewInt(1e6))
}

func (r *Rebalancer) wethBalance(ctx context.Context) (*big.Int, error) {
	callData, err := r.weth.Pack("balanceOf", r.client.From())
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf call: %v", err)
	}

	wethAddr := r.cfg.WETHAddress
	result, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &wethAddr, Data: callData}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read WETH balance: %v", err)
	}

	out, err := r.weth.Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack WETH balance: %v", err)
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected WETH balance type %T", out[0])
	}
	return balance, nil
}

// execute sends a deposit or withdraw call to the WETH contract. value is the
// native amount attached to a deposit; arg the amount withdrawn.
func (r *Rebalancer) execute(ctx context.Context, method string, value, arg *big.Int) error {
	var (
		data []byte
		err  error
	)
	if arg != nil {
		data, err = r.weth.Pack(method, arg)
	} else {
		data, err = r.weth.Pack(method)
	}
	if err != nil {
		return fmt.Errorf("failed to pack %s call: %v", method, err)
	}
	if value == nil {
		value = big.NewInt(0)
	}

	from := r.client.From()
	wethAddr := r.cfg.WETHAddress
	msg := ethereum.CallMsg{From: from, To: &wethAddr, Value: value, Data: data}

	gasLimit, err := r.client.EstimateGas(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to estimate %s gas: %v", method, err)
	}
	gasPrice, err := r.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get gas price: %v", err)
	}
	nonce, err := r.client.PendingNonceAt(ctx)
	if err != nil {
		return fmt.Errorf("failed to get nonce: %v", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &wethAddr,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signedTx, err := r.client.SignTx(tx)
	if err != nil {
		return fmt.Errorf("failed to sign %s transaction: %v", method, err)
	}
	if err := r.client.SendTransaction(ctx, signedTx); err != nil {
		return err
	}

	receipt, err := r.client.WaitMined(ctx, signedTx)
	if err != nil {
		return fmt.Errorf("failed to wait for %s transaction: %v", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%s transaction %s reverted", method, signedTx.Hash().Hex())
	}
	return nil
}
