package relayer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/mikiprotocol/miki-relayer/pkg/chainclient"
	"github.com/mikiprotocol/miki-relayer/pkg/config"
	"github.com/mikiprotocol/miki-relayer/pkg/models"
)

const feePctDenominator = 1_000_000

// calculateGasFee prices the fill so that the gas spent stays within the
// configured cut of the relayer fee. A nil result means the fee cannot cover
// gas and the fill must be aborted; an all-zero envelope means the fee tier
// applies no override and the node's suggested price is used.
func (r *Relayer) calculateGasFee(ctx context.Context, client *chainclient.Client, dst *config.DstChainConfig, intent *models.Intent, relayerFee *big.Int, msg ethereum.CallMsg) (*models.GasInfo, error) {
	if relayerFee.Sign() < 0 {
		return nil, nil
	}

	token, err := dst.Token(common.HexToAddress(intent.Output.TokenAddress))
	if err != nil {
		return nil, err
	}
	inputAmount, err := intent.InputAmount()
	if err != nil {
		return nil, err
	}

	feePct := token.FeePctForAmount(inputAmount)
	if feePct == 0 {
		return models.ZeroGasInfo(), nil
	}

	var gasUsed uint64
	estimate, err := client.EstimateGas(ctx, msg)
	if err != nil {
		// Estimation can fail transiently; fall back to the configured limit
		// rather than dropping the fill.
		r.logger.DebugWithChain(client.ChainID, "Gas estimate failed for intent %s, using default limit: %v", intent.ID, err)
		gasUsed = dst.DefaultGasLimit
	} else {
		gasUsed = scaleDownGas(estimate)
	}
	if gasUsed == 0 {
		return models.ZeroGasInfo(), nil
	}

	gasPrice := gasPriceFromFee(relayerFee, feePct, gasUsed)

	if !dst.EIP1559 {
		return legacyEnvelope(gasPrice, gasUsed), nil
	}

	header, err := client.LatestHeader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch header on chain %d: %v", client.ChainID, err)
	}
	return buildEnvelope(gasPrice, gasUsed, header.BaseFee), nil
}

// scaleDownGas reduces a gas estimate by 8 percent, rounding up. Estimates
// run consistently high on the fill contracts we target.
func scaleDownGas(gasUsed uint64) uint64 {
	return (gasUsed*92 + 99) / 100
}

// gasPriceFromFee returns the highest gas price the fee cut can sustain,
// ceil(relayerFee * feePct / gasUsed) with feePct in parts per million.
func gasPriceFromFee(relayerFee *big.Int, feePct int64, gasUsed uint64) *big.Int {
	num := new(big.Int).Mul(relayerFee, big.NewInt(feePct))
	den := new(big.Int).Mul(big.NewInt(feePctDenominator), new(big.Int).SetUint64(gasUsed))
	return ceilDiv(num, den)
}

func ceilDiv(a, b *big.Int) *big.Int {
	q, rem := new(big.Int).QuoRem(a, b, new(big.Int))
	if rem.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

func legacyEnvelope(gasPrice *big.Int, gasUsed uint64) *models.GasInfo {
	return &models.GasInfo{
		GasUsed:              gasUsed,
		GasPrice:             gasPrice,
		MaxFeePerGas:         big.NewInt(0),
		MaxPriorityFeePerGas: big.NewInt(0),
	}
}

// buildEnvelope splits a target gas price into an EIP-1559 fee pair. The tip
// is whatever exceeds the current base fee; the cap leaves room for the base
// fee to double before the tip is squeezed. Chains without a base fee in the
// header fall back to a legacy envelope, as do prices at or below base fee.
func buildEnvelope(gasPrice *big.Int, gasUsed uint64, baseFee *big.Int) *models.GasInfo {
	if baseFee == nil {
		return legacyEnvelope(gasPrice, gasUsed)
	}

	priority := new(big.Int).Sub(gasPrice, baseFee)
	if priority.Sign() <= 0 {
		return legacyEnvelope(gasPrice, gasUsed)
	}

	maxFee := new(big.Int).Lsh(baseFee, 1)
	maxFee.Add(maxFee, priority)
	return &models.GasInfo{
		GasUsed:              gasUsed,
		GasPrice:             big.NewInt(0),
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: priority,
	}
}
