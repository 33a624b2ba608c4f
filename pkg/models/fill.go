package models

import (
	"encoding/json"
	"math/big"
)

// FillRequest is the ready-to-execute fill payload fetched from the aggregator
// right before execution. Args is protocol-specific and opaque to the pipeline.
type FillRequest struct {
	ChainID         int64           `json:"chainId"`
	ContractAddress string          `json:"contractAddress"`
	Value           string          `json:"value"`
	FunctionName    string          `json:"functionName"`
	Args            json.RawMessage `json:"args"`
	Data            string          `json:"data"`
}

// NativeValue parses the native value attached to the fill transaction.
func (f *FillRequest) NativeValue() (*big.Int, error) {
	if f.Value == "" {
		return big.NewInt(0), nil
	}
	return parseAmount(f.Value)
}

// FillResponse is the aggregator response to a relayed fill submission.
type FillResponse struct {
	Status string `json:"status"`
}

// GasInfo is the gas-price envelope computed for a fill. Exactly one of
// GasPrice (legacy) or MaxFeePerGas/MaxPriorityFeePerGas (EIP-1559) is
// non-zero; an all-zero envelope means no fee override. A nil *GasInfo means
// the relayer fee is insufficient and the fill must be aborted.
type GasInfo struct {
	GasUsed              uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// ZeroGasInfo returns an envelope with no fee override.
func ZeroGasInfo() *GasInfo {
	return &GasInfo{
		GasPrice:             big.NewInt(0),
		MaxFeePerGas:         big.NewInt(0),
		MaxPriorityFeePerGas: big.NewInt(0),
	}
}

// UsesLegacy reports whether the envelope selects a legacy transaction.
func (g *GasInfo) UsesLegacy() bool {
	return g.GasPrice != nil && g.GasPrice.Sign() != 0
}

// UsesDynamicFee reports whether the envelope selects an EIP-1559 transaction.
func (g *GasInfo) UsesDynamicFee() bool {
	return !g.UsesLegacy() &&
		g.MaxFeePerGas != nil && g.MaxFeePerGas.Sign() != 0 &&
		g.MaxPriorityFeePerGas != nil && g.MaxPriorityFeePerGas.Sign() != 0
}

// IsZero reports whether the envelope carries no fee override at all.
func (g *GasInfo) IsZero() bool {
	return g.GasUsed == 0 && !g.UsesLegacy() && !g.UsesDynamicFee()
}
