package config

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Protocol names understood by the relayer. Intent source tags are matched
// against these case-insensitively.
const (
	ProtocolAcross   = "across"
	ProtocolDeBridge = "debridge"
)

// Across SpokePool fill contracts per destination chain.
var acrossSpokePools = map[int64]string{
	10:    "0x6f26Bf09B1C792e3228e5467807a900A503c0281",
	137:   "0x9295ee1d8C5b022Be115A2AD3c30C72E34e7F096",
	8453:  "0x09aea4b2242abC8bb4BB78D537A67a245A7bEC64",
	42161: "0xe35e9842fceaCA96570B734083f4a58e8F7C5f2A",
}

// deBridge DlnDestination is deployed at the same address on every supported
// chain.
const debridgeDlnDestination = "0xe7351fd770a37282b91d153ee690b63579d6dd7f"

// USDC and WETH addresses per destination chain.
var (
	usdcAddresses = map[int64]string{
		10:    "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85",
		137:   "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
		8453:  "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		42161: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
	}
	wethAddresses = map[int64]string{
		10:    "0x4200000000000000000000000000000000000006",
		137:   "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619",
		8453:  "0x4200000000000000000000000000000000000006",
		42161: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1",
	}
)

// usdcFeeTiers maps minimum input amounts (USDC base units, 6 decimals) to the
// fee percentage in parts per million allocated to gas pricing.
var usdcFeeTiers = map[string]int64{
	"0":          1000, // 0.1%
	"1000000000": 500,  // 0.05% from 1,000 USDC
	"5000000000": 200,  // 0.02% from 5,000 USDC
}

// wethFeeTiers uses 18-decimal thresholds.
var wethFeeTiers = map[string]int64{
	"0":                   1000,
	"1000000000000000000": 500, // from 1 WETH
	"5000000000000000000": 200, // from 5 WETH
}

// defaultProtocols returns the built-in protocol tables. Environment
// variables may override individual flags afterwards.
func defaultProtocols() []ProtocolConfig {
	srcChains := []SrcChainConfig{
		{ChainID: 1, Confirmations: map[string]uint64{"default": 2}},
		{ChainID: 10, Confirmations: map[string]uint64{"default": 1}},
		{ChainID: 8453, Confirmations: map[string]uint64{"default": 1}},
		{ChainID: 42161, Confirmations: map[string]uint64{"default": 1}},
	}

	dstChainIDs := []int64{10, 8453, 42161}

	acrossDst := make([]DstChainConfig, 0, len(dstChainIDs))
	debridgeDst := make([]DstChainConfig, 0, len(dstChainIDs))
	for _, chainID := range dstChainIDs {
		tokens := []TokenConfig{
			{
				Address:       common.HexToAddress(usdcAddresses[chainID]),
				Symbol:        "USDC",
				Decimals:      6,
				MinAmount:     "1000000",
				MaxAmount:     "100000000000",
				RelayerFeePct: usdcFeeTiers,
			},
			{
				Address:       common.HexToAddress(wethAddresses[chainID]),
				Symbol:        "WETH",
				Decimals:      18,
				MinAmount:     "100000000000000",
				MaxAmount:     "50000000000000000000",
				RelayerFeePct: wethFeeTiers,
			},
		}

		acrossDst = append(acrossDst, DstChainConfig{
			ChainID:         chainID,
			FillContract:    common.HexToAddress(acrossSpokePools[chainID]),
			UseAggregator:   false,
			EIP1559:         true,
			DefaultGasLimit: 300000,
			SupportTokens:   tokens,
		})
		debridgeDst = append(debridgeDst, DstChainConfig{
			ChainID:         chainID,
			FillContract:    common.HexToAddress(debridgeDlnDestination),
			UseAggregator:   true,
			EIP1559:         true,
			DefaultGasLimit: 400000,
			SupportTokens:   tokens,
		})
	}

	wrap := []WrapConfig{
		{
			ChainID:      8453,
			WETHAddress:  common.HexToAddress(wethAddresses[8453]),
			WethPct:      0.5,
			AllowancePct: 0.1,
			Interval:     30 * time.Minute,
		},
	}

	return []ProtocolConfig{
		{
			Name:      ProtocolAcross,
			Simulate:  false,
			SrcChains: srcChains,
			DstChains: acrossDst,
			Rebalance: wrap,
		},
		{
			Name:      ProtocolDeBridge,
			Simulate:  false,
			SrcChains: srcChains,
			DstChains: debridgeDst,
		},
	}
}
