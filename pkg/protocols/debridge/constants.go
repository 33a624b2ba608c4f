package debridge

import "math/big"

// feeNumerator / feeDenominator express the flat 4 bps relayer fee.
var (
	feeNumerator   = big.NewInt(4)
	feeDenominator = big.NewInt(10000)
)

// messagingFees is the native value attached to a sendEvmUnlock call per
// destination chain, covering the cross-chain message back to the source.
// Amounts are in the chain's native token base units.
var messagingFees = map[int64]*big.Int{
	1:     big.NewInt(1e15), // 0.001 ETH
	10:    big.NewInt(1e15), // 0.001 ETH
	56:    big.NewInt(5e15), // 0.005 BNB
	137:   big.NewInt(5e17), // 0.5 POL
	8453:  big.NewInt(1e15), // 0.001 ETH
	42161: big.NewInt(1e15), // 0.001 ETH
	43114: big.NewInt(5e16), // 0.05 AVAX
}
