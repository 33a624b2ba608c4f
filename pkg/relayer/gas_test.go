package relayer

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikiprotocol/miki-relayer/pkg/config"
	"github.com/mikiprotocol/miki-relayer/pkg/logger"
	"github.com/mikiprotocol/miki-relayer/pkg/models"
)

func TestScaleDownGas(t *testing.T) {
	tests := []struct {
		name     string
		gasUsed  uint64
		expected uint64
	}{
		{
			name:     "Even scaling",
			gasUsed:  100,
			expected: 92,
		},
		{
			name:     "Rounds up",
			gasUsed:  101,
			expected: 93,
		},
		{
			name:     "Typical transfer",
			gasUsed:  21000,
			expected: 19320,
		},
		{
			name:     "Zero",
			gasUsed:  0,
			expected: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, scaleDownGas(tc.gasUsed))
		})
	}
}

func TestGasPriceFromFee(t *testing.T) {
	tests := []struct {
		name       string
		relayerFee int64
		feePct     int64
		gasUsed    uint64
		expected   int64
	}{
		{
			name:       "Exact division",
			relayerFee: 1_000_000_000,
			feePct:     1000, // 0.1%
			gasUsed:    100_000,
			expected:   10,
		},
		{
			name:       "Rounds up",
			relayerFee: 30,
			feePct:     500,
			gasUsed:    21000,
			expected:   1,
		},
		{
			name:       "Large fee",
			relayerFee: 5_000_000_000,
			feePct:     200,
			gasUsed:    250_000,
			expected:   4,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := gasPriceFromFee(big.NewInt(tc.relayerFee), tc.feePct, tc.gasUsed)
			assert.Equal(t, tc.expected, got.Int64())
		})
	}
}

func TestBuildEnvelope(t *testing.T) {
	t.Run("No base fee falls back to legacy", func(t *testing.T) {
		env := buildEnvelope(big.NewInt(100), 21000, nil)
		assert.True(t, env.UsesLegacy())
		assert.False(t, env.UsesDynamicFee())
		assert.Equal(t, int64(100), env.GasPrice.Int64())
		assert.Equal(t, uint64(21000), env.GasUsed)
	})

	t.Run("Price below base fee falls back to legacy", func(t *testing.T) {
		env := buildEnvelope(big.NewInt(50), 21000, big.NewInt(100))
		assert.True(t, env.UsesLegacy())
		assert.False(t, env.UsesDynamicFee())
	})

	t.Run("Price above base fee splits into fee pair", func(t *testing.T) {
		env := buildEnvelope(big.NewInt(150), 21000, big.NewInt(100))
		assert.False(t, env.UsesLegacy())
		assert.True(t, env.UsesDynamicFee())
		assert.Equal(t, int64(50), env.MaxPriorityFeePerGas.Int64())
		// Cap doubles the base fee before adding the tip.
		assert.Equal(t, int64(250), env.MaxFeePerGas.Int64())
	})

	t.Run("Envelope is never both legacy and dynamic", func(t *testing.T) {
		for _, baseFee := range []*big.Int{nil, big.NewInt(1), big.NewInt(1000)} {
			env := buildEnvelope(big.NewInt(500), 21000, baseFee)
			assert.False(t, env.UsesLegacy() && env.UsesDynamicFee())
			assert.True(t, env.UsesLegacy() || env.UsesDynamicFee())
		}
	})
}

func TestCalculateGasFeeNegativeFee(t *testing.T) {
	r := &Relayer{logger: &logger.EmptyLogger{}}

	// A negative relayer fee aborts before any chain access.
	gasInfo, err := r.calculateGasFee(context.Background(), nil, &config.DstChainConfig{}, &models.Intent{}, big.NewInt(-1), ethereum.CallMsg{})
	require.NoError(t, err)
	assert.Nil(t, gasInfo)
}

func TestCeilDiv(t *testing.T) {
	assert.Equal(t, int64(1), ceilDiv(big.NewInt(1), big.NewInt(2)).Int64())
	assert.Equal(t, int64(2), ceilDiv(big.NewInt(4), big.NewInt(2)).Int64())
	assert.Equal(t, int64(3), ceilDiv(big.NewInt(5), big.NewInt(2)).Int64())
	assert.Equal(t, int64(0), ceilDiv(big.NewInt(0), big.NewInt(7)).Int64())
}
