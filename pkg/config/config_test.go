package config

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeePctForAmount(t *testing.T) {
	token := &TokenConfig{
		RelayerFeePct: map[string]int64{
			"0":    1000, // 0.1%
			"1000": 500,  // 0.05%
			"5000": 200,  // 0.02%
		},
	}

	tests := []struct {
		name     string
		amount   int64
		expected int64
	}{
		{
			name:     "Smallest tier",
			amount:   1,
			expected: 1000,
		},
		{
			name:     "Middle tier",
			amount:   4000,
			expected: 500,
		},
		{
			name:     "Exactly on threshold",
			amount:   1000,
			expected: 500,
		},
		{
			name:     "Top tier",
			amount:   10000,
			expected: 200,
		},
		{
			name:     "Zero amount",
			amount:   0,
			expected: 1000,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, token.FeePctForAmount(big.NewInt(tc.amount)))
		})
	}
}

func TestFeePctForAmountNoMatch(t *testing.T) {
	token := &TokenConfig{
		RelayerFeePct: map[string]int64{
			"1000": 500,
		},
	}

	// Below every threshold there is no tier, meaning no fee override.
	assert.Equal(t, int64(0), token.FeePctForAmount(big.NewInt(999)))
}

func TestProtocolLookupCaseInsensitive(t *testing.T) {
	cfg := &Config{
		Protocols: []ProtocolConfig{
			{Name: ProtocolAcross},
			{Name: ProtocolDeBridge},
		},
	}

	p, err := cfg.Protocol("Across")
	require.NoError(t, err)
	assert.Equal(t, ProtocolAcross, p.Name)

	p, err = cfg.Protocol("DEBRIDGE")
	require.NoError(t, err)
	assert.Equal(t, ProtocolDeBridge, p.Name)

	_, err = cfg.Protocol("unknown")
	assert.Error(t, err)
}

func TestDstChainAndTokenLookup(t *testing.T) {
	protocols := defaultProtocols()
	require.NotEmpty(t, protocols)

	across := protocols[0]
	dst, err := across.DstChain(8453)
	require.NoError(t, err)
	assert.Equal(t, int64(8453), dst.ChainID)

	_, err = across.DstChain(999)
	assert.Error(t, err)

	require.NotEmpty(t, dst.SupportTokens)
	token, err := dst.Token(dst.SupportTokens[0].Address)
	require.NoError(t, err)
	assert.Equal(t, dst.SupportTokens[0].Symbol, token.Symbol)
}

func TestDefaultProtocolsComplete(t *testing.T) {
	protocols := defaultProtocols()
	require.Len(t, protocols, 2)

	for _, p := range protocols {
		assert.NotEmpty(t, p.Name)
		assert.NotEmpty(t, p.SrcChains)
		assert.NotEmpty(t, p.DstChains)
		for _, dst := range p.DstChains {
			assert.NotZero(t, dst.FillContract, "fill contract missing for %s chain %d", p.Name, dst.ChainID)
			assert.NotZero(t, dst.DefaultGasLimit)
			assert.NotEmpty(t, dst.SupportTokens)
			for _, token := range dst.SupportTokens {
				assert.NotEmpty(t, token.RelayerFeePct)
			}
		}
	}
}
