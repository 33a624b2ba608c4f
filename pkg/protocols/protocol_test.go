package protocols

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikiprotocol/miki-relayer/pkg/config"
	"github.com/mikiprotocol/miki-relayer/pkg/models"
)

var testToken = common.HexToAddress("0x1111111111111111111111111111111111111111")

func testProtocolConfig() *config.ProtocolConfig {
	return &config.ProtocolConfig{
		Name:      "test",
		SrcChains: []config.SrcChainConfig{{ChainID: 1}},
		DstChains: []config.DstChainConfig{
			{
				ChainID:      8453,
				FillContract: common.HexToAddress("0x2222222222222222222222222222222222222222"),
				SupportTokens: []config.TokenConfig{
					{
						Address:   testToken,
						Symbol:    "USDC",
						MinAmount: "1000",
						MaxAmount: "1000000",
					},
				},
			},
		},
	}
}

func testIntent(amount string) *models.Intent {
	deadline := time.Now().Add(time.Hour).Unix()
	return &models.Intent{
		ID:       "intent-1",
		Source:   "test",
		Deadline: &deadline,
		Input: models.IntentInput{
			ChainID: 1,
			Amount:  amount,
		},
		Output: models.IntentOutput{
			ChainID:      8453,
			TokenAddress: testToken.Hex(),
			Amount:       amount,
		},
	}
}

func TestBaseIsEligible(t *testing.T) {
	base := NewBase("test", testProtocolConfig())

	tests := []struct {
		name     string
		mutate   func(*models.Intent)
		expected bool
	}{
		{
			name:     "Valid intent",
			mutate:   func(_ *models.Intent) {},
			expected: true,
		},
		{
			name: "Expired deadline",
			mutate: func(i *models.Intent) {
				past := time.Now().Add(-time.Hour).Unix()
				i.Deadline = &past
			},
			expected: false,
		},
		{
			name: "Unserved source chain",
			mutate: func(i *models.Intent) {
				i.Input.ChainID = 56
			},
			expected: false,
		},
		{
			name: "Unserved destination chain",
			mutate: func(i *models.Intent) {
				i.Output.ChainID = 42161
			},
			expected: false,
		},
		{
			name: "Unsupported token",
			mutate: func(i *models.Intent) {
				i.Output.TokenAddress = "0x9999999999999999999999999999999999999999"
			},
			expected: false,
		},
		{
			name: "Below minimum amount",
			mutate: func(i *models.Intent) {
				i.Input.Amount = "999"
			},
			expected: false,
		},
		{
			name: "Above maximum amount",
			mutate: func(i *models.Intent) {
				i.Input.Amount = "1000001"
			},
			expected: false,
		},
		{
			name: "Exactly minimum amount",
			mutate: func(_ *models.Intent) {},
			expected: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			intent := testIntent("1000")
			tc.mutate(intent)
			assert.Equal(t, tc.expected, base.IsEligible(intent))
		})
	}
}

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewBase("test", testProtocolConfig()))

	p, err := registry.Lookup("test")
	require.NoError(t, err)
	assert.Equal(t, "test", p.Name())

	// Source tags arrive with arbitrary casing.
	p, err = registry.Lookup("TEST")
	require.NoError(t, err)
	assert.Equal(t, "test", p.Name())

	_, err = registry.Lookup("missing")
	assert.Error(t, err)
}

func TestBaseDefaults(t *testing.T) {
	base := NewBase("test", testProtocolConfig())

	fee, err := base.CalculateRelayerFee(nil, testIntent("1000"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), fee.Int64())

	assert.False(t, base.RequiresSettlement())
	assert.NoError(t, base.Settle(nil, nil))
	assert.NoError(t, base.SettleBatch(nil, nil))
}
