package across

import (
	"encoding/json"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikiprotocol/miki-relayer/pkg/config"
	"github.com/mikiprotocol/miki-relayer/pkg/logger"
	"github.com/mikiprotocol/miki-relayer/pkg/models"
)

var (
	relayerAddr  = common.HexToAddress("0xAAA0000000000000000000000000000000000001")
	otherRelayer = common.HexToAddress("0xBBB0000000000000000000000000000000000002")
	usdcAddr     = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
)

func testProtocolConfig() *config.ProtocolConfig {
	return &config.ProtocolConfig{
		Name:      config.ProtocolAcross,
		SrcChains: []config.SrcChainConfig{{ChainID: 1}},
		DstChains: []config.DstChainConfig{
			{
				ChainID:      8453,
				FillContract: common.HexToAddress("0x09aea4b2242abC8bb4BB78D537A67a245A7bEC64"),
				SupportTokens: []config.TokenConfig{
					{
						Address:   usdcAddr,
						Symbol:    "USDC",
						MinAmount: "1000000",
						MaxAmount: "100000000000",
					},
				},
			},
		},
	}
}

func testIntent(t *testing.T, exclusiveRelayer string) *models.Intent {
	t.Helper()

	meta, err := json.Marshal(Metadata{
		DepositID:        "12345",
		QuoteTimestamp:   time.Now().Add(-time.Minute).Unix(),
		ExclusiveRelayer: exclusiveRelayer,
	})
	require.NoError(t, err)

	deadline := time.Now().Add(time.Hour).Unix()
	return &models.Intent{
		ID:       "intent-1",
		Source:   "across",
		Deadline: &deadline,
		Input: models.IntentInput{
			ChainID: 1,
			Amount:  "10000000",
		},
		Output: models.IntentOutput{
			ChainID:      8453,
			TokenAddress: usdcAddr.Hex(),
			Amount:       "9990000",
		},
		Metadata: meta,
	}
}

func TestIsEligibleExclusivity(t *testing.T) {
	plugin, err := New(testProtocolConfig(), relayerAddr, nil, &logger.EmptyLogger{})
	require.NoError(t, err)

	tests := []struct {
		name             string
		exclusiveRelayer string
		expected         bool
	}{
		{
			name:             "No exclusive relayer",
			exclusiveRelayer: "",
			expected:         true,
		},
		{
			name:             "Zero address means open to all",
			exclusiveRelayer: common.Address{}.Hex(),
			expected:         true,
		},
		{
			name:             "Reserved for us",
			exclusiveRelayer: relayerAddr.Hex(),
			expected:         true,
		},
		{
			name:             "Reserved for another relayer",
			exclusiveRelayer: otherRelayer.Hex(),
			expected:         false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, plugin.IsEligible(testIntent(t, tc.exclusiveRelayer)))
		})
	}
}

func TestIsEligibleInvalidMetadata(t *testing.T) {
	plugin, err := New(testProtocolConfig(), relayerAddr, nil, &logger.EmptyLogger{})
	require.NoError(t, err)

	intent := testIntent(t, "")
	intent.Metadata = json.RawMessage(`not-json`)
	assert.False(t, plugin.IsEligible(intent))
}

func TestIsEligibleSharedRulesStillApply(t *testing.T) {
	plugin, err := New(testProtocolConfig(), relayerAddr, nil, &logger.EmptyLogger{})
	require.NoError(t, err)

	intent := testIntent(t, relayerAddr.Hex())
	past := time.Now().Add(-time.Hour).Unix()
	intent.Deadline = &past
	assert.False(t, plugin.IsEligible(intent))
}

func TestL1TokenResolution(t *testing.T) {
	plugin, err := New(testProtocolConfig(), relayerAddr, nil, &logger.EmptyLogger{})
	require.NoError(t, err)

	t.Run("Known symbol maps to mainnet address", func(t *testing.T) {
		l1Token, err := plugin.l1Token(testIntent(t, ""))
		require.NoError(t, err)
		assert.Equal(t, l1Tokens["USDC"], l1Token)
	})

	t.Run("Unsupported token errors", func(t *testing.T) {
		intent := testIntent(t, "")
		intent.Output.TokenAddress = otherRelayer.Hex()
		_, err := plugin.l1Token(intent)
		assert.Error(t, err)
	})
}

func TestRelayerFeeArithmetic(t *testing.T) {
	// The fee is input - output - lpFee with the lp fee rounded down. Checked
	// here on the raw big.Int operations the calculation performs.
	input := big.NewInt(10_000_000)
	output := big.NewInt(9_990_000)
	lpFeePct := wadFrac(1, 10000) // 1 bps

	lpFee := new(big.Int).Mul(input, lpFeePct)
	lpFee.Div(lpFee, wad)
	require.Equal(t, int64(1000), lpFee.Int64())

	relayerFee := new(big.Int).Sub(input, output)
	relayerFee.Sub(relayerFee, lpFee)
	assert.Equal(t, int64(9000), relayerFee.Int64())

	// A generous lp fee can push the relayer fee negative.
	bigLpFee := new(big.Int).Mul(input, wadFrac(1, 100))
	bigLpFee.Div(bigLpFee, wad)
	negative := new(big.Int).Sub(input, output)
	negative.Sub(negative, bigLpFee)
	assert.True(t, negative.Sign() < 0, fmt.Sprintf("expected negative fee, got %s", negative))
}
