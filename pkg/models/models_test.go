package models

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntentUnmarshal(t *testing.T) {
	raw := `{
		"id": "intent-1",
		"source": "Across",
		"orderId": "0xabc",
		"deadline": 1700000000,
		"status": "pending",
		"input": {
			"chainId": 1,
			"hash": "0x111",
			"from": "0xaaa",
			"tokenAddress": "0xbbb",
			"amount": "1000000"
		},
		"output": {
			"chainId": 8453,
			"recipient": "0xccc",
			"tokenAddress": "0xddd",
			"amount": "999000"
		},
		"metadata": {"exclusiveRelayer": "0x0"}
	}`

	var intent Intent
	require.NoError(t, json.Unmarshal([]byte(raw), &intent))

	assert.Equal(t, "intent-1", intent.ID)
	assert.Equal(t, "across", intent.SourceTag())
	assert.Equal(t, StatusPending, intent.Status)
	assert.Equal(t, int64(1), intent.Input.ChainID)
	assert.Equal(t, int64(8453), intent.Output.ChainID)
	assert.Nil(t, intent.Output.Hash)
	require.NotNil(t, intent.Deadline)
	assert.Equal(t, int64(1700000000), *intent.Deadline)
	assert.NotEmpty(t, intent.Metadata)

	input, err := intent.InputAmount()
	require.NoError(t, err)
	assert.Equal(t, int64(1000000), input.Int64())

	output, err := intent.OutputAmount()
	require.NoError(t, err)
	assert.Equal(t, int64(999000), output.Int64())
}

func TestIntentExpired(t *testing.T) {
	now := time.Unix(1000, 0)
	past := int64(999)
	future := int64(1001)

	tests := []struct {
		name     string
		deadline *int64
		expected bool
	}{
		{
			name:     "No deadline never expires",
			deadline: nil,
			expected: false,
		},
		{
			name:     "Past deadline",
			deadline: &past,
			expected: true,
		},
		{
			name:     "Future deadline",
			deadline: &future,
			expected: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			intent := &Intent{Deadline: tc.deadline}
			assert.Equal(t, tc.expected, intent.Expired(now))
		})
	}
}

func TestIntentInvalidAmount(t *testing.T) {
	intent := &Intent{Input: IntentInput{Amount: "not-a-number"}}
	_, err := intent.InputAmount()
	assert.Error(t, err)
}

func TestGasInfoEnvelope(t *testing.T) {
	t.Run("Zero envelope", func(t *testing.T) {
		env := ZeroGasInfo()
		assert.True(t, env.IsZero())
		assert.False(t, env.UsesLegacy())
		assert.False(t, env.UsesDynamicFee())
	})

	t.Run("Legacy envelope", func(t *testing.T) {
		env := &GasInfo{
			GasUsed:              21000,
			GasPrice:             big.NewInt(5),
			MaxFeePerGas:         big.NewInt(0),
			MaxPriorityFeePerGas: big.NewInt(0),
		}
		assert.True(t, env.UsesLegacy())
		assert.False(t, env.UsesDynamicFee())
		assert.False(t, env.IsZero())
	})

	t.Run("Dynamic fee envelope", func(t *testing.T) {
		env := &GasInfo{
			GasUsed:              21000,
			GasPrice:             big.NewInt(0),
			MaxFeePerGas:         big.NewInt(200),
			MaxPriorityFeePerGas: big.NewInt(2),
		}
		assert.False(t, env.UsesLegacy())
		assert.True(t, env.UsesDynamicFee())
	})

	t.Run("Legacy wins when both set", func(t *testing.T) {
		env := &GasInfo{
			GasPrice:             big.NewInt(5),
			MaxFeePerGas:         big.NewInt(200),
			MaxPriorityFeePerGas: big.NewInt(2),
		}
		assert.True(t, env.UsesLegacy())
		assert.False(t, env.UsesDynamicFee())
	})
}

func TestFillRequestNativeValue(t *testing.T) {
	t.Run("Empty value defaults to zero", func(t *testing.T) {
		req := &FillRequest{}
		value, err := req.NativeValue()
		require.NoError(t, err)
		assert.Equal(t, int64(0), value.Int64())
	})

	t.Run("Parses decimal value", func(t *testing.T) {
		req := &FillRequest{Value: "1000000000000000"}
		value, err := req.NativeValue()
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(1e15), value)
	})

	t.Run("Invalid value errors", func(t *testing.T) {
		req := &FillRequest{Value: "xyz"}
		_, err := req.NativeValue()
		assert.Error(t, err)
	})
}
