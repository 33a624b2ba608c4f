// Package across implements the Across protocol plugin. The relayer fee is
// whatever remains of the deposit after the output amount and the lp fee owed
// to the hub pool, computed from on-chain pool utilization at the quote block.
package across

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/mikiprotocol/miki-relayer/pkg/chainclient"
	"github.com/mikiprotocol/miki-relayer/pkg/config"
	"github.com/mikiprotocol/miki-relayer/pkg/contracts"
	"github.com/mikiprotocol/miki-relayer/pkg/logger"
	"github.com/mikiprotocol/miki-relayer/pkg/models"
	"github.com/mikiprotocol/miki-relayer/pkg/protocols"
)

// Metadata is the Across-specific part of an intent.
type Metadata struct {
	DepositID           string `json:"depositId"`
	QuoteTimestamp      int64  `json:"quoteTimestamp"`
	FillDeadline        int64  `json:"fillDeadline"`
	ExclusiveRelayer    string `json:"exclusiveRelayer"`
	ExclusivityDeadline int64  `json:"exclusivityDeadline"`
}

// Across is the protocol plugin for Across deposits.
type Across struct {
	*protocols.Base
	relayer     common.Address
	mainnet     *chainclient.Client
	hubPool     abi.ABI
	configStore abi.ABI
	logger      logger.Logger
}

// New creates the Across plugin. The mainnet client reads hub pool state even
// when mainnet is not one of the relay legs.
func New(cfg *config.ProtocolConfig, relayer common.Address, mainnet *chainclient.Client, log logger.Logger) (*Across, error) {
	hubPool, err := contracts.HubPoolABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse hub pool ABI: %v", err)
	}
	configStore, err := contracts.ConfigStoreABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse config store ABI: %v", err)
	}

	return &Across{
		Base:        protocols.NewBase(config.ProtocolAcross, cfg),
		relayer:     relayer,
		mainnet:     mainnet,
		hubPool:     hubPool,
		configStore: configStore,
		logger:      log,
	}, nil
}

// IsEligible rejects deposits reserved for another relayer, then applies the
// shared rules.
func (a *Across) IsEligible(intent *models.Intent) bool {
	var meta Metadata
	if err := json.Unmarshal(intent.Metadata, &meta); err != nil {
		a.logger.Debug("Rejecting intent %s: invalid metadata: %v", intent.ID, err)
		return false
	}

	if meta.ExclusiveRelayer != "" {
		exclusive := common.HexToAddress(meta.ExclusiveRelayer)
		if exclusive != (common.Address{}) && exclusive != a.relayer {
			return false
		}
	}
	return a.Base.IsEligible(intent)
}

// CalculateRelayerFee computes input - output - lpFee, where the lp fee comes
// from the hub pool utilization move the deposit causes at the quote block.
func (a *Across) CalculateRelayerFee(ctx context.Context, intent *models.Intent) (*big.Int, error) {
	var meta Metadata
	if err := json.Unmarshal(intent.Metadata, &meta); err != nil {
		return nil, fmt.Errorf("invalid metadata for intent %s: %v", intent.ID, err)
	}

	inputAmount, err := intent.InputAmount()
	if err != nil {
		return nil, err
	}
	outputAmount, err := intent.OutputAmount()
	if err != nil {
		return nil, err
	}

	l1Token, err := a.l1Token(intent)
	if err != nil {
		return nil, err
	}

	quoteBlock, err := a.quoteBlock(ctx, meta.QuoteTimestamp)
	if err != nil {
		return nil, err
	}

	utilCurrent, utilPost, configJSON, err := a.readHubPoolState(ctx, l1Token, inputAmount, quoteBlock)
	if err != nil {
		return nil, err
	}

	routeKey := fmt.Sprintf("%d-%d", intent.Input.ChainID, intent.Output.ChainID)
	model, err := ParseRateModel(configJSON, routeKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve rate model for intent %s: %v", intent.ID, err)
	}

	lpFeePct := ApyToWeeklyFee(model.AverageRate(utilCurrent, utilPost))
	lpFee := new(big.Int).Mul(inputAmount, lpFeePct)
	lpFee.Div(lpFee, wad)

	relayerFee := new(big.Int).Sub(inputAmount, outputAmount)
	relayerFee.Sub(relayerFee, lpFee)

	a.logger.DebugWithChain(intent.Output.ChainID, "Intent %s: lp fee %s, relayer fee %s", intent.ID, lpFee, relayerFee)
	return relayerFee, nil
}

// l1Token resolves the mainnet address tracking pool utilization for the
// output token of the intent.
func (a *Across) l1Token(intent *models.Intent) (common.Address, error) {
	dst, err := a.Config().DstChain(intent.Output.ChainID)
	if err != nil {
		return common.Address{}, err
	}
	token, err := dst.Token(common.HexToAddress(intent.Output.TokenAddress))
	if err != nil {
		return common.Address{}, err
	}
	l1Token, ok := l1Tokens[strings.ToUpper(token.Symbol)]
	if !ok {
		return common.Address{}, fmt.Errorf("no l1 token mapping for %s", token.Symbol)
	}
	return l1Token, nil
}

// quoteBlock estimates the mainnet block at the quote timestamp by walking
// back from the latest header at the average block time.
func (a *Across) quoteBlock(ctx context.Context, quoteTimestamp int64) (*big.Int, error) {
	header, err := a.mainnet.LatestHeader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mainnet header: %v", err)
	}

	if quoteTimestamp <= 0 || uint64(quoteTimestamp) >= header.Time {
		return header.Number, nil
	}

	delta := header.Time - uint64(quoteTimestamp)
	blocksBack := (delta + mainnetBlockTime - 1) / mainnetBlockTime
	quoteBlock := new(big.Int).Sub(header.Number, new(big.Int).SetUint64(blocksBack))
	if quoteBlock.Sign() < 0 {
		return big.NewInt(0), nil
	}
	return quoteBlock, nil
}

// readHubPoolState fetches current and post-relay utilization plus the token
// config in a single batched call pinned to the quote block.
func (a *Across) readHubPoolState(ctx context.Context, l1Token common.Address, amount, blockNumber *big.Int) (*big.Int, *big.Int, string, error) {
	currentData, err := a.hubPool.Pack("liquidityUtilizationCurrent", l1Token)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to pack utilization call: %v", err)
	}
	postData, err := a.hubPool.Pack("liquidityUtilizationPostRelay", l1Token, amount)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to pack post-relay utilization call: %v", err)
	}
	configData, err := a.configStore.Pack("l1TokenConfig", l1Token)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to pack token config call: %v", err)
	}

	results, err := a.mainnet.BatchCallContract(ctx, []chainclient.Call{
		{To: HubPoolAddress, Data: currentData},
		{To: HubPoolAddress, Data: postData},
		{To: ConfigStoreAddress, Data: configData},
	}, blockNumber)
	if err != nil {
		return nil, nil, "", err
	}

	utilCurrent, err := a.unpackUint(results[0], "liquidityUtilizationCurrent")
	if err != nil {
		return nil, nil, "", err
	}
	utilPost, err := a.unpackUint(results[1], "liquidityUtilizationPostRelay")
	if err != nil {
		return nil, nil, "", err
	}

	configOut, err := a.configStore.Unpack("l1TokenConfig", results[2])
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to unpack token config: %v", err)
	}
	configJSON, ok := configOut[0].(string)
	if !ok {
		return nil, nil, "", fmt.Errorf("unexpected token config type %T", configOut[0])
	}

	return utilCurrent, utilPost, configJSON, nil
}

func (a *Across) unpackUint(data []byte, method string) (*big.Int, error) {
	out, err := a.hubPool.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %v", method, err)
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result type %T", method, out[0])
	}
	return value, nil
}
