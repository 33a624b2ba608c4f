// Package debridge implements the deBridge DLN protocol plugin. Fees are a
// flat cut of the input amount; filled orders are unlocked one by one on the
// destination chain to claim repayment.
package debridge

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/mikiprotocol/miki-relayer/pkg/chainclient"
	"github.com/mikiprotocol/miki-relayer/pkg/config"
	"github.com/mikiprotocol/miki-relayer/pkg/contracts"
	"github.com/mikiprotocol/miki-relayer/pkg/logger"
	"github.com/mikiprotocol/miki-relayer/pkg/models"
	"github.com/mikiprotocol/miki-relayer/pkg/protocols"
)

// Order is the DLN order carried in intent metadata, describing the give and
// take legs.
type Order struct {
	MakerSrc         string `json:"makerSrc"`
	GiveChainID      int64  `json:"giveChainId"`
	GiveTokenAddress string `json:"giveTokenAddress"`
	GiveAmount       string `json:"giveAmount"`
	TakeChainID      int64  `json:"takeChainId"`
	TakeTokenAddress string `json:"takeTokenAddress"`
	TakeAmount       string `json:"takeAmount"`
	ReceiverDst      string `json:"receiverDst"`
	AllowedTakerDst  string `json:"allowedTakerDst"`
}

// Metadata is the deBridge-specific part of an intent. UnlockAuthority is the
// address entitled to claim repayment for the filled order.
type Metadata struct {
	Order           Order  `json:"order"`
	OrderID         string `json:"orderId"`
	Sender          string `json:"sender"`
	UnlockAuthority string `json:"unlockAuthority"`
}

// DeBridge is the protocol plugin for deBridge DLN orders.
type DeBridge struct {
	*protocols.Base
	chains map[int64]*chainclient.Client
	dln    abi.ABI
	logger logger.Logger
}

// New creates the deBridge plugin
func New(cfg *config.ProtocolConfig, chains map[int64]*chainclient.Client, log logger.Logger) (*DeBridge, error) {
	dln, err := contracts.DlnDestinationABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse DLN destination ABI: %v", err)
	}

	return &DeBridge{
		Base:   protocols.NewBase(config.ProtocolDeBridge, cfg),
		chains: chains,
		dln:    dln,
		logger: log,
	}, nil
}

// CalculateRelayerFee returns the flat 4 bps cut of the input amount.
func (d *DeBridge) CalculateRelayerFee(_ context.Context, intent *models.Intent) (*big.Int, error) {
	amount, err := intent.InputAmount()
	if err != nil {
		return nil, err
	}

	fee := new(big.Int).Mul(amount, feeNumerator)
	fee.Div(fee, feeDenominator)
	if fee.Sign() < 0 {
		return big.NewInt(0), nil
	}
	return fee, nil
}

// RequiresSettlement reports that filled orders must be unlocked explicitly.
func (d *DeBridge) RequiresSettlement() bool {
	return true
}

// Settle unlocks a filled order on the destination chain. The unlock sends a
// cross-chain message back to the source, paid for by the attached native
// messaging fee.
func (d *DeBridge) Settle(ctx context.Context, intent *models.Intent) error {
	var meta Metadata
	if err := json.Unmarshal(intent.Metadata, &meta); err != nil {
		return fmt.Errorf("invalid metadata for intent %s: %v", intent.ID, err)
	}
	unlockAuthority := common.HexToAddress(meta.UnlockAuthority)
	if unlockAuthority == (common.Address{}) {
		return fmt.Errorf("intent %s has no unlock authority", intent.ID)
	}

	chainID := intent.Output.ChainID
	client, ok := d.chains[chainID]
	if !ok {
		return fmt.Errorf("no client for chain %d", chainID)
	}

	messagingFee, ok := messagingFees[chainID]
	if !ok {
		return fmt.Errorf("no messaging fee configured for chain %d", chainID)
	}

	dst, err := d.Config().DstChain(chainID)
	if err != nil {
		return err
	}

	if intent.OrderID == "" {
		return fmt.Errorf("intent %s has no order id", intent.ID)
	}
	orderID := common.HexToHash(intent.OrderID)

	data, err := d.dln.Pack("sendEvmUnlock", orderID, unlockAuthority, big.NewInt(0))
	if err != nil {
		return fmt.Errorf("failed to pack unlock call: %v", err)
	}

	from := client.From()
	to := dst.FillContract
	msg := ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: messagingFee,
		Data:  data,
	}

	gasLimit, err := client.EstimateGas(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to estimate unlock gas for intent %s: %v", intent.ID, err)
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get gas price: %v", err)
	}

	nonce, err := client.PendingNonceAt(ctx)
	if err != nil {
		return fmt.Errorf("failed to get nonce: %v", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    messagingFee,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signedTx, err := client.SignTx(tx)
	if err != nil {
		return fmt.Errorf("failed to sign unlock transaction: %v", err)
	}
	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return err
	}

	receipt, err := client.WaitMined(ctx, signedTx)
	if err != nil {
		return fmt.Errorf("failed to wait for unlock transaction: %v", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("unlock transaction %s reverted", signedTx.Hash().Hex())
	}

	d.logger.NoticeWithChain(chainID, "Unlocked order %s in tx %s", intent.OrderID, signedTx.Hash().Hex())
	return nil
}

// SettleBatch is not supported by the DLN destination contract deployments we
// target; orders are unlocked individually.
func (d *DeBridge) SettleBatch(_ context.Context, intents []*models.Intent) error {
	d.logger.Debug("Batch settlement not supported, %d orders left for individual unlock", len(intents))
	return nil
}
