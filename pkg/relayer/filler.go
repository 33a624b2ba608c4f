package relayer

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/mikiprotocol/miki-relayer/pkg/chainclient"
	"github.com/mikiprotocol/miki-relayer/pkg/config"
	"github.com/mikiprotocol/miki-relayer/pkg/models"
	"github.com/mikiprotocol/miki-relayer/pkg/protocols"
)

// errInsufficientFee aborts a fill whose relayer fee cannot cover gas.
var errInsufficientFee = errors.New("relayer fee insufficient to cover gas")

// Fill outcome reported back to the pipeline.
const (
	fillStatusFilled    = "filled"
	fillStatusSimulated = "simulated"
)

// fillIntent executes one fill end to end: fetch the payload, price the gas,
// build and sign the transaction, then execute it on the configured path.
func (r *Relayer) fillIntent(ctx context.Context, p protocols.Protocol, pcfg *config.ProtocolConfig, intent *models.Intent) (string, error) {
	fillReq, err := r.agg.RequestFill(ctx, intent, "source")
	if err != nil {
		return "", err
	}

	client, ok := r.chains[fillReq.ChainID]
	if !ok {
		return "", fmt.Errorf("no client for chain %d", fillReq.ChainID)
	}
	dst, err := pcfg.DstChain(fillReq.ChainID)
	if err != nil {
		return "", err
	}

	relayerFee, err := p.CalculateRelayerFee(ctx, intent)
	if err != nil {
		return "", fmt.Errorf("failed to calculate relayer fee for intent %s: %v", intent.ID, err)
	}

	value, err := fillReq.NativeValue()
	if err != nil {
		return "", err
	}
	to := common.HexToAddress(fillReq.ContractAddress)
	data := common.FromHex(fillReq.Data)
	msg := ethereum.CallMsg{
		From:  client.From(),
		To:    &to,
		Value: value,
		Data:  data,
	}

	gasInfo, err := r.calculateGasFee(ctx, client, dst, intent, relayerFee, msg)
	if err != nil {
		return "", err
	}
	if gasInfo == nil {
		return "", errInsufficientFee
	}

	signedTx, err := r.buildFillTx(ctx, client, dst, gasInfo, msg)
	if err != nil {
		return "", err
	}

	if pcfg.Simulate {
		if _, err := client.CallContract(ctx, msg, nil); err != nil {
			return "", fmt.Errorf("fill simulation failed for intent %s: %v", intent.ID, err)
		}
		r.logger.NoticeWithChain(dst.ChainID, "Simulated fill for intent %s", intent.ID)
		return fillStatusSimulated, nil
	}

	if dst.UseAggregator {
		return fillStatusFilled, r.relayFill(ctx, intent, signedTx)
	}
	return fillStatusFilled, r.broadcastFill(ctx, client, intent, signedTx)
}

// buildFillTx assembles and signs the fill transaction according to the gas
// envelope. The gas limit doubles the scaled estimate to absorb state drift
// between pricing and inclusion.
func (r *Relayer) buildFillTx(ctx context.Context, client *chainclient.Client, dst *config.DstChainConfig, gasInfo *models.GasInfo, msg ethereum.CallMsg) (*types.Transaction, error) {
	nonce, err := client.PendingNonceAt(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce on chain %d: %v", client.ChainID, err)
	}

	gasLimit := dst.DefaultGasLimit
	if gasInfo.GasUsed != 0 {
		gasLimit = gasInfo.GasUsed * 2
	}

	var tx *types.Transaction
	switch {
	case gasInfo.UsesDynamicFee():
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   big.NewInt(client.ChainID),
			Nonce:     nonce,
			To:        msg.To,
			Value:     msg.Value,
			Gas:       gasLimit,
			GasFeeCap: gasInfo.MaxFeePerGas,
			GasTipCap: gasInfo.MaxPriorityFeePerGas,
			Data:      msg.Data,
		})
	case gasInfo.UsesLegacy():
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       msg.To,
			Value:    msg.Value,
			Gas:      gasLimit,
			GasPrice: gasInfo.GasPrice,
			Data:     msg.Data,
		})
	default:
		// No fee override, pay whatever the node suggests.
		gasPrice, err := client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get gas price on chain %d: %v", client.ChainID, err)
		}
		if gasInfo.GasUsed == 0 {
			estimate, err := client.EstimateGas(ctx, msg)
			if err != nil {
				return nil, fmt.Errorf("failed to estimate fill gas on chain %d: %v", client.ChainID, err)
			}
			gasLimit = estimate * 2
		}
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       msg.To,
			Value:    msg.Value,
			Gas:      gasLimit,
			GasPrice: gasPrice,
			Data:     msg.Data,
		})
	}

	signedTx, err := client.SignTx(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to sign fill transaction: %v", err)
	}
	return signedTx, nil
}

// relayFill hands the signed transaction to the aggregator for broadcast.
func (r *Relayer) relayFill(ctx context.Context, intent *models.Intent, signedTx *types.Transaction) error {
	raw, err := signedTx.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode fill transaction: %v", err)
	}

	resp, err := r.agg.SubmitFill(ctx, intent, hexutil.Encode(raw))
	if err != nil {
		return err
	}
	if resp.Status != "success" {
		return fmt.Errorf("aggregator rejected fill for intent %s: %s", intent.ID, resp.Status)
	}

	r.logger.NoticeWithChain(intent.Output.ChainID, "Relayed fill for intent %s via aggregator", intent.ID)
	return nil
}

// broadcastFill sends the signed transaction directly and waits for the
// receipt.
func (r *Relayer) broadcastFill(ctx context.Context, client *chainclient.Client, intent *models.Intent, signedTx *types.Transaction) error {
	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return err
	}

	receipt, err := client.WaitMined(ctx, signedTx)
	if err != nil {
		return fmt.Errorf("failed to wait for fill transaction %s: %v", signedTx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("fill transaction %s reverted", signedTx.Hash().Hex())
	}

	r.logger.NoticeWithChain(client.ChainID, "Filled intent %s in tx %s", intent.ID, signedTx.Hash().Hex())
	return nil
}
