package relayer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/mikiprotocol/miki-relayer/pkg/chainclient"
	"github.com/mikiprotocol/miki-relayer/pkg/config"
	"github.com/mikiprotocol/miki-relayer/pkg/contracts"
)

// maxApproval is the unlimited ERC-20 approval amount.
var maxApproval = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// ensureAllowances grants the fill contracts spending rights on every
// supported token before any intent is processed. Fills would otherwise
// revert on the token transfer.
func (r *Relayer) ensureAllowances(ctx context.Context) error {
	erc20, err := contracts.ERC20ABI()
	if err != nil {
		return fmt.Errorf("failed to parse ERC-20 ABI: %v", err)
	}

	for i := range r.cfg.Protocols {
		pcfg := &r.cfg.Protocols[i]
		for _, dst := range pcfg.DstChains {
			client, ok := r.chains[dst.ChainID]
			if !ok {
				return fmt.Errorf("no client for chain %d", dst.ChainID)
			}
			for _, token := range dst.SupportTokens {
				if err := r.ensureAllowance(ctx, client, erc20, token, dst); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (r *Relayer) ensureAllowance(ctx context.Context, client *chainclient.Client, erc20 abi.ABI, token config.TokenConfig, dst config.DstChainConfig) error {
	callData, err := erc20.Pack("allowance", client.From(), dst.FillContract)
	if err != nil {
		return fmt.Errorf("failed to pack allowance call: %v", err)
	}

	tokenAddr := token.Address
	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &tokenAddr, Data: callData}, nil)
	if err != nil {
		return fmt.Errorf("failed to read %s allowance on chain %d: %v", token.Symbol, dst.ChainID, err)
	}

	out, err := erc20.Unpack("allowance", result)
	if err != nil {
		return fmt.Errorf("failed to unpack allowance: %v", err)
	}
	allowance, ok := out[0].(*big.Int)
	if !ok {
		return fmt.Errorf("unexpected allowance type %T", out[0])
	}

	// Re-approve only when the remaining allowance could no longer cover the
	// largest configured fill.
	threshold, ok := new(big.Int).SetString(token.MaxAmount, 10)
	if !ok {
		threshold = big.NewInt(0)
	}
	if allowance.Cmp(threshold) >= 0 {
		return nil
	}

	r.logger.InfoWithChain(dst.ChainID, "Approving %s for fill contract %s", token.Symbol, dst.FillContract.Hex())

	approveData, err := erc20.Pack("approve", dst.FillContract, maxApproval)
	if err != nil {
		return fmt.Errorf("failed to pack approve call: %v", err)
	}

	from := client.From()
	msg := ethereum.CallMsg{From: from, To: &tokenAddr, Data: approveData}
	gasLimit, err := client.EstimateGas(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to estimate approve gas: %v", err)
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
		To:       &tokenAddr,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     approveData,
	})
	signedTx, err := client.SignTx(tx)
	if err != nil {
		return fmt.Errorf("failed to sign approve transaction: %v", err)
	}
	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return err
	}

	receipt, err := client.WaitMined(ctx, signedTx)
	if err != nil {
		return fmt.Errorf("failed to wait for approve transaction: %v", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("approve transaction %s reverted", signedTx.Hash().Hex())
	}
	return nil
}
