// Package contracts holds the contract ABIs the relayer interacts with.
// Bindings are created on demand with bind.NewBoundContract; only the
// functions the relayer actually calls are declared.
package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const erc20ABIJSON = `[
	{
		"constant": true,
		"inputs": [
			{"name": "_owner", "type": "address"},
			{"name": "_spender", "type": "address"}
		],
		"name": "allowance",
		"outputs": [{"name": "", "type": "uint256"}],
		"payable": false,
		"stateMutability": "view",
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "_spender", "type": "address"},
			{"name": "_value", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [{"name": "", "type": "bool"}],
		"payable": false,
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "_owner", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"payable": false,
		"stateMutability": "view",
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "decimals",
		"outputs": [{"name": "", "type": "uint8"}],
		"payable": false,
		"stateMutability": "view",
		"type": "function"
	}
]`

const wethABIJSON = `[
	{
		"inputs": [],
		"name": "deposit",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [{"name": "wad", "type": "uint256"}],
		"name": "withdraw",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "owner", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

const hubPoolABIJSON = `[
	{
		"inputs": [{"name": "l1Token", "type": "address"}],
		"name": "liquidityUtilizationCurrent",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "l1Token", "type": "address"},
			{"name": "relayedAmount", "type": "uint256"}
		],
		"name": "liquidityUtilizationPostRelay",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

const configStoreABIJSON = `[
	{
		"inputs": [{"name": "", "type": "address"}],
		"name": "l1TokenConfig",
		"outputs": [{"name": "", "type": "string"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

const dlnDestinationABIJSON = `[
	{
		"inputs": [
			{"name": "_orderId", "type": "bytes32"},
			{"name": "_beneficiary", "type": "address"},
			{"name": "_executionFee", "type": "uint256"}
		],
		"name": "sendEvmUnlock",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	}
]`

// ERC20ABI returns the parsed ERC-20 ABI
func ERC20ABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(erc20ABIJSON))
}

// WETHABI returns the parsed WETH ABI
func WETHABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(wethABIJSON))
}

// HubPoolABI returns the parsed Across hub pool ABI
func HubPoolABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(hubPoolABIJSON))
}

// ConfigStoreABI returns the parsed Across config store ABI
func ConfigStoreABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(configStoreABIJSON))
}

// DlnDestinationABI returns the parsed deBridge DLN destination ABI
func DlnDestinationABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(dlnDestinationABIJSON))
}
