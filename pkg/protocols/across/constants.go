package across

import "github.com/ethereum/go-ethereum/common"

// Mainnet contracts backing the lp fee computation.
var (
	// HubPoolAddress is the Across hub pool on Ethereum mainnet.
	HubPoolAddress = common.HexToAddress("0xc186fA914353c44b2E33eBE05f21846F1048bEda")

	// ConfigStoreAddress is the Across config store on Ethereum mainnet.
	ConfigStoreAddress = common.HexToAddress("0x3B03509645713718B78951126E0A6de6f10043f5")
)

// l1Tokens maps supported token symbols to their mainnet addresses. Pool
// utilization is tracked per L1 token regardless of the legs of the relay.
var l1Tokens = map[string]common.Address{
	"USDC": common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
	"WETH": common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
	"USDT": common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"),
}

// mainnetBlockTime is the average mainnet block time in seconds, used to walk
// back from the latest block to the block at the quote timestamp.
const mainnetBlockTime = 12
