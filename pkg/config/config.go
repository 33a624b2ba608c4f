package config

import (
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/mikiprotocol/miki-relayer/pkg/logger"
)

// Config holds the configuration for the relayer service. It is loaded once at
// startup and shared read-only by all concurrent pipeline runs.
type Config struct {
	RelayerAddress  common.Address
	PrivateKey      string
	AggregatorURL   string
	AggregatorWSURL string
	MetricsPort     string
	Chains          map[int64]ChainConfig
	Protocols       []ProtocolConfig
	CircuitBreaker  CircuitBreakerConfig
	LoggerConfig    LoggerConfig
	CatchupLimit    int
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// ChainConfig holds the RPC configuration for a specific blockchain
type ChainConfig struct {
	ChainID int64
	RPCURL  string
}

// ProtocolConfig holds the static configuration of one bridging protocol
// subscription.
type ProtocolConfig struct {
	Name      string
	Simulate  bool
	SrcChains []SrcChainConfig
	DstChains []DstChainConfig
	Rebalance []WrapConfig
}

// SrcChainConfig is a source-chain subscription filter entry.
type SrcChainConfig struct {
	ChainID       int64
	Confirmations map[string]uint64
}

// DstChainConfig is a destination-chain filter entry with execution policy.
type DstChainConfig struct {
	ChainID         int64
	FillContract    common.Address
	UseAggregator   bool
	EIP1559         bool
	DefaultGasLimit uint64
	SupportTokens   []TokenConfig
}

// TokenConfig describes a supported destination token. RelayerFeePct maps a
// minimum input amount threshold (decimal string, token base units) to the fee
// percentage in parts per million allocated to gas pricing.
type TokenConfig struct {
	Address      common.Address
	Symbol       string
	Decimals     uint8
	MinAmount    string
	MaxAmount    string
	RelayerFeePct map[string]int64
}

// WrapConfig drives the native/wrapped rebalancer for one chain.
type WrapConfig struct {
	ChainID      int64
	WETHAddress  common.Address
	WethPct      float64
	AllowancePct float64
	Interval     time.Duration
}

// LoadConfig loads the configuration from environment variables, merging the
// built-in protocol tables.
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: .env file not found, using environment variables")
	}

	aggregatorURL, err := GetEnvAggregatorURL()
	if err != nil {
		return nil, err
	}

	aggregatorWSURL, err := GetEnvAggregatorWSURL()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	relayerAddress, err := GetEnvRelayerAddress()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	catchupLimit, err := GetEnvCatchupLimit()
	if err != nil {
		return nil, err
	}

	protocols := defaultProtocols()
	applyProtocolOverrides(protocols)

	chains, err := chainConfigsForProtocols(protocols)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RelayerAddress:  relayerAddress,
		PrivateKey:      os.Getenv("PRIVATE_KEY"),
		AggregatorURL:   aggregatorURL,
		AggregatorWSURL: aggregatorWSURL,
		MetricsPort:     metricsPort,
		Chains:          chains,
		Protocols:       protocols,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
		CatchupLimit: catchupLimit,
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// chainConfigsForProtocols collects the RPC configuration for every chain any
// protocol references, on either leg.
func chainConfigsForProtocols(protocols []ProtocolConfig) (map[int64]ChainConfig, error) {
	chains := make(map[int64]ChainConfig)
	add := func(chainID int64) error {
		if _, exists := chains[chainID]; exists {
			return nil
		}
		rpcURL, err := GetEnvRPCURL(chainID)
		if err != nil {
			return err
		}
		chains[chainID] = ChainConfig{ChainID: chainID, RPCURL: rpcURL}
		return nil
	}

	for _, protocol := range protocols {
		for _, src := range protocol.SrcChains {
			if err := add(src.ChainID); err != nil {
				return nil, err
			}
		}
		for _, dst := range protocol.DstChains {
			if err := add(dst.ChainID); err != nil {
				return nil, err
			}
		}
	}

	// The Across fee model reads the mainnet hub pool regardless of the legs.
	if err := add(MainnetChainID); err != nil {
		return nil, err
	}
	return chains, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.PrivateKey == "" {
		return fmt.Errorf("PRIVATE_KEY environment variable is required")
	}
	if cfg.RelayerAddress == (common.Address{}) {
		return fmt.Errorf("RELAYER_ADDRESS environment variable is required")
	}
	if len(cfg.Chains) == 0 {
		return fmt.Errorf("at least one chain configuration is required")
	}
	if len(cfg.Protocols) == 0 {
		return fmt.Errorf("at least one protocol configuration is required")
	}
	for _, protocol := range cfg.Protocols {
		if protocol.Name == "" {
			return fmt.Errorf("protocol name is required")
		}
		for _, dst := range protocol.DstChains {
			if dst.FillContract == (common.Address{}) {
				return fmt.Errorf("fill contract for protocol %s chain %d is required", protocol.Name, dst.ChainID)
			}
		}
	}
	return nil
}

// Protocol returns the configuration of the named protocol. The lookup is
// case-insensitive to match intent source tags.
func (c *Config) Protocol(name string) (*ProtocolConfig, error) {
	for i := range c.Protocols {
		if strings.EqualFold(c.Protocols[i].Name, name) {
			return &c.Protocols[i], nil
		}
	}
	return nil, fmt.Errorf("protocol not found: %s", name)
}

// DstChain returns the destination-chain filter entry for a chain id.
func (p *ProtocolConfig) DstChain(chainID int64) (*DstChainConfig, error) {
	for i := range p.DstChains {
		if p.DstChains[i].ChainID == chainID {
			return &p.DstChains[i], nil
		}
	}
	return nil, fmt.Errorf("dst chain filter not found for protocol %s chain %d", p.Name, chainID)
}

// Token returns the supported-token entry for a destination token address.
func (d *DstChainConfig) Token(address common.Address) (*TokenConfig, error) {
	for i := range d.SupportTokens {
		if d.SupportTokens[i].Address == address {
			return &d.SupportTokens[i], nil
		}
	}
	return nil, fmt.Errorf("token %s not configured for chain %d", address.Hex(), d.ChainID)
}

// FeePctForAmount resolves the relayer fee percentage (ppm) for an input
// amount. Thresholds are compared in token base units, sorted descending; the
// first threshold not exceeding the amount wins. No matching threshold means
// a zero fee.
func (t *TokenConfig) FeePctForAmount(amount *big.Int) int64 {
	type tier struct {
		threshold *big.Int
		pct       int64
	}

	tiers := make([]tier, 0, len(t.RelayerFeePct))
	for raw, pct := range t.RelayerFeePct {
		threshold, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			continue
		}
		tiers = append(tiers, tier{threshold: threshold, pct: pct})
	}

	sort.Slice(tiers, func(i, j int) bool {
		return tiers[i].threshold.Cmp(tiers[j].threshold) > 0
	})

	for _, tr := range tiers {
		if amount.Cmp(tr.threshold) >= 0 {
			return tr.pct
		}
	}
	return 0
}
