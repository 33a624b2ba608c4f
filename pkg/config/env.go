package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mikiprotocol/miki-relayer/pkg/logger"
)

const (
	// MainnetChainID is Ethereum mainnet, home of the Across hub pool
	MainnetChainID = int64(1)

	// DefaultMetricsPort defines the default port for the metrics server
	DefaultMetricsPort = "8080"

	// DefaultAggregatorURL defines the default HTTP endpoint of the intent aggregator
	DefaultAggregatorURL = "https://aggregator.miki.exchange"

	// DefaultAggregatorWSURL defines the default websocket endpoint of the intent aggregator
	DefaultAggregatorWSURL = "wss://aggregator.miki.exchange"

	// DefaultCircuitBreakerEnabled defines whether the circuit breaker is enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of failures before the circuit breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the time window for the circuit breaker in minutes
	DefaultCircuitBreakerWindow = 5

	// DefaultCircuitBreakerReset defines the reset timeout for the circuit breaker in minutes
	DefaultCircuitBreakerReset = 15

	// DefaultCatchupLimit defines how many intents a backfill pass requests at subscription start.
	// Zero disables the backfill pass.
	DefaultCatchupLimit = 0
)

// defaultRPCURLs are the public endpoints used when no CHAIN_<ID>_RPC_URL
// override is present.
var defaultRPCURLs = map[int64]string{
	1:     "https://eth.llamarpc.com",
	10:    "https://mainnet.optimism.io",
	137:   "https://polygon-rpc.com",
	8453:  "https://mainnet.base.org",
	42161: "https://arb1.arbitrum.io/rpc",
}

// GetEnvAggregatorURL returns the aggregator HTTP endpoint
func GetEnvAggregatorURL() (string, error) {
	raw := os.Getenv("AGGREGATOR_URL")
	if raw == "" {
		return DefaultAggregatorURL, nil
	}
	if _, err := url.ParseRequestURI(raw); err != nil {
		return "", fmt.Errorf("invalid AGGREGATOR_URL: %v", err)
	}
	return raw, nil
}

// GetEnvAggregatorWSURL returns the aggregator websocket endpoint
func GetEnvAggregatorWSURL() (string, error) {
	raw := os.Getenv("AGGREGATOR_WS_URL")
	if raw == "" {
		return DefaultAggregatorWSURL, nil
	}
	if _, err := url.ParseRequestURI(raw); err != nil {
		return "", fmt.Errorf("invalid AGGREGATOR_WS_URL: %v", err)
	}
	return raw, nil
}

// GetEnvMetricsPort returns the metrics server port
func GetEnvMetricsPort() (string, error) {
	raw := os.Getenv("METRICS_PORT")
	if raw == "" {
		return DefaultMetricsPort, nil
	}
	if _, err := strconv.Atoi(raw); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT: %v", err)
	}
	return raw, nil
}

// GetEnvRelayerAddress returns the relayer signing address
func GetEnvRelayerAddress() (common.Address, error) {
	raw := os.Getenv("RELAYER_ADDRESS")
	if raw == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid RELAYER_ADDRESS: %s", raw)
	}
	return common.HexToAddress(raw), nil
}

// GetEnvRPCURL returns the RPC endpoint for a chain, env override first
func GetEnvRPCURL(chainID int64) (string, error) {
	if raw := os.Getenv(fmt.Sprintf("CHAIN_%d_RPC_URL", chainID)); raw != "" {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return "", fmt.Errorf("invalid CHAIN_%d_RPC_URL: %v", chainID, err)
		}
		return raw, nil
	}
	if def, ok := defaultRPCURLs[chainID]; ok {
		return def, nil
	}
	return "", fmt.Errorf("no RPC URL configured for chain %d", chainID)
}

// GetEnvCircuitBreakerEnabled returns whether the circuit breaker is enabled
func GetEnvCircuitBreakerEnabled() (bool, error) {
	raw := os.Getenv("CIRCUIT_BREAKER_ENABLED")
	if raw == "" {
		return DefaultCircuitBreakerEnabled, nil
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid CIRCUIT_BREAKER_ENABLED: %v", err)
	}
	return enabled, nil
}

// GetEnvCircuitBreakerThreshold returns the circuit breaker failure threshold
func GetEnvCircuitBreakerThreshold() (int, error) {
	raw := os.Getenv("CIRCUIT_BREAKER_THRESHOLD")
	if raw == "" {
		return DefaultCircuitBreakerThreshold, nil
	}
	threshold, err := strconv.Atoi(raw)
	if err != nil || threshold <= 0 {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_THRESHOLD: %s", raw)
	}
	return threshold, nil
}

// GetEnvCircuitBreakerWindow returns the circuit breaker failure window
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	raw := os.Getenv("CIRCUIT_BREAKER_WINDOW_MINUTES")
	if raw == "" {
		return DefaultCircuitBreakerWindow * time.Minute, nil
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_WINDOW_MINUTES: %s", raw)
	}
	return time.Duration(minutes) * time.Minute, nil
}

// GetEnvCircuitBreakerReset returns the circuit breaker reset timeout
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	raw := os.Getenv("CIRCUIT_BREAKER_RESET_MINUTES")
	if raw == "" {
		return DefaultCircuitBreakerReset * time.Minute, nil
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_RESET_MINUTES: %s", raw)
	}
	return time.Duration(minutes) * time.Minute, nil
}

// GetEnvLogLevel returns the configured log level
func GetEnvLogLevel() (logger.Level, error) {
	raw := strings.ToLower(os.Getenv("LOG_LEVEL"))
	switch raw {
	case "", "info":
		return logger.InfoLevel, nil
	case "debug":
		return logger.DebugLevel, nil
	case "notice":
		return logger.NoticeLevel, nil
	case "warn":
		return logger.WarnLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("invalid LOG_LEVEL: %s", raw)
	}
}

// GetEnvLogColoring returns whether colored log prefixes are enabled
func GetEnvLogColoring() (bool, error) {
	raw := os.Getenv("LOG_COLORING")
	if raw == "" {
		return true, nil
	}
	coloring, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid LOG_COLORING: %v", err)
	}
	return coloring, nil
}

// GetEnvCatchupLimit returns the backfill fetch limit
func GetEnvCatchupLimit() (int, error) {
	raw := os.Getenv("CATCHUP_LIMIT")
	if raw == "" {
		return DefaultCatchupLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("invalid CATCHUP_LIMIT: %s", raw)
	}
	return limit, nil
}

// applyProtocolOverrides applies per-protocol environment overrides on top of
// the built-in tables.
func applyProtocolOverrides(protocols []ProtocolConfig) {
	for i := range protocols {
		envName := strings.ToUpper(protocols[i].Name)
		if raw := os.Getenv(fmt.Sprintf("PROTOCOL_%s_SIMULATE", envName)); raw != "" {
			if simulate, err := strconv.ParseBool(raw); err == nil {
				protocols[i].Simulate = simulate
			}
		}
	}
}
