// Package relayer wires the intent pipeline together: stream subscription,
// eligibility filtering, fee pricing, fill execution and settlement.
package relayer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/mikiprotocol/miki-relayer/pkg/aggclient"
	"github.com/mikiprotocol/miki-relayer/pkg/chainclient"
	"github.com/mikiprotocol/miki-relayer/pkg/circuitbreaker"
	"github.com/mikiprotocol/miki-relayer/pkg/config"
	"github.com/mikiprotocol/miki-relayer/pkg/health"
	"github.com/mikiprotocol/miki-relayer/pkg/logger"
	"github.com/mikiprotocol/miki-relayer/pkg/metrics"
	"github.com/mikiprotocol/miki-relayer/pkg/models"
	"github.com/mikiprotocol/miki-relayer/pkg/protocols"
	"github.com/mikiprotocol/miki-relayer/pkg/protocols/across"
	"github.com/mikiprotocol/miki-relayer/pkg/protocols/debridge"
	"github.com/mikiprotocol/miki-relayer/pkg/rebalancer"
)

const gasPriceUpdateInterval = time.Minute

// Relayer is the top-level service. One instance serves every configured
// protocol and chain.
type Relayer struct {
	cfg      *config.Config
	agg      *aggclient.Client
	chains   map[int64]*chainclient.Client
	registry *protocols.Registry
	breakers map[int64]*circuitbreaker.CircuitBreaker
	logger   logger.Logger

	streams []*aggclient.Stream
	wg      sync.WaitGroup
}

// New connects the chain clients and builds the protocol registry.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*Relayer, error) {
	chains := make(map[int64]*chainclient.Client, len(cfg.Chains))
	for chainID, chainCfg := range cfg.Chains {
		client, err := chainclient.New(ctx, chainID, chainCfg.RPCURL, cfg.PrivateKey, log)
		if err != nil {
			return nil, err
		}
		chains[chainID] = client
	}

	registry := protocols.NewRegistry()
	breakers := make(map[int64]*circuitbreaker.CircuitBreaker)

	for i := range cfg.Protocols {
		pcfg := &cfg.Protocols[i]
		switch pcfg.Name {
		case config.ProtocolAcross:
			plugin, err := across.New(pcfg, cfg.RelayerAddress, chains[config.MainnetChainID], log)
			if err != nil {
				return nil, err
			}
			registry.Register(plugin)
		case config.ProtocolDeBridge:
			plugin, err := debridge.New(pcfg, chains, log)
			if err != nil {
				return nil, err
			}
			registry.Register(plugin)
		default:
			return nil, fmt.Errorf("unknown protocol: %s", pcfg.Name)
		}

		for _, dst := range pcfg.DstChains {
			if _, ok := breakers[dst.ChainID]; !ok {
				breakers[dst.ChainID] = circuitbreaker.NewCircuitBreaker(
					cfg.CircuitBreaker.Enabled,
					cfg.CircuitBreaker.Threshold,
					cfg.CircuitBreaker.WindowDuration,
					cfg.CircuitBreaker.ResetTimeout,
					log,
				)
			}
		}
	}

	return &Relayer{
		cfg:      cfg,
		agg:      aggclient.New(cfg.AggregatorURL, cfg.AggregatorWSURL, cfg.RelayerAddress.Hex(), log),
		chains:   chains,
		registry: registry,
		breakers: breakers,
		logger:   log,
	}, nil
}

// Start runs the relayer until the context is cancelled.
func (r *Relayer) Start(ctx context.Context) error {
	healthServer := health.NewServer(r.cfg.MetricsPort, r.chains, r.breakers, r.logger)
	go healthServer.Start()

	for _, client := range r.chains {
		r.wg.Add(1)
		go r.updateGasPriceMetric(ctx, client)
	}

	if err := r.ensureAllowances(ctx); err != nil {
		return fmt.Errorf("allowance bootstrap failed: %v", err)
	}

	for i := range r.cfg.Protocols {
		pcfg := &r.cfg.Protocols[i]
		for _, wrap := range pcfg.Rebalance {
			client, ok := r.chains[wrap.ChainID]
			if !ok {
				return fmt.Errorf("no client for rebalance chain %d", wrap.ChainID)
			}
			rb, err := rebalancer.New(client, wrap, r.logger)
			if err != nil {
				return err
			}
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				rb.Start(ctx)
			}()
		}
	}

	if r.cfg.CatchupLimit > 0 {
		r.catchup(ctx)
	}

	for i := range r.cfg.Protocols {
		pcfg := &r.cfg.Protocols[i]
		filter := aggclient.Filter{}
		for _, src := range pcfg.SrcChains {
			filter.SrcChains = append(filter.SrcChains, src.ChainID)
		}
		for _, dst := range pcfg.DstChains {
			filter.DstChains = append(filter.DstChains, dst.ChainID)
		}

		stream := aggclient.NewStream(r.cfg.AggregatorWSURL, pcfg.Name, filter, func(intent models.Intent) {
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				r.processIntent(ctx, intent)
			}()
		}, r.logger)

		if err := stream.Start(ctx); err != nil {
			return err
		}
		r.streams = append(r.streams, stream)
		r.logger.Info("Subscribed to %s intents", pcfg.Name)
	}

	<-ctx.Done()
	r.Stop()
	return nil
}

// Stop closes the streams and waits for in-flight intents.
func (r *Relayer) Stop() {
	for _, stream := range r.streams {
		stream.Stop()
	}
	r.wg.Wait()
	for _, client := range r.chains {
		client.Close()
	}
}

// catchup processes recent pending intents missed while offline. Redelivery
// of an already-filled intent is harmless: the aggregator rejects the second
// fill request.
func (r *Relayer) catchup(ctx context.Context) {
	intents, err := r.agg.FetchIntents(ctx, r.cfg.CatchupLimit, "", r.chainFilter())
	if err != nil {
		r.logger.Warn("Catchup fetch failed: %v", err)
		return
	}
	r.logger.Info("Catchup: processing %d pending intents", len(intents))
	for _, intent := range intents {
		r.processIntent(ctx, intent)
	}
}

// chainFilter is the union of every protocol's chain legs, used when listing
// intents across protocols.
func (r *Relayer) chainFilter() aggclient.Filter {
	var filter aggclient.Filter
	seenSrc := make(map[int64]bool)
	seenDst := make(map[int64]bool)
	for i := range r.cfg.Protocols {
		for _, src := range r.cfg.Protocols[i].SrcChains {
			if !seenSrc[src.ChainID] {
				seenSrc[src.ChainID] = true
				filter.SrcChains = append(filter.SrcChains, src.ChainID)
			}
		}
		for _, dst := range r.cfg.Protocols[i].DstChains {
			if !seenDst[dst.ChainID] {
				seenDst[dst.ChainID] = true
				filter.DstChains = append(filter.DstChains, dst.ChainID)
			}
		}
	}
	return filter
}

// processIntent drives a single intent through the pipeline. Failures are
// terminal for this delivery; there are no retries.
func (r *Relayer) processIntent(ctx context.Context, intent models.Intent) {
	start := time.Now()
	source := intent.SourceTag()
	metrics.IntentsReceived.WithLabelValues(source).Inc()
	defer func() {
		metrics.ProcessingTime.WithLabelValues(source).Observe(time.Since(start).Seconds())
	}()

	p, err := r.registry.Lookup(source)
	if err != nil {
		r.logger.Warn("Skipping intent %s: %v", intent.ID, err)
		return
	}

	if !p.IsEligible(&intent) {
		r.logger.Debug("Intent %s not eligible", intent.ID)
		return
	}
	metrics.IntentsEligible.WithLabelValues(source).Inc()

	chainLabel := strconv.FormatInt(intent.Output.ChainID, 10)
	if breaker, ok := r.breakers[intent.Output.ChainID]; ok && breaker.IsOpen() {
		r.logger.WarnWithChain(intent.Output.ChainID, "Circuit open, skipping intent %s", intent.ID)
		metrics.CircuitBreakerState.WithLabelValues(chainLabel).Set(1)
		return
	}
	metrics.CircuitBreakerState.WithLabelValues(chainLabel).Set(0)

	pcfg, err := r.cfg.Protocol(p.Name())
	if err != nil {
		r.logger.Error("No configuration for protocol %s", p.Name())
		return
	}

	status, err := r.fillIntent(ctx, p, pcfg, &intent)
	if err != nil {
		if errors.Is(err, errInsufficientFee) {
			r.logger.NoticeWithChain(intent.Output.ChainID, "Aborting intent %s: fee cannot cover gas", intent.ID)
			metrics.IntentsAborted.WithLabelValues(source, chainLabel).Inc()
			return
		}
		r.logger.ErrorWithChain(intent.Output.ChainID, "Fill failed for intent %s: %v", intent.ID, err)
		metrics.IntentsFilled.WithLabelValues(source, chainLabel, "failed").Inc()
		if breaker, ok := r.breakers[intent.Output.ChainID]; ok {
			breaker.RecordFailure()
		}
		return
	}
	metrics.IntentsFilled.WithLabelValues(source, chainLabel, status).Inc()

	if status == fillStatusSimulated || !p.RequiresSettlement() {
		metrics.Settlements.WithLabelValues(source, chainLabel, "skipped").Inc()
		return
	}

	if err := p.Settle(ctx, &intent); err != nil {
		r.logger.ErrorWithChain(intent.Output.ChainID, "Settlement failed for intent %s: %v", intent.ID, err)
		metrics.Settlements.WithLabelValues(source, chainLabel, "failed").Inc()
		return
	}
	metrics.Settlements.WithLabelValues(source, chainLabel, "settled").Inc()
}

// updateGasPriceMetric refreshes the per-chain gas price gauge.
func (r *Relayer) updateGasPriceMetric(ctx context.Context, client *chainclient.Client) {
	defer r.wg.Done()

	ticker := time.NewTicker(gasPriceUpdateInterval)
	defer ticker.Stop()

	chainLabel := strconv.FormatInt(client.ChainID, 10)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			gasPrice, err := client.SuggestGasPrice(ctx)
			if err != nil {
				r.logger.DebugWithChain(client.ChainID, "Gas price refresh failed: %v", err)
				continue
			}
			price, _ := new(big.Float).SetInt(gasPrice).Float64()
			metrics.GasPrice.WithLabelValues(chainLabel).Set(price)
		}
	}
}
