// Package metrics exposes Prometheus metrics for the relayer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IntentsReceived counts intents delivered by the aggregator stream.
	IntentsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_intents_received_total",
		Help: "Number of intents received from the aggregator",
	}, []string{"protocol"})

	// IntentsEligible counts intents that passed eligibility filtering.
	IntentsEligible = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_intents_eligible_total",
		Help: "Number of intents accepted by the eligibility filter",
	}, []string{"protocol"})

	// IntentsFilled counts fill attempts by outcome.
	IntentsFilled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_intents_filled_total",
		Help: "Number of fill attempts by outcome",
	}, []string{"protocol", "chain", "status"})

	// IntentsAborted counts intents dropped because the relayer fee could not
	// cover gas.
	IntentsAborted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_intents_aborted_total",
		Help: "Number of intents aborted for insufficient relayer fee",
	}, []string{"protocol", "chain"})

	// Settlements counts settlement attempts by outcome.
	Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_settlements_total",
		Help: "Number of settlement attempts by outcome",
	}, []string{"protocol", "chain", "status"})

	// WebsocketReconnects counts reconnect attempts of the intent stream.
	WebsocketReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_websocket_reconnects_total",
		Help: "Number of intent stream reconnect attempts",
	})

	// GasPrice tracks the last suggested gas price per chain, in wei.
	GasPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "relayer_gas_price_wei",
		Help: "Last suggested gas price per chain in wei",
	}, []string{"chain"})

	// ProcessingTime observes end-to-end intent processing latency.
	ProcessingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relayer_intent_processing_seconds",
		Help:    "End-to-end intent processing time in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"protocol"})

	// CircuitBreakerState tracks breaker state per chain, 1 when open.
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "relayer_circuit_breaker_open",
		Help: "Circuit breaker state per chain, 1 when open",
	}, []string{"chain"})
)
