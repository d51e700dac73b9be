// Package vmmetrics exposes interpreter and call-frame counters via
// Prometheus. It is the concrete realization of the observational surface
// C10 (Tracer hook) implies but does not itself mandate a metrics backend
// for: step counts, gas charged, and call/create traffic by kind.
//
// Registration happens once, eagerly, in NewMetrics (a second NewMetrics
// on the same registerer panics on the duplicate). A nil or zero-value
// Metrics is safe to use (all methods no-op) so callers that never opt in
// pay nothing, matching
// C10's "when no tracer is installed, the engine performs no serialization
// work" contract extended to metrics.
package vmmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors the interpreter and call-frame
// manager update during execution. The zero value is usable: all counters
// are nil and every method guards against that.
type Metrics struct {
	OpcodesTotal    *prometheus.CounterVec
	GasChargedTotal prometheus.Counter
	CallsTotal      *prometheus.CounterVec
	CallDepth       prometheus.Histogram
	CallGasUsed     prometheus.Histogram
	AnalysisCache   *prometheus.CounterVec
}

// NewMetrics constructs and registers a fresh Metrics set on reg. Passing a
// prometheus.NewRegistry() per-engine-instance (rather than the global
// DefaultRegisterer) keeps multiple engines in a test binary from
// colliding on collector names.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		OpcodesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "opcodes_dispatched_total",
			Help:      "Number of opcodes dispatched by the interpreter, by mnemonic.",
		}, []string{"opcode"}),
		GasChargedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gas_charged_total",
			Help:      "Cumulative gas charged across all executed frames.",
		}),
		CallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Call-frame invocations by kind (call, callcode, delegatecall, staticcall, create, create2).",
		}, []string{"kind", "outcome"}),
		CallDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_depth",
			Help:      "Observed call-frame depth at frame creation.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024},
		}),
		CallGasUsed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_gas_used",
			Help:      "Gas used per top-level execute() call.",
			Buckets:   prometheus.ExponentialBuckets(100, 4, 12),
		}),
		AnalysisCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_cache_total",
			Help:      "Bytecode analyzer cache hits and misses.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.OpcodesTotal, m.GasChargedTotal, m.CallsTotal, m.CallDepth, m.CallGasUsed, m.AnalysisCache)
	}
	return m
}

// IncOpcode records one dispatch of the given opcode mnemonic.
func (m *Metrics) IncOpcode(mnemonic string) {
	if m == nil || m.OpcodesTotal == nil {
		return
	}
	m.OpcodesTotal.WithLabelValues(mnemonic).Inc()
}

// AddGas records amount gas charged.
func (m *Metrics) AddGas(amount uint64) {
	if m == nil || m.GasChargedTotal == nil {
		return
	}
	m.GasChargedTotal.Add(float64(amount))
}

// ObserveCall records the outcome of a call-frame invocation.
func (m *Metrics) ObserveCall(kind, outcome string, depth int) {
	if m == nil {
		return
	}
	if m.CallsTotal != nil {
		m.CallsTotal.WithLabelValues(kind, outcome).Inc()
	}
	if m.CallDepth != nil {
		m.CallDepth.Observe(float64(depth))
	}
}

// ObserveGasUsed records the total gas used by a top-level execute() call.
func (m *Metrics) ObserveGasUsed(gasUsed uint64) {
	if m == nil || m.CallGasUsed == nil {
		return
	}
	m.CallGasUsed.Observe(float64(gasUsed))
}

// ObserveAnalysisCache records a cache hit ("hit") or miss ("miss").
func (m *Metrics) ObserveAnalysisCache(result string) {
	if m == nil || m.AnalysisCache == nil {
		return
	}
	m.AnalysisCache.WithLabelValues(result).Inc()
}
