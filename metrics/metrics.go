// Package metrics exposes the sale engine's Prometheus collectors: message
// counts and latencies per action, rejections per error name, and gauges
// mirroring the sale aggregates.
package metrics

import (
	"net/http"
	"time"

	"github.com/Thorstarter/thorstarter-terra/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config configures the collectors.
type Config struct {
	// Namespace prefixes every metric name, e.g. "sale" gives
	// "sale_messages_total".
	Namespace string
	// EnableRuntime adds the Go runtime and process collectors.
	EnableRuntime bool
	// Path is the HTTP path metrics are served on.
	Path string
}

// DefaultConfig returns the daemon defaults.
func DefaultConfig() Config {
	return Config{
		Namespace:     "sale",
		EnableRuntime: true,
		Path:          "/metrics",
	}
}

// Metrics owns a private registry so tests and several engines in one
// process do not collide. A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg  *prometheus.Registry
	path string

	Messages     *prometheus.CounterVec
	Rejected     *prometheus.CounterVec
	Latency      *prometheus.HistogramVec
	Queries      *prometheus.CounterVec
	RPCRequests  *prometheus.CounterVec
	WSClients    prometheus.Gauge
	TotalUsers   prometheus.Gauge
	TotalAmount  prometheus.Gauge
	TotalClaimed prometheus.Gauge
}

// New creates and registers the collectors.
func New(cfg Config) *Metrics {
	ns := cfg.Namespace
	m := &Metrics{
		reg:  prometheus.NewRegistry(),
		path: cfg.Path,
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "messages_total",
			Help: "Executed messages by action and outcome.",
		}, []string{"action", "outcome"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "rejected_total",
			Help: "Rejected messages by error name.",
		}, []string{"error"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Name: "execute_seconds",
			Help:    "Time to execute and commit a message.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"action"}),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "queries_total",
			Help: "Answered queries by kind.",
		}, []string{"query"}),
		RPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "rpc", Name: "requests_total",
			Help: "JSON-RPC requests by method and result code.",
		}, []string{"method", "code"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "rpc", Name: "ws_clients",
			Help: "Connected event stream clients.",
		}),
		TotalUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "total_users",
			Help: "Wallets with a ledger entry.",
		}),
		TotalAmount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "total_amount",
			Help: "Contributed native currency in micro-units.",
		}),
		TotalClaimed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "total_claimed",
			Help: "Released sale tokens.",
		}),
	}
	m.reg.MustRegister(m.Messages, m.Rejected, m.Latency, m.Queries, m.RPCRequests,
		m.WSClients, m.TotalUsers, m.TotalAmount, m.TotalClaimed)
	if cfg.EnableRuntime {
		m.reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: ns}),
		)
	}
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Path returns the configured HTTP path.
func (m *Metrics) Path() string { return m.path }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveExecute records one executed message. errName is empty on
// success.
func (m *Metrics) ObserveExecute(action, errName string, took time.Duration) {
	if m == nil {
		return
	}
	if action == "" {
		action = "unknown"
	}
	outcome := "ok"
	if errName != "" {
		outcome = "rejected"
		m.Rejected.WithLabelValues(errName).Inc()
	}
	m.Messages.WithLabelValues(action, outcome).Inc()
	m.Latency.WithLabelValues(action).Observe(took.Seconds())
}

// ObserveQuery records one answered query.
func (m *Metrics) ObserveQuery(kind string) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(kind).Inc()
}

// ObserveRPC records one JSON-RPC request.
func (m *Metrics) ObserveRPC(method string, code int) {
	if m == nil {
		return
	}
	m.RPCRequests.WithLabelValues(method, codeLabel(code)).Inc()
}

func codeLabel(code int) string {
	switch code {
	case 0:
		return "ok"
	case -32700:
		return "parse_error"
	case -32600:
		return "invalid_request"
	case -32601:
		return "method_not_found"
	case -32602:
		return "invalid_params"
	case -32000:
		return "domain_error"
	default:
		return "internal_error"
	}
}

// SetAggregates mirrors the sale singleton into the gauges.
func (m *Metrics) SetAggregates(users uint64, total, claimed types.Amount) {
	if m == nil {
		return
	}
	m.TotalUsers.Set(float64(users))
	m.TotalAmount.Set(total.Uint256().Float64())
	m.TotalClaimed.Set(claimed.Uint256().Float64())
}

// WSConnected adjusts the event stream client gauge by delta.
func (m *Metrics) WSConnected(delta int) {
	if m == nil {
		return
	}
	m.WSClients.Add(float64(delta))
}
