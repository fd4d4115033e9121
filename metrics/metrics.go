// Package metrics wraps the Prometheus counters the server exports. All
// recording methods are nil-receiver safe so the protocol core works
// unchanged when metrics are disabled.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.Mutex
	registry *prometheus.Registry
)

// Init enables metrics collection. Call once, before NewServerMetrics.
func Init() {
	mu.Lock()
	defer mu.Unlock()
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
}

// IsEnabled reports whether Init has been called.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return registry != nil
}

// GetRegistry returns the registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	return registry
}

// Handler returns the HTTP handler serving the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// ServerMetrics counts what the FTP server does.
type ServerMetrics struct {
	sessions prometheus.Counter
	commands *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	aborted  prometheus.Counter
}

// NewServerMetrics registers the server counters.
//
// Returns nil if metrics are not enabled (Init not called).
func NewServerMetrics() *ServerMetrics {
	if !IsEnabled() {
		return nil
	}
	reg := GetRegistry()
	return &ServerMetrics{
		sessions: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "soloftp_sessions_total",
			Help: "Total number of control connections accepted",
		}),
		commands: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "soloftp_commands_total",
			Help: "Total number of dispatched commands by verb",
		}, []string{"verb"}),
		bytes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "soloftp_bytes_transferred_total",
			Help: "Total bytes moved over data connections by direction",
		}, []string{"direction"}), // "download", "upload"
		aborted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "soloftp_transfers_aborted_total",
			Help: "Total number of transfers that ended in an abort",
		}),
	}
}

func (m *ServerMetrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

func (m *ServerMetrics) Command(verb string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(verb).Inc()
}

func (m *ServerMetrics) BytesTransferred(direction string, n int) {
	if m == nil {
		return
	}
	m.bytes.WithLabelValues(direction).Add(float64(n))
}

func (m *ServerMetrics) TransferAborted() {
	if m == nil {
		return
	}
	m.aborted.Inc()
}
