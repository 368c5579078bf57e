// Package telemetry provides Prometheus metrics, tracing and correlation-id
// aware logging helpers for the poll loop.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the bot's collectors.
type Metrics struct {
	PollCycles      prometheus.Counter
	Messages        prometheus.Counter
	PollErrors      *prometheus.CounterVec
	PluginErrors    *prometheus.CounterVec
	CycleDuration   prometheus.Histogram
	WatermarkedRoom prometheus.Gauge
}

// NewMetrics registers the bot's collectors with reg. Passing a fresh
// registry keeps tests isolated; production uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PollCycles:      f.NewCounter(prometheus.CounterOpts{Name: "hipbot_poll_cycles_total", Help: "Number of completed poll cycles"}),
		Messages:        f.NewCounter(prometheus.CounterOpts{Name: "hipbot_messages_total", Help: "Number of new messages dispatched to reactive plugins"}),
		PollErrors:      f.NewCounterVec(prometheus.CounterOpts{Name: "hipbot_poll_errors_total", Help: "Chat service failures while polling a room"}, []string{"room"}),
		PluginErrors:    f.NewCounterVec(prometheus.CounterOpts{Name: "hipbot_plugin_errors_total", Help: "Plugin invocations that returned an error or panicked"}, []string{"kind"}),
		CycleDuration:   f.NewHistogram(prometheus.HistogramOpts{Name: "hipbot_cycle_duration_seconds", Help: "Poll cycle duration seconds", Buckets: prometheus.DefBuckets}),
		WatermarkedRoom: f.NewGauge(prometheus.GaugeOpts{Name: "hipbot_watermarked_rooms", Help: "Rooms with an established watermark"}),
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a context carrying id. An empty id gets a new uuid.
func WithCorrelation(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// Logger returns base with a corr attribute if ctx carries one.
func Logger(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	if id := GetCorrelation(ctx); id != "" {
		return base.With(slog.String("corr", id))
	}
	return base
}
