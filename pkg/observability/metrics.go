package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aliquot"

// maxPending bounds the per-mount stack of commands awaiting an "after"
// event. Failed commands never publish one and would otherwise pile up.
const maxPending = 64

type pending struct {
	command string
	start   time.Time
}

// Metrics records command counts, durations and liquid volumes.
type Metrics struct {
	registry *prometheus.Registry

	started   *prometheus.CounterVec
	completed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	volume    *prometheus.CounterVec
	tips      *prometheus.CounterVec

	mu      sync.Mutex
	pending map[domain.Mount][]pending
	now     func() time.Time
}

// MetricsOption configures Metrics.
type MetricsOption func(*Metrics)

// WithClock replaces time.Now for duration measurements.
func WithClock(now func() time.Time) MetricsOption {
	return func(m *Metrics) {
		m.now = now
	}
}

// WithProcessCollectors adds the Go runtime and process collectors.
func WithProcessCollectors() MetricsOption {
	return func(m *Metrics) {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
}

// NewMetrics creates the collectors and registers them on a fresh registry.
func NewMetrics(opts ...MetricsOption) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_started_total",
			Help:      "Commands issued, by command and mount.",
		}, []string{"command", "mount"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_completed_total",
			Help:      "Commands that finished successfully, by command and mount.",
		}, []string{"command", "mount"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Duration of successful commands.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"command"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "liquid_volume_microliters_total",
			Help:      "Liquid moved by the plunger, by mount and direction.",
		}, []string{"mount", "direction"}),
		tips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tips_picked_up_total",
			Help:      "Tips picked up, by mount.",
		}, []string{"mount"}),
		pending: make(map[domain.Mount][]pending),
		now:     time.Now,
	}
	m.registry.MustRegister(m.started, m.completed, m.duration, m.volume, m.tips)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry exposes the underlying registry, e.g. for extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns lifecycle hooks feeding these metrics.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnCommandBefore: func(_ context.Context, e *domain.CommandEvent) {
			m.before(e)
		},
		OnCommandAfter: func(_ context.Context, e *domain.CommandEvent) {
			m.after(e)
		},
	}
}

func (m *Metrics) before(e *domain.CommandEvent) {
	m.started.WithLabelValues(e.Command, mountLabel(e.Mount)).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	stack := append(m.pending[e.Mount], pending{command: e.Command, start: m.now()})
	if len(stack) > maxPending {
		stack = stack[len(stack)-maxPending:]
	}
	m.pending[e.Mount] = stack
}

func (m *Metrics) after(e *domain.CommandEvent) {
	mount := mountLabel(e.Mount)
	m.completed.WithLabelValues(e.Command, mount).Inc()

	switch e.Command {
	case "aspirate", "dispense":
		if v, ok := e.Args["volume"].(float64); ok && v > 0 {
			m.volume.WithLabelValues(mount, e.Command).Add(v)
		}
	case "pick_up_tip":
		m.tips.WithLabelValues(mount).Inc()
	}

	if start, ok := m.pop(e.Mount, e.Command); ok {
		m.duration.WithLabelValues(e.Command).Observe(m.now().Sub(start).Seconds())
	}
}

// pop removes the innermost pending entry for command. Entries above it
// belong to commands that failed without an "after" event and are dropped.
func (m *Metrics) pop(mount domain.Mount, command string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.pending[mount]
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].command == command {
			m.pending[mount] = stack[:i]
			return stack[i].start, true
		}
	}
	return time.Time{}, false
}

func mountLabel(mount domain.Mount) string {
	if mount == "" {
		return "none"
	}
	return string(mount)
}
