package failover

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ProviderHealth is the per-provider state the monitor maintains,
// spec.md §4.K.
type ProviderHealth struct {
	Available           bool
	LastCheck           time.Time
	LastLatencyMs       int64
	ConsecutiveFailures int
	Degraded            bool
}

// Status is the derived three-value health spec.md §4.K names for a
// capability and for the monitor as a whole.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	Chain          *Chain
	PollInterval   time.Duration
	DegradeThreshold int
	OnTransition   func(provider string, degraded bool)
}

// Monitor periodically probes a Chain's providers and derives health
// status, grounded on the teacher's sweepLoop ticker pattern
// (internal/multiagent/subagent_registry.go).
type Monitor struct {
	chain        *Chain
	interval     time.Duration
	threshold    int
	onTransition func(provider string, degraded bool)

	mu     sync.RWMutex
	health map[string]*ProviderHealth

	stopCh chan struct{}
	ticker *time.Ticker

	probeLatency *prometheus.HistogramVec
	degradedGauge *prometheus.GaugeVec
}

// NewMonitor builds a Monitor with defaults applied: 60s poll interval,
// a degrade threshold of 3 consecutive failures.
func NewMonitor(cfg MonitorConfig) *Monitor {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	threshold := cfg.DegradeThreshold
	if threshold <= 0 {
		threshold = 3
	}

	m := &Monitor{
		chain:        cfg.Chain,
		interval:     interval,
		threshold:    threshold,
		onTransition: cfg.OnTransition,
		health:       make(map[string]*ProviderHealth),
		stopCh:       make(chan struct{}),
		probeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "agentcore_provider_probe_latency_ms",
			Help: "Latency of provider availability probes in milliseconds.",
		}, []string{"provider"}),
		degradedGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "agentcore_provider_degraded",
			Help: "1 if a provider is currently marked degraded, else 0.",
		}, []string{"provider"}),
	}
	for _, p := range cfg.Chain.Providers() {
		m.health[p.Name()] = &ProviderHealth{}
	}
	return m
}

// Collectors exposes the monitor's prometheus collectors for registration
// by the host's metrics registry.
func (m *Monitor) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.probeLatency, m.degradedGauge}
}

// Start begins the polling goroutine. It is idempotent only in the
// sense that calling Stop then Start again is safe; calling Start
// twice without an intervening Stop leaks a goroutine.
func (m *Monitor) Start(ctx context.Context) {
	m.ticker = time.NewTicker(m.interval)
	go m.loop(ctx)
}

// Stop halts the polling goroutine.
func (m *Monitor) Stop() {
	close(m.stopCh)
	if m.ticker != nil {
		m.ticker.Stop()
	}
}

func (m *Monitor) loop(ctx context.Context) {
	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-m.ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	for _, p := range m.chain.Providers() {
		start := time.Now()
		available := p.IsAvailable(ctx)
		latency := time.Since(start)

		m.probeLatency.WithLabelValues(p.Name()).Observe(float64(latency.Milliseconds()))

		m.mu.Lock()
		h, ok := m.health[p.Name()]
		if !ok {
			h = &ProviderHealth{}
			m.health[p.Name()] = h
		}
		h.Available = available
		h.LastCheck = start
		h.LastLatencyMs = latency.Milliseconds()

		wasDegraded := h.Degraded
		if available {
			h.ConsecutiveFailures = 0
		} else {
			h.ConsecutiveFailures++
		}
		h.Degraded = h.ConsecutiveFailures >= m.threshold
		nowDegraded := h.Degraded
		m.mu.Unlock()

		gaugeVal := 0.0
		if nowDegraded {
			gaugeVal = 1.0
		}
		m.degradedGauge.WithLabelValues(p.Name()).Set(gaugeVal)

		if wasDegraded != nowDegraded && m.onTransition != nil {
			m.onTransition(p.Name(), nowDegraded)
		}
	}
}

// Snapshot returns a copy of the current per-provider health map.
func (m *Monitor) Snapshot() map[string]ProviderHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]ProviderHealth, len(m.health))
	for name, h := range m.health {
		out[name] = *h
	}
	return out
}

// CapabilityStatus derives a single status across all providers per
// spec.md §4.K: down if none available, degraded if any is degraded,
// else healthy.
func (m *Monitor) CapabilityStatus() Status {
	snap := m.Snapshot()
	if len(snap) == 0 {
		return StatusDown
	}

	anyAvailable := false
	anyDegraded := false
	for _, h := range snap {
		if h.Available {
			anyAvailable = true
		}
		if h.Degraded {
			anyDegraded = true
		}
	}

	switch {
	case !anyAvailable:
		return StatusDown
	case anyDegraded:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// OverallStatus aggregates per-capability statuses: down if any
// capability is down, degraded if any is degraded, else healthy. A
// single-chain deployment has exactly one capability, so this equals
// CapabilityStatus there; multi-chain hosts compose several Monitors
// and fold their CapabilityStatus values through this function.
func OverallStatus(capabilities ...Status) Status {
	anyDown := false
	anyDegraded := false
	for _, s := range capabilities {
		switch s {
		case StatusDown:
			anyDown = true
		case StatusDegraded:
			anyDegraded = true
		}
	}
	switch {
	case anyDown:
		return StatusDown
	case anyDegraded:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}
