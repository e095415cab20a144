// Package multiagent implements the subagent manager of spec.md §4.N: a
// bounded-concurrency spawner of short-lived agent.Loop children, each
// watched by its own timeout.
package multiagent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nexuscore/agentcore/internal/agent"
	"github.com/nexuscore/agentcore/internal/failover"
	"github.com/nexuscore/agentcore/internal/observability"
	"github.com/nexuscore/agentcore/internal/privacy"
	"github.com/nexuscore/agentcore/internal/tools"
	"github.com/nexuscore/agentcore/internal/tools/memory"
	"github.com/nexuscore/agentcore/pkg/models"
)

// RunStatus is a subagent run's lifecycle state.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusError     RunStatus = "error"
	StatusTimeout   RunStatus = "timeout"
	StatusArchived  RunStatus = "archived"
)

func (s RunStatus) terminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusTimeout, StatusArchived:
		return true
	}
	return false
}

// RunRecord tracks one child run from spawn to archival.
type RunRecord struct {
	RunID     string
	Task      string
	Label     string
	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time

	Status RunStatus
	Result string
	Err    string

	cancel   context.CancelFunc
	watchdog *time.Timer
}

// IsComplete reports whether the run has reached a terminal status.
func (r *RunRecord) IsComplete() bool { return r.Status.terminal() }

// Duration returns the run's wall-clock duration, or 0 if it hasn't ended.
func (r *RunRecord) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

func (r *RunRecord) snapshot() *RunRecord {
	c := *r
	c.cancel = nil
	c.watchdog = nil
	return &c
}

// SpawnRequest describes one child run.
type SpawnRequest struct {
	// RunID identifies the run. Caller-supplied so a host can correlate it
	// with its own session/task bookkeeping.
	RunID   string
	Task    string
	Label   string
	Message string
	History []*models.Message
}

// ManagerConfig bounds the manager's behavior. Zero fields fall back to
// spec.md §4.N's defaults.
type ManagerConfig struct {
	// MaxConcurrent caps the number of children running at once. Default 5.
	MaxConcurrent int

	// WatchdogTimeout force-archives a child that runs past this long.
	// Default 5 minutes.
	WatchdogTimeout time.Duration

	// ArchiveAfter is how long a terminal record is kept before Cleanup
	// removes it. Default 1 hour.
	ArchiveAfter time.Duration

	// SweepInterval is how often the background sweep runs. Zero disables
	// the background sweeper; Cleanup can still be called directly.
	SweepInterval time.Duration

	// LoopConfig is the template every spawned child's agent.Loop uses.
	LoopConfig agent.LoopConfig
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 5
	}
	if c.WatchdogTimeout <= 0 {
		c.WatchdogTimeout = 5 * time.Minute
	}
	if c.ArchiveAfter <= 0 {
		c.ArchiveAfter = time.Hour
	}
	return c
}

var (
	// ErrAtCapacity is returned by Spawn when MaxConcurrent children are
	// already running.
	ErrAtCapacity = errors.New("multiagent: at concurrency capacity")
	// ErrRunNotFound is returned by Archive, MarkError, and Get for an
	// unknown or already-cleaned-up run ID.
	ErrRunNotFound = errors.New("multiagent: run not found")
	// ErrDuplicateRunID is returned by Spawn when RunID collides with an
	// existing record.
	ErrDuplicateRunID = errors.New("multiagent: duplicate run id")
)

// Manager spawns bounded-lifetime child agent.Loop runs. It shares one
// provider chain, tool registry, privacy gate, and memory recaller across
// every child it spawns; only the per-run session and task differ.
type Manager struct {
	chain    *failover.Chain
	registry *tools.Registry
	gate     *privacy.Gate
	recall   memory.Recaller
	store    agent.SessionStore
	tracer   *observability.Tracer
	monitor  *failover.Monitor

	cfg ManagerConfig
	sem chan struct{}

	mu      sync.Mutex
	runs    map[string]*RunRecord
	closed  bool
	sweeper *time.Ticker
	stopCh  chan struct{}
}

// NewManager builds a Manager. chain, registry, gate, recall, and store are
// the same collaborators passed to agent.New for every spawned child.
// monitor, if non-nil, is the health monitor Shutdown also stops.
func NewManager(chain *failover.Chain, registry *tools.Registry, gate *privacy.Gate, recall memory.Recaller, store agent.SessionStore, tracer *observability.Tracer, monitor *failover.Monitor, cfg ManagerConfig) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{
		chain:    chain,
		registry: registry,
		gate:     gate,
		recall:   recall,
		store:    store,
		tracer:   tracer,
		monitor:  monitor,
		cfg:      cfg,
		sem:      make(chan struct{}, cfg.MaxConcurrent),
		runs:     make(map[string]*RunRecord),
		stopCh:   make(chan struct{}),
	}
	if cfg.SweepInterval > 0 {
		m.sweeper = time.NewTicker(cfg.SweepInterval)
		go m.sweepLoop()
	}
	return m
}

// Spawn registers and starts one bounded-lifetime child run. It returns
// ErrAtCapacity immediately rather than queuing if MaxConcurrent children
// are already active, so a caller (typically a tool the main loop invokes)
// never blocks the run that requested the spawn.
func (m *Manager) Spawn(ctx context.Context, req SpawnRequest) (<-chan models.AgentEvent, error) {
	select {
	case m.sem <- struct{}{}:
	default:
		return nil, ErrAtCapacity
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		<-m.sem
		return nil, errors.New("multiagent: manager is shut down")
	}
	if _, exists := m.runs[req.RunID]; exists {
		m.mu.Unlock()
		<-m.sem
		return nil, ErrDuplicateRunID
	}
	now := time.Now()
	childCtx, cancel := context.WithCancel(context.Background())
	record := &RunRecord{
		RunID:     req.RunID,
		Task:      req.Task,
		Label:     req.Label,
		CreatedAt: now,
		StartedAt: now,
		Status:    StatusRunning,
		cancel:    cancel,
	}
	record.watchdog = time.AfterFunc(m.cfg.WatchdogTimeout, func() {
		m.timeout(req.RunID)
	})
	m.runs[req.RunID] = record
	m.mu.Unlock()

	child := agent.New(m.chain, m.registry, m.gate, m.recall, m.store, m.tracer, m.cfg.LoopConfig)
	childEvents := child.Run(childCtx, agent.RunInput{
		SessionID: req.RunID,
		Message:   req.Message,
		History:   req.History,
	})

	out := make(chan models.AgentEvent)
	go func() {
		defer close(out)
		var finalText string
		var failed bool
		for e := range childEvents {
			out <- e
			if e.Type == models.EventDone && e.Done != nil {
				finalText = e.Done.FinalText
				failed = e.Done.Error || e.Done.Aborted || e.Done.MaxIterationsReached
			}
		}
		m.finish(req.RunID, finalText, failed)
	}()

	return out, nil
}

// finish records a naturally-ended child's outcome, releasing its
// concurrency slot and watchdog. A run already archived (by a timeout or
// an explicit Archive/MarkError racing the same completion) is left alone.
func (m *Manager) finish(runID, result string, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.runs[runID]
	if !ok || record.IsComplete() {
		return
	}
	record.watchdog.Stop()
	record.EndedAt = time.Now()
	if failed {
		record.Status = StatusError
		record.Err = result
	} else {
		record.Status = StatusCompleted
		record.Result = result
	}
	<-m.sem
}

// timeout force-archives a child whose watchdog fired. Its cancel func is
// called so the stalled agent.Loop unwinds via its own cancellation path.
func (m *Manager) timeout(runID string) {
	m.mu.Lock()
	record, ok := m.runs[runID]
	if !ok || record.IsComplete() {
		m.mu.Unlock()
		return
	}
	record.Status = StatusTimeout
	record.Err = "timed out"
	record.EndedAt = time.Now()
	cancel := record.cancel
	m.mu.Unlock()

	cancel()
	select {
	case <-m.sem:
	default:
	}
}

// Archive explicitly ends an active run with a result payload, as spec.md
// §4.N names alongside the watchdog path.
func (m *Manager) Archive(runID, result string) error {
	return m.finalize(runID, StatusArchived, result, "")
}

// MarkError explicitly ends an active run with an error, independent of
// the watchdog.
func (m *Manager) MarkError(runID, errMsg string) error {
	return m.finalize(runID, StatusError, "", errMsg)
}

func (m *Manager) finalize(runID string, status RunStatus, result, errMsg string) error {
	m.mu.Lock()
	record, ok := m.runs[runID]
	if !ok {
		m.mu.Unlock()
		return ErrRunNotFound
	}
	if record.IsComplete() {
		m.mu.Unlock()
		return nil
	}
	record.Status = status
	record.Result = result
	record.Err = errMsg
	record.EndedAt = time.Now()
	record.watchdog.Stop()
	cancel := record.cancel
	m.mu.Unlock()

	cancel()
	select {
	case <-m.sem:
	default:
	}
	return nil
}

// Get returns a point-in-time copy of one run's record.
func (m *Manager) Get(runID string) (*RunRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok {
		return nil, false
	}
	return r.snapshot(), true
}

// ListActive returns every run not yet in a terminal status.
func (m *Manager) ListActive() []*RunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*RunRecord
	for _, r := range m.runs {
		if !r.IsComplete() {
			out = append(out, r.snapshot())
		}
	}
	return out
}

// Cleanup removes terminal records older than ArchiveAfter. It is called
// automatically by the background sweeper when SweepInterval is set, and
// can also be called directly (e.g. from a test, or a host-driven admin
// endpoint).
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-m.cfg.ArchiveAfter)
	for id, r := range m.runs {
		if r.IsComplete() && !r.EndedAt.IsZero() && r.EndedAt.Before(cutoff) {
			delete(m.runs, id)
		}
	}
}

func (m *Manager) sweepLoop() {
	for {
		select {
		case <-m.stopCh:
			return
		case <-m.sweeper.C:
			m.Cleanup()
		}
	}
}

// Shutdown archives every active child, stops the background sweeper and
// health monitor, and marks the manager closed so further Spawn calls
// fail. It composes the three background subsystems (subagent watchdogs,
// health polling, sweeping) behind one lifecycle call.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	var active []string
	for id, r := range m.runs {
		if !r.IsComplete() {
			active = append(active, id)
		}
	}
	m.mu.Unlock()

	for _, id := range active {
		_ = m.Archive(id, "")
	}

	close(m.stopCh)
	if m.sweeper != nil {
		m.sweeper.Stop()
	}
	if m.monitor != nil {
		m.monitor.Stop()
	}
	return nil
}
