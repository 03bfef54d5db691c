package memory

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"social-ingest/internal/logging"
	"social-ingest/internal/metrics"
)

// Config tunes a Monitor.
type Config struct {
	// LimitBytes is the budget usage is measured against. Zero uses
	// GOMEMLIMIT; with neither the monitor never blocks.
	LimitBytes int64
	// HighWaterMark is the usage ratio below which a paused gate reopens.
	HighWaterMark float64
	// CriticalWaterMark is the usage ratio at which the gate closes.
	CriticalWaterMark float64
	CheckInterval     time.Duration
}

// DefaultConfig returns the production watermarks.
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// Monitor samples heap usage and gates memory-hungry work.
type Monitor struct {
	cfg    Config
	limit  int64
	sample func() uint64

	mu      sync.RWMutex
	current uint64
	paused  bool
	resume  chan struct{}

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMonitor creates a monitor; call Start to begin sampling.
func NewMonitor(cfg Config) *Monitor {
	limit := cfg.LimitBytes
	if limit == 0 {
		if l := debug.SetMemoryLimit(-1); l > 0 && l < 1<<62 {
			limit = l
		}
	}
	if limit == 0 {
		logging.Warn("Memory monitor: no limit configured, decode gate disabled")
	} else {
		logging.Info("Memory monitor limit: %s", FormatBytes(limit))
	}
	return &Monitor{
		cfg:      cfg,
		limit:    limit,
		sample:   heapAlloc,
		resume:   make(chan struct{}),
		stopChan: make(chan struct{}),
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// Start begins periodic sampling. Without a limit it does nothing.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go m.loop()
}

// Stop ends sampling and releases every waiter. Safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.check()
		case <-m.stopChan:
			return
		}
	}
}

func (m *Monitor) check() {
	alloc := m.sample()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = alloc
	if m.limit <= 0 {
		return
	}
	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	switch {
	case usage >= m.cfg.CriticalWaterMark && !m.paused:
		logging.Warn("Memory critical (%.1f%% of limit), pausing decodes", usage*100)
		m.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		go runtime.GC()
	case usage < m.cfg.HighWaterMark && m.paused:
		logging.Info("Memory recovered (%.1f%% of limit), resuming decodes", usage*100)
		m.paused = false
		metrics.MemoryPaused.Set(0)
		close(m.resume)
		m.resume = make(chan struct{})
	}
}

// Wait blocks while the gate is closed. It returns ctx.Err() if ctx ends
// first; a stopped monitor never blocks.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.RLock()
	if !m.paused {
		m.mu.RUnlock()
		return nil
	}
	resume := m.resume
	m.mu.RUnlock()

	select {
	case <-resume:
		return nil
	case <-m.stopChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Paused reports whether the gate is closed.
func (m *Monitor) Paused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

// Usage returns the last sampled usage ratio, zero without a limit.
func (m *Monitor) Usage() float64 {
	if m.limit == 0 {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.current) / float64(m.limit)
}
