package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Sweeper runs Orchestrator.Sweep on an interval until stopped.
type Sweeper struct {
	orch     *Orchestrator
	interval time.Duration

	running  atomic.Bool
	mu       sync.Mutex
	lastRun  time.Time
	lastRes  Result
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewSweeper creates a sweeper; call Start to begin.
func NewSweeper(orch *Orchestrator, interval time.Duration) *Sweeper {
	return &Sweeper{
		orch:     orch,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins periodic sweeping. A non-positive interval disables it.
func (s *Sweeper) Start() {
	if s.interval <= 0 {
		log.Info("pending-delete sweep disabled")
		return
	}
	go s.loop()
}

// Stop ends the loop. Safe to call more than once.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *Sweeper) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce()
		case <-s.stopChan:
			return
		}
	}
}

// RunOnce sweeps now unless a sweep is already in progress, in which case
// it returns false.
func (s *Sweeper) RunOnce() bool {
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	res, err := s.orch.Sweep(ctx)
	if err != nil {
		log.Error("sweep failed: %v", err)
		return true
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastRes = res
	s.mu.Unlock()
	return true
}

// IsSweeping reports whether a sweep is in progress.
func (s *Sweeper) IsSweeping() bool {
	return s.running.Load()
}

// LastRun returns when the last successful sweep finished and its result.
func (s *Sweeper) LastRun() (time.Time, Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastRes
}
