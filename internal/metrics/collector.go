package metrics

import (
	"sync"
	"time"

	"social-ingest/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current ledger statistics
type Stats struct {
	LiveObjects    int
	PendingDeletes int
	DeletedObjects int
	LiveBytes      int64
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection. Safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	LedgerObjects.WithLabelValues("live").Set(float64(stats.LiveObjects))
	LedgerObjects.WithLabelValues("pending_delete").Set(float64(stats.PendingDeletes))
	LedgerObjects.WithLabelValues("deleted").Set(float64(stats.DeletedObjects))
	LedgerBytes.Set(float64(stats.LiveBytes))

	logging.Debug("Metrics collected: live=%d, pending=%d, deleted=%d, bytes=%d",
		stats.LiveObjects, stats.PendingDeletes, stats.DeletedObjects, stats.LiveBytes)
}
