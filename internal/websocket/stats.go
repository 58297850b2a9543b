package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// StatsReporter periodically logs registry membership
type StatsReporter struct {
	registry *Registry
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	done     chan struct{}
}

// NewStatsReporter creates a reporter; a non-positive interval defaults to one minute
func NewStatsReporter(registry *Registry, interval time.Duration, logger *zap.Logger) *StatsReporter {
	if interval <= 0 {
		interval = time.Minute
	}
	return &StatsReporter{
		registry: registry,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the background reporting loop
func (s *StatsReporter) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go s.reportLoop()
	s.logger.Info("Stats reporter started", zap.Duration("interval", s.interval))
}

// Stop ends the loop and waits for it to exit. Safe to call more than once.
func (s *StatsReporter) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		if s.started.Load() {
			<-s.done
		}
		s.logger.Info("Stats reporter stopped")
	})
}

func (s *StatsReporter) reportLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.report()
		}
	}
}

func (s *StatsReporter) report() {
	s.logger.Info("Active connections", zap.Int("activeConnections", s.registry.Count()))
	s.logger.Debug("Registered connections", zap.Strings("connectionIDs", s.registry.IDs()))
}
