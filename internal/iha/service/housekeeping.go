// Package service holds the background workers of the engine.
package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/iha/internal/iha/store"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultHousekeepingInterval applies when no interval is configured.
const DefaultHousekeepingInterval = 15 * time.Minute

// HousekeepingService periodically deletes expired and used authorization
// codes so the code table does not grow without bound.
type HousekeepingService struct {
	Codes    store.AuthorizationCodeStore
	Logger   *slog.Logger
	Interval time.Duration

	deleted prometheus.Counter

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	stopCh    chan struct{}
	doneCh   chan struct{}
}

// NewHousekeepingService returns a stopped service. A non-positive interval
// means DefaultHousekeepingInterval. reg may be nil.
func NewHousekeepingService(codes store.AuthorizationCodeStore, logger *slog.Logger, interval time.Duration, reg prometheus.Registerer) *HousekeepingService {
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	deleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "iha_housekeeping_codes_deleted_total",
		Help: "Authorization codes removed by housekeeping.",
	})
	if reg != nil {
		reg.MustRegister(deleted)
	}

	return &HousekeepingService{
		Codes:    codes,
		Logger:   logger,
		Interval: interval,
		deleted:  deleted,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs a cleanup immediately and then once per Interval until Stop.
// Calls after the first are no-ops.
func (s *HousekeepingService) Start() {
	s.startOnce.Do(func() {
		s.started.Store(true)
		go s.run()
		s.Logger.Info("housekeeping service started", "interval", s.Interval)
	})
}

// Stop waits for an in-progress cleanup to finish. Safe to call twice, and
// without a prior Start.
func (s *HousekeepingService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if !s.started.Load() {
			return
		}
		<-s.doneCh
		s.Logger.Info("housekeeping service stopped")
	})
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup performs one pass and returns the number of codes removed.
func (s *HousekeepingService) Cleanup(ctx context.Context) int64 {
	n, err := s.Codes.DeleteExpired(ctx)
	if err != nil {
		s.Logger.Error("failed to delete expired authorization codes", "error", err)
		return 0
	}

	s.deleted.Add(float64(n))
	s.Logger.Debug("housekeeping cleanup completed", "codes_deleted", n)
	return n
}
