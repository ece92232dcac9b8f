package reaper

import (
	"context"
	"fmt"
	"sync"
	"time"

	retry "github.com/sethvargo/go-retry"
	"go.uber.org/multierr"

	"github.com/digimartlabs/digimart-backend/internal/checkout"
	"github.com/digimartlabs/digimart-backend/internal/orders"
	"github.com/digimartlabs/digimart-backend/pkg/config"
	"github.com/digimartlabs/digimart-backend/pkg/db/models"
	"github.com/digimartlabs/digimart-backend/pkg/enums"
	pkgerrors "github.com/digimartlabs/digimart-backend/pkg/errors"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
	"github.com/digimartlabs/digimart-backend/pkg/metrics"
)

const jobName = "expired-order-reaper"

// ServiceParams configure the reaper.
type ServiceParams struct {
	Logger      *logger.Logger
	Orders      orders.Repository
	Compensator *checkout.Compensator
	Lock        Lock
	Metrics     *metrics.JobMetrics
	Config      config.ReaperConfig
}

// Status is a snapshot of the reaper's control state and backlog.
type Status struct {
	Running       bool       `json:"running"`
	Interval      string     `json:"interval"`
	BatchSize     int        `json:"batchSize"`
	PendingOrders int64      `json:"pendingOrders"`
	ExpiredOrders int64      `json:"expiredOrders"`
	LastSweepAt   *time.Time `json:"lastSweepAt,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
}

// Service sweeps pending orders whose reservation window lapsed and runs the
// shared compensator for each one. Sweeps are serialized across instances by
// a Redis lock, and the loop can be paused and resumed at runtime.
type Service struct {
	logg        *logger.Logger
	orders      orders.Repository
	compensator *checkout.Compensator
	lock        Lock
	metrics     *metrics.JobMetrics
	cfg         config.ReaperConfig

	mu          sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
	lastSweepAt *time.Time
	lastError   string
}

// NewService builds the reaper.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Compensator == nil {
		return nil, fmt.Errorf("compensator required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	cfg := params.Config
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 250 * time.Millisecond
	}
	return &Service{
		logg:        params.Logger,
		orders:      params.Orders,
		compensator: params.Compensator,
		lock:        params.Lock,
		metrics:     params.Metrics,
		cfg:         cfg,
	}, nil
}

// Start launches the sweep loop. Calling Start while running is a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(loopCtx, s.done)
	s.logg.Info(ctx, "reaper started")
}

// Stop halts the sweep loop and waits for the in-flight sweep to finish.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logg.Info(ctx, "reaper stopped")
}

// IsRunning reports whether the loop is active.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Status returns the current control state plus the order backlog. Count
// failures degrade the snapshot to zeros rather than failing the read.
func (s *Service) Status(ctx context.Context) Status {
	pending, err := s.orders.CountByStatus(ctx, enums.OrderStatusPending)
	if err != nil {
		s.logg.Error(ctx, "counting pending orders", err)
	}
	expired, err := s.orders.CountExpired(ctx, time.Now())
	if err != nil {
		s.logg.Error(ctx, "counting expired orders", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:       s.cancel != nil,
		Interval:      s.cfg.Interval.String(),
		BatchSize:     s.cfg.BatchSize,
		PendingOrders: pending,
		ExpiredOrders: expired,
		LastSweepAt:   s.lastSweepAt,
		LastError:     s.lastError,
	}
}

// ManualProcessExpiredOrders runs one sweep immediately regardless of the
// loop state and returns how many orders were compensated.
func (s *Service) ManualProcessExpiredOrders(ctx context.Context) (int, error) {
	return s.sweep(ctx)
}

func (s *Service) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(context.Background(), "reaper loop context canceled")
			return
		case <-ticker.C:
			if _, err := s.lockedSweep(ctx); err != nil {
				s.logg.Error(ctx, "reaper sweep failed", err)
			}
		}
	}
}

func (s *Service) lockedSweep(ctx context.Context) (int, error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another reaper instance is sweeping; skipping this cycle")
		return 0, nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release reaper lock", relErr)
		}
	}()
	return s.sweep(ctx)
}

func (s *Service) sweep(ctx context.Context) (int, error) {
	start := time.Now()
	processed, err := s.processBatch(ctx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(jobName, duration)

	s.mu.Lock()
	now := time.Now()
	s.lastSweepAt = &now
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
	}
	s.mu.Unlock()

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"processed":   processed,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		s.metrics.IncFailure(jobName)
		s.logg.Error(logCtx, "sweep finished with errors", err)
		return processed, err
	}
	s.metrics.IncSuccess(jobName)
	s.logg.Info(logCtx, "sweep complete")
	return processed, nil
}

func (s *Service) processBatch(ctx context.Context) (int, error) {
	expired, err := s.orders.ListExpired(ctx, time.Now(), s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("query expired orders: %w", err)
	}

	processed := 0
	var errs []error
	for _, order := range expired {
		if err := s.expireOrder(ctx, order); err != nil {
			errs = append(errs, fmt.Errorf("order %s: %w", order.Reference, err))
			continue
		}
		processed++
	}
	return processed, multierr.Combine(errs...)
}

// expireOrder compensates one order, retrying transient failures with
// exponential backoff. The compensator's conditional claim makes a repeat
// attempt on an already-cancelled order a no-op.
func (s *Service) expireOrder(ctx context.Context, order models.Order) error {
	backoff := retry.WithMaxRetries(uint64(s.cfg.RetryAttempts), retry.NewExponential(s.cfg.RetryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.compensator.Cancel(ctx, &order, "reservation window expired", enums.EventOrderExpired)
		if err == nil {
			return nil
		}
		if pkgerrors.Retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
