package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/rs/zerolog"
)

// ClosingWorker is a background worker that sweeps overdue fees and closes
// the previous period of every active tenant
type ClosingWorker struct {
	feeService     *FeeService
	closingService *ClosingService
	tenantRepo     domain.TenantRepository
	guard          domain.TriggerGuard
	notifier       domain.Notifier
	logger         zerolog.Logger
	interval       time.Duration
	guardTTL       time.Duration
	stopCh         chan struct{}
	doneCh         chan struct{}
	mu             sync.Mutex
	running        bool
}

// ClosingWorkerConfig holds configuration for the closing worker
type ClosingWorkerConfig struct {
	Interval time.Duration // How often to run
	GuardTTL time.Duration // How long a close trigger stays claimed
}

// DefaultClosingWorkerConfig returns sensible defaults
func DefaultClosingWorkerConfig() ClosingWorkerConfig {
	return ClosingWorkerConfig{
		Interval: 1 * time.Hour,
		GuardTTL: 30 * time.Minute,
	}
}

// ClosingRunResult summarizes one pass over all tenants
type ClosingRunResult struct {
	Tenants int
	Swept   int
	Closed  int
	Skipped int
	Errors  int
}

// NewClosingWorker creates a new closing worker
func NewClosingWorker(
	feeService *FeeService,
	closingService *ClosingService,
	tenantRepo domain.TenantRepository,
	guard domain.TriggerGuard,
	notifier domain.Notifier,
	logger zerolog.Logger,
	config ClosingWorkerConfig,
) *ClosingWorker {
	if config.Interval <= 0 {
		config.Interval = 1 * time.Hour
	}
	if config.GuardTTL <= 0 {
		config.GuardTTL = config.Interval / 2
	}

	return &ClosingWorker{
		feeService:     feeService,
		closingService: closingService,
		tenantRepo:     tenantRepo,
		guard:          guard,
		notifier:       notifier,
		logger:         logger.With().Str("component", "closing_worker").Logger(),
		interval:       config.Interval,
		guardTTL:       config.GuardTTL,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// Start begins the background loop
func (w *ClosingWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info().
		Dur("interval", w.interval).
		Msg("Starting closing worker")

	go w.run(ctx)
}

// Stop gracefully stops the worker
func (w *ClosingWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	w.logger.Info().Msg("Stopping closing worker")
	close(w.stopCh)
	<-w.doneCh
	w.logger.Info().Msg("Closing worker stopped")
}

// IsRunning returns whether the worker is currently running
func (w *ClosingWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *ClosingWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	w.RunOnce(ctx, time.Now().UTC())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.setStopped()
			return
		case <-w.stopCh:
			w.setStopped()
			return
		case <-ticker.C:
			w.RunOnce(ctx, time.Now().UTC())
		}
	}
}

func (w *ClosingWorker) setStopped() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

// RunOnce sweeps overdue fees and closes the period before now for every active tenant
func (w *ClosingWorker) RunOnce(ctx context.Context, now time.Time) ClosingRunResult {
	startTime := time.Now()
	var result ClosingRunResult

	tenants, err := w.tenantRepo.GetAllActive(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to get tenants for closing run")
		result.Errors++
		return result
	}
	result.Tenants = len(tenants)

	period := domain.PeriodOf(now).Previous()

	for _, tenant := range tenants {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Context cancelled, stopping closing run")
			return result
		case <-w.stopCh:
			w.logger.Info().Msg("Stop signal received, stopping closing run")
			return result
		default:
		}

		swept, err := w.feeService.SweepOverdue(ctx, tenant.ID, now)
		if err != nil {
			w.logger.Error().Err(err).Int32("tenant_id", tenant.ID).Msg("Failed to sweep overdue fees")
			result.Errors++
		}
		result.Swept += swept

		closed, err := w.closeTenant(ctx, tenant, period)
		switch {
		case err != nil:
			result.Errors++
		case closed:
			result.Closed++
		default:
			result.Skipped++
		}
	}

	w.logger.Info().
		Str("period", period.String()).
		Int("tenants", result.Tenants).
		Int("swept", result.Swept).
		Int("closed", result.Closed).
		Int("skipped", result.Skipped).
		Int("errors", result.Errors).
		Dur("elapsed", time.Since(startTime)).
		Msg("Completed closing run")
	return result
}

// closeTenant reports true when this call produced a GENERATED closing
func (w *ClosingWorker) closeTenant(ctx context.Context, tenant *domain.Tenant, period domain.Period) (bool, error) {
	logger := w.logger.With().Int32("tenant_id", tenant.ID).Str("period", period.String()).Logger()

	if w.guard != nil {
		acquired, err := w.guard.Acquire(ctx, fmt.Sprintf("closing:%d:%s", tenant.ID, period), w.guardTTL)
		if err != nil {
			// Unique closing per period still holds without the guard.
			logger.Warn().Err(err).Msg("Trigger guard unavailable, closing anyway")
		} else if !acquired {
			logger.Debug().Msg("Duplicate closing trigger dropped")
			return false, nil
		}
	}

	record, err := w.closingService.Close(ctx, tenant.ID, period)
	if errors.Is(err, domain.ErrAlreadyClosed) {
		logger.Info().Msg("Period already closed")
		return w.retryDraft(ctx, tenant, period, logger)
	}
	if err != nil {
		logger.Error().Err(err).Msg("Failed to close period")
		return false, err
	}

	w.notify(ctx, tenant, record, logger)
	return true, nil
}

// retryDraft regenerates the report of a closing left in DRAFT by an earlier run
func (w *ClosingWorker) retryDraft(ctx context.Context, tenant *domain.Tenant, period domain.Period, logger zerolog.Logger) (bool, error) {
	existing, err := w.closingService.GetClosingByPeriod(ctx, tenant.ID, period)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load existing closing")
		return false, err
	}
	if existing.Status != domain.ClosingStatusDraft {
		return false, nil
	}

	record, err := w.closingService.GenerateReport(ctx, tenant.ID, existing.ID)
	if err != nil {
		logger.Error().Err(err).Int32("closing_id", existing.ID).Msg("Failed to regenerate closing report")
		return false, err
	}

	w.notify(ctx, tenant, record, logger)
	return true, nil
}

func (w *ClosingWorker) notify(ctx context.Context, tenant *domain.Tenant, record *domain.ClosingRecord, logger zerolog.Logger) {
	if w.notifier == nil || tenant.AdminEmail == "" {
		return
	}
	subject, body := ClosingNotice(tenant.Name, record)
	if err := w.notifier.Send(ctx, tenant.AdminEmail, subject, body); err != nil {
		logger.Warn().Err(err).Msg("Failed to notify administrator")
		return
	}
	logger.Info().Int32("closing_id", record.ID).Msg("Closing generated and administrator notified")
}
