package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"

	"github.com/commercelens/foresight-go/internal/config"
	"github.com/commercelens/foresight-go/internal/models"
	"github.com/commercelens/foresight-go/internal/utils"
)

// ForecastScheduler runs forecasts through a bounded worker pool with a
// per-job deadline. The pool keeps CPU-bound forecast work from starving
// the rest of the process; the deadline turns a runaway computation into a
// typed ComputationTimeoutError instead of an unbounded stall.
type ForecastScheduler struct {
	cfg        config.ForecastConfig
	logger     *logrus.Logger
	forecaster *TrendForecaster

	slots      chan struct{}
	mu         sync.RWMutex
	activeJobs map[string]context.CancelFunc
}

// SchedulerStats is a point-in-time view of the pool and host resources.
type SchedulerStats struct {
	ActiveJobs     int     `json:"active_jobs"`
	MaxWorkers     int     `json:"max_workers"`
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryPercent  float64 `json:"memory_percent"`
	MemoryUsedMB   float64 `json:"memory_used_mb"`
}

// NewForecastScheduler creates a scheduler around the given forecaster.
func NewForecastScheduler(cfg config.ForecastConfig, logger *logrus.Logger) *ForecastScheduler {
	return &ForecastScheduler{
		cfg:        cfg,
		logger:     logger,
		forecaster: NewTrendForecaster(cfg, logger),
		slots:      make(chan struct{}, cfg.MaxWorkers),
		activeJobs: make(map[string]context.CancelFunc),
	}
}

// Submit runs one forecast under the pool and deadline. Waiting for a free
// worker slot counts against the same deadline as the computation itself,
// so a saturated pool cannot extend a job past its budget.
func (fs *ForecastScheduler) Submit(ctx context.Context, orders []models.OrderRecord, horizonDays int) (*models.ForecastSeries, error) {
	timeout := fs.cfg.TimeoutDuration()
	jobID := uuid.New().String()

	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	fs.register(jobID, cancel)
	defer fs.release(jobID)

	select {
	case fs.slots <- struct{}{}:
	case <-jobCtx.Done():
		fs.logger.WithFields(logrus.Fields{
			"job_id":  jobID,
			"timeout": timeout,
		}).Warn("Forecast job timed out waiting for a worker slot")
		return nil, fs.deadlineError(jobCtx, timeout)
	}

	type result struct {
		series *models.ForecastSeries
		err    error
	}
	resultChan := make(chan result, 1)
	started := time.Now()

	go func() {
		defer func() { <-fs.slots }()
		series, err := fs.forecaster.Forecast(jobCtx, orders, horizonDays)
		resultChan <- result{series: series, err: err}
	}()

	select {
	case res := <-resultChan:
		if errors.Is(res.err, context.DeadlineExceeded) {
			res.err = utils.NewComputationTimeoutError("trend forecast", timeout)
		}
		fs.logger.WithFields(logrus.Fields{
			"job_id":   jobID,
			"duration": time.Since(started),
			"success":  res.err == nil,
		}).Debug("Forecast job completed")
		return res.series, res.err

	case <-jobCtx.Done():
		fs.logger.WithFields(logrus.Fields{
			"job_id":   jobID,
			"duration": time.Since(started),
			"timeout":  timeout,
		}).Warn("Forecast job cancelled or timed out")
		return nil, fs.deadlineError(jobCtx, timeout)
	}
}

// deadlineError maps an expired deadline to the typed timeout error and
// passes caller cancellation through unchanged.
func (fs *ForecastScheduler) deadlineError(ctx context.Context, timeout time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return utils.NewComputationTimeoutError("trend forecast", timeout)
	}
	return ctx.Err()
}

func (fs *ForecastScheduler) register(jobID string, cancel context.CancelFunc) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.activeJobs[jobID] = cancel
}

func (fs *ForecastScheduler) release(jobID string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if cancel, exists := fs.activeJobs[jobID]; exists {
		cancel()
		delete(fs.activeJobs, jobID)
	}
}

// CancelJob cancels one in-flight job by ID.
func (fs *ForecastScheduler) CancelJob(jobID string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if cancel, exists := fs.activeJobs[jobID]; exists {
		cancel()
		delete(fs.activeJobs, jobID)
		fs.logger.WithField("job_id", jobID).Info("Forecast job cancelled")
	}
}

// CancelAll cancels every in-flight job, for shutdown.
func (fs *ForecastScheduler) CancelAll() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for jobID, cancel := range fs.activeJobs {
		cancel()
		fs.logger.WithField("job_id", jobID).Info("Forecast job cancelled during shutdown")
	}
	fs.activeJobs = make(map[string]context.CancelFunc)
}

// ActiveJobCount returns the number of registered in-flight jobs.
func (fs *ForecastScheduler) ActiveJobCount() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.activeJobs)
}

// Stats snapshots the pool alongside host CPU and memory usage. Resource
// probe failures are logged and leave the corresponding fields zero.
func (fs *ForecastScheduler) Stats() SchedulerStats {
	stats := SchedulerStats{
		ActiveJobs: fs.ActiveJobCount(),
		MaxWorkers: fs.cfg.MaxWorkers,
	}

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		stats.CPUPercent = percentages[0]
	} else if err != nil {
		fs.logger.WithError(err).Debug("Failed to read CPU usage")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemoryPercent = vm.UsedPercent
		stats.MemoryUsedMB = float64(vm.Used) / 1024 / 1024
	} else {
		fs.logger.WithError(err).Debug("Failed to read memory usage")
	}

	return stats
}
