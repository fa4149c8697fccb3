package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/freshstock/internal/config"
	"github.com/mamadbah2/freshstock/internal/domain/models"
	"github.com/mamadbah2/freshstock/internal/metrics"
	"github.com/mamadbah2/freshstock/internal/service/replenishment"
)

const jobTimeout = 5 * time.Minute

// Inventory is the part of the inventory service driven by the clock.
type Inventory interface {
	PlanReplenishment(ctx context.Context) (replenishment.Result, error)
	DailyExpiryCheck(ctx context.Context) (models.ExpiryCheck, error)
	Retrain(ctx context.Context, category string) error
}

// Reporter produces the daily KPI snapshot.
type Reporter interface {
	GenerateDailyReport(ctx context.Context) (models.DailyReport, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron      *cron.Cron
	inventory Inventory
	reporter  Reporter
	cfg       config.SchedulerConfig
	metrics   *metrics.Collector
	logger    *zap.Logger
}

// NewScheduler creates a new scheduler instance. Jobs never overlap with
// themselves: a run still in progress makes the next tick a no-op.
func NewScheduler(cfg config.SchedulerConfig, inventory Inventory, reporter Reporter, collector *metrics.Collector, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(cfg.Timezone); err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
		}
	}

	cl := cronLogger{logger.Sugar()}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	return &Scheduler{
		cron:      c,
		inventory: inventory,
		reporter:  reporter,
		cfg:       cfg,
		metrics:   collector,
		logger:    logger,
	}, nil
}

// Start registers every job with a non-empty schedule and starts the cron loop.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler")

	jobs := []struct {
		name string
		spec string
		run  func(ctx context.Context) error
	}{
		{"replenishment", s.cfg.PlannerSchedule, s.planReplenishment},
		{"expiry_check", s.cfg.ExpirySchedule, s.checkExpiry},
		{"retrain", s.cfg.RetrainSchedule, s.retrain},
		{"daily_report", s.cfg.ReportSchedule, s.dailyReport},
	}
	for _, j := range jobs {
		if j.spec == "" {
			s.logger.Info("job disabled", zap.String("job", j.name))
			continue
		}
		if _, err := s.cron.AddFunc(j.spec, s.job(j.name, j.run)); err != nil {
			return fmt.Errorf("schedule %s %q: %w", j.name, j.spec, err)
		}
		s.logger.Info("job scheduled", zap.String("job", j.name), zap.String("schedule", j.spec))
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info("stopping scheduler")
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

func (s *Scheduler) job(name string, run func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		started := time.Now()
		err := run(ctx)
		took := time.Since(started)
		s.metrics.JobFinished(name, took)

		if err != nil {
			s.logger.Error("scheduled job failed", zap.String("job", name), zap.Duration("took", took), zap.Error(err))
			return
		}
		s.logger.Info("scheduled job finished", zap.String("job", name), zap.Duration("took", took))
	}
}

func (s *Scheduler) planReplenishment(ctx context.Context) error {
	res, err := s.inventory.PlanReplenishment(ctx)
	s.logger.Debug("replenishment sweep", zap.Int("evaluated", res.Evaluated), zap.Int("created", len(res.Created)))
	return err
}

func (s *Scheduler) checkExpiry(ctx context.Context) error {
	_, err := s.inventory.DailyExpiryCheck(ctx)
	return err
}

func (s *Scheduler) retrain(ctx context.Context) error {
	return s.inventory.Retrain(ctx, "")
}

func (s *Scheduler) dailyReport(ctx context.Context) error {
	_, err := s.reporter.GenerateDailyReport(ctx)
	return err
}

// cronLogger routes cron's internal logging to zap.
type cronLogger struct {
	*zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.Errorw(msg, append(keysAndValues, "error", err)...)
}
