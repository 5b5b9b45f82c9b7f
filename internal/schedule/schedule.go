// Package schedule runs the pipeline on a cron spec, skipping runs that
// would overlap a still-active one.
package schedule

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/pegavagas/harvester/internal/pipeline"
)

// Runner executes one pipeline pass.
type Runner interface {
	Run(ctx context.Context, cfg pipeline.Config) (*pipeline.Summary, error)
}

// Scheduler triggers pipeline runs on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	cfg     pipeline.Config
	logger  *zap.Logger
	running atomic.Bool
}

// New builds a scheduler for the given cron spec.
func New(spec string, runner Runner, cfg pipeline.Config, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		runner: runner,
		cfg:    cfg,
		logger: logger,
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("parse cron spec %q: %w", spec, err)
	}
	return s, nil
}

// Start begins scheduling and blocks until the context is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler started")
	s.cron.Start()
	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) tick() {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous run still active, skipping this trigger")
		return
	}
	defer s.running.Store(false)

	if _, err := s.runner.Run(context.Background(), s.cfg); err != nil {
		s.logger.Error("scheduled run failed", zap.Error(err))
	}
}
