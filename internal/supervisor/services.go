// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package supervisor

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/Lullabot/mpx-sync/internal/logging"
)

// Runner is a blocking run loop. Implemented by queue.ChunkHandler.
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler is the start/stop surface of scheduler.CronScheduler.
type Scheduler interface {
	Start(ctx context.Context)
	Stop()
}

// SchedulerService supervises the cron scheduler as a suture service.
type SchedulerService struct {
	scheduler Scheduler
}

// NewSchedulerService wraps a scheduler for supervision.
func NewSchedulerService(scheduler Scheduler) *SchedulerService {
	return &SchedulerService{scheduler: scheduler}
}

// Serve runs the scheduler until ctx is canceled.
func (s *SchedulerService) Serve(ctx context.Context) error {
	s.scheduler.Start(ctx)
	<-ctx.Done()
	s.scheduler.Stop()
	return ctx.Err()
}

func (s *SchedulerService) String() string { return "scheduler" }

// WorkerService supervises one chunk consumer run loop. If the loop
// exits with an error suture restarts it, resubscribing to the durable
// consumer.
type WorkerService struct {
	name   string
	runner Runner
}

// NewWorkerService wraps a consumer run loop for supervision.
func NewWorkerService(name string, runner Runner) *WorkerService {
	return &WorkerService{name: name, runner: runner}
}

// Serve runs the consumer until ctx is canceled or the loop fails.
func (s *WorkerService) Serve(ctx context.Context) error {
	logging.Info().Str("worker", s.name).Msg("Import worker starting")
	err := s.runner.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Str("worker", s.name).Msg("Import worker stopped")
	}
	return err
}

func (s *WorkerService) String() string { return "worker-" + s.name }

// BadgerGCService periodically reclaims BadgerDB value-log space for the
// cursor and object cache store.
type BadgerGCService struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
}

// NewBadgerGCService creates the GC loop. Zero interval defaults to ten
// minutes, zero ratio to 0.5.
func NewBadgerGCService(db *badger.DB, interval time.Duration, ratio float64) *BadgerGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if ratio <= 0 {
		ratio = 0.5
	}
	return &BadgerGCService{db: db, interval: interval, ratio: ratio}
}

// Serve runs GC on the interval until ctx is canceled.
func (s *BadgerGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runGC()
		}
	}
}

func (s *BadgerGCService) runGC() {
	// Repeat until badger reports nothing left to rewrite.
	for {
		err := s.db.RunValueLogGC(s.ratio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return
		}
		if err != nil {
			logging.Warn().Err(err).Msg("Badger value log GC failed")
			return
		}
	}
}

func (s *BadgerGCService) String() string { return "badger-gc" }
