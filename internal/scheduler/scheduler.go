// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

// Package scheduler runs recurring jobs, one listen cycle per collection
// on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Lullabot/mpx-sync/internal/logging"
)

// Job is a named unit of recurring work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// CronScheduler runs jobs on cron schedules. A job still running when
// its next tick fires is skipped, so a long poll cycle never stacks a
// second cycle for the same collection behind it.
type CronScheduler struct {
	cron    *cron.Cron
	entries map[string]cron.EntryID
	ctx     context.Context
}

// New creates an empty scheduler.
func New() *CronScheduler {
	return &CronScheduler{
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
	}
}

// AddJob schedules a job on a cron spec (the "@every 1m0s" form
// included).
func (s *CronScheduler) AddJob(job Job, spec string) error {
	entryID, err := s.cron.AddFunc(spec, s.wrap(job))
	if err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name(), err)
	}
	s.entries[job.Name()] = entryID

	logging.Info().Str("job", job.Name()).Str("spec", spec).Msg("Job scheduled")
	return nil
}

// AddInterval schedules a job every interval.
func (s *CronScheduler) AddInterval(job Job, interval time.Duration) error {
	return s.AddJob(job, "@every "+interval.String())
}

// Start begins running schedules. Jobs receive ctx.
func (s *CronScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx = ctx
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *CronScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *CronScheduler) wrap(job Job) func() {
	var running atomic.Bool
	return func() {
		if !running.CompareAndSwap(false, true) {
			logging.Debug().Str("job", job.Name()).Msg("Job skipped, previous run still active")
			return
		}
		defer running.Store(false)

		ctx := s.ctx
		if ctx == nil {
			ctx = context.Background()
		}

		start := time.Now()
		if err := job.Run(ctx); err != nil {
			logging.Error().
				Err(err).
				Str("job", job.Name()).
				Dur("duration", time.Since(start)).
				Msg("Job failed")
			return
		}
		logging.Debug().
			Str("job", job.Name()).
			Dur("duration", time.Since(start)).
			Msg("Job finished")
	}
}
