// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	block chan struct{}
	err   error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(_ context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		<-j.block
	}
	return j.err
}

func TestCronScheduler_RunsJobOnInterval(t *testing.T) {
	s := New()
	job := &countingJob{name: "tick"}

	if err := s.AddInterval(job, time.Second); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.After(3 * time.Second)
	for job.runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("job never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestCronScheduler_SkipsOverlappingRuns(t *testing.T) {
	s := New()
	job := &countingJob{name: "slow", block: make(chan struct{})}

	if err := s.AddInterval(job, time.Second); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	s.Start(context.Background())

	// Let at least two ticks fire while the first run blocks.
	deadline := time.After(5 * time.Second)
	for job.runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("job never started")
		case <-time.After(10 * time.Millisecond):
		}
	}
	time.Sleep(2100 * time.Millisecond)

	if got := job.runs.Load(); got != 1 {
		t.Errorf("expected overlapping ticks skipped, got %d runs", got)
	}

	close(job.block)
	s.Stop()
}

func TestCronScheduler_InvalidSpec(t *testing.T) {
	s := New()
	if err := s.AddJob(&countingJob{name: "bad"}, "not a spec"); err == nil {
		t.Error("expected an error for an invalid spec")
	}
}

func TestCronScheduler_JobErrorDoesNotStopScheduling(t *testing.T) {
	s := New()
	job := &countingJob{name: "failing", err: errors.New("poll failed")}

	if err := s.AddInterval(job, time.Second); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.After(5 * time.Second)
	for job.runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected repeated runs despite errors, got %d", job.runs.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}
