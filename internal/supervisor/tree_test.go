// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type blockingService struct {
	started atomic.Int32
}

func (s *blockingService) Serve(ctx context.Context) error {
	s.started.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func TestTree_RunsServices(t *testing.T) {
	tree := NewTree(DefaultTreeConfig())

	data := &blockingService{}
	pipeline := &blockingService{}
	api := &blockingService{}
	tree.AddDataService(data)
	tree.AddPipelineService(pipeline)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.After(5 * time.Second)
	for data.started.Load() == 0 || pipeline.started.Load() == 0 || api.started.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("services did not start")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected shutdown error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop")
	}
}

type fakeScheduler struct {
	started atomic.Int32
	stopped atomic.Int32
}

func (s *fakeScheduler) Start(_ context.Context) { s.started.Add(1) }
func (s *fakeScheduler) Stop()                   { s.stopped.Add(1) }

func TestSchedulerService_StartsAndStops(t *testing.T) {
	sched := &fakeScheduler{}
	svc := NewSchedulerService(sched)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.After(2 * time.Second)
	for sched.started.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("scheduler never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}
	if sched.stopped.Load() != 1 {
		t.Errorf("expected one stop, got %d", sched.stopped.Load())
	}
}

type failingRunner struct{ err error }

func (r *failingRunner) Run(_ context.Context) error { return r.err }

func TestWorkerService_PropagatesRunError(t *testing.T) {
	wantErr := errors.New("subscribe failed")
	svc := NewWorkerService("videos", &failingRunner{err: wantErr})

	if err := svc.Serve(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("expected the run error, got %v", err)
	}
	if svc.String() != "worker-videos" {
		t.Errorf("unexpected service name %s", svc.String())
	}
}
