// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package notify

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"

	"github.com/Lullabot/mpx-sync/internal/mpx"
)

func newTestCursorStore(t *testing.T) *BadgerCursorStore {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("failed to open badger: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return NewBadgerCursorStore(db)
}

func TestBadgerCursorStore_GetUnset(t *testing.T) {
	store := newTestCursorStore(t)

	got, err := store.Get(context.Background(), "videos")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != mpx.UnsetCursor {
		t.Errorf("expected unset cursor %d, got %d", mpx.UnsetCursor, got)
	}
}

func TestBadgerCursorStore_SetGet(t *testing.T) {
	store := newTestCursorStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "videos", 12345); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := store.Set(ctx, "players", 99); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	got, err := store.Get(ctx, "videos")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != 12345 {
		t.Errorf("expected cursor 12345, got %d", got)
	}

	got, err = store.Get(ctx, "players")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != 99 {
		t.Errorf("collections share a cursor: expected 99, got %d", got)
	}
}

func TestBadgerCursorStore_Reset(t *testing.T) {
	store := newTestCursorStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "videos", 42); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := store.Reset(ctx, "videos"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	got, err := store.Get(ctx, "videos")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != mpx.UnsetCursor {
		t.Errorf("expected unset cursor after reset, got %d", got)
	}
}

func TestBadgerCursorStore_ResetMissing(t *testing.T) {
	store := newTestCursorStore(t)

	if err := store.Reset(context.Background(), "never-set"); err != nil {
		t.Errorf("reset of a missing cursor should succeed, got %v", err)
	}
}
