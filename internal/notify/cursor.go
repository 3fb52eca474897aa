// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

// Package notify implements the notification-listening half of the sync
// pipeline: the per-collection cursor store, batch deduplication, and the
// listener state machine that turns long-poll results into queued import
// work.
package notify

import "context"

// CursorStore persists the last-processed notification id per
// synchronized collection. Implementations must be durable across process
// restarts; only the listener writes to it, and only after a batch has
// been fully queued.
type CursorStore interface {
	// Get returns the stored cursor, or mpx.UnsetCursor (-1) when no
	// cursor has been stored for the collection.
	Get(ctx context.Context, collectionKey string) (int64, error)

	// Set stores the cursor for the collection.
	Set(ctx context.Context, collectionKey string, id int64) error

	// Reset removes the stored cursor, returning the collection to the
	// start of history.
	Reset(ctx context.Context, collectionKey string) error
}
