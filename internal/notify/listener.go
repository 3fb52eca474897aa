// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package notify

import (
	"context"
	"fmt"

	"github.com/Lullabot/mpx-sync/internal/config"
	"github.com/Lullabot/mpx-sync/internal/logging"
	"github.com/Lullabot/mpx-sync/internal/metrics"
	"github.com/Lullabot/mpx-sync/internal/mpx"
)

// Transport issues one long-poll request for notifications since a cursor.
// Implemented by *mpx.Client.
type Transport interface {
	PollNotifications(ctx context.Context, col config.CollectionConfig, since int64, syncCfg config.SyncConfig) ([]mpx.Notification, error)
}

// Queuer hands a deduplicated notification batch to the durable work
// queue. Implementations must either enqueue the whole batch or return an
// error; a partial enqueue with a nil error would lose notifications once
// the cursor advances.
type Queuer interface {
	EnqueueNotifications(ctx context.Context, collectionKey string, batch []mpx.Notification) (chunks int, err error)
}

// Listener runs one poll/dedupe/enqueue cycle per invocation. It is
// stateless between invocations except through the CursorStore, so a
// scheduler can call Listen repeatedly without setup.
//
// One listener per collection is assumed; concurrent Listen calls for the
// same collection would race on the cursor.
type Listener struct {
	transport Transport
	cursors   CursorStore
	queuer    Queuer
	syncCfg   config.SyncConfig
}

// NewListener wires a listener from its collaborators.
func NewListener(transport Transport, cursors CursorStore, queuer Queuer, syncCfg config.SyncConfig) *Listener {
	return &Listener{
		transport: transport,
		cursors:   cursors,
		queuer:    queuer,
		syncCfg:   syncCfg,
	}
}

// Listen runs one cycle for the collection.
//
// Outcomes:
//   - nil with no cursor change: empty long-poll (timeout, no data).
//   - nil with cursor advanced: a batch was deduplicated, fully enqueued,
//     and the cursor committed to the maximum notification id seen.
//   - error: transport or enqueue failure; the cursor is untouched so the
//     next invocation reprocesses from the same point (at-least-once).
//
// A stale cursor is recovered exactly once per invocation: the cursor is
// reset to the start of history and the poll retried. A second stale
// rejection, or any other failure on the retry, propagates.
func (l *Listener) Listen(ctx context.Context, col config.CollectionConfig) error {
	since, err := l.cursors.Get(ctx, col.Key)
	if err != nil {
		metrics.RecordListenCycle(col.Key, "error")
		return err
	}

	batch, err := l.transport.PollNotifications(ctx, col, since, l.syncCfg)
	if mpx.IsStaleCursor(err) {
		logging.Warn().
			Str("collection", col.Key).
			Int64("stale_id", since).
			Msg("Notification id expired, restarting from the beginning")
		metrics.CursorResets.WithLabelValues(col.Key).Inc()

		if resetErr := l.cursors.Reset(ctx, col.Key); resetErr != nil {
			metrics.RecordListenCycle(col.Key, "error")
			return resetErr
		}

		since = mpx.UnsetCursor
		batch, err = l.transport.PollNotifications(ctx, col, since, l.syncCfg)
	}
	if err != nil {
		metrics.RecordListenCycle(col.Key, "error")
		return fmt.Errorf("listen %s: %w", col.Key, err)
	}

	if len(batch) == 0 {
		logging.Debug().Str("collection", col.Key).Msg("Long-poll returned no notifications")
		metrics.RecordListenCycle(col.Key, "empty")
		return nil
	}

	metrics.NotificationsReceived.WithLabelValues(col.Key).Add(float64(len(batch)))

	// Batches arrive in increasing id order, but the commit point must be
	// the maximum actually observed, not the last array element.
	maxID := since
	for _, n := range batch {
		if n.ID > maxID {
			maxID = n.ID
		}
	}

	if since == mpx.UnsetCursor {
		// First contact: the server answers with the current head of the
		// notification sequence and no entries. Store it and start
		// long-polling from there next cycle.
		if err := l.cursors.Set(ctx, col.Key, maxID); err != nil {
			metrics.RecordListenCycle(col.Key, "error")
			return err
		}
		metrics.RecordCursor(col.Key, maxID)
		logging.Info().
			Str("collection", col.Key).
			Int64("cursor", maxID).
			Msg("Synchronized to the current notification sequence")
		metrics.RecordListenCycle(col.Key, "processed")
		return nil
	}

	deduped := Dedupe(batch)
	dropped := len(batch) - len(deduped)
	if dropped > 0 {
		metrics.NotificationsDeduplicated.WithLabelValues(col.Key).Add(float64(dropped))
	}

	chunks, err := l.queuer.EnqueueNotifications(ctx, col.Key, deduped)
	if err != nil {
		// The cursor stays where it was: an unqueued notification must
		// never be skipped.
		metrics.RecordListenCycle(col.Key, "error")
		return fmt.Errorf("enqueue %s: %w", col.Key, err)
	}

	if err := l.cursors.Set(ctx, col.Key, maxID); err != nil {
		metrics.RecordListenCycle(col.Key, "error")
		return err
	}
	metrics.RecordCursor(col.Key, maxID)

	logging.Info().
		Str("collection", col.Key).
		Int("notifications", len(batch)).
		Int("deduplicated", dropped).
		Int("chunks", chunks).
		Int64("cursor", maxID).
		Msg("Queued notification batch")
	metrics.RecordListenCycle(col.Key, "processed")

	return nil
}
