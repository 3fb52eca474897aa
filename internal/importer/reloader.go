// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package importer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Lullabot/mpx-sync/internal/config"
	"github.com/Lullabot/mpx-sync/internal/logging"
	"github.com/Lullabot/mpx-sync/internal/metrics"
	"github.com/Lullabot/mpx-sync/internal/mpx"
	"github.com/Lullabot/mpx-sync/internal/queue"
)

// ObjectLoader fetches one object's current state from the platform.
// Implemented by *mpx.Client.
type ObjectLoader interface {
	LoadObject(ctx context.Context, uri string, bypassCache bool) (*mpx.Object, error)
}

// CollectionResolver maps a collection key to its configuration.
// Implemented by config.Config.
type CollectionResolver interface {
	Collection(key string) (config.CollectionConfig, bool)
}

// Reloader processes queued chunks: it reloads every object in the chunk
// concurrently with the platform cache bypassed, then imports the
// results one at a time.
//
// Item failures are isolated. A failing object never blocks the rest of
// its chunk, but any failure fails the chunk so the broker redelivers
// it; already-imported items are then re-imported, which idempotence
// makes harmless.
type Reloader struct {
	loader      ObjectLoader
	importer    *Importer
	collections CollectionResolver
	concurrency int
}

// NewReloader wires a reloader with the given fan-out bound.
func NewReloader(loader ObjectLoader, importer *Importer, collections CollectionResolver, concurrency int) *Reloader {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Reloader{
		loader:      loader,
		importer:    importer,
		collections: collections,
		concurrency: concurrency,
	}
}

// loadResult holds the outcome of one object fetch. Exactly one of obj,
// missing, or err is meaningful.
type loadResult struct {
	obj     *mpx.Object
	missing bool
	err     error
}

// ProcessChunk reloads and imports every task in the chunk. The returned
// error reports how many items failed; nil means every item was imported
// or marked missing.
func (r *Reloader) ProcessChunk(ctx context.Context, chunk *queue.Chunk) error {
	col, ok := r.collections.Collection(chunk.CollectionKey)
	if !ok {
		// A chunk for a collection removed from configuration cannot be
		// processed now or on redelivery.
		logging.Warn().
			Str("collection", chunk.CollectionKey).
			Int("tasks", len(chunk.Tasks)).
			Msg("Dropping chunk for unconfigured collection")
		metrics.ChunksProcessed.WithLabelValues(chunk.CollectionKey, "dropped").Inc()
		return nil
	}

	results := make([]loadResult, len(chunk.Tasks))

	// Always cache-bypass: the notification told us the object changed,
	// so an intermediary-cached copy is exactly what we must not import.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for idx, task := range chunk.Tasks {
		g.Go(func() error {
			start := time.Now()
			obj, err := r.loader.LoadObject(gctx, task.ObjectURI, true)
			elapsed := time.Since(start)
			switch {
			case mpx.IsNotFound(err):
				metrics.RecordObjectLoad(col.Key, "not_found", elapsed)
				results[idx] = loadResult{missing: true}
			case err != nil:
				metrics.RecordObjectLoad(col.Key, "error", elapsed)
				results[idx] = loadResult{err: err}
			default:
				metrics.RecordObjectLoad(col.Key, "ok", elapsed)
				results[idx] = loadResult{obj: obj}
			}
			// Load failures are kept per-item, not returned: returning
			// would cancel gctx and abort the chunk's other loads.
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	// Import sequentially after the loads settle. SQLite writes serialize
	// anyway, and one writer keeps record and cache write order simple to
	// reason about.
	failed := 0
	var firstErr error
	for idx, task := range chunk.Tasks {
		res := results[idx]

		var err error
		switch {
		case res.err != nil:
			err = res.err
		case res.missing:
			err = r.importer.MarkMissing(ctx, col, task.ObjectURI)
		default:
			err = r.importer.ImportObject(ctx, col, res.obj)
		}

		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			logging.Error().
				Err(err).
				Str("collection", col.Key).
				Str("object", task.ObjectURI).
				Msg("Import item failed")
		}
	}

	if failed > 0 {
		metrics.ChunksProcessed.WithLabelValues(col.Key, "failed").Inc()
		return fmt.Errorf("chunk for %s: %d of %d items failed: %w", col.Key, failed, len(chunk.Tasks), firstErr)
	}

	metrics.ChunksProcessed.WithLabelValues(col.Key, "ok").Inc()
	return nil
}
