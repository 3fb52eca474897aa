// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Lullabot/mpx-sync/internal/config"
	"github.com/Lullabot/mpx-sync/internal/importer"
	"github.com/Lullabot/mpx-sync/internal/logging"
	"github.com/Lullabot/mpx-sync/internal/media"
	"github.com/Lullabot/mpx-sync/internal/notify"
	"github.com/Lullabot/mpx-sync/internal/queue"
	"github.com/Lullabot/mpx-sync/internal/scheduler"
	"github.com/Lullabot/mpx-sync/internal/server"
	"github.com/Lullabot/mpx-sync/internal/supervisor"
)

// entityCacheSize bounds the in-process record cache.
const entityCacheSize = 10000

func newServeCommand(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the full sync pipeline: listeners, import workers and the admin server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openBadger(cfg.Store)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	db, storage, err := openStorage(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	url, stopBroker, err := brokerURL(cfg.Queue)
	if err != nil {
		return err
	}
	defer stopBroker()

	if err := ensureStream(ctx, url, cfg.Queue); err != nil {
		return err
	}

	publisher, err := newPublisher(url)
	if err != nil {
		return err
	}
	defer func() { _ = publisher.Close() }()

	subscriber, err := newSubscriber(url, cfg.Queue)
	if err != nil {
		return err
	}
	defer func() { _ = subscriber.Close() }()

	client := newMpxClient(cfg.Mpx)
	cursors := notify.NewBadgerCursorStore(store)
	entities := media.NewEntityCache(entityCacheSize, 0)
	objects := importer.NewBadgerObjectCache(store, objectCacheTTL)
	reloader := newReloader(cfg, client, storage, objects, entities)

	queuer := queue.NewBatchQueuer(publisher, cfg.Sync.ChunkSize)
	listener := notify.NewListener(client, cursors, queuer, cfg.Sync)

	sched := scheduler.New()
	for _, col := range cfg.Sync.Collections {
		if err := sched.AddInterval(scheduler.NewListenJob(listener, col), cfg.Sync.ListenInterval); err != nil {
			return err
		}
	}

	handler := server.NewHandler(cfg, cursors, storage, entities, queuer, map[string]server.HealthChecker{
		"database": func(ctx context.Context) bool {
			return db.PingContext(ctx) == nil
		},
		"store": func(context.Context) bool {
			return !store.IsClosed()
		},
	})
	admin := server.New(cfg.Server, handler)

	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())
	tree.AddDataService(supervisor.NewBadgerGCService(store, 0, 0))
	tree.AddPipelineService(supervisor.NewSchedulerService(sched))
	for _, col := range cfg.Sync.Collections {
		h := subscriber.NewChunkHandler(queue.TopicForCollection(col.Key), reloader.ProcessChunk)
		tree.AddPipelineService(supervisor.NewWorkerService(col.Key, h))
	}
	tree.AddAPIService(admin)

	logging.Info().
		Int("collections", len(cfg.Sync.Collections)).
		Str("broker", url).
		Msg("mpxsync starting")

	err = tree.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		logging.Info().Msg("mpxsync stopped")
		return nil
	}
	return err
}
