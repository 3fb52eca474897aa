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
	"github.com/Lullabot/mpx-sync/internal/queue"
	"github.com/Lullabot/mpx-sync/internal/supervisor"
)

func newWorkerCommand(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run import workers only, without listeners or the admin server",
		Long: "Consumes queued import chunks and writes records. Use this to scale import\n" +
			"capacity separately from the single listener process; workers sharing the\n" +
			"configured queue group load-balance chunks between them.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runWorker(cmd.Context(), cfg)
		},
	}
}

func runWorker(parent context.Context, cfg *config.Config) error {
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

	// Workers never start an embedded broker: a queue shared between
	// separate processes needs an external one.
	subscriber, err := newSubscriber(cfg.Queue.URL, cfg.Queue)
	if err != nil {
		return err
	}
	defer func() { _ = subscriber.Close() }()

	client := newMpxClient(cfg.Mpx)
	objects := importer.NewBadgerObjectCache(store, objectCacheTTL)
	reloader := newReloader(cfg, client, storage, objects, nil)

	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())
	tree.AddDataService(supervisor.NewBadgerGCService(store, 0, 0))
	for _, col := range cfg.Sync.Collections {
		h := subscriber.NewChunkHandler(queue.TopicForCollection(col.Key), reloader.ProcessChunk)
		tree.AddPipelineService(supervisor.NewWorkerService(col.Key, h))
	}

	logging.Info().
		Int("collections", len(cfg.Sync.Collections)).
		Str("broker", cfg.Queue.URL).
		Msg("Import workers starting")

	err = tree.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
