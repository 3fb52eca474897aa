// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Lullabot/mpx-sync/internal/config"
	"github.com/Lullabot/mpx-sync/internal/notify"
	"github.com/Lullabot/mpx-sync/internal/queue"
)

func newListenCommand(loadConfig func() (*config.Config, error)) *cobra.Command {
	var collectionKey string

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Run one listen cycle per collection and exit",
		Long: "Polls each configured collection's notification endpoint once, queues any\n" +
			"changed objects for import, and exits. A worker must be running (or started\n" +
			"later) to process what was queued.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runListen(cmd.Context(), cfg, collectionKey)
		},
	}
	cmd.Flags().StringVar(&collectionKey, "collection", "", "limit to one collection key")

	return cmd
}

func runListen(ctx context.Context, cfg *config.Config, collectionKey string) error {
	store, err := openBadger(cfg.Store)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

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

	client := newMpxClient(cfg.Mpx)
	cursors := notify.NewBadgerCursorStore(store)
	queuer := queue.NewBatchQueuer(publisher, cfg.Sync.ChunkSize)
	listener := notify.NewListener(client, cursors, queuer, cfg.Sync)

	collections := cfg.Sync.Collections
	if collectionKey != "" {
		col, ok := cfg.Collection(collectionKey)
		if !ok {
			return fmt.Errorf("unknown collection %q", collectionKey)
		}
		collections = []config.CollectionConfig{col}
	}

	for _, col := range collections {
		if err := listener.Listen(ctx, col); err != nil {
			return err
		}
	}
	return nil
}
