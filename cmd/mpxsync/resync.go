// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Lullabot/mpx-sync/internal/config"
	"github.com/Lullabot/mpx-sync/internal/logging"
	"github.com/Lullabot/mpx-sync/internal/notify"
	"github.com/Lullabot/mpx-sync/internal/queue"
)

func newResyncCommand(loadConfig func() (*config.Config, error)) *cobra.Command {
	var dropCursor bool

	cmd := &cobra.Command{
		Use:   "resync <collection>",
		Short: "Re-queue every known record of a collection for import",
		Long: "Enqueues an import task for every record the local store knows in the\n" +
			"collection. Workers reload each object with the platform cache bypassed,\n" +
			"so a full resync repairs local data that drifted from the platform.\n" +
			"With --drop-cursor the stored notification cursor is removed as well and\n" +
			"the next listen cycle performs first contact again; only use that while\n" +
			"no serve or listen process holds the store open.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			key := args[0]
			if _, ok := cfg.Collection(key); !ok {
				return fmt.Errorf("unknown collection %q", key)
			}

			db, storage, err := openStorage(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			records, err := storage.ListByCollection(ctx, key)
			if err != nil {
				return err
			}
			if len(records) == 0 && !dropCursor {
				logging.Info().Str("collection", key).Msg("No local records to resync")
				return nil
			}

			chunks := 0
			if len(records) > 0 {
				url, shutdown, err := brokerURL(cfg.Queue)
				if err != nil {
					return err
				}
				defer shutdown()

				if err := ensureStream(ctx, url, cfg.Queue); err != nil {
					return err
				}

				publisher, err := newPublisher(url)
				if err != nil {
					return err
				}
				defer func() { _ = publisher.Close() }()

				tasks := make([]queue.ImportTask, 0, len(records))
				for _, r := range records {
					tasks = append(tasks, queue.ImportTask{
						ObjectURI:     r.RemoteID,
						CollectionKey: key,
					})
				}

				queuer := queue.NewBatchQueuer(publisher, cfg.Sync.ChunkSize)
				chunks, err = queuer.EnqueueTasks(ctx, key, tasks)
				if err != nil {
					return fmt.Errorf("resync %s: %w", key, err)
				}
			}

			if dropCursor {
				store, err := openBadger(cfg.Store)
				if err != nil {
					return err
				}
				defer func() { _ = store.Close() }()

				cursors := notify.NewBadgerCursorStore(store)
				if err := cursors.Reset(ctx, key); err != nil {
					return err
				}
			}

			logging.Info().
				Str("collection", key).
				Int("records", len(records)).
				Int("chunks", chunks).
				Bool("cursor_dropped", dropCursor).
				Msg("Resync queued")
			return nil
		},
	}

	cmd.Flags().BoolVar(&dropCursor, "drop-cursor", false, "also remove the stored notification cursor")
	return cmd
}
