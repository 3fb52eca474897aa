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
	"github.com/Lullabot/mpx-sync/internal/importer"
	"github.com/Lullabot/mpx-sync/internal/mpx"
)

func newImportItemCommand(loadConfig func() (*config.Config, error)) *cobra.Command {
	var collectionKey string

	cmd := &cobra.Command{
		Use:   "import-item <object-uri>",
		Short: "Import a single object by URI, bypassing the queue",
		Long: "Loads one object's current state from the platform (with intermediary\n" +
			"caches bypassed) and upserts its local record immediately. Useful for\n" +
			"debugging a single item or repairing a record without a full resync.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runImportItem(cmd.Context(), cfg, collectionKey, args[0])
		},
	}
	cmd.Flags().StringVar(&collectionKey, "collection", "", "collection key the object belongs to (required)")
	_ = cmd.MarkFlagRequired("collection")

	return cmd
}

func runImportItem(ctx context.Context, cfg *config.Config, collectionKey, uri string) error {
	col, ok := cfg.Collection(collectionKey)
	if !ok {
		return fmt.Errorf("unknown collection %q", collectionKey)
	}

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

	client := newMpxClient(cfg.Mpx)
	objects := importer.NewBadgerObjectCache(store, objectCacheTTL)
	imp := importer.NewImporter(storage, objects, nil)

	obj, err := client.LoadObject(ctx, uri, true)
	if mpx.IsNotFound(err) {
		if err := imp.MarkMissing(ctx, col, uri); err != nil {
			return err
		}
		fmt.Printf("object %s is gone from the platform, record marked missing\n", uri)
		return nil
	}
	if err != nil {
		return err
	}

	if err := imp.ImportObject(ctx, col, obj); err != nil {
		return err
	}

	fmt.Printf("imported %s\n", obj.ID)
	if desc, err := mpx.DescriptorFor(col.ObjectType); err == nil {
		for _, name := range desc.Names() {
			if value, ok := desc.Get(name, obj); ok {
				fmt.Printf("  %-12s %s\n", name, value)
			}
		}
	}
	return nil
}
