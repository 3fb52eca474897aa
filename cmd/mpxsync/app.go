// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/uptrace/bun"

	"github.com/Lullabot/mpx-sync/internal/config"
	"github.com/Lullabot/mpx-sync/internal/importer"
	"github.com/Lullabot/mpx-sync/internal/logging"
	"github.com/Lullabot/mpx-sync/internal/media"
	"github.com/Lullabot/mpx-sync/internal/mpx"
	"github.com/Lullabot/mpx-sync/internal/queue"
)

// objectCacheTTL bounds how long raw platform payloads are kept in the
// badger store.
const objectCacheTTL = 30 * 24 * time.Hour

func openBadger(cfg config.StoreConfig) (*badger.DB, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.Path, err)
	}
	return db, nil
}

func openStorage(ctx context.Context, cfg config.DatabaseConfig) (*bun.DB, *media.Storage, error) {
	db, err := media.OpenDB(cfg.Path)
	if err != nil {
		return nil, nil, err
	}
	storage, err := media.NewStorage(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, storage, nil
}

func newMpxClient(cfg config.MpxConfig) *mpx.Client {
	tokens := mpx.NewTokenSource(cfg.SignInURL, cfg.Username, cfg.Password, &http.Client{
		Timeout: cfg.RequestTimeout,
	})
	return mpx.NewClient(cfg, tokens)
}

// brokerURL starts the embedded NATS server when configured and returns
// the client URL plus a shutdown func (a no-op for external brokers).
func brokerURL(cfg config.QueueConfig) (string, func(), error) {
	if !cfg.Embedded {
		return cfg.URL, func() {}, nil
	}

	srv, err := queue.NewEmbeddedServer(queue.DefaultServerConfig(cfg.StoreDir))
	if err != nil {
		return "", nil, err
	}
	logging.Info().Str("url", srv.ClientURL()).Msg("Embedded NATS server started")
	return srv.ClientURL(), srv.Shutdown, nil
}

// ensureStream provisions the import stream on the broker.
func ensureStream(ctx context.Context, url string, cfg config.QueueConfig) error {
	nc, err := nats.Connect(url)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", url, err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("jetstream context: %w", err)
	}

	streamCfg := queue.DefaultStreamConfig(cfg.RetentionDays)
	streamCfg.Name = cfg.StreamName

	init, err := queue.NewStreamInitializer(js, streamCfg)
	if err != nil {
		return err
	}
	if _, err := init.EnsureStream(ctx); err != nil {
		return err
	}
	return nil
}

func newPublisher(url string) (*queue.Publisher, error) {
	return queue.NewPublisher(queue.DefaultPublisherConfig(url), logging.NewWatermillAdapter())
}

func newSubscriber(url string, cfg config.QueueConfig) (*queue.Subscriber, error) {
	subCfg := queue.DefaultSubscriberConfig(url)
	subCfg.StreamName = cfg.StreamName
	subCfg.DurableName = cfg.DurableName
	subCfg.QueueGroup = cfg.QueueGroup
	subCfg.SubscribersCount = cfg.SubscribersCount
	subCfg.MaxDeliver = cfg.MaxDeliver
	if cfg.AckWait > 0 {
		subCfg.AckWaitTimeout = cfg.AckWait
	}
	return queue.NewSubscriber(subCfg, logging.NewWatermillAdapter())
}

func newReloader(cfg *config.Config, client *mpx.Client, storage *media.Storage, objects *importer.BadgerObjectCache, entities *media.EntityCache) *importer.Reloader {
	var invalidator importer.EntityInvalidator
	if entities != nil {
		invalidator = entities
	}
	imp := importer.NewImporter(storage, objects, invalidator)
	return importer.NewReloader(client, imp, cfg, cfg.Sync.ReloadConcurrency)
}
