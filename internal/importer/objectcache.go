// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

// Package importer turns queued import chunks into local records: the
// bounded concurrent object reload, the upsert engine, and the raw
// object cache the importer writes through.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ObjectCache stores the raw platform response per object. It is written
// before the record is saved, so on a crash between the two writes the
// cache holds current data for a record one import behind; the next
// redelivery converges both.
type ObjectCache interface {
	Put(ctx context.Context, collectionKey, remoteID string, raw []byte) error
	Get(ctx context.Context, collectionKey, remoteID string) ([]byte, error)
	Delete(ctx context.Context, collectionKey, remoteID string) error
}

// ErrObjectNotCached is returned by Get when no entry exists.
var ErrObjectNotCached = errors.New("object not cached")

// BadgerObjectCache implements ObjectCache on BadgerDB with per-entry
// TTL.
type BadgerObjectCache struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadgerObjectCache creates an object cache. Entries expire after
// ttl; zero disables expiry.
func NewBadgerObjectCache(db *badger.DB, ttl time.Duration) *BadgerObjectCache {
	return &BadgerObjectCache{db: db, ttl: ttl}
}

func objectKey(collectionKey, remoteID string) []byte {
	return []byte(collectionKey + ":object:" + remoteID)
}

// Put stores the raw object payload.
func (c *BadgerObjectCache) Put(_ context.Context, collectionKey, remoteID string, raw []byte) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(objectKey(collectionKey, remoteID), raw)
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("cache object %s: %w", remoteID, err)
	}
	return nil
}

// Get returns the cached payload, or ErrObjectNotCached.
func (c *BadgerObjectCache) Get(_ context.Context, collectionKey, remoteID string) ([]byte, error) {
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(objectKey(collectionKey, remoteID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrObjectNotCached
		}
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrObjectNotCached) {
			return nil, ErrObjectNotCached
		}
		return nil, fmt.Errorf("read cached object %s: %w", remoteID, err)
	}
	return raw, nil
}

// Delete removes a cached payload. Missing entries are not an error.
func (c *BadgerObjectCache) Delete(_ context.Context, collectionKey, remoteID string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(objectKey(collectionKey, remoteID))
	})
	if err != nil {
		return fmt.Errorf("delete cached object %s: %w", remoteID, err)
	}
	return nil
}
