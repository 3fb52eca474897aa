// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"

	"github.com/Lullabot/mpx-sync/internal/mpx"
)

// cursorKeySuffix matches the persisted state key scheme
// "<collectionKey>_notification_id".
const cursorKeySuffix = "_notification_id"

// BadgerCursorStore implements CursorStore on BadgerDB.
type BadgerCursorStore struct {
	db *badger.DB
}

// NewBadgerCursorStore creates a cursor store on an open badger database.
func NewBadgerCursorStore(db *badger.DB) *BadgerCursorStore {
	return &BadgerCursorStore{db: db}
}

func cursorKey(collectionKey string) []byte {
	return []byte(collectionKey + cursorKeySuffix)
}

// Get returns the stored cursor, or mpx.UnsetCursor when unset.
func (s *BadgerCursorStore) Get(_ context.Context, collectionKey string) (int64, error) {
	cursor := mpx.UnsetCursor

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cursorKey(collectionKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			parsed, perr := strconv.ParseInt(string(val), 10, 64)
			if perr != nil {
				return fmt.Errorf("corrupt cursor value %q: %w", val, perr)
			}
			cursor = parsed
			return nil
		})
	})
	if err != nil {
		return mpx.UnsetCursor, fmt.Errorf("get cursor for %s: %w", collectionKey, err)
	}

	return cursor, nil
}

// Set stores the cursor for the collection.
func (s *BadgerCursorStore) Set(_ context.Context, collectionKey string, id int64) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(cursorKey(collectionKey), []byte(strconv.FormatInt(id, 10)))
	})
	if err != nil {
		return fmt.Errorf("set cursor for %s: %w", collectionKey, err)
	}
	return nil
}

// Reset removes the stored cursor.
func (s *BadgerCursorStore) Reset(_ context.Context, collectionKey string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(cursorKey(collectionKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("reset cursor for %s: %w", collectionKey, err)
	}
	return nil
}
