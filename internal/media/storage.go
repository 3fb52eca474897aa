// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// OpenDB opens the SQLite record database. WAL mode allows concurrent
// reads while an import writes; busy_timeout absorbs short lock
// contention between worker goroutines.
func OpenDB(path string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	return db, nil
}

// Storage provides record persistence on bun.
type Storage struct {
	db  *bun.DB
	now func() time.Time
}

// NewStorage creates record storage and ensures the schema exists.
func NewStorage(ctx context.Context, db *bun.DB) (*Storage, error) {
	s := &Storage{db: db, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) initSchema(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*Record)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create media_records table: %w", err)
	}

	if _, err := s.db.NewCreateIndex().
		Model((*Record)(nil)).
		Index("idx_media_records_identity").
		Unique().
		IfNotExists().
		Column("collection_key", "remote_id").
		Exec(ctx); err != nil {
		return fmt.Errorf("create identity index: %w", err)
	}

	return nil
}

// FindByRemoteID returns the record for the remote object, or (nil, nil)
// when none exists.
func (s *Storage) FindByRemoteID(ctx context.Context, collectionKey, remoteID string) (*Record, error) {
	record := new(Record)
	err := s.db.NewSelect().
		Model(record).
		Where("collection_key = ?", collectionKey).
		Where("remote_id = ?", remoteID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find record %s: %w", remoteID, err)
	}
	return record, nil
}

// CreateStub inserts a minimal record for a remote object seen for the
// first time. The stub reserves the identity before the full object
// state is known.
func (s *Storage) CreateStub(ctx context.Context, collectionKey, remoteID, bundle string) (*Record, error) {
	record := &Record{
		CollectionKey: collectionKey,
		RemoteID:      remoteID,
		Bundle:        bundle,
		Status:        StatusStub,
		CreatedAt:     s.now().UTC(),
		UpdatedAt:     s.now().UTC(),
	}

	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, fmt.Errorf("create stub for %s: %w", remoteID, err)
	}
	return record, nil
}

// Save persists changes to an existing record.
func (s *Storage) Save(ctx context.Context, record *Record) error {
	record.UpdatedAt = s.now().UTC()

	res, err := s.db.NewUpdate().
		Model(record).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save record %d: %w", record.ID, err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("save record %d: no such record", record.ID)
	}
	return nil
}

// ListByCollection returns all records for a collection ordered by
// identity, for inspection tooling.
func (s *Storage) ListByCollection(ctx context.Context, collectionKey string) ([]Record, error) {
	var records []Record
	err := s.db.NewSelect().
		Model(&records).
		Where("collection_key = ?", collectionKey).
		Order("remote_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records for %s: %w", collectionKey, err)
	}
	return records, nil
}

// CountByStatus returns record counts per status for a collection.
func (s *Storage) CountByStatus(ctx context.Context, collectionKey string) (map[string]int, error) {
	var rows []struct {
		Status string `bun:"status"`
		Count  int    `bun:"count"`
	}

	err := s.db.NewSelect().
		Model((*Record)(nil)).
		ColumnExpr("status").
		ColumnExpr("count(*) AS count").
		Where("collection_key = ?", collectionKey).
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("count records for %s: %w", collectionKey, err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
