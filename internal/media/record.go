// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

// Package media persists the local representation of synchronized
// platform objects: the SQLite-backed record storage and the in-process
// entity cache in front of it.
package media

import (
	"time"

	"github.com/uptrace/bun"
)

// Record statuses. A stub exists from the moment a notification names an
// object; it becomes imported once a full reload succeeds, and missing
// when the platform reports the object gone.
const (
	StatusStub     = "stub"
	StatusImported = "imported"
	StatusMissing  = "missing"
)

// Record is the local row for one remote object. RemoteID is the
// platform's canonical object URI and, with CollectionKey, uniquely
// identifies the record.
type Record struct {
	bun.BaseModel `bun:"table:media_records,alias:mr"`

	ID            int64     `bun:",pk,autoincrement" json:"id"`
	CollectionKey string    `bun:",notnull" json:"collection_key"`
	RemoteID      string    `bun:",notnull" json:"remote_id"`
	GUID          string    `bun:",nullzero" json:"guid"`
	Bundle        string    `bun:",nullzero" json:"bundle"`
	Status        string    `bun:",notnull" json:"status"`
	Title         string    `bun:",nullzero" json:"title"`
	Description   string    `bun:",nullzero" json:"description"`
	Duration      float64   `bun:",nullzero" json:"duration"`
	ThumbnailURL  string    `bun:",nullzero" json:"thumbnail_url"`
	RemoteUpdated time.Time `bun:",nullzero" json:"remote_updated"`
	CreatedAt     time.Time `bun:",nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time `bun:",nullzero" json:"updated_at"`
}

// CacheKey returns the entity cache key for the record's identity.
func (r *Record) CacheKey() string {
	return CacheKey(r.CollectionKey, r.RemoteID)
}

// CacheKey builds the entity cache key for a collection and remote id.
func CacheKey(collectionKey, remoteID string) string {
	return collectionKey + ":" + remoteID
}
