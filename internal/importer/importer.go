// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package importer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Lullabot/mpx-sync/internal/config"
	"github.com/Lullabot/mpx-sync/internal/logging"
	"github.com/Lullabot/mpx-sync/internal/metrics"
	"github.com/Lullabot/mpx-sync/internal/media"
	"github.com/Lullabot/mpx-sync/internal/mpx"
)

// RecordStore is the subset of media.Storage the importer writes
// through.
type RecordStore interface {
	FindByRemoteID(ctx context.Context, collectionKey, remoteID string) (*media.Record, error)
	CreateStub(ctx context.Context, collectionKey, remoteID, bundle string) (*media.Record, error)
	Save(ctx context.Context, record *media.Record) error
}

// EntityInvalidator drops a record from the in-process entity cache.
// Implemented by *media.EntityCache.
type EntityInvalidator interface {
	Invalidate(key string)
}

// Importer upserts local records from freshly loaded platform objects.
// Imports are idempotent: re-importing the same object state is a no-op
// apart from timestamps, so redelivered chunks are safe.
type Importer struct {
	records  RecordStore
	objects  ObjectCache
	entities EntityInvalidator
}

// NewImporter wires an importer. entities may be nil when no entity
// cache is in use (the worker CLI without the admin server).
func NewImporter(records RecordStore, objects ObjectCache, entities EntityInvalidator) *Importer {
	return &Importer{
		records:  records,
		objects:  objects,
		entities: entities,
	}
}

// ImportObject upserts the record for a loaded object.
//
// Write order is deliberate: the raw object cache is written before the
// record row. The record is the source of truth for what has been
// imported; a cache newer than the record only means the next import
// re-reads fresh data, while a record newer than the cache would serve
// stale object payloads as if current.
func (i *Importer) ImportObject(ctx context.Context, col config.CollectionConfig, obj *mpx.Object) error {
	desc, err := mpx.DescriptorFor(col.ObjectType)
	if err != nil {
		metrics.RecordImport(col.Key, "error")
		return fmt.Errorf("import into %s: %w", col.Key, err)
	}

	record, err := i.records.FindByRemoteID(ctx, col.Key, obj.ID)
	if err != nil {
		metrics.RecordImport(col.Key, "error")
		return err
	}
	created := false
	if record == nil {
		record, err = i.records.CreateStub(ctx, col.Key, obj.ID, col.Bundle)
		if err != nil {
			metrics.RecordImport(col.Key, "error")
			return err
		}
		created = true
	}

	if err := i.objects.Put(ctx, col.Key, obj.ID, obj.Raw); err != nil {
		metrics.RecordImport(col.Key, "error")
		return err
	}

	applyMetadata(desc, record, obj)
	record.Status = media.StatusImported

	if err := i.records.Save(ctx, record); err != nil {
		metrics.RecordImport(col.Key, "error")
		return err
	}

	if i.entities != nil {
		i.entities.Invalidate(record.CacheKey())
	}

	logging.Debug().
		Str("collection", col.Key).
		Str("object", obj.ID).
		Bool("created", created).
		Msg("Imported object")
	metrics.RecordImport(col.Key, "imported")

	return nil
}

// applyMetadata maps the descriptor's extracted attributes onto record
// columns. The descriptor is the single mapping table per object type;
// attributes the object no longer carries clear their column so removed
// remote metadata does not linger locally.
func applyMetadata(desc *mpx.Descriptor, record *media.Record, obj *mpx.Object) {
	meta := desc.Extract(obj)

	record.GUID = meta["guid"]
	record.Title = meta["title"]
	record.Description = meta["description"]
	record.ThumbnailURL = meta["thumbnail"]

	record.Duration = 0
	if v, ok := meta["duration"]; ok {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			record.Duration = parsed
		}
	}

	record.RemoteUpdated = time.Time{}
	if v, ok := meta["updated"]; ok {
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			record.RemoteUpdated = parsed
		}
	}
}

// MarkMissing records that the platform no longer has the object. An
// object never seen locally is ignored: there is nothing to mark.
func (i *Importer) MarkMissing(ctx context.Context, col config.CollectionConfig, remoteID string) error {
	record, err := i.records.FindByRemoteID(ctx, col.Key, remoteID)
	if err != nil {
		metrics.RecordImport(col.Key, "error")
		return err
	}
	if record == nil {
		metrics.RecordImport(col.Key, "missing")
		return nil
	}

	record.Status = media.StatusMissing
	if err := i.records.Save(ctx, record); err != nil {
		metrics.RecordImport(col.Key, "error")
		return err
	}

	if err := i.objects.Delete(ctx, col.Key, remoteID); err != nil {
		return fmt.Errorf("drop cache for missing object: %w", err)
	}
	if i.entities != nil {
		i.entities.Invalidate(record.CacheKey())
	}

	logging.Info().
		Str("collection", col.Key).
		Str("object", remoteID).
		Msg("Object gone from the platform, marked missing")
	metrics.RecordImport(col.Key, "missing")

	return nil
}
