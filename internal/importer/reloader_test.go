// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Lullabot/mpx-sync/internal/config"
	"github.com/Lullabot/mpx-sync/internal/media"
	"github.com/Lullabot/mpx-sync/internal/metrics"
	"github.com/Lullabot/mpx-sync/internal/mpx"
	"github.com/Lullabot/mpx-sync/internal/queue"
)

// fakeLoader serves scripted objects and tracks concurrency.
type fakeLoader struct {
	mu       sync.Mutex
	objects  map[string]*mpx.Object
	errs     map[string]error
	bypassed []bool

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	block       chan struct{} // when set, loads wait here
}

func (f *fakeLoader) LoadObject(_ context.Context, uri string, bypassCache bool) (*mpx.Object, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.maxInFlight.Load()
		if cur <= prev || f.maxInFlight.CompareAndSwap(prev, cur) {
			break
		}
	}
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.bypassed = append(f.bypassed, bypassCache)

	if err, ok := f.errs[uri]; ok {
		return nil, err
	}
	if obj, ok := f.objects[uri]; ok {
		return obj, nil
	}
	return nil, &mpx.NotFoundError{URI: uri}
}

type staticResolver map[string]config.CollectionConfig

func (r staticResolver) Collection(key string) (config.CollectionConfig, bool) {
	col, ok := r[key]
	return col, ok
}

func newTestReloader(loader *fakeLoader, records RecordStore, concurrency int) *Reloader {
	imp := NewImporter(records, newMemObjectCache(nil), nil)
	return NewReloader(loader, imp, staticResolver{"videos": testCollection()}, concurrency)
}

func chunkOf(uris ...string) *queue.Chunk {
	tasks := make([]queue.ImportTask, len(uris))
	for i, uri := range uris {
		tasks[i] = queue.ImportTask{ObjectURI: uri, CollectionKey: "videos"}
	}
	return &queue.Chunk{CollectionKey: "videos", Tasks: tasks}
}

func objectURI(n int) string {
	return fmt.Sprintf("http://data.media.example.com/media/data/Media/%d", n)
}

func TestReloader_ImportsChunk(t *testing.T) {
	loader := &fakeLoader{objects: map[string]*mpx.Object{}}
	var uris []string
	for i := 1; i <= 5; i++ {
		uri := objectURI(i)
		loader.objects[uri] = testObject(uri)
		uris = append(uris, uri)
	}
	records := newMemRecordStore(nil)

	r := newTestReloader(loader, records, 10)
	if err := r.ProcessChunk(context.Background(), chunkOf(uris...)); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if len(records.records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records.records))
	}
	for _, rec := range records.records {
		if rec.Status != media.StatusImported {
			t.Errorf("record %s not imported: %s", rec.RemoteID, rec.Status)
		}
	}

	// Every load must bypass intermediary caches.
	for i, bypassed := range loader.bypassed {
		if !bypassed {
			t.Errorf("load %d did not bypass the cache", i)
		}
	}
}

func TestReloader_BoundsConcurrency(t *testing.T) {
	loader := &fakeLoader{
		objects: map[string]*mpx.Object{},
		block:   make(chan struct{}),
	}
	var uris []string
	for i := 1; i <= 12; i++ {
		uri := objectURI(i)
		loader.objects[uri] = testObject(uri)
		uris = append(uris, uri)
	}

	r := newTestReloader(loader, newMemRecordStore(nil), 3)

	done := make(chan error, 1)
	go func() {
		done <- r.ProcessChunk(context.Background(), chunkOf(uris...))
	}()

	// Release all loads and let the chunk finish.
	close(loader.block)
	if err := <-done; err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if max := loader.maxInFlight.Load(); max > 3 {
		t.Errorf("expected at most 3 concurrent loads, observed %d", max)
	}
}

func TestReloader_ItemFailureIsolated(t *testing.T) {
	good1, bad, good2 := objectURI(1), objectURI(2), objectURI(3)
	loader := &fakeLoader{
		objects: map[string]*mpx.Object{
			good1: testObject(good1),
			good2: testObject(good2),
		},
		errs: map[string]error{
			bad: &mpx.TransportError{Endpoint: bad, Err: errors.New("HTTP 500")},
		},
	}
	records := newMemRecordStore(nil)

	r := newTestReloader(loader, records, 10)
	err := r.ProcessChunk(context.Background(), chunkOf(good1, bad, good2))
	if err == nil {
		t.Fatal("expected the chunk to fail for redelivery")
	}

	// Both healthy items were still imported.
	for _, uri := range []string{good1, good2} {
		rec, _ := records.FindByRemoteID(context.Background(), "videos", uri)
		if rec == nil || rec.Status != media.StatusImported {
			t.Errorf("expected %s imported despite the failing sibling, got %+v", uri, rec)
		}
	}
	if rec, _ := records.FindByRemoteID(context.Background(), "videos", bad); rec != nil {
		t.Errorf("failed item must not produce a record, got %+v", rec)
	}
}

func TestReloader_MissingObjectMarked(t *testing.T) {
	uri := objectURI(1)
	loader := &fakeLoader{objects: map[string]*mpx.Object{uri: testObject(uri)}}
	records := newMemRecordStore(nil)
	r := newTestReloader(loader, records, 10)

	// First import creates the record, then the platform drops the object.
	if err := r.ProcessChunk(context.Background(), chunkOf(uri)); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	delete(loader.objects, uri)
	if err := r.ProcessChunk(context.Background(), chunkOf(uri)); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	rec, _ := records.FindByRemoteID(context.Background(), "videos", uri)
	if rec == nil || rec.Status != media.StatusMissing {
		t.Errorf("expected record marked missing, got %+v", rec)
	}
}

func TestReloader_RecordsLoadOutcomes(t *testing.T) {
	okBefore := testutil.ToFloat64(metrics.ObjectLoads.WithLabelValues("videos", "ok"))
	missingBefore := testutil.ToFloat64(metrics.ObjectLoads.WithLabelValues("videos", "not_found"))

	present, gone := objectURI(1), objectURI(2)
	loader := &fakeLoader{objects: map[string]*mpx.Object{present: testObject(present)}}
	r := newTestReloader(loader, newMemRecordStore(nil), 10)

	if err := r.ProcessChunk(context.Background(), chunkOf(present, gone)); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if got := testutil.ToFloat64(metrics.ObjectLoads.WithLabelValues("videos", "ok")) - okBefore; got != 1 {
		t.Errorf("expected one ok load counted, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.ObjectLoads.WithLabelValues("videos", "not_found")) - missingBefore; got != 1 {
		t.Errorf("expected one not_found load counted, got %v", got)
	}
}

func TestReloader_DropsUnconfiguredCollection(t *testing.T) {
	loader := &fakeLoader{}
	r := newTestReloader(loader, newMemRecordStore(nil), 10)

	chunk := &queue.Chunk{
		CollectionKey: "retired",
		Tasks:         []queue.ImportTask{{ObjectURI: objectURI(1), CollectionKey: "retired"}},
	}
	if err := r.ProcessChunk(context.Background(), chunk); err != nil {
		t.Errorf("expected unconfigured chunks dropped without error, got %v", err)
	}
	if len(loader.bypassed) != 0 {
		t.Error("no loads expected for a dropped chunk")
	}
}
