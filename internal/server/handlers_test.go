// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/Lullabot/mpx-sync/internal/config"
	"github.com/Lullabot/mpx-sync/internal/media"
	"github.com/Lullabot/mpx-sync/internal/mpx"
	"github.com/Lullabot/mpx-sync/internal/queue"
)

type memCursors struct {
	cursors map[string]int64
	resets  []string
}

func (m *memCursors) Get(_ context.Context, key string) (int64, error) {
	if id, ok := m.cursors[key]; ok {
		return id, nil
	}
	return mpx.UnsetCursor, nil
}

func (m *memCursors) Set(_ context.Context, key string, id int64) error {
	m.cursors[key] = id
	return nil
}

func (m *memCursors) Reset(_ context.Context, key string) error {
	delete(m.cursors, key)
	m.resets = append(m.resets, key)
	return nil
}

type memRecords struct {
	records map[string][]media.Record
	finds   int
}

func (m *memRecords) FindByRemoteID(_ context.Context, key, remoteID string) (*media.Record, error) {
	m.finds++
	for _, r := range m.records[key] {
		if r.RemoteID == remoteID {
			copied := r
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memRecords) ListByCollection(_ context.Context, key string) ([]media.Record, error) {
	return m.records[key], nil
}

func (m *memRecords) CountByStatus(_ context.Context, key string) (map[string]int, error) {
	counts := make(map[string]int)
	for _, r := range m.records[key] {
		counts[r.Status]++
	}
	return counts, nil
}

// fakeQueuer records enqueued tasks per collection.
type fakeQueuer struct {
	enqueued map[string][]queue.ImportTask
}

func (f *fakeQueuer) EnqueueTasks(_ context.Context, key string, tasks []queue.ImportTask) (int, error) {
	if f.enqueued == nil {
		f.enqueued = make(map[string][]queue.ImportTask)
	}
	f.enqueued[key] = append(f.enqueued[key], tasks...)
	if len(tasks) == 0 {
		return 0, nil
	}
	return 1, nil
}

type testFixture struct {
	cursors *memCursors
	records *memRecords
	queuer  *fakeQueuer
}

func newTestServer(t *testing.T, checks map[string]HealthChecker) (*httptest.Server, *testFixture) {
	t.Helper()

	cfg := &config.Config{
		Sync: config.SyncConfig{
			Collections: []config.CollectionConfig{{
				Key:        "videos",
				ServiceURL: "http://data.media.example.com/media",
				ObjectType: "Media",
				Bundle:     "video",
			}},
		},
	}
	fx := &testFixture{
		cursors: &memCursors{cursors: map[string]int64{"videos": 42}},
		records: &memRecords{records: map[string][]media.Record{
			"videos": {
				{ID: 1, CollectionKey: "videos", RemoteID: "obj-1", Status: media.StatusImported},
				{ID: 2, CollectionKey: "videos", RemoteID: "obj-2", Status: media.StatusStub},
			},
		}},
		queuer: &fakeQueuer{},
	}
	entities := media.NewEntityCache(16, time.Minute)

	srv := New(config.ServerConfig{}, NewHandler(cfg, fx.cursors, fx.records, entities, fx.queuer, checks))
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	return ts, fx
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestHandler_Health(t *testing.T) {
	ts, _ := newTestServer(t, map[string]HealthChecker{
		"queue": func(context.Context) bool { return true },
	})

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Status     string            `json:"status"`
		Subsystems map[string]string `json:"subsystems"`
	}
	decodeBody(t, resp, &body)
	if body.Status != "ok" || body.Subsystems["queue"] != "ok" {
		t.Errorf("unexpected health body: %+v", body)
	}
}

func TestHandler_HealthDegraded(t *testing.T) {
	ts, _ := newTestServer(t, map[string]HealthChecker{
		"queue": func(context.Context) bool { return false },
	})

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}

func TestHandler_Collections(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/v1/collections")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Collections []collectionStatus `json:"collections"`
	}
	decodeBody(t, resp, &body)
	if len(body.Collections) != 1 {
		t.Fatalf("expected 1 collection, got %d", len(body.Collections))
	}
	col := body.Collections[0]
	if col.Key != "videos" || col.Cursor != 42 {
		t.Errorf("unexpected collection: %+v", col)
	}
	if col.Records[media.StatusImported] != 1 || col.Records[media.StatusStub] != 1 {
		t.Errorf("unexpected record counts: %v", col.Records)
	}
}

func TestHandler_CollectionRecords(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/v1/collections/videos/records")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Count   int            `json:"count"`
		Records []media.Record `json:"records"`
	}
	decodeBody(t, resp, &body)
	if body.Count != 2 || len(body.Records) != 2 {
		t.Errorf("expected 2 records, got %+v", body)
	}
}

func TestHandler_CollectionRecordsUnknown(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/v1/collections/nope/records")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestHandler_ResyncQueuesKnownRecords(t *testing.T) {
	ts, fx := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/api/v1/collections/videos/resync", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("expected 202, got %d", resp.StatusCode)
	}

	var body struct {
		Records int `json:"records"`
		Chunks  int `json:"chunks"`
	}
	decodeBody(t, resp, &body)
	if body.Records != 2 || body.Chunks != 1 {
		t.Errorf("unexpected resync response: %+v", body)
	}

	tasks := fx.queuer.enqueued["videos"]
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks enqueued, got %d", len(tasks))
	}
	if tasks[0].ObjectURI != "obj-1" || tasks[1].ObjectURI != "obj-2" {
		t.Errorf("unexpected tasks: %+v", tasks)
	}
}

func TestHandler_ResyncLeavesCursorAlone(t *testing.T) {
	ts, fx := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/api/v1/collections/videos/resync", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	// A reset would make the next listen cycle store the new head and
	// skip every notification pending between cursor and head.
	if len(fx.cursors.resets) != 0 {
		t.Errorf("resync must not reset the cursor, got resets %v", fx.cursors.resets)
	}
	if fx.cursors.cursors["videos"] != 42 {
		t.Errorf("expected the cursor untouched at 42, got %d", fx.cursors.cursors["videos"])
	}
}

func TestHandler_ResyncUnknownCollection(t *testing.T) {
	ts, fx := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/api/v1/collections/nope/resync", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
	if len(fx.queuer.enqueued) != 0 {
		t.Errorf("no tasks expected, got %v", fx.queuer.enqueued)
	}
}

func TestHandler_CollectionRecordReadsThroughCache(t *testing.T) {
	ts, fx := newTestServer(t, nil)
	url := ts.URL + "/api/v1/collections/videos/record?remote_id=obj-1"

	var body struct {
		Cached bool          `json:"cached"`
		Record *media.Record `json:"record"`
	}

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &body)
	if body.Cached || body.Record == nil || body.Record.RemoteID != "obj-1" {
		t.Fatalf("expected a storage hit for obj-1, got %+v", body)
	}

	// The second lookup is served from the entity cache.
	resp, err = http.Get(url)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	decodeBody(t, resp, &body)
	if !body.Cached || body.Record == nil || body.Record.RemoteID != "obj-1" {
		t.Errorf("expected a cache hit for obj-1, got %+v", body)
	}
	if fx.records.finds != 1 {
		t.Errorf("expected a single storage lookup, got %d", fx.records.finds)
	}
}

func TestHandler_CollectionRecordNotFound(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/v1/collections/videos/record?remote_id=obj-99")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestHandler_CollectionRecordRequiresRemoteID(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/v1/collections/videos/record")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}
