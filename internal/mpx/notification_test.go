// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package mpx

import (
	"errors"
	"net/http"
	"testing"
)

// TestPollNotifications_Batch verifies a normal batch decodes with entry
// URIs and increasing ids.
func TestPollNotifications_Batch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/media/notify", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("since"); got != "42" {
			t.Errorf("expected since=42, got %q", got)
		}
		if got := r.URL.Query().Get("block"); got != "true" {
			t.Errorf("expected block=true, got %q", got)
		}
		_, _ = w.Write([]byte(`[
			{"id":43,"method":"put","type":"Media","entry":{"id":"http://data.media.theplatform.com/media/data/Media/10"}},
			{"id":44,"method":"post","type":"Media","entry":{"id":"http://data.media.theplatform.com/media/data/Media/11"}}
		]`))
	})

	client, server := newTestClient(t, mux)

	batch, err := client.PollNotifications(t.Context(), testCollection(server), 42, testSyncConfig())
	if err != nil {
		t.Fatalf("PollNotifications failed: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(batch))
	}
	if batch[0].ID != 43 || batch[1].ID != 44 {
		t.Errorf("unexpected ids: %d, %d", batch[0].ID, batch[1].ID)
	}
	if batch[0].Entry == nil || batch[0].Entry.ID != "http://data.media.theplatform.com/media/data/Media/10" {
		t.Errorf("unexpected first entry: %+v", batch[0].Entry)
	}
}

// TestPollNotifications_EmptyIsNotError verifies the server's empty-array
// timeout signal maps to (nil, nil).
func TestPollNotifications_EmptyIsNotError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/media/notify", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	client, server := newTestClient(t, mux)

	batch, err := client.PollNotifications(t.Context(), testCollection(server), 42, testSyncConfig())
	if err != nil {
		t.Fatalf("expected nil error for empty poll, got %v", err)
	}
	if batch != nil {
		t.Errorf("expected nil batch for empty poll, got %v", batch)
	}
}

// TestPollNotifications_StaleCursor verifies a 404 with a since parameter
// maps to StaleCursorError.
func TestPollNotifications_StaleCursor(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/media/notify", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"title":"ObjectNotFound","description":"Invalid notification sequence id"}`))
	})

	client, server := newTestClient(t, mux)

	_, err := client.PollNotifications(t.Context(), testCollection(server), 42, testSyncConfig())
	if !IsStaleCursor(err) {
		t.Fatalf("expected StaleCursorError, got %v", err)
	}

	var sce *StaleCursorError
	if errors.As(err, &sce) && sce.Since != 42 {
		t.Errorf("expected stale since 42, got %d", sce.Since)
	}
}

// TestPollNotifications_FirstContact verifies the sync-marker response on
// an unset cursor is surfaced and recognizable.
func TestPollNotifications_FirstContact(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/media/notify", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("since") {
			t.Errorf("expected no since parameter on first contact, got %q", r.URL.Query().Get("since"))
		}
		_, _ = w.Write([]byte(`[{"id":9000}]`))
	})

	client, server := newTestClient(t, mux)

	batch, err := client.PollNotifications(t.Context(), testCollection(server), UnsetCursor, testSyncConfig())
	if err != nil {
		t.Fatalf("PollNotifications failed: %v", err)
	}
	if len(batch) != 1 {
		t.Fatalf("expected single sync marker, got %d notifications", len(batch))
	}
	if !batch[0].IsSyncMarker() {
		t.Errorf("expected sync marker, got %+v", batch[0])
	}
	if batch[0].ID != 9000 {
		t.Errorf("expected marker id 9000, got %d", batch[0].ID)
	}
}

// TestPollNotifications_ServerError verifies 5xx maps to TransportError.
func TestPollNotifications_ServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/media/notify", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	client, server := newTestClient(t, mux)

	_, err := client.PollNotifications(t.Context(), testCollection(server), 42, testSyncConfig())
	if err == nil {
		t.Fatal("expected error for HTTP 502, got nil")
	}
	var te *TransportError
	if !errors.As(err, &te) {
		t.Errorf("expected TransportError, got %T: %v", err, err)
	}
	if IsStaleCursor(err) {
		t.Error("5xx must not classify as stale cursor")
	}
}
