// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package mpx

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/Lullabot/mpx-sync/internal/config"
)

// UnsetCursor is the sentinel "start of history" cursor value.
const UnsetCursor int64 = -1

// Notification methods as delivered by the notify endpoint.
const (
	MethodPost   = "post"
	MethodPut    = "put"
	MethodDelete = "delete"
)

// NotificationEntry is the minimal payload attached to a notification.
// It identifies the changed object but is stale by design: the pipeline
// always re-fetches the full object rather than trusting this payload.
type NotificationEntry struct {
	ID      string `json:"id"`
	Updated int64  `json:"updated,omitempty"`
}

// Notification is one change event from the notify endpoint. Within one
// poll response notifications arrive in increasing ID order, but the same
// entry may appear more than once (rapid successive edits).
type Notification struct {
	ID     int64              `json:"id"`
	Method string             `json:"method,omitempty"`
	Type   string             `json:"type,omitempty"`
	Entry  *NotificationEntry `json:"entry,omitempty"`
}

// IsSyncMarker reports whether this notification is the bare {"id": N}
// record returned on first contact (no since parameter). It carries the
// current head of the notification sequence and no entry.
func (n Notification) IsSyncMarker() bool {
	return n.Entry == nil && n.Method == ""
}

// PollNotifications issues one long-poll request against the collection's
// notify endpoint. It blocks until the server returns data or its block
// window elapses.
//
// Results:
//   - (nil, nil): the long-poll timed out with no new notifications.
//   - (batch, nil): one or more notifications (or a sync marker when
//     since is UnsetCursor).
//   - (nil, *StaleCursorError): since is older than the retention window.
//   - (nil, *TransportError): anything else.
func (c *Client) PollNotifications(ctx context.Context, col config.CollectionConfig, since int64, syncCfg config.SyncConfig) ([]Notification, error) {
	endpoint := col.ServiceURL + "/notify"

	req, err := c.authorizedGet(ctx, endpoint)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}

	q := req.URL.Query()
	q.Set("clientId", syncCfg.ClientID+"-"+col.Key)
	q.Set("size", strconv.Itoa(syncCfg.NotificationLimit))
	if since > UnsetCursor {
		q.Set("since", strconv.FormatInt(since, 10))
		q.Set("block", "true")
	}
	if col.ObjectType != "" {
		q.Set("filter", col.ObjectType)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := c.do(c.pollClient, req)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode == http.StatusNotFound && since > UnsetCursor:
		// The notify endpoint 404s a since id that fell out of its
		// retention window.
		return nil, &StaleCursorError{Since: since}
	default:
		return nil, &TransportError{
			Endpoint: endpoint,
			Err:      fmt.Errorf("HTTP %d: %s", resp.StatusCode, readBodyForError(resp.Body)),
		}
	}

	var batch []Notification
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: fmt.Errorf("decode notifications: %w", err)}
	}

	// An empty array is the server's explicit timeout-no-data signal.
	if len(batch) == 0 {
		return nil, nil
	}

	return batch, nil
}
