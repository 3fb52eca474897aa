// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package mpx

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
)

// Object is a full remote media object. Common fields are decoded for
// metadata mapping; Raw preserves the complete payload for the
// side-channel object store so nothing is lost between fetches.
type Object struct {
	ID          string `json:"id"`
	GUID        string `json:"guid,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	// Added and Updated are epoch milliseconds, per mpx convention.
	Added   int64 `json:"added,omitempty"`
	Updated int64 `json:"updated,omitempty"`

	// Defaults to media-specific fields; absent for other object types.
	Duration     float64 `json:"duration,omitempty"`
	DefaultThumb string  `json:"defaultThumbnailUrl,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// LoadObject fetches the full object at uri. With bypassCache set, a
// Cache-Control: no-cache header instructs every intermediary to serve
// current state; the pipeline sets it on every notification-driven reload
// so a stale cached representation can never mask a change.
//
// Returns *NotFoundError on 404 and *TransportError on other failures.
func (c *Client) LoadObject(ctx context.Context, uri string, bypassCache bool) (*Object, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Endpoint: uri, Err: err}
		}
	}

	req, err := c.authorizedGet(ctx, uri)
	if err != nil {
		return nil, &TransportError{Endpoint: uri, Err: err}
	}

	q := req.URL.Query()
	q.Set("schema", "1.10")
	req.URL.RawQuery = q.Encode()

	if bypassCache {
		req.Header.Set("Cache-Control", "no-cache")
	}

	resp, err := c.do(c.httpClient, req)
	if err != nil {
		return nil, &TransportError{Endpoint: uri, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusNotFound:
		return nil, &NotFoundError{URI: uri}
	default:
		return nil, &TransportError{
			Endpoint: uri,
			Err:      fmt.Errorf("HTTP %d: %s", resp.StatusCode, readBodyForError(resp.Body)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Endpoint: uri, Err: fmt.Errorf("read object body: %w", err)}
	}

	obj, err := DecodeObject(body)
	if err != nil {
		return nil, &TransportError{Endpoint: uri, Err: err}
	}
	return obj, nil
}

// DecodeObject parses a raw cjson object payload, preserving the raw
// bytes alongside the decoded fields.
func DecodeObject(raw []byte) (*Object, error) {
	var obj Object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	if obj.ID == "" {
		return nil, fmt.Errorf("object payload carried no id")
	}
	obj.Raw = append([]byte(nil), raw...)
	return &obj, nil
}
