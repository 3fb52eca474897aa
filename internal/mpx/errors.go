// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package mpx

import (
	"errors"
	"fmt"
)

// ErrNoCollections is returned when a sync operation is started with no
// configured collections.
var ErrNoCollections = errors.New("no collections configured")

// StaleCursorError reports that the notification endpoint rejected the
// since id because it is older than the server's retention window
// (commonly 7 days). The caller recovers by resetting its cursor and
// restarting from the beginning of history.
type StaleCursorError struct {
	Since int64
}

func (e *StaleCursorError) Error() string {
	return fmt.Sprintf("notification id %d is no longer available", e.Since)
}

// NotFoundError reports that an object load returned 404, typically
// because the object was deleted upstream.
type NotFoundError struct {
	URI string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("remote object not found: %s", e.URI)
}

// TransportError wraps any transport failure that is neither an empty
// long-poll result nor a stale cursor: network errors, 5xx responses,
// malformed bodies. It is fatal for the current cycle.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mpx transport failure at %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AuthError reports a failed sign-in or rejected token.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("mpx authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsStaleCursor reports whether err is a stale cursor rejection.
func IsStaleCursor(err error) bool {
	var sce *StaleCursorError
	return errors.As(err, &sce)
}

// IsNotFound reports whether err is a missing remote object.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}
