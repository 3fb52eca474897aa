// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package mpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestTokenSource_CachesToken verifies the sign-in endpoint is called once
// while the token is valid.
func TestTokenSource_CachesToken(t *testing.T) {
	signIns := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signIns++
		_, _ = w.Write([]byte(testSignInBody))
	}))
	defer server.Close()

	source := NewTokenSource(server.URL, "u", "p", nil)

	for i := 0; i < 3; i++ {
		token, err := source.Token(t.Context())
		if err != nil {
			t.Fatalf("Token call %d failed: %v", i, err)
		}
		if token.Value != "test-token" {
			t.Errorf("expected token %q, got %q", "test-token", token.Value)
		}
	}

	if signIns != 1 {
		t.Errorf("expected 1 sign-in, got %d", signIns)
	}
}

// TestTokenSource_RefreshesExpiredToken verifies a lapsed token triggers a
// fresh sign-in.
func TestTokenSource_RefreshesExpiredToken(t *testing.T) {
	signIns := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signIns++
		_, _ = w.Write([]byte(testSignInBody))
	}))
	defer server.Close()

	source := NewTokenSource(server.URL, "u", "p", nil)

	now := time.Now()
	source.now = func() time.Time { return now }

	if _, err := source.Token(t.Context()); err != nil {
		t.Fatalf("first Token failed: %v", err)
	}

	// Jump past the idle timeout (4h in the fixture).
	source.now = func() time.Time { return now.Add(5 * time.Hour) }

	if _, err := source.Token(t.Context()); err != nil {
		t.Fatalf("second Token failed: %v", err)
	}

	if signIns != 2 {
		t.Errorf("expected 2 sign-ins after expiry, got %d", signIns)
	}
}

// TestTokenSource_IdleTimeoutWins verifies expiry uses the shorter of
// duration and idle timeout.
func TestTokenSource_IdleTimeoutWins(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testSignInBody))
	}))
	defer server.Close()

	source := NewTokenSource(server.URL, "u", "p", nil)
	now := time.Now()
	source.now = func() time.Time { return now }

	token, err := source.Token(t.Context())
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}

	// idleTimeout is 14400000ms = 4h; duration is a year.
	want := now.Add(4*time.Hour - tokenExpiryMargin)
	if !token.Expires.Equal(want) {
		t.Errorf("expected expiry %v, got %v", want, token.Expires)
	}
}

// TestTokenSource_SignInFailure verifies HTTP errors surface as AuthError.
func TestTokenSource_SignInFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	source := NewTokenSource(server.URL, "u", "wrong", nil)

	_, err := source.Token(t.Context())
	if err == nil {
		t.Fatal("expected error for rejected credentials, got nil")
	}
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Errorf("expected AuthError, got %T: %v", err, err)
	}
}

// TestTokenSource_Invalidate verifies Invalidate forces a re-sign-in.
func TestTokenSource_Invalidate(t *testing.T) {
	signIns := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signIns++
		_, _ = w.Write([]byte(testSignInBody))
	}))
	defer server.Close()

	source := NewTokenSource(server.URL, "u", "p", nil)

	if _, err := source.Token(t.Context()); err != nil {
		t.Fatalf("first Token failed: %v", err)
	}
	source.Invalidate()
	if _, err := source.Token(t.Context()); err != nil {
		t.Fatalf("second Token failed: %v", err)
	}

	if signIns != 2 {
		t.Errorf("expected 2 sign-ins after Invalidate, got %d", signIns)
	}
}
