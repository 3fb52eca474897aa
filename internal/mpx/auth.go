// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package mpx

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/Lullabot/mpx-sync/internal/logging"
)

// tokenExpiryMargin is subtracted from the server-reported lifetime so a
// token is never presented moments before it lapses.
const tokenExpiryMargin = 30 * time.Second

// Token is an mpx authentication token with its expiry.
type Token struct {
	Value   string
	UserID  string
	Expires time.Time
}

// Valid reports whether the token can still be presented.
func (t Token) Valid(now time.Time) bool {
	return t.Value != "" && now.Before(t.Expires)
}

// signInResponse is the identity service response envelope.
type signInResponse struct {
	SignInResponse struct {
		Token string `json:"token"`
		// Duration and IdleTimeout are milliseconds.
		Duration    int64  `json:"duration"`
		IdleTimeout int64  `json:"idleTimeout"`
		UserID      string `json:"userId"`
	} `json:"signInResponse"`
}

// TokenSource produces valid mpx tokens, caching the current one and
// re-signing in when it nears expiry. Safe for concurrent use; only one
// goroutine signs in at a time.
type TokenSource struct {
	signInURL string
	username  string
	password  string
	client    *http.Client

	mu    sync.Mutex
	token Token
	now   func() time.Time
}

// NewTokenSource creates a token source for the given identity endpoint
// and credentials.
func NewTokenSource(signInURL, username, password string, client *http.Client) *TokenSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &TokenSource{
		signInURL: signInURL,
		username:  username,
		password:  password,
		client:    client,
		now:       time.Now,
	}
}

// Token returns a valid token, signing in if the cached one is missing or
// close to expiry.
func (s *TokenSource) Token(ctx context.Context) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token.Valid(s.now()) {
		return s.token, nil
	}

	token, err := s.signIn(ctx)
	if err != nil {
		return Token{}, err
	}

	s.token = token
	logging.Debug().Time("expires", token.Expires).Msg("Acquired mpx token")
	return token, nil
}

// Invalidate drops the cached token so the next call signs in again. Used
// when the API rejects a token before its reported expiry.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = Token{}
}

func (s *TokenSource) signIn(ctx context.Context) (Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.signInURL+"?schema=1.0&form=json", http.NoBody)
	if err != nil {
		return Token{}, &AuthError{Err: err}
	}
	req.SetBasicAuth(s.username, s.password)

	resp, err := s.client.Do(req)
	if err != nil {
		return Token{}, &AuthError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Token{}, &AuthError{Err: fmt.Errorf("sign-in returned HTTP %d: %s",
			resp.StatusCode, readBodyForError(resp.Body))}
	}

	var parsed signInResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Token{}, &AuthError{Err: fmt.Errorf("decode sign-in response: %w", err)}
	}
	if parsed.SignInResponse.Token == "" {
		return Token{}, &AuthError{Err: fmt.Errorf("sign-in response carried no token")}
	}

	// Tokens lapse at the earlier of the absolute duration and the idle
	// timeout; both are reported in milliseconds.
	lifetime := parsed.SignInResponse.Duration
	if parsed.SignInResponse.IdleTimeout > 0 && parsed.SignInResponse.IdleTimeout < lifetime {
		lifetime = parsed.SignInResponse.IdleTimeout
	}

	expires := s.now().Add(time.Duration(lifetime)*time.Millisecond - tokenExpiryMargin)

	return Token{
		Value:   parsed.SignInResponse.Token,
		UserID:  parsed.SignInResponse.UserID,
		Expires: expires,
	}, nil
}
