// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

// Package config defines the mpx-sync configuration model and its loading
// rules. Configuration is layered: built-in defaults, then an optional YAML
// file, then MPXSYNC_* environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the service.
type Config struct {
	Logging  LoggingConfig  `koanf:"logging"`
	Mpx      MpxConfig      `koanf:"mpx"`
	Sync     SyncConfig     `koanf:"sync"`
	Queue    QueueConfig    `koanf:"queue"`
	Store    StoreConfig    `koanf:"store"`
	Database DatabaseConfig `koanf:"database"`
	Server   ServerConfig   `koanf:"server"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// MpxConfig holds credentials and transport settings for the mpx API.
type MpxConfig struct {
	// Username and Password authenticate against the mpx identity service.
	Username string `koanf:"username" validate:"required"`
	Password string `koanf:"password" validate:"required"`

	// Account is the mpx account URI requests are scoped to.
	Account string `koanf:"account" validate:"required,url"`

	// SignInURL is the identity sign-in endpoint.
	SignInURL string `koanf:"sign_in_url" validate:"required,url"`

	// RequestTimeout bounds ordinary (non-long-poll) API requests.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// PollTimeout bounds one long-poll request. It must exceed the
	// server-side block window so a held-open request is not cut short.
	PollTimeout time.Duration `koanf:"poll_timeout"`

	// RateLimit caps object-load requests per second (0 = unlimited).
	RateLimit float64 `koanf:"rate_limit"`

	// RateBurst is the rate limiter burst size.
	RateBurst int `koanf:"rate_burst"`
}

// CollectionConfig describes one synchronized mpx data service collection.
type CollectionConfig struct {
	// Key identifies the collection in cursors, queue messages and logs.
	Key string `koanf:"key" validate:"required"`

	// ServiceURL is the data service base URL, e.g.
	// https://data.media.theplatform.com/media.
	ServiceURL string `koanf:"service_url" validate:"required,url"`

	// ObjectType is the mpx object type served, e.g. Media.
	ObjectType string `koanf:"object_type" validate:"required"`

	// Bundle is the local media bundle assigned to stub records created
	// for objects never seen before.
	Bundle string `koanf:"bundle" validate:"required"`
}

// SyncConfig controls the notification/import pipeline.
type SyncConfig struct {
	Collections []CollectionConfig `koanf:"collections" validate:"min=1,dive"`

	// ListenInterval is how often the scheduler runs a listen cycle per
	// collection.
	ListenInterval time.Duration `koanf:"listen_interval"`

	// ChunkSize is the number of import tasks per queue message.
	ChunkSize int `koanf:"chunk_size" validate:"min=1"`

	// ReloadConcurrency bounds in-flight object reloads per chunk.
	ReloadConcurrency int `koanf:"reload_concurrency" validate:"min=1"`

	// NotificationLimit is the maximum notifications requested per poll.
	NotificationLimit int `koanf:"notification_limit" validate:"min=1"`

	// ClientID is sent to the notification endpoint so the server can
	// maintain one notification sequence per consumer.
	ClientID string `koanf:"client_id" validate:"required"`
}

// QueueConfig holds NATS JetStream settings for the durable task queue.
type QueueConfig struct {
	URL              string        `koanf:"url" validate:"required"`
	Embedded         bool          `koanf:"embedded"`
	StoreDir         string        `koanf:"store_dir"`
	StreamName       string        `koanf:"stream_name" validate:"required"`
	DurableName      string        `koanf:"durable_name" validate:"required"`
	QueueGroup       string        `koanf:"queue_group" validate:"required"`
	SubscribersCount int           `koanf:"subscribers_count" validate:"min=1"`
	MaxDeliver       int           `koanf:"max_deliver" validate:"min=1"`
	AckWait          time.Duration `koanf:"ack_wait"`
	MaxReconnects    int           `koanf:"max_reconnects"`
	ReconnectWait    time.Duration `koanf:"reconnect_wait"`
	RetentionDays    int           `koanf:"retention_days" validate:"min=1"`
}

// StoreConfig holds the BadgerDB path for cursors and cached objects.
type StoreConfig struct {
	Path string `koanf:"path" validate:"required"`

	// InMemory runs badger without disk persistence. Test use only.
	InMemory bool `koanf:"in_memory"`
}

// DatabaseConfig holds the SQLite path for local media records.
type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// ServerConfig holds the admin HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout"`
}

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Mpx: MpxConfig{
			SignInURL:      "https://identity.auth.theplatform.com/idm/web/Authentication/signIn",
			RequestTimeout: 30 * time.Second,
			// The notify endpoint holds requests open for up to ~30s;
			// leave headroom so the client does not cut the poll short.
			PollTimeout: 45 * time.Second,
			RateLimit:   20,
			RateBurst:   10,
		},
		Sync: SyncConfig{
			ListenInterval:    time.Minute,
			ChunkSize:         10,
			ReloadConcurrency: 10,
			NotificationLimit: 500,
			ClientID:          "mpx-sync",
		},
		Queue: QueueConfig{
			URL:              "nats://127.0.0.1:4222",
			Embedded:         true,
			StoreDir:         "/data/nats/jetstream",
			StreamName:       "MPX_IMPORT",
			DurableName:      "mpx-importer",
			QueueGroup:       "importers",
			SubscribersCount: 4,
			MaxDeliver:       5,
			AckWait:          2 * time.Minute,
			MaxReconnects:    -1,
			ReconnectWait:    2 * time.Second,
			RetentionDays:    7,
		},
		Store: StoreConfig{
			Path: "/data/mpx-sync/store",
		},
		Database: DatabaseConfig{
			Path: "/data/mpx-sync/media.db",
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    3859,
			Timeout: 30 * time.Second,
		},
	}
}

// Validate checks struct tags plus cross-field rules koanf tags cannot
// express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	seen := make(map[string]struct{}, len(c.Sync.Collections))
	for _, col := range c.Sync.Collections {
		if _, dup := seen[col.Key]; dup {
			return fmt.Errorf("config validation: duplicate collection key %q", col.Key)
		}
		seen[col.Key] = struct{}{}
	}

	if c.Mpx.PollTimeout <= c.Mpx.RequestTimeout {
		return fmt.Errorf("config validation: mpx.poll_timeout (%s) must exceed mpx.request_timeout (%s)",
			c.Mpx.PollTimeout, c.Mpx.RequestTimeout)
	}

	if c.Queue.Embedded && c.Queue.StoreDir == "" {
		return fmt.Errorf("config validation: queue.store_dir required when queue.embedded is set")
	}

	return nil
}

// Collection returns the collection config for the given key.
func (c *Config) Collection(key string) (CollectionConfig, bool) {
	for _, col := range c.Sync.Collections {
		if col.Key == key {
			return col, true
		}
	}
	return CollectionConfig{}, false
}
