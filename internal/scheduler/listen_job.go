// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package scheduler

import (
	"context"

	"github.com/Lullabot/mpx-sync/internal/config"
	"github.com/Lullabot/mpx-sync/internal/notify"
)

// ListenJob runs one notification listen cycle for a collection.
type ListenJob struct {
	listener *notify.Listener
	col      config.CollectionConfig
}

// NewListenJob creates the recurring listen job for a collection.
func NewListenJob(listener *notify.Listener, col config.CollectionConfig) *ListenJob {
	return &ListenJob{listener: listener, col: col}
}

// Name identifies the job in logs.
func (j *ListenJob) Name() string {
	return "listen-" + j.col.Key
}

// Run executes one listen cycle.
func (j *ListenJob) Run(ctx context.Context) error {
	return j.listener.Listen(ctx, j.col)
}
