// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package notify

import "github.com/Lullabot/mpx-sync/internal/mpx"

// Dedupe collapses a notification batch to one entry per distinct remote
// object id, keeping the first occurrence and preserving input order.
// The change method is deliberately ignored: the pipeline always
// re-fetches current object state, so only the fact that an id changed
// matters, not how. Notifications without an entry (sync markers) are
// dropped.
//
// Pure function; the input slice is not modified.
func Dedupe(batch []mpx.Notification) []mpx.Notification {
	if len(batch) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(batch))
	out := make([]mpx.Notification, 0, len(batch))

	for _, n := range batch {
		if n.Entry == nil || n.Entry.ID == "" {
			continue
		}
		if _, dup := seen[n.Entry.ID]; dup {
			continue
		}
		seen[n.Entry.ID] = struct{}{}
		out = append(out, n)
	}

	return out
}
