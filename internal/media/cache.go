// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package media

import (
	"sync"
	"time"
)

type entityEntry struct {
	key       string
	record    *Record
	prev      *entityEntry
	next      *entityEntry
	expiresAt time.Time
}

// EntityCache is a thread-safe LRU cache of records with TTL, keyed by
// CacheKey(collection, remoteID). It sits in front of Storage so repeated
// lookups during a chunk do not hit SQLite. Imports must Invalidate after
// writing, or readers keep serving the pre-import record until the TTL
// lapses.
//
// Doubly-linked list for ordering plus a map for lookup; all operations
// are O(1).
type EntityCache struct {
	mu sync.Mutex

	capacity int
	ttl      time.Duration

	items map[string]*entityEntry

	// head.next is most recently used, tail.prev least recently used.
	head *entityEntry
	tail *entityEntry

	hits   int64
	misses int64
}

// NewEntityCache creates a cache with the given capacity and TTL.
func NewEntityCache(capacity int, ttl time.Duration) *EntityCache {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	c := &EntityCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*entityEntry, capacity),
		head:     &entityEntry{},
		tail:     &entityEntry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head

	return c
}

// Get returns the cached record, or false when absent or expired.
func (c *EntityCache) Get(key string) (*Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.items[key]
	if !exists {
		c.misses++
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.removeEntry(entry)
		c.misses++
		return nil, false
	}

	c.moveToFront(entry)
	c.hits++
	return entry.record, true
}

// Put stores a record, evicting the least recently used entry at
// capacity.
func (c *EntityCache) Put(key string, record *Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.items[key]; exists {
		entry.record = record
		entry.expiresAt = time.Now().Add(c.ttl)
		c.moveToFront(entry)
		return
	}

	if len(c.items) >= c.capacity {
		c.removeEntry(c.tail.prev)
	}

	entry := &entityEntry{
		key:       key,
		record:    record,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.items[key] = entry
	c.insertFront(entry)
}

// Invalidate drops the entry for a key if present.
func (c *EntityCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.items[key]; exists {
		c.removeEntry(entry)
	}
}

// Len returns the number of live entries, including not-yet-expired ones.
func (c *EntityCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns cumulative hit and miss counts.
func (c *EntityCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *EntityCache) insertFront(entry *entityEntry) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *EntityCache) unlink(entry *entityEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
}

func (c *EntityCache) moveToFront(entry *entityEntry) {
	c.unlink(entry)
	c.insertFront(entry)
}

func (c *EntityCache) removeEntry(entry *entityEntry) {
	c.unlink(entry)
	delete(c.items, entry.key)
}
