// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

// Package queue provides the durable import pipeline between the
// notification listener and the importer: chunked task messages over NATS
// JetStream, with the Watermill publisher and subscriber wrappers and
// stream provisioning around them.
package queue

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// ImportTask identifies one remote object to reload and import. The task
// carries no object payload; workers always fetch current state from the
// platform.
type ImportTask struct {
	ObjectURI     string `json:"objectUri"`
	CollectionKey string `json:"collectionKey"`
}

// Chunk is the unit of queued work: a bounded group of import tasks
// processed together by one worker. Chunks survive process restarts in
// the JetStream store until acknowledged.
type Chunk struct {
	CollectionKey string       `json:"collectionKey"`
	Tasks         []ImportTask `json:"tasks"`
	QueuedAt      time.Time    `json:"queuedAt"`
}

// TopicForCollection returns the JetStream subject import chunks for a
// collection are published to. All collection subjects fall under the
// "import.>" stream wildcard.
func TopicForCollection(collectionKey string) string {
	return "import." + collectionKey
}

// EncodeChunk serializes a chunk for publishing.
func EncodeChunk(c *Chunk) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode chunk: %w", err)
	}
	return data, nil
}

// DecodeChunk deserializes a chunk payload. A chunk without tasks is
// rejected: it would ack as a no-op and hide a producer bug.
func DecodeChunk(data []byte) (*Chunk, error) {
	var c Chunk
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode chunk: %w", err)
	}
	if c.CollectionKey == "" {
		return nil, fmt.Errorf("decode chunk: missing collection key")
	}
	if len(c.Tasks) == 0 {
		return nil, fmt.Errorf("decode chunk: no tasks")
	}
	return &c, nil
}

// SplitTasks divides tasks into chunks of at most size, preserving
// order. A size of zero or less falls back to one chunk per task.
func SplitTasks(tasks []ImportTask, size int) [][]ImportTask {
	if len(tasks) == 0 {
		return nil
	}
	if size <= 0 {
		size = 1
	}

	chunks := make([][]ImportTask, 0, (len(tasks)+size-1)/size)
	for start := 0; start < len(tasks); start += size {
		end := start + size
		if end > len(tasks) {
			end = len(tasks)
		}
		chunks = append(chunks, tasks[start:end])
	}
	return chunks
}
