// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/Lullabot/mpx-sync/internal/logging"
	"github.com/Lullabot/mpx-sync/internal/metrics"
	"github.com/Lullabot/mpx-sync/internal/mpx"
)

// ChunkPublisher publishes one message to a topic. Satisfied by
// *Publisher; narrowed to an interface so the queuer can be tested
// without a broker.
type ChunkPublisher interface {
	Publish(ctx context.Context, topic string, msg *message.Message) error
}

// BatchQueuer turns a deduplicated notification batch into durable chunk
// messages. Each chunk is one JetStream message, so a chunk is queued
// atomically and the first publish failure aborts the batch with the
// remaining notifications unqueued. The caller must not advance its
// cursor on error.
type BatchQueuer struct {
	publisher ChunkPublisher
	chunkSize int
	now       func() time.Time
}

// NewBatchQueuer creates a queuer splitting batches into chunks of
// chunkSize tasks.
func NewBatchQueuer(publisher ChunkPublisher, chunkSize int) *BatchQueuer {
	return &BatchQueuer{
		publisher: publisher,
		chunkSize: chunkSize,
		now:       time.Now,
	}
}

// EnqueueNotifications publishes the batch as chunk messages and returns
// the number of chunks queued.
func (q *BatchQueuer) EnqueueNotifications(ctx context.Context, collectionKey string, batch []mpx.Notification) (int, error) {
	tasks := make([]ImportTask, 0, len(batch))
	for _, n := range batch {
		if n.Entry == nil || n.Entry.ID == "" {
			continue
		}
		tasks = append(tasks, ImportTask{
			ObjectURI:     n.Entry.ID,
			CollectionKey: collectionKey,
		})
	}
	return q.EnqueueTasks(ctx, collectionKey, tasks)
}

// EnqueueTasks publishes the tasks as chunk messages and returns the
// number of chunks queued. Used directly by full resync, where tasks
// come from the local record store rather than a notification batch.
func (q *BatchQueuer) EnqueueTasks(ctx context.Context, collectionKey string, tasks []ImportTask) (int, error) {
	if len(tasks) == 0 {
		return 0, nil
	}

	topic := TopicForCollection(collectionKey)
	queuedAt := q.now().UTC()

	chunks := SplitTasks(tasks, q.chunkSize)
	for i, chunkTasks := range chunks {
		payload, err := EncodeChunk(&Chunk{
			CollectionKey: collectionKey,
			Tasks:         chunkTasks,
			QueuedAt:      queuedAt,
		})
		if err != nil {
			return i, err
		}

		msg := message.NewMessage(uuid.NewString(), payload)
		msg.Metadata.Set("collection", collectionKey)

		if err := q.publisher.Publish(ctx, topic, msg); err != nil {
			return i, fmt.Errorf("publish chunk %d/%d for %s: %w", i+1, len(chunks), collectionKey, err)
		}

		metrics.ChunksEnqueued.WithLabelValues(collectionKey).Inc()
		metrics.ChunkSize.Observe(float64(len(chunkTasks)))
	}

	logging.Debug().
		Str("collection", collectionKey).
		Int("tasks", len(tasks)).
		Int("chunks", len(chunks)).
		Msg("Published import chunks")

	return len(chunks), nil
}
