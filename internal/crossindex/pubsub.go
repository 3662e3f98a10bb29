package crossindex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"cloud.google.com/go/pubsub"
)

// UpdatePublisher fans out a cross_index.update message whenever an
// IndexEntry is applied, so other process instances (the index is
// shared per-process, not per-screening) can eventually converge on the
// same subject-subject graph without every instance re-deriving it from
// the repository directly.
type UpdatePublisher struct {
	topic *pubsub.Topic
	log   *slog.Logger
}

// NewUpdatePublisher dials the configured Pub/Sub topic. Publishing
// failures are logged and swallowed by Publish: a failure here must
// never fail the screening that triggered the index update.
func NewUpdatePublisher(ctx context.Context, projectID, topicID string, log *slog.Logger) (*UpdatePublisher, error) {
	if log == nil {
		log = slog.Default()
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("crossindex: pubsub client: %w", err)
	}
	return &UpdatePublisher{topic: client.Topic(topicID), log: log}, nil
}

type updateMessage struct {
	SubjectID string         `json:"subject_id"`
	Type      ConnectionType `json:"type"`
	Value     string         `json:"value"`
}

// Publish fires a cross_index.update event for one indexed entry. It
// never blocks the caller past message construction: the Pub/Sub client
// library buffers and batches the actual send.
func (p *UpdatePublisher) Publish(ctx context.Context, entry IndexEntry) {
	data, err := json.Marshal(updateMessage{SubjectID: entry.SubjectID, Type: entry.Type, Value: entry.Value})
	if err != nil {
		p.log.Warn("crossindex: marshal update message failed", "error", err)
		return
	}
	result := p.topic.Publish(ctx, &pubsub.Message{Data: data})
	go func() {
		if _, err := result.Get(ctx); err != nil {
			p.log.Warn("crossindex: publish update failed", "error", err)
		}
	}()
}

// Close stops the underlying topic's publish goroutines.
func (p *UpdatePublisher) Close() { p.topic.Stop() }
