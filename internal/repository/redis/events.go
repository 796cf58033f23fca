package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"insightboard/internal/domain/services"
)

// EventSink appends mutation events to a Redis stream. Each entry carries the
// JSON event under "data" plus the operation name for cheap filtering.
type EventSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewEventSink publishes to stream, trimming it to roughly maxLen entries
// (0 disables trimming).
func NewEventSink(client *redis.Client, stream string, maxLen int64) *EventSink {
	return &EventSink{client: client, stream: stream, maxLen: maxLen}
}

func (s *EventSink) Publish(ctx context.Context, event services.MutationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"operation": event.Operation,
			"data":      string(data),
			"timestamp": event.At.Unix(),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return mapError(err)
	}
	return nil
}
