package emitter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vietddude/walletwatch/internal/core/domain"
)

// StreamPublisher appends a payload to a named stream.
type StreamPublisher interface {
	Publish(ctx context.Context, stream string, maxLen int64, payload []byte) error
}

// StreamSink writes every event as JSON to a Redis stream.
type StreamSink struct {
	publisher StreamPublisher
	stream    string
	maxLen    int64
}

var _ Emitter = (*StreamSink)(nil)

// NewStreamSink creates a stream sink. maxLen <= 0 means unbounded.
func NewStreamSink(publisher StreamPublisher, stream string, maxLen int64) *StreamSink {
	return &StreamSink{publisher: publisher, stream: stream, maxLen: maxLen}
}

func (s *StreamSink) Name() string { return "redis_stream" }

func (s *StreamSink) Emit(ctx context.Context, event domain.TransferEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.publisher.Publish(ctx, s.stream, s.maxLen, payload)
}

// Close is a no-op; the Redis client is owned by the caller.
func (s *StreamSink) Close() error { return nil }
