package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/recepoksuz/nft-transferd/internal/domain/event"
	"github.com/recepoksuz/nft-transferd/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// Publisher pushes batch lifecycle events to the presentation layer. The
// orchestrator publishes best-effort; a failed publish never blocks or fails
// a state transition.
type Publisher interface {
	Publish(ctx context.Context, ev event.RecordEvent) error
	Close() error
}

// RedisPublisher appends events to a Redis stream, capped so an abandoned
// consumer cannot grow the stream unbounded.
type RedisPublisher struct {
	client    *redis.Client
	streamKey string
	maxLen    int64
}

func NewRedisPublisher(url, streamKey string, maxLen int64) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisPublisher{
		client:    client,
		streamKey: streamKey,
		maxLen:    maxLen,
	}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, ev event.RecordEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		metrics.StreamPublishErrors.WithLabelValues(string(ev.Type)).Inc()
		return fmt.Errorf("marshal record event: %w", err)
	}
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.streamKey,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":    string(ev.Type),
			"session": ev.SessionID.String(),
			"payload": payload,
		},
	}).Err()
	if err != nil {
		metrics.StreamPublishErrors.WithLabelValues(string(ev.Type)).Inc()
		return fmt.Errorf("xadd record event: %w", err)
	}
	metrics.StreamEventsPublished.WithLabelValues(string(ev.Type)).Inc()
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// InMemoryPublisher buffers events in process. Used when Redis is disabled
// and as the default transport in tests.
type InMemoryPublisher struct {
	mu     sync.Mutex
	events []event.RecordEvent
	max    int
}

func NewInMemoryPublisher() *InMemoryPublisher {
	return &InMemoryPublisher{max: 1000}
}

func (p *InMemoryPublisher) Publish(_ context.Context, ev event.RecordEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	if len(p.events) > p.max {
		p.events = p.events[len(p.events)-p.max:]
	}
	metrics.StreamEventsPublished.WithLabelValues(string(ev.Type)).Inc()
	return nil
}

// Events returns a copy of the buffered events.
func (p *InMemoryPublisher) Events() []event.RecordEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.RecordEvent, len(p.events))
	copy(out, p.events)
	return out
}

func (p *InMemoryPublisher) Close() error {
	return nil
}
