package identity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultChannel = "stockroom:session-events"

// RedisBus fans session events out to every API instance through Redis pub/sub.
// Received events are dispatched sequentially to local subscribers.
type RedisBus struct {
	client  *redis.Client
	channel string
	local   *LocalBus
	lg      *zap.SugaredLogger
}

func NewRedisBus(client *redis.Client, channel string, lg *zap.SugaredLogger) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBus{client: client, channel: channel, local: NewLocalBus(), lg: lg}
}

func (b *RedisBus) Publish(ctx context.Context, ev SessionEvent) error {
	payload, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish session event: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(fn func(SessionEvent)) func() {
	return b.local.Subscribe(fn)
}

// Run receives events until ctx is cancelled.
func (b *RedisBus) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	return b.consume(ctx, sub.Channel())
}

// consume dispatches each received event to local subscribers in arrival order
// until ctx is cancelled or ch is closed.
func (b *RedisBus) consume(ctx context.Context, ch <-chan *redis.Message) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			ev, err := decodeEvent(msg.Payload)
			if err != nil {
				b.lg.Warnw("dropping malformed session event", "error", err)
				continue
			}
			_ = b.local.Publish(ctx, ev)
		}
	}
}

func encodeEvent(ev SessionEvent) (string, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("encode session event: %w", err)
	}
	return string(b), nil
}

func decodeEvent(s string) (SessionEvent, error) {
	var ev SessionEvent
	if err := json.Unmarshal([]byte(s), &ev); err != nil {
		return SessionEvent{}, fmt.Errorf("decode session event: %w", err)
	}
	if ev.Event == "" {
		return SessionEvent{}, fmt.Errorf("decode session event: missing event")
	}
	return ev, nil
}
