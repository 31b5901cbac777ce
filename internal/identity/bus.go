package identity

import (
	"context"
	"sync"
	"time"
)

const (
	EventInitialSession = "INITIAL_SESSION"
	EventSignedIn       = "SIGNED_IN"
	EventSignedOut      = "SIGNED_OUT"
	EventTokenRefreshed = "TOKEN_REFRESHED"
)

// SessionEvent announces a session change. Access tokens never travel on the bus.
type SessionEvent struct {
	Event     string    `json:"event"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Origin    string    `json:"origin,omitempty"`
}

type Bus interface {
	Publish(ctx context.Context, ev SessionEvent) error
	Subscribe(fn func(SessionEvent)) (unsubscribe func())
}

// LocalBus dispatches in-process, synchronously and one event at a time.
type LocalBus struct {
	mu       sync.RWMutex
	dispatch sync.Mutex
	subs     map[uint64]func(SessionEvent)
	nextID   uint64
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[uint64]func(SessionEvent))}
}

func (b *LocalBus) Publish(_ context.Context, ev SessionEvent) error {
	b.mu.RLock()
	subs := make([]func(SessionEvent), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	b.dispatch.Lock()
	defer b.dispatch.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
	return nil
}

func (b *LocalBus) Subscribe(fn func(SessionEvent)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

func (b *LocalBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
