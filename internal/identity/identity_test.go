package identity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stockroom/internal/auth"
	"stockroom/internal/db/dbtest"
)

func storeVariants(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"gorm":   func() Store { return NewGormStore(dbtest.Open(t)) },
	}
}

func newService(store Store) *Service {
	return NewService(store, auth.NewIssuer("secret", time.Hour), NewLocalBus(), zap.NewNop().Sugar())
}

func TestServiceLifecycle(t *testing.T) {
	for name, mk := range storeVariants(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := newService(mk())

			sess, err := svc.SignUp(ctx, " Tech@Example.com ", "pw")
			require.NoError(t, err)
			assert.Equal(t, "tech@example.com", sess.Email)
			assert.NotEmpty(t, sess.AccessToken)

			_, err = svc.SignUp(ctx, "tech@example.com", "other")
			require.ErrorIs(t, err, ErrUserExists)

			_, err = svc.SignIn(ctx, "tech@example.com", "wrong")
			require.ErrorIs(t, err, ErrInvalidCredentials)
			_, err = svc.SignIn(ctx, "nobody@example.com", "pw")
			require.ErrorIs(t, err, ErrInvalidCredentials)

			in, err := svc.SignIn(ctx, "TECH@example.com", "pw")
			require.NoError(t, err)
			assert.Equal(t, sess.UserID, in.UserID)

			got, err := svc.GetSession(ctx, in.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, in.SessionID, got.SessionID)

			next, err := svc.Refresh(ctx, in.AccessToken)
			require.NoError(t, err)
			assert.NotEqual(t, in.SessionID, next.SessionID)
			_, err = svc.GetSession(ctx, in.AccessToken)
			require.ErrorIs(t, err, ErrSessionRevoked)

			require.NoError(t, svc.SignOut(ctx, next.AccessToken))
			_, err = svc.GetSession(ctx, next.AccessToken)
			require.ErrorIs(t, err, ErrSessionRevoked)

			_, err = svc.GetSession(ctx, "not-a-token")
			require.ErrorIs(t, err, ErrInvalidSession)
		})
	}
}

func TestServiceRejectsEmptyInput(t *testing.T) {
	svc := newService(NewMemoryStore())
	_, err := svc.SignUp(context.Background(), "", "pw")
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.SignIn(context.Background(), "a@example.com", "")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestServiceExpiredSession(t *testing.T) {
	svc := newService(NewMemoryStore())
	sess, err := svc.SignUp(context.Background(), "a@example.com", "pw")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.GetSession(context.Background(), sess.AccessToken)
	require.ErrorIs(t, err, ErrSessionExpired)
}

type recorder struct {
	mu     sync.Mutex
	events []string
	users  []string
}

func (r *recorder) on(event string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	if s != nil {
		r.users = append(r.users, s.UserID)
	} else {
		r.users = append(r.users, "")
	}
}

func TestClientEventsAreScoped(t *testing.T) {
	ctx := context.Background()
	bus := NewLocalBus()
	svc := NewService(NewMemoryStore(), auth.NewIssuer("secret", time.Hour), bus, zap.NewNop().Sugar())

	a := svc.Client("")
	b := svc.Client("")
	var ra, rb recorder
	unsubA := a.OnSessionChange(ra.on)
	unsubB := b.OnSessionChange(rb.on)
	defer unsubB()

	sa, err := a.SignUp(ctx, "a@example.com", "pw")
	require.NoError(t, err)
	_, err = b.SignUp(ctx, "b@example.com", "pw")
	require.NoError(t, err)

	assert.Equal(t, []string{EventSignedIn}, ra.events)
	assert.Equal(t, []string{sa.UserID}, ra.users)
	assert.Equal(t, []string{EventSignedIn}, rb.events)

	_, err = a.Refresh(ctx)
	require.NoError(t, err)
	require.NoError(t, a.SignOut(ctx))
	assert.Equal(t, []string{EventSignedIn, EventTokenRefreshed, EventSignedOut}, ra.events)
	assert.Equal(t, "", ra.users[2])
	assert.Empty(t, a.Token())

	unsubA()
	assert.Equal(t, 1, bus.Len())
}

func TestClientHearsRemoteSignOut(t *testing.T) {
	ctx := context.Background()
	svc := newService(NewMemoryStore())
	sess, err := svc.SignUp(ctx, "a@example.com", "pw")
	require.NoError(t, err)

	c := svc.Client(sess.AccessToken)
	got, err := c.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)

	var r recorder
	defer c.OnSessionChange(r.on)()

	require.NoError(t, svc.SignOut(ctx, sess.AccessToken))
	assert.Equal(t, []string{EventSignedOut}, r.events)
}

func TestClientWithoutTokenHasNoSession(t *testing.T) {
	svc := newService(NewMemoryStore())
	s, err := svc.Client("").GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
	require.NoError(t, svc.Client("").SignOut(context.Background()))
}

func TestEventCodec(t *testing.T) {
	ev := SessionEvent{Event: EventSignedIn, UserID: "u1", SessionID: "s1", Origin: "o"}
	raw, err := encodeEvent(ev)
	require.NoError(t, err)
	got, err := decodeEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, ev.UserID, got.UserID)
	assert.Equal(t, ev.Event, got.Event)

	_, err = decodeEvent(`{"user_id":"x"}`)
	require.Error(t, err)
	_, err = decodeEvent(`nope`)
	require.Error(t, err)
}

func TestRedisBusConsumeFansOutInOrder(t *testing.T) {
	bus := NewRedisBus(nil, "", zap.NewNop().Sugar())
	var got []string
	bus.Subscribe(func(ev SessionEvent) { got = append(got, ev.Event+":"+ev.UserID) })
	var other []string
	bus.Subscribe(func(ev SessionEvent) { other = append(other, ev.UserID) })

	ch := make(chan *redis.Message, 4)
	for _, ev := range []SessionEvent{
		{Event: EventSignedIn, UserID: "u1", SessionID: "s1"},
		{Event: EventTokenRefreshed, UserID: "u1", SessionID: "s2"},
	} {
		raw, err := encodeEvent(ev)
		require.NoError(t, err)
		ch <- &redis.Message{Channel: DefaultChannel, Payload: raw}
	}
	ch <- &redis.Message{Channel: DefaultChannel, Payload: `{"user_id":"u9"}`}
	raw, err := encodeEvent(SessionEvent{Event: EventSignedOut, UserID: "u1", SessionID: "s2"})
	require.NoError(t, err)
	ch <- &redis.Message{Channel: DefaultChannel, Payload: raw}
	close(ch)

	require.NoError(t, bus.consume(t.Context(), ch))
	assert.Equal(t, []string{"SIGNED_IN:u1", "TOKEN_REFRESHED:u1", "SIGNED_OUT:u1"}, got)
	assert.Equal(t, []string{"u1", "u1", "u1"}, other)
}

func TestRedisBusConsumeStopsOnCancel(t *testing.T) {
	bus := NewRedisBus(nil, "", zap.NewNop().Sugar())
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- bus.consume(ctx, make(chan *redis.Message)) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consume did not return after cancel")
	}
}
