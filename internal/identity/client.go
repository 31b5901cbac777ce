package identity

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Client is one holder's view of the auth backend, bound to at most one access token.
// It only hears events it caused or that concern its current session.
type Client struct {
	svc *Service
	id  string

	mu        sync.RWMutex
	token     string
	sessionID string
}

func newClient(svc *Service, token string) *Client {
	return &Client{svc: svc, id: uuid.NewString(), token: token}
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setSession(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == nil {
		c.token, c.sessionID = "", ""
		return
	}
	c.token, c.sessionID = s.AccessToken, s.SessionID
}

// GetSession returns the current session, or nil when the client holds no token.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	tok := c.Token()
	if tok == "" {
		return nil, nil
	}
	s, err := c.svc.GetSession(ctx, tok)
	if err != nil {
		return nil, err
	}
	c.setSession(s)
	return s, nil
}

// OnSessionChange registers fn for session changes. A signed-out event carries a nil session.
func (c *Client) OnSessionChange(fn func(event string, s *Session)) func() {
	return c.svc.bus.Subscribe(func(ev SessionEvent) {
		if !c.concerns(ev) {
			return
		}
		if ev.Event == EventSignedOut {
			fn(ev.Event, nil)
			return
		}
		fn(ev.Event, &Session{SessionID: ev.SessionID, UserID: ev.UserID, Email: ev.Email, ExpiresAt: ev.ExpiresAt})
	})
}

func (c *Client) concerns(ev SessionEvent) bool {
	if ev.Origin != "" && ev.Origin == c.id {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID != "" && ev.SessionID == c.sessionID
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	s, err := c.svc.signIn(ctx, c.id, email, password)
	if err != nil {
		return nil, err
	}
	c.setSession(s)
	return s, nil
}

func (c *Client) SignUp(ctx context.Context, email, password string) (*Session, error) {
	s, err := c.svc.signUp(ctx, c.id, email, password)
	if err != nil {
		return nil, err
	}
	c.setSession(s)
	return s, nil
}

func (c *Client) Refresh(ctx context.Context) (*Session, error) {
	s, err := c.svc.refresh(ctx, c.id, c.Token())
	if err != nil {
		return nil, err
	}
	c.setSession(s)
	return s, nil
}

// SignOut revokes the session remotely. Local state is cleared even when that fails.
func (c *Client) SignOut(ctx context.Context) error {
	tok := c.Token()
	if tok == "" {
		return nil
	}
	err := c.svc.signOut(ctx, c.id, tok)
	c.setSession(nil)
	return err
}
