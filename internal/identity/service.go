package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"stockroom/internal/auth"
	"stockroom/internal/models"
)

// Session is an authenticated session as seen by callers.
type Session struct {
	AccessToken string    `json:"access_token,omitempty"`
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type Service struct {
	store  Store
	issuer *auth.Issuer
	bus    Bus
	lg     *zap.SugaredLogger
	now    func() time.Time
}

func NewService(store Store, issuer *auth.Issuer, bus Bus, lg *zap.SugaredLogger) *Service {
	if bus == nil {
		bus = NewLocalBus()
	}
	return &Service{store: store, issuer: issuer, bus: bus, lg: lg, now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// SignUp creates a credential and opens a session for it.
func (s *Service) SignUp(ctx context.Context, email, password string) (*Session, error) {
	return s.signUp(ctx, "", email, password)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	return s.signIn(ctx, "", email, password)
}

func (s *Service) signUp(ctx context.Context, origin, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	c := &models.Credential{Email: email, PasswordHash: hash}
	if err := s.store.CreateCredential(ctx, c); err != nil {
		return nil, err
	}
	s.lg.Infow("credential created", "user_id", c.ID, "email", email)
	return s.openSession(ctx, origin, c)
}

func (s *Service) signIn(ctx context.Context, origin, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}
	c, err := s.store.CredentialByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := auth.CheckPassword(c.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.openSession(ctx, origin, c)
}

func (s *Service) openSession(ctx context.Context, origin string, c *models.Credential) (*Session, error) {
	tok, tc, err := s.issuer.Sign(c.ID)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateSession(ctx, &models.Session{
		JTI:       tc.JWTID,
		UserID:    c.ID,
		ExpiresAt: tc.ExpiresAt,
		CreatedAt: s.now(),
	}); err != nil {
		return nil, err
	}
	sess := &Session{AccessToken: tok, SessionID: tc.JWTID, UserID: c.ID, Email: c.Email, ExpiresAt: tc.ExpiresAt}
	s.publish(ctx, EventSignedIn, origin, sess)
	return sess, nil
}

// GetSession resolves an access token to its live session.
func (s *Service) GetSession(ctx context.Context, token string) (*Session, error) {
	tc, err := s.issuer.Verify(token)
	if err != nil {
		return nil, ErrInvalidSession
	}
	row, err := s.store.SessionByJTI(ctx, tc.JWTID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	if row.RevokedAt != nil {
		return nil, ErrSessionRevoked
	}
	if s.now().After(row.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	c, err := s.store.CredentialByID(ctx, row.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	return &Session{AccessToken: token, SessionID: row.JTI, UserID: c.ID, Email: c.Email, ExpiresAt: row.ExpiresAt}, nil
}

// Refresh revokes the presented session and issues a replacement.
func (s *Service) Refresh(ctx context.Context, token string) (*Session, error) {
	return s.refresh(ctx, "", token)
}

func (s *Service) refresh(ctx context.Context, origin, token string) (*Session, error) {
	cur, err := s.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.store.RevokeSession(ctx, cur.SessionID, s.now()); err != nil {
		return nil, err
	}
	tok, tc, err := s.issuer.Sign(cur.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateSession(ctx, &models.Session{
		JTI:       tc.JWTID,
		UserID:    cur.UserID,
		ExpiresAt: tc.ExpiresAt,
		CreatedAt: s.now(),
	}); err != nil {
		return nil, err
	}
	next := &Session{AccessToken: tok, SessionID: tc.JWTID, UserID: cur.UserID, Email: cur.Email, ExpiresAt: tc.ExpiresAt}
	s.publish(ctx, EventTokenRefreshed, origin, next)
	return next, nil
}

func (s *Service) SignOut(ctx context.Context, token string) error {
	return s.signOut(ctx, "", token)
}

func (s *Service) signOut(ctx context.Context, origin, token string) error {
	cur, err := s.GetSession(ctx, token)
	if err != nil {
		return err
	}
	if err := s.store.RevokeSession(ctx, cur.SessionID, s.now()); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	s.publish(ctx, EventSignedOut, origin, cur)
	return nil
}

// Subscribe registers fn for every session event.
func (s *Service) Subscribe(fn func(SessionEvent)) func() {
	return s.bus.Subscribe(fn)
}

// Client returns a handle bound to token; an empty token starts signed out.
func (s *Service) Client(token string) *Client {
	return newClient(s, token)
}

func (s *Service) publish(ctx context.Context, event, origin string, sess *Session) {
	ev := SessionEvent{
		Event:     event,
		UserID:    sess.UserID,
		Email:     sess.Email,
		SessionID: sess.SessionID,
		ExpiresAt: sess.ExpiresAt,
		Origin:    origin,
	}
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.lg.Warnw("session event publish failed", "event", event, "user_id", sess.UserID, "error", err)
	}
}
