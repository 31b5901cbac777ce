// Package session bridges the auth backend's session to the caller's profile and derives
// the role flags used for access control.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"stockroom/internal/identity"
	"stockroom/internal/models"
	"stockroom/internal/profile"
)

// AuthClient is the slice of the auth backend the bridge depends on.
type AuthClient interface {
	GetSession(ctx context.Context) (*identity.Session, error)
	OnSessionChange(fn func(event string, s *identity.Session)) (unsubscribe func())
	SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error)
	SignUp(ctx context.Context, email, password string) (*identity.Session, error)
	SignOut(ctx context.Context) error
}

type ProfileStore interface {
	Get(ctx context.Context, id string) (*models.Profile, error)
	Upsert(ctx context.Context, p *models.Profile) error
}

type State struct {
	Session *identity.Session `json:"session"`
	Profile *models.Profile   `json:"profile"`
	Loading bool              `json:"loading"`
	IsAdmin bool              `json:"is_admin"`
	IsTech  bool              `json:"is_tech"`
}

// DeriveRoleFlags withholds both flags while loading and for any role outside admin/tech.
func DeriveRoleFlags(loading bool, p *models.Profile) (isAdmin, isTech bool) {
	if loading || p == nil {
		return false, false
	}
	return p.Role == models.RoleAdmin, p.Role == models.RoleTech
}

type Bridge struct {
	client   AuthClient
	profiles ProfileStore
	notifier Notifier
	lg       *zap.SugaredLogger

	// serial orders the initial load and listener callbacks.
	serial sync.Mutex

	mu      sync.RWMutex
	ctx     context.Context
	session *identity.Session
	profile *models.Profile
	userID  string
	loading bool
	unsub   func()
}

func NewBridge(client AuthClient, profiles ProfileStore, notifier Notifier, lg *zap.SugaredLogger) *Bridge {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Bridge{
		client:   client,
		profiles: profiles,
		notifier: notifier,
		lg:       lg,
		ctx:      context.Background(),
		loading:  true,
	}
}

// Start subscribes to session changes and then loads the current session.
func (b *Bridge) Start(ctx context.Context) {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	unsub := b.client.OnSessionChange(func(event string, s *identity.Session) {
		b.apply(b.context(), event, s)
	})
	b.mu.Lock()
	b.unsub = unsub
	b.mu.Unlock()

	s, err := b.client.GetSession(ctx)
	if err != nil {
		b.lg.Infow("no usable session", "error", err)
		s = nil
	}
	b.apply(ctx, identity.EventInitialSession, s)
}

// Close detaches the session-change listener.
func (b *Bridge) Close() {
	b.mu.Lock()
	unsub := b.unsub
	b.unsub = nil
	b.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (b *Bridge) context() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx
}

func (b *Bridge) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st := State{Session: b.session, Profile: b.profile, Loading: b.loading}
	st.IsAdmin, st.IsTech = DeriveRoleFlags(st.Loading, st.Profile)
	return st
}

// apply folds one session observation into the bridge. A new principal triggers exactly
// one profile lookup; the same principal only refreshes the session.
func (b *Bridge) apply(ctx context.Context, event string, s *identity.Session) {
	b.serial.Lock()
	defer b.serial.Unlock()

	if s == nil || s.UserID == "" {
		b.mu.Lock()
		b.session, b.profile, b.userID, b.loading = nil, nil, "", false
		b.mu.Unlock()
		return
	}
	own := *s
	s = &own

	b.mu.Lock()
	if s.UserID == b.userID {
		if s.AccessToken == "" && b.session != nil && b.session.SessionID == s.SessionID {
			s.AccessToken = b.session.AccessToken
		}
		b.session = s
		b.mu.Unlock()
		return
	}
	b.session, b.profile, b.userID, b.loading = s, nil, s.UserID, true
	b.mu.Unlock()

	p := b.lookupProfile(ctx, event, s.UserID)

	b.mu.Lock()
	if b.userID == s.UserID {
		b.profile, b.loading = p, false
	}
	b.mu.Unlock()
}

func (b *Bridge) lookupProfile(ctx context.Context, event, userID string) *models.Profile {
	p, err := b.profiles.Get(ctx, userID)
	switch {
	case err == nil:
		return p
	case errors.Is(err, profile.ErrNotFound):
		b.lg.Debugw("no profile for principal", "user_id", userID, "event", event)
		return nil
	default:
		b.lg.Errorw("profile lookup failed", "user_id", userID, "event", event, "error", err)
		b.notifier.Notify(Notice{Level: LevelError, Title: "Could not load profile", Message: err.Error()})
		return nil
	}
}

// SignIn authenticates through the auth client. The session-change listener normally
// applies the result; applying it here covers buses that deliver asynchronously.
func (b *Bridge) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	s, err := b.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	b.apply(ctx, identity.EventSignedIn, s)
	return s, nil
}

// SignUp creates the credential, then upserts the profile keyed by the new principal id.
// The two writes are not atomic: the upsert is retried once and, if it still fails, the
// credential is left in place and the error is returned.
func (b *Bridge) SignUp(ctx context.Context, email, password string, f profile.Fields) (*identity.Session, error) {
	p, err := profile.New("", email, f)
	if err != nil {
		return nil, err
	}
	s, err := b.client.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	p.ID, p.Email = s.UserID, s.Email

	err = b.profiles.Upsert(ctx, p)
	if err != nil {
		b.lg.Warnw("profile upsert failed, retrying", "user_id", s.UserID, "error", err)
		err = b.profiles.Upsert(ctx, p)
	}
	if err != nil {
		b.lg.Errorw("credential created without profile", "user_id", s.UserID, "email", s.Email, "error", err)
		return s, fmt.Errorf("create profile for %s: %w", s.UserID, err)
	}

	b.mu.Lock()
	if b.userID == s.UserID && b.profile == nil {
		b.profile, b.loading = p, false
	}
	b.mu.Unlock()
	b.apply(ctx, identity.EventSignedIn, s)
	return s, nil
}

// SignOut always clears local state; the remote error is returned for logging.
func (b *Bridge) SignOut(ctx context.Context) error {
	err := b.client.SignOut(ctx)
	if err != nil {
		b.lg.Warnw("remote sign out failed", "error", err)
	}
	b.apply(ctx, identity.EventSignedOut, nil)
	return err
}
