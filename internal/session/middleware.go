package session

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"stockroom/internal/auth"
	"stockroom/internal/identity"
)

type bridgeKey struct{}

type requestState struct {
	bridge  *Bridge
	notices *Notices
}

// FromContext returns the request's bridge and its collected notices.
func FromContext(ctx context.Context) (*Bridge, *Notices) {
	if v, ok := ctx.Value(bridgeKey{}).(requestState); ok {
		return v.bridge, v.notices
	}
	return nil, nil
}

// ClaimsFromState turns resolved bridge state into request claims.
func ClaimsFromState(st State) auth.Claims {
	c := auth.Claims{IsAdmin: st.IsAdmin, IsTech: st.IsTech}
	if st.Session != nil {
		c.Subject = st.Session.UserID
		c.SessionID = st.Session.SessionID
		c.Email = st.Session.Email
	}
	if st.Profile != nil {
		c.Role = st.Profile.Role
		if st.Profile.CompanyID != nil {
			c.CompanyID = *st.Profile.CompanyID
		}
	}
	return c
}

// Middleware resolves the bearer token through a per-request bridge and stores the
// derived claims. Requests without a live session are rejected with 401.
func Middleware(idp *identity.Service, profiles ProfileStore, lg *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := auth.BearerToken(r)
			if !ok {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			notices := &Notices{}
			b := NewBridge(idp.Client(raw), profiles, notices, lg)
			b.Start(r.Context())
			defer b.Close()

			st := b.State()
			if st.Session == nil {
				http.Error(w, "invalid or expired session", http.StatusUnauthorized)
				return
			}
			ctx := auth.WithClaims(r.Context(), ClaimsFromState(st))
			ctx = context.WithValue(ctx, bridgeKey{}, requestState{bridge: b, notices: notices})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
