package auth

import (
	"context"
)

type ctxKey string

const (
	userKey ctxKey = "userClaims"
)

// Claims is the request principal after session and profile resolution.
type Claims struct {
	Subject   string
	SessionID string
	Email     string
	Role      string
	CompanyID string
	IsAdmin   bool
	IsTech    bool
}

func (c Claims) HasRole(role string) bool {
	switch role {
	case "admin":
		return c.IsAdmin
	case "tech":
		return c.IsTech
	}
	return false
}

func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, userKey, c)
}

func FromContext(ctx context.Context) Claims {
	if v, ok := ctx.Value(userKey).(Claims); ok {
		return v
	}
	return Claims{}
}

func Subject(ctx context.Context) string {
	return FromContext(ctx).Subject
}
