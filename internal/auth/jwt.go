package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenClaims is what an access token carries. Role data is never stored in the token;
// it is resolved from the profile on every request.
type TokenClaims struct {
	Subject   string
	JWTID     string
	ExpiresAt time.Time
}

// Issuer signs and verifies HS256 access tokens.
type Issuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{key: []byte(secret), ttl: ttl, now: time.Now}
}

func (i *Issuer) TTL() time.Duration { return i.ttl }

// Sign returns a token for userID with a fresh jti.
func (i *Issuer) Sign(userID string) (string, TokenClaims, error) {
	now := i.now()
	tc := TokenClaims{Subject: userID, JWTID: uuid.NewString(), ExpiresAt: now.Add(i.ttl)}
	claims := jwt.MapClaims{
		"sub": tc.Subject,
		"jti": tc.JWTID,
		"exp": tc.ExpiresAt.Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(i.key)
	if err != nil {
		return "", TokenClaims{}, err
	}
	return s, tc, nil
}

func (i *Issuer) Verify(tokenStr string) (TokenClaims, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.key, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(i.now))
	if err != nil || !tok.Valid {
		return TokenClaims{}, ErrInvalidToken
	}
	mapc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return TokenClaims{}, ErrInvalidToken
	}
	sub, _ := mapc["sub"].(string)
	jti, _ := mapc["jti"].(string)
	if sub == "" || jti == "" {
		return TokenClaims{}, ErrInvalidToken
	}
	tc := TokenClaims{Subject: sub, JWTID: jti}
	if exp, err := mapc.GetExpirationTime(); err == nil && exp != nil {
		tc.ExpiresAt = exp.Time
	}
	return tc, nil
}
