package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmptyPassword   = errors.New("password required")
	ErrPasswordTooLong = errors.New("password longer than 72 bytes")
)

// Cost is the bcrypt work factor for new credentials. Tests lower it.
var Cost = bcrypt.DefaultCost

func HashPassword(pw string) (string, error) {
	switch {
	case pw == "":
		return "", ErrEmptyPassword
	case len(pw) > 72:
		return "", ErrPasswordTooLong
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), Cost)
	return string(b), err
}

// CheckPassword reports a mismatch as bcrypt.ErrMismatchedHashAndPassword.
func CheckPassword(hash, pw string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw))
}
