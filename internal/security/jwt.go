package security

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Verifier checks a bearer token and returns its claims.
type Verifier interface {
	ParseAndVerify(ctx context.Context, token string) (*Claims, error)
}

func MakeAccess(secret, uid, username string, ttl time.Duration) (string, error) {
	c := Claims{
		UID: uid, Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			Subject:   uid,
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return t.SignedString([]byte(secret))
}

// ParseAccess verifies an HS256 token. Tokens without exp are refused.
func ParseAccess(secret, token string) (*Claims, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !t.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HMACVerifier verifies HS256 tokens signed with a shared secret.
type HMACVerifier struct {
	Secret string
}

func (v HMACVerifier) ParseAndVerify(_ context.Context, token string) (*Claims, error) {
	return ParseAccess(v.Secret, token)
}
