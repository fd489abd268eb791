// Package auth — JWT session tokens.
//
// JWT (JSON Web Token) is stateless: the server doesn't store session data.
// Everything needed — who the token belongs to and when it expires — lives
// inside the signed token, and the HMAC signature ensures nobody can tamper
// with it without the secret key.
//
// Statelessness has one catch: a plain JWT stays valid until it expires,
// even after the user changes their password. We close that hole by also
// embedding the user's per-user salt in the claims. The auth middleware
// compares the claimed salt against the stored one on every actor lookup;
// a password change rotates the salt, so every previously issued token
// (including month-long remember-me tokens) stops resolving to a user.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// SessionDuration is the lifetime of an ordinary sign-in token.
	SessionDuration = 24 * time.Hour

	// RememberMeDuration is the lifetime of a persistent "remember me"
	// token. Long-lived tokens are acceptable only because salt rotation
	// can revoke them.
	RememberMeDuration = 30 * 24 * time.Hour

	issuer = "fileshare"
)

// TokenService signs and validates session tokens. The same HMAC secret is
// used for both; it should be at least 32 bytes of random data in
// production (e.g. JWT_SECRET=$(openssl rand -hex 32)).
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// Claims is the JWT payload: the standard registered claims (subject holds
// the user ID) plus the user's salt for revocation-on-rotation.
type Claims struct {
	jwt.RegisteredClaims
	Salt string `json:"slt"`
}

// Generate creates and signs a session token for the given user identity,
// valid for the given duration.
func (s *TokenService) Generate(userID, salt string, d time.Duration) (string, error) {
	now := time.Now()

	c := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
		Salt: salt,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a token string, returning the user ID and
// the salt it was issued with.
//
// Pinning the algorithm with jwt.WithValidMethods prevents algorithm
// confusion attacks; the issuer check rejects tokens minted by other apps
// sharing the secret by accident.
func (s *TokenService) Validate(tokenStr string) (userID, salt string, err error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", fmt.Errorf("auth: token expired")
		}
		return "", "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, c.Salt, nil
}
