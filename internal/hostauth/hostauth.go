// Package hostauth issues and checks the token that lets the initiator of a
// poll reveal its results and start a tiebreaker.
package hostauth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTypeHost = "host"

var (
	ErrMissingToken = errors.New("missing host token")
	ErrInvalidToken = errors.New("invalid host token")
)

type HostClaims struct {
	PollID    string `json:"pollId"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, ttl: ttl, now: time.Now}
}

// Issue signs a host token for pollID.
func (i *Issuer) Issue(pollID string) (string, error) {
	now := i.now()
	claims := &HostClaims{
		PollID:    pollID,
		TokenType: tokenTypeHost,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   pollID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign host token: %w", err)
	}
	return signed, nil
}

// Verify checks that raw is an unexpired host token for pollID.
func (i *Issuer) Verify(raw, pollID string) error {
	if raw == "" {
		return ErrMissingToken
	}
	claims := &HostClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	if claims.TokenType != tokenTypeHost || claims.PollID != pollID {
		return ErrInvalidToken
	}
	return nil
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(parts[1]), nil
}
