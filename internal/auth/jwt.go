package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Audience names the class of caller a token was issued for.
type Audience string

const (
	AudienceUser  Audience = "user"
	AudienceAdmin Audience = "admin"
)

var (
	// ErrMissingToken is returned when no bearer token was presented.
	ErrMissingToken = errors.New("missing auth token")
	// ErrMalformedToken is returned when the token is not a parseable JWT.
	ErrMalformedToken = errors.New("malformed auth token")
	// ErrInvalidToken covers bad signatures, wrong audiences and expired tokens.
	ErrInvalidToken = errors.New("invalid auth token")
)

// Claims defines the JWT claims structure.
type Claims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies tokens. Each audience has its own secret.
type TokenIssuer struct {
	keys map[Audience][]byte
	ttl  time.Duration
	now  func() time.Time
}

// NewTokenIssuer creates an issuer. A zero ttl issues tokens without an expiry.
func NewTokenIssuer(userSecret, adminSecret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		keys: map[Audience][]byte{
			AudienceUser:  []byte(userSecret),
			AudienceAdmin: []byte(adminSecret),
		},
		ttl: ttl,
		now: time.Now,
	}
}

// Issue creates a signed token carrying name and email for the given audience.
func (t *TokenIssuer) Issue(name, email string, aud Audience) (string, error) {
	key, ok := t.keys[aud]
	if !ok {
		return "", fmt.Errorf("unknown token audience %q", aud)
	}

	now := t.now()
	claims := &Claims{
		Name:  name,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience: jwt.ClaimStrings{string(aud)},
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if t.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(t.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

// Verify parses tokenStr and checks it was issued for aud.
func (t *TokenIssuer) Verify(tokenStr string, aud Audience) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrMissingToken
	}
	key, ok := t.keys[aud]
	if !ok {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(string(aud)),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, ErrMalformedToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
