package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(ttl time.Duration) *TokenIssuer {
	return NewTokenIssuer("user-secret", "admin-secret", ttl)
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	iss := newTestIssuer(0)

	tok, err := iss.Issue("Ada", "ada@example.com", AudienceUser)
	require.NoError(t, err)

	claims, err := iss.Verify(tok, AudienceUser)
	require.NoError(t, err)
	assert.Equal(t, "Ada", claims.Name)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Nil(t, claims.ExpiresAt)
	assert.NotNil(t, claims.IssuedAt)
}

func TestTokenIssuer_AudiencesAreNotInterchangeable(t *testing.T) {
	iss := newTestIssuer(0)

	userTok, err := iss.Issue("Ada", "ada@example.com", AudienceUser)
	require.NoError(t, err)
	adminTok, err := iss.Issue("Root", "root@example.com", AudienceAdmin)
	require.NoError(t, err)

	_, err = iss.Verify(userTok, AudienceAdmin)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = iss.Verify(adminTok, AudienceUser)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = iss.Verify(adminTok, AudienceAdmin)
	assert.NoError(t, err)
}

func TestTokenIssuer_SameSecretStillChecksAudience(t *testing.T) {
	iss := NewTokenIssuer("shared", "shared", 0)

	tok, err := iss.Issue("Ada", "ada@example.com", AudienceUser)
	require.NoError(t, err)

	_, err = iss.Verify(tok, AudienceAdmin)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_MissingAndMalformed(t *testing.T) {
	iss := newTestIssuer(0)

	_, err := iss.Verify("", AudienceUser)
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = iss.Verify("not-a-jwt", AudienceUser)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestTokenIssuer_ForeignSignature(t *testing.T) {
	other := NewTokenIssuer("someone-else", "admin-secret", 0)
	tok, err := other.Issue("Ada", "ada@example.com", AudienceUser)
	require.NoError(t, err)

	_, err = newTestIssuer(0).Verify(tok, AudienceUser)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_RejectsOtherAlgorithms(t *testing.T) {
	claims := &Claims{
		Name:             "Ada",
		Email:            "ada@example.com",
		RegisteredClaims: jwt.RegisteredClaims{Audience: jwt.ClaimStrings{"user"}},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("user-secret"))
	require.NoError(t, err)

	_, err = newTestIssuer(0).Verify(tok, AudienceUser)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_Expiry(t *testing.T) {
	iss := newTestIssuer(time.Hour)
	base := time.Now()
	iss.now = func() time.Time { return base }

	tok, err := iss.Issue("Ada", "ada@example.com", AudienceUser)
	require.NoError(t, err)

	claims, err := iss.Verify(tok, AudienceUser)
	require.NoError(t, err)
	require.NotNil(t, claims.ExpiresAt)

	iss.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, err = iss.Verify(tok, AudienceUser)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_UnknownAudience(t *testing.T) {
	_, err := newTestIssuer(0).Issue("Ada", "ada@example.com", Audience("guest"))
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"Bearer abc.def":   "abc.def",
		"bearer abc":       "abc",
		"Token abc":        "",
		"Bearer":           "",
		"Bearer  spaced  ": "spaced",
	}
	for header, want := range cases {
		req := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, BearerToken(req), "header %q", header)
	}
}
