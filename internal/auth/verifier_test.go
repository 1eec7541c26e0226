package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allsource/controlplane/internal/identity"
)

const testSecret = "unit-test-secret"

func issue(t *testing.T, v *Verifier, role identity.Role, ttl time.Duration) string {
	t.Helper()
	token, err := v.IssueToken("user-1", "alice", "acme", role, false, ttl)
	require.NoError(t, err)
	return token
}

func TestVerifyHeaderHappyPath(t *testing.T) {
	v := NewVerifier(testSecret)
	token := issue(t, v, identity.RoleAdmin, time.Hour)

	auth, err := v.VerifyHeader("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", auth.UserID)
	assert.Equal(t, "alice", auth.Username)
	assert.Equal(t, "acme", auth.TenantID)
	assert.Equal(t, identity.RoleAdmin, auth.Role)
	assert.False(t, auth.IsAPIKey)
}

func TestVerifyHeaderShape(t *testing.T) {
	v := NewVerifier(testSecret)
	token := issue(t, v, identity.RoleAdmin, time.Hour)

	cases := []struct {
		name   string
		header string
		want   error
	}{
		{"empty", "", ErrMissingAuth},
		{"no scheme", token, ErrMalformedAuth},
		{"wrong scheme", "Basic " + token, ErrMalformedAuth},
		{"lowercase scheme", "bearer " + token, ErrMalformedAuth},
		{"empty token", "Bearer ", ErrMalformedAuth},
		{"extra parts", "Bearer " + token + " extra", ErrMalformedAuth},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.VerifyHeader(tc.header)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	other := NewVerifier("some-other-secret")
	token := issue(t, other, identity.RoleAdmin, time.Hour)

	_, err := NewVerifier(testSecret).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyRejectsForeignAlgorithm(t *testing.T) {
	// Unsigned token claiming alg=none must fail closed.
	claims := &Claims{
		Username: "alice",
		TenantID: "acme",
		Role:     "Admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewVerifier(testSecret).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyRejectsExpired(t *testing.T) {
	v := NewVerifier(testSecret)
	token := issue(t, v, identity.RoleAdmin, -time.Minute)

	_, err := v.Verify(token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerifyRequiresExpClaim(t *testing.T) {
	claims := &Claims{
		Username:         "alice",
		TenantID:         "acme",
		Role:             "Admin",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = NewVerifier(testSecret).Verify(token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := NewVerifier(testSecret).Verify("not.a.token")
	assert.ErrorIs(t, err, ErrMalformedAuth)
}

func TestVerifyRejectsIncompleteClaims(t *testing.T) {
	sign := func(c *Claims) string {
		if c.ExpiresAt == nil {
			c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).
			SignedString([]byte(testSecret))
		require.NoError(t, err)
		return token
	}

	cases := []struct {
		name   string
		claims *Claims
	}{
		{"no subject", &Claims{Username: "alice", TenantID: "acme", Role: "Admin"}},
		{"no username", &Claims{TenantID: "acme", Role: "Admin",
			RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}},
		{"no tenant", &Claims{Username: "alice", Role: "Admin",
			RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}},
		{"no role", &Claims{Username: "alice", TenantID: "acme",
			RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}},
		{"unknown role", &Claims{Username: "alice", TenantID: "acme", Role: "root",
			RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}},
	}
	v := NewVerifier(testSecret)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Verify(sign(tc.claims))
			assert.ErrorIs(t, err, ErrMalformedClaims)
		})
	}
}

func TestPeekTenantID(t *testing.T) {
	v := NewVerifier(testSecret)
	token := issue(t, v, identity.RoleDeveloper, time.Hour)

	id, ok := PeekTenantID("Bearer " + token)
	require.True(t, ok)
	assert.Equal(t, "acme", id)

	// A forged signature still yields the claim; the peek is for bucketing
	// only and never trusted for authorization.
	forged, err := NewVerifier("wrong").IssueToken("u", "bob", "forged-tenant",
		identity.RoleAdmin, false, time.Hour)
	require.NoError(t, err)
	id, ok = PeekTenantID("Bearer " + forged)
	require.True(t, ok)
	assert.Equal(t, "forged-tenant", id)

	_, ok = PeekTenantID("")
	assert.False(t, ok)
	_, ok = PeekTenantID("Bearer not.a.token")
	assert.False(t, ok)
}
