// internal/auth/verifier.go
// Bearer token verification. Converts the Authorization header into an
// identity.AuthContext or a typed rejection.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/allsource/controlplane/internal/identity"
)

var (
	ErrMissingAuth      = errors.New("authorization header missing")
	ErrMalformedAuth    = errors.New("authorization header malformed")
	ErrInvalidSignature = errors.New("token signature invalid")
	ErrExpired          = errors.New("token expired")
	ErrMalformedClaims  = errors.New("token claims malformed")
)

// Claims is the token payload the control plane trusts.
type Claims struct {
	Username string `json:"username"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	IsAPIKey bool   `json:"is_api_key,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HMAC-SHA256 bearer tokens under a shared secret.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		// HS256 only. Tokens declaring any other algorithm are rejected
		// before signature verification.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// VerifyHeader validates the raw Authorization header value and returns the
// caller identity. Checks run in order and fail fast: header shape,
// signature and algorithm, expiry (strict exp > now), required claims.
func (v *Verifier) VerifyHeader(header string) (identity.AuthContext, error) {
	if header == "" {
		return identity.AuthContext{}, ErrMissingAuth
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return identity.AuthContext{}, ErrMalformedAuth
	}

	return v.Verify(parts[1])
}

// Verify validates a bare token string.
func (v *Verifier) Verify(token string) (identity.AuthContext, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired),
			errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
			return identity.AuthContext{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid),
			errors.Is(err, jwt.ErrTokenUnverifiable):
			return identity.AuthContext{}, ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenMalformed):
			return identity.AuthContext{}, ErrMalformedAuth
		default:
			return identity.AuthContext{}, ErrInvalidSignature
		}
	}

	if claims.Subject == "" || claims.Username == "" || claims.TenantID == "" || claims.Role == "" {
		return identity.AuthContext{}, ErrMalformedClaims
	}

	role, err := identity.ParseRole(claims.Role)
	if err != nil {
		return identity.AuthContext{}, ErrMalformedClaims
	}

	return identity.AuthContext{
		UserID:   claims.Subject,
		Username: claims.Username,
		TenantID: claims.TenantID,
		Role:     role,
		IsAPIKey: claims.IsAPIKey,
	}, nil
}

// IssueToken signs a token for the given identity. Used by the dev seeding
// path and tests; production credentials are issued by the core service.
func (v *Verifier) IssueToken(userID, username, tenantID string, role identity.Role, isAPIKey bool, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		Username: username,
		TenantID: tenantID,
		Role:     string(role),
		IsAPIKey: isAPIKey,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// PeekTenantID extracts the tenant_id claim without verifying the
// signature. The value is only good enough for rate-limit bucketing, which
// runs before verification; it must never be used for authorization.
func PeekTenantID(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}

	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(parts[1], claims); err != nil {
		return "", false
	}
	if claims.TenantID == "" {
		return "", false
	}
	return claims.TenantID, true
}
