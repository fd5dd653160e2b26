package services

import (
	"crypto/subtle"
	"errors"
	"slices"
	"strings"
	"time"

	"liverelay/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
)

// AuthMode selects how push credentials are checked.
type AuthMode string

const (
	// AuthModeToken compares the bearer value with a static token.
	AuthModeToken AuthMode = "token"
	// AuthModeJWT accepts HS256 tokens carrying the push scope.
	AuthModeJWT AuthMode = "jwt"

	PushScope = "push"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// PushClaims are the JWT claims accepted in jwt mode.
type PushClaims struct {
	Scope []string `json:"scope"`
	jwt.RegisteredClaims
}

type pushAuthorizer struct {
	mode   AuthMode
	token  []byte
	secret []byte
}

// NewPushAuthorizer builds the push credential check. An empty credential
// (token, or secret in jwt mode) disables auth: every request is allowed,
// and securing the push path is then up to the deployment.
func NewPushAuthorizer(mode AuthMode, token, jwtSecret string) ports.PushAuthorizer {
	if mode == "" {
		mode = AuthModeToken
	}
	return &pushAuthorizer{
		mode:   mode,
		token:  []byte(token),
		secret: []byte(jwtSecret),
	}
}

func (a *pushAuthorizer) Enabled() bool {
	if a.mode == AuthModeJWT {
		return len(a.secret) > 0
	}
	return len(a.token) > 0
}

// Authorize checks an Authorization header value.
func (a *pushAuthorizer) Authorize(header string) bool {
	if !a.Enabled() {
		return true
	}

	credential, ok := bearerCredential(header)
	if !ok {
		return false
	}

	if a.mode == AuthModeJWT {
		_, err := a.ValidateToken(credential)
		return err == nil
	}
	return subtle.ConstantTimeCompare([]byte(credential), a.token) == 1
}

// ValidateToken parses a push JWT and checks its scope.
func (a *pushAuthorizer) ValidateToken(tokenString string) (*PushClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &PushClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*PushClaims)
	if !ok || !token.Valid || !slices.Contains(claims.Scope, PushScope) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GeneratePushToken signs a push-scoped token. Used by operators and tests.
func GeneratePushToken(secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &PushClaims{
		Scope: []string{PushScope},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// bearerCredential extracts the credential from "Bearer <value>", matching
// the scheme case-insensitively.
func bearerCredential(header string) (string, bool) {
	scheme, value, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}
