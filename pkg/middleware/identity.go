package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/farmtrack/farmtrack/backend/go-services/internal/apperr"
	"github.com/farmtrack/farmtrack/backend/go-services/pkg/logger"
	"github.com/farmtrack/farmtrack/backend/go-services/pkg/metrics"
)

// CallerIDKey is the gin context key holding the resolved caller id.
const CallerIDKey = "callerID"

// DefaultIdentityHeader is the header HeaderResolver reads when none is set.
const DefaultIdentityHeader = "x-user-id"

// IdentityResolver turns an incoming request into a caller id.
type IdentityResolver interface {
	Resolve(r *http.Request) (string, error)
}

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the bearer resolver depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// HeaderResolver trusts the caller id carried in a plain request header.
// It performs no verification.
type HeaderResolver struct {
	Header string
}

func (h HeaderResolver) Resolve(r *http.Request) (string, error) {
	name := h.Header
	if name == "" {
		name = DefaultIdentityHeader
	}
	// the value is an opaque id passed through as sent; only blank is rejected
	uid := r.Header.Get(name)
	if strings.TrimSpace(uid) == "" {
		return "", apperr.Auth("identity", fmt.Errorf("Missing %s", name))
	}
	return uid, nil
}

// bearerToken extracts the raw token from 'Authorization: Bearer <token>'.
func bearerToken(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", apperr.Auth("identity", errors.New("missing Authorization header"))
	}
	var token string
	if n, _ := fmt.Sscanf(auth, "Bearer %s", &token); n != 1 {
		return "", apperr.Auth("identity", errors.New("invalid Authorization header"))
	}
	return token, nil
}

// BearerResolver verifies an OIDC bearer token and uses its sub claim.
type BearerResolver struct {
	Verifier Verifier
}

func (b BearerResolver) Resolve(r *http.Request) (string, error) {
	raw, err := bearerToken(r)
	if err != nil {
		return "", err
	}
	tok, err := b.Verifier.Verify(r.Context(), raw)
	if err != nil {
		logger.Debugf("identity: bearer token rejected: %v", err)
		return "", apperr.Auth("identity", errors.New("invalid token"))
	}
	var claims map[string]interface{}
	if err := tok.Claims(&claims); err != nil {
		return "", apperr.Auth("identity", errors.New("failed to parse claims"))
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", apperr.Auth("identity", errors.New("token has no subject"))
	}
	return sub, nil
}

// RevocationChecker reports whether a session token was signed out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// TokenResolver accepts the HS256 session tokens minted by the identity
// provider. Revoked is optional.
type TokenResolver struct {
	Parse   func(raw string) (string, error)
	Revoked RevocationChecker
}

func (t TokenResolver) Resolve(r *http.Request) (string, error) {
	raw, err := bearerToken(r)
	if err != nil {
		return "", err
	}
	if t.Revoked != nil {
		revoked, err := t.Revoked.IsRevoked(r.Context(), raw)
		if err != nil {
			return "", apperr.Store("identity", err)
		}
		if revoked {
			return "", apperr.Auth("identity", errors.New("token revoked"))
		}
	}
	sub, err := t.Parse(raw)
	if err != nil {
		logger.Debugf("identity: session token rejected: %v", err)
		return "", apperr.Auth("identity", errors.New("invalid token"))
	}
	return sub, nil
}

// RequireIdentity aborts the request before any handler runs when the
// resolver cannot name a caller.
func RequireIdentity(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := resolver.Resolve(c.Request)
		if err != nil {
			status := apperr.HTTPStatus(err)
			if status == http.StatusUnauthorized {
				metrics.IdentityRejected.Inc()
			} else {
				logger.Errorf("identity lookup failed: %v", err)
			}
			c.AbortWithStatusJSON(status, gin.H{"error": apperr.Message(err)})
			return
		}
		c.Set(CallerIDKey, uid)
		c.Next()
	}
}

// CallerID returns the id stored by RequireIdentity.
func CallerID(c *gin.Context) string {
	return c.GetString(CallerIDKey)
}
