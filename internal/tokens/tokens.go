package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/farmtrack/farmtrack/backend/go-services/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

var ErrNoSecret = errors.New("JWT secret not configured")

// GenerateAccessToken creates a signed HS256 session token for a subject
func GenerateAccessToken(cfg *config.Config, sub, email string, ttl time.Duration) (string, error) {
	if cfg.JWT.Secret == "" {
		return "", ErrNoSecret
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(cfg.JWT.Secret))
}

// ParseSubject verifies signature and expiry and returns the sub claim.
func ParseSubject(cfg *config.Config, raw string) (string, error) {
	if cfg.JWT.Secret == "" {
		return "", ErrNoSecret
	}
	parsed, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWT.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}
