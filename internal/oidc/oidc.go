package oidc

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/farmtrack/farmtrack/backend/go-services/internal/config"
	"github.com/farmtrack/farmtrack/backend/go-services/pkg/middleware"
)

// Verifier checks bearer tokens issued by the configured realm.
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewVerifier discovers the issuer of cfg.Keycloak and builds a verifier for
// its client ID.
func NewVerifier(ctx context.Context, cfg config.KeycloakConfig) (*Verifier, error) {
	issuer := cfg.Issuer()
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider %s: %w", issuer, err)
	}
	return &Verifier{verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})}, nil
}

// FromKeySet builds a verifier without discovery, for a fixed issuer and
// signing key set.
func FromKeySet(issuer, clientID string, keys oidc.KeySet) *Verifier {
	return &Verifier{verifier: oidc.NewVerifier(issuer, keys, &oidc.Config{ClientID: clientID})}
}

// Verify satisfies middleware.Verifier.
func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}

// Resolver returns an identity resolver backed by v.
func (v *Verifier) Resolver() middleware.BearerResolver {
	return middleware.BearerResolver{Verifier: v}
}
