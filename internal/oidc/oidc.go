package oidc

import (
	"context"
	"fmt"

	"github.com/clubhub/clubhub/backend/go-services/internal/models"
	"github.com/clubhub/clubhub/backend/go-services/pkg/middleware"
	"github.com/coreos/go-oidc/v3/oidc"
)

// Verifier wraps the OIDC provider and token verifier
type Verifier struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewVerifier creates a new OIDC verifier for the given issuer and client ID
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})
	return &Verifier{provider: provider, verifier: verifier}, nil
}

// Verify verifies the provided raw ID token and returns a middleware.Token
func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}

// Linker maps external identities to local accounts.
type Linker interface {
	UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*models.User, error)
}

// LinkedVerifier rewrites verified external claims into local ones (sub is
// the local user id, role comes from the local account) so handlers never
// see provider subjects.
type LinkedVerifier struct {
	next  middleware.Verifier
	users Linker
}

func NewLinkedVerifier(next middleware.Verifier, users Linker) *LinkedVerifier {
	return &LinkedVerifier{next: next, users: users}
}

func (v *LinkedVerifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	tok, err := v.next.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	var claims map[string]interface{}
	if err := tok.Claims(&claims); err != nil {
		return nil, err
	}
	u, err := v.users.UpsertFromClaims(ctx, claims)
	if err != nil {
		return nil, fmt.Errorf("link identity: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("token has no subject")
	}
	return middleware.MapToken{
		"sub":   u.ID,
		"email": u.Email,
		"name":  u.Name,
		"role":  u.Role,
	}, nil
}
