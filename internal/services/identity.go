package services

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/tbourn/go-toy-backend/internal/auth"
	"github.com/tbourn/go-toy-backend/internal/domain"
	"github.com/tbourn/go-toy-backend/internal/repo"
)

// IdentityGuard resolves presented credentials to principals: bearer access
// tokens to a Parent, API keys to an APIKey.
type IdentityGuard struct {
	DB     *gorm.DB
	Issuer *auth.Issuer
	Hasher *auth.Hasher
}

// ResolveParent verifies an access token and loads its parent. It rejects
// disabled accounts and tokens whose version no longer matches the account.
func (g *IdentityGuard) ResolveParent(ctx context.Context, accessToken string) (*domain.Parent, error) {
	ctx, span := otel.Tracer("services/IdentityGuard").Start(ctx, "ResolveParent")
	defer span.End()

	if strings.TrimSpace(accessToken) == "" {
		return nil, ErrMissingCredential
	}
	claims, err := g.Issuer.Verify(accessToken)
	if err != nil {
		return nil, err
	}
	p, err := repo.GetParent(ctx, g.DB, claims.Subject)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, auth.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrInactiveAccount
	}
	if claims.TokenVersion != p.TokenVersion {
		return nil, ErrRevokedToken
	}
	return p, nil
}

// ResolveAPIKey looks a raw API key up by its keyed hash.
func (g *IdentityGuard) ResolveAPIKey(ctx context.Context, rawKey string) (*domain.APIKey, error) {
	rawKey = strings.TrimSpace(rawKey)
	if rawKey == "" {
		return nil, ErrMissingCredential
	}
	k, err := repo.FindAPIKey(ctx, g.DB, g.Hasher.Hash(rawKey))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, err
	}
	if k.Revoked {
		return nil, ErrRevokedCredential
	}
	return k, nil
}

// RequireAdmin returns ErrAdminOnly unless p is an admin.
func RequireAdmin(p *domain.Parent) error {
	if !p.IsAdmin() {
		return ErrAdminOnly
	}
	return nil
}
