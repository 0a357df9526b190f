// Package services – AuthService
//
// AuthService owns the account and token lifecycle: signup, login, refresh
// token rotation, logout (global revocation through token_version) and API
// key management. Raw secrets leave this service once and are never stored.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"gorm.io/gorm"

	"github.com/tbourn/go-toy-backend/internal/auth"
	"github.com/tbourn/go-toy-backend/internal/domain"
	"github.com/tbourn/go-toy-backend/internal/repo"
)

// TokenPair is returned by Login and Refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// SignupInput carries the fields of a new account.
type SignupInput struct {
	Name     string
	Email    string
	Password string
	Phone    *string
}

// AuthService implements the authentication flows.
type AuthService struct {
	DB         *gorm.DB
	Issuer     *auth.Issuer
	Hasher     *auth.Hasher
	RefreshTTL time.Duration
	BcryptCost int

	// Now is the service clock. Defaults to time.Now.
	Now func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService wires an AuthService.
func NewAuthService(db *gorm.DB, issuer *auth.Issuer, hasher *auth.Hasher, refreshTTL time.Duration, bcryptCost int) *AuthService {
	return &AuthService{
		DB:         db,
		Issuer:     issuer,
		Hasher:     hasher,
		RefreshTTL: refreshTTL,
		BcryptCost: bcryptCost,
		Now:        time.Now,
	}
}

func (s *AuthService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// NormalizeEmail trims and case-folds an address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// Signup creates a parent account.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*domain.Parent, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Signup")
	defer span.End()

	name := strings.TrimSpace(in.Name)
	email := NormalizeEmail(in.Email)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if at := strings.IndexByte(email, '@'); at <= 0 || at == len(email)-1 {
		return nil, fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password, s.BcryptCost)
	if err != nil {
		return nil, err
	}
	p, err := repo.CreateParent(ctx, s.DB, name, email, hash, in.Phone, s.now())
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}

	authEvents.WithLabelValues("signup").Inc()
	zerolog.Ctx(ctx).Info().Str("parent_id", p.ID).Msg("parent signed up")
	return p, nil
}

// Login checks credentials and issues a new token pair.
func (s *AuthService) Login(ctx context.Context, email, password, userAgent string) (*TokenPair, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Login")
	defer span.End()

	p, err := repo.GetParentByEmail(ctx, s.DB, NormalizeEmail(email))
	if errors.Is(err, repo.ErrNotFound) {
		// Same bcrypt cost as a real mismatch.
		auth.VerifyPassword(s.dummy(), password)
		authEvents.WithLabelValues("login_failed").Inc()
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.VerifyPassword(p.PasswordHash, password) {
		authEvents.WithLabelValues("login_failed").Inc()
		return nil, ErrInvalidCredentials
	}
	if !p.IsActive {
		return nil, ErrInactiveAccount
	}

	var pair *TokenPair
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		pair, err = s.issuePair(ctx, tx, p, userAgent)
		return err
	})
	if err != nil {
		return nil, err
	}
	authEvents.WithLabelValues("login").Inc()
	return pair, nil
}

// Refresh rotates a refresh token: the presented token is consumed and a new
// pair is issued in the same transaction. A token can be used only once.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh, userAgent string) (*TokenPair, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Refresh")
	defer span.End()

	rawRefresh = strings.TrimSpace(rawRefresh)
	if rawRefresh == "" {
		return nil, ErrInvalidRefreshToken
	}
	hash := s.Hasher.Hash(rawRefresh)
	now := s.now()

	rt, err := repo.FindRefreshToken(ctx, s.DB, hash)
	if errors.Is(err, repo.ErrNotFound) {
		authEvents.WithLabelValues("refresh_rejected").Inc()
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, err
	}
	if rt.Expired(now) {
		if err := repo.ConsumeRefreshToken(ctx, s.DB, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
		authEvents.WithLabelValues("refresh_rejected").Inc()
		return nil, ErrExpiredRefreshToken
	}

	var pair *TokenPair
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := repo.GetParent(ctx, tx, rt.ParentID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrInactiveAccount
		}
		if err != nil {
			return err
		}
		if !p.IsActive {
			return ErrInactiveAccount
		}
		if err := repo.ConsumeRefreshToken(ctx, tx, hash); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrInvalidRefreshToken
			}
			return err
		}
		pair, err = s.issuePair(ctx, tx, p, userAgent)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			authEvents.WithLabelValues("refresh_rejected").Inc()
		}
		return nil, err
	}

	authEvents.WithLabelValues("refresh").Inc()
	zerolog.Ctx(ctx).Debug().Str("parent_id", rt.ParentID).Msg("token refreshed")
	return pair, nil
}

// Logout revokes every access token of the parent by bumping token_version
// and deletes all of its refresh tokens.
func (s *AuthService) Logout(ctx context.Context, parentID string) error {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Logout",
		trace.WithAttributes(attribute.String("parent.id", parentID)))
	defer span.End()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.revokeAll(ctx, tx, parentID)
	})
	if errors.Is(err, repo.ErrNotFound) {
		return ErrParentNotFound
	}
	if err != nil {
		return err
	}
	authEvents.WithLabelValues("logout").Inc()
	return nil
}

func (s *AuthService) revokeAll(ctx context.Context, tx *gorm.DB, parentID string) error {
	if err := repo.BumpTokenVersion(ctx, tx, parentID, s.now()); err != nil {
		return err
	}
	n, err := repo.DeleteRefreshTokens(ctx, tx, parentID)
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Str("parent_id", parentID).Int64("refresh_tokens", n).Msg("tokens revoked")
	return nil
}

// CreateAPIKey issues a new API key. The raw key is returned once.
func (s *AuthService) CreateAPIKey(ctx context.Context, owner string) (string, *domain.APIKey, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "CreateAPIKey")
	defer span.End()

	raw, err := auth.NewOpaqueToken(auth.APIKeyBytes)
	if err != nil {
		return "", nil, err
	}
	k, err := repo.CreateAPIKey(ctx, s.DB, s.Hasher.Hash(raw), strings.TrimSpace(owner), s.now())
	if err != nil {
		return "", nil, err
	}
	zerolog.Ctx(ctx).Info().Str("api_key_id", k.ID).Str("owner", k.Owner).Msg("api key created")
	return raw, k, nil
}

// RevokeAPIKey marks a key revoked. Revoking an already revoked key succeeds.
func (s *AuthService) RevokeAPIKey(ctx context.Context, id string) (*domain.APIKey, error) {
	k, err := repo.RevokeAPIKey(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrAPIKeyNotFound
	}
	return k, err
}

// BootstrapAdmin promotes an existing account to admin.
func (s *AuthService) BootstrapAdmin(ctx context.Context, email string) error {
	err := repo.SetParentRole(ctx, s.DB, NormalizeEmail(email), domain.RoleAdmin, s.now())
	if errors.Is(err, repo.ErrNotFound) {
		return ErrParentNotFound
	}
	return err
}

func (s *AuthService) issuePair(ctx context.Context, tx *gorm.DB, p *domain.Parent, userAgent string) (*TokenPair, error) {
	access, err := s.Issuer.Issue(p.ID, p.Role, p.TokenVersion)
	if err != nil {
		return nil, err
	}
	raw, err := auth.NewOpaqueToken(auth.RefreshTokenBytes)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var ua *string
	if userAgent = strings.TrimSpace(userAgent); userAgent != "" {
		if len(userAgent) > 255 {
			userAgent = userAgent[:255]
		}
		ua = &userAgent
	}
	if _, err := repo.CreateRefreshToken(ctx, tx, p.ID, s.Hasher.Hash(raw), ua, now.Add(s.RefreshTTL), now); err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: raw,
		TokenType:    "bearer",
		ExpiresIn:    int(s.Issuer.TTL().Seconds()),
	}, nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = auth.HashPassword("not-a-real-password", s.BcryptCost)
	})
	return s.dummyHash
}
