// Package services – AdminService
//
// AdminService exposes the audit log of every stored message and account
// moderation. Callers must already have checked the admin role.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-toy-backend/internal/domain"
	"github.com/tbourn/go-toy-backend/internal/repo"
)

// Audit page bounds.
const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 500
)

// AuditPage is one page of audit rows.
type AuditPage struct {
	Items  []domain.MessageLog `json:"items"`
	Total  int64               `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// AdminService implements the admin views.
type AdminService struct {
	DB   *gorm.DB
	Auth *AuthService

	// Now is the service clock. Defaults to time.Now.
	Now func() time.Time
}

// ValidatePage checks admin pagination parameters.
func ValidatePage(limit, offset int) error {
	if limit < 1 || limit > MaxAuditLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidInput, MaxAuditLimit)
	}
	if offset < 0 {
		return fmt.Errorf("%w: offset must be >= 0", ErrInvalidInput)
	}
	return nil
}

// Messages lists every audit row, newest first.
func (s *AdminService) Messages(ctx context.Context, limit, offset int) (*AuditPage, error) {
	return s.list(ctx, repo.AuditFilter{}, limit, offset)
}

// ChildMessages lists the audit rows of one child.
func (s *AdminService) ChildMessages(ctx context.Context, childID string, limit, offset int) (*AuditPage, error) {
	return s.list(ctx, repo.AuditFilter{ChildID: childID}, limit, offset)
}

// ToyMessages lists the audit rows produced through one toy. An unknown toy
// yields an empty page.
func (s *AdminService) ToyMessages(ctx context.Context, toyUUID string, limit, offset int) (*AuditPage, error) {
	if err := ValidatePage(limit, offset); err != nil {
		return nil, err
	}
	toy, err := repo.GetToyByUUID(ctx, s.DB, toyUUID)
	if errors.Is(err, repo.ErrNotFound) {
		return &AuditPage{Items: []domain.MessageLog{}, Limit: limit, Offset: offset}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.list(ctx, repo.AuditFilter{ToyID: toy.ID}, limit, offset)
}

func (s *AdminService) list(ctx context.Context, f repo.AuditFilter, limit, offset int) (*AuditPage, error) {
	ctx, span := otel.Tracer("services/AdminService").Start(ctx, "ListMessages",
		trace.WithAttributes(
			attribute.Int("limit", limit),
			attribute.Int("offset", offset),
		))
	defer span.End()

	if err := ValidatePage(limit, offset); err != nil {
		return nil, err
	}
	items, total, err := repo.ListMessageLogs(ctx, s.DB, f, offset, limit)
	if err != nil {
		return nil, err
	}
	return &AuditPage{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// DeactivateParent disables an account and revokes all of its tokens.
func (s *AdminService) DeactivateParent(ctx context.Context, parentID string) error {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.SetParentActive(ctx, tx, parentID, false, now); err != nil {
			return err
		}
		return s.Auth.revokeAll(ctx, tx, parentID)
	})
	if errors.Is(err, repo.ErrNotFound) {
		return ErrParentNotFound
	}
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Str("parent_id", parentID).Msg("parent deactivated")
	return nil
}
