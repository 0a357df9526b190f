// Package services – ParentService
//
// ParentService backs the parent dashboard: child profiles, their analytics
// and weekly summaries, and the status of toys paired with the parent's
// children. Every lookup is scoped to the requesting parent; a record owned
// by someone else is reported exactly like a missing one.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-toy-backend/internal/domain"
	"github.com/tbourn/go-toy-backend/internal/repo"
)

// Child profile bounds.
const (
	MaxChildNameRunes = 100
	MinChildAge       = 0
	MaxChildAge       = 18
)

// DefaultOnlineWindow is how recently a toy must have been seen to count as
// online.
const DefaultOnlineWindow = 2 * time.Minute

// ToyStatus is the derived liveness of a toy.
type ToyStatus struct {
	ToyUUID  string     `json:"toy_uuid"`
	IsActive bool       `json:"is_active"`
	LastSeen *time.Time `json:"last_seen"`
}

// ActiveChild names the child currently speaking through a toy.
type ActiveChild struct {
	ToyUUID   string `json:"toy_uuid"`
	ChildID   string `json:"child_id"`
	ChildName string `json:"child_name"`
}

// ParentService implements the parent dashboard.
type ParentService struct {
	DB           *gorm.DB
	OnlineWindow time.Duration

	// Now is the service clock. Defaults to time.Now.
	Now func() time.Time
}

// NewParentService wires a ParentService.
func NewParentService(db *gorm.DB, onlineWindow time.Duration) *ParentService {
	if onlineWindow <= 0 {
		onlineWindow = DefaultOnlineWindow
	}
	return &ParentService{DB: db, OnlineWindow: onlineWindow, Now: time.Now}
}

func (s *ParentService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// ListChildren returns the parent's children, oldest first.
func (s *ParentService) ListChildren(ctx context.Context, parentID string) ([]domain.Child, error) {
	return repo.ListChildren(ctx, s.DB, parentID)
}

// CreateChild adds a child profile and its analytics row. A parent may own
// at most domain.MaxChildrenPerParent children; the count check and insert
// run under the parent's row lock.
func (s *ParentService) CreateChild(ctx context.Context, parentID, name string, age int) (*domain.Child, error) {
	ctx, span := otel.Tracer("services/ParentService").Start(ctx, "CreateChild",
		trace.WithAttributes(attribute.String("parent.id", parentID)))
	defer span.End()

	name = normalizeName(name)
	if name == "" || utf8.RuneCountInString(name) > MaxChildNameRunes {
		return nil, fmt.Errorf("%w: child_name must be 1-%d characters", ErrInvalidInput, MaxChildNameRunes)
	}
	if age < MinChildAge || age > MaxChildAge {
		return nil, fmt.Errorf("%w: age must be between %d and %d", ErrInvalidInput, MinChildAge, MaxChildAge)
	}

	now := s.now()
	var child *domain.Child
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.TouchParent(ctx, tx, parentID, now); err != nil {
			return err
		}
		n, err := repo.CountChildren(ctx, tx, parentID)
		if err != nil {
			return err
		}
		if n >= domain.MaxChildrenPerParent {
			return ErrChildLimit
		}
		child, err = repo.CreateChild(ctx, tx, parentID, name, age, now)
		return err
	})
	switch {
	case errors.Is(err, ErrChildLimit):
		return nil, err
	case errors.Is(err, repo.ErrNotFound):
		return nil, ErrParentNotFound
	case repo.IsIntegrity(err):
		return nil, ErrChildConflict
	case err != nil:
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Str("child_id", child.ID).Str("parent_id", parentID).Msg("child created")
	return child, nil
}

// DeleteChild removes a child profile together with its conversations,
// analytics, summaries and audit rows.
func (s *ParentService) DeleteChild(ctx context.Context, parentID, childID string) error {
	ctx, span := otel.Tracer("services/ParentService").Start(ctx, "DeleteChild",
		trace.WithAttributes(attribute.String("child.id", childID)))
	defer span.End()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetOwnedChild(ctx, tx, childID, parentID); err != nil {
			return err
		}
		return repo.DeleteChild(ctx, tx, childID)
	})
	if errors.Is(err, repo.ErrNotFound) {
		return ErrChildNotFound
	}
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Str("child_id", childID).Msg("child deleted")
	return nil
}

// Analytics returns the counters of an owned child.
func (s *ParentService) Analytics(ctx context.Context, parentID, childID string) (*domain.ChildAnalytics, error) {
	a, err := repo.GetChildAnalytics(ctx, s.DB, childID, parentID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrChildNotFound
	}
	return a, err
}

// WeeklySummary returns the most recent weekly summary of an owned child.
func (s *ParentService) WeeklySummary(ctx context.Context, parentID, childID string) (*domain.WeeklySummary, error) {
	if _, err := repo.GetOwnedChild(ctx, s.DB, childID, parentID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrChildNotFound
		}
		return nil, err
	}
	sum, err := repo.LatestWeeklySummary(ctx, s.DB, childID, parentID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrSummaryNotFound
	}
	return sum, err
}

// ToyStatus reports whether a toy paired with one of the parent's children
// is online: it is iff it was seen less than OnlineWindow ago.
func (s *ParentService) ToyStatus(ctx context.Context, parentID, toyUUID string) (*ToyStatus, error) {
	t, err := repo.GetToyForParent(ctx, s.DB, toyUUID, parentID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrToyNotFound
	}
	if err != nil {
		return nil, err
	}
	st := &ToyStatus{ToyUUID: t.ToyUUID}
	if t.LastSeen != nil {
		seen := t.LastSeen.UTC()
		st.LastSeen = &seen
		st.IsActive = s.now().Sub(seen) < s.OnlineWindow
	}
	return st, nil
}

// ActiveChild returns the child currently set on a toy, provided it belongs
// to the parent and is still paired with the toy.
func (s *ParentService) ActiveChild(ctx context.Context, parentID, toyUUID string) (*ActiveChild, error) {
	t, c, err := repo.GetActiveChildForParent(ctx, s.DB, toyUUID, parentID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrActiveChildNotSet
	}
	if err != nil {
		return nil, err
	}
	return &ActiveChild{ToyUUID: t.ToyUUID, ChildID: c.ID, ChildName: c.ChildName}, nil
}

var spaceRE = regexp.MustCompile(`\s+`)

// normalizeName trims and collapses internal whitespace.
func normalizeName(s string) string {
	return spaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}
