// Package handlers provides HTTP handler implementations for the public API.
//
// Handlers are transport-thin: they bind and validate input, call the
// application services through the narrow interfaces below, and translate
// results into JSON responses or error envelopes (see WriteError).
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-toy-backend/internal/domain"
	"github.com/tbourn/go-toy-backend/internal/http/middleware"
	"github.com/tbourn/go-toy-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// AuthService defines the account and credential flows.
type AuthService interface {
	Signup(ctx context.Context, in services.SignupInput) (*domain.Parent, error)
	Login(ctx context.Context, email, password, userAgent string) (*services.TokenPair, error)
	Refresh(ctx context.Context, rawRefresh, userAgent string) (*services.TokenPair, error)
	Logout(ctx context.Context, parentID string) error
	CreateAPIKey(ctx context.Context, owner string) (string, *domain.APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) (*domain.APIKey, error)
}

// ParentService defines the parent dashboard operations. Every call is
// scoped to the requesting parent.
type ParentService interface {
	ListChildren(ctx context.Context, parentID string) ([]domain.Child, error)
	CreateChild(ctx context.Context, parentID, name string, age int) (*domain.Child, error)
	DeleteChild(ctx context.Context, parentID, childID string) error
	Analytics(ctx context.Context, parentID, childID string) (*domain.ChildAnalytics, error)
	WeeklySummary(ctx context.Context, parentID, childID string) (*domain.WeeklySummary, error)
	ToyStatus(ctx context.Context, parentID, toyUUID string) (*services.ToyStatus, error)
	ActiveChild(ctx context.Context, parentID, toyUUID string) (*services.ActiveChild, error)
}

// ToyService defines pairing and the toy-facing endpoints.
type ToyService interface {
	Pair(ctx context.Context, parentID, toyUUID, childID string) (string, error)
	SetActiveChild(ctx context.Context, parentID, toyUUID, childID string) error
	Heartbeat(ctx context.Context, toyUUID string) error
	Ask(ctx context.Context, in services.AskInput) (*services.AskResult, error)
	RegisterToy(ctx context.Context, toyUUID, modelNo, firmware string) (*domain.Toy, error)
}

// AdminService defines the audit views and moderation.
type AdminService interface {
	Messages(ctx context.Context, limit, offset int) (*services.AuditPage, error)
	ChildMessages(ctx context.Context, childID string, limit, offset int) (*services.AuditPage, error)
	ToyMessages(ctx context.Context, toyUUID string, limit, offset int) (*services.AuditPage, error)
	DeactivateParent(ctx context.Context, parentID string) error
}

//
// Handler wiring
//

// Handlers groups every HTTP endpoint of the API.
type Handlers struct {
	authSvc   AuthService
	parentSvc ParentService
	toySvc    ToyService
	adminSvc  AdminService
}

// New constructs Handlers bound to the given services.
func New(authSvc AuthService, parentSvc ParentService, toySvc ToyService, adminSvc AdminService) *Handlers {
	return &Handlers{authSvc: authSvc, parentSvc: parentSvc, toySvc: toySvc, adminSvc: adminSvc}
}

// parentID returns the id of the authenticated parent. Routes using it sit
// behind middleware.RequireParent.
func parentID(c *gin.Context) string {
	if p := middleware.ParentFrom(c); p != nil {
		return p.ID
	}
	return ""
}

// uuidParam reads a path parameter that must be a UUID. On failure it writes
// a 400 and returns ok=false.
func uuidParam(c *gin.Context, name string) (string, bool) {
	v := c.Param(name)
	if _, err := uuid.Parse(v); err != nil {
		badRequest(c, name+" must be a UUID")
		return "", false
	}
	return v, true
}
