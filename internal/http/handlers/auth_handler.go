// Auth HTTP handlers.
//
// This file exposes the account and credential endpoints:
//   - POST /auth/signup
//   - POST /auth/login
//   - POST /auth/refresh
//   - POST /auth/logout              (bearer)
//   - GET  /auth/me                  (bearer)
//   - POST /auth/apikey/create       (bearer, admin)
//   - POST /auth/apikey/{id}/revoke  (bearer, admin)
package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-toy-backend/internal/http/middleware"
	"github.com/tbourn/go-toy-backend/internal/services"
)

//
// DTOs
//

// SignupRequest is the JSON payload for creating an account.
type SignupRequest struct {
	Name     string  `json:"name"     binding:"required" example:"Maria Papadopoulou"`
	Email    string  `json:"email"    binding:"required" example:"maria@example.com"`
	Password string  `json:"password" binding:"required" example:"correct-horse-battery"`
	Phone    *string `json:"phone"    example:"+302101234567"`
}

// SignupResponse identifies the new account.
type SignupResponse struct {
	ID    string `json:"id"    example:"0b9d7c1e-3f5a-4c57-9a43-2f6f7d0e8b21"`
	Email string `json:"email" example:"maria@example.com"`
}

// LoginRequest is the JSON payload for password login.
type LoginRequest struct {
	Email    string `json:"email"    binding:"required" example:"maria@example.com"`
	Password string `json:"password" binding:"required" example:"correct-horse-battery"`
}

// RefreshRequest carries the refresh token to rotate.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// CreateAPIKeyRequest names the owner of a new machine key.
type CreateAPIKeyRequest struct {
	Owner string `json:"owner" binding:"required" example:"toy-fleet-eu"`
}

// CreateAPIKeyResponse returns the raw key. It is shown exactly once.
type CreateAPIKeyResponse struct {
	APIKey string `json:"api_key"`
	Owner  string `json:"owner" example:"toy-fleet-eu"`
	ID     string `json:"id"    example:"5e0c9d0a-95a4-4a8e-8b0f-41a8d2a4f7c3"`
}

//
// Handlers
//

// Signup godoc
// @ID          signup
// @Summary     Create a parent account
// @Description Registers a parent. Email is case-insensitive and unique; the password needs at least 10 characters and at most 72 bytes.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.SignupRequest  true  "Account details"
// @Success     201   {object}  handlers.SignupResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Validation error or email taken"
// @Failure     500   {object}  handlers.ErrorResponse  "Internal error"
// @Router      /auth/signup [post]
func (h *Handlers) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name, email and password are required")
		return
	}
	p, err := h.authSvc.Signup(c.Request.Context(), services.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		WriteError(c, err)
		return
	}
	created(c, SignupResponse{ID: p.ID, Email: p.Email})
}

// Login godoc
// @ID          login
// @Summary     Log in with email and password
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.LoginRequest  true  "Credentials"
// @Success     200   {object}  services.TokenPair
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401   {object}  handlers.ErrorResponse  "Invalid credentials"
// @Failure     403   {object}  handlers.ErrorResponse  "Account disabled"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}
	pair, err := h.authSvc.Login(c.Request.Context(), req.Email, req.Password, c.Request.UserAgent())
	if err != nil {
		WriteError(c, err)
		return
	}
	ok(c, pair)
}

// Refresh godoc
// @ID          refreshToken
// @Summary     Rotate a refresh token
// @Description Exchanges a refresh token for a new access and refresh token. The presented token is consumed.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.RefreshRequest  true  "Refresh token"
// @Success     200   {object}  services.TokenPair
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401   {object}  handlers.ErrorResponse  "Invalid or expired refresh token"
// @Router      /auth/refresh [post]
func (h *Handlers) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		badRequest(c, "refresh_token is required")
		return
	}
	pair, err := h.authSvc.Refresh(c.Request.Context(), strings.TrimSpace(req.RefreshToken), c.Request.UserAgent())
	if err != nil {
		WriteAuthError(c, err)
		return
	}
	ok(c, pair)
}

// Logout godoc
// @ID          logout
// @Summary     Log out everywhere
// @Description Revokes every access token of the caller and deletes all of their refresh tokens.
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.StatusResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /auth/logout [post]
func (h *Handlers) Logout(c *gin.Context) {
	if err := h.authSvc.Logout(c.Request.Context(), parentID(c)); err != nil {
		WriteAuthError(c, err)
		return
	}
	writeStatus(c, "logged_out")
}

// Me godoc
// @ID          me
// @Summary     Current parent profile
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.Parent
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /auth/me [get]
func (h *Handlers) Me(c *gin.Context) {
	p := middleware.ParentFrom(c)
	if p == nil {
		WriteError(c, services.ErrMissingCredential)
		return
	}
	ok(c, p)
}

// CreateAPIKey godoc
// @ID          createAPIKey
// @Summary     Create a machine API key
// @Description Admin only. The raw key is returned once and cannot be recovered.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.CreateAPIKeyRequest  true  "Key owner"
// @Success     200   {object}  handlers.CreateAPIKeyResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401   {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403   {object}  handlers.ErrorResponse  "Admin only"
// @Router      /auth/apikey/create [post]
func (h *Handlers) CreateAPIKey(c *gin.Context) {
	var req CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Owner) == "" {
		badRequest(c, "owner is required")
		return
	}
	raw, key, err := h.authSvc.CreateAPIKey(c.Request.Context(), strings.TrimSpace(req.Owner))
	if err != nil {
		WriteError(c, err)
		return
	}
	ok(c, CreateAPIKeyResponse{APIKey: raw, Owner: key.Owner, ID: key.ID})
}

// RevokeAPIKey godoc
// @ID          revokeAPIKey
// @Summary     Revoke a machine API key
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "API key ID (UUID)"  format(uuid)
// @Success     200  {object}  domain.APIKey
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Admin only"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown key"
// @Router      /auth/apikey/{id}/revoke [post]
func (h *Handlers) RevokeAPIKey(c *gin.Context) {
	id, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	key, err := h.authSvc.RevokeAPIKey(c.Request.Context(), id)
	if err != nil {
		WriteError(c, err)
		return
	}
	ok(c, key)
}
