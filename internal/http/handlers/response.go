// Package handlers provides HTTP handler implementations for the public API.
//
// Every failure is written as an ErrorResponse with a stable code:
//
//	HTTP/1.1 409 Conflict
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "conflict",
//	  "message": "maximum 3 children allowed per parent"
//	}
//
// Endpoints that only report an outcome answer with a StatusResponse such as
// {"status": "paired"}.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-toy-backend/internal/http/middleware"
)

// headerRequestID is echoed into every error envelope.
const headerRequestID = "X-Request-ID"

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// Echo of X-Request-ID for log correlation
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go)
	Code string `json:"code" example:"not_found"`
	// Safe to show to users
	Message string `json:"message" example:"resource not found"`
}

// StatusResponse is the body of endpoints that only report an outcome.
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// fail aborts with an ErrorResponse. Server errors are logged with the
// request-scoped logger; client errors are left to the access log.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("route", c.FullPath()).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get(headerRequestID),
		Code:      code,
		Message:   msg,
	})
}

// Fail is fail for callers outside the package, such as router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes body with 200.
func ok(c *gin.Context, body any) { c.JSON(http.StatusOK, body) }

// created writes body with 201.
func created(c *gin.Context, body any) { c.JSON(http.StatusCreated, body) }

// writeStatus answers 200 with {"status": s}.
func writeStatus(c *gin.Context, s string) { ok(c, StatusResponse{Status: s}) }

func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }
