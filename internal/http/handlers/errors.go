// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes the symbolic error codes and the table that maps
// service and credential errors onto (status, code, message). Handlers and
// the auth middleware both report failures through WriteError so clients see
// one taxonomy:
//
//	400 validation_error | bad_request
//	401 unauthorized
//	403 forbidden
//	404 not_found
//	409 conflict
//	429 rate_limited
//	500 internal_error
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "conflict",
//	  "message": "maximum 3 children allowed per parent"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-toy-backend/internal/auth"
	"github.com/tbourn/go-toy-backend/internal/services"
)

const (
	ErrCodeValidation   = "validation_error"
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeInternal     = "internal_error"

	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// errorMapping binds a sentinel error to its HTTP representation. The
// sentinel's own text is the message.
type errorMapping struct {
	err    error
	status int
	code   string
}

var errorTable = []errorMapping{
	// 400
	{services.ErrInvalidInput, http.StatusBadRequest, ErrCodeValidation},
	{services.ErrEmptyQuestion, http.StatusBadRequest, ErrCodeValidation},
	{services.ErrQuestionTooLong, http.StatusBadRequest, ErrCodeValidation},
	{services.ErrEmailTaken, http.StatusBadRequest, ErrCodeValidation},
	{auth.ErrPasswordTooShort, http.StatusBadRequest, ErrCodeValidation},
	{auth.ErrPasswordTooLong, http.StatusBadRequest, ErrCodeValidation},

	// 401
	{services.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeUnauthorized},
	{services.ErrInvalidRefreshToken, http.StatusUnauthorized, ErrCodeUnauthorized},
	{services.ErrExpiredRefreshToken, http.StatusUnauthorized, ErrCodeUnauthorized},
	{services.ErrMissingCredential, http.StatusUnauthorized, ErrCodeUnauthorized},
	{services.ErrRevokedToken, http.StatusUnauthorized, ErrCodeUnauthorized},
	{services.ErrInvalidCredential, http.StatusUnauthorized, ErrCodeUnauthorized},
	{services.ErrInvalidToy, http.StatusUnauthorized, ErrCodeUnauthorized},
	{auth.ErrInvalidToken, http.StatusUnauthorized, ErrCodeUnauthorized},
	{auth.ErrExpiredToken, http.StatusUnauthorized, ErrCodeUnauthorized},

	// 403
	{services.ErrInactiveAccount, http.StatusForbidden, ErrCodeForbidden},
	{services.ErrRevokedCredential, http.StatusForbidden, ErrCodeForbidden},
	{services.ErrAdminOnly, http.StatusForbidden, ErrCodeForbidden},
	{services.ErrChildNotOwned, http.StatusForbidden, ErrCodeForbidden},

	// 404
	{services.ErrParentNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrAPIKeyNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrChildNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrSummaryNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrToyNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrActiveChildNotSet, http.StatusNotFound, ErrCodeNotFound},

	// 409
	{services.ErrChildLimit, http.StatusConflict, ErrCodeConflict},
	{services.ErrChildConflict, http.StatusConflict, ErrCodeConflict},
	{services.ErrToyExists, http.StatusConflict, ErrCodeConflict},
	{services.ErrChildNotPaired, http.StatusConflict, ErrCodeConflict},
	{services.ErrNoActiveChild, http.StatusConflict, ErrCodeConflict},
}

// classify returns the status, code and client message for err. Unknown
// errors are internal; their text is never sent to the client.
func classify(err error) (int, string, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			msg := m.err.Error()
			if m.status == http.StatusBadRequest {
				// Validation errors carry field details after the sentinel.
				msg = err.Error()
			}
			return m.status, m.code, msg
		}
	}
	return http.StatusInternalServerError, ErrCodeInternal, "internal server error"
}

// WriteError aborts the request with the envelope for err. It satisfies
// middleware.ErrorWriter.
func WriteError(c *gin.Context, err error) {
	status, code, msg := classify(err)
	if status >= http.StatusInternalServerError {
		// Surfaces on the access log line; the client only sees msg.
		_ = c.Error(err)
	}
	fail(c, status, code, msg)
}

// WriteAuthError is WriteError for credential checks where an inactive
// account is an authentication failure rather than a refusal.
func WriteAuthError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrInactiveAccount) {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
		return
	}
	WriteError(c, err)
}

// badRequest reports malformed JSON, query parameters or path ids.
func badRequest(c *gin.Context, msg string) {
	fail(c, http.StatusBadRequest, ErrCodeBadRequest, msg)
}
