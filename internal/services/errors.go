// Package services defines the business logic for accounts, children, toys
// and the admin audit views.
// This file centralizes service-level error values so that they can be
// returned by service methods and checked by callers with errors.Is.
//
// Translation into HTTP status codes happens in the handler layer.
package services

import "errors"

// Input validation.
var (
	// ErrInvalidInput wraps field-level validation failures.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyQuestion is returned when a toy submits a blank question.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrQuestionTooLong is returned when a question exceeds MaxQuestionRunes.
	ErrQuestionTooLong = errors.New("question too long")
)

// Account and credential errors.
var (
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInactiveAccount     = errors.New("account is disabled")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrExpiredRefreshToken = errors.New("refresh token expired")

	// ErrMissingCredential means no bearer token or API key was presented.
	ErrMissingCredential = errors.New("missing credentials")

	// ErrRevokedToken means the access token predates a logout or deactivation.
	ErrRevokedToken = errors.New("token revoked")

	// ErrInvalidCredential means the API key is unknown.
	ErrInvalidCredential = errors.New("invalid api key")

	// ErrRevokedCredential means the API key exists but was revoked.
	ErrRevokedCredential = errors.New("api key revoked")

	ErrAdminOnly      = errors.New("admin access only")
	ErrParentNotFound = errors.New("parent not found")
	ErrAPIKeyNotFound = errors.New("api key not found")
)

// Children and toys.
var (
	// ErrChildLimit is returned when a parent already owns the maximum number
	// of children.
	ErrChildLimit = errors.New("maximum 3 children allowed per parent")

	// ErrChildConflict is returned when child creation hits a storage
	// integrity error.
	ErrChildConflict = errors.New("child creation conflict")

	// ErrChildNotFound indicates the child does not exist or is not owned by
	// the requester.
	ErrChildNotFound = errors.New("child not found")

	// ErrChildNotOwned is returned by pairing operations when the child
	// belongs to someone else.
	ErrChildNotOwned = errors.New("child does not belong to parent")

	ErrSummaryNotFound = errors.New("weekly summary not found")
	ErrToyNotFound     = errors.New("toy not found")
	ErrToyExists       = errors.New("toy already registered")

	// ErrChildNotPaired is returned when a child is made active on a toy it
	// is not paired with.
	ErrChildNotPaired = errors.New("child is not paired with this toy")

	// ErrNoActiveChild is returned when a toy has no usable active child.
	ErrNoActiveChild = errors.New("no active child set for this toy")

	// ErrActiveChildNotSet is the dashboard's view of a toy without a
	// usable active child.
	ErrActiveChildNotSet = errors.New("no active child set")

	// ErrInvalidToy is returned when a toy is unknown or inactive.
	ErrInvalidToy = errors.New("invalid or inactive toy")
)
