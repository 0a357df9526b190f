// Toy HTTP handlers.
//
// Parent-facing (bearer):
//   - POST /toy/pair               (link a child to a toy, idempotent)
//   - POST /toy/set-active-child   (choose who speaks through the toy)
//
// Device-facing (X-API-Key + X-Toy-UUID):
//   - POST /toy/ask                (question in, answer out)
//   - POST /toy/heartbeat          (liveness)
//
// Idempotency:
// If the toy supplies an Idempotency-Key header and an unexpired answer
// exists for (toy, key), the stored answer is returned with
// `Idempotency-Replayed: true` and nothing is counted twice.
package handlers

import (
	"io"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-toy-backend/internal/http/middleware"
	"github.com/tbourn/go-toy-backend/internal/services"
)

// HeaderIdempotencyReplayed marks a response served from an earlier request.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

//
// DTOs
//

// ToyChildRequest names a toy and one of the caller's children. The fields
// may also be sent as query parameters of the same name.
type ToyChildRequest struct {
	ToyUUID string `json:"toy_uuid" form:"toy_uuid" example:"9f6c1c2e-1d44-4a7a-b6a8-6f0e0f9b6a10"`
	ChildID string `json:"child_id" form:"child_id" example:"2c1f7a8e-5d0b-4f7a-9c61-0d9a1e2b3c4d"`
}

// AskRequest is the JSON payload of a toy question.
type AskRequest struct {
	// Question is the child's utterance, already transcribed.
	Question string `json:"question" binding:"required" example:"Why is the sky blue?"`
}

//
// Helpers
//

// bindToyChild reads toy_uuid and child_id from a JSON body, falling back to
// the query string. Both must be UUIDs.
func bindToyChild(c *gin.Context) (ToyChildRequest, bool) {
	var req ToyChildRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		badRequest(c, "invalid JSON body")
		return req, false
	}
	if req.ToyUUID == "" {
		req.ToyUUID = c.Query("toy_uuid")
	}
	if req.ChildID == "" {
		req.ChildID = c.Query("child_id")
	}
	req.ToyUUID = strings.TrimSpace(req.ToyUUID)
	req.ChildID = strings.TrimSpace(req.ChildID)
	if _, err := uuid.Parse(req.ToyUUID); err != nil {
		badRequest(c, "toy_uuid must be a UUID")
		return req, false
	}
	if _, err := uuid.Parse(req.ChildID); err != nil {
		badRequest(c, "child_id must be a UUID")
		return req, false
	}
	return req, true
}

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeQuestion normalizes line endings, collapses blank-line runs and
// trims surrounding whitespace.
func sanitizeQuestion(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

//
// Handlers
//

// PairToy godoc
// @ID          pairToy
// @Summary     Pair a toy with a child
// @Description Links one of the caller's children to a toy, marking the toy active. Repeating the call reports already_paired.
// @Tags        Toys
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body      body   handlers.ToyChildRequest  false  "Toy and child"
// @Param       toy_uuid  query  string  false  "Toy UUID (when no body)"  format(uuid)
// @Param       child_id  query  string  false  "Child ID (when no body)"  format(uuid)
// @Success     200  {object}  handlers.StatusResponse  "paired or already_paired"
// @Failure     400  {object}  handlers.ErrorResponse   "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse   "Child not owned"
// @Failure     404  {object}  handlers.ErrorResponse   "Toy not found"
// @Router      /toy/pair [post]
func (h *Handlers) PairToy(c *gin.Context) {
	req, valid := bindToyChild(c)
	if !valid {
		return
	}
	status, err := h.toySvc.Pair(c.Request.Context(), parentID(c), req.ToyUUID, req.ChildID)
	if err != nil {
		WriteError(c, err)
		return
	}
	writeStatus(c, status)
}

// SetActiveChild godoc
// @ID          setActiveChild
// @Summary     Choose the active child of a toy
// @Description The child must belong to the caller and already be paired with the toy.
// @Tags        Toys
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body      body   handlers.ToyChildRequest  false  "Toy and child"
// @Param       toy_uuid  query  string  false  "Toy UUID (when no body)"  format(uuid)
// @Param       child_id  query  string  false  "Child ID (when no body)"  format(uuid)
// @Success     200  {object}  handlers.StatusResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Child not owned"
// @Failure     404  {object}  handlers.ErrorResponse  "Toy not paired with the caller's children"
// @Failure     409  {object}  handlers.ErrorResponse  "Child not paired with this toy"
// @Router      /toy/set-active-child [post]
func (h *Handlers) SetActiveChild(c *gin.Context) {
	req, valid := bindToyChild(c)
	if !valid {
		return
	}
	if err := h.toySvc.SetActiveChild(c.Request.Context(), parentID(c), req.ToyUUID, req.ChildID); err != nil {
		WriteError(c, err)
		return
	}
	writeStatus(c, "active_child_set")
}

// Ask godoc
// @ID          askToy
// @Summary     Ask a question through a toy
// @Description Answers for the toy's active child and records the exchange, analytics and weekly summary atomically.
// @Description Supports idempotency via the Idempotency-Key header (same key → same answer, counted once).
// @Tags        Toys
// @Accept      json
// @Produce     json
// @Security    APIKeyAuth
// @Param       X-Toy-UUID       header  string  true   "Toy UUID"  format(uuid)
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries"
// @Param       body             body    handlers.AskRequest  true  "Question"
// @Success     200  {object}  services.AskResult
// @Header      200  {string}  Idempotency-Replayed  "true when served from an earlier request"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid API key or toy"
// @Failure     409  {object}  handlers.ErrorResponse  "No active child"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Router      /toy/ask [post]
func (h *Handlers) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "question is required")
		return
	}
	key, _ := middleware.GetIdempotencyKey(c)
	res, err := h.toySvc.Ask(c.Request.Context(), services.AskInput{
		ToyUUID:        middleware.ToyUUIDFrom(c),
		Question:       sanitizeQuestion(req.Question),
		IdempotencyKey: key,
	})
	if err != nil {
		WriteError(c, err)
		return
	}
	if res.Replayed {
		c.Header(HeaderIdempotencyReplayed, "true")
	}
	ok(c, res)
}

// Heartbeat godoc
// @ID          toyHeartbeat
// @Summary     Toy liveness ping
// @Tags        Toys
// @Produce     json
// @Security    APIKeyAuth
// @Param       X-Toy-UUID  header  string  true  "Toy UUID"  format(uuid)
// @Success     200  {object}  handlers.StatusResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid API key or toy"
// @Router      /toy/heartbeat [post]
func (h *Handlers) Heartbeat(c *gin.Context) {
	if err := h.toySvc.Heartbeat(c.Request.Context(), middleware.ToyUUIDFrom(c)); err != nil {
		WriteError(c, err)
		return
	}
	writeStatus(c, "ok")
}
