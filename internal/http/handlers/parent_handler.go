// Parent dashboard HTTP handlers.
//
// This file exposes the endpoints a logged-in parent uses:
//   - GET    /parent/children                      (list, ETag support)
//   - POST   /parent/children                      (create, max 3)
//   - DELETE /parent/child/{id}
//   - GET    /parent/child/{id}/analytics
//   - GET    /parent/child/{id}/weekly-summary
//   - GET    /parent/toy/{uuid}/status
//   - GET    /parent/toy/{uuid}/active-child
//
// A child or toy that exists but belongs to another parent is reported as
// not found.
package handlers

import (
	"fmt"
	"hash/fnv"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-toy-backend/internal/domain"
)

//
// DTOs
//

// CreateChildRequest is the JSON payload for adding a child profile.
type CreateChildRequest struct {
	// ChildName is 1-100 characters after whitespace normalization.
	ChildName string `json:"child_name" binding:"required" example:"Eleni"`
	// Age is 0-18.
	Age *int `json:"age" binding:"required" example:"6"`
}

//
// Handlers
//

// ListChildren godoc
// @ID          listChildren
// @Summary     List the caller's children
// @Description Returns the caller's child profiles, oldest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Parent
// @Produce     json
// @Security    BearerAuth
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {array}   domain.Child
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /parent/children [get]
func (h *Handlers) ListChildren(c *gin.Context) {
	items, err := h.parentSvc.ListChildren(c.Request.Context(), parentID(c))
	if err != nil {
		WriteError(c, err)
		return
	}

	etag := childrenETag(items)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return
	}
	ok(c, items)
}

// childrenETag fingerprints the fields a listing shows, pairing included.
func childrenETag(items []domain.Child) string {
	h := fnv.New64a()
	for _, ch := range items {
		toy := ""
		if ch.ToyID != nil {
			toy = *ch.ToyID
		}
		fmt.Fprintf(h, "%s|%s|%s|%d;", ch.ID, toy, ch.ChildName, ch.Age)
	}
	return fmt.Sprintf(`W/"children:%d:%x"`, len(items), h.Sum64())
}

// CreateChild godoc
// @ID          createChild
// @Summary     Add a child profile
// @Description Creates a child with an empty analytics record. A parent may have at most 3 children.
// @Tags        Parent
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.CreateChildRequest  true  "Child profile"
// @Success     200   {object}  domain.Child
// @Failure     400   {object}  handlers.ErrorResponse  "Validation error"
// @Failure     401   {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     409   {object}  handlers.ErrorResponse  "Child limit reached"
// @Router      /parent/children [post]
func (h *Handlers) CreateChild(c *gin.Context) {
	var req CreateChildRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Age == nil {
		badRequest(c, "child_name and age are required")
		return
	}
	child, err := h.parentSvc.CreateChild(c.Request.Context(), parentID(c), req.ChildName, *req.Age)
	if err != nil {
		WriteError(c, err)
		return
	}
	ok(c, child)
}

// DeleteChild godoc
// @ID          deleteChild
// @Summary     Delete a child profile
// @Description Removes the child and everything recorded for it (conversations, analytics, summaries).
// @Tags        Parent
// @Security    BearerAuth
// @Param       id   path      string  true  "Child ID (UUID)"  format(uuid)
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Child not found"
// @Router      /parent/child/{id} [delete]
func (h *Handlers) DeleteChild(c *gin.Context) {
	id, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	if err := h.parentSvc.DeleteChild(c.Request.Context(), parentID(c), id); err != nil {
		WriteError(c, err)
		return
	}
	noContent(c)
}

// ChildAnalytics godoc
// @ID          childAnalytics
// @Summary     Usage counters of a child
// @Tags        Parent
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Child ID (UUID)"  format(uuid)
// @Success     200  {object}  domain.ChildAnalytics
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Child not found"
// @Router      /parent/child/{id}/analytics [get]
func (h *Handlers) ChildAnalytics(c *gin.Context) {
	id, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	a, err := h.parentSvc.Analytics(c.Request.Context(), parentID(c), id)
	if err != nil {
		WriteError(c, err)
		return
	}
	ok(c, a)
}

// WeeklySummary godoc
// @ID          weeklySummary
// @Summary     Latest weekly summary of a child
// @Tags        Parent
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Child ID (UUID)"  format(uuid)
// @Success     200  {object}  domain.WeeklySummary
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Child or summary not found"
// @Router      /parent/child/{id}/weekly-summary [get]
func (h *Handlers) WeeklySummary(c *gin.Context) {
	id, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	sum, err := h.parentSvc.WeeklySummary(c.Request.Context(), parentID(c), id)
	if err != nil {
		WriteError(c, err)
		return
	}
	ok(c, sum)
}

// ToyStatus godoc
// @ID          toyStatus
// @Summary     Online status of a paired toy
// @Description A toy is online when its last heartbeat is less than the online window (default 2 minutes) old.
// @Tags        Parent
// @Produce     json
// @Security    BearerAuth
// @Param       uuid  path      string  true  "Toy UUID"  format(uuid)
// @Success     200   {object}  services.ToyStatus
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404   {object}  handlers.ErrorResponse  "Toy not found"
// @Router      /parent/toy/{uuid}/status [get]
func (h *Handlers) ToyStatus(c *gin.Context) {
	toyUUID, valid := uuidParam(c, "uuid")
	if !valid {
		return
	}
	st, err := h.parentSvc.ToyStatus(c.Request.Context(), parentID(c), toyUUID)
	if err != nil {
		WriteError(c, err)
		return
	}
	ok(c, st)
}

// ActiveChild godoc
// @ID          activeChild
// @Summary     Child currently speaking through a toy
// @Tags        Parent
// @Produce     json
// @Security    BearerAuth
// @Param       uuid  path      string  true  "Toy UUID"  format(uuid)
// @Success     200   {object}  services.ActiveChild
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404   {object}  handlers.ErrorResponse  "No active child"
// @Router      /parent/toy/{uuid}/active-child [get]
func (h *Handlers) ActiveChild(c *gin.Context) {
	toyUUID, valid := uuidParam(c, "uuid")
	if !valid {
		return
	}
	ac, err := h.parentSvc.ActiveChild(c.Request.Context(), parentID(c), toyUUID)
	if err != nil {
		WriteError(c, err)
		return
	}
	ok(c, ac)
}
