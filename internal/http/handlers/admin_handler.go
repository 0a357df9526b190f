// Admin HTTP handlers.
//
// Every route here sits behind RequireParent + RequireAdmin:
//   - GET  /admin/messages                      (audit log, paginated)
//   - GET  /admin/child/{id}/messages
//   - GET  /admin/toy/{uuid}/messages
//   - POST /admin/toys                          (register a device)
//   - POST /admin/parents/{id}/deactivate
//
// Pagination uses limit (1..500, default 50) and offset (>= 0).
package handlers

import (

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-toy-backend/internal/services"
	"github.com/tbourn/go-toy-backend/internal/utils"
)

// RegisterToyRequest is the JSON payload for adding a device to the fleet.
type RegisterToyRequest struct {
	// ToyUUID is optional; a fresh UUID is assigned when empty.
	ToyUUID         string `json:"toy_uuid" example:"9f6c1c2e-1d44-4a7a-b6a8-6f0e0f9b6a10"`
	ModelNo         string `json:"model_no" example:"TB-2"`
	FirmwareVersion string `json:"firmware_version" example:"1.4.0"`
}

// pageParams reads limit and offset from the query string. Malformed values
// are answered with 400 bad_request; range checks are left to the service.
func pageParams(c *gin.Context) (limit, offset int, valid bool) {
	limit, okL := utils.QueryInt(c.Query("limit"), services.DefaultAuditLimit)
	offset, okO := utils.QueryInt(c.Query("offset"), 0)
	if !okL || !okO {
		badRequest(c, "limit and offset must be integers")
		return 0, 0, false
	}
	return limit, offset, true
}

// AdminMessages godoc
// @ID          adminMessages
// @Summary     Audit log of all messages
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       limit   query     int  false  "Page size (1..500)"  default(50)
// @Param       offset  query     int  false  "Rows to skip"        default(0)
// @Success     200     {object}  services.AuditPage
// @Failure     400     {object}  handlers.ErrorResponse  "Bad pagination"
// @Failure     403     {object}  handlers.ErrorResponse  "Admin only"
// @Router      /admin/messages [get]
func (h *Handlers) AdminMessages(c *gin.Context) {
	limit, offset, valid := pageParams(c)
	if !valid {
		return
	}
	page, err := h.adminSvc.Messages(c.Request.Context(), limit, offset)
	if err != nil {
		WriteError(c, err)
		return
	}
	ok(c, page)
}

// AdminChildMessages godoc
// @ID          adminChildMessages
// @Summary     Audit log of one child
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       id      path      string  true   "Child ID (UUID)"  format(uuid)
// @Param       limit   query     int     false  "Page size (1..500)"  default(50)
// @Param       offset  query     int     false  "Rows to skip"        default(0)
// @Success     200     {object}  services.AuditPage
// @Failure     400     {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403     {object}  handlers.ErrorResponse  "Admin only"
// @Router      /admin/child/{id}/messages [get]
func (h *Handlers) AdminChildMessages(c *gin.Context) {
	id, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	limit, offset, valid := pageParams(c)
	if !valid {
		return
	}
	page, err := h.adminSvc.ChildMessages(c.Request.Context(), id, limit, offset)
	if err != nil {
		WriteError(c, err)
		return
	}
	ok(c, page)
}

// AdminToyMessages godoc
// @ID          adminToyMessages
// @Summary     Audit log of one toy
// @Description An unknown toy yields an empty page.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       uuid    path      string  true   "Toy UUID"  format(uuid)
// @Param       limit   query     int     false  "Page size (1..500)"  default(50)
// @Param       offset  query     int     false  "Rows to skip"        default(0)
// @Success     200     {object}  services.AuditPage
// @Failure     400     {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403     {object}  handlers.ErrorResponse  "Admin only"
// @Router      /admin/toy/{uuid}/messages [get]
func (h *Handlers) AdminToyMessages(c *gin.Context) {
	toyUUID, valid := uuidParam(c, "uuid")
	if !valid {
		return
	}
	limit, offset, valid := pageParams(c)
	if !valid {
		return
	}
	page, err := h.adminSvc.ToyMessages(c.Request.Context(), toyUUID, limit, offset)
	if err != nil {
		WriteError(c, err)
		return
	}
	ok(c, page)
}

// RegisterToy godoc
// @ID          registerToy
// @Summary     Register a toy
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.RegisterToyRequest  true  "Device"
// @Success     201   {object}  domain.Toy
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403   {object}  handlers.ErrorResponse  "Admin only"
// @Failure     409   {object}  handlers.ErrorResponse  "Toy already registered"
// @Router      /admin/toys [post]
func (h *Handlers) RegisterToy(c *gin.Context) {
	var req RegisterToyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	toy, err := h.toySvc.RegisterToy(c.Request.Context(), req.ToyUUID, req.ModelNo, req.FirmwareVersion)
	if err != nil {
		WriteError(c, err)
		return
	}
	created(c, toy)
}

// DeactivateParent godoc
// @ID          deactivateParent
// @Summary     Deactivate a parent account
// @Description Disables login and revokes every access and refresh token of the account.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Parent ID (UUID)"  format(uuid)
// @Success     200  {object}  handlers.StatusResponse
// @Failure     403  {object}  handlers.ErrorResponse  "Admin only"
// @Failure     404  {object}  handlers.ErrorResponse  "Parent not found"
// @Router      /admin/parents/{id}/deactivate [post]
func (h *Handlers) DeactivateParent(c *gin.Context) {
	id, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	if err := h.adminSvc.DeactivateParent(c.Request.Context(), id); err != nil {
		WriteError(c, err)
		return
	}
	writeStatus(c, "deactivated")
}
