package handlers

import (
	"github.com/gin-gonic/gin"

	"comanda/internal/core/apperror"
	"comanda/internal/core/id"
	"comanda/internal/domain/period"
	"comanda/internal/infrastructure/http/v1/dto"
)

// PeriodHandler handles HTTP requests for the period lifecycle.
type PeriodHandler struct {
	*BaseHandler
	service *period.Service
}

// NewPeriodHandler creates a new period handler.
func NewPeriodHandler(base *BaseHandler, service *period.Service) *PeriodHandler {
	return &PeriodHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /periods
func (h *PeriodHandler) Create(c *gin.Context) {
	var req dto.CreatePeriodRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), p); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, p.ID.String())
}

// Get handles GET /periods/:id
func (h *PeriodHandler) Get(c *gin.Context) {
	periodID, ok := h.parseID(c)
	if !ok {
		return
	}

	p, err := h.service.GetByID(c.Request.Context(), periodID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPeriod(p))
}

// List handles GET /periods
func (h *PeriodHandler) List(c *gin.Context) {
	var req dto.ListPeriodsRequest
	if !h.BindQuery(c, &req) {
		return
	}

	result, err := h.service.List(c.Request.Context(), req.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.GenericListResponse[dto.PeriodResponse]{
		Data:       dto.FromPeriods(result.Items),
		Pagination: dto.NewPaginationResponse(req.Page, req.PageSize, result.TotalCount),
	})
}

// Update handles PUT /periods/:id
func (h *PeriodHandler) Update(c *gin.Context) {
	periodID, ok := h.parseID(c)
	if !ok {
		return
	}

	var req dto.UpdatePeriodRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := h.service.GetByID(c.Request.Context(), periodID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.ApplyTo(p)
	if err := h.service.Update(c.Request.Context(), p); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPeriod(p))
}

// Delete handles DELETE /periods/:id
func (h *PeriodHandler) Delete(c *gin.Context) {
	periodID, ok := h.parseID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), periodID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// RegisterPurchase handles POST /periods/:id/purchases
func (h *PeriodHandler) RegisterPurchase(c *gin.Context) {
	periodID, ok := h.parseID(c)
	if !ok {
		return
	}

	var req dto.RegisterPurchaseRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := h.service.RegisterPurchase(c.Request.Context(), periodID, req.Amount)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPeriod(p))
}

// Close handles POST /periods/:id/close
func (h *PeriodHandler) Close(c *gin.Context) {
	periodID, ok := h.parseID(c)
	if !ok {
		return
	}

	// The request body is optional: closing without an appraisal id is the
	// common case, and callers are not required to send an empty object.
	var req dto.ClosePeriodRequest
	if c.Request.ContentLength > 0 {
		if !h.BindJSON(c, &req) {
			return
		}
	}

	var appraisalID *id.ID
	if req.AppraisalID != "" {
		parsed, err := id.Parse(req.AppraisalID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid appraisalId format"))
			return
		}
		appraisalID = &parsed
	}

	p, err := h.service.Close(c.Request.Context(), periodID, appraisalID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPeriod(p))
}

// RecomputeSnapshots handles POST /periods/:id/cmv/recompute
func (h *PeriodHandler) RecomputeSnapshots(c *gin.Context) {
	periodID, ok := h.parseID(c)
	if !ok {
		return
	}

	snapshots, err := h.service.RecomputeSnapshots(c.Request.Context(), periodID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.RecomputeResponse{
		PeriodID:  periodID.String(),
		Snapshots: len(snapshots),
	})
}

func (h *PeriodHandler) parseID(c *gin.Context) (id.ID, bool) {
	periodID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid period id format"))
		return id.Nil(), false
	}
	return periodID, true
}
