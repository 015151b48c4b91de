package handlers

import (
	"github.com/gin-gonic/gin"

	"comanda/internal/core/apperror"
	"comanda/internal/core/id"
	"comanda/internal/domain/reporting"
	"comanda/internal/infrastructure/http/v1/dto"
)

// CMVHandler serves the cost aggregation read endpoints of a period.
type CMVHandler struct {
	*BaseHandler
	reports *reporting.Service
}

// NewCMVHandler creates a new CMV handler.
func NewCMVHandler(base *BaseHandler, reports *reporting.Service) *CMVHandler {
	return &CMVHandler{
		BaseHandler: base,
		reports:     reports,
	}
}

// Summary handles GET /periods/:id/cmv
func (h *CMVHandler) Summary(c *gin.Context) {
	periodID, ok := h.parseID(c)
	if !ok {
		return
	}

	summary, err := h.reports.CMVSummary(c.Request.Context(), periodID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.CMVSummaryResponse{
		PeriodID: periodID.String(),
		Summary:  summary,
	})
}

// Products handles GET /periods/:id/cmv/products
func (h *CMVHandler) Products(c *gin.Context) {
	periodID, ok := h.parseID(c)
	if !ok {
		return
	}

	ranking, err := h.reports.ProductCMV(c.Request.Context(), periodID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ProductRankingResponse{
		PeriodID: periodID.String(),
		Ranking:  ranking,
	})
}

// Categories handles GET /periods/:id/cmv/categories
func (h *CMVHandler) Categories(c *gin.Context) {
	periodID, ok := h.parseID(c)
	if !ok {
		return
	}

	categories, err := h.reports.CategoryCMV(c.Request.Context(), periodID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.CategoryCMVResponse{
		PeriodID:   periodID.String(),
		Categories: categories,
	})
}

// PurchaseHistory handles GET /periods/:id/purchases/history
func (h *CMVHandler) PurchaseHistory(c *gin.Context) {
	periodID, ok := h.parseID(c)
	if !ok {
		return
	}

	history, err := h.reports.PurchaseHistory(c.Request.Context(), periodID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.PurchaseHistoryResponse{
		PeriodID: periodID.String(),
		History:  history,
	})
}

func (h *CMVHandler) parseID(c *gin.Context) (id.ID, bool) {
	periodID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid period id format"))
		return id.Nil(), false
	}
	return periodID, true
}
