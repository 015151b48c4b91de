package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"comanda/internal/core/apperror"
	"comanda/internal/core/id"
	"comanda/internal/domain/reporting"
	"comanda/internal/infrastructure/http/v1/dto"
)

// ReportHandler serves cross-period comparisons and composed reports.
type ReportHandler struct {
	*BaseHandler
	reports *reporting.Service
}

// NewReportHandler creates a new report handler.
func NewReportHandler(base *BaseHandler, reports *reporting.Service) *ReportHandler {
	return &ReportHandler{
		BaseHandler: base,
		reports:     reports,
	}
}

// Compare handles POST /reports/cmv/compare
func (h *ReportHandler) Compare(c *gin.Context) {
	var req dto.ComparePeriodsRequest
	if !h.BindJSON(c, &req) {
		return
	}

	periodIDs := make([]id.ID, 0, len(req.PeriodIDs))
	for _, raw := range req.PeriodIDs {
		parsed, err := id.Parse(raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid period id format").WithDetail("id", raw))
			return
		}
		periodIDs = append(periodIDs, parsed)
	}

	comparison, err := h.reports.ComparePeriods(c.Request.Context(), periodIDs)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, comparison)
}

// PeriodReport handles GET /reports/periods/:id
func (h *ReportHandler) PeriodReport(c *gin.Context) {
	periodID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid period id format"))
		return
	}

	var req dto.PeriodReportRequest
	if !h.BindQuery(c, &req) {
		return
	}

	if req.Format != "" && req.Format != "json" {
		rendered, err := h.reports.RenderPeriodReport(c.Request.Context(), periodID, req.TopN, req.Format)
		if err != nil {
			h.Error(c, err)
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", rendered)
		return
	}

	doc, err := h.reports.BuildPeriodReport(c.Request.Context(), periodID, req.TopN)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, doc)
}
