package dto

import (
	"time"

	"comanda/internal/core/types"
	"comanda/internal/domain/period"
)

// --- Request DTOs ---

// CreatePeriodRequest represents a request to open a new period.
type CreatePeriodRequest struct {
	Type      string    `json:"type" binding:"required,oneof=daily weekly monthly"`
	StartDate time.Time `json:"startDate" binding:"required"`
	EndDate   time.Time `json:"endDate" binding:"required"`
}

// ToEntity converts request to domain entity.
func (r *CreatePeriodRequest) ToEntity() *period.Period {
	return period.New(period.Type(r.Type), r.StartDate, r.EndDate)
}

// UpdatePeriodRequest represents a request to update an open period.
type UpdatePeriodRequest struct {
	Type      *string    `json:"type,omitempty" binding:"omitempty,oneof=daily weekly monthly"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Version   int        `json:"version" binding:"required,min=1"`
}

// ApplyTo applies updates to an existing entity.
func (r *UpdatePeriodRequest) ApplyTo(p *period.Period) {
	if r.Type != nil {
		p.Type = period.Type(*r.Type)
	}
	if r.StartDate != nil {
		p.StartDate = *r.StartDate
	}
	if r.EndDate != nil {
		p.EndDate = *r.EndDate
	}
	p.Version = r.Version
}

// RegisterPurchaseRequest records a purchase against an open period.
type RegisterPurchaseRequest struct {
	Amount types.Money `json:"amount" binding:"required"`
}

// ClosePeriodRequest closes a period using a physical inventory count.
// When appraisalId is empty the latest approved appraisal inside the
// period window is used.
type ClosePeriodRequest struct {
	AppraisalID string `json:"appraisalId,omitempty"`
}

// ListPeriodsRequest contains list filters.
type ListPeriodsRequest struct {
	PaginationRequest
	Type     string     `form:"type" binding:"omitempty,oneof=daily weekly monthly"`
	Status   string     `form:"status" binding:"omitempty,oneof=open closed"`
	DateFrom *time.Time `form:"dateFrom"`
	DateTo   *time.Time `form:"dateTo"`
	OrderBy  string     `form:"orderBy"`
}

// ToFilter converts the request to a repository filter.
func (r *ListPeriodsRequest) ToFilter() period.ListFilter {
	r.Defaults()
	filter := period.DefaultListFilter()
	filter.Limit = r.PageSize
	filter.Offset = r.Offset()
	if r.Type != "" {
		t := period.Type(r.Type)
		filter.Type = &t
	}
	if r.Status != "" {
		s := period.Status(r.Status)
		filter.Status = &s
	}
	filter.DateFrom = r.DateFrom
	filter.DateTo = r.DateTo
	if r.OrderBy != "" {
		filter.OrderBy = r.OrderBy
	}
	return filter
}

// --- Response DTOs ---

// PeriodResponse contains period fields.
type PeriodResponse struct {
	ID            string      `json:"id"`
	Type          string      `json:"type"`
	StartDate     time.Time   `json:"startDate"`
	EndDate       time.Time   `json:"endDate"`
	Status        string      `json:"status"`
	OpeningStock  types.Money `json:"openingStock"`
	Purchases     types.Money `json:"purchases"`
	ClosingStock  types.Money `json:"closingStock"`
	Revenue       types.Money `json:"revenue"`
	CMV           types.Money `json:"cmv"`
	CMVPercentage types.Money `json:"cmvPercentage"`
	ClosedAt      *time.Time  `json:"closedAt,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
	Version       int         `json:"version"`
}

// FromPeriod creates PeriodResponse from the domain entity.
func FromPeriod(p *period.Period) PeriodResponse {
	return PeriodResponse{
		ID:            p.ID.String(),
		Type:          string(p.Type),
		StartDate:     p.StartDate,
		EndDate:       p.EndDate,
		Status:        string(p.Status),
		OpeningStock:  p.OpeningStock,
		Purchases:     p.Purchases,
		ClosingStock:  p.ClosingStock,
		Revenue:       p.Revenue,
		CMV:           p.CMV,
		CMVPercentage: p.CMVPercentage,
		ClosedAt:      p.ClosedAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		Version:       p.Version,
	}
}

// FromPeriods converts a slice of periods.
func FromPeriods(periods []*period.Period) []PeriodResponse {
	out := make([]PeriodResponse, 0, len(periods))
	for _, p := range periods {
		out = append(out, FromPeriod(p))
	}
	return out
}
