// Package period provides the accounting Period entity and its lifecycle.
//
// A period is a bounded accounting window: it opens with a captured stock
// valuation, accumulates purchases and revenue, and transitions to closed
// exactly once, when a physical inventory count fixes the closing stock.
package period

import (
	"context"
	"time"

	"comanda/internal/core/apperror"
	"comanda/internal/core/id"
	"comanda/internal/core/types"
)

// Type classifies the length of an accounting window.
type Type string

const (
	TypeDaily   Type = "daily"
	TypeWeekly  Type = "weekly"
	TypeMonthly Type = "monthly"
)

// Valid reports whether the type is a known enum member.
func (t Type) Valid() bool {
	switch t {
	case TypeDaily, TypeWeekly, TypeMonthly:
		return true
	}
	return false
}

// Status represents the period lifecycle state.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Period represents a bounded accounting window.
//
// The [StartDate, EndDate) range never overlaps another period's range,
// and at most one period is open system-wide. Both invariants are checked
// in the service and enforced by storage constraints.
type Period struct {
	ID        id.ID     `db:"id" json:"id"`
	Type      Type      `db:"type" json:"type"`
	StartDate time.Time `db:"start_date" json:"startDate"`
	EndDate   time.Time `db:"end_date" json:"endDate"`
	Status    Status    `db:"status" json:"status"`

	OpeningStock  types.Money `db:"opening_stock" json:"openingStock"`
	Purchases     types.Money `db:"purchases" json:"purchases"`
	ClosingStock  types.Money `db:"closing_stock" json:"closingStock"`
	Revenue       types.Money `db:"revenue" json:"revenue"`
	CMV           types.Money `db:"cmv" json:"cmv"`
	CMVPercentage types.Money `db:"cmv_percentage" json:"cmvPercentage"`

	ClosedAt  *time.Time `db:"closed_at" json:"closedAt,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`

	// Version supports optimistic locking.
	Version int `db:"version" json:"version"`
}

// New creates an open period for the given window.
func New(t Type, startDate, endDate time.Time) *Period {
	now := time.Now().UTC()
	return &Period{
		ID:        id.New(),
		Type:      t,
		StartDate: startDate,
		EndDate:   endDate,
		Status:    StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

// Validate checks structural invariants and returns a field-keyed
// validation error when any fail.
func (p *Period) Validate(ctx context.Context) error {
	fields := make(map[string][]string)

	if !p.Type.Valid() {
		fields["type"] = append(fields["type"], "must be one of: daily, weekly, monthly")
	}
	if p.StartDate.IsZero() {
		fields["startDate"] = append(fields["startDate"], "is required")
	}
	if p.EndDate.IsZero() {
		fields["endDate"] = append(fields["endDate"], "is required")
	}
	if !p.StartDate.IsZero() && !p.EndDate.IsZero() && !p.StartDate.Before(p.EndDate) {
		fields["startDate"] = append(fields["startDate"], "must be before endDate")
	}

	if len(fields) > 0 {
		return apperror.NewFieldValidation(fields)
	}
	return nil
}

// IsOpen reports whether the period is still accepting mutations.
func (p *Period) IsOpen() bool {
	return p.Status == StatusOpen
}

// CanModify returns an error when the period is closed.
// Closed periods are immutable, deletion included.
func (p *Period) CanModify() error {
	if p.Status == StatusClosed {
		return apperror.NewPeriodClosed(p.ID)
	}
	return nil
}

// Overlaps reports whether the [StartDate, EndDate) ranges intersect.
func (p *Period) Overlaps(startDate, endDate time.Time) bool {
	return p.StartDate.Before(endDate) && startDate.Before(p.EndDate)
}

// AddPurchase adds a manual purchase amount to the running counter.
// The counter is additive bookkeeping for mid-period registrations;
// the authoritative ledger figure overwrites it at close.
func (p *Period) AddPurchase(amount types.Money) error {
	if err := p.CanModify(); err != nil {
		return err
	}
	if amount.IsNegative() {
		return apperror.NewFieldValidation(map[string][]string{
			"amount": {"must not be negative"},
		})
	}
	p.Purchases = p.Purchases.Add(amount)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// CloseFigures carries the final numbers fixed at close time.
type CloseFigures struct {
	ClosingStock  types.Money
	Purchases     types.Money
	Revenue       types.Money
	CMV           types.Money
	CMVPercentage types.Money
}

// Close transitions the period to closed with its final figures.
// The transition happens exactly once.
func (p *Period) Close(figures CloseFigures, closedAt time.Time) error {
	if p.Status != StatusOpen {
		return apperror.NewPeriodClosed(p.ID)
	}

	p.ClosingStock = figures.ClosingStock
	p.Purchases = figures.Purchases
	p.Revenue = figures.Revenue
	p.CMV = figures.CMV
	p.CMVPercentage = figures.CMVPercentage
	p.Status = StatusClosed
	closedAtUTC := closedAt.UTC()
	p.ClosedAt = &closedAtUTC
	p.UpdatedAt = closedAtUTC
	return nil
}
