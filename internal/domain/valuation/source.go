// Package valuation resolves the scalar "stock value at time T" used for
// opening and closing a period. Physical counts (appraisals) and the
// ingredient cost ledger are owned by other subsystems and consumed
// read-only through the interfaces below.
package valuation

import (
	"context"
	"time"

	"comanda/internal/core/id"
	"comanda/internal/core/types"
)

// AppraisalStatus is the approval state of a physical inventory count.
type AppraisalStatus string

const (
	AppraisalStatusDraft    AppraisalStatus = "draft"
	AppraisalStatusApproved AppraisalStatus = "approved"
	AppraisalStatusRejected AppraisalStatus = "rejected"
)

// Appraisal is an approved-or-pending physical inventory count snapshot.
type Appraisal struct {
	ID            id.ID           `db:"id" json:"id"`
	TotalPhysical types.Money     `db:"total_physical" json:"totalPhysical"`
	Status        AppraisalStatus `db:"status" json:"status"`
	ApprovedAt    *time.Time      `db:"approved_at" json:"approvedAt,omitempty"`
}

// IsApproved reports whether the count can be used as valuation ground truth.
func (a *Appraisal) IsApproved() bool {
	return a.Status == AppraisalStatusApproved
}

// AppraisalSource provides read-only access to physical inventory counts.
type AppraisalSource interface {
	// GetByID returns the appraisal or a not-found error.
	GetByID(ctx context.Context, appraisalID id.ID) (*Appraisal, error)
	// FindLatestApproved returns the most recently approved appraisal
	// anywhere in history, or nil when none exists.
	FindLatestApproved(ctx context.Context) (*Appraisal, error)
	// FindLatestApprovedInRange returns the most recent appraisal approved
	// inside [from, to], or nil when none exists.
	FindLatestApprovedInRange(ctx context.Context, from, to time.Time) (*Appraisal, error)
}

// Ingredient is a live cost-ledger row.
type Ingredient struct {
	ID              id.ID          `db:"id" json:"id"`
	Name            string         `db:"name" json:"name"`
	CurrentQuantity types.Quantity `db:"current_quantity" json:"currentQuantity"`
	AverageCost     types.Money    `db:"average_cost" json:"averageCost"`
}

// Value returns currentQuantity × averageCost.
func (i *Ingredient) Value() types.Money {
	return i.CurrentQuantity.Decimal().Mul(i.AverageCost)
}

// IngredientLedger provides read-only access to the ingredient cost ledger.
type IngredientLedger interface {
	ListIngredients(ctx context.Context) ([]Ingredient, error)
}
