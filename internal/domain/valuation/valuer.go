package valuation

import (
	"context"
	"fmt"
	"time"

	"comanda/internal/core/apperror"
	"comanda/internal/core/id"
	"comanda/internal/core/types"
	"comanda/pkg/logger"
)

// Valuer captures opening and closing stock valuations for periods.
type Valuer struct {
	appraisals  AppraisalSource
	ingredients IngredientLedger
}

// NewValuer creates a stock valuer.
func NewValuer(appraisals AppraisalSource, ingredients IngredientLedger) *Valuer {
	return &Valuer{
		appraisals:  appraisals,
		ingredients: ingredients,
	}
}

// OpeningStock resolves the opening valuation for a new period: the most
// recently approved appraisal's physical total, or, when no appraisal has
// ever been approved, the live ledger sum of quantity × average cost.
// The fallback keeps the very first period in a restaurant's lifetime
// computable.
func (v *Valuer) OpeningStock(ctx context.Context) (types.Money, error) {
	appraisal, err := v.appraisals.FindLatestApproved(ctx)
	if err != nil {
		return types.Zero(), fmt.Errorf("find latest approved appraisal: %w", err)
	}
	if appraisal != nil {
		return appraisal.TotalPhysical, nil
	}

	ingredients, err := v.ingredients.ListIngredients(ctx)
	if err != nil {
		return types.Zero(), fmt.Errorf("list ingredients: %w", err)
	}

	total := types.Zero()
	for i := range ingredients {
		total = total.Add(ingredients[i].Value())
	}

	logger.Debug(ctx, "opening stock from live ledger", "ingredients", len(ingredients), "total", total)
	return total, nil
}

// ClosingStock resolves the closing valuation for the period window.
// With an explicit appraisal ID the count must exist and be approved.
// Without one, the most recent appraisal approved inside [from, to] is
// used; a period cannot close without a physical count.
func (v *Valuer) ClosingStock(ctx context.Context, from, to time.Time, appraisalID *id.ID) (types.Money, error) {
	if appraisalID != nil {
		appraisal, err := v.appraisals.GetByID(ctx, *appraisalID)
		if err != nil {
			return types.Zero(), err
		}
		if !appraisal.IsApproved() {
			return types.Zero(), apperror.NewBusinessRule(
				apperror.CodeAppraisalNotApproved,
				"Appraisal must be approved before it can value closing stock",
			).WithDetail("appraisalId", *appraisalID).WithDetail("status", appraisal.Status)
		}
		return appraisal.TotalPhysical, nil
	}

	appraisal, err := v.appraisals.FindLatestApprovedInRange(ctx, from, to)
	if err != nil {
		return types.Zero(), fmt.Errorf("find approved appraisal in range: %w", err)
	}
	if appraisal == nil {
		return types.Zero(), apperror.NewBusinessRule(
			apperror.CodeAppraisalRequired,
			"Period cannot close without an approved physical inventory count",
		).WithDetail("from", from).WithDetail("to", to)
	}

	return appraisal.TotalPhysical, nil
}
