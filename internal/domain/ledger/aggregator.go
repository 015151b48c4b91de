// Package ledger reduces stock-transaction and sales records inside a
// date range to the scalar totals a period close needs. Both ledgers are
// owned by other subsystems and consumed read-only.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"comanda/internal/core/id"
	"comanda/internal/core/types"
)

// PurchaseTransaction is a purchase-type stock transaction joined with the
// ingredient's current average cost.
//
// Valuation uses the average cost at aggregation time, not at transaction
// time. Cost drift inside a period is a known simplification.
type PurchaseTransaction struct {
	ID             id.ID          `db:"id" json:"id"`
	IngredientID   id.ID          `db:"ingredient_id" json:"ingredientId"`
	IngredientName string         `db:"ingredient_name" json:"ingredientName"`
	Quantity       types.Quantity `db:"quantity" json:"quantity"`
	AverageCost    types.Money    `db:"average_cost" json:"averageCost"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
}

// Value returns quantity × average cost.
func (t *PurchaseTransaction) Value() types.Money {
	return t.Quantity.Decimal().Mul(t.AverageCost)
}

// PurchaseSource lists purchase-type stock transactions in a date range.
type PurchaseSource interface {
	ListPurchases(ctx context.Context, from, to time.Time) ([]PurchaseTransaction, error)
}

// OrderSource lists order subtotals in a date range, excluding cancelled orders.
type OrderSource interface {
	ListOrderSubtotals(ctx context.Context, from, to time.Time) ([]types.Money, error)
}

// PurchaseHistory is the itemized audit view of period purchases.
type PurchaseHistory struct {
	Items []PurchaseTransaction `json:"items"`
	Total types.Money           `json:"total"`
}

// Aggregator reduces ledger records to period totals.
type Aggregator struct {
	purchases PurchaseSource
	orders    OrderSource
}

// NewAggregator creates a transaction aggregator.
func NewAggregator(purchases PurchaseSource, orders OrderSource) *Aggregator {
	return &Aggregator{
		purchases: purchases,
		orders:    orders,
	}
}

// CapturePurchases sums purchase transactions in [from, to] valued at the
// ingredient's current average cost. This is the authoritative figure that
// overwrites the period's running counter at close.
func (a *Aggregator) CapturePurchases(ctx context.Context, from, to time.Time) (types.Money, error) {
	transactions, err := a.purchases.ListPurchases(ctx, from, to)
	if err != nil {
		return types.Zero(), fmt.Errorf("list purchase transactions: %w", err)
	}

	total := types.Zero()
	for i := range transactions {
		total = total.Add(transactions[i].Value())
	}
	return total, nil
}

// PurchaseHistory returns the same aggregation as an itemized,
// reverse-chronological list plus the total, for audit display.
func (a *Aggregator) PurchaseHistory(ctx context.Context, from, to time.Time) (*PurchaseHistory, error) {
	transactions, err := a.purchases.ListPurchases(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list purchase transactions: %w", err)
	}

	sort.SliceStable(transactions, func(i, j int) bool {
		return transactions[i].CreatedAt.After(transactions[j].CreatedAt)
	})

	history := &PurchaseHistory{
		Items: transactions,
		Total: types.Zero(),
	}
	for i := range transactions {
		history.Total = history.Total.Add(transactions[i].Value())
	}
	return history, nil
}

// Revenue sums subtotals of non-cancelled orders in [from, to].
func (a *Aggregator) Revenue(ctx context.Context, from, to time.Time) (types.Money, error) {
	subtotals, err := a.orders.ListOrderSubtotals(ctx, from, to)
	if err != nil {
		return types.Zero(), fmt.Errorf("list order subtotals: %w", err)
	}

	total := types.Zero()
	for _, subtotal := range subtotals {
		total = total.Add(subtotal)
	}
	return total, nil
}
