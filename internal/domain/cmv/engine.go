package cmv

import (
	"context"
	"fmt"
	"sort"
	"time"

	"comanda/internal/core/apperror"
	"comanda/internal/core/id"
	"comanda/internal/core/types"
	"comanda/pkg/logger"
)

// Engine computes CMV, margins, and percentages from period figures and
// order-item scans. It is stateless between calls; every derived number
// is reproducible from the same inputs.
type Engine struct {
	orderItems OrderItemSource
	snapshots  SnapshotRepository
}

// NewEngine creates a cost aggregation engine.
func NewEngine(orderItems OrderItemSource, snapshots SnapshotRepository) *Engine {
	return &Engine{
		orderItems: orderItems,
		snapshots:  snapshots,
	}
}

// Calculate applies the CMV formula to period figures:
//
//	cmv = openingStock + purchases − closingStock
//
// Percentages over zero revenue are zero, never an error. An open period
// with no closing count cannot be measured.
func (e *Engine) Calculate(f Figures) (*Summary, error) {
	if !f.Closed && f.ClosingStock.IsZero() {
		return nil, apperror.NewBusinessRule(
			apperror.CodeClosingStockMissing,
			"CMV cannot be computed for an open period without a closing stock count",
		)
	}

	cmv := f.OpeningStock.Add(f.Purchases).Sub(f.ClosingStock)
	grossMargin := f.Revenue.Sub(cmv)

	return &Summary{
		OpeningStock:          f.OpeningStock,
		Purchases:             f.Purchases,
		ClosingStock:          f.ClosingStock,
		Revenue:               f.Revenue,
		CMV:                   cmv,
		CMVPercentage:         types.RatioPercent(cmv, f.Revenue),
		GrossMargin:           grossMargin,
		GrossMarginPercentage: types.RatioPercent(grossMargin, f.Revenue),
	}, nil
}

// ProductCMV scans all non-cancelled order items in the window, groups by
// product and accumulates quantity sold, revenue, and recipe-based cost.
// The result is sorted descending by CMV; that ordering is the contract.
func (e *Engine) ProductCMV(ctx context.Context, window Window) ([]ProductCMV, error) {
	items, err := e.orderItems.ListOrderItems(ctx, window.From, window.To)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	type accumulator struct {
		row          *ProductCMV
		targetMargin types.Money
	}

	byProduct := make(map[string]*accumulator)
	order := make([]string, 0)

	for i := range items {
		item := &items[i]
		key := item.ProductID.String()

		acc, ok := byProduct[key]
		if !ok {
			acc = &accumulator{
				row: &ProductCMV{
					ProductID:   item.ProductID,
					ProductName: item.ProductName,
				},
				targetMargin: item.TargetMargin,
			}
			byProduct[key] = acc
			order = append(order, key)
		}

		cost := item.Cost.PerPortion().Mul(item.Quantity.Decimal())
		acc.row.QuantitySold += item.Quantity
		acc.row.Revenue = acc.row.Revenue.Add(item.Subtotal)
		acc.row.Cost = acc.row.Cost.Add(cost)
	}

	results := make([]ProductCMV, 0, len(order))
	for _, key := range order {
		acc := byProduct[key]
		row := acc.row

		// Product-level CMV is the consumed merchandise cost.
		row.CMV = row.Cost
		row.Margin = row.Revenue.Sub(row.Cost)
		row.MarginPercentage = types.RatioPercent(row.Margin, row.Revenue)
		row.MarginDifference = row.MarginPercentage.Sub(acc.targetMargin)

		results = append(results, *row)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CMV.GreaterThan(results[j].CMV)
	})

	return results, nil
}

// SaveProductCMV recomputes the per-product rows and upserts them as
// snapshots keyed by (period, product). Re-running never duplicates rows.
func (e *Engine) SaveProductCMV(ctx context.Context, window Window) ([]ProductCMVSnapshot, error) {
	rows, err := e.ProductCMV(ctx, window)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	snapshots := make([]ProductCMVSnapshot, 0, len(rows))
	for i := range rows {
		snapshot := ProductCMVSnapshot{
			PeriodID:         window.PeriodID,
			ProductID:        rows[i].ProductID,
			QuantitySold:     rows[i].QuantitySold,
			Revenue:          rows[i].Revenue,
			Cost:             rows[i].Cost,
			CMV:              rows[i].CMV,
			Margin:           rows[i].Margin,
			MarginPercentage: rows[i].MarginPercentage,
			ComputedAt:       now,
		}
		if err := e.snapshots.Upsert(ctx, &snapshot); err != nil {
			return nil, fmt.Errorf("upsert snapshot for product %s: %w", rows[i].ProductID, err)
		}
		snapshots = append(snapshots, snapshot)
	}

	logger.Info(ctx, "product cmv snapshots saved",
		"period_id", window.PeriodID,
		"products", len(snapshots),
	)
	return snapshots, nil
}

// ProductRanking re-derives the per-product list and emits 1-based ranks
// in the existing cmv-descending order, with each product's share of the
// period's total CMV.
func (e *Engine) ProductRanking(ctx context.Context, window Window) (*ProductRanking, error) {
	rows, err := e.ProductCMV(ctx, window)
	if err != nil {
		return nil, err
	}

	total := types.Zero()
	for i := range rows {
		total = total.Add(rows[i].CMV)
	}

	ranking := &ProductRanking{
		TotalCMV: total,
		Products: make([]RankedProductCMV, 0, len(rows)),
	}
	for i := range rows {
		ranking.Products = append(ranking.Products, RankedProductCMV{
			ProductCMV:    rows[i],
			Rank:          i + 1,
			CMVPercentage: types.RatioPercent(rows[i].CMV, total),
		})
	}

	return ranking, nil
}

// CategoryCMV runs the same order-item scan grouped by product category.
// Percentages are relative to the category-level total CMV.
func (e *Engine) CategoryCMV(ctx context.Context, window Window) ([]CategoryCMV, error) {
	items, err := e.orderItems.ListOrderItems(ctx, window.From, window.To)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	byCategory := make(map[string]*CategoryCMV)
	order := make([]string, 0)

	for i := range items {
		item := &items[i]

		key := UncategorizedBucket
		name := UncategorizedBucket
		var categoryID *id.ID
		if item.CategoryID != nil {
			key = item.CategoryID.String()
			name = item.CategoryName
			categoryID = item.CategoryID
		}

		bucket, ok := byCategory[key]
		if !ok {
			bucket = &CategoryCMV{
				CategoryID:   categoryID,
				CategoryName: name,
			}
			byCategory[key] = bucket
			order = append(order, key)
		}

		bucket.QuantitySold += item.Quantity
		bucket.Revenue = bucket.Revenue.Add(item.Subtotal)
		bucket.CMV = bucket.CMV.Add(item.Cost.PerPortion().Mul(item.Quantity.Decimal()))
	}

	total := types.Zero()
	for _, key := range order {
		total = total.Add(byCategory[key].CMV)
	}

	results := make([]CategoryCMV, 0, len(order))
	for _, key := range order {
		bucket := byCategory[key]
		bucket.CMVPercentage = types.RatioPercent(bucket.CMV, total)
		results = append(results, *bucket)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CMV.GreaterThan(results[j].CMV)
	})

	return results, nil
}
