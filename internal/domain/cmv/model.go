// Package cmv implements the cost aggregation engine: period-level CMV
// math and per-product / per-category cost breakdowns derived from order
// items and recipe costs.
package cmv

import (
	"time"

	"comanda/internal/core/id"
	"comanda/internal/core/types"
)

// Window identifies the period slice an aggregation runs over.
type Window struct {
	PeriodID id.ID
	From     time.Time
	To       time.Time
}

// ProductCost is a tagged variant over heterogeneous product sources:
// manufactured products carry a recipe cost per portion, resale stock
// items carry none and cost zero.
type ProductCost struct {
	kind       costKind
	perPortion types.Money
}

type costKind uint8

const (
	costResale costKind = iota
	costManufactured
)

// ManufacturedCost builds the cost variant for a recipe-backed product.
func ManufacturedCost(perPortion types.Money) ProductCost {
	return ProductCost{kind: costManufactured, perPortion: perPortion}
}

// ResaleCost builds the cost variant for a resale stock item.
func ResaleCost() ProductCost {
	return ProductCost{kind: costResale}
}

// PerPortion returns the recipe cost per portion, zero for resale items.
func (c ProductCost) PerPortion() types.Money {
	if c.kind == costManufactured {
		return c.perPortion
	}
	return types.Zero()
}

// IsManufactured reports whether the product is recipe-backed.
func (c ProductCost) IsManufactured() bool {
	return c.kind == costManufactured
}

// OrderItem is a sold line item joined with its product's category,
// recipe cost, and target margin. Items of cancelled orders are never
// included by the source.
type OrderItem struct {
	ProductID    id.ID
	ProductName  string
	CategoryID   *id.ID
	CategoryName string

	Quantity types.Quantity
	Subtotal types.Money

	Cost         ProductCost
	TargetMargin types.Money
}

// ProductCMV is the per-product aggregation result.
type ProductCMV struct {
	ProductID   id.ID  `json:"productId"`
	ProductName string `json:"productName"`

	QuantitySold     types.Quantity `json:"quantitySold"`
	Revenue          types.Money    `json:"revenue"`
	Cost             types.Money    `json:"cost"`
	CMV              types.Money    `json:"cmv"`
	Margin           types.Money    `json:"margin"`
	MarginPercentage types.Money    `json:"marginPercentage"`
	MarginDifference types.Money    `json:"marginDifference"`
}

// RankedProductCMV adds the ranking fields to a product row.
type RankedProductCMV struct {
	ProductCMV

	Rank          int         `json:"rank"`
	CMVPercentage types.Money `json:"cmvPercentage"`
}

// ProductRanking is the full ranking with its reference total.
type ProductRanking struct {
	TotalCMV types.Money        `json:"totalCmv"`
	Products []RankedProductCMV `json:"products"`
}

// CategoryCMV is the per-category aggregation result. Products without a
// category fall into the synthetic "uncategorized" bucket.
type CategoryCMV struct {
	CategoryID   *id.ID `json:"categoryId,omitempty"`
	CategoryName string `json:"categoryName"`

	QuantitySold  types.Quantity `json:"quantitySold"`
	Revenue       types.Money    `json:"revenue"`
	CMV           types.Money    `json:"cmv"`
	CMVPercentage types.Money    `json:"cmvPercentage"`
}

// UncategorizedBucket is the display name for products without a category.
const UncategorizedBucket = "uncategorized"

// ProductCMVSnapshot is the persisted per-(period, product) result row.
// It is derived data: recomputation upserts, never duplicates.
type ProductCMVSnapshot struct {
	PeriodID  id.ID `db:"period_id" json:"periodId"`
	ProductID id.ID `db:"product_id" json:"productId"`

	QuantitySold     types.Quantity `db:"quantity_sold" json:"quantitySold"`
	Revenue          types.Money    `db:"revenue" json:"revenue"`
	Cost             types.Money    `db:"cost" json:"cost"`
	CMV              types.Money    `db:"cmv" json:"cmv"`
	Margin           types.Money    `db:"margin" json:"margin"`
	MarginPercentage types.Money    `db:"margin_percentage" json:"marginPercentage"`

	ComputedAt time.Time `db:"computed_at" json:"computedAt"`
}

// Figures are the period-level inputs to the CMV formula.
type Figures struct {
	Closed       bool
	OpeningStock types.Money
	Purchases    types.Money
	ClosingStock types.Money
	Revenue      types.Money
}

// Summary is the period-level CMV result.
type Summary struct {
	OpeningStock          types.Money `json:"openingStock"`
	Purchases             types.Money `json:"purchases"`
	ClosingStock          types.Money `json:"closingStock"`
	Revenue               types.Money `json:"revenue"`
	CMV                   types.Money `json:"cmv"`
	CMVPercentage         types.Money `json:"cmvPercentage"`
	GrossMargin           types.Money `json:"grossMargin"`
	GrossMarginPercentage types.Money `json:"grossMarginPercentage"`
}
