// Package sales_repo reads orders and order items owned by the sales
// subsystem. All access is read-only; cancelled orders never count.
package sales_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"comanda/internal/core/id"
	"comanda/internal/core/types"
	"comanda/internal/domain/cmv"
	"comanda/internal/domain/ledger"
	"comanda/internal/infrastructure/storage/postgres"
)

const (
	ordersTable     = "orders"
	orderItemsTable = "order_items"
	productsTable   = "products"
	categoriesTable = "product_categories"
	recipesTable    = "recipes"
)

const statusCancelled = "cancelled"

// OrderRepo implements ledger.OrderSource and cmv.OrderItemSource.
type OrderRepo struct {
	txManager *postgres.TxManager
}

// NewOrderRepo creates a new sales reader.
func NewOrderRepo(txManager *postgres.TxManager) *OrderRepo {
	return &OrderRepo{txManager: txManager}
}

func (r *OrderRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// ListOrderSubtotals returns subtotals of non-cancelled orders in [from, to].
func (r *OrderRepo) ListOrderSubtotals(ctx context.Context, from, to time.Time) ([]types.Money, error) {
	q := r.builder().
		Select("subtotal").
		From(ordersTable).
		Where(squirrel.NotEq{"status": statusCancelled}).
		Where(squirrel.GtOrEq{"created_at": from}).
		Where(squirrel.LtOrEq{"created_at": to})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var subtotals []types.Money
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &subtotals, sql, args...); err != nil {
		return nil, fmt.Errorf("list order subtotals: %w", err)
	}
	return subtotals, nil
}

// orderItemRow is the scan target for the item join.
type orderItemRow struct {
	ProductID    id.ID          `db:"product_id"`
	ProductName  string         `db:"product_name"`
	CategoryID   *id.ID         `db:"category_id"`
	CategoryName *string        `db:"category_name"`
	Quantity     types.Quantity `db:"quantity"`
	Subtotal     types.Money    `db:"subtotal"`
	RecipeCost   *types.Money   `db:"recipe_cost"`
	TargetMargin types.Money    `db:"target_margin"`
}

// ListOrderItems returns sold items whose parent order is inside [from, to]
// and not cancelled, joined with category, recipe cost, and target margin.
// A product without a recipe is a resale stock item and costs zero.
func (r *OrderRepo) ListOrderItems(ctx context.Context, from, to time.Time) ([]cmv.OrderItem, error) {
	q := r.builder().
		Select(
			"oi.product_id",
			"p.name AS product_name",
			"p.category_id",
			"c.name AS category_name",
			"oi.quantity",
			"oi.subtotal",
			"r.cost_per_portion AS recipe_cost",
			"p.target_margin",
		).
		From(orderItemsTable + " oi").
		Join(ordersTable + " o ON o.id = oi.order_id").
		Join(productsTable + " p ON p.id = oi.product_id").
		LeftJoin(categoriesTable + " c ON c.id = p.category_id").
		LeftJoin(recipesTable + " r ON r.product_id = p.id").
		Where(squirrel.NotEq{"o.status": statusCancelled}).
		Where(squirrel.GtOrEq{"o.created_at": from}).
		Where(squirrel.LtOrEq{"o.created_at": to})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []orderItemRow
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	items := make([]cmv.OrderItem, 0, len(rows))
	for i := range rows {
		row := &rows[i]

		item := cmv.OrderItem{
			ProductID:    row.ProductID,
			ProductName:  row.ProductName,
			CategoryID:   row.CategoryID,
			Quantity:     row.Quantity,
			Subtotal:     row.Subtotal,
			TargetMargin: row.TargetMargin,
			Cost:         cmv.ResaleCost(),
		}
		if row.CategoryName != nil {
			item.CategoryName = *row.CategoryName
		}
		if row.RecipeCost != nil {
			item.Cost = cmv.ManufacturedCost(*row.RecipeCost)
		}

		items = append(items, item)
	}
	return items, nil
}

var (
	_ ledger.OrderSource  = (*OrderRepo)(nil)
	_ cmv.OrderItemSource = (*OrderRepo)(nil)
)
