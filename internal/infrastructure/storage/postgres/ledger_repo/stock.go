// Package ledger_repo reads the stock-transaction and ingredient ledgers
// owned by the inventory subsystem. All access is read-only.
package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"comanda/internal/domain/ledger"
	"comanda/internal/domain/valuation"
	"comanda/internal/infrastructure/storage/postgres"
)

const (
	stockTransactionsTable = "stock_transactions"
	ingredientsTable       = "ingredients"
)

// StockRepo implements ledger.PurchaseSource and valuation.IngredientLedger.
type StockRepo struct {
	txManager *postgres.TxManager
}

// NewStockRepo creates a new stock ledger reader.
func NewStockRepo(txManager *postgres.TxManager) *StockRepo {
	return &StockRepo{txManager: txManager}
}

func (r *StockRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// ListPurchases returns purchase-type transactions in [from, to] joined
// with the ingredient's current average cost. Valuation at aggregation
// time, not transaction time.
func (r *StockRepo) ListPurchases(ctx context.Context, from, to time.Time) ([]ledger.PurchaseTransaction, error) {
	q := r.builder().
		Select(
			"t.id",
			"t.ingredient_id",
			"i.name AS ingredient_name",
			"t.quantity",
			"i.average_cost",
			"t.created_at",
		).
		From(stockTransactionsTable + " t").
		Join(ingredientsTable + " i ON i.id = t.ingredient_id").
		Where(squirrel.Eq{"t.type": "purchase"}).
		Where(squirrel.GtOrEq{"t.created_at": from}).
		Where(squirrel.LtOrEq{"t.created_at": to}).
		OrderBy("t.created_at DESC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var transactions []ledger.PurchaseTransaction
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &transactions, sql, args...); err != nil {
		return nil, fmt.Errorf("list purchase transactions: %w", err)
	}
	return transactions, nil
}

// ListIngredients returns the live ingredient cost ledger.
func (r *StockRepo) ListIngredients(ctx context.Context) ([]valuation.Ingredient, error) {
	sql, args, err := r.builder().
		Select("id", "name", "current_quantity", "average_cost").
		From(ingredientsTable).
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var ingredients []valuation.Ingredient
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &ingredients, sql, args...); err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	return ingredients, nil
}

var (
	_ ledger.PurchaseSource      = (*StockRepo)(nil)
	_ valuation.IngredientLedger = (*StockRepo)(nil)
)
