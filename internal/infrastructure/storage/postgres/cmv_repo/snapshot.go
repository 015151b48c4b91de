// Package cmv_repo implements ProductCMVSnapshot persistence on PostgreSQL.
package cmv_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"comanda/internal/core/id"
	"comanda/internal/domain/cmv"
	"comanda/internal/infrastructure/storage/postgres"
)

const snapshotsTable = "product_cmv_snapshots"

// SnapshotRepo implements cmv.SnapshotRepository.
type SnapshotRepo struct {
	txManager *postgres.TxManager
}

// NewSnapshotRepo creates a new snapshot repository.
func NewSnapshotRepo(txManager *postgres.TxManager) *SnapshotRepo {
	return &SnapshotRepo{txManager: txManager}
}

func (r *SnapshotRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Upsert inserts or updates the row keyed by (period_id, product_id).
// The unique constraint keeps recomputation idempotent.
func (r *SnapshotRepo) Upsert(ctx context.Context, snapshot *cmv.ProductCMVSnapshot) error {
	q := r.builder().
		Insert(snapshotsTable).
		Columns(
			"period_id", "product_id",
			"quantity_sold", "revenue", "cost", "cmv",
			"margin", "margin_percentage", "computed_at",
		).
		Values(
			snapshot.PeriodID, snapshot.ProductID,
			snapshot.QuantitySold, snapshot.Revenue, snapshot.Cost, snapshot.CMV,
			snapshot.Margin, snapshot.MarginPercentage, snapshot.ComputedAt,
		).
		Suffix(`ON CONFLICT (period_id, product_id) DO UPDATE SET
			quantity_sold = EXCLUDED.quantity_sold,
			revenue = EXCLUDED.revenue,
			cost = EXCLUDED.cost,
			cmv = EXCLUDED.cmv,
			margin = EXCLUDED.margin,
			margin_percentage = EXCLUDED.margin_percentage,
			computed_at = EXCLUDED.computed_at`)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepo) ListByPeriod(ctx context.Context, periodID id.ID) ([]cmv.ProductCMVSnapshot, error) {
	sql, args, err := r.builder().
		Select(
			"period_id", "product_id",
			"quantity_sold", "revenue", "cost", "cmv",
			"margin", "margin_percentage", "computed_at",
		).
		From(snapshotsTable).
		Where(squirrel.Eq{"period_id": periodID}).
		OrderBy("cmv DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var snapshots []cmv.ProductCMVSnapshot
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &snapshots, sql, args...); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return snapshots, nil
}

func (r *SnapshotRepo) CountByPeriod(ctx context.Context, periodID id.ID) (int64, error) {
	sql, args, err := r.builder().
		Select("COUNT(*)").
		From(snapshotsTable).
		Where(squirrel.Eq{"period_id": periodID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var count int64
	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return count, nil
}

var _ cmv.SnapshotRepository = (*SnapshotRepo)(nil)
