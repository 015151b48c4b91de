package ledger_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"comanda/internal/core/apperror"
	"comanda/internal/core/id"
	"comanda/internal/domain/valuation"
	"comanda/internal/infrastructure/storage/postgres"
)

const appraisalsTable = "inventory_appraisals"

// AppraisalRepo implements valuation.AppraisalSource over the appraisal
// tables owned by the physical-inventory subsystem. Read-only.
type AppraisalRepo struct {
	txManager *postgres.TxManager
}

// NewAppraisalRepo creates a new appraisal reader.
func NewAppraisalRepo(txManager *postgres.TxManager) *AppraisalRepo {
	return &AppraisalRepo{txManager: txManager}
}

func (r *AppraisalRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *AppraisalRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder().
		Select("id", "total_physical", "status", "approved_at").
		From(appraisalsTable)
}

func (r *AppraisalRepo) GetByID(ctx context.Context, appraisalID id.ID) (*valuation.Appraisal, error) {
	sql, args, err := r.baseSelect().Where(squirrel.Eq{"id": appraisalID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var a valuation.Appraisal
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &a, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("appraisal", appraisalID)
		}
		return nil, fmt.Errorf("get appraisal: %w", err)
	}
	return &a, nil
}

func (r *AppraisalRepo) FindLatestApproved(ctx context.Context) (*valuation.Appraisal, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"status": valuation.AppraisalStatusApproved}).
		OrderBy("approved_at DESC").
		Limit(1)
	return r.findOne(ctx, q)
}

func (r *AppraisalRepo) FindLatestApprovedInRange(ctx context.Context, from, to time.Time) (*valuation.Appraisal, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"status": valuation.AppraisalStatusApproved}).
		Where(squirrel.GtOrEq{"approved_at": from}).
		Where(squirrel.LtOrEq{"approved_at": to}).
		OrderBy("approved_at DESC").
		Limit(1)
	return r.findOne(ctx, q)
}

func (r *AppraisalRepo) findOne(ctx context.Context, q squirrel.SelectBuilder) (*valuation.Appraisal, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var a valuation.Appraisal
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &a, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find appraisal: %w", err)
	}
	return &a, nil
}

var _ valuation.AppraisalSource = (*AppraisalRepo)(nil)
