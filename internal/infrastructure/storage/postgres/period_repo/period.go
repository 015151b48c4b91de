// Package period_repo implements period persistence on PostgreSQL.
//
// Two storage constraints back the domain invariants against races the
// application-level checks cannot see:
//   - periods_single_open: partial unique index on (status) WHERE status = 'open'
//   - periods_no_overlap: exclusion constraint on daterange(start_date, end_date)
package period_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"comanda/internal/core/apperror"
	"comanda/internal/core/id"
	"comanda/internal/domain"
	"comanda/internal/domain/period"
	"comanda/internal/infrastructure/storage/postgres"
)

const periodsTable = "periods"

const (
	constraintSingleOpen = "periods_single_open"
	constraintNoOverlap  = "periods_no_overlap"
)

var periodColumns = []string{
	"id", "type", "start_date", "end_date", "status",
	"opening_stock", "purchases", "closing_stock", "revenue",
	"cmv", "cmv_percentage",
	"closed_at", "created_at", "updated_at", "version",
}

// PeriodRepo implements period.Repository.
type PeriodRepo struct {
	txManager *postgres.TxManager
}

// NewPeriodRepo creates a new period repository.
func NewPeriodRepo(txManager *postgres.TxManager) *PeriodRepo {
	return &PeriodRepo{txManager: txManager}
}

func (r *PeriodRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *PeriodRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder().Select(periodColumns...).From(periodsTable)
}

func (r *PeriodRepo) Create(ctx context.Context, p *period.Period) error {
	q := r.builder().
		Insert(periodsTable).
		Columns(periodColumns...).
		Values(
			p.ID, p.Type, p.StartDate, p.EndDate, p.Status,
			p.OpeningStock, p.Purchases, p.ClosingStock, p.Revenue,
			p.CMV, p.CMVPercentage,
			p.ClosedAt, p.CreatedAt, p.UpdatedAt, p.Version,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return mapConstraintError(err, p)
	}
	return nil
}

func (r *PeriodRepo) GetByID(ctx context.Context, periodID id.ID) (*period.Period, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": periodID}), periodID)
}

func (r *PeriodRepo) GetForUpdate(ctx context.Context, periodID id.ID) (*period.Period, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": periodID}).Suffix("FOR UPDATE")
	return r.getOne(ctx, q, periodID)
}

func (r *PeriodRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, periodID id.ID) (*period.Period, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p period.Period
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &p, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("period", periodID)
		}
		return nil, fmt.Errorf("get period: %w", err)
	}
	return &p, nil
}

// Update persists changes with an optimistic version check.
func (r *PeriodRepo) Update(ctx context.Context, p *period.Period) error {
	q := r.builder().
		Update(periodsTable).
		Set("type", p.Type).
		Set("start_date", p.StartDate).
		Set("end_date", p.EndDate).
		Set("status", p.Status).
		Set("opening_stock", p.OpeningStock).
		Set("purchases", p.Purchases).
		Set("closing_stock", p.ClosingStock).
		Set("revenue", p.Revenue).
		Set("cmv", p.CMV).
		Set("cmv_percentage", p.CMVPercentage).
		Set("closed_at", p.ClosedAt).
		Set("updated_at", p.UpdatedAt).
		Set("version", p.Version+1).
		Where(squirrel.Eq{"id": p.ID, "version": p.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return mapConstraintError(err, p)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("period", p.ID)
	}

	p.Version++
	return nil
}

func (r *PeriodRepo) Delete(ctx context.Context, periodID id.ID) error {
	sql, args, err := r.builder().
		Delete(periodsTable).
		Where(squirrel.Eq{"id": periodID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete period: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("period", periodID)
	}
	return nil
}

func (r *PeriodRepo) List(ctx context.Context, filter period.ListFilter) (domain.ListResult[*period.Period], error) {
	result := domain.ListResult[*period.Period]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()

	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"type": *filter.Type})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"start_date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"end_date": *filter.DateTo})
	}

	countQ := r.builder().Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy := "start_date DESC"
	if filter.OrderBy != "" {
		orderBy = filter.OrderBy
	}
	q = q.OrderBy(orderBy)

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("select: %w", err)
	}

	return result, nil
}

func (r *PeriodRepo) FindOpen(ctx context.Context) (*period.Period, error) {
	sql, args, err := r.baseSelect().
		Where(squirrel.Eq{"status": period.StatusOpen}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p period.Period
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &p, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find open period: %w", err)
	}
	return &p, nil
}

func (r *PeriodRepo) FindOverlapping(ctx context.Context, startDate, endDate time.Time, excludeID *id.ID) ([]*period.Period, error) {
	// Half-open [start, end) intersection.
	q := r.baseSelect().
		Where(squirrel.Lt{"start_date": endDate}).
		Where(squirrel.Gt{"end_date": startDate})

	if excludeID != nil {
		q = q.Where(squirrel.NotEq{"id": *excludeID})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var periods []*period.Period
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &periods, sql, args...); err != nil {
		return nil, fmt.Errorf("find overlapping: %w", err)
	}
	return periods, nil
}

// mapConstraintError translates storage constraint violations into the
// business rule errors the race-free invariants are defined by.
func mapConstraintError(err error, p *period.Period) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.ConstraintName {
		case constraintSingleOpen:
			return apperror.NewBusinessRule(
				apperror.CodePeriodAlreadyOpen,
				"An open period already exists; close it before opening another",
			).WithCause(err)
		case constraintNoOverlap:
			return apperror.NewPeriodOverlap(
				p.StartDate.Format(time.RFC3339),
				p.EndDate.Format(time.RFC3339),
			).WithCause(err)
		}
	}
	return fmt.Errorf("persist period: %w", err)
}

var _ period.Repository = (*PeriodRepo)(nil)
