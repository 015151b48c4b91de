package period

import (
	"context"
	"fmt"
	"time"

	"comanda/internal/core/apperror"
	"comanda/internal/core/id"
	"comanda/internal/core/tx"
	"comanda/internal/core/types"
	"comanda/internal/domain"
	"comanda/internal/domain/cmv"
	"comanda/internal/domain/ledger"
	"comanda/internal/domain/valuation"
	"comanda/pkg/logger"
)

// Service owns the period state machine: the overlap and single-open
// invariants, CRUD guards, and the close sequence that fixes the final
// figures inside one transaction.
type Service struct {
	repo       Repository
	valuer     *valuation.Valuer
	aggregator *ledger.Aggregator
	engine     *cmv.Engine
	txManager  tx.Manager
	hooks      *domain.HookRegistry[*Period]
}

// NewService creates a period lifecycle service.
func NewService(
	repo Repository,
	valuer *valuation.Valuer,
	aggregator *ledger.Aggregator,
	engine *cmv.Engine,
	txManager tx.Manager,
) *Service {
	return &Service{
		repo:       repo,
		valuer:     valuer,
		aggregator: aggregator,
		engine:     engine,
		txManager:  txManager,
		hooks:      domain.NewHookRegistry[*Period](),
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Period] {
	return s.hooks
}

// Create validates and persists a new open period with its opening stock
// captured from the latest approved appraisal (or the live ledger value).
//
// The application-level open/overlap checks give friendly errors; the
// storage constraints close the race window between concurrent creates.
func (s *Service) Create(ctx context.Context, p *Period) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}

	if err := s.hooks.Run(ctx, domain.BeforeCreate, p); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.checkInvariants(ctx, p, nil); err != nil {
			return err
		}

		openingStock, err := s.valuer.OpeningStock(ctx)
		if err != nil {
			return err
		}
		p.OpeningStock = openingStock
		p.Status = StatusOpen

		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create period: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.hooks.Run(ctx, domain.AfterCreate, p); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}

	logger.Info(ctx, "period opened",
		"id", p.ID,
		"type", p.Type,
		"start_date", p.StartDate,
		"end_date", p.EndDate,
		"opening_stock", p.OpeningStock,
	)
	return nil
}

// GetByID retrieves a period.
func (s *Service) GetByID(ctx context.Context, periodID id.ID) (*Period, error) {
	return s.repo.GetByID(ctx, periodID)
}

// List retrieves periods with filtering and pagination.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Period], error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 500 {
		filter.Limit = 500
	}
	if filter.OrderBy == "" {
		filter.OrderBy = "start_date DESC"
	}
	return s.repo.List(ctx, filter)
}

// Update persists changes to an open period. Date changes re-run overlap
// detection excluding the period itself. Closed periods are immutable.
func (s *Service) Update(ctx context.Context, p *Period) error {
	if err := p.CanModify(); err != nil {
		return err
	}

	if err := p.Validate(ctx); err != nil {
		return err
	}

	if err := s.hooks.Run(ctx, domain.BeforeUpdate, p); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, p.ID)
		if err != nil {
			return err
		}
		if err := current.CanModify(); err != nil {
			return err
		}

		datesChanged := !current.StartDate.Equal(p.StartDate) || !current.EndDate.Equal(p.EndDate)
		if datesChanged {
			if err := s.checkOverlap(ctx, p.StartDate, p.EndDate, &p.ID); err != nil {
				return err
			}
		}

		p.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, p); err != nil {
			return fmt.Errorf("update period: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.hooks.Run(ctx, domain.AfterUpdate, p); err != nil {
		logger.Warn(ctx, "after-update hook failed", "error", err)
	}

	logger.Info(ctx, "period updated", "id", p.ID)
	return nil
}

// Delete hard-deletes an open period. Deleting a closed period is blocked.
// The guard and the delete run under a row lock so a concurrent close
// cannot slip in between them.
func (s *Service) Delete(ctx context.Context, periodID id.ID) error {
	var p *Period
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if err := p.CanModify(); err != nil {
			return err
		}

		if err := s.hooks.Run(ctx, domain.BeforeDelete, p); err != nil {
			return err
		}

		if err := s.repo.Delete(ctx, periodID); err != nil {
			return fmt.Errorf("delete period: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.hooks.Run(ctx, domain.AfterDelete, p); err != nil {
		logger.Warn(ctx, "after-delete hook failed", "error", err)
	}

	logger.Info(ctx, "period deleted", "id", periodID)
	return nil
}

// RegisterPurchase adds a manual purchase amount to the open period's
// running counter. The amount must not be negative.
func (s *Service) RegisterPurchase(ctx context.Context, periodID id.ID, amount types.Money) (*Period, error) {
	var p *Period
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if err := p.AddPurchase(amount); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, p); err != nil {
			return fmt.Errorf("update period: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase registered",
		"period_id", periodID,
		"amount", amount,
		"purchases_total", p.Purchases,
	)
	return p, nil
}

// Close runs the full close sequence inside one transaction: resolve the
// closing stock from an approved appraisal, capture authoritative ledger
// purchases and revenue, compute CMV, persist the per-product snapshots,
// and mark the period closed. Partial failure rolls everything back.
func (s *Service) Close(ctx context.Context, periodID id.ID, closingAppraisalID *id.ID) (*Period, error) {
	var p *Period
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if !p.IsOpen() {
			return apperror.NewPeriodClosed(p.ID)
		}

		closingStock, err := s.valuer.ClosingStock(ctx, p.StartDate, p.EndDate, closingAppraisalID)
		if err != nil {
			return err
		}

		// The ledger-derived figure overwrites the running counter.
		purchases, err := s.aggregator.CapturePurchases(ctx, p.StartDate, p.EndDate)
		if err != nil {
			return err
		}

		revenue, err := s.aggregator.Revenue(ctx, p.StartDate, p.EndDate)
		if err != nil {
			return err
		}

		summary, err := s.engine.Calculate(cmv.Figures{
			Closed:       true,
			OpeningStock: p.OpeningStock,
			Purchases:    purchases,
			ClosingStock: closingStock,
			Revenue:      revenue,
		})
		if err != nil {
			return err
		}

		window := cmv.Window{PeriodID: p.ID, From: p.StartDate, To: p.EndDate}
		if _, err := s.engine.SaveProductCMV(ctx, window); err != nil {
			return err
		}

		if err := p.Close(CloseFigures{
			ClosingStock:  summary.ClosingStock,
			Purchases:     summary.Purchases,
			Revenue:       summary.Revenue,
			CMV:           summary.CMV,
			CMVPercentage: summary.CMVPercentage,
		}, time.Now()); err != nil {
			return err
		}

		if err := s.repo.Update(ctx, p); err != nil {
			return fmt.Errorf("update period: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.hooks.Run(ctx, domain.AfterClose, p); err != nil {
		logger.Warn(ctx, "after-close hook failed", "error", err)
	}

	logger.Info(ctx, "period closed",
		"id", p.ID,
		"cmv", p.CMV,
		"cmv_percentage", p.CMVPercentage,
		"revenue", p.Revenue,
	)
	return p, nil
}

// RecomputeSnapshots re-derives and upserts the per-product snapshot rows
// for a closed period. The operation is idempotent.
func (s *Service) RecomputeSnapshots(ctx context.Context, periodID id.ID) ([]cmv.ProductCMVSnapshot, error) {
	p, err := s.repo.GetByID(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if p.IsOpen() {
		return nil, apperror.NewBusinessRule(
			apperror.CodeBusinessRule,
			"Snapshots can only be recomputed for a closed period",
		).WithDetail("id", periodID)
	}

	var snapshots []cmv.ProductCMVSnapshot
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		window := cmv.Window{PeriodID: p.ID, From: p.StartDate, To: p.EndDate}
		snapshots, err = s.engine.SaveProductCMV(ctx, window)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

// checkInvariants runs the single-open and overlap checks.
func (s *Service) checkInvariants(ctx context.Context, p *Period, excludeID *id.ID) error {
	open, err := s.repo.FindOpen(ctx)
	if err != nil {
		return fmt.Errorf("find open period: %w", err)
	}
	if open != nil && (excludeID == nil || open.ID != *excludeID) {
		return apperror.NewBusinessRule(
			apperror.CodePeriodAlreadyOpen,
			"An open period already exists; close it before opening another",
		).WithDetail("openPeriodId", open.ID)
	}

	return s.checkOverlap(ctx, p.StartDate, p.EndDate, excludeID)
}

func (s *Service) checkOverlap(ctx context.Context, startDate, endDate time.Time, excludeID *id.ID) error {
	overlapping, err := s.repo.FindOverlapping(ctx, startDate, endDate, excludeID)
	if err != nil {
		return fmt.Errorf("find overlapping periods: %w", err)
	}
	if len(overlapping) > 0 {
		return apperror.NewPeriodOverlap(
			startDate.Format(time.RFC3339),
			endDate.Format(time.RFC3339),
		).WithDetail("conflictingPeriodId", overlapping[0].ID)
	}
	return nil
}
