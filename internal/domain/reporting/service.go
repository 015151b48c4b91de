package reporting

import (
	"context"
	"time"

	"comanda/internal/core/apperror"
	"comanda/internal/core/id"
	"comanda/internal/core/types"
	"comanda/internal/domain/cmv"
	"comanda/internal/domain/ledger"
	"comanda/internal/domain/period"
)

// stableThreshold is the cmvPercentage delta (in percentage points)
// within which a comparison reads as stable.
var stableThreshold = types.NewMoney(2)

// Service is the ranking and reporting facade over the cost engine.
type Service struct {
	periods    period.Repository
	engine     *cmv.Engine
	aggregator *ledger.Aggregator
	renderer   Renderer
}

// NewService creates a reporting service. The renderer may be nil when no
// export format is configured.
func NewService(periods period.Repository, engine *cmv.Engine, aggregator *ledger.Aggregator, renderer Renderer) *Service {
	return &Service{
		periods:    periods,
		engine:     engine,
		aggregator: aggregator,
		renderer:   renderer,
	}
}

// CMVSummary returns the period-level CMV figures. Closed periods use the
// persisted numbers; an open period is measured live, which requires a
// closing stock value to already be present.
func (s *Service) CMVSummary(ctx context.Context, periodID id.ID) (*cmv.Summary, error) {
	p, err := s.periods.GetByID(ctx, periodID)
	if err != nil {
		return nil, err
	}
	return s.summaryFor(ctx, p)
}

func (s *Service) summaryFor(ctx context.Context, p *period.Period) (*cmv.Summary, error) {
	figures := cmv.Figures{
		Closed:       !p.IsOpen(),
		OpeningStock: p.OpeningStock,
		Purchases:    p.Purchases,
		ClosingStock: p.ClosingStock,
		Revenue:      p.Revenue,
	}

	// Open periods have no persisted revenue yet; measure it live.
	if p.IsOpen() {
		revenue, err := s.aggregator.Revenue(ctx, p.StartDate, p.EndDate)
		if err != nil {
			return nil, err
		}
		figures.Revenue = revenue
	}

	return s.engine.Calculate(figures)
}

// ProductCMV returns the ranked per-product breakdown for a period.
func (s *Service) ProductCMV(ctx context.Context, periodID id.ID) (*cmv.ProductRanking, error) {
	p, err := s.periods.GetByID(ctx, periodID)
	if err != nil {
		return nil, err
	}
	return s.engine.ProductRanking(ctx, cmv.Window{PeriodID: p.ID, From: p.StartDate, To: p.EndDate})
}

// CategoryCMV returns the per-category breakdown for a period.
func (s *Service) CategoryCMV(ctx context.Context, periodID id.ID) ([]cmv.CategoryCMV, error) {
	p, err := s.periods.GetByID(ctx, periodID)
	if err != nil {
		return nil, err
	}
	return s.engine.CategoryCMV(ctx, cmv.Window{PeriodID: p.ID, From: p.StartDate, To: p.EndDate})
}

// PurchaseHistory returns the itemized purchase list for a period window.
func (s *Service) PurchaseHistory(ctx context.Context, periodID id.ID) (*ledger.PurchaseHistory, error) {
	p, err := s.periods.GetByID(ctx, periodID)
	if err != nil {
		return nil, err
	}
	return s.aggregator.PurchaseHistory(ctx, p.StartDate, p.EndDate)
}

// ComparePeriods compares two or more periods in the given order and
// classifies the first-vs-last cmvPercentage movement: within ±2
// percentage points is stable, below is improving, above is worsening.
func (s *Service) ComparePeriods(ctx context.Context, periodIDs []id.ID) (*PeriodComparison, error) {
	if len(periodIDs) < 2 {
		return nil, apperror.NewFieldValidation(map[string][]string{
			"periodIds": {"at least two period ids are required"},
		})
	}

	metrics := make([]PeriodMetrics, 0, len(periodIDs))
	for _, periodID := range periodIDs {
		p, err := s.periods.GetByID(ctx, periodID)
		if err != nil {
			return nil, err
		}
		summary, err := s.summaryFor(ctx, p)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, PeriodMetrics{
			PeriodID:      p.ID,
			Type:          string(p.Type),
			StartDate:     p.StartDate,
			EndDate:       p.EndDate,
			Status:        string(p.Status),
			Revenue:       summary.Revenue,
			CMV:           summary.CMV,
			CMVPercentage: summary.CMVPercentage,
			GrossMargin:   summary.GrossMargin,
		})
	}

	first := metrics[0]
	last := metrics[len(metrics)-1]
	delta := last.CMVPercentage.Sub(first.CMVPercentage)

	return &PeriodComparison{
		Periods: metrics,
		Variation: Variation{
			CMV:           last.CMV.Sub(first.CMV),
			Revenue:       last.Revenue.Sub(first.Revenue),
			CMVPercentage: delta,
		},
		Trend: classifyTrend(delta),
	}, nil
}

func classifyTrend(delta types.Money) Trend {
	switch {
	case delta.Abs().LessThanOrEqual(stableThreshold):
		return TrendStable
	case delta.IsNegative():
		return TrendImproving
	default:
		return TrendWorsening
	}
}

// BuildPeriodReport composes the full report document for a period:
// financial summary, category breakdown, and the top-N products by CMV.
func (s *Service) BuildPeriodReport(ctx context.Context, periodID id.ID, topN int) (*ReportDocument, error) {
	p, err := s.periods.GetByID(ctx, periodID)
	if err != nil {
		return nil, err
	}

	summary, err := s.summaryFor(ctx, p)
	if err != nil {
		return nil, err
	}

	window := cmv.Window{PeriodID: p.ID, From: p.StartDate, To: p.EndDate}
	categories, err := s.engine.CategoryCMV(ctx, window)
	if err != nil {
		return nil, err
	}

	ranking, err := s.engine.ProductRanking(ctx, window)
	if err != nil {
		return nil, err
	}

	if topN <= 0 {
		topN = 10
	}
	top := ranking.Products
	if len(top) > topN {
		top = top[:topN]
	}

	return &ReportDocument{
		PeriodID:    p.ID,
		PeriodType:  string(p.Type),
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		GeneratedAt: time.Now().UTC(),
		Summary:     summary,
		Categories:  categories,
		TopProducts: top,
	}, nil
}

// RenderPeriodReport builds the document and hands it to the external
// renderer for the requested format.
func (s *Service) RenderPeriodReport(ctx context.Context, periodID id.ID, topN int, format string) ([]byte, error) {
	if s.renderer == nil {
		return nil, apperror.NewBusinessRule(
			apperror.CodeBusinessRule,
			"No report renderer is configured",
		)
	}
	doc, err := s.BuildPeriodReport(ctx, periodID, topN)
	if err != nil {
		return nil, err
	}
	return s.renderer.Render(ctx, doc, format)
}
