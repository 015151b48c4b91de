// Package reporting composes aggregation output into rankings, period
// comparisons, and report documents. Rendering to HTML or PDF is
// delegated to an external renderer.
package reporting

import (
	"context"
	"time"

	"comanda/internal/core/id"
	"comanda/internal/core/types"
	"comanda/internal/domain/cmv"
)

// Trend classifies the movement of cmvPercentage between two periods.
// A lower CMV share of revenue is an improvement.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendWorsening Trend = "worsening"
	TrendStable    Trend = "stable"
)

// PeriodMetrics are the comparable figures of a single period.
type PeriodMetrics struct {
	PeriodID      id.ID       `json:"periodId"`
	Type          string      `json:"type"`
	StartDate     time.Time   `json:"startDate"`
	EndDate       time.Time   `json:"endDate"`
	Status        string      `json:"status"`
	Revenue       types.Money `json:"revenue"`
	CMV           types.Money `json:"cmv"`
	CMVPercentage types.Money `json:"cmvPercentage"`
	GrossMargin   types.Money `json:"grossMargin"`
}

// Variation is the first-vs-last delta of a comparison.
type Variation struct {
	CMV           types.Money `json:"cmv"`
	Revenue       types.Money `json:"revenue"`
	CMVPercentage types.Money `json:"cmvPercentage"`
}

// PeriodComparison is the result of comparing two or more periods.
type PeriodComparison struct {
	Periods   []PeriodMetrics `json:"periods"`
	Variation Variation       `json:"variation"`
	Trend     Trend           `json:"trend"`
}

// ReportDocument is the composed period report: financial summary,
// category breakdown, and top-N products.
type ReportDocument struct {
	PeriodID    id.ID                  `json:"periodId"`
	PeriodType  string                 `json:"periodType"`
	StartDate   time.Time              `json:"startDate"`
	EndDate     time.Time              `json:"endDate"`
	GeneratedAt time.Time              `json:"generatedAt"`
	Summary     *cmv.Summary           `json:"summary"`
	Categories  []cmv.CategoryCMV      `json:"categories"`
	TopProducts []cmv.RankedProductCMV `json:"topProducts"`
}

// Renderer turns a report document into a presentation format.
// HTML/PDF rendering lives outside this service.
type Renderer interface {
	Render(ctx context.Context, doc *ReportDocument, format string) ([]byte, error)
}
