package period

import (
	"context"
	"time"

	"comanda/internal/core/id"
	"comanda/internal/domain"
)

// Repository defines persistence operations for periods.
type Repository interface {
	Create(ctx context.Context, p *Period) error
	GetByID(ctx context.Context, periodID id.ID) (*Period, error)
	// GetForUpdate locks the row for the duration of the transaction.
	GetForUpdate(ctx context.Context, periodID id.ID) (*Period, error)
	// Update persists changes with optimistic version check.
	Update(ctx context.Context, p *Period) error
	Delete(ctx context.Context, periodID id.ID) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Period], error)

	// FindOpen returns the single open period, or nil when none exists.
	FindOpen(ctx context.Context) (*Period, error)
	// FindOverlapping returns periods whose [start, end) range intersects
	// the given one, ignoring excludeID when non-nil.
	FindOverlapping(ctx context.Context, startDate, endDate time.Time, excludeID *id.ID) ([]*Period, error)
}

// ListFilter for filtering periods.
type ListFilter struct {
	Type     *Type
	Status   *Status
	DateFrom *time.Time
	DateTo   *time.Time

	OrderBy string
	Limit   int
	Offset  int
}

// DefaultListFilter returns sensible defaults.
func DefaultListFilter() ListFilter {
	return ListFilter{
		Limit:   50,
		OrderBy: "start_date DESC",
	}
}
