package cmv

import (
	"context"
	"time"

	"comanda/internal/core/id"
)

// SnapshotRepository persists per-(period, product) CMV result rows.
// Upsert semantics are keyed by the (period, product) unique pair.
type SnapshotRepository interface {
	Upsert(ctx context.Context, snapshot *ProductCMVSnapshot) error
	ListByPeriod(ctx context.Context, periodID id.ID) ([]ProductCMVSnapshot, error)
	CountByPeriod(ctx context.Context, periodID id.ID) (int64, error)
}

// OrderItemSource lists sold order items whose parent order falls inside
// [from, to] and is not cancelled.
type OrderItemSource interface {
	ListOrderItems(ctx context.Context, from, to time.Time) ([]OrderItem, error)
}
