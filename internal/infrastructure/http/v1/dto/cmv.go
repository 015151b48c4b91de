package dto

import (
	"comanda/internal/domain/cmv"
	"comanda/internal/domain/ledger"
)

// CMVSummaryResponse wraps the period financial summary.
type CMVSummaryResponse struct {
	PeriodID string       `json:"periodId"`
	Summary  *cmv.Summary `json:"summary"`
}

// ProductRankingResponse wraps the per-product CMV ranking.
type ProductRankingResponse struct {
	PeriodID string              `json:"periodId"`
	Ranking  *cmv.ProductRanking `json:"ranking"`
}

// CategoryCMVResponse wraps the per-category breakdown.
type CategoryCMVResponse struct {
	PeriodID   string            `json:"periodId"`
	Categories []cmv.CategoryCMV `json:"categories"`
}

// RecomputeResponse reports the outcome of a snapshot recompute.
type RecomputeResponse struct {
	PeriodID  string `json:"periodId"`
	Snapshots int    `json:"snapshots"`
}

// PurchaseHistoryResponse wraps the purchase transaction listing.
type PurchaseHistoryResponse struct {
	PeriodID string                  `json:"periodId"`
	History  *ledger.PurchaseHistory `json:"history"`
}
