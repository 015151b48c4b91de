package valuation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comanda/internal/core/apperror"
	"comanda/internal/core/id"
	"comanda/internal/core/types"
)

type stubAppraisals struct {
	byID          map[id.ID]*Appraisal
	latest        *Appraisal
	latestInRange *Appraisal
}

func (s *stubAppraisals) GetByID(ctx context.Context, appraisalID id.ID) (*Appraisal, error) {
	a, ok := s.byID[appraisalID]
	if !ok {
		return nil, apperror.NewNotFound("appraisal", appraisalID)
	}
	return a, nil
}

func (s *stubAppraisals) FindLatestApproved(ctx context.Context) (*Appraisal, error) {
	return s.latest, nil
}

func (s *stubAppraisals) FindLatestApprovedInRange(ctx context.Context, from, to time.Time) (*Appraisal, error) {
	return s.latestInRange, nil
}

type stubIngredients struct {
	items []Ingredient
}

func (s *stubIngredients) ListIngredients(ctx context.Context) ([]Ingredient, error) {
	return s.items, nil
}

func TestValuerOpeningStock(t *testing.T) {
	ctx := context.Background()

	t.Run("uses latest approved appraisal", func(t *testing.T) {
		appraisals := &stubAppraisals{latest: &Appraisal{
			ID:            id.New(),
			TotalPhysical: types.MustMoney("7300.00"),
			Status:        AppraisalStatusApproved,
		}}
		valuer := NewValuer(appraisals, &stubIngredients{items: []Ingredient{
			{CurrentQuantity: types.NewQuantityFromFloat64(100), AverageCost: types.MustMoney("1.00")},
		}})

		value, err := valuer.OpeningStock(ctx)
		require.NoError(t, err)
		assert.True(t, value.Equal(types.MustMoney("7300.00")), "appraisal wins over live ledger")
	})

	t.Run("falls back to live ledger when no appraisal exists", func(t *testing.T) {
		valuer := NewValuer(&stubAppraisals{}, &stubIngredients{items: []Ingredient{
			{Name: "Flour", CurrentQuantity: types.NewQuantityFromFloat64(20), AverageCost: types.MustMoney("4.50")},  // 90.00
			{Name: "Beef", CurrentQuantity: types.NewQuantityFromFloat64(5.5), AverageCost: types.MustMoney("32.00")}, // 176.00
		}})

		value, err := valuer.OpeningStock(ctx)
		require.NoError(t, err)
		assert.True(t, value.Equal(types.MustMoney("266.00")), "got %s", value)
	})

	t.Run("empty ledger values to zero", func(t *testing.T) {
		valuer := NewValuer(&stubAppraisals{}, &stubIngredients{})

		value, err := valuer.OpeningStock(ctx)
		require.NoError(t, err)
		assert.True(t, value.IsZero())
	})
}

func TestValuerClosingStock(t *testing.T) {
	ctx := context.Background()
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)

	t.Run("explicit approved appraisal", func(t *testing.T) {
		appraisal := &Appraisal{
			ID:            id.New(),
			TotalPhysical: types.MustMoney("4100.00"),
			Status:        AppraisalStatusApproved,
		}
		appraisals := &stubAppraisals{byID: map[id.ID]*Appraisal{appraisal.ID: appraisal}}
		valuer := NewValuer(appraisals, &stubIngredients{})

		value, err := valuer.ClosingStock(ctx, from, to, &appraisal.ID)
		require.NoError(t, err)
		assert.True(t, value.Equal(types.MustMoney("4100.00")))
	})

	t.Run("explicit unapproved appraisal is rejected", func(t *testing.T) {
		for _, status := range []AppraisalStatus{AppraisalStatusDraft, AppraisalStatusRejected} {
			appraisal := &Appraisal{
				ID:            id.New(),
				TotalPhysical: types.MustMoney("4100.00"),
				Status:        status,
			}
			appraisals := &stubAppraisals{byID: map[id.ID]*Appraisal{appraisal.ID: appraisal}}
			valuer := NewValuer(appraisals, &stubIngredients{})

			_, err := valuer.ClosingStock(ctx, from, to, &appraisal.ID)
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeAppraisalNotApproved, appErr.Code)
		}
	})

	t.Run("unknown explicit appraisal id", func(t *testing.T) {
		valuer := NewValuer(&stubAppraisals{byID: map[id.ID]*Appraisal{}}, &stubIngredients{})

		missing := id.New()
		_, err := valuer.ClosingStock(ctx, from, to, &missing)
		assert.True(t, apperror.IsNotFound(err))
	})

	t.Run("latest approved in window when no explicit id", func(t *testing.T) {
		appraisals := &stubAppraisals{latestInRange: &Appraisal{
			ID:            id.New(),
			TotalPhysical: types.MustMoney("3900.00"),
			Status:        AppraisalStatusApproved,
		}}
		valuer := NewValuer(appraisals, &stubIngredients{})

		value, err := valuer.ClosingStock(ctx, from, to, nil)
		require.NoError(t, err)
		assert.True(t, value.Equal(types.MustMoney("3900.00")))
	})

	t.Run("no appraisal in window blocks valuation", func(t *testing.T) {
		valuer := NewValuer(&stubAppraisals{}, &stubIngredients{})

		_, err := valuer.ClosingStock(ctx, from, to, nil)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeAppraisalRequired, appErr.Code)
	})
}
