package period

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comanda/internal/core/apperror"
	"comanda/internal/core/types"
)

func TestPeriodValidate(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		mutate    func(p *Period)
		wantField string
	}{
		{
			name:   "valid weekly period",
			mutate: func(p *Period) {},
		},
		{
			name:      "unknown type",
			mutate:    func(p *Period) { p.Type = "quarterly" },
			wantField: "type",
		},
		{
			name:      "missing start date",
			mutate:    func(p *Period) { p.StartDate = time.Time{} },
			wantField: "startDate",
		},
		{
			name:      "missing end date",
			mutate:    func(p *Period) { p.EndDate = time.Time{} },
			wantField: "endDate",
		},
		{
			name: "start not before end",
			mutate: func(p *Period) {
				p.StartDate = end
				p.EndDate = start
			},
			wantField: "startDate",
		},
		{
			name: "zero-length window",
			mutate: func(p *Period) {
				p.EndDate = p.StartDate
			},
			wantField: "startDate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(TypeWeekly, start, end)
			tt.mutate(p)

			err := p.Validate(ctx)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok, "expected AppError, got %v", err)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
			fields, ok := appErr.Details["fields"].(map[string][]string)
			require.True(t, ok)
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestPeriodOverlaps(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
	}
	p := New(TypeWeekly, day(10), day(17))

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  bool
	}{
		{"fully before", day(1), day(5), false},
		{"fully after", day(20), day(27), false},
		{"identical range", day(10), day(17), true},
		{"contained inside", day(12), day(14), true},
		{"straddles start", day(8), day(12), true},
		{"straddles end", day(15), day(20), true},
		// Half-open ranges: a period may start exactly where another ends.
		{"adjacent before", day(3), day(10), false},
		{"adjacent after", day(17), day(24), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Overlaps(tt.start, tt.end))
		})
	}
}

func TestPeriodAddPurchase(t *testing.T) {
	p := New(TypeDaily, time.Now(), time.Now().Add(24*time.Hour))

	require.NoError(t, p.AddPurchase(types.MustMoney("120.50")))
	require.NoError(t, p.AddPurchase(types.MustMoney("79.50")))
	assert.True(t, p.Purchases.Equal(types.MustMoney("200.00")), "got %s", p.Purchases)

	err := p.AddPurchase(types.MustMoney("-5"))
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.True(t, p.Purchases.Equal(types.MustMoney("200.00")), "negative amount must not change the counter")
}

func TestPeriodClose(t *testing.T) {
	p := New(TypeMonthly, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	closedAt := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)

	figures := CloseFigures{
		ClosingStock:  types.MustMoney("4200.00"),
		Purchases:     types.MustMoney("8100.00"),
		Revenue:       types.MustMoney("30000.00"),
		CMV:           types.MustMoney("9900.00"),
		CMVPercentage: types.MustMoney("33.00"),
	}

	require.NoError(t, p.Close(figures, closedAt))
	assert.Equal(t, StatusClosed, p.Status)
	require.NotNil(t, p.ClosedAt)
	assert.Equal(t, closedAt, *p.ClosedAt)
	assert.True(t, p.CMV.Equal(figures.CMV))
	assert.True(t, p.CMVPercentage.Equal(figures.CMVPercentage))

	// Closing twice is rejected, and so is any further mutation.
	err := p.Close(figures, closedAt.Add(time.Hour))
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodePeriodClosed, appErr.Code)

	err = p.AddPurchase(types.MustMoney("10"))
	appErr, ok = apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodePeriodClosed, appErr.Code)
}
