package period_repo

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"comanda/internal/core/apperror"
	"comanda/internal/domain/period"
)

func testPeriod() *period.Period {
	return period.New(
		period.TypeWeekly,
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
	)
}

func TestMapConstraintError(t *testing.T) {
	p := testPeriod()

	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantWrapped bool
	}{
		{
			name:     "single open constraint",
			err:      &pgconn.PgError{Code: "23505", ConstraintName: constraintSingleOpen},
			wantCode: apperror.CodePeriodAlreadyOpen,
		},
		{
			name:     "overlap exclusion constraint",
			err:      &pgconn.PgError{Code: "23P01", ConstraintName: constraintNoOverlap},
			wantCode: apperror.CodePeriodOverlap,
		},
		{
			name:        "unrelated constraint passes through",
			err:         &pgconn.PgError{Code: "23503", ConstraintName: "some_fk"},
			wantWrapped: true,
		},
		{
			name:        "non-pg error passes through",
			err:         errors.New("connection reset"),
			wantWrapped: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapConstraintError(tt.err, p)

			if tt.wantWrapped {
				if apperror.IsAppError(got) {
					t.Fatalf("expected wrapped error, got AppError: %v", got)
				}
				if !errors.Is(got, tt.err) {
					t.Errorf("wrapped error must preserve the cause")
				}
				return
			}

			appErr, ok := apperror.AsAppError(got)
			if !ok {
				t.Fatalf("expected AppError, got %v", got)
			}
			if appErr.Code != tt.wantCode {
				t.Errorf("code mismatch\nwant: %s\ngot:  %s", tt.wantCode, appErr.Code)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("mapped error must preserve the cause")
			}
		})
	}
}
