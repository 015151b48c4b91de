package period

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comanda/internal/core/apperror"
	"comanda/internal/core/id"
	"comanda/internal/core/types"
	"comanda/internal/domain"
	"comanda/internal/domain/cmv"
	"comanda/internal/domain/ledger"
	"comanda/internal/domain/valuation"
)

// --- Fakes ---

// fakeTxManager runs the callback directly; the service's transactional
// composition is what is under test, not the database.
type fakeTxManager struct{}

func (m *fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeRepo struct {
	byID    map[id.ID]*Period
	open    *Period
	overlap []*Period

	created []*Period
	updated []*Period
	deleted []id.ID
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: make(map[id.ID]*Period)}
}

func (r *fakeRepo) put(p *Period) *Period {
	r.byID[p.ID] = p
	return p
}

func (r *fakeRepo) Create(ctx context.Context, p *Period) error {
	r.created = append(r.created, p)
	r.byID[p.ID] = p
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, periodID id.ID) (*Period, error) {
	p, ok := r.byID[periodID]
	if !ok {
		return nil, apperror.NewNotFound("period", periodID)
	}
	return p, nil
}

func (r *fakeRepo) GetForUpdate(ctx context.Context, periodID id.ID) (*Period, error) {
	return r.GetByID(ctx, periodID)
}

func (r *fakeRepo) Update(ctx context.Context, p *Period) error {
	r.updated = append(r.updated, p)
	r.byID[p.ID] = p
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, periodID id.ID) error {
	r.deleted = append(r.deleted, periodID)
	delete(r.byID, periodID)
	return nil
}

func (r *fakeRepo) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Period], error) {
	items := make([]*Period, 0, len(r.byID))
	for _, p := range r.byID {
		items = append(items, p)
	}
	return domain.ListResult[*Period]{Items: items, TotalCount: int64(len(items))}, nil
}

func (r *fakeRepo) FindOpen(ctx context.Context) (*Period, error) {
	return r.open, nil
}

func (r *fakeRepo) FindOverlapping(ctx context.Context, start, end time.Time, excludeID *id.ID) ([]*Period, error) {
	out := make([]*Period, 0)
	for _, p := range r.overlap {
		if excludeID != nil && p.ID == *excludeID {
			continue
		}
		if p.Overlaps(start, end) {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeAppraisals struct {
	byID          map[id.ID]*valuation.Appraisal
	latest        *valuation.Appraisal
	latestInRange *valuation.Appraisal
}

func (f *fakeAppraisals) GetByID(ctx context.Context, appraisalID id.ID) (*valuation.Appraisal, error) {
	a, ok := f.byID[appraisalID]
	if !ok {
		return nil, apperror.NewNotFound("appraisal", appraisalID)
	}
	return a, nil
}

func (f *fakeAppraisals) FindLatestApproved(ctx context.Context) (*valuation.Appraisal, error) {
	return f.latest, nil
}

func (f *fakeAppraisals) FindLatestApprovedInRange(ctx context.Context, from, to time.Time) (*valuation.Appraisal, error) {
	return f.latestInRange, nil
}

type fakeIngredients struct {
	items []valuation.Ingredient
}

func (f *fakeIngredients) ListIngredients(ctx context.Context) ([]valuation.Ingredient, error) {
	return f.items, nil
}

type fakePurchases struct {
	transactions []ledger.PurchaseTransaction
}

func (f *fakePurchases) ListPurchases(ctx context.Context, from, to time.Time) ([]ledger.PurchaseTransaction, error) {
	return f.transactions, nil
}

type fakeOrders struct {
	subtotals []types.Money
}

func (f *fakeOrders) ListOrderSubtotals(ctx context.Context, from, to time.Time) ([]types.Money, error) {
	return f.subtotals, nil
}

type fakeOrderItems struct {
	items []cmv.OrderItem
}

func (f *fakeOrderItems) ListOrderItems(ctx context.Context, from, to time.Time) ([]cmv.OrderItem, error) {
	return f.items, nil
}

type fakeSnapshots struct {
	upserts []cmv.ProductCMVSnapshot
}

func (f *fakeSnapshots) Upsert(ctx context.Context, snapshot *cmv.ProductCMVSnapshot) error {
	f.upserts = append(f.upserts, *snapshot)
	return nil
}

func (f *fakeSnapshots) ListByPeriod(ctx context.Context, periodID id.ID) ([]cmv.ProductCMVSnapshot, error) {
	return f.upserts, nil
}

func (f *fakeSnapshots) CountByPeriod(ctx context.Context, periodID id.ID) (int64, error) {
	return int64(len(f.upserts)), nil
}

type fixture struct {
	repo       *fakeRepo
	appraisals *fakeAppraisals
	snapshots  *fakeSnapshots
	orders     *fakeOrders
	service    *Service
}

func newFixture() *fixture {
	repo := newFakeRepo()
	appraisals := &fakeAppraisals{byID: make(map[id.ID]*valuation.Appraisal)}
	snapshots := &fakeSnapshots{}
	orders := &fakeOrders{}

	valuer := valuation.NewValuer(appraisals, &fakeIngredients{})
	aggregator := ledger.NewAggregator(&fakePurchases{}, orders)
	engine := cmv.NewEngine(&fakeOrderItems{}, snapshots)

	return &fixture{
		repo:       repo,
		appraisals: appraisals,
		snapshots:  snapshots,
		orders:     orders,
		service:    NewService(repo, valuer, aggregator, engine, &fakeTxManager{}),
	}
}

func window(startDay, endDay int) (time.Time, time.Time) {
	return time.Date(2026, 3, startDay, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, endDay, 0, 0, 0, 0, time.UTC)
}

// --- Create ---

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("captures opening stock from latest approved appraisal", func(t *testing.T) {
		f := newFixture()
		f.appraisals.latest = &valuation.Appraisal{
			ID:            id.New(),
			TotalPhysical: types.MustMoney("5250.00"),
			Status:        valuation.AppraisalStatusApproved,
		}

		start, end := window(1, 8)
		p := New(TypeWeekly, start, end)
		require.NoError(t, f.service.Create(ctx, p))

		require.Len(t, f.repo.created, 1)
		assert.True(t, p.OpeningStock.Equal(types.MustMoney("5250.00")), "got %s", p.OpeningStock)
		assert.Equal(t, StatusOpen, p.Status)
	})

	t.Run("rejects a second open period", func(t *testing.T) {
		f := newFixture()
		openStart, openEnd := window(1, 8)
		f.repo.open = f.repo.put(New(TypeWeekly, openStart, openEnd))

		start, end := window(10, 17)
		err := f.service.Create(ctx, New(TypeWeekly, start, end))

		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodePeriodAlreadyOpen, appErr.Code)
		assert.Empty(t, f.repo.created)
	})

	t.Run("rejects an overlapping window", func(t *testing.T) {
		f := newFixture()
		existingStart, existingEnd := window(1, 8)
		existing := New(TypeWeekly, existingStart, existingEnd)
		existing.Status = StatusClosed
		f.repo.overlap = []*Period{existing}

		start, end := window(5, 12)
		err := f.service.Create(ctx, New(TypeWeekly, start, end))

		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodePeriodOverlap, appErr.Code)
		assert.Equal(t, existing.ID, appErr.Details["conflictingPeriodId"])
	})

	t.Run("allows an adjacent window", func(t *testing.T) {
		f := newFixture()
		existingStart, existingEnd := window(1, 8)
		existing := New(TypeWeekly, existingStart, existingEnd)
		existing.Status = StatusClosed
		f.repo.overlap = []*Period{existing}

		start, end := window(8, 15)
		require.NoError(t, f.service.Create(ctx, New(TypeWeekly, start, end)))
		assert.Len(t, f.repo.created, 1)
	})

	t.Run("rejects invalid dates before touching storage", func(t *testing.T) {
		f := newFixture()
		start, end := window(8, 1)
		err := f.service.Create(ctx, New(TypeWeekly, start, end))

		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeValidation, appErr.Code)
		assert.Empty(t, f.repo.created)
	})
}

// --- Update / Delete guards ---

func TestServiceUpdateClosedPeriod(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	start, end := window(1, 8)
	p := New(TypeWeekly, start, end)
	p.Status = StatusClosed
	f.repo.put(p)

	err := f.service.Update(ctx, p)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodePeriodClosed, appErr.Code)
	assert.Empty(t, f.repo.updated)
}

func TestServiceDeleteClosedPeriod(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	start, end := window(1, 8)
	p := New(TypeWeekly, start, end)
	p.Status = StatusClosed
	f.repo.put(p)

	err := f.service.Delete(ctx, p.ID)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodePeriodClosed, appErr.Code)
	assert.Empty(t, f.repo.deleted)
}

// closeOnLockRepo simulates a close that commits just before the row lock
// is acquired: the locked read observes the period already closed.
type closeOnLockRepo struct {
	*fakeRepo
}

func (r *closeOnLockRepo) GetForUpdate(ctx context.Context, periodID id.ID) (*Period, error) {
	p, err := r.fakeRepo.GetForUpdate(ctx, periodID)
	if err != nil {
		return nil, err
	}
	p.Status = StatusClosed
	return p, nil
}

func TestServiceDeleteRacingClose(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	start, end := window(1, 8)
	p := f.repo.put(New(TypeWeekly, start, end))

	repo := &closeOnLockRepo{fakeRepo: f.repo}
	svc := NewService(repo, nil, nil, nil, &fakeTxManager{})

	// The closed-period guard must see the post-close row, so the delete
	// is rejected instead of removing a closed period.
	err := svc.Delete(ctx, p.ID)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodePeriodClosed, appErr.Code)
	assert.Empty(t, f.repo.deleted)
}

// --- RegisterPurchase ---

func TestServiceRegisterPurchase(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	start, end := window(1, 8)
	p := f.repo.put(New(TypeWeekly, start, end))

	updated, err := f.service.RegisterPurchase(ctx, p.ID, types.MustMoney("310.40"))
	require.NoError(t, err)
	assert.True(t, updated.Purchases.Equal(types.MustMoney("310.40")))

	updated, err = f.service.RegisterPurchase(ctx, p.ID, types.MustMoney("89.60"))
	require.NoError(t, err)
	assert.True(t, updated.Purchases.Equal(types.MustMoney("400.00")))
	assert.Len(t, f.repo.updated, 2)
}

// --- Close ---

func TestServiceClose(t *testing.T) {
	ctx := context.Background()

	setup := func() (*fixture, *Period) {
		f := newFixture()
		start, end := window(1, 8)
		p := f.repo.put(New(TypeWeekly, start, end))
		p.OpeningStock = types.MustMoney("5000.00")
		// The manual counter is overwritten by the ledger figure at close.
		p.Purchases = types.MustMoney("123.45")
		return f, p
	}

	t.Run("full close sequence", func(t *testing.T) {
		f, p := setup()

		appraisal := &valuation.Appraisal{
			ID:            id.New(),
			TotalPhysical: types.MustMoney("4000.00"),
			Status:        valuation.AppraisalStatusApproved,
		}
		f.appraisals.byID[appraisal.ID] = appraisal
		f.orders.subtotals = []types.Money{
			types.MustMoney("6000.00"),
			types.MustMoney("4000.00"),
		}

		closed, err := f.service.Close(ctx, p.ID, &appraisal.ID)
		require.NoError(t, err)

		assert.Equal(t, StatusClosed, closed.Status)
		require.NotNil(t, closed.ClosedAt)
		assert.True(t, closed.ClosingStock.Equal(types.MustMoney("4000.00")))
		// Ledger purchases are empty in this fixture: counter overwritten to 0.
		assert.True(t, closed.Purchases.IsZero(), "got %s", closed.Purchases)
		assert.True(t, closed.Revenue.Equal(types.MustMoney("10000.00")))
		// cmv = 5000 + 0 - 4000 = 1000; 10% of revenue.
		assert.True(t, closed.CMV.Equal(types.MustMoney("1000.00")), "got %s", closed.CMV)
		assert.True(t, closed.CMVPercentage.Equal(types.MustMoney("10.00")), "got %s", closed.CMVPercentage)
	})

	t.Run("explicit appraisal must be approved", func(t *testing.T) {
		f, p := setup()

		appraisal := &valuation.Appraisal{
			ID:            id.New(),
			TotalPhysical: types.MustMoney("4000.00"),
			Status:        valuation.AppraisalStatusDraft,
		}
		f.appraisals.byID[appraisal.ID] = appraisal

		_, err := f.service.Close(ctx, p.ID, &appraisal.ID)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeAppraisalNotApproved, appErr.Code)
		assert.Equal(t, StatusOpen, p.Status, "failed close must not transition the period")
	})

	t.Run("no appraisal in window blocks close", func(t *testing.T) {
		f, p := setup()

		_, err := f.service.Close(ctx, p.ID, nil)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeAppraisalRequired, appErr.Code)
		assert.Equal(t, StatusOpen, p.Status)
	})

	t.Run("close of a closed period is rejected", func(t *testing.T) {
		f, p := setup()
		p.Status = StatusClosed

		_, err := f.service.Close(ctx, p.ID, nil)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodePeriodClosed, appErr.Code)
	})

	t.Run("after-close hook observes the closed period", func(t *testing.T) {
		f, p := setup()

		appraisal := &valuation.Appraisal{
			ID:            id.New(),
			TotalPhysical: types.MustMoney("4500.00"),
			Status:        valuation.AppraisalStatusApproved,
		}
		f.appraisals.latestInRange = appraisal

		var hookStatus Status
		f.service.Hooks().On(domain.AfterClose, func(ctx context.Context, hooked *Period) error {
			hookStatus = hooked.Status
			return nil
		})

		_, err := f.service.Close(ctx, p.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, StatusClosed, hookStatus)
	})
}

// --- RecomputeSnapshots ---

func TestServiceRecomputeSnapshots(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	start, end := window(1, 8)
	p := f.repo.put(New(TypeWeekly, start, end))

	_, err := f.service.RecomputeSnapshots(ctx, p.ID)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeBusinessRule, appErr.Code)

	p.Status = StatusClosed
	snapshots, err := f.service.RecomputeSnapshots(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, snapshots)
}
