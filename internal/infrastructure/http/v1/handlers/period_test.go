package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comanda/internal/core/apperror"
	"comanda/internal/core/id"
	"comanda/internal/core/types"
	"comanda/internal/domain"
	"comanda/internal/domain/cmv"
	"comanda/internal/domain/ledger"
	"comanda/internal/domain/period"
	"comanda/internal/domain/valuation"
	"comanda/internal/infrastructure/http/v1/middleware"
)

// --- Fakes ---

type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeRepo struct {
	byID map[id.ID]*period.Period
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: make(map[id.ID]*period.Period)}
}

func (r *fakeRepo) put(p *period.Period) *period.Period {
	r.byID[p.ID] = p
	return p
}

func (r *fakeRepo) Create(ctx context.Context, p *period.Period) error {
	r.byID[p.ID] = p
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, periodID id.ID) (*period.Period, error) {
	p, ok := r.byID[periodID]
	if !ok {
		return nil, apperror.NewNotFound("period", periodID)
	}
	return p, nil
}

func (r *fakeRepo) GetForUpdate(ctx context.Context, periodID id.ID) (*period.Period, error) {
	return r.GetByID(ctx, periodID)
}

func (r *fakeRepo) Update(ctx context.Context, p *period.Period) error {
	r.byID[p.ID] = p
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, periodID id.ID) error {
	delete(r.byID, periodID)
	return nil
}

func (r *fakeRepo) List(ctx context.Context, filter period.ListFilter) (domain.ListResult[*period.Period], error) {
	items := make([]*period.Period, 0, len(r.byID))
	for _, p := range r.byID {
		items = append(items, p)
	}
	return domain.ListResult[*period.Period]{Items: items, TotalCount: int64(len(items))}, nil
}

func (r *fakeRepo) FindOpen(ctx context.Context) (*period.Period, error) {
	for _, p := range r.byID {
		if p.IsOpen() {
			return p, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) FindOverlapping(ctx context.Context, startDate, endDate time.Time, excludeID *id.ID) ([]*period.Period, error) {
	return nil, nil
}

type fakeAppraisals struct {
	latest *valuation.Appraisal
}

func (f *fakeAppraisals) GetByID(ctx context.Context, appraisalID id.ID) (*valuation.Appraisal, error) {
	if f.latest == nil || f.latest.ID != appraisalID {
		return nil, apperror.NewNotFound("appraisal", appraisalID)
	}
	return f.latest, nil
}

func (f *fakeAppraisals) FindLatestApproved(ctx context.Context) (*valuation.Appraisal, error) {
	return f.latest, nil
}

func (f *fakeAppraisals) FindLatestApprovedInRange(ctx context.Context, from, to time.Time) (*valuation.Appraisal, error) {
	return f.latest, nil
}

type fakeIngredients struct{}

func (fakeIngredients) ListIngredients(ctx context.Context) ([]valuation.Ingredient, error) {
	return nil, nil
}

type fakePurchases struct{}

func (fakePurchases) ListPurchases(ctx context.Context, from, to time.Time) ([]ledger.PurchaseTransaction, error) {
	return nil, nil
}

type fakeOrders struct{}

func (fakeOrders) ListOrderSubtotals(ctx context.Context, from, to time.Time) ([]types.Money, error) {
	return nil, nil
}

type fakeOrderItems struct{}

func (fakeOrderItems) ListOrderItems(ctx context.Context, from, to time.Time) ([]cmv.OrderItem, error) {
	return nil, nil
}

type fakeSnapshots struct{}

func (fakeSnapshots) Upsert(ctx context.Context, snapshot *cmv.ProductCMVSnapshot) error {
	return nil
}

func (fakeSnapshots) ListByPeriod(ctx context.Context, periodID id.ID) ([]cmv.ProductCMVSnapshot, error) {
	return nil, nil
}

func (fakeSnapshots) CountByPeriod(ctx context.Context, periodID id.ID) (int64, error) {
	return 0, nil
}

// --- Helpers ---

type fixture struct {
	repo       *fakeRepo
	appraisals *fakeAppraisals
	router     *gin.Engine
}

func newFixture() *fixture {
	gin.SetMode(gin.TestMode)

	repo := newFakeRepo()
	appraisals := &fakeAppraisals{}
	valuer := valuation.NewValuer(appraisals, fakeIngredients{})
	aggregator := ledger.NewAggregator(fakePurchases{}, fakeOrders{})
	engine := cmv.NewEngine(fakeOrderItems{}, fakeSnapshots{})
	svc := period.NewService(repo, valuer, aggregator, engine, fakeTxManager{})

	handler := NewPeriodHandler(NewBaseHandler(), svc)

	router := gin.New()
	router.Use(middleware.ErrorHandler())
	router.GET("/periods/:id", handler.Get)
	router.POST("/periods/:id/close", handler.Close)

	return &fixture{repo: repo, appraisals: appraisals, router: router}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return rec, payload
}

func openPeriod(f *fixture) *period.Period {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	p := period.New(period.TypeMonthly, start, start.AddDate(0, 1, 0))
	p.OpeningStock = types.MustMoney("5000")
	return f.repo.put(p)
}

// --- Tests ---

func TestPeriodHandlerMalformedID(t *testing.T) {
	f := newFixture()

	for _, tc := range []struct {
		name   string
		method string
		path   string
	}{
		{"get", http.MethodGet, "/periods/not-a-uuid"},
		{"close", http.MethodPost, "/periods/not-a-uuid/close"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec, payload := f.do(t, tc.method, tc.path, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, apperror.CodeValidation, payload["code"])
		})
	}
}

func TestCloseWithoutRequestBody(t *testing.T) {
	f := newFixture()
	p := openPeriod(f)
	f.appraisals.latest = &valuation.Appraisal{
		ID:            id.New(),
		TotalPhysical: types.MustMoney("4000"),
		Status:        valuation.AppraisalStatusApproved,
	}

	// closingAppraisalId is optional, so the close endpoint must accept a
	// bodyless POST and fall back to the latest in-window appraisal.
	rec, payload := f.do(t, http.MethodPost, "/periods/"+p.ID.String()+"/close", "")
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	assert.Equal(t, string(period.StatusClosed), payload["status"])
	assert.Equal(t, "4000", payload["closingStock"])
}

func TestCloseWithExplicitAppraisal(t *testing.T) {
	f := newFixture()
	p := openPeriod(f)
	appraisalID := id.New()
	f.appraisals.latest = &valuation.Appraisal{
		ID:            appraisalID,
		TotalPhysical: types.MustMoney("3500"),
		Status:        valuation.AppraisalStatusApproved,
	}

	rec, payload := f.do(t, http.MethodPost, "/periods/"+p.ID.String()+"/close",
		`{"appraisalId":"`+appraisalID.String()+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	assert.Equal(t, "3500", payload["closingStock"])
}

func TestCloseWithMalformedAppraisalID(t *testing.T) {
	f := newFixture()
	p := openPeriod(f)

	rec, payload := f.do(t, http.MethodPost, "/periods/"+p.ID.String()+"/close",
		`{"appraisalId":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperror.CodeValidation, payload["code"])
}
