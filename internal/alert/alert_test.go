package alert

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"stockroom/internal/db/dbtest"
	"stockroom/internal/metrics"
	"stockroom/internal/models"
	"stockroom/internal/notify"
)

type fakeSender struct {
	mu     sync.Mutex
	reqs   []notify.Request
	err    error
	onSend func() // runs before the result is returned
}

func (f *fakeSender) Send(_ context.Context, req notify.Request) (*notify.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.onSend != nil {
		f.onSend()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &notify.Result{Success: true, Type: req.Type, Recipient: req.To}, nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func ptr[T any](v T) *T { return &v }

type fixture struct {
	db      *gorm.DB
	sender  *fakeSender
	metrics *metrics.Metrics
	eval    *Evaluator
	company *models.Company
	tech    *models.Profile
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	f := &fixture{db: db, sender: &fakeSender{}, metrics: metrics.New(nil)}
	f.eval = NewEvaluator(NewGormLookup(db), f.sender, f.metrics, zap.NewNop().Sugar())

	f.company = &models.Company{Name: "Acme", AdminEmail: "boss@acme.test"}
	require.NoError(t, db.Create(f.company).Error)
	f.tech = &models.Profile{ID: "tech-1", Email: "tech@acme.test", Role: models.RoleTech, CompanyID: ptr(f.company.ID)}
	require.NoError(t, db.Create(f.tech).Error)
	return f
}

func (f *fixture) item(t *testing.T, min int, technician bool) *models.InventoryItem {
	t.Helper()
	it := &models.InventoryItem{Name: "Copper pipe", Quantity: 10, MinQuantity: min, CompanyID: ptr(f.company.ID)}
	if technician {
		it.TechnicianID = ptr(f.tech.ID)
	}
	require.NoError(t, f.db.Create(it).Error)
	return it
}

func TestPredicates(t *testing.T) {
	cases := []struct {
		q, min          int
		company, techie bool
	}{
		{0, 5, false, true},
		{1, 5, true, true},
		{5, 5, true, true},
		{6, 5, false, false},
		{0, 0, false, true},
		{-1, 0, false, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.company, CompanyAlertDue(tc.q, tc.min), "company q=%d min=%d", tc.q, tc.min)
		assert.Equal(t, tc.techie, TechnicianAlertDue(tc.q, tc.min), "technician q=%d min=%d", tc.q, tc.min)
	}
}

func TestCheckCompany(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	it := f.item(t, 5, false)

	out := f.eval.CheckCompany(ctx, it.ID, 3)
	require.True(t, out.Sent())
	require.Equal(t, 1, f.sender.count())
	req := f.sender.reqs[0]
	assert.Equal(t, notify.TypeLowStock, req.Type)
	assert.Equal(t, "boss@acme.test", req.To)
	assert.Equal(t, "Copper pipe", req.ItemName)
	assert.Equal(t, 3, req.Quantity)
	assert.Equal(t, 5, req.MinQuantity)
	assert.Equal(t, "Acme", req.CompanyName)

	out = f.eval.CheckCompany(ctx, it.ID, 0)
	assert.Equal(t, ReasonOutOfStock, out.Reason)
	out = f.eval.CheckCompany(ctx, it.ID, 6)
	assert.Equal(t, ReasonAboveThreshold, out.Reason)
	out = f.eval.CheckCompany(ctx, "missing", 1)
	assert.Equal(t, ReasonItemNotFound, out.Reason)
	assert.Equal(t, 1, f.sender.count())

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AlertEvaluations().WithLabelValues(models.AlertPathCompany, metrics.OutcomeSent)))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.AlertEvaluations().WithLabelValues(models.AlertPathCompany, metrics.OutcomeSkipped)))
}

func TestRepeatedWritesRetrigger(t *testing.T) {
	f := newFixture(t)
	it := f.item(t, 5, false)
	f.eval.CheckCompany(context.Background(), it.ID, 2)
	f.eval.CheckCompany(context.Background(), it.ID, 2)
	assert.Equal(t, 2, f.sender.count())
}

func TestCheckTechnicianIncludesZero(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	it := f.item(t, 2, true)

	out := f.eval.CheckTechnician(ctx, it.ID, 0, f.tech.ID)
	require.True(t, out.Sent())
	req := f.sender.reqs[0]
	assert.Equal(t, notify.TypeTechLowStock, req.Type)
	assert.Equal(t, "boss@acme.test", req.To)
	assert.Equal(t, "tech@acme.test", req.TechEmail)
	assert.Equal(t, 0, req.Quantity)

	out = f.eval.CheckTechnician(ctx, it.ID, 3, f.tech.ID)
	assert.Equal(t, ReasonAboveThreshold, out.Reason)
	out = f.eval.CheckTechnician(ctx, it.ID, 1, "ghost")
	assert.Equal(t, ReasonTechnicianNotFound, out.Reason)
	assert.Equal(t, 1, f.sender.count())
}

func TestCompanyGating(t *testing.T) {
	ctx := context.Background()

	t.Run("alerts disabled", func(t *testing.T) {
		f := newFixture(t)
		it := f.item(t, 5, false)
		require.NoError(t, f.db.Model(f.company).Update("enable_low_stock_alerts", false).Error)
		assert.Equal(t, ReasonAlertsDisabled, f.eval.CheckCompany(ctx, it.ID, 1).Reason)
		assert.Equal(t, ReasonAlertsDisabled, f.eval.CheckTechnician(ctx, it.ID, 1, f.tech.ID).Reason)
		assert.Zero(t, f.sender.count())
	})

	t.Run("alerts explicitly enabled", func(t *testing.T) {
		f := newFixture(t)
		it := f.item(t, 5, false)
		require.NoError(t, f.db.Model(f.company).Update("enable_low_stock_alerts", true).Error)
		assert.True(t, f.eval.CheckCompany(ctx, it.ID, 1).Sent())
	})

	t.Run("no admin email", func(t *testing.T) {
		f := newFixture(t)
		it := f.item(t, 5, false)
		require.NoError(t, f.db.Model(f.company).Update("admin_email", "").Error)
		assert.Equal(t, ReasonNoAdminEmail, f.eval.CheckCompany(ctx, it.ID, 1).Reason)
		assert.Zero(t, f.sender.count())
	})

	t.Run("no settings row", func(t *testing.T) {
		f := newFixture(t)
		it := &models.InventoryItem{Name: "Orphan", MinQuantity: 5, CompanyID: ptr("gone")}
		require.NoError(t, f.db.Create(it).Error)
		assert.Equal(t, ReasonNoSettings, f.eval.CheckCompany(ctx, it.ID, 1).Reason)
		assert.Zero(t, f.sender.count())
	})

	t.Run("item without company", func(t *testing.T) {
		f := newFixture(t)
		it := &models.InventoryItem{Name: "Loose", MinQuantity: 5}
		require.NoError(t, f.db.Create(it).Error)
		assert.Equal(t, ReasonNoCompany, f.eval.CheckCompany(ctx, it.ID, 1).Reason)
	})

	t.Run("technician path falls back to technician company", func(t *testing.T) {
		f := newFixture(t)
		it := &models.InventoryItem{Name: "Van stock", MinQuantity: 1, TechnicianID: ptr(f.tech.ID)}
		require.NoError(t, f.db.Create(it).Error)
		assert.True(t, f.eval.CheckTechnician(ctx, it.ID, 1, f.tech.ID).Sent())
	})
}

func TestDeliveryFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	it := f.item(t, 5, false)
	f.sender.err = &notify.DeliveryError{Status: 500, Body: "upstream"}

	out := f.eval.CheckCompany(context.Background(), it.ID, 1)
	assert.True(t, out.Failed())
	assert.Equal(t, ReasonDeliveryFailed, out.Reason)
	var de *notify.DeliveryError
	assert.True(t, errors.As(out.Err, &de))
}

func TestIntentFor(t *testing.T) {
	in := IntentFor(&models.InventoryItem{ID: "i1"}, 3)
	assert.Equal(t, models.AlertPathCompany, in.Path)
	assert.Nil(t, in.TechnicianID)

	in = IntentFor(&models.InventoryItem{ID: "i1", TechnicianID: ptr("t1")}, 0)
	assert.Equal(t, models.AlertPathTechnician, in.Path)
	require.NotNil(t, in.TechnicianID)
	assert.Equal(t, "t1", *in.TechnicianID)
}

func TestWorkerProcessesIntents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	outbox := NewOutbox(f.db)
	w := NewWorker(outbox, f.eval, WorkerConfig{BatchSize: 10}, f.metrics, zap.NewNop().Sugar())

	companyItem := f.item(t, 5, false)
	techItem := f.item(t, 5, true)
	low := IntentFor(companyItem, 2)
	high := IntentFor(companyItem, 9)
	tech := IntentFor(techItem, 0)
	for _, in := range []*models.AlertIntent{low, high, tech} {
		require.NoError(t, outbox.Enqueue(ctx, in))
	}

	n, err := w.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, f.sender.count())

	for _, id := range []int64{low.ID, high.ID, tech.ID} {
		got, err := outbox.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.AlertStatusDone, got.Status)
		assert.Equal(t, 1, got.Attempts)
		assert.NotNil(t, got.ProcessedAt)
	}

	n, err = w.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.OutboxProcessed().WithLabelValues(models.AlertStatusDone)))
}

func TestWorkerSingleAttemptByDefault(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sender.err = errors.New("smtp down")
	outbox := NewOutbox(f.db)
	w := NewWorker(outbox, f.eval, WorkerConfig{}, f.metrics, zap.NewNop().Sugar())

	in := IntentFor(f.item(t, 5, false), 1)
	require.NoError(t, outbox.Enqueue(ctx, in))

	_, err := w.ProcessBatch(ctx)
	require.NoError(t, err)
	got, err := outbox.Get(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusFailed, got.Status)
	assert.Contains(t, got.LastError, "smtp down")
	assert.Equal(t, 1, f.sender.count())
}

func TestWorkerFinishesIntentWhenCancelledMidDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t)
	f.sender.err = context.Canceled
	f.sender.onSend = cancel
	outbox := NewOutbox(f.db)
	w := NewWorker(outbox, f.eval, WorkerConfig{}, f.metrics, zap.NewNop().Sugar())

	in := IntentFor(f.item(t, 5, false), 1)
	require.NoError(t, outbox.Enqueue(ctx, in))

	n, err := w.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := outbox.Get(context.Background(), in.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusFailed, got.Status)
	assert.Equal(t, 1, got.Attempts)
}

func TestWorkerRetriesUpToMaxAttempts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sender.err = errors.New("smtp down")
	outbox := NewOutbox(f.db)
	w := NewWorker(outbox, f.eval, WorkerConfig{MaxAttempts: 2}, f.metrics, zap.NewNop().Sugar())

	in := IntentFor(f.item(t, 5, false), 1)
	require.NoError(t, outbox.Enqueue(ctx, in))

	_, err := w.ProcessBatch(ctx)
	require.NoError(t, err)
	got, _ := outbox.Get(ctx, in.ID)
	assert.Equal(t, models.AlertStatusPending, got.Status)

	f.sender.err = nil
	_, err = w.ProcessBatch(ctx)
	require.NoError(t, err)
	got, _ = outbox.Get(ctx, in.ID)
	assert.Equal(t, models.AlertStatusDone, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, 2, f.sender.count())

	recent, err := outbox.List(ctx, f.company.ID, models.AlertStatusDone, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
	foreign, err := outbox.List(ctx, "other-company", "", 10)
	require.NoError(t, err)
	assert.Empty(t, foreign)
}
