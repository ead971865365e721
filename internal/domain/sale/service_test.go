package sale_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xenking/fieldservice-sale/internal/domain/env"
	"github.com/xenking/fieldservice-sale/internal/domain/fsm"
	"github.com/xenking/fieldservice-sale/internal/domain/message"
	"github.com/xenking/fieldservice-sale/internal/domain/product"
	"github.com/xenking/fieldservice-sale/internal/domain/sale"
	"github.com/xenking/fieldservice-sale/internal/storage/memory"
)

// --- Fixture ---

const (
	stageNew       = "stage-new"
	stageCompleted = "stage-completed"
)

type fixture struct {
	store  *memory.Store
	linker *sale.Linker
	svc    *sale.Service
	env    env.Env
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, func(r sale.Repositories) sale.Repositories { return r })
}

func newFixtureWith(t *testing.T, wrap func(sale.Repositories) sale.Repositories) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	for _, st := range fsm.DefaultStages() {
		require.NoError(t, store.Stages().Upsert(ctx, st))
	}
	require.NoError(t, store.Locations().Upsert(ctx, fsm.Location{ID: "loc1", Name: "HQ", Direction: "Ring twice"}))

	products := []product.Product{
		{
			ID: "svc-line", Name: "Boiler repair", Type: product.TypeService,
			InvoicePolicy: product.InvoiceDelivered, ListPrice: decimal.NewFromInt(80), Tracking: product.TrackingLine,
			Template: &product.Template{ID: "tmpl1", Name: "Repair", Instructions: "inspect", Duration: decimal.NewFromInt(2), CategoryIDs: []string{"hvac"}},
		},
		{
			ID: "svc-sale", Name: "Site visit", Type: product.TypeService,
			InvoicePolicy: product.InvoiceOrdered, ListPrice: decimal.NewFromInt(40), Tracking: product.TrackingSale,
			Template: &product.Template{ID: "tmpl2", Name: "Visit", Instructions: "check in", Duration: decimal.NewFromInt(1)},
		},
		{
			ID: "svc-sale-2", Name: "Cleanup", Type: product.TypeService,
			InvoicePolicy: product.InvoiceOrdered, ListPrice: decimal.NewFromInt(20), Tracking: product.TrackingSale,
		},
		{
			ID: "svc-none", Name: "Consulting", Type: product.TypeService,
			InvoicePolicy: product.InvoiceOrdered, ListPrice: decimal.NewFromInt(100), Tracking: product.TrackingNone,
		},
		{
			ID: "goods", Name: "Filter", Type: product.TypeConsumable,
			InvoicePolicy: product.InvoiceOrdered, ListPrice: decimal.NewFromInt(5), Tracking: product.TrackingNone,
		},
	}
	for _, p := range products {
		require.NoError(t, store.Products().Upsert(ctx, p))
	}

	repos := wrap(store.Repositories())
	linker := sale.NewLinker(repos, message.NewChatter(store.Messages()))
	return &fixture{
		store:  store,
		linker: linker,
		svc:    sale.NewService(store, linker, repos, store.Messages()),
		env:    env.New("u1", "c1", env.GroupSaleUser),
	}
}

func (f *fixture) order(t *testing.T, location string) *sale.Order {
	t.Helper()
	expected := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	o, err := f.svc.CreateOrder(context.Background(), f.env, sale.CreateOrderRequest{
		FSMLocationID: location,
		ExpectedDate:  &expected,
		Note:          "Annual maintenance",
	})
	require.NoError(t, err)
	return o
}

func (f *fixture) lines(t *testing.T, orderID string, productIDs ...string) []*sale.Line {
	t.Helper()
	vals := make([]sale.LineValues, len(productIDs))
	for i, id := range productIDs {
		vals[i] = sale.LineValues{ProductID: id, Quantity: decimal.NewFromInt(2), Sequence: i + 1}
	}
	created, err := f.svc.AddLines(context.Background(), f.env, orderID, vals)
	require.NoError(t, err)
	return created
}

func (f *fixture) fsmOrders(t *testing.T, saleID string) []fsm.Order {
	t.Helper()
	ctx := context.Background()
	details, err := f.svc.GetOrder(ctx, f.env, saleID)
	require.NoError(t, err)

	var ids []string
	for _, l := range details.Lines {
		ids = append(ids, l.ID)
	}
	byLine, err := f.store.FSMOrders().SearchBySaleLines(ctx, ids)
	require.NoError(t, err)
	shared, err := f.store.FSMOrders().SearchSaleLevel(ctx, []string{saleID})
	require.NoError(t, err)
	return append(byLine, shared...)
}

func lineByProduct(t *testing.T, lines []*sale.Line, productID string) *sale.Line {
	t.Helper()
	for _, l := range lines {
		if l.ProductID == productID {
			return l
		}
	}
	t.Fatalf("no line for product %s", productID)
	return nil
}

// --- Tests ---

func TestConfirmOrder_OneFSMOrderPerTrackedLine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	so := f.order(t, "loc1")
	f.lines(t, so.ID, "svc-line", "svc-line", "svc-none", "goods")

	details, err := f.svc.ConfirmOrder(ctx, f.env, so.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.StateSale, details.Order.State)

	seen := make(map[string]bool)
	for _, l := range details.Lines {
		switch l.ProductID {
		case "svc-line":
			require.NotEmpty(t, l.FSMOrderID)
			assert.False(t, seen[l.FSMOrderID], "order shared between lines")
			seen[l.FSMOrderID] = true
			assert.Equal(t, sale.DeliveredFieldService, l.QtyDeliveredMethod)

			fo, err := f.svc.GetFSMOrder(ctx, f.env, l.FSMOrderID)
			require.NoError(t, err)
			assert.Equal(t, l.ID, fo.SaleLineID)
			assert.Equal(t, so.ID, fo.SaleID)
			assert.Equal(t, stageNew, fo.StageID)
		case "svc-none", "goods":
			assert.Empty(t, l.FSMOrderID)
		}
	}
	assert.Len(t, f.fsmOrders(t, so.ID), 2)
}

func TestConfirmOrder_TemplateValues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	so := f.order(t, "loc1")
	line := f.lines(t, so.ID, "svc-line")[0]

	_, err := f.svc.ConfirmOrder(ctx, f.env, so.ID)
	require.NoError(t, err)

	details, err := f.svc.GetOrder(ctx, f.env, so.ID)
	require.NoError(t, err)
	fo, err := f.svc.GetFSMOrder(ctx, f.env, lineByProduct(t, details.Lines, "svc-line").FSMOrderID)
	require.NoError(t, err)

	assert.Equal(t, "tmpl1", fo.TemplateID)
	assert.Equal(t, "inspect", fo.Todo)
	assert.True(t, fo.ScheduledDuration.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, []string{"hvac"}, fo.CategoryIDs)
	assert.Equal(t, "loc1", fo.LocationID)
	assert.Equal(t, "Ring twice", fo.LocationDirections)
	assert.Equal(t, line.Name, fo.Description)
	assert.Equal(t, "c1", fo.CompanyID)
	require.NotNil(t, fo.ScheduledDateStart)
	assert.Equal(t, so.ExpectedDate.UTC(), fo.ScheduledDateStart.UTC())
}

func TestConfirmOrder_SaleLevelOrderShared(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	so := f.order(t, "loc1")
	f.lines(t, so.ID, "svc-sale", "svc-sale-2", "svc-line")

	details, err := f.svc.ConfirmOrder(ctx, f.env, so.ID)
	require.NoError(t, err)

	shared, err := f.store.FSMOrders().SearchSaleLevel(ctx, []string{so.ID})
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Empty(t, shared[0].SaleLineID)
	assert.Equal(t, "tmpl2", shared[0].TemplateID)
	assert.Equal(t, "check in", shared[0].Todo)

	for _, l := range details.Lines {
		if l.ProductID == "svc-line" {
			assert.NotEqual(t, shared[0].ID, l.FSMOrderID)
			continue
		}
		assert.Equal(t, shared[0].ID, l.FSMOrderID)
	}
	assert.Len(t, f.fsmOrders(t, so.ID), 2)
}

func TestConfirmOrder_ReconfirmReusesOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	so := f.order(t, "loc1")
	f.lines(t, so.ID, "svc-line", "svc-sale")

	first, err := f.svc.ConfirmOrder(ctx, f.env, so.ID)
	require.NoError(t, err)
	_, err = f.svc.CancelOrder(ctx, f.env, so.ID)
	require.NoError(t, err)
	_, err = f.svc.ResetToDraft(ctx, f.env, so.ID)
	require.NoError(t, err)
	second, err := f.svc.ConfirmOrder(ctx, f.env, so.ID)
	require.NoError(t, err)

	for i := range first.Lines {
		assert.Equal(t, first.Lines[i].FSMOrderID, second.Lines[i].FSMOrderID)
	}
	assert.Len(t, f.fsmOrders(t, so.ID), 2)
}

func TestFindOrCreateFSMOrders_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	so := f.order(t, "loc1")
	f.lines(t, so.ID, "svc-line", "svc-line")
	_, err := f.svc.ConfirmOrder(ctx, f.env, so.ID)
	require.NoError(t, err)

	lines, err := f.store.Lines().ListByOrder(ctx, so.ID)
	require.NoError(t, err)
	ptrs := []*sale.Line{&lines[0], &lines[1]}
	records, err := f.linker.Resolve(ctx, ptrs)
	require.NoError(t, err)

	got, err := f.linker.FindOrCreateFSMOrders(ctx, f.env, records)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, lines[0].FSMOrderID, got[lines[0].ID].ID)
	assert.Equal(t, lines[1].FSMOrderID, got[lines[1].ID].ID)
	assert.Len(t, f.fsmOrders(t, so.ID), 2)
}

func TestAddLines_ConfirmedOrderGeneratesImmediately(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	so := f.order(t, "loc1")
	f.lines(t, so.ID, "goods")
	_, err := f.svc.ConfirmOrder(ctx, f.env, so.ID)
	require.NoError(t, err)

	created := f.lines(t, so.ID, "svc-line", "svc-none")
	require.Len(t, created, 2)
	assert.NotEmpty(t, lineByProduct(t, created, "svc-line").FSMOrderID)
	assert.Empty(t, lineByProduct(t, created, "svc-none").FSMOrderID)
	assert.Equal(t, "Boiler repair", created[0].Name)
	assert.True(t, created[0].PriceUnit.Equal(decimal.NewFromInt(80)))
}

func TestAddLines_DraftOrderDoesNotGenerate(t *testing.T) {
	f := newFixture(t)
	so := f.order(t, "loc1")

	created := f.lines(t, so.ID, "svc-line")
	assert.Empty(t, created[0].FSMOrderID)
	assert.Empty(t, f.fsmOrders(t, so.ID))
}

func TestAddLines_Rejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	so := f.order(t, "loc1")

	t.Run("negative quantity", func(t *testing.T) {
		_, err := f.svc.AddLines(ctx, f.env, so.ID, []sale.LineValues{{ProductID: "goods", Quantity: decimal.NewFromInt(-1)}})
		require.ErrorIs(t, err, sale.ErrInvalidQuantity)
	})
	t.Run("unknown product", func(t *testing.T) {
		_, err := f.svc.AddLines(ctx, f.env, so.ID, []sale.LineValues{{ProductID: "missing", Quantity: decimal.NewFromInt(1)}})
		require.ErrorIs(t, err, product.ErrNotFound)
	})
	t.Run("no sale group", func(t *testing.T) {
		_, err := f.svc.AddLines(ctx, env.New("u2", "c1"), so.ID, []sale.LineValues{{ProductID: "goods", Quantity: decimal.NewFromInt(1)}})
		require.ErrorIs(t, err, env.ErrAccessDenied)
	})
	t.Run("cancelled order", func(t *testing.T) {
		_, err := f.svc.CancelOrder(ctx, f.env, so.ID)
		require.NoError(t, err)
		_, err = f.svc.AddLines(ctx, f.env, so.ID, []sale.LineValues{{ProductID: "goods", Quantity: decimal.NewFromInt(1)}})

		var se *sale.StateError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, sale.StateCancel, se.State)
	})

	details, err := f.svc.GetOrder(ctx, f.env, so.ID)
	require.NoError(t, err)
	assert.Empty(t, details.Lines)
}

func TestConfirmOrder_MissingLocation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	so := f.order(t, "")
	f.lines(t, so.ID, "svc-line")

	_, err := f.svc.ConfirmOrder(ctx, f.env, so.ID)
	require.ErrorIs(t, err, sale.ErrMissingLocation)

	details, err := f.svc.GetOrder(ctx, f.env, so.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.StateDraft, details.Order.State, "confirmation rolled back")
	assert.Empty(t, f.fsmOrders(t, so.ID))
}

func TestConfirmOrder_WithoutFSMGroup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	so := f.order(t, "loc1")
	f.lines(t, so.ID, "svc-line")

	_, err := f.svc.ConfirmOrder(ctx, f.env, so.ID)
	require.NoError(t, err)
	assert.False(t, f.env.HasGroup(env.GroupFSMUser))
	assert.Len(t, f.fsmOrders(t, so.ID), 1)
}

func TestConfirmOrder_InvalidState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	so := f.order(t, "loc1")
	_, err := f.svc.ConfirmOrder(ctx, f.env, so.ID)
	require.NoError(t, err)

	_, err = f.svc.ConfirmOrder(ctx, f.env, so.ID)
	require.ErrorIs(t, err, sale.ErrInvalidState)

	_, err = f.svc.ConfirmOrder(ctx, f.env, "missing")
	require.ErrorIs(t, err, sale.ErrNotFound)
}

func TestSetFSMOrderStage_UpdatesDelivered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	so := f.order(t, "loc1")
	f.lines(t, so.ID, "svc-line")
	details, err := f.svc.ConfirmOrder(ctx, f.env, so.ID)
	require.NoError(t, err)

	line := details.Lines[0]
	assert.True(t, line.QtyDelivered.IsZero())
	assert.False(t, line.ProductUpdatable)

	fsmUser := env.New("tech", "c1", env.GroupFSMUser)

	_, err = f.svc.SetFSMOrderStage(ctx, f.env, line.FSMOrderID, fsm.StageCompletedRef)
	require.ErrorIs(t, err, env.ErrAccessDenied)

	fo, err := f.svc.SetFSMOrderStage(ctx, fsmUser, line.FSMOrderID, fsm.StageCompletedRef)
	require.NoError(t, err)
	assert.Equal(t, stageCompleted, fo.StageID)

	details, err = f.svc.GetOrder(ctx, f.env, so.ID)
	require.NoError(t, err)
	assert.True(t, details.Lines[0].QtyDelivered.Equal(decimal.NewFromInt(2)))

	_, err = f.svc.SetFSMOrderStage(ctx, fsmUser, line.FSMOrderID, fsm.StageCancelledRef)
	require.NoError(t, err)
	details, err = f.svc.GetOrder(ctx, f.env, so.ID)
	require.NoError(t, err)
	assert.True(t, details.Lines[0].QtyDelivered.IsZero())

	_, err = f.svc.SetFSMOrderStage(ctx, fsmUser, line.FSMOrderID, "unknown.stage")
	require.ErrorIs(t, err, fsm.ErrStageNotFound)
}

func TestPrepareInvoice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	so := f.order(t, "loc1")
	f.lines(t, so.ID, "svc-line", "svc-none")
	details, err := f.svc.ConfirmOrder(ctx, f.env, so.ID)
	require.NoError(t, err)
	fsLine := lineByProduct(t, details.Lines, "svc-line")

	vals, err := f.svc.PrepareInvoice(ctx, f.env, so.ID)
	require.NoError(t, err)
	require.Len(t, vals, 1, "delivery-invoiced line has nothing delivered yet")
	assert.Empty(t, vals[0].FSMOrderIDs)

	_, err = f.svc.SetFSMOrderStage(ctx, env.New("tech", "c1", env.GroupFSMUser), fsLine.FSMOrderID, fsm.StageCompletedRef)
	require.NoError(t, err)

	vals, err = f.svc.PrepareInvoice(ctx, f.env, so.ID)
	require.NoError(t, err)
	require.Len(t, vals, 2)
	for i, v := range vals {
		assert.Equal(t, i+1, v.Sequence)
		if v.ProductID == "svc-line" {
			assert.Equal(t, []string{fsLine.FSMOrderID}, v.FSMOrderIDs)
			assert.True(t, v.Quantity.Equal(decimal.NewFromInt(2)))
		} else {
			assert.Empty(t, v.FSMOrderIDs)
		}
	}
}

func TestCompanyIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	so := f.order(t, "loc1")
	f.lines(t, so.ID, "svc-line")
	details, err := f.svc.ConfirmOrder(ctx, f.env, so.ID)
	require.NoError(t, err)
	fsmOrderID := details.Lines[0].FSMOrderID

	f2 := f.order(t, "loc1")
	intruder := env.New("intruder", "other-company", env.GroupSaleUser, env.GroupFSMUser)

	tests := []struct {
		name string
		call func() error
	}{
		{name: "confirm", call: func() error { _, err := f.svc.ConfirmOrder(ctx, intruder, f2.ID); return err }},
		{name: "cancel", call: func() error { _, err := f.svc.CancelOrder(ctx, intruder, so.ID); return err }},
		{name: "get order", call: func() error { _, err := f.svc.GetOrder(ctx, intruder, so.ID); return err }},
		{name: "add lines", call: func() error {
			_, err := f.svc.AddLines(ctx, intruder, f2.ID, []sale.LineValues{{ProductID: "svc-none", Quantity: decimal.NewFromInt(1)}})
			return err
		}},
		{name: "prepare invoice", call: func() error { _, err := f.svc.PrepareInvoice(ctx, intruder, so.ID); return err }},
		{name: "get fsm order", call: func() error { _, err := f.svc.GetFSMOrder(ctx, intruder, fsmOrderID); return err }},
		{name: "set fsm stage", call: func() error {
			_, err := f.svc.SetFSMOrderStage(ctx, intruder, fsmOrderID, fsm.StageCompletedRef)
			return err
		}},
		{name: "sale order messages", call: func() error {
			_, err := f.svc.Messages(ctx, intruder, env.ModelSaleOrder, so.ID)
			return err
		}},
		{name: "fsm order messages", call: func() error {
			_, err := f.svc.Messages(ctx, intruder, env.ModelFSMOrder, fsmOrderID)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.ErrorIs(t, err, env.ErrAccessDenied)
			var accessErr *env.AccessError
			require.ErrorAs(t, err, &accessErr)
			assert.Equal(t, "c1", accessErr.Company)
		})
	}

	got, err := f.svc.GetOrder(ctx, f.env, so.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.StateSale, got.Order.State)
	draft, err := f.svc.GetOrder(ctx, f.env, f2.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.StateDraft, draft.Order.State)
	assert.Empty(t, draft.Lines)

	fo, err := f.svc.GetFSMOrder(ctx, f.env, fsmOrderID)
	require.NoError(t, err)
	assert.Equal(t, stageNew, fo.StageID)

	_, err = f.svc.GetOrder(ctx, intruder.Sudo(), so.ID)
	require.NoError(t, err)
}

func TestMessages_UnknownModel(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Messages(context.Background(), f.env, "res.partner", "p1")
	require.ErrorIs(t, err, sale.ErrNotFound)
}

func TestConfirmOrder_PostsMessages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	so := f.order(t, "loc1")
	f.lines(t, so.ID, "svc-line", "svc-sale")
	details, err := f.svc.ConfirmOrder(ctx, f.env, so.ID)
	require.NoError(t, err)

	onSale, err := f.svc.Messages(ctx, f.env, env.ModelSaleOrder, so.ID)
	require.NoError(t, err)
	require.Len(t, onSale, 2)
	for _, m := range onSale {
		assert.Contains(t, m.Body, "Field Service Order Created")
		assert.Equal(t, "u1", m.AuthorID)
	}

	fsLine := lineByProduct(t, details.Lines, "svc-line")
	onFSM, err := f.svc.Messages(ctx, f.env, env.ModelFSMOrder, fsLine.FSMOrderID)
	require.NoError(t, err)
	require.Len(t, onFSM, 1)
	assert.Contains(t, onFSM[0].Body, "This order has been created from:")
	assert.Contains(t, onFSM[0].Body, "(Boiler repair)")
}

// racingFSMRepo simulates another transaction creating the order between
// the linker's search and its insert.
type racingFSMRepo struct {
	fsm.Repository

	mu    sync.Mutex
	raced bool
}

func (r *racingFSMRepo) SearchBySaleLines(ctx context.Context, lineIDs []string) ([]fsm.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.raced {
		return nil, nil
	}
	return r.Repository.SearchBySaleLines(ctx, lineIDs)
}

func (r *racingFSMRepo) SearchSaleLevel(ctx context.Context, saleIDs []string) ([]fsm.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.raced {
		return nil, nil
	}
	return r.Repository.SearchSaleLevel(ctx, saleIDs)
}

func (r *racingFSMRepo) Create(ctx context.Context, e env.Env, vals fsm.Values) (*fsm.Order, error) {
	r.mu.Lock()
	if !r.raced {
		r.raced = true
		r.mu.Unlock()
		if _, err := r.Repository.Create(ctx, e, vals); err != nil {
			return nil, err
		}
	} else {
		r.mu.Unlock()
	}
	return r.Repository.Create(ctx, e, vals)
}

func TestFindOrCreate_RecoversFromConcurrentCreate(t *testing.T) {
	for _, productID := range []string{"svc-line", "svc-sale"} {
		t.Run(productID, func(t *testing.T) {
			ctx := context.Background()
			f := newFixtureWith(t, func(r sale.Repositories) sale.Repositories {
				r.FSMOrders = &racingFSMRepo{Repository: r.FSMOrders}
				return r
			})
			so := f.order(t, "loc1")
			f.lines(t, so.ID, productID)

			details, err := f.svc.ConfirmOrder(ctx, f.env, so.ID)
			require.NoError(t, err)

			orders := f.fsmOrders(t, so.ID)
			require.Len(t, orders, 1)
			assert.Equal(t, orders[0].ID, details.Lines[0].FSMOrderID)
		})
	}
}

func TestCreateFSMOrders_CountsCreated(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	store := newFixture(t).store
	repos := store.Repositories()
	linker := sale.NewLinker(repos, message.NewChatter(store.Messages()), sale.WithMeterProvider(mp))
	svc := sale.NewService(store, linker, repos, store.Messages())
	e := env.New("u1", "c1", env.GroupSaleUser)

	so, err := svc.CreateOrder(ctx, e, sale.CreateOrderRequest{FSMLocationID: "loc1"})
	require.NoError(t, err)
	_, err = svc.AddLines(ctx, e, so.ID, []sale.LineValues{
		{ProductID: "svc-line", Quantity: decimal.NewFromInt(1)},
		{ProductID: "svc-line", Quantity: decimal.NewFromInt(1)},
		{ProductID: "svc-sale", Quantity: decimal.NewFromInt(1)},
	})
	require.NoError(t, err)
	_, err = svc.ConfirmOrder(ctx, e, so.ID)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "fsm_orders_created" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	assert.Equal(t, int64(3), total)

	_, err = svc.GetFSMOrder(ctx, e, "missing")
	require.ErrorIs(t, err, fsm.ErrNotFound)
}
