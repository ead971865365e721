package memory

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/fieldservice-sale/internal/domain/auth"
	"github.com/xenking/fieldservice-sale/internal/domain/env"
	"github.com/xenking/fieldservice-sale/internal/domain/fsm"
	"github.com/xenking/fieldservice-sale/internal/domain/message"
	"github.com/xenking/fieldservice-sale/internal/domain/product"
	"github.com/xenking/fieldservice-sale/internal/domain/sale"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	for _, st := range fsm.DefaultStages() {
		require.NoError(t, s.Stages().Upsert(context.Background(), st))
	}
	return s
}

func TestWithinTx_RollsBack(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	errBoom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Orders().Create(ctx, &sale.Order{ID: "so1", State: sale.StateDraft}))
		return s.WithinTx(ctx, func(ctx context.Context) error {
			require.NoError(t, s.Orders().Create(ctx, &sale.Order{ID: "so2", State: sale.StateDraft}))
			return errBoom
		})
	})
	require.ErrorIs(t, err, errBoom)

	_, err = s.Orders().GetByID(ctx, "so1")
	require.ErrorIs(t, err, sale.ErrNotFound)

	o := &sale.Order{ID: "so3"}
	require.NoError(t, s.Orders().Create(ctx, o))
	assert.Equal(t, "S00001", o.Name, "sequence rolled back too")
}

func TestWithinTx_Isolation(t *testing.T) {
	tests := []struct {
		name    string
		txErr   error
		visible bool
	}{
		{name: "rollback", txErr: errors.New("boom")},
		{name: "commit", visible: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			inside := make(chan struct{})
			release := make(chan struct{})
			txDone := make(chan error, 1)

			go func() {
				txDone <- s.WithinTx(ctx, func(ctx context.Context) error {
					if err := s.Orders().Create(ctx, &sale.Order{ID: "so1", State: sale.StateDraft}); err != nil {
						return err
					}
					close(inside)
					<-release
					return tt.txErr
				})
			}()
			<-inside

			_, err := s.Orders().GetByID(ctx, "so1")
			require.ErrorIs(t, err, sale.ErrNotFound, "uncommitted order leaked")

			writeDone := make(chan error, 1)
			go func() {
				writeDone <- s.Products().Upsert(ctx, product.Product{ID: "p1", Name: "Filter"})
			}()

			close(release)
			require.ErrorIs(t, <-txDone, tt.txErr)
			require.NoError(t, <-writeDone)

			_, err = s.Products().GetByID(ctx, "p1")
			require.NoError(t, err, "write outside the transaction was lost")

			_, err = s.Orders().GetByID(ctx, "so1")
			if tt.visible {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, sale.ErrNotFound)
			}
		})
	}
}

func TestOrderRepository(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	o := &sale.Order{ID: "so1", State: sale.StateDraft}
	require.NoError(t, s.Orders().Create(ctx, o))
	require.Error(t, s.Orders().Create(ctx, &sale.Order{ID: "so1"}))

	require.NoError(t, s.Orders().SetState(ctx, "so1", sale.StateSale))
	got, err := s.Orders().GetByID(ctx, "so1")
	require.NoError(t, err)
	assert.Equal(t, sale.StateSale, got.State)

	require.ErrorIs(t, s.Orders().SetState(ctx, "missing", sale.StateSale), sale.ErrNotFound)
}

func TestLineRepository_Ordering(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Orders().Create(ctx, &sale.Order{ID: "so1"}))

	lines := []*sale.Line{
		{ID: "a", OrderID: "so1", Sequence: 2},
		{ID: "b", OrderID: "so1", Sequence: 1},
		{ID: "c", OrderID: "so1", Sequence: 2},
	}
	require.NoError(t, s.Lines().Create(ctx, lines))
	require.Error(t, s.Lines().Create(ctx, []*sale.Line{{ID: "d", OrderID: "missing"}}))

	got, err := s.Lines().ListByOrder(ctx, "so1")
	require.NoError(t, err)
	var ids []string
	for _, l := range got {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)

	require.NoError(t, s.Lines().SetFSMOrder(ctx, "a", "fo1"))
	linked, err := s.Lines().ListByFSMOrder(ctx, "fo1")
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, "a", linked[0].ID)

	upd := linked[0]
	upd.QtyDelivered = decimal.NewFromInt(4)
	upd.FSMOrderID = "ignored"
	require.NoError(t, s.Lines().UpdateComputed(ctx, &upd))
	stored, err := s.Lines().ListByFSMOrder(ctx, "fo1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].QtyDelivered.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, "fo1", stored[0].FSMOrderID)
}

func TestFSMOrderRepository_Create(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	su := env.New("u1", "c1").Sudo()

	_, err := s.FSMOrders().Create(ctx, env.New("u1", "c1"), fsm.Values{})
	require.ErrorIs(t, err, env.ErrAccessDenied)

	first, err := s.FSMOrders().Create(ctx, su, fsm.Values{SaleID: "so1", SaleLineID: "l1"})
	require.NoError(t, err)
	assert.Equal(t, "FSO00001", first.Name)
	assert.Equal(t, "stage-new", first.StageID)

	tests := []struct {
		name string
		vals fsm.Values
		err  error
	}{
		{name: "same line", vals: fsm.Values{SaleID: "so1", SaleLineID: "l1"}, err: fsm.ErrDuplicate},
		{name: "other line", vals: fsm.Values{SaleID: "so1", SaleLineID: "l2"}},
		{name: "sale level", vals: fsm.Values{SaleID: "so1"}},
		{name: "sale level again", vals: fsm.Values{SaleID: "so1"}, err: fsm.ErrDuplicate},
		{name: "unlinked", vals: fsm.Values{}},
		{name: "unlinked again", vals: fsm.Values{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.FSMOrders().Create(ctx, su, tt.vals)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
		})
	}

	byLine, err := s.FSMOrders().SearchBySaleLines(ctx, []string{"l1", "l2"})
	require.NoError(t, err)
	assert.Len(t, byLine, 2)

	shared, err := s.FSMOrders().SearchSaleLevel(ctx, []string{"so1"})
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Empty(t, shared[0].SaleLineID)

	require.NoError(t, s.FSMOrders().SetStage(ctx, first.ID, "stage-completed"))
	got, err := s.FSMOrders().GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "stage-completed", got.StageID)
	require.ErrorIs(t, s.FSMOrders().SetStage(ctx, "missing", "stage-new"), fsm.ErrNotFound)
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	st, err := s.Stages().GetByRef(ctx, fsm.StageCompletedRef)
	require.NoError(t, err)
	assert.Equal(t, "stage-completed", st.ID)
	_, err = s.Stages().GetByRef(ctx, "missing")
	require.ErrorIs(t, err, fsm.ErrStageNotFound)

	require.NoError(t, s.APIKeys().Upsert(ctx, auth.APIKeyInfo{ID: "k1", KeyHash: "h1", Groups: []string{env.GroupSaleUser}}))
	info, err := s.APIKeys().FindByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "k1", info.ID)
	_, err = s.APIKeys().FindByHash(ctx, "h2")
	require.ErrorIs(t, err, auth.ErrNotFound)
}

func TestMessageRepository(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	chatter := message.NewChatter(s.Messages())
	e := env.New("u1", "c1")

	require.NoError(t, chatter.Post(ctx, e, env.ModelSaleOrder, "so1", "first"))
	require.NoError(t, chatter.Post(ctx, e, env.ModelFSMOrder, "so1", "other model"))
	require.NoError(t, chatter.Post(ctx, e, env.ModelSaleOrder, "so1", "second"))

	msgs, err := s.Messages().ListByRecord(ctx, env.ModelSaleOrder, "so1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Body)
	assert.Equal(t, "second", msgs[1].Body)
	assert.Equal(t, "u1", msgs[0].AuthorID)
}
