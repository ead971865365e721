package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/xenking/fieldservice-sale/internal/domain/env"
	"github.com/xenking/fieldservice-sale/internal/domain/fsm"
	"github.com/xenking/fieldservice-sale/internal/domain/message"
)

var (
	_ fsm.Repository     = (*FSMOrderRepository)(nil)
	_ message.Repository = (*MessageRepository)(nil)
)

// FSMOrderRepository implements fsm.Repository in memory. It enforces the
// same uniqueness rules as the Postgres schema.
type FSMOrderRepository struct{ s *Store }

// Create stores a new field service order in the first open stage.
func (r *FSMOrderRepository) Create(ctx context.Context, e env.Env, vals fsm.Values) (*fsm.Order, error) {
	if err := e.CheckCreate(env.ModelFSMOrder); err != nil {
		return nil, err
	}

	var created fsm.Order
	err := r.s.write(ctx, func(d *data) error {
		for _, o := range d.fsmOrders {
			if vals.SaleLineID != "" && o.SaleLineID == vals.SaleLineID {
				return fsm.ErrDuplicate
			}
			if vals.SaleLineID == "" && vals.SaleID != "" && o.SaleLineID == "" && o.SaleID == vals.SaleID {
				return fsm.ErrDuplicate
			}
		}

		d.fsmSeq++
		created = fsm.Order{
			ID:                 uuid.New().String(),
			Name:               fmt.Sprintf("FSO%05d", d.fsmSeq),
			LocationID:         vals.LocationID,
			LocationDirections: vals.LocationDirections,
			RequestEarly:       vals.RequestEarly,
			ScheduledDateStart: vals.ScheduledDateStart,
			Description:        vals.Description,
			TemplateID:         vals.TemplateID,
			Todo:               vals.Todo,
			CategoryIDs:        slices.Clone(vals.CategoryIDs),
			ScheduledDuration:  vals.ScheduledDuration,
			SaleID:             vals.SaleID,
			SaleLineID:         vals.SaleLineID,
			CompanyID:          vals.CompanyID,
			StageID:            firstStage(d),
			CreatedAt:          r.s.now().UTC(),
		}
		d.fsmOrders[created.ID] = created
		d.fsmOrder = append(d.fsmOrder, created.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// GetByID returns a field service order by its identifier.
func (r *FSMOrderRepository) GetByID(ctx context.Context, id string) (*fsm.Order, error) {
	var (
		o  fsm.Order
		ok bool
	)
	r.s.read(ctx, func(d *data) { o, ok = d.fsmOrders[id] })
	if !ok {
		return nil, fsm.ErrNotFound
	}
	return &o, nil
}

// GetByIDs returns the field service orders matching any of ids.
func (r *FSMOrderRepository) GetByIDs(ctx context.Context, ids []string) ([]fsm.Order, error) {
	return r.filter(ctx, func(o fsm.Order) bool { return slices.Contains(ids, o.ID) }), nil
}

// SearchBySaleLines returns orders whose sale line is in lineIDs.
func (r *FSMOrderRepository) SearchBySaleLines(ctx context.Context, lineIDs []string) ([]fsm.Order, error) {
	return r.filter(ctx, func(o fsm.Order) bool {
		return o.SaleLineID != "" && slices.Contains(lineIDs, o.SaleLineID)
	}), nil
}

// SearchSaleLevel returns orders of saleIDs that are not bound to a line.
func (r *FSMOrderRepository) SearchSaleLevel(ctx context.Context, saleIDs []string) ([]fsm.Order, error) {
	return r.filter(ctx, func(o fsm.Order) bool {
		return o.SaleLineID == "" && slices.Contains(saleIDs, o.SaleID)
	}), nil
}

func (r *FSMOrderRepository) filter(ctx context.Context, keep func(fsm.Order) bool) []fsm.Order {
	var out []fsm.Order
	r.s.read(ctx, func(d *data) {
		for _, id := range d.fsmOrder {
			if o := d.fsmOrders[id]; keep(o) {
				out = append(out, o)
			}
		}
	})
	return out
}

// SetStage moves an order to stageID.
func (r *FSMOrderRepository) SetStage(ctx context.Context, id, stageID string) error {
	return r.s.write(ctx, func(d *data) error {
		o, ok := d.fsmOrders[id]
		if !ok {
			return fsm.ErrNotFound
		}
		o.StageID = stageID
		d.fsmOrders[id] = o
		return nil
	})
}

// MessageRepository implements message.Repository in memory.
type MessageRepository struct{ s *Store }

// Create appends m.
func (r *MessageRepository) Create(ctx context.Context, m *message.Message) error {
	return r.s.write(ctx, func(d *data) error {
		d.messages = append(d.messages, *m)
		return nil
	})
}

// ListByRecord returns the messages posted on a record, oldest first.
func (r *MessageRepository) ListByRecord(ctx context.Context, model, resID string) ([]message.Message, error) {
	var out []message.Message
	r.s.read(ctx, func(d *data) {
		for _, m := range d.messages {
			if m.Model == model && m.ResID == resID {
				out = append(out, m)
			}
		}
	})
	return out, nil
}
