package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/xenking/fieldservice-sale/internal/domain/sale"
)

var (
	_ sale.OrderRepository = (*OrderRepository)(nil)
	_ sale.LineRepository  = (*LineRepository)(nil)
)

// OrderRepository implements sale.OrderRepository in memory.
type OrderRepository struct{ s *Store }

// Create stores o, assigning its name from the order sequence.
func (r *OrderRepository) Create(ctx context.Context, o *sale.Order) error {
	return r.s.write(ctx, func(d *data) error {
		if _, ok := d.orders[o.ID]; ok {
			return fmt.Errorf("creating order %q: duplicate id", o.ID)
		}
		if o.Name == "" {
			d.orderSeq++
			o.Name = fmt.Sprintf("S%05d", d.orderSeq)
		}
		d.orders[o.ID] = *o
		return nil
	})
}

// GetByID returns a sale order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*sale.Order, error) {
	var (
		o  sale.Order
		ok bool
	)
	r.s.read(ctx, func(d *data) { o, ok = d.orders[id] })
	if !ok {
		return nil, sale.ErrNotFound
	}
	return &o, nil
}

// GetByIDs returns the sale orders matching any of ids.
func (r *OrderRepository) GetByIDs(ctx context.Context, ids []string) ([]sale.Order, error) {
	var out []sale.Order
	r.s.read(ctx, func(d *data) {
		for _, id := range ids {
			if o, ok := d.orders[id]; ok {
				out = append(out, o)
			}
		}
	})
	return out, nil
}

// SetState updates the state of an order.
func (r *OrderRepository) SetState(ctx context.Context, id string, state sale.State) error {
	return r.s.write(ctx, func(d *data) error {
		o, ok := d.orders[id]
		if !ok {
			return sale.ErrNotFound
		}
		o.State = state
		d.orders[id] = o
		return nil
	})
}

// LineRepository implements sale.LineRepository in memory.
type LineRepository struct{ s *Store }

// Create stores lines. Every line must reference an existing order.
func (r *LineRepository) Create(ctx context.Context, lines []*sale.Line) error {
	return r.s.write(ctx, func(d *data) error {
		for _, l := range lines {
			if _, ok := d.orders[l.OrderID]; !ok {
				return fmt.Errorf("creating line %q: %w", l.ID, sale.ErrNotFound)
			}
		}
		for _, l := range lines {
			d.lines[l.ID] = *l
			d.lineOrder = append(d.lineOrder, l.ID)
		}
		return nil
	})
}

// ListByOrder returns the lines of an order by sequence, then creation order.
func (r *LineRepository) ListByOrder(ctx context.Context, orderID string) ([]sale.Line, error) {
	return r.filter(ctx, func(l sale.Line) bool { return l.OrderID == orderID }), nil
}

// ListByFSMOrder returns the lines linked to a field service order.
func (r *LineRepository) ListByFSMOrder(ctx context.Context, fsmOrderID string) ([]sale.Line, error) {
	return r.filter(ctx, func(l sale.Line) bool { return l.FSMOrderID == fsmOrderID }), nil
}

func (r *LineRepository) filter(ctx context.Context, keep func(sale.Line) bool) []sale.Line {
	var out []sale.Line
	r.s.read(ctx, func(d *data) {
		for _, id := range d.lineOrder {
			if l := d.lines[id]; keep(l) {
				out = append(out, l)
			}
		}
	})
	slices.SortStableFunc(out, func(a, b sale.Line) int { return cmp.Compare(a.Sequence, b.Sequence) })
	return out
}

// SetFSMOrder links a line to a field service order.
func (r *LineRepository) SetFSMOrder(ctx context.Context, lineID, fsmOrderID string) error {
	return r.s.write(ctx, func(d *data) error {
		l, ok := d.lines[lineID]
		if !ok {
			return fmt.Errorf("linking line %q: not found", lineID)
		}
		l.FSMOrderID = fsmOrderID
		d.lines[lineID] = l
		return nil
	})
}

// UpdateComputed stores the computed fields of l.
func (r *LineRepository) UpdateComputed(ctx context.Context, l *sale.Line) error {
	return r.s.write(ctx, func(d *data) error {
		stored, ok := d.lines[l.ID]
		if !ok {
			return fmt.Errorf("updating line %q: not found", l.ID)
		}
		stored.QtyDeliveredMethod = l.QtyDeliveredMethod
		stored.QtyDelivered = l.QtyDelivered
		stored.ProductUpdatable = l.ProductUpdatable
		d.lines[l.ID] = stored
		return nil
	})
}
