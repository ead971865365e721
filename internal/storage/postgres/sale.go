package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/fieldservice-sale/internal/domain/sale"
)

const (
	insertOrderSQL = `INSERT INTO sale_orders (id, name, state, company_id, fsm_location_id, expected_date, note, created_at)
		VALUES ($1, COALESCE(NULLIF($2, ''), 'S' || LPAD(nextval('sale_order_name_seq')::text, 5, '0')), $3, $4, $5, $6, $7, $8)
		RETURNING name`

	selectOrderSQL = `SELECT id, name, state, company_id, fsm_location_id, expected_date, note, created_at FROM sale_orders`

	setOrderStateSQL = `UPDATE sale_orders SET state = $2 WHERE id = $1`

	insertLineSQL = `INSERT INTO sale_order_lines
		(id, order_id, product_id, name, sequence, quantity, price_unit, is_expense,
		 qty_delivered_method, qty_delivered, qty_invoiced, product_updatable, fsm_order_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	selectLineSQL = `SELECT id, order_id, product_id, name, sequence, quantity, price_unit, is_expense,
		qty_delivered_method, qty_delivered, qty_invoiced, product_updatable, fsm_order_id
		FROM sale_order_lines`

	setLineFSMOrderSQL = `UPDATE sale_order_lines SET fsm_order_id = $2 WHERE id = $1`

	updateLineComputedSQL = `UPDATE sale_order_lines
		SET qty_delivered_method = $2, qty_delivered = $3, product_updatable = $4
		WHERE id = $1`
)

var (
	_ sale.OrderRepository = (*OrderRepository)(nil)
	_ sale.LineRepository  = (*LineRepository)(nil)
)

// OrderRepository implements sale.OrderRepository backed by PostgreSQL.
type OrderRepository struct {
	db *DB
}

// Create persists o. An empty name is taken from the order sequence.
func (r *OrderRepository) Create(ctx context.Context, o *sale.Order) error {
	rows, err := r.db.conn(ctx).Query(ctx, insertOrderSQL,
		o.ID, o.Name, string(o.State), o.CompanyID, nullable(o.FSMLocationID), o.ExpectedDate, o.Note, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	name, err := pgx.CollectExactlyOneRow(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	o.Name = name
	return nil
}

// GetByID returns a sale order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*sale.Order, error) {
	rows, err := r.db.conn(ctx).Query(ctx, selectOrderSQL+` WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sale.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// GetByIDs returns the sale orders matching any of ids.
func (r *OrderRepository) GetByIDs(ctx context.Context, ids []string) ([]sale.Order, error) {
	rows, err := r.db.conn(ctx).Query(ctx, selectOrderSQL+` WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("getting orders by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// SetState updates the state of an order.
func (r *OrderRepository) SetState(ctx context.Context, id string, state sale.State) error {
	tag, err := r.db.conn(ctx).Exec(ctx, setOrderStateSQL, id, string(state))
	if err != nil {
		return fmt.Errorf("setting state of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return sale.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (sale.Order, error) {
	var (
		o        sale.Order
		state    string
		location *string
	)
	err := row.Scan(&o.ID, &o.Name, &state, &o.CompanyID, &location, &o.ExpectedDate, &o.Note, &o.CreatedAt)
	o.State = sale.State(state)
	o.FSMLocationID = deref(location)
	return o, err
}

// LineRepository implements sale.LineRepository backed by PostgreSQL.
type LineRepository struct {
	db *DB
}

// Create inserts lines in one batch.
func (r *LineRepository) Create(ctx context.Context, lines []*sale.Line) error {
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(insertLineSQL,
			l.ID, l.OrderID, l.ProductID, l.Name, l.Sequence, l.Quantity, l.PriceUnit, l.IsExpense,
			string(l.QtyDeliveredMethod), l.QtyDelivered, l.QtyInvoiced, l.ProductUpdatable, nullable(l.FSMOrderID),
		)
	}
	if err := r.db.conn(ctx).SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("creating lines: %w", err)
	}
	return nil
}

// ListByOrder returns the lines of an order by sequence, then creation order.
func (r *LineRepository) ListByOrder(ctx context.Context, orderID string) ([]sale.Line, error) {
	return r.list(ctx, `WHERE order_id = $1 ORDER BY sequence, pos`, orderID)
}

// ListByFSMOrder returns the lines linked to a field service order.
func (r *LineRepository) ListByFSMOrder(ctx context.Context, fsmOrderID string) ([]sale.Line, error) {
	return r.list(ctx, `WHERE fsm_order_id = $1 ORDER BY sequence, pos`, fsmOrderID)
}

func (r *LineRepository) list(ctx context.Context, where string, arg any) ([]sale.Line, error) {
	rows, err := r.db.conn(ctx).Query(ctx, selectLineSQL+" "+where, arg)
	if err != nil {
		return nil, fmt.Errorf("listing lines: %w", err)
	}
	return pgx.CollectRows(rows, scanLine)
}

// SetFSMOrder links a line to a field service order.
func (r *LineRepository) SetFSMOrder(ctx context.Context, lineID, fsmOrderID string) error {
	if _, err := r.db.conn(ctx).Exec(ctx, setLineFSMOrderSQL, lineID, nullable(fsmOrderID)); err != nil {
		return fmt.Errorf("linking line %q: %w", lineID, err)
	}
	return nil
}

// UpdateComputed stores the computed fields of l.
func (r *LineRepository) UpdateComputed(ctx context.Context, l *sale.Line) error {
	_, err := r.db.conn(ctx).Exec(ctx, updateLineComputedSQL,
		l.ID, string(l.QtyDeliveredMethod), l.QtyDelivered, l.ProductUpdatable,
	)
	if err != nil {
		return fmt.Errorf("updating line %q: %w", l.ID, err)
	}
	return nil
}

func scanLine(row pgx.CollectableRow) (sale.Line, error) {
	var (
		l        sale.Line
		method   string
		fsmOrder *string
	)
	err := row.Scan(
		&l.ID, &l.OrderID, &l.ProductID, &l.Name, &l.Sequence, &l.Quantity, &l.PriceUnit, &l.IsExpense,
		&method, &l.QtyDelivered, &l.QtyInvoiced, &l.ProductUpdatable, &fsmOrder,
	)
	l.QtyDeliveredMethod = sale.DeliveredMethod(method)
	l.FSMOrderID = deref(fsmOrder)
	return l, err
}
