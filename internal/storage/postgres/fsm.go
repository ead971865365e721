package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/fieldservice-sale/internal/domain/env"
	"github.com/xenking/fieldservice-sale/internal/domain/fsm"
)

const (
	fsmOrderColumns = `id, name, location_id, location_directions, request_early, scheduled_date_start,
		description, template_id, todo, category_ids, scheduled_duration, sale_id, sale_line_id,
		company_id, stage_id, created_at`

	insertFSMOrderSQL = `INSERT INTO fsm_orders (id, name, location_id, location_directions, request_early,
		scheduled_date_start, description, template_id, todo, category_ids, scheduled_duration, sale_id,
		sale_line_id, company_id, stage_id)
		VALUES ($1, 'FSO' || LPAD(nextval('fsm_order_name_seq')::text, 5, '0'), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		(SELECT id FROM fsm_stages WHERE NOT is_closed ORDER BY sequence, id LIMIT 1))
		RETURNING ` + fsmOrderColumns

	selectFSMOrderSQL = `SELECT ` + fsmOrderColumns + ` FROM fsm_orders`

	setFSMOrderStageSQL = `UPDATE fsm_orders SET stage_id = $2 WHERE id = $1`
)

var _ fsm.Repository = (*FSMOrderRepository)(nil)

// FSMOrderRepository implements fsm.Repository backed by PostgreSQL.
type FSMOrderRepository struct {
	db *DB
}

// Create inserts a field service order in the first open stage. The insert
// runs in its own savepoint so that a unique violation leaves the enclosing
// transaction usable; it is reported as fsm.ErrDuplicate.
func (r *FSMOrderRepository) Create(ctx context.Context, e env.Env, vals fsm.Values) (*fsm.Order, error) {
	if err := e.CheckCreate(env.ModelFSMOrder); err != nil {
		return nil, err
	}

	categories := vals.CategoryIDs
	if categories == nil {
		categories = []string{}
	}

	var created fsm.Order
	err := pgx.BeginFunc(ctx, r.db.conn(ctx), func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, insertFSMOrderSQL,
			uuid.New().String(), nullable(vals.LocationID), vals.LocationDirections, vals.RequestEarly,
			vals.ScheduledDateStart, vals.Description, nullable(vals.TemplateID), vals.Todo, categories,
			vals.ScheduledDuration, nullable(vals.SaleID), nullable(vals.SaleLineID), vals.CompanyID,
		)
		if err != nil {
			return err
		}
		created, err = pgx.CollectExactlyOneRow(rows, scanFSMOrder)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fsm.ErrDuplicate
		}
		return nil, fmt.Errorf("creating fsm order: %w", err)
	}
	return &created, nil
}

// GetByID returns a field service order by its identifier.
func (r *FSMOrderRepository) GetByID(ctx context.Context, id string) (*fsm.Order, error) {
	rows, err := r.db.conn(ctx).Query(ctx, selectFSMOrderSQL+` WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("getting fsm order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanFSMOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fsm.ErrNotFound
		}
		return nil, fmt.Errorf("getting fsm order %q: %w", id, err)
	}
	return &o, nil
}

// GetByIDs returns the field service orders matching any of ids.
func (r *FSMOrderRepository) GetByIDs(ctx context.Context, ids []string) ([]fsm.Order, error) {
	return r.list(ctx, `WHERE id = ANY($1) ORDER BY pos`, ids)
}

// SearchBySaleLines returns orders whose sale line is in lineIDs.
func (r *FSMOrderRepository) SearchBySaleLines(ctx context.Context, lineIDs []string) ([]fsm.Order, error) {
	return r.list(ctx, `WHERE sale_line_id = ANY($1) ORDER BY pos`, lineIDs)
}

// SearchSaleLevel returns orders of saleIDs that are not bound to a line.
func (r *FSMOrderRepository) SearchSaleLevel(ctx context.Context, saleIDs []string) ([]fsm.Order, error) {
	return r.list(ctx, `WHERE sale_id = ANY($1) AND sale_line_id IS NULL ORDER BY pos`, saleIDs)
}

func (r *FSMOrderRepository) list(ctx context.Context, where string, ids []string) ([]fsm.Order, error) {
	rows, err := r.db.conn(ctx).Query(ctx, selectFSMOrderSQL+" "+where, ids)
	if err != nil {
		return nil, fmt.Errorf("listing fsm orders: %w", err)
	}
	return pgx.CollectRows(rows, scanFSMOrder)
}

// SetStage moves an order to stageID.
func (r *FSMOrderRepository) SetStage(ctx context.Context, id, stageID string) error {
	tag, err := r.db.conn(ctx).Exec(ctx, setFSMOrderStageSQL, id, stageID)
	if err != nil {
		return fmt.Errorf("setting stage of fsm order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fsm.ErrNotFound
	}
	return nil
}

func scanFSMOrder(row pgx.CollectableRow) (fsm.Order, error) {
	var (
		o                                         fsm.Order
		location, template, saleID, saleLine, stg *string
	)
	err := row.Scan(
		&o.ID, &o.Name, &location, &o.LocationDirections, &o.RequestEarly, &o.ScheduledDateStart,
		&o.Description, &template, &o.Todo, &o.CategoryIDs, &o.ScheduledDuration, &saleID, &saleLine,
		&o.CompanyID, &stg, &o.CreatedAt,
	)
	o.LocationID = deref(location)
	o.TemplateID = deref(template)
	o.SaleID = deref(saleID)
	o.SaleLineID = deref(saleLine)
	o.StageID = deref(stg)
	return o, err
}
