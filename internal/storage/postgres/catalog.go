package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/fieldservice-sale/internal/domain/fsm"
	"github.com/xenking/fieldservice-sale/internal/domain/product"
)

const (
	selectProductSQL = `SELECT p.id, p.name, p.type, p.invoice_policy, p.list_price, p.fsm_tracking,
		t.id, t.name, t.instructions, t.duration, t.category_ids
		FROM products p LEFT JOIN fsm_templates t ON t.id = p.template_id`

	upsertTemplateSQL = `INSERT INTO fsm_templates (id, name, instructions, duration, category_ids)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, instructions = EXCLUDED.instructions,
		duration = EXCLUDED.duration, category_ids = EXCLUDED.category_ids`

	upsertProductSQL = `INSERT INTO products (id, name, type, invoice_policy, list_price, fsm_tracking, template_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, type = EXCLUDED.type,
		invoice_policy = EXCLUDED.invoice_policy, list_price = EXCLUDED.list_price,
		fsm_tracking = EXCLUDED.fsm_tracking, template_id = EXCLUDED.template_id`

	selectStageSQL = `SELECT id, ref, name, sequence, is_closed FROM fsm_stages`

	upsertStageSQL = `INSERT INTO fsm_stages (id, ref, name, sequence, is_closed) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET ref = EXCLUDED.ref, name = EXCLUDED.name,
		sequence = EXCLUDED.sequence, is_closed = EXCLUDED.is_closed`

	getLocationsByIDsSQL = `SELECT id, name, direction FROM fsm_locations WHERE id = ANY($1)`

	upsertLocationSQL = `INSERT INTO fsm_locations (id, name, direction) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, direction = EXCLUDED.direction`
)

var (
	_ product.Repository     = (*ProductRepository)(nil)
	_ fsm.StageRepository    = (*StageRepository)(nil)
	_ fsm.LocationRepository = (*LocationRepository)(nil)
)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	db *DB
}

// Upsert stores p and its template, replacing existing rows.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) error {
	return r.db.WithinTx(ctx, func(ctx context.Context) error {
		var templateID *string
		if t := p.Template; t != nil {
			categories := t.CategoryIDs
			if categories == nil {
				categories = []string{}
			}
			if _, err := r.db.conn(ctx).Exec(ctx, upsertTemplateSQL, t.ID, t.Name, t.Instructions, t.Duration, categories); err != nil {
				return fmt.Errorf("upserting template %q: %w", t.ID, err)
			}
			templateID = &t.ID
		}
		_, err := r.db.conn(ctx).Exec(ctx, upsertProductSQL,
			p.ID, p.Name, string(p.Type), string(p.InvoicePolicy), p.ListPrice, string(p.Tracking), templateID,
		)
		if err != nil {
			return fmt.Errorf("upserting product %q: %w", p.ID, err)
		}
		return nil
	})
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.db.conn(ctx).Query(ctx, selectProductSQL+` WHERE p.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.db.conn(ctx).Query(ctx, selectProductSQL+` WHERE p.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p                          product.Product
		typ, policy, tracking      string
		tmplID, tmplName, tmplInst *string
		tmplDuration               decimal.NullDecimal
		tmplCategories             []string
	)
	err := row.Scan(
		&p.ID, &p.Name, &typ, &policy, &p.ListPrice, &tracking,
		&tmplID, &tmplName, &tmplInst, &tmplDuration, &tmplCategories,
	)
	if err != nil {
		return p, err
	}
	p.Type = product.Type(typ)
	p.InvoicePolicy = product.InvoicePolicy(policy)
	p.Tracking = product.Tracking(tracking)
	if tmplID != nil {
		p.Template = &product.Template{
			ID:           *tmplID,
			Name:         deref(tmplName),
			Instructions: deref(tmplInst),
			Duration:     tmplDuration.Decimal,
			CategoryIDs:  tmplCategories,
		}
	}
	return p, nil
}

// StageRepository implements fsm.StageRepository backed by PostgreSQL.
type StageRepository struct {
	db *DB
}

// Upsert stores st, replacing any stage with the same ID.
func (r *StageRepository) Upsert(ctx context.Context, st fsm.Stage) error {
	if _, err := r.db.conn(ctx).Exec(ctx, upsertStageSQL, st.ID, st.Ref, st.Name, st.Sequence, st.IsClosed); err != nil {
		return fmt.Errorf("upserting stage %q: %w", st.ID, err)
	}
	return nil
}

// GetByRef resolves a stage by its external reference.
func (r *StageRepository) GetByRef(ctx context.Context, ref string) (*fsm.Stage, error) {
	return r.get(ctx, `WHERE ref = $1`, ref)
}

func (r *StageRepository) get(ctx context.Context, where, arg string) (*fsm.Stage, error) {
	rows, err := r.db.conn(ctx).Query(ctx, selectStageSQL+" "+where, arg)
	if err != nil {
		return nil, fmt.Errorf("getting stage %q: %w", arg, err)
	}
	st, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[fsm.Stage])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fsm.ErrStageNotFound
		}
		return nil, fmt.Errorf("getting stage %q: %w", arg, err)
	}
	return &st, nil
}

// LocationRepository implements fsm.LocationRepository backed by PostgreSQL.
type LocationRepository struct {
	db *DB
}

// Upsert stores loc, replacing any location with the same ID.
func (r *LocationRepository) Upsert(ctx context.Context, loc fsm.Location) error {
	if _, err := r.db.conn(ctx).Exec(ctx, upsertLocationSQL, loc.ID, loc.Name, loc.Direction); err != nil {
		return fmt.Errorf("upserting location %q: %w", loc.ID, err)
	}
	return nil
}

// GetByIDs returns locations matching any of the given IDs.
func (r *LocationRepository) GetByIDs(ctx context.Context, ids []string) ([]fsm.Location, error) {
	rows, err := r.db.conn(ctx).Query(ctx, getLocationsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting locations by ids: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[fsm.Location])
}
