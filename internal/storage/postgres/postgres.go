// Package postgres implements the service repositories on PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/fieldservice-sale/db"
	"github.com/xenking/fieldservice-sale/internal/domain/sale"
)

const uniqueViolation = "23505"

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, db.Schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Begin(ctx context.Context) (pgx.Tx, error)
}

type txKey struct{}

var _ sale.TxRunner = (*DB)(nil)

// DB hands out repositories sharing one pool. A transaction started by
// WithinTx travels in the context and is picked up by every repository.
type DB struct {
	pool *pgxpool.Pool
}

// New returns a DB backed by pool.
func New(pool *pgxpool.Pool) *DB {
	return &DB{pool: pool}
}

// WithinTx runs fn in a transaction, committing when fn returns nil.
// Nested calls join the outer transaction.
func (d *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	return pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (d *DB) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return d.pool
}

// Orders returns the sale order repository.
func (d *DB) Orders() *OrderRepository { return &OrderRepository{db: d} }

// Lines returns the sale line repository.
func (d *DB) Lines() *LineRepository { return &LineRepository{db: d} }

// Products returns the product repository.
func (d *DB) Products() *ProductRepository { return &ProductRepository{db: d} }

// FSMOrders returns the field service order repository.
func (d *DB) FSMOrders() *FSMOrderRepository { return &FSMOrderRepository{db: d} }

// Stages returns the stage repository.
func (d *DB) Stages() *StageRepository { return &StageRepository{db: d} }

// Locations returns the location repository.
func (d *DB) Locations() *LocationRepository { return &LocationRepository{db: d} }

// Messages returns the message repository.
func (d *DB) Messages() *MessageRepository { return &MessageRepository{db: d} }

// APIKeys returns the API key repository.
func (d *DB) APIKeys() *APIKeyRepository { return &APIKeyRepository{db: d} }

// Repositories returns every sale collaborator backed by d.
func (d *DB) Repositories() sale.Repositories {
	return sale.Repositories{
		Orders:    d.Orders(),
		Lines:     d.Lines(),
		Products:  d.Products(),
		FSMOrders: d.FSMOrders(),
		Stages:    d.Stages(),
		Locations: d.Locations(),
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
