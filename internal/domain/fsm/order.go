// Package fsm holds the field service order model and its persistence
// contracts.
package fsm

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/fieldservice-sale/internal/domain/env"
)

var (
	// ErrNotFound is returned when a field service order does not exist.
	ErrNotFound = errors.New("fsm order not found")
	// ErrDuplicate is returned when an order already exists for the same
	// sale line, or for the same sale order at sale level.
	ErrDuplicate = errors.New("fsm order already exists")
)

// Order is a field service work order.
type Order struct {
	ID                 string
	Name               string
	LocationID         string
	LocationDirections string
	RequestEarly       *time.Time
	ScheduledDateStart *time.Time
	Description        string
	TemplateID         string
	Todo               string
	CategoryIDs        []string
	ScheduledDuration  decimal.Decimal
	SaleID             string
	// SaleLineID is empty for orders shared at sale level.
	SaleLineID string
	CompanyID  string
	StageID    string
	CreatedAt  time.Time
}

// Values is the field-value payload used to create an Order.
type Values struct {
	LocationID         string
	LocationDirections string
	RequestEarly       *time.Time
	ScheduledDateStart *time.Time
	Description        string
	TemplateID         string
	Todo               string
	CategoryIDs        []string
	ScheduledDuration  decimal.Decimal
	SaleID             string
	SaleLineID         string
	CompanyID          string
}

// Repository defines persistence operations for field service orders.
//
// Create assigns ID, Name and the initial stage. It returns ErrDuplicate
// when the unique sale line (or sale-level) constraint is violated.
type Repository interface {
	Create(ctx context.Context, e env.Env, vals Values) (*Order, error)
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByIDs(ctx context.Context, ids []string) ([]Order, error)
	// SearchBySaleLines returns orders whose SaleLineID is in lineIDs.
	SearchBySaleLines(ctx context.Context, lineIDs []string) ([]Order, error)
	// SearchSaleLevel returns orders bound to one of saleIDs without a sale line.
	SearchSaleLevel(ctx context.Context, saleIDs []string) ([]Order, error)
	SetStage(ctx context.Context, id, stageID string) error
}
