package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Type distinguishes services from stockable goods.
type Type string

const (
	TypeService    Type = "service"
	TypeConsumable Type = "consu"
)

// InvoicePolicy selects which quantity is invoiced.
type InvoicePolicy string

const (
	InvoiceOrdered   InvoicePolicy = "order"
	InvoiceDelivered InvoicePolicy = "delivery"
)

// Tracking selects how many field service orders a sale generates.
type Tracking string

const (
	// TrackingNone creates no field service order.
	TrackingNone Tracking = "no"
	// TrackingSale shares one field service order per sale order.
	TrackingSale Tracking = "sale"
	// TrackingLine creates one field service order per sale line.
	TrackingLine Tracking = "line"
)

// Product represents a catalog item that can be sold.
type Product struct {
	ID            string
	Name          string
	Type          Type
	InvoicePolicy InvoicePolicy
	ListPrice     decimal.Decimal
	Tracking      Tracking
	Template      *Template
}

// Template is the field service order template attached to a product.
type Template struct {
	ID           string
	Name         string
	Instructions string
	// Duration is expressed in hours.
	Duration    decimal.Decimal
	CategoryIDs []string
}

// IsService reports whether p is a service product.
func (p *Product) IsService() bool { return p.Type == TypeService }

// Repository defines read operations for the product catalog.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
