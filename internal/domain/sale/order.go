// Package sale links sale order lines to field service orders: it decides
// when a line needs a field service order, creates it once, keeps the
// back-reference and derives the delivered quantity from the order's stage.
package sale

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// State is the lifecycle state of a sale order.
type State string

const (
	StateDraft  State = "draft"
	StateSent   State = "sent"
	StateSale   State = "sale"
	StateDone   State = "done"
	StateCancel State = "cancel"
)

// DeliveredMethod selects how a line's delivered quantity is computed.
type DeliveredMethod string

const (
	DeliveredManual       DeliveredMethod = "manual"
	DeliveredAnalytic     DeliveredMethod = "analytic"
	DeliveredStockMove    DeliveredMethod = "stock_move"
	DeliveredFieldService DeliveredMethod = "field_service"
)

// Order is a customer sale order.
type Order struct {
	ID            string
	Name          string
	State         State
	CompanyID     string
	FSMLocationID string
	ExpectedDate  *time.Time
	Note          string
	CreatedAt     time.Time
}

// IsConfirmed reports whether o is in the confirmed "sale" state.
func (o *Order) IsConfirmed() bool { return o.State == StateSale }

// Line is a sale order line.
type Line struct {
	ID        string
	OrderID   string
	ProductID string
	Name      string
	Sequence  int
	Quantity  decimal.Decimal
	PriceUnit decimal.Decimal
	IsExpense bool

	QtyDeliveredMethod DeliveredMethod
	QtyDelivered       decimal.Decimal
	QtyInvoiced        decimal.Decimal
	ProductUpdatable   bool

	// FSMOrderID is the field service order generated for this line, if any.
	FSMOrderID string
}

// LineValues holds the field values of a line to create.
type LineValues struct {
	OrderID   string
	ProductID string
	Name      string
	Sequence  int
	Quantity  decimal.Decimal
	PriceUnit decimal.Decimal
	IsExpense bool
	// QtyDelivered is only kept for manually delivered lines.
	QtyDelivered decimal.Decimal
}

// OrderRepository defines persistence operations for sale orders.
//
// Create assigns the order Name from a sequence when it is empty.
type OrderRepository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByIDs(ctx context.Context, ids []string) ([]Order, error)
	SetState(ctx context.Context, id string, state State) error
}

// LineRepository defines persistence operations for sale lines.
type LineRepository interface {
	Create(ctx context.Context, lines []*Line) error
	ListByOrder(ctx context.Context, orderID string) ([]Line, error)
	ListByFSMOrder(ctx context.Context, fsmOrderID string) ([]Line, error)
	SetFSMOrder(ctx context.Context, lineID, fsmOrderID string) error
	// UpdateComputed stores the delivered method, delivered quantity and
	// updatable flag of l.
	UpdateComputed(ctx context.Context, l *Line) error
}

// TxRunner runs fn inside a single transaction. Repositories called with the
// ctx passed to fn take part in that transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
