// Package invoice describes the invoice line payload assembled from sale lines.
package invoice

import (
	"slices"

	"github.com/shopspring/decimal"
)

// LineValues is the field-value payload of a customer invoice line.
type LineValues struct {
	Name        string
	ProductID   string
	Quantity    decimal.Decimal
	PriceUnit   decimal.Decimal
	SaleLineIDs []string
	// FSMOrderIDs links the invoice line to field service orders.
	FSMOrderIDs []string
	AccountID   string
	Sequence    int
}

// Option adjusts prepared LineValues.
type Option func(*LineValues)

// WithAccount sets the income account of the line.
func WithAccount(id string) Option {
	return func(v *LineValues) { v.AccountID = id }
}

// WithSequence sets the display sequence of the line.
func WithSequence(seq int) Option {
	return func(v *LineValues) { v.Sequence = seq }
}

// LinkFSMOrder adds id to the linked field service orders, keeping existing
// links.
func (v *LineValues) LinkFSMOrder(id string) {
	if id == "" || slices.Contains(v.FSMOrderIDs, id) {
		return
	}
	v.FSMOrderIDs = append(v.FSMOrderIDs, id)
}
