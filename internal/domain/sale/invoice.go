package sale

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/fieldservice-sale/internal/domain/invoice"
	"github.com/xenking/fieldservice-sale/internal/domain/product"
)

// QtyToInvoice returns the quantity of the line still to invoice according
// to its product's invoicing policy. Only confirmed or done orders invoice.
func QtyToInvoice(rec LineRecord) decimal.Decimal {
	if rec.Order.State != StateSale && rec.Order.State != StateDone {
		return decimal.Zero
	}
	base := rec.Line.Quantity
	if rec.Product != nil && rec.Product.InvoicePolicy == product.InvoiceDelivered {
		base = rec.Line.QtyDelivered
	}
	return base.Sub(rec.Line.QtyInvoiced)
}

// PrepareInvoiceLine builds the invoice line payload of one sale line. When
// the line is linked to a field service order, that order is added to the
// invoice line's field service orders.
func PrepareInvoiceLine(rec LineRecord, opts ...invoice.Option) invoice.LineValues {
	v := invoice.LineValues{
		Name:        rec.Line.Name,
		ProductID:   rec.Line.ProductID,
		Quantity:    QtyToInvoice(rec),
		PriceUnit:   rec.Line.PriceUnit,
		SaleLineIDs: []string{rec.Line.ID},
		Sequence:    rec.Line.Sequence,
	}
	for _, opt := range opts {
		opt(&v)
	}
	if rec.Line.FSMOrderID != "" {
		v.LinkFSMOrder(rec.Line.FSMOrderID)
	}
	return v
}
