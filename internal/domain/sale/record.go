package sale

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/fieldservice-sale/internal/domain/fsm"
	"github.com/xenking/fieldservice-sale/internal/domain/product"
)

// LineRecord is a sale line with its order, product and service location
// resolved.
type LineRecord struct {
	Line     *Line
	Order    *Order
	Product  *product.Product
	Location *fsm.Location
}

// Tracking returns the field service tracking of the line's product.
func (r LineRecord) Tracking() product.Tracking {
	if r.Product == nil {
		return product.TrackingNone
	}
	return r.Product.Tracking
}

// ProductName returns the line's product name, or an empty string.
func (r LineRecord) ProductName() string {
	if r.Product == nil {
		return ""
	}
	return r.Product.Name
}

// Resolve loads the order, product and location of every line in a fixed
// number of batched lookups.
func (l *Linker) Resolve(ctx context.Context, lines []*Line) ([]LineRecord, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	orderIDs := make([]string, 0, len(lines))
	productIDs := make([]string, 0, len(lines))
	for _, line := range lines {
		orderIDs = appendUnique(orderIDs, line.OrderID)
		productIDs = appendUnique(productIDs, line.ProductID)
	}

	orders, err := l.repos.Orders.GetByIDs(ctx, orderIDs)
	if err != nil {
		return nil, errors.Wrap(err, "get orders")
	}
	orderMap := make(map[string]*Order, len(orders))
	locationIDs := make([]string, 0, len(orders))
	for i := range orders {
		orderMap[orders[i].ID] = &orders[i]
		if orders[i].FSMLocationID != "" {
			locationIDs = appendUnique(locationIDs, orders[i].FSMLocationID)
		}
	}

	products, err := l.repos.Products.GetByIDs(ctx, productIDs)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	productMap := make(map[string]*product.Product, len(products))
	for i := range products {
		productMap[products[i].ID] = &products[i]
	}

	locationMap := make(map[string]*fsm.Location, len(locationIDs))
	if len(locationIDs) > 0 {
		locations, err := l.repos.Locations.GetByIDs(ctx, locationIDs)
		if err != nil {
			return nil, errors.Wrap(err, "get locations")
		}
		for i := range locations {
			locationMap[locations[i].ID] = &locations[i]
		}
	}

	records := make([]LineRecord, len(lines))
	for i, line := range lines {
		o, ok := orderMap[line.OrderID]
		if !ok {
			return nil, errors.Wrapf(ErrNotFound, "line %s", line.ID)
		}
		p, ok := productMap[line.ProductID]
		if !ok {
			return nil, errors.Wrapf(product.ErrNotFound, "line %s", line.ID)
		}
		records[i] = LineRecord{
			Line:     line,
			Order:    o,
			Product:  p,
			Location: locationMap[o.FSMLocationID],
		}
	}
	return records, nil
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func lineIDs(records []LineRecord) []string {
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.Line.ID
	}
	return ids
}
