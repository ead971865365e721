package sale

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/fieldservice-sale/internal/domain/fsm"
	"github.com/xenking/fieldservice-sale/internal/domain/product"
)

// ComputeDeliveredMethod sets the line's delivered-quantity method. Lines
// of line-tracked field service products that are not expenses are
// delivered by their field service order.
func ComputeDeliveredMethod(rec LineRecord) {
	line := rec.Line
	line.QtyDeliveredMethod = baseDeliveredMethod(rec)
	if !line.IsExpense && rec.Tracking() == product.TrackingLine {
		line.QtyDeliveredMethod = DeliveredFieldService
	}
}

func baseDeliveredMethod(rec LineRecord) DeliveredMethod {
	switch {
	case rec.Line.IsExpense:
		return DeliveredAnalytic
	case rec.Product != nil && rec.Product.Type == product.TypeConsumable:
		return DeliveredStockMove
	default:
		return DeliveredManual
	}
}

// ComputeDelivered derives the delivered quantity of field service lines:
// the full ordered quantity once the linked order reached the completed
// stage, zero otherwise. Other methods keep their current value.
func (l *Linker) ComputeDelivered(ctx context.Context, records []LineRecord) error {
	var (
		fsLines  []*Line
		orderIDs []string
	)
	for _, rec := range records {
		if rec.Line.QtyDeliveredMethod != DeliveredFieldService {
			continue
		}
		fsLines = append(fsLines, rec.Line)
		if rec.Line.FSMOrderID != "" {
			orderIDs = appendUnique(orderIDs, rec.Line.FSMOrderID)
		}
	}
	if len(fsLines) == 0 {
		return nil
	}

	complete, err := l.repos.Stages.GetByRef(ctx, fsm.StageCompletedRef)
	if err != nil {
		return errors.Wrap(err, "resolve completed stage")
	}

	stageByOrder := make(map[string]string, len(orderIDs))
	if len(orderIDs) > 0 {
		orders, err := l.repos.FSMOrders.GetByIDs(ctx, orderIDs)
		if err != nil {
			return errors.Wrap(err, "get fsm orders")
		}
		for _, o := range orders {
			stageByOrder[o.ID] = o.StageID
		}
	}

	for _, line := range fsLines {
		qty := decimal.Zero
		if stage, ok := stageByOrder[line.FSMOrderID]; ok && stage == complete.ID {
			qty = line.Quantity
		}
		line.QtyDelivered = qty
	}
	return nil
}

// ComputeProductUpdatable locks service lines of confirmed orders so that
// quantity edits cannot silently re-trigger field service generation.
func ComputeProductUpdatable(rec LineRecord) {
	if rec.Product != nil && rec.Product.IsService() && rec.Order.State == StateSale {
		rec.Line.ProductUpdatable = false
		return
	}
	rec.Line.ProductUpdatable = baseProductUpdatable(rec)
}

func baseProductUpdatable(rec LineRecord) bool {
	switch rec.Order.State {
	case StateDone, StateCancel:
		return false
	case StateSale:
		return !rec.Line.QtyInvoiced.IsPositive() && !rec.Line.QtyDelivered.IsPositive()
	default:
		return true
	}
}

// Recompute refreshes every computed field of records in dependency order
// and persists them.
func (l *Linker) Recompute(ctx context.Context, records []LineRecord) error {
	for _, rec := range records {
		ComputeDeliveredMethod(rec)
	}
	if err := l.ComputeDelivered(ctx, records); err != nil {
		return err
	}
	for _, rec := range records {
		ComputeProductUpdatable(rec)
		if err := l.repos.Lines.UpdateComputed(ctx, rec.Line); err != nil {
			return errors.Wrapf(err, "update line %s", rec.Line.ID)
		}
	}
	return nil
}
