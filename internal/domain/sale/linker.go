package sale

import (
	"context"
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/fieldservice-sale/internal/domain/env"
	"github.com/xenking/fieldservice-sale/internal/domain/fsm"
	"github.com/xenking/fieldservice-sale/internal/domain/message"
	"github.com/xenking/fieldservice-sale/internal/domain/product"
)

// Repositories groups the persistence collaborators of the Linker.
type Repositories struct {
	Orders    OrderRepository
	Lines     LineRepository
	Products  product.Repository
	FSMOrders fsm.Repository
	Stages    fsm.StageRepository
	Locations fsm.LocationRepository
}

// LinkerOption configures a Linker.
type LinkerOption func(*Linker)

// WithMeterProvider records created field service orders on mp.
func WithMeterProvider(mp metric.MeterProvider) LinkerOption {
	return func(l *Linker) { l.meter = mp.Meter("fieldservice-sale/sale") }
}

// Linker generates field service orders for sale lines and keeps both
// sides linked.
type Linker struct {
	repos  Repositories
	poster message.Poster
	meter  metric.Meter

	created metric.Int64Counter
}

// NewLinker creates a Linker.
func NewLinker(repos Repositories, poster message.Poster, opts ...LinkerOption) *Linker {
	l := &Linker{
		repos:  repos,
		poster: poster,
		meter:  noop.NewMeterProvider().Meter(""),
	}
	for _, opt := range opts {
		opt(l)
	}
	created, err := l.meter.Int64Counter("fsm_orders_created",
		metric.WithDescription("Field service orders generated from sale lines"),
	)
	if err != nil {
		created, _ = noop.NewMeterProvider().Meter("").Int64Counter("fsm_orders_created")
	}
	l.created = created
	return l
}

// CreateLines creates sale lines and, for lines added to an already
// confirmed order, generates their field service orders. The whole created
// batch is returned in input order.
func (l *Linker) CreateLines(ctx context.Context, e env.Env, vals []LineValues) ([]*Line, error) {
	if err := e.CheckCreate(env.ModelSaleLine); err != nil {
		return nil, err
	}

	lines := make([]*Line, len(vals))
	for i, v := range vals {
		if v.Quantity.IsNegative() {
			return nil, errors.Wrapf(ErrInvalidQuantity, "line %d", i)
		}
		lines[i] = &Line{
			ID:               uuid.New().String(),
			OrderID:          v.OrderID,
			ProductID:        v.ProductID,
			Name:             v.Name,
			Sequence:         v.Sequence,
			Quantity:         v.Quantity,
			PriceUnit:        v.PriceUnit,
			IsExpense:        v.IsExpense,
			QtyDelivered:     v.QtyDelivered,
			QtyInvoiced:      decimal.Zero,
			ProductUpdatable: true,
		}
	}

	records, err := l.Resolve(ctx, lines)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.Line.Name == "" {
			rec.Line.Name = rec.Product.Name
		}
		if rec.Line.PriceUnit.IsZero() {
			rec.Line.PriceUnit = rec.Product.ListPrice
		}
		ComputeDeliveredMethod(rec)
		if rec.Line.QtyDeliveredMethod != DeliveredManual {
			rec.Line.QtyDelivered = decimal.Zero
		}
	}

	if err := l.repos.Lines.Create(ctx, lines); err != nil {
		return nil, errors.Wrap(err, "create lines")
	}

	var confirmed []LineRecord
	for _, rec := range records {
		if rec.Order.IsConfirmed() {
			confirmed = append(confirmed, rec)
		}
	}
	if len(confirmed) > 0 {
		if err := l.GenerateFieldService(ctx, e, confirmed); err != nil {
			return nil, err
		}
	}

	if err := l.Recompute(ctx, records); err != nil {
		return nil, err
	}
	return lines, nil
}

// PrepareFSMOrderValues builds the creation payload of the field service
// order for exactly one line.
func PrepareFSMOrderValues(records []LineRecord) (fsm.Values, error) {
	if len(records) != 1 {
		return fsm.Values{}, &SingletonError{Count: len(records)}
	}
	rec := records[0]

	vals := fsm.Values{
		RequestEarly:       rec.Order.ExpectedDate,
		ScheduledDateStart: rec.Order.ExpectedDate,
		Description:        rec.Line.Name,
		SaleID:             rec.Order.ID,
		SaleLineID:         rec.Line.ID,
		CompanyID:          rec.Order.CompanyID,
		ScheduledDuration:  decimal.Zero,
	}
	vals.LocationID = rec.Order.FSMLocationID
	if rec.Location != nil {
		vals.LocationDirections = rec.Location.Direction
	}
	if tmpl := rec.Product.Template; tmpl != nil {
		vals.TemplateID = tmpl.ID
		vals.Todo = tmpl.Instructions
		vals.CategoryIDs = slices.Clone(tmpl.CategoryIDs)
		vals.ScheduledDuration = tmpl.Duration
	}
	return vals, nil
}

// CreateFSMOrders creates one field service order per line with elevated
// privileges, links it on the line and posts an audit note on both the sale
// order and the new order. It returns the created orders keyed by line ID.
func (l *Linker) CreateFSMOrders(ctx context.Context, e env.Env, records []LineRecord) (map[string]*fsm.Order, error) {
	result := make(map[string]*fsm.Order, len(records))
	for i := range records {
		rec := records[i]
		vals, err := PrepareFSMOrderValues(records[i : i+1])
		if err != nil {
			return nil, err
		}

		fo, err := l.repos.FSMOrders.Create(ctx, e.Sudo(), vals)
		if err != nil {
			return nil, errors.Wrapf(err, "create fsm order for line %s", rec.Line.ID)
		}
		if err := l.link(ctx, rec.Line, fo); err != nil {
			return nil, err
		}
		if err := l.postCreated(ctx, e, rec.Order, fo, rec.ProductName()); err != nil {
			return nil, err
		}
		l.created.Add(ctx, 1, metric.WithAttributes(attribute.String("tracking", string(product.TrackingLine))))
		zctx.From(ctx).Info("Field service order created",
			zap.String("fsm_order", fo.Name),
			zap.String("sale_order", rec.Order.Name),
			zap.String("sale_line", rec.Line.ID),
		)

		result[rec.Line.ID] = fo
	}
	return result, nil
}

// FindOrCreateFSMOrders returns the field service order of every line,
// creating the ones that do not exist yet. Existing orders are looked up in
// one search so that confirming, cancelling and reconfirming an order never
// duplicates them.
func (l *Linker) FindOrCreateFSMOrders(ctx context.Context, e env.Env, records []LineRecord) (map[string]*fsm.Order, error) {
	existing, err := l.repos.FSMOrders.SearchBySaleLines(ctx, lineIDs(records))
	if err != nil {
		return nil, errors.Wrap(err, "search fsm orders by sale line")
	}
	byLine := make(map[string]*fsm.Order, len(existing))
	for i := range existing {
		byLine[existing[i].SaleLineID] = &existing[i]
	}

	result := make(map[string]*fsm.Order, len(records))
	for i := range records {
		rec := records[i]
		if fo, ok := byLine[rec.Line.ID]; ok {
			if err := l.link(ctx, rec.Line, fo); err != nil {
				return nil, err
			}
			result[rec.Line.ID] = fo
			continue
		}

		created, err := l.CreateFSMOrders(ctx, e, records[i:i+1])
		switch {
		case errors.Is(err, fsm.ErrDuplicate):
			fo, err := l.reuseLineOrder(ctx, rec.Line)
			if err != nil {
				return nil, err
			}
			result[rec.Line.ID] = fo
		case err != nil:
			return nil, err
		default:
			result[rec.Line.ID] = created[rec.Line.ID]
		}
	}
	return result, nil
}

// reuseLineOrder links the order another transaction created for line
// between our search and our insert.
func (l *Linker) reuseLineOrder(ctx context.Context, line *Line) (*fsm.Order, error) {
	found, err := l.repos.FSMOrders.SearchBySaleLines(ctx, []string{line.ID})
	if err != nil {
		return nil, errors.Wrap(err, "search concurrent fsm order")
	}
	if len(found) == 0 {
		return nil, errors.Wrapf(fsm.ErrNotFound, "line %s", line.ID)
	}
	fo := &found[0]
	if err := l.link(ctx, line, fo); err != nil {
		return nil, err
	}
	return fo, nil
}

// GenerateFieldService links every line to its field service order:
// sale-tracked lines share the order of their sale order, line-tracked
// lines get their own.
func (l *Linker) GenerateFieldService(ctx context.Context, e env.Env, records []LineRecord) error {
	var saleLevel, lineLevel []LineRecord
	for _, rec := range records {
		switch rec.Tracking() {
		case product.TrackingSale:
			saleLevel = append(saleLevel, rec)
		case product.TrackingLine:
			lineLevel = append(lineLevel, rec)
		default:
			continue
		}
		if rec.Order.FSMLocationID == "" {
			return &MissingLocationError{OrderID: rec.Order.ID}
		}
	}

	if len(saleLevel) > 0 {
		byOrder, err := l.FindOrCreateOrderFSMOrders(ctx, e, saleLevel)
		if err != nil {
			return err
		}
		for _, rec := range saleLevel {
			if err := l.link(ctx, rec.Line, byOrder[rec.Order.ID]); err != nil {
				return err
			}
		}
	}

	if len(lineLevel) > 0 {
		if _, err := l.FindOrCreateFSMOrders(ctx, e, lineLevel); err != nil {
			return err
		}
	}
	return nil
}

// FindOrCreateOrderFSMOrders returns the sale-level field service order of
// every sale order referenced by records, creating missing ones from the
// templates of the given lines.
func (l *Linker) FindOrCreateOrderFSMOrders(ctx context.Context, e env.Env, records []LineRecord) (map[string]*fsm.Order, error) {
	var (
		saleIDs []string
		byOrder = make(map[string][]LineRecord)
	)
	for _, rec := range records {
		if _, ok := byOrder[rec.Order.ID]; !ok {
			saleIDs = append(saleIDs, rec.Order.ID)
		}
		byOrder[rec.Order.ID] = append(byOrder[rec.Order.ID], rec)
	}

	existing, err := l.repos.FSMOrders.SearchSaleLevel(ctx, saleIDs)
	if err != nil {
		return nil, errors.Wrap(err, "search sale level fsm orders")
	}
	result := make(map[string]*fsm.Order, len(saleIDs))
	for i := range existing {
		result[existing[i].SaleID] = &existing[i]
	}

	for _, saleID := range saleIDs {
		if _, ok := result[saleID]; ok {
			continue
		}
		group := byOrder[saleID]
		order := group[0].Order

		fo, err := l.repos.FSMOrders.Create(ctx, e.Sudo(), prepareOrderFSMValues(group))
		if errors.Is(err, fsm.ErrDuplicate) {
			found, err := l.repos.FSMOrders.SearchSaleLevel(ctx, []string{saleID})
			if err != nil {
				return nil, errors.Wrap(err, "search concurrent sale level fsm order")
			}
			if len(found) == 0 {
				return nil, errors.Wrapf(fsm.ErrNotFound, "sale order %s", saleID)
			}
			result[saleID] = &found[0]
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "create fsm order for sale order %s", saleID)
		}
		if err := l.postCreated(ctx, e, order, fo, ""); err != nil {
			return nil, err
		}
		l.created.Add(ctx, 1, metric.WithAttributes(attribute.String("tracking", string(product.TrackingSale))))
		zctx.From(ctx).Info("Field service order created",
			zap.String("fsm_order", fo.Name),
			zap.String("sale_order", order.Name),
		)
		result[saleID] = fo
	}
	return result, nil
}

// prepareOrderFSMValues builds the payload of a sale-level order from the
// sale-tracked lines of one sale order.
func prepareOrderFSMValues(records []LineRecord) fsm.Values {
	first := records[0]
	order := first.Order

	vals := fsm.Values{
		LocationID:         order.FSMLocationID,
		RequestEarly:       order.ExpectedDate,
		ScheduledDateStart: order.ExpectedDate,
		Description:        order.Note,
		SaleID:             order.ID,
		CompanyID:          order.CompanyID,
		ScheduledDuration:  decimal.Zero,
	}
	if first.Location != nil {
		vals.LocationDirections = first.Location.Direction
	}

	var (
		todos     []string
		templates []string
	)
	for _, rec := range records {
		tmpl := rec.Product.Template
		if tmpl == nil {
			continue
		}
		templates = appendUnique(templates, tmpl.ID)
		if tmpl.Instructions != "" && !slices.Contains(todos, tmpl.Instructions) {
			todos = append(todos, tmpl.Instructions)
		}
		for _, c := range tmpl.CategoryIDs {
			vals.CategoryIDs = appendUnique(vals.CategoryIDs, c)
		}
		vals.ScheduledDuration = vals.ScheduledDuration.Add(tmpl.Duration)
	}
	if len(templates) == 1 {
		vals.TemplateID = templates[0]
	}
	vals.Todo = strings.Join(todos, "\n")
	return vals
}

func (l *Linker) link(ctx context.Context, line *Line, fo *fsm.Order) error {
	if fo == nil || line.FSMOrderID == fo.ID {
		return nil
	}
	if err := l.repos.Lines.SetFSMOrder(ctx, line.ID, fo.ID); err != nil {
		return errors.Wrapf(err, "link line %s to fsm order %s", line.ID, fo.ID)
	}
	line.FSMOrderID = fo.ID
	return nil
}

func (l *Linker) postCreated(ctx context.Context, e env.Env, order *Order, fo *fsm.Order, productName string) error {
	if err := l.poster.Post(ctx, e, env.ModelSaleOrder, order.ID, createdOnSaleNote(fo, productName)); err != nil {
		return err
	}
	return l.poster.Post(ctx, e.Sudo(), env.ModelFSMOrder, fo.ID, createdFromSaleNote(order, productName))
}
