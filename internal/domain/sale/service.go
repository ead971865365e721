package sale

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/fieldservice-sale/internal/domain/env"
	"github.com/xenking/fieldservice-sale/internal/domain/fsm"
	"github.com/xenking/fieldservice-sale/internal/domain/invoice"
	"github.com/xenking/fieldservice-sale/internal/domain/message"
)

// CreateOrderRequest holds the input for creating a sale order.
type CreateOrderRequest struct {
	FSMLocationID string
	ExpectedDate  *time.Time
	Note          string
}

// OrderDetails is a sale order with its lines.
type OrderDetails struct {
	Order *Order
	Lines []*Line
}

// Service runs sale order use cases, each inside one transaction.
type Service struct {
	tx       TxRunner
	linker   *Linker
	repos    Repositories
	messages message.Repository
	now      func() time.Time
}

// NewService creates a sale Service.
func NewService(tx TxRunner, linker *Linker, repos Repositories, messages message.Repository) *Service {
	return &Service{
		tx:       tx,
		linker:   linker,
		repos:    repos,
		messages: messages,
		now:      time.Now,
	}
}

// CreateOrder creates a draft sale order for the company of e.
func (s *Service) CreateOrder(ctx context.Context, e env.Env, req CreateOrderRequest) (*Order, error) {
	if err := e.CheckCreate(env.ModelSaleOrder); err != nil {
		return nil, err
	}

	o := &Order{
		ID:            uuid.New().String(),
		State:         StateDraft,
		CompanyID:     e.CompanyID,
		FSMLocationID: req.FSMLocationID,
		ExpectedDate:  req.ExpectedDate,
		Note:          req.Note,
		CreatedAt:     s.now().UTC(),
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.repos.Orders.Create(ctx, o)
	})
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

// GetOrder returns a sale order with its lines.
func (s *Service) GetOrder(ctx context.Context, e env.Env, id string) (*OrderDetails, error) {
	o, err := s.order(ctx, e, id)
	if err != nil {
		return nil, err
	}
	lines, err := s.repos.Lines.ListByOrder(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "list lines")
	}
	return &OrderDetails{Order: o, Lines: linePointers(lines)}, nil
}

// AddLines appends lines to an order. Lines added to a confirmed order
// generate their field service orders immediately.
func (s *Service) AddLines(ctx context.Context, e env.Env, orderID string, vals []LineValues) ([]*Line, error) {
	var created []*Line
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.order(ctx, e, orderID)
		if err != nil {
			return err
		}
		if o.State == StateDone || o.State == StateCancel {
			return &StateError{OrderID: o.ID, State: o.State, Action: "add lines to"}
		}
		for i := range vals {
			vals[i].OrderID = orderID
		}
		created, err = s.linker.CreateLines(ctx, e, vals)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ConfirmOrder moves a draft or sent order to the "sale" state and
// generates field service orders for its lines.
func (s *Service) ConfirmOrder(ctx context.Context, e env.Env, orderID string) (*OrderDetails, error) {
	if err := e.CheckWrite(env.ModelSaleOrder); err != nil {
		return nil, err
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.order(ctx, e, orderID)
		if err != nil {
			return err
		}
		if o.State != StateDraft && o.State != StateSent {
			return &StateError{OrderID: o.ID, State: o.State, Action: "confirm"}
		}
		if err := s.repos.Orders.SetState(ctx, o.ID, StateSale); err != nil {
			return errors.Wrap(err, "set state")
		}

		records, err := s.orderRecords(ctx, o.ID)
		if err != nil {
			return err
		}
		if err := s.linker.GenerateFieldService(ctx, e, records); err != nil {
			return errors.Wrap(err, "generate field service")
		}
		return s.linker.Recompute(ctx, records)
	})
	if err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Sale order confirmed", zap.String("sale_order", orderID))
	return s.GetOrder(ctx, e, orderID)
}

// CancelOrder cancels an order. Generated field service orders are kept so
// that a later confirmation reuses them.
func (s *Service) CancelOrder(ctx context.Context, e env.Env, orderID string) (*OrderDetails, error) {
	return s.transition(ctx, e, orderID, "cancel", StateCancel, func(from State) bool {
		return from != StateDone && from != StateCancel
	})
}

// ResetToDraft moves a cancelled order back to draft.
func (s *Service) ResetToDraft(ctx context.Context, e env.Env, orderID string) (*OrderDetails, error) {
	return s.transition(ctx, e, orderID, "reset to draft", StateDraft, func(from State) bool {
		return from == StateCancel
	})
}

func (s *Service) transition(ctx context.Context, e env.Env, orderID, action string, to State, allowed func(State) bool) (*OrderDetails, error) {
	if err := e.CheckWrite(env.ModelSaleOrder); err != nil {
		return nil, err
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.order(ctx, e, orderID)
		if err != nil {
			return err
		}
		if !allowed(o.State) {
			return &StateError{OrderID: o.ID, State: o.State, Action: action}
		}
		if err := s.repos.Orders.SetState(ctx, o.ID, to); err != nil {
			return errors.Wrap(err, "set state")
		}
		records, err := s.orderRecords(ctx, o.ID)
		if err != nil {
			return err
		}
		return s.linker.Recompute(ctx, records)
	})
	if err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, e, orderID)
}

// SetFSMOrderStage moves a field service order to the stage identified by
// stageRef and refreshes the delivered quantity of the lines linked to it.
func (s *Service) SetFSMOrderStage(ctx context.Context, e env.Env, fsmOrderID, stageRef string) (*fsm.Order, error) {
	if err := e.CheckWrite(env.ModelFSMOrder); err != nil {
		return nil, err
	}

	var fo *fsm.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.fsmOrder(ctx, e, fsmOrderID); err != nil {
			return err
		}
		stage, err := s.repos.Stages.GetByRef(ctx, stageRef)
		if err != nil {
			return err
		}
		if err := s.repos.FSMOrders.SetStage(ctx, fsmOrderID, stage.ID); err != nil {
			return err
		}
		fo, err = s.repos.FSMOrders.GetByID(ctx, fsmOrderID)
		if err != nil {
			return err
		}

		lines, err := s.repos.Lines.ListByFSMOrder(ctx, fsmOrderID)
		if err != nil {
			return errors.Wrap(err, "list linked lines")
		}
		records, err := s.linker.Resolve(ctx, linePointers(lines))
		if err != nil {
			return err
		}
		return s.linker.Recompute(ctx, records)
	})
	if err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Field service order stage changed",
		zap.String("fsm_order", fo.Name),
		zap.String("stage", stageRef),
	)
	return fo, nil
}

// GetFSMOrder returns a field service order.
func (s *Service) GetFSMOrder(ctx context.Context, e env.Env, id string) (*fsm.Order, error) {
	return s.fsmOrder(ctx, e, id)
}

// PrepareInvoice returns the invoice line payloads of every line of the
// order that has a quantity to invoice, numbered from 1 in line order.
// Options apply after the numbering.
func (s *Service) PrepareInvoice(ctx context.Context, e env.Env, orderID string, opts ...invoice.Option) ([]invoice.LineValues, error) {
	if _, err := s.order(ctx, e, orderID); err != nil {
		return nil, err
	}
	records, err := s.orderRecords(ctx, orderID)
	if err != nil {
		return nil, err
	}

	out := make([]invoice.LineValues, 0, len(records))
	for _, rec := range records {
		if QtyToInvoice(rec).IsZero() {
			continue
		}
		lineOpts := append([]invoice.Option{invoice.WithSequence(len(out) + 1)}, opts...)
		out = append(out, PrepareInvoiceLine(rec, lineOpts...))
	}
	return out, nil
}

// Messages returns the audit notes posted on a sale order or a field
// service order, oldest first.
func (s *Service) Messages(ctx context.Context, e env.Env, model, resID string) ([]message.Message, error) {
	var err error
	switch model {
	case env.ModelSaleOrder:
		_, err = s.order(ctx, e, resID)
	case env.ModelFSMOrder:
		_, err = s.fsmOrder(ctx, e, resID)
	default:
		err = errors.Wrapf(ErrNotFound, "model %q", model)
	}
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByRecord(ctx, model, resID)
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	return msgs, nil
}

// order loads a sale order visible to e.
func (s *Service) order(ctx context.Context, e env.Env, id string) (*Order, error) {
	o, err := s.repos.Orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.CheckCompany(env.ModelSaleOrder, o.CompanyID); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) fsmOrder(ctx context.Context, e env.Env, id string) (*fsm.Order, error) {
	fo, err := s.repos.FSMOrders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.CheckCompany(env.ModelFSMOrder, fo.CompanyID); err != nil {
		return nil, err
	}
	return fo, nil
}

func (s *Service) orderRecords(ctx context.Context, orderID string) ([]LineRecord, error) {
	lines, err := s.repos.Lines.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "list lines")
	}
	return s.linker.Resolve(ctx, linePointers(lines))
}

func linePointers(lines []Line) []*Line {
	out := make([]*Line, len(lines))
	for i := range lines {
		out[i] = &lines[i]
	}
	return out
}
