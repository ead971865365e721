package handler

import (
	"context"

	"github.com/xenking/fieldservice-sale/internal/domain/env"
	"github.com/xenking/fieldservice-sale/internal/domain/invoice"
	"github.com/xenking/fieldservice-sale/internal/domain/sale"
)

// CreateOrder handles POST /api/orders.
func (h *Handler) CreateOrder(ctx context.Context, in *CreateOrderInput) (*OrderOutput, error) {
	e, err := envFrom(ctx)
	if err != nil {
		return nil, err
	}

	o, err := h.svc.CreateOrder(ctx, e, sale.CreateOrderRequest{
		FSMLocationID: in.Body.FSMLocationID,
		ExpectedDate:  in.Body.ExpectedDate,
		Note:          in.Body.Note,
	})
	if err != nil {
		return nil, mapError(ctx, err)
	}
	return &OrderOutput{Body: toOrder(o, nil)}, nil
}

// GetOrder handles GET /api/orders/{orderId}.
func (h *Handler) GetOrder(ctx context.Context, in *OrderPathInput) (*OrderOutput, error) {
	e, err := envFrom(ctx)
	if err != nil {
		return nil, err
	}

	details, err := h.svc.GetOrder(ctx, e, in.OrderID)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	return orderOutput(details), nil
}

// AddLines handles POST /api/orders/{orderId}/lines.
func (h *Handler) AddLines(ctx context.Context, in *AddLinesInput) (*LinesOutput, error) {
	e, err := envFrom(ctx)
	if err != nil {
		return nil, err
	}

	created, err := h.svc.AddLines(ctx, e, in.OrderID, toLineValues(in.Body.Lines))
	if err != nil {
		return nil, mapError(ctx, err)
	}
	out := &LinesOutput{}
	out.Body.Lines = toLines(created)
	return out, nil
}

// ConfirmOrder handles POST /api/orders/{orderId}/confirm.
func (h *Handler) ConfirmOrder(ctx context.Context, in *OrderPathInput) (*OrderOutput, error) {
	return h.transition(ctx, in.OrderID, h.svc.ConfirmOrder)
}

// CancelOrder handles POST /api/orders/{orderId}/cancel.
func (h *Handler) CancelOrder(ctx context.Context, in *OrderPathInput) (*OrderOutput, error) {
	return h.transition(ctx, in.OrderID, h.svc.CancelOrder)
}

// ResetToDraft handles POST /api/orders/{orderId}/draft.
func (h *Handler) ResetToDraft(ctx context.Context, in *OrderPathInput) (*OrderOutput, error) {
	return h.transition(ctx, in.OrderID, h.svc.ResetToDraft)
}

type transitionFunc func(ctx context.Context, e env.Env, orderID string) (*sale.OrderDetails, error)

func (h *Handler) transition(ctx context.Context, orderID string, fn transitionFunc) (*OrderOutput, error) {
	e, err := envFrom(ctx)
	if err != nil {
		return nil, err
	}
	details, err := fn(ctx, e, orderID)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	return orderOutput(details), nil
}

// InvoiceLines handles GET /api/orders/{orderId}/invoice-lines.
func (h *Handler) InvoiceLines(ctx context.Context, in *InvoiceLinesInput) (*InvoiceLinesOutput, error) {
	e, err := envFrom(ctx)
	if err != nil {
		return nil, err
	}

	var opts []invoice.Option
	if in.AccountID != "" {
		opts = append(opts, invoice.WithAccount(in.AccountID))
	}

	vals, err := h.svc.PrepareInvoice(ctx, e, in.OrderID, opts...)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	out := &InvoiceLinesOutput{}
	out.Body.Lines = make([]InvoiceLine, len(vals))
	for i, v := range vals {
		out.Body.Lines[i] = toInvoiceLine(v)
	}
	return out, nil
}

func orderOutput(d *sale.OrderDetails) *OrderOutput {
	return &OrderOutput{Body: toOrder(d.Order, d.Lines)}
}
