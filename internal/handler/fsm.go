package handler

import (
	"context"
)

// GetFSMOrder handles GET /api/fsm-orders/{fsmOrderId}.
func (h *Handler) GetFSMOrder(ctx context.Context, in *FSMOrderPathInput) (*FSMOrderOutput, error) {
	e, err := envFrom(ctx)
	if err != nil {
		return nil, err
	}

	fo, err := h.svc.GetFSMOrder(ctx, e, in.FSMOrderID)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	return &FSMOrderOutput{Body: toFSMOrder(fo)}, nil
}

// SetFSMOrderStage handles POST /api/fsm-orders/{fsmOrderId}/stage.
func (h *Handler) SetFSMOrderStage(ctx context.Context, in *SetStageInput) (*FSMOrderOutput, error) {
	e, err := envFrom(ctx)
	if err != nil {
		return nil, err
	}

	fo, err := h.svc.SetFSMOrderStage(ctx, e, in.FSMOrderID, in.Body.Stage)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	return &FSMOrderOutput{Body: toFSMOrder(fo)}, nil
}

// Messages handles GET /api/messages.
func (h *Handler) Messages(ctx context.Context, in *MessagesInput) (*MessagesOutput, error) {
	e, err := envFrom(ctx)
	if err != nil {
		return nil, err
	}

	msgs, err := h.svc.Messages(ctx, e, in.Model, in.ResID)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	out := &MessagesOutput{}
	out.Body.Messages = make([]Message, len(msgs))
	for i, m := range msgs {
		out.Body.Messages[i] = toMessage(m)
	}
	return out, nil
}
