package handler

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/fieldservice-sale/internal/domain/env"
	"github.com/xenking/fieldservice-sale/internal/domain/fsm"
	"github.com/xenking/fieldservice-sale/internal/domain/product"
	"github.com/xenking/fieldservice-sale/internal/domain/sale"
)

// mapError converts domain errors to HTTP errors. Unknown errors are logged
// and reported as 500 without details.
func mapError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, env.ErrAccessDenied):
		return huma.Error403Forbidden(err.Error())
	case errors.Is(err, sale.ErrNotFound), errors.Is(err, fsm.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, sale.ErrInvalidState), errors.Is(err, fsm.ErrDuplicate):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, sale.ErrExpectedSingleton):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, sale.ErrMissingLocation),
		errors.Is(err, sale.ErrInvalidQuantity),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, fsm.ErrStageNotFound):
		return huma.Error422UnprocessableEntity(err.Error())
	}

	zctx.From(ctx).Error("Request failed", zap.Error(err))
	return huma.Error500InternalServerError("internal error")
}

func envFrom(ctx context.Context) (env.Env, error) {
	e, ok := EnvFrom(ctx)
	if !ok {
		return env.Env{}, huma.Error401Unauthorized(ErrUnauthorized.Error())
	}
	return e, nil
}
