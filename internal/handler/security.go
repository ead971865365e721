package handler

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/fieldservice-sale/internal/domain/auth"
	"github.com/xenking/fieldservice-sale/internal/domain/env"
)

// APIKeyHeader carries the caller's API key.
const APIKeyHeader = "api_key"

// ErrUnauthorized is returned for missing or unknown API keys.
var ErrUnauthorized = errors.New("unauthorized")

type envKey struct{}

// WithEnv returns a copy of ctx carrying e.
func WithEnv(ctx context.Context, e env.Env) context.Context {
	return context.WithValue(ctx, envKey{}, e)
}

// EnvFrom returns the Env stored by the security middleware.
func EnvFrom(ctx context.Context) (env.Env, bool) {
	e, ok := ctx.Value(envKey{}).(env.Env)
	return e, ok
}

// SecurityHandler authenticates API requests via HMAC-SHA256 hashed API
// keys and turns the key's identity into an Env.
type SecurityHandler struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurityHandler creates a SecurityHandler with the given API key
// repository and HMAC pepper.
func NewSecurityHandler(apikeys auth.Repository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Authenticate resolves key to the Env of its owner.
func (s *SecurityHandler) Authenticate(ctx context.Context, key string) (env.Env, error) {
	if key == "" {
		return env.Env{}, ErrUnauthorized
	}
	hexHash := auth.HashKey(s.pepper, key)

	info, err := s.apikeys.FindByHash(ctx, hexHash)
	if err != nil {
		if !errors.Is(err, auth.ErrNotFound) {
			zctx.From(ctx).Error("API key lookup failed", zap.Error(err))
		}
		return env.Env{}, ErrUnauthorized
	}

	// The row must carry the exact hash we computed.
	want, err := hex.DecodeString(hexHash)
	if err != nil {
		return env.Env{}, ErrUnauthorized
	}
	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(want, stored) != 1 {
		return env.Env{}, ErrUnauthorized
	}

	return env.New(info.UserID, info.CompanyID, info.Groups...), nil
}

// Middleware authenticates operations that declare a security requirement.
func (s *SecurityHandler) Middleware(api huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if op := ctx.Operation(); op == nil || len(op.Security) == 0 {
			next(ctx)
			return
		}

		e, err := s.Authenticate(ctx.Context(), ctx.Header(APIKeyHeader))
		if err != nil {
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, err.Error())
			return
		}

		newCtx := zctx.With(WithEnv(ctx.Context(), e), zap.String("user", e.UserID))
		next(huma.WithContext(ctx, newCtx))
	}
}
