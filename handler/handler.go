// Package handler builds the request handling chain: a terminal handler that
// executes one registered operation, wrapped by authentication and request
// logging decorators.
package handler

import (
	"context"
	"errors"

	"github.com/Skryldev/image-api/core"
	apperrors "github.com/Skryldev/image-api/errors"
)

// Decorator wraps a Handler with additional behaviour.
type Decorator func(next core.Handler) core.Handler

// Chain wraps base with decorators so that the first decorator is the
// outermost: Chain(h, a, b) handles a request as a(b(h)).
func Chain(base core.Handler, decorators ...Decorator) core.Handler {
	h := base
	for i := len(decorators) - 1; i >= 0; i-- {
		h = decorators[i](h)
	}
	return h
}

// Standard builds the fixed production chain: logging wraps auth wraps the
// terminal handler. Build it once at startup and share it.
func Standard(ops *core.OperationRegistry, verifier core.TokenVerifier, sink core.EntryLogger, opts ...LoggingOption) core.Handler {
	return Chain(Terminal(ops), WithLogging(sink, opts...), WithAuth(verifier))
}

// Terminal returns the innermost handler: it resolves the operation for the
// request's params and wraps its output with the declared metadata.
func Terminal(ops *core.OperationRegistry) core.Handler {
	return core.HandlerFunc(func(ctx context.Context, req *core.Request) (*core.Response, error) {
		if req.Params == nil {
			return nil, apperrors.New(apperrors.CategoryOperation, "handler.terminal", errors.New("request has no params"))
		}
		op, err := ops.Resolve(req.Params.Kind())
		if err != nil {
			return nil, err
		}
		out, err := op.Execute(ctx, req.Image, req.Params)
		if err != nil {
			return nil, err
		}
		ct, fn := req.Declared()
		return &core.Response{Body: out, ContentType: ct, Filename: fn}, nil
	})
}
