// Package pipeline validates operation parameters and pipelines, and runs a
// validated pipeline step by step through a handler chain.
package pipeline

import (
	"context"
	"time"

	"github.com/Skryldev/image-api/core"
	apperrors "github.com/Skryldev/image-api/errors"
)

// Input is the starting state of a pipeline run.
type Input struct {
	Image         []byte
	ContentType   string
	Filename      string
	Endpoint      string
	Authorization string
}

// Runner executes validated pipelines through a single prebuilt handler
// chain, one invocation per step.
type Runner struct {
	handler core.Handler
	hooks   []core.Hook
}

// NewRunner returns a Runner that invokes h for every step.
func NewRunner(h core.Handler) *Runner { return &Runner{handler: h} }

// AddHook registers an observer.
func (r *Runner) AddHook(h core.Hook) *Runner {
	r.hooks = append(r.hooks, h)
	return r
}

// Run executes p on in. Each step receives the previous step's output bytes
// and metadata; the first failure aborts the run and is returned unchanged.
func (r *Runner) Run(ctx context.Context, in Input, p Pipeline) (*core.Response, error) {
	current := &core.Response{Body: in.Image, ContentType: in.ContentType, Filename: in.Filename}

	for i, params := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryOperation, string(params.Kind()), err)
		}

		req := &core.Request{
			Image:         current.Body,
			Params:        params,
			Endpoint:      in.Endpoint,
			Authorization: in.Authorization,
			ContentType:   current.ContentType,
			Filename:      current.Filename,
		}
		out, err := r.runStep(ctx, i, req)
		if err != nil {
			return nil, err
		}
		current = out
	}
	return current, nil
}

func (r *Runner) runStep(ctx context.Context, i int, req *core.Request) (*core.Response, error) {
	kind := req.Params.Kind()
	for _, h := range r.hooks {
		h.BeforeStep(ctx, i, kind, req.Image)
	}

	start := time.Now()
	out, err := r.handler.Handle(ctx, req)
	elapsed := time.Since(start)

	for _, h := range r.hooks {
		h.AfterStep(ctx, i, kind, out, elapsed, err)
	}
	return out, err
}
