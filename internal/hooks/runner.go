// Package hooks implements the hook runner (spec component C6): ordered
// pre/post hook execution within a single phase, with observe (fire-and-
// forget) and transform (blocking, replacing) semantics.
package hooks

import (
	"context"
	"log/slog"

	"github.com/polisai/polis-oss/internal/composition"
	"github.com/polisai/polis-oss/internal/cond"
	"github.com/polisai/polis-oss/internal/functions"
	"github.com/polisai/polis-oss/internal/pipelineerr"
	"github.com/polisai/polis-oss/internal/telemetry"
	"github.com/polisai/polis-oss/internal/vars"
)

// Runner executes a single phase (pre or post) of hooks for a node.
type Runner struct {
	Functions map[string]composition.Function
	Logger    *slog.Logger
	Metrics   *telemetry.Metrics
}

// New builds a Runner bound to the composition's function table. The
// Runner records no metrics until WithMetrics attaches a recorder.
func New(comp *composition.Composition, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{Functions: comp.Functions, Logger: logger}
}

// WithMetrics attaches a Metrics recorder, returning the same Runner for
// chaining at construction time.
func (r *Runner) WithMetrics(m *telemetry.Metrics) *Runner {
	r.Metrics = m
	return r
}

// Run executes hookList in declaration order against env, starting from
// data. It returns the (possibly replaced) data that downstream hooks or
// the node's adapter should see. An error is returned only when a
// transform hook fails with on_failure=abort; the caller must terminate
// the request with that error as the cause.
func (r *Runner) Run(ctx context.Context, hookList []composition.Hook, env *vars.Environment, data string) (string, error) {
	current := data
	for _, h := range hookList {
		run, err := shouldRun(ctx, h, env)
		if err != nil {
			return current, err
		}
		if !run {
			continue
		}

		fn, ok := r.Functions[h.Function]
		if !ok {
			// Composition validation guarantees this can't happen for a
			// loaded composition; defensive log only.
			r.Logger.Error("hook references unknown function", "function", h.Function)
			continue
		}

		if h.Mode == composition.HookObserve {
			r.runObserve(h, fn, env)
			continue
		}

		result := functions.Invoke(ctx, fn, env)
		if result.Success {
			current = result.PayloadText
			continue
		}

		r.Logger.Warn("transform hook failed", "function", h.Function, "error", result.Error)
		if r.Metrics != nil {
			r.Metrics.ObserveHookFailure(h.Function, string(h.Mode), string(h.OnFailure))
		}
		if h.OnFailure == composition.OnFailureAbort {
			return current, pipelineerr.New(pipelineerr.KindFunctionFailure, "hook "+h.Function+" failed: "+result.Error)
		}
		// on_failure=continue: keep original data, proceed.
	}
	return current, nil
}

func shouldRun(ctx context.Context, h composition.Hook, env *vars.Environment) (bool, error) {
	if h.If == "" {
		return true, nil
	}
	ok, err := cond.Eval(ctx, h.If, env)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// runObserve dispatches the hook asynchronously and never blocks the
// caller; the invocation's own timeout (or the default) bounds its
// lifetime independently of the request.
func (r *Runner) runObserve(h composition.Hook, fn composition.Function, env *vars.Environment) {
	go func() {
		result := functions.Invoke(context.Background(), fn, env)
		if result.Success {
			r.Logger.Debug("observe hook completed", "function", h.Function)
		} else {
			r.Logger.Warn("observe hook failed", "function", h.Function, "error", result.Error)
		}
	}()
}
