// Package functions implements the external function executor (spec
// component C5): invoking REST/Shell/WebSocket/gRPC functions with
// variable-substituted inputs under a per-function timeout.
package functions

import (
	"context"
	"time"

	"github.com/polisai/polis-oss/internal/composition"
	"github.com/polisai/polis-oss/internal/vars"
)

// defaultTimeout is used whenever a Function declares no timeout.
const defaultTimeout = 30 * time.Second

// Result is the outcome of a single function invocation.
type Result struct {
	Success     bool
	PayloadText string
	Error       string
}

// Invoke performs variable substitution across every string field of fn
// (including JSON body/message/request values) and dispatches per the
// function's kind. Default timeout is 30s; on any network/IO/spawn error
// or non-success status, Result.Success is false, PayloadText is empty,
// and Error is populated.
func Invoke(ctx context.Context, fn composition.Function, env *vars.Environment) Result {
	timeout := defaultTimeout
	if fn.Timeout > 0 {
		timeout = time.Duration(fn.Timeout) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch fn.Kind {
	case composition.FunctionREST:
		return invokeREST(ctx, fn, env)
	case composition.FunctionShell:
		return invokeShell(ctx, fn, env)
	case composition.FunctionWebSocket:
		return invokeWebSocket(ctx, fn, env)
	case composition.FunctionGRPC:
		return invokeGRPC(ctx, fn, env)
	default:
		return Result{Error: "unknown function kind: " + string(fn.Kind)}
	}
}

func substituteMap(m map[string]string, env *vars.Environment) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = vars.Substitute(v, env)
	}
	return out
}

func substituteSlice(s []string, env *vars.Environment) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	for i, v := range s {
		out[i] = vars.Substitute(v, env)
	}
	return out
}
