// Package router implements candidate filtering and selection (spec
// component C7): from an emitting node's output-to slots, choose one
// target per slot, invoking a router-prompt model call only when more
// than one candidate remains eligible.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/polisai/polis-oss/internal/composition"
	"github.com/polisai/polis-oss/internal/cond"
	"github.com/polisai/polis-oss/internal/vars"
)

// ModelCaller invokes an emitting node's model with a synthesized prompt,
// implemented by the chat-completion node adapter. Routing never needs a
// system prompt distinct from the node's own context, so only the user
// content is parameterized.
type ModelCaller interface {
	Call(ctx context.Context, node *composition.Node, userContent string, env *vars.Environment) (string, error)
}

type candidateDescriptor struct {
	Name    string `json:"name"`
	UseCase string `json:"use-case"`
}

// ResolveSuccessors resolves every output-to slot of the emitting node
// into the single chosen successor for that slot, fanning out across
// slots (the processor spawns one concurrent sub-branch per result).
func ResolveSuccessors(ctx context.Context, topo *composition.Topology, emitting *composition.Node, content string, env *vars.Environment, caller ModelCaller) ([]*composition.Node, error) {
	out := make([]*composition.Node, 0, len(emitting.OutputTo))
	for _, slot := range emitting.OutputTo {
		n, err := resolveSlot(ctx, topo, emitting, slot, content, env, caller)
		if err != nil {
			return nil, err
		}
		if n != nil {
			out = append(out, n)
		}
	}
	return out, nil
}

func resolveSlot(ctx context.Context, topo *composition.Topology, emitting *composition.Node, slot, content string, env *vars.Environment, caller ModelCaller) (*composition.Node, error) {
	if topo.IsNamedTarget(slot) {
		// Named targets resolve directly: no eligibility filtering, no
		// router call (spec.md §4.6).
		return topo.ByName[slot], nil
	}

	candidates := topo.ExpandSlot(slot)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("router: no nodes declared at layer %q", slot)
	}

	eligible, err := filterEligible(ctx, candidates, env)
	if err != nil {
		return nil, err
	}

	switch len(eligible) {
	case 0:
		// Unreachable in practice: filterEligible's fallback guarantees at
		// least the full candidate set when every predicate is false.
		return nil, fmt.Errorf("router: no eligible candidates at layer %q", slot)
	case 1:
		return eligible[0], nil
	default:
		return selectViaRouterPrompt(ctx, emitting, content, eligible, env, caller)
	}
}

// filterEligible evaluates each candidate's "if" predicate. A candidate is
// eligible when it has no "if" or its "if" is true. If all candidates carry
// an "if" and none is true, the filter is bypassed and every candidate
// becomes eligible — a deliberate dead-end-prevention fallback (spec.md
// §4.6).
func filterEligible(ctx context.Context, candidates []*composition.Node, env *vars.Environment) ([]*composition.Node, error) {
	var eligible []*composition.Node
	allHaveIf := true
	for _, c := range candidates {
		if c.If == "" {
			allHaveIf = false
			eligible = append(eligible, c)
			continue
		}
		ok, err := cond.Eval(ctx, c.If, env)
		if err != nil {
			return nil, err
		}
		if ok {
			eligible = append(eligible, c)
		}
	}
	if allHaveIf && len(eligible) == 0 {
		return candidates, nil
	}
	return eligible, nil
}

func selectViaRouterPrompt(ctx context.Context, emitting *composition.Node, content string, eligible []*composition.Node, env *vars.Environment, caller ModelCaller) (*composition.Node, error) {
	prompt, err := buildRouterPrompt(content, eligible)
	if err != nil {
		return nil, err
	}
	response, err := caller.Call(ctx, emitting, prompt, env)
	if err != nil {
		return nil, err
	}
	return parseRouterResponse(response, eligible), nil
}

func buildRouterPrompt(content string, eligible []*composition.Node) (string, error) {
	descriptors := make([]candidateDescriptor, len(eligible))
	for i, c := range eligible {
		descriptors[i] = candidateDescriptor{Name: c.Name, UseCase: c.UseCase}
	}
	list, err := json.MarshalIndent(descriptors, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"Here is the user prompt: %q\n\n"+
			"Based on the prompt, please choose from one of these models,\n"+
			"outputting ONLY the model name to use:\n%s",
		content, list), nil
}

// parseRouterResponse matches the router's reply against the eligible set
// by case-insensitive, trimmed exact name. On ambiguity or mismatch the
// first eligible candidate is the deterministic tie-breaker.
func parseRouterResponse(response string, eligible []*composition.Node) *composition.Node {
	trimmed := strings.ToLower(strings.TrimSpace(response))
	for _, c := range eligible {
		if strings.ToLower(c.Name) == trimmed {
			return c
		}
	}
	return eligible[0]
}
