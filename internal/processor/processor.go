// Package processor implements the per-request pipeline orchestration loop
// (spec component C8): entry resolution, node execution (hooks.pre →
// adapter → hooks.post), hop/trace bookkeeping, and routing to the next
// node(s) via the router, fanning out concurrently when a node's
// output-to names more than one slot.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/polisai/polis-oss/internal/adapters"
	"github.com/polisai/polis-oss/internal/composition"
	"github.com/polisai/polis-oss/internal/hooks"
	"github.com/polisai/polis-oss/internal/pipelineerr"
	"github.com/polisai/polis-oss/internal/router"
	"github.com/polisai/polis-oss/internal/telemetry"
	"github.com/polisai/polis-oss/internal/vars"
)

// DefaultHopCap is the per-request cap on nodes visited before the request
// fails with PipelineTooDeep (spec.md §4.7).
const DefaultHopCap = 32

// TraceEntry records one node's contribution to a request's path.
type TraceEntry struct {
	NodeName string
	Layer    *int
	Output   string
}

// Result is the outcome delivered to the HTTP caller: the content produced
// by the first output-adapter node to terminate, and the trace of every
// node visited along that branch.
type Result struct {
	Content string
	Trace   []TraceEntry
}

// Processor wires the resolved topology, node adapters, router, and hook
// runner into the per-request execution loop.
type Processor struct {
	Topo     *composition.Topology
	Adapters *adapters.Registry
	Hooks    *hooks.Runner
	HopCap   int
	Logger   *slog.Logger
	Metrics  *telemetry.Metrics
	Name     string // composition name, used as a metrics label
}

// New builds a Processor bound to topo. hopCap of 0 uses DefaultHopCap.
func New(topo *composition.Topology, reg *adapters.Registry, hookRunner *hooks.Runner, hopCap int, logger *slog.Logger) *Processor {
	if hopCap <= 0 {
		hopCap = DefaultHopCap
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Topo: topo, Adapters: reg, Hooks: hookRunner, HopCap: hopCap, Logger: logger}
}

// WithMetrics attaches a Metrics recorder and the composition name used to
// label request-level metrics, returning the same Processor for chaining.
func (p *Processor) WithMetrics(m *telemetry.Metrics, compositionName string) *Processor {
	p.Metrics = m
	p.Name = compositionName
	return p
}

// Process runs one request from the composition's entry node. secrets may
// be nil when the composition declares no secret sources. headers supplies
// the inbound HTTP headers available for extra-options.UseHeaderKeys
// binding.
func (p *Processor) Process(ctx context.Context, initialContent string, secrets vars.SecretResolver, headers map[string]string) (*Result, error) {
	if p.Topo.Entry == nil {
		return nil, pipelineerr.New(pipelineerr.KindCompositionValidation, "composition has no entry node")
	}

	start := time.Now()
	requestID := uuid.NewString()
	env := vars.NewEnvironment(map[string]string{
		"REQUEST_ID":     requestID,
		"INITIAL_INPUT":  initialContent,
		"TIMESTAMP":      strconv.FormatInt(time.Now().Unix(), 10),
		"PREV_NODE":      "",
		"PREV_LAYER":     "",
		"ROUTE_DECISION": "",
	}, secrets)
	for _, key := range p.Topo.Entry.UseHeaderKeys() {
		if v, ok := headers[key]; ok {
			env.Set(key, v)
		}
	}

	branch := &branchState{
		proc:       p,
		resultOnce: &sync.Once{},
		resultCh:   make(chan *Result, 1),
		errs:       &errCollector{},
		wg:         &sync.WaitGroup{},
	}
	branch.wg.Add(1)
	go branch.execute(ctx, p.Topo.Entry, initialContent, env, 0, nil)

	done := make(chan struct{})
	go func() {
		branch.wg.Wait()
		close(done)
	}()

	select {
	case res := <-branch.resultCh:
		p.recordRequest("success", time.Since(start), len(res.Trace))
		return res, nil
	case <-done:
		if err := branch.errs.first(); err != nil {
			outcome := "error"
			if kind, ok := pipelineerr.KindOf(err); ok {
				outcome = string(kind)
			}
			p.recordRequest(outcome, time.Since(start), 0)
			return nil, err
		}
		p.recordRequest("no_output", time.Since(start), 0)
		return nil, pipelineerr.New(pipelineerr.KindAdapterFailure, "pipeline produced no output")
	case <-ctx.Done():
		p.recordRequest("canceled", time.Since(start), 0)
		return nil, ctx.Err()
	}
}

func (p *Processor) recordRequest(outcome string, elapsed time.Duration, hops int) {
	if p.Metrics == nil {
		return
	}
	p.Metrics.ObserveRequest(p.Name, outcome, elapsed.Seconds(), hops)
}

// branchState is shared across every concurrent sub-branch spawned by a
// fan-out node so that the first output-adapter termination wins while
// sibling branches (notably websocket sinks) keep running to completion,
// detached from the caller's context (spec.md §4.6).
type branchState struct {
	proc       *Processor
	resultOnce *sync.Once
	resultCh   chan *Result
	errs       *errCollector
	wg         *sync.WaitGroup
}

type errCollector struct {
	mu  sync.Mutex
	err error
}

func (c *errCollector) record(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *errCollector) first() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// execute runs one node and, on success, resolves and fans out to its
// successors. It always calls wg.Done exactly once before returning.
func (b *branchState) execute(ctx context.Context, node *composition.Node, content string, env *vars.Environment, hop int, trace []TraceEntry) {
	defer b.wg.Done()

	if hop >= b.proc.HopCap {
		b.errs.record(pipelineerr.New(pipelineerr.KindPipelineTooDeep, fmt.Sprintf("hop cap %d exceeded at node %q", b.proc.HopCap, node.Name)))
		return
	}

	layerStr := ""
	if node.Layer != nil {
		layerStr = strconv.Itoa(*node.Layer)
	}
	env.Set("NODE", node.Name)
	env.Set("INPUT", content)
	env.Set("CURRENT_INPUT", content)
	env.Set("CURRENT_LAYER", layerStr)
	env.Set("HOP_COUNT", strconv.Itoa(hop))
	env.Set("INPUT_LENGTH", strconv.Itoa(len(content)))
	env.Set("WORD_COUNT", strconv.Itoa(len(strings.Fields(content))))

	output, err := b.runNode(ctx, node, content, env)
	if err != nil {
		b.errs.record(err)
		return
	}

	entry := TraceEntry{NodeName: node.Name, Layer: node.Layer, Output: output}
	newTrace := append(append([]TraceEntry{}, trace...), entry)

	env.Set("PREV_NODE", node.Name)
	env.Set("PREV_LAYER", layerStr)

	if node.Adapter == composition.AdapterOutput {
		b.resultOnce.Do(func() {
			b.resultCh <- &Result{Content: output, Trace: newTrace}
		})
		return
	}

	successors, err := router.ResolveSuccessors(ctx, b.proc.Topo, node, output, env, b.proc.Adapters.Chat)
	if err != nil {
		b.errs.record(err)
		return
	}
	if len(successors) > 0 {
		env.Set("ROUTE_DECISION", successors[len(successors)-1].Name)
	}

	for i, next := range successors {
		// Every slot gets its own clone: the synchronous final branch and
		// the goroutines spawned for the rest all call env.Set concurrently,
		// so none of them may share the map backing this node's env.
		nextEnv := cloneEnv(env)
		b.wg.Add(1)
		if i == len(successors)-1 {
			b.execute(ctx, next, output, nextEnv, hop+1, newTrace)
		} else {
			go b.execute(ctx, next, output, nextEnv, hop+1, newTrace)
		}
	}
}

func (b *branchState) runNode(ctx context.Context, node *composition.Node, content string, env *vars.Environment) (string, error) {
	nodeStart := time.Now()

	afterPre, err := b.proc.Hooks.Run(ctx, node.HooksPre, env, content)
	if err != nil {
		b.recordNode(node, nodeStart, "hook_pre_failure")
		return "", err
	}

	output, err := b.proc.Adapters.Execute(ctx, node, afterPre, env)
	if err != nil {
		b.recordNode(node, nodeStart, "adapter_failure")
		return "", err
	}
	env.Set("OUTPUT", output)

	afterPost, err := b.proc.Hooks.Run(ctx, node.HooksPost, env, output)
	if err != nil {
		b.recordNode(node, nodeStart, "hook_post_failure")
		return "", err
	}
	b.recordNode(node, nodeStart, "success")
	return afterPost, nil
}

func (b *branchState) recordNode(node *composition.Node, start time.Time, outcome string) {
	if b.proc.Metrics == nil {
		return
	}
	b.proc.Metrics.ObserveNode(node.Name, string(node.Adapter), outcome, time.Since(start).Seconds())
}

func cloneEnv(env *vars.Environment) *vars.Environment {
	return vars.NewEnvironment(env.Snapshot(), env.Secrets())
}
