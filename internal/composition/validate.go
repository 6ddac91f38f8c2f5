package composition

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/polisai/polis-oss/internal/cond"
	"github.com/polisai/polis-oss/internal/pipelineerr"
)

// secretRefPattern extracts the "<name>" portion of "$secrets.<name>.<var>"
// references from arbitrary configuration strings.
var secretRefPattern = regexp.MustCompile(`\$secrets\.([A-Za-z0-9_]+)\.[A-Za-z0-9_]+`)

// validate checks every cross-reference and topology invariant from
// spec.md §3 and §4.1 against comp, appending one diagnostic per
// independent violation to verrs. It never stops at the first problem.
func validate(comp *Composition, verrs *pipelineerr.ValidationErrors) {
	byName := make(map[string]*Node, len(comp.Architecture))
	byLayer := make(map[int][]*Node)
	for i := range comp.Architecture {
		n := &comp.Architecture[i]
		byName[n.Name] = n
		if n.Layer != nil {
			byLayer[*n.Layer] = append(byLayer[*n.Layer], n)
		}
	}

	entryCount := 0
	outputNames := map[string]bool{}
	for i := range comp.Architecture {
		n := &comp.Architecture[i]
		path := fmt.Sprintf("architecture[%s]", n.Name)

		if n.Model != "" {
			if _, ok := comp.Models[n.Model]; !ok {
				verrs.Addf(path, "model", "references undeclared model %q", n.Model)
			}
		}

		switch n.Adapter {
		case AdapterOutput:
			outputNames[n.Name] = true
			if n.Model != "" {
				verrs.Add(path, "model", "output adapter nodes must not declare a model")
			}
			if len(n.OutputTo) != 0 {
				verrs.Add(path, "output_to", "output adapter nodes must have no outputs")
			}
		case AdapterWebSocket:
			if _, ok := n.ExtraOptions["url"]; !ok {
				verrs.Add(path, "extra_options.url", "websocket adapter nodes require extra_options.url")
			}
			if len(n.OutputTo) == 0 {
				verrs.Add(path, "output_to", "non-output node requires at least one output-to target")
			}
		default:
			if len(n.OutputTo) == 0 {
				verrs.Add(path, "output_to", "non-output node requires at least one output-to target")
			}
		}

		if n.Adapter == AdapterChatCompletion && n.Layer != nil && *n.Layer == 0 {
			entryCount++
		}

		if n.If != "" {
			if _, err := cond.Parse(n.If); err != nil {
				verrs.Addf(path, "if", "invalid condition: %v", err)
			}
		}

		for _, t := range n.OutputTo {
			if layer, err := strconv.Atoi(t); err == nil {
				if len(byLayer[layer]) == 0 {
					verrs.Addf(path, "output_to", "target %q is neither a declared layer number nor a declared node name", t)
				}
				continue
			}
			if _, ok := byName[t]; !ok {
				verrs.Addf(path, "output_to", "target %q is neither a declared layer number nor a declared node name", t)
			}
		}

		validateHookList(n.HooksPre, path+".hooks.pre", comp, verrs)
		validateHookList(n.HooksPost, path+".hooks.post", comp, verrs)

		for _, s := range scanSecretRefs(n.ExtraOptions) {
			if _, ok := comp.Secrets[s]; !ok {
				verrs.Addf(path, "extra_options", "references undeclared secret %q", s)
			}
		}
	}

	if entryCount == 0 {
		verrs.Add("architecture", "", "exactly one node must be a chat-completion adapter at layer 0 (entry node); found none")
	} else if entryCount > 1 {
		verrs.Addf("architecture", "", "exactly one node must be a chat-completion adapter at layer 0 (entry node); found %d", entryCount)
	}

	if len(outputNames) == 0 {
		verrs.Add("architecture", "", "at least one node must have adapter=output")
	}

	for name, fn := range comp.Functions {
		for _, s := range scanFunctionSecretRefs(fn) {
			if _, ok := comp.Secrets[s]; !ok {
				verrs.Addf("functions."+name, "", "references undeclared secret %q", s)
			}
		}
	}

	checkCycles(comp, byName, verrs)
	checkReachableOutput(comp, byName, byLayer, verrs)
}

func validateHookList(hooks []Hook, path string, comp *Composition, verrs *pipelineerr.ValidationErrors) {
	for i, h := range hooks {
		hp := fmt.Sprintf("%s[%d]", path, i)
		if _, ok := comp.Functions[h.Function]; !ok {
			verrs.Addf(hp, "function", "references undeclared function %q", h.Function)
		}
		if h.If != "" {
			if _, err := cond.Parse(h.If); err != nil {
				verrs.Addf(hp, "if", "invalid condition: %v", err)
			}
		}
	}
}

func scanSecretRefs(m map[string]any) []string {
	var out []string
	for _, v := range m {
		if s, ok := v.(string); ok {
			for _, match := range secretRefPattern.FindAllStringSubmatch(s, -1) {
				out = append(out, match[1])
			}
		}
	}
	return out
}

func scanFunctionSecretRefs(fn Function) []string {
	var names []string
	scan := func(s string) {
		for _, match := range secretRefPattern.FindAllStringSubmatch(s, -1) {
			names = append(names, match[1])
		}
	}
	scan(fn.URL)
	scan(fn.Command)
	scan(fn.WSURL)
	scan(fn.Address)
	for _, v := range fn.Headers {
		scan(v)
	}
	for _, v := range fn.Env {
		scan(v)
	}
	for _, v := range fn.WSHeaders {
		scan(v)
	}
	for _, a := range fn.Args {
		scan(a)
	}
	return names
}

// checkCycles runs a DFS with gray/black marking over the resolved
// name-targeted edges of the graph (spec.md §9 Design Notes: "node-name-
// referenced edges need a cycle check during validation").
func checkCycles(comp *Composition, byName map[string]*Node, verrs *pipelineerr.ValidationErrors) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var stack []string

	var visit func(name string) bool
	visit = func(name string) bool {
		if color[name] == black {
			return false
		}
		if color[name] == gray {
			stack = append(stack, name)
			return true
		}
		color[name] = gray
		stack = append(stack, name)
		n, ok := byName[name]
		if ok {
			for _, t := range n.OutputTo {
				if _, err := strconv.Atoi(t); err == nil {
					continue // layer-number edges can't participate in a name cycle directly
				}
				if visit(t) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		return false
	}

	reported := map[string]bool{}
	for _, n := range comp.Architecture {
		if color[n.Name] != white {
			continue
		}
		if visit(n.Name) {
			cyclePath := fmt.Sprintf("%v", stack)
			if !reported[cyclePath] {
				verrs.Addf("architecture", "output_to", "cycle detected among named output-to edges: %s", cyclePath)
				reported[cyclePath] = true
			}
		}
	}
}

// checkReachableOutput verifies that at least one output-adapter node is
// reachable from the entry node, expanding layer-number targets to every
// node declared at that layer.
func checkReachableOutput(comp *Composition, byName map[string]*Node, byLayer map[int][]*Node, verrs *pipelineerr.ValidationErrors) {
	var entry *Node
	for i := range comp.Architecture {
		n := &comp.Architecture[i]
		if n.Adapter == AdapterChatCompletion && n.Layer != nil && *n.Layer == 0 {
			entry = n
			break
		}
	}
	if entry == nil {
		return // already reported by the entry-node-count check
	}

	visited := map[string]bool{}
	var walk func(n *Node)
	reachesOutput := false
	walk = func(n *Node) {
		if n == nil || visited[n.Name] {
			return
		}
		visited[n.Name] = true
		if n.Adapter == AdapterOutput {
			reachesOutput = true
			return
		}
		for _, t := range n.OutputTo {
			if layer, err := strconv.Atoi(t); err == nil {
				for _, cand := range byLayer[layer] {
					walk(cand)
				}
				continue
			}
			walk(byName[t])
		}
	}
	walk(entry)

	if !reachesOutput {
		verrs.Add("architecture", "", "no output adapter node is reachable from the entry node")
	}
}
