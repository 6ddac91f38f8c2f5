package composition

// Topology is the resolved, queryable view of a validated Composition's
// graph, built once at load time and shared read-only across requests
// (spec.md §5: "the composition and its tables are immutable after load
// and freely shareable").
type Topology struct {
	Comp    *Composition
	ByName  map[string]*Node
	ByLayer map[int][]*Node
	Entry   *Node
}

// Build indexes comp's architecture by name and layer and locates the
// unique entry node. comp is assumed already validated.
func Build(comp *Composition) *Topology {
	t := &Topology{
		Comp:    comp,
		ByName:  map[string]*Node{},
		ByLayer: map[int][]*Node{},
	}
	for i := range comp.Architecture {
		n := &comp.Architecture[i]
		t.ByName[n.Name] = n
		if n.Layer != nil {
			t.ByLayer[*n.Layer] = append(t.ByLayer[*n.Layer], n)
		}
		if n.Adapter == AdapterChatCompletion && n.Layer != nil && *n.Layer == 0 && t.Entry == nil {
			t.Entry = n
		}
	}
	return t
}

// ExpandSlot resolves one output-to entry into its candidate set: a layer
// number expands to every node declared at that layer; anything else
// resolves as the single node it names.
func (t *Topology) ExpandSlot(target string) []*Node {
	if layer, ok := parseLayer(target); ok {
		return t.ByLayer[layer]
	}
	if n, ok := t.ByName[target]; ok {
		return []*Node{n}
	}
	return nil
}

// IsNamedTarget reports whether target names a node directly rather than
// a layer number, used by the router to decide whether to resolve it
// without eligibility filtering or a router prompt.
func (t *Topology) IsNamedTarget(target string) bool {
	_, ok := parseLayer(target)
	return !ok
}

func parseLayer(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	neg := false
	i := 0
	if s[0] == '-' {
		neg = true
		i = 1
	}
	if i >= len(s) {
		return 0, false
	}
	n := 0
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
		n = n*10 + int(s[i]-'0')
	}
	if neg {
		n = -n
	}
	return n, true
}
