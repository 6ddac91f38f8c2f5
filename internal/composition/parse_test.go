package composition

import (
	"testing"

	"github.com/polisai/polis-oss/internal/pipelineerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validJSON = `{
  "models": {
    "chatty": {"type": "external", "url": "http://upstream/v1/chat/completions"}
  },
  "architecture": [
    {"name": "chat", "layer": 0, "model": "chatty", "adapter": "chat-completion", "output-to": ["out"]},
    {"name": "out", "adapter": "output"}
  ]
}`

func TestParseValidJSON(t *testing.T) {
	comp, err := Parse(validJSON, "composition.json")
	require.NoError(t, err)
	require.Len(t, comp.Architecture, 2)
	assert.Equal(t, AdapterOutput, comp.Architecture[1].Adapter)
}

func TestParseJSONWithComments(t *testing.T) {
	src := `{
  // top-level comment
  "models": { "chatty": {"type": "external", "url": "http://u"} }, /* inline */
  "architecture": [
    {"name": "chat", "layer": 0, "model": "chatty", "adapter": "chat-completion", "output_to": ["out"]},
    {"name": "out", "adapter": "output"}
  ]
}`
	comp, err := Parse(src, "composition.jsonc")
	require.NoError(t, err)
	assert.Len(t, comp.Architecture, 2)
}

func TestParseYAML(t *testing.T) {
	src := `
models:
  chatty:
    type: external
    url: http://upstream
architecture:
  - name: chat
    layer: 0
    model: chatty
    adapter: chat-completion
    output-to: ["out"]
  - name: out
    adapter: output
`
	comp, err := Parse(src, "composition.yaml")
	require.NoError(t, err)
	assert.Len(t, comp.Architecture, 2)
	assert.Equal(t, "http://upstream", comp.Models["chatty"].URL)
}

func TestParseAggregatesAllErrors(t *testing.T) {
	// Three independent errors: undeclared model reference, undeclared
	// output-to target, and a node with adapter=output declaring outputs.
	src := `{
  "architecture": [
    {"name": "chat", "layer": 0, "model": "missing-model", "adapter": "chat-completion", "output-to": ["nowhere"]},
    {"name": "out", "adapter": "output", "output-to": ["chat"]}
  ]
}`
	_, err := Parse(src, "composition.json")
	require.Error(t, err)
	kind, ok := pipelineerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, pipelineerr.KindCompositionValidation, kind)

	var verrs pipelineerr.ValidationErrors
	root, derr := decodeRoot(src, "composition.json")
	require.NoError(t, derr)
	comp := &Composition{Models: map[string]Model{}, Functions: map[string]Function{}, Secrets: map[string]SecretSource{}}
	archRaw, _ := fieldSlice(root, "architecture")
	for _, raw := range archRaw {
		m, _ := asMap(raw)
		n, ok := decodeNode(m, "architecture", &verrs)
		if ok {
			comp.Architecture = append(comp.Architecture, n)
		}
	}
	validate(comp, &verrs)
	assert.GreaterOrEqual(t, len(verrs.Diagnostics), 3, "expected at least 3 independent diagnostics, got %v", verrs.Diagnostics)
}

func TestParseDetectsNameCycle(t *testing.T) {
	src := `{
  "architecture": [
    {"name": "chat", "layer": 0, "adapter": "chat-completion", "output-to": ["a"]},
    {"name": "a", "layer": 1, "adapter": "chat-completion", "output-to": ["b"]},
    {"name": "b", "layer": 1, "adapter": "chat-completion", "output-to": ["a"]},
    {"name": "out", "layer": 2, "adapter": "output"}
  ]
}`
	_, err := Parse(src, "composition.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestParseBadSyntaxIsCompositionParse(t *testing.T) {
	_, err := Parse("{not json", "composition.json")
	require.Error(t, err)
	kind, ok := pipelineerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, pipelineerr.KindCompositionParse, kind)
}

func TestStripJSONCommentsPreservesStrings(t *testing.T) {
	src := `{"a": "http://example.com // not a comment", "b": 1 /* c */}`
	out := stripJSONComments(src)
	assert.Contains(t, out, "http://example.com // not a comment")
}
