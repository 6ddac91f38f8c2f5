package router

import (
	"context"
	"testing"

	"github.com/polisai/polis-oss/internal/composition"
	"github.com/polisai/polis-oss/internal/vars"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func layer(l int) *int { return &l }

func buildTopo(nodes ...composition.Node) *composition.Topology {
	comp := &composition.Composition{Architecture: nodes}
	return composition.Build(comp)
}

type stubCaller struct{ response string }

func (s stubCaller) Call(ctx context.Context, node *composition.Node, content string, env *vars.Environment) (string, error) {
	return s.response, nil
}

func TestNamedTargetResolvesDirectly(t *testing.T) {
	topo := buildTopo(
		composition.Node{Name: "chat", Layer: layer(0), Adapter: composition.AdapterChatCompletion, OutputTo: []string{"out"}},
		composition.Node{Name: "out", Adapter: composition.AdapterOutput},
	)
	succ, err := ResolveSuccessors(context.Background(), topo, topo.ByName["chat"], "hi", vars.NewEnvironment(nil, nil), stubCaller{})
	require.NoError(t, err)
	require.Len(t, succ, 1)
	assert.Equal(t, "out", succ[0].Name)
}

func TestSingleEligibleSkipsRouterCall(t *testing.T) {
	topo := buildTopo(
		composition.Node{Name: "chat", Layer: layer(0), Adapter: composition.AdapterChatCompletion, OutputTo: []string{"1"}},
		composition.Node{Name: "short", Layer: layer(1), Adapter: composition.AdapterOutput, If: `$WORD_COUNT < 10`},
		composition.Node{Name: "long", Layer: layer(1), Adapter: composition.AdapterOutput, If: `$WORD_COUNT >= 10`},
	)
	env := vars.NewEnvironment(map[string]string{"WORD_COUNT": "2"}, nil)
	succ, err := ResolveSuccessors(context.Background(), topo, topo.ByName["chat"], "hi there", env, stubCaller{response: "should not be used"})
	require.NoError(t, err)
	require.Len(t, succ, 1)
	assert.Equal(t, "short", succ[0].Name)
}

func TestAllFalseFallsBackToAllEligible(t *testing.T) {
	topo := buildTopo(
		composition.Node{Name: "chat", Layer: layer(0), Adapter: composition.AdapterChatCompletion, OutputTo: []string{"1"}},
		composition.Node{Name: "a", Layer: layer(1), Adapter: composition.AdapterOutput, If: `$X == "never"`},
		composition.Node{Name: "b", Layer: layer(1), Adapter: composition.AdapterOutput, If: `$X == "also-never"`},
	)
	env := vars.NewEnvironment(map[string]string{"X": "something-else"}, nil)
	succ, err := ResolveSuccessors(context.Background(), topo, topo.ByName["chat"], "hi", env, stubCaller{response: "a"})
	require.NoError(t, err)
	require.Len(t, succ, 1)
	assert.Equal(t, "a", succ[0].Name)
}

func TestRouterPromptSelectsByName(t *testing.T) {
	topo := buildTopo(
		composition.Node{Name: "chat", Layer: layer(0), Adapter: composition.AdapterChatCompletion, OutputTo: []string{"1"}},
		composition.Node{Name: "sales", Layer: layer(1), Adapter: composition.AdapterOutput, UseCase: "sales"},
		composition.Node{Name: "support", Layer: layer(1), Adapter: composition.AdapterOutput, UseCase: "support"},
	)
	env := vars.NewEnvironment(nil, nil)
	succ, err := ResolveSuccessors(context.Background(), topo, topo.ByName["chat"], "help", env, stubCaller{response: " Support \n"})
	require.NoError(t, err)
	require.Len(t, succ, 1)
	assert.Equal(t, "support", succ[0].Name)
}

func TestRouterPromptMismatchFallsBackToFirstEligible(t *testing.T) {
	topo := buildTopo(
		composition.Node{Name: "chat", Layer: layer(0), Adapter: composition.AdapterChatCompletion, OutputTo: []string{"1"}},
		composition.Node{Name: "sales", Layer: layer(1), Adapter: composition.AdapterOutput},
		composition.Node{Name: "support", Layer: layer(1), Adapter: composition.AdapterOutput},
	)
	env := vars.NewEnvironment(nil, nil)
	succ, err := ResolveSuccessors(context.Background(), topo, topo.ByName["chat"], "help", env, stubCaller{response: "gibberish"})
	require.NoError(t, err)
	require.Len(t, succ, 1)
	assert.Equal(t, "sales", succ[0].Name)
}
