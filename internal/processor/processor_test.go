package processor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/polisai/polis-oss/internal/adapters"
	"github.com/polisai/polis-oss/internal/composition"
	"github.com/polisai/polis-oss/internal/hooks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatStub(reply string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}))
}

func layer(l int) *int { return &l }

func TestSingleModelPassthrough(t *testing.T) {
	srv := chatStub("Hi")
	defer srv.Close()

	comp := &composition.Composition{
		Models: map[string]composition.Model{"m": {Type: composition.ModelExternal, URL: srv.URL}},
		Architecture: []composition.Node{
			{Name: "chat", Layer: layer(0), Model: "m", Adapter: composition.AdapterChatCompletion, OutputTo: []string{"out"}},
			{Name: "out", Adapter: composition.AdapterOutput},
		},
	}
	topo := composition.Build(comp)
	p := New(topo, adapters.NewRegistry(comp), hooks.New(comp, nil), 0, nil)

	res, err := p.Process(context.Background(), "Hello", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi", res.Content)
	require.Len(t, res.Trace, 2)
	assert.Equal(t, "chat", res.Trace[0].NodeName)
	assert.Equal(t, "out", res.Trace[1].NodeName)
}

func TestDualExpertRouting(t *testing.T) {
	router := chatStub("support")
	defer router.Close()
	support := chatStub("support reply")
	defer support.Close()

	comp := &composition.Composition{
		Models: map[string]composition.Model{
			"router-model":  {Type: composition.ModelExternal, URL: router.URL},
			"support-model": {Type: composition.ModelExternal, URL: support.URL},
			"sales-model":   {Type: composition.ModelExternal, URL: support.URL},
		},
		Architecture: []composition.Node{
			{Name: "router", Layer: layer(0), Model: "router-model", Adapter: composition.AdapterChatCompletion, OutputTo: []string{"1"}},
			{Name: "sales", Layer: layer(1), Model: "sales-model", Adapter: composition.AdapterChatCompletion, UseCase: "sales", OutputTo: []string{"out"}},
			{Name: "support", Layer: layer(1), Model: "support-model", Adapter: composition.AdapterChatCompletion, UseCase: "support", OutputTo: []string{"out"}},
			{Name: "out", Adapter: composition.AdapterOutput},
		},
	}
	topo := composition.Build(comp)
	p := New(topo, adapters.NewRegistry(comp), hooks.New(comp, nil), 0, nil)

	res, err := p.Process(context.Background(), "help me", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "support reply", res.Content)
	require.Len(t, res.Trace, 3)
	assert.Equal(t, "support", res.Trace[1].NodeName)
}

func TestHopCapTriggersPipelineTooDeep(t *testing.T) {
	srv := chatStub("again")
	defer srv.Close()

	comp := &composition.Composition{
		Models: map[string]composition.Model{"m": {Type: composition.ModelExternal, URL: srv.URL}},
		Architecture: []composition.Node{
			{Name: "loop", Layer: layer(0), Model: "m", Adapter: composition.AdapterChatCompletion, OutputTo: []string{"loop"}},
		},
	}
	topo := composition.Build(comp)
	p := New(topo, adapters.NewRegistry(comp), hooks.New(comp, nil), 5, nil)

	_, err := p.Process(context.Background(), "start", nil, nil)
	require.Error(t, err)
}

// TestFanOutToMultipleNamedTargetsDoesNotRaceEnv exercises a node whose
// output_to names two targets (spec.md §4.6): every resolved slot must get
// its own Environment, since sibling branches run concurrently and each
// calls env.Set from the top of execute. Run with -race to catch a
// regression back to sharing the parent Environment across slots.
func TestFanOutToMultipleNamedTargetsDoesNotRaceEnv(t *testing.T) {
	srv := chatStub("reply")
	defer srv.Close()

	comp := &composition.Composition{
		Models: map[string]composition.Model{
			"split-model": {Type: composition.ModelExternal, URL: srv.URL},
			"a-model":     {Type: composition.ModelExternal, URL: srv.URL},
			"b-model":     {Type: composition.ModelExternal, URL: srv.URL},
		},
		Architecture: []composition.Node{
			{Name: "split", Layer: layer(0), Model: "split-model", Adapter: composition.AdapterChatCompletion, OutputTo: []string{"a", "b"}},
			{Name: "a", Layer: layer(1), Model: "a-model", Adapter: composition.AdapterChatCompletion, OutputTo: []string{"out-a"}},
			{Name: "b", Layer: layer(1), Model: "b-model", Adapter: composition.AdapterChatCompletion, OutputTo: []string{"out-b"}},
			{Name: "out-a", Adapter: composition.AdapterOutput},
			{Name: "out-b", Adapter: composition.AdapterOutput},
		},
	}
	topo := composition.Build(comp)
	p := New(topo, adapters.NewRegistry(comp), hooks.New(comp, nil), 0, nil)

	res, err := p.Process(context.Background(), "start", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "reply", res.Content)
	require.Len(t, res.Trace, 3)
	assert.Equal(t, "split", res.Trace[0].NodeName)
	assert.Contains(t, []string{"a", "b"}, res.Trace[1].NodeName)
}
