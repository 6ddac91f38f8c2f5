package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/polisai/polis-oss/internal/adapters"
	"github.com/polisai/polis-oss/internal/composition"
	"github.com/polisai/polis-oss/internal/hooks"
	"github.com/polisai/polis-oss/internal/processor"
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

func newTestProcessor(t *testing.T, reply string) *processor.Processor {
	srv := chatStub(reply)
	t.Cleanup(srv.Close)

	comp := &composition.Composition{
		Models: map[string]composition.Model{"m": {Type: composition.ModelExternal, URL: srv.URL}},
		Architecture: []composition.Node{
			{Name: "chat", Layer: layer(0), Model: "m", Adapter: composition.AdapterChatCompletion, OutputTo: []string{"out"}},
			{Name: "out", Adapter: composition.AdapterOutput},
		},
	}
	topo := composition.Build(comp)
	return processor.New(topo, adapters.NewRegistry(comp), hooks.New(comp, nil), 0, nil)
}

func TestHandleChatCompletionsSuccess(t *testing.T) {
	dp := NewDataPlane(newTestProcessor(t, "hello there"), nil, nil)
	srv := httptest.NewServer(dp.Mux())
	defer srv.Close()

	body, _ := json.Marshal(map[string]any{
		"model":    "gpt-4",
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})
	resp, err := http.Post(srv.URL+"/v1/chat/completions", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var parsed chatCompletionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	assert.Equal(t, "chat.completion", parsed.Object)
	require.Len(t, parsed.Choices, 1)
	assert.Equal(t, "hello there", parsed.Choices[0].Message.Content)
	assert.Equal(t, "stop", parsed.Choices[0].FinishReason)
}

func TestHandleChatCompletionsRejectsEmptyMessages(t *testing.T) {
	dp := NewDataPlane(newTestProcessor(t, "unused"), nil, nil)
	srv := httptest.NewServer(dp.Mux())
	defer srv.Close()

	body, _ := json.Marshal(map[string]any{"model": "gpt-4", "messages": []map[string]string{}})
	resp, err := http.Post(srv.URL+"/v1/chat/completions", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	dp := NewDataPlane(newTestProcessor(t, "unused"), nil, nil)
	srv := httptest.NewServer(dp.Mux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
