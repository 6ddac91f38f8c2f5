// Package adapters implements the node adapters (spec component C9):
// chat-completion (upstream LLM call), websocket (fire-and-forget sink),
// and output (HTTP response terminator).
package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/polisai/polis-oss/internal/composition"
	"github.com/polisai/polis-oss/internal/pipelineerr"
	"github.com/polisai/polis-oss/internal/vars"
)

// ChatMessage is one entry of an OpenAI-compatible messages array.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

// ChatCompletionAdapter dials a node's model endpoint. It also implements
// router.ModelCaller, since the router prompt is issued through the same
// wire call as ordinary node execution (spec.md §4.8).
type ChatCompletionAdapter struct {
	Comp       *composition.Composition
	HTTPClient *http.Client
}

// NewChatCompletionAdapter builds an adapter bound to comp's model table.
func NewChatCompletionAdapter(comp *composition.Composition) *ChatCompletionAdapter {
	return &ChatCompletionAdapter{Comp: comp, HTTPClient: http.DefaultClient}
}

// Call implements router.ModelCaller: invoke node's model with userContent
// as the sole user message, node.Context (if any) as the system message.
func (a *ChatCompletionAdapter) Call(ctx context.Context, node *composition.Node, userContent string, env *vars.Environment) (string, error) {
	return a.Execute(ctx, node, userContent, env)
}

// Execute issues one chat-completion request for node and returns the
// response's first choice content.
func (a *ChatCompletionAdapter) Execute(ctx context.Context, node *composition.Node, content string, env *vars.Environment) (string, error) {
	model, ok := a.Comp.Models[node.Model]
	if !ok {
		return "", pipelineerr.New(pipelineerr.KindAdapterFailure, "node "+node.Name+" references unknown model "+node.Model)
	}
	if model.Type != composition.ModelExternal {
		return "", pipelineerr.New(pipelineerr.KindAdapterFailure, fmt.Sprintf("model %q is not runnable in-process (type=%s)", node.Model, model.Type))
	}

	var messages []ChatMessage
	if node.Context != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: node.Context})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: content})

	wireModel := node.Model
	if override, ok := node.ModelOverride(); ok && override != "" {
		wireModel = override
	}

	body, err := json.Marshal(chatRequest{Model: wireModel, Messages: messages})
	if err != nil {
		return "", pipelineerr.Wrap(pipelineerr.KindAdapterFailure, err, "encode chat-completion request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, model.URL, bytes.NewReader(body))
	if err != nil {
		return "", pipelineerr.Wrap(pipelineerr.KindAdapterFailure, err, "build chat-completion request")
	}
	req.Header.Set("Content-Type", "application/json")
	if key := ResolveAPIKey(model, env); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	client := a.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", pipelineerr.Wrap(pipelineerr.KindAdapterFailure, err, "upstream chat-completion call failed")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", pipelineerr.Wrap(pipelineerr.KindAdapterFailure, err, "read upstream response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", pipelineerr.New(pipelineerr.KindAdapterFailure, fmt.Sprintf("upstream status %d: %s", resp.StatusCode, string(payload)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", pipelineerr.Wrap(pipelineerr.KindAdapterFailure, err, "decode upstream response")
	}
	if len(parsed.Choices) == 0 {
		return "", pipelineerr.New(pipelineerr.KindAdapterFailure, "upstream response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// ResolveAPIKey substitutes a model's (possibly secret-referencing)
// api-key field against env, so callers can build models with resolved
// keys once per request rather than per call.
func ResolveAPIKey(model composition.Model, env *vars.Environment) string {
	if model.APIKey == "" {
		return ""
	}
	return vars.Substitute(model.APIKey, env)
}
