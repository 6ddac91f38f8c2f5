package adapters

import (
	"context"

	"github.com/polisai/polis-oss/internal/composition"
	"github.com/polisai/polis-oss/internal/pipelineerr"
	"github.com/polisai/polis-oss/internal/vars"
)

// NodeAdapter executes one node against the current pipeline content,
// returning the content to bind to $OUTPUT for that node.
type NodeAdapter interface {
	Execute(ctx context.Context, node *composition.Node, content string, env *vars.Environment) (string, error)
}

// Registry dispatches a node to its adapter by composition.AdapterType.
type Registry struct {
	Chat      *ChatCompletionAdapter
	WebSocket *WebSocketAdapter
	Output    OutputAdapter
}

// NewRegistry builds the three stock node adapters bound to comp.
func NewRegistry(comp *composition.Composition) *Registry {
	return &Registry{
		Chat:      NewChatCompletionAdapter(comp),
		WebSocket: NewWebSocketAdapter(),
		Output:    OutputAdapter{},
	}
}

// Execute dispatches node to the adapter named by its Adapter field.
func (r *Registry) Execute(ctx context.Context, node *composition.Node, content string, env *vars.Environment) (string, error) {
	switch node.Adapter {
	case composition.AdapterChatCompletion:
		return r.Chat.Execute(ctx, node, content, env)
	case composition.AdapterWebSocket:
		return r.WebSocket.Execute(ctx, node, content, env)
	case composition.AdapterOutput:
		return r.Output.Execute(ctx, node, content, env)
	default:
		return "", pipelineerr.New(pipelineerr.KindAdapterFailure, "node "+node.Name+" has unknown adapter type")
	}
}

// Close releases adapter-held resources (pooled websocket connections).
func (r *Registry) Close() {
	r.WebSocket.Close()
}
