package adapters

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/polisai/polis-oss/internal/composition"
	"github.com/polisai/polis-oss/internal/pipelineerr"
	"github.com/polisai/polis-oss/internal/vars"
)

// WebSocketAdapter opens/reuses a connection to a node's url and delivers
// the current content as one text frame. It never awaits a response: per
// spec.md §4.8 a websocket node is a terminator that never satisfies a
// pipeline's "first output" rule, so delivery happens fire-and-forget on a
// detached goroutine that can outlive the originating request.
type WebSocketAdapter struct {
	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

// NewWebSocketAdapter returns an adapter with an empty connection pool.
func NewWebSocketAdapter() *WebSocketAdapter {
	return &WebSocketAdapter{conns: map[string]*websocket.Conn{}}
}

// Execute sends content to node's url, reusing an already-open connection
// keyed by the resolved URL when one exists. It returns as soon as the
// write is queued; it does not wait for any reply.
func (a *WebSocketAdapter) Execute(ctx context.Context, node *composition.Node, content string, env *vars.Environment) (string, error) {
	wsURL, ok := node.ExtraOptions["url"].(string)
	if !ok || wsURL == "" {
		return "", pipelineerr.New(pipelineerr.KindAdapterFailure, "node "+node.Name+" is a websocket adapter without extra-options.url")
	}
	wsURL = vars.Substitute(wsURL, env)

	conn, err := a.connFor(ctx, wsURL)
	if err != nil {
		return "", pipelineerr.Wrap(pipelineerr.KindAdapterFailure, err, "dial websocket sink")
	}

	go func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if err := conn.WriteMessage(websocket.TextMessage, []byte(content)); err != nil {
			delete(a.conns, wsURL)
			conn.Close()
		}
	}()

	return content, nil
}

func (a *WebSocketAdapter) connFor(ctx context.Context, wsURL string) (*websocket.Conn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if conn, ok := a.conns[wsURL]; ok {
		return conn, nil
	}
	if _, err := url.Parse(wsURL); err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, http.Header{})
	if err != nil {
		return nil, err
	}
	a.conns[wsURL] = conn
	return conn, nil
}

// Close tears down every pooled connection. Intended for graceful shutdown.
func (a *WebSocketAdapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for k, conn := range a.conns {
		conn.Close()
		delete(a.conns, k)
	}
}
