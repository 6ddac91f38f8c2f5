package functions

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"
	"github.com/polisai/polis-oss/internal/composition"
	"github.com/polisai/polis-oss/internal/vars"
)

func invokeWebSocket(ctx context.Context, fn composition.Function, env *vars.Environment) Result {
	url := vars.Substitute(fn.WSURL, env)
	header := toHTTPHeader(substituteMap(fn.WSHeaders, env))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return Result{Error: err.Error()}
	}
	defer conn.Close()

	if fn.Message != nil {
		substituted := vars.SubstituteTree(fn.Message, env)
		payload, err := json.Marshal(substituted)
		if err != nil {
			return Result{Error: "encode message: " + err.Error()}
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return Result{Error: err.Error()}
		}
	}

	type frame struct {
		data []byte
		err  error
	}
	done := make(chan frame, 1)
	go func() {
		_, data, err := conn.ReadMessage()
		done <- frame{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return Result{Error: ctx.Err().Error()}
	case f := <-done:
		if f.err != nil {
			return Result{Error: f.err.Error()}
		}
		return Result{Success: true, PayloadText: string(f.data)}
	}
}
