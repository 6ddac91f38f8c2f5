package functions

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"

	"github.com/polisai/polis-oss/internal/composition"
	"github.com/polisai/polis-oss/internal/vars"
)

// rawCodecName is registered once with grpc's global codec registry so a
// unary call can be made to an arbitrary service/method pair without a
// compiled proto descriptor: the request/response are carried as opaque
// JSON-encoded byte frames, matching spec.md's "payload-text" contract
// for this function kind.
const rawCodecName = "polis-raw-json"

func init() {
	encoding.RegisterCodec(rawJSONCodec{})
}

type rawJSONCodec struct{}

func (rawJSONCodec) Name() string { return rawCodecName }

func (rawJSONCodec) Marshal(v any) ([]byte, error) {
	if b, ok := v.(*rawFrame); ok {
		return b.data, nil
	}
	return json.Marshal(v)
}

func (rawJSONCodec) Unmarshal(data []byte, v any) error {
	if f, ok := v.(*rawFrame); ok {
		f.data = append([]byte(nil), data...)
		return nil
	}
	return json.Unmarshal(data, v)
}

type rawFrame struct{ data []byte }

func invokeGRPC(ctx context.Context, fn composition.Function, env *vars.Environment) Result {
	address := vars.Substitute(fn.Address, env)

	conn, err := grpc.NewClient(address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(rawCodecName)),
	)
	if err != nil {
		return Result{Error: err.Error()}
	}
	defer conn.Close()

	var reqBytes []byte
	if fn.Request != nil {
		substituted := vars.SubstituteTree(fn.Request, env)
		reqBytes, err = json.Marshal(substituted)
		if err != nil {
			return Result{Error: "encode request: " + err.Error()}
		}
	}

	fullMethod := "/" + fn.Service + "/" + fn.GRPCMethod
	req := &rawFrame{data: reqBytes}
	resp := &rawFrame{}
	if err := conn.Invoke(ctx, fullMethod, req, resp); err != nil {
		return Result{Error: err.Error()}
	}
	return Result{Success: true, PayloadText: string(resp.data)}
}
