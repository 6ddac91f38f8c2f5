package hooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/polisai/polis-oss/internal/composition"
	"github.com/polisai/polis-oss/internal/vars"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restFn(url string) composition.Function {
	return composition.Function{Kind: composition.FunctionREST, Method: "GET", URL: url}
}

func TestTransformReplacesData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("replaced"))
	}))
	defer srv.Close()

	comp := &composition.Composition{Functions: map[string]composition.Function{"f": restFn(srv.URL)}}
	r := New(comp, nil)
	hookList := []composition.Hook{{Function: "f", Mode: composition.HookTransform, OnFailure: composition.OnFailureContinue}}

	out, err := r.Run(context.Background(), hookList, vars.NewEnvironment(nil, nil), "original")
	require.NoError(t, err)
	assert.Equal(t, "replaced", out)
}

func TestTransformAbortPropagatesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	comp := &composition.Composition{Functions: map[string]composition.Function{"f": restFn(srv.URL)}}
	r := New(comp, nil)
	hookList := []composition.Hook{{Function: "f", Mode: composition.HookTransform, OnFailure: composition.OnFailureAbort}}

	_, err := r.Run(context.Background(), hookList, vars.NewEnvironment(nil, nil), "original")
	require.Error(t, err)
}

func TestTransformContinueKeepsOriginalData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	comp := &composition.Composition{Functions: map[string]composition.Function{"f": restFn(srv.URL)}}
	r := New(comp, nil)
	hookList := []composition.Hook{{Function: "f", Mode: composition.HookTransform, OnFailure: composition.OnFailureContinue}}

	out, err := r.Run(context.Background(), hookList, vars.NewEnvironment(nil, nil), "original")
	require.NoError(t, err)
	assert.Equal(t, "original", out)
}

func TestObserveDoesNotBlockOrAffectData(t *testing.T) {
	hit := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		hit <- struct{}{}
	}))
	defer srv.Close()

	comp := &composition.Composition{Functions: map[string]composition.Function{"f": restFn(srv.URL)}}
	r := New(comp, nil)
	hookList := []composition.Hook{{Function: "f", Mode: composition.HookObserve, OnFailure: composition.OnFailureAbort}}

	start := time.Now()
	out, err := r.Run(context.Background(), hookList, vars.NewEnvironment(nil, nil), "original")
	require.NoError(t, err)
	assert.Equal(t, "original", out)
	assert.Less(t, time.Since(start), 40*time.Millisecond)

	select {
	case <-hit:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("observe hook never ran")
	}
}

// TestObserveHookRacesCallerEnvSets exercises spec §4.5/§8's scenario S5:
// the pipeline proceeds immediately after dispatching an observe hook while
// that hook's detached goroutine is still reading env (here, substituting
// $TOKEN into the request URL). Run with -race to catch a regression where
// vars.Environment loses its internal synchronization, since the caller
// below calls env.Set 1000 times right after Run returns, while that read
// may still be in flight.
func TestObserveHookRacesCallerEnvSets(t *testing.T) {
	hit := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		hit <- struct{}{}
	}))
	defer srv.Close()

	comp := &composition.Composition{Functions: map[string]composition.Function{"f": restFn(srv.URL + "/$TOKEN")}}
	r := New(comp, nil)
	hookList := []composition.Hook{{Function: "f", Mode: composition.HookObserve, OnFailure: composition.OnFailureAbort}}

	env := vars.NewEnvironment(map[string]string{"TOKEN": "abc"}, nil)
	_, err := r.Run(context.Background(), hookList, env, "original")
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		env.Set("TOKEN", "abc")
	}

	select {
	case <-hit:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("observe hook never ran")
	}
}

func TestConditionSkipsHook(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	comp := &composition.Composition{Functions: map[string]composition.Function{"f": restFn(srv.URL)}}
	r := New(comp, nil)
	hookList := []composition.Hook{{Function: "f", Mode: composition.HookTransform, OnFailure: composition.OnFailureContinue, If: `$SKIP == "yes"`}}

	out, err := r.Run(context.Background(), hookList, vars.NewEnvironment(map[string]string{"SKIP": "no"}, nil), "original")
	require.NoError(t, err)
	assert.Equal(t, "original", out)
	assert.False(t, called)
}
