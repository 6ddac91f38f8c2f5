package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/polisai/polis-oss/internal/composition"
	"github.com/polisai/polis-oss/internal/governance"
	"github.com/polisai/polis-oss/internal/vars"
)

// restBreakers trips per upstream host, so one flaky REST function target
// cannot starve retries meant for a healthy one.
var restBreakers = governance.NewCircuitBreakerManager()

// restRetry governs retries of idempotent REST function calls across
// transient failures and the retryable status codes in its default config.
var restRetry = governance.NewRetryPolicy(governance.DefaultRetryConfig())

// restTimeouts bounds how long a single REST function call, including its
// retries, may run before the hook/adapter budget gives up on it.
var restTimeouts = governance.NewTimeoutManager(governance.DefaultTimeoutConfig())

func invokeREST(ctx context.Context, fn composition.Function, env *vars.Environment) Result {
	method := fn.Method
	if method == "" {
		method = http.MethodGet
	}
	resolvedURL := vars.Substitute(fn.URL, env)

	var bodyReader io.Reader
	if fn.Body != nil {
		substituted := vars.SubstituteTree(fn.Body, env)
		encoded, err := json.Marshal(substituted)
		if err != nil {
			return Result{Error: "encode body: " + err.Error()}
		}
		bodyReader = bytes.NewReader(encoded)
	}
	var bodyBytes []byte
	if bodyReader != nil {
		bodyBytes, _ = io.ReadAll(bodyReader)
	}

	headers := substituteMap(fn.Headers, env)
	cb := restBreakers.Get(breakerServiceID(resolvedURL))

	ctx, cancel := restTimeouts.WithRequestTimeout(ctx)
	defer cancel()

	var resp *http.Response
	statusCode, err := restRetry.ExecuteWithRetry(ctx, method, func() (int, error) {
		var bodyReader io.Reader
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}
		req, reqErr := http.NewRequestWithContext(ctx, method, resolvedURL, bodyReader)
		if reqErr != nil {
			return 0, reqErr
		}
		if bodyReader != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		cbErr := cb.ExecuteContext(ctx, func(ctx context.Context) error {
			var doErr error
			resp, doErr = http.DefaultClient.Do(req)
			if doErr != nil {
				return doErr
			}
			if resp.StatusCode >= 500 {
				return fmt.Errorf("http status %d", resp.StatusCode)
			}
			return nil
		})
		if resp == nil {
			return 0, cbErr
		}
		return resp.StatusCode, cbErr
	})
	if err != nil && resp == nil {
		return Result{Error: err.Error()}
	}
	defer resp.Body.Close()

	payload, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return Result{Error: readErr.Error()}
	}

	if statusCode < 200 || statusCode >= 300 {
		return Result{Error: fmt.Sprintf("http status %d", statusCode)}
	}
	return Result{Success: true, PayloadText: string(payload)}
}

// breakerServiceID keys the circuit breaker by scheme+host so every
// function targeting the same upstream shares trip state.
func breakerServiceID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}
