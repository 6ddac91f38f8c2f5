// Package httpapi implements the HTTP surface (spec component C10): the
// OpenAI-compatible data-plane chat-completions endpoint and, when
// running as a control plane, the cluster management REST API.
package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/polisai/polis-oss/internal/governance"
	"github.com/polisai/polis-oss/internal/pipelineerr"
	"github.com/polisai/polis-oss/internal/processor"
	"github.com/polisai/polis-oss/internal/secrets"
)

// ChatMessage mirrors the adapters package's OpenAI-compatible message
// shape, kept as its own type here so the HTTP boundary doesn't leak
// adapter internals.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

type chatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatCompletionResponse struct {
	ID      string                  `json:"id"`
	Object  string                  `json:"object"`
	Created int64                   `json:"created"`
	Model   string                  `json:"model"`
	Choices []chatCompletionChoice  `json:"choices"`
}

// DataPlane serves the stable chat-completions ingress endpoint over a
// single pipeline Processor.
type DataPlane struct {
	Processor   *processor.Processor
	Secrets     *secrets.Store
	Logger      *slog.Logger
	RateLimiter *governance.RateLimiter
}

// NewDataPlane builds a DataPlane bound to proc.
func NewDataPlane(proc *processor.Processor, store *secrets.Store, logger *slog.Logger) *DataPlane {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataPlane{Processor: proc, Secrets: store, Logger: logger}
}

// WithRateLimit attaches per-composition-route rate limiting, returning the
// same DataPlane for chaining. A nil limiter (the default) disables it.
func (d *DataPlane) WithRateLimit(rl *governance.RateLimiter) *DataPlane {
	d.RateLimiter = rl
	return d
}

// Mux builds the data-plane's http.ServeMux: /v1/chat/completions and
// /health.
func (d *DataPlane) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", d.handleChatCompletions)
	mux.HandleFunc("GET /health", handleHealth)
	return mux
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (d *DataPlane) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if d.RateLimiter != nil {
		stats := d.RateLimiter.Stats()[d.Processor.Name]
		if !d.RateLimiter.AllowContext(r.Context(), d.Processor.Name) {
			governance.WriteRateLimitHeaders(w, stats.Limit, 0, time.Now())
			writeError(w, pipelineerr.New(pipelineerr.KindRateLimited, "rate limit exceeded"))
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
	if err != nil {
		writeError(w, pipelineerr.New(pipelineerr.KindAdapterFailure, "failed to read request body"))
		return
	}
	var req chatCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, pipelineerr.Wrap(pipelineerr.KindAdapterFailure, err, "malformed request body"))
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, pipelineerr.New(pipelineerr.KindAdapterFailure, "messages must not be empty"))
		return
	}

	initialInput := req.Messages[len(req.Messages)-1].Content

	headers := map[string]string{}
	for key := range r.Header {
		headers[key] = r.Header.Get(key)
	}

	result, err := d.Processor.Process(r.Context(), initialInput, d.Secrets, headers)
	if err != nil {
		d.Logger.Error("pipeline request failed", "error", err)
		writeError(w, err)
		return
	}

	resp := chatCompletionResponse{
		ID:      "chatcmpl-" + shortID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatCompletionChoice{{
			Index:        0,
			Message:      ChatMessage{Role: "assistant", Content: result.Content},
			FinishReason: "stop",
		}},
	}
	writeJSON(w, http.StatusOK, resp)
}

func shortID() string {
	return uuid.NewString()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if kind, ok := pipelineerr.KindOf(err); ok {
		status = kind.HTTPStatus()
	}
	writeJSON(w, status, pipelineerr.ToJSON(err))
}
