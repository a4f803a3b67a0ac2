package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/CMBAgents/synapses/pkg/config"
	"github.com/CMBAgents/synapses/pkg/contextstore"
	"github.com/CMBAgents/synapses/pkg/executor"
	"github.com/CMBAgents/synapses/pkg/health"
	"github.com/CMBAgents/synapses/pkg/limits/ratelimit"
	"github.com/CMBAgents/synapses/pkg/providers"
)

// fakeProvider is a scripted provider adapter.
type fakeProvider struct {
	name     string
	resp     *providers.CompletionResponse
	err      error
	chunks   []*providers.StreamChunk
	credsErr error
}

func (f *fakeProvider) Complete(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeProvider) StreamComplete(ctx context.Context, req *providers.CompletionRequest) (<-chan *providers.StreamChunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(chan *providers.StreamChunk)
	go func() {
		defer close(out)
		for _, c := range f.chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *fakeProvider) CheckCredentials(ctx context.Context) error { return f.credsErr }
func (f *fakeProvider) Name() string                               { return f.name }
func (f *fakeProvider) Close() error                               { return nil }

type fakeDialer struct {
	byKey map[string]*fakeProvider
}

func (d *fakeDialer) Dial(res *providers.Resolution) providers.Provider {
	if p, ok := d.byKey[res.Identity.Key]; ok {
		return p
	}
	return &fakeProvider{name: res.Identity.Key, err: errors.New("no script for provider")}
}

func testEnv(key string) string {
	switch key {
	case "OPENAI_API_KEY", "OPENROUTER_API_KEY":
		return "test-key"
	}
	return ""
}

type testGateway struct {
	handler http.Handler
	limiter *ratelimit.Limiter
	health  *health.Registry
}

func newTestGateway(t *testing.T, dialer providers.Dialer, execCfg config.ExecutorConfig) *testGateway {
	t.Helper()
	logger := slog.Default()

	resolver := providers.NewResolver(providers.NewRegistry(), logger, providers.WithEnvLookup(testEnv))
	healthReg := health.NewRegistry(3, "openrouter", logger)
	limiter := ratelimit.NewLimiter(15*time.Minute, 5)
	fetcher := contextstore.NewFetcher(nil, t.TempDir(), time.Second, logger)
	store := contextstore.NewStore(fetcher, logger, nil)

	exec := executor.New(resolver, dialer, healthReg, store, nil, nil, execCfg, logger)
	bridge := executor.NewBridge(exec, logger)
	g := New(exec, bridge, healthReg, limiter, resolver, dialer, nil, 1<<20)

	mux := http.NewServeMux()
	g.Register(mux)

	var handler http.Handler = mux
	handler = AccessLog(handler)
	handler = Recover(handler)
	handler = RequestID(logger)(handler)

	return &testGateway{handler: handler, limiter: limiter, health: healthReg}
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestChatCompletion(t *testing.T) {
	tg := newTestGateway(t, &fakeDialer{byKey: map[string]*fakeProvider{
		"openai": {name: "openai", resp: &providers.CompletionResponse{
			ID:           "cmpl-1",
			Model:        "gpt-4o",
			Content:      "hello back",
			FinishReason: providers.FinishReasonStop,
			Usage:        providers.TokenUsage{TotalTokens: 12},
		}},
	}}, config.ExecutorConfig{})

	rec := postJSON(t, tg.handler, "/v1/chat/completions",
		`{"modelId": "openai/gpt-4o", "messages": [{"role": "user", "content": "hello"}]}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("response missing request id header")
	}

	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Content != "hello back" || resp.Usage.TotalTokens != 12 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestChatCompletion_EmptyMessages(t *testing.T) {
	tg := newTestGateway(t, &fakeDialer{}, config.ExecutorConfig{})

	rec := postJSON(t, tg.handler, "/v1/chat/completions", `{"modelId": "openai/gpt-4o", "messages": []}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChatCompletion_MissingCredentials(t *testing.T) {
	tg := newTestGateway(t, &fakeDialer{}, config.ExecutorConfig{})

	// mistral has no env key in testEnv.
	rec := postJSON(t, tg.handler, "/v1/chat/completions",
		`{"modelId": "mistral/mistral-large-latest", "messages": [{"role": "user", "content": "hi"}]}`)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401: %s", rec.Code, rec.Body.String())
	}
	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if body.Error.Kind != string(providers.KindCredentialsMissing) {
		t.Errorf("kind = %q", body.Error.Kind)
	}
}

func TestChatCompletion_UpstreamRateLimit(t *testing.T) {
	tg := newTestGateway(t, &fakeDialer{byKey: map[string]*fakeProvider{
		"openai": {name: "openai", err: &providers.RateLimitError{
			Provider:   "openai",
			RetryAfter: 30 * time.Second,
		}},
	}}, config.ExecutorConfig{})

	rec := postJSON(t, tg.handler, "/v1/chat/completions",
		`{"modelId": "openai/gpt-4o", "messages": [{"role": "user", "content": "hi"}]}`)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Retry-After"); got != "30" {
		t.Errorf("Retry-After = %q, want 30", got)
	}
}

func TestChatCompletion_Streaming(t *testing.T) {
	tg := newTestGateway(t, &fakeDialer{byKey: map[string]*fakeProvider{
		"openai": {name: "openai", chunks: []*providers.StreamChunk{
			{ID: "c1", Delta: "Hel"},
			{ID: "c1", Delta: "lo", FinishReason: providers.FinishReasonStop},
		}},
	}}, config.ExecutorConfig{StreamingModels: []string{"openai/*"}})

	rec := postJSON(t, tg.handler, "/v1/chat/completions",
		`{"modelId": "openai/gpt-4o", "stream": true, "messages": [{"role": "user", "content": "hi"}]}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q, want text/event-stream", ct)
	}

	body := rec.Body.String()
	if !strings.HasSuffix(strings.TrimSpace(body), "data: [DONE]") {
		t.Errorf("stream must end with done marker: %q", body)
	}

	var content strings.Builder
	for _, line := range strings.Split(body, "\n") {
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok || data == "[DONE]" {
			continue
		}
		var frame sseFrame
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			t.Fatalf("invalid frame %q: %v", data, err)
		}
		if len(frame.Choices) > 0 {
			content.WriteString(frame.Choices[0].Delta.Content)
		}
	}
	if content.String() != "Hello" {
		t.Errorf("assembled content = %q, want Hello", content.String())
	}
}

func TestChatCompletion_StreamingNotEnabledFallsBackToJSON(t *testing.T) {
	tg := newTestGateway(t, &fakeDialer{byKey: map[string]*fakeProvider{
		"openai": {name: "openai", resp: &providers.CompletionResponse{Content: "plain"}},
	}}, config.ExecutorConfig{})

	rec := postJSON(t, tg.handler, "/v1/chat/completions",
		`{"modelId": "openai/gpt-4o", "stream": true, "messages": [{"role": "user", "content": "hi"}]}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q, want application/json", ct)
	}
}

func TestProvidersHealth(t *testing.T) {
	tg := newTestGateway(t, &fakeDialer{}, config.ExecutorConfig{})
	tg.health.Report("openai", true, 20*time.Millisecond, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/providers/health", nil)
	rec := httptest.NewRecorder()
	tg.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Providers []health.Health `json:"providers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if len(body.Providers) != 1 || body.Providers[0].Provider != "openai" || !body.Providers[0].Available {
		t.Errorf("unexpected snapshot %+v", body.Providers)
	}
}

func TestValidateCredentials(t *testing.T) {
	tg := newTestGateway(t, &fakeDialer{byKey: map[string]*fakeProvider{
		"openai": {name: "openai"},
	}}, config.ExecutorConfig{})

	rec := postJSON(t, tg.handler, "/v1/credentials/validate",
		`{"provider": "openai", "credentials": {"apiKey": "sk-candidate"}}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp ValidateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if !resp.Valid {
		t.Errorf("expected valid credentials: %+v", resp)
	}
}

func TestValidateCredentials_Invalid(t *testing.T) {
	tg := newTestGateway(t, &fakeDialer{byKey: map[string]*fakeProvider{
		"openai": {name: "openai", credsErr: &providers.AuthError{Provider: "openai"}},
	}}, config.ExecutorConfig{})

	rec := postJSON(t, tg.handler, "/v1/credentials/validate",
		`{"provider": "openai", "credentials": {"apiKey": "sk-wrong"}}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp ValidateResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Valid {
		t.Error("expected invalid credentials")
	}
}

func TestValidateCredentials_RateLimited(t *testing.T) {
	tg := newTestGateway(t, &fakeDialer{byKey: map[string]*fakeProvider{
		"openai": {name: "openai", credsErr: &providers.AuthError{Provider: "openai"}},
	}}, config.ExecutorConfig{})

	body := `{"provider": "openai", "credentials": {"apiKey": "sk-wrong"}}`
	for i := 0; i < 5; i++ {
		if rec := postJSON(t, tg.handler, "/v1/credentials/validate", body); rec.Code != http.StatusOK {
			t.Fatalf("attempt %d status = %d", i+1, rec.Code)
		}
	}

	rec := postJSON(t, tg.handler, "/v1/credentials/validate", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("sixth attempt status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}
}

func TestValidateCredentials_SuccessResetsBudget(t *testing.T) {
	tg := newTestGateway(t, &fakeDialer{byKey: map[string]*fakeProvider{
		"openai": {name: "openai"},
	}}, config.ExecutorConfig{})

	body := `{"provider": "openai", "credentials": {"apiKey": "sk-right"}}`
	// Successful validations reset the window each time, so far more
	// than maxAttempts succeed in sequence.
	for i := 0; i < 12; i++ {
		rec := postJSON(t, tg.handler, "/v1/credentials/validate", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("attempt %d status = %d, want 200", i+1, rec.Code)
		}
	}
}

func TestRecoverMiddleware(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	handler := Recover(panicking)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	})
	handler := RequestID(slog.Default())(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "client-supplied-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "client-supplied-id" {
		t.Errorf("context request id = %q", seen)
	}
	if got := rec.Header().Get(RequestIDHeader); got != "client-supplied-id" {
		t.Errorf("response request id = %q", got)
	}
}

func TestValidateCredentials_ProviderUnreachable(t *testing.T) {
	tg := newTestGateway(t, &fakeDialer{byKey: map[string]*fakeProvider{
		"openai": {name: "openai", credsErr: &providers.ProviderError{
			Provider:   "openai",
			StatusCode: 503,
			Message:    "upstream down",
		}},
	}}, config.ExecutorConfig{})

	rec := postJSON(t, tg.handler, "/v1/credentials/validate",
		`{"provider": "openai", "credentials": {"apiKey": "sk-maybe"}}`)

	// Validity is unknown, so the response must not be a 200 valid body
	// in either direction.
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502: %s", rec.Code, rec.Body.String())
	}
	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if body.Error.Kind != string(providers.KindProviderUnavailable) {
		t.Errorf("kind = %q", body.Error.Kind)
	}
}

func TestChatCompletion_FallbackExhaustedKeepsPrimaryKind(t *testing.T) {
	tg := newTestGateway(t, &fakeDialer{byKey: map[string]*fakeProvider{
		"openai": {name: "openai", err: &providers.RateLimitError{
			Provider:   "openai",
			RetryAfter: 30 * time.Second,
		}},
		"openrouter": {name: "openrouter", err: &providers.ProviderError{
			Provider:   "openrouter",
			StatusCode: 503,
		}},
	}}, config.ExecutorConfig{FallbackModel: "openrouter/openai/gpt-4o-mini"})

	rec := postJSON(t, tg.handler, "/v1/chat/completions",
		`{"modelId": "openai/gpt-4o", "messages": [{"role": "user", "content": "hi"}]}`)

	// Both routes failed; the caller gets the primary failure's kind and
	// retry hint, not a blanket bad-gateway answer.
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Retry-After"); got != "30" {
		t.Errorf("Retry-After = %q, want 30", got)
	}
}
