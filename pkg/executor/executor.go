package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/CMBAgents/synapses/pkg/config"
	"github.com/CMBAgents/synapses/pkg/contextstore"
	"github.com/CMBAgents/synapses/pkg/health"
	"github.com/CMBAgents/synapses/pkg/providers"
	"github.com/CMBAgents/synapses/pkg/telemetry/metrics"
)

// Request is one chat completion to route.
type Request struct {
	// ModelID is the composite "<provider>/<model>" identifier.
	ModelID string

	// Program is the program whose documentation context to inject.
	Program string

	// Query optionally scopes retrieval-enriched context to the user's
	// question.
	Query string

	// Messages is the conversation so far.
	Messages []providers.Message

	// Credentials are caller-supplied per-provider credentials.
	Credentials providers.CredentialSet

	Temperature float64
	MaxTokens   int
}

// FallbackExhaustedError is returned when both the primary route and the
// single fallback hop failed. Both underlying errors are preserved.
type FallbackExhaustedError struct {
	PrimaryProvider  string
	FallbackProvider string
	PrimaryErr       error
	FallbackErr      error
}

// Error implements the error interface.
func (e *FallbackExhaustedError) Error() string {
	return fmt.Sprintf("all routes failed: %s: %v; fallback %s: %v",
		e.PrimaryProvider, e.PrimaryErr, e.FallbackProvider, e.FallbackErr)
}

// Unwrap exposes both underlying errors to errors.Is/As.
func (e *FallbackExhaustedError) Unwrap() []error {
	return []error{e.PrimaryErr, e.FallbackErr}
}

// Executor routes chat completions: it resolves credentials, injects
// documentation context, dispatches to the provider adapter, reports
// outcomes to the health registry, and retries once on a fallback route
// when the primary fails.
type Executor struct {
	resolver  *providers.Resolver
	dialer    providers.Dialer
	health    *health.Registry
	store     *contextstore.Store
	retrieval *contextstore.RetrievalClient
	collector *metrics.Collector
	logger    *slog.Logger

	fallbackModel     string
	completionTimeout time.Duration
	streamingModels   []string
}

// New creates an executor. retrieval and collector may be nil.
func New(
	resolver *providers.Resolver,
	dialer providers.Dialer,
	healthReg *health.Registry,
	store *contextstore.Store,
	retrieval *contextstore.RetrievalClient,
	collector *metrics.Collector,
	cfg config.ExecutorConfig,
	logger *slog.Logger,
) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		resolver:          resolver,
		dialer:            dialer,
		health:            healthReg,
		store:             store,
		retrieval:         retrieval,
		collector:         collector,
		logger:            logger,
		fallbackModel:     cfg.FallbackModel,
		completionTimeout: cfg.CompletionTimeout,
		streamingModels:   cfg.StreamingModels,
	}
}

// CanStream reports whether streaming is enabled for a composite model id.
// Streaming is opt-in per model; "provider/*" entries enable a whole
// provider.
func (e *Executor) CanStream(modelID string) bool {
	provider, _, _ := strings.Cut(modelID, "/")
	for _, entry := range e.streamingModels {
		if entry == modelID {
			return true
		}
		if p, rest, ok := strings.Cut(entry, "/"); ok && rest == "*" && p == provider {
			return true
		}
	}
	return false
}

// Execute runs a non-streaming completion with single-hop fallback.
func (e *Executor) Execute(ctx context.Context, req *Request) (*providers.CompletionResponse, error) {
	if e.completionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.completionTimeout)
		defer cancel()
	}

	messages := e.withContext(ctx, req)

	primary, err := e.resolver.Resolve(req.ModelID, req.Credentials)
	if err != nil {
		return nil, err
	}

	resp, primaryErr := e.attempt(ctx, primary, req, messages)
	if primaryErr == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, primaryErr
	}

	fallback, ferr := e.fallbackRoute(primary, req.Credentials)
	if ferr != nil || fallback == nil {
		return nil, primaryErr
	}

	e.logger.Warn("primary route failed, trying fallback",
		"primary_provider", primary.Identity.Key,
		"primary_model", primary.Model,
		"fallback_provider", fallback.Identity.Key,
		"fallback_model", fallback.Model,
		"error", primaryErr,
	)

	resp, fallbackErr := e.attempt(ctx, fallback, req, messages)
	e.collector.RecordFallback(primary.Identity.Key, fallback.Identity.Key, fallbackErr == nil)
	if fallbackErr == nil {
		return resp, nil
	}

	return nil, &FallbackExhaustedError{
		PrimaryProvider:  primary.Identity.Key,
		FallbackProvider: fallback.Identity.Key,
		PrimaryErr:       primaryErr,
		FallbackErr:      fallbackErr,
	}
}

// Stream is an opened streaming completion.
type Stream struct {
	// Provider is the registry key of the provider serving the stream,
	// which may be the fallback rather than the requested one.
	Provider string

	// Chunks yields the incremental response. The channel closes when
	// the stream ends.
	Chunks <-chan *providers.StreamChunk
}

// ExecuteStream opens a streaming completion with single-hop fallback. The
// fallback hop only covers failures to open the stream; once chunks are
// flowing the stream is committed.
func (e *Executor) ExecuteStream(ctx context.Context, req *Request) (*Stream, error) {
	messages := e.withContext(ctx, req)

	primary, err := e.resolver.Resolve(req.ModelID, req.Credentials)
	if err != nil {
		return nil, err
	}

	chunks, primaryErr := e.attemptStream(ctx, primary, req, messages)
	if primaryErr == nil {
		return &Stream{Provider: primary.Identity.Key, Chunks: chunks}, nil
	}
	if ctx.Err() != nil {
		return nil, primaryErr
	}

	fallback, ferr := e.fallbackRoute(primary, req.Credentials)
	if ferr != nil || fallback == nil {
		return nil, primaryErr
	}

	e.logger.Warn("primary stream failed to open, trying fallback",
		"primary_provider", primary.Identity.Key,
		"fallback_provider", fallback.Identity.Key,
		"error", primaryErr,
	)

	chunks, fallbackErr := e.attemptStream(ctx, fallback, req, messages)
	e.collector.RecordFallback(primary.Identity.Key, fallback.Identity.Key, fallbackErr == nil)
	if fallbackErr == nil {
		return &Stream{Provider: fallback.Identity.Key, Chunks: chunks}, nil
	}

	return nil, &FallbackExhaustedError{
		PrimaryProvider:  primary.Identity.Key,
		FallbackProvider: fallback.Identity.Key,
		PrimaryErr:       primaryErr,
		FallbackErr:      fallbackErr,
	}
}

// withContext prepends the program's documentation context as a system
// message. The last user message serves as the retrieval query when the
// request does not carry one.
func (e *Executor) withContext(ctx context.Context, req *Request) []providers.Message {
	if req.Program == "" {
		return req.Messages
	}

	query := req.Query
	if query == "" {
		query = lastUserMessage(req.Messages)
	}
	content := e.store.LoadWithQuery(ctx, e.retrieval, req.Program, query)

	messages := make([]providers.Message, 0, len(req.Messages)+1)
	messages = append(messages, providers.Message{
		Role:    providers.RoleSystem,
		Content: content,
	})
	return append(messages, req.Messages...)
}

// attempt runs one non-streaming completion against one route and reports
// the outcome.
func (e *Executor) attempt(ctx context.Context, route *providers.Resolution, req *Request, messages []providers.Message) (*providers.CompletionResponse, error) {
	p := e.dialer.Dial(route)

	start := time.Now()
	resp, err := p.Complete(ctx, &providers.CompletionRequest{
		Model:       route.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	e.report(route.Identity.Key, err, time.Since(start))
	return resp, err
}

// attemptStream opens one streaming completion against one route. Only the
// stream open is reported here; the bridge reports the terminal outcome.
func (e *Executor) attemptStream(ctx context.Context, route *providers.Resolution, req *Request, messages []providers.Message) (<-chan *providers.StreamChunk, error) {
	p := e.dialer.Dial(route)

	start := time.Now()
	chunks, err := p.StreamComplete(ctx, &providers.CompletionRequest{
		Model:       route.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		e.report(route.Identity.Key, err, time.Since(start))
	}
	return chunks, err
}

// report feeds an attempt outcome to the health registry and metrics off
// the response path.
func (e *Executor) report(provider string, err error, latency time.Duration) {
	go func() {
		ok := err == nil
		e.health.Report(provider, ok, latency, err)
		e.collector.RecordRequest(provider, ok, latency)
		if err != nil {
			e.collector.RecordProviderError(provider, string(providers.Classify(err)))
		}
	}()
}

// ReportStreamOutcome records the terminal outcome of a committed stream.
// Called by the bridge once the stream ends.
func (e *Executor) ReportStreamOutcome(provider string, err error, latency time.Duration) {
	e.report(provider, err, latency)
}

// fallbackRoute resolves the single fallback hop. The configured fallback
// model is preferred; when its provider is unavailable the health registry
// picks the best alternative and that provider's default model is used. A
// nil route means no distinct fallback exists.
func (e *Executor) fallbackRoute(primary *providers.Resolution, creds providers.CredentialSet) (*providers.Resolution, error) {
	if e.fallbackModel == "" {
		return nil, nil
	}

	target := e.fallbackModel
	preferred, _, _ := strings.Cut(e.fallbackModel, "/")
	if chosen := e.health.BestProvider(preferred); chosen != preferred && chosen != "" {
		target = chosen
	}

	route, err := e.resolver.Resolve(target, creds)
	if err != nil {
		e.logger.Warn("fallback route unusable", "target", target, "error", err)
		return nil, err
	}
	if route.Identity.Key == primary.Identity.Key && route.Model == primary.Model {
		return nil, nil
	}
	return route, nil
}

// lastUserMessage returns the content of the most recent user message.
func lastUserMessage(messages []providers.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == providers.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
