package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/CMBAgents/synapses/pkg/executor"
	"github.com/CMBAgents/synapses/pkg/health"
	"github.com/CMBAgents/synapses/pkg/limits/ratelimit"
	"github.com/CMBAgents/synapses/pkg/providers"
	"github.com/CMBAgents/synapses/pkg/telemetry/logging"
	"github.com/CMBAgents/synapses/pkg/telemetry/metrics"
)

// validateTimeout bounds the live call behind credential validation.
const validateTimeout = 15 * time.Second

// Gateway holds the HTTP surface: chat completions, provider health, and
// credential validation.
type Gateway struct {
	executor  *executor.Executor
	bridge    *executor.Bridge
	health    *health.Registry
	limiter   *ratelimit.Limiter
	resolver  *providers.Resolver
	dialer    providers.Dialer
	collector *metrics.Collector

	maxBodyBytes int64
}

// New creates the gateway. collector may be nil.
func New(
	exec *executor.Executor,
	bridge *executor.Bridge,
	healthReg *health.Registry,
	limiter *ratelimit.Limiter,
	resolver *providers.Resolver,
	dialer providers.Dialer,
	collector *metrics.Collector,
	maxBodyBytes int64,
) *Gateway {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 20
	}
	return &Gateway{
		executor:     exec,
		bridge:       bridge,
		health:       healthReg,
		limiter:      limiter,
		resolver:     resolver,
		dialer:       dialer,
		collector:    collector,
		maxBodyBytes: maxBodyBytes,
	}
}

// Register mounts the gateway routes on a mux.
func (g *Gateway) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/chat/completions", g.handleChat)
	mux.HandleFunc("GET /v1/providers/health", g.handleHealth)
	mux.HandleFunc("POST /v1/credentials/validate", g.handleValidate)
	if g.collector != nil {
		mux.Handle("GET /metrics", g.collector.Handler())
	}
}

// decodeBody decodes a JSON request body with the size cap applied.
func (g *Gateway) decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(w, r.Body, g.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &providers.RequestTooLargeError{
				Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			}
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// handleChat serves POST /v1/chat/completions.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	var req ChatRequest
	if err := g.decodeBody(w, r, &req); err != nil {
		writeError(w, logger, err)
		return
	}
	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: ErrorDetail{
			Kind:    "invalid_request",
			Message: "messages must not be empty",
		}})
		return
	}

	execReq := &executor.Request{
		ModelID:     req.ModelID,
		Program:     req.ProgramID,
		Query:       req.Query,
		Messages:    req.Messages,
		Credentials: req.Credentials,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	if req.Stream && g.executor.CanStream(req.ModelID) {
		g.streamChat(w, r, execReq)
		return
	}
	if req.Stream {
		logger.Debug("streaming not enabled for model, serving non-streaming",
			"model_id", req.ModelID)
	}

	resp, err := g.executor.Execute(r.Context(), execReq)
	if err != nil {
		writeError(w, logger, err)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      resp.Content,
		FinishReason: resp.FinishReason,
		Usage:        resp.Usage,
	})
}

// streamChat serves the SSE variant of handleChat. The request context is
// the cancellation signal: when the client disconnects, the upstream stream
// is torn down and one cancelled frame is attempted.
func (g *Gateway) streamChat(w http.ResponseWriter, r *http.Request, req *executor.Request) {
	logger := logging.FromContext(r.Context())

	stream, err := g.executor.ExecuteStream(r.Context(), req)
	if err != nil {
		writeError(w, logger, err)
		return
	}

	sse, err := newSSEWriter(w, "chatcmpl-"+uuid.NewString(), req.ModelID)
	if err != nil {
		writeError(w, logger, err)
		return
	}

	g.collector.StreamStarted()
	defer g.collector.StreamFinished()

	if err := g.bridge.Run(r.Context(), stream.Provider, stream.Chunks, sse); err != nil {
		// Headers are sent; the error already went out as an SSE frame.
		logger.Warn("stream ended with error", "model_id", req.ModelID, "error", err)
	}
}

// handleHealth serves GET /v1/providers/health.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Providers []health.Health `json:"providers"`
		Timestamp time.Time       `json:"timestamp"`
	}{
		Providers: g.health.Snapshot(),
		Timestamp: time.Now().UTC(),
	})
}

// handleValidate serves POST /v1/credentials/validate. Attempts are rate
// limited per provider+source to slow down key probing; a successful
// validation resets the caller's budget.
func (g *Gateway) handleValidate(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	var req ValidateRequest
	if err := g.decodeBody(w, r, &req); err != nil {
		writeError(w, logger, err)
		return
	}
	if req.Provider == "" {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: ErrorDetail{
			Kind:    "invalid_request",
			Message: "provider is required",
		}})
		return
	}

	identity := validationIdentity(r, req.Provider)
	if err := g.limiter.Allow(identity); err != nil {
		g.collector.RecordValidation("rate_limited")
		writeError(w, logger, err)
		return
	}

	supplied := providers.CredentialSet{req.Provider: req.Credentials}
	res, err := g.resolver.Resolve(req.Provider, supplied)
	if err != nil {
		g.collector.RecordValidation("failed")
		writeError(w, logger, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), validateTimeout)
	defer cancel()

	p := g.dialer.Dial(res)
	if err := p.CheckCredentials(ctx); err != nil {
		var authErr *providers.AuthError
		if errors.As(err, &authErr) {
			g.collector.RecordValidation("failed")
			logger.Info("credential validation failed", "provider", req.Provider)
			writeJSON(w, http.StatusOK, ValidateResponse{
				Provider: req.Provider,
				Valid:    false,
				Message:  "credentials rejected by provider",
			})
			return
		}
		// The provider could not be reached, so validity is unknown.
		// Answering valid:true here would assert something unverified.
		g.collector.RecordValidation("error")
		writeError(w, logger, err)
		return
	}

	g.collector.RecordValidation("ok")
	g.limiter.Reset(identity)
	writeJSON(w, http.StatusOK, ValidateResponse{
		Provider: req.Provider,
		Valid:    true,
	})
}

// validationIdentity keys the rate limiter by provider and caller address.
func validationIdentity(r *http.Request, provider string) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return provider + "|" + host
}
