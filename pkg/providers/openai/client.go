package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/CMBAgents/synapses/pkg/providers"
)

var errNoChoices = errors.New("no choices in response")

// Client is the adapter for providers speaking the OpenAI-compatible chat
// completions API (OpenAI itself, Mistral, DeepSeek, OpenRouter).
type Client struct {
	name      string
	baseURL   string
	model     string
	apiKey    string
	transport *providers.Transport
}

// NewClient creates an adapter for an OpenAI-compatible provider.
// The HTTP client is shared across adapters for connection pooling.
func NewClient(res *providers.Resolution, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = providers.NewHTTPClient()
	}
	return &Client{
		name:    res.Identity.Key,
		baseURL: strings.TrimRight(res.Identity.BaseURL, "/"),
		model:   res.Model,
		apiKey:  res.Credentials[providers.FieldAPIKey],
		transport: &providers.Transport{
			Name:   res.Identity.Key,
			Client: httpClient,
		},
	}
}

// Name returns the provider's registry key.
func (c *Client) Name() string { return c.name }

// Close releases pooled connections.
func (c *Client) Close() error { return c.transport.Close() }

func (c *Client) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.apiKey,
		"Content-Type":  "application/json",
	}
}

func (c *Client) completionsURL() string {
	return c.baseURL + "/chat/completions"
}

// Complete sends a non-streaming chat completion request.
func (c *Client) Complete(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	wireReq := transformRequest(req)
	wireReq.Stream = false

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var wireResp wireResponse
	if err := c.transport.DoJSON(ctx, http.MethodPost, c.completionsURL(), body, c.headers(), &wireResp); err != nil {
		return nil, err
	}

	return transformResponse(c.name, &wireResp)
}

// StreamComplete sends a streaming chat completion request and returns a
// channel of incremental chunks. The channel closes after the final chunk;
// mid-stream failures arrive as a last chunk with Err set.
func (c *Client) StreamComplete(ctx context.Context, req *providers.CompletionRequest) (<-chan *providers.StreamChunk, error) {
	wireReq := transformRequest(req)
	wireReq.Stream = true

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.transport.Do(ctx, http.MethodPost, c.completionsURL(), body, c.headers())
	if err != nil {
		return nil, err
	}

	chunks := make(chan *providers.StreamChunk)
	go func() {
		defer close(chunks)
		defer resp.Body.Close()
		readStream(ctx, c.name, resp.Body, chunks)
	}()
	return chunks, nil
}

// CheckCredentials verifies the API key with a minimal completion request.
// An auth failure surfaces as *providers.AuthError. Model and rate-limit
// errors prove the key was accepted and count as success. Anything else
// (network failure, 5xx) is returned as-is: the key could not be verified
// either way, and callers must not report it as valid.
func (c *Client) CheckCredentials(ctx context.Context) error {
	req := &providers.CompletionRequest{
		Model:     c.model,
		Messages:  []providers.Message{{Role: providers.RoleUser, Content: "ping"}},
		MaxTokens: 1,
	}
	_, err := c.Complete(ctx, req)
	if err == nil {
		return nil
	}
	var authErr *providers.AuthError
	if errors.As(err, &authErr) {
		return err
	}
	var modelErr *providers.ModelError
	var rateErr *providers.RateLimitError
	if errors.As(err, &modelErr) || errors.As(err, &rateErr) {
		return nil
	}
	return err
}
