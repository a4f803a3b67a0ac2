package vertex

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/CMBAgents/synapses/pkg/providers"
	"github.com/google/uuid"
)

var errNoCandidates = errors.New("no candidates in response")

// Client is the adapter for Google Vertex AI generateContent endpoints.
//
// Authentication uses a pre-minted OAuth2 access token carried in the
// serviceAccount credential field (for example the output of
// `gcloud auth print-access-token`). Token minting and refresh are the
// operator's concern.
type Client struct {
	name        string
	baseURL     string
	model       string
	projectID   string
	location    string
	accessToken string
	transport   *providers.Transport
}

// NewClient creates a Vertex AI adapter from a credential resolution.
func NewClient(res *providers.Resolution, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = providers.NewHTTPClient()
	}
	location := res.Credentials[providers.FieldLocation]
	baseURL := strings.ReplaceAll(res.Identity.BaseURL, "{location}", location)
	return &Client{
		name:        res.Identity.Key,
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       res.Model,
		projectID:   res.Credentials[providers.FieldProjectID],
		location:    location,
		accessToken: res.Credentials[providers.FieldServiceAccount],
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
		"Authorization": "Bearer " + c.accessToken,
		"Content-Type":  "application/json",
	}
}

// modelURL builds the endpoint URL for a model method such as
// "generateContent" or "streamGenerateContent?alt=sse".
func (c *Client) modelURL(model, method string) string {
	return fmt.Sprintf("%s/projects/%s/locations/%s/publishers/google/models/%s:%s",
		c.baseURL, c.projectID, c.location, model, method)
}

// Complete sends a non-streaming generateContent request.
func (c *Client) Complete(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	body, err := json.Marshal(transformRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var wireResp wireResponse
	url := c.modelURL(model, "generateContent")
	if err := c.transport.DoJSON(ctx, http.MethodPost, url, body, c.headers(), &wireResp); err != nil {
		return nil, err
	}

	resp, err := transformResponse(c.name, model, &wireResp)
	if err != nil {
		return nil, err
	}
	// Vertex responses carry no id; synthesize one so downstream frames
	// have a stable identifier.
	resp.ID = "vertex-" + uuid.NewString()
	return resp, nil
}

// StreamComplete sends a streamGenerateContent request and returns a channel
// of incremental chunks.
func (c *Client) StreamComplete(ctx context.Context, req *providers.CompletionRequest) (<-chan *providers.StreamChunk, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	body, err := json.Marshal(transformRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.modelURL(model, "streamGenerateContent") + "?alt=sse"
	resp, err := c.transport.Do(ctx, http.MethodPost, url, body, c.headers())
	if err != nil {
		return nil, err
	}

	chunks := make(chan *providers.StreamChunk)
	go func() {
		defer close(chunks)
		defer resp.Body.Close()
		c.readStream(ctx, model, resp.Body, chunks)
	}()
	return chunks, nil
}

// readStream decodes the SSE frames of a streamGenerateContent response.
// Each frame is a full wireResponse JSON object on a "data: " line.
func (c *Client) readStream(ctx context.Context, model string, body io.Reader, out chan<- *providers.StreamChunk) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}

		var frame wireResponse
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			c.emit(ctx, out, &providers.StreamChunk{
				Err: &providers.ParseError{
					Provider:    c.name,
					RawResponse: data,
					Cause:       fmt.Errorf("failed to parse stream frame: %w", err),
				},
			})
			return
		}

		if !c.emit(ctx, out, transformStreamFrame(model, &frame)) {
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		c.emit(ctx, out, &providers.StreamChunk{
			Err: &providers.StreamError{
				Provider: c.name,
				Message:  "failed to read stream",
				Cause:    err,
			},
		})
	}
}

func (c *Client) emit(ctx context.Context, out chan<- *providers.StreamChunk, chunk *providers.StreamChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// CheckCredentials verifies the access token with a minimal generation
// request. An auth failure surfaces as *providers.AuthError. Model and
// rate-limit errors prove the token was accepted and count as success.
// Anything else (network failure, 5xx) is returned as-is: the token could
// not be verified either way, and callers must not report it as valid.
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
	if errors.As(err, &rateErr) || errors.As(err, &modelErr) {
		return nil
	}
	return err
}
