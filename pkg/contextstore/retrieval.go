package contextstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// RetrievalClient queries an external retrieval service for query-scoped
// documentation snippets. Retrieval results are per-query and therefore
// never cached in the store.
type RetrievalClient struct {
	endpoint  string
	topK      int
	maxTokens int
	client    *http.Client
	logger    *slog.Logger
}

// retrievalRequest is the wire request to the retrieval service.
type retrievalRequest struct {
	Library   string `json:"library"`
	Query     string `json:"query"`
	TopK      int    `json:"topK,omitempty"`
	MaxTokens int    `json:"maxTokens,omitempty"`
}

// retrievalResponse is the wire response from the retrieval service.
type retrievalResponse struct {
	Snippets []struct {
		Text   string  `json:"text"`
		Source string  `json:"source,omitempty"`
		Score  float64 `json:"score,omitempty"`
	} `json:"snippets"`
	Content string `json:"content,omitempty"`
}

// NewRetrievalClient creates a retrieval client. A nil return means
// retrieval is not configured and the caller should fall back to static
// context.
func NewRetrievalClient(endpoint string, topK, maxTokens int, timeout time.Duration, logger *slog.Logger) *RetrievalClient {
	if endpoint == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalClient{
		endpoint:  endpoint,
		topK:      topK,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// Retrieve asks the retrieval service for snippets about query within a
// library's documentation. The snippets are joined into one context block.
func (r *RetrievalClient) Retrieve(ctx context.Context, library, query string) (string, error) {
	body, err := json.Marshal(retrievalRequest{
		Library:   library,
		Query:     query,
		TopK:      r.topK,
		MaxTokens: r.maxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("retrieval service returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDocBytes))
	if err != nil {
		return "", err
	}

	var decoded retrievalResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode retrieval response: %w", err)
	}

	if len(decoded.Snippets) > 0 {
		parts := make([]string, 0, len(decoded.Snippets))
		for _, s := range decoded.Snippets {
			if s.Text != "" {
				parts = append(parts, strings.TrimSpace(s.Text))
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n\n"), nil
		}
	}
	if decoded.Content != "" {
		return strings.TrimSpace(decoded.Content), nil
	}
	return "", fmt.Errorf("retrieval response contained no snippets")
}

// LoadWithQuery returns query-scoped context for a program when retrieval
// is configured, falling back to the store's static context on any failure.
func (s *Store) LoadWithQuery(ctx context.Context, retrieval *RetrievalClient, programID, query string) string {
	if retrieval == nil || query == "" {
		return s.Load(ctx, programID)
	}

	content, err := retrieval.Retrieve(ctx, programID, query)
	if err != nil {
		s.logger.Debug("retrieval failed, using static context",
			"program", programID,
			"error", err,
		)
		return s.Load(ctx, programID)
	}
	return content
}
