package vertex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/CMBAgents/synapses/pkg/providers"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	res := &providers.Resolution{
		Identity: providers.Identity{
			Key:     "vertex",
			BaseURL: srv.URL,
			Dialect: providers.DialectVertex,
		},
		Model: "gemini-1.5-pro",
		Credentials: map[string]string{
			providers.FieldProjectID:      "demo-project",
			providers.FieldLocation:       "us-central1",
			providers.FieldServiceAccount: "test-token",
		},
		Recognized: true,
	}
	c := NewClient(res, srv.Client())
	t.Cleanup(func() { c.Close() })
	return c
}

func TestComplete(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		wantPath := "/projects/demo-project/locations/us-central1/publishers/google/models/gemini-1.5-pro:generateContent"
		if r.URL.Path != wantPath {
			t.Errorf("path = %s, want %s", r.URL.Path, wantPath)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected auth header %q", got)
		}

		var req wireRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "be brief" {
			t.Errorf("system instruction not mapped: %+v", req.SystemInstruction)
		}
		if len(req.Contents) != 1 || req.Contents[0].Role != "user" {
			t.Errorf("unexpected contents %+v", req.Contents)
		}

		json.NewEncoder(w).Encode(wireResponse{
			Candidates: []wireCandidate{{
				Content:      wireContent{Role: "model", Parts: []wirePart{{Text: "pong"}}},
				FinishReason: "STOP",
			}},
			UsageMetadata: &wireUsage{PromptTokenCount: 4, CandidatesTokenCount: 1, TotalTokenCount: 5},
		})
	})

	resp, err := c.Complete(context.Background(), &providers.CompletionRequest{
		Model: "gemini-1.5-pro",
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: "be brief"},
			{Role: providers.RoleUser, Content: "ping"},
		},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != "pong" {
		t.Errorf("content = %q, want pong", resp.Content)
	}
	if resp.FinishReason != providers.FinishReasonStop {
		t.Errorf("finish reason = %q, want stop", resp.FinishReason)
	}
	if resp.ID == "" {
		t.Error("expected synthesized response id")
	}
	if resp.Usage.TotalTokens != 5 {
		t.Errorf("unexpected usage %+v", resp.Usage)
	}
}

func TestComplete_AuthError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"status": "UNAUTHENTICATED"}}`, http.StatusUnauthorized)
	})

	_, err := c.Complete(context.Background(), &providers.CompletionRequest{Model: "gemini-1.5-pro"})
	var authErr *providers.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *providers.AuthError, got %T: %v", err, err)
	}
}

func TestStreamComplete(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":streamGenerateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("alt") != "sse" {
			t.Errorf("expected alt=sse, got %q", r.URL.RawQuery)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		frames := []string{
			`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hel"}]}}]}`,
			`{"candidates":[{"content":{"role":"model","parts":[{"text":"lo"}]},"finishReason":"STOP"}],"usageMetadata":{"totalTokenCount":7}}`,
		}
		for _, f := range frames {
			fmt.Fprintf(w, "data: %s\n\n", f)
		}
	})

	chunks, err := c.StreamComplete(context.Background(), &providers.CompletionRequest{Model: "gemini-1.5-pro"})
	if err != nil {
		t.Fatalf("StreamComplete failed: %v", err)
	}

	var content strings.Builder
	var finish string
	for chunk := range chunks {
		if chunk.Err != nil {
			t.Fatalf("unexpected stream error: %v", chunk.Err)
		}
		content.WriteString(chunk.Delta)
		if chunk.FinishReason != "" {
			finish = chunk.FinishReason
		}
	}

	if content.String() != "Hello" {
		t.Errorf("assembled content = %q, want Hello", content.String())
	}
	if finish != providers.FinishReasonStop {
		t.Errorf("finish reason = %q, want stop", finish)
	}
}

func TestNormalizeFinishReason(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"STOP", providers.FinishReasonStop},
		{"MAX_TOKENS", providers.FinishReasonLength},
		{"SAFETY", providers.FinishReasonContentFilter},
		{"", ""},
		{"OTHER", "OTHER"},
	}
	for _, tt := range tests {
		if got := normalizeFinishReason(tt.in); got != tt.want {
			t.Errorf("normalizeFinishReason(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCheckCredentials(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantAuth bool
		wantErr  bool
	}{
		{
			name:   "accepted",
			status: http.StatusOK,
			body:   `{"candidates":[{"content":{"parts":[{"text":"."}]},"finishReason":"STOP"}]}`,
		},
		{
			name:     "rejected token",
			status:   http.StatusUnauthorized,
			body:     `{"error": {"status": "UNAUTHENTICATED"}}`,
			wantAuth: true,
		},
		{
			name:   "model error proves token accepted",
			status: http.StatusNotFound,
		},
		{
			name:    "provider down is indeterminate",
			status:  http.StatusServiceUnavailable,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			err := c.CheckCredentials(context.Background())
			var authErr *providers.AuthError
			switch {
			case tt.wantAuth:
				if !errors.As(err, &authErr) {
					t.Errorf("expected *providers.AuthError, got %T: %v", err, err)
				}
			case tt.wantErr:
				if err == nil {
					t.Error("expected an error for an unverifiable token")
				}
			default:
				if err != nil {
					t.Errorf("CheckCredentials() = %v, want nil", err)
				}
			}
		})
	}
}
