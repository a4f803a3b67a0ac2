package contextstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// maxDocBytes bounds a fetched context document.
const maxDocBytes = 4 << 20

// Fetcher resolves documentation context for a program by walking the
// source chain: configured remote URL first, then the local docs directory.
type Fetcher struct {
	remoteDocs map[string]string
	docsDir    string
	timeout    time.Duration
	client     *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a fetcher. remoteDocs maps program ids to document
// URLs; docsDir is the local fallback directory.
func NewFetcher(remoteDocs map[string]string, docsDir string, timeout time.Duration, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		remoteDocs: remoteDocs,
		docsDir:    docsDir,
		timeout:    timeout,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Fetch walks the source chain for a program and returns the content along
// with the source it came from. Failures fall through to the next source;
// when nothing matches the sentinel is returned.
func (f *Fetcher) Fetch(ctx context.Context, programID string) (string, string) {
	if url, ok := f.remoteDocs[programID]; ok {
		content, err := f.fetchRemote(ctx, url)
		if err != nil {
			f.logger.Warn("remote context fetch failed, trying local",
				"program", programID,
				"url", url,
				"error", err,
			)
		} else if content != "" {
			return content, sourceRemote
		}
	}

	if content, err := f.readLocal(programID); err == nil && content != "" {
		return content, sourceLocal
	}

	return Sentinel, sourceSentinel
}

// fetchRemote downloads and normalizes one remote document.
func (f *Fetcher) fetchRemote(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDocBytes))
	if err != nil {
		return "", err
	}

	return normalize(raw), nil
}

// readLocal reads the program's context file from the docs directory.
func (f *Fetcher) readLocal(programID string) (string, error) {
	if f.docsDir == "" {
		return "", os.ErrNotExist
	}
	raw, err := os.ReadFile(filepath.Join(f.docsDir, LocalFileName(programID)))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

// LocalFileName returns the docs-dir file name that holds a program's
// context. Program ids come from request bodies, so the base name is taken
// to keep reads inside the docs directory.
func LocalFileName(programID string) string {
	return filepath.Base(programID) + "-context.txt"
}

// normalize turns a fetched document into plain text. JSON documents with a
// "content" or "context" field unwrap to that field; anything else is
// treated as text.
func normalize(raw []byte) string {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed
	}

	var doc struct {
		Content string `json:"content"`
		Context string `json:"context"`
	}
	if err := json.Unmarshal(raw, &doc); err == nil {
		if doc.Content != "" {
			return strings.TrimSpace(doc.Content)
		}
		if doc.Context != "" {
			return strings.TrimSpace(doc.Context)
		}
	}
	return trimmed
}
