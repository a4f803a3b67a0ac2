package executor

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/CMBAgents/synapses/pkg/config"
	"github.com/CMBAgents/synapses/pkg/providers"
)

// frameRecorder captures the frames a bridge writes.
type frameRecorder struct {
	chunks    []*providers.StreamChunk
	done      bool
	cancelled bool
	errs      []error

	failChunkWrites bool
}

func (r *frameRecorder) WriteChunk(chunk *providers.StreamChunk) error {
	if r.failChunkWrites {
		return errors.New("client gone")
	}
	r.chunks = append(r.chunks, chunk)
	return nil
}

func (r *frameRecorder) WriteDone() error {
	r.done = true
	return nil
}

func (r *frameRecorder) WriteCancelled() error {
	r.cancelled = true
	return nil
}

func (r *frameRecorder) WriteError(err error) error {
	r.errs = append(r.errs, err)
	return nil
}

func newBridge(t *testing.T) *Bridge {
	t.Helper()
	e, _ := newExecutor(t, &fakeDialer{}, config.ExecutorConfig{})
	return NewBridge(e, slog.Default())
}

func TestBridgeForwardsChunksThenDone(t *testing.T) {
	b := newBridge(t)
	rec := &frameRecorder{}

	chunks := make(chan *providers.StreamChunk, 3)
	chunks <- &providers.StreamChunk{Delta: "one"}
	chunks <- &providers.StreamChunk{Delta: "two", FinishReason: providers.FinishReasonStop}
	close(chunks)

	if err := b.Run(context.Background(), "openai", chunks, rec); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(rec.chunks) != 2 || rec.chunks[0].Delta != "one" || rec.chunks[1].Delta != "two" {
		t.Errorf("unexpected chunks %+v", rec.chunks)
	}
	if !rec.done {
		t.Error("done frame not written")
	}
	if rec.cancelled {
		t.Error("cancelled frame written on clean stream")
	}
}

func TestBridgeCancellation(t *testing.T) {
	b := newBridge(t)
	rec := &frameRecorder{}

	ctx, cancel := context.WithCancel(context.Background())
	chunks := make(chan *providers.StreamChunk)

	// The upstream goroutine keeps producing until cancelled. It does not
	// close the channel so the test deterministically exercises the
	// cancellation branch rather than racing it against end-of-stream.
	go func() {
		for {
			select {
			case chunks <- &providers.StreamChunk{Delta: "x"}:
				time.Sleep(time.Millisecond)
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if err := b.Run(ctx, "openai", chunks, rec); err != nil {
		t.Fatalf("cancellation should not surface as an error: %v", err)
	}

	if !rec.cancelled {
		t.Error("cancelled terminal frame not written")
	}
	if rec.done {
		t.Error("done frame must not follow cancellation")
	}
}

func TestBridgeMidStreamError(t *testing.T) {
	b := newBridge(t)
	rec := &frameRecorder{}

	streamErr := &providers.StreamError{Provider: "openai", Message: "connection reset"}
	chunks := make(chan *providers.StreamChunk, 2)
	chunks <- &providers.StreamChunk{Delta: "partial"}
	chunks <- &providers.StreamChunk{Err: streamErr}
	close(chunks)

	err := b.Run(context.Background(), "openai", chunks, rec)
	if !errors.Is(err, streamErr) {
		t.Fatalf("expected stream error, got %v", err)
	}

	if len(rec.chunks) != 1 {
		t.Errorf("partial content should have been forwarded: %+v", rec.chunks)
	}
	if len(rec.errs) != 1 || !errors.Is(rec.errs[0], streamErr) {
		t.Errorf("error frame missing: %+v", rec.errs)
	}
	if rec.done || rec.cancelled {
		t.Error("no other terminal frame should follow an error frame")
	}
}

func TestBridgeStopsOnWriteFailure(t *testing.T) {
	b := newBridge(t)
	rec := &frameRecorder{failChunkWrites: true}

	chunks := make(chan *providers.StreamChunk, 2)
	chunks <- &providers.StreamChunk{Delta: "x"}
	chunks <- &providers.StreamChunk{Delta: "y"}
	close(chunks)

	if err := b.Run(context.Background(), "openai", chunks, rec); err == nil {
		t.Fatal("write failure should surface")
	}
	if rec.done || rec.cancelled {
		t.Error("no terminal frame after a failed chunk write")
	}
}
