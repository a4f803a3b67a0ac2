package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/CMBAgents/synapses/pkg/providers"
)

// FrameWriter receives the outbound frames of one streaming response.
// Implementations translate frames to their wire format (SSE for the HTTP
// gateway). Write errors from terminal frames are returned so the bridge
// can log them, but a failed teardown write never aborts teardown.
type FrameWriter interface {
	// WriteChunk writes one content frame.
	WriteChunk(chunk *providers.StreamChunk) error

	// WriteDone writes the distinguished end-of-stream frame.
	WriteDone() error

	// WriteCancelled writes the terminal frame for a cancelled stream.
	WriteCancelled() error

	// WriteError writes a terminal error frame for mid-stream failures.
	WriteError(err error) error
}

// Bridge pumps provider stream chunks to a FrameWriter until the stream
// ends, fails, or the client goes away.
type Bridge struct {
	executor *Executor
	logger   *slog.Logger
}

// NewBridge creates a bridge reporting stream outcomes through the
// executor.
func NewBridge(executor *Executor, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{executor: executor, logger: logger}
}

// Run forwards chunks to the writer until one of the three terminal
// conditions:
//
//   - the channel closes: a done frame is written and nil returned;
//   - a chunk carries Err: an error frame is written and the error
//     returned;
//   - ctx is cancelled (client disconnect): reads stop, one cancelled
//     frame is attempted, and ctx.Err() is returned. Cancelling ctx also
//     tears down the upstream stream, whose goroutine exits on its own.
//
// Teardown write failures are expected when the client is gone; they are
// logged at debug and never propagated.
func (b *Bridge) Run(ctx context.Context, provider string, chunks <-chan *providers.StreamChunk, w FrameWriter) error {
	start := time.Now()
	providerErr, err := b.run(ctx, chunks, w)

	// Client disconnects and local write failures are not the provider's
	// fault; only upstream stream errors count against its health.
	b.executor.ReportStreamOutcome(provider, providerErr, time.Since(start))

	if err == context.Canceled {
		return nil
	}
	return err
}

// run pumps the stream. providerErr is set only for upstream failures;
// err is whatever ended the stream (nil on clean completion).
func (b *Bridge) run(ctx context.Context, chunks <-chan *providers.StreamChunk, w FrameWriter) (providerErr, err error) {
	for {
		select {
		case <-ctx.Done():
			if werr := w.WriteCancelled(); werr != nil {
				b.logger.Debug("cancelled frame not written", "error", werr)
			}
			return nil, context.Canceled

		case chunk, ok := <-chunks:
			if !ok {
				if werr := w.WriteDone(); werr != nil {
					b.logger.Debug("done frame not written", "error", werr)
				}
				return nil, nil
			}
			if chunk.Err != nil {
				if werr := w.WriteError(chunk.Err); werr != nil {
					b.logger.Debug("error frame not written", "error", werr)
				}
				return chunk.Err, chunk.Err
			}
			if werr := w.WriteChunk(chunk); werr != nil {
				// The client stopped reading; abandoning the loop
				// cancels the upstream stream via the request context.
				b.logger.Debug("chunk write failed, abandoning stream", "error", werr)
				return nil, werr
			}
		}
	}
}
