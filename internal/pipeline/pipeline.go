// --- File: internal/pipeline/pipeline.go ---
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"cloud.google.com/go/pubsub/v2"
)

// Receiver defines the subset of the pubsub.Subscriber methods we use.
// This allows mocking for unit tests.
type Receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// Pipeline connects a Pub/Sub subscription to the Processor. Every delivery
// is parsed, processed, and then acked or nacked:
//
//   - undecodable payloads are nacked so the subscription's dead-letter
//     policy can move them aside,
//   - transient processing failures are nacked for redelivery with backoff,
//   - everything else is acked, including outcomes that retrying cannot fix.
type Pipeline struct {
	receiver  Receiver
	processor *Processor
	logger    *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// NewPipeline wires a subscriber to the processor. numWorkers bounds how many
// messages are handled concurrently.
func NewPipeline(subscriber *pubsub.Subscriber, processor *Processor, numWorkers int, logger *slog.Logger) *Pipeline {
	if numWorkers > 0 {
		subscriber.ReceiveSettings.MaxOutstandingMessages = numWorkers
	}
	return NewPipelineWithReceiver(subscriber, processor, logger)
}

// NewPipelineWithReceiver wires an already-configured receiver to the
// processor.
func NewPipelineWithReceiver(receiver Receiver, processor *Processor, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		receiver:  receiver,
		processor: processor,
		logger:    logger.With("component", "Pipeline"),
	}
}

// Start launches the receive loop in the background and returns immediately.
// The loop runs until Stop is called or ctx is canceled. A shutdown signal
// can race startup, so a pipeline that was already stopped stays stopped.
func (p *Pipeline) Start(ctx context.Context) error {
	receiveCtx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		cancel()
		p.logger.Info("Pipeline already stopped; not starting")
		return nil
	}
	p.cancel = cancel
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	go func() {
		defer close(done)
		if err := p.receiver.Receive(receiveCtx, p.handle); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Error("Receive loop exited with error", "err", err)
		}
	}()

	p.logger.Info("Pipeline started")
	return nil
}

// Stop halts consumption and waits for in-flight messages to drain, or for
// ctx to expire. It is safe to call before, after, or concurrently with
// Start.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) handle(ctx context.Context, msg *pubsub.Message) {
	req, err := ParseWakeupRequest(msg.Data)
	if err != nil {
		// Poison pill. Nack it: redelivery cannot fix the payload, and the
		// dead-letter policy will take it off the subscription.
		p.logger.Warn("Rejecting undecodable message", "pubsub_msg_id", msg.ID, "err", err)
		msg.Nack()
		return
	}

	if err := p.processor.Process(ctx, req); err != nil {
		p.logger.Warn("Processing incomplete; message will be redelivered", "pubsub_msg_id", msg.ID, "err", err)
		msg.Nack()
		return
	}

	msg.Ack()
}
