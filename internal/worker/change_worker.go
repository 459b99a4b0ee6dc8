// Package worker runs background consumers of ledger change events.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fintrack/internal/amqp"
	"fintrack/internal/log"
)

// Consumer delivers change messages until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, handler amqp.Handler) error
}

// Invalidator drops cached aggregates of one owner.
type Invalidator interface {
	Invalidate(ownerID int64)
}

// ChangeWorker keeps a local aggregate cache coherent with writes made by
// other processes, such as fintrack-ctl.
type ChangeWorker struct {
	consumer Consumer
	cache    Invalidator
	logger   *log.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

func NewChangeWorker(consumer Consumer, cache Invalidator, logger *log.Logger) *ChangeWorker {
	if logger == nil {
		logger = log.Default()
	}
	return &ChangeWorker{
		consumer: consumer,
		cache:    cache,
		logger:   logger.WithComponent(log.ComponentAMQP),
	}
}

// HandleChange processes a single change message.
func (w *ChangeWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	if msg == nil || msg.OwnerID == 0 {
		return fmt.Errorf("change message without owner")
	}
	w.cache.Invalidate(msg.OwnerID)
	w.logger.DebugContext(ctx, "Applied ledger change",
		log.FieldOwnerID, msg.OwnerID,
		log.FieldTransactionID, msg.TransactionID,
		log.FieldOperation, string(msg.Op))
	return nil
}

// Start begins consuming in the background. Returns an error if already running.
func (w *ChangeWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("change worker is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	w.running = true
	w.cancel = cancel
	w.doneCh = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		err := w.consumer.Consume(ctx, w.HandleChange)
		if err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "Change consumer stopped", log.FieldError, err)
		}
	}(w.doneCh)

	w.logger.InfoContext(ctx, "Change worker started")
	return nil
}

// Stop cancels the consumer and waits for it, or for ctx.
func (w *ChangeWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	cancel, done := w.cancel, w.doneCh
	w.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Change worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	w.logger.InfoContext(ctx, "Change worker stopped")
	return nil
}

func (w *ChangeWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
