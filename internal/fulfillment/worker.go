// Package fulfillment advances paid orders through delivery on a timer.
//
// The worker tracks two in-memory FIFO stages: orders that have been paid
// and are waiting out the delivery window, and delivered orders waiting for
// the optional receipt safety net. Every promotion is persisted through the
// order store's guarded updates, so a concurrent cancellation simply makes
// the store refuse the promotion and the entry is dropped.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stackmartapp/stackmart/internal/db"
	"github.com/stackmartapp/stackmart/internal/models"
)

// OrderStore is the slice of the order store the worker needs.
type OrderStore interface {
	ListByStatus(ctx context.Context, status models.OrderStatus) ([]*models.Order, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID) error
	MarkReceived(ctx context.Context, orderID uuid.UUID) error
}

// Notifier is told when the worker marks an order delivered. Implementations
// must not block for long; the worker calls it inline on its tick.
type Notifier interface {
	OrderDelivered(ctx context.Context, orderID uuid.UUID)
}

// Config configures a Worker.
type Config struct {
	Tick        time.Duration
	DeliverySLA time.Duration
	// ReceiptSLA promotes delivered orders to received after this long.
	// Zero disables the safety net and leaves receipt to the customer.
	ReceiptSLA time.Duration
}

type entry struct {
	id  uuid.UUID
	due time.Time
}

// Worker owns the background status advancement loop.
type Worker struct {
	cfg      Config
	store    OrderStore
	notifier Notifier
	logger   *slog.Logger

	intake chan uuid.UUID

	mu         sync.Mutex
	processing []entry
	delivery   []entry
	tracked    map[uuid.UUID]models.OrderStatus

	stop chan struct{}
	done chan struct{}
}

// New creates a worker. The notifier may be nil.
func New(cfg Config, store OrderStore, notifier Notifier, logger *slog.Logger) (*Worker, error) {
	if store == nil {
		return nil, fmt.Errorf("order store is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Tick <= 0 {
		return nil, fmt.Errorf("tick must be positive")
	}
	if cfg.DeliverySLA <= 0 {
		return nil, fmt.Errorf("delivery SLA must be positive")
	}

	return &Worker{
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		logger:   logger,
		intake:   make(chan uuid.UUID, 256),
		tracked:  make(map[uuid.UUID]models.OrderStatus),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start rebuilds tracking from persisted orders and launches the loop.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.rebuild(ctx); err != nil {
		return fmt.Errorf("failed to rebuild order tracking: %w", err)
	}

	go w.run()
	return nil
}

// Stop signals the loop to exit and waits for it, bounded by ctx.
func (w *Worker) Stop(ctx context.Context) error {
	close(w.stop)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue starts tracking a freshly paid order. Enqueueing an order that is
// already tracked is a no-op.
func (w *Worker) Enqueue(orderID uuid.UUID) {
	select {
	case w.intake <- orderID:
	default:
		// Intake backlog; admit directly rather than dropping.
		w.admitProcessing(orderID, time.Now().Add(w.cfg.DeliverySLA))
	}
}

// Track reports the stage the worker currently holds an order in. ok is
// false for orders the worker is not tracking.
func (w *Worker) Track(orderID uuid.UUID) (models.OrderStatus, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	status, ok := w.tracked[orderID]
	return status, ok
}

func (w *Worker) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case orderID := <-w.intake:
			w.admitProcessing(orderID, time.Now().Add(w.cfg.DeliverySLA))
		case <-ticker.C:
			w.drainIntake()
			w.tick(context.Background(), time.Now())
		}
	}
}

func (w *Worker) drainIntake() {
	for {
		select {
		case orderID := <-w.intake:
			w.admitProcessing(orderID, time.Now().Add(w.cfg.DeliverySLA))
		default:
			return
		}
	}
}

// tick promotes every due entry in both stages. Errors never stop the loop:
// a refused promotion means another writer moved the order first and the
// entry is dropped, anything else is retried on the next tick.
func (w *Worker) tick(ctx context.Context, now time.Time) {
	for _, e := range w.takeDue(&w.processing, now) {
		err := w.store.MarkDelivered(ctx, e.id)
		switch {
		case err == nil:
			w.logger.Info("order delivered", "order_id", e.id)
			if w.cfg.ReceiptSLA > 0 {
				w.admitDelivery(e.id, now.Add(w.cfg.ReceiptSLA))
			} else {
				w.untrack(e.id)
			}
			if w.notifier != nil {
				w.notifier.OrderDelivered(ctx, e.id)
			}
		case errors.Is(err, db.ErrInvalidStatusTransition), errors.Is(err, db.ErrNotFound):
			w.logger.Info("order left delivery tracking", "order_id", e.id, "reason", err)
			w.untrack(e.id)
		default:
			w.logger.Warn("failed to mark order delivered, will retry", "order_id", e.id, "error", err)
			w.requeue(&w.processing, e)
		}
	}

	for _, e := range w.takeDue(&w.delivery, now) {
		err := w.store.MarkReceived(ctx, e.id)
		switch {
		case err == nil:
			w.logger.Info("order receipt confirmed by timeout", "order_id", e.id)
			w.untrack(e.id)
		case errors.Is(err, db.ErrInvalidStatusTransition), errors.Is(err, db.ErrNotFound):
			w.logger.Info("order left receipt tracking", "order_id", e.id, "reason", err)
			w.untrack(e.id)
		default:
			w.logger.Warn("failed to mark order received, will retry", "order_id", e.id, "error", err)
			w.requeue(&w.delivery, e)
		}
	}
}

// takeDue removes and returns the entries of a stage whose deadline passed.
func (w *Worker) takeDue(stage *[]entry, now time.Time) []entry {
	w.mu.Lock()
	defer w.mu.Unlock()

	var due []entry
	remaining := (*stage)[:0]
	for _, e := range *stage {
		if e.due.After(now) {
			remaining = append(remaining, e)
			continue
		}
		due = append(due, e)
	}
	*stage = remaining
	return due
}

func (w *Worker) admitProcessing(orderID uuid.UUID, due time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.tracked[orderID]; ok {
		return
	}
	w.tracked[orderID] = models.StatusProcessing
	w.processing = append(w.processing, entry{id: orderID, due: due})
}

func (w *Worker) admitDelivery(orderID uuid.UUID, due time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tracked[orderID] = models.StatusDelivered
	w.delivery = append(w.delivery, entry{id: orderID, due: due})
}

// requeue puts an entry back in its stage after a transient store failure.
// The entry is still tracked, so admit's dedup would swallow it.
func (w *Worker) requeue(stage *[]entry, e entry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	*stage = append(*stage, e)
}

func (w *Worker) untrack(orderID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.tracked, orderID)
}

// rebuild reloads tracking from persisted orders so a restart does not
// strand paid orders. Dwell time already served counts against the SLA.
func (w *Worker) rebuild(ctx context.Context) error {
	now := time.Now()

	processing, err := w.store.ListByStatus(ctx, models.StatusProcessing)
	if err != nil {
		return err
	}
	for _, order := range processing {
		due := now.Add(w.cfg.DeliverySLA)
		if order.PaidAt != nil {
			due = order.PaidAt.Add(w.cfg.DeliverySLA)
		}
		w.admitProcessing(order.ID, due)
	}

	if w.cfg.ReceiptSLA <= 0 {
		return nil
	}

	delivered, err := w.store.ListByStatus(ctx, models.StatusDelivered)
	if err != nil {
		return err
	}
	for _, order := range delivered {
		due := now.Add(w.cfg.ReceiptSLA)
		if order.DeliveredAt != nil {
			due = order.DeliveredAt.Add(w.cfg.ReceiptSLA)
		}
		w.admitDelivery(order.ID, due)
	}
	return nil
}
