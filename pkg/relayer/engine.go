// Package relayer observes escrow ledger events and forwards each
// order to the target ledger, retrying transient failures with
// exponential backoff. Failure to relay is never fatal to a swap: the
// escrow timelock keeps the sender's funds recoverable.
package relayer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/crosslane/swapbridge/internal/metrics"
	"github.com/crosslane/swapbridge/pkg/escrow"
	"github.com/crosslane/swapbridge/pkg/orderstore"
	"github.com/crosslane/swapbridge/pkg/swap"
	"github.com/crosslane/swapbridge/pkg/target"
)

// EventStream is the escrow-side event source.
type EventStream interface {
	StreamEvents(ctx context.Context, fromSeq uint64) (<-chan escrow.Event, <-chan error)
	LatestSeq() uint64
}

// Store is the persistence surface the engine needs: the delivery
// bookkeeping plus order lookup for re-driving stale deliveries.
type Store interface {
	orderstore.DeliveryStore
	GetOrder(ctx context.Context, id string) (*swap.Order, error)
}

// PreimageListener receives preimages revealed by completed orders.
type PreimageListener func(orderID string, hashlock common.Hash, preimage []byte)

// Config tunes the relay pipeline.
type Config struct {
	Workers          int
	Retry            RetryPolicy
	DeliveryDeadline time.Duration
	// ReconcileInterval is how often the engine scans for deliveries
	// stuck in pending, for example after a crash mid-flight.
	ReconcileInterval time.Duration
}

// inflight tracks one order's delivery unit so that later events for
// the same order can stop it and wait for it to settle. The set also
// deduplicates: a second order_created for an id already present is
// discarded without a second submission.
type inflight struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Engine is the long-lived relay process.
type Engine struct {
	cfg     Config
	stream  EventStream
	encoder *target.Encoder
	client  target.Client
	store   Store
	logger  *zap.Logger

	mu        sync.Mutex
	inFlight  map[string]*inflight
	listeners []PreimageListener
	seen      uint64
	synced    bool

	// watermark is the persisted cursor: the highest sequence such
	// that every event up to and including it has settled. Events that
	// settle ahead of an earlier in-flight one park in processed until
	// the gap closes, so a restart always replays unfinished work.
	watermark uint64
	processed map[uint64]bool

	syncTarget uint64
	sem        chan struct{}
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewEngine creates a relay engine.
func NewEngine(cfg Config, stream EventStream, encoder *target.Encoder, client target.Client, store Store, logger *zap.Logger) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.ReconcileInterval == 0 {
		cfg.ReconcileInterval = time.Minute
	}
	return &Engine{
		cfg:       cfg,
		stream:    stream,
		encoder:   encoder,
		client:    client,
		store:     store,
		logger:    logger,
		inFlight:  make(map[string]*inflight),
		processed: make(map[uint64]bool),
		sem:       make(chan struct{}, cfg.Workers),
	}
}

// RegisterPreimageListener adds a downstream consumer of revealed
// preimages. Must be called before Start.
func (e *Engine) RegisterPreimageListener(fn PreimageListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Start resumes from the persisted cursor and begins dispatching.
func (e *Engine) Start(ctx context.Context) error {
	cursor, err := e.store.GetRelayCursor(ctx)
	if err != nil {
		return fmt.Errorf("load relay cursor: %w", err)
	}
	e.syncTarget = e.stream.LatestSeq()
	e.mu.Lock()
	// Everything up to the cursor was settled in a previous run; it
	// counts toward both the watermark and readiness.
	e.watermark = cursor
	e.seen = cursor
	e.mu.Unlock()
	e.logger.Info("Starting relay engine",
		zap.Uint64("cursor", cursor),
		zap.Uint64("sync_target", e.syncTarget))

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	events, errs := e.stream.StreamEvents(runCtx, cursor)

	e.wg.Add(1)
	go e.dispatch(runCtx, events, errs)

	if e.cfg.ReconcileInterval > 0 {
		e.wg.Add(1)
		go e.reconcileLoop(runCtx)
	}
	return nil
}

// Stop cancels all in-flight work and waits for it to settle.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	e.logger.Info("Relay engine stopped")
}

// IsReady reports whether the engine has caught up with the escrow
// event log as it stood at startup. Monotonic: once ready, always ready.
func (e *Engine) IsReady() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.synced && e.seen >= e.syncTarget {
		e.synced = true
	}
	return e.synced
}

// dispatch is the single ingestion loop. It never blocks on a slow
// submission: every unit of work runs in its own goroutine and queues
// on the bounded worker semaphore there.
func (e *Engine) dispatch(ctx context.Context, events <-chan escrow.Event, errs <-chan error) {
	defer e.wg.Done()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			metrics.EventsObserved.WithLabelValues(string(ev.Type)).Inc()
			e.mu.Lock()
			if ev.Seq > e.seen {
				e.seen = ev.Seq
			}
			e.mu.Unlock()

			switch ev.Type {
			case escrow.EventOrderCreated:
				e.dispatchCreated(ctx, ev)
			case escrow.EventOrderCompleted, escrow.EventOrderRefunded:
				e.wg.Add(1)
				go e.finalize(ctx, ev)
			}

		case err := <-errs:
			if err != nil {
				e.logger.Error("Escrow stream error", zap.Error(err))
				metrics.ErrorsTotal.WithLabelValues("relayer", "stream").Inc()
			}
			return

		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) dispatchCreated(ctx context.Context, ev escrow.Event) {
	e.mu.Lock()
	if _, dup := e.inFlight[ev.OrderID]; dup {
		e.mu.Unlock()
		e.logger.Debug("Duplicate order event discarded", zap.String("order_id", ev.OrderID))
		e.markProcessed(ev.Seq)
		return
	}
	unitCtx, cancel := context.WithCancel(ctx)
	unit := &inflight{cancel: cancel, done: make(chan struct{})}
	e.inFlight[ev.OrderID] = unit
	e.mu.Unlock()

	metrics.InFlightDeliveries.Inc()
	e.wg.Add(1)
	go e.deliver(unitCtx, ev, unit)
}

// deliver drives one order's submission to the target ledger.
func (e *Engine) deliver(ctx context.Context, ev escrow.Event, unit *inflight) {
	defer func() {
		e.mu.Lock()
		delete(e.inFlight, ev.OrderID)
		e.mu.Unlock()
		close(unit.done)
		metrics.InFlightDeliveries.Dec()
		e.wg.Done()
	}()

	existing, err := e.store.GetDelivery(ctx, ev.OrderID)
	if err != nil {
		e.logger.Error("Failed to read delivery state", zap.String("order_id", ev.OrderID), zap.Error(err))
		metrics.ErrorsTotal.WithLabelValues("relayer", "store").Inc()
		return
	}
	if existing != nil && existing.Status != orderstore.DeliveryStatusPending {
		e.logger.Debug("Order already relayed", zap.String("order_id", ev.OrderID), zap.String("status", string(existing.Status)))
		e.markProcessed(ev.Seq)
		return
	}
	if existing == nil {
		record := &orderstore.Delivery{OrderID: ev.OrderID, Status: orderstore.DeliveryStatusPending}
		if err := e.store.CreateDelivery(ctx, record); err != nil {
			e.logger.Error("Failed to record delivery", zap.String("order_id", ev.OrderID), zap.Error(err))
			metrics.ErrorsTotal.WithLabelValues("relayer", "store").Inc()
			return
		}
	}

	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		return
	}

	sub, err := e.encoder.Encode(eventOrder(ev))
	if err != nil {
		msg := err.Error()
		_ = e.store.UpdateDelivery(ctx, ev.OrderID, orderstore.DeliveryStatusAbandoned, nil, 0, &msg)
		e.logger.Error("Failed to encode order", zap.String("order_id", ev.OrderID), zap.Error(err))
		e.markProcessed(ev.Seq)
		return
	}

	e.submitWithRetry(ctx, ev, sub)
}

// submitWithRetry is the at-least-once delivery loop. Retryable
// failures back off exponentially; a permanent rejection or an
// exhausted budget abandons the delivery, leaving the refund path as
// the safety net.
func (e *Engine) submitWithRetry(ctx context.Context, ev escrow.Event, sub target.Submission) {
	deadlineCtx := ctx
	if e.cfg.DeliveryDeadline > 0 {
		var cancel context.CancelFunc
		deadlineCtx, cancel = context.WithTimeout(ctx, e.cfg.DeliveryDeadline)
		defer cancel()
	}

	started := time.Now()
	var lastErr error
	for attempt := 1; ; attempt++ {
		delay, ok := e.cfg.Retry.Next(attempt)
		if !ok {
			e.abandon(ctx, ev.OrderID, attempt-1, lastErr)
			metrics.DeliveryDuration.WithLabelValues("abandoned").Observe(time.Since(started).Seconds())
			e.markProcessed(ev.Seq)
			return
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-deadlineCtx.Done():
				if ctx.Err() == nil {
					e.abandon(ctx, ev.OrderID, attempt-1, deadlineCtx.Err())
					e.markProcessed(ev.Seq)
				}
				return
			}
		}

		receipt, err := e.client.Submit(deadlineCtx, sub)
		if err == nil {
			receiptRef := receipt.TxHash
			if updateErr := e.store.UpdateDelivery(ctx, ev.OrderID, orderstore.DeliveryStatusDelivered, &receiptRef, attempt, nil); updateErr != nil {
				e.logger.Error("Failed to record delivery receipt", zap.String("order_id", ev.OrderID), zap.Error(updateErr))
			}
			e.markProcessed(ev.Seq)
			metrics.SubmissionsTotal.WithLabelValues("delivered").Inc()
			metrics.DeliveryDuration.WithLabelValues("delivered").Observe(time.Since(started).Seconds())
			e.logger.Info("Order relayed",
				zap.String("order_id", ev.OrderID),
				zap.String("tx_hash", receipt.TxHash),
				zap.Int("attempts", attempt))
			return
		}

		if deadlineCtx.Err() != nil {
			// Engine shutdown leaves the row pending and the cursor
			// behind it, so a restart replays the event; a blown
			// deadline is a terminal failure.
			if ctx.Err() == nil {
				e.abandon(ctx, ev.OrderID, attempt, deadlineCtx.Err())
				e.markProcessed(ev.Seq)
			}
			return
		}

		lastErr = err
		var deliveryErr *target.DeliveryError
		if errors.As(err, &deliveryErr) && !deliveryErr.Retryable {
			e.abandon(ctx, ev.OrderID, attempt, err)
			metrics.DeliveryDuration.WithLabelValues("rejected").Observe(time.Since(started).Seconds())
			e.markProcessed(ev.Seq)
			return
		}

		metrics.SubmissionRetries.WithLabelValues("retryable").Inc()
		e.logger.Warn("Submission failed, will retry",
			zap.String("order_id", ev.OrderID),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
}

func (e *Engine) abandon(ctx context.Context, orderID string, attempts int, cause error) {
	msg := "retry budget exhausted"
	if cause != nil {
		msg = cause.Error()
	}
	if err := e.store.UpdateDelivery(ctx, orderID, orderstore.DeliveryStatusAbandoned, nil, attempts, &msg); err != nil {
		e.logger.Error("Failed to record abandoned delivery", zap.String("order_id", orderID), zap.Error(err))
	}
	metrics.SubmissionsTotal.WithLabelValues("abandoned").Inc()
	e.logger.Error("Delivery abandoned; sender can refund after timelock",
		zap.String("order_id", orderID),
		zap.Int("attempts", attempts),
		zap.String("cause", msg))
}

// finalize handles order_completed and order_refunded. If a delivery
// unit for the order is still running its retries are moot, so it is
// cancelled and awaited first, which also keeps all work for one order
// serialized.
func (e *Engine) finalize(ctx context.Context, ev escrow.Event) {
	defer e.wg.Done()

	e.mu.Lock()
	unit := e.inFlight[ev.OrderID]
	e.mu.Unlock()
	if unit != nil {
		unit.cancel()
		select {
		case <-unit.done:
		case <-ctx.Done():
			return
		}
	}

	status := orderstore.DeliveryStatusCompleted
	outcome := "completed"
	if ev.Type == escrow.EventOrderRefunded {
		status = orderstore.DeliveryStatusCancelled
		outcome = "refunded"
	}

	existing, err := e.store.GetDelivery(ctx, ev.OrderID)
	if err != nil {
		e.logger.Error("Failed to read delivery state", zap.String("order_id", ev.OrderID), zap.Error(err))
		return
	}
	if existing == nil {
		record := &orderstore.Delivery{OrderID: ev.OrderID, Status: status}
		if err := e.store.CreateDelivery(ctx, record); err != nil {
			e.logger.Error("Failed to record resolution", zap.String("order_id", ev.OrderID), zap.Error(err))
		}
	} else if err := e.store.UpdateDelivery(ctx, ev.OrderID, status, existing.Receipt, existing.Attempts, nil); err != nil {
		e.logger.Error("Failed to record resolution", zap.String("order_id", ev.OrderID), zap.Error(err))
	}

	metrics.OrdersTotal.WithLabelValues(outcome).Inc()

	if ev.Type == escrow.EventOrderCompleted {
		e.mu.Lock()
		listeners := append([]PreimageListener(nil), e.listeners...)
		e.mu.Unlock()
		for _, fn := range listeners {
			fn(ev.OrderID, ev.Hashlock, ev.Preimage)
		}
	}

	e.markProcessed(ev.Seq)
	e.logger.Info("Order finalized",
		zap.String("order_id", ev.OrderID),
		zap.String("outcome", outcome))
}

// markProcessed records that the work for seq has settled and advances
// the persisted cursor across every closed gap. A seq of zero marks
// reconcile-driven work, which carries no stream position.
func (e *Engine) markProcessed(seq uint64) {
	if seq == 0 {
		return
	}
	e.mu.Lock()
	if seq <= e.watermark {
		e.mu.Unlock()
		return
	}
	e.processed[seq] = true
	prev := e.watermark
	for e.processed[e.watermark+1] {
		e.watermark++
		delete(e.processed, e.watermark)
	}
	cursor := e.watermark
	e.mu.Unlock()

	if cursor > prev {
		e.persistCursor(cursor)
	}
}

func (e *Engine) persistCursor(seq uint64) {
	// Cursor writes use a background context: shutdown must not lose
	// progress for work that already completed.
	if err := e.store.SetRelayCursor(context.Background(), seq); err != nil {
		e.logger.Error("Failed to persist relay cursor", zap.Uint64("seq", seq), zap.Error(err))
		return
	}
	metrics.RelayCursor.Set(float64(seq))
}

// reconcileLoop periodically re-drives deliveries stuck in pending,
// for example rows left behind by a crash between the delivery record
// and the submission.
func (e *Engine) reconcileLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.reconcile(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) reconcile(ctx context.Context) {
	cutoff := time.Now().Add(-e.cfg.ReconcileInterval)
	stale, err := e.store.ListPendingDeliveries(ctx, cutoff)
	if err != nil {
		e.logger.Error("Failed to list stale deliveries", zap.Error(err))
		metrics.ErrorsTotal.WithLabelValues("relayer", "store").Inc()
		return
	}

	for _, delivery := range stale {
		order, err := e.store.GetOrder(ctx, delivery.OrderID)
		if errors.Is(err, swap.ErrOrderNotFound) {
			msg := "order record missing"
			if err := e.store.UpdateDelivery(ctx, delivery.OrderID, orderstore.DeliveryStatusAbandoned, nil, delivery.Attempts, &msg); err != nil {
				e.logger.Error("Failed to abandon orphaned delivery", zap.String("order_id", delivery.OrderID), zap.Error(err))
			}
			continue
		}
		if err != nil {
			e.logger.Error("Failed to load order for reconciliation", zap.String("order_id", delivery.OrderID), zap.Error(err))
			continue
		}

		if order.Status.Terminal() {
			status := orderstore.DeliveryStatusCompleted
			if order.Status == swap.StatusRefunded {
				status = orderstore.DeliveryStatusCancelled
			}
			if err := e.store.UpdateDelivery(ctx, delivery.OrderID, status, delivery.Receipt, delivery.Attempts, nil); err != nil {
				e.logger.Error("Failed to settle resolved delivery", zap.String("order_id", delivery.OrderID), zap.Error(err))
			}
			continue
		}

		e.mu.Lock()
		if _, busy := e.inFlight[delivery.OrderID]; busy {
			e.mu.Unlock()
			continue
		}
		unitCtx, cancel := context.WithCancel(ctx)
		unit := &inflight{cancel: cancel, done: make(chan struct{})}
		e.inFlight[delivery.OrderID] = unit
		e.mu.Unlock()

		e.logger.Info("Re-driving stale delivery", zap.String("order_id", delivery.OrderID))
		metrics.InFlightDeliveries.Inc()
		e.wg.Add(1)
		go e.deliver(unitCtx, orderEvent(order), unit)
	}
}

// eventOrder reconstructs the order snapshot carried by an
// order_created event.
func eventOrder(ev escrow.Event) *swap.Order {
	return &swap.Order{
		ID:                  ev.OrderID,
		Sender:              ev.Sender,
		RecipientCommitment: ev.RecipientCommitment,
		Amount:              ev.Amount,
		Hashlock:            ev.Hashlock,
		Timelock:            ev.Timelock,
		Status:              swap.StatusPending,
		FeeBasisPoints:      ev.FeeBasisPoints,
		CreationBlock:       ev.Block,
	}
}

// orderEvent is the inverse, used when reconciliation re-drives a
// delivery from the stored order. The zero Seq keeps reconcile-driven
// work off the stream cursor.
func orderEvent(order *swap.Order) escrow.Event {
	return escrow.Event{
		Type:                escrow.EventOrderCreated,
		OrderID:             order.ID,
		Sender:              order.Sender,
		RecipientCommitment: order.RecipientCommitment,
		Amount:              order.Amount,
		Hashlock:            order.Hashlock,
		Timelock:            order.Timelock,
		FeeBasisPoints:      order.FeeBasisPoints,
		Block:               order.CreationBlock,
	}
}
