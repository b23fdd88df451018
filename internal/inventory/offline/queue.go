// Package offline buffers mutating calls made while the backend is
// unreachable and replays them, strictly in enqueue order, once
// connectivity returns.
package offline

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/farmdash/farmdash-backend/internal/inventory/bus"
	"github.com/farmdash/farmdash-backend/internal/inventory/domain"
	"github.com/farmdash/farmdash-backend/pkg/errors"
	"github.com/farmdash/farmdash-backend/pkg/logger"
	"github.com/google/uuid"
)

// Handler replays one queued operation against its real implementation
type Handler func(ctx context.Context, op *domain.PendingOperation) error

// Notifier receives replay outcomes. May be nil.
type Notifier interface {
	OperationReplayed(ctx context.Context, op *domain.PendingOperation)
	OperationDropped(ctx context.Context, op *domain.PendingOperation, reason string)
}

// DeadLetter records an entry that was dropped during replay. The drop
// itself follows the observed policy; the record makes the loss visible
// instead of silent.
type DeadLetter struct {
	Op        *domain.PendingOperation `json:"op"`
	Error     string                   `json:"error"`
	DroppedAt time.Time                `json:"dropped_at"`
}

// Queue is the offline mutation buffer. Drains on connectivity transitions
// and on a fixed timer that catches missed transition events.
type Queue struct {
	mu       sync.Mutex
	ops      []*domain.PendingOperation
	dead     []*DeadLetter
	handlers map[domain.OperationType]Handler
	store    *Store
	online   func() bool
	bus      *bus.Bus
	interval time.Duration
	cancel   context.CancelFunc
	draining bool
	notifier Notifier
	now      func() time.Time
	logger   *logger.Logger
}

// New creates a queue. store may be nil for memory-only operation.
func New(b *bus.Bus, online func() bool, store *Store, interval time.Duration, log *logger.Logger) *Queue {
	return &Queue{
		handlers: make(map[domain.OperationType]Handler),
		store:    store,
		online:   online,
		bus:      b,
		interval: interval,
		now:      time.Now,
		logger:   log.WithComponent("offline-queue"),
	}
}

// SetNotifier binds the replay outcome listener. Call before Start.
func (q *Queue) SetNotifier(n Notifier) {
	q.notifier = n
}

// RegisterHandler binds an operation type to its replay implementation
func (q *Queue) RegisterHandler(opType domain.OperationType, h Handler) {
	q.handlers[opType] = h
}

// Restore loads journaled operations from the store. Call once at startup,
// before Start.
func (q *Queue) Restore(ctx context.Context) error {
	if q.store == nil {
		return nil
	}
	ops, err := q.store.Load(ctx)
	if err != nil {
		return err
	}

	q.mu.Lock()
	q.ops = append(ops, q.ops...)
	q.mu.Unlock()

	if len(ops) > 0 {
		q.logger.Info().Int("count", len(ops)).Msg("restored pending operations from journal")
	}
	return nil
}

// Enqueue buffers a mutating call for later replay and returns the pending
// record the caller surfaces as a deferred result.
func (q *Queue) Enqueue(ctx context.Context, opType domain.OperationType, payload interface{}) (*domain.PendingOperation, error) {
	if !opType.Valid() {
		return nil, errors.BadRequest("unknown operation type " + string(opType))
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "BAD_REQUEST", "unencodable operation payload", 400)
	}

	op := &domain.PendingOperation{
		ID:         uuid.New().String(),
		Type:       opType,
		Payload:    raw,
		EnqueuedAt: q.now(),
	}

	q.mu.Lock()
	q.ops = append(q.ops, op)
	depth := len(q.ops)
	q.mu.Unlock()

	if q.store != nil {
		if err := q.store.Save(ctx, op); err != nil {
			q.logger.Error().Err(err).Str("op_id", op.ID).Msg("failed to journal pending operation")
		}
	}

	q.logger.Info().
		Str("op_id", op.ID).
		Str("op_type", string(opType)).
		Int("queue_depth", depth).
		Msg("operation deferred")

	return op, nil
}

// Start launches the drain loop: connectivity events plus a fixed timer
func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)

	events, unsubscribe := q.bus.Subscribe(bus.TopicConnectivity)

	go func() {
		defer unsubscribe()

		q.logger.Info().Dur("interval", q.interval).Msg("offline queue started")

		ticker := time.NewTicker(q.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				q.logger.Info().Msg("offline queue stopped")
				return
			case ev := <-events:
				if ce, ok := ev.Payload.(bus.ConnectivityEvent); ok && ce.Online {
					q.Drain(ctx)
				}
			case <-ticker.C:
				q.Drain(ctx)
			}
		}
	}()
}

// Stop halts the drain loop
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
}

// Drain replays queued operations in enqueue order. A NetworkError stops
// the drain with the entry still at the head; any other failure drops the
// entry to the dead-letter record and continues with the next.
func (q *Queue) Drain(ctx context.Context) {
	q.mu.Lock()
	if q.draining || len(q.ops) == 0 {
		q.mu.Unlock()
		return
	}
	q.draining = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	if !q.online() {
		return
	}

	replayed := 0
	for {
		q.mu.Lock()
		if len(q.ops) == 0 {
			q.mu.Unlock()
			break
		}
		op := q.ops[0]
		q.mu.Unlock()

		handler, ok := q.handlers[op.Type]
		if !ok {
			q.drop(ctx, op, errors.Internal("no handler registered for "+string(op.Type)))
			continue
		}

		if err := handler(ctx, op); err != nil {
			if errors.IsNetwork(err) {
				// Connectivity dropped again; keep the entry at the head so
				// order is preserved for the next drain.
				q.logger.Warn().
					Str("op_id", op.ID).
					Msg("connectivity lost during replay, drain paused")
				break
			}
			q.drop(ctx, op, err)
			continue
		}

		q.mu.Lock()
		q.ops = q.ops[1:]
		q.mu.Unlock()
		if q.store != nil {
			if derr := q.store.Delete(ctx, op.ID); derr != nil {
				q.logger.Error().Err(derr).Str("op_id", op.ID).Msg("failed to remove replayed operation from journal")
			}
		}
		replayed++
		if q.notifier != nil {
			q.notifier.OperationReplayed(ctx, op)
		}
	}

	if replayed > 0 {
		q.logger.Info().Int("replayed", replayed).Msg("offline queue drained")
	}
}

// drop removes the head entry and records the loss
func (q *Queue) drop(ctx context.Context, op *domain.PendingOperation, err error) {
	q.mu.Lock()
	if len(q.ops) > 0 && q.ops[0].ID == op.ID {
		q.ops = q.ops[1:]
	}
	q.dead = append(q.dead, &DeadLetter{
		Op:        op,
		Error:     err.Error(),
		DroppedAt: q.now(),
	})
	q.mu.Unlock()

	if q.store != nil {
		if derr := q.store.Delete(ctx, op.ID); derr != nil {
			q.logger.Error().Err(derr).Str("op_id", op.ID).Msg("failed to remove dropped operation from journal")
		}
	}

	if q.notifier != nil {
		q.notifier.OperationDropped(ctx, op, err.Error())
	}

	q.logger.Error().
		Err(err).
		Str("op_id", op.ID).
		Str("op_type", string(op.Type)).
		Msg("queued operation dropped during replay")
}

// Pending returns copies of the queued operations in order
func (q *Queue) Pending() []*domain.PendingOperation {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*domain.PendingOperation, len(q.ops))
	for i, op := range q.ops {
		c := *op
		out[i] = &c
	}
	return out
}

// DeadLetters returns the operations dropped during replay
func (q *Queue) DeadLetters() []*DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*DeadLetter, len(q.dead))
	copy(out, q.dead)
	return out
}

// Depth returns the number of queued operations
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.ops)
}
