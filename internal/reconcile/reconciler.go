// Package reconcile drains the mutation queue against the remote store
// whenever connectivity allows, and keeps identifiers consistent by
// remapping temporary ids to server-assigned ones as creates confirm.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"kasirkita/pos/internal/connectivity"
	"kasirkita/pos/internal/domain"
	"kasirkita/pos/internal/entity"
	"kasirkita/pos/internal/metrics"
	"kasirkita/pos/internal/queue"
	"kasirkita/pos/internal/remote"
)

type State int

const (
	StateIdle State = iota
	StateDraining
	StateStalled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	case StateStalled:
		return "stalled"
	}
	return "unknown"
}

// Error is one mutation dropped during a drain after a permanent remote
// rejection. The rest of the queue keeps draining.
type Error struct {
	Mutation domain.Mutation
	Err      error
	At       time.Time
}

type Reconciler struct {
	entities *entity.Store
	queue    *queue.Queue
	remote   remote.Store
	monitor  connectivity.Monitor
	metrics  *metrics.Set
	onError  func(Error)

	mu    sync.Mutex
	state State
	errs  []Error
	wake  chan struct{}
}

func New(entities *entity.Store, q *queue.Queue, rs remote.Store, monitor connectivity.Monitor) *Reconciler {
	return &Reconciler{
		entities: entities,
		queue:    q,
		remote:   rs,
		monitor:  monitor,
		wake:     make(chan struct{}, 1),
	}
}

func (r *Reconciler) SetMetrics(m *metrics.Set) {
	r.metrics = m
}

// OnError registers a callback invoked for every dropped mutation as it
// happens; the per-drain batch stays available through Errors.
func (r *Reconciler) OnError(fn func(Error)) {
	r.onError = fn
}

func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Errors returns the reconciliation errors collected since the last
// drain started.
func (r *Reconciler) Errors() []Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Error(nil), r.errs...)
}

// Submit implements entity.Outbound: the mutation is enqueued durably,
// and if the monitor already reports online the drain loop is woken so
// the queue only ever bridges offline periods. Never blocks on the
// network.
func (r *Reconciler) Submit(m domain.Mutation) error {
	if _, err := r.queue.Enqueue(m); err != nil {
		return err
	}
	r.gauge()
	if r.monitor == nil || r.monitor.Online() {
		r.kick()
	}
	return nil
}

// Retry restarts a stalled reconciler without waiting for the next
// online edge.
func (r *Reconciler) Retry() {
	r.kick()
}

// Run reacts to connectivity edges and submissions until the context is
// cancelled. A drain stalled on a transient failure is only retried on
// the next online edge or an explicit Retry; there is no timer loop.
func (r *Reconciler) Run(ctx context.Context) {
	var events <-chan bool
	if r.monitor != nil {
		events = r.monitor.Events()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-events:
			if r.monitor.Online() {
				r.Drain(ctx)
			}
		case <-r.wake:
			r.Drain(ctx)
		}
	}
}

// Drain replays queued mutations in sequence order, one at a time. The
// queue head is re-read after every confirmed step, so work enqueued
// mid-drain is picked up and a concurrent trigger coalesces to a no-op.
func (r *Reconciler) Drain(ctx context.Context) {
	r.mu.Lock()
	if r.state == StateDraining {
		r.mu.Unlock()
		return
	}
	r.state = StateDraining
	r.errs = nil
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.Drains.Inc()
	}

	for {
		if ctx.Err() != nil {
			r.setState(StateStalled)
			return
		}

		m, ok := r.queue.Head()
		if !ok {
			r.setState(StateIdle)
			r.gauge()
			return
		}

		if err := r.replay(ctx, m); err != nil {
			if errors.Is(err, domain.ErrTransientRemote) {
				log.Printf("[reconcile] stalling: %s %s seq=%d: %v", m.Kind, m.Entity, m.Seq, err)
				if r.metrics != nil {
					r.metrics.Stalls.Inc()
				}
				r.setState(StateStalled)
				return
			}

			// Permanent rejection: drop this one mutation and keep
			// draining so one bad record cannot block the session's
			// offline work.
			r.report(m, err)
			if err := r.queue.Dequeue(m.ID); err != nil {
				log.Printf("[reconcile] dequeue %s failed: %v", m.ID, err)
				r.setState(StateStalled)
				return
			}
			r.gauge()
			continue
		}

		if err := r.queue.Dequeue(m.ID); err != nil {
			log.Printf("[reconcile] dequeue %s failed: %v", m.ID, err)
			r.setState(StateStalled)
			return
		}
		if r.metrics != nil {
			r.metrics.MutationsReplayed.Inc()
		}
		r.gauge()
	}
}

// replay sends one mutation to the remote store. For creates the payload
// goes out without its temporary identifier; once the permanent one
// comes back, the entity store and every not-yet-replayed queue entry
// are rewritten before the create is dequeued.
func (r *Reconciler) replay(ctx context.Context, m domain.Mutation) error {
	switch m.Entity {
	case domain.EntityProduct:
		switch m.Kind {
		case domain.MutationCreate:
			payload := *m.Product
			payload.ID = 0
			permID, err := r.remote.CreateProduct(ctx, payload)
			if err != nil {
				return err
			}
			return r.rewriteProduct(m.TempID, permID)
		case domain.MutationUpdate:
			return r.remote.UpdateProduct(ctx, m.ProductID, *m.Product)
		case domain.MutationDelete:
			return r.remote.DeleteOrZeroStockProduct(ctx, m.ProductID)
		}
	case domain.EntityCustomer:
		switch m.Kind {
		case domain.MutationCreate:
			payload := *m.Customer
			payload.ID = 0
			permID, err := r.remote.CreateCustomer(ctx, payload)
			if err != nil {
				return err
			}
			return r.rewriteCustomer(m.TempID, permID)
		case domain.MutationUpdate:
			return r.remote.UpdateCustomer(ctx, m.CustomerID, *m.Customer)
		case domain.MutationDelete:
			return r.remote.DeleteCustomer(ctx, m.CustomerID)
		}
	case domain.EntitySale:
		if m.Kind == domain.MutationCreate {
			return r.remote.CreateSale(ctx, *m.Sale)
		}
	}
	return remote.Permanent(fmt.Errorf("unsupported mutation %s %s", m.Kind, m.Entity))
}

// A rewrite failure is a local persistence problem, not a remote
// rejection; stall and keep the mutation rather than dropping it.
func (r *Reconciler) rewriteProduct(tempID int64, permID int64) error {
	if err := r.entities.RewriteProductID(tempID, permID); err != nil {
		return fmt.Errorf("%w: rewrite product id: %w", domain.ErrTransientRemote, err)
	}
	if err := r.queue.RewriteProductID(tempID, permID); err != nil {
		return fmt.Errorf("%w: rewrite queued product refs: %w", domain.ErrTransientRemote, err)
	}
	return nil
}

func (r *Reconciler) rewriteCustomer(tempID int64, permID int64) error {
	if err := r.entities.RewriteCustomerID(tempID, permID); err != nil {
		return fmt.Errorf("%w: rewrite customer id: %w", domain.ErrTransientRemote, err)
	}
	if err := r.queue.RewriteCustomerID(tempID, permID); err != nil {
		return fmt.Errorf("%w: rewrite queued customer refs: %w", domain.ErrTransientRemote, err)
	}
	return nil
}

func (r *Reconciler) report(m domain.Mutation, err error) {
	log.Printf("[reconcile] dropping %s %s seq=%d: %v", m.Kind, m.Entity, m.Seq, err)
	reconErr := Error{Mutation: m, Err: err, At: time.Now().UTC()}

	r.mu.Lock()
	r.errs = append(r.errs, reconErr)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ReconciliationErrors.Inc()
	}
	if r.onError != nil {
		r.onError(reconErr)
	}
}

func (r *Reconciler) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Reconciler) kick() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Reconciler) gauge() {
	if r.metrics != nil {
		r.metrics.QueueDepth.Set(float64(r.queue.Len()))
	}
}
