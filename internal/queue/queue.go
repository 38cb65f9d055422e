// Package queue is the durable record of writes awaiting remote
// confirmation. Entries are strictly FIFO by sequence number; replay
// order per entity lineage depends on never reordering them.
package queue

import (
	"fmt"
	"sync"

	"kasirkita/pos/internal/domain"
	"kasirkita/pos/internal/local"
)

type Queue struct {
	mu      sync.Mutex
	items   []domain.Mutation
	nextSeq uint64
	persist local.Persister
}

func New(persist local.Persister) *Queue {
	return &Queue{nextSeq: 1, persist: persist}
}

// Restore reloads pending mutations persisted by a previous run.
func (q *Queue) Restore() error {
	items, err := q.persist.LoadQueue()
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = items
	q.nextSeq = 1
	for _, m := range items {
		if m.Seq >= q.nextSeq {
			q.nextSeq = m.Seq + 1
		}
	}
	return nil
}

// Enqueue assigns the next sequence number and persists the queue before
// returning, so a crash before reconciliation loses no queued work.
func (q *Queue) Enqueue(m domain.Mutation) (domain.Mutation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	m.Seq = q.nextSeq
	q.items = append(q.items, m)
	if err := q.persist.SaveQueue(q.items); err != nil {
		q.items = q.items[:len(q.items)-1]
		return domain.Mutation{}, fmt.Errorf("persist queue: %w", err)
	}
	q.nextSeq++
	return m, nil
}

// Head returns the oldest pending mutation without removing it.
func (q *Queue) Head() (domain.Mutation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return domain.Mutation{}, false
	}
	return q.items[0], true
}

// Dequeue removes one confirmed entry. Remaining entries keep their
// order and sequence numbers.
func (q *Queue) Dequeue(mutationID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, m := range q.items {
		if m.ID != mutationID {
			continue
		}
		rest := make([]domain.Mutation, 0, len(q.items)-1)
		rest = append(rest, q.items[:i]...)
		rest = append(rest, q.items[i+1:]...)
		if err := q.persist.SaveQueue(rest); err != nil {
			return fmt.Errorf("persist queue: %w", err)
		}
		q.items = rest
		return nil
	}
	return domain.ErrNotFound
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) Snapshot() []domain.Mutation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.Mutation(nil), q.items...)
}

// RewriteProductID patches not-yet-replayed entries that reference a
// temporary product identifier: update/delete targets, create payloads,
// and sale line items recorded in the same offline session.
func (q *Queue) RewriteProductID(tempID int64, permID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	changed := false
	for i := range q.items {
		m := &q.items[i]
		if m.ProductID == tempID {
			m.ProductID = permID
			changed = true
		}
		if m.Product != nil && m.Product.ID == tempID {
			m.Product.ID = permID
			changed = true
		}
		if m.Sale != nil {
			for j := range m.Sale.Items {
				if m.Sale.Items[j].ProductID == tempID {
					m.Sale.Items[j].ProductID = permID
					changed = true
				}
			}
		}
	}
	if !changed {
		return nil
	}
	if err := q.persist.SaveQueue(q.items); err != nil {
		return fmt.Errorf("persist queue: %w", err)
	}
	return nil
}

func (q *Queue) RewriteCustomerID(tempID int64, permID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	changed := false
	for i := range q.items {
		m := &q.items[i]
		if m.CustomerID == tempID {
			m.CustomerID = permID
			changed = true
		}
		if m.Customer != nil && m.Customer.ID == tempID {
			m.Customer.ID = permID
			changed = true
		}
		if m.Sale != nil && m.Sale.CustomerID == tempID {
			m.Sale.CustomerID = permID
			changed = true
		}
	}
	if !changed {
		return nil
	}
	if err := q.persist.SaveQueue(q.items); err != nil {
		return fmt.Errorf("persist queue: %w", err)
	}
	return nil
}
