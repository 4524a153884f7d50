package contingency

import (
	"context"
	"slices"
	"sync"

	"facturasv/pkg/platform/sentinel"
)

// InMemoryQueue keeps contingency entries in process memory. Suitable for
// tests and single-instance deployments that accept losing the queue on
// restart; production uses the redis variant.
type InMemoryQueue struct {
	mu     sync.RWMutex
	queues map[string][]Entry
	order  []string // NITs in first-enqueue order
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{queues: make(map[string][]Entry)}
}

func (q *InMemoryQueue) Enqueue(_ context.Context, entry Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.queues[entry.TaxpayerNIT]; !ok {
		q.order = append(q.order, entry.TaxpayerNIT)
	}
	q.queues[entry.TaxpayerNIT] = append(q.queues[entry.TaxpayerNIT], entry)
	return nil
}

func (q *InMemoryQueue) Taxpayers(_ context.Context) ([]string, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return slices.Clone(q.order), nil
}

func (q *InMemoryQueue) Peek(_ context.Context, nit string) (Entry, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	entries := q.queues[nit]
	if len(entries) == 0 {
		return Entry{}, sentinel.ErrNotFound
	}
	return entries[0], nil
}

func (q *InMemoryQueue) Ack(_ context.Context, nit string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries := q.queues[nit]
	if len(entries) == 0 {
		return sentinel.ErrNotFound
	}
	if len(entries) == 1 {
		delete(q.queues, nit)
		q.order = slices.DeleteFunc(q.order, func(s string) bool { return s == nit })
		return nil
	}
	q.queues[nit] = entries[1:]
	return nil
}

func (q *InMemoryQueue) Entries(_ context.Context, nit string) ([]Entry, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return slices.Clone(q.queues[nit]), nil
}

func (q *InMemoryQueue) Depth(_ context.Context) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	n := 0
	for _, entries := range q.queues {
		n += len(entries)
	}
	return n, nil
}
