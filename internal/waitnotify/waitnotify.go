// Package waitnotify owns the table of operations parked awaiting a response
// tied to one (service, object id) pair, and their cancellation.
package waitnotify

import (
	"context"
	"sync"

	"github.com/danmuck/gridctl/internal/object"
)

type waitKey struct {
	service  string
	objectID object.ID
}

// Waiter is one parked operation. It completes through Wait when the awaited
// response arrives (Notify) or the object is torn down (CancelWaiters).
type Waiter struct {
	done chan error
	once sync.Once
}

func (w *Waiter) complete(err error) {
	w.once.Do(func() {
		w.done <- err
		close(w.done)
	})
}

// Wait blocks until the waiter completes or ctx ends.
func (w *Waiter) Wait(ctx context.Context) error {
	select {
	case err := <-w.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Table tracks parked waiters per (service, object id).
type Table struct {
	mu      sync.Mutex
	waiters map[waitKey][]*Waiter
}

func NewTable() *Table {
	return &Table{waiters: make(map[waitKey][]*Waiter)}
}

// Park registers a new waiter for (service, id).
func (t *Table) Park(service string, id object.ID) *Waiter {
	w := &Waiter{done: make(chan error, 1)}
	key := waitKey{service: service, objectID: id}

	t.mu.Lock()
	t.waiters[key] = append(t.waiters[key], w)
	t.mu.Unlock()
	return w
}

// Notify completes every waiter parked on (service, id) successfully.
func (t *Table) Notify(service string, id object.ID) {
	t.drain(service, id, nil)
}

// CancelWaiters fails every waiter parked on (service, id) with err. Used by
// object teardown so parked operations observe the destruction promptly.
func (t *Table) CancelWaiters(service string, id object.ID, err error) {
	t.drain(service, id, err)
}

func (t *Table) drain(service string, id object.ID, err error) {
	key := waitKey{service: service, objectID: id}

	t.mu.Lock()
	parked := t.waiters[key]
	delete(t.waiters, key)
	t.mu.Unlock()

	for _, w := range parked {
		w.complete(err)
	}
}

// Parked reports how many waiters are currently parked on (service, id).
func (t *Table) Parked(service string, id object.ID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiters[waitKey{service: service, objectID: id}])
}
