// Package event owns the named lifecycle event channel.
//
// Ownership boundary:
// - per-member registration on the shared channel
// - cluster-wide publish (reaches the publisher's own member too)
// - async local-only delivery tasks
//
// Delivery is one goroutine per member endpoint; a full queue drops the task
// instead of blocking the publisher, and the drop is counted.
package event

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/gridctl/internal/object"
	"github.com/danmuck/gridctl/internal/observability"
)

var (
	ErrEndpointExists = errors.New("event: endpoint already registered")
	ErrClosed         = errors.New("event: endpoint closed")
)

// DefaultQueueSize bounds one endpoint's pending delivery tasks.
const DefaultQueueSize = 256

// Handler receives cluster-published lifecycle events on the endpoint's
// dispatch goroutine.
type Handler interface {
	OnClusterEvent(ev object.LifecycleEvent)
}

// Hub is one named cluster-wide lifecycle channel shared by every member in
// the process.
type Hub struct {
	name string

	mu        sync.RWMutex
	endpoints map[string]*Endpoint
}

// NewHub creates an empty channel with the given name.
func NewHub(name string) *Hub {
	return &Hub{name: name, endpoints: make(map[string]*Endpoint)}
}

func (h *Hub) Name() string {
	return h.name
}

// Register attaches a member endpoint to the channel and starts its
// dispatcher.
func (h *Hub) Register(memberID string, queueSize int) (*Endpoint, error) {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.endpoints[memberID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrEndpointExists, memberID)
	}
	ep := &Endpoint{
		hub:      h,
		memberID: memberID,
		tasks:    make(chan func(), queueSize),
		closed:   make(chan struct{}),
	}
	h.endpoints[memberID] = ep
	go ep.dispatch()
	return ep, nil
}

// Registrations returns deterministic member id ordering of attached
// endpoints.
func (h *Hub) Registrations() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.endpoints))
	for id := range h.endpoints {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Hub) snapshot() []*Endpoint {
	h.mu.RLock()
	defer h.mu.RUnlock()
	eps := make([]*Endpoint, 0, len(h.endpoints))
	for _, ep := range h.endpoints {
		eps = append(eps, ep)
	}
	return eps
}

func (h *Hub) remove(memberID string) {
	h.mu.Lock()
	delete(h.endpoints, memberID)
	h.mu.Unlock()
}

// Endpoint is one member's attachment to the channel.
type Endpoint struct {
	hub      *Hub
	memberID string

	hmu     sync.RWMutex
	handler Handler

	tasks     chan func()
	closed    chan struct{}
	closeOnce sync.Once
}

func (e *Endpoint) MemberID() string {
	return e.memberID
}

// Subscribe sets the handler receiving cluster events on this endpoint.
func (e *Endpoint) Subscribe(h Handler) {
	e.hmu.Lock()
	e.handler = h
	e.hmu.Unlock()
}

// Publish delivers ev to every endpoint registered on the channel, including
// this one. The publishing endpoint's handler runs inline so a publisher
// observes its own event before Publish returns; every other endpoint gets
// asynchronous dispatcher delivery.
func (e *Endpoint) Publish(ev object.LifecycleEvent) {
	for _, ep := range e.hub.snapshot() {
		if ep == e {
			runIsolated(ep.memberID, func() {
				ep.hmu.RLock()
				h := ep.handler
				ep.hmu.RUnlock()
				if h != nil {
					h.OnClusterEvent(ev)
				}
			})
			continue
		}
		ep.deliver(ev)
	}
}

// Execute schedules fn on this endpoint's dispatcher, local-only.
func (e *Endpoint) Execute(fn func()) {
	e.enqueue(fn)
}

// Close detaches the endpoint and stops its dispatcher. Pending tasks drain.
func (e *Endpoint) Close() {
	e.closeOnce.Do(func() {
		e.hub.remove(e.memberID)
		close(e.closed)
	})
}

func (e *Endpoint) deliver(ev object.LifecycleEvent) {
	e.enqueue(func() {
		e.hmu.RLock()
		h := e.handler
		e.hmu.RUnlock()
		if h != nil {
			h.OnClusterEvent(ev)
		}
	})
}

func (e *Endpoint) enqueue(fn func()) {
	select {
	case <-e.closed:
		return
	default:
	}
	select {
	case e.tasks <- fn:
		observability.RecordEventDispatched(e.memberID)
	default:
		observability.RecordEventDropped(e.memberID)
		log.Warn().
			Str("member", e.memberID).
			Str("channel", e.hub.name).
			Msg("event queue full, task dropped")
	}
}

func (e *Endpoint) dispatch() {
	for {
		select {
		case fn := <-e.tasks:
			runIsolated(e.memberID, fn)
		case <-e.closed:
			// Drain what was queued before close.
			for {
				select {
				case fn := <-e.tasks:
					runIsolated(e.memberID, fn)
				default:
					return
				}
			}
		}
	}
}

// runIsolated keeps one panicking task from killing the dispatcher.
func runIsolated(memberID string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("member", memberID).
				Interface("panic", r).
				Msg("event task panicked")
		}
	}()
	fn()
}
