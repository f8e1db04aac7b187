package proxy

import (
	"sync"

	"github.com/danmuck/gridctl/internal/event"
	"github.com/danmuck/gridctl/internal/object"
	"github.com/danmuck/gridctl/internal/observability"
	"github.com/danmuck/gridctl/internal/remote"
)

// Registry caches the distributed object handles of one service on this node.
// Canonical and client proxies live in independent maps; the same id may be
// cached in both, the instances are never shared between them.
type Registry struct {
	serviceName string
	service     remote.Service
	memberID    string

	events *event.Endpoint
	notify func(ev object.LifecycleEvent)

	mu            sync.RWMutex
	proxies       map[object.ID]object.DistributedObject
	clientProxies map[object.ID]object.DistributedObject
}

func newRegistry(memberID string, svc remote.Service, events *event.Endpoint, notify func(object.LifecycleEvent)) *Registry {
	return &Registry{
		serviceName:   svc.ServiceName(),
		service:       svc,
		memberID:      memberID,
		events:        events,
		notify:        notify,
		proxies:       make(map[object.ID]object.DistributedObject),
		clientProxies: make(map[object.ID]object.DistributedObject),
	}
}

func (r *Registry) ServiceName() string {
	return r.serviceName
}

// GetProxy returns the canonical handle for id, constructing it on first
// access. Construction runs outside the lock, so racing callers may each
// build an instance; only the first insert is adopted and losers take the
// winner's handle. The winning insert publishes CREATED on the cluster
// channel and schedules the direct local-listener notification.
func (r *Registry) GetProxy(id object.ID) (object.DistributedObject, error) {
	r.mu.RLock()
	proxy, ok := r.proxies[id]
	r.mu.RUnlock()
	if ok {
		return proxy, nil
	}

	built, err := r.service.CreateProxy(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if current, ok := r.proxies[id]; ok {
		r.mu.Unlock()
		return current, nil
	}
	r.proxies[id] = built
	r.mu.Unlock()

	ev := object.LifecycleEvent{Type: object.EventCreated, ServiceName: r.serviceName, ObjectID: id}
	observability.RecordProxyCreated(r.memberID, r.serviceName)
	r.events.Publish(ev)
	r.events.Execute(func() { r.notify(ev) })
	return built, nil
}

// GetClientProxy returns the client-facing handle for id, constructing it on
// first access. This path never emits a CREATED event; that gap is inherited
// behavior and is pinned by tests.
func (r *Registry) GetClientProxy(id object.ID) (object.DistributedObject, error) {
	r.mu.RLock()
	proxy, ok := r.clientProxies[id]
	r.mu.RUnlock()
	if ok {
		return proxy, nil
	}

	built, err := r.service.CreateClientProxy(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if current, ok := r.clientProxies[id]; ok {
		r.mu.Unlock()
		return current, nil
	}
	r.clientProxies[id] = built
	r.mu.Unlock()
	return built, nil
}

// DestroyProxy removes the canonical handle and publishes DESTROYED, but only
// when something was actually removed. Destroying an absent id is a silent
// no-op.
func (r *Registry) DestroyProxy(id object.ID) {
	r.mu.Lock()
	_, ok := r.proxies[id]
	delete(r.proxies, id)
	r.mu.Unlock()
	if !ok {
		return
	}

	observability.RecordProxyDestroyed(r.memberID, r.serviceName)
	r.events.Publish(object.LifecycleEvent{
		Type:        object.EventDestroyed,
		ServiceName: r.serviceName,
		ObjectID:    id,
	})
}

// RemoveProxy drops id from both caches without emitting events. Receivers of
// an externally-originated destroy use this so reconciliation never
// re-triggers cluster propagation.
func (r *Registry) RemoveProxy(id object.ID) {
	r.mu.Lock()
	delete(r.proxies, id)
	delete(r.clientProxies, id)
	r.mu.Unlock()
}

// Contains reports whether the canonical cache holds id.
func (r *Registry) Contains(id object.ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.proxies[id]
	return ok
}

// Objects snapshots the canonical handles. Weakly consistent under
// concurrent mutation.
func (r *Registry) Objects() []object.DistributedObject {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]object.DistributedObject, 0, len(r.proxies))
	for _, p := range r.proxies {
		out = append(out, p)
	}
	return out
}

// DestroyAll clears both caches without events; shutdown path only.
func (r *Registry) DestroyAll() {
	r.mu.Lock()
	r.proxies = make(map[object.ID]object.DistributedObject)
	r.clientProxies = make(map[object.ID]object.DistributedObject)
	r.mu.Unlock()
}
