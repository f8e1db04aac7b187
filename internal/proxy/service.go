// Package proxy owns distributed object lifecycle on one member.
//
// Ownership boundary:
// - the per-service registry table and its get-or-create
// - cluster-wide destroy fan-out
// - lifecycle listener registration and dispatch
//
// Local effect is authoritative: destroy always completes on the calling
// member before any remote result is awaited. Cross-cluster propagation is
// best effort; unreachable members are logged and abandoned.
package proxy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/gridctl/internal/cluster"
	"github.com/danmuck/gridctl/internal/event"
	"github.com/danmuck/gridctl/internal/object"
	"github.com/danmuck/gridctl/internal/observability"
	"github.com/danmuck/gridctl/internal/operation"
	"github.com/danmuck/gridctl/internal/remote"
	"github.com/danmuck/gridctl/internal/waitnotify"
)

// ChannelName is the lifecycle event channel this coordinator registers on.
const ChannelName = "proxy.lifecycle"

// Config bounds the cluster destroy fan-out.
type Config struct {
	// DestroyTryCount is the per-invocation delivery retry budget.
	DestroyTryCount int
	// DestroyWait is the absolute deadline for joining all outstanding
	// destroy invocations, regardless of member count.
	DestroyWait time.Duration
}

func DefaultConfig() Config {
	return Config{
		DestroyTryCount: 10,
		DestroyWait:     3 * time.Second,
	}
}

// Service coordinates proxy lifecycle for every registered data service on
// this member.
type Service struct {
	cfg        Config
	manager    *remote.Manager
	membership *cluster.Membership
	invoker    cluster.Invoker
	events     *event.Endpoint
	waiters    *waitnotify.Table
	logger     zerolog.Logger

	mu         sync.RWMutex
	registries map[string]*Registry

	lmu       sync.RWMutex
	listeners map[object.Listener]struct{}
}

var _ operation.Context = (*Service)(nil)
var _ event.Handler = (*Service)(nil)

// NewService wires a coordinator and subscribes it to the lifecycle channel
// endpoint it was given.
func NewService(cfg Config, manager *remote.Manager, membership *cluster.Membership, invoker cluster.Invoker, events *event.Endpoint, waiters *waitnotify.Table) *Service {
	if cfg.DestroyTryCount <= 0 {
		cfg.DestroyTryCount = DefaultConfig().DestroyTryCount
	}
	if cfg.DestroyWait <= 0 {
		cfg.DestroyWait = DefaultConfig().DestroyWait
	}
	s := &Service{
		cfg:        cfg,
		manager:    manager,
		membership: membership,
		invoker:    invoker,
		events:     events,
		waiters:    waiters,
		logger:     log.With().Str("member", membership.Self().ID).Logger(),
		registries: make(map[string]*Registry),
		listeners:  make(map[object.Listener]struct{}),
	}
	events.Subscribe(s)
	return s
}

func (s *Service) MemberID() string {
	return s.membership.Self().ID
}

// registry returns the service's registry, creating it on first reference.
// Exactly one registry instance is adopted per service name even when first
// access races; an unknown service name fails fast and is never retried.
func (s *Service) registry(serviceName string) (*Registry, error) {
	s.mu.RLock()
	reg, ok := s.registries[serviceName]
	s.mu.RUnlock()
	if ok {
		return reg, nil
	}

	svc, ok := s.manager.Resolve(serviceName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", remote.ErrUnknownService, serviceName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if reg, ok := s.registries[serviceName]; ok {
		return reg, nil
	}
	reg = newRegistry(s.MemberID(), svc, s.events, s.notifyListeners)
	s.registries[serviceName] = reg
	return reg, nil
}

func (s *Service) lookupRegistry(serviceName string) (*Registry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.registries[serviceName]
	return reg, ok
}

// GetObject returns the canonical handle for (serviceName, id), creating the
// registry and the proxy as needed.
func (s *Service) GetObject(serviceName string, id object.ID) (object.DistributedObject, error) {
	reg, err := s.registry(serviceName)
	if err != nil {
		return nil, err
	}
	return reg.GetProxy(id)
}

// GetObjectByCapability resolves a service advertising cap and delegates to
// GetObject.
func (s *Service) GetObjectByCapability(cap remote.Capability, id object.ID) (object.DistributedObject, error) {
	svc, ok := s.manager.ResolveByCapability(cap)
	if !ok {
		return nil, fmt.Errorf("%w: %s", remote.ErrNoCapability, cap)
	}
	return s.GetObject(svc.ServiceName(), id)
}

// GetClientObject returns the client-facing handle for (serviceName, id).
// No CREATED event fires on this path.
func (s *Service) GetClientObject(serviceName string, id object.ID) (object.DistributedObject, error) {
	reg, err := s.registry(serviceName)
	if err != nil {
		return nil, err
	}
	return reg.GetClientProxy(id)
}

// DestroyObject removes (serviceName, id) cluster-wide. The local member is
// cleaned up synchronously before any remote result is awaited; remote
// invocations run in parallel and are joined under one absolute deadline.
// Per-member failures are logged and never surfaced to the caller.
func (s *Service) DestroyObject(ctx context.Context, serviceName string, id object.ID) error {
	op := operation.Destroy{Service: serviceName, ObjectID: id}
	if err := op.Validate(); err != nil {
		return err
	}
	start := time.Now()

	fanCtx, cancel := context.WithTimeout(ctx, s.cfg.DestroyWait)
	defer cancel()

	others := s.membership.Others()
	calls := make([]*cluster.Call, 0, len(others))
	for _, member := range others {
		calls = append(calls, s.invoker.Submit(fanCtx, member, op, s.cfg.DestroyTryCount))
	}

	// Authoritative local effect, before any remote wait.
	if reg, ok := s.lookupRegistry(serviceName); ok {
		reg.DestroyProxy(id)
	}
	if err := s.DestroyLocalObject(serviceName, id); err != nil {
		s.logger.Debug().
			Str("service", serviceName).
			Str("object", id.String()).
			Err(err).
			Msg("local teardown failed")
	}

	for _, call := range calls {
		select {
		case err := <-call.Done():
			if err != nil {
				observability.RecordDestroyFanoutFailure(s.MemberID(), call.Target().ID)
				s.logger.Debug().
					Str("service", serviceName).
					Str("object", id.String()).
					Str("target", call.Target().ID).
					Err(err).
					Msg("destroy invocation failed")
			}
		case <-fanCtx.Done():
			observability.RecordDestroyFanoutFailure(s.MemberID(), call.Target().ID)
			s.logger.Debug().
				Str("service", serviceName).
				Str("object", id.String()).
				Str("target", call.Target().ID).
				Msg("destroy invocation abandoned at deadline")
		}
	}

	// Defensive removal in case a racing GetObject re-cached the id while the
	// fan-out was in flight.
	if reg, ok := s.lookupRegistry(serviceName); ok {
		reg.DestroyProxy(id)
	}
	observability.ObserveDestroyDuration(s.MemberID(), serviceName, time.Since(start))
	return nil
}

// DestroyLocalObject tears down the backing resource on this member and fails
// every operation parked on (serviceName, id) with a destroyed-object error.
// Called by the local destroy path and by inbound destroy operations.
func (s *Service) DestroyLocalObject(serviceName string, id object.ID) error {
	var err error
	if svc, ok := s.manager.Resolve(serviceName); ok {
		err = svc.DestroyObject(id)
	}
	s.waiters.CancelWaiters(serviceName, id, &object.DestroyedError{
		ServiceName: serviceName,
		ObjectID:    id,
	})
	return err
}

// RemoveProxy implements operation.Context for inbound destroy operations.
func (s *Service) RemoveProxy(serviceName string, id object.ID) {
	if reg, ok := s.lookupRegistry(serviceName); ok {
		reg.RemoveProxy(id)
	}
}

// Objects snapshots one service's canonical handles.
func (s *Service) Objects(serviceName string) []object.DistributedObject {
	reg, ok := s.lookupRegistry(serviceName)
	if !ok {
		return nil
	}
	return reg.Objects()
}

// AllObjects snapshots every service's canonical handles.
func (s *Service) AllObjects() []object.DistributedObject {
	s.mu.RLock()
	regs := make([]*Registry, 0, len(s.registries))
	for _, reg := range s.registries {
		regs = append(regs, reg)
	}
	s.mu.RUnlock()

	out := make([]object.DistributedObject, 0)
	for _, reg := range regs {
		out = append(out, reg.Objects()...)
	}
	return out
}

func (s *Service) AddListener(l object.Listener) {
	s.lmu.Lock()
	s.listeners[l] = struct{}{}
	s.lmu.Unlock()
}

func (s *Service) RemoveListener(l object.Listener) {
	s.lmu.Lock()
	delete(s.listeners, l)
	s.lmu.Unlock()
}

// OnClusterEvent handles events arriving over the lifecycle channel,
// including this member's own publications. A CREATED event is suppressed
// when the registry already holds the object: the creating member notified
// its listeners through the direct path, forwarding it again would deliver
// twice. DESTROYED always reconciles the local registry and always notifies.
func (s *Service) OnClusterEvent(ev object.LifecycleEvent) {
	switch ev.Type {
	case object.EventCreated:
		if reg, ok := s.lookupRegistry(ev.ServiceName); ok && reg.Contains(ev.ObjectID) {
			return
		}
		s.notifyListeners(ev)
	case object.EventDestroyed:
		if reg, ok := s.lookupRegistry(ev.ServiceName); ok {
			reg.RemoveProxy(ev.ObjectID)
		}
		s.notifyListeners(ev)
	}
}

// notifyListeners delivers ev to every registered listener. One faulty
// listener must not break delivery to the rest.
func (s *Service) notifyListeners(ev object.LifecycleEvent) {
	s.lmu.RLock()
	snapshot := make([]object.Listener, 0, len(s.listeners))
	for l := range s.listeners {
		snapshot = append(snapshot, l)
	}
	s.lmu.RUnlock()

	for _, l := range snapshot {
		s.notifyOne(l, ev)
	}
}

func (s *Service) notifyOne(l object.Listener, ev object.LifecycleEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("service", ev.ServiceName).
				Str("object", ev.ObjectID.String()).
				Interface("panic", r).
				Msg("lifecycle listener panicked")
		}
	}()
	switch ev.Type {
	case object.EventCreated:
		l.ObjectCreated(ev)
	case object.EventDestroyed:
		l.ObjectDestroyed(ev)
	}
}

// Shutdown clears every registry and the listener set without emitting
// events. Process shutdown path only.
func (s *Service) Shutdown() {
	s.mu.Lock()
	for _, reg := range s.registries {
		reg.DestroyAll()
	}
	s.registries = make(map[string]*Registry)
	s.mu.Unlock()

	s.lmu.Lock()
	s.listeners = make(map[object.Listener]struct{})
	s.lmu.Unlock()
}
