// Package kv is the in-memory map service of the grid: one keyed store per
// object id, fronted by proxy handles handed out through the coordinator.
package kv

import (
	"sort"
	"sync"

	"github.com/danmuck/gridctl/internal/object"
	"github.com/danmuck/gridctl/internal/remote"
)

const (
	// ServiceName is the canonical service identifier for grid maps.
	ServiceName = "grid.kv"

	// Capability tags services that expose keyed map objects.
	Capability remote.Capability = "kv"
)

// Service owns the node-local backing stores, one per object id. Proxy
// handles share the backing store for their id, so canonical and client
// proxies observe the same data.
type Service struct {
	name string

	mu     sync.RWMutex
	stores map[object.ID]*store
}

type store struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewService constructs a map service with no stores.
func NewService() *Service {
	return newNamedService(ServiceName)
}

// newNamedService backs wrapper services that publish the same map objects
// under their own service name.
func newNamedService(name string) *Service {
	return &Service{name: name, stores: make(map[object.ID]*store)}
}

func (s *Service) ServiceName() string {
	return s.name
}

func (s *Service) Capabilities() []remote.Capability {
	return []remote.Capability{Capability}
}

// CreateProxy builds the canonical handle for id. The backing store is
// get-or-created, which keeps construction idempotent under the registry's
// build-and-discard races.
func (s *Service) CreateProxy(id object.ID) (object.DistributedObject, error) {
	s.ensureStore(id)
	return &Map{svc: s, id: id}, nil
}

// CreateClientProxy builds a client-facing handle for id. It is a distinct
// instance over the same backing store.
func (s *Service) CreateClientProxy(id object.ID) (object.DistributedObject, error) {
	s.ensureStore(id)
	return &Map{svc: s, id: id, client: true}, nil
}

// DestroyObject drops the backing store for id. Handles still held by
// callers fail with a destroyed-object error afterwards.
func (s *Service) DestroyObject(id object.ID) error {
	s.mu.Lock()
	delete(s.stores, id)
	s.mu.Unlock()
	return nil
}

func (s *Service) ensureStore(id object.ID) *store {
	s.mu.RLock()
	st, ok := s.stores[id]
	s.mu.RUnlock()
	if ok {
		return st
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stores[id]; ok {
		return st
	}
	st = &store{data: make(map[string]string)}
	s.stores[id] = st
	return st
}

func (s *Service) lookupStore(id object.ID) (*store, error) {
	s.mu.RLock()
	st, ok := s.stores[id]
	s.mu.RUnlock()
	if !ok {
		return nil, &object.DestroyedError{ServiceName: s.name, ObjectID: id}
	}
	return st, nil
}

// Map is the distributed object handle for one grid map.
type Map struct {
	svc    *Service
	id     object.ID
	client bool
}

var _ object.DistributedObject = (*Map)(nil)

func (m *Map) ServiceName() string {
	return m.svc.name
}

func (m *Map) ObjectID() object.ID {
	return m.id
}

// Client reports whether this handle came off the client-proxy path.
func (m *Map) Client() bool {
	return m.client
}

func (m *Map) Put(key, value string) error {
	st, err := m.svc.lookupStore(m.id)
	if err != nil {
		return err
	}
	st.mu.Lock()
	st.data[key] = value
	st.mu.Unlock()
	return nil
}

func (m *Map) Get(key string) (string, bool, error) {
	st, err := m.svc.lookupStore(m.id)
	if err != nil {
		return "", false, err
	}
	st.mu.RLock()
	val, ok := st.data[key]
	st.mu.RUnlock()
	return val, ok, nil
}

func (m *Map) Delete(key string) error {
	st, err := m.svc.lookupStore(m.id)
	if err != nil {
		return err
	}
	st.mu.Lock()
	delete(st.data, key)
	st.mu.Unlock()
	return nil
}

// Keys returns the map's keys in deterministic order.
func (m *Map) Keys() ([]string, error) {
	st, err := m.svc.lookupStore(m.id)
	if err != nil {
		return nil, err
	}
	st.mu.RLock()
	keys := make([]string, 0, len(st.data))
	for k := range st.data {
		keys = append(keys, k)
	}
	st.mu.RUnlock()
	sort.Strings(keys)
	return keys, nil
}

func (m *Map) Size() (int, error) {
	st, err := m.svc.lookupStore(m.id)
	if err != nil {
		return 0, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.data), nil
}
