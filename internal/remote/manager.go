package remote

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrServiceNil     = errors.New("remote: service is nil")
	ErrServiceExists  = errors.New("remote: service already registered")
	ErrUnknownService = errors.New("remote: unknown service")
	ErrNoCapability   = errors.New("remote: no service with capability")
)

// Manager stores registered services by stable name.
type Manager struct {
	mu    sync.RWMutex
	items map[string]Service
}

// NewManager creates an empty service table.
func NewManager() *Manager {
	return &Manager{items: make(map[string]Service)}
}

// Register adds a service to the table.
func (m *Manager) Register(svc Service) error {
	if svc == nil {
		return ErrServiceNil
	}
	name := strings.TrimSpace(svc.ServiceName())
	if name == "" {
		return fmt.Errorf("%w: empty service name", ErrServiceNil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[name]; ok {
		return fmt.Errorf("%w: %s", ErrServiceExists, name)
	}
	m.items[name] = svc
	return nil
}

// Resolve returns a service by name.
func (m *Manager) Resolve(name string) (Service, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	svc, ok := m.items[name]
	return svc, ok
}

// ResolveByCapability returns the first registered service advertising cap.
func (m *Manager) ResolveByCapability(cap Capability) (Service, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, svc := range m.items {
		for _, c := range svc.Capabilities() {
			if c == cap {
				return svc, true
			}
		}
	}
	return nil, false
}

// Names returns deterministic service name ordering.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.items))
	for name := range m.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
