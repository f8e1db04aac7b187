// Package remote owns the capability surface a data service exposes to the
// proxy layer, plus the lookup table resolving services by name or capability.
package remote

import "github.com/danmuck/gridctl/internal/object"

// Capability tags one kind of behavior a service provides. Resolution is by
// tag through the manager's table, never by runtime type inspection.
type Capability string

// Service is implemented once per registered data service. Proxy construction
// must tolerate build-and-discard: under a creation race the registry keeps
// exactly one instance and drops the rest, so CreateProxy side effects must
// be idempotent.
type Service interface {
	ServiceName() string
	Capabilities() []Capability

	CreateProxy(id object.ID) (object.DistributedObject, error)
	CreateClientProxy(id object.ID) (object.DistributedObject, error)

	// DestroyObject tears down the backing resource for id on this node.
	DestroyObject(id object.ID) error
}
