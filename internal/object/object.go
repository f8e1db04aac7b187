// Package object owns the proxy-facing domain types.
//
// Ownership boundary:
// - object identity
// - the distributed object handle contract
// - lifecycle event records and listener contract
// - lifecycle failure types
package object

import "fmt"

// ID identifies one distributed object within a service. IDs are opaque to
// the registry; value equality is the only operation it relies on.
type ID string

func (id ID) String() string {
	return string(id)
}

// DistributedObject is the node-local handle for a cluster-visible resource.
// The registry holds one canonical handle per (service, id); callers may keep
// their own references past removal, but cluster operations against a removed
// handle fail with a DestroyedError.
type DistributedObject interface {
	ServiceName() string
	ObjectID() ID
}

// EventType is a lifecycle transition kind.
type EventType int

const (
	EventCreated EventType = iota
	EventDestroyed
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("eventtype(%d)", int(t))
	}
}

// LifecycleEvent records one lifecycle transition for a (service, id) pair.
// Events are values; they are never mutated after publication.
type LifecycleEvent struct {
	Type        EventType
	ServiceName string
	ObjectID    ID
}

// Listener observes lifecycle transitions on the local node.
type Listener interface {
	ObjectCreated(ev LifecycleEvent)
	ObjectDestroyed(ev LifecycleEvent)
}
