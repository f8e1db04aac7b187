// Package cluster owns membership and per-member operation invocation.
//
// Ownership boundary:
// - the member record and membership view
// - asynchronous operation submission with a per-invocation retry budget
//
// Transport here is in-process; real network transport is out of scope. The
// invocation semantics (serialize on every hop, retry budget, asynchronous
// completion, unreachable members) are what the rest of the system depends on.
package cluster

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Member is one node participating in the cluster.
type Member struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// NewMember builds a member record, generating an id when none is given.
func NewMember(id, address string) Member {
	if strings.TrimSpace(id) == "" {
		id = "member." + uuid.NewString()[:8]
	}
	return Member{ID: id, Address: address}
}

// Membership is this node's view of the cluster. Snapshots are weakly
// consistent with concurrent joins and removals.
type Membership struct {
	self Member

	mu      sync.RWMutex
	members map[string]Member
}

// NewMembership creates a view containing only self.
func NewMembership(self Member) *Membership {
	m := &Membership{
		self:    self,
		members: make(map[string]Member),
	}
	m.members[self.ID] = self
	return m
}

func (m *Membership) Self() Member {
	return m.self
}

// Add records a member joining the cluster.
func (m *Membership) Add(member Member) {
	m.mu.Lock()
	m.members[member.ID] = member
	m.mu.Unlock()
}

// Remove drops a member from the view.
func (m *Membership) Remove(id string) {
	m.mu.Lock()
	delete(m.members, id)
	m.mu.Unlock()
}

// Members returns all known members in deterministic id order.
func (m *Membership) Members() []Member {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Member, 0, len(m.members))
	for _, member := range m.members {
		out = append(out, member)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Others returns every known member except self, in deterministic id order.
func (m *Membership) Others() []Member {
	all := m.Members()
	out := all[:0]
	for _, member := range all {
		if member.ID != m.self.ID {
			out = append(out, member)
		}
	}
	return out
}
