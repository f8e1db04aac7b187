package kv

import (
	"sync"

	"github.com/danmuck/gridctl/internal/object"
	"github.com/danmuck/gridctl/internal/remote"
)

// ConsensusServiceName identifies the leader-guarded map service.
const ConsensusServiceName = "grid.ckv"

// CapabilityConsensus tags services backed by a consensus group.
const CapabilityConsensus remote.Capability = "consensus"

// ConsensusService guards a map service behind a leader check. It is not a
// consensus implementation; it reproduces the failure surface of one so
// callers can exercise known-leader retry: any lifecycle operation invoked on
// a non-leader member fails with a ConsensusError carrying the leader known
// at that moment.
type ConsensusService struct {
	memberID string
	inner    *Service

	mu       sync.RWMutex
	leaderID string
}

// NewConsensusService builds the leader-guarded service for one member.
// leaderID may be empty when no leader is known yet.
func NewConsensusService(memberID, leaderID string) *ConsensusService {
	return &ConsensusService{
		memberID: memberID,
		inner:    newNamedService(ConsensusServiceName),
		leaderID: leaderID,
	}
}

// SetLeader records a leadership change.
func (s *ConsensusService) SetLeader(leaderID string) {
	s.mu.Lock()
	s.leaderID = leaderID
	s.mu.Unlock()
}

func (s *ConsensusService) ServiceName() string {
	return ConsensusServiceName
}

func (s *ConsensusService) Capabilities() []remote.Capability {
	return []remote.Capability{Capability, CapabilityConsensus}
}

func (s *ConsensusService) CreateProxy(id object.ID) (object.DistributedObject, error) {
	if err := s.requireLeader("create"); err != nil {
		return nil, err
	}
	return s.inner.CreateProxy(id)
}

func (s *ConsensusService) CreateClientProxy(id object.ID) (object.DistributedObject, error) {
	if err := s.requireLeader("create client"); err != nil {
		return nil, err
	}
	return s.inner.CreateClientProxy(id)
}

func (s *ConsensusService) DestroyObject(id object.ID) error {
	if err := s.requireLeader("destroy"); err != nil {
		return err
	}
	return s.inner.DestroyObject(id)
}

func (s *ConsensusService) requireLeader(op string) error {
	s.mu.RLock()
	leader := s.leaderID
	s.mu.RUnlock()
	if leader == s.memberID {
		return nil
	}
	return &object.ConsensusError{
		Message:  op + " invoked on non-leader member " + s.memberID,
		LeaderID: leader,
	}
}
