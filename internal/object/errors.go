package object

import "fmt"

// DestroyedError reports an operation against an object that has been
// destroyed. Waiters parked on the object are failed with this error.
type DestroyedError struct {
	ServiceName string
	ObjectID    ID
}

func (e *DestroyedError) Error() string {
	return fmt.Sprintf("object: %s/%s destroyed", e.ServiceName, e.ObjectID)
}

// ConsensusError reports a failure from a consensus-backed service. LeaderID
// carries the leader known at failure time, empty when no leader was known;
// callers may retry against that member instead of broadcasting.
type ConsensusError struct {
	Message  string
	LeaderID string
	Err      error
}

func (e *ConsensusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("consensus: %s: %v", e.Message, e.Err)
	}
	return "consensus: " + e.Message
}

func (e *ConsensusError) Unwrap() error {
	return e.Err
}

// KnownLeader returns the leader member id captured when the error was
// raised, if one was known.
func (e *ConsensusError) KnownLeader() (string, bool) {
	return e.LeaderID, e.LeaderID != ""
}
