package cluster

import (
	"context"

	"github.com/danmuck/gridctl/internal/operation"
)

// Call is one outstanding operation invocation against a member.
type Call struct {
	target Member
	done   chan error
}

func newCall(target Member) *Call {
	return &Call{target: target, done: make(chan error, 1)}
}

func (c *Call) Target() Member {
	return c.target
}

// Done yields the invocation result exactly once: nil is the remote member's
// acknowledgement, anything else means the retry budget was exhausted.
func (c *Call) Done() <-chan error {
	return c.done
}

func (c *Call) finish(err error) {
	c.done <- err
	close(c.done)
}

// Invoker submits operations to members. Submission never blocks the caller;
// the result arrives through the returned call.
type Invoker interface {
	// Submit dispatches op to target with up to tryCount delivery attempts.
	Submit(ctx context.Context, target Member, op operation.Operation, tryCount int) *Call
}
