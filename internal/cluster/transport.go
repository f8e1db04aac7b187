package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/gridctl/internal/operation"
)

var (
	ErrMemberUnreachable = errors.New("cluster: member unreachable")
	ErrExecutorExists    = errors.New("cluster: executor already attached")
	ErrInvalidTryCount   = errors.New("cluster: try count must be positive")
)

const (
	retryInitialDelay = 2 * time.Millisecond
	retryMaxDelay     = 50 * time.Millisecond
)

// Transport is the in-process invoker. Every member in the process attaches
// an executor; submissions serialize the operation through its codec on every
// hop so wire fidelity is exercised even without a network.
type Transport struct {
	mu        sync.RWMutex
	executors map[string]operation.Context
	down      map[string]bool
}

func NewTransport() *Transport {
	return &Transport{
		executors: make(map[string]operation.Context),
		down:      make(map[string]bool),
	}
}

// Attach registers the executor handling operations addressed to memberID.
func (t *Transport) Attach(memberID string, exec operation.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.executors[memberID]; ok {
		return fmt.Errorf("%w: %s", ErrExecutorExists, memberID)
	}
	t.executors[memberID] = exec
	return nil
}

// Detach removes a member's executor; submissions to it fail as unreachable.
func (t *Transport) Detach(memberID string) {
	t.mu.Lock()
	delete(t.executors, memberID)
	delete(t.down, memberID)
	t.mu.Unlock()
}

// SetReachable marks a member reachable or unreachable without detaching it.
func (t *Transport) SetReachable(memberID string, reachable bool) {
	t.mu.Lock()
	t.down[memberID] = !reachable
	t.mu.Unlock()
}

var _ Invoker = (*Transport)(nil)

// Submit implements Invoker. The operation is marshaled once; each attempt
// decodes and executes a fresh instance on the target's executor.
func (t *Transport) Submit(ctx context.Context, target Member, op operation.Operation, tryCount int) *Call {
	call := newCall(target)
	if tryCount <= 0 {
		call.finish(fmt.Errorf("%w: %d", ErrInvalidTryCount, tryCount))
		return call
	}

	payload, err := op.Marshal()
	if err != nil {
		call.finish(err)
		return call
	}
	name := op.Name()

	go func() {
		var last error
		for attempt := 1; attempt <= tryCount; attempt++ {
			last = t.dispatch(target.ID, name, payload)
			if last == nil {
				call.finish(nil)
				return
			}
			if attempt == tryCount {
				break
			}
			select {
			case <-ctx.Done():
				call.finish(ctx.Err())
				return
			case <-time.After(retryDelay(attempt)):
			}
		}
		log.Debug().
			Str("member", target.ID).
			Str("op", name).
			Int("attempts", tryCount).
			Err(last).
			Msg("invocation retry budget exhausted")
		call.finish(last)
	}()
	return call
}

func (t *Transport) dispatch(memberID, name string, payload []byte) error {
	t.mu.RLock()
	exec, ok := t.executors[memberID]
	down := t.down[memberID]
	t.mu.RUnlock()
	if !ok || down {
		return fmt.Errorf("%w: %s", ErrMemberUnreachable, memberID)
	}

	op, err := operation.Decode(name, payload)
	if err != nil {
		return err
	}
	return op.Run(exec)
}

// retryDelay doubles per attempt up to a cap.
func retryDelay(attempt int) time.Duration {
	delay := retryInitialDelay << (attempt - 1)
	if delay > retryMaxDelay {
		return retryMaxDelay
	}
	return delay
}
