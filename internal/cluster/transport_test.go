package cluster

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/gridctl/internal/object"
	"github.com/danmuck/gridctl/internal/operation"
	"github.com/danmuck/gridctl/internal/testutil/testlog"
)

// flakyExecutor fails teardown a configured number of times before accepting.
type flakyExecutor struct {
	memberID string

	mu        sync.Mutex
	failures  int
	removed   int
	destroyed int
}

func (e *flakyExecutor) MemberID() string {
	return e.memberID
}

func (e *flakyExecutor) RemoveProxy(serviceName string, id object.ID) {
	e.mu.Lock()
	e.removed++
	e.mu.Unlock()
}

func (e *flakyExecutor) DestroyLocalObject(serviceName string, id object.ID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroyed++
	if e.failures > 0 {
		e.failures--
		return errors.New("transient teardown failure")
	}
	return nil
}

func destroyOp() operation.Destroy {
	return operation.Destroy{Service: "grid.kv", ObjectID: "orders"}
}

func await(t *testing.T, call *Call) error {
	t.Helper()
	select {
	case err := <-call.Done():
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("call did not complete")
		return nil
	}
}

func TestSubmitAcknowledges(t *testing.T) {
	testlog.Start(t)
	transport := NewTransport()
	exec := &flakyExecutor{memberID: "member.b"}
	if err := transport.Attach("member.b", exec); err != nil {
		t.Fatalf("attach: %v", err)
	}

	call := transport.Submit(context.Background(), Member{ID: "member.b"}, destroyOp(), 1)
	if err := await(t, call); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if exec.removed != 1 || exec.destroyed != 1 {
		t.Fatalf("executor not invoked: removed=%d destroyed=%d", exec.removed, exec.destroyed)
	}
}

func TestSubmitRetriesUntilSuccess(t *testing.T) {
	testlog.Start(t)
	transport := NewTransport()
	exec := &flakyExecutor{memberID: "member.b", failures: 2}
	_ = transport.Attach("member.b", exec)

	call := transport.Submit(context.Background(), Member{ID: "member.b"}, destroyOp(), 5)
	if err := await(t, call); err != nil {
		t.Fatalf("expected retry success, got %v", err)
	}
	if exec.destroyed != 3 {
		t.Fatalf("attempts: got=%d want=3", exec.destroyed)
	}
}

func TestSubmitExhaustsRetryBudget(t *testing.T) {
	testlog.Start(t)
	transport := NewTransport()
	exec := &flakyExecutor{memberID: "member.b", failures: 10}
	_ = transport.Attach("member.b", exec)

	call := transport.Submit(context.Background(), Member{ID: "member.b"}, destroyOp(), 3)
	if err := await(t, call); err == nil {
		t.Fatalf("expected failure after budget exhausted")
	}
	if exec.destroyed != 3 {
		t.Fatalf("attempts: got=%d want=3", exec.destroyed)
	}
}

func TestSubmitToUnreachableMember(t *testing.T) {
	testlog.Start(t)
	transport := NewTransport()
	exec := &flakyExecutor{memberID: "member.b"}
	_ = transport.Attach("member.b", exec)
	transport.SetReachable("member.b", false)

	call := transport.Submit(context.Background(), Member{ID: "member.b"}, destroyOp(), 2)
	if err := await(t, call); !errors.Is(err, ErrMemberUnreachable) {
		t.Fatalf("expected ErrMemberUnreachable, got %v", err)
	}
	if exec.destroyed != 0 {
		t.Fatalf("unreachable member must not execute: destroyed=%d", exec.destroyed)
	}

	transport.SetReachable("member.b", true)
	call = transport.Submit(context.Background(), Member{ID: "member.b"}, destroyOp(), 1)
	if err := await(t, call); err != nil {
		t.Fatalf("expected success after recovery, got %v", err)
	}
}

func TestSubmitToUnknownMember(t *testing.T) {
	testlog.Start(t)
	transport := NewTransport()
	call := transport.Submit(context.Background(), Member{ID: "member.ghost"}, destroyOp(), 1)
	if err := await(t, call); !errors.Is(err, ErrMemberUnreachable) {
		t.Fatalf("expected ErrMemberUnreachable, got %v", err)
	}
}

func TestSubmitRejectsBadTryCount(t *testing.T) {
	testlog.Start(t)
	transport := NewTransport()
	call := transport.Submit(context.Background(), Member{ID: "member.b"}, destroyOp(), 0)
	if err := await(t, call); !errors.Is(err, ErrInvalidTryCount) {
		t.Fatalf("expected ErrInvalidTryCount, got %v", err)
	}
}

func TestSubmitStopsOnCanceledContext(t *testing.T) {
	testlog.Start(t)
	transport := NewTransport()
	exec := &flakyExecutor{memberID: "member.b", failures: 100}
	_ = transport.Attach("member.b", exec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	call := transport.Submit(ctx, Member{ID: "member.b"}, destroyOp(), 100)
	if err := await(t, call); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAttachDuplicate(t *testing.T) {
	testlog.Start(t)
	transport := NewTransport()
	exec := &flakyExecutor{memberID: "member.b"}
	if err := transport.Attach("member.b", exec); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := transport.Attach("member.b", exec); !errors.Is(err, ErrExecutorExists) {
		t.Fatalf("expected ErrExecutorExists, got %v", err)
	}
}

func TestMembershipViews(t *testing.T) {
	testlog.Start(t)
	self := NewMember("member.a", "")
	m := NewMembership(self)
	m.Add(NewMember("member.c", ""))
	m.Add(NewMember("member.b", ""))

	members := m.Members()
	if len(members) != 3 || members[0].ID != "member.a" || members[2].ID != "member.c" {
		t.Fatalf("members not sorted: %v", members)
	}

	others := m.Others()
	if len(others) != 2 {
		t.Fatalf("others: got=%d want=2", len(others))
	}
	for _, member := range others {
		if member.ID == "member.a" {
			t.Fatalf("others must exclude self")
		}
	}

	m.Remove("member.b")
	if len(m.Others()) != 1 {
		t.Fatalf("remove did not take effect")
	}
}

func TestNewMemberGeneratesID(t *testing.T) {
	testlog.Start(t)
	a := NewMember("", "")
	b := NewMember("", "")
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("generated ids must be unique and non-empty: a=%q b=%q", a.ID, b.ID)
	}
}
