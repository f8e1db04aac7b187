package event

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/gridctl/internal/object"
	"github.com/danmuck/gridctl/internal/testutil/testlog"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []object.LifecycleEvent
	panics bool
}

func (h *recordingHandler) OnClusterEvent(ev object.LifecycleEvent) {
	h.mu.Lock()
	h.events = append(h.events, ev)
	panics := h.panics
	h.mu.Unlock()
	if panics {
		panic("listener fault")
	}
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func created(id object.ID) object.LifecycleEvent {
	return object.LifecycleEvent{Type: object.EventCreated, ServiceName: "grid.kv", ObjectID: id}
}

func TestPublishReachesEveryEndpoint(t *testing.T) {
	testlog.Start(t)
	hub := NewHub("proxy.lifecycle")
	epA, err := hub.Register("member.a", 0)
	if err != nil {
		t.Fatalf("register a: %v", err)
	}
	epB, err := hub.Register("member.b", 0)
	if err != nil {
		t.Fatalf("register b: %v", err)
	}
	defer epA.Close()
	defer epB.Close()

	ha := &recordingHandler{}
	hb := &recordingHandler{}
	epA.Subscribe(ha)
	epB.Subscribe(hb)

	epA.Publish(created("orders"))

	// The publisher observes its own event before Publish returns.
	if ha.count() != 1 {
		t.Fatalf("publisher self-delivery not synchronous: count=%d", ha.count())
	}
	waitUntil(t, time.Second, func() bool { return hb.count() == 1 })
}

func TestExecuteRunsOnDispatcher(t *testing.T) {
	testlog.Start(t)
	hub := NewHub("proxy.lifecycle")
	ep, _ := hub.Register("member.a", 0)
	defer ep.Close()

	done := make(chan struct{})
	ep.Execute(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("task never ran")
	}
}

func TestPanicInHandlerDoesNotKillDispatch(t *testing.T) {
	testlog.Start(t)
	hub := NewHub("proxy.lifecycle")
	epA, _ := hub.Register("member.a", 0)
	epB, _ := hub.Register("member.b", 0)
	defer epA.Close()
	defer epB.Close()

	faulty := &recordingHandler{panics: true}
	epB.Subscribe(faulty)

	epA.Publish(created("orders"))
	epA.Publish(created("carts"))
	waitUntil(t, time.Second, func() bool { return faulty.count() == 2 })
}

func TestRegisterDuplicateMember(t *testing.T) {
	testlog.Start(t)
	hub := NewHub("proxy.lifecycle")
	ep, err := hub.Register("member.a", 0)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer ep.Close()

	if _, err := hub.Register("member.a", 0); !errors.Is(err, ErrEndpointExists) {
		t.Fatalf("expected ErrEndpointExists, got %v", err)
	}
}

func TestRegistrationsAndClose(t *testing.T) {
	testlog.Start(t)
	hub := NewHub("proxy.lifecycle")
	epA, _ := hub.Register("member.b", 0)
	epB, _ := hub.Register("member.a", 0)

	got := hub.Registrations()
	if len(got) != 2 || got[0] != "member.a" || got[1] != "member.b" {
		t.Fatalf("registrations not sorted: %v", got)
	}

	epA.Close()
	epA.Close() // idempotent
	if got := hub.Registrations(); len(got) != 1 || got[0] != "member.a" {
		t.Fatalf("close did not detach: %v", got)
	}
	epB.Close()
}

func TestClosedEndpointDropsTasks(t *testing.T) {
	testlog.Start(t)
	hub := NewHub("proxy.lifecycle")
	ep, _ := hub.Register("member.a", 0)
	ep.Close()

	// Must not block or panic.
	ep.Execute(func() {})
	ep.Publish(created("orders"))
}
