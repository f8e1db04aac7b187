// Package operation owns the cluster operation contract and its wire codec.
//
// Ownership boundary:
// - operation marshal/unmarshal primitives
// - the execution context an operation sees on the receiving member
// - the destroy operation
package operation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/gridctl/internal/object"
)

var (
	ErrUnknownOperation = errors.New("operation: unknown operation")
	ErrCodecExists      = errors.New("operation: codec already registered")
	ErrInvalidPayload   = errors.New("operation: invalid payload")
)

// Context is what an operation may touch on the member executing it. It is
// implemented by the proxy coordinator of that member.
type Context interface {
	MemberID() string

	// RemoveProxy drops the cached proxies for (service, id) without emitting
	// events; the originating member already published the lifecycle event.
	RemoveProxy(serviceName string, id object.ID)

	// DestroyLocalObject tears down the backing resource and cancels waiters
	// parked on (service, id).
	DestroyLocalObject(serviceName string, id object.ID) error
}

// Operation is one serializable cluster request. Run executes on the
// receiving member; a nil return is the positive acknowledgement, genuine
// failures surface as errors so caller retry logic can tell them apart.
type Operation interface {
	Name() string
	Marshal() ([]byte, error)
	Run(ctx Context) error
}

// DecodeFunc rebuilds one operation kind from its payload.
type DecodeFunc func(payload []byte) (Operation, error)

var (
	codecMu sync.RWMutex
	codecs  = map[string]DecodeFunc{}
)

// RegisterCodec binds an operation name to its decoder.
func RegisterCodec(name string, fn DecodeFunc) error {
	codecMu.Lock()
	defer codecMu.Unlock()
	if _, ok := codecs[name]; ok {
		return fmt.Errorf("%w: %s", ErrCodecExists, name)
	}
	codecs[name] = fn
	return nil
}

// Decode rebuilds an operation from (name, payload).
func Decode(name string, payload []byte) (Operation, error) {
	codecMu.RLock()
	fn, ok := codecs[name]
	codecMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
	}
	return fn(payload)
}
