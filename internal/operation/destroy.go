package operation

import (
	"fmt"
	"strings"

	"github.com/danmuck/gridctl/internal/object"
)

// DestroyName routes destroy payloads to their decoder.
const DestroyName = "proxy.destroy"

// Wire field ids for the destroy payload.
const (
	destroyFieldService  uint16 = 1
	destroyFieldObjectID uint16 = 2
)

// Destroy removes one distributed object from the executing member's registry
// and runs local teardown there. The object id crosses the wire as raw bytes
// so the receiving side looks up its maps with the exact same value.
type Destroy struct {
	Service  string
	ObjectID object.ID
}

// Validate enforces destroy payload fields before submission.
func (d Destroy) Validate() error {
	if strings.TrimSpace(d.Service) == "" {
		return fmt.Errorf("%w: missing service", ErrInvalidPayload)
	}
	if d.ObjectID == "" {
		return fmt.Errorf("%w: missing object id", ErrInvalidPayload)
	}
	return nil
}

func (d Destroy) Name() string {
	return DestroyName
}

func (d Destroy) Marshal() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return encodeFields([]field{
		stringField(destroyFieldService, d.Service),
		bytesField(destroyFieldObjectID, []byte(d.ObjectID)),
	}), nil
}

func (d Destroy) Run(ctx Context) error {
	// Pure housekeeping on the receiving side: the originating member already
	// published the DESTROYED event over the lifecycle channel.
	ctx.RemoveProxy(d.Service, d.ObjectID)
	return ctx.DestroyLocalObject(d.Service, d.ObjectID)
}

func decodeDestroy(payload []byte) (Operation, error) {
	fields, err := decodeFields(payload)
	if err != nil {
		return nil, err
	}
	svc, err := getField(fields, destroyFieldService, typeString)
	if err != nil {
		return nil, err
	}
	id, err := getField(fields, destroyFieldObjectID, typeBytes)
	if err != nil {
		return nil, err
	}
	d := Destroy{Service: string(svc.value), ObjectID: object.ID(id.value)}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func init() {
	if err := RegisterCodec(DestroyName, decodeDestroy); err != nil {
		panic(err)
	}
}
