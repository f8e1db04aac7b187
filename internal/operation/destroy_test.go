package operation

import (
	"errors"
	"testing"

	"github.com/danmuck/gridctl/internal/object"
)

type recordingContext struct {
	memberID  string
	removed   []string
	destroyed []string
	fail      error
}

func (c *recordingContext) MemberID() string {
	return c.memberID
}

func (c *recordingContext) RemoveProxy(serviceName string, id object.ID) {
	c.removed = append(c.removed, serviceName+"/"+id.String())
}

func (c *recordingContext) DestroyLocalObject(serviceName string, id object.ID) error {
	c.destroyed = append(c.destroyed, serviceName+"/"+id.String())
	return c.fail
}

func TestDestroyRoundTrip(t *testing.T) {
	op := Destroy{Service: "grid.kv", ObjectID: object.ID("orders\x00\xffbinary")}

	payload, err := op.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := Decode(DestroyName, payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(Destroy)
	if !ok {
		t.Fatalf("decoded wrong type: %T", decoded)
	}
	if got.Service != op.Service || got.ObjectID != op.ObjectID {
		t.Fatalf("round trip mismatch: got=%+v want=%+v", got, op)
	}
}

func TestDestroyRunRemovesThenTearsDown(t *testing.T) {
	ctx := &recordingContext{memberID: "member.b"}
	op := Destroy{Service: "grid.kv", ObjectID: "orders"}

	if err := op.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(ctx.removed) != 1 || ctx.removed[0] != "grid.kv/orders" {
		t.Fatalf("remove not recorded: %v", ctx.removed)
	}
	if len(ctx.destroyed) != 1 || ctx.destroyed[0] != "grid.kv/orders" {
		t.Fatalf("teardown not recorded: %v", ctx.destroyed)
	}
}

func TestDestroyRunSurfacesTeardownError(t *testing.T) {
	boom := errors.New("teardown failed")
	ctx := &recordingContext{memberID: "member.b", fail: boom}

	err := Destroy{Service: "grid.kv", ObjectID: "orders"}.Run(ctx)
	if !errors.Is(err, boom) {
		t.Fatalf("expected teardown error, got %v", err)
	}
	// The registry cleanup still happened before the teardown failed.
	if len(ctx.removed) != 1 {
		t.Fatalf("remove not recorded before failure: %v", ctx.removed)
	}
}

func TestDestroyValidate(t *testing.T) {
	cases := []Destroy{
		{Service: "", ObjectID: "orders"},
		{Service: "grid.kv", ObjectID: ""},
	}
	for _, op := range cases {
		if err := op.Validate(); !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("expected ErrInvalidPayload for %+v, got %v", op, err)
		}
		if _, err := op.Marshal(); !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("expected marshal failure for %+v, got %v", op, err)
		}
	}
}

func TestDecodeRejectsMalformedPayloads(t *testing.T) {
	if _, err := Decode(DestroyName, []byte{0x01, 0x02}); !errors.Is(err, ErrShortFieldHeader) {
		t.Fatalf("expected ErrShortFieldHeader, got %v", err)
	}

	// A payload missing the object id field decodes fields fine but fails
	// lookup.
	payload := encodeFields([]field{stringField(destroyFieldService, "grid.kv")})
	if _, err := Decode(DestroyName, payload); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestDecodeUnknownOperation(t *testing.T) {
	if _, err := Decode("proxy.unknown", nil); !errors.Is(err, ErrUnknownOperation) {
		t.Fatalf("expected ErrUnknownOperation, got %v", err)
	}
}

func TestRegisterCodecDuplicate(t *testing.T) {
	if err := RegisterCodec(DestroyName, decodeDestroy); !errors.Is(err, ErrCodecExists) {
		t.Fatalf("expected ErrCodecExists, got %v", err)
	}
}
