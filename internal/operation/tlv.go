package operation

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const fieldHeaderLen = 7

var (
	ErrShortFieldHeader = errors.New("operation: short field header")
	ErrShortFieldValue  = errors.New("operation: short field value")
	ErrMissingField     = errors.New("operation: missing field")
)

// Field type ids on the wire.
const (
	typeString uint8 = 1
	typeBytes  uint8 = 2
)

// field is one TLV field of an operation payload.
type field struct {
	id    uint16
	typ   uint8
	value []byte
}

func stringField(id uint16, v string) field {
	return field{id: id, typ: typeString, value: []byte(v)}
}

func bytesField(id uint16, v []byte) field {
	return field{id: id, typ: typeBytes, value: v}
}

func encodeFields(fields []field) []byte {
	out := make([]byte, 0)
	for _, f := range fields {
		buf := make([]byte, fieldHeaderLen+len(f.value))
		binary.BigEndian.PutUint16(buf[0:2], f.id)
		buf[2] = f.typ
		binary.BigEndian.PutUint32(buf[3:7], uint32(len(f.value)))
		copy(buf[7:], f.value)
		out = append(out, buf...)
	}
	return out
}

func decodeFields(payload []byte) ([]field, error) {
	fields := make([]field, 0)
	i := 0
	for i < len(payload) {
		if len(payload)-i < fieldHeaderLen {
			return nil, ErrShortFieldHeader
		}
		id := binary.BigEndian.Uint16(payload[i : i+2])
		typ := payload[i+2]
		l := binary.BigEndian.Uint32(payload[i+3 : i+7])
		i += fieldHeaderLen
		if uint32(len(payload)-i) < l {
			return nil, ErrShortFieldValue
		}
		val := make([]byte, l)
		copy(val, payload[i:i+int(l)])
		i += int(l)
		fields = append(fields, field{id: id, typ: typ, value: val})
	}
	return fields, nil
}

func getField(fields []field, id uint16, typ uint8) (field, error) {
	for _, f := range fields {
		if f.id != id {
			continue
		}
		if f.typ != typ {
			return field{}, fmt.Errorf("operation: field %d type mismatch: got %d want %d", id, f.typ, typ)
		}
		return f, nil
	}
	return field{}, fmt.Errorf("%w: %d", ErrMissingField, id)
}
