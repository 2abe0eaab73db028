// Package plantwire encodes the messages exchanged over the message queue
// between plant sensors, the backend and pump controllers.
//
// Messages use the protobuf binary wire format so any protobuf runtime can
// read them. Optional scalar fields are omitted from the encoding when absent,
// which keeps "not measured" distinct from zero. Unknown fields are skipped.
//
// The Append and Consume helpers are shared with the PlantService API
// messages, which use the same encoding.
package plantwire

import (
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrMissingPlantID is returned when a message has no plant id.
	ErrMissingPlantID = errors.New("plant id is required")
	// ErrWireType is returned when a known field has an unexpected wire type.
	ErrWireType = errors.New("unexpected wire type")
)

// FieldFunc decodes the value of field num. It returns the bytes consumed,
// or ok=false when the field is not part of the message and must be skipped.
type FieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (n int, ok bool, err error)

// DecodeFields walks the fields of an encoded message.
func DecodeFields(b []byte, fn FieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m, ok, err := fn(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if !ok {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

func AppendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// AppendRepeatedString writes one field per element, empty ones included.
func AppendRepeatedString(b []byte, num protowire.Number, vs []string) []byte {
	for _, v := range vs {
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, v)
	}
	return b
}

// AppendMessage writes an embedded message. A nil msg is omitted, an empty
// one is written so its presence survives.
func AppendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	if msg == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func AppendInt64(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func AppendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func AppendOptionalDouble(b []byte, num protowire.Number, v *float64) []byte {
	if v == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(*v))
}

func AppendOptionalInt64(b []byte, num protowire.Number, v *int64) []byte {
	if v == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(*v))
}

// AppendTime writes t as microseconds since the Unix epoch. A zero t is omitted.
func AppendTime(b []byte, num protowire.Number, t time.Time) []byte {
	return AppendInt64(b, num, UnixMicros(t))
}

// AppendOptionalTime writes t like AppendTime when it is not nil.
func AppendOptionalTime(b []byte, num protowire.Number, t *time.Time) []byte {
	if t == nil {
		return b
	}
	v := t.UnixMicro()
	return AppendOptionalInt64(b, num, &v)
}

func ConsumeString(typ protowire.Type, b []byte) (string, int, error) {
	if typ != protowire.BytesType {
		return "", 0, ErrWireType
	}
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return "", 0, protowire.ParseError(n)
	}
	return v, n, nil
}

// ConsumeBytes reads an embedded message. The result aliases b.
func ConsumeBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, ErrWireType
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func ConsumeInt64(typ protowire.Type, b []byte) (int64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, ErrWireType
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return int64(v), n, nil
}

func ConsumeBool(typ protowire.Type, b []byte) (bool, int, error) {
	v, n, err := ConsumeInt64(typ, b)
	return v != 0, n, err
}

func ConsumeDouble(typ protowire.Type, b []byte) (*float64, int, error) {
	if typ != protowire.Fixed64Type {
		return nil, 0, ErrWireType
	}
	v, n := protowire.ConsumeFixed64(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	f := math.Float64frombits(v)
	return &f, n, nil
}

// ConsumeTime reads a time written by AppendTime.
func ConsumeTime(typ protowire.Type, b []byte) (time.Time, int, error) {
	us, n, err := ConsumeInt64(typ, b)
	if err != nil {
		return time.Time{}, 0, err
	}
	return time.UnixMicro(us).UTC(), n, nil
}

func UnixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func FromUnixMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func UnixMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}
