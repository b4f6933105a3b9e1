// Package metadata defines the typed field/value schema attached to channel
// descriptors and carried after event payloads on the wire.
//
// A descriptor declares an ordered list of Fields; every event on that
// channel carries one Value per field, serialized little-endian in
// declaration order. Compare is the acceptance contract: a value set is only
// usable with a schema when count, type and length all agree.
package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Type enumerates the supported element types. The numeric values are
// wire-stable; they identify field types inside serialized descriptor
// catalogs.
type Type uint8

const (
	Char Type = iota
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float
	Double
)

func (t Type) String() string {
	switch t {
	case Char:
		return "CHAR"
	case Int8:
		return "INT8"
	case Uint8:
		return "UINT8"
	case Int16:
		return "INT16"
	case Uint16:
		return "UINT16"
	case Int32:
		return "INT32"
	case Uint32:
		return "UINT32"
	case Int64:
		return "INT64"
	case Uint64:
		return "UINT64"
	case Float:
		return "FLOAT"
	case Double:
		return "DOUBLE"
	default:
		return fmt.Sprintf("TYPE(%d)", uint8(t))
	}
}

// TypeSize returns the element width in bytes, or 0 for an unknown type.
func TypeSize(t Type) int {
	switch t {
	case Char, Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float:
		return 4
	case Int64, Uint64, Double:
		return 8
	default:
		return 0
	}
}

// Field declares one metadata element: a fixed-length array of a single type.
type Field struct {
	Name        string
	Description string
	Type        Type
	Length      int
}

// ByteSize returns the serialized size of one value for this field.
func (f Field) ByteSize() int { return TypeSize(f.Type) * f.Length }

// SchemaSize returns the total serialized size of one value set for the
// schema.
func SchemaSize(fields []Field) int {
	n := 0
	for _, f := range fields {
		n += f.ByteSize()
	}
	return n
}

// Value is one typed metadata payload. The bytes are kept in wire form;
// typed constructors and accessors convert at the edges.
type Value struct {
	typ  Type
	data []byte
}

// NewValue builds a zero-filled value of the given type and element count.
func NewValue(t Type, length int) Value {
	return Value{typ: t, data: make([]byte, TypeSize(t)*length)}
}

// CharValue builds a Char value of the given bound. The string is copied in
// and zero-padded; anything beyond the bound is cut off.
func CharValue(s string, length int) Value {
	v := NewValue(Char, length)
	copy(v.data, s)
	return v
}

// Int64Value builds a single-element Int64 value.
func Int64Value(x int64) Value {
	v := NewValue(Int64, 1)
	binary.LittleEndian.PutUint64(v.data, uint64(x))
	return v
}

// Uint16Value builds a single-element Uint16 value.
func Uint16Value(x uint16) Value {
	v := NewValue(Uint16, 1)
	binary.LittleEndian.PutUint16(v.data, x)
	return v
}

// Float32Value builds a single-element Float value.
func Float32Value(x float32) Value {
	v := NewValue(Float, 1)
	binary.LittleEndian.PutUint32(v.data, math.Float32bits(x))
	return v
}

// Float64Value builds a single-element Double value.
func Float64Value(x float64) Value {
	v := NewValue(Double, 1)
	binary.LittleEndian.PutUint64(v.data, math.Float64bits(x))
	return v
}

func (v Value) Type() Type { return v.typ }

// Length returns the element count.
func (v Value) Length() int {
	sz := TypeSize(v.typ)
	if sz == 0 {
		return 0
	}
	return len(v.data) / sz
}

// Bytes returns the wire form.
func (v Value) Bytes() []byte { return v.data }

// String decodes a Char value up to the first null byte. Other types format
// as a type/length summary.
func (v Value) String() string {
	if v.typ != Char {
		return fmt.Sprintf("%s[%d]", v.typ, v.Length())
	}
	if i := bytes.IndexByte(v.data, 0); i >= 0 {
		return string(v.data[:i])
	}
	return string(v.data)
}

// Int64 returns the first element of an Int64 value, or 0 for any other
// type.
func (v Value) Int64() int64 {
	if v.typ != Int64 || len(v.data) < 8 {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(v.data))
}

// Uint16 returns the first element of a Uint16 value, or 0 for any other
// type.
func (v Value) Uint16() uint16 {
	if v.typ != Uint16 || len(v.data) < 2 {
		return 0
	}
	return binary.LittleEndian.Uint16(v.data)
}

// Float32 returns the first element of a Float value, or 0 for any other
// type.
func (v Value) Float32() float32 {
	if v.typ != Float || len(v.data) < 4 {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(v.data))
}

// Float64 returns the first element of a Double value, or 0 for any other
// type.
func (v Value) Float64() float64 {
	if v.typ != Double || len(v.data) < 8 {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(v.data))
}

// Equal reports whether two values have the same type and wire form.
func (v Value) Equal(w Value) bool {
	return v.typ == w.typ && bytes.Equal(v.data, w.data)
}

// AppendTo appends the wire form to dst.
func (v Value) AppendTo(dst []byte) []byte { return append(dst, v.data...) }

// ReadValue consumes one value matching f from buf, returning the value and
// the remaining bytes.
func ReadValue(buf []byte, f Field) (Value, []byte, error) {
	n := f.ByteSize()
	if len(buf) < n {
		return Value{}, nil, fmt.Errorf("metadata value %q: need %d bytes, have %d", f.Name, n, len(buf))
	}
	v := Value{typ: f.Type, data: append([]byte(nil), buf[:n]...)}
	return v, buf[n:], nil
}

// Compare reports whether a value set satisfies a schema: same count and
// per-index type and length agreement.
func Compare(fields []Field, values []Value) bool {
	if len(fields) != len(values) {
		return false
	}
	for i, f := range fields {
		if values[i].typ != f.Type || values[i].Length() != f.Length {
			return false
		}
	}
	return true
}
