package metadata

import (
	"bytes"
	"testing"
)

func TestTypeSize(t *testing.T) {
	cases := map[Type]int{
		Char:   1,
		Int8:   1,
		Uint8:  1,
		Int16:  2,
		Uint16: 2,
		Int32:  4,
		Uint32: 4,
		Int64:  8,
		Uint64: 8,
		Float:  4,
		Double: 8,
	}
	for typ, want := range cases {
		if got := TypeSize(typ); got != want {
			t.Errorf("TypeSize(%s): got %d, want %d", typ, got, want)
		}
	}
	if got := TypeSize(Type(200)); got != 0 {
		t.Errorf("TypeSize(unknown): got %d, want 0", got)
	}
}

func TestSchemaSize(t *testing.T) {
	fields := []Field{
		{Name: "label", Type: Char, Length: 16},
		{Name: "threshold", Type: Double, Length: 1},
		{Name: "window", Type: Uint16, Length: 2},
	}
	if got, want := SchemaSize(fields), 16+8+4; got != want {
		t.Errorf("SchemaSize: got %d, want %d", got, want)
	}
	if SchemaSize(nil) != 0 {
		t.Error("SchemaSize(nil) should be 0")
	}
}

func TestCharValue(t *testing.T) {
	v := CharValue("probe", 8)
	if v.Type() != Char || v.Length() != 8 {
		t.Fatalf("got %s[%d], want CHAR[8]", v.Type(), v.Length())
	}
	if !bytes.Equal(v.Bytes(), []byte("probe\x00\x00\x00")) {
		t.Errorf("bytes: got %q", v.Bytes())
	}
	if v.String() != "probe" {
		t.Errorf("string: got %q, want %q", v.String(), "probe")
	}

	// Oversize input is cut at the bound and reads back without a null.
	long := CharValue("electrode-array", 4)
	if !bytes.Equal(long.Bytes(), []byte("elec")) {
		t.Errorf("truncated bytes: got %q", long.Bytes())
	}
	if long.String() != "elec" {
		t.Errorf("truncated string: got %q", long.String())
	}
}

func TestScalarValues(t *testing.T) {
	if got := Int64Value(-42).Int64(); got != -42 {
		t.Errorf("Int64: got %d, want -42", got)
	}
	if got := Uint16Value(65535).Uint16(); got != 65535 {
		t.Errorf("Uint16: got %d, want 65535", got)
	}
	if got := Float32Value(0.195).Float32(); got != 0.195 {
		t.Errorf("Float32: got %g, want 0.195", got)
	}
	if got := Float64Value(-1.5e12).Float64(); got != -1.5e12 {
		t.Errorf("Float64: got %g, want -1.5e12", got)
	}

	// Accessors on the wrong type return zero rather than reinterpreting.
	if got := Uint16Value(9).Int64(); got != 0 {
		t.Errorf("Int64 on UINT16: got %d, want 0", got)
	}
	if got := Int64Value(9).Float64(); got != 0 {
		t.Errorf("Float64 on INT64: got %g, want 0", got)
	}
}

func TestValueEqual(t *testing.T) {
	if !Uint16Value(7).Equal(Uint16Value(7)) {
		t.Error("identical values should be equal")
	}
	if Uint16Value(7).Equal(Uint16Value(8)) {
		t.Error("different payloads should not be equal")
	}
	// Same wire bytes, different type.
	a := NewValue(Int16, 1)
	b := NewValue(Uint16, 1)
	if a.Equal(b) {
		t.Error("same bytes with different types should not be equal")
	}
}

func TestReadValue(t *testing.T) {
	f := Field{Name: "window", Type: Uint16, Length: 2}
	buf := []byte{0x10, 0x00, 0x20, 0x00, 0xAA}

	v, rest, err := ReadValue(buf, f)
	if err != nil {
		t.Fatalf("ReadValue failed: %v", err)
	}
	if v.Type() != Uint16 || v.Length() != 2 {
		t.Errorf("got %s[%d], want UINT16[2]", v.Type(), v.Length())
	}
	if !bytes.Equal(v.Bytes(), buf[:4]) {
		t.Errorf("bytes: got %v, want %v", v.Bytes(), buf[:4])
	}
	if len(rest) != 1 || rest[0] != 0xAA {
		t.Errorf("rest: got %v, want [0xAA]", rest)
	}

	// The value must not alias the input buffer.
	buf[0] = 0xFF
	if v.Bytes()[0] != 0x10 {
		t.Error("value aliases the input buffer")
	}

	if _, _, err := ReadValue(buf[:3], f); err == nil {
		t.Error("short buffer should fail")
	}
}

func TestAppendTo(t *testing.T) {
	out := []byte{0x01}
	out = Uint16Value(0x0302).AppendTo(out)
	if !bytes.Equal(out, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("AppendTo: got %v", out)
	}
}

func TestCompare(t *testing.T) {
	schema := []Field{
		{Name: "label", Type: Char, Length: 8},
		{Name: "id", Type: Uint16, Length: 1},
	}
	good := []Value{CharValue("x", 8), Uint16Value(1)}
	if !Compare(schema, good) {
		t.Error("matching set should compare true")
	}
	if !Compare(nil, nil) {
		t.Error("empty schema and empty set should compare true")
	}

	bad := [][]Value{
		{CharValue("x", 8)},                                 // too few
		{CharValue("x", 8), Uint16Value(1), Uint16Value(2)}, // too many
		{CharValue("x", 4), Uint16Value(1)},                 // wrong length
		{CharValue("x", 8), Int64Value(1)},                  // wrong type
		{Uint16Value(1), CharValue("x", 8)},                 // order matters
	}
	for i, values := range bad {
		if Compare(schema, values) {
			t.Errorf("case %d should compare false", i)
		}
	}
}
