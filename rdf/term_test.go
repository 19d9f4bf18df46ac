package rdf

import (
	"strconv"
	"testing"
	"time"
)

func TestNewURI(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"<>\"{}|^`\\", ""},
		{"\x00\x01\x02\x03\x04\x05\x06\x07\x08\x09\x0A\x0B\x0C\x0D\x0E\x0F", ""},
		{"\x10\x11\x12\x13\x14\x15\x16\x17\x18\x19\x1A\x1B\x1C\x1D\x1E\x1F\x20", ""},
		{"æøå", "æøå"},
		{" http://example.org/resorce#123 ", "http://example.org/resorce#123"},
	}

	for _, test := range tests {
		if NewURI(test.in).String() != test.want {
			t.Errorf("NewURI(%q) => %q; want %q", test.in, NewURI(test.in), test.want)
		}
	}
}

func TestNewIRIRejectsEmpty(t *testing.T) {
	if _, err := NewIRI(""); err != ErrEmptyURI {
		t.Errorf("NewIRI(\"\") => err %v; want %v", err, ErrEmptyURI)
	}
}

func TestNewLiteralValue(t *testing.T) {
	tests := []struct {
		in interface{}
		dt URI
	}{
		{false, XSDboolean},
		{true, XSDboolean},
		{"a string", XSDstring},
		{int8(1), XSDbyte},
		{int16(-32768), XSDshort},
		{int32(2147483647), XSDint},
		{'æ', XSDint},
		{rune('\xef'), XSDint},
		{int64(11), XSDlong},
		{uint8(0), XSDunsignedByte},
		{byte('\xff'), XSDunsignedByte},
		{uint16(5), XSDunsignedShort},
		{uint32(999), XSDunsignedInt},
		{uint64(18446744073709551615), XSDunsignedLong},
		{float32(3.14), XSDfloat},
		{float64(0.99999), XSDdouble},
		{time.Date(1999, 12, 24, 12, 45, 0, 123, time.UTC), XSDdateTimeStamp},
	}
	for _, test := range tests {
		l := NewLiteralValue(test.in)
		if l.DataType() != test.dt {
			t.Errorf("NewLiteralValue(%v).DataType() => %q; want %q", test.in, l.DataType(), test.dt)
		}
		if b, ok := test.in.(bool); ok {
			if l.Value() != b {
				t.Errorf("NewLiteralValue(%v).Value() = %v; want %v", test.in, l.Value(), b)
			}
			continue
		}
		if l.Value() != test.in {
			t.Errorf("NewLiteralValue(%v).Value() = %v; want %v", test.in, l.Value(), test.in)
		}
	}
}

func TestNewLiteralValueArchDependent(t *testing.T) {
	intType := XSDlong
	uintType := XSDunsignedLong
	floatType := XSDdouble // an untyped float constant is float64 on every arch
	if strconv.IntSize == 32 {
		intType = XSDint
		uintType = XSDunsignedInt
	}

	tests := []struct {
		in interface{}
		dt URI
	}{
		{0, intType},
		{1234567, intType},
		{uint(99), uintType},
		{3.14, floatType},
	}

	for _, test := range tests {
		l := NewLiteralValue(test.in)
		if l.DataType() != test.dt {
			t.Errorf("NewLiteralValue(%v).DataType() => %q; want %q", test.in, l.DataType(), test.dt)
		}
	}
}

func TestNewLiteralValueCustomType(t *testing.T) {
	v := struct{ a, b string }{"hei", "hå"}
	l := NewLiteralValue(v)
	if l.DataType() != XSDstring {
		t.Errorf("NewLiteralValue(%v).DataType() => %s ; want %s ", v, l.DataType(), XSDstring)
	}
	want := `struct { a string; b string }{a:"hei", b:"hå"}`
	if l.Value() != want {
		t.Errorf("NewLiteralValue(%v).Value() => %s ; want %s ", v, l.Value(), want)
	}
}

func TestNewLangLiteral(t *testing.T) {
	l := NewLangLiteral("hei", "no")
	if l.Value() != "hei" {
		t.Errorf("NewLangLiteral(\"hei\", \"no\").Value() => %v ; want \"hei\"", l.Value())
	}
	if l.Lang() != "no" {
		t.Errorf("NewLangLiteral(\"hei\", \"no\").Lang() => %v ; want \"no\"", l.Lang())
	}
	if l.DataType() != RDFlangString {
		t.Errorf("NewLangLiteral(\"hei\", \"no\").DataType() => %v ; want %v", l.DataType(), RDFlangString)
	}
}

func TestNewTypedLiteral(t *testing.T) {
	dt := NewURI("http://example.org/class/Point")
	l, err := NewTypedLiteral("1,2", dt)
	if err != nil {
		t.Fatal(err)
	}
	if l.DataType() != dt {
		t.Errorf("NewTypedLiteral(...).DataType() => %s ; want %s ", l.DataType(), dt)
	}
	if l.Value() != "1,2" {
		t.Errorf("NewTypedLiteral(...).Value() => %s ; want 1,2", l.Value())
	}
}

func TestNewTypedLiteralRejectsLanguageAndDatatype(t *testing.T) {
	if _, err := newTypedLiteral("x", "en", URI("http://example.org/mytype")); err != ErrConflictingLiteral {
		t.Errorf("newTypedLiteral with both language and datatype => err %v; want %v", err, ErrConflictingLiteral)
	}
}

func TestBooleanCanonicalization(t *testing.T) {
	tests := []struct{ in, want string }{
		{"true", "true"},
		{"TRUE", "true"},
		{"1", "true"},
		{"false", "false"},
		{"0", "false"},
		{"anything else", "false"},
	}
	for _, test := range tests {
		l, err := NewTypedLiteral(test.in, XSDboolean)
		if err != nil {
			t.Fatal(err)
		}
		if l.String() != test.want {
			t.Errorf("NewTypedLiteral(%q, xsd:boolean).String() => %q; want %q", test.in, l.String(), test.want)
		}
	}
}

func TestNodeEqual(t *testing.T) {
	a := NewURI("http://example.org/a")
	b := NewURI("http://example.org/a")
	c := NewURI("http://example.org/c")
	if !Equal(a, b) {
		t.Error("Equal(a, b) => false; want true")
	}
	if Equal(a, c) {
		t.Error("Equal(a, c) => true; want false")
	}
	if Equal(a, NewBlank("a")) {
		t.Error("Equal(URI, Blank) => true; want false")
	}
}
