package types

import (
	"fmt"
	"strings"
)

// Kind says how the bytes of a field are to be understood.
type Kind int

const (
	KIND_NONE Kind = iota // absent value, never a field kind
	KIND_INTEGER
	KIND_TEXT
	KIND_VECTOR3
)

func (k Kind) String() string {
	switch k {
	case KIND_NONE:
		return "none"
	case KIND_INTEGER:
		return "integer"
	case KIND_TEXT:
		return "text"
	case KIND_VECTOR3:
		return "vector3"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// VECTOR3_WIDTH is the on-disk size of a Vector3: three 16-bit components.
const VECTOR3_WIDTH = 6

type Vector3 [3]uint16

func (v Vector3) String() string {
	return fmt.Sprintf("(%d, %d, %d)", v[0], v[1], v[2])
}

// Field describes one slot of the save file.
// Address and Width are in bytes.
type Field struct {
	Address int
	Name    string
	Kind    Kind
	Width   int
}

// End returns the index of the byte one after the end of the field.
func (f Field) End() int {
	return f.Address + f.Width
}

func (f Field) String() string {
	return fmt.Sprintf("%v (0x%02X, %v, %v bytes)", f.Name, f.Address, f.Kind, f.Width)
}

// Value is a decoded field value.  Only the member matching Kind means anything.
// The zero Value (KIND_NONE) stands for "absent".
type Value struct {
	Kind    Kind
	Integer uint64
	Text    string
	Vector  Vector3
}

func Integer_value(n uint64) Value {
	return Value{Kind: KIND_INTEGER, Integer: n}
}

func Text_value(s string) Value {
	return Value{Kind: KIND_TEXT, Text: s}
}

func Vector_value(v Vector3) Value {
	return Value{Kind: KIND_VECTOR3, Vector: v}
}

func (v Value) Present() bool {
	return v.Kind != KIND_NONE
}

// Equal compares decoded values, so two encodings of the same number are equal.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KIND_INTEGER:
		return v.Integer == o.Integer
	case KIND_TEXT:
		return v.Text == o.Text
	case KIND_VECTOR3:
		return v.Vector == o.Vector
	}
	return true
}

func (v Value) String() string {
	switch v.Kind {
	case KIND_INTEGER:
		return fmt.Sprint(v.Integer)
	case KIND_TEXT:
		// Text slots are NUL padded; the padding is noise for humans
		return fmt.Sprintf("%q", strings.Trim(v.Text, "\x00"))
	case KIND_VECTOR3:
		return v.Vector.String()
	}
	return "absent"
}
