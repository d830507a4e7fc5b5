// Package wire implements the typed argument stream carried in method calls
// and replies, and the Value model decoded from it.
package wire

import (
	"sort"
	"strings"
)

// Value is a decoded argument. Variants never appear as a Value: decoding
// collapses them to the concrete value they carry.
type Value interface {
	Signature() string
	isValue()
}

// Str is a string value.
type Str string

// U32 is a uint32 value.
type U32 uint32

// U64 is a uint64 value.
type U64 uint64

// Bool is a boolean value.
type Bool bool

// Array is an ordered list of values sharing ElemSig.
type Array struct {
	ElemSig string
	Elems   []Value
}

// Struct is an ordered list of fields.
type Struct []Value

// Dict maps string keys to values. On the wire it is an a{sv}.
type Dict map[string]Value

func (Str) Signature() string  { return "s" }
func (U32) Signature() string  { return "u" }
func (U64) Signature() string  { return "t" }
func (Bool) Signature() string { return "b" }

func (a Array) Signature() string { return "a" + a.ElemSig }

func (s Struct) Signature() string {
	var b strings.Builder
	b.WriteByte(TypeStructBegin)
	for _, f := range s {
		b.WriteString(f.Signature())
	}
	b.WriteByte(TypeStructEnd)
	return b.String()
}

func (Dict) Signature() string { return "a{sv}" }

func (Str) isValue()    {}
func (U32) isValue()    {}
func (U64) isValue()    {}
func (Bool) isValue()   {}
func (Array) isValue()  {}
func (Struct) isValue() {}
func (Dict) isValue()   {}

// Keys returns the keys of d in sorted order.
func (d Dict) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsScalar reports whether v is a string, integer or boolean.
func IsScalar(v Value) bool {
	switch v.(type) {
	case Str, U32, U64, Bool:
		return true
	}
	return false
}

// Strings builds an array of strings.
func Strings(ss ...string) Array {
	out := Array{ElemSig: "s", Elems: make([]Value, 0, len(ss))}
	for _, s := range ss {
		out.Elems = append(out.Elems, Str(s))
	}
	return out
}
