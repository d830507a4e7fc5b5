package wire

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

type iterMode int

const (
	modeSequence iterMode = iota
	modeArray
)

// Iter walks an argument stream one value at a time. ArgType reports the
// current value's type, Next moves past it, and Recurse descends into a
// container. Every successful Next consumes at least one byte, so a loop
// of the form "for it.ArgType() != TypeInvalid { ...; it.Next() }" always
// terminates on a finite stream.
type Iter struct {
	data  []byte
	pos   int
	mode  iterMode
	sig   string // remaining types (sequence) or element type (array)
	depth int
	top   bool
	err   error
}

// NewIter returns an iterator over body, whose contents must match sig.
func NewIter(sig string, body []byte) (*Iter, error) {
	if _, err := SplitSignature(sig); err != nil {
		return nil, err
	}
	return &Iter{data: body, sig: sig, top: true}, nil
}

// Err returns the error that stopped the iterator, if any.
func (it *Iter) Err() error { return it.err }

func (it *Iter) fail(format string, args ...any) error {
	if it.err == nil {
		it.err = fmt.Errorf(format, args...)
	}
	return it.err
}

// current returns the type and offset of the current value.
func (it *Iter) current() (string, int, bool) {
	if it.err != nil {
		return "", 0, false
	}
	switch it.mode {
	case modeArray:
		if it.pos >= len(it.data) {
			it.fail("array truncated at offset %d", it.pos)
			return "", 0, false
		}
		switch it.data[it.pos] {
		case markerEnd:
			return "", 0, false
		case markerElement:
			return it.sig, it.pos + 1, true
		default:
			it.fail("bad array marker 0x%02x at offset %d", it.data[it.pos], it.pos)
			return "", 0, false
		}
	default:
		if it.sig == "" {
			return "", 0, false
		}
		n, err := completeTypeLen(it.sig, it.depth)
		if err != nil {
			it.fail("%v", err)
			return "", 0, false
		}
		return it.sig[:n], it.pos, true
	}
}

// ArgType returns the type code of the current value, or TypeInvalid when
// there are no more values or the stream is malformed. Err tells the two
// apart.
func (it *Iter) ArgType() byte {
	sig, _, ok := it.current()
	if !ok {
		return TypeInvalid
	}
	return sig[0]
}

// Signature returns the complete type of the current value.
func (it *Iter) Signature() string {
	sig, _, _ := it.current()
	return sig
}

// ElementType returns the element type code of the current array.
func (it *Iter) ElementType() byte {
	sig, _, ok := it.current()
	if !ok || sig[0] != TypeArray {
		return TypeInvalid
	}
	return sig[1]
}

// Next moves past the current value.
func (it *Iter) Next() error {
	sig, at, ok := it.current()
	if !ok {
		if it.err != nil {
			return it.err
		}
		return it.fail("read past the last value")
	}
	end, err := skip(it.data, at, sig, it.depth)
	if err != nil {
		return it.fail("%v", err)
	}
	it.pos = end
	if it.mode == modeSequence {
		it.sig = it.sig[len(sig):]
	}
	return nil
}

// Close reports an error if an exhausted top-level iterator did not
// consume the whole body.
func (it *Iter) Close() error {
	if it.err != nil {
		return it.err
	}
	if it.top && it.sig == "" && it.pos != len(it.data) {
		return it.fail("%d trailing bytes after the last argument", len(it.data)-it.pos)
	}
	return nil
}

// Recurse returns an iterator over the contents of the current container.
// For a variant the child holds exactly the one wrapped value.
func (it *Iter) Recurse() (*Iter, error) {
	sig, at, ok := it.current()
	if !ok {
		if it.err != nil {
			return nil, it.err
		}
		return nil, it.fail("recurse past the last value")
	}
	if it.depth+1 > MaxDepth {
		return nil, it.fail("nesting deeper than %d", MaxDepth)
	}
	child := &Iter{data: it.data, pos: at, depth: it.depth + 1}
	switch sig[0] {
	case TypeArray:
		child.mode = modeArray
		child.sig = sig[1:]
	case TypeStructBegin, TypeDictBegin:
		child.sig = sig[1 : len(sig)-1]
	case TypeVariant:
		inner, next, err := readVariantSig(it.data, at)
		if err != nil {
			return nil, it.fail("%v", err)
		}
		child.sig = inner
		child.pos = next
	default:
		return nil, it.fail("cannot recurse into %q", sig)
	}
	return child, nil
}

func (it *Iter) basic(want byte) (int, error) {
	sig, at, ok := it.current()
	if !ok {
		if it.err != nil {
			return 0, it.err
		}
		return 0, it.fail("no value to read")
	}
	if sig[0] != want {
		return 0, fmt.Errorf("value has type %q, not %q", sig, want)
	}
	return at, nil
}

// String reads the current value as a string.
func (it *Iter) String() (string, error) {
	at, err := it.basic(TypeString)
	if err != nil {
		return "", err
	}
	s, _, err := readString(it.data, at)
	if err != nil {
		return "", it.fail("%v", err)
	}
	return s, nil
}

// Uint32 reads the current value as a uint32.
func (it *Iter) Uint32() (uint32, error) {
	at, err := it.basic(TypeUint32)
	if err != nil {
		return 0, err
	}
	if at+4 > len(it.data) {
		return 0, it.fail("uint32 truncated at offset %d", at)
	}
	return binary.LittleEndian.Uint32(it.data[at:]), nil
}

// Uint64 reads the current value as a uint64.
func (it *Iter) Uint64() (uint64, error) {
	at, err := it.basic(TypeUint64)
	if err != nil {
		return 0, err
	}
	if at+8 > len(it.data) {
		return 0, it.fail("uint64 truncated at offset %d", at)
	}
	return binary.LittleEndian.Uint64(it.data[at:]), nil
}

// Bool reads the current value as a boolean.
func (it *Iter) Bool() (bool, error) {
	at, err := it.basic(TypeBool)
	if err != nil {
		return false, err
	}
	if at >= len(it.data) {
		return false, it.fail("bool truncated at offset %d", at)
	}
	switch it.data[at] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, it.fail("bool has value %d at offset %d", it.data[at], at)
}

func readString(data []byte, at int) (string, int, error) {
	n, w := binary.Uvarint(data[min(at, len(data)):])
	if w <= 0 {
		return "", 0, fmt.Errorf("bad string length at offset %d", at)
	}
	start := at + w
	if n > uint64(len(data)-start) {
		return "", 0, fmt.Errorf("string of %d bytes truncated at offset %d", n, at)
	}
	s := data[start : start+int(n)]
	if !utf8.Valid(s) {
		return "", 0, fmt.Errorf("string at offset %d is not valid UTF-8", at)
	}
	return string(s), start + int(n), nil
}

func readVariantSig(data []byte, at int) (string, int, error) {
	n, w := binary.Uvarint(data[min(at, len(data)):])
	if w <= 0 {
		return "", 0, fmt.Errorf("bad variant signature length at offset %d", at)
	}
	start := at + w
	if n > uint64(len(data)-start) || n > MaxSignatureLen {
		return "", 0, fmt.Errorf("variant signature truncated at offset %d", at)
	}
	sig := string(data[start : start+int(n)])
	if !IsSingleCompleteType(sig) {
		return "", 0, fmt.Errorf("variant at offset %d carries %q, not a single complete type", at, sig)
	}
	return sig, start + int(n), nil
}

// skip returns the offset just past the value of type sig starting at at.
func skip(data []byte, at int, sig string, depth int) (int, error) {
	if depth > MaxDepth {
		return 0, fmt.Errorf("nesting deeper than %d", MaxDepth)
	}
	switch sig[0] {
	case TypeString:
		_, end, err := readString(data, at)
		return end, err
	case TypeUint32:
		if at+4 > len(data) {
			return 0, fmt.Errorf("uint32 truncated at offset %d", at)
		}
		return at + 4, nil
	case TypeUint64:
		if at+8 > len(data) {
			return 0, fmt.Errorf("uint64 truncated at offset %d", at)
		}
		return at + 8, nil
	case TypeBool:
		if at >= len(data) {
			return 0, fmt.Errorf("bool truncated at offset %d", at)
		}
		return at + 1, nil
	case TypeVariant:
		inner, next, err := readVariantSig(data, at)
		if err != nil {
			return 0, err
		}
		return skip(data, next, inner, depth+1)
	case TypeArray:
		elem := sig[1:]
		pos := at
		for {
			if pos >= len(data) {
				return 0, fmt.Errorf("array truncated at offset %d", pos)
			}
			switch data[pos] {
			case markerEnd:
				return pos + 1, nil
			case markerElement:
				next, err := skip(data, pos+1, elem, depth+1)
				if err != nil {
					return 0, err
				}
				pos = next
			default:
				return 0, fmt.Errorf("bad array marker 0x%02x at offset %d", data[pos], pos)
			}
		}
	case TypeStructBegin, TypeDictBegin:
		fields, err := SplitSignature(sig[1 : len(sig)-1])
		if err != nil {
			return 0, err
		}
		pos := at
		for _, f := range fields {
			if pos, err = skip(data, pos, f, depth+1); err != nil {
				return 0, err
			}
		}
		return pos, nil
	}
	return 0, fmt.Errorf("unknown type %q", sig)
}
