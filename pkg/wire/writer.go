package wire

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

const (
	markerEnd     byte = 0x00
	markerElement byte = 0x01
)

// Writer builds an argument stream and its signature. A failed Append
// leaves the writer unchanged.
type Writer struct {
	buf []byte
	sig []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Append writes v using its own signature.
func (w *Writer) Append(v Value) error {
	return w.AppendAs(v.Signature(), v)
}

// AppendAs writes v as the complete type sig. Use it to send a Dict as
// a{ss} or to wrap array elements in variants.
func (w *Writer) AppendAs(sig string, v Value) error {
	if !IsSingleCompleteType(sig) {
		return fmt.Errorf("wire: %q is not a single complete type", sig)
	}
	if len(w.sig)+len(sig) > MaxSignatureLen {
		return fmt.Errorf("wire: signature longer than %d bytes", MaxSignatureLen)
	}
	out, err := encodeValue(nil, sig, v, 0)
	if err != nil {
		return fmt.Errorf("wire: %w", err)
	}
	w.buf = append(w.buf, out...)
	w.sig = append(w.sig, sig...)
	return nil
}

// Bytes returns the encoded body.
func (w *Writer) Bytes() []byte { return w.buf }

// Signature returns the signature of everything appended so far.
func (w *Writer) Signature() string { return string(w.sig) }

// Encode writes values in order and returns the signature and body.
func Encode(values ...Value) (string, []byte, error) {
	w := NewWriter()
	for _, v := range values {
		if err := w.Append(v); err != nil {
			return "", nil, err
		}
	}
	return w.Signature(), w.Bytes(), nil
}

func encodeValue(buf []byte, sig string, v Value, depth int) ([]byte, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("nesting deeper than %d", MaxDepth)
	}
	if v == nil {
		return nil, fmt.Errorf("nil value for %q", sig)
	}
	switch sig[0] {
	case TypeString:
		s, ok := v.(Str)
		if !ok {
			return nil, mismatch(sig, v)
		}
		if !utf8.ValidString(string(s)) {
			return nil, fmt.Errorf("string is not valid UTF-8")
		}
		buf = binary.AppendUvarint(buf, uint64(len(s)))
		return append(buf, s...), nil
	case TypeUint32:
		u, ok := v.(U32)
		if !ok {
			return nil, mismatch(sig, v)
		}
		return binary.LittleEndian.AppendUint32(buf, uint32(u)), nil
	case TypeUint64:
		u, ok := v.(U64)
		if !ok {
			return nil, mismatch(sig, v)
		}
		return binary.LittleEndian.AppendUint64(buf, uint64(u)), nil
	case TypeBool:
		b, ok := v.(Bool)
		if !ok {
			return nil, mismatch(sig, v)
		}
		if b {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case TypeVariant:
		inner := v.Signature()
		if !IsSingleCompleteType(inner) {
			return nil, fmt.Errorf("variant holds invalid signature %q", inner)
		}
		buf = binary.AppendUvarint(buf, uint64(len(inner)))
		buf = append(buf, inner...)
		return encodeValue(buf, inner, v, depth+1)
	case TypeArray:
		elem := sig[1:]
		if elem[0] == TypeDictBegin {
			return encodeDict(buf, elem, v, depth)
		}
		a, ok := v.(Array)
		if !ok {
			return nil, mismatch(sig, v)
		}
		if a.ElemSig != "" && a.ElemSig != elem && elem != "v" {
			return nil, fmt.Errorf("array of %q written as %q", a.ElemSig, sig)
		}
		var err error
		for i, e := range a.Elems {
			buf = append(buf, markerElement)
			if buf, err = encodeValue(buf, elem, e, depth+1); err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
		}
		return append(buf, markerEnd), nil
	case TypeStructBegin:
		s, ok := v.(Struct)
		if !ok {
			return nil, mismatch(sig, v)
		}
		fields, err := StructFields(sig)
		if err != nil {
			return nil, err
		}
		if len(fields) != len(s) {
			return nil, fmt.Errorf("struct %q given %d fields", sig, len(s))
		}
		for i, f := range fields {
			if buf, err = encodeValue(buf, f, s[i], depth+1); err != nil {
				return nil, fmt.Errorf("field %d: %w", i, err)
			}
		}
		return buf, nil
	}
	return nil, fmt.Errorf("cannot encode type %q", sig)
}

func encodeDict(buf []byte, entry string, v Value, depth int) ([]byte, error) {
	d, ok := v.(Dict)
	if !ok {
		return nil, mismatch("a"+entry, v)
	}
	if entry[1] != TypeString {
		return nil, fmt.Errorf("dict keys must be strings, not %q", entry[1])
	}
	valSig := entry[2 : len(entry)-1]
	var err error
	for _, k := range d.Keys() {
		buf = append(buf, markerElement)
		if buf, err = encodeValue(buf, "s", Str(k), depth+2); err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		if buf, err = encodeValue(buf, valSig, d[k], depth+2); err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
	}
	return append(buf, markerEnd), nil
}

func mismatch(sig string, v Value) error {
	return fmt.Errorf("cannot write %T as %q", v, sig)
}
