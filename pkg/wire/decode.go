package wire

import (
	"fmt"
)

// DecodeValue decodes the current value of it. Variants collapse to the
// value they carry. The iterator is not advanced.
func DecodeValue(it *Iter) (Value, error) {
	return decodeValue(it)
}

func decodeValue(it *Iter) (Value, error) {
	switch t := it.ArgType(); t {
	case TypeInvalid:
		if err := it.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("missing value")
	case TypeString:
		s, err := it.String()
		if err != nil {
			return nil, err
		}
		return Str(s), nil
	case TypeUint32:
		u, err := it.Uint32()
		if err != nil {
			return nil, err
		}
		return U32(u), nil
	case TypeUint64:
		u, err := it.Uint64()
		if err != nil {
			return nil, err
		}
		return U64(u), nil
	case TypeBool:
		b, err := it.Bool()
		if err != nil {
			return nil, err
		}
		return Bool(b), nil
	case TypeVariant:
		inner, err := it.Recurse()
		if err != nil {
			return nil, err
		}
		return decodeValue(inner)
	case TypeStructBegin:
		fields, err := decodeFields(it)
		if err != nil {
			return nil, err
		}
		return fields, nil
	case TypeArray:
		if it.ElementType() == TypeDictBegin {
			return decodeDict(it, nil)
		}
		elemSig := it.Signature()[1:]
		sub, err := it.Recurse()
		if err != nil {
			return nil, err
		}
		elems := make([]Value, 0)
		for i := 0; sub.ArgType() != TypeInvalid; i++ {
			v, err := decodeValue(sub)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			elems = append(elems, v)
			if err := sub.Next(); err != nil {
				return nil, err
			}
		}
		if err := sub.Err(); err != nil {
			return nil, err
		}
		return Array{ElemSig: elemSig, Elems: elems}, nil
	default:
		return nil, fmt.Errorf("unexpected type %q", t)
	}
}

func decodeFields(it *Iter) (Struct, error) {
	sub, err := it.Recurse()
	if err != nil {
		return nil, err
	}
	var out Struct
	for i := 0; sub.ArgType() != TypeInvalid; i++ {
		v, err := decodeValue(sub)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		out = append(out, v)
		if err := sub.Next(); err != nil {
			return nil, err
		}
	}
	if err := sub.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountElements walks the current array to its terminator and returns the
// number of elements it holds. The iterator is not advanced.
func CountElements(it *Iter) (int, error) {
	if it.ArgType() != TypeArray {
		return 0, fmt.Errorf("expected an array, got %q", it.Signature())
	}
	sub, err := it.Recurse()
	if err != nil {
		return 0, err
	}
	n := 0
	for sub.ArgType() != TypeInvalid {
		if err := sub.Next(); err != nil {
			return 0, err
		}
		n++
	}
	if err := sub.Err(); err != nil {
		return 0, err
	}
	return n, nil
}

// DecodeStructArray decodes the current value, an array whose elements are
// structs or variants holding structs. template lists the field types each
// element must have; when empty, the first element's field types become the
// template. An element that does not conform fails the whole decode with
// its index in the error. The returned template is the one applied.
func DecodeStructArray(it *Iter, template []string) ([]Struct, []string, error) {
	elem := it.Signature()
	if len(elem) < 2 || elem[0] != TypeArray || (elem[1] != TypeStructBegin && elem[1] != TypeVariant) {
		return nil, nil, fmt.Errorf("expected an array of structs, got %q", elem)
	}
	n, err := CountElements(it)
	if err != nil {
		return nil, nil, err
	}
	sub, err := it.Recurse()
	if err != nil {
		return nil, nil, err
	}
	out := make([]Struct, 0, n)
	for i := 0; i < n; i++ {
		if sub.ArgType() == TypeInvalid {
			return nil, nil, fmt.Errorf("array ended after %d of %d elements", i, n)
		}
		cur := sub
		if sub.ArgType() == TypeVariant {
			if cur, err = sub.Recurse(); err != nil {
				return nil, nil, err
			}
		}
		if cur.ArgType() != TypeStructBegin {
			return nil, nil, fmt.Errorf("element %d: expected a struct, got %q", i, cur.Signature())
		}
		fields, err := StructFields(cur.Signature())
		if err != nil {
			return nil, nil, fmt.Errorf("element %d: %w", i, err)
		}
		if template == nil {
			template = fields
		} else if err := conform(fields, template); err != nil {
			return nil, nil, fmt.Errorf("element %d: %w", i, err)
		}
		s, err := decodeFields(cur)
		if err != nil {
			return nil, nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, s)
		if err := sub.Next(); err != nil {
			return nil, nil, err
		}
	}
	if sub.ArgType() != TypeInvalid || sub.Err() != nil {
		return nil, nil, fmt.Errorf("array changed length between passes")
	}
	return out, template, nil
}

func conform(fields, template []string) error {
	if len(fields) != len(template) {
		return fmt.Errorf("has %d fields, expected %d", len(fields), len(template))
	}
	for i := range fields {
		if fields[i] != template[i] {
			return fmt.Errorf("field %d has type %q, expected %q", i, fields[i], template[i])
		}
	}
	return nil
}

// DecodePropertyBag decodes the current value, an a{sv} or a{ss}, into a
// Dict. Each value must be a scalar or a variant holding a scalar or an
// array of structs.
func DecodePropertyBag(it *Iter) (Dict, error) {
	sig := it.Signature()
	if sig != "a{sv}" && sig != "a{ss}" {
		return nil, fmt.Errorf("expected a{sv} or a{ss}, got %q", sig)
	}
	return decodeDict(it, propertyValue)
}

func propertyValue(key string, it *Iter) (Value, error) {
	cur := it
	if it.ArgType() == TypeVariant {
		var err error
		if cur, err = it.Recurse(); err != nil {
			return nil, err
		}
	}
	sig := cur.Signature()
	switch {
	case sig != "" && isBasic(sig[0]):
		return decodeValue(cur)
	case len(sig) > 1 && sig[0] == TypeArray && (sig[1] == TypeStructBegin || sig[1] == TypeVariant):
		structs, template, err := DecodeStructArray(cur, nil)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", key, err)
		}
		elemSig := sig[1:]
		if template != nil {
			elemSig = JoinStruct(template)
		}
		arr := Array{ElemSig: elemSig, Elems: make([]Value, 0, len(structs))}
		for _, s := range structs {
			arr.Elems = append(arr.Elems, s)
		}
		return arr, nil
	}
	return nil, fmt.Errorf("property %s: unsupported value type %q", key, sig)
}

// decodeDict decodes an array of dict entries with string keys. value, when
// set, decodes each entry's value; otherwise any value is accepted.
func decodeDict(it *Iter, value func(string, *Iter) (Value, error)) (Dict, error) {
	sig := it.Signature()
	if len(sig) < 4 || sig[2] != TypeString {
		return nil, fmt.Errorf("dictionary keys must be strings, got %q", sig)
	}
	sub, err := it.Recurse()
	if err != nil {
		return nil, err
	}
	out := Dict{}
	for sub.ArgType() != TypeInvalid {
		entry, err := sub.Recurse()
		if err != nil {
			return nil, err
		}
		key, err := entry.String()
		if err != nil {
			return nil, err
		}
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("duplicate key %s", key)
		}
		if err := entry.Next(); err != nil {
			return nil, err
		}
		var v Value
		if value != nil {
			v, err = value(key, entry)
		} else {
			v, err = decodeValue(entry)
		}
		if err != nil {
			return nil, err
		}
		out[key] = v
		if err := sub.Next(); err != nil {
			return nil, err
		}
	}
	if err := sub.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
