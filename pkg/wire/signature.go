package wire

import (
	"fmt"
	"strings"
)

// Type codes of the argument stream. They follow the D-Bus signature alphabet.
const (
	TypeInvalid     byte = 0
	TypeString      byte = 's'
	TypeUint32      byte = 'u'
	TypeUint64      byte = 't'
	TypeBool        byte = 'b'
	TypeVariant     byte = 'v'
	TypeArray       byte = 'a'
	TypeStructBegin byte = '('
	TypeStructEnd   byte = ')'
	TypeDictBegin   byte = '{'
	TypeDictEnd     byte = '}'
)

// MaxDepth bounds container nesting, variants included.
const MaxDepth = 32

// MaxSignatureLen bounds a signature string, in bytes.
const MaxSignatureLen = 255

func isBasic(c byte) bool {
	switch c {
	case TypeString, TypeUint32, TypeUint64, TypeBool:
		return true
	}
	return false
}

// SplitSignature splits sig into its complete types. The empty signature
// yields no types.
func SplitSignature(sig string) ([]string, error) {
	if len(sig) > MaxSignatureLen {
		return nil, fmt.Errorf("signature longer than %d bytes", MaxSignatureLen)
	}
	var out []string
	for rest := sig; rest != ""; {
		n, err := completeTypeLen(rest, 0)
		if err != nil {
			return nil, fmt.Errorf("signature %q: %w", sig, err)
		}
		out = append(out, rest[:n])
		rest = rest[n:]
	}
	return out, nil
}

// IsSingleCompleteType reports whether sig is exactly one complete type.
func IsSingleCompleteType(sig string) bool {
	if sig == "" || len(sig) > MaxSignatureLen {
		return false
	}
	n, err := completeTypeLen(sig, 0)
	return err == nil && n == len(sig)
}

// completeTypeLen returns the length of the complete type at the start of sig.
func completeTypeLen(sig string, depth int) (int, error) {
	if depth > MaxDepth {
		return 0, fmt.Errorf("nesting deeper than %d", MaxDepth)
	}
	if sig == "" {
		return 0, fmt.Errorf("missing type")
	}
	switch sig[0] {
	case TypeString, TypeUint32, TypeUint64, TypeBool, TypeVariant:
		return 1, nil
	case TypeArray:
		if len(sig) > 1 && sig[1] == TypeDictBegin {
			if len(sig) < 3 || !isBasic(sig[2]) {
				return 0, fmt.Errorf("dict entry key must be a basic type")
			}
			n, err := completeTypeLen(sig[3:], depth+2)
			if err != nil {
				return 0, err
			}
			end := 3 + n
			if end >= len(sig) || sig[end] != TypeDictEnd {
				return 0, fmt.Errorf("unterminated dict entry")
			}
			return end + 1, nil
		}
		n, err := completeTypeLen(sig[1:], depth+1)
		if err != nil {
			return 0, err
		}
		return 1 + n, nil
	case TypeStructBegin:
		i := 1
		for {
			if i >= len(sig) {
				return 0, fmt.Errorf("unterminated struct")
			}
			if sig[i] == TypeStructEnd {
				if i == 1 {
					return 0, fmt.Errorf("empty struct")
				}
				return i + 1, nil
			}
			n, err := completeTypeLen(sig[i:], depth+1)
			if err != nil {
				return 0, err
			}
			i += n
		}
	case TypeDictBegin:
		return 0, fmt.Errorf("dict entry outside of array")
	default:
		return 0, fmt.Errorf("unknown type code %q", sig[0])
	}
}

// StructFields returns the field types of a struct signature such as "(sbu)".
func StructFields(sig string) ([]string, error) {
	if len(sig) < 2 || sig[0] != TypeStructBegin || sig[len(sig)-1] != TypeStructEnd {
		return nil, fmt.Errorf("%q is not a struct signature", sig)
	}
	return SplitSignature(sig[1 : len(sig)-1])
}

// JoinStruct builds a struct signature from field types.
func JoinStruct(fields []string) string {
	return "(" + strings.Join(fields, "") + ")"
}
