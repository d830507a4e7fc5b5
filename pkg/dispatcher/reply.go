package dispatcher

import (
	"fmt"
	"strings"

	"github.com/morezero/woodchuck/pkg/wire"
	"github.com/morezero/woodchuck/pkg/woodchuck"
)

// replyShape is what a method returns on success.
type replyShape int

const (
	replyNone replyShape = iota
	replyString
	replyPair
	replyTuples
)

// result carries a handler's outputs; the method's shape says which field is set.
type result struct {
	str    string
	pair   [2]uint32
	tuples woodchuck.TupleList
}

func tupleSignature(arity int) string {
	return "a(" + strings.Repeat("s", arity) + ")"
}

// replySignature returns the reply signature for a shape.
func replySignature(shape replyShape, arity int) string {
	switch shape {
	case replyString:
		return "s"
	case replyPair:
		return "uu"
	case replyTuples:
		return tupleSignature(arity)
	}
	return ""
}

// encodeReply serializes res according to shape. A tuple with the wrong
// arity is a Core Service fault.
func encodeReply(shape replyShape, arity int, res result) (string, []byte, error) {
	w := wire.NewWriter()
	switch shape {
	case replyNone:
		return "", nil, nil
	case replyString:
		if err := w.Append(wire.Str(res.str)); err != nil {
			return "", nil, err
		}
	case replyPair:
		if err := w.Append(wire.U32(res.pair[0])); err != nil {
			return "", nil, err
		}
		if err := w.Append(wire.U32(res.pair[1])); err != nil {
			return "", nil, err
		}
	case replyTuples:
		elemSig := tupleSignature(arity)[1:]
		arr := wire.Array{ElemSig: elemSig, Elems: make([]wire.Value, 0, len(res.tuples))}
		for i, tuple := range res.tuples {
			if len(tuple) != arity {
				return "", nil, fmt.Errorf("tuple %d has %d fields, want %d", i, len(tuple), arity)
			}
			fields := make(wire.Struct, 0, arity)
			for _, s := range tuple {
				fields = append(fields, wire.Str(s))
			}
			arr.Elems = append(arr.Elems, fields)
		}
		if err := w.Append(arr); err != nil {
			return "", nil, err
		}
	}
	return w.Signature(), w.Bytes(), nil
}
