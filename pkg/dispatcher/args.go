package dispatcher

import (
	"fmt"

	"github.com/morezero/woodchuck/pkg/wire"
	"github.com/morezero/woodchuck/pkg/woodchuck"
)

// argReader reads a call's arguments in order. The first failure sticks:
// later reads return zero values and done reports it.
type argReader struct {
	it  *wire.Iter
	n   int
	err error
}

func newArgReader(sig string, body []byte) (*argReader, error) {
	it, err := wire.NewIter(sig, body)
	if err != nil {
		return nil, &argError{err: err}
	}
	return &argReader{it: it}, nil
}

func (r *argReader) fail(err error) {
	if r.err == nil {
		r.err = &argError{err: fmt.Errorf("argument %d: %w", r.n, err)}
	}
}

func (r *argReader) advance() {
	if r.err != nil {
		return
	}
	if err := r.it.Next(); err != nil {
		r.fail(err)
		return
	}
	r.n++
}

// has reports whether another argument follows.
func (r *argReader) has() bool {
	return r.err == nil && r.it.ArgType() != wire.TypeInvalid
}

func (r *argReader) str() string {
	if r.err != nil {
		return ""
	}
	s, err := r.it.String()
	if err != nil {
		r.fail(err)
		return ""
	}
	r.advance()
	return s
}

func (r *argReader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.it.Uint32()
	if err != nil {
		r.fail(err)
		return 0
	}
	r.advance()
	return v
}

func (r *argReader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	v, err := r.it.Uint64()
	if err != nil {
		r.fail(err)
		return 0
	}
	r.advance()
	return v
}

func (r *argReader) boolean() bool {
	if r.err != nil {
		return false
	}
	v, err := r.it.Bool()
	if err != nil {
		r.fail(err)
		return false
	}
	r.advance()
	return v
}

func (r *argReader) bag() woodchuck.PropertyBag {
	if r.err != nil {
		return nil
	}
	d, err := wire.DecodePropertyBag(r.it)
	if err != nil {
		r.fail(err)
		return nil
	}
	r.advance()
	return d
}

func (r *argReader) structs(template ...string) []wire.Struct {
	if r.err != nil {
		return nil
	}
	out, _, err := wire.DecodeStructArray(r.it, template)
	if err != nil {
		r.fail(err)
		return nil
	}
	r.advance()
	return out
}

// done reports the first failure, or an error if arguments remain unread
// or the body has trailing bytes.
func (r *argReader) done() error {
	if r.err != nil {
		return r.err
	}
	if r.it.ArgType() != wire.TypeInvalid {
		return &argError{err: fmt.Errorf("unexpected argument %d", r.n)}
	}
	if err := r.it.Close(); err != nil {
		return &argError{err: err}
	}
	return nil
}
