// Package dispatcher routes method calls on woodchuck resources to the Core Service.
package dispatcher

// MethodCall is the envelope of an incoming call. Body holds the typed
// argument stream described by Signature.
type MethodCall struct {
	ID        string `cbor:"id"`
	Sender    string `cbor:"sender,omitempty"`
	Interface string `cbor:"interface"`
	Path      string `cbor:"path"`
	Member    string `cbor:"member"`
	Signature string `cbor:"signature"`
	Body      []byte `cbor:"body,omitempty"`
}

// Reply is the envelope of a response. Error is nil on success.
type Reply struct {
	ID        string       `cbor:"id"`
	Signature string       `cbor:"signature"`
	Body      []byte       `cbor:"body,omitempty"`
	Error     *ErrorDetail `cbor:"error,omitempty"`
}

// ErrorDetail holds structured error information.
type ErrorDetail struct {
	Code      string `cbor:"code"`
	Name      string `cbor:"name"`
	Message   string `cbor:"message"`
	Retryable bool   `cbor:"retryable"`
}

// Ok reports whether the reply is a success.
func (r *Reply) Ok() bool { return r.Error == nil }
