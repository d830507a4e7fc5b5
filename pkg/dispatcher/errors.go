package dispatcher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/morezero/woodchuck/pkg/woodchuck"
)

// Error codes carried in ErrorDetail.Code.
const (
	CodeUnknownObject    = "UnknownObject"
	CodeUnknownInterface = "UnknownInterface"
	CodeUnknownMethod    = "UnknownMethod"
	CodeInvalidArguments = "InvalidArguments"
	CodeOperationFailed  = "OperationFailed"
)

// Bus error names for failures raised by the dispatcher itself.
const (
	NameUnknownObject    = "org.freedesktop.DBus.Error.UnknownObject"
	NameUnknownInterface = "org.freedesktop.DBus.Error.UnknownInterface"
	NameUnknownMethod    = "org.freedesktop.DBus.Error.UnknownMethod"
	NameInvalidArgs      = "org.freedesktop.DBus.Error.InvalidArgs"
)

// CallError is a failed call, ready to be sent as an error reply.
type CallError struct {
	Code      string
	Name      string
	Message   string
	Retryable bool
}

func (e *CallError) Error() string {
	return e.Code + ": " + e.Message
}

// Detail converts the error to its envelope form.
func (e *CallError) Detail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Name: e.Name, Message: e.Message, Retryable: e.Retryable}
}

// argError marks a decode failure. It maps to InvalidArguments.
type argError struct {
	err error
}

func (e *argError) Error() string { return e.err.Error() }
func (e *argError) Unwrap() error { return e.err }

func unknownObject(call *MethodCall) *CallError {
	return &CallError{
		Code:    CodeUnknownObject,
		Name:    NameUnknownObject,
		Message: fmt.Sprintf("%s: No such object.", call.Path),
	}
}

func unknownInterface(call *MethodCall) *CallError {
	return &CallError{
		Code:    CodeUnknownInterface,
		Name:    NameUnknownInterface,
		Message: fmt.Sprintf("%s does not understand message %s.%s", call.Path, call.Interface, call.Member),
	}
}

func unknownMethod(call *MethodCall) *CallError {
	return &CallError{
		Code:    CodeUnknownMethod,
		Name:    NameUnknownMethod,
		Message: fmt.Sprintf("%s does not understand message %s.%s", call.Path, call.Interface, call.Member),
	}
}

func badSignature(call *MethodCall, expected string) *CallError {
	return &CallError{
		Code:    CodeInvalidArguments,
		Name:    NameInvalidArgs,
		Message: fmt.Sprintf("%s: %s.%s: Expected %s got %s.", call.Path, call.Interface, call.Member, expected, call.Signature),
	}
}

func invalidArguments(call *MethodCall, err error) *CallError {
	return &CallError{
		Code:    CodeInvalidArguments,
		Name:    NameInvalidArgs,
		Message: fmt.Sprintf("%s: %s.%s: %s.", call.Path, call.Interface, call.Member, strings.TrimSuffix(err.Error(), ".")),
	}
}

// coreErrorToCallError maps a Core Service failure to an OperationFailed
// error. Errors that are not *woodchuck.Error count as internal errors.
func coreErrorToCallError(call *MethodCall, err error) *CallError {
	var argErr *argError
	if errors.As(err, &argErr) {
		return invalidArguments(call, argErr.err)
	}
	var coreErr *woodchuck.Error
	if !errors.As(err, &coreErr) {
		coreErr = &woodchuck.Error{Kind: woodchuck.KindInternalError}
	}
	text := coreErr.Message
	if text == "" {
		text = coreErr.Kind.String()
	}
	return &CallError{
		Code:      CodeOperationFailed,
		Name:      coreErr.Kind.Name(),
		Message:   fmt.Sprintf("%s: %s.%s: %s.", call.Path, call.Interface, call.Member, strings.TrimSuffix(text, ".")),
		Retryable: coreErr.Kind == woodchuck.KindInternalError,
	}
}
