package woodchuck

import "fmt"

// Kind classifies a Core Service failure.
type Kind int

const (
	KindSuccess        Kind = 0
	KindNoSuchObject   Kind = 1
	KindGeneric        Kind = 100
	KindObjectExists   Kind = 101
	KindNotImplemented Kind = 102
	KindInternalError  Kind = 103
	KindInvalidArgs    Kind = 104
)

// String returns the human-readable description of the kind.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "Success"
	case KindNoSuchObject:
		return "No such object"
	case KindGeneric:
		return "Generic Error"
	case KindObjectExists:
		return "Object exists"
	case KindNotImplemented:
		return "Method not implemented"
	case KindInternalError:
		return "Internal server error"
	case KindInvalidArgs:
		return "Invalid arguments"
	}
	return fmt.Sprintf("Unknown error %d", int(k))
}

// Name returns the bus error name for the kind.
func (k Kind) Name() string {
	switch k {
	case KindNoSuchObject:
		return "org.freedesktop.DBus.Error.UnknownObject"
	case KindGeneric:
		return "org.woodchuck.GenericError"
	case KindObjectExists:
		return "org.woodchuck.ObjectExists"
	case KindNotImplemented:
		return "org.woodchuck.MethodNotImplemented"
	case KindInternalError:
		return "org.woodchuck.InternalError"
	case KindInvalidArgs:
		return "org.woodchuck.InvalidArgs"
	}
	return "org.woodchuck.UnknownError"
}

// Error is a failed Core Service operation.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Message
}

// Errorf creates an Error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func noSuchObject(kind, id string) *Error {
	return Errorf(KindNoSuchObject, "No %s with id %s", kind, id)
}

func internalError(what string) *Error {
	return &Error{Kind: KindInternalError, Message: what}
}
