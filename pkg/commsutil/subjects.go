package commsutil

import "fmt"

// Default COMMS subjects.
const (
	SubjectCall         = "woodchuck.call"
	SubjectIntrospect   = "woodchuck.introspect"
	SubjectUpcallPrefix = "woodchuck.upcall"
)

// UpcallSubject builds the subject feedback upcalls for a subscription
// handle are published on.
func UpcallSubject(prefix, handle string) string {
	if prefix == "" {
		prefix = SubjectUpcallPrefix
	}
	return fmt.Sprintf("%s.%s", prefix, handle)
}
