package client

import (
	"errors"
	"fmt"
)

// RemoteError is an error reply from woodchuckd.
type RemoteError struct {
	Code    string
	Name    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// ErrorCode returns the code of a *RemoteError anywhere in err's chain, or
// "" if there is none.
func ErrorCode(err error) string {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
