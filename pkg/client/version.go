package client

import (
	"errors"
	"fmt"

	masterminds "github.com/Masterminds/semver/v3"
)

// DefaultProtocolConstraint accepts any 1.x service.
const DefaultProtocolConstraint = "^1.0"

// ErrIncompatibleProtocol is returned by Connect when the service speaks a
// protocol version outside the client's constraint.
var ErrIncompatibleProtocol = errors.New("incompatible protocol version")

// checkProtocol reports whether version satisfies constraint.
func checkProtocol(version, constraint string) error {
	c, err := masterminds.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("%s - invalid protocol constraint %q: %w", logPrefix, constraint, err)
	}
	v, err := masterminds.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%s - service reported protocol %q: %w", logPrefix, version, ErrIncompatibleProtocol)
	}
	if !c.Check(v) {
		return fmt.Errorf("%s - service protocol %s does not satisfy %s: %w", logPrefix, version, constraint, ErrIncompatibleProtocol)
	}
	return nil
}
