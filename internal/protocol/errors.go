package protocol

import (
	"errors"
	"fmt"
)

// ErrProtocolLocked is returned for any registry mutation after freeze.
var ErrProtocolLocked = errors.New("protocol registry is frozen")

// ErrRegistryNotFrozen is returned when the frozen definition set is
// requested before any freeze happened.
var ErrRegistryNotFrozen = errors.New("protocol registry is not frozen")

// RegistryMismatchError is returned when freeze is re-invoked over different
// definitions than the recorded freeze hash. Should not occur under correct
// sequencing.
type RegistryMismatchError struct {
	Recorded string
	Computed string
}

func (e *RegistryMismatchError) Error() string {
	return fmt.Sprintf("registry mismatch: frozen hash %s, recomputed %s", e.Recorded, e.Computed)
}
