package seal

import (
	"errors"
	"fmt"
	"time"
)

// ErrSealedAccessDenied is returned for any content read attempted before
// the unlock transition.
var ErrSealedAccessDenied = errors.New("sealed: content access denied until unlock")

// ErrAlreadySealed is returned when a second seal is attempted.
var ErrAlreadySealed = errors.New("already sealed: a seal record exists")

// ErrNotSealed is returned when unlock is attempted before any seal exists.
var ErrNotSealed = errors.New("not sealed: nothing to unlock")

// TooEarlyError is the expected, non-fatal outcome of an unlock attempt
// before the target time. It carries the remaining blind-period duration and
// causes no state change.
type TooEarlyError struct {
	Now    time.Time
	Target time.Time
}

// Remaining returns how long until the target unlock time.
func (e *TooEarlyError) Remaining() time.Duration {
	return e.Target.Sub(e.Now)
}

func (e *TooEarlyError) Error() string {
	rem := e.Remaining()
	days := int(rem.Hours()) / 24
	if days > 0 {
		return fmt.Sprintf("too early: %dd%s until unlock at %s",
			days, (rem - time.Duration(days)*24*time.Hour).Round(time.Second), e.Target.Format(time.RFC3339))
	}
	return fmt.Sprintf("too early: %s until unlock at %s", rem.Round(time.Second), e.Target.Format(time.RFC3339))
}

// IsTooEarly reports whether err is a TooEarlyError.
func IsTooEarly(err error) bool {
	var te *TooEarlyError
	return errors.As(err, &te)
}

// IntegrityViolationError is fatal: the sealed prefix no longer matches the
// chain hash recorded at seal time. Unlock stays permanently blocked and the
// data needs manual investigation.
type IntegrityViolationError struct {
	// BadSeq is the first snapshot whose link failed verification, or 0
	// when the head hash itself mismatched.
	BadSeq   int64
	Expected string
	Actual   string
}

func (e *IntegrityViolationError) Error() string {
	if e.BadSeq > 0 {
		return fmt.Sprintf("integrity violation: chain broken at snapshot %d", e.BadSeq)
	}
	return fmt.Sprintf("integrity violation: chain head %s does not match sealed hash %s", e.Actual, e.Expected)
}

// IsIntegrityViolation reports whether err is an IntegrityViolationError.
func IsIntegrityViolation(err error) bool {
	var iv *IntegrityViolationError
	return errors.As(err, &iv)
}
