package artifact

import (
	"crypto/subtle"
	"fmt"
)

// IntegrityError reports that the code stored by the platform does not match the code that
// was built. It is never retryable: the risk is the wrong code running in production.
type IntegrityError struct {
	Expected Digest
	Actual   string
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("SHA256 mismatch between stored code and uploaded code: expected %q, platform reported %q",
		e.Expected, e.Actual)
}

// Verify returns an *IntegrityError unless reported equals local byte for byte.
func Verify(local Digest, reported string) error {
	if local == "" || subtle.ConstantTimeCompare([]byte(local), []byte(reported)) != 1 {
		return &IntegrityError{Expected: local, Actual: reported}
	}

	return nil
}
