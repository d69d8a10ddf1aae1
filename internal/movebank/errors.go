package movebank

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentialsMissing means no configured source produced both a
	// username and a password.
	ErrCredentialsMissing = errors.New("movebank credentials not found")

	// ErrUnknownSensor means a sensor token matched neither a numeric ID
	// nor an alias in the reference table.
	ErrUnknownSensor = errors.New("unknown sensor type")

	// ErrInvalidTimestamp means a timestamp was in none of the accepted
	// input forms.
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrAccessDenied means the credentials are wrong or the account has
	// no permission for the requested study. Fatal for the whole run.
	ErrAccessDenied = errors.New("access denied")

	// ErrLicenseAcceptance means the automatic license acceptance retry
	// did not satisfy the service. Fatal for the whole run.
	ErrLicenseAcceptance = errors.New("license acceptance failed")

	// ErrNoData is the empty-result signal: the entity exists but the
	// service returned nothing for this filter. Not fatal.
	ErrNoData = errors.New("no data found")
)

// TransportError is an HTTP or network failure after retries were
// exhausted. Status is zero for network-level failures.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("movebank request failed: %v", e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("movebank request failed: status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("movebank request failed: status %d", e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsFatal reports whether an error invalidates the whole invocation
// rather than a single entity or sensor fetch.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAccessDenied) || errors.Is(err, ErrLicenseAcceptance)
}
