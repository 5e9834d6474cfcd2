package broker

import (
	"errors"
	"fmt"
)

var (
	ErrAuthConfiguration = errors.New("secrets service role and secret identifiers must be set")
	ErrAuthConnectivity  = errors.New("unable to connect to secrets service")
	ErrAuthRejected      = errors.New("no client token received from secrets service")
)

// Stage names the step of a credential fetch that failed.
type Stage string

const (
	StageTokenRetrieval Stage = "token retrieval"
	StageCredentialRead Stage = "credentials fetch"
)

// CredentialFetchError wraps any failure of ScopedCredential. Unwrap exposes
// the cause, so errors.Is(err, ErrAuthConfiguration) still matches when the
// session token could not be obtained.
type CredentialFetchError struct {
	Path  string
	Stage Stage
	Err   error
}

func (e *CredentialFetchError) Error() string {
	return fmt.Sprintf("%s for %s: %v", e.Stage, e.Path, e.Err)
}

func (e *CredentialFetchError) Unwrap() error { return e.Err }
