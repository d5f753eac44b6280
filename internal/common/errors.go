package common

import (
	"errors"
	"fmt"
)

// Errors that abort a whole fetch-and-map invocation. Callers match them with errors.Is.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrMalformedRequest  = errors.New("malformed request")
	ErrTransport         = errors.New("transport error")
	ErrMalformedResponse = errors.New("malformed response")
	ErrInterrupted       = errors.New("operation interrupted")
)

// StatusError is a transport failure caused by a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %s", ErrTransport, e.Status)
}

// Is makes a StatusError match ErrTransport.
func (e *StatusError) Is(target error) bool {
	return target == ErrTransport
}

// Retryable reports whether a caller may retry the failed invocation.
// Only transport failures qualify; configuration and parsing errors repeat deterministically.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, ErrInterrupted) {
		return false
	}
	return errors.Is(err, ErrTransport)
}
