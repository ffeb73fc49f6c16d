package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnavailable is returned when no backend client is configured.
	ErrBackendUnavailable = errors.New("backend not initialized")
	// ErrNoActiveUser is returned by operations that need a signed-in identity.
	ErrNoActiveUser = errors.New("no user logged in")
	// ErrRemoteRead wraps error payloads returned by a backend read.
	ErrRemoteRead = errors.New("remote read failed")
	// ErrRemoteWrite wraps error payloads returned by a backend write.
	ErrRemoteWrite = errors.New("remote write failed")
	// ErrNetwork covers transport failures and non-success HTTP statuses.
	ErrNetwork = errors.New("network failure")
)

// RemoteError is an error payload reported by the backend. Kind is one of
// ErrRemoteRead, ErrRemoteWrite or ErrNetwork and is matched by errors.Is.
type RemoteError struct {
	Op      string
	Kind    error
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %v (status %d): %s", e.Op, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Message)
}

func (e *RemoteError) Is(target error) bool {
	return target == e.Kind
}

func ReadError(op string, status int, msg string) error {
	return &RemoteError{Op: op, Kind: ErrRemoteRead, Status: status, Message: msg}
}

func WriteError(op string, status int, msg string) error {
	return &RemoteError{Op: op, Kind: ErrRemoteWrite, Status: status, Message: msg}
}
