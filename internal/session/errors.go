package session

import "errors"

var (
	// ErrSessionNotFound indicates no session exists with the given ID
	ErrSessionNotFound = errors.New("session not found")
	// ErrManagerStopped indicates the manager is shutting down
	ErrManagerStopped = errors.New("session manager has been stopped")
	// ErrTooManySessions indicates the session limit was reached
	ErrTooManySessions = errors.New("too many sessions")
)

// IsNotFound checks if an error is a session not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}
