package catalog

import "errors"

var (
	// ErrInvalidDocument indicates an import file that cannot be used
	ErrInvalidDocument = errors.New("invalid catalogue document")
	// ErrWatcherStopped indicates a watcher that was already stopped
	ErrWatcherStopped = errors.New("watcher has been stopped")
)

// IsInvalidDocument checks if an error is an invalid document error
func IsInvalidDocument(err error) bool {
	return errors.Is(err, ErrInvalidDocument)
}
