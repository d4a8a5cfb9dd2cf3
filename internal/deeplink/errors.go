package deeplink

import "errors"

var (
	// ErrEmptyID indicates the deep link carried no identifier
	ErrEmptyID = errors.New("deep link id is empty")
	// ErrAlreadyHandled indicates the identifier was already applied in this session
	ErrAlreadyHandled = errors.New("deep link already handled")
	// ErrUnknownItem indicates the identifier does not resolve in the content pool
	ErrUnknownItem = errors.New("deep link item not found")
	// ErrClosed indicates the adapter was shut down
	ErrClosed = errors.New("deep link adapter closed")
)

// IsAlreadyHandled checks if an error is an already handled error
func IsAlreadyHandled(err error) bool {
	return errors.Is(err, ErrAlreadyHandled)
}

// IsUnknownItem checks if an error is an unknown item error
func IsUnknownItem(err error) bool {
	return errors.Is(err, ErrUnknownItem)
}
