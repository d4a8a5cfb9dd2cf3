package presence

import "errors"

// ErrInhibitorUnavailable indicates the platform lock service could not be reached
var ErrInhibitorUnavailable = errors.New("inhibitor unavailable")

// IsUnavailable checks if an error came from an unreachable lock service
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrInhibitorUnavailable)
}
