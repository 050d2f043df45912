package checkpoint

import "errors"

// ErrNotFound matches any NotFoundError.
var ErrNotFound = errors.New("checkpoint not found")

// NotFoundError is returned when no checkpoint exists for a key.
type NotFoundError struct {
	Key string
}

func (e NotFoundError) Error() string {
	if e.Key == "" {
		return ErrNotFound.Error()
	}

	return ErrNotFound.Error() + ": " + e.Key
}

func (e NotFoundError) Unwrap() error {
	return ErrNotFound
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
