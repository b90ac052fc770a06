package store

import "errors"

var (
	// ErrLoginConflict is returned when a login already exists
	ErrLoginConflict = errors.New("login already exists")

	// ErrRecordNotFound wraps GORM's not found error for consistency
	ErrRecordNotFound = errors.New("record not found")

	// ErrInvalidCredentials is returned when a password check fails or the
	// account may not authenticate
	ErrInvalidCredentials = errors.New("unknown user or invalid password")
)

// ValidationError carries the persistence layer's field-level validation
// messages for a rejected create or update.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	if len(e.Messages) == 0 {
		return "validation failed"
	}
	msg := e.Messages[0]
	for _, m := range e.Messages[1:] {
		msg += "; " + m
	}
	return msg
}
