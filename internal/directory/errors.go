package directory

import "errors"

var (
	ErrNotFound            = errors.New("directory: account not found")
	ErrMissingFields       = errors.New("directory: invalid or missing fields")
	ErrInvalidRole         = errors.New("directory: invalid role")
	ErrInvalidBatch        = errors.New("directory: invalid batch")
	ErrDuplicateUserID     = errors.New("directory: user id already exists")
	ErrDuplicateRollNumber = errors.New("directory: roll number already exists")

	// ErrSessionHeld is returned by the conditional session claim when the
	// account already holds an active session.
	ErrSessionHeld = errors.New("directory: session already active")
)
