package store

import "errors"

var (
	// ErrDuplicateEmail is returned when an account with the requested
	// email already exists.
	ErrDuplicateEmail = errors.New("email already in use")
	// ErrUnknownTeacher is returned when a referenced teacher row does not
	// exist at write time.
	ErrUnknownTeacher = errors.New("teacher does not exist")
)
