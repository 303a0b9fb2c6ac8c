package scheduling

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by a Store when the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCollaborator matches every CollaboratorError.
	ErrCollaborator = errors.New("scheduling collaborator failure")
)

// CollaboratorError reports that a read against the store or the consent
// service failed. It is an infrastructure failure, never a rule violation.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

func (e *CollaboratorError) Is(target error) bool { return target == ErrCollaborator }

func collaboratorErr(op string, err error) error {
	return &CollaboratorError{Op: op, Err: err}
}
