package relations

import (
	"errors"
	"fmt"

	"github.com/marcopeg/mondo-sub000/internal/model"
)

var (
	// ErrAbandoned is returned once a session has been abandoned.
	ErrAbandoned = errors.New("session abandoned")

	// ErrBusy is returned when a session is asked to start a second
	// selection or creation while one is running.
	ErrBusy = errors.New("session busy")

	// ErrSelfLink is returned when the host is chosen as its own target.
	ErrSelfLink = errors.New("a note cannot be linked to itself")
)

// CreationError reports that the store failed to create a note. Nothing
// was written.
type CreationError struct {
	Path string
	Err  error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("failed to create %s: %v", e.Path, e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }

// LinkingError reports that the chosen note exists but linking it failed
// part way. Note is the created or selected note; pass the error to
// RetryLink to finish without creating it again.
type LinkingError struct {
	Note model.Note
	// Created is true when the session wrote Note itself. Its attributes
	// are already in the file.
	Created bool
	Err     error
}

func (e *LinkingError) Error() string {
	return fmt.Sprintf("%s was not linked: %v", e.Note.ID, e.Err)
}

func (e *LinkingError) Unwrap() error { return e.Err }
