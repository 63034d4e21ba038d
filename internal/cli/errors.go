package cli

import (
	"context"
	"errors"

	"github.com/marcopeg/mondo-sub000/internal/index"
	"github.com/marcopeg/mondo-sub000/internal/relations"
	"github.com/marcopeg/mondo-sub000/internal/vault"
)

// Error codes for structured error responses.
// These codes are stable and can be relied upon by scripts.
const (
	// Vault errors
	ErrVaultNotFound     = "VAULT_NOT_FOUND"
	ErrVaultNotSpecified = "VAULT_NOT_SPECIFIED"
	ErrConfigInvalid     = "CONFIG_INVALID"
	ErrEntitiesInvalid   = "ENTITIES_INVALID"

	// Entity configuration errors
	ErrTypeNotFound   = "TYPE_NOT_FOUND"
	ErrFieldNotFound  = "FIELD_NOT_FOUND"
	ErrPanelNotFound  = "PANEL_NOT_FOUND"
	ErrActionNotFound = "ACTION_NOT_FOUND"

	// Note errors
	ErrNoteNotFound = "NOTE_NOT_FOUND"
	ErrNoteExists   = "NOTE_EXISTS"

	// Creation flow errors
	ErrCreationFailed = "CREATION_FAILED"
	ErrLinkingFailed  = "LINKING_FAILED"
	ErrAbandoned      = "ABANDONED"
	ErrSelfLink       = "SELF_LINK"

	// Database errors
	ErrDatabaseError = "DATABASE_ERROR"
	ErrIndexLocked   = "INDEX_LOCKED"

	// Input errors
	ErrInvalidInput    = "INVALID_INPUT"
	ErrMissingArgument = "MISSING_ARGUMENT"

	// General errors
	ErrInternal = "INTERNAL_ERROR"
)

// failure is an error with an explicit code, used where the code depends on
// where the error happened rather than what it wraps.
type failure struct {
	code       string
	err        error
	suggestion string
}

func (f *failure) Error() string { return f.err.Error() }
func (f *failure) Unwrap() error { return f.err }

func fail(code string, err error, suggestion string) error {
	return &failure{code: code, err: err, suggestion: suggestion}
}

// codeFor maps package errors to their stable code.
func codeFor(err error) string {
	var f *failure
	if errors.As(err, &f) {
		return f.code
	}
	var creation *relations.CreationError
	var linking *relations.LinkingError
	switch {
	case errors.As(err, &creation):
		return ErrCreationFailed
	case errors.As(err, &linking):
		return ErrLinkingFailed
	case errors.Is(err, relations.ErrAbandoned), errors.Is(err, context.Canceled):
		return ErrAbandoned
	case errors.Is(err, relations.ErrSelfLink):
		return ErrSelfLink
	case errors.Is(err, relations.ErrUnknownEntity):
		return ErrTypeNotFound
	case errors.Is(err, relations.ErrUnknownField):
		return ErrFieldNotFound
	case errors.Is(err, relations.ErrUnknownLink):
		return ErrPanelNotFound
	case errors.Is(err, relations.ErrUnknownAction):
		return ErrActionNotFound
	case errors.Is(err, vault.ErrNoteNotFound):
		return ErrNoteNotFound
	case errors.Is(err, vault.ErrNoteExists):
		return ErrNoteExists
	case errors.Is(err, index.ErrIndexLocked):
		return ErrIndexLocked
	}
	return ErrInternal
}

func suggestionFor(code string) string {
	switch code {
	case ErrTypeNotFound, ErrFieldNotFound, ErrPanelNotFound, ErrActionNotFound:
		return "Run 'mondo entities' to see the configured entities"
	case ErrLinkingFailed:
		return "The note was created; run 'mondo link' to finish linking it"
	case ErrIndexLocked:
		return "Another 'mondo reindex' is running; try again when it finishes"
	}
	return ""
}

// detailsFor returns structured details for errors that carry them.
func detailsFor(err error) interface{} {
	var creation *relations.CreationError
	if errors.As(err, &creation) {
		return map[string]string{"path": creation.Path}
	}
	var linking *relations.LinkingError
	if errors.As(err, &linking) {
		return map[string]string{"note": linking.Note.ID}
	}
	return nil
}
