package persona

import "errors"

var (
	// ErrNotFound is returned when a referenced template or persona does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState is returned when an operation needs an active persona.
	ErrInvalidState = errors.New("persona is inactive")
	// ErrQuotaExceeded is an expected, user-visible outcome: the daily cap is used up.
	ErrQuotaExceeded = errors.New("daily quota exceeded")
	// ErrPersistence wraps store failures; the whole unit was rolled back and may be retried.
	ErrPersistence = errors.New("persistence failure")
	// ErrConflict is returned when a template is instantiated twice into one project.
	ErrConflict = errors.New("already exists")
	// ErrInconsistent means a persona's scores no longer match its ledger.
	ErrInconsistent = errors.New("ledger and scores disagree")
	// ErrInvalidInput is returned for structurally invalid requests.
	ErrInvalidInput = errors.New("invalid input")
)
