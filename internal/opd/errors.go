package opd

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionNotFound is returned for unknown or closed form sessions.
var ErrSessionNotFound = errors.New("opd: session not found")

// ValidationError rejects a form before anything is written.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "opd: " + e.Message
	}
	return fmt.Sprintf("opd: %s: %s", e.Message, strings.Join(e.Fields, ", "))
}

// LookupError reports a referenced record missing from the current roster.
type LookupError struct {
	Kind string
	ID   string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("opd: %s %q not found", e.Kind, e.ID)
}

// IDGenerationError reports a failed key allocation. Nothing was written.
type IDGenerationError struct {
	Path string
	Err  error
}

func (e *IDGenerationError) Error() string {
	return fmt.Sprintf("opd: allocate id under %s: %v", e.Path, e.Err)
}

func (e *IDGenerationError) Unwrap() error { return e.Err }

// StoreWriteError reports a failed store write. Err is the store's error as
// returned.
type StoreWriteError struct {
	Path string
	Err  error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("opd: write %s: %v", e.Path, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }
