package corpus

import (
	"errors"
	"fmt"
)

var (
	// ErrRootMissing is returned when the corpus root does not exist.
	ErrRootMissing = errors.New("corpus root does not exist")
	// ErrRootNotDir is returned when the corpus root is a regular file.
	ErrRootNotDir = errors.New("corpus root is not a directory")
	// ErrNoBlocks is returned when not a single block file parsed.
	ErrNoBlocks = errors.New("no block definitions could be parsed")
)

// FatalInputError aborts a run: no report is produced. Warnings collected
// before the failure are attached so the caller can still surface them.
type FatalInputError struct {
	Root     string
	Err      error
	Warnings []Warning
}

func (e *FatalInputError) Error() string {
	return fmt.Sprintf("fatal input error for %s: %v", e.Root, e.Err)
}

func (e *FatalInputError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is (or wraps) a FatalInputError.
func IsFatal(err error) bool {
	var fe *FatalInputError
	return errors.As(err, &fe)
}
