package fs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entry path does not exist
	ErrNotFound = errors.New("no such file or directory")

	// ErrPermissionDenied is returned when the caller cannot modify an entry
	ErrPermissionDenied = errors.New("permission denied")
)

// MoveError represents an error that occurred while relocating an entry
type MoveError struct {
	Op  string // Operation being performed
	Src string // Source path
	Dst string // Destination path
	Err error  // Underlying error
}

func (e *MoveError) Error() string {
	if e.Dst == "" {
		return fmt.Sprintf("%s %q: %v", e.Op, e.Src, e.Err)
	}
	return fmt.Sprintf("%s %q to %q: %v", e.Op, e.Src, e.Dst, e.Err)
}

func (e *MoveError) Unwrap() error {
	return e.Err
}
