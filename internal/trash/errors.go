package trash

import (
	"errors"

	"github.com/babarot/smartrm/internal/fs"
	"github.com/babarot/smartrm/internal/metadata"
)

// Errors returned by the trash can. Lower layers keep their own sentinels;
// these alias them so errors.Is works from either side.
var (
	// ErrNotFound is returned when a name has no record in the can
	ErrNotFound = metadata.ErrNotFound

	// ErrPermissionDenied is returned when the caller may not modify a path
	ErrPermissionDenied = fs.ErrPermissionDenied

	// ErrInsufficientSpace is returned when the can's filesystem cannot hold
	// the item
	ErrInsufficientSpace = errors.New("not enough free space in trash can")

	// ErrProtectedPath is returned for paths that are never moved to the can
	ErrProtectedPath = errors.New("refusing to remove protected path")

	// ErrFileExists is returned when a restore would replace an entry of a
	// different kind
	ErrFileExists = errors.New("file already exists")
)

// OpError wraps an error with the operation and entry it happened on
type OpError struct {
	// Op is the operation that failed (e.g., "put", "restore", "remove")
	Op string

	// Name is the path or entry name involved
	Name string

	// Err is the underlying error
	Err error
}

func (e *OpError) Error() string {
	if e.Name == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Name + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opError(op, name string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Name: name, Err: err}
}

// IsNotFound reports whether err means a missing path or entry
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, fs.ErrNotFound)
}

// IsPermissionDenied returns true if the error is ErrPermissionDenied
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsInsufficientSpace returns true if the error is ErrInsufficientSpace
func IsInsufficientSpace(err error) bool {
	return errors.Is(err, ErrInsufficientSpace)
}

// IsProtectedPath returns true if the error is ErrProtectedPath
func IsProtectedPath(err error) bool {
	return errors.Is(err, ErrProtectedPath)
}

// IsFileExists returns true if the error is ErrFileExists
func IsFileExists(err error) bool {
	return errors.Is(err, ErrFileExists)
}
