package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound      = errors.New("not found")
	ErrAccessDenied  = errors.New("access denied")
	ErrNameCollision = errors.New("name collision")
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrValidation    = errors.New("validation failed")
	ErrConflict      = errors.New("already exists")
)

// NameCollisionError reports a duplicate sibling name of the same type.
// A collision blocks the whole batch operation it was part of.
type NameCollisionError struct {
	Name        string
	ParentID    int64
	IsDirectory bool
}

func (e *NameCollisionError) Error() string {
	kind := "file"
	if e.IsDirectory {
		kind = "folder"
	}
	return fmt.Sprintf("a %s named %q already exists in this location", kind, e.Name)
}

// Is allows errors.Is() to match against ErrNameCollision
func (e *NameCollisionError) Is(target error) bool {
	return target == ErrNameCollision
}
