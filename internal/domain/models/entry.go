package models

import "time"

// Entry is a file or folder node in a drive tree.
type Entry struct {
	ID          int64  `json:"id" db:"id"`
	OwnerID     int64  `json:"owner_id" db:"owner_id"`
	ParentID    *int64 `json:"parent_id" db:"parent_id"` // NULL only for a drive root
	ShareID     *int64 `json:"share_id" db:"share_id"`   // NULL = not shared (or inherited nothing)
	IsDirectory bool   `json:"is_directory" db:"is_directory"`
	Size        int64  `json:"size" db:"size"` // bytes, always 0 for directories
	Name        string `json:"name" db:"name"`

	// Annotations filled from joined rows, not stored on the entry itself.
	CanEditUsers  []int64    `json:"-" db:"can_edit_users"`
	BinPutAt      *time.Time `json:"-" db:"put_at"`
	OwnerUsername string     `json:"owner_username,omitempty" db:"username"`

	// CanEdit is computed per viewer, see Annotate.
	CanEdit bool `json:"can_edit"`
}

// InBin reports whether the entry currently carries a bin marker.
func (e *Entry) InBin() bool {
	return e.BinPutAt != nil
}

// Annotate computes CanEdit for the given viewer from ownership and the
// edit set of the entry's nearest share policy (joined into CanEditUsers).
// A zero viewer id means an anonymous request and never grants edit.
func (e *Entry) Annotate(viewerID int64) {
	if viewerID == 0 {
		e.CanEdit = false
		return
	}
	if e.OwnerID == viewerID {
		e.CanEdit = true
		return
	}
	for _, id := range e.CanEditUsers {
		if id == viewerID {
			e.CanEdit = true
			return
		}
	}
	e.CanEdit = false
}

// MoveEntry identifies one entry of a move batch by its current location.
// Both fields must match for the row to be moved.
type MoveEntry struct {
	ID       int64  `json:"id"`
	ParentID int64  `json:"parent_id"` // parent at the time the client listed the entry
	Name     string `json:"name"`      // name to apply at the destination
}

// TypeFilter restricts child listings to one entry type.
type TypeFilter int

const (
	FilterAll TypeFilter = iota
	FilterFiles
	FilterFolders
)
