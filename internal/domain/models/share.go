package models

// SharePolicy names the read- and edit-capable user sets attached to a
// shared subtree. Every entry referencing the same policy id belongs to the
// same shared-access subtree.
type SharePolicy struct {
	ID           int64   `json:"id" db:"id"`
	CanReadUsers []int64 `json:"can_read_users" db:"can_read_users"`
	CanEditUsers []int64 `json:"can_edit_users" db:"can_edit_users"`
}

// CanRead reports whether the user is in the read set.
func (p *SharePolicy) CanRead(userID int64) bool {
	return containsID(p.CanReadUsers, userID)
}

// CanEdit reports whether the user is in the edit set.
func (p *SharePolicy) CanEdit(userID int64) bool {
	return containsID(p.CanEditUsers, userID)
}

// SharePolicyInput is the caller-supplied policy for a share operation.
type SharePolicyInput struct {
	CanReadUsers []int64 `json:"can_read_users"`
	CanEditUsers []int64 `json:"can_edit_users"`
}

// Normalized returns a copy with every edit-capable user unioned into the
// read set. Edit access always implies read access.
func (in SharePolicyInput) Normalized() SharePolicyInput {
	read := make([]int64, len(in.CanReadUsers))
	copy(read, in.CanReadUsers)
	for _, id := range in.CanEditUsers {
		if !containsID(read, id) {
			read = append(read, id)
		}
	}
	edit := make([]int64, len(in.CanEditUsers))
	copy(edit, in.CanEditUsers)
	return SharePolicyInput{CanReadUsers: read, CanEditUsers: edit}
}

// AccessLevel is the effective permission of a (user, entry) pair.
type AccessLevel int

const (
	AccessNone AccessLevel = iota
	AccessRead
	AccessEdit
)

func (l AccessLevel) String() string {
	switch l {
	case AccessRead:
		return "read"
	case AccessEdit:
		return "edit"
	default:
		return "none"
	}
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
