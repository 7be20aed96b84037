package models

import "time"

// BinEntry is a soft-delete marker. It shares its id with the deleted entry,
// which is retained in the tree until the marker expires or is purged. The
// prev_* fields capture where the entry lived at deletion time so a restore
// can put it back.
type BinEntry struct {
	ID           int64     `json:"id" db:"id"`
	PrevParentID int64     `json:"prev_parent_id" db:"prev_parent_id"`
	PrevShareID  *int64    `json:"prev_share_id" db:"prev_share_id"`
	PutAt        time.Time `json:"put_at" db:"put_at"`
}
