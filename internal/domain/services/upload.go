package services

import "context"

// UploadEntry is one row of a batch ingestion request. Path is the relative
// path of the containing folder within the batch ("" for top level), using
// original names even when a rename is requested. Callers must order entries
// so that every folder precedes its children; the transactor rejects batches
// that violate this.
type UploadEntry struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	NewName     string `json:"new_name,omitempty"` // optional rename applied at insert
	Size        int64  `json:"size"`
	IsDirectory bool   `json:"is_directory"`
}

// FinalName returns the name the row is inserted under.
func (e UploadEntry) FinalName() string {
	if e.NewName != "" {
		return e.NewName
	}
	return e.Name
}

// EntryLocation correlates an ingested path with its assigned id and the id
// of the parent it was inserted under.
type EntryLocation struct {
	ID       int64 `json:"id"`
	ParentID int64 `json:"parent_id"`
}

// UploadService is the batch ingestion transactor. Each batch executes as
// one atomic unit: any insertion failure rolls back every row of the batch
// and the operation reports total failure.
type UploadService interface {
	// CanUpload checks the preconditions of a batch before any mutation:
	// edit access on the destination, available quota for totalSize, and
	// no top-level name collisions (checked separately for files and for
	// directories when allowFolders is set). Returns nil when the upload
	// may proceed.
	CanUpload(ctx context.Context, ownerID, parentID int64, topLevel []UploadEntry, totalSize int64, allowFolders bool) error

	// UploadFiles ingests a flat list of files directly under parentID.
	// The returned map is keyed by final name.
	UploadFiles(ctx context.Context, entries []UploadEntry, ownerID, parentID int64) (map[string]EntryLocation, error)

	// UploadFilesAndFolders ingests files and folders with relative paths,
	// resolving each entry's parent through folders created earlier in the
	// same batch. The returned map is keyed by "path/name" (original
	// names), with bare "name" for top-level entries.
	UploadFilesAndFolders(ctx context.Context, entries []UploadEntry, ownerID, parentID int64) (map[string]EntryLocation, error)
}
