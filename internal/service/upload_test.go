package service

import (
	"context"
	"errors"
	"testing"

	"skydrive/internal/domain"
	"skydrive/internal/domain/models"
	"skydrive/internal/domain/services"
)

func newUploadEnv(freeSpace int64) (*fakeStore, *fakeQuota, services.UploadService) {
	store := newFakeStore()
	quota := &fakeQuota{freeSpace: freeSpace}
	access := NewShareService(store, shareView{store}, store, testLogger())
	svc := NewUploadService(store, access, quota, store, testLogger())
	return store, quota, svc
}

func TestUploadFilesAndFolders_ResolvesPathsInOrder(t *testing.T) {
	store, _, svc := newUploadEnv(1 << 30)
	root := store.seedEntry(models.Entry{OwnerID: 1, IsDirectory: true, Name: "drive"})

	batch := []services.UploadEntry{
		{Path: "", Name: "docs2", IsDirectory: true},
		{Path: "docs2", Name: "a.txt", Size: 100},
	}

	result, err := svc.UploadFilesAndFolders(context.Background(), batch, 1, root)
	if err != nil {
		t.Fatalf("UploadFilesAndFolders failed: %v", err)
	}

	folder, ok := result["docs2"]
	if !ok {
		t.Fatal(`result is missing key "docs2"`)
	}
	file, ok := result["docs2/a.txt"]
	if !ok {
		t.Fatal(`result is missing key "docs2/a.txt"`)
	}
	if folder.ParentID != root {
		t.Errorf("folder parent = %d, want destination %d", folder.ParentID, root)
	}
	if file.ParentID != folder.ID {
		t.Errorf("file parent = %d, want the folder created in the same batch (%d)", file.ParentID, folder.ID)
	}

	row := store.entries[file.ID]
	if row == nil || row.ParentID == nil || *row.ParentID != folder.ID {
		t.Error("stored file row does not hang under the batch-created folder")
	}
}

func TestUploadFilesAndFolders_RenameKeepsOriginalPathKeys(t *testing.T) {
	store, _, svc := newUploadEnv(1 << 30)
	root := store.seedEntry(models.Entry{OwnerID: 1, IsDirectory: true, Name: "drive"})

	batch := []services.UploadEntry{
		{Path: "", Name: "docs", NewName: "docs (1)", IsDirectory: true},
		{Path: "docs", Name: "a.txt", Size: 10},
	}

	result, err := svc.UploadFilesAndFolders(context.Background(), batch, 1, root)
	if err != nil {
		t.Fatalf("UploadFilesAndFolders failed: %v", err)
	}

	folder, ok := result["docs"]
	if !ok {
		t.Fatal("result keys must use original names even when renamed at insert")
	}
	if store.entries[folder.ID].Name != "docs (1)" {
		t.Errorf("stored folder name = %q, want the rename applied", store.entries[folder.ID].Name)
	}
	if _, ok := result["docs/a.txt"]; !ok {
		t.Error("child key must resolve through the original folder name")
	}
}

func TestUploadFilesAndFolders_RejectsUnorderedBatch(t *testing.T) {
	store, quota, svc := newUploadEnv(1 << 30)
	root := store.seedEntry(models.Entry{OwnerID: 1, IsDirectory: true, Name: "drive"})

	batch := []services.UploadEntry{
		{Path: "docs2", Name: "a.txt", Size: 100},
		{Path: "", Name: "docs2", IsDirectory: true},
	}

	_, err := svc.UploadFilesAndFolders(context.Background(), batch, 1, root)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unordered batch = %v, want ErrValidation", err)
	}
	if len(store.entries) != 1 {
		t.Errorf("rejected batch created %d rows", len(store.entries)-1)
	}
	if len(quota.increases) != 0 {
		t.Error("rejected batch must not touch quota")
	}
}

func TestUploadFilesAndFolders_RollsBackWholeBatchOnFailure(t *testing.T) {
	store, quota, svc := newUploadEnv(1 << 30)
	root := store.seedEntry(models.Entry{OwnerID: 1, IsDirectory: true, Name: "drive"})

	batch := []services.UploadEntry{
		{Path: "", Name: "docs", IsDirectory: true},
		{Path: "docs", Name: "a.txt", Size: 100},
		{Path: "docs", Name: "b.txt", Size: 200},
	}
	store.failCreateAt = 3

	_, err := svc.UploadFilesAndFolders(context.Background(), batch, 1, root)
	if err == nil {
		t.Fatal("expected the injected failure to surface")
	}
	if len(store.entries) != 1 {
		t.Errorf("partial batch left %d rows behind, want none", len(store.entries)-1)
	}

	// Optimistic reservation followed by the compensating decrease.
	if len(quota.increases) != 1 || quota.increases[0] != (quotaCall{UserID: 1, Bytes: 300}) {
		t.Errorf("quota increases = %v, want one of 300 bytes for user 1", quota.increases)
	}
	if len(quota.decreases) != 1 || quota.decreases[0] != (quotaCall{UserID: 1, Bytes: 300}) {
		t.Errorf("quota decreases = %v, want the compensating 300 bytes", quota.decreases)
	}
}

func TestUploadFiles_InheritsDestinationShare(t *testing.T) {
	store, _, svc := newUploadEnv(1 << 30)
	sid := store.seedShare(models.SharePolicy{CanReadUsers: []int64{2}})
	root := store.seedEntry(models.Entry{OwnerID: 1, ShareID: &sid, IsDirectory: true, Name: "shared"})

	result, err := svc.UploadFiles(context.Background(), []services.UploadEntry{
		{Name: "a.txt", Size: 10},
	}, 1, root)
	if err != nil {
		t.Fatalf("UploadFiles failed: %v", err)
	}

	row := store.entries[result["a.txt"].ID]
	if row.ShareID == nil || *row.ShareID != sid {
		t.Errorf("uploaded file share id = %v, want inherited %d", row.ShareID, sid)
	}
}

func TestUploadFiles_RejectsDirectories(t *testing.T) {
	store, _, svc := newUploadEnv(1 << 30)
	root := store.seedEntry(models.Entry{OwnerID: 1, IsDirectory: true, Name: "drive"})

	_, err := svc.UploadFiles(context.Background(), []services.UploadEntry{
		{Name: "docs", IsDirectory: true},
	}, 1, root)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("directory in files-only batch = %v, want ErrValidation", err)
	}
}

func TestCanUpload_DeniesWithoutEditAccess(t *testing.T) {
	store, _, svc := newUploadEnv(1 << 30)
	root := store.seedEntry(models.Entry{OwnerID: 1, IsDirectory: true, Name: "drive"})

	err := svc.CanUpload(context.Background(), 2, root, []services.UploadEntry{
		{Name: "a.txt", Size: 10},
	}, 10, false)
	if !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("upload to foreign folder = %v, want ErrAccessDenied", err)
	}
}

func TestCanUpload_AllowsEditCapableSharee(t *testing.T) {
	store, _, svc := newUploadEnv(1 << 30)
	sid := store.seedShare(models.SharePolicy{CanReadUsers: []int64{2}, CanEditUsers: []int64{2}})
	root := store.seedEntry(models.Entry{OwnerID: 1, ShareID: &sid, IsDirectory: true, Name: "shared"})

	err := svc.CanUpload(context.Background(), 2, root, []services.UploadEntry{
		{Name: "a.txt", Size: 10},
	}, 10, false)
	if err != nil {
		t.Fatalf("edit-capable sharee denied: %v", err)
	}
}

func TestCanUpload_RejectsOverQuota(t *testing.T) {
	store, _, svc := newUploadEnv(50)
	root := store.seedEntry(models.Entry{OwnerID: 1, IsDirectory: true, Name: "drive"})

	err := svc.CanUpload(context.Background(), 1, root, []services.UploadEntry{
		{Name: "big.bin", Size: 100},
	}, 100, false)
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("over-quota upload = %v, want ErrQuotaExceeded", err)
	}
}

func TestCanUpload_ChecksCollisionsPerType(t *testing.T) {
	store, _, svc := newUploadEnv(1 << 30)
	root := store.seedEntry(models.Entry{OwnerID: 1, IsDirectory: true, Name: "drive"})
	store.seedEntry(models.Entry{OwnerID: 1, ParentID: &root, Name: "a.txt", Size: 5})
	store.seedEntry(models.Entry{OwnerID: 1, ParentID: &root, IsDirectory: true, Name: "docs"})

	err := svc.CanUpload(context.Background(), 1, root, []services.UploadEntry{
		{Name: "a.txt", Size: 10},
	}, 10, false)
	if !errors.Is(err, domain.ErrNameCollision) {
		t.Fatalf("duplicate top-level file = %v, want ErrNameCollision", err)
	}

	// A file named like an existing folder is fine: names are unique per type.
	err = svc.CanUpload(context.Background(), 1, root, []services.UploadEntry{
		{Name: "docs", Size: 10},
	}, 10, false)
	if err != nil {
		t.Fatalf("file named after a folder should not collide: %v", err)
	}

	err = svc.CanUpload(context.Background(), 1, root, []services.UploadEntry{
		{Name: "docs", IsDirectory: true},
	}, 0, true)
	if !errors.Is(err, domain.ErrNameCollision) {
		t.Fatalf("duplicate top-level folder = %v, want ErrNameCollision", err)
	}
}
