package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"skydrive/internal/domain"
	"skydrive/internal/domain/models"
	"skydrive/internal/domain/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory implementation of the entry, share and bin
// repositories plus the transaction manager. ExecTx snapshots all state up
// front and restores it when the function errors, which is what makes the
// atomicity tests meaningful.
type fakeStore struct {
	entries   map[int64]*models.Entry
	shares    map[int64]*models.SharePolicy
	bin       map[int64]*models.BinEntry
	usernames map[int64]string

	nextEntryID int64
	nextShareID int64

	createCalls    int
	failCreateAt   int   // fail the Nth Create call (1-based, 0 = never)
	lockedSubtrees []int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entries:     make(map[int64]*models.Entry),
		shares:      make(map[int64]*models.SharePolicy),
		bin:         make(map[int64]*models.BinEntry),
		usernames:   make(map[int64]string),
		nextEntryID: 1,
		nextShareID: 1,
	}
}

// seedEntry inserts an entry directly, bypassing Create's bookkeeping.
func (f *fakeStore) seedEntry(e models.Entry) int64 {
	if e.ID == 0 {
		e.ID = f.nextEntryID
	}
	if e.ID >= f.nextEntryID {
		f.nextEntryID = e.ID + 1
	}
	f.entries[e.ID] = cloneEntry(&e)
	return e.ID
}

func (f *fakeStore) seedShare(p models.SharePolicy) int64 {
	if p.ID == 0 {
		p.ID = f.nextShareID
	}
	if p.ID >= f.nextShareID {
		f.nextShareID = p.ID + 1
	}
	f.shares[p.ID] = cloneShare(&p)
	return p.ID
}

// --- repositories.TransactionManager ---

func (f *fakeStore) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	entries := copyEntryMap(f.entries)
	shares := copyShareMap(f.shares)
	bin := copyBinMap(f.bin)
	nextEntryID, nextShareID := f.nextEntryID, f.nextShareID

	if err := fn(ctx); err != nil {
		f.entries = entries
		f.shares = shares
		f.bin = bin
		f.nextEntryID, f.nextShareID = nextEntryID, nextShareID
		return err
	}
	return nil
}

// --- repositories.EntryRepository ---

func (f *fakeStore) GetByID(ctx context.Context, id int64) (*models.Entry, error) {
	e, ok := f.entries[id]
	if !ok {
		return nil, fmt.Errorf("entry %d: %w", id, domain.ErrNotFound)
	}
	return f.annotated(e), nil
}

func (f *fakeStore) ListChildren(ctx context.Context, parentID int64, filter models.TypeFilter) ([]models.Entry, error) {
	var out []models.Entry
	for _, e := range f.entries {
		if e.ParentID == nil || *e.ParentID != parentID {
			continue
		}
		if filter == models.FilterFiles && e.IsDirectory {
			continue
		}
		if filter == models.FilterFolders && !e.IsDirectory {
			continue
		}
		out = append(out, *f.annotated(e))
	}
	return out, nil
}

func (f *fakeStore) ListDescendants(ctx context.Context, rootID int64) ([]models.Entry, error) {
	var out []models.Entry
	for _, id := range f.descendantIDs(rootID) {
		out = append(out, *f.annotated(f.entries[id]))
	}
	return out, nil
}

func (f *fakeStore) ListFoldersRecursively(ctx context.Context, parentID int64) ([]models.Entry, error) {
	var out []models.Entry
	for _, id := range f.descendantIDs(parentID) {
		if e := f.entries[id]; e.IsDirectory {
			out = append(out, *f.annotated(e))
		}
	}
	return out, nil
}

func (f *fakeStore) ListSharedFolders(ctx context.Context, userID int64) ([]models.Entry, error) {
	var out []models.Entry
	for _, e := range f.entries {
		if e.IsDirectory && f.sharedWith(e, userID) {
			out = append(out, *f.annotated(e))
		}
	}
	return out, nil
}

func (f *fakeStore) ListSharedFoldersWithOwners(ctx context.Context, userID int64) ([]models.Entry, error) {
	out, err := f.ListSharedFolders(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].OwnerUsername = f.usernames[out[i].OwnerID]
	}
	return out, nil
}

func (f *fakeStore) ListSharerUsernames(ctx context.Context, userID int64) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, e := range f.entries {
		if !e.IsDirectory || !f.sharedWith(e, userID) {
			continue
		}
		name := f.usernames[e.OwnerID]
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out, nil
}

func (f *fakeStore) ListUserSharedRoots(ctx context.Context, userID int64, ownerUsername string) ([]models.Entry, error) {
	var out []models.Entry
	for _, e := range f.entries {
		if !f.sharedWith(e, userID) || f.usernames[e.OwnerID] != ownerUsername {
			continue
		}
		// A shared root's parent lies outside the shared subtree.
		if e.ParentID != nil {
			if p, ok := f.entries[*e.ParentID]; ok && shareIDsEqual(p.ShareID, e.ShareID) {
				continue
			}
		}
		out = append(out, *f.annotated(e))
	}
	return out, nil
}

func (f *fakeStore) Create(ctx context.Context, entry *models.Entry) error {
	f.createCalls++
	if f.failCreateAt != 0 && f.createCalls == f.failCreateAt {
		return fmt.Errorf("injected create failure at call %d", f.createCalls)
	}
	for _, e := range f.entries {
		if e.ParentID != nil && entry.ParentID != nil &&
			*e.ParentID == *entry.ParentID &&
			e.IsDirectory == entry.IsDirectory &&
			e.Name == entry.Name {
			return &domain.NameCollisionError{
				Name:        entry.Name,
				ParentID:    *entry.ParentID,
				IsDirectory: entry.IsDirectory,
			}
		}
	}
	entry.ID = f.nextEntryID
	f.nextEntryID++
	f.entries[entry.ID] = cloneEntry(entry)
	return nil
}

func (f *fakeStore) Rename(ctx context.Context, id int64, newName string) error {
	e, ok := f.entries[id]
	if !ok {
		return fmt.Errorf("entry %d: %w", id, domain.ErrNotFound)
	}
	e.Name = newName
	return nil
}

func (f *fakeStore) Move(ctx context.Context, batch []models.MoveEntry, newParentID int64, resetShare bool) error {
	for _, m := range batch {
		e, ok := f.entries[m.ID]
		if !ok || e.ParentID == nil || *e.ParentID != m.ParentID {
			continue
		}
		parent := newParentID
		e.ParentID = &parent
		e.Name = m.Name
		if resetShare {
			e.ShareID = nil
		}
	}
	return nil
}

func (f *fakeStore) ChangeOwnerRecursively(ctx context.Context, rootIDs []int64, newOwnerID int64) (int64, error) {
	var total int64
	for _, rootID := range rootIDs {
		ids := append([]int64{rootID}, f.descendantIDs(rootID)...)
		for _, id := range ids {
			e, ok := f.entries[id]
			if !ok {
				continue
			}
			e.OwnerID = newOwnerID
			total += e.Size
		}
	}
	return total, nil
}

func (f *fakeStore) CountByNames(ctx context.Context, parentID int64, isDirectory bool, names []string) (int64, error) {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var count int64
	for _, e := range f.entries {
		if e.ParentID != nil && *e.ParentID == parentID && e.IsDirectory == isDirectory && wanted[e.Name] {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) Delete(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		delete(f.entries, id)
	}
	return nil
}

func (f *fakeStore) LockSubtree(ctx context.Context, rootID int64) error {
	f.lockedSubtrees = append(f.lockedSubtrees, rootID)
	return nil
}

// --- repositories.ShareRepository ---

func (f *fakeStore) GetShareByID(ctx context.Context, id int64) (*models.SharePolicy, error) {
	p, ok := f.shares[id]
	if !ok {
		return nil, fmt.Errorf("share %d: %w", id, domain.ErrNotFound)
	}
	return cloneShare(p), nil
}

func (f *fakeStore) GetShareByEntry(ctx context.Context, entryID int64) (*models.SharePolicy, error) {
	e, ok := f.entries[entryID]
	if !ok || e.ShareID == nil {
		return nil, fmt.Errorf("entry %d share: %w", entryID, domain.ErrNotFound)
	}
	return f.GetShareByID(ctx, *e.ShareID)
}

func (f *fakeStore) CreateShare(ctx context.Context, policy *models.SharePolicy) error {
	policy.ID = f.nextShareID
	f.nextShareID++
	f.shares[policy.ID] = cloneShare(policy)
	return nil
}

func (f *fakeStore) UpdateShare(ctx context.Context, policy *models.SharePolicy) error {
	if _, ok := f.shares[policy.ID]; !ok {
		return fmt.Errorf("share %d: %w", policy.ID, domain.ErrNotFound)
	}
	f.shares[policy.ID] = cloneShare(policy)
	return nil
}

func (f *fakeStore) SetShareID(ctx context.Context, entryID int64, shareID *int64) error {
	e, ok := f.entries[entryID]
	if !ok {
		return fmt.Errorf("entry %d: %w", entryID, domain.ErrNotFound)
	}
	e.ShareID = cloneID(shareID)
	return nil
}

func (f *fakeStore) Propagate(ctx context.Context, entryID int64, prevShareID *int64, newShareID int64) error {
	root, ok := f.entries[entryID]
	if !ok {
		return fmt.Errorf("entry %d: %w", entryID, domain.ErrNotFound)
	}
	root.ShareID = &newShareID
	f.propagate(entryID, prevShareID, newShareID)
	return nil
}

func (f *fakeStore) propagate(parentID int64, prevShareID *int64, newShareID int64) {
	for _, e := range f.entries {
		if e.ParentID == nil || *e.ParentID != parentID {
			continue
		}
		// Descendants carrying their own independent share are left alone.
		if !shareIDsEqual(e.ShareID, prevShareID) {
			continue
		}
		e.ShareID = &newShareID
		f.propagate(e.ID, prevShareID, newShareID)
	}
}

func (f *fakeStore) DeleteOrphaned(ctx context.Context) (int64, error) {
	referenced := make(map[int64]bool)
	for _, e := range f.entries {
		if e.ShareID != nil {
			referenced[*e.ShareID] = true
		}
	}
	var removed int64
	for id := range f.shares {
		if !referenced[id] {
			delete(f.shares, id)
			removed++
		}
	}
	return removed, nil
}

// --- repositories.BinRepository ---

func (f *fakeStore) Add(ctx context.Context, bin *models.BinEntry) error {
	if _, ok := f.entries[bin.ID]; !ok {
		return fmt.Errorf("entry %d: %w", bin.ID, domain.ErrNotFound)
	}
	if _, ok := f.bin[bin.ID]; ok {
		return fmt.Errorf("entry %d already in bin: %w", bin.ID, domain.ErrConflict)
	}
	f.bin[bin.ID] = cloneBin(bin)
	return nil
}

func (f *fakeStore) Get(ctx context.Context, id int64) (*models.BinEntry, error) {
	b, ok := f.bin[id]
	if !ok {
		return nil, fmt.Errorf("bin entry %d: %w", id, domain.ErrNotFound)
	}
	return cloneBin(b), nil
}

func (f *fakeStore) Contains(ctx context.Context, id int64) (bool, error) {
	_, ok := f.bin[id]
	return ok, nil
}

func (f *fakeStore) Remove(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		delete(f.bin, id)
	}
	return nil
}

func (f *fakeStore) ListExpired(ctx context.Context, cutoff time.Time) ([]models.Entry, error) {
	var out []models.Entry
	for id, b := range f.bin {
		if !b.PutAt.Before(cutoff) {
			continue
		}
		if e, ok := f.entries[id]; ok {
			out = append(out, *f.annotated(e))
		}
	}
	return out, nil
}

// --- internals ---

func (f *fakeStore) descendantIDs(rootID int64) []int64 {
	var out []int64
	queue := []int64{rootID}
	for len(queue) > 0 {
		parentID := queue[0]
		queue = queue[1:]
		for _, e := range f.entries {
			if e.ParentID != nil && *e.ParentID == parentID {
				out = append(out, e.ID)
				if e.IsDirectory {
					queue = append(queue, e.ID)
				}
			}
		}
	}
	return out
}

func (f *fakeStore) sharedWith(e *models.Entry, userID int64) bool {
	if e.ShareID == nil {
		return false
	}
	p, ok := f.shares[*e.ShareID]
	return ok && p.CanRead(userID)
}

func (f *fakeStore) annotated(e *models.Entry) *models.Entry {
	out := cloneEntry(e)
	if e.ShareID != nil {
		if p, ok := f.shares[*e.ShareID]; ok {
			out.CanEditUsers = append([]int64(nil), p.CanEditUsers...)
		}
	}
	if b, ok := f.bin[e.ID]; ok {
		putAt := b.PutAt
		out.BinPutAt = &putAt
	}
	return out
}

func cloneEntry(e *models.Entry) *models.Entry {
	out := *e
	out.ParentID = cloneID(e.ParentID)
	out.ShareID = cloneID(e.ShareID)
	out.CanEditUsers = append([]int64(nil), e.CanEditUsers...)
	if e.BinPutAt != nil {
		t := *e.BinPutAt
		out.BinPutAt = &t
	}
	return &out
}

func cloneShare(p *models.SharePolicy) *models.SharePolicy {
	return &models.SharePolicy{
		ID:           p.ID,
		CanReadUsers: append([]int64(nil), p.CanReadUsers...),
		CanEditUsers: append([]int64(nil), p.CanEditUsers...),
	}
}

func cloneBin(b *models.BinEntry) *models.BinEntry {
	out := *b
	out.PrevShareID = cloneID(b.PrevShareID)
	return &out
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func copyEntryMap(in map[int64]*models.Entry) map[int64]*models.Entry {
	out := make(map[int64]*models.Entry, len(in))
	for k, v := range in {
		out[k] = cloneEntry(v)
	}
	return out
}

func copyShareMap(in map[int64]*models.SharePolicy) map[int64]*models.SharePolicy {
	out := make(map[int64]*models.SharePolicy, len(in))
	for k, v := range in {
		out[k] = cloneShare(v)
	}
	return out
}

func copyBinMap(in map[int64]*models.BinEntry) map[int64]*models.BinEntry {
	out := make(map[int64]*models.BinEntry, len(in))
	for k, v := range in {
		out[k] = cloneBin(v)
	}
	return out
}

// shareView adapts fakeStore to the ShareRepository method names.
type shareView struct{ *fakeStore }

func (v shareView) GetByID(ctx context.Context, id int64) (*models.SharePolicy, error) {
	return v.GetShareByID(ctx, id)
}

func (v shareView) GetByEntry(ctx context.Context, entryID int64) (*models.SharePolicy, error) {
	return v.GetShareByEntry(ctx, entryID)
}

func (v shareView) Create(ctx context.Context, policy *models.SharePolicy) error {
	return v.CreateShare(ctx, policy)
}

func (v shareView) Update(ctx context.Context, policy *models.SharePolicy) error {
	return v.UpdateShare(ctx, policy)
}

// quotaCall records one quota adjustment observed by fakeQuota.
type quotaCall struct {
	UserID int64
	Bytes  int64
}

// fakeQuota implements quota.Service with a fixed free-space budget and a log
// of every adjustment.
type fakeQuota struct {
	freeSpace    int64
	increases    []quotaCall
	decreases    []quotaCall
	failIncrease bool
	failDecrease bool
}

func (q *fakeQuota) IncreaseUsedSpace(ctx context.Context, userID, bytes int64) error {
	if q.failIncrease {
		return fmt.Errorf("injected increase failure")
	}
	q.increases = append(q.increases, quotaCall{UserID: userID, Bytes: bytes})
	return nil
}

func (q *fakeQuota) DecreaseUsedSpace(ctx context.Context, userID, bytes int64) error {
	if q.failDecrease {
		return fmt.Errorf("injected decrease failure")
	}
	q.decreases = append(q.decreases, quotaCall{UserID: userID, Bytes: bytes})
	return nil
}

func (q *fakeQuota) GetFreeSpace(ctx context.Context, userID int64) (int64, error) {
	return q.freeSpace, nil
}
