package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"skydrive/internal/domain"
	"skydrive/internal/domain/models"
	"skydrive/internal/domain/repositories"
)

// PostgresEntryRepository implements the EntryRepository interface
type PostgresEntryRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewEntryRepository creates a new entry repository
func NewEntryRepository(config *RepositoryConfig) repositories.EntryRepository {
	return &PostgresEntryRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

const entryColumns = "f.id, f.owner_id, f.parent_id, f.share_id, f.is_directory, f.size, f.name"

// GetByID retrieves an entry with its share edit-set and bin marker joined in
func (r *PostgresEntryRepository) GetByID(ctx context.Context, id int64) (*models.Entry, error) {
	query := fmt.Sprintf(`
		SELECT %s, s.can_edit_users, b.put_at
		FROM %s f
		LEFT JOIN %s s ON f.share_id = s.id
		LEFT JOIN %s b ON f.id = b.id
		WHERE f.id = $1
	`, entryColumns, r.tables.Entries, r.tables.Shares, r.tables.Bin)

	var entry models.Entry
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&entry.ID,
		&entry.OwnerID,
		&entry.ParentID,
		&entry.ShareID,
		&entry.IsDirectory,
		&entry.Size,
		&entry.Name,
		&entry.CanEditUsers,
		&entry.BinPutAt,
	)

	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("entry %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}

	return &entry, nil
}

// ListChildren lists the direct children of a parent, optionally filtered by type
func (r *PostgresEntryRepository) ListChildren(ctx context.Context, parentID int64, filter models.TypeFilter) ([]models.Entry, error) {
	typeCond := ""
	switch filter {
	case models.FilterFiles:
		typeCond = "AND f.is_directory = false"
	case models.FilterFolders:
		typeCond = "AND f.is_directory = true"
	}

	query := fmt.Sprintf(`
		SELECT %s, s.can_edit_users, b.put_at
		FROM %s f
		LEFT JOIN %s s ON f.share_id = s.id
		LEFT JOIN %s b ON f.id = b.id
		WHERE f.parent_id = $1 %s
		ORDER BY f.name ASC
	`, entryColumns, r.tables.Entries, r.tables.Shares, r.tables.Bin, typeCond)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	return scanAnnotatedEntries(rows)
}

// ListDescendants returns every entry beneath a directory via recursive CTE.
// Termination is guaranteed by the tree-acyclic invariant.
func (r *PostgresEntryRepository) ListDescendants(ctx context.Context, rootID int64) ([]models.Entry, error) {
	query := fmt.Sprintf(`
		WITH RECURSIVE subtree AS (
			SELECT f.id, f.owner_id, f.parent_id, f.share_id, f.is_directory, f.size, f.name
			FROM %s f
			WHERE f.id = $1 AND f.is_directory = true
			UNION
			SELECT f.id, f.owner_id, f.parent_id, f.share_id, f.is_directory, f.size, f.name
			FROM %s f
			INNER JOIN subtree r ON f.parent_id = r.id
		)
		SELECT r.id, r.owner_id, r.parent_id, r.share_id, r.is_directory, r.size, r.name,
		       s.can_edit_users, b.put_at
		FROM subtree r
		LEFT JOIN %s s ON r.share_id = s.id
		LEFT JOIN %s b ON r.id = b.id
	`, r.tables.Entries, r.tables.Entries, r.tables.Shares, r.tables.Bin)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, rootID)
	if err != nil {
		return nil, fmt.Errorf("list descendants: %w", err)
	}
	defer rows.Close()

	return scanAnnotatedEntries(rows)
}

// ListFoldersRecursively returns the full directory subtree beneath a parent
func (r *PostgresEntryRepository) ListFoldersRecursively(ctx context.Context, parentID int64) ([]models.Entry, error) {
	query := fmt.Sprintf(`
		WITH RECURSIVE directories AS (
			SELECT f.id, f.owner_id, f.parent_id, f.share_id, f.is_directory, f.size, f.name
			FROM %s f
			WHERE f.parent_id = $1 AND f.is_directory = true
			UNION
			SELECT f.id, f.owner_id, f.parent_id, f.share_id, f.is_directory, f.size, f.name
			FROM %s f
			INNER JOIN directories d ON f.parent_id = d.id
			WHERE f.is_directory = true
		)
		SELECT id, owner_id, parent_id, share_id, is_directory, size, name FROM directories
	`, r.tables.Entries, r.tables.Entries)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("list folders recursively: %w", err)
	}
	defer rows.Close()

	return scanPlainEntries(rows)
}

// ListSharedFolders returns every directory whose policy grants the user read access
func (r *PostgresEntryRepository) ListSharedFolders(ctx context.Context, userID int64) ([]models.Entry, error) {
	query := fmt.Sprintf(`
		WITH s AS (
			SELECT id, can_edit_users FROM %s
			WHERE can_read_users @> ARRAY[$1]::bigint[]
		)
		SELECT %s, s.can_edit_users, NULL::timestamptz AS put_at
		FROM %s f
		INNER JOIN s ON s.id = f.share_id
		WHERE f.is_directory = true
	`, r.tables.Shares, entryColumns, r.tables.Entries)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list shared folders: %w", err)
	}
	defer rows.Close()

	return scanAnnotatedEntries(rows)
}

// ListSharedFoldersWithOwners is ListSharedFolders with owner usernames joined in
func (r *PostgresEntryRepository) ListSharedFoldersWithOwners(ctx context.Context, userID int64) ([]models.Entry, error) {
	query := fmt.Sprintf(`
		WITH s AS (
			SELECT id, can_edit_users FROM %s
			WHERE can_read_users @> ARRAY[$1]::bigint[]
		)
		SELECT %s, s.can_edit_users, u.username
		FROM %s f
		INNER JOIN %s u ON f.owner_id = u.id
		INNER JOIN s ON f.share_id = s.id
		WHERE f.is_directory = true
	`, r.tables.Shares, entryColumns, r.tables.Entries, r.tables.Users)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list shared folders with owners: %w", err)
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		var entry models.Entry
		err := rows.Scan(
			&entry.ID,
			&entry.OwnerID,
			&entry.ParentID,
			&entry.ShareID,
			&entry.IsDirectory,
			&entry.Size,
			&entry.Name,
			&entry.CanEditUsers,
			&entry.OwnerUsername,
		)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, nil
}

// ListSharerUsernames returns the usernames of owners sharing at least one directory with the user
func (r *PostgresEntryRepository) ListSharerUsernames(ctx context.Context, userID int64) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT u.username
		FROM %s s
		INNER JOIN %s f ON f.share_id = s.id
		INNER JOIN %s u ON f.owner_id = u.id
		WHERE s.can_read_users @> ARRAY[$1]::bigint[] AND f.is_directory = true
	`, r.tables.Shares, r.tables.Entries, r.tables.Users)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list sharer usernames: %w", err)
	}
	defer rows.Close()

	var usernames []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("scan username: %w", err)
		}
		usernames = append(usernames, username)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usernames: %w", err)
	}

	return usernames, nil
}

// ListUserSharedRoots returns the shared entries owned by ownerUsername whose
// parent lies outside the shared subtree, i.e. the roots of what that owner
// shares with the user.
func (r *PostgresEntryRepository) ListUserSharedRoots(ctx context.Context, userID int64, ownerUsername string) ([]models.Entry, error) {
	query := fmt.Sprintf(`
		WITH s AS (
			SELECT id, can_edit_users FROM %s
			WHERE can_read_users @> ARRAY[$1]::bigint[]
		), shared AS (
			SELECT %s, s.can_edit_users
			FROM %s f
			INNER JOIN %s u ON f.owner_id = u.id
			INNER JOIN s ON s.id = f.share_id
			WHERE u.username = $2
		)
		SELECT shared.*, NULL::timestamptz AS put_at
		FROM shared
		INNER JOIN %s p ON shared.parent_id = p.id
		WHERE p.share_id IS NULL OR p.share_id != shared.share_id
	`, r.tables.Shares, entryColumns, r.tables.Entries, r.tables.Users, r.tables.Entries)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, userID, ownerUsername)
	if err != nil {
		return nil, fmt.Errorf("list user shared roots: %w", err)
	}
	defer rows.Close()

	return scanAnnotatedEntries(rows)
}

// Create inserts an entry and fills its ID
func (r *PostgresEntryRepository) Create(ctx context.Context, entry *models.Entry) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (owner_id, parent_id, share_id, is_directory, size, name)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, r.tables.Entries)

	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		entry.OwnerID,
		entry.ParentID,
		entry.ShareID,
		entry.IsDirectory,
		entry.Size,
		entry.Name,
	).Scan(&entry.ID)

	if err != nil {
		if isPgDuplicateError(err) {
			var parentID int64
			if entry.ParentID != nil {
				parentID = *entry.ParentID
			}
			return &domain.NameCollisionError{Name: entry.Name, ParentID: parentID, IsDirectory: entry.IsDirectory}
		}
		return fmt.Errorf("create entry: %w", err)
	}

	return nil
}

// Rename updates an entry's name
func (r *PostgresEntryRepository) Rename(ctx context.Context, id int64, newName string) error {
	query := fmt.Sprintf(`UPDATE %s SET name = $1 WHERE id = $2`, r.tables.Entries)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, newName, id)
	if err != nil {
		if isPgDuplicateError(err) {
			return &domain.NameCollisionError{Name: newName}
		}
		return fmt.Errorf("rename entry: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("entry %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// Move atomically re-parents and renames a batch of entries matched by
// (current parent_id, id)
func (r *PostgresEntryRepository) Move(ctx context.Context, batch []models.MoveEntry, newParentID int64, resetShare bool) error {
	ids := make([]int64, len(batch))
	parentIDs := make([]int64, len(batch))
	names := make([]string, len(batch))
	for i, e := range batch {
		ids[i] = e.ID
		parentIDs[i] = e.ParentID
		names[i] = e.Name
	}

	shareClause := ""
	if resetShare {
		shareClause = ", share_id = NULL"
	}

	query := fmt.Sprintf(`
		WITH data AS (
			SELECT unnest($1::bigint[]) AS id,
			       unnest($2::bigint[]) AS parent_id,
			       unnest($3::varchar[]) AS name
		)
		UPDATE %s f
		SET parent_id = $4, name = d.name%s
		FROM data d
		WHERE f.parent_id = d.parent_id AND f.id = d.id
	`, r.tables.Entries, shareClause)

	_, err := GetExecutor(ctx, r.pool).Exec(ctx, query, ids, parentIDs, names, newParentID)
	if err != nil {
		if isPgDuplicateError(err) {
			return fmt.Errorf("move entries: %w", domain.ErrNameCollision)
		}
		return fmt.Errorf("move entries: %w", err)
	}

	return nil
}

// ChangeOwnerRecursively reassigns ownership of the given roots and all of
// their descendants in one recursive update and returns the total size of
// the rows touched.
func (r *PostgresEntryRepository) ChangeOwnerRecursively(ctx context.Context, rootIDs []int64, newOwnerID int64) (int64, error) {
	query := fmt.Sprintf(`
		WITH RECURSIVE affected AS (
			SELECT f.id, f.size FROM %s f WHERE f.id = ANY($1)
			UNION
			SELECT f.id, f.size FROM %s f
			INNER JOIN affected a ON f.parent_id = a.id
		), updated AS (
			UPDATE %s e SET owner_id = $2
			FROM affected a WHERE e.id = a.id
			RETURNING e.size
		)
		SELECT COALESCE(SUM(size), 0) FROM updated
	`, r.tables.Entries, r.tables.Entries, r.tables.Entries)

	var total int64
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, rootIDs, newOwnerID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("change owner recursively: %w", err)
	}

	return total, nil
}

// CountByNames counts siblings of the given type whose name is in names
func (r *PostgresEntryRepository) CountByNames(ctx context.Context, parentID int64, isDirectory bool, names []string) (int64, error) {
	query := fmt.Sprintf(`
		SELECT count(1) FROM %s
		WHERE parent_id = $1 AND is_directory = $2 AND name = ANY($3)
	`, r.tables.Entries)

	var count int64
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, parentID, isDirectory, names).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count by names: %w", err)
	}

	return count, nil
}

// Delete removes exactly the given rows
func (r *PostgresEntryRepository) Delete(ctx context.Context, ids []int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, r.tables.Entries)

	_, err := GetExecutor(ctx, r.pool).Exec(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("delete entries: %w", err)
	}

	return nil
}

// LockSubtree takes a transaction-scoped advisory lock keyed by the subtree
// root. Concurrent re-shares and moves of overlapping subtrees serialize on
// this lock.
func (r *PostgresEntryRepository) LockSubtree(ctx context.Context, rootID int64) error {
	_, err := GetExecutor(ctx, r.pool).Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, rootID)
	if err != nil {
		return fmt.Errorf("lock subtree %d: %w", rootID, err)
	}
	return nil
}

func scanAnnotatedEntries(rows pgx.Rows) ([]models.Entry, error) {
	var entries []models.Entry
	for rows.Next() {
		var entry models.Entry
		err := rows.Scan(
			&entry.ID,
			&entry.OwnerID,
			&entry.ParentID,
			&entry.ShareID,
			&entry.IsDirectory,
			&entry.Size,
			&entry.Name,
			&entry.CanEditUsers,
			&entry.BinPutAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, nil
}

func scanPlainEntries(rows pgx.Rows) ([]models.Entry, error) {
	var entries []models.Entry
	for rows.Next() {
		var entry models.Entry
		err := rows.Scan(
			&entry.ID,
			&entry.OwnerID,
			&entry.ParentID,
			&entry.ShareID,
			&entry.IsDirectory,
			&entry.Size,
			&entry.Name,
		)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, nil
}
