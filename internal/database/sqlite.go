package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"photovault/internal/database/migrations"
	apperrors "photovault/internal/errors"
	"photovault/internal/gallery"
	"photovault/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements the gallery.Database interface using SQLite.
type SQLiteDatabase struct {
	db    *sql.DB
	path  string
	clock gallery.Clock
	ids   gallery.IDGenerator
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
// If clock or ids is nil, the real clock and UUID generator are used.
func NewSQLiteDatabase(path string, clock gallery.Clock, ids gallery.IDGenerator) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteDatabaseFromDB(db, path, clock, ids), nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB, path string, clock gallery.Clock, ids gallery.IDGenerator) *SQLiteDatabase {
	if clock == nil {
		clock = gallery.RealClock{}
	}
	if ids == nil {
		ids = gallery.UUIDGenerator{}
	}
	return &SQLiteDatabase{db: db, path: path, clock: clock, ids: ids}
}

// OpenConnection opens and configures a SQLite database connection.
// Foreign keys are enabled through the DSN so every pooled connection gets
// them. The pool is limited to one connection: SQLite has a single writer,
// and each connection to ":memory:" would otherwise be a separate database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func (s *SQLiteDatabase) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func nanos(t time.Time) int64 { return t.UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Category operations

const categoryColumns = `id, name, display_name, color, is_default, position, created_at, updated_at`

func scanCategory(row scanner) (*model.Category, error) {
	var (
		c                    model.Category
		isDefault            int
		createdAt, updatedAt int64
	)
	if err := row.Scan(&c.ID, &c.Name, &c.DisplayName, &c.Color, &isDefault, &c.Position, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.IsDefault = isDefault != 0
	c.CreatedAt = fromNanos(createdAt)
	c.UpdatedAt = fromNanos(updatedAt)
	return &c, nil
}

func queryCategories(ctx context.Context, q querier, query string, args ...any) ([]*model.Category, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func findCategory(ctx context.Context, q querier, where string, args ...any) (*model.Category, error) {
	row := q.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE deleted = 0 AND `+where, args...)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (s *SQLiteDatabase) ListCategories(ctx context.Context) ([]*model.Category, error) {
	cats, err := queryCategories(ctx, s.db,
		`SELECT `+categoryColumns+` FROM categories WHERE deleted = 0 ORDER BY position, name`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return cats, nil
}

func (s *SQLiteDatabase) FindCategoryByID(ctx context.Context, id string) (*model.Category, error) {
	c, err := findCategory(ctx, s.db, `id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("finding category by id: %w", err)
	}
	return c, nil
}

func (s *SQLiteDatabase) FindCategoryByName(ctx context.Context, name string) (*model.Category, error) {
	c, err := findCategory(ctx, s.db, `name = ? COLLATE NOCASE`, name)
	if err != nil {
		return nil, fmt.Errorf("finding category by name: %w", err)
	}
	return c, nil
}

// checkNameFree returns ErrCategoryNameTaken if a live category other than id uses name.
func checkNameFree(ctx context.Context, q querier, name, id string) error {
	other, err := findCategory(ctx, q, `name = ? COLLATE NOCASE AND id != ?`, name, id)
	if err != nil {
		return fmt.Errorf("checking category name: %w", err)
	}
	if other != nil {
		return fmt.Errorf("%q: %w", name, apperrors.ErrCategoryNameTaken)
	}
	return nil
}

func (s *SQLiteDatabase) CreateCategory(ctx context.Context, c *model.Category) error {
	if c.ID == "" {
		c.ID = s.ids.New()
	}
	if c.DisplayName == "" {
		c.DisplayName = c.Name
	}
	now := s.clock.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkNameFree(ctx, tx, c.Name, c.ID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO categories (`+categoryColumns+`, deleted)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				display_name = excluded.display_name,
				color = excluded.color,
				is_default = excluded.is_default,
				position = excluded.position,
				created_at = excluded.created_at,
				updated_at = excluded.updated_at,
				deleted = 0`,
			c.ID, c.Name, c.DisplayName, c.Color, boolInt(c.IsDefault), c.Position, nanos(c.CreatedAt), nanos(c.UpdatedAt))
		if err != nil {
			return fmt.Errorf("inserting category: %w", err)
		}
		return dropTombstone(ctx, tx, model.ItemCategory, c.ID)
	})
}

func (s *SQLiteDatabase) UpdateCategory(ctx context.Context, c *model.Category) error {
	c.UpdatedAt = s.clock.Now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkNameFree(ctx, tx, c.Name, c.ID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE categories
			SET name = ?, display_name = ?, color = ?, position = ?, updated_at = ?
			WHERE id = ? AND deleted = 0`,
			c.Name, c.DisplayName, c.Color, c.Position, nanos(c.UpdatedAt), c.ID)
		if err != nil {
			return fmt.Errorf("updating category: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("category %s: %w", c.ID, apperrors.ErrNotFound)
		}
		return nil
	})
}

func (s *SQLiteDatabase) DeleteCategory(ctx context.Context, id string) error {
	now := s.clock.Now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		c, err := findCategory(ctx, tx, `id = ?`, id)
		if err != nil {
			return fmt.Errorf("finding category: %w", err)
		}
		if c == nil {
			return fmt.Errorf("category %s: %w", id, apperrors.ErrNotFound)
		}
		if c.IsDefault {
			return fmt.Errorf("category %s: %w", c.Name, apperrors.ErrDefaultCategory)
		}
		var live int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE deleted = 0`).Scan(&live); err != nil {
			return fmt.Errorf("counting categories: %w", err)
		}
		if live <= 1 {
			return apperrors.ErrLastCategory
		}

		// Cascade to the category's live photos, each with its own tombstone.
		photoIDs, err := queryIDs(ctx, tx, `SELECT id FROM photos WHERE category_id = ? AND deleted = 0`, id)
		if err != nil {
			return fmt.Errorf("listing category photos: %w", err)
		}
		for _, pid := range photoIDs {
			if err := softDelete(ctx, tx, s.ids.New(), model.ItemPhoto, pid, now); err != nil {
				return err
			}
		}
		return softDelete(ctx, tx, s.ids.New(), model.ItemCategory, id, now)
	})
}

func (s *SQLiteDatabase) CategoriesChangedSince(ctx context.Context, t time.Time) ([]*model.Category, error) {
	cats, err := queryCategories(ctx, s.db,
		`SELECT `+categoryColumns+` FROM categories WHERE deleted = 0 AND updated_at > ? ORDER BY position, name`, nanos(t))
	if err != nil {
		return nil, fmt.Errorf("listing changed categories: %w", err)
	}
	return cats, nil
}

// Photo operations

const photoColumns = `id, name, path, category_id, width, height, size, checksum, source, metadata, created_at, updated_at`

func scanPhoto(row scanner) (*model.Photo, error) {
	var (
		p                    model.Photo
		source               string
		metadata             sql.NullString
		createdAt, updatedAt int64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Path, &p.CategoryID, &p.Width, &p.Height, &p.Size,
		&p.Checksum, &source, &metadata, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.Source = model.PhotoSource(source)
	p.CreatedAt = fromNanos(createdAt)
	p.UpdatedAt = fromNanos(updatedAt)
	if metadata.Valid && metadata.String != "" {
		var m model.PhotoMetadata
		if err := json.Unmarshal([]byte(metadata.String), &m); err != nil {
			return nil, fmt.Errorf("decoding metadata of photo %s: %w", p.ID, err)
		}
		p.Metadata = &m
	}
	return &p, nil
}

func queryPhotos(ctx context.Context, q querier, query string, args ...any) ([]*model.Photo, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*model.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func findPhoto(ctx context.Context, q querier, where string, args ...any) (*model.Photo, error) {
	row := q.QueryRowContext(ctx, `SELECT `+photoColumns+` FROM photos WHERE deleted = 0 AND `+where+` LIMIT 1`, args...)
	p, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (s *SQLiteDatabase) ListPhotos(ctx context.Context, categoryID string) ([]*model.Photo, error) {
	var (
		photos []*model.Photo
		err    error
	)
	if categoryID == "" {
		photos, err = queryPhotos(ctx, s.db,
			`SELECT `+photoColumns+` FROM photos WHERE deleted = 0 ORDER BY created_at, id`)
	} else {
		photos, err = queryPhotos(ctx, s.db,
			`SELECT `+photoColumns+` FROM photos WHERE deleted = 0 AND category_id = ? ORDER BY created_at, id`, categoryID)
	}
	if err != nil {
		return nil, fmt.Errorf("listing photos: %w", err)
	}
	return photos, nil
}

func (s *SQLiteDatabase) FindPhotoByID(ctx context.Context, id string) (*model.Photo, error) {
	p, err := findPhoto(ctx, s.db, `id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("finding photo by id: %w", err)
	}
	return p, nil
}

func (s *SQLiteDatabase) FindPhotoByChecksum(ctx context.Context, checksum string) (*model.Photo, error) {
	if checksum == "" {
		return nil, nil
	}
	p, err := findPhoto(ctx, s.db, `checksum = ?`, checksum)
	if err != nil {
		return nil, fmt.Errorf("finding photo by checksum: %w", err)
	}
	return p, nil
}

func (s *SQLiteDatabase) FindPhotoByPath(ctx context.Context, path string) (*model.Photo, error) {
	p, err := findPhoto(ctx, s.db, `path = ?`, path)
	if err != nil {
		return nil, fmt.Errorf("finding photo by path: %w", err)
	}
	return p, nil
}

func (s *SQLiteDatabase) CreatePhoto(ctx context.Context, p *model.Photo) error {
	if p.ID == "" {
		p.ID = s.ids.New()
	}
	if p.Source == "" {
		p.Source = model.SourceImported
	}
	now := s.clock.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	var metadata sql.NullString
	if p.Metadata != nil {
		data, err := json.Marshal(p.Metadata)
		if err != nil {
			return fmt.Errorf("encoding photo metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		c, err := findCategory(ctx, tx, `id = ?`, p.CategoryID)
		if err != nil {
			return fmt.Errorf("finding category: %w", err)
		}
		if c == nil {
			return fmt.Errorf("category %s: %w", p.CategoryID, apperrors.ErrNotFound)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO photos (`+photoColumns+`, deleted)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				path = excluded.path,
				category_id = excluded.category_id,
				width = excluded.width,
				height = excluded.height,
				size = excluded.size,
				checksum = excluded.checksum,
				source = excluded.source,
				metadata = excluded.metadata,
				created_at = excluded.created_at,
				updated_at = excluded.updated_at,
				deleted = 0`,
			p.ID, p.Name, p.Path, p.CategoryID, p.Width, p.Height, p.Size, p.Checksum, string(p.Source),
			metadata, nanos(p.CreatedAt), nanos(p.UpdatedAt))
		if err != nil {
			return fmt.Errorf("inserting photo: %w", err)
		}
		return dropTombstone(ctx, tx, model.ItemPhoto, p.ID)
	})
}

func (s *SQLiteDatabase) DeletePhoto(ctx context.Context, id string) error {
	now := s.clock.Now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := findPhoto(ctx, tx, `id = ?`, id)
		if err != nil {
			return fmt.Errorf("finding photo: %w", err)
		}
		if p == nil {
			return fmt.Errorf("photo %s: %w", id, apperrors.ErrNotFound)
		}
		return softDelete(ctx, tx, s.ids.New(), model.ItemPhoto, id, now)
	})
}

func (s *SQLiteDatabase) PhotosChangedSince(ctx context.Context, t time.Time) ([]*model.Photo, error) {
	photos, err := queryPhotos(ctx, s.db,
		`SELECT `+photoColumns+` FROM photos WHERE deleted = 0 AND updated_at > ? ORDER BY created_at, id`, nanos(t))
	if err != nil {
		return nil, fmt.Errorf("listing changed photos: %w", err)
	}
	return photos, nil
}

func (s *SQLiteDatabase) ClearLibrary(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM photos WHERE deleted = 0`); err != nil {
			return fmt.Errorf("clearing photos: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE deleted = 0 AND is_default = 0`); err != nil {
			return fmt.Errorf("clearing categories: %w", err)
		}
		return nil
	})
}

// Tombstone operations

func softDelete(ctx context.Context, tx *sql.Tx, tombstoneID string, itemType model.ItemType, itemID string, now time.Time) error {
	table := "photos"
	if itemType == model.ItemCategory {
		table = "categories"
	}
	if _, err := tx.ExecContext(ctx, `UPDATE `+table+` SET deleted = 1, updated_at = ? WHERE id = ?`, nanos(now), itemID); err != nil {
		return fmt.Errorf("deleting %s %s: %w", itemType, itemID, err)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO deletions (id, item_id, item_type, deleted_at, purge_after, purged)
		VALUES (?, ?, ?, ?, ?, 0)`,
		tombstoneID, itemID, string(itemType), nanos(now), nanos(now.Add(model.TombstoneRetention)))
	if err != nil {
		return fmt.Errorf("recording tombstone for %s %s: %w", itemType, itemID, err)
	}
	return nil
}

func dropTombstone(ctx context.Context, tx *sql.Tx, itemType model.ItemType, itemID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM deletions WHERE item_type = ? AND item_id = ? AND purged = 0`, string(itemType), itemID)
	if err != nil {
		return fmt.Errorf("removing tombstone for %s %s: %w", itemType, itemID, err)
	}
	return nil
}

func queryIDs(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func queryDeletions(ctx context.Context, q querier, query string, args ...any) ([]*model.Deletion, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*model.Deletion
	for rows.Next() {
		var (
			d                     model.Deletion
			itemType              string
			deletedAt, purgeAfter int64
			purged                int
		)
		if err := rows.Scan(&d.ID, &d.ItemID, &itemType, &deletedAt, &purgeAfter, &purged); err != nil {
			return nil, err
		}
		d.ItemType = model.ItemType(itemType)
		d.DeletedAt = fromNanos(deletedAt)
		d.PurgeAfter = fromNanos(purgeAfter)
		d.Purged = purged != 0
		result = append(result, &d)
	}
	return result, rows.Err()
}

const deletionColumns = `id, item_id, item_type, deleted_at, purge_after, purged`

func (s *SQLiteDatabase) DeletionsSince(ctx context.Context, t time.Time) ([]*model.Deletion, error) {
	dels, err := queryDeletions(ctx, s.db,
		`SELECT `+deletionColumns+` FROM deletions WHERE deleted_at > ? ORDER BY deleted_at, id`, nanos(t))
	if err != nil {
		return nil, fmt.Errorf("listing deletions: %w", err)
	}
	return dels, nil
}

func (s *SQLiteDatabase) DueDeletions(ctx context.Context, now time.Time) ([]*model.Deletion, error) {
	dels, err := queryDeletions(ctx, s.db,
		`SELECT `+deletionColumns+` FROM deletions WHERE purged = 0 AND purge_after < ? ORDER BY deleted_at, id`, nanos(now))
	if err != nil {
		return nil, fmt.Errorf("listing due deletions: %w", err)
	}
	return dels, nil
}

func (s *SQLiteDatabase) PurgeItem(ctx context.Context, d *model.Deletion) ([]string, error) {
	var orphaned []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		orphaned = nil
		where := `id = ?`
		if d.ItemType == model.ItemCategory {
			where = `category_id = ?`
		}
		paths, err := queryIDs(ctx, tx, `SELECT DISTINCT path FROM photos WHERE deleted = 1 AND `+where, d.ItemID)
		if err != nil {
			return fmt.Errorf("collecting media of %s %s: %w", d.ItemType, d.ItemID, err)
		}

		table := "photos"
		if d.ItemType == model.ItemCategory {
			table = "categories"
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ? AND deleted = 1`, d.ItemID); err != nil {
			return fmt.Errorf("purging %s %s: %w", d.ItemType, d.ItemID, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE deletions SET purged = 1 WHERE id = ?`, d.ID); err != nil {
			return fmt.Errorf("marking tombstone %s purged: %w", d.ID, err)
		}

		for _, path := range paths {
			var refs int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM photos WHERE path = ?`, path).Scan(&refs); err != nil {
				return fmt.Errorf("checking references to %s: %w", path, err)
			}
			if refs == 0 {
				orphaned = append(orphaned, path)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.Purged = true
	return orphaned, nil
}

// Settings operations

const themeKey = "theme"

func (s *SQLiteDatabase) GetSettings(ctx context.Context) (*model.Settings, error) {
	var theme string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, themeKey).Scan(&theme)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	return &model.Settings{Theme: theme}, nil
}

func (s *SQLiteDatabase) SaveSettings(ctx context.Context, st *model.Settings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, themeKey, st.Theme)
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// Backup log operations

const backupColumns = `id, kind, path, since_backup_id, created_at, encrypted, category_count, photo_count`

func scanBackup(row scanner) (*model.Backup, error) {
	var (
		b         model.Backup
		kind      string
		since     sql.NullString
		createdAt int64
		encrypted int
	)
	if err := row.Scan(&b.ID, &kind, &b.Path, &since, &createdAt, &encrypted, &b.CategoryCount, &b.PhotoCount); err != nil {
		return nil, err
	}
	b.Kind = model.BackupKind(kind)
	b.SinceBackupID = since.String
	b.CreatedAt = fromNanos(createdAt)
	b.Encrypted = encrypted != 0
	return &b, nil
}

func (s *SQLiteDatabase) RecordBackup(ctx context.Context, b *model.Backup) error {
	if b.ID == "" {
		b.ID = s.ids.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.clock.Now()
	}
	since := sql.NullString{String: b.SinceBackupID, Valid: b.SinceBackupID != ""}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO backups (`+backupColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, string(b.Kind), b.Path, since, nanos(b.CreatedAt), boolInt(b.Encrypted), b.CategoryCount, b.PhotoCount)
	if err != nil {
		return fmt.Errorf("recording backup: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindBackup(ctx context.Context, id string) (*model.Backup, error) {
	b, err := scanBackup(s.db.QueryRowContext(ctx, `SELECT `+backupColumns+` FROM backups WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding backup: %w", err)
	}
	return b, nil
}

func (s *SQLiteDatabase) ListBackups(ctx context.Context) ([]*model.Backup, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+backupColumns+` FROM backups ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}
	defer rows.Close()

	var result []*model.Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("listing backups: %w", err)
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.Check(s.db)
}

// MigrationStatus reports the applied and latest schema versions.
func (s *SQLiteDatabase) MigrationStatus() (migrations.Status, error) {
	return migrations.ReadStatus(s.db)
}

// MigrateUp applies any pending schema migrations.
func (s *SQLiteDatabase) MigrateUp() error {
	_, err := migrations.MigrateUp(s.db)
	return err
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements gallery.Database interface
var _ gallery.Database = (*SQLiteDatabase)(nil)
