package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/openfroyo/archetype/pkg/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteStore keeps generation history and the crawled catalog index in SQLite
type SQLiteStore struct {
	db   *sql.DB
	path string
	cfg  Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	// Every connection to :memory: is its own database.
	if cfg.Path == MemoryPath {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{
		path: cfg.Path,
		cfg:  cfg,
	}, nil
}

// Path returns the database location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Init opens the database, creating its directory when needed.
func (s *SQLiteStore) Init(ctx context.Context) error {
	if s.path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := s.path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	if s.path != MemoryPath {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Open creates, initialises and migrates a store in one call.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	s, err := NewSQLiteStore(Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

const runColumns = `id, kind, archetype, group_id, artifact_id, version, project_dir, status,
	files, skipped, merged_poms, error, metadata, started_at, completed_at, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	err := row.Scan(
		&run.ID,
		&run.Kind,
		&run.Archetype,
		&run.GroupID,
		&run.ArtifactID,
		&run.Version,
		&run.ProjectDir,
		&run.Status,
		&run.Files,
		&run.Skipped,
		&run.MergedPoms,
		&run.Error,
		&run.Metadata,
		&run.StartedAt,
		&run.CompletedAt,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	return run, err
}

// CreateRun creates a new run record
func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	query := `INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if run.Metadata == "" {
		run.Metadata = "{}"
	}
	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.Kind,
		run.Archetype,
		run.GroupID,
		run.ArtifactID,
		run.Version,
		run.ProjectDir,
		run.Status,
		run.Files,
		run.Skipped,
		run.MergedPoms,
		run.Error,
		run.Metadata,
		run.StartedAt,
		run.CompletedAt,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// FinishRun records the outcome of a run. A non-nil errMsg marks it failed.
func (s *SQLiteStore) FinishRun(ctx context.Context, id string, counts RunCounts, errMsg *string) error {
	query := `
		UPDATE runs
		SET status = ?, files = ?, skipped = ?, merged_poms = ?, error = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`

	status := RunStatusCompleted
	if errMsg != nil {
		status = RunStatusFailed
	}
	now := time.Now()

	result, err := s.db.ExecContext(ctx, query,
		status, counts.Files, counts.Skipped, counts.MergedPoms, errMsg, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}

	return nil
}

// SetRunProject records the coordinates and directory of a run once they
// are resolved.
func (s *SQLiteStore) SetRunProject(ctx context.Context, id string, coords engine.Coordinates, projectDir string) error {
	query := `
		UPDATE runs
		SET group_id = ?, artifact_id = ?, version = ?, project_dir = ?, updated_at = ?
		WHERE id = ?
	`
	if _, err := s.db.ExecContext(ctx, query,
		coords.GroupID, coords.ArtifactID, coords.Version, projectDir, time.Now(), id); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// ListRuns lists runs, newest first. An empty kind lists every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, kind RunKind, limit, offset int) ([]*Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE (? = '' OR kind = ?)
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, query, string(kind), string(kind), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// DeleteRun deletes a run by ID
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}

	return nil
}

// PruneRuns deletes runs started before cutoff and returns how many went.
func (s *SQLiteStore) PruneRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return result.RowsAffected()
}

// ReplaceCatalogEntries swaps every index entry of source for entries in
// one transaction. Entries indexed by another source are overwritten when
// their coordinates collide.
func (s *SQLiteStore) ReplaceCatalogEntries(ctx context.Context, source string, entries []engine.CatalogEntry) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_entries WHERE source = ?`, source); err != nil {
		return 0, fmt.Errorf("failed to clear catalog entries: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO catalog_entries (group_id, artifact_id, version, repository, description, source, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (group_id, artifact_id, version) DO UPDATE SET
			repository = excluded.repository,
			description = excluded.description,
			source = excluded.source,
			indexed_at = excluded.indexed_at
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.GroupID, e.ArtifactID, e.Version, e.Repository, e.Description, source, now); err != nil {
			return 0, fmt.Errorf("failed to index %s: %w", e.Coordinates, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit catalog entries: %w", err)
	}
	return len(entries), nil
}

// ListCatalogEntries lists indexed entries ordered by coordinates. An empty
// source lists the whole index.
func (s *SQLiteStore) ListCatalogEntries(ctx context.Context, source string) ([]IndexedEntry, error) {
	query := `
		SELECT group_id, artifact_id, version, repository, description, source, indexed_at
		FROM catalog_entries
		WHERE (? = '' OR source = ?)
		ORDER BY group_id, artifact_id, version
	`

	rows, err := s.db.QueryContext(ctx, query, source, source)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog entries: %w", err)
	}
	defer rows.Close()

	var entries []IndexedEntry
	for rows.Next() {
		var e IndexedEntry
		if err := rows.Scan(&e.GroupID, &e.ArtifactID, &e.Version, &e.Repository, &e.Description, &e.Source, &e.IndexedAt); err != nil {
			return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog entries: %w", err)
	}

	return entries, nil
}

// SearchCatalogEntries returns indexed entries whose groupId, artifactId or
// description contains text, case-insensitively.
func (s *SQLiteStore) SearchCatalogEntries(ctx context.Context, text string) ([]IndexedEntry, error) {
	all, err := s.ListCatalogEntries(ctx, "")
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(text)
	var out []IndexedEntry
	for _, e := range all {
		hay := strings.ToLower(e.GroupID + ":" + e.ArtifactID + " " + e.Description)
		if strings.Contains(hay, needle) {
			out = append(out, e)
		}
	}
	return out, nil
}

// CreateAuditEntry creates a new audit log entry
func (s *SQLiteStore) CreateAuditEntry(ctx context.Context, entry *AuditEntry) error {
	query := `
		INSERT INTO audit (action, actor, target_id, details, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	result, err := s.db.ExecContext(ctx, query,
		entry.Action,
		entry.Actor,
		entry.TargetID,
		entry.Details,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get audit entry ID: %w", err)
	}

	entry.ID = id
	return nil
}

// ListAuditEntries lists audit entries, newest first, optionally filtered by
// action.
func (s *SQLiteStore) ListAuditEntries(ctx context.Context, action *string, limit, offset int) ([]*AuditEntry, error) {
	query := `
		SELECT id, action, actor, target_id, details, timestamp
		FROM audit
		WHERE (? IS NULL OR action = ?)
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, query, action, action, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*AuditEntry{}
	for rows.Next() {
		entry := &AuditEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&entry.Actor,
			&entry.TargetID,
			&entry.Details,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
