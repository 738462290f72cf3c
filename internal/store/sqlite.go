package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// walJournalSizeLimit bounds the WAL file to 64 MiB.
const walJournalSizeLimit = 67108864

const (
	sqlGetPref = `SELECT value FROM sync_prefs WHERE namespace = ? AND key = ?`

	sqlSetPref = `INSERT INTO sync_prefs (namespace, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at`
)

// SQLiteStore implements Store on an embedded SQLite database in WAL mode.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	getStmt *sql.Stmt
	setStmt *sql.Stmt
}

// Open creates a SQLiteStore at dbPath, applying pragmas and pending
// migrations. Use ":memory:" for tests.
func Open(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	logger.Info("opening sync prefs database", slog.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}

	if err := setPragmas(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db, logger: logger}

	if s.getStmt, err = db.PrepareContext(context.Background(), sqlGetPref); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: prepare get: %w", err)
	}

	if s.setStmt, err = db.PrepareContext(context.Background(), sqlSetPref); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: prepare set: %w", err)
	}

	return s, nil
}

// setPragmas configures SQLite for WAL mode and safety.
func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit),
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("store: set pragma %q: %w", p, err)
		}
	}

	return nil
}

// runMigrations applies all pending schema migrations using the goose v3
// Provider API (no global state, context-aware).
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("store: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("store: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// getPref reads one key, returning ok=false when the row is absent.
func (s *SQLiteStore) getPref(ctx context.Context, key string) (string, bool, error) {
	var value string

	err := s.getStmt.QueryRowContext(ctx, Namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("store: reading %s: %w", key, err)
	}

	return value, true, nil
}

// setPref upserts one key.
func (s *SQLiteStore) setPref(ctx context.Context, key, value string) error {
	if _, err := s.setStmt.ExecContext(ctx, Namespace, key, value, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("store: writing %s: %w", key, err)
	}

	return nil
}

// PersistedState returns the saved continuation token, ok=false when absent.
func (s *SQLiteStore) PersistedState(ctx context.Context) (string, bool, error) {
	return s.getPref(ctx, keyPersistedState)
}

// SetPersistedState overwrites the continuation token.
func (s *SQLiteStore) SetPersistedState(ctx context.Context, state string) error {
	return s.setPref(ctx, keyPersistedState, state)
}

// LastSynced returns the last successful sync time. A missing row or a
// stored zero both mean "never synced" and return ok=false.
func (s *SQLiteStore) LastSynced(ctx context.Context) (time.Time, bool, error) {
	raw, ok, err := s.getPref(ctx, keyLastSynced)
	if err != nil || !ok {
		return time.Time{}, false, err
	}

	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("store: parsing %s value %q: %w", keyLastSynced, raw, err)
	}

	if millis == 0 {
		return time.Time{}, false, nil
	}

	return time.UnixMilli(millis), true, nil
}

// SetLastSynced records a successful sync time as epoch-millis.
func (s *SQLiteStore) SetLastSynced(ctx context.Context, t time.Time) error {
	return s.setPref(ctx, keyLastSynced, strconv.FormatInt(t.UnixMilli(), 10))
}

// Close releases prepared statements and the database handle.
func (s *SQLiteStore) Close() error {
	if s.getStmt != nil {
		s.getStmt.Close()
	}

	if s.setStmt != nil {
		s.setStmt.Close()
	}

	return s.db.Close()
}
