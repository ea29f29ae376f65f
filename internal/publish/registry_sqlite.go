package publish

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"loreforge/internal/services"
)

const registryTable = "publish_registry"

var registryColumns = []string{
	"published_utc", "day", "content_id", "publish_hash", "youtube_video_id",
	"youtube_url", "video_sha256", "video_path", "fingerprint_json",
}

// SQLiteRegistry keeps records in a SQLite database.
type SQLiteRegistry struct {
	db   *sql.DB
	path string
}

// OpenSQLiteRegistry opens or creates the database at path and applies
// migrations.
func OpenSQLiteRegistry(path string) (*SQLiteRegistry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "publish", "open registry", "create directory", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "publish", "open registry", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if err := applyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteRegistry{db: db, path: path}, nil
}

// Path returns the database file.
func (r *SQLiteRegistry) Path() string { return r.path }

// Close implements Registry.
func (r *SQLiteRegistry) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Lookup implements Registry.
func (r *SQLiteRegistry) Lookup(ctx context.Context, hash, contentID string) (*Record, error) {
	cond := sq.Or{sq.Eq{"publish_hash": hash}}
	if contentID != "" {
		cond = append(cond, sq.Eq{"content_id": contentID})
	}
	query, args, err := sq.Select(registryColumns...).
		From(registryTable).
		Where(cond).
		OrderBy("id").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lookup: %w", err)
	}
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "publish", "lookup", "", err)
	}
	return &rec, nil
}

// Append implements Registry.
func (r *SQLiteRegistry) Append(ctx context.Context, rec Record) error {
	fingerprint, err := json.Marshal(rec.Fingerprint)
	if err != nil {
		return fmt.Errorf("encode fingerprint: %w", err)
	}
	query, args, err := sq.Insert(registryTable).
		Columns(registryColumns...).
		Values(rec.PublishedUTC, rec.Day, rec.ContentID, rec.PublishHash, rec.YouTubeVideoID,
			rec.YouTubeURL, rec.VideoSHA256, rec.VideoPath, string(fingerprint)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return services.Wrap(services.ErrTransient, "publish", "append", "", err)
	}
	return nil
}

// List implements Registry.
func (r *SQLiteRegistry) List(ctx context.Context) ([]Record, error) {
	query, args, err := sq.Select(registryColumns...).From(registryTable).OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "publish", "list", "", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "publish", "list", "", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec         Record
		fingerprint string
	)
	if err := row.Scan(&rec.PublishedUTC, &rec.Day, &rec.ContentID, &rec.PublishHash, &rec.YouTubeVideoID,
		&rec.YouTubeURL, &rec.VideoSHA256, &rec.VideoPath, &fingerprint); err != nil {
		return Record{}, err
	}
	if fingerprint != "" {
		if err := json.Unmarshal([]byte(fingerprint), &rec.Fingerprint); err != nil {
			return Record{}, fmt.Errorf("decode fingerprint: %w", err)
		}
	}
	return rec, nil
}
