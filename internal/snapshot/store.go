package snapshot

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the version written by Save. Version 1 files lack the
// job_episodes table.
const schemaVersion = 2

var (
	// ErrCorrupt indicates the file is not a readable snapshot.
	ErrCorrupt = errors.New("snapshot corrupt")
	// ErrSchemaMismatch indicates a snapshot written by a newer release.
	ErrSchemaMismatch = errors.New("snapshot schema version mismatch")
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Episode is a persisted episode link.
type Episode struct {
	ShowID int
	Season int
	Number int
}

// Record is the persisted projection of one job.
type Record struct {
	Key           string
	Descriptor    []byte
	PostProcessed bool
	StartedAt     time.Time
	Episodes      []Episode
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	return db, nil
}

// Save replaces the snapshot at path with records. The file is built beside
// the target and renamed into place, so readers never see a partial write.
func Save(ctx context.Context, path string, records []Record) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp := fmt.Sprintf("%s.tmp-%d", path, os.Getpid())
	_ = os.Remove(tmp)

	if err := writeFile(ctx, tmp, records); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("install snapshot: %w", err)
	}
	return nil
}

func writeFile(ctx context.Context, path string, records []Record) error {
	db, err := open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	return retryOnBusy(ctx, func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin snapshot tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		for i, rec := range records {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO jobs (position, key, descriptor, post_processed, started_at) VALUES (?, ?, ?, ?, ?)",
				i, rec.Key, rec.Descriptor, boolToInt(rec.PostProcessed), rec.StartedAt.UTC().Format(time.RFC3339Nano),
			); err != nil {
				return fmt.Errorf("insert job %s: %w", rec.Key, err)
			}
			for pos, ep := range rec.Episodes {
				if _, err := tx.ExecContext(ctx,
					"INSERT INTO job_episodes (job_key, position, show_id, season, episode) VALUES (?, ?, ?, ?, ?)",
					rec.Key, pos, ep.ShowID, ep.Season, ep.Number,
				); err != nil {
					return fmt.Errorf("insert episode for %s: %w", rec.Key, err)
				}
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit snapshot: %w", err)
		}
		return nil
	})
}

// Load reads every record from the snapshot at path in saved order.
func Load(ctx context.Context, path string) ([]Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !Exists(path) {
		return nil, fmt.Errorf("load snapshot %s: %w", path, os.ErrNotExist)
	}
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	version, err := readVersion(ctx, db)
	if err != nil {
		return nil, err
	}
	if version > schemaVersion {
		return nil, fmt.Errorf("%w: file has version %d, expected at most %d", ErrSchemaMismatch, version, schemaVersion)
	}

	records, err := readJobs(ctx, db)
	if err != nil {
		return nil, err
	}
	if version < 2 {
		return records, nil
	}
	if err := readEpisodes(ctx, db, records); err != nil {
		return nil, err
	}
	return records, nil
}

func readVersion(ctx context.Context, db *sql.DB) (int, error) {
	var tables int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name IN ('schema_version', 'jobs')",
	).Scan(&tables); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if tables != 2 {
		return 0, fmt.Errorf("%w: missing tables", ErrCorrupt)
	}
	var version int
	if err := db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("%w: read schema version: %v", ErrCorrupt, err)
	}
	return version, nil
}

func readJobs(ctx context.Context, db *sql.DB) ([]Record, error) {
	rows, err := db.QueryContext(ctx, "SELECT key, descriptor, post_processed, started_at FROM jobs ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("%w: query jobs: %v", ErrCorrupt, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec        Record
			processed  int64
			startedRaw sql.NullString
		)
		if err := rows.Scan(&rec.Key, &rec.Descriptor, &processed, &startedRaw); err != nil {
			return nil, fmt.Errorf("%w: scan job: %v", ErrCorrupt, err)
		}
		rec.PostProcessed = processed != 0
		if startedRaw.Valid {
			if ts, err := time.Parse(time.RFC3339Nano, startedRaw.String); err == nil {
				rec.StartedAt = ts
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate jobs: %v", ErrCorrupt, err)
	}
	return records, nil
}

func readEpisodes(ctx context.Context, db *sql.DB, records []Record) error {
	index := make(map[string]int, len(records))
	for i, rec := range records {
		index[rec.Key] = i
	}
	rows, err := db.QueryContext(ctx, "SELECT job_key, show_id, season, episode FROM job_episodes ORDER BY job_key, position")
	if err != nil {
		return fmt.Errorf("%w: query episodes: %v", ErrCorrupt, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key string
			ep  Episode
		)
		if err := rows.Scan(&key, &ep.ShowID, &ep.Season, &ep.Number); err != nil {
			return fmt.Errorf("%w: scan episode: %v", ErrCorrupt, err)
		}
		if i, ok := index[key]; ok {
			records[i].Episodes = append(records[i].Episodes, ep)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: iterate episodes: %v", ErrCorrupt, err)
	}
	return nil
}

// Exists reports whether a snapshot file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Remove deletes the snapshot at path. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	for _, suffix := range []string{"-journal", "-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
	return nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
