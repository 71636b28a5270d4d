package snapshot_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"showseed/internal/snapshot"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "running", "jobs.db")
	started := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	in := []snapshot.Record{
		{
			Key:           "k1",
			Descriptor:    []byte("magnet:?xt=urn:btih:one"),
			PostProcessed: false,
			StartedAt:     started,
			Episodes:      []snapshot.Episode{{ShowID: 10, Season: 1, Number: 2}, {ShowID: 10, Season: 1, Number: 3}},
		},
		{
			Key:           "k2",
			Descriptor:    []byte{0x64, 0x00, 0xff, 0x65},
			PostProcessed: true,
			StartedAt:     started.Add(time.Hour),
		},
	}
	if err := snapshot.Save(context.Background(), path, in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !snapshot.Exists(path) {
		t.Fatal("expected snapshot file to exist")
	}
	if _, err := os.Stat(path + ".tmp-" + strconv.Itoa(os.Getpid())); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp file left behind: %v", err)
	}

	out, err := snapshot.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("loaded %d records, want 2", len(out))
	}
	if out[0].Key != "k1" || out[1].Key != "k2" {
		t.Fatalf("unexpected order: %q, %q", out[0].Key, out[1].Key)
	}
	if string(out[1].Descriptor) != string(in[1].Descriptor) {
		t.Fatalf("binary descriptor not preserved: %x", out[1].Descriptor)
	}
	if !out[1].PostProcessed || out[0].PostProcessed {
		t.Fatal("post-processed flags not preserved")
	}
	if !out[0].StartedAt.Equal(started) {
		t.Fatalf("started_at = %v, want %v", out[0].StartedAt, started)
	}
	if len(out[0].Episodes) != 2 || out[0].Episodes[1].Number != 3 {
		t.Fatalf("episodes not preserved: %+v", out[0].Episodes)
	}
	if len(out[1].Episodes) != 0 {
		t.Fatalf("unexpected episodes on k2: %+v", out[1].Episodes)
	}
}

func TestSaveReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	ctx := context.Background()
	if err := snapshot.Save(ctx, path, []snapshot.Record{{Key: "old", Descriptor: []byte("a")}}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := snapshot.Save(ctx, path, []snapshot.Record{{Key: "new", Descriptor: []byte("b")}}); err != nil {
		t.Fatalf("second save: %v", err)
	}
	out, err := snapshot.Load(ctx, path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(out) != 1 || out[0].Key != "new" {
		t.Fatalf("expected only the new record, got %+v", out)
	}
}

func TestLoadVersionOneWithoutEpisodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	stmts := []string{
		"CREATE TABLE schema_version (version INTEGER NOT NULL)",
		"INSERT INTO schema_version (version) VALUES (1)",
		"CREATE TABLE jobs (position INTEGER PRIMARY KEY, key TEXT NOT NULL, descriptor BLOB NOT NULL, post_processed INTEGER NOT NULL, started_at TEXT NOT NULL)",
		"INSERT INTO jobs VALUES (0, 'legacy', X'6d61676e6574', 1, '2023-01-01T00:00:00Z')",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	_ = db.Close()

	out, err := snapshot.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(out) != 1 || out[0].Key != "legacy" || !out[0].PostProcessed {
		t.Fatalf("unexpected records: %+v", out)
	}
	if string(out[0].Descriptor) != "magnet" {
		t.Fatalf("descriptor = %q", out[0].Descriptor)
	}
	if out[0].Episodes != nil {
		t.Fatalf("expected no episodes, got %+v", out[0].Episodes)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	if err := os.WriteFile(path, []byte("not a database at all, just text"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := snapshot.Load(context.Background(), path); err == nil {
		t.Fatal("expected error for garbage file")
	}
}

func TestLoadMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.db")
	if _, err := snapshot.Load(context.Background(), path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	if err := snapshot.Remove(path); err != nil {
		t.Fatalf("Remove of missing file should succeed: %v", err)
	}
}
