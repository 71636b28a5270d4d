package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mkv")
	dst := filepath.Join(dir, "dst.mkv")

	content := []byte("hello world")
	if err := os.WriteFile(src, content, 0o640); err != nil {
		t.Fatal(err)
	}
	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source should be kept: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected only src and dst, found %d entries", len(entries))
	}
}

func TestCopyFileVerifiedMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFileVerified(filepath.Join(dir, "missing"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
	if _, err := os.Stat(filepath.Join(dir, "dst")); !os.IsNotExist(err) {
		t.Fatalf("dst should not exist: %v", err)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.fastresume")
	if err := WriteFileAtomic(path, []byte("one"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(path, []byte("two"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "two" {
		t.Fatalf("got %q, want two", got)
	}
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "Episode.mkv")
	got, err := UniquePath(base)
	if err != nil || got != base {
		t.Fatalf("UniquePath on free name = %q, %v", got, err)
	}
	if err := os.WriteFile(base, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Episode (1).mkv"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = UniquePath(base)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "Episode (2).mkv"); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRemoveIfExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x")
	removed, err := RemoveIfExists(path)
	if err != nil || removed {
		t.Fatalf("missing file: removed=%v err=%v", removed, err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	removed, err = RemoveIfExists(path)
	if err != nil || !removed {
		t.Fatalf("existing file: removed=%v err=%v", removed, err)
	}
}

func TestValidName(t *testing.T) {
	for _, name := range []string{"Show.S01E01", "a..b", ".hidden"} {
		if err := ValidName(name); err != nil {
			t.Fatalf("ValidName(%q): %v", name, err)
		}
	}
	for _, name := range []string{"", ".", "..", "a/b", `a\b`, "../x"} {
		if err := ValidName(name); !errors.Is(err, ErrUnsafePath) {
			t.Fatalf("ValidName(%q) = %v, want ErrUnsafePath", name, err)
		}
	}
}

func TestJoinUnder(t *testing.T) {
	root := t.TempDir()
	got, err := JoinUnder(root, "Show/ep.mkv")
	if err != nil {
		t.Fatalf("JoinUnder: %v", err)
	}
	if want := filepath.Join(root, "Show", "ep.mkv"); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	for _, rel := range []string{"", ".", "..", "../other", "Show/../..", "a/../", "/etc/passwd"} {
		if _, err := JoinUnder(root, rel); !errors.Is(err, ErrUnsafePath) {
			t.Fatalf("JoinUnder(%q) = %v, want ErrUnsafePath", rel, err)
		}
	}
}
