package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"showseed/internal/engine"
)

// WritePayload creates each torrent file under saveDir, filled with a byte
// pattern of the declared size (at least one byte).
func WritePayload(t testing.TB, saveDir string, files []engine.File) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(saveDir, f.Path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", path, err)
		}
		size := max(f.Size, 1)
		if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, int(size)), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}
