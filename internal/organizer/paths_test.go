package organizer

import (
	"fmt"
	"os"
	"syscall"
	"testing"

	"showseed/internal/config"
)

func TestShouldRefreshJellyfin(t *testing.T) {
	cfg := config.Default()
	if ok, reason := shouldRefreshJellyfin(&cfg); ok || reason != "disabled" {
		t.Fatalf("disabled: got %v %q", ok, reason)
	}
	cfg.Jellyfin.Enabled = true
	if ok, reason := shouldRefreshJellyfin(&cfg); ok || reason != "missing_credentials" {
		t.Fatalf("no creds: got %v %q", ok, reason)
	}
	cfg.Jellyfin.URL = "http://jf"
	cfg.Jellyfin.APIKey = "k"
	if ok, _ := shouldRefreshJellyfin(&cfg); !ok {
		t.Fatal("expected refresh with credentials")
	}
	if ok, _ := shouldRefreshJellyfin(nil); ok {
		t.Fatal("nil config must not refresh")
	}
}

func TestIsLibraryUnavailable(t *testing.T) {
	if !isLibraryUnavailable(fmt.Errorf("copy: %w", syscall.ESTALE)) {
		t.Fatal("ESTALE should mean unavailable")
	}
	if !isLibraryUnavailable(&os.PathError{Op: "open", Path: "/mnt/tv", Err: syscall.ENOTCONN}) {
		t.Fatal("disconnected mount should mean unavailable")
	}
	if isLibraryUnavailable(os.ErrNotExist) {
		t.Fatal("a missing source file is not a mount problem")
	}
	if isLibraryUnavailable(syscall.EACCES) {
		t.Fatal("permission errors are not mount loss")
	}
	if isLibraryUnavailable(nil) {
		t.Fatal("nil is not an error")
	}
}
