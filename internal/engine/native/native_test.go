package native

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"

	"showseed/internal/engine"
	"showseed/internal/fileutil"
	"showseed/internal/logging"
)

const testTracker = "http://127.0.0.1:1/announce"

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := New(engine.Settings{
		SavePath: filepath.Join(t.TempDir(), "data"),
		Logger:   logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func writePayload(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	data := bytes.Repeat([]byte("showseed"), size/8+1)[:size]
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// buildMetaInfo encodes a torrent for the file or directory at root.
func buildMetaInfo(t *testing.T, root string) ([]byte, metainfo.Hash) {
	t.Helper()
	info := metainfo.Info{PieceLength: 16 << 10}
	if err := info.BuildFromFilePath(root); err != nil {
		t.Fatalf("build info: %v", err)
	}
	mi := metainfo.MetaInfo{
		InfoBytes: bencode.MustMarshal(info),
		Announce:  testTracker,
	}
	var buf bytes.Buffer
	if err := mi.Write(&buf); err != nil {
		t.Fatalf("write metainfo: %v", err)
	}
	return buf.Bytes(), mi.HashInfoBytes()
}

func addMetaInfo(t *testing.T, eng *Engine, data, resume []byte) *Torrent {
	t.Helper()
	handle, err := eng.Add(context.Background(), engine.AddParams{
		MetaInfo:         data,
		ResumeData:       resume,
		SavePath:         eng.settings.SavePath,
		DuplicateIsError: true,
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	return handle.(*Torrent)
}

func waitForPhase(t *testing.T, tor *Torrent, want engine.Phase) engine.Status {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for {
		st := tor.Status()
		if st.Phase == want {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("phase = %q, want %q", st.Phase, want)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestDecodeMetaInfoSingleFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "Show.S01E01.mkv")
	writePayload(t, src, 40<<10)
	data, hash := buildMetaInfo(t, src)

	info, err := (&Engine{}).DecodeMetaInfo(data)
	if err != nil {
		t.Fatalf("DecodeMetaInfo: %v", err)
	}
	if info.InfoHash != hash.HexString() || info.Name != "Show.S01E01.mkv" || info.TotalSize != 40<<10 {
		t.Fatalf("unexpected info %+v", info)
	}
	if len(info.Files) != 1 || info.Files[0].Path != "Show.S01E01.mkv" || info.Files[0].Size != 40<<10 {
		t.Fatalf("unexpected files %+v", info.Files)
	}
}

func TestDecodeMetaInfoMultiFile(t *testing.T) {
	root := filepath.Join(t.TempDir(), "Show.S02")
	writePayload(t, filepath.Join(root, "Show.S02E01.mkv"), 20<<10)
	writePayload(t, filepath.Join(root, "extras", "notes.nfo"), 100)
	data, _ := buildMetaInfo(t, root)

	info, err := (&Engine{}).DecodeMetaInfo(data)
	if err != nil {
		t.Fatalf("DecodeMetaInfo: %v", err)
	}
	want := []engine.File{
		{Path: filepath.Join("Show.S02", "Show.S02E01.mkv"), Size: 20 << 10},
		{Path: filepath.Join("Show.S02", "extras", "notes.nfo"), Size: 100},
	}
	if len(info.Files) != len(want) {
		t.Fatalf("files = %+v, want %+v", info.Files, want)
	}
	for i := range want {
		if info.Files[i] != want[i] {
			t.Fatalf("file %d = %+v, want %+v", i, info.Files[i], want[i])
		}
	}
	if info.TotalSize != 20<<10+100 {
		t.Fatalf("total size = %d", info.TotalSize)
	}
}

func TestDecodeMetaInfoRejectsGarbage(t *testing.T) {
	if _, err := (&Engine{}).DecodeMetaInfo([]byte("not bencode")); !errors.Is(err, engine.ErrInvalidDescriptor) {
		t.Fatalf("expected ErrInvalidDescriptor, got %v", err)
	}
}

func TestDecodeResume(t *testing.T) {
	var hash metainfo.Hash
	copy(hash[:], bytes.Repeat([]byte{0xab}, len(hash)))
	data := bencode.MustMarshal(resumeRecord{InfoHash: hash.HexString(), Downloaded: 10, Uploaded: 30})

	rec := decodeResume(data, hash)
	if rec == nil || rec.Downloaded != 10 || rec.Uploaded != 30 {
		t.Fatalf("unexpected record %+v", rec)
	}

	var other metainfo.Hash
	copy(other[:], bytes.Repeat([]byte{0xcd}, len(other)))
	if rec := decodeResume(data, other); rec != nil {
		t.Fatalf("mismatched info hash accepted: %+v", rec)
	}
	if rec := decodeResume([]byte("garbage"), hash); rec != nil {
		t.Fatalf("garbage accepted: %+v", rec)
	}
	if rec := decodeResume(nil, hash); rec != nil {
		t.Fatalf("empty resume accepted: %+v", rec)
	}
}

func TestStatusMetadataPending(t *testing.T) {
	eng := newTestEngine(t)
	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		t.Fatal(err)
	}
	handle, err := eng.Add(context.Background(), engine.AddParams{
		URL:      "magnet:?xt=urn:btih:" + hex.EncodeToString(raw),
		SavePath: eng.settings.SavePath,
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if handle.HasMetadata() {
		t.Fatal("magnet should start without metadata")
	}
	if st := handle.Status(); st.Phase != engine.PhaseMetadataPending {
		t.Fatalf("phase = %q, want %q", st.Phase, engine.PhaseMetadataPending)
	}
	if _, err := handle.Info(); !errors.Is(err, engine.ErrNoMetadata) {
		t.Fatalf("expected ErrNoMetadata, got %v", err)
	}
	if _, err := handle.MetaInfo(); !errors.Is(err, engine.ErrNoMetadata) {
		t.Fatalf("expected ErrNoMetadata from MetaInfo, got %v", err)
	}
}

func TestStatusDownloadingWithoutPayload(t *testing.T) {
	eng := newTestEngine(t)
	src := filepath.Join(t.TempDir(), "Missing.S01E01.mkv")
	writePayload(t, src, 48<<10)
	data, _ := buildMetaInfo(t, src)

	tor := addMetaInfo(t, eng, data, nil)
	st := tor.Status()
	if st.Phase != engine.PhaseDownloading {
		t.Fatalf("phase = %q, want %q", st.Phase, engine.PhaseDownloading)
	}
	if st.Progress >= 1 {
		t.Fatalf("progress = %v, want below 1", st.Progress)
	}
}

func TestStatusSeedingThenFinishedWhenPaused(t *testing.T) {
	eng := newTestEngine(t)
	payload := filepath.Join(eng.settings.SavePath, "Local.S01E01.mkv")
	writePayload(t, payload, 48<<10)
	data, _ := buildMetaInfo(t, payload)

	tor := addMetaInfo(t, eng, data, nil)
	st := waitForPhase(t, tor, engine.PhaseSeeding)
	if st.Progress != 1 {
		t.Fatalf("progress = %v, want 1", st.Progress)
	}

	eng.Pause()
	st = tor.Status()
	if st.Phase != engine.PhaseFinished || !st.Paused {
		t.Fatalf("paused status = %+v, want finished and paused", st)
	}
}

func TestResumeCountersDriveRatio(t *testing.T) {
	eng := newTestEngine(t)
	src := filepath.Join(t.TempDir(), "Ratio.S01E01.mkv")
	writePayload(t, src, 32<<10)
	data, hash := buildMetaInfo(t, src)
	resume := bencode.MustMarshal(resumeRecord{InfoHash: hash.HexString(), Downloaded: 1000, Uploaded: 2500})

	tor := addMetaInfo(t, eng, data, resume)
	st := tor.Status()
	if st.AllTimeDownload != 1000 || st.AllTimeUpload != 2500 {
		t.Fatalf("counters = (%d, %d), want (1000, 2500)", st.AllTimeDownload, st.AllTimeUpload)
	}
	if st.Ratio() != 2.5 {
		t.Fatalf("ratio = %v, want 2.5", st.Ratio())
	}
}

func TestResumeCountersIgnoredForOtherTorrent(t *testing.T) {
	eng := newTestEngine(t)
	src := filepath.Join(t.TempDir(), "Other.S01E01.mkv")
	writePayload(t, src, 32<<10)
	data, _ := buildMetaInfo(t, src)
	resume := bencode.MustMarshal(resumeRecord{InfoHash: "0000000000000000000000000000000000000000", Uploaded: 9000})

	tor := addMetaInfo(t, eng, data, resume)
	if st := tor.Status(); st.AllTimeUpload != 0 || st.AllTimeDownload != 0 {
		t.Fatalf("foreign resume data applied: %+v", st)
	}
}

func TestResumeDataCarriesTrackersAndCounters(t *testing.T) {
	eng := newTestEngine(t)
	src := filepath.Join(t.TempDir(), "Resume.S01E01.mkv")
	writePayload(t, src, 32<<10)
	data, hash := buildMetaInfo(t, src)
	resume := bencode.MustMarshal(resumeRecord{InfoHash: hash.HexString(), Downloaded: 7, Uploaded: 3})

	tor := addMetaInfo(t, eng, data, resume)
	out, err := tor.ResumeData()
	if err != nil {
		t.Fatalf("ResumeData: %v", err)
	}
	rec := decodeResume(out, hash)
	if rec == nil {
		t.Fatal("resume data does not decode for its own torrent")
	}
	if rec.Name != "Resume.S01E01.mkv" || rec.Downloaded != 7 || rec.Uploaded != 3 {
		t.Fatalf("unexpected record %+v", rec)
	}
	found := false
	for _, tier := range rec.Trackers {
		for _, tr := range tier {
			found = found || tr == testTracker
		}
	}
	if !found {
		t.Fatalf("trackers = %v, want %s", rec.Trackers, testTracker)
	}
}

func TestRemoveDeletesOnlyItsPayload(t *testing.T) {
	eng := newTestEngine(t)
	payload := filepath.Join(eng.settings.SavePath, "Gone.S01E01.mkv")
	sentinel := filepath.Join(eng.settings.SavePath, "other-torrent.mkv")
	writePayload(t, payload, 32<<10)
	writePayload(t, sentinel, 10)
	data, _ := buildMetaInfo(t, payload)

	tor := addMetaInfo(t, eng, data, nil)
	if err := eng.Remove(tor, true); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if tor.Valid() {
		t.Fatal("handle should be invalid after removal")
	}
	if _, err := os.Stat(payload); !os.IsNotExist(err) {
		t.Fatalf("payload should be deleted: %v", err)
	}
	if _, err := os.Stat(sentinel); err != nil {
		t.Fatalf("unrelated file removed: %v", err)
	}
	if err := eng.Remove(tor, true); !errors.Is(err, engine.ErrInvalidHandle) {
		t.Fatalf("second Remove: expected ErrInvalidHandle, got %v", err)
	}
}

func TestPayloadPathStaysUnderSavePath(t *testing.T) {
	dir := t.TempDir()
	eng := &Engine{settings: engine.Settings{SavePath: dir}}

	got, err := eng.payloadPath(&metainfo.Info{Name: "Show.S01E01"})
	if err != nil || got != filepath.Join(dir, "Show.S01E01") {
		t.Fatalf("payloadPath = %q, %v", got, err)
	}
	if got, err := eng.payloadPath(nil); got != "" || err != nil {
		t.Fatalf("payloadPath(nil) = %q, %v", got, err)
	}
	for _, name := range []string{"", ".", "..", "../outside", "a/b"} {
		if _, err := eng.payloadPath(&metainfo.Info{Name: name}); !errors.Is(err, fileutil.ErrUnsafePath) {
			t.Fatalf("payloadPath(%q) = %v, want ErrUnsafePath", name, err)
		}
	}
}

func TestAlertMaskFilters(t *testing.T) {
	eng := &Engine{settings: engine.Settings{AlertMask: engine.AlertStatus}}
	eng.pushAlert(engine.AlertTracker, "", "announce")
	eng.pushAlert(engine.AlertStatus, "abc", "torrent added")

	a, ok := eng.PopAlert()
	if !ok || a.Category != engine.AlertStatus || a.InfoHash != "abc" {
		t.Fatalf("unexpected alert %+v, %v", a, ok)
	}
	if _, ok := eng.PopAlert(); ok {
		t.Fatal("masked alert was queued")
	}
}

func TestAlertQueueDropsOldest(t *testing.T) {
	eng := &Engine{settings: engine.Settings{AlertMask: engine.DefaultAlertMask}}
	for i := 0; i < alertQueueSize+5; i++ {
		eng.pushAlert(engine.AlertStatus, "", fmt.Sprintf("alert %d", i))
	}
	var got []engine.Alert
	for {
		a, ok := eng.PopAlert()
		if !ok {
			break
		}
		got = append(got, a)
	}
	if len(got) != alertQueueSize {
		t.Fatalf("queued %d alerts, want %d", len(got), alertQueueSize)
	}
	if got[0].Message != "alert 5" || got[len(got)-1].Message != fmt.Sprintf("alert %d", alertQueueSize+4) {
		t.Fatalf("unexpected window %q .. %q", got[0].Message, got[len(got)-1].Message)
	}
}
