package native

import (
	"bytes"
	"sync"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"

	"showseed/internal/engine"
)

// resumeRecord is the fast resume payload. Piece completion lives in the
// storage backend, so this only carries what the client forgets on restart.
type resumeRecord struct {
	InfoHash   string     `bencode:"info-hash"`
	Name       string     `bencode:"name,omitempty"`
	Trackers   [][]string `bencode:"trackers,omitempty"`
	Downloaded int64      `bencode:"total-downloaded"`
	Uploaded   int64      `bencode:"total-uploaded"`
	SavedAt    int64      `bencode:"saved-at"`
}

func decodeResume(data []byte, ih metainfo.Hash) *resumeRecord {
	if len(data) == 0 {
		return nil
	}
	var rec resumeRecord
	if err := bencode.Unmarshal(data, &rec); err != nil {
		return nil
	}
	if rec.InfoHash != ih.HexString() {
		return nil
	}
	return &rec
}

// Torrent wraps a *torrent.Torrent with rate sampling and the all-time
// counters carried across restarts.
type Torrent struct {
	t *torrent.Torrent

	mu             sync.Mutex
	paused         bool
	baseDownloaded int64
	baseUploaded   int64
	maxUploads     int
	lastSample     time.Time
	lastRead       int64
	lastWritten    int64
}

func newTorrent(t *torrent.Torrent, rec *resumeRecord) *Torrent {
	nt := &Torrent{t: t, maxUploads: -1}
	if rec != nil {
		nt.baseDownloaded = rec.Downloaded
		nt.baseUploaded = rec.Uploaded
	}
	return nt
}

func (t *Torrent) InfoHash() string {
	return t.t.InfoHash().HexString()
}

func (t *Torrent) Valid() bool {
	select {
	case <-t.t.Closed():
		return false
	default:
		return true
	}
}

func (t *Torrent) HasMetadata() bool {
	return t.Valid() && t.t.Info() != nil
}

func (t *Torrent) Info() (engine.Info, error) {
	if !t.Valid() {
		return engine.Info{}, engine.ErrInvalidHandle
	}
	info := t.t.Info()
	if info == nil {
		return engine.Info{}, engine.ErrNoMetadata
	}
	return describe(t.InfoHash(), info), nil
}

func (t *Torrent) Status() engine.Status {
	stats := t.t.Stats()
	read := stats.BytesReadData.Int64()
	written := stats.BytesWrittenData.Int64()
	now := time.Now()

	t.mu.Lock()
	st := engine.Status{
		Paused:          t.paused,
		AllTimeDownload: t.baseDownloaded + read,
		AllTimeUpload:   t.baseUploaded + written,
	}
	if !t.lastSample.IsZero() {
		if elapsed := now.Sub(t.lastSample).Seconds(); elapsed > 0 {
			st.DownloadRate = int64(float64(read-t.lastRead) / elapsed)
			st.UploadRate = int64(float64(written-t.lastWritten) / elapsed)
		}
	}
	t.lastSample, t.lastRead, t.lastWritten = now, read, written
	paused := t.paused
	t.mu.Unlock()

	if !t.Valid() {
		st.Phase = engine.PhaseError
		st.Error = "torrent dropped"
		return st
	}
	if t.t.Info() == nil {
		st.Phase = engine.PhaseMetadataPending
		return st
	}
	if length := t.t.Length(); length > 0 {
		st.Progress = float64(t.t.BytesCompleted()) / float64(length)
	} else {
		st.Progress = 1
	}
	switch {
	case t.t.BytesMissing() > 0:
		st.Phase = engine.PhaseDownloading
	case paused:
		st.Phase = engine.PhaseFinished
	default:
		st.Phase = engine.PhaseSeeding
	}
	return st
}

func (t *Torrent) SetMaxConnections(n int) {
	if n <= 0 {
		return
	}
	t.t.SetMaxEstablishedConns(n)
}

// SetMaxUploads is recorded only: the client does not choke by slot count.
func (t *Torrent) SetMaxUploads(n int) {
	t.mu.Lock()
	t.maxUploads = n
	t.mu.Unlock()
}

func (t *Torrent) ResumeData() ([]byte, error) {
	if !t.Valid() {
		return nil, engine.ErrInvalidHandle
	}
	st := t.Status()
	mi := t.t.Metainfo()
	rec := resumeRecord{
		InfoHash:   t.InfoHash(),
		Trackers:   mi.UpvertedAnnounceList(),
		Downloaded: st.AllTimeDownload,
		Uploaded:   st.AllTimeUpload,
		SavedAt:    time.Now().Unix(),
	}
	if info := t.t.Info(); info != nil {
		rec.Name = info.Name
	}
	return bencode.Marshal(rec)
}

func (t *Torrent) MetaInfo() ([]byte, error) {
	if !t.Valid() {
		return nil, engine.ErrInvalidHandle
	}
	if t.t.Info() == nil {
		return nil, engine.ErrNoMetadata
	}
	mi := t.t.Metainfo()
	var buf bytes.Buffer
	if err := mi.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *Torrent) pause() {
	t.mu.Lock()
	t.paused = true
	t.mu.Unlock()
	t.t.DisallowDataDownload()
	t.t.DisallowDataUpload()
}
