package enginetest

import (
	"sync"

	"showseed/internal/engine"
)

// Torrent is a fake engine.Torrent whose state is set by the test.
type Torrent struct {
	mu          sync.Mutex
	info        engine.Info
	hasMetadata bool
	valid       bool
	phase       engine.Phase
	progress    float64
	downRate    int64
	upRate      int64
	downloaded  int64
	uploaded    int64
	paused      bool
	errMsg      string
	resume      []byte
	params      engine.AddParams
	maxConns    int
	maxUploads  int
	statusCalls int
}

func (t *Torrent) InfoHash() string { return t.info.InfoHash }

func (t *Torrent) Valid() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.valid
}

func (t *Torrent) HasMetadata() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.valid && t.hasMetadata
}

func (t *Torrent) Info() (engine.Info, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.valid {
		return engine.Info{}, engine.ErrInvalidHandle
	}
	if !t.hasMetadata {
		return engine.Info{}, engine.ErrNoMetadata
	}
	return t.info, nil
}

func (t *Torrent) Status() engine.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statusCalls++
	return engine.Status{
		Phase:           t.phase,
		Progress:        t.progress,
		DownloadRate:    t.downRate,
		UploadRate:      t.upRate,
		AllTimeDownload: t.downloaded,
		AllTimeUpload:   t.uploaded,
		Paused:          t.paused,
		Error:           t.errMsg,
	}
}

func (t *Torrent) SetMaxConnections(n int) {
	t.mu.Lock()
	t.maxConns = n
	t.mu.Unlock()
}

func (t *Torrent) SetMaxUploads(n int) {
	t.mu.Lock()
	t.maxUploads = n
	t.mu.Unlock()
}

func (t *Torrent) ResumeData() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.valid {
		return nil, engine.ErrInvalidHandle
	}
	return []byte("resume:" + t.info.InfoHash), nil
}

func (t *Torrent) MetaInfo() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasMetadata {
		return nil, engine.ErrNoMetadata
	}
	return []byte(metaInfoFor(t.info.InfoHash)), nil
}

func metaInfoFor(infoHash string) string {
	return "metainfo:" + infoHash
}

// ResolveMetadata simulates metadata arriving from peers.
func (t *Torrent) ResolveMetadata() {
	t.mu.Lock()
	t.hasMetadata = true
	if t.phase == engine.PhaseMetadataPending || t.phase == engine.PhaseAdded {
		t.phase = engine.PhaseDownloading
	}
	t.mu.Unlock()
}

// SetPhase forces the reported phase.
func (t *Torrent) SetPhase(p engine.Phase) {
	t.mu.Lock()
	t.phase = p
	t.mu.Unlock()
}

// SetProgress forces progress and rates.
func (t *Torrent) SetProgress(progress float64, downRate, upRate int64) {
	t.mu.Lock()
	t.progress = progress
	t.downRate = downRate
	t.upRate = upRate
	t.mu.Unlock()
}

// SetTransferred forces the all-time byte counters.
func (t *Torrent) SetTransferred(downloaded, uploaded int64) {
	t.mu.Lock()
	t.downloaded = downloaded
	t.uploaded = uploaded
	t.mu.Unlock()
}

// Complete marks the torrent fully downloaded and seeding.
func (t *Torrent) Complete() {
	t.mu.Lock()
	t.hasMetadata = true
	t.phase = engine.PhaseSeeding
	t.progress = 1
	t.mu.Unlock()
}

// SetError sets the engine error string.
func (t *Torrent) SetError(msg string) {
	t.mu.Lock()
	t.errMsg = msg
	t.mu.Unlock()
}

// AddParams returns the parameters the torrent was added with.
func (t *Torrent) AddParams() engine.AddParams {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.params
}

// AddedResumeData returns the resume bytes given to Add.
func (t *Torrent) AddedResumeData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.resume...)
}

// Limits returns the per-torrent connection and upload slot caps.
func (t *Torrent) Limits() (maxConns, maxUploads int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxConns, t.maxUploads
}

// IsPaused reports whether the engine paused this torrent.
func (t *Torrent) IsPaused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

func (t *Torrent) setPaused(p bool) {
	t.mu.Lock()
	t.paused = p
	t.mu.Unlock()
}

func (t *Torrent) invalidate() {
	t.mu.Lock()
	t.valid = false
	t.mu.Unlock()
}
