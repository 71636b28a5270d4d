package jobs

import (
	"crypto/md5"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"showseed/internal/engine"
)

// DefaultStatusLogInterval bounds how often a job's progress is logged.
const DefaultStatusLogInterval = 10 * time.Minute

// Episode links a job to one episode of a tracked show.
type Episode struct {
	ShowID   int    `json:"show_id"`
	ShowName string `json:"show_name,omitempty"`
	Season   int    `json:"season"`
	Number   int    `json:"episode"`
}

// Spec describes a job at admission time.
type Spec struct {
	Key               string
	Descriptor        []byte
	PostProcessed     bool
	StartedAt         time.Time
	Episodes          []Episode
	StatusLogInterval time.Duration
}

// Job is one admitted download. Refreshed state sits behind mu; decision
// serialises post-processing against removal.
type Job struct {
	key       string
	startedAt time.Time
	lazy      bool

	decision  sync.Mutex
	statusLog rate.Sometimes

	mu            sync.RWMutex
	descriptor    []byte
	metaCached    bool
	name          string
	totalSize     int64
	handle        engine.Torrent
	phase         engine.Phase
	progress      float64
	downRate      int64
	upRate        int64
	ratio         float64
	paused        bool
	lastErr       string
	postProcessed bool
	removing      bool
	episodes      []Episode
}

// KeyFor returns the stable key derived from a descriptor.
func KeyFor(descriptor []byte) string {
	sum := md5.Sum(descriptor)
	return hex.EncodeToString(sum[:])
}

// New builds a job in the added phase.
func New(spec Spec) *Job {
	key := spec.Key
	if key == "" {
		key = KeyFor(spec.Descriptor)
	}
	started := spec.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	interval := spec.StatusLogInterval
	if interval <= 0 {
		interval = DefaultStatusLogInterval
	}
	return &Job{
		key:           key,
		startedAt:     started,
		lazy:          engine.IsLazyDescriptor(string(spec.Descriptor)),
		statusLog:     rate.Sometimes{Interval: interval},
		descriptor:    append([]byte(nil), spec.Descriptor...),
		totalSize:     -1,
		phase:         engine.PhaseAdded,
		progress:      -1,
		downRate:      -1,
		upRate:        -1,
		postProcessed: spec.PostProcessed,
		episodes:      append([]Episode(nil), spec.Episodes...),
	}
}

func (j *Job) Key() string          { return j.key }
func (j *Job) StartedAt() time.Time { return j.startedAt }

// Lazy reports whether the job was admitted from a magnet or URL.
func (j *Job) Lazy() bool { return j.lazy }

func (j *Job) Descriptor() []byte {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]byte(nil), j.descriptor...)
}

func (j *Job) Handle() engine.Torrent {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.handle
}

func (j *Job) SetHandle(t engine.Torrent) {
	j.mu.Lock()
	j.handle = t
	j.mu.Unlock()
}

func (j *Job) Name() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.name
}

func (j *Job) Phase() engine.Phase {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.phase
}

func (j *Job) Ratio() float64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.ratio
}

func (j *Job) PostProcessed() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.postProcessed
}

func (j *Job) Episodes() []Episode {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]Episode(nil), j.episodes...)
}

// SetMetadata records the name and size once the engine knows them.
func (j *Job) SetMetadata(info engine.Info) {
	j.mu.Lock()
	j.name = info.Name
	j.totalSize = info.TotalSize
	j.mu.Unlock()
}

// NeedsMetaInfo reports whether a lazy job still holds its original
// magnet/URL descriptor.
func (j *Job) NeedsMetaInfo() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.lazy && !j.metaCached
}

// CacheMetaInfo replaces the lazy descriptor with encoded metainfo. Only the
// first call has an effect.
func (j *Job) CacheMetaInfo(data []byte) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.lazy || j.metaCached || len(data) == 0 {
		return false
	}
	j.descriptor = append([]byte(nil), data...)
	j.metaCached = true
	return true
}

// Refresh copies an engine status snapshot onto the job.
func (j *Job) Refresh(st engine.Status) {
	j.mu.Lock()
	j.phase = st.Phase
	j.progress = st.Progress
	j.downRate = st.DownloadRate
	j.upRate = st.UploadRate
	j.paused = st.Paused
	j.lastErr = st.Error
	j.ratio = st.Ratio()
	j.mu.Unlock()
}

// PostProcessOnce runs fn under the decision lock unless the job was already
// post-processed or is being removed, then marks it processed whatever fn
// reported. It returns whether fn ran.
func (j *Job) PostProcessOnce(fn func()) bool {
	j.decision.Lock()
	defer j.decision.Unlock()
	j.mu.RLock()
	skip := j.postProcessed || j.removing
	j.mu.RUnlock()
	if skip {
		return false
	}
	fn()
	j.mu.Lock()
	j.postProcessed = true
	j.mu.Unlock()
	return true
}

// ClaimSeedRemoval claims the job for removal once it is post-processed and
// its ratio has reached threshold. Files are deleted only for processed jobs.
func (j *Job) ClaimSeedRemoval(threshold float64) (deleteFiles, claimed bool) {
	j.decision.Lock()
	defer j.decision.Unlock()
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.removing || !j.postProcessed || j.ratio < threshold {
		return false, false
	}
	j.removing = true
	return j.postProcessed, true
}

// ClaimRemoval claims the job for an unconditional teardown. It fails when
// another caller already claimed it.
func (j *Job) ClaimRemoval() bool {
	j.decision.Lock()
	defer j.decision.Unlock()
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.removing {
		return false
	}
	j.removing = true
	return true
}

// Removing reports whether a removal has been claimed.
func (j *Job) Removing() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.removing
}

// LogStatus runs fn at most once per status interval.
func (j *Job) LogStatus(fn func()) {
	j.statusLog.Do(fn)
}

// View is an immutable copy of a job for listings.
type View struct {
	Key           string       `json:"key"`
	Name          string       `json:"name"`
	TotalSize     int64        `json:"total_size"`
	Phase         engine.Phase `json:"phase"`
	Progress      float64      `json:"progress"`
	DownloadRate  int64        `json:"download_rate"`
	UploadRate    int64        `json:"upload_rate"`
	Ratio         float64      `json:"ratio"`
	Paused        bool         `json:"paused"`
	LastError     string       `json:"last_error,omitempty"`
	PostProcessed bool         `json:"post_processed"`
	Lazy          bool         `json:"lazy"`
	StartedAt     time.Time    `json:"started_at"`
	Episodes      []Episode    `json:"episodes,omitempty"`
}

func (j *Job) View() View {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return View{
		Key:           j.key,
		Name:          j.name,
		TotalSize:     j.totalSize,
		Phase:         j.phase,
		Progress:      j.progress,
		DownloadRate:  j.downRate,
		UploadRate:    j.upRate,
		Ratio:         j.ratio,
		Paused:        j.paused,
		LastError:     j.lastErr,
		PostProcessed: j.postProcessed,
		Lazy:          j.lazy,
		StartedAt:     j.startedAt,
		Episodes:      append([]Episode(nil), j.episodes...),
	}
}
