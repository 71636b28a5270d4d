package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Phase is the engine-reported lifecycle state of a torrent.
type Phase string

const (
	PhaseAdded           Phase = "added"
	PhaseMetadataPending Phase = "metadata_pending"
	PhaseDownloading     Phase = "downloading"
	PhaseFinished        Phase = "finished"
	PhaseSeeding         Phase = "seeding"
	PhaseError           Phase = "error"
)

// Ready reports whether a torrent in this phase counts as successfully started.
func (p Phase) Ready() bool {
	switch p {
	case PhaseMetadataPending, PhaseDownloading, PhaseFinished, PhaseSeeding:
		return true
	default:
		return false
	}
}

// Complete reports whether every wanted byte is on disk.
func (p Phase) Complete() bool {
	return p == PhaseFinished || p == PhaseSeeding
}

// Status is a point-in-time snapshot of one torrent.
type Status struct {
	Phase Phase
	// Progress is in [0,1].
	Progress float64
	// Rates are bytes per second.
	DownloadRate int64
	UploadRate   int64
	// All-time counters survive restarts through resume data.
	AllTimeDownload int64
	AllTimeUpload   int64
	Paused          bool
	Error           string
}

// Ratio is all-time upload over all-time download, or 0 before any download.
func (s Status) Ratio() float64 {
	if s.AllTimeDownload <= 0 {
		return 0
	}
	return float64(s.AllTimeUpload) / float64(s.AllTimeDownload)
}

// File is one payload file, relative to the save path.
type File struct {
	Path string
	Size int64
}

// Info is the decoded torrent metadata.
type Info struct {
	InfoHash  string
	Name      string
	TotalSize int64
	Files     []File
}

// AddParams configures a single Add call.
type AddParams struct {
	SavePath string
	// URL is a magnet or http(s) descriptor. Exactly one of URL and MetaInfo is set.
	URL        string
	MetaInfo   []byte
	ResumeData []byte

	Sparse           bool
	Paused           bool
	AutoManaged      bool
	DuplicateIsError bool
}

// IsLazyDescriptor reports whether a descriptor names a torrent whose
// metadata must be fetched (magnet or http(s) URL) instead of raw metainfo.
func IsLazyDescriptor(descriptor string) bool {
	lower := strings.ToLower(strings.TrimSpace(descriptor))
	return strings.HasPrefix(lower, "magnet:") ||
		strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://")
}

// AlertCategory is a bitmask of alert classes the engine may report.
type AlertCategory uint32

const (
	AlertError AlertCategory = 1 << iota
	AlertStorage
	AlertStatus
	AlertPerformance
	AlertPortMapping
	AlertTracker
)

// DefaultAlertMask excludes port mapping and tracker chatter.
const DefaultAlertMask = AlertError | AlertStorage | AlertStatus | AlertPerformance

func (c AlertCategory) String() string {
	switch c {
	case AlertError:
		return "error"
	case AlertStorage:
		return "storage"
	case AlertStatus:
		return "status"
	case AlertPerformance:
		return "performance"
	case AlertPortMapping:
		return "port_mapping"
	case AlertTracker:
		return "tracker"
	default:
		return "mixed"
	}
}

// Alert is an asynchronous engine notification.
type Alert struct {
	Category AlertCategory
	InfoHash string
	Message  string
	Time     time.Time
}

// Settings is everything needed to build an engine.
type Settings struct {
	SavePath      string
	ListenPortMin int
	ListenPortMax int
	// Rate limits are bytes per second, 0 meaning unlimited.
	DownloadRateLimit int
	UploadRateLimit   int
	UserAgent         string
	AlertMask         AlertCategory
	Logger            *slog.Logger
}

// Torrent is a non-owning handle into the engine.
type Torrent interface {
	InfoHash() string
	// Valid is false once the engine has dropped the torrent.
	Valid() bool
	HasMetadata() bool
	Info() (Info, error)
	Status() Status
	SetMaxConnections(n int)
	SetMaxUploads(n int)
	// ResumeData encodes engine-native fast resume bytes.
	ResumeData() ([]byte, error)
	// MetaInfo encodes the torrent as a standalone .torrent file.
	MetaInfo() ([]byte, error)
}

// Engine is the protocol engine surface the download manager consumes.
type Engine interface {
	Add(ctx context.Context, params AddParams) (Torrent, error)
	Remove(t Torrent, deleteFiles bool) error
	PopAlert() (Alert, bool)
	Pause()
	SetDownloadRateLimit(bytesPerSecond int)
	SetUploadRateLimit(bytesPerSecond int)
	DecodeMetaInfo(data []byte) (Info, error)
	Close() error
}

// Factory builds an engine from settings.
type Factory func(Settings) (Engine, error)
