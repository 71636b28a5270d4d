package ipc

import (
	"time"

	"showseed/internal/jobs"
	"showseed/internal/preflight"
)

// JobView mirrors jobs.View for IPC callers.
type JobView = jobs.View

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents daemon status information.
type StatusResponse struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	StartedAt     time.Time          `json:"started_at"`
	EngineRunning bool               `json:"engine_running"`
	JobCount      int                `json:"job_count"`
	Phases        map[string]int     `json:"phases"`
	LockPath      string             `json:"lock_path"`
	SnapshotPath  string             `json:"snapshot_path"`
	LogPath       string             `json:"log_path"`
	Preflight     []preflight.Result `json:"preflight"`
}

// JobListRequest lists active jobs, optionally filtered by phase.
type JobListRequest struct {
	Phases []string `json:"phases"`
}

// JobListResponse contains active jobs in admission order.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// EpisodeRef links a job to one episode of a configured show.
type EpisodeRef struct {
	ShowID  int `json:"show_id"`
	Season  int `json:"season"`
	Episode int `json:"episode"`
}

// JobAddRequest admits a torrent. Descriptor is a magnet URI, an http(s)
// URL, or raw metainfo bytes.
type JobAddRequest struct {
	Descriptor    []byte       `json:"descriptor"`
	Key           string       `json:"key"`
	PostProcessed bool         `json:"post_processed"`
	Episodes      []EpisodeRef `json:"episodes"`
}

// JobAddResponse reports the admitted job.
type JobAddResponse struct {
	Job JobView `json:"job"`
}

// JobRemoveRequest removes a job by key.
type JobRemoveRequest struct {
	Key         string `json:"key"`
	DeleteFiles bool   `json:"delete_files"`
}

// JobRemoveResponse confirms removal.
type JobRemoveResponse struct {
	Removed bool `json:"removed"`
}

// SetLimitsRequest sets global rate caps in kB/s. Zero means unlimited.
type SetLimitsRequest struct {
	DownloadKBps int `json:"download_kbps"`
	UploadKBps   int `json:"upload_kbps"`
}

// SetLimitsResponse reports whether a running engine took the caps.
type SetLimitsResponse struct {
	Applied bool `json:"applied"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64  `json:"offset"`
	Limit      int    `json:"limit"`
	Follow     bool   `json:"follow"`
	WaitMillis int    `json:"wait_millis"`
	JobKey     string `json:"job_key"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
