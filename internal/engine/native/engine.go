// Package native adapts github.com/anacrolix/torrent to the engine boundary.
package native

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/anacrolix/torrent/storage"
	"golang.org/x/time/rate"

	"showseed/internal/engine"
	"showseed/internal/fileutil"
	"showseed/internal/logging"
)

const (
	alertQueueSize   = 256
	minLimiterBurst  = 256 << 10
	maxMetaInfoBytes = 16 << 20
	fetchTimeout     = 30 * time.Second
	watchInterval    = time.Second
)

// Engine wraps a torrent.Client.
type Engine struct {
	client      *torrent.Client
	store       storage.ClientImplCloser
	settings    engine.Settings
	logger      *slog.Logger
	httpClient  *http.Client
	downLimiter *rate.Limiter
	upLimiter   *rate.Limiter

	mu       sync.Mutex
	torrents map[metainfo.Hash]*Torrent
	alerts   []engine.Alert
	paused   bool
}

// Factory satisfies engine.Factory.
func Factory(settings engine.Settings) (engine.Engine, error) {
	eng, err := New(settings)
	if err != nil {
		return nil, err
	}
	return eng, nil
}

// New starts a client on the first free port in the configured range.
func New(settings engine.Settings) (*Engine, error) {
	if settings.SavePath == "" {
		return nil, errors.New("native engine: save path required")
	}
	if err := os.MkdirAll(settings.SavePath, 0o755); err != nil {
		return nil, fmt.Errorf("create save path: %w", err)
	}
	if settings.AlertMask == 0 {
		settings.AlertMask = engine.DefaultAlertMask
	}
	minPort, maxPort := settings.ListenPortMin, settings.ListenPortMax
	if maxPort < minPort {
		maxPort = minPort
	}

	store := storage.NewFile(settings.SavePath)
	down := newLimiter(settings.DownloadRateLimit)
	up := newLimiter(settings.UploadRateLimit)

	var lastErr error
	for port := minPort; port <= maxPort; port++ {
		cfg := torrent.NewDefaultClientConfig()
		cfg.DataDir = settings.SavePath
		cfg.DefaultStorage = store
		cfg.ListenPort = port
		cfg.Seed = true
		cfg.DownloadRateLimiter = down
		cfg.UploadRateLimiter = up
		if settings.UserAgent != "" {
			cfg.HTTPUserAgent = settings.UserAgent
		}

		client, err := torrent.NewClient(cfg)
		if err != nil {
			lastErr = err
			continue
		}
		logger := logging.NewComponentLogger(settings.Logger, "engine")
		logger.Debug("torrent client listening", logging.Int("port", port))
		return &Engine{
			client:      client,
			store:       store,
			settings:    settings,
			logger:      logger,
			httpClient:  &http.Client{Timeout: fetchTimeout},
			downLimiter: down,
			upLimiter:   up,
			torrents:    make(map[metainfo.Hash]*Torrent),
		}, nil
	}
	_ = store.Close()
	return nil, fmt.Errorf("listen on ports %d-%d: %w", minPort, maxPort, lastErr)
}

func newLimiter(bytesPerSecond int) *rate.Limiter {
	if bytesPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, minLimiterBurst)
	}
	return rate.NewLimiter(rate.Limit(bytesPerSecond), max(bytesPerSecond, minLimiterBurst))
}

func applyLimit(l *rate.Limiter, bytesPerSecond int) {
	if bytesPerSecond <= 0 {
		l.SetLimit(rate.Inf)
		l.SetBurst(minLimiterBurst)
		return
	}
	l.SetLimit(rate.Limit(bytesPerSecond))
	l.SetBurst(max(bytesPerSecond, minLimiterBurst))
}

func (e *Engine) Add(ctx context.Context, params engine.AddParams) (engine.Torrent, error) {
	spec, err := e.spec(ctx, params)
	if err != nil {
		e.pushAlert(engine.AlertError, "", fmt.Sprintf("add failed: %v", err))
		return nil, err
	}

	if _, exists := e.client.Torrent(spec.InfoHash); exists {
		if params.DuplicateIsError {
			return nil, engine.ErrDuplicate
		}
		e.mu.Lock()
		existing := e.torrents[spec.InfoHash]
		e.mu.Unlock()
		if existing != nil {
			return existing, nil
		}
	}

	record := decodeResume(params.ResumeData, spec.InfoHash)
	if record != nil && len(record.Trackers) > 0 {
		spec.Trackers = append(spec.Trackers, record.Trackers...)
	}

	t, _, err := e.client.AddTorrentSpec(spec)
	if err != nil {
		return nil, fmt.Errorf("add torrent: %w", err)
	}

	wrapped := newTorrent(t, record)
	e.mu.Lock()
	e.torrents[spec.InfoHash] = wrapped
	paused := e.paused || params.Paused
	e.mu.Unlock()
	if paused {
		wrapped.pause()
	}

	e.pushAlert(engine.AlertStatus, spec.InfoHash.HexString(), "torrent added")
	go e.watch(wrapped)
	return wrapped, nil
}

func (e *Engine) spec(ctx context.Context, params engine.AddParams) (*torrent.TorrentSpec, error) {
	if params.URL != "" {
		if strings.HasPrefix(strings.ToLower(params.URL), "magnet:") {
			spec, err := torrent.TorrentSpecFromMagnetUri(params.URL)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", engine.ErrInvalidDescriptor, err)
			}
			return spec, nil
		}
		data, err := e.fetch(ctx, params.URL)
		if err != nil {
			return nil, err
		}
		return specFromBytes(data)
	}
	return specFromBytes(params.MetaInfo)
}

func specFromBytes(data []byte) (*torrent.TorrentSpec, error) {
	mi, err := metainfo.Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrInvalidDescriptor, err)
	}
	spec, err := torrent.TorrentSpecFromMetaInfoErr(mi)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrInvalidDescriptor, err)
	}
	return spec, nil
}

func (e *Engine) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrInvalidDescriptor, err)
	}
	if e.settings.UserAgent != "" {
		req.Header.Set("User-Agent", e.settings.UserAgent)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch torrent: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("fetch torrent: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMetaInfoBytes))
	if err != nil {
		return nil, fmt.Errorf("read torrent body: %w", err)
	}
	return data, nil
}

// watch starts the full download once metadata arrives and reports the
// transitions as status alerts.
func (e *Engine) watch(t *Torrent) {
	ih := t.InfoHash()
	select {
	case <-t.t.GotInfo():
	case <-t.t.Closed():
		return
	}
	t.t.DownloadAll()
	e.pushAlert(engine.AlertStatus, ih, "metadata received: "+t.t.Name())

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.t.Closed():
			return
		case <-ticker.C:
			if t.t.BytesMissing() == 0 {
				e.pushAlert(engine.AlertStatus, ih, "download finished: "+t.t.Name())
				return
			}
		}
	}
}

func (e *Engine) Remove(t engine.Torrent, deleteFiles bool) error {
	nt, ok := t.(*Torrent)
	if !ok || nt == nil {
		return fmt.Errorf("%w: foreign torrent handle %T", engine.ErrInvalidHandle, t)
	}
	if !nt.Valid() {
		return engine.ErrInvalidHandle
	}
	var (
		target    string
		targetErr error
	)
	if deleteFiles {
		target, targetErr = e.payloadPath(nt.t.Info())
	}
	nt.t.Drop()

	e.mu.Lock()
	delete(e.torrents, nt.t.InfoHash())
	e.mu.Unlock()
	e.pushAlert(engine.AlertStatus, nt.InfoHash(), "torrent removed")

	if !deleteFiles {
		return nil
	}
	if targetErr != nil {
		e.pushAlert(engine.AlertStorage, nt.InfoHash(), fmt.Sprintf("files kept: %v", targetErr))
		return fmt.Errorf("delete torrent files: %w", targetErr)
	}
	if target == "" {
		return nil
	}
	if err := os.RemoveAll(target); err != nil {
		e.pushAlert(engine.AlertStorage, nt.InfoHash(), fmt.Sprintf("delete files failed: %v", err))
		return fmt.Errorf("delete torrent files: %w", err)
	}
	return nil
}

// payloadPath is the file or directory a torrent occupies under the save
// path. It is empty before metadata arrives.
func (e *Engine) payloadPath(info *metainfo.Info) (string, error) {
	if info == nil {
		return "", nil
	}
	if err := fileutil.ValidName(info.Name); err != nil {
		return "", err
	}
	return fileutil.JoinUnder(e.settings.SavePath, info.Name)
}

func (e *Engine) pushAlert(category engine.AlertCategory, infoHash, message string) {
	if e.settings.AlertMask&category == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.alerts) >= alertQueueSize {
		e.alerts = e.alerts[1:]
	}
	e.alerts = append(e.alerts, engine.Alert{
		Category: category,
		InfoHash: infoHash,
		Message:  message,
		Time:     time.Now(),
	})
}

func (e *Engine) PopAlert() (engine.Alert, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.alerts) == 0 {
		return engine.Alert{}, false
	}
	a := e.alerts[0]
	e.alerts = e.alerts[1:]
	return a, true
}

func (e *Engine) Pause() {
	e.mu.Lock()
	e.paused = true
	torrents := make([]*Torrent, 0, len(e.torrents))
	for _, t := range e.torrents {
		torrents = append(torrents, t)
	}
	e.mu.Unlock()
	for _, t := range torrents {
		t.pause()
	}
}

func (e *Engine) SetDownloadRateLimit(bytesPerSecond int) {
	applyLimit(e.downLimiter, bytesPerSecond)
}

func (e *Engine) SetUploadRateLimit(bytesPerSecond int) {
	applyLimit(e.upLimiter, bytesPerSecond)
}

func (e *Engine) DecodeMetaInfo(data []byte) (engine.Info, error) {
	mi, err := metainfo.Load(bytes.NewReader(data))
	if err != nil {
		return engine.Info{}, fmt.Errorf("%w: %v", engine.ErrInvalidDescriptor, err)
	}
	info, err := mi.UnmarshalInfo()
	if err != nil {
		return engine.Info{}, fmt.Errorf("%w: %v", engine.ErrInvalidDescriptor, err)
	}
	return describe(mi.HashInfoBytes().HexString(), &info), nil
}

func (e *Engine) Close() error {
	errs := e.client.Close()
	if err := e.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func describe(infoHash string, info *metainfo.Info) engine.Info {
	out := engine.Info{
		InfoHash:  infoHash,
		Name:      info.Name,
		TotalSize: info.TotalLength(),
	}
	if !info.IsDir() {
		out.Files = []engine.File{{Path: info.Name, Size: info.Length}}
		return out
	}
	out.Files = make([]engine.File, 0, len(info.Files))
	for _, fi := range info.Files {
		parts := append([]string{info.Name}, fi.Path...)
		out.Files = append(out.Files, engine.File{Path: filepath.Join(parts...), Size: fi.Length})
	}
	return out
}
