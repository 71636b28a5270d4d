// Package enginetest provides an in-memory engine whose torrents are driven by
// the test instead of the network.
package enginetest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sync"

	"showseed/internal/engine"
)

// Removal records one Remove call.
type Removal struct {
	InfoHash    string
	DeleteFiles bool
}

// Engine is a fake engine.Engine. All methods are safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	Settings engine.Settings

	// metaInfos maps raw metainfo bytes (as string) to decoded info.
	metaInfos map[string]engine.Info
	// urls maps lazy descriptors to the info they eventually resolve to.
	urls map[string]engine.Info

	torrents  map[string]*Torrent
	order     []string
	removals  []Removal
	alerts    []engine.Alert
	addCalls  int
	addErr    error
	onAdd     func(*Torrent)
	paused    bool
	closed    bool
	downLimit int
	upLimit   int
}

// New returns an empty fake engine.
func New() *Engine {
	return &Engine{
		metaInfos: make(map[string]engine.Info),
		urls:      make(map[string]engine.Info),
		torrents:  make(map[string]*Torrent),
	}
}

// Factory returns an engine.Factory that always hands out e.
func (e *Engine) Factory() engine.Factory {
	return func(settings engine.Settings) (engine.Engine, error) {
		e.mu.Lock()
		e.Settings = settings
		e.closed = false
		e.paused = false
		e.mu.Unlock()
		return e, nil
	}
}

// RegisterMetaInfo makes data decodable and returns the info it decodes to.
func (e *Engine) RegisterMetaInfo(data []byte, name string, files ...engine.File) engine.Info {
	info := buildInfo(string(data), name, files)
	e.mu.Lock()
	e.metaInfos[string(data)] = info
	e.mu.Unlock()
	return info
}

// RegisterURL makes a magnet/http descriptor resolve to the given torrent.
func (e *Engine) RegisterURL(descriptor, name string, files ...engine.File) engine.Info {
	info := buildInfo(descriptor, name, files)
	e.mu.Lock()
	e.urls[descriptor] = info
	e.mu.Unlock()
	return info
}

func buildInfo(seed, name string, files []engine.File) engine.Info {
	sum := sha1.Sum([]byte(seed))
	info := engine.Info{InfoHash: hex.EncodeToString(sum[:]), Name: name}
	if len(files) == 0 {
		files = []engine.File{{Path: name, Size: 1024}}
	}
	for _, f := range files {
		info.TotalSize += f.Size
	}
	info.Files = append([]engine.File(nil), files...)
	return info
}

// FailAdds makes every subsequent Add return err.
func (e *Engine) FailAdds(err error) {
	e.mu.Lock()
	e.addErr = err
	e.mu.Unlock()
}

// OnAdd registers a hook that runs after each successful Add.
func (e *Engine) OnAdd(fn func(*Torrent)) {
	e.mu.Lock()
	e.onAdd = fn
	e.mu.Unlock()
}

func (e *Engine) Add(_ context.Context, params engine.AddParams) (engine.Torrent, error) {
	e.mu.Lock()
	e.addCalls++
	if e.addErr != nil {
		err := e.addErr
		e.mu.Unlock()
		return nil, err
	}
	var (
		info engine.Info
		ok   bool
		lazy bool
	)
	if params.URL != "" {
		info, ok = e.urls[params.URL]
		lazy = true
	} else {
		info, ok = e.metaInfos[string(params.MetaInfo)]
	}
	if !ok {
		e.mu.Unlock()
		return nil, engine.ErrInvalidDescriptor
	}
	if existing, dup := e.torrents[info.InfoHash]; dup && existing.Valid() {
		e.mu.Unlock()
		if params.DuplicateIsError {
			return nil, engine.ErrDuplicate
		}
		return existing, nil
	}
	t := &Torrent{
		info:        info,
		hasMetadata: !lazy,
		valid:       true,
		phase:       engine.PhaseAdded,
		resume:      append([]byte(nil), params.ResumeData...),
		params:      params,
		maxConns:    -1,
		maxUploads:  -1,
	}
	if !lazy {
		t.phase = engine.PhaseDownloading
	} else {
		t.phase = engine.PhaseMetadataPending
	}
	e.torrents[info.InfoHash] = t
	e.order = append(e.order, info.InfoHash)
	// What Torrent.MetaInfo hands out must decode back to the same torrent.
	e.metaInfos[metaInfoFor(info.InfoHash)] = info
	hook := e.onAdd
	e.mu.Unlock()
	if hook != nil {
		hook(t)
	}
	return t, nil
}

func (e *Engine) Remove(t engine.Torrent, deleteFiles bool) error {
	ft, ok := t.(*Torrent)
	if !ok {
		return fmt.Errorf("unexpected torrent type %T", t)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !ft.Valid() {
		return engine.ErrInvalidHandle
	}
	ft.invalidate()
	delete(e.torrents, ft.InfoHash())
	e.removals = append(e.removals, Removal{InfoHash: ft.InfoHash(), DeleteFiles: deleteFiles})
	return nil
}

// PushAlert queues an alert for PopAlert, honouring the configured mask.
func (e *Engine) PushAlert(a engine.Alert) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Settings.AlertMask != 0 && e.Settings.AlertMask&a.Category == 0 {
		return
	}
	e.alerts = append(e.alerts, a)
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
		t.setPaused(true)
	}
}

func (e *Engine) SetDownloadRateLimit(bps int) {
	e.mu.Lock()
	e.downLimit = bps
	e.mu.Unlock()
}

func (e *Engine) SetUploadRateLimit(bps int) {
	e.mu.Lock()
	e.upLimit = bps
	e.mu.Unlock()
}

func (e *Engine) DecodeMetaInfo(data []byte) (engine.Info, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	info, ok := e.metaInfos[string(data)]
	if !ok {
		return engine.Info{}, engine.ErrInvalidDescriptor
	}
	return info, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	for _, t := range e.torrents {
		t.invalidate()
	}
	e.torrents = make(map[string]*Torrent)
	return nil
}

// Torrent returns the live torrent with the given info hash.
func (e *Engine) Torrent(infoHash string) (*Torrent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.torrents[infoHash]
	return t, ok
}

// Torrents returns live torrents in add order.
func (e *Engine) Torrents() []*Torrent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Torrent, 0, len(e.torrents))
	for _, ih := range e.order {
		if t, ok := e.torrents[ih]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Removals returns every Remove call so far.
func (e *Engine) Removals() []Removal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Removal(nil), e.removals...)
}

// AddCalls counts Add invocations, failed ones included.
func (e *Engine) AddCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addCalls
}

// Paused reports whether Pause was called since the last construction.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Closed reports whether Close was called since the last construction.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// RateLimits returns the last applied download and upload caps in bytes/s.
func (e *Engine) RateLimits() (down, up int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.downLimit, e.upLimit
}
