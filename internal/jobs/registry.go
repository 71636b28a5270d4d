package jobs

import (
	"errors"
	"sync"

	"showseed/internal/engine"
)

// ErrDuplicateKey is returned when a key is already registered.
var ErrDuplicateKey = errors.New("job key already registered")

// Registry is the ordered set of active jobs.
type Registry struct {
	mu    sync.RWMutex
	order []string
	byKey map[string]*Job
}

func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]*Job)}
}

func (r *Registry) Add(j *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byKey[j.key]; exists {
		return ErrDuplicateKey
	}
	r.byKey[j.key] = j
	r.order = append(r.order, j.key)
	return nil
}

// Remove deletes the job with key and returns it.
func (r *Registry) Remove(key string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.byKey[key]
	if !ok {
		return nil, false
	}
	delete(r.byKey, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return j, true
}

func (r *Registry) Get(key string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.byKey[key]
	return j, ok
}

// FindByHandle returns the job bound to t.
func (r *Registry) FindByHandle(t engine.Torrent) (*Job, bool) {
	if t == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, key := range r.order {
		j := r.byKey[key]
		if h := j.Handle(); h != nil && h.InfoHash() == t.InfoHash() {
			return j, true
		}
	}
	return nil, false
}

// List returns the jobs in admission order. The slice is a copy.
func (r *Registry) List() []*Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Job, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.byKey[key])
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Clear empties the registry and returns what it held.
func (r *Registry) Clear() []*Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Job, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.byKey[key])
	}
	r.order = nil
	r.byKey = make(map[string]*Job)
	return out
}
