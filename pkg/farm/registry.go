package farm

import (
	"sort"
	"sync"
)

// Registry tracks the live workers of one adapter, keyed by session id.
type Registry struct {
	mu      sync.RWMutex
	workers map[string]*Worker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{workers: make(map[string]*Worker)}
}

// Add records w, replacing any worker with the same session id.
func (r *Registry) Add(w *Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[w.SessionID] = w
}

// Get returns the worker for sessionID.
func (r *Registry) Get(sessionID string) (*Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[sessionID]
	return w, ok
}

// Remove drops sessionID and reports whether it was tracked.
func (r *Registry) Remove(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.workers[sessionID]
	delete(r.workers, sessionID)
	return ok
}

// Len returns the number of tracked workers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}

// IDs returns the tracked session ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.workers))
	for id := range r.workers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// List returns copies of the tracked workers ordered by start time.
func (r *Registry) List() []Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workers := make([]Worker, 0, len(r.workers))
	for _, w := range r.workers {
		workers = append(workers, *w)
	}
	sort.Slice(workers, func(i, j int) bool {
		if workers[i].StartedAt.Equal(workers[j].StartedAt) {
			return workers[i].SessionID < workers[j].SessionID
		}
		return workers[i].StartedAt.Before(workers[j].StartedAt)
	})
	return workers
}

// Clear drops every worker.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers = make(map[string]*Worker)
}
