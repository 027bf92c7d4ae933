package common

import "sync"

// PauseRegistry is the default PauseView: a governance-controlled set of
// halted module names.
type PauseRegistry struct {
	mu     sync.RWMutex
	paused map[string]struct{}
}

// NewPauseRegistry constructs a registry with every module running.
func NewPauseRegistry() *PauseRegistry {
	return &PauseRegistry{paused: make(map[string]struct{})}
}

// Pause halts the named module.
func (r *PauseRegistry) Pause(module string) {
	if r == nil || module == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused[module] = struct{}{}
}

// Resume releases the named module.
func (r *PauseRegistry) Resume(module string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.paused, module)
}

// IsPaused reports whether the module is halted.
func (r *PauseRegistry) IsPaused(module string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.paused[module]
	return ok
}
