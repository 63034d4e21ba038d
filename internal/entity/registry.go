package entity

import "sync"

// Registry holds the live entity configuration and notifies subscribers
// when it is replaced. Evaluators take a *Config explicitly; only the
// outer surfaces read from a Registry.
type Registry struct {
	mu     sync.RWMutex
	cfg    *Config
	nextID int
	subs   map[int]func(*Config)
}

// NewRegistry returns a registry holding cfg (or an empty configuration).
func NewRegistry(cfg *Config) *Registry {
	if cfg == nil {
		cfg = NewConfig()
	}
	return &Registry{cfg: cfg, subs: map[int]func(*Config){}}
}

var defaultRegistry = NewRegistry(nil)

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// Current returns the configuration in effect.
func (r *Registry) Current() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// Set replaces the configuration and calls every subscriber with it.
// Subscribers run on the caller's goroutine, after the lock is released.
func (r *Registry) Set(cfg *Config) {
	if cfg == nil {
		cfg = NewConfig()
	}
	r.mu.Lock()
	r.cfg = cfg
	listeners := make([]func(*Config), 0, len(r.subs))
	for id := 0; id < r.nextID; id++ {
		if fn, ok := r.subs[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(cfg)
	}
}

// Subscribe registers fn for configuration changes. The returned function
// removes the subscription and is safe to call more than once.
func (r *Registry) Subscribe(fn func(*Config)) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
		})
	}
}
