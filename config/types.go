package config

import "sync"

// Pauses are the operator kill switches. Credit stops the whole market;
// Actions stops individual operations by name.
type Pauses struct {
	Credit  bool            `toml:"Credit"`
	Actions map[string]bool `toml:"Actions"`
}

// PauseSet is a mutable, concurrency-safe view over the configured pauses.
// The RPC admin surface flips switches at runtime; the engine reads them
// through the PauseView interface.
type PauseSet struct {
	mu      sync.RWMutex
	modules map[string]bool
	actions map[string]bool
}

// NewPauseSet builds the runtime pause switches from the static configuration.
func NewPauseSet(p Pauses) *PauseSet {
	set := &PauseSet{
		modules: make(map[string]bool),
		actions: make(map[string]bool),
	}
	if p.Credit {
		set.modules["credit"] = true
	}
	for action, paused := range p.Actions {
		if paused {
			set.actions[action] = true
		}
	}
	return set
}

// IsPaused reports whether the module as a whole, or the specific action, is
// switched off. An empty action asks about the module switch only.
func (s *PauseSet) IsPaused(module, action string) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.modules[module] {
		return true
	}
	if action == "" {
		return false
	}
	return s.actions[action]
}

// SetModule flips the module-wide switch.
func (s *PauseSet) SetModule(module string, paused bool) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules[module] = paused
}

// SetAction flips a single action switch.
func (s *PauseSet) SetAction(action string, paused bool) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[action] = paused
}
