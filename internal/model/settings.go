package model

import "sync"

// Settings holds the live warm-up tunables shared between the config
// watcher and the engines.
type Settings struct {
	mu     sync.RWMutex
	warmup WarmupConfig
}

// NewSettings returns a holder seeded with w.
func NewSettings(w WarmupConfig) *Settings {
	return &Settings{warmup: w}
}

// Warmup returns a copy of the current tunables.
func (s *Settings) Warmup() WarmupConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.warmup
}

// SetWarmup replaces the current tunables.
func (s *Settings) SetWarmup(w WarmupConfig) {
	s.mu.Lock()
	s.warmup = w
	s.mu.Unlock()
}
