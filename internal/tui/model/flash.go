package model

import (
	"sync"
	"time"
)

// Level classifies a flash message.
type Level int

const (
	LevelInfo Level = iota
	LevelError
)

// Flash holds the transient notification shown in the status bar, fed by
// notice events.
type Flash struct {
	mu      sync.RWMutex
	message string
	level   Level
	expires time.Time
}

// Set stores a flash message that expires after the given duration.
func (f *Flash) Set(msg string, level Level, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = msg
	f.level = level
	f.expires = time.Now().Add(d)
}

// Get returns the current flash message and level, or empty if expired.
func (f *Flash) Get() (string, Level) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if time.Now().After(f.expires) {
		return "", LevelInfo
	}
	return f.message, f.level
}
