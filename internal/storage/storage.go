// Package storage holds finalized step sequences for the lifetime of one browsing
// session. A stored sequence is read exactly once.
package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"webtestflow/recorder/internal/models"
)

var (
	ErrNotFound = errors.New("no recording stored under key")
	// ErrSessionMismatch means the key holds a recording from a different session.
	ErrSessionMismatch = errors.New("stored recording belongs to another session")
)

type Storage interface {
	// Put replaces whatever is stored under key.
	Put(ctx context.Context, key, sessionID string, steps []models.Step) error
	// Take returns and removes the sequence sessionID stored under key. A sequence from
	// another session is left in place.
	Take(ctx context.Context, key, sessionID string) ([]models.Step, error)
	// Purge removes sequences stored longer than ttl ago and reports how many.
	Purge(ctx context.Context, ttl time.Duration) (int, error)
	// Clear drops everything; called when the browsing session ends.
	Clear(ctx context.Context) error
}

type memoryEntry struct {
	sessionID string
	steps     []models.Step
	storedAt  time.Time
}

type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *Memory) Put(ctx context.Context, key, sessionID string, steps []models.Step) error {
	cp := make([]models.Step, len(steps))
	copy(cp, steps)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{sessionID: sessionID, steps: cp, storedAt: m.now()}
	return nil
}

func (m *Memory) Take(ctx context.Context, key, sessionID string) ([]models.Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if entry.sessionID != sessionID {
		return nil, ErrSessionMismatch
	}
	delete(m.entries, key)
	return entry.steps, nil
}

func (m *Memory) Purge(ctx context.Context, ttl time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-ttl)
	purged := 0
	for key, entry := range m.entries {
		if entry.storedAt.Before(cutoff) {
			delete(m.entries, key)
			purged++
		}
	}
	return purged, nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memoryEntry)
	return nil
}
