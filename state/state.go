package state

import (
	"fmt"
	"sync"

	"github.com/dhcgn/application-tracker/store"
)

// Tracker remembers which message ids already have a record.
type Tracker interface {
	AlreadyProcessed(messageID string) bool
	MarkProcessed(messageID string)
	Snapshot() Snapshot
}

type Snapshot struct {
	Processed int
}

type MemoryTracker struct {
	mu        sync.RWMutex
	processed map[string]struct{}
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{processed: make(map[string]struct{})}
}

func (m *MemoryTracker) AlreadyProcessed(messageID string) bool {
	if messageID == "" {
		return false
	}

	m.mu.RLock()
	_, ok := m.processed[messageID]
	m.mu.RUnlock()
	return ok
}

func (m *MemoryTracker) MarkProcessed(messageID string) {
	if messageID == "" {
		return
	}

	m.mu.Lock()
	m.processed[messageID] = struct{}{}
	m.mu.Unlock()
}

func (m *MemoryTracker) Snapshot() Snapshot {
	m.mu.RLock()
	count := len(m.processed)
	m.mu.RUnlock()
	return Snapshot{Processed: count}
}

// LoadStore seeds a tracker with the message ids already present in the
// CSV store at path. A missing store yields an empty tracker.
func LoadStore(path string) (*MemoryTracker, error) {
	ids, err := store.ReadIDs(path)
	if err != nil {
		return nil, fmt.Errorf("load existing ids: %w", err)
	}

	tracker := NewMemoryTracker()
	for id := range ids {
		tracker.processed[id] = struct{}{}
	}
	return tracker, nil
}

// Pending returns the ids not yet processed, in their original order.
// Repeated ids in candidates are returned once.
func Pending(t Tracker, candidates []string) []string {
	seen := make(map[string]struct{}, len(candidates))
	pending := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if t.AlreadyProcessed(id) {
			continue
		}
		pending = append(pending, id)
	}
	return pending
}
