package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// snapshot is the on-disk form of a FIFO.
type snapshot[V any] struct {
	// Scope ties the entries to whatever they were computed against
	// (the backend address). A snapshot with a different scope is ignored.
	Scope   string             `json:"scope"`
	Entries []snapshotEntry[V] `json:"entries"`
}

type snapshotEntry[V any] struct {
	Key string `json:"key"`
	Entry[V]
}

// SaveFile writes the FIFO to path as JSON, oldest entry first.
// The directory is created if it doesn't exist.
func (c *FIFO[V]) SaveFile(path, scope string) error {
	c.mu.Lock()
	snap := snapshot[V]{Scope: scope, Entries: make([]snapshotEntry[V], 0, len(c.order))}
	for _, k := range c.order {
		snap.Entries = append(snap.Entries, snapshotEntry[V]{Key: k, Entry: c.entries[k]})
	}
	c.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadFile merges a snapshot written by [FIFO.SaveFile] into the FIFO and
// returns the number of entries loaded.
//
// Loading is best effort: a missing file, an unreadable or corrupt snapshot,
// or one recorded for another scope loads nothing and is not an error.
// The file is outside the process, so a non-nil check is applied to every
// value and entries it rejects are skipped. Entries are replayed in their
// original order, so capacity limits still evict the oldest ones.
func (c *FIFO[V]) LoadFile(path, scope string, check func(V) error) (int, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var snap snapshot[V]
	if err := json.Unmarshal(data, &snap); err != nil {
		// Invalid snapshot - treat as empty
		_ = os.Remove(path)
		return 0, nil
	}
	if snap.Scope != scope {
		return 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range snap.Entries {
		if check != nil && check(e.Value) != nil {
			continue
		}
		c.putLocked(e.Key, e.Entry)
		n++
	}
	return n, nil
}

// RemoveFile deletes a snapshot. A missing file is not an error.
func RemoveFile(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
