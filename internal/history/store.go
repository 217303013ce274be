// Package history holds the ordered, append-only record of submitted entries.
package history

import "github.com/formbricks/wordsim/internal/models"

// Store is the ordered sequence of entries. It is owned by a single goroutine
// (the engine actor) and is not safe for concurrent use.
type Store struct {
	entries []models.Entry
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Snapshot returns a shallow copy of the entries in insertion order. Later appends
// or clears do not affect a snapshot already taken.
func (s *Store) Snapshot() []models.Entry {
	out := make([]models.Entry, len(s.entries))
	copy(out, s.entries)

	return out
}

// Append adds entry at the end.
func (s *Store) Append(entry models.Entry) {
	s.entries = append(s.entries, entry)
}

// Clear removes all entries.
func (s *Store) Clear() {
	// Fresh backing array so snapshots sharing the old one stay intact.
	s.entries = nil
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return len(s.entries)
}
