package conversation

import (
	"sync"

	"github.com/iammorganparry/datachat/internal/model"
)

// Observer is notified after every append, in append order
type Observer interface {
	EntryAppended(entry model.Entry)
}

// ResetObserver is an Observer that also wants to know when the log is cleared
type ResetObserver interface {
	Observer
	Cleared(dropped int)
}

// Store is an append-only, insertion-ordered conversation log.
// Entries are never edited or removed individually; Clear drops all of them.
type Store struct {
	mu        sync.RWMutex
	entries   []model.Entry
	observers []Observer
}

// NewStore creates an empty store
func NewStore(observers ...Observer) *Store {
	return &Store{observers: observers}
}

// Append adds an entry at the end of the log
func (s *Store) Append(entry model.Entry) {
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	observers := s.observers
	s.mu.Unlock()

	for _, o := range observers {
		o.EntryAppended(entry)
	}
}

// Entries returns a copy of the log in insertion order
func (s *Store) Entries() []model.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Clear drops the whole log and tells every ResetObserver how many entries
// went with it
func (s *Store) Clear() {
	s.mu.Lock()
	dropped := len(s.entries)
	s.entries = nil
	observers := s.observers
	s.mu.Unlock()

	for _, o := range observers {
		if r, ok := o.(ResetObserver); ok {
			r.Cleared(dropped)
		}
	}
}
