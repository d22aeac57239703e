package winnow

import (
	"errors"
	"fmt"
	"sync"

	"github.com/panbanda/winnow/pkg/corpus"
)

// ErrDuplicateFile is returned when a file id is stored twice.
var ErrDuplicateFile = errors.New("file already stored")

// Store holds one fingerprint set per file. It is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	sets map[corpus.FileID]*FingerprintSet
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{sets: make(map[corpus.FileID]*FingerprintSet)}
}

// Put records the set for id. Each file owns exactly one set.
func (s *Store) Put(id corpus.FileID, set *FingerprintSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sets[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFile, id)
	}
	if set == nil {
		set = NewFingerprintSet()
	}
	s.sets[id] = set
	return nil
}

// Get returns the set stored for id.
func (s *Store) Get(id corpus.FileID) (*FingerprintSet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.sets[id]
	return set, ok
}

// Len returns the number of stored files.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sets)
}

// IDs returns the stored file ids in order.
func (s *Store) IDs() []corpus.FileID {
	s.mu.RLock()
	ids := make([]corpus.FileID, 0, len(s.sets))
	for id := range s.sets {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	corpus.SortIDs(ids)
	return ids
}

// Snapshot returns a copy of the id to set mapping. Sets are immutable and shared.
func (s *Store) Snapshot() map[corpus.FileID]*FingerprintSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[corpus.FileID]*FingerprintSet, len(s.sets))
	for id, set := range s.sets {
		out[id] = set
	}
	return out
}
