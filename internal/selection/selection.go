// Package selection tracks which events the user marked as interested or
// not interested and persists both lists on every change.
package selection

import (
	"encoding/json"
	"errors"
	"sync"

	appLog "confsched/internal/log"
	"confsched/internal/model"
)

// Storage keys for the two lists.
const (
	KeyInterested    = "interestedEvents"
	KeyNotInterested = "notInterestedEvents"
)

// Store holds two disjoint, ordered ID lists. An ID is never in both.
// Storage failures are logged and otherwise ignored.
type Store struct {
	mu            sync.RWMutex
	backend       Backend
	interested    []int
	notInterested []int
}

// Open loads both lists from backend. Missing, unreadable or corrupt values
// start out empty.
func Open(backend Backend) *Store {
	s := &Store{backend: backend}
	s.interested = s.load(KeyInterested)
	s.notInterested = s.load(KeyNotInterested)

	// Repair overlap left by an older writer: interested wins.
	for _, id := range s.interested {
		s.notInterested = without(s.notInterested, id)
	}

	appLog.Info("selection store loaded",
		"interested", len(s.interested),
		"not_interested", len(s.notInterested),
	)
	return s
}

func (s *Store) load(key string) []int {
	out := []int{}
	if s.backend == nil {
		return out
	}
	data, err := s.backend.Get(key)
	if err != nil {
		if !errors.Is(err, ErrNoKey) {
			appLog.Error("selection read failed; starting empty", err, "key", key)
		}
		return out
	}

	var ids []int
	if err := json.Unmarshal(data, &ids); err != nil {
		appLog.Error("selection data corrupt; starting empty", err, "key", key)
		return out
	}
	for _, id := range ids {
		if id > 0 && !contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// MarkInterested adds id to the interested list and drops it from the
// not-interested list. Repeated calls have no further effect.
func (s *Store) MarkInterested(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	if !contains(s.interested, id) {
		s.interested = append(s.interested, id)
		changed = true
	}
	if contains(s.notInterested, id) {
		s.notInterested = without(s.notInterested, id)
		changed = true
	}
	if changed {
		s.persist()
	}
}

// MarkNotInterested is the mirror of MarkInterested.
func (s *Store) MarkNotInterested(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	if !contains(s.notInterested, id) {
		s.notInterested = append(s.notInterested, id)
		changed = true
	}
	if contains(s.interested, id) {
		s.interested = without(s.interested, id)
		changed = true
	}
	if changed {
		s.persist()
	}
}

// Unmark removes id from the schedule. The not-interested list is left
// alone.
func (s *Store) Unmark(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !contains(s.interested, id) {
		return
	}
	s.interested = without(s.interested, id)
	s.persist()
}

// Reset clears both lists.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.interested = []int{}
	s.notInterested = []int{}
	s.persist()
}

// IsRated reports whether id is in either list.
func (s *Store) IsRated(id int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return contains(s.interested, id) || contains(s.notInterested, id)
}

func (s *Store) IsInterested(id int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return contains(s.interested, id)
}

// Interested returns a copy of the interested IDs in the order they were
// added.
func (s *Store) Interested() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int{}, s.interested...)
}

func (s *Store) NotInterested() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int{}, s.notInterested...)
}

// InterestedSet returns the interested IDs as a set for agenda building.
func (s *Store) InterestedSet() map[int]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]struct{}, len(s.interested))
	for _, id := range s.interested {
		out[id] = struct{}{}
	}
	return out
}

func (s *Store) Snapshot() model.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.Selection{
		Interested:    append([]int{}, s.interested...),
		NotInterested: append([]int{}, s.notInterested...),
	}
}

// persist writes both lists. Caller holds s.mu.
func (s *Store) persist() {
	if s.backend == nil {
		return
	}
	s.write(KeyInterested, s.interested)
	s.write(KeyNotInterested, s.notInterested)
}

func (s *Store) write(key string, ids []int) {
	data, err := json.Marshal(ids)
	if err != nil {
		appLog.Error("selection encode failed", err, "key", key)
		return
	}
	if err := s.backend.Set(key, data); err != nil {
		appLog.Error("selection write failed", err, "key", key)
	}
}

func contains(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func without(ids []int, id int) []int {
	out := make([]int, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
