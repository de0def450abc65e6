package reminder

import (
	"iter"
	"sync"
	"time"
)

// Store maps a conversation to at most one reminder.
//
// A single mutex guards everything; reminder counts are small and writes are
// rare, so nothing finer-grained is needed. Records are never deleted.
type Store struct {
	mu      sync.Mutex
	records map[ConversationID]Record
	order   []ConversationID // first-insertion order, for stable listings
	rev     uint64
}

func NewStore() *Store {
	return &Store{records: map[ConversationID]Record{}}
}

// Set inserts or replaces the record for id. The new record is Active and the
// previous one, if any, is gone.
func (s *Store) Set(id ConversationID, dueAt time.Time, message string) Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		s.order = append(s.order, id)
	}
	s.rev++
	rec := Record{DueAt: dueAt, Message: message, Status: StatusActive, Revision: s.rev}
	s.records[id] = rec
	return rec
}

func (s *Store) Get(id ConversationID) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	return rec, ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// List returns a lazy sequence over a snapshot of the store.
//
// The snapshot is taken when iteration starts, so ranging over the same
// sequence twice sees the store as it was at each start. No lock is held
// while the caller's loop body runs.
func (s *Store) List() iter.Seq2[ConversationID, Record] {
	return func(yield func(ConversationID, Record) bool) {
		ids, recs := s.snapshot()
		for i, id := range ids {
			if !yield(id, recs[i]) {
				return
			}
		}
	}
}

func (s *Store) snapshot() ([]ConversationID, []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := append([]ConversationID(nil), s.order...)
	recs := make([]Record, len(ids))
	for i, id := range ids {
		recs[i] = s.records[id]
	}
	return ids, recs
}

// MarkCompleted flips the record for id to Completed. Missing ids are ignored.
// It ignores revisions; the sweep uses CompleteRevision so a record replaced
// during delivery stays Active.
func (s *Store) MarkCompleted(id ConversationID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return
	}
	rec.Status = StatusCompleted
	s.records[id] = rec
}

// CompleteRevision flips the record for id to Completed only if it is still
// the record with the given revision. It reports whether the flip happened.
func (s *Store) CompleteRevision(id ConversationID, revision uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.Revision != revision || rec.Status != StatusActive {
		return false
	}
	rec.Status = StatusCompleted
	s.records[id] = rec
	return true
}
