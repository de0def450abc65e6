package reminder

import (
	"sync"
	"testing"
	"time"
)

func TestStoreSetOverwritesWholeRecord(t *testing.T) {
	t.Parallel()
	s := NewStore()
	t0 := time.Date(2026, 1, 2, 10, 0, 0, 0, time.Local)

	first := s.Set(1, t0, "first")
	s.MarkCompleted(1)
	second := s.Set(1, t0.Add(time.Hour), "second")

	got, ok := s.Get(1)
	if !ok {
		t.Fatal("record missing")
	}
	if got.Message != "second" || !got.DueAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("got %+v, want second record", got)
	}
	if got.Status != StatusActive {
		t.Fatalf("Status = %v, want Active after overwrite", got.Status)
	}
	if second.Revision <= first.Revision {
		t.Fatalf("revision did not advance: %d -> %d", first.Revision, second.Revision)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
}

func TestStoreListSnapshotAndOrder(t *testing.T) {
	t.Parallel()
	s := NewStore()
	now := time.Now()

	if n := countList(s); n != 0 {
		t.Fatalf("empty store listed %d records", n)
	}

	s.Set(30, now, "c")
	s.Set(10, now, "a")
	s.Set(20, now, "b")
	s.Set(30, now, "c2") // overwrite keeps position

	seq := s.List()
	var ids []ConversationID
	var msgs []string
	for id, rec := range seq {
		ids = append(ids, id)
		msgs = append(msgs, rec.Message)
		// Writes during iteration do not deadlock and do not affect this pass.
		s.Set(99, now, "late")
	}
	want := []ConversationID{30, 10, 20}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
	if msgs[0] != "c2" {
		t.Fatalf("first message = %q, want c2", msgs[0])
	}

	// Ranging again re-snapshots.
	if n := countList(s); n != 4 {
		t.Fatalf("second pass listed %d records, want 4", n)
	}

	// Early break is honoured.
	n := 0
	for range s.List() {
		n++
		break
	}
	if n != 1 {
		t.Fatalf("break ignored, n=%d", n)
	}
}

func TestStoreMarkCompleted(t *testing.T) {
	t.Parallel()
	s := NewStore()
	s.MarkCompleted(404) // absent: no-op

	s.Set(1, time.Now(), "x")
	s.MarkCompleted(1)
	rec, _ := s.Get(1)
	if rec.Status != StatusCompleted {
		t.Fatalf("Status = %v, want Completed", rec.Status)
	}
	if _, ok := s.Get(404); ok {
		t.Fatal("MarkCompleted created a record")
	}

	// Unlike CompleteRevision, a replacement made after a read is still flipped.
	stale := s.Set(2, time.Now(), "old")
	s.Set(2, time.Now(), "new")
	s.MarkCompleted(2)
	if rec, _ := s.Get(2); rec.Status != StatusCompleted || rec.Message != "new" {
		t.Fatalf("record = %+v", rec)
	}
	if s.CompleteRevision(2, stale.Revision) {
		t.Fatal("stale revision completed")
	}
}

func TestStoreCompleteRevision(t *testing.T) {
	t.Parallel()
	s := NewStore()
	old := s.Set(1, time.Now(), "old")
	s.Set(1, time.Now(), "new")

	if s.CompleteRevision(1, old.Revision) {
		t.Fatal("stale revision completed the new record")
	}
	cur, _ := s.Get(1)
	if cur.Status != StatusActive {
		t.Fatalf("new record status = %v", cur.Status)
	}
	if !s.CompleteRevision(1, cur.Revision) {
		t.Fatal("current revision not completed")
	}
	if s.CompleteRevision(1, cur.Revision) {
		t.Fatal("completed twice")
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	t.Parallel()
	s := NewStore()
	now := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(id ConversationID) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s.Set(id, now, "m")
			}
		}(ConversationID(i))
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				for id, rec := range s.List() {
					s.CompleteRevision(id, rec.Revision)
				}
			}
		}()
	}
	wg.Wait()
	if s.Len() != 8 {
		t.Fatalf("Len = %d, want 8", s.Len())
	}
}

func TestRecordDue(t *testing.T) {
	t.Parallel()
	now := time.Now()
	tests := []struct {
		name string
		rec  Record
		want bool
	}{
		{name: "past", rec: Record{DueAt: now.Add(-time.Second)}, want: true},
		{name: "exactly now", rec: Record{DueAt: now}, want: true},
		{name: "future", rec: Record{DueAt: now.Add(time.Second)}, want: false},
		{name: "completed", rec: Record{DueAt: now.Add(-time.Hour), Status: StatusCompleted}, want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Due(now); got != tt.want {
				t.Fatalf("Due = %v, want %v", got, tt.want)
			}
		})
	}
}

func countList(s *Store) int {
	n := 0
	for range s.List() {
		n++
	}
	return n
}
