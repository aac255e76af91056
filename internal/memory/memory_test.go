package memory

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/autofondo/barbara/internal/models"
)

func TestGetOrCreate_LazyAndStable(t *testing.T) {
	s := NewStore()
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d records", s.Len())
	}
	first := s.GetOrCreate("u1")
	if first.State != models.StateInitial {
		t.Errorf("new record should start INITIAL, got %s", first.State)
	}
	second := s.GetOrCreate("u1")
	if first != second {
		t.Error("expected the same record on repeated GetOrCreate")
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 record, got %d", s.Len())
	}
}

func TestSetName_NeverOverwrites(t *testing.T) {
	s := NewStore()
	mem := s.GetOrCreate("u1")
	s.SetName(mem, "Jair")
	s.SetName(mem, "Pedro")
	if mem.UserName != "Jair" {
		t.Errorf("user name was overwritten: %q", mem.UserName)
	}
}

func TestAppendTurn_CapAndTruncation(t *testing.T) {
	s := NewStore(WithMaxHistoryTurns(3))
	mem := s.GetOrCreate("u1")

	long := strings.Repeat("x", models.MaxTurnTextLength+50)
	for i := 0; i < 5; i++ {
		s.AppendTurn(mem, long, "ok")
	}
	if len(mem.History) != 3 {
		t.Fatalf("expected history capped at 3, got %d", len(mem.History))
	}
	for _, turn := range mem.History {
		if len([]rune(turn.Inbound)) != models.MaxTurnTextLength {
			t.Errorf("inbound not truncated to %d, got %d", models.MaxTurnTextLength, len([]rune(turn.Inbound)))
		}
	}
}

func TestRetries_IncrAndReset(t *testing.T) {
	s := NewStore()
	mem := s.GetOrCreate("u1")

	if n := s.IncrRetries(mem, models.StateWaitingName); n != 1 {
		t.Errorf("expected 1, got %d", n)
	}
	if n := s.IncrRetries(mem, models.StateWaitingName); n != 2 {
		t.Errorf("expected 2, got %d", n)
	}
	s.ResetRetries(mem, models.StateWaitingName)
	if n := s.IncrRetries(mem, models.StateWaitingName); n != 1 {
		t.Errorf("expected 1 after reset, got %d", n)
	}
}

func TestEvictIdle(t *testing.T) {
	s := NewStore()
	base := time.Now()
	s.now = func() time.Time { return base }
	s.GetOrCreate("old")

	s.now = func() time.Time { return base.Add(48 * time.Hour) }
	s.GetOrCreate("fresh")

	if evicted := s.EvictIdle(24 * time.Hour); evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 remaining record, got %d", s.Len())
	}
}

func TestLockUser_SerialisesSameUser(t *testing.T) {
	s := NewStore()
	mem := s.GetOrCreate("u1")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.LockUser("u1")
			defer unlock()
			s.IncrRetries(mem, models.StateWaitingName)
		}()
	}
	wg.Wait()
	if got := mem.RetriesPerState[models.StateWaitingName]; got != 50 {
		t.Errorf("lost retry increments under contention: got %d, want 50", got)
	}
}

func TestGetOrCreate_ConcurrentSingleRecord(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	results := make([]*models.ConversationMemory, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.GetOrCreate("same")
		}(i)
	}
	wg.Wait()
	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent GetOrCreate produced distinct records")
		}
	}
}
