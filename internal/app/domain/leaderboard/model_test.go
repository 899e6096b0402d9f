package leaderboard

import (
	"crypto/sha256"
	"fmt"
	"testing"

	"github.com/solji-labs/solji-program-sub000/internal/pda"
)

func addr(tag string) pda.Address {
	return pda.Address(sha256.Sum256([]byte(tag)))
}

func TestApplyOrdersDescending(t *testing.T) {
	b := &Board{Period: PeriodAllTime, Capacity: 10}

	b.Apply(addr("low"), 10, 1)
	b.Apply(addr("high"), 100, 2)
	b.Apply(addr("mid"), 50, 3)

	if b.Rank(addr("high")) != 1 || b.Rank(addr("mid")) != 2 || b.Rank(addr("low")) != 3 {
		t.Fatalf("unexpected order: %+v", b.Entries)
	}
}

func TestApplyTieBreaksByEarliestEntry(t *testing.T) {
	b := &Board{Period: PeriodAllTime, Capacity: 10}

	b.Apply(addr("first"), 50, 1)
	b.Apply(addr("second"), 50, 2)

	if b.Rank(addr("first")) != 1 {
		t.Errorf("earlier entrant should win the tie, got rank %d", b.Rank(addr("first")))
	}

	// Updating the earlier entrant's score to the same value keeps its
	// original tie-break position.
	b.Apply(addr("first"), 50, 99)
	if b.Rank(addr("first")) != 1 {
		t.Errorf("tie-break timestamp should survive score updates")
	}
}

func TestApplyEvictsLowestBeyondCapacity(t *testing.T) {
	b := &Board{Period: PeriodDaily, Capacity: 3}

	for i := 0; i < 3; i++ {
		b.Apply(addr(fmt.Sprintf("user-%d", i)), uint64(100+i), int64(i))
	}

	kept := b.Apply(addr("small"), 1, 10)
	if kept {
		t.Error("entry below the cut should report eviction")
	}
	if len(b.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(b.Entries))
	}
	if b.Rank(addr("small")) != 0 {
		t.Error("evicted entry still on the board")
	}

	kept = b.Apply(addr("big"), 1_000, 11)
	if !kept {
		t.Error("top score should stay on the board")
	}
	if b.Rank(addr("big")) != 1 {
		t.Errorf("expected new top entry at rank 1, got %d", b.Rank(addr("big")))
	}
	if b.Rank(addr("user-0")) != 0 {
		t.Error("lowest previous entry should have been evicted")
	}
}

func TestValidPeriod(t *testing.T) {
	for _, p := range Periods {
		if !ValidPeriod(p) {
			t.Errorf("period %q should be valid", p)
		}
	}
	if ValidPeriod("hourly") {
		t.Error("unknown period accepted")
	}
}
