// Package leaderboard holds the bounded ranked lists, one per period.
package leaderboard

import (
	"sort"

	"github.com/solji-labs/solji-program-sub000/internal/app/domain/record"
	"github.com/solji-labs/solji-program-sub000/internal/pda"
)

// Period tags.
const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodAllTime = "all_time"
)

// Periods lists every valid period tag.
var Periods = []string{PeriodDaily, PeriodWeekly, PeriodAllTime}

// ValidPeriod reports whether tag names a known period.
func ValidPeriod(tag string) bool {
	for _, p := range Periods {
		if p == tag {
			return true
		}
	}
	return false
}

// Entry is one ranked user. FirstRankedAt breaks score ties in favor of the
// earlier entrant and is preserved across score updates.
type Entry struct {
	User          pda.Address `json:"user"`
	Score         uint64      `json:"score"`
	FirstRankedAt int64       `json:"first_ranked_at"`
}

// Board is the bounded ranked list for one period, ordered descending by
// score.
type Board struct {
	Period   string  `json:"period"`
	Capacity int     `json:"capacity"`
	Entries  []Entry `json:"entries"`
}

func (b *Board) Kind() record.Kind { return record.KindLeaderboard }

func (b *Board) Clone() record.Record {
	cp := *b
	cp.Entries = append([]Entry(nil), b.Entries...)
	return &cp
}

// Apply inserts or updates the user's entry, re-sorts and evicts beyond
// capacity. Returns whether the user remains on the board afterwards.
func (b *Board) Apply(userAddr pda.Address, score uint64, now int64) bool {
	found := false
	for i := range b.Entries {
		if b.Entries[i].User == userAddr {
			b.Entries[i].Score = score
			found = true
			break
		}
	}
	if !found {
		b.Entries = append(b.Entries, Entry{User: userAddr, Score: score, FirstRankedAt: now})
	}

	sort.SliceStable(b.Entries, func(i, j int) bool {
		if b.Entries[i].Score != b.Entries[j].Score {
			return b.Entries[i].Score > b.Entries[j].Score
		}
		return b.Entries[i].FirstRankedAt < b.Entries[j].FirstRankedAt
	})

	if b.Capacity > 0 && len(b.Entries) > b.Capacity {
		evicted := b.Entries[b.Capacity:]
		b.Entries = b.Entries[:b.Capacity]
		for _, e := range evicted {
			if e.User == userAddr {
				return false
			}
		}
	}
	return true
}

// Rank returns the 1-based rank of the user, or 0 if absent.
func (b *Board) Rank(userAddr pda.Address) int {
	for i, e := range b.Entries {
		if e.User == userAddr {
			return i + 1
		}
	}
	return 0
}
