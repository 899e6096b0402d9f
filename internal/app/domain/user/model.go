// Package user holds the per-user records: general state (daily counters,
// one-way NFT flags) and incense state (balances, merit, title).
package user

import (
	"github.com/solji-labs/solji-program-sub000/internal/app/domain/record"
	"github.com/solji-labs/solji-program-sub000/internal/config"
	"github.com/solji-labs/solji-program-sub000/internal/pda"
)

// SecondsPerDay fixes the UTC day boundary used by every daily counter.
const SecondsPerDay = 86_400

// DayIndex maps a unix timestamp to its UTC day number.
func DayIndex(ts int64) uint64 {
	if ts < 0 {
		return 0
	}
	return uint64(ts) / SecondsPerDay
}

// DailyCounter is a lazily-reset per-day counter. There is no scheduled
// reset: every increment first compares the stored day index with the
// current one and zeroes the count when they differ.
type DailyCounter struct {
	DayIndex uint64 `json:"day_index"`
	Count    uint64 `json:"count"`
}

// Current returns the counter value as of ts, accounting for a pending reset.
func (c DailyCounter) Current(ts int64) uint64 {
	if DayIndex(ts) != c.DayIndex {
		return 0
	}
	return c.Count
}

// Bump resets the counter on a day change and then increments it.
func (c *DailyCounter) Bump(ts int64) {
	day := DayIndex(ts)
	if day != c.DayIndex {
		c.DayIndex = day
		c.Count = 0
	}
	c.Count++
}

// State is the general per-user record. Flags are one-way: once set they are
// never cleared.
type State struct {
	Owner             pda.Address  `json:"owner"`
	TotalIncenseValue uint64       `json:"total_incense_value"`
	HasMedalNft       bool         `json:"has_medal_nft"`
	HasBuddhaNft      bool         `json:"has_buddha_nft"`
	DailyBurns        DailyCounter `json:"daily_burns"`
	DailyDraws        DailyCounter `json:"daily_draws"`
	DailyWishes       DailyCounter `json:"daily_wishes"`
	CreatedAt         int64        `json:"created_at"`
	LastActionAt      int64        `json:"last_action_at"`
}

func (s *State) Kind() record.Kind { return record.KindUserState }

func (s *State) Clone() record.Record {
	cp := *s
	return &cp
}

// Balance tracks one incense type for one user. Having is always
// Total - Burned.
type Balance struct {
	Total  uint64 `json:"total"`
	Burned uint64 `json:"burned"`
	Having uint64 `json:"having"`
}

// IncenseState is the per-user incense record: balances, merit, incense
// points, title and the sequence counters for sub-records.
type IncenseState struct {
	Owner         pda.Address         `json:"owner"`
	Balances      map[uint16]*Balance `json:"balances"`
	Merit         uint64              `json:"merit"`
	IncensePoints uint64              `json:"incense_points"`
	Title         string              `json:"title"`
	TotalBurns    uint64              `json:"total_burns"`
	BurnReceipts  uint64              `json:"burn_receipts"`
	// TotalDraws doubles as the lottery record sequence counter; it is read
	// before deriving the child address and incremented with its creation.
	TotalDraws uint64 `json:"total_draws"`
	// TotalWishes doubles as the publish-wish sequence counter.
	TotalWishes uint64 `json:"total_wishes"`
}

func (s *IncenseState) Kind() record.Kind { return record.KindUserIncenseState }

func (s *IncenseState) Clone() record.Record {
	cp := *s
	cp.Balances = make(map[uint16]*Balance, len(s.Balances))
	for id, b := range s.Balances {
		bc := *b
		cp.Balances[id] = &bc
	}
	return &cp
}

// BalanceFor returns the balance bucket for a type, creating it when absent.
func (s *IncenseState) BalanceFor(typeID uint16) *Balance {
	if s.Balances == nil {
		s.Balances = make(map[uint16]*Balance)
	}
	b, ok := s.Balances[typeID]
	if !ok {
		b = &Balance{}
		s.Balances[typeID] = b
	}
	return b
}

// TitleFor returns the highest title whose threshold is at or below merit.
// The tier table is ascending, so the answer is the last qualifying entry.
func TitleFor(merit uint64, tiers []config.TitleTier) string {
	title := ""
	for _, tier := range tiers {
		if merit < tier.MinMerit {
			break
		}
		title = tier.Title
	}
	return title
}
