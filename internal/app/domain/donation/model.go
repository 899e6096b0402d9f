// Package donation holds the per-user donation record and the tier math.
package donation

import (
	"github.com/solji-labs/solji-program-sub000/internal/app/domain/record"
	"github.com/solji-labs/solji-program-sub000/internal/config"
	"github.com/solji-labs/solji-program-sub000/internal/pda"
)

// State is the per-user donation record. CumulativeLamports never decreases
// and Level is the highest tier whose threshold it has reached.
type State struct {
	Owner              pda.Address `json:"owner"`
	CumulativeLamports uint64      `json:"cumulative_lamports"`
	Level              uint8       `json:"level"`
	// DonationCount is the sequence counter for donation sub-records.
	DonationCount uint64 `json:"donation_count"`
	CreatedAt     int64  `json:"created_at"`
}

func (s *State) Kind() record.Kind { return record.KindUserDonationState }

func (s *State) Clone() record.Record {
	cp := *s
	return &cp
}

// Receipt is one immutable donation sub-record, addressed by (owner, seq).
type Receipt struct {
	Owner     pda.Address `json:"owner"`
	Seq       uint64      `json:"seq"`
	Lamports  uint64      `json:"lamports"`
	CreatedAt int64       `json:"created_at"`
}

func (r *Receipt) Kind() record.Kind { return record.KindDonationRecord }

func (r *Receipt) Clone() record.Record {
	cp := *r
	return &cp
}

// LevelFor returns the highest tier level whose threshold is at or below the
// cumulative amount, or 0 below the first tier.
func LevelFor(cumulative uint64, tiers []config.DonationTier) uint8 {
	var level uint8
	for _, tier := range tiers {
		if cumulative < tier.MinLamports {
			break
		}
		level = tier.Level
	}
	return level
}

// TierRewards sums the merit and incense rewards of the tiers strictly above
// from and at or below to. Re-granting already attained tiers is the caller's
// bug, not this function's.
func TierRewards(from, to uint8, tiers []config.DonationTier) (merit, incense uint64) {
	for _, tier := range tiers {
		if tier.Level > from && tier.Level <= to {
			merit += tier.MeritReward
			incense += tier.IncenseReward
		}
	}
	return merit, incense
}
