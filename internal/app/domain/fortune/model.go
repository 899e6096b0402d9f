// Package fortune holds lottery records and the weighted outcome selection.
package fortune

import (
	"fmt"

	"github.com/solji-labs/solji-program-sub000/internal/app/domain/record"
	"github.com/solji-labs/solji-program-sub000/internal/config"
	"github.com/solji-labs/solji-program-sub000/internal/pda"
)

// Outcome names. The configuration lumps the three worst outcomes into a
// single greatBadLuck bucket; selection expands it using the configured
// sub-weights.
const (
	OutcomeGreatLuck       = "greatLuck"
	OutcomeGoodLuck        = "goodLuck"
	OutcomeNeutral         = "neutral"
	OutcomeBadLuck         = "badLuck"
	OutcomeGreatBadLuck    = "greatBadLuck"
	OutcomeLateFortune     = "lateFortune"
	OutcomeMisfortune      = "misfortune"
	OutcomeGreatMisfortune = "greatMisfortune"
)

// Record is one immutable draw result, addressed by (owner, seq).
type Record struct {
	Owner     pda.Address `json:"owner"`
	Seq       uint64      `json:"seq"`
	Outcome   string      `json:"outcome"`
	UsedMerit bool        `json:"used_merit"`
	CreatedAt int64       `json:"created_at"`
}

func (r *Record) Kind() record.Kind { return record.KindLotteryRecord }

func (r *Record) Clone() record.Record {
	cp := *r
	return &cp
}

// Pick selects an outcome from a bucket table using a uniform roll in [0,1).
// Selection walks cumulative weights in table order; a greatBadLuck hit is
// expanded into its sub-outcomes with the remaining fraction of the roll.
func Pick(table []config.FortuneBucket, split []config.FortuneBucket, roll float64) (string, error) {
	if roll < 0 || roll >= 1 {
		return "", fmt.Errorf("roll must be in [0,1), got %v", roll)
	}

	var total uint32
	for _, b := range table {
		total += b.Weight
	}
	if total == 0 {
		return "", fmt.Errorf("empty probability table")
	}

	scaled := roll * float64(total)
	var cum float64
	for _, b := range table {
		next := cum + float64(b.Weight)
		if scaled < next {
			if b.Outcome != OutcomeGreatBadLuck {
				return b.Outcome, nil
			}
			// Reuse the position inside the bucket as the sub-roll so one
			// uniform value drives the whole selection.
			sub := (scaled - cum) / float64(b.Weight)
			return pickSub(split, sub)
		}
		cum = next
	}
	// Defends against float accumulation at the top of the range.
	last := table[len(table)-1]
	if last.Outcome == OutcomeGreatBadLuck {
		return pickSub(split, 0)
	}
	return last.Outcome, nil
}

func pickSub(split []config.FortuneBucket, roll float64) (string, error) {
	var total uint32
	for _, b := range split {
		total += b.Weight
	}
	if total == 0 {
		return "", fmt.Errorf("empty greatBadLuck split")
	}
	scaled := roll * float64(total)
	var cum float64
	for _, b := range split {
		cum += float64(b.Weight)
		if scaled < cum {
			return b.Outcome, nil
		}
	}
	return split[len(split)-1].Outcome, nil
}
