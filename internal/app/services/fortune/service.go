// Package fortune implements the draw instruction: free and merit
// eligibility paths, weighted outcome selection and lottery records.
package fortune

import (
	"context"
	"errors"
	"fmt"
	"time"

	fortunedom "github.com/solji-labs/solji-program-sub000/internal/app/domain/fortune"
	"github.com/solji-labs/solji-program-sub000/internal/app/domain/temple"
	"github.com/solji-labs/solji-program-sub000/internal/app/events"
	"github.com/solji-labs/solji-program-sub000/internal/app/metrics"
	"github.com/solji-labs/solji-program-sub000/internal/app/services/users"
	"github.com/solji-labs/solji-program-sub000/internal/app/storage"
	"github.com/solji-labs/solji-program-sub000/internal/config"
	"github.com/solji-labs/solji-program-sub000/internal/pda"
	"github.com/solji-labs/solji-program-sub000/pkg/logger"
)

// Errors
var (
	ErrDailyIncenseLimitExceeded = errors.New("free draws exhausted for today")
	ErrInsufficientMerit         = errors.New("insufficient merit for draw")
)

// Service carries the draw instruction.
type Service struct {
	ledger storage.Ledger
	params config.Params
	rand   Randomness
	bus    *events.Bus
	log    *logger.Logger
	now    func() time.Time
}

// New constructs a fortune service. A nil source falls back to crypto/rand.
func New(ledger storage.Ledger, params config.Params, rand Randomness, bus *events.Bus, log *logger.Logger) *Service {
	if rand == nil {
		rand = CryptoSource{}
	}
	if log == nil {
		log = logger.NewDefault("fortune")
	}
	return &Service{ledger: ledger, params: params, rand: rand, bus: bus, log: log, now: time.Now}
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(now func() time.Time) { s.now = now }

func (s *Service) emit(ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
	metrics.IncEvent(ev.Name)
}

// Draw samples a fortune outcome for the user. The free path is capped per
// day; the merit path debits the fixed cost. Buddha NFT holders draw against
// the enhanced table. The roll is taken before the transaction so a slow
// randomness source never holds the ledger lock.
func (s *Service) Draw(ctx context.Context, owner pda.Address, useMerit bool) (*fortunedom.Record, error) {
	roll, err := s.rand.Float64(ctx)
	if err != nil {
		return nil, fmt.Errorf("randomness source: %w", err)
	}
	now := s.now().UTC().Unix()

	var out *fortunedom.Record
	err = s.ledger.Transact(ctx, func(tx storage.Tx) error {
		st, inc, err := users.Ensure(tx, owner, now, s.params)
		if err != nil {
			return err
		}

		if useMerit {
			cost := s.params.Fortune.MeritCost
			if inc.Merit < cost {
				return fmt.Errorf("%w: have %d, need %d", ErrInsufficientMerit, inc.Merit, cost)
			}
			inc.Merit -= cost
		} else {
			if st.DailyDraws.Current(now) >= s.params.Fortune.FreeDrawsPerDay {
				return fmt.Errorf("%w: %d per day", ErrDailyIncenseLimitExceeded, s.params.Fortune.FreeDrawsPerDay)
			}
			inc.Merit += s.params.Fortune.FreeDrawMeritBonus
		}

		table := s.params.Fortune.Regular
		if st.HasBuddhaNft {
			table = s.params.Fortune.Enhanced
		}
		outcome, err := fortunedom.Pick(table, s.params.Fortune.GreatBadLuckSplit, roll)
		if err != nil {
			return err
		}

		rec := &fortunedom.Record{
			Owner:     owner,
			Seq:       inc.TotalDraws,
			Outcome:   outcome,
			UsedMerit: useMerit,
			CreatedAt: now,
		}
		if err := tx.Initialize(pda.LotteryRecordAddress(owner, inc.TotalDraws), rec); err != nil {
			return fmt.Errorf("init lottery record: %w", err)
		}
		inc.TotalDraws++
		st.DailyDraws.Bump(now)

		statsRec, err := tx.Fetch(pda.GlobalStatsAddress())
		if err != nil {
			return fmt.Errorf("fetch global stats: %w", err)
		}
		stats := statsRec.(*temple.GlobalStats)
		stats.TotalDraws++
		if err := tx.Update(pda.GlobalStatsAddress(), stats); err != nil {
			return err
		}

		out = rec
		return users.Save(tx, st, inc, now, s.params)
	})
	if err != nil {
		return nil, err
	}

	s.emit(events.New(events.DrawFortuneEvent, map[string]interface{}{
		"owner":      owner.String(),
		"seq":        out.Seq,
		"outcome":    out.Outcome,
		"used_merit": out.UsedMerit,
	}))
	return out, nil
}

// Record returns one committed lottery record.
func (s *Service) Record(ctx context.Context, owner pda.Address, seq uint64) (*fortunedom.Record, error) {
	rec, err := s.ledger.Get(ctx, pda.LotteryRecordAddress(owner, seq))
	if err != nil {
		return nil, fmt.Errorf("fetch lottery record: %w", err)
	}
	return rec.(*fortunedom.Record), nil
}
