// Package donation implements tiered donations, medal minting and the
// Buddha NFT unlock.
package donation

import (
	"context"
	"errors"
	"fmt"
	"time"

	donationdom "github.com/solji-labs/solji-program-sub000/internal/app/domain/donation"
	"github.com/solji-labs/solji-program-sub000/internal/app/domain/medal"
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
	ErrAmountMustBeGreaterThanZero = errors.New("donation amount must be greater than zero")
	ErrInsufficientDonation        = errors.New("cumulative donation below threshold")
	ErrUserHasBuddhaNFT            = errors.New("buddha nft already minted")
)

// Service carries donate and the Buddha NFT mint.
type Service struct {
	ledger storage.Ledger
	params config.Params
	bus    *events.Bus
	log    *logger.Logger
	now    func() time.Time
}

// New constructs a donation service.
func New(ledger storage.Ledger, params config.Params, bus *events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("donation")
	}
	return &Service{ledger: ledger, params: params, bus: bus, log: log, now: time.Now}
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(now func() time.Time) { s.now = now }

func (s *Service) emit(ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
	metrics.IncEvent(ev.Name)
}

// Donate transfers lamports to the treasury, accumulates the donor's total,
// grants the reward delta for newly attained tiers and mints the medal NFT
// the first time the eligibility threshold is crossed.
func (s *Service) Donate(ctx context.Context, owner pda.Address, lamports uint64) error {
	if lamports == 0 {
		return ErrAmountMustBeGreaterThanZero
	}
	now := s.now().UTC().Unix()
	var (
		newLevel    uint8
		meritGain   uint64
		incenseGain uint64
		medalMinted bool
	)

	err := s.ledger.Transact(ctx, func(tx storage.Tx) error {
		cfgRec, err := tx.Fetch(pda.TempleConfigAddress())
		if err != nil {
			return fmt.Errorf("fetch temple config: %w", err)
		}
		treasury := cfgRec.(*temple.Config).Treasury

		if err := tx.Debit(owner, lamports); err != nil {
			return fmt.Errorf("transfer donation: %w", err)
		}
		tx.Credit(treasury, lamports)

		st, inc, err := users.Ensure(tx, owner, now, s.params)
		if err != nil {
			return err
		}

		donAddr := pda.UserDonationStateAddress(owner)
		var don *donationdom.State
		if rec := tx.FetchOrNil(donAddr); rec != nil {
			don = rec.(*donationdom.State)
		} else {
			don = &donationdom.State{Owner: owner, CreatedAt: now}
			if err := tx.Initialize(donAddr, don); err != nil {
				return fmt.Errorf("init donation state: %w", err)
			}
		}

		prevLevel := don.Level
		don.CumulativeLamports += lamports
		newLevel = donationdom.LevelFor(don.CumulativeLamports, s.params.DonationTiers)
		don.Level = newLevel

		meritGain, incenseGain = donationdom.TierRewards(prevLevel, newLevel, s.params.DonationTiers)
		inc.Merit += meritGain
		inc.IncensePoints += incenseGain
		st.TotalIncenseValue += incenseGain

		receipt := &donationdom.Receipt{
			Owner:     owner,
			Seq:       don.DonationCount,
			Lamports:  lamports,
			CreatedAt: now,
		}
		if err := tx.Initialize(pda.DonationRecordAddress(owner, don.DonationCount), receipt); err != nil {
			return fmt.Errorf("init donation receipt: %w", err)
		}
		don.DonationCount++

		if newLevel >= 1 && !st.HasMedalNft {
			nft := &medal.Nft{Owner: owner, Level: newLevel, MintedAt: now}
			if err := tx.Initialize(pda.MedalNftAddress(owner), nft); err != nil {
				return fmt.Errorf("mint medal nft: %w", err)
			}
			st.HasMedalNft = true
			medalMinted = true
		} else if newLevel > prevLevel && st.HasMedalNft {
			if rec := tx.FetchOrNil(pda.MedalNftAddress(owner)); rec != nil {
				nft := rec.(*medal.Nft)
				nft.Level = newLevel
				if err := tx.Update(pda.MedalNftAddress(owner), nft); err != nil {
					return err
				}
			}
		}

		statsRec, err := tx.Fetch(pda.GlobalStatsAddress())
		if err != nil {
			return fmt.Errorf("fetch global stats: %w", err)
		}
		stats := statsRec.(*temple.GlobalStats)
		stats.TotalDonationLamports += lamports
		stats.TotalMerit += meritGain
		stats.TotalIncenseValue += incenseGain
		if err := tx.Update(pda.GlobalStatsAddress(), stats); err != nil {
			return err
		}

		if err := tx.Update(donAddr, don); err != nil {
			return err
		}
		return users.Save(tx, st, inc, now, s.params)
	})
	if err != nil {
		return err
	}

	s.emit(events.New(events.DonationCompleted, map[string]interface{}{
		"owner":    owner.String(),
		"lamports": lamports,
		"level":    newLevel,
	}))
	if meritGain > 0 || incenseGain > 0 {
		s.emit(events.New(events.RewardsProcessed, map[string]interface{}{
			"owner":   owner.String(),
			"merit":   meritGain,
			"incense": incenseGain,
		}))
	}
	if medalMinted {
		s.emit(events.New(events.DonationNftMinted, map[string]interface{}{
			"owner": owner.String(),
			"level": newLevel,
		}))
	}
	return nil
}

// MintBuddhaNft sets the one-time Buddha flag once the donor's cumulative
// total reaches the configured threshold.
func (s *Service) MintBuddhaNft(ctx context.Context, owner pda.Address) error {
	now := s.now().UTC().Unix()
	err := s.ledger.Transact(ctx, func(tx storage.Tx) error {
		st, inc, err := users.Ensure(tx, owner, now, s.params)
		if err != nil {
			return err
		}
		if st.HasBuddhaNft {
			return ErrUserHasBuddhaNFT
		}

		var cumulative uint64
		if rec := tx.FetchOrNil(pda.UserDonationStateAddress(owner)); rec != nil {
			cumulative = rec.(*donationdom.State).CumulativeLamports
		}
		if cumulative < s.params.BuddhaThresholdLamports {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientDonation, cumulative, s.params.BuddhaThresholdLamports)
		}

		st.HasBuddhaNft = true
		return users.Save(tx, st, inc, now, s.params)
	})
	if err != nil {
		return err
	}
	s.log.WithField("owner", owner.String()).Info("buddha nft minted")
	return nil
}

// State returns the committed donation record, or nil when the user has not
// donated yet.
func (s *Service) State(ctx context.Context, owner pda.Address) (*donationdom.State, error) {
	rec, err := s.ledger.Get(ctx, pda.UserDonationStateAddress(owner))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch donation state: %w", err)
	}
	return rec.(*donationdom.State), nil
}
