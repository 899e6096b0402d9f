// Package staking implements the medal NFT time lock: stake, unstake and the
// elapsed-duration reward.
package staking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/solji-labs/solji-program-sub000/internal/app/domain/medal"
	"github.com/solji-labs/solji-program-sub000/internal/app/domain/temple"
	"github.com/solji-labs/solji-program-sub000/internal/app/services/users"
	"github.com/solji-labs/solji-program-sub000/internal/app/storage"
	"github.com/solji-labs/solji-program-sub000/internal/config"
	"github.com/solji-labs/solji-program-sub000/internal/pda"
	"github.com/solji-labs/solji-program-sub000/pkg/logger"
)

// Errors
var (
	ErrNoMedal            = errors.New("user holds no medal nft")
	ErrMedalAlreadyStaked = errors.New("medal already staked")
	ErrMedalNotStaked     = errors.New("medal not staked")
)

// Service carries stake and unstake.
type Service struct {
	ledger storage.Ledger
	params config.Params
	log    *logger.Logger
	now    func() time.Time
}

// New constructs a staking service.
func New(ledger storage.Ledger, params config.Params, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("staking")
	}
	return &Service{ledger: ledger, params: params, log: log, now: time.Now}
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(now func() time.Time) { s.now = now }

// Stake starts the time lock on the caller's medal.
func (s *Service) Stake(ctx context.Context, owner pda.Address) error {
	now := s.now().UTC().Unix()
	return s.ledger.Transact(ctx, func(tx storage.Tx) error {
		nft, err := s.fetchMedal(tx, owner)
		if err != nil {
			return err
		}
		if nft.Staked() {
			return ErrMedalAlreadyStaked
		}
		nft.StakedAt = now
		return tx.Update(pda.MedalNftAddress(owner), nft)
	})
}

// Unstake clears the stake timestamp. The merit reward is granted only when
// the lock period fully elapsed; an early unstake succeeds without reward.
func (s *Service) Unstake(ctx context.Context, owner pda.Address) (rewarded bool, err error) {
	now := s.now().UTC().Unix()
	err = s.ledger.Transact(ctx, func(tx storage.Tx) error {
		nft, err := s.fetchMedal(tx, owner)
		if err != nil {
			return err
		}
		if !nft.Staked() {
			return ErrMedalNotStaked
		}
		elapsed := now - nft.StakedAt
		nft.StakedAt = 0
		if err := tx.Update(pda.MedalNftAddress(owner), nft); err != nil {
			return err
		}

		rewarded = elapsed >= s.params.Staking.LockSeconds
		if !rewarded {
			return nil
		}

		st, inc, err := users.Ensure(tx, owner, now, s.params)
		if err != nil {
			return err
		}
		inc.Merit += s.params.Staking.MeritReward

		statsRec, err := tx.Fetch(pda.GlobalStatsAddress())
		if err != nil {
			return fmt.Errorf("fetch global stats: %w", err)
		}
		stats := statsRec.(*temple.GlobalStats)
		stats.TotalMerit += s.params.Staking.MeritReward
		if err := tx.Update(pda.GlobalStatsAddress(), stats); err != nil {
			return err
		}
		return users.Save(tx, st, inc, now, s.params)
	})
	if err != nil {
		return false, err
	}
	if rewarded {
		s.log.WithField("owner", owner.String()).
			WithField("merit", s.params.Staking.MeritReward).
			Info("staking reward granted")
	}
	return rewarded, nil
}

// Medal returns the committed medal record.
func (s *Service) Medal(ctx context.Context, owner pda.Address) (*medal.Nft, error) {
	rec, err := s.ledger.Get(ctx, pda.MedalNftAddress(owner))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoMedal, owner)
	}
	return rec.(*medal.Nft), nil
}

func (s *Service) fetchMedal(tx storage.Tx, owner pda.Address) (*medal.Nft, error) {
	rec, err := tx.Fetch(pda.MedalNftAddress(owner))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoMedal, owner)
	}
	return rec.(*medal.Nft), nil
}
