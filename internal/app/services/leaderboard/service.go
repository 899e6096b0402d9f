// Package leaderboard implements the explicit ranking refresh. Boards are
// denormalized caches refreshed by the caller after a qualifying action, not
// by triggers inside the other instructions.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	boarddom "github.com/solji-labs/solji-program-sub000/internal/app/domain/leaderboard"
	"github.com/solji-labs/solji-program-sub000/internal/app/domain/user"
	"github.com/solji-labs/solji-program-sub000/internal/app/storage"
	"github.com/solji-labs/solji-program-sub000/internal/config"
	"github.com/solji-labs/solji-program-sub000/internal/pda"
	"github.com/solji-labs/solji-program-sub000/pkg/logger"
)

// ErrInvalidPeriod rejects unknown period tags.
var ErrInvalidPeriod = errors.New("invalid leaderboard period")

// ErrUserNotRanked marks a refresh for a user with no state yet.
var ErrUserNotRanked = errors.New("user has no score to rank")

// Service carries the leaderboard refresh. The optional Redis mirror keeps a
// sorted set per period for external consumers; mirror failures are logged
// and never fail the instruction.
type Service struct {
	ledger storage.Ledger
	params config.Params
	mirror *redis.Client
	log    *logger.Logger
	now    func() time.Time
}

// New constructs a leaderboard service. mirror may be nil.
func New(ledger storage.Ledger, params config.Params, mirror *redis.Client, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("leaderboard")
	}
	return &Service{ledger: ledger, params: params, mirror: mirror, log: log, now: time.Now}
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(now func() time.Time) { s.now = now }

// Update re-ranks the user on the period's board using their current incense
// points. The board is created on first use.
func (s *Service) Update(ctx context.Context, owner pda.Address, period string) error {
	if !boarddom.ValidPeriod(period) {
		return fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
	now := s.now().UTC().Unix()

	var score uint64
	err := s.ledger.Transact(ctx, func(tx storage.Tx) error {
		rec, err := tx.Fetch(pda.UserIncenseStateAddress(owner))
		if err != nil {
			return fmt.Errorf("%w: %s", ErrUserNotRanked, owner)
		}
		score = rec.(*user.IncenseState).IncensePoints

		boardAddr := pda.LeaderboardAddress(period)
		var board *boarddom.Board
		if brec := tx.FetchOrNil(boardAddr); brec != nil {
			board = brec.(*boarddom.Board)
		} else {
			board = &boarddom.Board{Period: period, Capacity: s.params.Leaderboard.Capacity}
			if err := tx.Initialize(boardAddr, board); err != nil {
				return fmt.Errorf("init leaderboard: %w", err)
			}
		}

		board.Apply(owner, score, now)
		return tx.Update(boardAddr, board)
	})
	if err != nil {
		return err
	}

	s.mirrorScore(ctx, period, owner, score)
	return nil
}

// Board returns the committed board for a period, or an empty board when no
// refresh has happened yet.
func (s *Service) Board(ctx context.Context, period string) (*boarddom.Board, error) {
	if !boarddom.ValidPeriod(period) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
	rec, err := s.ledger.Get(ctx, pda.LeaderboardAddress(period))
	if errors.Is(err, storage.ErrNotFound) {
		return &boarddom.Board{Period: period, Capacity: s.params.Leaderboard.Capacity}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}
	return rec.(*boarddom.Board), nil
}

func mirrorKey(period string) string {
	return "solji:leaderboard:" + period
}

func (s *Service) mirrorScore(ctx context.Context, period string, owner pda.Address, score uint64) {
	if s.mirror == nil {
		return
	}
	key := mirrorKey(period)
	pipe := s.mirror.TxPipeline()
	pipe.ZAdd(ctx, key, &redis.Z{Score: float64(score), Member: owner.String()})
	// Trim to capacity, lowest scores first.
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-s.params.Leaderboard.Capacity-1))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.WithError(err).WithField("period", period).Warn("leaderboard mirror update failed")
	}
}
