// Package wish implements wish publishing, the per-user tower, likes and
// tower NFT snapshots.
package wish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/solji-labs/solji-program-sub000/internal/app/domain/temple"
	wishdom "github.com/solji-labs/solji-program-sub000/internal/app/domain/wish"
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
	ErrWishNotFound     = errors.New("wish not found")
	ErrAlreadyLiked     = errors.New("wish already liked by this user")
	ErrNotLiked         = errors.New("wish not liked by this user")
	ErrTowerNotFound    = errors.New("wish tower not found")
	ErrSnapshotExists   = errors.New("tower snapshot already minted")
	ErrEmptyContentHash = errors.New("empty content hash")
)

// HashContent derives the stored content hash from the raw wish text. The
// text itself never enters the ledger.
func HashContent(content []byte) [32]byte {
	return blake2b.Sum256(content)
}

// Service carries the wish instructions.
type Service struct {
	ledger storage.Ledger
	params config.Params
	bus    *events.Bus
	log    *logger.Logger
	now    func() time.Time
}

// New constructs a wish service.
func New(ledger storage.Ledger, params config.Params, bus *events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("wish")
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

// Create publishes a wish and appends it to the author's tower, initializing
// the tower on the first wish. There is no balance gate.
func (s *Service) Create(ctx context.Context, author pda.Address, contentHash [32]byte, anonymous bool) (*wishdom.Publish, error) {
	if contentHash == ([32]byte{}) {
		return nil, ErrEmptyContentHash
	}
	now := s.now().UTC().Unix()

	var out *wishdom.Publish
	err := s.ledger.Transact(ctx, func(tx storage.Tx) error {
		st, inc, err := users.Ensure(tx, author, now, s.params)
		if err != nil {
			return err
		}

		seq := inc.TotalWishes
		pub := &wishdom.Publish{
			Author:      author,
			Seq:         seq,
			ContentHash: contentHash,
			IsAnonymous: anonymous,
			CreatedAt:   now,
		}
		wishAddr := pda.PublishWishAddress(author, seq)
		if err := tx.Initialize(wishAddr, pub); err != nil {
			return fmt.Errorf("init wish: %w", err)
		}
		inc.TotalWishes++
		st.DailyWishes.Bump(now)

		towerAddr := pda.WishTowerAddress(author)
		var tower *wishdom.Tower
		if rec := tx.FetchOrNil(towerAddr); rec != nil {
			tower = rec.(*wishdom.Tower)
		} else {
			tower = &wishdom.Tower{Creator: author, Level: 1, CreatedAt: now}
			if err := tx.Initialize(towerAddr, tower); err != nil {
				return fmt.Errorf("init wish tower: %w", err)
			}
		}
		tower.WishIDs = append(tower.WishIDs, wishAddr)
		tower.WishCount++
		tower.Level = wishdom.LevelFor(tower.WishCount, s.params.Tower.WishesPerLevel)
		if err := tx.Update(towerAddr, tower); err != nil {
			return err
		}

		statsRec, err := tx.Fetch(pda.GlobalStatsAddress())
		if err != nil {
			return fmt.Errorf("fetch global stats: %w", err)
		}
		stats := statsRec.(*temple.GlobalStats)
		stats.TotalWishes++
		if err := tx.Update(pda.GlobalStatsAddress(), stats); err != nil {
			return err
		}

		out = pub
		return users.Save(tx, st, inc, now, s.params)
	})
	if err != nil {
		return nil, err
	}

	s.emit(events.New(events.WishCreated, map[string]interface{}{
		"author":    out.Author.String(),
		"seq":       out.Seq,
		"anonymous": out.IsAnonymous,
	}))
	return out, nil
}

// Like records that liker likes the wish. One like per (wish, liker) pair.
func (s *Service) Like(ctx context.Context, liker, wishAddr pda.Address) error {
	now := s.now().UTC().Unix()
	err := s.ledger.Transact(ctx, func(tx storage.Tx) error {
		rec, err := tx.Fetch(wishAddr)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrWishNotFound, wishAddr)
		}
		pub := rec.(*wishdom.Publish)

		likeAddr := pda.WishLikeAddress(wishAddr, liker)
		like := &wishdom.Like{Wish: wishAddr, Liker: liker, CreatedAt: now}
		if err := tx.Initialize(likeAddr, like); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				return ErrAlreadyLiked
			}
			return err
		}

		pub.Likes++
		return tx.Update(wishAddr, pub)
	})
	if err != nil {
		return err
	}

	s.emit(events.New(events.LikeCreated, map[string]interface{}{
		"wish":  wishAddr.String(),
		"liker": liker.String(),
	}))
	return nil
}

// CancelLike removes an existing like and decrements the wish counter.
func (s *Service) CancelLike(ctx context.Context, liker, wishAddr pda.Address) error {
	return s.ledger.Transact(ctx, func(tx storage.Tx) error {
		rec, err := tx.Fetch(wishAddr)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrWishNotFound, wishAddr)
		}
		pub := rec.(*wishdom.Publish)

		likeAddr := pda.WishLikeAddress(wishAddr, liker)
		if err := tx.Delete(likeAddr); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrNotLiked
			}
			return err
		}
		if pub.Likes > 0 {
			pub.Likes--
		}
		return tx.Update(wishAddr, pub)
	})
}

// MintTowerNft snapshots the caller's tower into an immutable record. With
// snapshot dedup enabled, only one snapshot may ever be minted per tower.
func (s *Service) MintTowerNft(ctx context.Context, owner pda.Address) (*wishdom.TowerNft, error) {
	now := s.now().UTC().Unix()

	var out *wishdom.TowerNft
	err := s.ledger.Transact(ctx, func(tx storage.Tx) error {
		towerAddr := pda.WishTowerAddress(owner)
		rec, err := tx.Fetch(towerAddr)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrTowerNotFound, owner)
		}
		tower := rec.(*wishdom.Tower)

		if s.params.Tower.DedupTowerSnapshots && tower.SnapshotCount > 0 {
			return ErrSnapshotExists
		}

		nft := &wishdom.TowerNft{
			Owner:     owner,
			Seq:       tower.SnapshotCount,
			WishCount: tower.WishCount,
			Level:     tower.Level,
			MintedAt:  now,
		}
		if err := tx.Initialize(pda.WishTowerNftAddress(owner, tower.SnapshotCount), nft); err != nil {
			return fmt.Errorf("init tower nft: %w", err)
		}
		tower.SnapshotCount++
		if err := tx.Update(towerAddr, tower); err != nil {
			return err
		}
		out = nft
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one committed wish.
func (s *Service) Get(ctx context.Context, author pda.Address, seq uint64) (*wishdom.Publish, error) {
	rec, err := s.ledger.Get(ctx, pda.PublishWishAddress(author, seq))
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%d", ErrWishNotFound, author, seq)
	}
	return rec.(*wishdom.Publish), nil
}

// Tower returns the committed tower record.
func (s *Service) Tower(ctx context.Context, owner pda.Address) (*wishdom.Tower, error) {
	rec, err := s.ledger.Get(ctx, pda.WishTowerAddress(owner))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTowerNotFound, owner)
	}
	return rec.(*wishdom.Tower), nil
}
