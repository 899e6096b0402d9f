// Package incense implements purchase and burn accounting: per-type pricing,
// inventory, daily burn limits, merit and incense point rewards.
package incense

import (
	"context"
	"errors"
	"fmt"
	"time"

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
	ErrInactiveIncenseType    = errors.New("incense type is not active")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInsufficientBalance    = errors.New("insufficient incense balance")
	ErrDailyBurnLimitExceeded = errors.New("daily burn limit exceeded")
)

// Order is one (type, quantity) purchase line.
type Order struct {
	TypeID   uint16 `json:"type_id"`
	Quantity uint64 `json:"quantity"`
}

// Service carries buy and burn.
type Service struct {
	ledger storage.Ledger
	params config.Params
	bus    *events.Bus
	log    *logger.Logger
	now    func() time.Time
}

// New constructs an incense service.
func New(ledger storage.Ledger, params config.Params, bus *events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("incense")
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

// Buy purchases one or more incense types, transferring the cost to the
// treasury. Every order line is validated before any balance moves; a bad
// line fails the whole purchase.
func (s *Service) Buy(ctx context.Context, owner pda.Address, orders []Order) error {
	if len(orders) == 0 {
		return fmt.Errorf("%w: empty order list", ErrInvalidQuantity)
	}
	now := s.now().UTC().Unix()
	var totalCost uint64

	err := s.ledger.Transact(ctx, func(tx storage.Tx) error {
		cfgRec, err := tx.Fetch(pda.TempleConfigAddress())
		if err != nil {
			return fmt.Errorf("fetch temple config: %w", err)
		}
		treasury := cfgRec.(*temple.Config).Treasury

		st, inc, err := users.Ensure(tx, owner, now, s.params)
		if err != nil {
			return err
		}

		totalCost = 0
		for _, order := range orders {
			typeRec, err := tx.Fetch(pda.IncenseTypeAddress(order.TypeID))
			if err != nil {
				return fmt.Errorf("%w: id %d", ErrInactiveIncenseType, order.TypeID)
			}
			it := typeRec.(*temple.IncenseType)
			if !it.Active || !it.Purchasable {
				return fmt.Errorf("%w: id %d", ErrInactiveIncenseType, order.TypeID)
			}
			if order.Quantity == 0 || order.Quantity > it.MaxBuyPerTx {
				return fmt.Errorf("%w: %d of type %d (max %d)", ErrInvalidQuantity, order.Quantity, order.TypeID, it.MaxBuyPerTx)
			}

			cost := it.PriceLamports * order.Quantity
			if err := tx.Debit(owner, cost); err != nil {
				return fmt.Errorf("pay for incense: %w", err)
			}
			tx.Credit(treasury, cost)
			totalCost += cost

			balance := inc.BalanceFor(order.TypeID)
			balance.Total += order.Quantity
			balance.Having += order.Quantity

			it.TotalMinted += order.Quantity
			if err := tx.Update(pda.IncenseTypeAddress(order.TypeID), it); err != nil {
				return err
			}
		}
		return users.Save(tx, st, inc, now, s.params)
	})
	if err != nil {
		return err
	}

	s.emit(events.New(events.IncenseBought, map[string]interface{}{
		"owner":          owner.String(),
		"orders":         orders,
		"total_lamports": totalCost,
	}))
	return nil
}

// Burn consumes held incense, granting merit and incense points, bumping the
// daily and lifetime counters and minting a burn receipt NFT.
func (s *Service) Burn(ctx context.Context, owner pda.Address, typeID uint16, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("%w: zero amount", ErrInvalidQuantity)
	}
	now := s.now().UTC().Unix()
	var meritGained, pointsGained uint64

	err := s.ledger.Transact(ctx, func(tx storage.Tx) error {
		st, inc, err := users.Ensure(tx, owner, now, s.params)
		if err != nil {
			return err
		}

		typeRec, err := tx.Fetch(pda.IncenseTypeAddress(typeID))
		if err != nil {
			return fmt.Errorf("%w: id %d", ErrInactiveIncenseType, typeID)
		}
		it := typeRec.(*temple.IncenseType)

		balance := inc.BalanceFor(typeID)
		if balance.Having < amount {
			return fmt.Errorf("%w: having %d, burning %d", ErrInsufficientBalance, balance.Having, amount)
		}
		if cap := s.params.Limits.BurnsPerDay; cap > 0 && st.DailyBurns.Current(now) >= cap {
			return fmt.Errorf("%w: %d burns today", ErrDailyBurnLimitExceeded, cap)
		}

		balance.Having -= amount
		balance.Burned += amount
		it.TotalBurned += amount

		meritGained = it.KarmaReward * amount
		pointsGained = it.IncenseValue * amount
		inc.Merit += meritGained
		inc.IncensePoints += pointsGained
		inc.TotalBurns++
		inc.BurnReceipts++ // one receipt NFT per burn call
		st.TotalIncenseValue += pointsGained
		st.DailyBurns.Bump(now)

		statsRec, err := tx.Fetch(pda.GlobalStatsAddress())
		if err != nil {
			return fmt.Errorf("fetch global stats: %w", err)
		}
		stats := statsRec.(*temple.GlobalStats)
		stats.TotalIncenseValue += pointsGained
		stats.TotalMerit += meritGained
		stats.TotalBurns++
		if err := tx.Update(pda.GlobalStatsAddress(), stats); err != nil {
			return err
		}
		if err := tx.Update(pda.IncenseTypeAddress(typeID), it); err != nil {
			return err
		}
		return users.Save(tx, st, inc, now, s.params)
	})
	if err != nil {
		return err
	}

	s.emit(events.New(events.IncenseBurned, map[string]interface{}{
		"owner":          owner.String(),
		"type_id":        typeID,
		"amount":         amount,
		"merit_gained":   meritGained,
		"incense_points": pointsGained,
	}))
	return nil
}
