// Package temple implements the admin instruction surface: deployment
// initialization, incense type management and treasury withdrawal.
package temple

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/solji-labs/solji-program-sub000/internal/app/domain/temple"
	"github.com/solji-labs/solji-program-sub000/internal/app/events"
	"github.com/solji-labs/solji-program-sub000/internal/app/metrics"
	"github.com/solji-labs/solji-program-sub000/internal/app/storage"
	"github.com/solji-labs/solji-program-sub000/internal/config"
	"github.com/solji-labs/solji-program-sub000/internal/pda"
	"github.com/solji-labs/solji-program-sub000/pkg/logger"
)

// Errors
var (
	ErrUnauthorized       = errors.New("caller is not the temple admin")
	ErrUnknownIncenseType = errors.New("unknown incense type")
)

// Service carries the admin operations.
type Service struct {
	ledger storage.Ledger
	params config.Params
	bus    *events.Bus
	log    *logger.Logger
	now    func() time.Time
}

// New constructs a temple service.
func New(ledger storage.Ledger, params config.Params, bus *events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("temple")
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

// Init creates the singleton temple config, the global stats record and the
// configured incense types. Fails with storage.ErrAlreadyExists on re-init.
func (s *Service) Init(ctx context.Context, admin, treasury pda.Address) error {
	now := s.now().UTC().Unix()
	err := s.ledger.Transact(ctx, func(tx storage.Tx) error {
		cfg := &temple.Config{
			Admin:     admin,
			Treasury:  treasury,
			CreatedAt: now,
		}
		if err := tx.Initialize(pda.GlobalStatsAddress(), &temple.GlobalStats{}); err != nil {
			return fmt.Errorf("init global stats: %w", err)
		}
		for _, tp := range s.params.IncenseTypes {
			if err := tx.Initialize(pda.IncenseTypeAddress(tp.TypeID), incenseTypeFromParams(tp)); err != nil {
				return fmt.Errorf("init incense type %d: %w", tp.TypeID, err)
			}
			cfg.IncenseTypeCount++
		}
		if err := tx.Initialize(pda.TempleConfigAddress(), cfg); err != nil {
			return fmt.Errorf("init temple config: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.WithField("admin", admin.String()).
		WithField("treasury", treasury.String()).
		Info("temple initialized")
	return nil
}

// InitIncenseType adds a new incense type. Admin only.
func (s *Service) InitIncenseType(ctx context.Context, caller pda.Address, tp config.IncenseTypeParams) error {
	return s.ledger.Transact(ctx, func(tx storage.Tx) error {
		cfg, err := s.requireAdmin(tx, caller)
		if err != nil {
			return err
		}
		if err := tx.Initialize(pda.IncenseTypeAddress(tp.TypeID), incenseTypeFromParams(tp)); err != nil {
			return fmt.Errorf("init incense type %d: %w", tp.TypeID, err)
		}
		cfg.IncenseTypeCount++
		return tx.Update(pda.TempleConfigAddress(), cfg)
	})
}

// IncenseTypeUpdate carries the admin-updatable fields. Nil means unchanged.
type IncenseTypeUpdate struct {
	Name          *string
	PriceLamports *uint64
	KarmaReward   *uint64
	IncenseValue  *uint64
	Purchasable   *bool
	MaxBuyPerTx   *uint64
	Active        *bool
}

// UpdateIncenseType applies an admin update to one type.
func (s *Service) UpdateIncenseType(ctx context.Context, caller pda.Address, typeID uint16, upd IncenseTypeUpdate) error {
	return s.ledger.Transact(ctx, func(tx storage.Tx) error {
		if _, err := s.requireAdmin(tx, caller); err != nil {
			return err
		}
		rec, err := tx.Fetch(pda.IncenseTypeAddress(typeID))
		if err != nil {
			return fmt.Errorf("%w: id %d", ErrUnknownIncenseType, typeID)
		}
		it := rec.(*temple.IncenseType)
		if upd.Name != nil {
			it.Name = *upd.Name
		}
		if upd.PriceLamports != nil {
			it.PriceLamports = *upd.PriceLamports
		}
		if upd.KarmaReward != nil {
			it.KarmaReward = *upd.KarmaReward
		}
		if upd.IncenseValue != nil {
			it.IncenseValue = *upd.IncenseValue
		}
		if upd.Purchasable != nil {
			it.Purchasable = *upd.Purchasable
		}
		if upd.MaxBuyPerTx != nil {
			it.MaxBuyPerTx = *upd.MaxBuyPerTx
		}
		if upd.Active != nil {
			it.Active = *upd.Active
		}
		return tx.Update(pda.IncenseTypeAddress(typeID), it)
	})
}

// UpdateNftURI changes the metadata URI of one incense type. Admin only.
func (s *Service) UpdateNftURI(ctx context.Context, caller pda.Address, typeID uint16, uri string) error {
	return s.ledger.Transact(ctx, func(tx storage.Tx) error {
		if _, err := s.requireAdmin(tx, caller); err != nil {
			return err
		}
		rec, err := tx.Fetch(pda.IncenseTypeAddress(typeID))
		if err != nil {
			return fmt.Errorf("%w: id %d", ErrUnknownIncenseType, typeID)
		}
		it := rec.(*temple.IncenseType)
		it.URI = uri
		return tx.Update(pda.IncenseTypeAddress(typeID), it)
	})
}

// Withdraw moves funds from the treasury to the admin. Admin only.
func (s *Service) Withdraw(ctx context.Context, caller pda.Address, lamports uint64) error {
	var treasury pda.Address
	err := s.ledger.Transact(ctx, func(tx storage.Tx) error {
		cfg, err := s.requireAdmin(tx, caller)
		if err != nil {
			return err
		}
		treasury = cfg.Treasury
		if err := tx.Debit(cfg.Treasury, lamports); err != nil {
			return fmt.Errorf("debit treasury: %w", err)
		}
		tx.Credit(caller, lamports)

		statsRec, err := tx.Fetch(pda.GlobalStatsAddress())
		if err != nil {
			return fmt.Errorf("fetch global stats: %w", err)
		}
		stats := statsRec.(*temple.GlobalStats)
		stats.TotalWithdrawn += lamports
		return tx.Update(pda.GlobalStatsAddress(), stats)
	})
	if err != nil {
		return err
	}
	s.emit(events.New(events.TempleWithdrawal, map[string]interface{}{
		"admin":    caller.String(),
		"treasury": treasury.String(),
		"lamports": lamports,
	}))
	return nil
}

// Config returns the committed temple config.
func (s *Service) Config(ctx context.Context) (*temple.Config, error) {
	rec, err := s.ledger.Get(ctx, pda.TempleConfigAddress())
	if err != nil {
		return nil, fmt.Errorf("fetch temple config: %w", err)
	}
	return rec.(*temple.Config), nil
}

// Stats returns the committed global stats.
func (s *Service) Stats(ctx context.Context) (*temple.GlobalStats, error) {
	rec, err := s.ledger.Get(ctx, pda.GlobalStatsAddress())
	if err != nil {
		return nil, fmt.Errorf("fetch global stats: %w", err)
	}
	return rec.(*temple.GlobalStats), nil
}

// IncenseType returns one committed incense type config.
func (s *Service) IncenseType(ctx context.Context, typeID uint16) (*temple.IncenseType, error) {
	rec, err := s.ledger.Get(ctx, pda.IncenseTypeAddress(typeID))
	if err != nil {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownIncenseType, typeID)
	}
	return rec.(*temple.IncenseType), nil
}

func (s *Service) requireAdmin(tx storage.Tx, caller pda.Address) (*temple.Config, error) {
	rec, err := tx.Fetch(pda.TempleConfigAddress())
	if err != nil {
		return nil, fmt.Errorf("fetch temple config: %w", err)
	}
	cfg := rec.(*temple.Config)
	if cfg.Admin != caller {
		return nil, ErrUnauthorized
	}
	return cfg, nil
}

func incenseTypeFromParams(tp config.IncenseTypeParams) *temple.IncenseType {
	return &temple.IncenseType{
		TypeID:        tp.TypeID,
		Name:          tp.Name,
		PriceLamports: tp.PriceLamports,
		KarmaReward:   tp.KarmaReward,
		IncenseValue:  tp.IncenseValue,
		Purchasable:   tp.Purchasable,
		MaxBuyPerTx:   tp.MaxBuyPerTx,
		Active:        tp.Active,
		Rarity:        tp.Rarity,
	}
}
