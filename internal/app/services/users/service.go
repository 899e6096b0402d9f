// Package users manages the per-user record pair. Both records are created
// together, either through the explicit init instruction or lazily on the
// first user-facing call.
package users

import (
	"context"
	"fmt"
	"time"

	"github.com/solji-labs/solji-program-sub000/internal/app/domain/user"
	"github.com/solji-labs/solji-program-sub000/internal/app/storage"
	"github.com/solji-labs/solji-program-sub000/internal/config"
	"github.com/solji-labs/solji-program-sub000/internal/pda"
	"github.com/solji-labs/solji-program-sub000/pkg/logger"
)

// Service handles user initialization and reads.
type Service struct {
	ledger storage.Ledger
	params config.Params
	log    *logger.Logger
	now    func() time.Time
}

// New constructs a users service.
func New(ledger storage.Ledger, params config.Params, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{ledger: ledger, params: params, log: log, now: time.Now}
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(now func() time.Time) { s.now = now }

// Init explicitly creates the user's record pair. Fails with
// storage.ErrAlreadyExists when the user is already initialized.
func (s *Service) Init(ctx context.Context, owner pda.Address) error {
	now := s.now().UTC().Unix()
	err := s.ledger.Transact(ctx, func(tx storage.Tx) error {
		stateAddr := pda.UserStateAddress(owner)
		if err := tx.Initialize(stateAddr, newState(owner, now, s.params)); err != nil {
			return fmt.Errorf("init user state: %w", err)
		}
		incenseAddr := pda.UserIncenseStateAddress(owner)
		if err := tx.Initialize(incenseAddr, newIncenseState(owner, s.params)); err != nil {
			return fmt.Errorf("init user incense state: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.WithField("owner", owner.String()).Info("user initialized")
	return nil
}

// Get returns the committed record pair.
func (s *Service) Get(ctx context.Context, owner pda.Address) (*user.State, *user.IncenseState, error) {
	rec, err := s.ledger.Get(ctx, pda.UserStateAddress(owner))
	if err != nil {
		return nil, nil, fmt.Errorf("fetch user state: %w", err)
	}
	incRec, err := s.ledger.Get(ctx, pda.UserIncenseStateAddress(owner))
	if err != nil {
		return nil, nil, fmt.Errorf("fetch user incense state: %w", err)
	}
	return rec.(*user.State), incRec.(*user.IncenseState), nil
}

func newState(owner pda.Address, now int64, _ config.Params) *user.State {
	return &user.State{Owner: owner, CreatedAt: now, LastActionAt: now}
}

func newIncenseState(owner pda.Address, params config.Params) *user.IncenseState {
	return &user.IncenseState{
		Owner: owner,
		Title: user.TitleFor(0, params.Titles),
	}
}

// Ensure loads the user's record pair inside a transaction, creating both
// lazily when absent. Callers must persist mutations with Save.
func Ensure(tx storage.Tx, owner pda.Address, now int64, params config.Params) (*user.State, *user.IncenseState, error) {
	stateAddr := pda.UserStateAddress(owner)
	var st *user.State
	if rec := tx.FetchOrNil(stateAddr); rec != nil {
		st = rec.(*user.State)
	} else {
		st = newState(owner, now, params)
		if err := tx.Initialize(stateAddr, st); err != nil {
			return nil, nil, fmt.Errorf("lazy init user state: %w", err)
		}
	}

	incenseAddr := pda.UserIncenseStateAddress(owner)
	var inc *user.IncenseState
	if rec := tx.FetchOrNil(incenseAddr); rec != nil {
		inc = rec.(*user.IncenseState)
	} else {
		inc = newIncenseState(owner, params)
		if err := tx.Initialize(incenseAddr, inc); err != nil {
			return nil, nil, fmt.Errorf("lazy init user incense state: %w", err)
		}
	}
	return st, inc, nil
}

// Save persists the record pair mutated by an instruction and refreshes the
// title from merit. The title write is skipped when unchanged, but the
// computation is total either way.
func Save(tx storage.Tx, st *user.State, inc *user.IncenseState, now int64, params config.Params) error {
	st.LastActionAt = now
	if title := user.TitleFor(inc.Merit, params.Titles); title != inc.Title {
		inc.Title = title
	}
	if err := tx.Update(pda.UserStateAddress(st.Owner), st); err != nil {
		return fmt.Errorf("save user state: %w", err)
	}
	if err := tx.Update(pda.UserIncenseStateAddress(inc.Owner), inc); err != nil {
		return fmt.Errorf("save user incense state: %w", err)
	}
	return nil
}
