package staking

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/solji-labs/solji-program-sub000/internal/app/domain/user"
	donationsvc "github.com/solji-labs/solji-program-sub000/internal/app/services/donation"
	templesvc "github.com/solji-labs/solji-program-sub000/internal/app/services/temple"
	"github.com/solji-labs/solji-program-sub000/internal/app/storage/memory"
	"github.com/solji-labs/solji-program-sub000/internal/config"
	"github.com/solji-labs/solji-program-sub000/internal/pda"
)

func addr(tag string) pda.Address {
	return pda.Address(sha256.Sum256([]byte(tag)))
}

// newHarness initializes the temple and mints a medal for holder via a
// level-1 donation.
func newHarness(t *testing.T, holder pda.Address) (*memory.Ledger, *Service) {
	t.Helper()
	ledger := memory.New()
	params := config.Default()
	if err := templesvc.New(ledger, params, nil, nil).Init(context.Background(), addr("admin"), addr("treasury")); err != nil {
		t.Fatalf("init temple: %v", err)
	}
	ledger.Fund(holder, config.LamportsPerSol)
	if err := donationsvc.New(ledger, params, nil, nil).Donate(context.Background(), holder, config.LamportsPerSol/20); err != nil {
		t.Fatalf("mint medal: %v", err)
	}
	return ledger, New(ledger, params, nil)
}

func merit(t *testing.T, ledger *memory.Ledger, owner pda.Address) uint64 {
	t.Helper()
	rec, err := ledger.Get(context.Background(), pda.UserIncenseStateAddress(owner))
	if err != nil {
		t.Fatalf("fetch incense state: %v", err)
	}
	return rec.(*user.IncenseState).Merit
}

func TestStakeWithoutMedal(t *testing.T) {
	ledger := memory.New()
	params := config.Default()
	if err := templesvc.New(ledger, params, nil, nil).Init(context.Background(), addr("admin"), addr("treasury")); err != nil {
		t.Fatalf("init temple: %v", err)
	}
	svc := New(ledger, params, nil)

	if err := svc.Stake(context.Background(), addr("nobody")); !errors.Is(err, ErrNoMedal) {
		t.Fatalf("got %v, want ErrNoMedal", err)
	}
}

func TestStakeTwiceFails(t *testing.T) {
	holder := addr("holder")
	_, svc := newHarness(t, holder)

	if err := svc.Stake(context.Background(), holder); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := svc.Stake(context.Background(), holder); !errors.Is(err, ErrMedalAlreadyStaked) {
		t.Fatalf("got %v, want ErrMedalAlreadyStaked", err)
	}
}

func TestUnstakeTwiceFails(t *testing.T) {
	holder := addr("holder")
	_, svc := newHarness(t, holder)

	if err := svc.Stake(context.Background(), holder); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if _, err := svc.Unstake(context.Background(), holder); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if _, err := svc.Unstake(context.Background(), holder); !errors.Is(err, ErrMedalNotStaked) {
		t.Fatalf("got %v, want ErrMedalNotStaked", err)
	}
}

func TestEarlyUnstakeGrantsNothing(t *testing.T) {
	holder := addr("holder")
	ledger, svc := newHarness(t, holder)
	before := merit(t, ledger, holder)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return start })
	if err := svc.Stake(context.Background(), holder); err != nil {
		t.Fatalf("stake: %v", err)
	}

	// One second short of the lock period.
	svc.WithClock(func() time.Time { return start.Add(7*24*time.Hour - time.Second) })
	rewarded, err := svc.Unstake(context.Background(), holder)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if rewarded {
		t.Error("reward granted below the lock period")
	}
	if got := merit(t, ledger, holder); got != before {
		t.Errorf("merit changed: %d -> %d", before, got)
	}

	nft, err := svc.Medal(context.Background(), holder)
	if err != nil {
		t.Fatalf("medal: %v", err)
	}
	if nft.Staked() {
		t.Error("stake timestamp not cleared")
	}
}

func TestUnstakeAfterLockGrantsRewardOnce(t *testing.T) {
	holder := addr("holder")
	ledger, svc := newHarness(t, holder)
	params := config.Default()
	before := merit(t, ledger, holder)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return start })
	if err := svc.Stake(context.Background(), holder); err != nil {
		t.Fatalf("stake: %v", err)
	}

	svc.WithClock(func() time.Time { return start.Add(7 * 24 * time.Hour) })
	rewarded, err := svc.Unstake(context.Background(), holder)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if !rewarded {
		t.Fatal("reward not granted at the lock boundary")
	}
	if got := merit(t, ledger, holder); got != before+params.Staking.MeritReward {
		t.Errorf("merit = %d, want %d", got, before+params.Staking.MeritReward)
	}

	// A fresh cycle earns again; the previous cycle never double-grants.
	if err := svc.Stake(context.Background(), holder); err != nil {
		t.Fatalf("restake: %v", err)
	}
	svc.WithClock(func() time.Time { return start.Add(7*24*time.Hour + time.Minute) })
	rewarded, err = svc.Unstake(context.Background(), holder)
	if err != nil {
		t.Fatalf("second unstake: %v", err)
	}
	if rewarded {
		t.Error("second cycle rewarded without a full lock period")
	}
}
