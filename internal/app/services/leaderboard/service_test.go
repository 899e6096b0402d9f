package leaderboard

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"testing"

	boarddom "github.com/solji-labs/solji-program-sub000/internal/app/domain/leaderboard"
	incensesvc "github.com/solji-labs/solji-program-sub000/internal/app/services/incense"
	templesvc "github.com/solji-labs/solji-program-sub000/internal/app/services/temple"
	"github.com/solji-labs/solji-program-sub000/internal/app/storage/memory"
	"github.com/solji-labs/solji-program-sub000/internal/config"
	"github.com/solji-labs/solji-program-sub000/internal/pda"
)

func addr(tag string) pda.Address {
	return pda.Address(sha256.Sum256([]byte(tag)))
}

func newHarness(t *testing.T, capacity int) (*memory.Ledger, *Service, *incensesvc.Service) {
	t.Helper()
	ledger := memory.New()
	params := config.Default()
	params.Leaderboard.Capacity = capacity
	if err := templesvc.New(ledger, params, nil, nil).Init(context.Background(), addr("admin"), addr("treasury")); err != nil {
		t.Fatalf("init temple: %v", err)
	}
	return ledger, New(ledger, params, nil, nil), incensesvc.New(ledger, params, nil, nil)
}

// earn gives the user incense points by buying and burning n common sticks.
func earn(t *testing.T, ledger *memory.Ledger, inc *incensesvc.Service, owner pda.Address, n uint64) {
	t.Helper()
	ledger.Fund(owner, 100*config.LamportsPerSol)
	if err := inc.Buy(context.Background(), owner, []incensesvc.Order{{TypeID: 1, Quantity: n}}); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if err := inc.Burn(context.Background(), owner, 1, n); err != nil {
		t.Fatalf("burn: %v", err)
	}
}

func TestUpdateRejectsUnknownPeriod(t *testing.T) {
	_, svc, _ := newHarness(t, 10)
	if err := svc.Update(context.Background(), addr("user"), "hourly"); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("got %v, want ErrInvalidPeriod", err)
	}
}

func TestUpdateRejectsUnknownUser(t *testing.T) {
	_, svc, _ := newHarness(t, 10)
	if err := svc.Update(context.Background(), addr("ghost"), boarddom.PeriodDaily); !errors.Is(err, ErrUserNotRanked) {
		t.Fatalf("got %v, want ErrUserNotRanked", err)
	}
}

func TestUpdateRanksByIncensePoints(t *testing.T) {
	ledger, svc, inc := newHarness(t, 10)

	earn(t, ledger, inc, addr("small"), 1)
	earn(t, ledger, inc, addr("big"), 5)
	for _, user := range []string{"small", "big"} {
		if err := svc.Update(context.Background(), addr(user), boarddom.PeriodAllTime); err != nil {
			t.Fatalf("update %s: %v", user, err)
		}
	}

	board, err := svc.Board(context.Background(), boarddom.PeriodAllTime)
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	if board.Rank(addr("big")) != 1 || board.Rank(addr("small")) != 2 {
		t.Errorf("unexpected ranking: %+v", board.Entries)
	}

	// A refresh after more activity moves the entry, not duplicates it.
	earn(t, ledger, inc, addr("small"), 9)
	if err := svc.Update(context.Background(), addr("small"), boarddom.PeriodAllTime); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	board, _ = svc.Board(context.Background(), boarddom.PeriodAllTime)
	if len(board.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(board.Entries))
	}
	if board.Rank(addr("small")) != 1 {
		t.Errorf("refreshed score not applied: %+v", board.Entries)
	}
}

func TestUpdateEvictsBeyondCapacity(t *testing.T) {
	ledger, svc, inc := newHarness(t, 3)

	for i := 1; i <= 4; i++ {
		user := addr(fmt.Sprintf("user-%d", i))
		earn(t, ledger, inc, user, uint64(i))
		if err := svc.Update(context.Background(), user, boarddom.PeriodWeekly); err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	board, err := svc.Board(context.Background(), boarddom.PeriodWeekly)
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	if len(board.Entries) != 3 {
		t.Fatalf("entries = %d, want capacity 3", len(board.Entries))
	}
	if board.Rank(addr("user-1")) != 0 {
		t.Error("lowest scorer not evicted")
	}
	if board.Rank(addr("user-4")) != 1 {
		t.Errorf("top scorer rank = %d", board.Rank(addr("user-4")))
	}
}

func TestBoardEmptyBeforeFirstUpdate(t *testing.T) {
	_, svc, _ := newHarness(t, 10)
	board, err := svc.Board(context.Background(), boarddom.PeriodDaily)
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	if len(board.Entries) != 0 || board.Period != boarddom.PeriodDaily {
		t.Errorf("board = %+v", board)
	}
}
