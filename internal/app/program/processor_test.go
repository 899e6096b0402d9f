package program

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	fortunedom "github.com/solji-labs/solji-program-sub000/internal/app/domain/fortune"
	donationsvc "github.com/solji-labs/solji-program-sub000/internal/app/services/donation"
	fortunesvc "github.com/solji-labs/solji-program-sub000/internal/app/services/fortune"
	incensesvc "github.com/solji-labs/solji-program-sub000/internal/app/services/incense"
	leaderboardsvc "github.com/solji-labs/solji-program-sub000/internal/app/services/leaderboard"
	stakingsvc "github.com/solji-labs/solji-program-sub000/internal/app/services/staking"
	templesvc "github.com/solji-labs/solji-program-sub000/internal/app/services/temple"
	userssvc "github.com/solji-labs/solji-program-sub000/internal/app/services/users"
	wishsvc "github.com/solji-labs/solji-program-sub000/internal/app/services/wish"
	"github.com/solji-labs/solji-program-sub000/internal/app/storage/memory"
	"github.com/solji-labs/solji-program-sub000/internal/config"
	"github.com/solji-labs/solji-program-sub000/internal/pda"
)

func addr(tag string) pda.Address {
	return pda.Address(sha256.Sum256([]byte(tag)))
}

func newProcessor(t *testing.T) (*memory.Ledger, *Processor) {
	t.Helper()
	ledger := memory.New()
	params := config.Default()
	svc := Services{
		Temple:      templesvc.New(ledger, params, nil, nil),
		Users:       userssvc.New(ledger, params, nil),
		Incense:     incensesvc.New(ledger, params, nil, nil),
		Donation:    donationsvc.New(ledger, params, nil, nil),
		Fortune:     fortunesvc.New(ledger, params, fortunesvc.FixedSource(0.5), nil, nil),
		Wish:        wishsvc.New(ledger, params, nil, nil),
		Staking:     stakingsvc.New(ledger, params, nil),
		Leaderboard: leaderboardsvc.New(ledger, params, nil, nil),
	}
	return ledger, New(svc, nil)
}

func exec(t *testing.T, p *Processor, name, args string) interface{} {
	t.Helper()
	result, err := p.Execute(context.Background(), name, json.RawMessage(args))
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return result
}

func TestExecuteFullFlow(t *testing.T) {
	ledger, p := newProcessor(t)
	admin, treasury, pilgrim := addr("admin"), addr("treasury"), addr("pilgrim")
	ledger.Fund(pilgrim, 10*config.LamportsPerSol)

	exec(t, p, InitTemple, fmt.Sprintf(`{"admin":%q,"treasury":%q}`, admin, treasury))
	exec(t, p, InitUser, fmt.Sprintf(`{"owner":%q}`, pilgrim))
	exec(t, p, BuyIncense, fmt.Sprintf(`{"owner":%q,"orders":[{"type_id":1,"quantity":5}]}`, pilgrim))
	exec(t, p, BurnIncense, fmt.Sprintf(`{"owner":%q,"type_id":1,"amount":5}`, pilgrim))
	exec(t, p, DonateFund, fmt.Sprintf(`{"owner":%q,"lamports":%d}`, pilgrim, config.LamportsPerSol/20))

	result := exec(t, p, DrawFortune, fmt.Sprintf(`{"owner":%q,"use_merit":false}`, pilgrim))
	if rec, ok := result.(*fortunedom.Record); !ok || rec.Seq != 0 {
		t.Errorf("draw result = %#v", result)
	}

	wishResult := exec(t, p, CreateWish, fmt.Sprintf(`{"author":%q,"content":"peace"}`, pilgrim))
	if wishResult == nil {
		t.Error("create wish returned no record")
	}
	exec(t, p, UpdateLeaderboard, fmt.Sprintf(`{"owner":%q,"period":"all_time"}`, pilgrim))
	exec(t, p, StakeMedalNft, fmt.Sprintf(`{"owner":%q}`, pilgrim))

	unstake := exec(t, p, UnstakeMedalNft, fmt.Sprintf(`{"owner":%q}`, pilgrim))
	if m, ok := unstake.(map[string]bool); !ok || m["rewarded"] {
		t.Errorf("immediate unstake result = %#v", unstake)
	}
}

func TestExecuteUnknownInstruction(t *testing.T) {
	_, p := newProcessor(t)
	if _, err := p.Execute(context.Background(), "mintMoon", json.RawMessage(`{}`)); !errors.Is(err, ErrUnknownInstruction) {
		t.Fatalf("got %v, want ErrUnknownInstruction", err)
	}
}

func TestExecuteBadArguments(t *testing.T) {
	_, p := newProcessor(t)

	cases := []struct {
		name string
		args string
	}{
		{InitUser, `{"owner":"not-an-address"}`},
		{InitUser, `{broken`},
		{CreateWish, fmt.Sprintf(`{"author":%q}`, addr("a"))},
		{CreateWish, fmt.Sprintf(`{"author":%q,"content_hash":"abcd"}`, addr("a"))},
	}
	for _, tc := range cases {
		if _, err := p.Execute(context.Background(), tc.name, json.RawMessage(tc.args)); !errors.Is(err, ErrBadArguments) {
			t.Errorf("%s %s: got %v, want ErrBadArguments", tc.name, tc.args, err)
		}
	}
}

func TestExecutePropagatesServiceErrors(t *testing.T) {
	ledger, p := newProcessor(t)
	exec(t, p, InitTemple, fmt.Sprintf(`{"admin":%q,"treasury":%q}`, addr("admin"), addr("treasury")))

	poor := addr("poor")
	ledger.Fund(poor, 1)
	_, err := p.Execute(context.Background(), BuyIncense,
		json.RawMessage(fmt.Sprintf(`{"owner":%q,"orders":[{"type_id":1,"quantity":1}]}`, poor)))
	if err == nil {
		t.Fatal("underfunded buy should fail")
	}
}
