package temple

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/solji-labs/solji-program-sub000/internal/app/storage"
	"github.com/solji-labs/solji-program-sub000/internal/app/storage/memory"
	"github.com/solji-labs/solji-program-sub000/internal/config"
	"github.com/solji-labs/solji-program-sub000/internal/pda"
)

func addr(tag string) pda.Address {
	return pda.Address(sha256.Sum256([]byte(tag)))
}

func newHarness(t *testing.T) (*memory.Ledger, *Service) {
	t.Helper()
	ledger := memory.New()
	svc := New(ledger, config.Default(), nil, nil)
	if err := svc.Init(context.Background(), addr("admin"), addr("treasury")); err != nil {
		t.Fatalf("init temple: %v", err)
	}
	return ledger, svc
}

func TestInitIsSingleton(t *testing.T) {
	_, svc := newHarness(t)
	if err := svc.Init(context.Background(), addr("admin"), addr("treasury")); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("re-init: got %v, want ErrAlreadyExists", err)
	}
}

func TestInitSeedsIncenseTypes(t *testing.T) {
	_, svc := newHarness(t)

	cfg, err := svc.Config(context.Background())
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	want := uint16(len(config.Default().IncenseTypes))
	if cfg.IncenseTypeCount != want {
		t.Errorf("incense type count = %d, want %d", cfg.IncenseTypeCount, want)
	}

	it, err := svc.IncenseType(context.Background(), 1)
	if err != nil {
		t.Fatalf("incense type: %v", err)
	}
	if !it.Active || !it.Purchasable || it.PriceLamports == 0 {
		t.Errorf("seeded type = %+v", it)
	}
}

func TestAdminOnlyOperations(t *testing.T) {
	_, svc := newHarness(t)
	stranger := addr("stranger")

	name := "Moon Incense"
	cases := []struct {
		name string
		call func() error
	}{
		{"init type", func() error {
			return svc.InitIncenseType(context.Background(), stranger, config.IncenseTypeParams{TypeID: 9})
		}},
		{"update type", func() error {
			return svc.UpdateIncenseType(context.Background(), stranger, 1, IncenseTypeUpdate{Name: &name})
		}},
		{"update uri", func() error {
			return svc.UpdateNftURI(context.Background(), stranger, 1, "ipfs://x")
		}},
		{"withdraw", func() error {
			return svc.Withdraw(context.Background(), stranger, 1)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("got %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestUpdateIncenseTypePartialFields(t *testing.T) {
	_, svc := newHarness(t)
	admin := addr("admin")

	price := uint64(42)
	off := false
	err := svc.UpdateIncenseType(context.Background(), admin, 1, IncenseTypeUpdate{
		PriceLamports: &price,
		Purchasable:   &off,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	it, err := svc.IncenseType(context.Background(), 1)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if it.PriceLamports != 42 || it.Purchasable {
		t.Errorf("updated fields not applied: %+v", it)
	}
	if it.Name != "Incense" || !it.Active {
		t.Errorf("untouched fields changed: %+v", it)
	}

	if err := svc.UpdateIncenseType(context.Background(), admin, 99, IncenseTypeUpdate{}); !errors.Is(err, ErrUnknownIncenseType) {
		t.Fatalf("unknown type: got %v, want ErrUnknownIncenseType", err)
	}
}

func TestWithdrawMovesTreasuryToAdmin(t *testing.T) {
	ledger, svc := newHarness(t)
	admin, treasury := addr("admin"), addr("treasury")
	ledger.Fund(treasury, 1_000)

	if err := svc.Withdraw(context.Background(), admin, 400); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := ledger.BalanceOf(context.Background(), treasury); got != 600 {
		t.Errorf("treasury = %d, want 600", got)
	}
	if got := ledger.BalanceOf(context.Background(), admin); got != 400 {
		t.Errorf("admin = %d, want 400", got)
	}

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalWithdrawn != 400 {
		t.Errorf("total withdrawn = %d", stats.TotalWithdrawn)
	}

	if err := svc.Withdraw(context.Background(), admin, 10_000); !errors.Is(err, storage.ErrInsufficientFunds) {
		t.Fatalf("overdraw: got %v, want ErrInsufficientFunds", err)
	}
}
