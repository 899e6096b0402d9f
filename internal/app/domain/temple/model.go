// Package temple holds the deployment-wide records: the singleton temple
// configuration, the aggregate statistics and the per-type incense configs.
package temple

import (
	"github.com/solji-labs/solji-program-sub000/internal/app/domain/record"
	"github.com/solji-labs/solji-program-sub000/internal/pda"
)

// Config is the singleton deployment record. Created once by the admin and
// never destroyed.
type Config struct {
	Admin            pda.Address `json:"admin"`
	Treasury         pda.Address `json:"treasury"`
	IncenseTypeCount uint16      `json:"incense_type_count"`
	CreatedAt        int64       `json:"created_at"`
}

func (c *Config) Kind() record.Kind { return record.KindTempleConfig }

func (c *Config) Clone() record.Record {
	cp := *c
	return &cp
}

// GlobalStats accumulates deployment-wide totals. Every field is
// monotonically non-decreasing. TotalWithdrawn tracks funds the admin has
// moved out of the treasury.
type GlobalStats struct {
	TotalIncenseValue     uint64 `json:"total_incense_value"`
	TotalMerit            uint64 `json:"total_merit"`
	TotalDonationLamports uint64 `json:"total_donation_lamports"`
	TotalDraws            uint64 `json:"total_draws"`
	TotalWishes           uint64 `json:"total_wishes"`
	TotalBurns            uint64 `json:"total_burns"`
	TotalWithdrawn        uint64 `json:"total_withdrawn"`
}

func (s *GlobalStats) Kind() record.Kind { return record.KindGlobalStats }

func (s *GlobalStats) Clone() record.Record {
	cp := *s
	return &cp
}

// IncenseType is the admin-managed configuration of one incense type. Price
// and rewards only change through admin updates; the mint/burn counters move
// with user activity.
type IncenseType struct {
	TypeID        uint16 `json:"type_id"`
	Name          string `json:"name"`
	PriceLamports uint64 `json:"price_lamports"`
	KarmaReward   uint64 `json:"karma_reward"`
	IncenseValue  uint64 `json:"incense_value"`
	Purchasable   bool   `json:"purchasable"`
	MaxBuyPerTx   uint64 `json:"max_buy_per_tx"`
	Active        bool   `json:"active"`
	Rarity        string `json:"rarity"`
	URI           string `json:"uri"`
	TotalMinted   uint64 `json:"total_minted"`
	TotalBurned   uint64 `json:"total_burned"`
}

func (t *IncenseType) Kind() record.Kind { return record.KindIncenseType }

func (t *IncenseType) Clone() record.Record {
	cp := *t
	return &cp
}
