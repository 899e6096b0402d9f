// Package config holds the tunable parameter tables of the temple program:
// title thresholds, incense types, donation tiers, fortune probabilities,
// tower leveling, daily limits and staking terms. Parameters load from a YAML
// file and fall back to the compiled-in defaults when no file is present.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LamportsPerSol is the smallest-unit scale used for all amounts.
const LamportsPerSol uint64 = 1_000_000_000

// TitleTier maps a merit threshold to a title name. Tiers are ascending.
type TitleTier struct {
	MinMerit uint64 `yaml:"min_merit"`
	Title    string `yaml:"title"`
}

// IncenseTypeParams seeds one incense type at temple initialization.
type IncenseTypeParams struct {
	TypeID        uint16 `yaml:"type_id"`
	Name          string `yaml:"name"`
	PriceLamports uint64 `yaml:"price_lamports"`
	KarmaReward   uint64 `yaml:"karma_reward"`
	IncenseValue  uint64 `yaml:"incense_value"`
	MaxBuyPerTx   uint64 `yaml:"max_buy_per_tx"`
	Rarity        string `yaml:"rarity"`
	Purchasable   bool   `yaml:"purchasable"`
	Active        bool   `yaml:"active"`
}

// DonationTier is one ascending donation level. Rewards are granted once,
// when the level is first attained.
type DonationTier struct {
	Level         uint8  `yaml:"level"`
	MinLamports   uint64 `yaml:"min_lamports"`
	MeritReward   uint64 `yaml:"merit_reward"`
	IncenseReward uint64 `yaml:"incense_reward"`
}

// FortuneBucket is one weighted outcome bucket. Weights are percent and each
// table must sum to exactly 100.
type FortuneBucket struct {
	Outcome string `yaml:"outcome"`
	Weight  uint32 `yaml:"weight"`
}

// FortuneParams configures fortune drawing.
type FortuneParams struct {
	// Regular is the standard probability table.
	Regular []FortuneBucket `yaml:"regular"`
	// Enhanced applies when the drawer holds a Buddha NFT.
	Enhanced []FortuneBucket `yaml:"enhanced"`
	// GreatBadLuckSplit expands the lumped greatBadLuck bucket into its three
	// sub-outcomes. Weights are relative, not percent.
	GreatBadLuckSplit []FortuneBucket `yaml:"great_bad_luck_split"`
	// MeritCost is debited when drawing via the merit path.
	MeritCost uint64 `yaml:"merit_cost"`
	// FreeDrawsPerDay caps the free path.
	FreeDrawsPerDay uint64 `yaml:"free_draws_per_day"`
	// FreeDrawMeritBonus is granted on each free draw.
	FreeDrawMeritBonus uint64 `yaml:"free_draw_merit_bonus"`
}

// TowerParams configures wish tower leveling.
type TowerParams struct {
	// WishesPerLevel steps the tower level: level = count/WishesPerLevel + 1.
	WishesPerLevel uint64 `yaml:"wishes_per_level"`
	// DedupTowerSnapshots makes repeated mintWishTowerNft calls fail instead
	// of producing independent snapshots.
	DedupTowerSnapshots bool `yaml:"dedup_tower_snapshots"`
}

// DailyLimits caps per-user daily counters. Zero means unlimited.
type DailyLimits struct {
	BurnsPerDay uint64 `yaml:"burns_per_day"`
}

// StakingParams configures medal NFT staking.
type StakingParams struct {
	LockSeconds int64  `yaml:"lock_seconds"`
	MeritReward uint64 `yaml:"merit_reward"`
}

// LeaderboardParams bounds the ranked lists.
type LeaderboardParams struct {
	Capacity int `yaml:"capacity"`
}

// Params is the full parameter set.
type Params struct {
	Titles                  []TitleTier         `yaml:"titles"`
	IncenseTypes            []IncenseTypeParams `yaml:"incense_types"`
	DonationTiers           []DonationTier      `yaml:"donation_tiers"`
	BuddhaThresholdLamports uint64              `yaml:"buddha_threshold_lamports"`
	Fortune                 FortuneParams       `yaml:"fortune"`
	Tower                   TowerParams         `yaml:"tower"`
	Limits                  DailyLimits         `yaml:"limits"`
	Staking                 StakingParams       `yaml:"staking"`
	Leaderboard             LeaderboardParams   `yaml:"leaderboard"`
}

// Default returns the compiled-in parameter set.
func Default() Params {
	return Params{
		Titles: []TitleTier{
			{MinMerit: 0, Title: "Pilgrim"},
			{MinMerit: 100, Title: "Disciple"},
			{MinMerit: 1_000, Title: "Protector"},
			{MinMerit: 10_000, Title: "Patron"},
			{MinMerit: 100_000, Title: "Abbot"},
		},
		IncenseTypes: []IncenseTypeParams{
			{TypeID: 1, Name: "Incense", PriceLamports: LamportsPerSol / 100, KarmaReward: 10, IncenseValue: 10, MaxBuyPerTx: 100, Rarity: "common", Purchasable: true, Active: true},
			{TypeID: 2, Name: "Sandalwood Incense", PriceLamports: LamportsPerSol / 20, KarmaReward: 55, IncenseValue: 55, MaxBuyPerTx: 50, Rarity: "rare", Purchasable: true, Active: true},
			{TypeID: 3, Name: "Dragon Incense", PriceLamports: LamportsPerSol / 4, KarmaReward: 300, IncenseValue: 300, MaxBuyPerTx: 20, Rarity: "epic", Purchasable: true, Active: true},
			{TypeID: 4, Name: "Supreme Dragon Incense", PriceLamports: LamportsPerSol, KarmaReward: 1_300, IncenseValue: 1_300, MaxBuyPerTx: 5, Rarity: "legendary", Purchasable: true, Active: true},
		},
		DonationTiers: []DonationTier{
			{Level: 1, MinLamports: LamportsPerSol / 20, MeritReward: 65, IncenseReward: 1_200},
			{Level: 2, MinLamports: LamportsPerSol / 5, MeritReward: 260, IncenseReward: 4_800},
			{Level: 3, MinLamports: LamportsPerSol / 2, MeritReward: 650, IncenseReward: 12_000},
			{Level: 4, MinLamports: LamportsPerSol, MeritReward: 1_300, IncenseReward: 24_000},
			{Level: 5, MinLamports: 5 * LamportsPerSol, MeritReward: 6_500, IncenseReward: 120_000},
		},
		BuddhaThresholdLamports: 5 * LamportsPerSol,
		Fortune: FortuneParams{
			Regular: []FortuneBucket{
				{Outcome: "greatLuck", Weight: 10},
				{Outcome: "goodLuck", Weight: 25},
				{Outcome: "neutral", Weight: 30},
				{Outcome: "badLuck", Weight: 20},
				{Outcome: "greatBadLuck", Weight: 15},
			},
			Enhanced: []FortuneBucket{
				{Outcome: "greatLuck", Weight: 20},
				{Outcome: "goodLuck", Weight: 35},
				{Outcome: "neutral", Weight: 25},
				{Outcome: "badLuck", Weight: 12},
				{Outcome: "greatBadLuck", Weight: 8},
			},
			GreatBadLuckSplit: []FortuneBucket{
				{Outcome: "lateFortune", Weight: 1},
				{Outcome: "misfortune", Weight: 1},
				{Outcome: "greatMisfortune", Weight: 1},
			},
			MeritCost:          50,
			FreeDrawsPerDay:    1,
			FreeDrawMeritBonus: 5,
		},
		Tower: TowerParams{
			WishesPerLevel:      10,
			DedupTowerSnapshots: false,
		},
		Limits: DailyLimits{
			BurnsPerDay: 10,
		},
		Staking: StakingParams{
			LockSeconds: 7 * 24 * 60 * 60,
			MeritReward: 70,
		},
		Leaderboard: LeaderboardParams{
			Capacity: 100,
		},
	}
}

// Load reads parameters from a YAML file, validating the result.
func Load(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("read params: %w", err)
	}

	params := Default()
	if err := yaml.Unmarshal(data, &params); err != nil {
		return Params{}, fmt.Errorf("parse params: %w", err)
	}
	if err := params.Validate(); err != nil {
		return Params{}, err
	}
	return params, nil
}

// LoadOrDefault loads parameters from path, falling back to the defaults when
// the file does not exist.
func LoadOrDefault(path string) Params {
	params, err := Load(path)
	if err != nil {
		return Default()
	}
	return params
}

// Validate checks structural invariants of the parameter set.
func (p Params) Validate() error {
	if len(p.Titles) == 0 || p.Titles[0].MinMerit != 0 {
		return fmt.Errorf("titles must start at merit 0")
	}
	for i := 1; i < len(p.Titles); i++ {
		if p.Titles[i].MinMerit <= p.Titles[i-1].MinMerit {
			return fmt.Errorf("title thresholds must be strictly ascending")
		}
	}
	for i := 1; i < len(p.DonationTiers); i++ {
		if p.DonationTiers[i].MinLamports <= p.DonationTiers[i-1].MinLamports {
			return fmt.Errorf("donation tiers must be strictly ascending")
		}
	}
	for _, table := range [][]FortuneBucket{p.Fortune.Regular, p.Fortune.Enhanced} {
		var sum uint32
		for _, b := range table {
			sum += b.Weight
		}
		if sum != 100 {
			return fmt.Errorf("fortune buckets must sum to 100, got %d", sum)
		}
	}
	var splitSum uint32
	for _, b := range p.Fortune.GreatBadLuckSplit {
		splitSum += b.Weight
	}
	if len(p.Fortune.GreatBadLuckSplit) == 0 || splitSum == 0 {
		return fmt.Errorf("great bad luck split must carry at least one weighted outcome")
	}
	if p.Tower.WishesPerLevel == 0 {
		return fmt.Errorf("wishes per level must be positive")
	}
	if p.Leaderboard.Capacity <= 0 {
		return fmt.Errorf("leaderboard capacity must be positive")
	}
	return nil
}
