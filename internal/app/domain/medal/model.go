// Package medal holds the donation medal NFT record and its staking state.
package medal

import (
	"github.com/solji-labs/solji-program-sub000/internal/app/domain/record"
	"github.com/solji-labs/solji-program-sub000/internal/pda"
)

// Nft is the per-user donation medal. StakedAt is 0 while unstaked and the
// stake start time while staked; there is no other state.
type Nft struct {
	Owner    pda.Address `json:"owner"`
	Level    uint8       `json:"level"`
	StakedAt int64       `json:"staked_at"`
	MintedAt int64       `json:"minted_at"`
}

func (n *Nft) Kind() record.Kind { return record.KindMedalNft }

func (n *Nft) Clone() record.Record {
	cp := *n
	return &cp
}

// Staked reports whether the medal is currently staked.
func (n *Nft) Staked() bool { return n.StakedAt != 0 }
