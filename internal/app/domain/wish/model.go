// Package wish holds published wishes, the per-user wish tower, tower NFT
// snapshots and wish likes.
package wish

import (
	"github.com/solji-labs/solji-program-sub000/internal/app/domain/record"
	"github.com/solji-labs/solji-program-sub000/internal/pda"
)

// Publish is one published wish, addressed by (author, seq). Content is
// immutable once created; only the like counter moves.
type Publish struct {
	Author      pda.Address `json:"author"`
	Seq         uint64      `json:"seq"`
	ContentHash [32]byte    `json:"content_hash"`
	IsAnonymous bool        `json:"is_anonymous"`
	Likes       uint64      `json:"likes"`
	CreatedAt   int64       `json:"created_at"`
}

func (p *Publish) Kind() record.Kind { return record.KindPublishWish }

func (p *Publish) Clone() record.Record {
	cp := *p
	return &cp
}

// Tower is the per-user append-only wish collection. Level is a step
// function of WishCount.
type Tower struct {
	Creator   pda.Address   `json:"creator"`
	WishIDs   []pda.Address `json:"wish_ids"`
	WishCount uint64        `json:"wish_count"`
	Level     uint64        `json:"level"`
	// SnapshotCount is the sequence counter for tower NFT snapshots.
	SnapshotCount uint64 `json:"snapshot_count"`
	CreatedAt     int64  `json:"created_at"`
}

func (t *Tower) Kind() record.Kind { return record.KindWishTower }

func (t *Tower) Clone() record.Record {
	cp := *t
	cp.WishIDs = append([]pda.Address(nil), t.WishIDs...)
	return &cp
}

// TowerNft is an immutable snapshot of the tower at mint time.
type TowerNft struct {
	Owner     pda.Address `json:"owner"`
	Seq       uint64      `json:"seq"`
	WishCount uint64      `json:"wish_count"`
	Level     uint64      `json:"level"`
	MintedAt  int64       `json:"minted_at"`
}

func (n *TowerNft) Kind() record.Kind { return record.KindWishTowerNft }

func (n *TowerNft) Clone() record.Record {
	cp := *n
	return &cp
}

// Like marks that a user likes a wish. Its existence is the like; cancelling
// removes the record.
type Like struct {
	Wish      pda.Address `json:"wish"`
	Liker     pda.Address `json:"liker"`
	CreatedAt int64       `json:"created_at"`
}

func (l *Like) Kind() record.Kind { return record.KindWishLike }

func (l *Like) Clone() record.Record {
	cp := *l
	return &cp
}

// LevelFor steps the tower level from the wish count: wishesPerLevel wishes
// fill one level, and the tower starts at level 1.
func LevelFor(wishCount, wishesPerLevel uint64) uint64 {
	if wishesPerLevel == 0 {
		return 1
	}
	return wishCount/wishesPerLevel + 1
}
