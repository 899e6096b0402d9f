// Package pda derives deterministic program addresses for every record kept by
// the temple program. Re-deriving the same namespace and parts always yields
// the same address; namespaces are chosen prefix-free so distinct logical
// entities cannot collide.
package pda

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strconv"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Address is a 32-byte account identifier.
type Address [32]byte

// ProgramID anchors every derivation; two programs with different IDs can
// never produce overlapping addresses from the same seeds.
var ProgramID = Address(sha256.Sum256([]byte("solji_temple_program_v1")))

const derivationMarker = "ProgramDerivedAddress"

// Record namespaces. These strings are part of the deployed storage layout
// and must never change.
const (
	NamespaceTempleConfig      = "temple_config_v1"
	NamespaceGlobalStats       = "global_stats_v1"
	NamespaceUserState         = "user_state_v1"
	NamespaceUserIncenseState  = "user_incense_state_v1"
	NamespaceUserDonationState = "user_donation_state_v1"
	NamespaceIncenseType       = "incense_type_v1"
	NamespaceMedalNft          = "medal_nft_v1"
	NamespaceWishTower         = "wish_tower_v1"
	NamespaceLotteryRecord     = "lottery_record_v1"
	NamespaceDonationRecord    = "donation_record_v1"
	NamespacePublishWish       = "publish_wish_v1"
	NamespaceWishTowerNft      = "wish_tower_nft_v1"
	NamespaceWishLike          = "wish_like_v1"
	NamespaceLeaderboard       = "leaderboard_v1"
)

// String renders the address in base58.
func (a Address) String() string { return base58.Encode(a[:]) }

// Bytes returns the raw 32 bytes.
func (a Address) Bytes() []byte { return a[:] }

// IsZero reports whether the address is the zero value.
func (a Address) IsZero() bool { return a == Address{} }

// FromBase58 parses a base58-encoded 32-byte address.
func FromBase58(s string) (Address, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("decode address: %w", err)
	}
	if len(raw) != 32 {
		return Address{}, fmt.Errorf("address must be 32 bytes, got %d", len(raw))
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// Derive computes the program address for a namespace and its ordered parts,
// walking the bump seed down from 255 until the candidate does not decode as a
// valid curve point. The bump is returned so callers can persist it.
func Derive(namespace string, parts ...[]byte) (Address, uint8) {
	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		h.Write([]byte(namespace))
		for _, p := range parts {
			h.Write(p)
		}
		h.Write([]byte{uint8(bump)})
		h.Write(ProgramID[:])
		h.Write([]byte(derivationMarker))

		var candidate Address
		copy(candidate[:], h.Sum(nil))
		if !onCurve(candidate) {
			return candidate, uint8(bump)
		}
	}
	// Unreachable in practice: the chance of 256 consecutive curve points is
	// negligible, and the derivation must stay total.
	panic(fmt.Sprintf("pda: no valid bump for namespace %q", namespace))
}

func onCurve(a Address) bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}

// SeqPart encodes a sequence number the way the deployed layout does: as its
// decimal string.
func SeqPart(n uint64) []byte {
	return []byte(strconv.FormatUint(n, 10))
}

// TypePart encodes an incense type id as two little-endian bytes.
func TypePart(id uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, id)
	return b
}

// Derivation helpers for each record family.

func TempleConfigAddress() Address {
	a, _ := Derive(NamespaceTempleConfig)
	return a
}

func GlobalStatsAddress() Address {
	a, _ := Derive(NamespaceGlobalStats)
	return a
}

func UserStateAddress(owner Address) Address {
	a, _ := Derive(NamespaceUserState, owner.Bytes())
	return a
}

func UserIncenseStateAddress(owner Address) Address {
	a, _ := Derive(NamespaceUserIncenseState, owner.Bytes())
	return a
}

func UserDonationStateAddress(owner Address) Address {
	a, _ := Derive(NamespaceUserDonationState, owner.Bytes())
	return a
}

func IncenseTypeAddress(typeID uint16) Address {
	a, _ := Derive(NamespaceIncenseType, TypePart(typeID))
	return a
}

func MedalNftAddress(owner Address) Address {
	a, _ := Derive(NamespaceMedalNft, owner.Bytes())
	return a
}

func WishTowerAddress(owner Address) Address {
	a, _ := Derive(NamespaceWishTower, owner.Bytes())
	return a
}

func LotteryRecordAddress(owner Address, seq uint64) Address {
	a, _ := Derive(NamespaceLotteryRecord, owner.Bytes(), SeqPart(seq))
	return a
}

func DonationRecordAddress(owner Address, seq uint64) Address {
	a, _ := Derive(NamespaceDonationRecord, owner.Bytes(), SeqPart(seq))
	return a
}

func PublishWishAddress(owner Address, seq uint64) Address {
	a, _ := Derive(NamespacePublishWish, owner.Bytes(), SeqPart(seq))
	return a
}

func WishTowerNftAddress(owner Address, seq uint64) Address {
	a, _ := Derive(NamespaceWishTowerNft, owner.Bytes(), SeqPart(seq))
	return a
}

func WishLikeAddress(wish Address, liker Address) Address {
	a, _ := Derive(NamespaceWishLike, wish.Bytes(), liker.Bytes())
	return a
}

func LeaderboardAddress(period string) Address {
	a, _ := Derive(NamespaceLeaderboard, []byte(period))
	return a
}
