// Package record defines the closed set of ledger record kinds. Every typed
// record implements Record; boundaries switch exhaustively over Kind instead
// of passing loosely-typed maps around.
package record

// Kind tags a record variant.
type Kind string

const (
	KindTempleConfig      Kind = "temple_config"
	KindGlobalStats       Kind = "global_stats"
	KindIncenseType       Kind = "incense_type"
	KindUserState         Kind = "user_state"
	KindUserIncenseState  Kind = "user_incense_state"
	KindUserDonationState Kind = "user_donation_state"
	KindDonationRecord    Kind = "donation_record"
	KindMedalNft          Kind = "medal_nft"
	KindWishTower         Kind = "wish_tower"
	KindWishTowerNft      Kind = "wish_tower_nft"
	KindPublishWish       Kind = "publish_wish"
	KindWishLike          Kind = "wish_like"
	KindLotteryRecord     Kind = "lottery_record"
	KindLeaderboard       Kind = "leaderboard"
)

// Record is a typed ledger record. Clone must return a deep copy so staged
// transaction writes never alias committed state.
type Record interface {
	Kind() Kind
	Clone() Record
}
