// Package program exposes the instruction surface by name. Callers submit a
// named instruction with JSON arguments; the processor decodes them, routes
// to the owning service and records execution metrics.
package program

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/solji-labs/solji-program-sub000/internal/app/metrics"
	donationsvc "github.com/solji-labs/solji-program-sub000/internal/app/services/donation"
	fortunesvc "github.com/solji-labs/solji-program-sub000/internal/app/services/fortune"
	incensesvc "github.com/solji-labs/solji-program-sub000/internal/app/services/incense"
	leaderboardsvc "github.com/solji-labs/solji-program-sub000/internal/app/services/leaderboard"
	stakingsvc "github.com/solji-labs/solji-program-sub000/internal/app/services/staking"
	templesvc "github.com/solji-labs/solji-program-sub000/internal/app/services/temple"
	userssvc "github.com/solji-labs/solji-program-sub000/internal/app/services/users"
	wishsvc "github.com/solji-labs/solji-program-sub000/internal/app/services/wish"
	"github.com/solji-labs/solji-program-sub000/internal/config"
	"github.com/solji-labs/solji-program-sub000/internal/pda"
	"github.com/solji-labs/solji-program-sub000/pkg/logger"
)

// Instruction names.
const (
	InitTemple        = "initTemple"
	InitUser          = "initUser"
	InitIncenseType   = "initIncenseType"
	BuyIncense        = "buyIncense"
	BurnIncense       = "burnIncense"
	DonateFund        = "donateFund"
	DrawFortune       = "drawFortune"
	CreateWish        = "createWish"
	LikeWish          = "likeWish"
	CancelLikeWish    = "cancelLikeWish"
	StakeMedalNft     = "stakeMedalNft"
	UnstakeMedalNft   = "unstakeMedalNft"
	MintBuddhaNft     = "mintBuddhaNft"
	MintWishTowerNft  = "mintWishTowerNft"
	UpdateLeaderboard = "updateLeaderboard"
	UpdateIncenseType = "updateIncenseType"
	UpdateNftURI      = "updateNftUri"
	Withdraw          = "withdraw"
)

// Errors
var (
	ErrUnknownInstruction = errors.New("unknown instruction")
	ErrBadArguments       = errors.New("malformed instruction arguments")
)

// Services groups the instruction handlers behind the processor.
type Services struct {
	Temple      *templesvc.Service
	Users       *userssvc.Service
	Incense     *incensesvc.Service
	Donation    *donationsvc.Service
	Fortune     *fortunesvc.Service
	Wish        *wishsvc.Service
	Staking     *stakingsvc.Service
	Leaderboard *leaderboardsvc.Service
}

// Processor routes named instructions to services.
type Processor struct {
	svc Services
	log *logger.Logger
}

// New constructs a processor.
func New(svc Services, log *logger.Logger) *Processor {
	if log == nil {
		log = logger.NewDefault("program")
	}
	return &Processor{svc: svc, log: log}
}

type initTempleArgs struct {
	Admin    string `json:"admin"`
	Treasury string `json:"treasury"`
}

type initUserArgs struct {
	Owner string `json:"owner"`
}

type initIncenseTypeArgs struct {
	Caller string                   `json:"caller"`
	Type   config.IncenseTypeParams `json:"type"`
}

type buyIncenseArgs struct {
	Owner  string             `json:"owner"`
	Orders []incensesvc.Order `json:"orders"`
}

type burnIncenseArgs struct {
	Owner  string `json:"owner"`
	TypeID uint16 `json:"type_id"`
	Amount uint64 `json:"amount"`
}

type donateFundArgs struct {
	Owner    string `json:"owner"`
	Lamports uint64 `json:"lamports"`
}

type drawFortuneArgs struct {
	Owner    string `json:"owner"`
	UseMerit bool   `json:"use_merit"`
}

type createWishArgs struct {
	Author      string `json:"author"`
	Content     string `json:"content,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`
	IsAnonymous bool   `json:"is_anonymous"`
}

type likeWishArgs struct {
	Liker string `json:"liker"`
	Wish  string `json:"wish"`
}

type ownerArgs struct {
	Owner string `json:"owner"`
}

type updateLeaderboardArgs struct {
	Owner  string `json:"owner"`
	Period string `json:"period"`
}

type updateIncenseTypeArgs struct {
	Caller string `json:"caller"`
	TypeID uint16 `json:"type_id"`

	Name          *string `json:"name,omitempty"`
	PriceLamports *uint64 `json:"price_lamports,omitempty"`
	KarmaReward   *uint64 `json:"karma_reward,omitempty"`
	IncenseValue  *uint64 `json:"incense_value,omitempty"`
	Purchasable   *bool   `json:"purchasable,omitempty"`
	MaxBuyPerTx   *uint64 `json:"max_buy_per_tx,omitempty"`
	Active        *bool   `json:"active,omitempty"`
}

type updateNftURIArgs struct {
	Caller string `json:"caller"`
	TypeID uint16 `json:"type_id"`
	URI    string `json:"uri"`
}

type withdrawArgs struct {
	Caller   string `json:"caller"`
	Lamports uint64 `json:"lamports"`
}

// Execute runs one named instruction. The returned value is the instruction's
// result record when it produces one, or nil.
func (p *Processor) Execute(ctx context.Context, name string, args json.RawMessage) (result interface{}, err error) {
	started := time.Now()
	defer func() {
		metrics.ObserveInstruction(name, err, time.Since(started))
		if err != nil {
			p.log.WithError(err).WithField("instruction", name).Debug("instruction failed")
		}
	}()

	switch name {
	case InitTemple:
		var a initTempleArgs
		admin, treasury, derr := decode2(args, &a, &a.Admin, &a.Treasury)
		if derr != nil {
			return nil, derr
		}
		return nil, p.svc.Temple.Init(ctx, admin, treasury)

	case InitUser:
		var a initUserArgs
		owner, derr := decode1(args, &a, &a.Owner)
		if derr != nil {
			return nil, derr
		}
		return nil, p.svc.Users.Init(ctx, owner)

	case InitIncenseType:
		var a initIncenseTypeArgs
		caller, derr := decode1(args, &a, &a.Caller)
		if derr != nil {
			return nil, derr
		}
		return nil, p.svc.Temple.InitIncenseType(ctx, caller, a.Type)

	case BuyIncense:
		var a buyIncenseArgs
		owner, derr := decode1(args, &a, &a.Owner)
		if derr != nil {
			return nil, derr
		}
		return nil, p.svc.Incense.Buy(ctx, owner, a.Orders)

	case BurnIncense:
		var a burnIncenseArgs
		owner, derr := decode1(args, &a, &a.Owner)
		if derr != nil {
			return nil, derr
		}
		return nil, p.svc.Incense.Burn(ctx, owner, a.TypeID, a.Amount)

	case DonateFund:
		var a donateFundArgs
		owner, derr := decode1(args, &a, &a.Owner)
		if derr != nil {
			return nil, derr
		}
		return nil, p.svc.Donation.Donate(ctx, owner, a.Lamports)

	case DrawFortune:
		var a drawFortuneArgs
		owner, derr := decode1(args, &a, &a.Owner)
		if derr != nil {
			return nil, derr
		}
		return p.svc.Fortune.Draw(ctx, owner, a.UseMerit)

	case CreateWish:
		var a createWishArgs
		author, derr := decode1(args, &a, &a.Author)
		if derr != nil {
			return nil, derr
		}
		hash, herr := contentHash(a)
		if herr != nil {
			return nil, herr
		}
		return p.svc.Wish.Create(ctx, author, hash, a.IsAnonymous)

	case LikeWish, CancelLikeWish:
		var a likeWishArgs
		liker, wishAddr, derr := decode2(args, &a, &a.Liker, &a.Wish)
		if derr != nil {
			return nil, derr
		}
		if name == LikeWish {
			return nil, p.svc.Wish.Like(ctx, liker, wishAddr)
		}
		return nil, p.svc.Wish.CancelLike(ctx, liker, wishAddr)

	case StakeMedalNft:
		var a ownerArgs
		owner, derr := decode1(args, &a, &a.Owner)
		if derr != nil {
			return nil, derr
		}
		return nil, p.svc.Staking.Stake(ctx, owner)

	case UnstakeMedalNft:
		var a ownerArgs
		owner, derr := decode1(args, &a, &a.Owner)
		if derr != nil {
			return nil, derr
		}
		rewarded, uerr := p.svc.Staking.Unstake(ctx, owner)
		if uerr != nil {
			return nil, uerr
		}
		return map[string]bool{"rewarded": rewarded}, nil

	case MintBuddhaNft:
		var a ownerArgs
		owner, derr := decode1(args, &a, &a.Owner)
		if derr != nil {
			return nil, derr
		}
		return nil, p.svc.Donation.MintBuddhaNft(ctx, owner)

	case MintWishTowerNft:
		var a ownerArgs
		owner, derr := decode1(args, &a, &a.Owner)
		if derr != nil {
			return nil, derr
		}
		return p.svc.Wish.MintTowerNft(ctx, owner)

	case UpdateLeaderboard:
		var a updateLeaderboardArgs
		owner, derr := decode1(args, &a, &a.Owner)
		if derr != nil {
			return nil, derr
		}
		return nil, p.svc.Leaderboard.Update(ctx, owner, a.Period)

	case UpdateIncenseType:
		var a updateIncenseTypeArgs
		caller, derr := decode1(args, &a, &a.Caller)
		if derr != nil {
			return nil, derr
		}
		return nil, p.svc.Temple.UpdateIncenseType(ctx, caller, a.TypeID, templesvc.IncenseTypeUpdate{
			Name:          a.Name,
			PriceLamports: a.PriceLamports,
			KarmaReward:   a.KarmaReward,
			IncenseValue:  a.IncenseValue,
			Purchasable:   a.Purchasable,
			MaxBuyPerTx:   a.MaxBuyPerTx,
			Active:        a.Active,
		})

	case UpdateNftURI:
		var a updateNftURIArgs
		caller, derr := decode1(args, &a, &a.Caller)
		if derr != nil {
			return nil, derr
		}
		return nil, p.svc.Temple.UpdateNftURI(ctx, caller, a.TypeID, a.URI)

	case Withdraw:
		var a withdrawArgs
		caller, derr := decode1(args, &a, &a.Caller)
		if derr != nil {
			return nil, derr
		}
		return nil, p.svc.Temple.Withdraw(ctx, caller, a.Lamports)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstruction, name)
	}
}

// decode1 unmarshals args into dst and parses the address field pointed to by
// field, which must point inside dst.
func decode1(args json.RawMessage, dst interface{}, field *string) (pda.Address, error) {
	if err := json.Unmarshal(args, dst); err != nil {
		return pda.Address{}, fmt.Errorf("%w: %v", ErrBadArguments, err)
	}
	return parseAddr(*field)
}

func decode2(args json.RawMessage, dst interface{}, first, second *string) (pda.Address, pda.Address, error) {
	if err := json.Unmarshal(args, dst); err != nil {
		return pda.Address{}, pda.Address{}, fmt.Errorf("%w: %v", ErrBadArguments, err)
	}
	a, err := parseAddr(*first)
	if err != nil {
		return pda.Address{}, pda.Address{}, err
	}
	b, err := parseAddr(*second)
	if err != nil {
		return pda.Address{}, pda.Address{}, err
	}
	return a, b, nil
}

func parseAddr(s string) (pda.Address, error) {
	addr, err := pda.FromBase58(s)
	if err != nil {
		return pda.Address{}, fmt.Errorf("%w: address %q: %v", ErrBadArguments, s, err)
	}
	return addr, nil
}

// contentHash resolves the wish content hash from either the raw content or
// a hex-encoded hash.
func contentHash(a createWishArgs) ([32]byte, error) {
	if a.Content != "" {
		return wishsvc.HashContent([]byte(a.Content)), nil
	}
	var hash [32]byte
	if a.ContentHash == "" {
		return hash, fmt.Errorf("%w: content or content_hash required", ErrBadArguments)
	}
	decoded, err := hex.DecodeString(a.ContentHash)
	if err != nil || len(decoded) != 32 {
		return hash, fmt.Errorf("%w: content_hash must be 32 hex bytes", ErrBadArguments)
	}
	copy(hash[:], decoded)
	return hash, nil
}
