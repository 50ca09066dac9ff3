package domain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// TokenStage mirrors the factory contract's lifecycle enum.
type TokenStage uint8

const (
	StageNotCreated TokenStage = iota
	StageBondingCurve
	StageGraduated
)

func (s TokenStage) String() string {
	switch s {
	case StageNotCreated:
		return "not_created"
	case StageBondingCurve:
		return "bonding_curve"
	case StageGraduated:
		return "graduated"
	default:
		return "unknown"
	}
}

// TokenSummary is a read-only snapshot of factory metadata, used for display.
type TokenSummary struct {
	Address     common.Address `json:"token"`
	Name        string         `json:"name"`
	Ticker      string         `json:"ticker"`
	Description string         `json:"description"`
	Image       string         `json:"image"`
	Owner       common.Address `json:"owner"`
	Stage       TokenStage     `json:"stage"`
	Collateral  *big.Int       `json:"collateral"`
	Supply      *big.Int       `json:"supply"`
	CreatedAt   int64          `json:"createdAt"`
}

// LeaderboardEntry is one row of the contract's leaderboard aggregate.
type LeaderboardEntry struct {
	Token        common.Address `json:"token"`
	Wins         *big.Int       `json:"wins"`
	TotalBattles *big.Int       `json:"totalBattles"`
	TotalVotes   *big.Int       `json:"totalVotes"`
}

// TokenStats is the per-token aggregate returned by getTokenBasicStats.
type TokenStats struct {
	Token   common.Address `json:"token"`
	Wins    *big.Int       `json:"wins"`
	Battles *big.Int       `json:"battles"`
	Votes   *big.Int       `json:"votes"`
}

// ShortAddress renders 0x1234…abcd style addresses for display.
func ShortAddress(addr common.Address) string {
	h := addr.Hex()
	if len(h) <= 10 {
		return h
	}
	return h[:6] + "..." + h[len(h)-4:]
}

// NormalizeAddress lower-cases a hex address string for storage keys.
func NormalizeAddress(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsHexAddress accepts only the 0x-prefixed, 40 hex digit form.
func IsHexAddress(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != 42 || (!strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X")) {
		return false
	}
	return common.IsHexAddress(s)
}
