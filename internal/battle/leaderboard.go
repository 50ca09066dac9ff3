package battle

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/memed/arena/internal/domain"
)

const (
	// VoteDecimals is the fixed-point scale of vote weights.
	VoteDecimals = 9
	// NativeDecimals is the scale of BNB amounts (wei).
	NativeDecimals = 18
)

// LeaderboardRow is a leaderboard entry decorated for display.
type LeaderboardRow struct {
	Rank     int                     `json:"rank"`
	Badge    string                  `json:"badge"`
	Entry    domain.LeaderboardEntry `json:"entry"`
	Name     string                  `json:"name"`
	WinRate  decimal.Decimal         `json:"winRate"`  // percent
	AvgVotes decimal.Decimal         `json:"avgVotes"` // raw vote units per battle
}

// RankBadge names the top three places.
func RankBadge(rank int) string {
	switch rank {
	case 0:
		return "Champion"
	case 1:
		return "Runner-up"
	case 2:
		return "Third Place"
	default:
		return fmt.Sprintf("Rank #%d", rank+1)
	}
}

// WinRate returns wins/battles as a percentage, 0 with no battles.
func WinRate(wins, battles *big.Int) decimal.Decimal {
	if battles == nil || battles.Sign() == 0 {
		return decimal.Zero
	}
	w := decimal.NewFromBigInt(orZero(wins), 0)
	return w.Mul(decimal.NewFromInt(100)).Div(decimal.NewFromBigInt(battles, 0))
}

// AvgVotes returns votes/battles, 0 with no battles.
func AvgVotes(votes, battles *big.Int) decimal.Decimal {
	if battles == nil || battles.Sign() == 0 {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(orZero(votes), 0).Div(decimal.NewFromBigInt(battles, 0))
}

// BuildLeaderboard ranks entries in the order the contract returned them and
// joins display names from tokens.
func BuildLeaderboard(entries []domain.LeaderboardEntry, tokens map[common.Address]domain.TokenSummary) []LeaderboardRow {
	rows := make([]LeaderboardRow, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, LeaderboardRow{
			Rank:     i,
			Badge:    RankBadge(i),
			Entry:    e,
			Name:     DisplayName(e.Token, tokens),
			WinRate:  WinRate(e.Wins, e.TotalBattles),
			AvgVotes: AvgVotes(e.TotalVotes, e.TotalBattles),
		})
	}
	return rows
}

// WinRateString renders the win rate like "66.7%".
func (r LeaderboardRow) WinRateString() string {
	return r.WinRate.StringFixed(1) + "%"
}

// AvgVotesString renders the average with one decimal.
func (r LeaderboardRow) AvgVotesString() string {
	return r.AvgVotes.StringFixed(1)
}

// DisplayName prefers the token's name, then its ticker, then a short address.
func DisplayName(addr common.Address, tokens map[common.Address]domain.TokenSummary) string {
	if t, ok := tokens[addr]; ok {
		if t.Name != "" {
			return t.Name
		}
		if t.Ticker != "" {
			return t.Ticker
		}
	}
	return domain.ShortAddress(addr)
}

// FormatVotes renders a vote weight in whole units with two decimals.
func FormatVotes(v *big.Int) string {
	return decimal.NewFromBigInt(orZero(v), -VoteDecimals).StringFixed(2)
}

// FormatBNB renders a wei amount in BNB, trimming trailing zeros.
func FormatBNB(wei *big.Int) string {
	return decimal.NewFromBigInt(orZero(wei), -NativeDecimals).String() + " BNB"
}
