package domain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ZeroAddress is the sentinel the battle contract returns for "no winner yet".
var ZeroAddress = common.Address{}

// IsZeroAddress reports whether addr is the all-zero sentinel.
func IsZeroAddress(addr common.Address) bool {
	return addr == ZeroAddress
}

// Battle is one head-to-head contest between two tokens.
type Battle struct {
	ID        uint64          `json:"id"`
	TokenA    common.Address  `json:"tokenA"`
	TokenB    common.Address  `json:"tokenB"`
	VotesA    *big.Int        `json:"votesA"`
	VotesB    *big.Int        `json:"votesB"`
	StartTime int64           `json:"startTime"` // unix seconds
	EndTime   int64           `json:"endTime"`   // unix seconds
	Settled   bool            `json:"settled"`
	Winner    *common.Address `json:"winner,omitempty"` // only set once settled
}

var (
	ErrSameToken       = errors.New("battle tokens must differ")
	ErrBadWindow       = errors.New("battle end time must be after start time")
	ErrWinnerUnsettled = errors.New("winner present on unsettled battle")
	ErrWinnerForeign   = errors.New("winner is neither battle token")
)

// Validate checks the record-level invariants of a battle.
func (b Battle) Validate() error {
	if b.TokenA == b.TokenB {
		return fmt.Errorf("battle %d: %w", b.ID, ErrSameToken)
	}
	if b.EndTime <= b.StartTime {
		return fmt.Errorf("battle %d: %w", b.ID, ErrBadWindow)
	}
	if b.Winner != nil {
		if !b.Settled {
			return fmt.Errorf("battle %d: %w", b.ID, ErrWinnerUnsettled)
		}
		if *b.Winner != b.TokenA && *b.Winner != b.TokenB {
			return fmt.Errorf("battle %d: %w", b.ID, ErrWinnerForeign)
		}
	}
	return nil
}

// HasToken reports whether token is one of the two sides.
func (b Battle) HasToken(token common.Address) bool {
	return token == b.TokenA || token == b.TokenB
}

// Side returns "A" or "B" for a battle token, "" otherwise.
func (b Battle) Side(token common.Address) string {
	switch token {
	case b.TokenA:
		return "A"
	case b.TokenB:
		return "B"
	default:
		return ""
	}
}

// TotalVotes returns votesA + votesB; nil counts are treated as zero.
func (b Battle) TotalVotes() *big.Int {
	total := new(big.Int)
	if b.VotesA != nil {
		total.Add(total, b.VotesA)
	}
	if b.VotesB != nil {
		total.Add(total, b.VotesB)
	}
	return total
}
