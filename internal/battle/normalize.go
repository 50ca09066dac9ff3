// Package battle turns raw contract reads into presentation-ready battle state:
// normalization, active/ended classification, vote shares, countdowns and
// leaderboard metrics. Everything here is pure and safe for concurrent use.
package battle

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/memed/arena/internal/contract"
	"github.com/memed/arena/internal/domain"
)

var (
	// ErrShapeMismatch is returned when the parallel arrays disagree in length.
	ErrShapeMismatch = contract.ErrShapeMismatch
	// ErrOutOfRange marks an id or timestamp that does not fit its Go type.
	ErrOutOfRange = errors.New("value out of range")
)

// Normalize zips the positional getBattles result into records. Index i of
// every column describes battle i; unequal columns are rejected, never
// truncated. An empty id column is the "no battles yet" state and yields an
// empty list whatever the other columns hold.
func Normalize(raw contract.BattleArrays) ([]domain.Battle, error) {
	if raw.Len() == 0 {
		return []domain.Battle{}, nil
	}
	if err := raw.CheckShape(); err != nil {
		return nil, err
	}
	out := make([]domain.Battle, 0, raw.Len())
	for i := 0; i < raw.Len(); i++ {
		id, err := toUint64(raw.IDs[i])
		if err != nil {
			return nil, fmt.Errorf("battle[%d] id: %w", i, err)
		}
		start, err := toInt64(raw.StartTimes[i])
		if err != nil {
			return nil, fmt.Errorf("battle %d start time: %w", id, err)
		}
		end, err := toInt64(raw.EndTimes[i])
		if err != nil {
			return nil, fmt.Errorf("battle %d end time: %w", id, err)
		}
		b := domain.Battle{
			ID:        id,
			TokenA:    raw.TokenA[i],
			TokenB:    raw.TokenB[i],
			VotesA:    copyOrZero(raw.VotesA[i]),
			VotesB:    copyOrZero(raw.VotesB[i]),
			StartTime: start,
			EndTime:   end,
			Settled:   raw.Settled[i],
		}
		if w := raw.Winners[i]; !domain.IsZeroAddress(w) {
			winner := w
			b.Winner = &winner
		}
		out = append(out, b)
	}
	return out, nil
}

func copyOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func toUint64(v *big.Int) (uint64, error) {
	if v == nil {
		return 0, fmt.Errorf("missing: %w", ErrOutOfRange)
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%s: %w", v, ErrOutOfRange)
	}
	return v.Uint64(), nil
}

func toInt64(v *big.Int) (int64, error) {
	if v == nil {
		return 0, fmt.Errorf("missing: %w", ErrOutOfRange)
	}
	if !v.IsInt64() {
		return 0, fmt.Errorf("%s: %w", v, ErrOutOfRange)
	}
	return v.Int64(), nil
}
