package battle

import "math/big"

var hundred = big.NewInt(100)

// VoteProgress returns side A's share of the vote in percent. With no votes
// on either side the bar sits at 50. The ratio is taken in big.Rat so vote
// weights of any magnitude are safe.
func VoteProgress(votesA, votesB *big.Int) float64 {
	a := orZero(votesA)
	total := new(big.Int).Add(a, orZero(votesB))
	if total.Sign() == 0 {
		return 50
	}
	share := new(big.Rat).SetFrac(new(big.Int).Mul(a, hundred), total)
	f, _ := share.Float64()
	return f
}

// VoteProgressB is the complement of VoteProgress.
func VoteProgressB(votesA, votesB *big.Int) float64 {
	return 100 - VoteProgress(votesA, votesB)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
