package battle

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memed/arena/internal/contract"
	"github.com/memed/arena/internal/domain"
)

var (
	tokA = common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokB = common.HexToAddress("0x2222222222222222222222222222222222222222")
	tokC = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func bigs(vals ...int64) []*big.Int {
	out := make([]*big.Int, len(vals))
	for i, v := range vals {
		out[i] = big.NewInt(v)
	}
	return out
}

func TestNormalizeWinnerSentinel(t *testing.T) {
	raw := contract.BattleArrays{
		IDs:        bigs(1, 2, 3),
		TokenA:     []common.Address{tokA, tokA, tokB},
		TokenB:     []common.Address{tokB, tokC, tokC},
		VotesA:     bigs(1, 2, 3),
		VotesB:     bigs(4, 5, 6),
		StartTimes: bigs(10, 20, 30),
		EndTimes:   bigs(100, 200, 300),
		Settled:    []bool{true, false, true},
		Winners:    []common.Address{tokB, {}, tokC},
	}
	battles, err := Normalize(raw)
	require.NoError(t, err)
	require.Len(t, battles, 3)

	assert.Equal(t, uint64(1), battles[0].ID)
	require.NotNil(t, battles[0].Winner)
	assert.Equal(t, tokB, *battles[0].Winner)
	assert.Nil(t, battles[1].Winner)
	assert.Equal(t, tokC, *battles[2].Winner)
	assert.Equal(t, int64(200), battles[1].EndTime)
	assert.Equal(t, int64(5), battles[1].VotesB.Int64())

	// records own their counters
	raw.VotesA[0].SetInt64(99)
	assert.Equal(t, int64(1), battles[0].VotesA.Int64())
}

func TestNormalizeShapeMismatch(t *testing.T) {
	raw := contract.BattleArrays{
		IDs:        bigs(1, 2),
		TokenA:     []common.Address{tokA, tokA},
		TokenB:     []common.Address{tokB, tokC},
		VotesA:     bigs(1, 2),
		VotesB:     bigs(1, 2),
		StartTimes: bigs(1, 2),
		EndTimes:   bigs(5, 6),
		Settled:    []bool{false},
		Winners:    []common.Address{{}, {}},
	}
	_, err := Normalize(raw)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestNormalizeEmptyIDsWinsOverSiblings(t *testing.T) {
	raw := contract.BattleArrays{
		TokenA:  []common.Address{tokA},
		TokenB:  []common.Address{tokB},
		VotesA:  bigs(1),
		Settled: []bool{false},
	}
	battles, err := Normalize(raw)
	require.NoError(t, err)
	assert.Empty(t, battles)
	assert.NotNil(t, battles)
}

func oneBattle(id, end *big.Int) contract.BattleArrays {
	return contract.BattleArrays{
		IDs: []*big.Int{id}, TokenA: []common.Address{tokA}, TokenB: []common.Address{tokB},
		VotesA: bigs(0), VotesB: bigs(0), StartTimes: bigs(1), EndTimes: []*big.Int{end},
		Settled: []bool{false}, Winners: []common.Address{{}},
	}
}

func TestNormalizeRejectsOutOfRangeValues(t *testing.T) {
	tooBig := new(big.Int).Lsh(big.NewInt(1), 64)

	_, err := Normalize(oneBattle(tooBig, big.NewInt(2)))
	require.ErrorIs(t, err, ErrOutOfRange)
	assert.Contains(t, err.Error(), "18446744073709551616")

	_, err = Normalize(oneBattle(big.NewInt(7), tooBig))
	require.ErrorIs(t, err, ErrOutOfRange)
	assert.Contains(t, err.Error(), "battle 7 end time")

	_, err = Normalize(oneBattle(nil, big.NewInt(2)))
	assert.ErrorIs(t, err, ErrOutOfRange)

	battles, err := Normalize(oneBattle(new(big.Int).SetUint64(^uint64(0)), big.NewInt(2)))
	require.NoError(t, err)
	assert.Equal(t, ^uint64(0), battles[0].ID)
}

func TestScenarioEmptyState(t *testing.T) {
	battles, err := Normalize(contract.BattleArrays{})
	require.NoError(t, err)
	assert.Empty(t, battles)
	assert.NotNil(t, battles)

	c := Classify(battles, time.Now())
	assert.Empty(t, c.Active)
	assert.Empty(t, c.Ended)
	assert.Empty(t, c.Settleable())
}

func TestScenarioSingleActiveBattle(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := domain.Battle{
		ID: 1, TokenA: tokA, TokenB: tokB,
		VotesA: big.NewInt(3), VotesB: big.NewInt(1),
		StartTime: now.Unix() - 10, EndTime: now.Unix() + 590,
	}
	c := Classify([]domain.Battle{b}, now)
	require.Len(t, c.Active, 1)
	assert.Empty(t, c.Ended)
	assert.Equal(t, 75.0, VoteProgress(b.VotesA, b.VotesB))
	assert.Equal(t, 25.0, VoteProgressB(b.VotesA, b.VotesB))

	left := Countdown(b.EndTime, now)
	assert.Equal(t, int64(590), left.Total)
	assert.Equal(t, TimeLeft{Minutes: 9, Seconds: 50, Total: 590}, left)
	assert.False(t, IsSettleable(b, now))

	views := BuildViews(c.Active, now)
	require.Len(t, views, 1)
	assert.Equal(t, StatusActive, views[0].Status)
}

func TestScenarioSettleableBattle(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := domain.Battle{
		ID: 9, TokenA: tokA, TokenB: tokB, VotesA: big.NewInt(0), VotesB: big.NewInt(0),
		StartTime: now.Unix() - 600, EndTime: now.Unix() - 5,
	}
	c := Classify([]domain.Battle{b}, now)
	require.Len(t, c.Ended, 1)
	assert.True(t, IsSettleable(b, now))
	assert.Len(t, c.Settleable(), 1)

	views := BuildViews(c.Ended, now)
	assert.Equal(t, StatusReadyToSettle, views[0].Status)
	assert.Equal(t, 50.0, views[0].ProgressA)

	b.Settled = true
	assert.False(t, IsSettleable(b, now))
	assert.Equal(t, StatusSettled, BuildViews([]domain.Battle{b}, now)[0].Status)
}

func TestClassifyEndedOrdering(t *testing.T) {
	now := time.Unix(1000, 0)
	battles := []domain.Battle{
		{ID: 1, EndTime: 500},
		{ID: 2, EndTime: 2000},
		{ID: 3, EndTime: 900, Settled: true},
		{ID: 4, EndTime: 900},
		{ID: 5, EndTime: 1000}, // end == now is ended
		{ID: 6, EndTime: 1500},
	}
	c := Classify(battles, now)

	ids := func(bs []domain.Battle) []uint64 {
		var out []uint64
		for _, b := range bs {
			out = append(out, b.ID)
		}
		return out
	}
	assert.Equal(t, []uint64{2, 6}, ids(c.Active))
	assert.Equal(t, []uint64{5, 3, 4, 1}, ids(c.Ended))
	assert.Equal(t, []uint64{5, 4, 1}, ids(c.Settleable()))
}

func TestVoteProgressLargeWeights(t *testing.T) {
	huge, _ := new(big.Int).SetString("1000000000000000000000000000000", 10)
	assert.Equal(t, 50.0, VoteProgress(huge, huge))
	assert.Equal(t, 100.0, VoteProgress(huge, nil))
	assert.Equal(t, 50.0, VoteProgress(nil, nil))
	assert.InDelta(t, 33.333, VoteProgress(big.NewInt(1), big.NewInt(2)), 0.001)
}

func TestCountdownString(t *testing.T) {
	now := time.Unix(0, 0)
	assert.Equal(t, "Ended", Countdown(-5, now).String())
	assert.Equal(t, "00:59", Countdown(59, now).String())
	assert.Equal(t, "01:00:01", Countdown(3601, now).String())

	left := Countdown(2*86400+3*3600+4*60+5, now)
	assert.Equal(t, TimeLeft{Days: 2, Hours: 3, Minutes: 4, Seconds: 5, Total: 183845}, left)
	assert.Equal(t, "2d 03:04:05", left.String())
}

func TestLeaderboardRows(t *testing.T) {
	entries := []domain.LeaderboardEntry{
		{Token: tokA, Wins: big.NewInt(2), TotalBattles: big.NewInt(3), TotalVotes: big.NewInt(10)},
		{Token: tokB, Wins: big.NewInt(0), TotalBattles: big.NewInt(0), TotalVotes: big.NewInt(0)},
		{Token: tokC, Wins: big.NewInt(1), TotalBattles: big.NewInt(1), TotalVotes: big.NewInt(5)},
		{Token: tokC, Wins: big.NewInt(1), TotalBattles: big.NewInt(4), TotalVotes: big.NewInt(1)},
	}
	tokens := map[common.Address]domain.TokenSummary{
		tokA: {Address: tokA, Name: "Pepe"},
		tokB: {Address: tokB, Ticker: "DOGE"},
	}
	rows := BuildLeaderboard(entries, tokens)
	require.Len(t, rows, 4)

	assert.Equal(t, "Champion", rows[0].Badge)
	assert.Equal(t, "Runner-up", rows[1].Badge)
	assert.Equal(t, "Third Place", rows[2].Badge)
	assert.Equal(t, "Rank #4", rows[3].Badge)

	assert.Equal(t, "Pepe", rows[0].Name)
	assert.Equal(t, "DOGE", rows[1].Name)
	assert.Equal(t, "0x3333...3333", rows[2].Name)

	assert.Equal(t, "66.7%", rows[0].WinRateString())
	assert.Equal(t, "3.3", rows[0].AvgVotesString())
	assert.Equal(t, "0.0%", rows[1].WinRateString())
	assert.Equal(t, "0.0", rows[1].AvgVotesString())
	assert.Equal(t, "25.0%", rows[3].WinRateString())
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "1.50", FormatVotes(big.NewInt(1_500_000_000)))
	assert.Equal(t, "0.00", FormatVotes(nil))
	assert.Equal(t, "0.0002 BNB", FormatBNB(big.NewInt(200_000_000_000_000)))
}
