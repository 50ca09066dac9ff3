package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memed/arena/internal/contract"
	"github.com/memed/arena/internal/domain"
)

const nowUnix = int64(1_700_000_000)

func fixedClock() time.Time { return time.Unix(nowUnix, 0) }

func newTestService(t *testing.T, chain *fakeChain) *BattleService {
	t.Helper()
	svc := NewBattleService(chain, chain, Options{Clock: fixedClock, CacheTTL: time.Minute})
	t.Cleanup(svc.Close)
	return svc
}

func activeBattle(id uint64) domain.Battle {
	return domain.Battle{
		ID: id, TokenA: tokA, TokenB: tokB,
		VotesA: big.NewInt(10), VotesB: big.NewInt(5),
		StartTime: nowUnix - 100, EndTime: nowUnix + 3600,
	}
}

func endedBattle(id uint64, settled bool) domain.Battle {
	b := activeBattle(id)
	b.EndTime = nowUnix - 10
	b.Settled = settled
	if settled {
		w := tokA
		b.Winner = &w
	}
	return b
}

func graduated(addr common.Address, name string) domain.TokenSummary {
	return domain.TokenSummary{Address: addr, Name: name, Ticker: name, Stage: domain.StageGraduated, Supply: big.NewInt(1e18)}
}

func kindOf(t *testing.T, err error) Kind {
	t.Helper()
	var me *MutationError
	require.ErrorAs(t, err, &me)
	return me.Kind
}

func TestClassifyMessage(t *testing.T) {
	cases := []struct {
		msg  string
		want Kind
	}{
		{"MetaMask Tx Signature: User denied transaction signature.", KindUserRejected},
		{"execution reverted: Battle cooldown active", KindCooldown},
		{"execution reverted: Insufficient fee", KindInsufficientFee},
		{"insufficient funds for gas * price + value", KindInsufficientGas},
		{"execution reverted: Already voted", KindAlreadyVoted},
		{"execution reverted: Battle has not ended", KindNotYetSettleable},
		{"execution reverted: Battle not ended yet", KindNotYetSettleable},
		{"execution reverted: Battle ended", KindBattleEnded},
		{"execution reverted: Battle not started", KindBattleNotStarted},
		{"execution reverted: Already settled", KindAlreadySettled},
		{"execution reverted: No voting power", KindNoVotingPower},
		{"connection refused", KindUnclassified},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyMessage(tc.msg), tc.msg)
	}
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, Kind(""), ClassifyError(nil))
	assert.Equal(t, KindNotConnected, ClassifyError(fmt.Errorf("vote: %w", contract.ErrNotConnected)))
	wrapped := newMutationError(OpVote, KindCooldown, errors.New("x"))
	assert.Equal(t, KindCooldown, ClassifyError(wrapped))

	me := newMutationError(OpVote, KindUnclassified, errors.New("rpc timeout"))
	assert.Equal(t, "rpc timeout", me.Message())
	assert.Equal(t, kindMessages[KindAlreadyVoted], newMutationError(OpVote, KindAlreadyVoted, nil).Message())
	assert.Equal(t, "vote: already_voted", newMutationError(OpVote, KindAlreadyVoted, nil).Error())
}

func TestInsufficientGasMessageDependsOnOp(t *testing.T) {
	assert.Equal(t, "The wallet cannot cover the gas for this transaction.",
		newMutationError(OpVote, KindInsufficientGas, nil).Message())
	assert.Equal(t, "The wallet cannot cover the gas for this transaction.",
		newMutationError(OpSettle, KindInsufficientGas, nil).Message())
	assert.Equal(t, "The wallet cannot cover the creation fee plus gas.",
		newMutationError(OpCreate, KindInsufficientGas, nil).Message())
	assert.NotContains(t, newMutationError(OpVote, KindInsufficientGas, nil).Message(), "creation fee")
}

func TestQueryKeys(t *testing.T) {
	assert.Equal(t, "battles", BattlesQuery().Key())
	assert.Equal(t, "leaderboard:10", LeaderboardQuery(10).Key())
	assert.Equal(t, "token_stats:"+tokA.Hex(), TokenStatsQuery(tokA).Key())
	assert.Equal(t, "tokens", TokensQuery().String())
}

func TestSnapshotPartitionsBattles(t *testing.T) {
	chain := newFakeChain()
	chain.battles = []domain.Battle{activeBattle(1), endedBattle(2, false), endedBattle(3, true)}
	svc := newTestService(t, chain)

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, nowUnix, snap.Now)
	require.Len(t, snap.Active, 1)
	assert.Equal(t, uint64(1), snap.Active[0].ID)
	assert.Len(t, snap.Ended, 2)
	assert.Equal(t, []uint64{2}, snap.Settleable)
}

func TestSnapshotKeepsRecordsBreakingInvariants(t *testing.T) {
	chain := newFakeChain()
	bad := activeBattle(4)
	bad.TokenB = bad.TokenA
	chain.battles = []domain.Battle{activeBattle(1), bad}
	svc := newTestService(t, chain)

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Active, 2)
	assert.Equal(t, uint64(4), snap.Active[1].ID)
}

func TestReadsAreCached(t *testing.T) {
	chain := newFakeChain()
	chain.battles = []domain.Battle{activeBattle(1)}
	svc := newTestService(t, chain)
	ctx := context.Background()

	_, err := svc.Battles(ctx)
	require.NoError(t, err)
	_, err = svc.Battles(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), chain.battleReads.Load())

	require.NoError(t, svc.Refresh(ctx, BattlesQuery()))
	assert.Equal(t, int32(2), chain.battleReads.Load())
}

func TestReadErrorCarriesQuery(t *testing.T) {
	chain := newFakeChain()
	chain.readErr = errors.New("rpc down")
	svc := newTestService(t, chain)

	_, err := svc.LeaderboardEntries(context.Background(), 0)
	var re *ReadError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, LeaderboardQuery(10), re.Query)
	assert.ErrorContains(t, err, "rpc down")
}

func TestLeaderboardDegradesWithoutTokenNames(t *testing.T) {
	chain := newFakeChain()
	chain.leaderboard = []domain.LeaderboardEntry{
		{Token: tokA, Wins: big.NewInt(2), TotalBattles: big.NewInt(3), TotalVotes: big.NewInt(9e9)},
	}
	chain.tokensErr = errors.New("factory down")
	svc := newTestService(t, chain)

	rows, err := svc.Leaderboard(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.ShortAddress(tokA), rows[0].Name)
	assert.Equal(t, "Champion", rows[0].Badge)
}

func TestTokenStatsBatch(t *testing.T) {
	chain := newFakeChain()
	chain.stats[tokA] = domain.TokenStats{Token: tokA, Wins: big.NewInt(1), Battles: big.NewInt(2), Votes: big.NewInt(3)}
	svc := newTestService(t, chain)

	got, err := svc.TokenStatsBatch(context.Background(), []common.Address{tokA, tokB, tokA})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[tokA].Votes.Int64())
	assert.Equal(t, int64(0), got[tokB].Wins.Int64())
	assert.Equal(t, int32(2), chain.statsReads.Load())

	chain.readErr = errors.New("rpc down")
	_, err = svc.TokenStatsBatch(context.Background(), []common.Address{tokC})
	var re *ReadError
	assert.ErrorAs(t, err, &re)
}

func TestCreateBattleLocalChecks(t *testing.T) {
	ctx := context.Background()

	chain := newFakeChain()
	chain.connected = false
	svc := newTestService(t, chain)
	_, err := svc.CreateBattle(ctx, tokA, tokB)
	assert.Equal(t, KindNotConnected, kindOf(t, err))

	chain = newFakeChain()
	svc = newTestService(t, chain)
	_, err = svc.CreateBattle(ctx, tokA, tokA)
	assert.Equal(t, KindInvalidPair, kindOf(t, err))
	_, err = svc.CreateBattle(ctx, tokA, common.Address{})
	assert.Equal(t, KindInvalidPair, kindOf(t, err))

	chain.tokens = []domain.TokenSummary{graduated(tokA, "PEPE"), {Address: tokB, Stage: domain.StageBondingCurve}}
	_, err = svc.CreateBattle(ctx, tokA, tokB)
	assert.Equal(t, KindNotEligible, kindOf(t, err))
	assert.Zero(t, chain.writeCount())
}

func TestCreateBattleSubmitsAndRefreshesBattles(t *testing.T) {
	chain := newFakeChain()
	chain.tokens = []domain.TokenSummary{graduated(tokA, "PEPE"), graduated(tokB, "DOGE")}
	svc := newTestService(t, chain)

	res, err := svc.CreateBattle(context.Background(), tokA, tokB)
	require.NoError(t, err)
	assert.Equal(t, OpCreate, res.Op)
	assert.Equal(t, []Query{BattlesQuery()}, res.Invalidated)
	assert.Equal(t, 1, chain.writeCount())
	assert.Equal(t, int32(1), chain.battleReads.Load())
}

func TestCreateBattleSkipsEligibilityWhenListingFails(t *testing.T) {
	chain := newFakeChain()
	chain.tokensErr = errors.New("factory down")
	svc := newTestService(t, chain)

	_, err := svc.CreateBattle(context.Background(), tokA, tokB)
	require.NoError(t, err)
	assert.Equal(t, 1, chain.writeCount())
}

func TestCreateBattleClassifiesRevert(t *testing.T) {
	chain := newFakeChain()
	chain.tokens = []domain.TokenSummary{graduated(tokA, "PEPE"), graduated(tokB, "DOGE")}
	chain.writeErr = errors.New("createBattle: estimate gas: execution reverted: Battle cooldown active")
	svc := newTestService(t, chain)

	_, err := svc.CreateBattle(context.Background(), tokA, tokB)
	assert.Equal(t, KindCooldown, kindOf(t, err))
}

func TestVoteWithoutBalanceIsNoVotingPower(t *testing.T) {
	chain := newFakeChain()
	chain.battles = []domain.Battle{activeBattle(7)}
	svc := newTestService(t, chain)

	_, err := svc.Vote(context.Background(), 7, tokA)
	assert.Equal(t, KindNoVotingPower, kindOf(t, err))
	assert.Zero(t, chain.writeCount())
}

func TestVoteChecks(t *testing.T) {
	chain := newFakeChain()
	chain.battles = []domain.Battle{activeBattle(7)}
	chain.balances[tokB] = big.NewInt(1)
	svc := newTestService(t, chain)
	ctx := context.Background()

	_, err := svc.Vote(ctx, 8, tokA)
	assert.Equal(t, KindUnknownBattle, kindOf(t, err))

	_, err = svc.Vote(ctx, 7, tokC)
	assert.Equal(t, KindInvalidPair, kindOf(t, err))

	res, err := svc.Vote(ctx, 7, tokA)
	require.NoError(t, err)
	assert.Equal(t, []Query{BattlesQuery()}, res.Invalidated)
	assert.False(t, svc.IsPending(7))
}

func TestVoteBalanceFailureIsAdvisory(t *testing.T) {
	chain := newFakeChain()
	chain.battles = []domain.Battle{activeBattle(7)}
	chain.balanceErr = errors.New("rpc down")
	svc := newTestService(t, chain)

	_, err := svc.Vote(context.Background(), 7, tokB)
	require.NoError(t, err)
	assert.Equal(t, 1, chain.writeCount())
}

func TestVoteRevertIsClassifiedAndReleased(t *testing.T) {
	chain := newFakeChain()
	chain.battles = []domain.Battle{activeBattle(7)}
	chain.balances[tokA] = big.NewInt(1)
	chain.writeErr = errors.New("execution reverted: Already voted")
	svc := newTestService(t, chain)

	_, err := svc.Vote(context.Background(), 7, tokA)
	assert.Equal(t, KindAlreadyVoted, kindOf(t, err))
	assert.False(t, svc.IsPending(7))
}

func TestVoteWithoutGasIsNotAFeeError(t *testing.T) {
	chain := newFakeChain()
	chain.battles = []domain.Battle{activeBattle(7)}
	chain.balances[tokA] = big.NewInt(1)
	chain.writeErr = errors.New("insufficient funds for gas * price + value")
	svc := newTestService(t, chain)

	_, err := svc.Vote(context.Background(), 7, tokA)
	require.Error(t, err)
	var me *MutationError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, KindInsufficientGas, me.Kind)
	assert.Equal(t, "The wallet cannot cover the gas for this transaction.", me.Message())
}

func TestSecondMutationOnSameBattleIsRejected(t *testing.T) {
	chain := newFakeChain()
	chain.battles = []domain.Battle{activeBattle(7)}
	chain.balances[tokA] = big.NewInt(1)
	chain.block = make(chan struct{})
	svc := newTestService(t, chain)
	ctx := context.Background()

	// warm the cache so the first vote reaches the blocking write quickly
	_, err := svc.Battles(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Vote(ctx, 7, tokA)
		done <- err
	}()
	require.Eventually(t, func() bool { return svc.IsPending(7) }, time.Second, 5*time.Millisecond)

	_, err = svc.Vote(ctx, 7, tokB)
	assert.Equal(t, KindInFlight, kindOf(t, err))
	_, err = svc.SettleBattle(ctx, 7)
	assert.Equal(t, KindInFlight, kindOf(t, err))

	close(chain.block)
	require.NoError(t, <-done)
	assert.False(t, svc.IsPending(7))
	assert.Equal(t, 1, chain.writeCount())
}

func TestSettleLocalChecks(t *testing.T) {
	chain := newFakeChain()
	chain.battles = []domain.Battle{activeBattle(1), endedBattle(2, true)}
	svc := newTestService(t, chain)
	ctx := context.Background()

	_, err := svc.SettleBattle(ctx, 1)
	assert.Equal(t, KindNotYetSettleable, kindOf(t, err))
	assert.ErrorContains(t, err, "ends in 01:00:00")

	_, err = svc.SettleBattle(ctx, 2)
	assert.Equal(t, KindAlreadySettled, kindOf(t, err))

	_, err = svc.SettleBattle(ctx, 9)
	assert.Equal(t, KindUnknownBattle, kindOf(t, err))
	assert.Zero(t, chain.writeCount())
}

func TestSettleRefreshesScopedQueries(t *testing.T) {
	chain := newFakeChain()
	chain.battles = []domain.Battle{endedBattle(4, false)}
	svc := newTestService(t, chain)
	sig, cancel := svc.Subscribe()
	defer cancel()

	res, err := svc.SettleBattle(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []Query{
		BattlesQuery(),
		LeaderboardQuery(10),
		TokenStatsQuery(tokA),
		TokenStatsQuery(tokB),
	}, res.Invalidated)
	assert.Equal(t, int32(1), chain.boardReads.Load())
	assert.Equal(t, int32(2), chain.statsReads.Load())

	select {
	case <-sig.C():
	case <-time.After(time.Second):
		t.Fatal("no refresh signal")
	}
}

func TestRefreshAllDropsTokenStats(t *testing.T) {
	chain := newFakeChain()
	svc := newTestService(t, chain)
	ctx := context.Background()

	_, err := svc.TokenStats(ctx, tokA)
	require.NoError(t, err)
	require.NoError(t, svc.RefreshAll(ctx))
	_, err = svc.TokenStats(ctx, tokA)
	require.NoError(t, err)
	assert.Equal(t, int32(2), chain.statsReads.Load())
}

func TestRefresherBlockPolicy(t *testing.T) {
	chain := newFakeChain()
	svc := newTestService(t, chain)
	r, err := NewRefresher(svc, PolicyBlock, time.Second)
	require.NoError(t, err)
	ctx := context.Background()

	chain.height = 5
	assert.True(t, r.Tick(ctx))
	assert.False(t, r.Tick(ctx))
	assert.Equal(t, int32(1), chain.battleReads.Load())

	chain.mu.Lock()
	chain.height = 6
	chain.mu.Unlock()
	assert.True(t, r.Tick(ctx))
	assert.Equal(t, int32(2), chain.battleReads.Load())
}

func TestRefresherIntervalPolicy(t *testing.T) {
	chain := newFakeChain()
	svc := newTestService(t, chain)
	r, err := NewRefresher(svc, PolicyInterval, time.Second)
	require.NoError(t, err)

	assert.True(t, r.Tick(context.Background()))
	assert.True(t, r.Tick(context.Background()))
	assert.Equal(t, int32(2), chain.battleReads.Load())

	_, err = NewRefresher(svc, "sometimes", time.Second)
	assert.Error(t, err)
	_, err = NewRefresher(svc, PolicyBlock, 0)
	assert.Error(t, err)
}

func TestRefresherRunStopsOnCancel(t *testing.T) {
	svc := newTestService(t, newFakeChain())
	r, err := NewRefresher(svc, PolicyInterval, 10*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Run(ctx), context.DeadlineExceeded)
}
