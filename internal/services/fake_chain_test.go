package services

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"

	"github.com/memed/arena/internal/contract"
	"github.com/memed/arena/internal/domain"
)

var (
	tokA   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokB   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	tokC   = common.HexToAddress("0x3333333333333333333333333333333333333333")
	wallet = common.HexToAddress("0x9999999999999999999999999999999999999999")
)

type fakeChain struct {
	mu sync.Mutex

	battles     []domain.Battle
	leaderboard []domain.LeaderboardEntry
	tokens      []domain.TokenSummary
	stats       map[common.Address]domain.TokenStats
	balances    map[common.Address]*big.Int
	height      uint64

	readErr    error
	tokensErr  error
	balanceErr error
	writeErr   error
	connected  bool

	// block is closed by the test to release a pending write
	block chan struct{}

	battleReads atomic.Int32
	statsReads  atomic.Int32
	boardReads  atomic.Int32
	writes      []string
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		stats:     map[common.Address]domain.TokenStats{},
		balances:  map[common.Address]*big.Int{},
		connected: true,
	}
}

func (f *fakeChain) ReadBattles(context.Context, bool) (contract.BattleArrays, error) {
	f.battleReads.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return contract.BattleArrays{}, f.readErr
	}
	var a contract.BattleArrays
	for _, b := range f.battles {
		a.IDs = append(a.IDs, new(big.Int).SetUint64(b.ID))
		a.TokenA = append(a.TokenA, b.TokenA)
		a.TokenB = append(a.TokenB, b.TokenB)
		a.VotesA = append(a.VotesA, b.VotesA)
		a.VotesB = append(a.VotesB, b.VotesB)
		a.StartTimes = append(a.StartTimes, big.NewInt(b.StartTime))
		a.EndTimes = append(a.EndTimes, big.NewInt(b.EndTime))
		a.Settled = append(a.Settled, b.Settled)
		w := common.Address{}
		if b.Winner != nil {
			w = *b.Winner
		}
		a.Winners = append(a.Winners, w)
	}
	return a, nil
}

func (f *fakeChain) ReadLeaderboard(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	f.boardReads.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	if limit < len(f.leaderboard) {
		return f.leaderboard[:limit], nil
	}
	return f.leaderboard, nil
}

func (f *fakeChain) ReadTokenBasicStats(_ context.Context, token common.Address) (domain.TokenStats, error) {
	f.statsReads.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return domain.TokenStats{}, f.readErr
	}
	st, ok := f.stats[token]
	if !ok {
		return domain.TokenStats{Token: token, Wins: new(big.Int), Battles: new(big.Int), Votes: new(big.Int)}, nil
	}
	return st, nil
}

func (f *fakeChain) ReadTokens(context.Context) ([]domain.TokenSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokensErr != nil {
		return nil, f.tokensErr
	}
	return f.tokens, nil
}

func (f *fakeChain) BalanceOf(_ context.Context, token, _ common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	if b, ok := f.balances[token]; ok {
		return b, nil
	}
	return new(big.Int), nil
}

func (f *fakeChain) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return 0, f.readErr
	}
	return f.height, nil
}

func (f *fakeChain) Account() (common.Address, bool) {
	return wallet, f.connected
}

func (f *fakeChain) write(ctx context.Context, name string) (contract.TxHandle, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return contract.TxHandle{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return contract.TxHandle{}, f.writeErr
	}
	f.writes = append(f.writes, name)
	return contract.TxHandle{Hash: common.BytesToHash([]byte(name)), Nonce: uint64(len(f.writes))}, nil
}

func (f *fakeChain) CreateBattle(ctx context.Context, _, _ common.Address, fee *big.Int) (contract.TxHandle, error) {
	if fee == nil || fee.Sign() <= 0 {
		return contract.TxHandle{}, errors.New("execution reverted: insufficient fee")
	}
	return f.write(ctx, "create")
}

func (f *fakeChain) Vote(ctx context.Context, _ uint64, _ common.Address) (contract.TxHandle, error) {
	return f.write(ctx, "vote")
}

func (f *fakeChain) SettleBattle(ctx context.Context, _ uint64) (contract.TxHandle, error) {
	return f.write(ctx, "settle")
}

func (f *fakeChain) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}
