// Package services composes contract reads and writes into the battle
// arena's application service: cached reads, classified mutations and
// scoped refreshes.
package services

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/sirupsen/logrus"

	"github.com/memed/arena/internal/battle"
	"github.com/memed/arena/internal/contract"
	"github.com/memed/arena/internal/domain"
	"github.com/memed/arena/internal/metrics"
	"github.com/memed/arena/pkg/cache"
	"github.com/memed/arena/pkg/logger"
	"github.com/memed/arena/pkg/sigchan"
)

// ChainReader is the read side of the contract client.
type ChainReader interface {
	ReadBattles(ctx context.Context, activeOnly bool) (contract.BattleArrays, error)
	ReadLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	ReadTokenBasicStats(ctx context.Context, token common.Address) (domain.TokenStats, error)
	ReadTokens(ctx context.Context) ([]domain.TokenSummary, error)
	BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// ChainWriter is the write side of the contract client.
type ChainWriter interface {
	Account() (common.Address, bool)
	CreateBattle(ctx context.Context, tokenA, tokenB common.Address, fee *big.Int) (contract.TxHandle, error)
	Vote(ctx context.Context, battleID uint64, token common.Address) (contract.TxHandle, error)
	SettleBattle(ctx context.Context, battleID uint64) (contract.TxHandle, error)
}

// receiptWaiter is implemented by *contract.Client.
type receiptWaiter interface {
	WaitMined(ctx context.Context, h contract.TxHandle) (*ethtypes.Receipt, error)
}

const (
	OpCreate = "create"
	OpVote   = "vote"
	OpSettle = "settle"
)

// Options tunes a BattleService. Zero values pick defaults.
type Options struct {
	CacheTTL         time.Duration
	CreationFee      *big.Int // wei
	MinSupply        *big.Int // wei; nil or 0 skips the supply pre-check
	LeaderboardLimit int
	Workers          int  // pond pool size for batch reads
	WaitMined        bool // wait for the receipt before refetching
	Clock            battle.Clock
	Metrics          *metrics.Metrics
}

// DefaultCreationFee is 0.0002 BNB.
var DefaultCreationFee = big.NewInt(200_000_000_000_000)

// BattleService is safe for concurrent use.
type BattleService struct {
	reader ChainReader
	writer ChainWriter

	cache    *cache.InMemoryCache[string, any]
	ttl      time.Duration
	broker   *sigchan.Broker
	inflight *xsync.Map[string, time.Time]
	pool     pond.Pool

	fee       *big.Int
	minSupply *big.Int
	limit     int
	waitMined bool
	clock     battle.Clock
	metrics   *metrics.Metrics
	log       *logrus.Entry
}

// Snapshot is one consistent view of all battles at instant Now.
type Snapshot struct {
	Now        int64         `json:"now"`
	Active     []battle.View `json:"active"`
	Ended      []battle.View `json:"ended"`
	Settleable []uint64      `json:"settleable"`
}

// MutationResult describes a submitted write and the queries it refreshed.
type MutationResult struct {
	Op          string            `json:"op"`
	Tx          contract.TxHandle `json:"tx"`
	Invalidated []Query           `json:"invalidated"`
}

// NewBattleService wires a service. writer may be nil for read-only use.
func NewBattleService(reader ChainReader, writer ChainWriter, opts Options) *BattleService {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 15 * time.Second
	}
	if opts.CreationFee == nil {
		opts.CreationFee = DefaultCreationFee
	}
	if opts.LeaderboardLimit <= 0 {
		opts.LeaderboardLimit = 10
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &BattleService{
		reader:    reader,
		writer:    writer,
		cache:     cache.NewInMemoryCache[string, any](opts.CacheTTL),
		ttl:       opts.CacheTTL,
		broker:    sigchan.NewBroker(),
		inflight:  xsync.NewMap[string, time.Time](),
		pool:      pond.NewPool(opts.Workers),
		fee:       new(big.Int).Set(opts.CreationFee),
		minSupply: opts.MinSupply,
		limit:     opts.LeaderboardLimit,
		waitMined: opts.WaitMined,
		clock:     opts.Clock,
		metrics:   opts.Metrics,
		log:       logger.WithField("component", "battle_service"),
	}
}

// Close stops the worker pool and the cache sweeper.
func (s *BattleService) Close() {
	s.pool.StopAndWait()
	s.cache.Stop()
}

// Subscribe returns a signal that fires after every refresh.
func (s *BattleService) Subscribe() (*sigchan.Chan, func()) {
	return s.broker.Subscribe()
}

// Account returns the connected wallet address, if any.
func (s *BattleService) Account() (common.Address, bool) {
	if s.writer == nil {
		return common.Address{}, false
	}
	return s.writer.Account()
}

// CreationFee returns the fee paid by CreateBattle.
func (s *BattleService) CreationFee() *big.Int { return new(big.Int).Set(s.fee) }

// LeaderboardLimit is the default number of leaderboard rows.
func (s *BattleService) LeaderboardLimit() int { return s.limit }

// Now reads the service clock.
func (s *BattleService) Now() time.Time { return s.clock() }

func readThrough[T any](ctx context.Context, s *BattleService, q Query, load func(context.Context) (T, error)) (T, error) {
	if v, ok := s.cache.Get(q.Key()); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	return fetch(ctx, s, q, load)
}

func fetch[T any](ctx context.Context, s *BattleService, q Query, load func(context.Context) (T, error)) (T, error) {
	v, err := load(ctx)
	s.metrics.Refresh(string(q.Kind), err)
	if err != nil {
		var zero T
		return zero, &ReadError{Query: q, Err: err}
	}
	s.cache.Set(q.Key(), v, s.ttl)
	return v, nil
}

func (s *BattleService) loadBattles(ctx context.Context) ([]domain.Battle, error) {
	raw, err := s.reader.ReadBattles(ctx, false)
	if err != nil {
		return nil, err
	}
	battles, err := battle.Normalize(raw)
	if err != nil {
		return nil, err
	}
	for _, b := range battles {
		// the contract is authoritative; a record breaking an invariant is shown as read
		if err := b.Validate(); err != nil {
			s.log.WithError(err).WithField("battle_id", b.ID).Warn("battle record violates invariants")
		}
	}
	return battles, nil
}

func (s *BattleService) loadLeaderboard(limit int) func(context.Context) ([]domain.LeaderboardEntry, error) {
	return func(ctx context.Context) ([]domain.LeaderboardEntry, error) {
		return s.reader.ReadLeaderboard(ctx, limit)
	}
}

func (s *BattleService) loadTokenStats(token common.Address) func(context.Context) (domain.TokenStats, error) {
	return func(ctx context.Context) (domain.TokenStats, error) {
		return s.reader.ReadTokenBasicStats(ctx, token)
	}
}

// Battles returns every battle, normalized.
func (s *BattleService) Battles(ctx context.Context) ([]domain.Battle, error) {
	return readThrough(ctx, s, BattlesQuery(), s.loadBattles)
}

// Snapshot classifies battles against one reading of the clock.
func (s *BattleService) Snapshot(ctx context.Context) (Snapshot, error) {
	battles, err := s.Battles(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return BuildSnapshot(battles, s.clock()), nil
}

// BuildSnapshot classifies battles and derives views at now.
func BuildSnapshot(battles []domain.Battle, now time.Time) Snapshot {
	c := battle.Classify(battles, now)
	snap := Snapshot{
		Now:        c.Now,
		Active:     battle.BuildViews(c.Active, now),
		Ended:      battle.BuildViews(c.Ended, now),
		Settleable: []uint64{},
	}
	for _, b := range c.Settleable() {
		snap.Settleable = append(snap.Settleable, b.ID)
	}
	return snap
}

// LeaderboardEntries returns the raw leaderboard; limit <= 0 uses the default.
func (s *BattleService) LeaderboardEntries(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = s.limit
	}
	return readThrough(ctx, s, LeaderboardQuery(limit), s.loadLeaderboard(limit))
}

// Leaderboard returns ranked rows with display names. A failed token
// listing degrades names to short addresses instead of failing the read.
func (s *BattleService) Leaderboard(ctx context.Context, limit int) ([]battle.LeaderboardRow, error) {
	entries, err := s.LeaderboardEntries(ctx, limit)
	if err != nil {
		return nil, err
	}
	index, err := s.TokenIndex(ctx)
	if err != nil {
		s.log.WithError(err).Warn("token listing unavailable, using short addresses")
	}
	return battle.BuildLeaderboard(entries, index), nil
}

// Tokens lists the factory's tokens.
func (s *BattleService) Tokens(ctx context.Context) ([]domain.TokenSummary, error) {
	return readThrough(ctx, s, TokensQuery(), s.reader.ReadTokens)
}

// TokenIndex is Tokens keyed by address.
func (s *BattleService) TokenIndex(ctx context.Context) (map[common.Address]domain.TokenSummary, error) {
	tokens, err := s.Tokens(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[common.Address]domain.TokenSummary, len(tokens))
	for _, t := range tokens {
		index[t.Address] = t
	}
	return index, nil
}

// TokenStats returns one token's battle aggregate.
func (s *BattleService) TokenStats(ctx context.Context, token common.Address) (domain.TokenStats, error) {
	return readThrough(ctx, s, TokenStatsQuery(token), s.loadTokenStats(token))
}

// TokenStatsBatch reads several tokens' stats on the worker pool. The first
// failure is returned; successful reads are still cached.
func (s *BattleService) TokenStatsBatch(ctx context.Context, tokens []common.Address) (map[common.Address]domain.TokenStats, error) {
	out := xsync.NewMap[common.Address, domain.TokenStats]()
	errs := xsync.NewMap[common.Address, error]()

	group := s.pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for _, token := range tokens {
		token := token
		if _, dup := out.LoadOrStore(token, domain.TokenStats{}); dup {
			continue
		}
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				errs.Store(token, err)
				return
			}
			stats, err := s.TokenStats(groupCtx, token)
			if err != nil {
				errs.Store(token, err)
				return
			}
			out.Store(token, stats)
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var firstErr error
	for _, token := range tokens {
		if err, ok := errs.Load(token); ok {
			firstErr = err
			break
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	result := make(map[common.Address]domain.TokenStats, out.Size())
	out.Range(func(k common.Address, v domain.TokenStats) bool {
		result[k] = v
		return true
	})
	return result, nil
}

// Refresh drops and re-reads exactly the given queries, then signals
// subscribers. Every query is attempted; the first error is returned.
func (s *BattleService) Refresh(ctx context.Context, queries ...Query) error {
	var firstErr error
	for _, q := range queries {
		if err := s.refetch(ctx, q); err != nil {
			s.log.WithFields(logrus.Fields{"query": q.String()}).WithError(err).Warn("refresh failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	s.broker.Emit()
	return firstErr
}

// RefreshAll re-reads battles, the default leaderboard and the token list,
// and drops cached per-token stats so they are read again on demand.
func (s *BattleService) RefreshAll(ctx context.Context) error {
	s.cache.DeleteFunc(func(key string) bool {
		return strings.HasPrefix(key, string(QueryTokenStats)+":")
	})
	return s.Refresh(ctx, BattlesQuery(), LeaderboardQuery(s.limit), TokensQuery())
}

func (s *BattleService) refetch(ctx context.Context, q Query) error {
	var err error
	switch q.Kind {
	case QueryBattles:
		_, err = fetch(ctx, s, q, s.loadBattles)
	case QueryLeaderboard:
		// every cached limit is stale; re-read the requested one
		s.cache.DeleteFunc(func(key string) bool {
			return strings.HasPrefix(key, string(QueryLeaderboard)+":")
		})
		limit := q.Limit
		if limit <= 0 {
			limit = s.limit
		}
		_, err = fetch(ctx, s, LeaderboardQuery(limit), s.loadLeaderboard(limit))
	case QueryTokens:
		_, err = fetch(ctx, s, q, s.reader.ReadTokens)
	case QueryTokenStats:
		_, err = fetch(ctx, s, q, s.loadTokenStats(q.Token))
	default:
		s.cache.Delete(q.Key())
	}
	return err
}

// IsPending reports whether a mutation is outstanding for battleID.
func (s *BattleService) IsPending(battleID uint64) bool {
	_, ok := s.inflight.Load(battleKey(battleID))
	return ok
}

func battleKey(id uint64) string {
	return "battle:" + new(big.Int).SetUint64(id).String()
}

func pairKey(a, b common.Address) string {
	x, y := strings.ToLower(a.Hex()), strings.ToLower(b.Hex())
	if y < x {
		x, y = y, x
	}
	return "create:" + x + "-" + y
}

// acquire marks key in flight. The returned release must be deferred.
func (s *BattleService) acquire(key string) (func(), bool) {
	if _, loaded := s.inflight.LoadOrStore(key, s.clock()); loaded {
		return nil, false
	}
	s.metrics.InflightAdd(1)
	return func() {
		s.inflight.Delete(key)
		s.metrics.InflightAdd(-1)
	}, true
}
