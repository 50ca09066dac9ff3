package contract

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/memed/arena/internal/domain"
)

var (
	// ErrNotConnected is returned by writes when no signer is configured.
	ErrNotConnected = errors.New("wallet not connected")
	// ErrShapeMismatch marks parallel arrays of different lengths.
	ErrShapeMismatch = errors.New("contract returned arrays of unequal length")
)

// Backend is the part of *ethclient.Client the arena needs.
type Backend interface {
	bind.DeployBackend
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	BlockNumber(ctx context.Context) (uint64, error)
}

// Limiter throttles outgoing reads.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Signer holds the wallet used for writes.
type Signer struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
}

// NewSigner derives the address for key.
func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{Key: key, Address: crypto.PubkeyToAddress(key.PublicKey)}
}

// Options configures a Client.
type Options struct {
	BattleAddress  common.Address
	FactoryAddress common.Address
	ChainID        *big.Int
	Signer         *Signer // nil means read-only
	Limiter        Limiter // optional
}

// Client reads and writes the battle and factory contracts.
type Client struct {
	backend Backend
	closer  func()

	battleAddr  common.Address
	factoryAddr common.Address
	chainID     *big.Int
	signer      *Signer
	limiter     Limiter

	battleABI  abi.ABI
	factoryABI abi.ABI
	erc20ABI   abi.ABI

	// serializes nonce allocation for our own submissions
	sendMu sync.Mutex
}

// Dial connects to rpcURL and resolves the chain id when opts.ChainID is nil.
func Dial(ctx context.Context, rpcURL string, opts Options) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	if opts.ChainID == nil {
		id, err := ec.ChainID(ctx)
		if err != nil {
			ec.Close()
			return nil, fmt.Errorf("chain id: %w", err)
		}
		opts.ChainID = id
	}
	c, err := New(ec, opts)
	if err != nil {
		ec.Close()
		return nil, err
	}
	c.closer = ec.Close
	return c, nil
}

// New builds a Client on top of an existing backend.
func New(backend Backend, opts Options) (*Client, error) {
	battleABI, err := abi.JSON(strings.NewReader(BattleABI))
	if err != nil {
		return nil, fmt.Errorf("parse battle abi: %w", err)
	}
	factoryABI, err := abi.JSON(strings.NewReader(FactoryABI))
	if err != nil {
		return nil, fmt.Errorf("parse factory abi: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	chainID := opts.ChainID
	if chainID == nil {
		chainID = big.NewInt(56)
	}
	return &Client{
		backend:     backend,
		battleAddr:  opts.BattleAddress,
		factoryAddr: opts.FactoryAddress,
		chainID:     chainID,
		signer:      opts.Signer,
		limiter:     opts.Limiter,
		battleABI:   battleABI,
		factoryABI:  factoryABI,
		erc20ABI:    erc20ABI,
	}, nil
}

// Close releases the underlying RPC connection when Dial created it.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// Account returns the signer address, or false in read-only mode.
func (c *Client) Account() (common.Address, bool) {
	if c.signer == nil {
		return common.Address{}, false
	}
	return c.signer.Address, true
}

// BattleArrays is the positional return shape of getBattles. Index i of every
// slice describes the same battle.
type BattleArrays struct {
	IDs        []*big.Int       `abi:"battleIds"`
	TokenA     []common.Address `abi:"token1Addresses"`
	TokenB     []common.Address `abi:"token2Addresses"`
	VotesA     []*big.Int       `abi:"token1Votes"`
	VotesB     []*big.Int       `abi:"token2Votes"`
	StartTimes []*big.Int       `abi:"startTimes"`
	EndTimes   []*big.Int       `abi:"endTimes"`
	Settled    []bool           `abi:"settled"`
	Winners    []common.Address `abi:"winners"`
}

// Len returns the length of the id column.
func (a BattleArrays) Len() int { return len(a.IDs) }

// CheckShape verifies every column has the length of the id column.
func (a BattleArrays) CheckShape() error {
	n := len(a.IDs)
	cols := []struct {
		name string
		n    int
	}{
		{"token1Addresses", len(a.TokenA)},
		{"token2Addresses", len(a.TokenB)},
		{"token1Votes", len(a.VotesA)},
		{"token2Votes", len(a.VotesB)},
		{"startTimes", len(a.StartTimes)},
		{"endTimes", len(a.EndTimes)},
		{"settled", len(a.Settled)},
		{"winners", len(a.Winners)},
	}
	for _, col := range cols {
		if col.n != n {
			return fmt.Errorf("%w: battleIds=%d %s=%d", ErrShapeMismatch, n, col.name, col.n)
		}
	}
	return nil
}

// ReadBattles calls getBattles(activeOnly).
func (c *Client) ReadBattles(ctx context.Context, activeOnly bool) (BattleArrays, error) {
	var out BattleArrays
	if err := c.call(ctx, c.battleAddr, c.battleABI, &out, "getBattles", activeOnly); err != nil {
		return BattleArrays{}, err
	}
	return out, nil
}

type leaderboardArrays struct {
	Addresses []common.Address `abi:"addresses"`
	Wins      []*big.Int       `abi:"wins"`
	Battles   []*big.Int       `abi:"battles"`
	Votes     []*big.Int       `abi:"votes"`
}

// ReadLeaderboard calls getLeaderboard(limit) and zips the columns.
func (c *Client) ReadLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	var raw leaderboardArrays
	if err := c.call(ctx, c.battleAddr, c.battleABI, &raw, "getLeaderboard", big.NewInt(int64(limit))); err != nil {
		return nil, err
	}
	n := len(raw.Addresses)
	if len(raw.Wins) != n || len(raw.Battles) != n || len(raw.Votes) != n {
		return nil, fmt.Errorf("%w: addresses=%d wins=%d battles=%d votes=%d",
			ErrShapeMismatch, n, len(raw.Wins), len(raw.Battles), len(raw.Votes))
	}
	out := make([]domain.LeaderboardEntry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.LeaderboardEntry{
			Token:        raw.Addresses[i],
			Wins:         raw.Wins[i],
			TotalBattles: raw.Battles[i],
			TotalVotes:   raw.Votes[i],
		})
	}
	return out, nil
}

type basicStats struct {
	Wins    *big.Int `abi:"wins"`
	Battles *big.Int `abi:"battles"`
	Votes   *big.Int `abi:"votes"`
}

// ReadTokenBasicStats calls getTokenBasicStats(token).
func (c *Client) ReadTokenBasicStats(ctx context.Context, token common.Address) (domain.TokenStats, error) {
	var raw basicStats
	if err := c.call(ctx, c.battleAddr, c.battleABI, &raw, "getTokenBasicStats", token); err != nil {
		return domain.TokenStats{}, err
	}
	return domain.TokenStats{Token: token, Wins: raw.Wins, Battles: raw.Battles, Votes: raw.Votes}, nil
}

// tokenData must keep the field order of the factory's AllTokenData tuple.
type tokenData struct {
	Token       common.Address
	Name        string
	Ticker      string
	Description string
	Image       string
	Owner       common.Address
	Stage       uint8
	Collateral  *big.Int
	Supply      *big.Int
	CreatedAt   *big.Int
}

// ReadTokens lists every factory token (getTokens(address(0))).
func (c *Client) ReadTokens(ctx context.Context) ([]domain.TokenSummary, error) {
	var raw []tokenData
	if err := c.call(ctx, c.factoryAddr, c.factoryABI, &raw, "getTokens", domain.ZeroAddress); err != nil {
		return nil, err
	}
	out := make([]domain.TokenSummary, 0, len(raw))
	for _, t := range raw {
		var created int64
		if t.CreatedAt != nil {
			created = t.CreatedAt.Int64()
		}
		out = append(out, domain.TokenSummary{
			Address:     t.Token,
			Name:        t.Name,
			Ticker:      t.Ticker,
			Description: t.Description,
			Image:       t.Image,
			Owner:       t.Owner,
			Stage:       domain.TokenStage(t.Stage),
			Collateral:  t.Collateral,
			Supply:      t.Supply,
			CreatedAt:   created,
		})
	}
	return out, nil
}

// BalanceOf reads an ERC-20 balance.
func (c *Client) BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	var balance *big.Int
	if err := c.call(ctx, token, c.erc20ABI, &balance, "balanceOf", holder); err != nil {
		return nil, err
	}
	return balance, nil
}

// BlockNumber returns the latest block height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	return c.backend.BlockNumber(ctx)
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *Client) call(ctx context.Context, to common.Address, parsed abi.ABI, out interface{}, method string, args ...interface{}) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}
	result, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	if len(result) == 0 {
		return fmt.Errorf("call %s: empty result (no contract at %s?)", method, to.Hex())
	}
	if err := parsed.UnpackIntoInterface(out, method, result); err != nil {
		return fmt.Errorf("unpack %s: %w", method, err)
	}
	return nil
}
