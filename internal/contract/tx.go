package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// ErrReverted is returned by WaitMined when the receipt status is failed.
var ErrReverted = errors.New("transaction reverted")

// TxHandle identifies a submitted transaction.
type TxHandle struct {
	Hash  common.Hash `json:"hash"`
	Nonce uint64      `json:"nonce"`

	tx *ethtypes.Transaction
}

// CreateBattle submits createBattle(tokenA, tokenB) paying fee wei.
func (c *Client) CreateBattle(ctx context.Context, tokenA, tokenB common.Address, fee *big.Int) (TxHandle, error) {
	data, err := c.battleABI.Pack("createBattle", tokenA, tokenB)
	if err != nil {
		return TxHandle{}, fmt.Errorf("pack createBattle: %w", err)
	}
	return c.submit(ctx, "createBattle", data, fee)
}

// Vote submits vote(battleID, token).
func (c *Client) Vote(ctx context.Context, battleID uint64, token common.Address) (TxHandle, error) {
	data, err := c.battleABI.Pack("vote", new(big.Int).SetUint64(battleID), token)
	if err != nil {
		return TxHandle{}, fmt.Errorf("pack vote: %w", err)
	}
	return c.submit(ctx, "vote", data, nil)
}

// SettleBattle submits settleBattle(battleID).
func (c *Client) SettleBattle(ctx context.Context, battleID uint64) (TxHandle, error) {
	data, err := c.battleABI.Pack("settleBattle", new(big.Int).SetUint64(battleID))
	if err != nil {
		return TxHandle{}, fmt.Errorf("pack settleBattle: %w", err)
	}
	return c.submit(ctx, "settleBattle", data, nil)
}

// WaitMined blocks until the transaction has a receipt or ctx is done.
func (c *Client) WaitMined(ctx context.Context, h TxHandle) (*ethtypes.Receipt, error) {
	if h.tx == nil {
		return nil, fmt.Errorf("wait %s: transaction not submitted by this client", h.Hash.Hex())
	}
	receipt, err := bind.WaitMined(ctx, c.backend, h.tx)
	if err != nil {
		return nil, fmt.Errorf("wait %s: %w", h.Hash.Hex(), err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%s: %w", h.Hash.Hex(), ErrReverted)
	}
	return receipt, nil
}

func (c *Client) submit(ctx context.Context, method string, data []byte, value *big.Int) (TxHandle, error) {
	if c.signer == nil {
		return TxHandle{}, ErrNotConnected
	}
	if value == nil {
		value = big.NewInt(0)
	}
	from := c.signer.Address

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return TxHandle{}, fmt.Errorf("%s: nonce: %w", method, err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return TxHandle{}, fmt.Errorf("%s: gas price: %w", method, err)
	}
	// reverts (cooldown, already voted, ...) surface here with the contract's reason
	gasLimit, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &c.battleAddr,
		Data:  data,
		Value: value,
	})
	if err != nil {
		return TxHandle{}, fmt.Errorf("%s: estimate gas: %w", method, err)
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &c.battleAddr,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(c.chainID), c.signer.Key)
	if err != nil {
		return TxHandle{}, fmt.Errorf("%s: sign: %w", method, err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return TxHandle{}, fmt.Errorf("%s: send: %w", method, err)
	}
	return TxHandle{Hash: signed.Hash(), Nonce: nonce, tx: signed}, nil
}
