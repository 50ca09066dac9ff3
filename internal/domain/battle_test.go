package domain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokA = common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokB = common.HexToAddress("0x2222222222222222222222222222222222222222")
	tokC = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func TestBattleValidate(t *testing.T) {
	base := Battle{ID: 1, TokenA: tokA, TokenB: tokB, StartTime: 100, EndTime: 200}
	require.NoError(t, base.Validate())

	same := base
	same.TokenB = tokA
	assert.ErrorIs(t, same.Validate(), ErrSameToken)

	window := base
	window.EndTime = 100
	assert.ErrorIs(t, window.Validate(), ErrBadWindow)

	early := base
	early.Winner = &tokA
	assert.ErrorIs(t, early.Validate(), ErrWinnerUnsettled)

	foreign := base
	foreign.Settled = true
	foreign.Winner = &tokC
	assert.ErrorIs(t, foreign.Validate(), ErrWinnerForeign)

	won := base
	won.Settled = true
	won.Winner = &tokB
	assert.NoError(t, won.Validate())
}

func TestBattleSidesAndTotals(t *testing.T) {
	b := Battle{TokenA: tokA, TokenB: tokB, VotesA: big.NewInt(3)}
	assert.Equal(t, "A", b.Side(tokA))
	assert.Equal(t, "B", b.Side(tokB))
	assert.Equal(t, "", b.Side(tokC))
	assert.True(t, b.HasToken(tokB))
	assert.False(t, b.HasToken(tokC))
	assert.Equal(t, int64(3), b.TotalVotes().Int64())
}

func TestAddressHelpers(t *testing.T) {
	assert.True(t, IsZeroAddress(common.Address{}))
	assert.False(t, IsZeroAddress(tokA))
	assert.Equal(t, "0x1111...1111", ShortAddress(tokA))

	assert.True(t, IsHexAddress("0x35134987bB541607Cd45e62Dd1feA4F587607817"))
	assert.False(t, IsHexAddress("35134987bB541607Cd45e62Dd1feA4F587607817"))
	assert.False(t, IsHexAddress("0x35134987bB541607Cd45e62Dd1feA4F58760781"))
	assert.False(t, IsHexAddress("0xZZ134987bB541607Cd45e62Dd1feA4F587607817"))
	assert.Equal(t, "0xabcdef", NormalizeAddress("  0xABCdef "))
	assert.Equal(t, "graduated", StageGraduated.String())
}
