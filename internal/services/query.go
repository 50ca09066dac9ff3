package services

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// QueryKind names a cached read.
type QueryKind string

const (
	QueryBattles     QueryKind = "battles"
	QueryLeaderboard QueryKind = "leaderboard"
	QueryTokens      QueryKind = "tokens"
	QueryTokenStats  QueryKind = "token_stats"
)

// Query identifies one cached read. Token is set only for QueryTokenStats,
// Limit only for QueryLeaderboard.
type Query struct {
	Kind  QueryKind      `json:"kind"`
	Token common.Address `json:"token,omitempty"`
	Limit int            `json:"limit,omitempty"`
}

func BattlesQuery() Query { return Query{Kind: QueryBattles} }

func TokensQuery() Query { return Query{Kind: QueryTokens} }

func LeaderboardQuery(limit int) Query { return Query{Kind: QueryLeaderboard, Limit: limit} }

func TokenStatsQuery(token common.Address) Query {
	return Query{Kind: QueryTokenStats, Token: token}
}

// Key is the cache key.
func (q Query) Key() string {
	switch q.Kind {
	case QueryTokenStats:
		return fmt.Sprintf("%s:%s", q.Kind, q.Token.Hex())
	case QueryLeaderboard:
		return fmt.Sprintf("%s:%d", q.Kind, q.Limit)
	default:
		return string(q.Kind)
	}
}

func (q Query) String() string { return q.Key() }
