package server

import (
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/memed/arena/internal/domain"
)

const maxBatchTokens = 50

func (s *Server) handleBattles(c *gin.Context) {
	if s.deps.Battles == nil {
		writeError(c, http.StatusServiceUnavailable, "battle reads are not configured")
		return
	}
	snap, err := s.deps.Battles.Snapshot(c.Request.Context())
	if err != nil {
		writeReadError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, snap)
}

func (s *Server) handleLeaderboard(c *gin.Context) {
	if s.deps.Battles == nil {
		writeError(c, http.StatusServiceUnavailable, "battle reads are not configured")
		return
	}
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			writeValidation(c, []fieldError{{Field: "limit", Message: "limit must be an integer between 1 and 100"}})
			return
		}
		limit = n
	}
	rows, err := s.deps.Battles.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		writeReadError(c, err)
		return
	}
	type row struct {
		Rank     int    `json:"rank"`
		Badge    string `json:"badge"`
		Token    string `json:"token"`
		Name     string `json:"name"`
		Wins     string `json:"wins"`
		Battles  string `json:"battles"`
		Votes    string `json:"votes"`
		WinRate  string `json:"winRate"`
		AvgVotes string `json:"avgVotes"`
	}
	out := make([]row, 0, len(rows))
	for _, r := range rows {
		out = append(out, row{
			Rank:     r.Rank + 1,
			Badge:    r.Badge,
			Token:    r.Entry.Token.Hex(),
			Name:     r.Name,
			Wins:     bigString(r.Entry.Wins),
			Battles:  bigString(r.Entry.TotalBattles),
			Votes:    bigString(r.Entry.TotalVotes),
			WinRate:  r.WinRateString(),
			AvgVotes: r.AvgVotesString(),
		})
	}
	writeJSON(c, http.StatusOK, out)
}

func (s *Server) handleTokenStats(c *gin.Context) {
	if s.deps.Battles == nil {
		writeError(c, http.StatusServiceUnavailable, "battle reads are not configured")
		return
	}
	raw := c.Param("address")
	if !domain.IsHexAddress(raw) {
		writeValidation(c, []fieldError{{Field: "address", Message: "address must be a 0x-prefixed 40 hex character address"}})
		return
	}
	stats, err := s.deps.Battles.TokenStats(c.Request.Context(), common.HexToAddress(raw))
	if err != nil {
		writeReadError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, stats)
}

func (s *Server) handleTokenStatsBatch(c *gin.Context) {
	if s.deps.Battles == nil {
		writeError(c, http.StatusServiceUnavailable, "battle reads are not configured")
		return
	}
	var tokens []common.Address
	for _, part := range strings.Split(c.Query("addresses"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !domain.IsHexAddress(part) {
			writeValidation(c, []fieldError{{Field: "addresses", Message: "invalid address " + part}})
			return
		}
		tokens = append(tokens, common.HexToAddress(part))
	}
	if len(tokens) == 0 || len(tokens) > maxBatchTokens {
		writeValidation(c, []fieldError{{Field: "addresses", Message: "addresses must list 1 to " + strconv.Itoa(maxBatchTokens) + " tokens"}})
		return
	}
	stats, err := s.deps.Battles.TokenStatsBatch(c.Request.Context(), tokens)
	if err != nil {
		writeReadError(c, err)
		return
	}
	out := make(map[string]any, len(stats))
	for addr, st := range stats {
		out[addr.Hex()] = st
	}
	writeJSON(c, http.StatusOK, out)
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
