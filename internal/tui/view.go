package tui

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/memed/arena/internal/battle"
	"github.com/memed/arena/internal/domain"
)

const barWidth = 24

func (m Model) View() string {
	var b strings.Builder

	account := "read-only"
	if addr, ok := m.svc.Account(); ok {
		account = domain.ShortAddress(addr)
	}
	if m.creating {
		account += pendingStyle.Render("  [create pending]")
	}
	b.WriteString(headerStyle.Render("Memed Battle Arena") + " " + dimStyle.Render(account) + "\n")
	b.WriteString(m.renderTabs() + "\n\n")

	readErr := m.readErr
	if readErr == nil {
		readErr = m.refreshErr
	}
	switch {
	case m.picker != nil:
		b.WriteString(m.renderPicker())
	case readErr != nil && len(m.battles) == 0 && len(m.board) == 0:
		b.WriteString(errorBoxStyle.Render("Failed to load battles: "+readErr.Error()+"\nPress r to retry.") + "\n")
	case m.loading && m.battles == nil:
		b.WriteString(dimStyle.Render("Loading battles...") + "\n")
	default:
		if readErr != nil {
			b.WriteString(errorBoxStyle.Render("Refresh failed: "+readErr.Error()+" (r to retry)") + "\n")
		}
		if m.tab == tabBattles {
			b.WriteString(m.renderBattles())
		} else {
			b.WriteString(m.renderLeaderboard())
		}
	}

	if m.toast != nil {
		style := toastOKStyle
		if m.toast.isErr {
			style = toastErrStyle
		}
		b.WriteString("\n" + style.Render(m.toast.text) + "\n")
	}
	help := "↑/↓ select · a/b vote · s settle · c create · r refresh · tab switch · q quit"
	if m.picker != nil {
		help = "↑/↓ select · enter pick · esc cancel"
	}
	b.WriteString("\n" + dimStyle.Render(help))
	return b.String()
}

func (m Model) renderPicker() string {
	var b strings.Builder
	p := m.picker
	b.WriteString(sectionStyle.Render("Start a battle (fee "+battle.FormatBNB(m.svc.CreationFee())+")") + "\n")
	if p.first == nil {
		b.WriteString(dimStyle.Render("  pick side A") + "\n")
	} else {
		b.WriteString("  " + sideAStyle.Render(battle.DisplayName(p.first.Address, m.tokens)) + " vs " + dimStyle.Render("pick side B") + "\n")
	}
	for i, t := range p.tokens {
		mark := "  "
		if i == p.cursor {
			mark = selectedStyle.Render("> ")
		}
		name := battle.DisplayName(t.Address, m.tokens)
		if p.first != nil && p.first.Address == t.Address {
			name = dimStyle.Render(name + " (side A)")
		}
		b.WriteString(mark + name + "\n")
	}
	return b.String()
}

func (m Model) renderTabs() string {
	names := []string{"Battles", "Leaderboard"}
	out := make([]string, len(names))
	for i, n := range names {
		if tab(i) == m.tab {
			out[i] = activeTabStyle.Render(n)
		} else {
			out[i] = tabStyle.Render(n)
		}
	}
	return strings.Join(out, " ")
}

func (m Model) renderBattles() string {
	var b strings.Builder
	idx := 0

	b.WriteString(sectionStyle.Render(fmt.Sprintf("Active battles (%d)", len(m.snap.Active))) + "\n")
	if len(m.snap.Active) == 0 {
		b.WriteString(dimStyle.Render("  no active battles") + "\n")
	}
	for _, v := range m.snap.Active {
		b.WriteString(m.cursorMark(idx) + m.renderActive(v) + "\n")
		idx++
	}

	b.WriteString("\n" + sectionStyle.Render(fmt.Sprintf("Ended battles (%d)", len(m.snap.Ended))) + "\n")
	if len(m.snap.Ended) == 0 {
		b.WriteString(dimStyle.Render("  no ended battles") + "\n")
	}
	for _, v := range m.snap.Ended {
		b.WriteString(m.cursorMark(idx) + m.renderEnded(v) + "\n")
		idx++
	}
	return b.String()
}

func (m Model) cursorMark(idx int) string {
	if idx == m.cursor {
		return selectedStyle.Render("> ")
	}
	return "  "
}

func (m Model) pair(v battle.View) string {
	return fmt.Sprintf("#%d %s vs %s", v.ID,
		sideAStyle.Render(battle.DisplayName(v.TokenA, m.tokens)),
		sideBStyle.Render(battle.DisplayName(v.TokenB, m.tokens)))
}

func (m Model) renderActive(v battle.View) string {
	line := fmt.Sprintf("%s  %s %5.1f%% / %5.1f%%  votes %s / %s (total %s)  ⏱ %s",
		m.pair(v),
		progressBar(v.ProgressA),
		v.ProgressA, v.ProgressB,
		battle.FormatVotes(v.VotesA), battle.FormatVotes(v.VotesB),
		battle.FormatVotes(v.TotalVotes()),
		v.Countdown)
	return line + m.pendingMark(v.ID)
}

func (m Model) renderEnded(v battle.View) string {
	var status string
	switch v.Status {
	case battle.StatusSettled:
		status = "Settled"
		if v.Winner != nil {
			status += "  Winner: " + winnerStyle.Render(battle.DisplayName(*v.Winner, m.tokens))
		}
	case battle.StatusReadyToSettle:
		status = settleStyle.Render("Ready to Settle")
	default:
		status = dimStyle.Render("Ended")
	}
	return fmt.Sprintf("%s  %5.1f%% / %5.1f%%  %s", m.pair(v), v.ProgressA, v.ProgressB, status) + m.pendingMark(v.ID)
}

func (m Model) pendingMark(id uint64) string {
	if op, ok := m.pending[id]; ok {
		return pendingStyle.Render("  [" + op + " pending]")
	}
	if m.svc.IsPending(id) {
		return pendingStyle.Render("  [pending]")
	}
	return ""
}

func (m Model) renderLeaderboard() string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Leaderboard") + "\n")
	if len(m.board) == 0 {
		b.WriteString(dimStyle.Render("  no ranked tokens yet") + "\n")
		return b.String()
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %-12s %-18s %6s %8s %8s %14s", "Rank", "Token", "Wins", "Battles", "Win %", "Votes")) + "\n")
	for _, r := range m.board {
		badge := r.Badge
		if r.Rank == 0 {
			badge = winnerStyle.Render(fmt.Sprintf("%-12s", badge))
		} else {
			badge = fmt.Sprintf("%-12s", badge)
		}
		b.WriteString(fmt.Sprintf("  %s %-18s %6s %8s %8s %14s\n",
			badge,
			truncate(r.Name, 18),
			bigString(r.Entry.Wins),
			bigString(r.Entry.TotalBattles),
			r.WinRateString(),
			battle.FormatVotes(r.Entry.TotalVotes)))
	}
	return b.String()
}

func progressBar(pctA float64) string {
	filled := int(math.Round(pctA / 100 * barWidth))
	if filled < 0 {
		filled = 0
	}
	if filled > barWidth {
		filled = barWidth
	}
	return sideAStyle.Render(strings.Repeat("█", filled)) + sideBStyle.Render(strings.Repeat("█", barWidth-filled))
}

func shortHash(h common.Hash) string {
	s := h.Hex()
	return s[:10] + "..." + s[len(s)-6:]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
