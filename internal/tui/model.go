// Package tui is the terminal battle dashboard.
package tui

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"

	"github.com/memed/arena/internal/battle"
	"github.com/memed/arena/internal/domain"
	"github.com/memed/arena/internal/services"
	"github.com/memed/arena/pkg/sigchan"
)

// Service is what the dashboard needs from services.BattleService.
type Service interface {
	Snapshot(ctx context.Context) (services.Snapshot, error)
	Leaderboard(ctx context.Context, limit int) ([]battle.LeaderboardRow, error)
	TokenIndex(ctx context.Context) (map[common.Address]domain.TokenSummary, error)
	Vote(ctx context.Context, battleID uint64, token common.Address) (services.MutationResult, error)
	SettleBattle(ctx context.Context, battleID uint64) (services.MutationResult, error)
	CreateBattle(ctx context.Context, tokenA, tokenB common.Address) (services.MutationResult, error)
	CreationFee() *big.Int
	RefreshAll(ctx context.Context) error
	IsPending(battleID uint64) bool
	Account() (common.Address, bool)
	Subscribe() (*sigchan.Chan, func())
	Now() time.Time
}

type tab int

const (
	tabBattles tab = iota
	tabLeaderboard
)

const toastTTL = 5 * time.Second

type tickMsg time.Time

// refreshedMsg is the service's refresh signal firing.
type refreshedMsg struct{}

// manualRefreshMsg reports the outcome of a user-requested RefreshAll.
type manualRefreshMsg struct {
	err error
}

type snapshotMsg struct {
	snap   services.Snapshot
	tokens map[common.Address]domain.TokenSummary
	err    error
}

type leaderboardMsg struct {
	rows []battle.LeaderboardRow
	err  error
}

type mutationMsg struct {
	op       string
	battleID uint64
	res      services.MutationResult
	err      error
}

// picker selects the two sides of a new battle.
type picker struct {
	tokens []domain.TokenSummary
	cursor int
	first  *domain.TokenSummary
}

type toast struct {
	text  string
	isErr bool
	until time.Time
}

// Model is the bubbletea model of the dashboard.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	svc    Service
	sig    *sigchan.Chan
	unsub  func()

	tab     tab
	cursor  int
	battles []domain.Battle
	snap    services.Snapshot
	tokens  map[common.Address]domain.TokenSummary
	board   []battle.LeaderboardRow
	readErr error
	loading bool

	// refreshErr is the last manual refresh failure. Reads served from the
	// cache do not clear it.
	refreshErr error

	pending  map[uint64]string // battle id -> op
	picker   *picker
	creating bool
	toast    *toast
	now      time.Time
	width    int
}

// New builds a dashboard bound to ctx. Quitting cancels ctx.
func New(ctx context.Context, svc Service) Model {
	ctx, cancel := context.WithCancel(ctx)
	sig, unsub := svc.Subscribe()
	return Model{
		ctx:     ctx,
		cancel:  cancel,
		svc:     svc,
		sig:     sig,
		unsub:   unsub,
		loading: true,
		pending: make(map[uint64]string),
		now:     svc.Now(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadSnapshot(),
		m.loadLeaderboard(),
		m.waitRefresh(),
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) loadSnapshot() tea.Cmd {
	ctx, svc := m.ctx, m.svc
	return func() tea.Msg {
		snap, err := svc.Snapshot(ctx)
		if err != nil {
			return snapshotMsg{err: err}
		}
		// names are cosmetic; short addresses are shown without them
		tokens, _ := svc.TokenIndex(ctx)
		return snapshotMsg{snap: snap, tokens: tokens}
	}
}

func (m Model) loadLeaderboard() tea.Cmd {
	ctx, svc := m.ctx, m.svc
	return func() tea.Msg {
		rows, err := svc.Leaderboard(ctx, 0)
		return leaderboardMsg{rows: rows, err: err}
	}
}

// waitRefresh turns the service's refresh signal into a message.
func (m Model) waitRefresh() tea.Cmd {
	ctx, sig := m.ctx, m.sig
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case <-sig.C():
			return refreshedMsg{}
		}
	}
}

func (m Model) manualRefresh() tea.Cmd {
	ctx, svc := m.ctx, m.svc
	return func() tea.Msg {
		return manualRefreshMsg{err: svc.RefreshAll(ctx)}
	}
}

func (m Model) create(a, b common.Address) tea.Cmd {
	ctx, svc := m.ctx, m.svc
	return func() tea.Msg {
		res, err := svc.CreateBattle(ctx, a, b)
		return mutationMsg{op: services.OpCreate, res: res, err: err}
	}
}

func (m Model) vote(id uint64, token common.Address) tea.Cmd {
	ctx, svc := m.ctx, m.svc
	return func() tea.Msg {
		res, err := svc.Vote(ctx, id, token)
		return mutationMsg{op: services.OpVote, battleID: id, res: res, err: err}
	}
}

func (m Model) settle(id uint64) tea.Cmd {
	ctx, svc := m.ctx, m.svc
	return func() tea.Msg {
		res, err := svc.SettleBattle(ctx, id)
		return mutationMsg{op: services.OpSettle, battleID: id, res: res, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		m.now = time.Time(msg)
		if m.battles != nil {
			m.snap = services.BuildSnapshot(m.battles, m.now)
		}
		if m.toast != nil && !m.now.Before(m.toast.until) {
			m.toast = nil
		}
		return m, tickCmd()

	case snapshotMsg:
		m.loading = false
		if msg.err != nil {
			m.readErr = msg.err
			return m, nil
		}
		m.readErr = nil
		m.snap = msg.snap
		m.battles = snapshotBattles(msg.snap)
		if msg.tokens != nil {
			m.tokens = msg.tokens
		}
		m.clampCursor()

	case leaderboardMsg:
		if msg.err != nil {
			m.readErr = msg.err
			return m, nil
		}
		m.board = msg.rows

	case refreshedMsg:
		return m, tea.Batch(m.loadSnapshot(), m.loadLeaderboard(), m.waitRefresh())

	case manualRefreshMsg:
		// the signal waiter started in Init stays the only one
		m.loading = false
		m.refreshErr = msg.err
		if msg.err != nil {
			return m, nil
		}
		return m, tea.Batch(m.loadSnapshot(), m.loadLeaderboard())

	case mutationMsg:
		if msg.op == services.OpCreate {
			m.creating = false
		} else {
			delete(m.pending, msg.battleID)
		}
		if msg.err != nil {
			m.toast = &toast{text: failureText(msg.err), isErr: true, until: m.now.Add(toastTTL)}
			return m, nil
		}
		text := fmt.Sprintf("%s #%d submitted: %s", msg.op, msg.battleID, shortHash(msg.res.Tx.Hash))
		if msg.op == services.OpCreate {
			text = "battle creation submitted: " + shortHash(msg.res.Tx.Hash)
		}
		m.toast = &toast{text: text, until: m.now.Add(toastTTL)}
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.cancel()
	if m.unsub != nil {
		m.unsub()
	}
	return m, tea.Quit
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.picker != nil {
		return m.handlePickerKey(msg)
	}
	switch msg.String() {
	case "ctrl+c", "q":
		return m.quit()
	case "tab":
		if m.tab == tabBattles {
			m.tab = tabLeaderboard
		} else {
			m.tab = tabBattles
		}
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.rows())-1 {
			m.cursor++
		}
	case "r":
		m.loading = true
		return m, m.manualRefresh()
	case "a", "b":
		return m.startVote(msg.String() == "a")
	case "s":
		return m.startSettle()
	case "c":
		return m.startCreate()
	}
	return m, nil
}

func (m Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := *m.picker
	switch msg.String() {
	case "ctrl+c":
		return m.quit()
	case "esc", "q":
		m.picker = nil
		return m, nil
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.tokens)-1 {
			p.cursor++
		}
	case "enter":
		chosen := p.tokens[p.cursor]
		if p.first == nil {
			p.first = &chosen
			break
		}
		if p.first.Address == chosen.Address {
			break
		}
		m.picker = nil
		m.creating = true
		return m, m.create(p.first.Address, chosen.Address)
	}
	m.picker = &p
	return m, nil
}

func (m Model) startCreate() (tea.Model, tea.Cmd) {
	if _, ok := m.svc.Account(); !ok {
		m.toast = &toast{text: "Connect a wallet first.", isErr: true, until: m.now.Add(toastTTL)}
		return m, nil
	}
	if m.creating {
		m.toast = &toast{text: "A battle creation is already pending.", isErr: true, until: m.now.Add(toastTTL)}
		return m, nil
	}
	tokens := m.eligibleTokens()
	if len(tokens) < 2 {
		m.toast = &toast{text: "At least two graduated tokens are needed to start a battle.", isErr: true, until: m.now.Add(toastTTL)}
		return m, nil
	}
	m.picker = &picker{tokens: tokens}
	return m, nil
}

// eligibleTokens lists graduated tokens by display name. The service repeats
// the supply check on submit.
func (m Model) eligibleTokens() []domain.TokenSummary {
	out := make([]domain.TokenSummary, 0, len(m.tokens))
	for _, t := range m.tokens {
		if t.Stage == domain.StageGraduated {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ni, nj := battle.DisplayName(out[i].Address, m.tokens), battle.DisplayName(out[j].Address, m.tokens)
		if ni != nj {
			return ni < nj
		}
		return out[i].Address.Hex() < out[j].Address.Hex()
	})
	return out
}

func (m Model) startVote(sideA bool) (tea.Model, tea.Cmd) {
	v, ok := m.selected()
	if !ok {
		return m, nil
	}
	if v.Status != battle.StatusActive {
		m.toast = &toast{text: "Voting is closed for this battle.", isErr: true, until: m.now.Add(toastTTL)}
		return m, nil
	}
	if m.isPending(v.ID) {
		m.toast = &toast{text: "A transaction for this battle is already pending.", isErr: true, until: m.now.Add(toastTTL)}
		return m, nil
	}
	token := v.TokenB
	if sideA {
		token = v.TokenA
	}
	m.pending[v.ID] = services.OpVote
	return m, m.vote(v.ID, token)
}

func (m Model) startSettle() (tea.Model, tea.Cmd) {
	v, ok := m.selected()
	if !ok {
		return m, nil
	}
	if m.isPending(v.ID) {
		m.toast = &toast{text: "A transaction for this battle is already pending.", isErr: true, until: m.now.Add(toastTTL)}
		return m, nil
	}
	m.pending[v.ID] = services.OpSettle
	return m, m.settle(v.ID)
}

// rows is the selectable list: active battles first, then ended.
func (m Model) rows() []battle.View {
	if m.tab != tabBattles {
		return nil
	}
	out := make([]battle.View, 0, len(m.snap.Active)+len(m.snap.Ended))
	out = append(out, m.snap.Active...)
	return append(out, m.snap.Ended...)
}

func (m Model) selected() (battle.View, bool) {
	rows := m.rows()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return battle.View{}, false
	}
	return rows[m.cursor], true
}

func (m *Model) clampCursor() {
	n := len(m.snap.Active) + len(m.snap.Ended)
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) isPending(id uint64) bool {
	if _, ok := m.pending[id]; ok {
		return true
	}
	return m.svc.IsPending(id)
}

func snapshotBattles(s services.Snapshot) []domain.Battle {
	out := make([]domain.Battle, 0, len(s.Active)+len(s.Ended))
	for _, v := range s.Active {
		out = append(out, v.Battle)
	}
	for _, v := range s.Ended {
		out = append(out, v.Battle)
	}
	return out
}

func failureText(err error) string {
	var me *services.MutationError
	if errors.As(err, &me) {
		return me.Message()
	}
	return err.Error()
}
