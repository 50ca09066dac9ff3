package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/memed/arena/internal/contract"
)

// Kind classifies a failed mutation for the user.
type Kind string

const (
	KindUserRejected     Kind = "user_rejected"
	KindCooldown         Kind = "cooldown"
	KindInsufficientFee  Kind = "insufficient_fee"
	KindInsufficientGas  Kind = "insufficient_gas"
	KindAlreadyVoted     Kind = "already_voted"
	KindBattleEnded      Kind = "battle_ended"
	KindBattleNotStarted Kind = "battle_not_started"
	KindNoVotingPower    Kind = "no_voting_power"
	KindAlreadySettled   Kind = "already_settled"
	KindNotYetSettleable Kind = "not_yet_settleable"
	KindUnclassified     Kind = "unclassified"

	// detected locally before anything is submitted
	KindInvalidPair   Kind = "invalid_pair"
	KindNotEligible   Kind = "not_eligible"
	KindNotConnected  Kind = "not_connected"
	KindInFlight      Kind = "in_flight"
	KindUnknownBattle Kind = "unknown_battle"
)

var kindMessages = map[Kind]string{
	KindUserRejected:     "The transaction was rejected in the wallet.",
	KindCooldown:         "These tokens battled too recently. Try again after the cooldown.",
	KindInsufficientFee:  "The battle creation fee was not covered.",
	KindInsufficientGas:  "The wallet cannot cover the gas for this transaction.",
	KindAlreadyVoted:     "You have already voted in this battle.",
	KindBattleEnded:      "This battle has already ended.",
	KindBattleNotStarted: "This battle has not started yet.",
	KindNoVotingPower:    "You need to hold one of the battle tokens to vote.",
	KindAlreadySettled:   "This battle is already settled.",
	KindNotYetSettleable: "This battle cannot be settled until it ends.",
	KindInvalidPair:      "Pick two different tokens from this battle.",
	KindNotEligible:      "Both tokens must be graduated with enough supply to battle.",
	KindNotConnected:     "Connect a wallet first.",
	KindInFlight:         "A transaction for this battle is already pending.",
	KindUnknownBattle:    "That battle does not exist.",
}

// classifyRules is checked in order; the first match wins. "not ended" must
// precede the "ended" rules.
var classifyRules = []struct {
	kind    Kind
	needles []string
}{
	{KindUserRejected, []string{"user rejected", "user denied", "rejected the request", "action_rejected"}},
	{KindCooldown, []string{"cooldown", "battled recently", "too soon"}},
	{KindInsufficientFee, []string{"insufficient fee", "incorrect fee", "invalid fee", "fee required"}},
	{KindInsufficientGas, []string{"insufficient funds"}},
	{KindAlreadyVoted, []string{"already voted"}},
	{KindAlreadySettled, []string{"already settled"}},
	{KindNotYetSettleable, []string{"not ended", "not yet ended", "has not ended", "still active", "cannot settle"}},
	{KindBattleNotStarted, []string{"not started", "not yet started"}},
	{KindBattleEnded, []string{"battle ended", "has ended", "voting ended", "battle is over", "battle over"}},
	{KindNoVotingPower, []string{"no voting power", "insufficient balance", "must hold", "no tokens"}},
}

// ClassifyMessage maps a raw failure message onto a Kind.
func ClassifyMessage(msg string) Kind {
	lower := strings.ToLower(msg)
	for _, rule := range classifyRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				return rule.kind
			}
		}
	}
	return KindUnclassified
}

// ClassifyError maps err onto a Kind, honouring typed errors first.
func ClassifyError(err error) Kind {
	if err == nil {
		return ""
	}
	var me *MutationError
	if errors.As(err, &me) {
		return me.Kind
	}
	if errors.Is(err, contract.ErrNotConnected) {
		return KindNotConnected
	}
	return ClassifyMessage(err.Error())
}

// MutationError is a classified create/vote/settle failure.
type MutationError struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *MutationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// Message is the notification text shown to the user.
func (e *MutationError) Message() string {
	if e.Kind == KindInsufficientGas && e.Op == OpCreate {
		return "The wallet cannot cover the creation fee plus gas."
	}
	if msg, ok := kindMessages[e.Kind]; ok {
		return msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "The transaction failed."
}

func newMutationError(op string, kind Kind, err error) *MutationError {
	return &MutationError{Op: op, Kind: kind, Err: err}
}

// ReadError wraps a failed contract read. Callers show an error state and
// offer a manual retry; reads are never retried automatically.
type ReadError struct {
	Query Query
	Err   error
}

func (e *ReadError) Error() string { return fmt.Sprintf("read %s: %v", e.Query, e.Err) }

func (e *ReadError) Unwrap() error { return e.Err }
