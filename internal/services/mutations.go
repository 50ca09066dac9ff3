package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/memed/arena/internal/battle"
	"github.com/memed/arena/internal/contract"
	"github.com/memed/arena/internal/domain"
)

// CreateBattle pits tokenA against tokenB, paying the configured fee.
func (s *BattleService) CreateBattle(ctx context.Context, tokenA, tokenB common.Address) (MutationResult, error) {
	log := s.log.WithFields(logrus.Fields{"op": OpCreate, "token_a": tokenA.Hex(), "token_b": tokenB.Hex()})

	if _, ok := s.Account(); !ok {
		return s.fail(log, OpCreate, KindNotConnected, contract.ErrNotConnected)
	}
	if tokenA == tokenB || domain.IsZeroAddress(tokenA) || domain.IsZeroAddress(tokenB) {
		return s.fail(log, OpCreate, KindInvalidPair, domain.ErrSameToken)
	}
	release, ok := s.acquire(pairKey(tokenA, tokenB))
	if !ok {
		return s.fail(log, OpCreate, KindInFlight, nil)
	}
	defer release()

	if err := s.checkEligible(ctx, log, tokenA, tokenB); err != nil {
		return s.fail(log, OpCreate, KindNotEligible, err)
	}

	tx, err := s.writer.CreateBattle(ctx, tokenA, tokenB, s.fee)
	if err != nil {
		return s.fail(log, OpCreate, ClassifyError(err), err)
	}
	return s.succeed(ctx, log, OpCreate, tx, BattlesQuery())
}

// checkEligible is advisory: the contract enforces eligibility, so a failed
// token listing lets the submission through.
func (s *BattleService) checkEligible(ctx context.Context, log *logrus.Entry, tokens ...common.Address) error {
	index, err := s.TokenIndex(ctx)
	if err != nil {
		log.WithError(err).Warn("eligibility pre-check skipped")
		return nil
	}
	for _, addr := range tokens {
		t, ok := index[addr]
		if !ok {
			return fmt.Errorf("token %s is not listed by the factory", addr.Hex())
		}
		if t.Stage != domain.StageGraduated {
			return fmt.Errorf("token %s is %s, not graduated", addr.Hex(), t.Stage)
		}
		if s.minSupply != nil && s.minSupply.Sign() > 0 && (t.Supply == nil || t.Supply.Cmp(s.minSupply) < 0) {
			return fmt.Errorf("token %s supply %v below minimum %s", addr.Hex(), t.Supply, s.minSupply)
		}
	}
	return nil
}

// Vote casts the connected wallet's vote for token in battleID.
func (s *BattleService) Vote(ctx context.Context, battleID uint64, token common.Address) (MutationResult, error) {
	log := s.log.WithFields(logrus.Fields{"op": OpVote, "battle_id": battleID, "token": token.Hex()})

	holder, ok := s.Account()
	if !ok {
		return s.fail(log, OpVote, KindNotConnected, contract.ErrNotConnected)
	}
	release, ok := s.acquire(battleKey(battleID))
	if !ok {
		return s.fail(log, OpVote, KindInFlight, nil)
	}
	defer release()

	b, found, err := s.findBattle(ctx, battleID)
	if err != nil {
		return MutationResult{}, err
	}
	if !found {
		return s.fail(log, OpVote, KindUnknownBattle, fmt.Errorf("battle %d not found", battleID))
	}
	if !b.HasToken(token) {
		return s.fail(log, OpVote, KindInvalidPair, fmt.Errorf("token %s is not in battle %d", token.Hex(), battleID))
	}
	log = log.WithField("side", b.Side(token))

	if power, err := s.votingPower(ctx, b, holder); err != nil {
		log.WithError(err).Warn("balance pre-check skipped")
	} else if power.Sign() == 0 {
		return s.fail(log, OpVote, KindNoVotingPower, errors.New("caller holds neither battle token"))
	}

	tx, err := s.writer.Vote(ctx, battleID, token)
	if err != nil {
		return s.fail(log, OpVote, ClassifyError(err), err)
	}
	return s.succeed(ctx, log, OpVote, tx, BattlesQuery())
}

func (s *BattleService) votingPower(ctx context.Context, b domain.Battle, holder common.Address) (*big.Int, error) {
	total := new(big.Int)
	for _, token := range []common.Address{b.TokenA, b.TokenB} {
		bal, err := s.reader.BalanceOf(ctx, token, holder)
		if err != nil {
			return nil, err
		}
		if bal != nil {
			total.Add(total, bal)
		}
	}
	return total, nil
}

// SettleBattle closes an ended battle. Settleability is judged locally on
// the latest snapshot; the contract remains the authority.
func (s *BattleService) SettleBattle(ctx context.Context, battleID uint64) (MutationResult, error) {
	log := s.log.WithFields(logrus.Fields{"op": OpSettle, "battle_id": battleID})

	if _, ok := s.Account(); !ok {
		return s.fail(log, OpSettle, KindNotConnected, contract.ErrNotConnected)
	}
	release, ok := s.acquire(battleKey(battleID))
	if !ok {
		return s.fail(log, OpSettle, KindInFlight, nil)
	}
	defer release()

	b, found, err := s.findBattle(ctx, battleID)
	if err != nil {
		return MutationResult{}, err
	}
	if !found {
		return s.fail(log, OpSettle, KindUnknownBattle, fmt.Errorf("battle %d not found", battleID))
	}
	now := s.clock()
	if !battle.IsSettleable(b, now) {
		if b.Settled {
			return s.fail(log, OpSettle, KindAlreadySettled, nil)
		}
		return s.fail(log, OpSettle, KindNotYetSettleable,
			fmt.Errorf("ends in %s", battle.Countdown(b.EndTime, now)))
	}

	tx, err := s.writer.SettleBattle(ctx, battleID)
	if err != nil {
		return s.fail(log, OpSettle, ClassifyError(err), err)
	}
	return s.succeed(ctx, log, OpSettle, tx,
		BattlesQuery(),
		LeaderboardQuery(s.limit),
		TokenStatsQuery(b.TokenA),
		TokenStatsQuery(b.TokenB),
	)
}

func (s *BattleService) findBattle(ctx context.Context, id uint64) (domain.Battle, bool, error) {
	battles, err := s.Battles(ctx)
	if err != nil {
		return domain.Battle{}, false, err
	}
	for _, b := range battles {
		if b.ID == id {
			return b, true, nil
		}
	}
	return domain.Battle{}, false, nil
}

func (s *BattleService) fail(log *logrus.Entry, op string, kind Kind, err error) (MutationResult, error) {
	s.metrics.Mutation(op, string(kind))
	me := newMutationError(op, kind, err)
	log.WithField("kind", string(kind)).WithError(err).Warn("mutation rejected")
	return MutationResult{}, me
}

func (s *BattleService) succeed(ctx context.Context, log *logrus.Entry, op string, tx contract.TxHandle, invalidated ...Query) (MutationResult, error) {
	s.metrics.Mutation(op, "ok")
	log = log.WithField("tx", tx.Hash.Hex())
	log.Info("mutation submitted")

	if w, ok := s.writer.(receiptWaiter); ok && s.waitMined {
		if _, err := w.WaitMined(ctx, tx); err != nil {
			log.WithError(err).Warn("waiting for receipt failed")
		}
	}
	// the submission already succeeded; a failed refresh only leaves the cache stale
	if err := s.Refresh(ctx, invalidated...); err != nil {
		log.WithError(err).Warn("post-mutation refresh failed")
	}
	return MutationResult{Op: op, Tx: tx, Invalidated: invalidated}, nil
}
