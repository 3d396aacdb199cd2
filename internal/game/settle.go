package game

import "fmt"

// settleHand records a hand's outcome and credits its payout
func (t *Table) settleHand(h *Hand, outcome Result, payout int) {
	h.settle(outcome, payout)
	t.player.Bankroll += payout
	t.roundPayouts += payout
}

// settleDealerNatural resolves every open hand against a dealer
// blackjack: a player natural pushes, anything else loses.
func (t *Table) settleDealerNatural() {
	for _, h := range t.player.Hands {
		if h.Settled {
			continue
		}
		if h.IsBlackjack() {
			t.settleHand(h, ResultPush, h.Bet)
		} else {
			t.settleHand(h, ResultLoss, 0)
		}
	}
}

// enterDealerTurn reveals the hole card, plays out the dealer's draw
// and closes the round. The dealer only draws while at least one player
// hand is still unresolved; once every hand settled early (busts,
// naturals, surrender) the reveal happens but no cards move.
func (t *Table) enterDealerTurn() error {
	t.phase = DealerTurn
	t.dealer.Reveal()

	if t.hasUnresolvedHands() {
		for {
			total, soft := t.dealer.Hand.Value()
			if !dealerShouldHit(total, soft, t.rules) {
				break
			}
			card, err := t.shoe.Draw()
			if err != nil {
				return err
			}
			t.dealer.Hand.AddCard(card)
		}
	}

	t.phase = Settlement
	t.settleRound()
	return t.finalizeRound()
}

func (t *Table) hasUnresolvedHands() bool {
	for _, h := range t.player.Hands {
		if !h.Settled {
			return true
		}
	}
	return false
}

// settleRound compares every unresolved hand against the dealer's final
// total. Wins return the stake plus even money, pushes return the stake.
func (t *Table) settleRound() {
	dealerTotal := t.dealer.Hand.Total()
	dealerBust := dealerTotal > 21

	for _, h := range t.player.Hands {
		if h.Settled {
			continue
		}
		total := h.Total()
		switch {
		case dealerBust || total > dealerTotal:
			t.settleHand(h, ResultWin, 2*h.Bet)
		case total < dealerTotal:
			t.settleHand(h, ResultLoss, 0)
		default:
			t.settleHand(h, ResultPush, h.Bet)
		}
	}
}

// finalizeRound closes the books for the round: it verifies chip
// conservation, derives the round result, updates lifetime stats and
// queues the hand log record.
func (t *Table) finalizeRound() error {
	if got, want := t.player.Bankroll, t.beginBalance-t.roundBets+t.roundPayouts; got != want {
		return fmt.Errorf("%w: bankroll %d after settlement, expected %d", ErrCorruptState, got, want)
	}

	t.result = t.roundResult()
	t.netAmount = t.roundPayouts - t.roundBets
	t.rounds++

	switch t.result {
	case ResultWin:
		t.player.Stats.Wins++
	case ResultLoss:
		t.player.Stats.Losses++
	case ResultPush:
		t.player.Stats.Pushes++
	case ResultBlackjack:
		t.player.Stats.Blackjacks++
	}

	t.pendingRecord = append(t.pendingRecord, t.buildRecord())
	t.phase = RoundOver
	return nil
}

// roundResult collapses the per-hand outcomes into a single round
// result. A natural outranks everything; otherwise the sign of the
// main-bet net decides, with insurance money excluded so a lost hand
// stays a loss even when the side bet covered it.
func (t *Table) roundResult() Result {
	stakes, payouts := 0, 0
	for _, h := range t.player.Hands {
		if h.Outcome == ResultBlackjack {
			return ResultBlackjack
		}
		stakes += h.Bet
		payouts += h.Payout
	}
	switch {
	case payouts > stakes:
		return ResultWin
	case payouts < stakes:
		return ResultLoss
	default:
		return ResultPush
	}
}
