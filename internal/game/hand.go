package game

import (
	"strings"

	"github.com/lox/twentyone/internal/deck"
)

// HandStatus represents the lifecycle state of a single hand
type HandStatus int

const (
	HandActive HandStatus = iota
	HandStood
	HandBusted
	HandDoubled
	HandSurrendered
	HandBlackjack
)

func (s HandStatus) String() string {
	return [...]string{"active", "stood", "busted", "doubled", "surrendered", "blackjack"}[s]
}

// Finished reports whether the hand takes no further player actions
func (s HandStatus) Finished() bool {
	return s != HandActive
}

// Result represents the outcome of a hand or a whole round
type Result int

const (
	ResultNone Result = iota
	ResultWin
	ResultLoss
	ResultPush
	ResultBlackjack
)

func (r Result) String() string {
	return [...]string{"", "win", "loss", "push", "blackjack"}[r]
}

// Hand is one set of dealt cards with its bet and status. Split hands
// carry the flags that gate re-splitting and the one-card ace rule.
type Hand struct {
	Cards         []deck.Card `json:"cards"`
	Bet           int         `json:"bet"`
	Status        HandStatus  `json:"status"`
	FromSplit     bool        `json:"fromSplit"`
	FromSplitAces bool        `json:"fromSplitAces"`

	// Settlement bookkeeping. Busts, surrenders, charlies and naturals
	// settle the moment they happen; Settled keeps the final comparison
	// from paying them twice.
	Settled bool   `json:"settled"`
	Outcome Result `json:"outcome"`
	Payout  int    `json:"payout"`
}

// NewHand creates an empty hand staked with the given bet
func NewHand(bet int) *Hand {
	return &Hand{Bet: bet, Status: HandActive}
}

// AddCard appends a card to the hand
func (h *Hand) AddCard(c deck.Card) {
	h.Cards = append(h.Cards, c)
}

// Value returns the best total and whether the hand is soft. Aces count
// as 11, then drop to 1 one at a time while the total is over 21; the
// hand is soft while an ace still counts as 11.
func (h *Hand) Value() (total int, soft bool) {
	aces := 0
	for _, c := range h.Cards {
		total += c.Value()
		if c.IsAce() {
			aces++
		}
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total, aces > 0
}

// Total returns the best total ignoring softness
func (h *Hand) Total() int {
	total, _ := h.Value()
	return total
}

// IsBust returns true if the hand is over 21
func (h *Hand) IsBust() bool {
	return h.Total() > 21
}

// IsBlackjack returns true for a natural: exactly two cards totalling 21
// on a hand that did not come from a split. A split hand reaching 21 in
// two cards is a strong 21, not a blackjack, and pays 1:1.
func (h *Hand) IsBlackjack() bool {
	return len(h.Cards) == 2 && h.Total() == 21 && !h.FromSplit
}

// IsFiveCardCharlie returns true when the hand has reached five cards
// without busting and the rule is enabled. Charlies win automatically.
func (h *Hand) IsFiveCardCharlie(rules Rules) bool {
	return rules.FiveCardCharlie && len(h.Cards) == 5 && !h.IsBust()
}

// CanHit reports whether the hand may take another card. Split-ace
// hands are frozen at their one drawn card.
func (h *Hand) CanHit() bool {
	return h.Status == HandActive && !h.FromSplitAces
}

// CanDouble reports whether the hand may double down
func (h *Hand) CanDouble(rules Rules, bankroll int) bool {
	if h.Status != HandActive || len(h.Cards) != 2 || h.FromSplitAces {
		return false
	}
	if h.FromSplit && !rules.DoubleAfterSplit {
		return false
	}
	return bankroll >= h.Bet
}

// CanSplit reports whether the hand may be split given the current
// number of hands. Cards of equal value split (K + 10 is a valid pair);
// split aces may only re-split into another ace pair when the hand cap
// still allows it.
func (h *Hand) CanSplit(rules Rules, handCount, bankroll int) bool {
	if h.Status != HandActive || len(h.Cards) != 2 {
		return false
	}
	if h.Cards[0].Value() != h.Cards[1].Value() {
		return false
	}
	if h.FromSplitAces && !(h.Cards[0].IsAce() && h.Cards[1].IsAce()) {
		return false
	}
	if handCount >= rules.MaxSplitHands {
		return false
	}
	return bankroll >= h.Bet
}

// CanSurrender reports whether the hand may surrender: only as the very
// first decision on an unsplit two-card hand.
func (h *Hand) CanSurrender(rules Rules) bool {
	return rules.SurrenderAllowed && h.Status == HandActive && len(h.Cards) == 2 && !h.FromSplit
}

// String renders the hand like "A♠ K♥ (21)"
func (h *Hand) String() string {
	parts := make([]string, len(h.Cards))
	for i, c := range h.Cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

// settle records the final outcome and credit for the hand. payout is
// the total returned to the bankroll, stake included.
func (h *Hand) settle(outcome Result, payout int) {
	h.Settled = true
	h.Outcome = outcome
	h.Payout = payout
}
