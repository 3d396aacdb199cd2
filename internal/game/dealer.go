package game

import "github.com/lox/twentyone/internal/deck"

// Dealer owns the house hand. The hole card is the second card dealt
// and stays hidden from every snapshot until the dealer's turn begins.
type Dealer struct {
	Hand       Hand `json:"hand"`
	HoleHidden bool `json:"holeHidden"`
}

// Upcard returns the dealer's visible card
func (d *Dealer) Upcard() (deck.Card, bool) {
	if len(d.Hand.Cards) == 0 {
		return deck.Card{}, false
	}
	return d.Hand.Cards[0], true
}

// HasBlackjack checks the full dealer hand for a natural. Used for the
// peek: the result may be acted on without revealing the hole card.
func (d *Dealer) HasBlackjack() bool {
	return d.Hand.IsBlackjack()
}

// Reveal exposes the hole card. Called exactly once, on entering the
// dealer's turn.
func (d *Dealer) Reveal() {
	d.HoleHidden = false
}

// reset clears the dealer for a new round
func (d *Dealer) reset() {
	d.Hand = Hand{Status: HandActive}
	d.HoleHidden = true
}

// dealerShouldHit is the house drawing policy: hit below 17, stand on
// hard 17 and above, and on soft 17 follow the H17/S17 toggle.
func dealerShouldHit(total int, soft bool, rules Rules) bool {
	if total < 17 {
		return true
	}
	if total == 17 && soft && rules.DealerHitsSoft17 {
		return true
	}
	return false
}
