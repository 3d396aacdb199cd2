package game

import (
	"fmt"
	rand "math/rand/v2"

	"github.com/lox/twentyone/internal/deck"
)

// Phase represents the round state machine position
type Phase int

const (
	Betting Phase = iota
	Dealing
	PlayerTurn
	DealerTurn
	Settlement
	RoundOver
)

func (p Phase) String() string {
	return [...]string{"betting", "dealing", "player_turn", "dealer_turn", "settlement", "round_over"}[p]
}

// Offer is a pending side decision that blocks every other action until
// it is answered.
type Offer int

const (
	OfferNone Offer = iota
	OfferInsurance
	OfferEvenMoney
)

func (o Offer) String() string {
	return [...]string{"", "insurance", "even_money"}[o]
}

// Insurance tracks the offer and settlement of the insurance side bet
// (or its even-money form against a player natural).
type Insurance struct {
	Offered   bool `json:"offered"`
	EvenMoney bool `json:"evenMoney"`
	Taken     bool `json:"taken"`
	Bet       int  `json:"bet"`
	Payout    int  `json:"payout"`
	Resolved  bool `json:"resolved"`
}

// Table is the round state machine for one blackjack session: it owns
// the shoe, the player's bankroll and hands, the dealer, and the
// auto-play sub-state. All methods validate fully before mutating, so a
// failed call leaves the table exactly as it was.
type Table struct {
	rules  Rules
	shoe   *deck.Shoe
	player Player
	dealer Dealer
	phase  Phase
	offer  Offer

	insurance Insurance
	auto      AutoPlay

	// Round bookkeeping for conservation checks and the hand log.
	beginBalance  int
	roundBet      int
	roundBets     int
	roundPayouts  int
	actions       []string
	initialCards  []deck.Card
	result        Result
	netAmount     int
	rounds        int
	pendingRecord []RoundRecord
}

// NewTable creates a fresh table at the Betting phase with a shuffled
// shoe and the configured starting bankroll.
func NewTable(rules Rules, rng *rand.Rand) (*Table, error) {
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}

	shoe := deck.NewShoe(rules.Decks, rng)
	shoe.SetPenetration(rules.PenetrationCards())

	return &Table{
		rules:  rules,
		shoe:   shoe,
		player: Player{Bankroll: rules.StartingBankroll},
		dealer: Dealer{HoleHidden: true},
		phase:  Betting,
	}, nil
}

// Rules returns the table's rule configuration
func (t *Table) Rules() Rules {
	return t.rules
}

// Phase returns the current round phase
func (t *Table) Phase() Phase {
	return t.phase
}

// Bankroll returns the player's current bankroll
func (t *Table) Bankroll() int {
	return t.player.Bankroll
}

// PlaceBet starts a round: it debits the bankroll and moves to Dealing.
// Legal from Betting or RoundOver; the reshuffle check happens here, at
// the round boundary, never mid-hand.
func (t *Table) PlaceBet(amount int) error {
	if t.phase != Betting && t.phase != RoundOver {
		return fmt.Errorf("%w: cannot bet during %s", ErrIllegalAction, t.phase)
	}
	if amount < t.rules.MinBet || amount > t.rules.MaxBet {
		return fmt.Errorf("%w: %d outside limits [%d, %d]", ErrInvalidBet, amount, t.rules.MinBet, t.rules.MaxBet)
	}
	if amount > t.player.Bankroll {
		return fmt.Errorf("%w: %d exceeds bankroll %d", ErrInvalidBet, amount, t.player.Bankroll)
	}

	t.resetRound()
	if t.shoe.NeedsReshuffle() {
		t.shoe.Reshuffle()
	}

	t.beginBalance = t.player.Bankroll
	t.player.Bankroll -= amount
	t.roundBet = amount
	t.roundBets = amount
	t.player.Hands = []*Hand{NewHand(amount)}
	t.player.ActiveHand = 0
	t.phase = Dealing
	return nil
}

// Deal deals the opening cards: two to the player, two to the dealer
// with the hole card hidden, then evaluates naturals. With an ace
// showing, the round pauses for the even-money or insurance decision
// before the dealer's hand is checked.
func (t *Table) Deal() error {
	if t.phase != Dealing {
		return fmt.Errorf("%w: cannot deal during %s", ErrIllegalAction, t.phase)
	}

	hand := t.player.Hands[0]
	t.dealer.reset()
	for _, h := range []*Hand{hand, &t.dealer.Hand, hand, &t.dealer.Hand} {
		card, err := t.shoe.Draw()
		if err != nil {
			return err
		}
		h.AddCard(card)
	}
	upcard, _ := t.dealer.Upcard()
	t.initialCards = append(append([]deck.Card(nil), hand.Cards...), upcard)

	if hand.IsBlackjack() {
		hand.Status = HandBlackjack
	}

	switch {
	case upcard.IsAce():
		t.insurance.Offered = true
		if hand.IsBlackjack() {
			t.offer = OfferEvenMoney
			t.insurance.EvenMoney = true
		} else {
			t.offer = OfferInsurance
		}
		t.phase = PlayerTurn
		return nil

	case upcard.IsTenValue() && t.dealer.HasBlackjack():
		t.settleDealerNatural()
		return t.enterDealerTurn()

	case hand.IsBlackjack():
		t.settleHand(hand, ResultBlackjack, hand.Bet+t.rules.BlackjackPayout(hand.Bet))
		return t.enterDealerTurn()

	default:
		t.phase = PlayerTurn
		return nil
	}
}

// Hit draws one card to the active hand. Busts settle immediately; a
// five-card charlie wins immediately.
func (t *Table) Hit() error {
	hand, err := t.actionable()
	if err != nil {
		return err
	}
	if !hand.CanHit() {
		return fmt.Errorf("%w: hand cannot take another card", ErrIllegalAction)
	}

	card, err := t.shoe.Draw()
	if err != nil {
		return err
	}
	hand.AddCard(card)
	t.actions = append(t.actions, "hit")

	switch {
	case hand.IsBust():
		hand.Status = HandBusted
		t.settleHand(hand, ResultLoss, 0)
	case hand.IsFiveCardCharlie(t.rules):
		hand.Status = HandStood
		t.settleHand(hand, ResultWin, 2*hand.Bet)
	}

	return t.advanceTurn()
}

// Stand finishes the active hand
func (t *Table) Stand() error {
	hand, err := t.actionable()
	if err != nil {
		return err
	}

	hand.Status = HandStood
	t.actions = append(t.actions, "stand")
	return t.advanceTurn()
}

// Double doubles the bet on the active hand, draws exactly one card and
// finishes the hand.
func (t *Table) Double() error {
	hand, err := t.actionable()
	if err != nil {
		return err
	}
	if !hand.CanDouble(t.rules, t.player.Bankroll) {
		return fmt.Errorf("%w: double not available", ErrIllegalAction)
	}

	t.player.Bankroll -= hand.Bet
	t.roundBets += hand.Bet
	hand.Bet *= 2

	card, err := t.shoe.Draw()
	if err != nil {
		return err
	}
	hand.AddCard(card)
	t.actions = append(t.actions, "double")

	if hand.IsBust() {
		hand.Status = HandBusted
		t.settleHand(hand, ResultLoss, 0)
	} else {
		hand.Status = HandDoubled
	}

	return t.advanceTurn()
}

// Split fans the active pair into two hands, dealing one card to each.
// Split aces receive their one card and stand automatically unless the
// draw makes a new ace pair that may still be re-split.
func (t *Table) Split() error {
	hand, err := t.actionable()
	if err != nil {
		return err
	}
	if !hand.CanSplit(t.rules, len(t.player.Hands), t.player.Bankroll) {
		return fmt.Errorf("%w: split not available", ErrIllegalAction)
	}

	aces := hand.Cards[0].IsAce() && hand.Cards[1].IsAce()

	t.player.Bankroll -= hand.Bet
	t.roundBets += hand.Bet

	split := &Hand{
		Cards:         []deck.Card{hand.Cards[1]},
		Bet:           hand.Bet,
		Status:        HandActive,
		FromSplit:     true,
		FromSplitAces: aces,
	}
	hand.Cards = hand.Cards[:1]
	hand.FromSplit = true
	hand.FromSplitAces = aces

	idx := t.player.ActiveHand
	t.player.Hands = append(t.player.Hands, nil)
	copy(t.player.Hands[idx+2:], t.player.Hands[idx+1:])
	t.player.Hands[idx+1] = split

	for _, h := range []*Hand{hand, split} {
		card, err := t.shoe.Draw()
		if err != nil {
			return err
		}
		h.AddCard(card)
	}
	t.actions = append(t.actions, "split")

	if aces {
		for _, h := range []*Hand{hand, split} {
			if !h.CanSplit(t.rules, len(t.player.Hands), t.player.Bankroll) {
				h.Status = HandStood
			}
		}
	}

	return t.advanceTurn()
}

// Surrender gives up the active hand for half the bet back. Only legal
// as the first decision on an unsplit two-card hand.
func (t *Table) Surrender() error {
	hand, err := t.actionable()
	if err != nil {
		return err
	}
	if !hand.CanSurrender(t.rules) {
		return fmt.Errorf("%w: surrender not available", ErrIllegalAction)
	}

	refund := hand.Bet / 2
	hand.Status = HandSurrendered
	t.settleHand(hand, ResultLoss, refund)
	t.actions = append(t.actions, "surrender")
	return t.advanceTurn()
}

// Insurance answers the pending insurance or even-money offer. Buying
// insurance stakes half the bet and resolves immediately against the
// hole card; the card itself stays hidden unless the round ends.
func (t *Table) Insurance(take bool) error {
	if t.phase != PlayerTurn || t.offer == OfferNone {
		return fmt.Errorf("%w: no insurance decision pending", ErrIllegalAction)
	}

	hand := t.player.Hands[0]

	if t.offer == OfferEvenMoney {
		t.offer = OfferNone
		t.insurance.Resolved = true
		t.insurance.Taken = take
		if take {
			t.settleHand(hand, ResultWin, 2*hand.Bet)
			t.actions = append(t.actions, "even_money")
		} else {
			t.actions = append(t.actions, "no_even_money")
			if t.dealer.HasBlackjack() {
				t.settleHand(hand, ResultPush, hand.Bet)
			} else {
				t.settleHand(hand, ResultBlackjack, hand.Bet+t.rules.BlackjackPayout(hand.Bet))
			}
		}
		return t.enterDealerTurn()
	}

	stake := hand.Bet / 2
	if take && stake > t.player.Bankroll {
		return fmt.Errorf("%w: insurance stake %d exceeds bankroll %d", ErrInvalidBet, stake, t.player.Bankroll)
	}

	t.offer = OfferNone
	t.insurance.Resolved = true
	t.insurance.Taken = take
	if take {
		t.player.Bankroll -= stake
		t.roundBets += stake
		t.insurance.Bet = stake
		t.actions = append(t.actions, "insurance")
	} else {
		t.actions = append(t.actions, "no_insurance")
	}

	if t.dealer.HasBlackjack() {
		if take {
			t.insurance.Payout = 3 * stake
			t.player.Bankroll += t.insurance.Payout
			t.roundPayouts += t.insurance.Payout
		}
		t.settleDealerNatural()
		return t.enterDealerTurn()
	}

	// No dealer natural: any insurance stake is forfeit and play
	// continues on the untouched hand.
	return nil
}

// actionable returns the hand waiting to act, enforcing the phase and
// any pending offer.
func (t *Table) actionable() (*Hand, error) {
	if t.phase != PlayerTurn {
		return nil, fmt.Errorf("%w: not the player's turn (%s)", ErrIllegalAction, t.phase)
	}
	if t.offer != OfferNone {
		return nil, fmt.Errorf("%w: %s decision pending", ErrIllegalAction, t.offer)
	}
	hand := t.player.CurrentHand()
	if hand == nil || hand.Status.Finished() {
		if !t.player.advance() {
			return nil, ErrNoActiveHand
		}
		hand = t.player.CurrentHand()
	}
	return hand, nil
}

// advanceTurn moves to the next unfinished hand, or runs the dealer and
// settlement when none remain.
func (t *Table) advanceTurn() error {
	if t.player.advance() {
		return nil
	}
	return t.enterDealerTurn()
}

// resetRound clears round-scoped state when a new round begins
func (t *Table) resetRound() {
	t.player.reset()
	t.dealer.reset()
	t.offer = OfferNone
	t.insurance = Insurance{}
	t.actions = nil
	t.initialCards = nil
	t.result = ResultNone
	t.netAmount = 0
	t.beginBalance = 0
	t.roundBet = 0
	t.roundBets = 0
	t.roundPayouts = 0
	t.phase = Betting
}
