package game

import (
	"fmt"
	rand "math/rand/v2"

	"github.com/lox/twentyone/internal/deck"
)

// State is the lossless serialized form of a table. Saving and
// restoring round-trips every field, including a round in flight: the
// shoe order, the hidden hole card, a pending offer and the
// conservation bookkeeping all survive.
type State struct {
	Rules      Rules       `json:"rules"`
	ShoeCards  []deck.Card `json:"shoeCards"`
	Bankroll   int         `json:"bankroll"`
	Hands      []*Hand     `json:"hands,omitempty"`
	ActiveHand int         `json:"activeHand"`

	DealerCards []deck.Card `json:"dealerCards,omitempty"`
	HoleHidden  bool        `json:"holeHidden"`

	Phase     Phase     `json:"phase"`
	Offer     Offer     `json:"offer"`
	Insurance Insurance `json:"insurance"`
	Auto      AutoPlay  `json:"auto"`
	Stats     Stats     `json:"stats"`
	Rounds    int       `json:"rounds"`

	BeginningBalance int         `json:"beginningBalance"`
	RoundBet         int         `json:"roundBet"`
	RoundBets        int         `json:"roundBets"`
	RoundPayouts     int         `json:"roundPayouts"`
	Actions          []string    `json:"actions,omitempty"`
	InitialCards     []deck.Card `json:"initialCards,omitempty"`
	Result           Result      `json:"result"`
	Net              int         `json:"net"`
}

// State captures the table for persistence
func (t *Table) State() State {
	return State{
		Rules:      t.rules,
		ShoeCards:  t.shoe.Cards(),
		Bankroll:   t.player.Bankroll,
		Hands:      copyHands(t.player.Hands),
		ActiveHand: t.player.ActiveHand,

		DealerCards: append([]deck.Card(nil), t.dealer.Hand.Cards...),
		HoleHidden:  t.dealer.HoleHidden,

		Phase:     t.phase,
		Offer:     t.offer,
		Insurance: t.insurance,
		Auto:      t.auto,
		Stats:     t.player.Stats,
		Rounds:    t.rounds,

		BeginningBalance: t.beginBalance,
		RoundBet:         t.roundBet,
		RoundBets:        t.roundBets,
		RoundPayouts:     t.roundPayouts,
		Actions:          append([]string(nil), t.actions...),
		InitialCards:     append([]deck.Card(nil), t.initialCards...),
		Result:           t.result,
		Net:              t.netAmount,
	}
}

// RestoreTable rebuilds a table from persisted state. The state is
// validated before any of it is adopted, so a corrupt snapshot fails
// with ErrCorruptState and no half-built table escapes.
func RestoreTable(st State, rng *rand.Rand) (*Table, error) {
	if err := st.Validate(); err != nil {
		return nil, err
	}

	shoe := deck.NewShoeFromCards(st.Rules.Decks, st.ShoeCards, rng)
	shoe.SetPenetration(st.Rules.PenetrationCards())

	return &Table{
		rules: st.Rules,
		shoe:  shoe,
		player: Player{
			Bankroll:   st.Bankroll,
			Hands:      copyHands(st.Hands),
			ActiveHand: st.ActiveHand,
			Stats:      st.Stats,
		},
		dealer: Dealer{
			Hand:       Hand{Cards: append([]deck.Card(nil), st.DealerCards...)},
			HoleHidden: st.HoleHidden,
		},
		phase:     st.Phase,
		offer:     st.Offer,
		insurance: st.Insurance,
		auto:      st.Auto,
		rounds:    st.Rounds,

		beginBalance: st.BeginningBalance,
		roundBet:     st.RoundBet,
		roundBets:    st.RoundBets,
		roundPayouts: st.RoundPayouts,
		actions:      append([]string(nil), st.Actions...),
		initialCards: append([]deck.Card(nil), st.InitialCards...),
		result:       st.Result,
		netAmount:    st.Net,
	}, nil
}

// Validate checks the state for internal coherence before a restore
func (st State) Validate() error {
	if err := st.Rules.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if st.Phase < Betting || st.Phase > RoundOver {
		return fmt.Errorf("%w: unknown phase %d", ErrCorruptState, st.Phase)
	}
	if st.Bankroll < 0 {
		return fmt.Errorf("%w: negative bankroll %d", ErrCorruptState, st.Bankroll)
	}
	if st.Offer < OfferNone || st.Offer > OfferEvenMoney {
		return fmt.Errorf("%w: unknown offer %d", ErrCorruptState, st.Offer)
	}

	shoe := deck.NewShoeFromCards(st.Rules.Decks, st.ShoeCards, nil)
	if err := shoe.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	for i, h := range st.Hands {
		if h == nil {
			return fmt.Errorf("%w: nil hand %d", ErrCorruptState, i)
		}
		if h.Bet <= 0 {
			return fmt.Errorf("%w: hand %d has bet %d", ErrCorruptState, i, h.Bet)
		}
		if h.Status < HandActive || h.Status > HandBlackjack {
			return fmt.Errorf("%w: hand %d has unknown status %d", ErrCorruptState, i, h.Status)
		}
	}
	if len(st.Hands) > 0 && (st.ActiveHand < 0 || st.ActiveHand > len(st.Hands)) {
		return fmt.Errorf("%w: active hand %d out of range", ErrCorruptState, st.ActiveHand)
	}

	switch st.Phase {
	case PlayerTurn, DealerTurn, Settlement:
		if len(st.Hands) == 0 {
			return fmt.Errorf("%w: %s with no hands", ErrCorruptState, st.Phase)
		}
		if len(st.DealerCards) < 2 {
			return fmt.Errorf("%w: %s with %d dealer cards", ErrCorruptState, st.Phase, len(st.DealerCards))
		}
	case Betting:
		if st.Offer != OfferNone {
			return fmt.Errorf("%w: pending offer during betting", ErrCorruptState)
		}
	}

	// Mid-round money must reconcile exactly.
	if st.Phase != Betting {
		if want := st.BeginningBalance - st.RoundBets + st.RoundPayouts; st.Bankroll != want {
			return fmt.Errorf("%w: bankroll %d does not reconcile (expected %d)", ErrCorruptState, st.Bankroll, want)
		}
	}

	return nil
}

func copyHands(hands []*Hand) []*Hand {
	if hands == nil {
		return nil
	}
	out := make([]*Hand, len(hands))
	for i, h := range hands {
		dup := *h
		dup.Cards = append([]deck.Card(nil), h.Cards...)
		out[i] = &dup
	}
	return out
}
