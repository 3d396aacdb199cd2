package game

import "github.com/lox/twentyone/internal/deck"

// CardView is the wire form of a card
type CardView struct {
	Rank string `json:"rank"`
	Suit string `json:"suit"`
	Code string `json:"code"`
}

func newCardView(c deck.Card) CardView {
	return CardView{Rank: c.Rank.String(), Suit: c.Suit.Name(), Code: c.Code()}
}

func newCardViews(cards []deck.Card) []CardView {
	views := make([]CardView, len(cards))
	for i, c := range cards {
		views[i] = newCardView(c)
	}
	return views
}

// HandView is the wire form of a player hand
type HandView struct {
	Cards     []CardView `json:"cards"`
	Value     int        `json:"value"`
	Soft      bool       `json:"soft"`
	Status    string     `json:"status"`
	Bet       int        `json:"bet"`
	FromSplit bool       `json:"fromSplit"`
	Outcome   string     `json:"outcome,omitempty"`
	Payout    int        `json:"payout"`
}

// DealerView shows only what the player is entitled to see: while the
// hole card is hidden it is absent from the view entirely and the value
// counts the upcard alone.
type DealerView struct {
	Cards      []CardView `json:"cards"`
	Value      int        `json:"value"`
	HoleHidden bool       `json:"holeHidden"`
}

// AutoView is the wire form of the auto mode sub-state
type AutoView struct {
	Active          bool   `json:"active"`
	HandsRemaining  int    `json:"handsRemaining"`
	Bet             int    `json:"bet,omitempty"`
	InsurancePolicy string `json:"insurancePolicy,omitempty"`
	Message         string `json:"message,omitempty"`
}

// Snapshot is the full client-visible state after an operation
type Snapshot struct {
	Phase          string     `json:"phase"`
	Bankroll       int        `json:"bankroll"`
	Round          int        `json:"round"`
	Hands          []HandView `json:"hands,omitempty"`
	ActiveHand     int        `json:"activeHand"`
	Dealer         DealerView `json:"dealer"`
	Offer          string     `json:"offer,omitempty"`
	Insurance      *Insurance `json:"insurance,omitempty"`
	Auto           AutoView   `json:"auto"`
	Result         string     `json:"result,omitempty"`
	Net            int        `json:"net"`
	Stats          Stats      `json:"stats"`
	CardsRemaining int        `json:"cardsRemaining"`
}

// Snapshot renders the table as the player may see it right now
func (t *Table) Snapshot() Snapshot {
	snap := Snapshot{
		Phase:          t.phase.String(),
		Bankroll:       t.player.Bankroll,
		Round:          t.rounds,
		ActiveHand:     t.player.ActiveHand,
		Offer:          t.offer.String(),
		Result:         t.result.String(),
		Net:            t.netAmount,
		Stats:          t.player.Stats,
		CardsRemaining: t.shoe.Remaining(),
		Auto: AutoView{
			Active:         t.auto.Active,
			HandsRemaining: t.auto.HandsRemaining,
			Bet:            t.auto.Bet,
			Message:        t.auto.Message,
		},
	}
	if t.auto.Active {
		snap.Auto.InsurancePolicy = t.auto.Policy.String()
	}

	for _, h := range t.player.Hands {
		total, soft := h.Value()
		snap.Hands = append(snap.Hands, HandView{
			Cards:     newCardViews(h.Cards),
			Value:     total,
			Soft:      soft,
			Status:    h.Status.String(),
			Bet:       h.Bet,
			FromSplit: h.FromSplit,
			Outcome:   h.Outcome.String(),
			Payout:    h.Payout,
		})
	}

	snap.Dealer = t.dealerView()

	if t.insurance.Offered {
		ins := t.insurance
		snap.Insurance = &ins
	}

	return snap
}

func (t *Table) dealerView() DealerView {
	cards := t.dealer.Hand.Cards
	if len(cards) == 0 {
		return DealerView{HoleHidden: t.dealer.HoleHidden}
	}
	if t.dealer.HoleHidden {
		up := cards[0]
		return DealerView{
			Cards:      []CardView{newCardView(up)},
			Value:      up.Value(),
			HoleHidden: true,
		}
	}
	return DealerView{
		Cards: newCardViews(cards),
		Value: t.dealer.Hand.Total(),
	}
}
