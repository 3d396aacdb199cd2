package deck

import (
	"errors"
	"fmt"
	rand "math/rand/v2"
)

// DeckSize is the number of cards in a single deck
const DeckSize = 52

// ErrShoeExhausted is returned when drawing from an empty shoe. The round
// machine reshuffles before every round, so hitting this mid-round is an
// internal invariant violation, not a player-facing condition.
var ErrShoeExhausted = errors.New("shoe exhausted")

// Shoe represents a multi-deck dealing shoe
type Shoe struct {
	cards       []Card
	rng         *rand.Rand
	decks       int
	penetration int
}

// NewShoe creates a shuffled shoe of the given number of decks. The
// penetration threshold defaults to a quarter of the full shoe.
func NewShoe(decks int, rng *rand.Rand) *Shoe {
	s := &Shoe{
		rng:         rng,
		decks:       decks,
		penetration: decks * DeckSize / 4,
	}
	s.Reshuffle()
	return s
}

// NewShoeFromCards creates a shoe holding exactly the given remaining
// cards in draw order. Used to restore persisted state and to script
// deterministic deals in tests.
func NewShoeFromCards(decks int, cards []Card, rng *rand.Rand) *Shoe {
	s := &Shoe{
		cards:       append([]Card(nil), cards...),
		rng:         rng,
		decks:       decks,
		penetration: decks * DeckSize / 4,
	}
	return s
}

// SetPenetration overrides the reshuffle threshold in cards remaining
func (s *Shoe) SetPenetration(cards int) {
	s.penetration = cards
}

// Penetration returns the reshuffle threshold in cards remaining
func (s *Shoe) Penetration() int {
	return s.penetration
}

// Decks returns the number of decks the shoe was built from
func (s *Shoe) Decks() int {
	return s.decks
}

// Draw removes and returns the next card
func (s *Shoe) Draw() (Card, error) {
	if len(s.cards) == 0 {
		return Card{}, ErrShoeExhausted
	}
	card := s.cards[0]
	s.cards = s.cards[1:]
	return card, nil
}

// Remaining returns the number of cards left in the shoe
func (s *Shoe) Remaining() int {
	return len(s.cards)
}

// NeedsReshuffle reports whether play has passed the penetration
// threshold. Checked only at round boundaries, never mid-hand.
func (s *Shoe) NeedsReshuffle() bool {
	return len(s.cards) < s.penetration
}

// Reshuffle rebuilds the full shoe and applies a Fisher-Yates shuffle
func (s *Shoe) Reshuffle() {
	s.cards = s.cards[:0]
	for d := 0; d < s.decks; d++ {
		for suit := Spades; suit <= Clubs; suit++ {
			for rank := Two; rank <= Ace; rank++ {
				s.cards = append(s.cards, NewCard(suit, rank))
			}
		}
	}
	for i := len(s.cards) - 1; i > 0; i-- {
		j := s.rng.IntN(i + 1)
		s.cards[i], s.cards[j] = s.cards[j], s.cards[i]
	}
}

// Cards returns a copy of the remaining cards in draw order
func (s *Shoe) Cards() []Card {
	return append([]Card(nil), s.cards...)
}

// Validate checks that the remaining cards form a valid subset of the
// shoe's full composition.
func (s *Shoe) Validate() error {
	if s.decks <= 0 {
		return fmt.Errorf("shoe has invalid deck count %d", s.decks)
	}
	if len(s.cards) > s.decks*DeckSize {
		return fmt.Errorf("shoe holds %d cards, more than %d decks contain", len(s.cards), s.decks)
	}
	counts := make(map[Card]int)
	for _, c := range s.cards {
		counts[c]++
		if counts[c] > s.decks {
			return fmt.Errorf("shoe holds %d copies of %s, more than %d decks contain", counts[c], c, s.decks)
		}
		if c.Rank < Two || c.Rank > Ace || c.Suit < Spades || c.Suit > Clubs {
			return fmt.Errorf("shoe holds invalid card %v", c)
		}
	}
	return nil
}
