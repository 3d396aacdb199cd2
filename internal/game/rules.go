package game

import "fmt"

// Rules holds the immutable house configuration for a table. A Rules
// value is fixed for the lifetime of a round; changing rules between
// rounds means starting a new table.
type Rules struct {
	Decks                int     `json:"decks"`
	Penetration          float64 `json:"penetration"`
	MinBet               int     `json:"minBet"`
	MaxBet               int     `json:"maxBet"`
	StartingBankroll     int     `json:"startingBankroll"`
	DealerHitsSoft17     bool    `json:"dealerHitsSoft17"`
	BlackjackPayoutNum   int     `json:"blackjackPayoutNum"`
	BlackjackPayoutDenom int     `json:"blackjackPayoutDenom"`
	MaxSplitHands        int     `json:"maxSplitHands"`
	DoubleAfterSplit     bool    `json:"doubleAfterSplit"`
	SurrenderAllowed     bool    `json:"surrenderAllowed"`
	FiveCardCharlie      bool    `json:"fiveCardCharlie"`
}

// DefaultRules returns the standard six-deck table: S17, 3:2 naturals,
// DAS and late surrender on, five-card charlie on, splits capped at 4.
func DefaultRules() Rules {
	return Rules{
		Decks:                6,
		Penetration:          0.25,
		MinBet:               1,
		MaxBet:               500,
		StartingBankroll:     1000,
		DealerHitsSoft17:     false,
		BlackjackPayoutNum:   3,
		BlackjackPayoutDenom: 2,
		MaxSplitHands:        4,
		DoubleAfterSplit:     true,
		SurrenderAllowed:     true,
		FiveCardCharlie:      true,
	}
}

// Validate checks the rule set for internal consistency
func (r Rules) Validate() error {
	if r.Decks < 1 || r.Decks > 8 {
		return fmt.Errorf("decks must be between 1 and 8, got %d", r.Decks)
	}
	if r.Penetration < 0 || r.Penetration >= 1 {
		return fmt.Errorf("penetration must be in [0,1), got %g", r.Penetration)
	}
	if r.MinBet < 1 {
		return fmt.Errorf("min bet must be at least 1, got %d", r.MinBet)
	}
	if r.MaxBet < r.MinBet {
		return fmt.Errorf("max bet %d below min bet %d", r.MaxBet, r.MinBet)
	}
	if r.StartingBankroll < r.MinBet {
		return fmt.Errorf("starting bankroll %d cannot cover min bet %d", r.StartingBankroll, r.MinBet)
	}
	if r.BlackjackPayoutNum < 1 || r.BlackjackPayoutDenom < 1 {
		return fmt.Errorf("blackjack payout %d:%d is not a valid ratio", r.BlackjackPayoutNum, r.BlackjackPayoutDenom)
	}
	if r.MaxSplitHands < 1 {
		return fmt.Errorf("max split hands must be at least 1, got %d", r.MaxSplitHands)
	}
	return nil
}

// PenetrationCards converts the penetration fraction to a card count
// for the configured shoe size.
func (r Rules) PenetrationCards() int {
	return int(r.Penetration * float64(r.Decks) * 52)
}

// BlackjackPayout returns the winnings (excluding the returned stake)
// for a natural at the given bet, truncating on odd amounts.
func (r Rules) BlackjackPayout(bet int) int {
	return bet * r.BlackjackPayoutNum / r.BlackjackPayoutDenom
}
