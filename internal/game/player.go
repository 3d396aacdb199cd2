package game

// Stats accumulates round outcomes for a player across a session
type Stats struct {
	Wins       int `json:"wins"`
	Losses     int `json:"losses"`
	Pushes     int `json:"pushes"`
	Blackjacks int `json:"blackjacks"`
}

// Player holds the bankroll and the 1-4 hands in play this round
type Player struct {
	Bankroll   int     `json:"bankroll"`
	Hands      []*Hand `json:"hands"`
	ActiveHand int     `json:"activeHand"`
	Stats      Stats   `json:"stats"`
}

// CurrentHand returns the hand waiting to act, or nil when every hand
// has finished.
func (p *Player) CurrentHand() *Hand {
	if p.ActiveHand < 0 || p.ActiveHand >= len(p.Hands) {
		return nil
	}
	return p.Hands[p.ActiveHand]
}

// advance moves to the next unfinished hand and reports whether one
// remains. Split hands act strictly left to right.
func (p *Player) advance() bool {
	for p.ActiveHand < len(p.Hands) {
		if h := p.Hands[p.ActiveHand]; h.Status == HandActive {
			return true
		}
		p.ActiveHand++
	}
	return false
}

// reset clears the round-scoped state, keeping bankroll and stats
func (p *Player) reset() {
	p.Hands = nil
	p.ActiveHand = 0
}
