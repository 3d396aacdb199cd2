package game

import "github.com/lox/twentyone/internal/deck"

// HandRecord is the final shape of one player hand in the hand log
type HandRecord struct {
	Cards   []string `json:"cards"`
	Value   int      `json:"value"`
	Status  string   `json:"status"`
	Bet     int      `json:"bet"`
	Outcome string   `json:"outcome"`
	Payout  int      `json:"payout"`
}

// RoundRecord captures one completed round for the hand log: the
// balances either side of it, the opening deal, every action taken and
// the final shape of each hand. Cards use the compact code notation.
type RoundRecord struct {
	Round            int          `json:"round"`
	BeginningBalance int          `json:"beginningBalance"`
	Bet              int          `json:"bet"`
	InitialCards     []string     `json:"initialCards"`
	DealerUpcard     string       `json:"dealerUpcard"`
	Insurance        Insurance    `json:"insurance"`
	Actions          []string     `json:"actionsTaken"`
	FinalHands       []HandRecord `json:"finalHands"`
	DealerCards      []string     `json:"dealerCards"`
	DealerValue      int          `json:"dealerValue"`
	Result           string       `json:"result"`
	Net              int          `json:"net"`
	EndingBalance    int          `json:"endingBalance"`
}

func cardCodes(cards []deck.Card) []string {
	codes := make([]string, len(cards))
	for i, c := range cards {
		codes[i] = c.Code()
	}
	return codes
}

// buildRecord snapshots the finished round for the hand log
func (t *Table) buildRecord() RoundRecord {
	rec := RoundRecord{
		Round:            t.rounds,
		BeginningBalance: t.beginBalance,
		Insurance:        t.insurance,
		Actions:          append([]string(nil), t.actions...),
		DealerCards:      cardCodes(t.dealer.Hand.Cards),
		DealerValue:      t.dealer.Hand.Total(),
		Result:           t.result.String(),
		Net:              t.netAmount,
		EndingBalance:    t.player.Bankroll,
	}

	rec.Bet = t.roundBet
	if len(t.initialCards) > 0 {
		rec.InitialCards = cardCodes(t.initialCards[:len(t.initialCards)-1])
		rec.DealerUpcard = t.initialCards[len(t.initialCards)-1].Code()
	}

	for _, h := range t.player.Hands {
		rec.FinalHands = append(rec.FinalHands, HandRecord{
			Cards:   cardCodes(h.Cards),
			Value:   h.Total(),
			Status:  h.Status.String(),
			Bet:     h.Bet,
			Outcome: h.Outcome.String(),
			Payout:  h.Payout,
		})
	}

	return rec
}

// DrainRecords returns the round records produced since the last call.
// The session layer forwards them to the configured hand log sinks.
func (t *Table) DrainRecords() []RoundRecord {
	recs := t.pendingRecord
	t.pendingRecord = nil
	return recs
}
