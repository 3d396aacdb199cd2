package game

import (
	"testing"
)

func TestDefaultRulesValid(t *testing.T) {
	if err := DefaultRules().Validate(); err != nil {
		t.Errorf("default rules should validate, got %v", err)
	}
}

func TestRulesValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Rules)
	}{
		{"zero decks", func(r *Rules) { r.Decks = 0 }},
		{"too many decks", func(r *Rules) { r.Decks = 9 }},
		{"penetration at one", func(r *Rules) { r.Penetration = 1.0 }},
		{"negative penetration", func(r *Rules) { r.Penetration = -0.1 }},
		{"zero min bet", func(r *Rules) { r.MinBet = 0 }},
		{"max below min", func(r *Rules) { r.MinBet = 50; r.MaxBet = 10 }},
		{"bankroll below min bet", func(r *Rules) { r.MinBet = 100; r.StartingBankroll = 50 }},
		{"zero payout numerator", func(r *Rules) { r.BlackjackPayoutNum = 0 }},
		{"zero payout denominator", func(r *Rules) { r.BlackjackPayoutDenom = 0 }},
		{"zero split hands", func(r *Rules) { r.MaxSplitHands = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rules := DefaultRules()
			tc.mutate(&rules)
			if err := rules.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestBlackjackPayout(t *testing.T) {
	cases := []struct {
		num, denom int
		bet, want  int
	}{
		{3, 2, 10, 15},
		{3, 2, 100, 150},
		{3, 2, 5, 7}, // odd stake truncates
		{6, 5, 10, 12},
		{1, 1, 25, 25},
	}

	for _, tc := range cases {
		rules := DefaultRules()
		rules.BlackjackPayoutNum = tc.num
		rules.BlackjackPayoutDenom = tc.denom
		if got := rules.BlackjackPayout(tc.bet); got != tc.want {
			t.Errorf("payout %d:%d on %d = %d, want %d", tc.num, tc.denom, tc.bet, got, tc.want)
		}
	}
}

func TestPenetrationCards(t *testing.T) {
	rules := DefaultRules()
	if got := rules.PenetrationCards(); got != 78 {
		t.Errorf("penetration cards = %d, want 78", got)
	}

	rules.Decks = 1
	rules.Penetration = 0.5
	if got := rules.PenetrationCards(); got != 26 {
		t.Errorf("penetration cards = %d, want 26", got)
	}
}
