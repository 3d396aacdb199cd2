package game

import (
	"errors"
	"fmt"
)

// InsurancePolicy is the automated answer to insurance and even-money
// offers while auto mode runs. There is no manual option: a policy must
// be chosen up front.
type InsurancePolicy int

const (
	InsuranceNever InsurancePolicy = iota
	InsuranceAlways
)

func (p InsurancePolicy) String() string {
	return [...]string{"never", "always"}[p]
}

// ParseInsurancePolicy maps the wire form of an insurance policy
func ParseInsurancePolicy(s string) (InsurancePolicy, error) {
	switch s {
	case "never":
		return InsuranceNever, nil
	case "always":
		return InsuranceAlways, nil
	default:
		return 0, fmt.Errorf("%w: unknown insurance policy %q", ErrIllegalAction, s)
	}
}

// AutoPlay is the auto mode sub-state. HandsRemaining keeps its last
// value when a run aborts, so the caller can see how far it got.
type AutoPlay struct {
	Active         bool            `json:"active"`
	HandsRemaining int             `json:"handsRemaining"`
	Bet            int             `json:"bet"`
	Policy         InsurancePolicy `json:"insurancePolicy"`
	Message        string          `json:"message,omitempty"`
}

// AutoStart arms auto mode for a fixed number of hands at a fixed bet.
// Only legal between rounds, and the bankroll must cover at least the
// first bet.
func (t *Table) AutoStart(bet, hands int, policy InsurancePolicy) error {
	if t.auto.Active {
		return fmt.Errorf("%w: auto mode already running", ErrIllegalAction)
	}
	if t.phase != Betting && t.phase != RoundOver {
		return fmt.Errorf("%w: cannot start auto mode during %s", ErrIllegalAction, t.phase)
	}
	if bet < t.rules.MinBet || bet > t.rules.MaxBet {
		return fmt.Errorf("%w: %d outside limits [%d, %d]", ErrInvalidBet, bet, t.rules.MinBet, t.rules.MaxBet)
	}
	if hands < 1 {
		return fmt.Errorf("%w: hand count must be positive", ErrIllegalAction)
	}
	if bet > t.player.Bankroll {
		return fmt.Errorf("%w: bankroll %d cannot cover bet %d", ErrInsufficientBankroll, t.player.Bankroll, bet)
	}

	t.auto = AutoPlay{Active: true, HandsRemaining: hands, Bet: bet, Policy: policy}
	return nil
}

// AutoStop disarms auto mode. Idempotent; a round already in flight
// finishes under the caller's control.
func (t *Table) AutoStop() {
	t.auto.Active = false
}

// Auto returns the auto mode sub-state
func (t *Table) Auto() AutoPlay {
	return t.auto
}

// AutoStep plays one automated round start to finish: bet, deal, answer
// any offer per the policy, then stand every hand. The playing strategy
// is fixed; a caller wanting to play hands out drives Hit, Double and
// the rest directly instead of arming auto mode. When the bankroll can
// no longer cover the bet the run aborts with ErrInsufficientBankroll
// and HandsRemaining stays frozen.
func (t *Table) AutoStep() error {
	if !t.auto.Active {
		return fmt.Errorf("%w: auto mode not active", ErrIllegalAction)
	}
	if t.auto.HandsRemaining <= 0 {
		t.auto.Active = false
		return fmt.Errorf("%w: no hands remaining", ErrIllegalAction)
	}
	if t.auto.Bet > t.player.Bankroll {
		t.auto.Active = false
		t.auto.Message = fmt.Sprintf("aborted: bankroll %d cannot cover bet %d", t.player.Bankroll, t.auto.Bet)
		return fmt.Errorf("%w: bankroll %d cannot cover bet %d", ErrInsufficientBankroll, t.player.Bankroll, t.auto.Bet)
	}

	if err := t.PlaceBet(t.auto.Bet); err != nil {
		return err
	}
	if err := t.Deal(); err != nil {
		return err
	}

	if t.offer != OfferNone {
		take := t.auto.Policy == InsuranceAlways
		err := t.Insurance(take)
		if err != nil && take && errors.Is(err, ErrInvalidBet) {
			// Cannot afford the stake: fall back to declining.
			err = t.Insurance(false)
		}
		if err != nil {
			return err
		}
	}

	for t.phase == PlayerTurn {
		if err := t.Stand(); err != nil {
			return err
		}
	}

	t.auto.HandsRemaining--
	if t.auto.HandsRemaining == 0 {
		t.auto.Active = false
		t.auto.Message = "completed"
	}
	return nil
}
