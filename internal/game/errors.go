package game

import "errors"

// User input errors. State is left untouched when these are returned.
var (
	// ErrInvalidBet is returned when a bet is outside the table limits or
	// exceeds the bankroll.
	ErrInvalidBet = errors.New("invalid bet")

	// ErrIllegalAction is returned when an action is not legal in the
	// current round phase or for the current hand.
	ErrIllegalAction = errors.New("illegal action")

	// ErrNoActiveHand is returned when an action targets a hand but no
	// hand is waiting to act.
	ErrNoActiveHand = errors.New("no active hand")
)

// ErrInsufficientBankroll aborts auto mode when the bankroll can no
// longer cover the configured bet.
var ErrInsufficientBankroll = errors.New("insufficient bankroll")

// Invariant violations. These are internal errors: correct operation
// never produces them, and transports surface them as server faults.
var (
	// ErrCorruptState is returned when restored state fails invariant
	// checks (hand count, bankroll sign, shoe composition).
	ErrCorruptState = errors.New("corrupt game state")
)

// IsUserError reports whether err belongs to the recoverable,
// caller-facing class of failures.
func IsUserError(err error) bool {
	return errors.Is(err, ErrInvalidBet) ||
		errors.Is(err, ErrIllegalAction) ||
		errors.Is(err, ErrNoActiveHand)
}
