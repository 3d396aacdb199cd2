// Package game implements the core blackjack round engine.
//
// The main type is Table, which runs the round state machine for a
// single-seat session: betting, the opening deal with its natural and
// insurance handling, player actions, the dealer's draw and settlement.
// Every mutating method validates fully before touching state, so a
// rejected action leaves the table exactly as it was.
//
// # Basic Usage
//
// Create a table and play a round:
//
//	tbl, err := game.NewTable(game.DefaultRules(), rng)
//	// ...
//	tbl.PlaceBet(50)
//	tbl.Deal()
//	tbl.Hit()
//	tbl.Stand()
//	snap := tbl.Snapshot()
//
// # Deterministic Play
//
// The shoe draws from an injected *rand.Rand, so a fixed seed replays
// identically:
//
//	rng := rand.New(rand.NewPCG(42, 42))
//	tbl, err := game.NewTable(game.DefaultRules(), rng)
//
// # Persistence
//
// Table.State captures everything, hidden hole card and shoe order
// included; RestoreTable validates and rebuilds, rejecting incoherent
// snapshots with ErrCorruptState. Snapshot is the player-facing view
// and never leaks the hole card.
package game
