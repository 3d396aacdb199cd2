package main

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/twentyone/internal/game"
	"github.com/lox/twentyone/internal/gameid"
	"github.com/lox/twentyone/internal/handlog"
	"github.com/lox/twentyone/internal/randutil"
	"github.com/lox/twentyone/internal/statistics"
)

var titleStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#FAFAFA")).
	Background(lipgloss.Color("#7D56F4")).
	Padding(0, 1).
	Bold(true)

// SimulateCmd plays rounds offline through the auto player and prints
// aggregate statistics.
type SimulateCmd struct {
	Rounds    int    `default:"10000" help:"Number of rounds to play"`
	Bet       int    `default:"10" help:"Flat bet per round"`
	Seed      int64  `default:"0" help:"RNG seed (0 for random)"`
	Insurance string `default:"never" enum:"never,always" help:"Insurance policy: never, always"`
	Decks     int    `default:"0" help:"Number of decks (0 for table default)"`
	Bankroll  int    `default:"0" help:"Starting bankroll (0 for table default)"`
	Hit17     bool   `help:"Dealer hits soft 17"`
	Out       string `help:"Directory for JSONL round logs"`
	DB        string `help:"SQLite file for round logs"`
	Verbose   bool   `help:"Verbose logging"`
}

func (c *SimulateCmd) Run() error {
	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	var logger *log.Logger
	if c.Verbose {
		logger = log.NewWithOptions(os.Stderr, log.Options{Level: log.DebugLevel})
	} else {
		logger = log.NewWithOptions(os.Stderr, log.Options{Level: log.WarnLevel})
	}

	rules := game.DefaultRules()
	if c.Decks > 0 {
		rules.Decks = c.Decks
	}
	if c.Bankroll > 0 {
		rules.StartingBankroll = c.Bankroll
	}
	if c.Hit17 {
		rules.DealerHitsSoft17 = true
	}
	if err := rules.Validate(); err != nil {
		return fmt.Errorf("invalid rules: %w", err)
	}

	policy, err := game.ParseInsurancePolicy(c.Insurance)
	if err != nil {
		return err
	}

	recorder, err := c.buildRecorder(logger)
	if err != nil {
		return fmt.Errorf("opening round log: %w", err)
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			logger.Error("Failed to close round log", "error", err)
		}
	}()

	table, err := game.NewTable(rules, randutil.New(seed))
	if err != nil {
		return err
	}
	if err := table.AutoStart(c.Bet, c.Rounds, policy); err != nil {
		return err
	}

	fmt.Print(titleStyle.Render(" twentyone simulate "))
	fmt.Println()
	fmt.Printf("Playing %d rounds at %d per bet (seed %d, %s insurance)\n\n",
		c.Rounds, c.Bet, seed, c.Insurance)

	id := gameid.New()
	stats := &statistics.Statistics{}
	start := time.Now()
	aborted := false

	for {
		stepErr := table.AutoStep()
		for _, rec := range table.DrainRecords() {
			recorder.Record(id, rec)
			stats.Add(roundStats(rec))
		}
		if stepErr != nil {
			if errors.Is(stepErr, game.ErrInsufficientBankroll) {
				aborted = true
				break
			}
			return stepErr
		}
		if !table.Snapshot().Auto.Active {
			break
		}

		if stats.Rounds%10000 == 0 {
			elapsed := time.Since(start)
			roundsPerSec := float64(stats.Rounds) / elapsed.Seconds()
			fmt.Printf("Round %d: %.4f net/round (%.0f rounds/sec)\n",
				stats.Rounds, stats.Mean(), roundsPerSec)
		}
	}

	printSummary(stats, table.Snapshot(), time.Since(start), aborted)

	if err := stats.Validate(); err != nil {
		return fmt.Errorf("statistics ledger: %w", err)
	}
	return nil
}

func (c *SimulateCmd) buildRecorder(logger *log.Logger) (handlog.Recorder, error) {
	var recorders []handlog.Recorder
	if c.Out != "" {
		recorders = append(recorders, handlog.NewManager(logger.WithPrefix("handlog"), handlog.ManagerConfig{
			BaseDir: c.Out,
			Clock:   quartz.NewReal(),
		}))
	}
	if c.DB != "" {
		r, err := handlog.NewSQLiteRecorder(logger.WithPrefix("handlog"), c.DB, quartz.NewReal())
		if err != nil {
			return nil, err
		}
		recorders = append(recorders, r)
	}
	switch len(recorders) {
	case 0:
		return handlog.NopRecorder{}, nil
	case 1:
		return recorders[0], nil
	default:
		return handlog.Multi(recorders...), nil
	}
}

// roundStats maps a settled round into the aggregator's shape
func roundStats(rec game.RoundRecord) statistics.RoundResult {
	return statistics.RoundResult{
		Net:            float64(rec.Net),
		Bet:            float64(rec.Bet),
		Result:         rec.Result,
		Doubled:        slices.Contains(rec.Actions, "double"),
		Split:          slices.Contains(rec.Actions, "split"),
		Surrendered:    slices.Contains(rec.Actions, "surrender"),
		InsuranceTaken: rec.Insurance.Taken && rec.Insurance.Bet > 0,
		InsuranceNet:   float64(rec.Insurance.Payout - rec.Insurance.Bet),
		EndingBankroll: float64(rec.EndingBalance),
	}
}

func printSummary(stats *statistics.Statistics, snap game.Snapshot, duration time.Duration, aborted bool) {
	mean := stats.Mean()
	low, high := stats.ConfidenceInterval95()
	roundsPerSec := float64(stats.Rounds) / duration.Seconds()

	fmt.Printf("\n=== RESULTS ===\n")
	fmt.Printf("Rounds played: %d\n", stats.Rounds)
	fmt.Printf("Total time: %v (%.0f rounds/sec)\n", duration.Round(time.Millisecond), roundsPerSec)
	if aborted {
		fmt.Printf("Session aborted: %s\n", snap.Auto.Message)
	}

	fmt.Printf("\nMean: %.4f net/round\n", mean)
	fmt.Printf("Std Dev: %.4f\n", stats.StdDev())
	fmt.Printf("95%% CI: [%.4f, %.4f] net/round\n", low, high)
	fmt.Printf("House edge: %.3f%% of amount bet\n", -stats.EdgePerBet()*100)

	fmt.Printf("\n=== OUTCOMES ===\n")
	fmt.Printf("Wins: %d (%.1f%%)\n", stats.Wins, pct(stats.Wins, stats.Rounds))
	fmt.Printf("Losses: %d (%.1f%%)\n", stats.Losses, pct(stats.Losses, stats.Rounds))
	fmt.Printf("Pushes: %d (%.1f%%)\n", stats.Pushes, pct(stats.Pushes, stats.Rounds))
	fmt.Printf("Blackjacks: %d (%.1f%%)\n", stats.Blackjacks, pct(stats.Blackjacks, stats.Rounds))
	fmt.Printf("Doubles: %d  Splits: %d  Surrenders: %d\n",
		stats.Doubles, stats.Splits, stats.Surrenders)

	if stats.InsuranceRounds > 0 {
		fmt.Printf("\n=== INSURANCE ===\n")
		fmt.Printf("Taken: %d rounds, %.0f net\n", stats.InsuranceRounds, stats.InsuranceNet)
		fmt.Printf("Main bets: %.0f net (total %.0f)\n", stats.MainNet, stats.AllNet)
	}

	fmt.Printf("\n=== BANKROLL ===\n")
	fmt.Printf("Final: %d\n", snap.Bankroll)
	fmt.Printf("Peak: %.0f\n", stats.PeakBankroll)
	fmt.Printf("Max drawdown: %.0f\n", stats.MaxDrawdown)
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
