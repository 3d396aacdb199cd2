package statistics

import (
	"fmt"
	"math"
	"sort"
)

// RoundResult is one settled blackjack round as fed to the aggregator
type RoundResult struct {
	Net            float64 // chips won or lost this round, insurance included
	Bet            float64 // initial bet for the round
	Result         string  // win, loss, push, blackjack
	Doubled        bool
	Split          bool
	Surrendered    bool
	InsuranceTaken bool
	InsuranceNet   float64 // net from the side bet alone
	EndingBankroll float64
}

// Statistics tracks aggregate outcomes across a simulated session
type Statistics struct {
	Rounds int
	Sum    float64
	Sum2   float64 // sum of squares for variance calculation
	Values []float64

	// Outcome counts; every round lands in exactly one bucket.
	Wins       int
	Losses     int
	Pushes     int
	Blackjacks int

	// Action counts
	Doubles    int
	Splits     int
	Surrenders int

	// Main bets and the insurance side bet settle separately; their
	// nets must always sum to the total.
	InsuranceRounds int
	InsuranceNet    float64
	MainNet         float64
	AllNet          float64

	TotalBet float64

	// Bankroll trajectory
	PeakBankroll float64
	MaxDrawdown  float64
}

// Mean returns the arithmetic mean net per round
func (s *Statistics) Mean() float64 {
	if s.Rounds == 0 {
		return 0
	}
	return s.Sum / float64(s.Rounds)
}

// Variance returns the sample variance of round nets
func (s *Statistics) Variance() float64 {
	if s.Rounds < 2 {
		return 0
	}
	mean := s.Mean()
	return (s.Sum2 - float64(s.Rounds)*mean*mean) / float64(s.Rounds-1)
}

// StdDev returns the sample standard deviation of round nets
func (s *Statistics) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// StdError returns the standard error of the mean
func (s *Statistics) StdError() float64 {
	if s.Rounds == 0 {
		return 0
	}
	return s.StdDev() / math.Sqrt(float64(s.Rounds))
}

// ConfidenceInterval95 returns the 95% confidence interval for the mean
func (s *Statistics) ConfidenceInterval95() (float64, float64) {
	mean := s.Mean()
	margin := 1.96 * s.StdError()
	return mean - margin, mean + margin
}

// WinRate returns the fraction of rounds won, naturals included
func (s *Statistics) WinRate() float64 {
	if s.Rounds == 0 {
		return 0
	}
	return float64(s.Wins+s.Blackjacks) / float64(s.Rounds)
}

// EdgePerBet returns the net result per unit wagered. Negative means
// the house is winning.
func (s *Statistics) EdgePerBet() float64 {
	if s.TotalBet == 0 {
		return 0
	}
	return s.AllNet / s.TotalBet
}

// Add incorporates a settled round into the statistics
func (s *Statistics) Add(r RoundResult) {
	s.Rounds++
	s.Sum += r.Net
	s.Sum2 += r.Net * r.Net
	s.Values = append(s.Values, r.Net)

	switch r.Result {
	case "win":
		s.Wins++
	case "loss":
		s.Losses++
	case "push":
		s.Pushes++
	case "blackjack":
		s.Blackjacks++
	}

	if r.Doubled {
		s.Doubles++
	}
	if r.Split {
		s.Splits++
	}
	if r.Surrendered {
		s.Surrenders++
	}

	if r.InsuranceTaken {
		s.InsuranceRounds++
	}
	s.InsuranceNet += r.InsuranceNet
	s.MainNet += r.Net - r.InsuranceNet
	s.AllNet += r.Net

	s.TotalBet += r.Bet

	if r.EndingBankroll > s.PeakBankroll {
		s.PeakBankroll = r.EndingBankroll
	}
	if dd := s.PeakBankroll - r.EndingBankroll; dd > s.MaxDrawdown {
		s.MaxDrawdown = dd
	}
}

// Median returns the median round net
func (s *Statistics) Median() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := make([]float64, len(s.Values))
	copy(sorted, s.Values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// Percentile returns the round net at the given percentile (0.0 to 1.0)
func (s *Statistics) Percentile(p float64) float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := make([]float64, len(s.Values))
	copy(sorted, s.Values)
	sort.Float64s(sorted)

	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// IsLedgerBalanced checks that the main and insurance nets account for
// the total exactly.
func (s *Statistics) IsLedgerBalanced() bool {
	return math.Abs(s.AllNet-s.MainNet-s.InsuranceNet) <= 1e-6
}

// Validate performs consistency checks over the aggregate data
func (s *Statistics) Validate() error {
	if !s.IsLedgerBalanced() {
		return fmt.Errorf("ledger mismatch: all=%.6f, main=%.6f, insurance=%.6f",
			s.AllNet, s.MainNet, s.InsuranceNet)
	}

	if s.Rounds <= 0 {
		return fmt.Errorf("invalid round count: %d", s.Rounds)
	}

	if len(s.Values) != s.Rounds {
		return fmt.Errorf("values length (%d) does not match round count (%d)",
			len(s.Values), s.Rounds)
	}

	if total := s.Wins + s.Losses + s.Pushes + s.Blackjacks; total != s.Rounds {
		return fmt.Errorf("outcome counts total %d, want %d", total, s.Rounds)
	}

	if s.InsuranceRounds > s.Rounds {
		return fmt.Errorf("insurance rounds (%d) exceed total rounds (%d)", s.InsuranceRounds, s.Rounds)
	}

	return nil
}
