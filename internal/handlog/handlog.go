// Package handlog persists settled rounds. The JSONL Manager buffers
// records per game and flushes them on a ticker, mirroring how the
// session layer produces them; the SQLite recorder writes each round
// through immediately. Both disable themselves after repeated storage
// failures rather than stalling play.
package handlog

import (
	"errors"
	"time"

	"github.com/lox/twentyone/internal/game"
)

// Record is one logged round with its storage envelope.
type Record struct {
	ID         string           `json:"id"`
	GameID     string           `json:"gameId"`
	RecordedAt time.Time        `json:"recordedAt"`
	Round      game.RoundRecord `json:"round"`
}

// Recorder receives settled rounds for durable storage. Implementations
// must be safe for concurrent use; Record never blocks play on storage
// errors.
type Recorder interface {
	Record(gameID string, round game.RoundRecord)
	Close() error
}

// NopRecorder discards every round.
type NopRecorder struct{}

func (NopRecorder) Record(string, game.RoundRecord) {}

func (NopRecorder) Close() error { return nil }

type multiRecorder []Recorder

// Multi fans each round out to all the given recorders.
func Multi(recorders ...Recorder) Recorder {
	return multiRecorder(recorders)
}

func (m multiRecorder) Record(gameID string, round game.RoundRecord) {
	for _, r := range m {
		r.Record(gameID, round)
	}
}

func (m multiRecorder) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
