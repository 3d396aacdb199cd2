package handlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/lox/twentyone/internal/game"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS rounds (
	id TEXT PRIMARY KEY,
	game_id TEXT NOT NULL,
	recorded_at TEXT NOT NULL,
	round INTEGER NOT NULL,
	bet INTEGER NOT NULL,
	result TEXT NOT NULL,
	net INTEGER NOT NULL,
	ending_balance INTEGER NOT NULL,
	detail TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS rounds_game_id ON rounds (game_id);
`

// SQLiteRecorder writes each settled round straight through to a
// SQLite database: queryable columns for the common fields plus the
// full record as JSON.
type SQLiteRecorder struct {
	db     *sql.DB
	logger *log.Logger
	clock  quartz.Clock

	mu       sync.Mutex
	failures int
	disabled bool
}

// NewSQLiteRecorder opens or creates the database at path.
func NewSQLiteRecorder(logger *log.Logger, path string, clock quartz.Clock) (*SQLiteRecorder, error) {
	if clock == nil {
		clock = quartz.NewReal()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("handlog: open database: %w", err)
	}

	// WAL mode so history reads don't block recording.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("handlog: set WAL mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("handlog: create schema: %w", err)
	}

	return &SQLiteRecorder{db: db, logger: logger, clock: clock}, nil
}

// Record inserts one settled round.
func (r *SQLiteRecorder) Record(gameID string, round game.RoundRecord) {
	r.mu.Lock()
	if r.disabled {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	detail, err := json.Marshal(round)
	if err != nil {
		r.logger.Error("Failed to encode round record", "game_id", gameID, "error", err)
		return
	}

	_, err = r.db.Exec(
		`INSERT INTO rounds (id, game_id, recorded_at, round, bet, result, net, ending_balance, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		gameID,
		r.clock.Now().UTC().Format(time.RFC3339Nano),
		round.Round,
		round.Bet,
		round.Result,
		round.Net,
		round.EndingBalance,
		string(detail),
	)
	r.handleResult(gameID, err)
}

// Rounds returns the stored rounds for a game in play order.
func (r *SQLiteRecorder) Rounds(gameID string) ([]game.RoundRecord, error) {
	rows, err := r.db.Query(`SELECT detail FROM rounds WHERE game_id = ? ORDER BY round`, gameID)
	if err != nil {
		return nil, fmt.Errorf("handlog: query rounds: %w", err)
	}
	defer rows.Close()

	var records []game.RoundRecord
	for rows.Next() {
		var detail string
		if err := rows.Scan(&detail); err != nil {
			return nil, fmt.Errorf("handlog: scan round: %w", err)
		}
		var rec game.RoundRecord
		if err := json.Unmarshal([]byte(detail), &rec); err != nil {
			return nil, fmt.Errorf("handlog: decode round: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// IsDisabled reports whether recording has been disabled.
func (r *SQLiteRecorder) IsDisabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disabled
}

// Close closes the underlying database.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

func (r *SQLiteRecorder) handleResult(gameID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err == nil {
		r.failures = 0
		return
	}

	r.failures++
	r.logger.Error("Failed to insert round record", "game_id", gameID, "error", err)
	if r.failures >= 3 {
		r.disabled = true
		r.logger.Error("Round recording disabled after repeated failures", "game_id", gameID)
	}
}
