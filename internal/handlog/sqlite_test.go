package handlog

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
)

func newTestSQLiteRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rounds.db")
	rec, err := NewSQLiteRecorder(log.New(io.Discard), path, nil)
	if err != nil {
		t.Fatalf("NewSQLiteRecorder error: %v", err)
	}
	t.Cleanup(func() { rec.Close() })
	return rec
}

func TestSQLiteRecorderRoundTrip(t *testing.T) {
	rec := newTestSQLiteRecorder(t)

	rec.Record("default", sampleRound(1))
	rec.Record("default", sampleRound(2))
	rec.Record("other", sampleRound(1))

	rounds, err := rec.Rounds("default")
	if err != nil {
		t.Fatalf("Rounds error: %v", err)
	}
	if len(rounds) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(rounds))
	}
	if rounds[0].Round != 1 || rounds[1].Round != 2 {
		t.Errorf("expected rounds in play order, got %d and %d", rounds[0].Round, rounds[1].Round)
	}
	if rounds[0].Result != "blackjack" {
		t.Errorf("expected result blackjack, got %s", rounds[0].Result)
	}
	if rounds[0].EndingBalance != 1015 {
		t.Errorf("expected ending balance 1015, got %d", rounds[0].EndingBalance)
	}
	if len(rounds[0].FinalHands) != 1 || rounds[0].FinalHands[0].Payout != 25 {
		t.Errorf("expected final hand detail to survive the round trip, got %+v", rounds[0].FinalHands)
	}
}

func TestSQLiteRecorderEmptyGame(t *testing.T) {
	rec := newTestSQLiteRecorder(t)

	rounds, err := rec.Rounds("missing")
	if err != nil {
		t.Fatalf("Rounds error: %v", err)
	}
	if len(rounds) != 0 {
		t.Fatalf("expected no rounds, got %d", len(rounds))
	}
}

func TestSQLiteRecorderDisablesAfterRepeatedFailures(t *testing.T) {
	rec := newTestSQLiteRecorder(t)

	// Closing the database makes every insert fail
	rec.db.Close()

	for i := 0; i < 3; i++ {
		rec.Record("default", sampleRound(i+1))
	}
	if !rec.IsDisabled() {
		t.Fatal("expected recorder disabled after repeated failures")
	}

	// Further records are dropped without touching the database
	rec.Record("default", sampleRound(4))
}

func TestSQLiteRecorderReopensExistingDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rounds.db")
	logger := log.New(io.Discard)

	first, err := NewSQLiteRecorder(logger, path, nil)
	if err != nil {
		t.Fatalf("NewSQLiteRecorder error: %v", err)
	}
	first.Record("default", sampleRound(1))
	if err := first.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	second, err := NewSQLiteRecorder(logger, path, nil)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer second.Close()

	second.Record("default", sampleRound(2))
	rounds, err := second.Rounds("default")
	if err != nil {
		t.Fatalf("Rounds error: %v", err)
	}
	if len(rounds) != 2 {
		t.Fatalf("expected 2 rounds across sessions, got %d", len(rounds))
	}
}
