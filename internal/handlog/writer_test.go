package handlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/twentyone/internal/game"
)

func newTestWriter(t *testing.T, flushRounds int) (*Writer, string) {
	t.Helper()
	dir := t.TempDir()
	w, err := NewWriter(WriterConfig{
		GameID:      "test",
		OutputDir:   dir,
		Filename:    "game-test.jsonl",
		FlushRounds: flushRounds,
	}, log.New(io.Discard))
	if err != nil {
		t.Fatalf("NewWriter error: %v", err)
	}
	return w, filepath.Join(dir, "game-test.jsonl")
}

func sampleRound(n int) game.RoundRecord {
	return game.RoundRecord{
		Round:            n,
		BeginningBalance: 1000,
		Bet:              10,
		InitialCards:     []string{"Ah", "Kd"},
		DealerUpcard:     "7s",
		Actions:          []string{"deal"},
		FinalHands: []game.HandRecord{
			{Cards: []string{"Ah", "Kd"}, Value: 21, Status: "blackjack", Bet: 10, Outcome: "blackjack", Payout: 25},
		},
		DealerCards:   []string{"7s", "9c"},
		DealerValue:   16,
		Result:        "blackjack",
		Net:           15,
		EndingBalance: 1015,
	}
}

func sampleRecord(n int) Record {
	return Record{
		ID:         "rec-1",
		GameID:     "test",
		RecordedAt: time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC),
		Round:      sampleRound(n),
	}
}

func TestWriterFlushWritesLines(t *testing.T) {
	w, path := newTestWriter(t, 10)

	w.Append(sampleRecord(1))
	w.Append(sampleRecord(2))

	if err := w.Flush(); err != nil {
		t.Fatalf("Flush error: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open file: %v", err)
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("Unmarshal line: %v", err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].GameID != "test" {
		t.Errorf("expected game id test, got %s", records[0].GameID)
	}
	if records[0].Round.Round != 1 || records[1].Round.Round != 2 {
		t.Errorf("expected rounds 1 and 2, got %d and %d", records[0].Round.Round, records[1].Round.Round)
	}
	if records[0].Round.Result != "blackjack" {
		t.Errorf("expected result blackjack, got %s", records[0].Round.Result)
	}
}

func TestWriterFlushAppends(t *testing.T) {
	w, path := newTestWriter(t, 10)

	w.Append(sampleRecord(1))
	if err := w.Flush(); err != nil {
		t.Fatalf("first Flush error: %v", err)
	}
	w.Append(sampleRecord(2))
	if err := w.Flush(); err != nil {
		t.Fatalf("second Flush error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Read file: %v", err)
	}
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	if lines != 2 {
		t.Fatalf("expected 2 lines after two flushes, got %d", lines)
	}
}

func TestWriterFlushDrainsBuffer(t *testing.T) {
	w, _ := newTestWriter(t, 10)

	w.Append(sampleRecord(1))
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush error: %v", err)
	}
	if len(w.buffer) != 0 {
		t.Fatalf("expected empty buffer after flush, got %d", len(w.buffer))
	}

	// A second flush with nothing buffered is a no-op
	if err := w.Flush(); err != nil {
		t.Fatalf("empty Flush error: %v", err)
	}
}

func TestWriterNotifiesAtThreshold(t *testing.T) {
	w, _ := newTestWriter(t, 2)

	notified := 0
	w.SetFlushNotifier(func() { notified++ })

	w.Append(sampleRecord(1))
	if notified != 0 {
		t.Fatalf("expected no notification below threshold, got %d", notified)
	}
	w.Append(sampleRecord(2))
	if notified != 1 {
		t.Fatalf("expected notification at threshold, got %d", notified)
	}
}

func TestWriterDisablesAfterRepeatedFailures(t *testing.T) {
	w, _ := newTestWriter(t, 10)

	w.Append(sampleRecord(1))
	w.Append(sampleRecord(2))

	failure := errors.New("disk full")
	for i := 0; i < 2; i++ {
		disabled, dropped := w.HandleFlushResult(failure)
		if disabled || dropped != 0 {
			t.Fatalf("attempt %d: expected writer still enabled, got disabled=%v dropped=%d", i+1, disabled, dropped)
		}
	}

	disabled, dropped := w.HandleFlushResult(failure)
	if !disabled {
		t.Fatal("expected writer disabled after third failure")
	}
	if dropped != 2 {
		t.Fatalf("expected 2 dropped records, got %d", dropped)
	}
	if !w.IsDisabled() {
		t.Fatal("expected IsDisabled to report true")
	}

	// Appends after disable are dropped
	w.Append(sampleRecord(3))
	if len(w.buffer) != 0 {
		t.Fatalf("expected appends to be dropped after disable, got %d buffered", len(w.buffer))
	}
}

func TestWriterSuccessResetsFailureCount(t *testing.T) {
	w, _ := newTestWriter(t, 10)

	failure := errors.New("disk full")
	w.HandleFlushResult(failure)
	w.HandleFlushResult(failure)
	w.HandleFlushResult(nil)

	disabled, _ := w.HandleFlushResult(failure)
	if disabled {
		t.Fatal("expected failure count to reset after success")
	}
}

func TestWriterRequiresGameIDAndDir(t *testing.T) {
	logger := log.New(io.Discard)
	if _, err := NewWriter(WriterConfig{OutputDir: t.TempDir()}, logger); err == nil {
		t.Error("expected error for missing GameID")
	}
	if _, err := NewWriter(WriterConfig{GameID: "test"}, logger); err == nil {
		t.Error("expected error for missing OutputDir")
	}
}
