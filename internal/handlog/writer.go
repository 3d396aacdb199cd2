package handlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
)

const defaultFilename = "rounds.jsonl"

// Writer buffers round records for a single game and appends them to a
// JSONL file on flush.
type Writer struct {
	cfg     WriterConfig
	logger  *log.Logger
	outPath string

	mu                  sync.Mutex
	flushMu             sync.Mutex
	buffer              []Record
	flushNotifier       func()
	consecutiveFailures int
	disabled            bool
}

// WriterConfig configures a per-game writer.
type WriterConfig struct {
	GameID      string
	OutputDir   string
	Filename    string
	FlushRounds int
}

// NewWriter constructs a writer for a given game.
func NewWriter(cfg WriterConfig, logger *log.Logger) (*Writer, error) {
	if cfg.GameID == "" {
		return nil, errors.New("handlog: GameID is required")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("handlog: OutputDir is required")
	}
	if cfg.Filename == "" {
		cfg.Filename = defaultFilename
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("handlog: create dir: %w", err)
	}

	return &Writer{
		cfg:     cfg,
		logger:  logger,
		outPath: filepath.Join(cfg.OutputDir, cfg.Filename),
		buffer:  make([]Record, 0, max(1, cfg.FlushRounds)),
	}, nil
}

// SetFlushNotifier registers a callback invoked when the buffer reaches
// the flush threshold.
func (w *Writer) SetFlushNotifier(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushNotifier = fn
}

// Append buffers a record for the next flush.
func (w *Writer) Append(rec Record) {
	var notifier func()

	w.mu.Lock()
	if w.disabled {
		w.mu.Unlock()
		return
	}
	w.buffer = append(w.buffer, rec)
	if w.cfg.FlushRounds > 0 && len(w.buffer) >= w.cfg.FlushRounds {
		notifier = w.flushNotifier
	}
	w.mu.Unlock()

	if notifier != nil {
		notifier()
	}
}

// Flush appends buffered records to the output file, one JSON object
// per line.
func (w *Writer) Flush() error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.mu.Lock()
	if w.disabled || len(w.buffer) == 0 {
		w.mu.Unlock()
		return nil
	}
	records := append([]Record(nil), w.buffer...)
	w.mu.Unlock()

	file, err := os.OpenFile(w.outPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	written := 0
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			w.finalizeFlush(written)
			return err
		}
		written++
	}

	w.finalizeFlush(len(records))
	return nil
}

// Close flushes remaining data.
func (w *Writer) Close() error {
	return w.Flush()
}

// HandleFlushResult updates state after a flush attempt and returns
// whether the writer was disabled.
func (w *Writer) HandleFlushResult(err error) (disabled bool, dropped int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil {
		w.consecutiveFailures++
		if w.consecutiveFailures >= 3 {
			dropped = len(w.buffer)
			w.buffer = nil
			w.disabled = true
			return true, dropped
		}
		return false, 0
	}

	w.consecutiveFailures = 0
	return false, 0
}

// IsDisabled reports whether the writer has been disabled.
func (w *Writer) IsDisabled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.disabled
}

func (w *Writer) finalizeFlush(flushed int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if flushed > 0 {
		if flushed >= len(w.buffer) {
			w.buffer = w.buffer[:0]
		} else {
			w.buffer = w.buffer[flushed:]
		}
	}
}
