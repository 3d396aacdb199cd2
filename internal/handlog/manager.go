package handlog

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/lox/twentyone/internal/game"
)

// Manager coordinates flushing for multiple per-game writers. It
// implements Recorder; writers are created on first use and removed
// once their game is deleted or their storage keeps failing.
type Manager struct {
	cfg    ManagerConfig
	logger *log.Logger
	clock  quartz.Clock

	mu       sync.RWMutex
	writers  map[string]*Writer
	flushReq chan struct{}
	stop     chan struct{}
	wg       sync.WaitGroup
}

// ManagerConfig configures the server-wide round log.
type ManagerConfig struct {
	BaseDir       string
	FlushInterval time.Duration
	FlushRounds   int
	Clock         quartz.Clock
}

// NewManager creates and starts a round-log manager.
func NewManager(logger *log.Logger, cfg ManagerConfig) *Manager {
	if cfg.BaseDir == "" {
		cfg.BaseDir = "rounds"
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 10 * time.Second
	}
	if cfg.FlushRounds <= 0 {
		cfg.FlushRounds = 10
	}
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}

	m := &Manager{
		cfg:      cfg,
		logger:   logger,
		clock:    cfg.Clock,
		writers:  make(map[string]*Writer),
		flushReq: make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	m.wg.Add(1)
	go m.run()
	return m
}

// Record buffers a settled round for the given game.
func (m *Manager) Record(gameID string, round game.RoundRecord) {
	w, err := m.writerFor(gameID)
	if err != nil {
		m.logger.Error("Failed to open round log", "game_id", gameID, "error", err)
		return
	}
	w.Append(Record{
		ID:         uuid.NewString(),
		GameID:     gameID,
		RecordedAt: m.clock.Now(),
		Round:      round,
	})
}

// Close stops the ticker and flushes all writers.
func (m *Manager) Close() error {
	close(m.stop)
	m.wg.Wait()
	m.flushAll()

	m.mu.Lock()
	writers := m.writers
	m.writers = make(map[string]*Writer)
	m.mu.Unlock()

	for gameID, w := range writers {
		if err := w.Close(); err != nil {
			m.logger.Error("Round log flush on shutdown failed", "game_id", gameID, "error", err)
		}
	}
	return nil
}

// RemoveWriter flushes and unregisters the writer for the given game.
func (m *Manager) RemoveWriter(gameID string) {
	m.mu.Lock()
	w, ok := m.writers[gameID]
	if ok {
		delete(m.writers, gameID)
	}
	m.mu.Unlock()

	if ok {
		if err := w.Close(); err != nil {
			m.logger.Error("Round log flush on remove failed", "game_id", gameID, "error", err)
		}
	}
}

func (m *Manager) writerFor(gameID string) (*Writer, error) {
	m.mu.RLock()
	w, ok := m.writers[gameID]
	m.mu.RUnlock()
	if ok {
		return w, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.writers[gameID]; ok {
		return w, nil
	}

	w, err := NewWriter(WriterConfig{
		GameID:      gameID,
		OutputDir:   m.cfg.BaseDir,
		Filename:    fmt.Sprintf("game-%s.jsonl", gameID),
		FlushRounds: m.cfg.FlushRounds,
	}, m.logger.With("game_id", gameID))
	if err != nil {
		return nil, err
	}
	w.SetFlushNotifier(func() { m.requestFlush() })
	m.writers[gameID] = w
	return w, nil
}

func (m *Manager) run() {
	defer m.wg.Done()
	ticker := m.clock.NewTicker(m.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.flushAll()
		case <-m.flushReq:
			m.flushAll()
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) requestFlush() {
	select {
	case m.flushReq <- struct{}{}:
	default:
	}
}

func (m *Manager) flushAll() {
	m.mu.RLock()
	snapshot := make(map[string]*Writer, len(m.writers))
	for k, v := range m.writers {
		snapshot[k] = v
	}
	m.mu.RUnlock()

	for gameID, w := range snapshot {
		err := w.Flush()
		if err != nil {
			m.logger.Error("Round log flush failed", "game_id", gameID, "error", err)
		}
		disabled, dropped := w.HandleFlushResult(err)
		if disabled {
			m.logger.Error("Round logging disabled after repeated failures",
				"game_id", gameID, "dropped_rounds", dropped)
			m.RemoveWriter(gameID)
		}
	}
}
