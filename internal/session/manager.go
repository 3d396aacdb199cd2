package session

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/twentyone/internal/game"
	"github.com/lox/twentyone/internal/gameid"
	"github.com/lox/twentyone/internal/handlog"
	"github.com/lox/twentyone/internal/protocol"
	"github.com/lox/twentyone/internal/randutil"
)

// ErrNotFound reports an unknown or expired session id.
var ErrNotFound = errors.New("session: not found")

// ManagerConfig configures the session manager.
type ManagerConfig struct {
	Rules     game.Rules
	Store     Store
	Recorder  handlog.Recorder
	TTL       time.Duration
	AutoDelay time.Duration // pacing between auto-played rounds
	Clock     quartz.Clock
	NewRNG    func() *rand.Rand
}

// Manager owns the session registry. Every action runs through Do:
// load the state, lock the session, apply one operation, save. Settled
// rounds drain to the recorder and events fan out through the hub.
type Manager struct {
	rules     game.Rules
	store     Store
	ownsStore bool
	recorder  handlog.Recorder
	hub       *Hub
	logger    *log.Logger
	ttl       time.Duration
	autoDelay time.Duration
	clock     quartz.Clock
	newRNG    func() *rand.Rand

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	runners map[string]*autoRunner
}

// NewManager creates a session manager.
func NewManager(logger *log.Logger, cfg ManagerConfig) *Manager {
	ownsStore := false
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore(cfg.Clock)
		ownsStore = true
	}
	if cfg.Recorder == nil {
		cfg.Recorder = handlog.NopRecorder{}
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	if cfg.NewRNG == nil {
		cfg.NewRNG = randutil.NewFromTime
	}

	return &Manager{
		rules:     cfg.Rules,
		store:     cfg.Store,
		ownsStore: ownsStore,
		recorder:  cfg.Recorder,
		hub:       NewHub(logger),
		logger:    logger.WithPrefix("session"),
		ttl:       cfg.TTL,
		autoDelay: cfg.AutoDelay,
		clock:     cfg.Clock,
		newRNG:    cfg.NewRNG,
		locks:     make(map[string]*sync.Mutex),
		runners:   make(map[string]*autoRunner),
	}
}

// Hub returns the event hub for this manager's sessions.
func (m *Manager) Hub() *Hub {
	return m.hub
}

// Rules returns the table rules new sessions are created with.
func (m *Manager) Rules() game.Rules {
	return m.rules
}

// Create starts a new session and returns its id and opening snapshot.
func (m *Manager) Create(ctx context.Context) (string, game.Snapshot, error) {
	t, err := game.NewTable(m.rules, m.newRNG())
	if err != nil {
		return "", game.Snapshot{}, err
	}

	id := gameid.New()
	if err := m.store.Save(ctx, id, t.State(), m.ttl); err != nil {
		return "", game.Snapshot{}, fmt.Errorf("session: save: %w", err)
	}

	m.logger.Info("Created session", "game_id", id, "bankroll", t.Bankroll())
	return id, t.Snapshot(), nil
}

// Get returns the current snapshot without taking the session lock;
// reading is idempotent and never mutates state.
func (m *Manager) Get(ctx context.Context, id string) (game.Snapshot, error) {
	st, ok, err := m.store.Load(ctx, id)
	if err != nil {
		return game.Snapshot{}, fmt.Errorf("session: load: %w", err)
	}
	if !ok {
		return game.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	t, err := game.RestoreTable(st, m.newRNG())
	if err != nil {
		return game.Snapshot{}, err
	}
	return t.Snapshot(), nil
}

// Do applies one action to the session under its lock: load, apply,
// save. The snapshot reflects the state after the action even when the
// action itself failed, so callers can report both.
func (m *Manager) Do(ctx context.Context, id string, fn func(*game.Table) error) (game.Snapshot, error) {
	lock := m.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	st, ok, err := m.store.Load(ctx, id)
	if err != nil {
		return game.Snapshot{}, fmt.Errorf("session: load: %w", err)
	}
	if !ok {
		return game.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	t, err := game.RestoreTable(st, m.newRNG())
	if err != nil {
		return game.Snapshot{}, err
	}

	actErr := fn(t)
	records := t.DrainRecords()

	if err := m.store.Save(ctx, id, t.State(), m.ttl); err != nil {
		return game.Snapshot{}, fmt.Errorf("session: save: %w", err)
	}

	snap := t.Snapshot()
	m.afterAction(id, records, snap)
	return snap, actErr
}

// Delete removes the session, stopping its auto runner and dropping
// its subscribers.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	runner := m.runners[id]
	m.mu.Unlock()
	if runner != nil {
		runner.requestStop()
		<-runner.done
	}

	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}

	m.hub.CloseSession(id)
	if r, ok := m.recorder.(interface{ RemoveWriter(string) }); ok {
		r.RemoveWriter(id)
	}

	m.mu.Lock()
	delete(m.locks, id)
	m.mu.Unlock()

	m.logger.Info("Deleted session", "game_id", id)
	return nil
}

// StartAuto switches the session into auto mode and spawns the runner
// that steps its rounds.
func (m *Manager) StartAuto(ctx context.Context, id string, bet, hands int, policy game.InsurancePolicy) (game.Snapshot, error) {
	snap, err := m.Do(ctx, id, func(t *game.Table) error {
		return t.AutoStart(bet, hands, policy)
	})
	if err != nil {
		return snap, err
	}

	m.spawnRunner(id)
	return snap, nil
}

// StopAuto deactivates auto mode and stops the runner.
func (m *Manager) StopAuto(ctx context.Context, id string) (game.Snapshot, error) {
	m.mu.Lock()
	runner := m.runners[id]
	m.mu.Unlock()
	if runner != nil {
		runner.requestStop()
	}

	return m.Do(ctx, id, func(t *game.Table) error {
		t.AutoStop()
		return nil
	})
}

// Close stops all auto runners. A store the caller supplied stays the
// caller's to close; the default memory store is closed here.
func (m *Manager) Close() error {
	m.mu.Lock()
	runners := make([]*autoRunner, 0, len(m.runners))
	for _, r := range m.runners {
		runners = append(runners, r)
	}
	m.mu.Unlock()

	for _, r := range runners {
		r.requestStop()
		<-r.done
	}

	if m.ownsStore {
		return m.store.Close()
	}
	return nil
}

func (m *Manager) lockFor(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[id] = lock
	}
	return lock
}

func (m *Manager) afterAction(id string, records []game.RoundRecord, snap game.Snapshot) {
	for _, rec := range records {
		m.recorder.Record(id, rec)
		m.publish(id, protocol.MessageTypeRoundResult, protocol.RoundResultData{GameID: id, Round: rec})
	}
	m.publish(id, protocol.MessageTypeState, protocol.StateData{GameID: id, Snapshot: snap})
}

func (m *Manager) publish(id string, messageType protocol.MessageType, data any) {
	msg, err := protocol.NewMessage(messageType, data)
	if err != nil {
		m.logger.Error("Failed to create event message", "game_id", id, "type", messageType, "error", err)
		return
	}
	m.hub.Publish(id, msg)
}

type autoRunner struct {
	id       string
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func (r *autoRunner) requestStop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (m *Manager) spawnRunner(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runners[id]; exists {
		return
	}

	r := &autoRunner{
		id:   id,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	m.runners[id] = r
	go m.runAuto(r)
}

func (m *Manager) removeRunner(r *autoRunner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runners[r.id] == r {
		delete(m.runners, r.id)
	}
}

// runAuto steps rounds until the controller deactivates, the session
// disappears or a stop is requested. Each step is an ordinary action
// through Do, so it holds the session lock and persists like any other.
func (m *Manager) runAuto(r *autoRunner) {
	defer close(r.done)
	defer m.removeRunner(r)
	ctx := context.Background()

	for {
		select {
		case <-r.stop:
			return
		default:
		}

		snap, err := m.Do(ctx, r.id, func(t *game.Table) error {
			return t.AutoStep()
		})
		if err != nil && !errors.Is(err, game.ErrInsufficientBankroll) {
			switch {
			case errors.Is(err, ErrNotFound), errors.Is(err, game.ErrIllegalAction):
				// Session deleted or auto mode already stopped
			default:
				m.logger.Error("Auto play step failed", "game_id", r.id, "error", err)
			}
			return
		}

		m.publish(r.id, protocol.MessageTypeAutoProgress, protocol.AutoProgressData{
			GameID:         r.id,
			Active:         snap.Auto.Active,
			HandsRemaining: snap.Auto.HandsRemaining,
			Bankroll:       snap.Bankroll,
			Message:        snap.Auto.Message,
		})

		if !snap.Auto.Active {
			return
		}

		if m.autoDelay > 0 {
			fired := make(chan struct{})
			timer := m.clock.AfterFunc(m.autoDelay, func() { close(fired) })
			select {
			case <-fired:
			case <-r.stop:
				timer.Stop()
				return
			}
		}
	}
}
