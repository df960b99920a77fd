package duel

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Observed is one duel under observation: a board plus the single writer
// lock that serializes every mutation behind it. Readers taking multi-step
// observations hold the read lock for the duration.
type Observed struct {
	ID string

	mu    sync.RWMutex
	board *Board
}

// Append adds a message to the duel's log.
func (o *Observed) Append(m Message) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.board.Append(m)
}

// Forward steps the duel forward up to steps times, stopping at the tail or
// on the first failure. Returns the number of steps taken.
func (o *Observed) Forward(steps int) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	taken := 0
	for i := 0; i < steps; i++ {
		before := o.board.CurrentState()
		if err := o.board.Forward(); err != nil {
			return taken, err
		}
		if o.board.CurrentState() == before {
			break
		}
		taken++
	}
	return taken, nil
}

// Backward steps the duel backward up to steps times, stopping at state
// zero or on the first failure. Returns the number of steps taken.
func (o *Observed) Backward(steps int) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	taken := 0
	for i := 0; i < steps; i++ {
		before := o.board.CurrentState()
		if err := o.board.Backward(); err != nil {
			return taken, err
		}
		if o.board.CurrentState() == before {
			break
		}
		taken++
	}
	return taken, nil
}

// Seed prepares the board before the first forward step.
func (o *Observed) Seed(fn func(*Board) error) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	return fn(o.board)
}

// View snapshots the observable state.
func (o *Observed) View() BoardView {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.board.View()
}

// Messages returns a copy of the duel's message log.
func (o *Observed) Messages() []Message {
	o.mu.RLock()
	defer o.mu.RUnlock()

	msgs := make([]Message, len(o.board.msgs))
	copy(msgs, o.board.msgs)
	return msgs
}

// Manager tracks every duel under observation.
type Manager struct {
	logger *zap.Logger

	mu    sync.RWMutex
	duels map[string]*Observed
}

// NewManager creates a duel manager.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		logger: logger,
		duels:  make(map[string]*Observed),
	}
}

// Create registers a new observed duel and returns it.
func (m *Manager) Create() *Observed {
	duel := &Observed{
		ID:    uuid.NewString(),
		board: NewBoard(m.logger),
	}

	m.mu.Lock()
	m.duels[duel.ID] = duel
	m.mu.Unlock()

	m.logger.Info("duel registered", zap.String("duel_id", duel.ID))
	return duel
}

// CreateFromLog registers a duel pre-loaded with a message log, e.g. a
// saved replay. The cursor starts at state zero.
func (m *Manager) CreateFromLog(msgs []Message) *Observed {
	duel := m.Create()
	duel.mu.Lock()
	for _, msg := range msgs {
		duel.board.Append(msg)
	}
	duel.mu.Unlock()
	return duel
}

// Get returns the duel with the given ID.
func (m *Manager) Get(id string) (*Observed, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	duel, ok := m.duels[id]
	if !ok {
		return nil, fmt.Errorf("no duel %s", id)
	}
	return duel, nil
}

// Remove forgets a duel.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.duels, id)
	m.mu.Unlock()

	m.logger.Info("duel removed", zap.String("duel_id", id))
}

// IDs lists the registered duel IDs.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.duels))
	for id := range m.duels {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of registered duels.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.duels)
}
