package duel

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// A replay file is the duel's message log: re-appending it to a fresh board
// and stepping forward reconstructs every state it ever reached.

func init() {
	gob.Register(UpdateCard{})
	gob.Register(AddCard{})
	gob.Register(RemoveCard{})
	gob.Register(Draw{})
	gob.Register(SwapCards{})
	gob.Register(ShuffleLocation{})
	gob.Register(ShuffleSetCards{})
	gob.Register(CounterChange{})
	gob.Register(DisableZones{})
	gob.Register(LpChange{})
	gob.Register(NewTurn{})
	gob.Register(NewPhase{})
	gob.Register(Hint{})
	gob.Register(Win{})
	gob.Register(Result{})
	gob.Register(MatchKiller{})
	gob.Register(ConfirmCards{})
	gob.Register(SummonCard{})
	gob.Register(SelectedCards{})
	gob.Register(OnAttack{})
	gob.Register(CardHint{})
	gob.Register(PlayerHint{})
	gob.Register(ChainAction{})
}

// replayMetadata heads every replay file.
type replayMetadata struct {
	DuelID       string
	Timestamp    time.Time
	Version      int
	MessageCount int
}

// SaveReplay writes a duel's message log to a gzipped file under directory.
func SaveReplay(directory, duelID string, msgs []Message) error {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	filename := filepath.Join(directory, fmt.Sprintf("%s.replay", duelID))
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	defer gzipWriter.Close()

	encoder := gob.NewEncoder(gzipWriter)

	metadata := replayMetadata{
		DuelID:       duelID,
		Timestamp:    time.Now(),
		Version:      1,
		MessageCount: len(msgs),
	}
	if err := encoder.Encode(&metadata); err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	for i := range msgs {
		if err := encoder.Encode(&msgs[i]); err != nil {
			return fmt.Errorf("failed to encode message %d: %w", i, err)
		}
	}

	return nil
}

// LoadReplay reads a duel's message log back from a gzipped replay file.
func LoadReplay(directory, duelID string) ([]Message, error) {
	filename := filepath.Join(directory, fmt.Sprintf("%s.replay", duelID))

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	decoder := gob.NewDecoder(gzipReader)

	var metadata replayMetadata
	if err := decoder.Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if metadata.Version != 1 {
		return nil, fmt.Errorf("unsupported replay version: %d", metadata.Version)
	}

	msgs := make([]Message, 0, metadata.MessageCount)
	for i := 0; i < metadata.MessageCount; i++ {
		var msg Message
		if err := decoder.Decode(&msg); err != nil {
			return nil, fmt.Errorf("failed to decode message %d: %w", i, err)
		}
		msgs = append(msgs, msg)
	}

	return msgs, nil
}

// ReplayRecorder accumulates the message feed of observed duels and saves
// the logs as replay files.
type ReplayRecorder struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	logs    map[string][]Message // duelID -> message log
	enabled map[string]bool      // duelID -> whether recording is enabled
	saveDir string
}

// NewReplayRecorder creates a replay recorder saving under saveDir.
func NewReplayRecorder(logger *zap.Logger, saveDir string) *ReplayRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayRecorder{
		logger:  logger,
		logs:    make(map[string][]Message),
		enabled: make(map[string]bool),
		saveDir: saveDir,
	}
}

// StartRecording begins recording a duel's feed.
func (rr *ReplayRecorder) StartRecording(duelID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	rr.logs[duelID] = nil
	rr.enabled[duelID] = true

	rr.logger.Info("started replay recording", zap.String("duel_id", duelID))
}

// StopRecording stops recording a duel's feed, keeping what was recorded.
func (rr *ReplayRecorder) StopRecording(duelID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	rr.enabled[duelID] = false

	rr.logger.Info("stopped replay recording", zap.String("duel_id", duelID))
}

// Record appends a message to a duel's recorded log if recording is
// enabled.
func (rr *ReplayRecorder) Record(duelID string, msg Message) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if !rr.enabled[duelID] {
		return
	}
	rr.logs[duelID] = append(rr.logs[duelID], msg)
}

// IsRecording returns whether recording is enabled for a duel.
func (rr *ReplayRecorder) IsRecording(duelID string) bool {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	return rr.enabled[duelID]
}

// MessageCount returns the number of messages recorded for a duel.
func (rr *ReplayRecorder) MessageCount(duelID string) int {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	return len(rr.logs[duelID])
}

// Save writes a duel's recorded log to disk and removes it from memory.
func (rr *ReplayRecorder) Save(duelID string) error {
	rr.mu.Lock()
	msgs, exists := rr.logs[duelID]
	if !exists {
		rr.mu.Unlock()
		return fmt.Errorf("no recording for duel %s", duelID)
	}
	delete(rr.logs, duelID)
	delete(rr.enabled, duelID)
	rr.mu.Unlock()

	if err := SaveReplay(rr.saveDir, duelID, msgs); err != nil {
		return fmt.Errorf("failed to save replay: %w", err)
	}

	rr.logger.Info("saved replay to disk",
		zap.String("duel_id", duelID),
		zap.Int("message_count", len(msgs)),
		zap.String("directory", rr.saveDir),
	)

	return nil
}

// Load reads a duel's replay file from disk.
func (rr *ReplayRecorder) Load(duelID string) ([]Message, error) {
	msgs, err := LoadReplay(rr.saveDir, duelID)
	if err != nil {
		return nil, err
	}

	rr.logger.Info("loaded replay from disk",
		zap.String("duel_id", duelID),
		zap.Int("message_count", len(msgs)),
	)

	return msgs, nil
}

// Clear drops a duel's recorded log without saving.
func (rr *ReplayRecorder) Clear(duelID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	delete(rr.logs, duelID)
	delete(rr.enabled, duelID)

	rr.logger.Debug("cleared recording", zap.String("duel_id", duelID))
}
