package battle

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

// Journal records a battle as a sequence of state snapshots for later
// playback and divergence audits.
type Journal struct {
	BattleID     string
	States       []*Snapshot
	CurrentIndex int
	mu           sync.RWMutex
}

// NewJournal creates an empty journal for a battle.
func NewJournal(battleID string) *Journal {
	return &Journal{
		BattleID: battleID,
		States:   make([]*Snapshot, 0),
	}
}

// Record appends a snapshot to the journal.
func (j *Journal) Record(snap *Snapshot) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.States = append(j.States, snap)
}

// Rewind resets playback to the first snapshot.
func (j *Journal) Rewind() {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.CurrentIndex = 0
}

// Next returns the snapshot at the cursor and advances it, or nil past the end.
func (j *Journal) Next() *Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.CurrentIndex < len(j.States) {
		state := j.States[j.CurrentIndex]
		j.CurrentIndex++
		return state
	}
	return nil
}

// Previous steps the cursor back and returns that snapshot, or nil at the start.
func (j *Journal) Previous() *Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.CurrentIndex > 0 {
		j.CurrentIndex--
		return j.States[j.CurrentIndex]
	}
	return nil
}

// Skip moves the cursor by count snapshots, clamped to the journal bounds.
func (j *Journal) Skip(count int) *Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	newIndex := j.CurrentIndex + count
	if newIndex >= len(j.States) {
		newIndex = len(j.States) - 1
	}
	if newIndex < 0 {
		newIndex = 0
	}

	j.CurrentIndex = newIndex
	if j.CurrentIndex < len(j.States) {
		return j.States[j.CurrentIndex]
	}
	return nil
}

// Size returns the number of recorded snapshots.
func (j *Journal) Size() int {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return len(j.States)
}

// StateAt returns the snapshot at index, or nil when out of range.
func (j *Journal) StateAt(index int) *Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if index >= 0 && index < len(j.States) {
		return j.States[index]
	}
	return nil
}

// journalMetadata heads a saved journal file.
type journalMetadata struct {
	BattleID   string
	Timestamp  time.Time
	Version    int
	StateCount int
}

// SaveToFile writes the journal to <directory>/<battleID>.journal as a
// gzipped gob stream: metadata first, then each snapshot in order.
func (j *Journal) SaveToFile(directory string) error {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	filename := filepath.Join(directory, fmt.Sprintf("%s.journal", j.BattleID))
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	defer gzipWriter.Close()

	encoder := gob.NewEncoder(gzipWriter)

	metadata := journalMetadata{
		BattleID:   j.BattleID,
		Timestamp:  time.Now(),
		Version:    1,
		StateCount: len(j.States),
	}
	if err := encoder.Encode(&metadata); err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	for i, state := range j.States {
		if err := encoder.Encode(state); err != nil {
			return fmt.Errorf("failed to encode state %d: %w", i, err)
		}
	}

	return nil
}

// LoadJournalFromFile reads a journal saved by SaveToFile.
func LoadJournalFromFile(directory, battleID string) (*Journal, error) {
	filename := filepath.Join(directory, fmt.Sprintf("%s.journal", battleID))

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

	var metadata journalMetadata
	if err := decoder.Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if metadata.Version != 1 {
		return nil, fmt.Errorf("unsupported journal version: %d", metadata.Version)
	}

	journal := NewJournal(metadata.BattleID)
	for i := 0; i < metadata.StateCount; i++ {
		var state Snapshot
		if err := decoder.Decode(&state); err != nil {
			return nil, fmt.Errorf("failed to decode state %d: %w", i, err)
		}
		journal.States = append(journal.States, &state)
	}

	return journal, nil
}

// Recorder tracks journals for live battles and flushes them to disk when a
// battle ends.
type Recorder struct {
	mu       sync.Mutex
	journals map[string]*Journal
	saveDir  string
	logger   *zap.Logger
}

// NewRecorder creates a recorder writing finished journals under saveDir.
func NewRecorder(saveDir string, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		journals: make(map[string]*Journal),
		saveDir:  saveDir,
		logger:   logger,
	}
}

// RecordSnapshot appends a snapshot to the battle's journal, creating the
// journal on first use.
func (r *Recorder) RecordSnapshot(battleID string, snap *Snapshot) {
	r.mu.Lock()
	journal, ok := r.journals[battleID]
	if !ok {
		journal = NewJournal(battleID)
		r.journals[battleID] = journal
	}
	r.mu.Unlock()

	journal.Record(snap)
}

// Journal returns the live journal for a battle, if any.
func (r *Recorder) Journal(battleID string) (*Journal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	journal, ok := r.journals[battleID]
	return journal, ok
}

// Finish flushes a battle's journal to disk and drops it from the recorder.
func (r *Recorder) Finish(battleID string) error {
	r.mu.Lock()
	journal, ok := r.journals[battleID]
	delete(r.journals, battleID)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("no journal for battle %s", battleID)
	}
	if err := journal.SaveToFile(r.saveDir); err != nil {
		return fmt.Errorf("failed to save journal for battle %s: %w", battleID, err)
	}

	r.logger.Info("battle journal saved",
		zap.String("battle_id", battleID),
		zap.Int("states", journal.Size()),
	)
	return nil
}
