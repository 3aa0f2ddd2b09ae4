package battle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestJournalPlayback(t *testing.T) {
	f := newFixture(t)
	f.startFight(t)

	journal := NewJournal(f.battle.ID())
	journal.Record(f.battle.Snapshot())
	f.battle.DealDamage(2, 1, 10)
	journal.Record(f.battle.Snapshot())
	f.battle.DealDamage(2, 1, 10)
	journal.Record(f.battle.Snapshot())

	require.Equal(t, 3, journal.Size())

	journal.Rewind()
	first := journal.Next()
	require.NotNil(t, first)
	assert.Equal(t, 60, first.Combatants[2].CurrentHealth)

	second := journal.Next()
	assert.Equal(t, 50, second.Combatants[2].CurrentHealth)

	third := journal.Next()
	assert.Equal(t, 40, third.Combatants[2].CurrentHealth)
	assert.Nil(t, journal.Next(), "past the end returns nil")

	back := journal.Previous()
	assert.Equal(t, 40, back.Combatants[2].CurrentHealth)

	journal.Rewind()
	skipped := journal.Skip(2)
	assert.Equal(t, 40, skipped.Combatants[2].CurrentHealth)
	assert.Nil(t, journal.StateAt(99))
}

func TestJournalSaveAndLoadRoundtrip(t *testing.T) {
	f := newFixture(t)
	f.startFight(t)

	journal := NewJournal(f.battle.ID())
	journal.Record(f.battle.Snapshot())
	f.battle.DealDamage(2, 1, 15)
	journal.Record(f.battle.Snapshot())

	dir := t.TempDir()
	require.NoError(t, journal.SaveToFile(dir))

	loaded, err := LoadJournalFromFile(dir, f.battle.ID())
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Size())

	want, err := journal.StateAt(1).ComputeChecksum()
	require.NoError(t, err)
	got, err := loaded.StateAt(1).ComputeChecksum()
	require.NoError(t, err)
	assert.Equal(t, want.Hash, got.Hash)
}

func TestLoadJournalMissingFile(t *testing.T) {
	_, err := LoadJournalFromFile(t.TempDir(), "nope")
	assert.Error(t, err)
}

func TestRecorderFlushesOnFinish(t *testing.T) {
	f := newFixture(t)
	f.startFight(t)

	dir := t.TempDir()
	recorder := NewRecorder(dir, zaptest.NewLogger(t))
	recorder.RecordSnapshot(f.battle.ID(), f.battle.Snapshot())
	recorder.RecordSnapshot(f.battle.ID(), f.battle.Snapshot())

	journal, ok := recorder.Journal(f.battle.ID())
	require.True(t, ok)
	assert.Equal(t, 2, journal.Size())

	require.NoError(t, recorder.Finish(f.battle.ID()))
	_, ok = recorder.Journal(f.battle.ID())
	assert.False(t, ok, "finished journals leave the recorder")

	loaded, err := LoadJournalFromFile(dir, f.battle.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Size())

	assert.Error(t, recorder.Finish(f.battle.ID()), "double finish has no journal")
}
