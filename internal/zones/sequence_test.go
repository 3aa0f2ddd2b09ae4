package zones

import (
	"math/rand"
	"testing"
	"time"

	"github.com/beastbond/arena-server-go/internal/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func handInstances(tracker *Tracker) []uuid.UUID {
	hand := tracker.Hand()
	out := make([]uuid.UUID, len(hand))
	for i, c := range hand {
		out[i] = c.Instance
	}
	return out
}

func TestDiscardSequenceWithPromptConfirms(t *testing.T) {
	tracker := NewTracker(1, DefaultOptions(), rand.New(rand.NewSource(1)), events.NewBus(), nil, zaptest.NewLogger(t))
	tracker.SetupDeck([]int{1, 2, 3, 4})
	tracker.Draw(4)

	seq := NewDiscardSequence(tracker, handInstances(tracker), time.Second, zaptest.NewLogger(t))

	go func() {
		for i := 0; i < 3; i++ {
			seq.Confirm()
		}
	}()

	discarded := seq.Run()

	assert.Equal(t, 4, discarded)
	assert.Equal(t, 0, tracker.HandCount())
	assert.Equal(t, 4, tracker.DiscardCount())

	select {
	case <-seq.Done():
	default:
		t.Fatal("done channel must be closed after Run returns")
	}
}

func TestDiscardSequenceForcesContinueOnTimeout(t *testing.T) {
	tracker := NewTracker(1, DefaultOptions(), rand.New(rand.NewSource(1)), events.NewBus(), nil, zaptest.NewLogger(t))
	tracker.SetupDeck([]int{1, 2, 3})
	tracker.Draw(3)

	seq := NewDiscardSequence(tracker, handInstances(tracker), 5*time.Millisecond, zaptest.NewLogger(t))

	start := time.Now()
	discarded := seq.Run() // no one ever confirms
	elapsed := time.Since(start)

	assert.Equal(t, 3, discarded, "a silent observer cannot stall the sequence")
	assert.Equal(t, 3, tracker.DiscardCount())
	assert.Less(t, elapsed, time.Second)
}

func TestDiscardSequenceSkipsCardsNoLongerInHand(t *testing.T) {
	tracker := NewTracker(1, DefaultOptions(), rand.New(rand.NewSource(1)), events.NewBus(), nil, zaptest.NewLogger(t))
	tracker.SetupDeck([]int{1, 2, 3})
	tracker.Draw(3)

	instances := handInstances(tracker)
	require.True(t, tracker.DiscardFromHand(instances[1]), "pre-discard one card")

	seq := NewDiscardSequence(tracker, instances, 5*time.Millisecond, zaptest.NewLogger(t))
	discarded := seq.Run()

	assert.Equal(t, 2, discarded, "already-discarded cards are skipped, not errors")
	assert.Equal(t, 3, tracker.DiscardCount())
}
