package effects

import (
	"testing"

	"github.com/beastbond/arena-server-go/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// recordingSink captures damage and healing routed out of the ledger.
type recordingSink struct {
	damage []int
	heals  []int
}

func (s *recordingSink) DealDamage(amount int, _ int64) { s.damage = append(s.damage, amount) }
func (s *recordingSink) Heal(amount int)                { s.heals = append(s.heals, amount) }

func newTestLedger(t *testing.T) (*Ledger, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	return NewLedger(1, sink, events.NewBus(), nil, zaptest.NewLogger(t)), sink
}

func TestInstantEffectsApplyWithoutPersisting(t *testing.T) {
	ledger, sink := newTestLedger(t)

	ledger.AddEffect("Strike", 8, 0, 2)
	assert.Equal(t, []int{8}, sink.damage)
	assert.False(t, ledger.HasEffect("Strike"), "instant effect with no duration leaves no entry")

	ledger.AddEffect("Mend", 5, 0, 0)
	assert.Equal(t, []int{5}, sink.heals)
	assert.Equal(t, 0, ledger.Count())
}

func TestMalformedEffectIsRejected(t *testing.T) {
	ledger, _ := newTestLedger(t)

	ledger.AddEffect("", 3, 2, 0)
	ledger.AddEffect("Burn", 3, 0, 0)
	ledger.AddEffect("Burn", -1, 2, 0)

	assert.Equal(t, 0, ledger.Count())
}

func TestShieldAbsorbsBeforeHealth(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ledger.AddEffect("Shield", 5, 3, 0)

	remainder := ledger.ProcessShieldAbsorption(8)

	assert.Equal(t, 3, remainder, "shield 5 against 8 lets 3 through")
	assert.False(t, ledger.HasCategory(CategoryShield), "depleted shield is removed")
}

func TestShieldSurvivesPartialAbsorption(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ledger.AddEffect("Barrier", 10, 3, 0)

	remainder := ledger.ProcessShieldAbsorption(4)

	assert.Equal(t, 0, remainder)
	assert.Equal(t, 6, ledger.EffectPotency("Barrier"))
}

func TestThornsReflectsAtMostDamageDealt(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ledger.AddEffect("Thorns", 4, 3, 0)

	assert.Equal(t, 4, ledger.ProcessThornsReflection(9, 6), "thorns 4 against 6 dealt reflects 4")
	assert.Equal(t, 2, ledger.ProcessThornsReflection(9, 2), "reflection caps at damage actually dealt")
	assert.Equal(t, 0, ledger.ProcessThornsReflection(9, 0))
}

func TestEndOfTurnTicksAndExpires(t *testing.T) {
	ledger, sink := newTestLedger(t)
	ledger.AddEffect("Burn", 3, 2, 9)
	ledger.AddEffect("Regen", 2, 1, 0)
	ledger.AddEffect("Thorns", 4, 1, 0)

	var expired []string
	ledger.SetExpiryFunc(func(record Record, _ Category) {
		expired = append(expired, record.Name)
	})

	ledger.ProcessEndOfTurnEffects()

	assert.Equal(t, []int{3}, sink.damage)
	assert.Equal(t, []int{2}, sink.heals)
	assert.True(t, ledger.HasEffect("Burn"), "one turn left")
	assert.False(t, ledger.HasEffect("Regen"))
	assert.False(t, ledger.HasEffect("Thorns"), "passives tick down without applying")
	assert.ElementsMatch(t, []string{"Regen", "Thorns"}, expired)

	ledger.ProcessEndOfTurnEffects()
	assert.Equal(t, []int{3, 3}, sink.damage)
	assert.False(t, ledger.HasEffect("Burn"))
	assert.Equal(t, 0, ledger.Count())
}

func TestExpiryHookClearsCategoryFlags(t *testing.T) {
	ledger, _ := newTestLedger(t)

	var clearedStun bool
	ledger.SetExpiryFunc(func(_ Record, category Category) {
		if category == CategoryStun {
			clearedStun = true
		}
	})

	ledger.AddEffect("Stun", 1, 1, 0)
	ledger.ProcessEndOfTurnEffects()

	assert.True(t, clearedStun)
}

func TestRemoveEffectRunsExpiry(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ledger.AddEffect("Burn", 3, 5, 0)

	var expired bool
	ledger.SetExpiryFunc(func(Record, Category) { expired = true })

	ledger.RemoveEffect("Burn")
	assert.True(t, expired)
	assert.Equal(t, 0, ledger.Count())

	expired = false
	ledger.RemoveEffect("Burn")
	assert.False(t, expired, "removing an absent entry is a no-op")
}

func TestClearAllSkipsExpirySideEffects(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ledger.AddEffect("Burn", 3, 5, 0)
	ledger.AddEffect("Shield", 5, 2, 0)

	var expired bool
	ledger.SetExpiryFunc(func(Record, Category) { expired = true })

	ledger.ClearAll()
	assert.Equal(t, 0, ledger.Count())
	assert.False(t, expired)
}

func TestRestoreSkipsMalformedRecords(t *testing.T) {
	ledger, _ := newTestLedger(t)

	good, err := Record{Name: "Burn", Potency: 3, Duration: 2, SourceID: 1}.Encode()
	require.NoError(t, err)

	assert.True(t, ledger.Restore(good))
	assert.False(t, ledger.Restore([]byte("not json")), "malformed record is skipped")
	assert.False(t, ledger.Restore([]byte(`{"name":"","potency":1,"duration":1}`)))

	assert.Equal(t, 1, ledger.Count())
	assert.Equal(t, 3, ledger.EffectPotency("Burn"))
}

func TestSimilarNamesStayIndependent(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ledger.AddEffect("Burn", 3, 2, 0)
	ledger.AddEffect("Burning Soul", 7, 4, 0)

	assert.Equal(t, 3, ledger.EffectPotency("Burn"))
	assert.Equal(t, 7, ledger.EffectPotency("Burning Soul"))
	assert.False(t, ledger.HasEffect("Burning"), "lookup is exact-name, never prefix")
}
