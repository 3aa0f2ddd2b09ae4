package tracking

import (
	"testing"

	"github.com/beastbond/arena-server-go/internal/events"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func newTestTracker(t *testing.T, energy int) *Tracker {
	t.Helper()
	return NewTracker(1, DefaultStanceHoldTurns, func() int { return energy }, events.NewBus(), nil, zaptest.NewLogger(t))
}

func runTurn(tr *Tracker) {
	tr.OnTurnStart()
	tr.OnTurnEnd()
}

func TestStanceExpiresAfterHoldTurns(t *testing.T) {
	tr := newTestTracker(t, 3)

	tr.OnTurnStart()
	tr.SetStance(StanceAggressive)
	tr.OnTurnEnd()
	assert.Equal(t, StanceAggressive, tr.Stance(), "survives the first turn end")
	assert.Equal(t, 1, tr.StanceDuration())

	runTurn(tr)
	assert.Equal(t, StanceNone, tr.Stance(), "expires on the second turn end")
	assert.Equal(t, 0, tr.StanceDuration())
}

func TestSwitchingStanceResetsDuration(t *testing.T) {
	tr := newTestTracker(t, 3)

	tr.OnTurnStart()
	tr.SetStance(StanceAggressive)
	tr.OnTurnEnd()

	tr.OnTurnStart()
	tr.SetStance(StanceDefensive)
	tr.OnTurnEnd()
	assert.Equal(t, StanceDefensive, tr.Stance(), "fresh stance restarts the countdown")

	runTurn(tr)
	assert.Equal(t, StanceNone, tr.Stance())
}

func TestPerfectionStreakAdvancesOnDamageFreeTurns(t *testing.T) {
	tr := newTestTracker(t, 3)

	tr.OnTurnStart()
	tr.OnTurnEnd()
	assert.Equal(t, 0, tr.PerfectionStreak(), "no streak before a completed prior turn")

	tr.OnTurnStart()
	assert.Equal(t, 1, tr.PerfectionStreak())
	tr.OnTurnEnd()

	tr.OnTurnStart()
	assert.Equal(t, 2, tr.PerfectionStreak())
}

func TestPerfectionStreakResetsImmediatelyOnDamage(t *testing.T) {
	tr := newTestTracker(t, 3)
	runTurn(tr)
	tr.OnTurnStart()
	assert.Equal(t, 1, tr.PerfectionStreak())

	tr.RecordDamageTaken(5)
	assert.Equal(t, 0, tr.PerfectionStreak(), "reset happens on the hit, not at the boundary")

	tr.OnTurnEnd()
	tr.OnTurnStart()
	assert.Equal(t, 0, tr.PerfectionStreak(), "damaged prior turn blocks the increment")
}

func TestStreakBlockedByDamageBetweenOwnTurns(t *testing.T) {
	tr := newTestTracker(t, 3)
	runTurn(tr)
	tr.OnTurnStart()
	assert.Equal(t, 1, tr.PerfectionStreak())
	tr.OnTurnEnd()

	// hit landed during the opponent's turn, after this entity's own end
	tr.RecordDamageTaken(6)
	assert.Equal(t, 0, tr.PerfectionStreak())

	tr.OnTurnStart()
	assert.Equal(t, 0, tr.PerfectionStreak(), "the hit blocks the next increment")

	tr.OnTurnEnd()
	tr.OnTurnStart()
	assert.Equal(t, 1, tr.PerfectionStreak(), "a clean turn restarts the streak")
}

func TestDuplicateTurnBoundariesAreIgnored(t *testing.T) {
	tr := newTestTracker(t, 3)
	runTurn(tr)

	tr.OnTurnStart()
	streak := tr.PerfectionStreak()
	tr.OnTurnStart() // duplicate
	assert.Equal(t, streak, tr.PerfectionStreak(), "duplicate start must not advance the streak")

	tr.SetStance(StanceFocused)
	tr.OnTurnEnd()
	tr.OnTurnEnd() // duplicate
	assert.Equal(t, 1, tr.StanceDuration(), "duplicate end must not age the stance twice")
}

func TestComboRules(t *testing.T) {
	tr := newTestTracker(t, 3)
	tr.OnTurnStart()

	tr.RecordCardPlayed(CardTypeAttack, true, 1)
	tr.RecordCardPlayed(CardTypeSkill, true, 1)
	assert.Equal(t, 2, tr.Combo(), "modifier cards increment regardless of type")

	tr.RecordCardPlayed(CardTypeCombo, false, 1)
	assert.Equal(t, 2, tr.Combo(), "combo card without modifier leaves the count")

	tr.RecordCardPlayed(CardTypeFinisher, false, 2)
	assert.Equal(t, 2, tr.Combo(), "finisher without modifier leaves the count")

	tr.RecordCardPlayed(CardTypeAttack, false, 1)
	assert.Equal(t, 0, tr.Combo(), "plain card without modifier resets")

	assert.Equal(t, 5, tr.CardsPlayedThisTurn())
	assert.Equal(t, CardTypeAttack, tr.LastPlayedType())
}

func TestTurnCountersResetAtTurnStart(t *testing.T) {
	tr := newTestTracker(t, 3)
	tr.OnTurnStart()
	tr.RecordDamageTaken(4)
	tr.RecordDamageDealt(7)
	tr.RecordCardPlayed(CardTypeAttack, false, 0)
	tr.OnTurnEnd()

	assert.Equal(t, 4, tr.DamageTakenThisTurn())

	tr.OnTurnStart()
	assert.Equal(t, 0, tr.DamageTakenThisTurn())
	assert.Equal(t, 0, tr.DamageDealtThisTurn())
	assert.Equal(t, 0, tr.CardsPlayedThisTurn())
	assert.Equal(t, 1, tr.CardsPlayedThisFight(), "fight counters survive the turn boundary")
}

func TestResetForNewFightClearsEverything(t *testing.T) {
	tr := newTestTracker(t, 3)
	tr.OnTurnStart()
	tr.SetStance(StanceGuardian)
	tr.SetStunned(true)
	tr.SetLimitBreak(true)
	tr.AddStrength(3)
	tr.RecordCardPlayed(CardTypeAttack, true, 1)
	tr.RecordDamageTaken(5)
	tr.OnTurnEnd()

	tr.ResetForNewFight()

	assert.False(t, tr.Stunned())
	assert.False(t, tr.LimitBreak())
	assert.Equal(t, 0, tr.Combo())
	assert.Equal(t, 0, tr.PerfectionStreak())
	assert.Equal(t, 0, tr.StrengthStacks())
	assert.Equal(t, StanceNone, tr.Stance())
	assert.Equal(t, CardTypeNone, tr.LastPlayedType())
	assert.Equal(t, 0, tr.CardsPlayedThisFight())
}
