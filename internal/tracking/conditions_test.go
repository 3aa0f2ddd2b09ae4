package tracking

import (
	"testing"

	"github.com/beastbond/arena-server-go/internal/events"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestThresholdConditions(t *testing.T) {
	tr := newTestTracker(t, 3)
	tr.OnTurnStart()
	tr.RecordDamageDealt(10)
	tr.RecordDamageTaken(4)
	tr.RecordHealing(6)
	tr.RecordCardPlayed(CardTypeAttack, true, 0)
	tr.RecordCardPlayed(CardTypeSkill, true, 1)

	assert.True(t, tr.CheckCondition(ConditionDamageDealtThisTurn, 10))
	assert.False(t, tr.CheckCondition(ConditionDamageDealtThisTurn, 11))
	assert.True(t, tr.CheckCondition(ConditionDamageTakenThisTurn, 1))
	assert.True(t, tr.CheckCondition(ConditionHealingThisTurn, 6))
	assert.True(t, tr.CheckCondition(ConditionComboCount, 2))
	assert.True(t, tr.CheckCondition(ConditionZeroCostThisTurn, 1))
	assert.False(t, tr.CheckCondition(ConditionZeroCostThisTurn, 2))
	assert.True(t, tr.CheckCondition(ConditionCardsPlayedThisTurn, 2))
}

func TestFightScopedConditionsSurviveTurns(t *testing.T) {
	tr := newTestTracker(t, 3)
	tr.OnTurnStart()
	tr.RecordDamageDealt(10)
	tr.OnTurnEnd()
	tr.OnTurnStart()

	assert.False(t, tr.CheckCondition(ConditionDamageDealtThisTurn, 1))
	assert.True(t, tr.CheckCondition(ConditionDamageDealtThisFight, 10))
}

func TestEqualityConditions(t *testing.T) {
	tr := newTestTracker(t, 3)
	tr.OnTurnStart()
	tr.SetStance(StanceDefensive)
	tr.RecordCardPlayed(CardTypeFinisher, false, 2)

	assert.True(t, tr.CheckCondition(ConditionStanceIs, int(StanceDefensive)))
	assert.False(t, tr.CheckCondition(ConditionStanceIs, int(StanceAggressive)))
	assert.True(t, tr.CheckCondition(ConditionLastCardTypeIs, int(CardTypeFinisher)))
}

func TestEnergyRemainingReadsThroughTheCallback(t *testing.T) {
	energy := 2
	tr := NewTracker(1, DefaultStanceHoldTurns, func() int { return energy }, events.NewBus(), nil, zaptest.NewLogger(t))

	assert.True(t, tr.CheckCondition(ConditionEnergyRemaining, 2))
	energy = 1
	assert.False(t, tr.CheckCondition(ConditionEnergyRemaining, 2))
}

func TestUnknownConditionIsFalse(t *testing.T) {
	tr := newTestTracker(t, 3)
	assert.False(t, tr.CheckCondition(ConditionType(99), 0))
}
