package tracking

import (
	"fmt"

	"go.uber.org/zap"
)

// ConditionType enumerates the predicates conditional card effects may
// evaluate against the current counters.
type ConditionType int

const (
	ConditionDamageDealtThisTurn ConditionType = iota
	ConditionDamageTakenThisTurn
	ConditionDamageDealtThisFight
	ConditionDamageTakenThisFight
	ConditionHealingThisTurn
	ConditionHealingThisFight
	ConditionPerfectionStreak
	ConditionComboCount
	ConditionZeroCostThisTurn
	ConditionZeroCostThisFight
	ConditionCardsPlayedThisTurn
	ConditionStanceIs
	ConditionLastCardTypeIs
	ConditionEnergyRemaining
)

var conditionNames = map[ConditionType]string{
	ConditionDamageDealtThisTurn:  "DAMAGE_DEALT_THIS_TURN",
	ConditionDamageTakenThisTurn:  "DAMAGE_TAKEN_THIS_TURN",
	ConditionDamageDealtThisFight: "DAMAGE_DEALT_THIS_FIGHT",
	ConditionDamageTakenThisFight: "DAMAGE_TAKEN_THIS_FIGHT",
	ConditionHealingThisTurn:      "HEALING_THIS_TURN",
	ConditionHealingThisFight:     "HEALING_THIS_FIGHT",
	ConditionPerfectionStreak:     "PERFECTION_STREAK",
	ConditionComboCount:           "COMBO_COUNT",
	ConditionZeroCostThisTurn:     "ZERO_COST_THIS_TURN",
	ConditionZeroCostThisFight:    "ZERO_COST_THIS_FIGHT",
	ConditionCardsPlayedThisTurn:  "CARDS_PLAYED_THIS_TURN",
	ConditionStanceIs:             "STANCE_IS",
	ConditionLastCardTypeIs:       "LAST_CARD_TYPE_IS",
	ConditionEnergyRemaining:      "ENERGY_REMAINING",
}

func (c ConditionType) String() string {
	if name, ok := conditionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CONDITION_%d", int(c))
}

// CheckCondition evaluates one predicate against the current counters.
// Threshold predicates are satisfied at >= threshold; equality predicates
// (stance, last card type) interpret the threshold as the enum value. An
// unknown condition type is false, never an error: condition checks run
// inside card resolution where a fault must not stall the simulation.
func (t *Tracker) CheckCondition(condition ConditionType, threshold int) bool {
	switch condition {
	case ConditionDamageDealtThisTurn:
		return t.damageDealtTurn >= threshold
	case ConditionDamageTakenThisTurn:
		return t.damageTakenTurn >= threshold
	case ConditionDamageDealtThisFight:
		return t.damageDealtFight >= threshold
	case ConditionDamageTakenThisFight:
		return t.damageTakenFight >= threshold
	case ConditionHealingThisTurn:
		return t.healingTurn >= threshold
	case ConditionHealingThisFight:
		return t.healingFight >= threshold
	case ConditionPerfectionStreak:
		return t.perfection >= threshold
	case ConditionComboCount:
		return t.combo >= threshold
	case ConditionZeroCostThisTurn:
		return t.zeroCostTurn >= threshold
	case ConditionZeroCostThisFight:
		return t.zeroCostFight >= threshold
	case ConditionCardsPlayedThisTurn:
		return t.playedTurn >= threshold
	case ConditionStanceIs:
		return t.stance == Stance(threshold)
	case ConditionLastCardTypeIs:
		return t.lastPlayedType == CardType(threshold)
	case ConditionEnergyRemaining:
		if t.energyFn == nil {
			return false
		}
		return t.energyFn() >= threshold
	default:
		t.logger.Warn("unknown condition type",
			zap.Int64("owner_id", t.ownerID),
			zap.Int("condition", int(condition)),
		)
		return false
	}
}
