package tracking

import (
	"fmt"

	"github.com/beastbond/arena-server-go/internal/events"
	"github.com/beastbond/arena-server-go/internal/replication"
	"go.uber.org/zap"
)

// Stance is a mutually-exclusive combat mode. Holding the same non-None
// stance through the configured number of consecutive turn ends auto-clears
// it back to None.
type Stance int

const (
	StanceNone Stance = iota
	StanceAggressive
	StanceDefensive
	StanceFocused
	StanceGuardian
	StanceLimitBreak
)

var stanceNames = map[Stance]string{
	StanceNone:       "NONE",
	StanceAggressive: "AGGRESSIVE",
	StanceDefensive:  "DEFENSIVE",
	StanceFocused:    "FOCUSED",
	StanceGuardian:   "GUARDIAN",
	StanceLimitBreak: "LIMIT_BREAK",
}

func (s Stance) String() string {
	if name, ok := stanceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STANCE_%d", int(s))
}

// CardType classifies a played card for combo accounting.
type CardType int

const (
	CardTypeNone CardType = iota
	CardTypeAttack
	CardTypeSkill
	CardTypeCombo
	CardTypeFinisher
)

var cardTypeNames = map[CardType]string{
	CardTypeNone:     "NONE",
	CardTypeAttack:   "ATTACK",
	CardTypeSkill:    "SKILL",
	CardTypeCombo:    "COMBO",
	CardTypeFinisher: "FINISHER",
}

func (c CardType) String() string {
	if name, ok := cardTypeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CARD_TYPE_%d", int(c))
}

// DefaultStanceHoldTurns is how many consecutive turn ends a stance survives
// before expiring back to None.
const DefaultStanceHoldTurns = 2

// EnergyFunc reads the owning entity's current energy for condition checks.
type EnergyFunc func() int

// Tracker aggregates per-entity combat statistics: stun and limit-break
// flags, combo count, perfection streak, strength stacks, stance, and the
// turn/fight-scoped play counters consumed by conditional card effects.
// Exclusively mutated by the authority's battle loop.
type Tracker struct {
	ownerID         int64
	stanceHoldTurns int
	energyFn        EnergyFunc
	bus             *events.Bus
	broadcaster     replication.Broadcaster
	logger          *zap.Logger

	stunned        bool
	limitBreak     bool
	combo          int
	perfection     int
	strengthStacks int
	stance         Stance
	stanceDuration int
	lastPlayedType CardType

	// Turn-scoped counters, reset exactly once per turn start.
	damageTakenTurn int
	damageDealtTurn int
	healingTurn     int
	playedTurn      int
	zeroCostTurn    int

	// Fight-scoped counters, reset exactly once per fight start.
	damageTakenFight int
	damageDealtFight int
	healingFight     int
	playedFight      int
	zeroCostFight    int

	turnOpen       bool
	turnsCompleted int
}

// NewTracker creates combat tracking state for one entity.
func NewTracker(ownerID int64, stanceHoldTurns int, energyFn EnergyFunc, bus *events.Bus, broadcaster replication.Broadcaster, logger *zap.Logger) *Tracker {
	if stanceHoldTurns <= 0 {
		stanceHoldTurns = DefaultStanceHoldTurns
	}
	if broadcaster == nil {
		broadcaster = replication.NopBroadcaster{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		ownerID:         ownerID,
		stanceHoldTurns: stanceHoldTurns,
		energyFn:        energyFn,
		bus:             bus,
		broadcaster:     broadcaster,
		logger:          logger,
	}
}

// OnTurnStart opens a new turn: the perfection streak advances when no
// damage was recorded since the previous turn started, then the turn-scoped
// counters reset. The damage window deliberately spans the opponent's turn;
// damageTakenTurn keeps accumulating after OnTurnEnd, so a hit landed there
// still blocks the increment. A duplicate call inside the same turn is
// ignored so counters reset exactly once per boundary.
func (t *Tracker) OnTurnStart() {
	if t.turnOpen {
		t.logger.Warn("turn start while turn already open, ignoring",
			zap.Int64("owner_id", t.ownerID),
		)
		return
	}
	t.turnOpen = true

	if t.turnsCompleted > 0 && t.damageTakenTurn == 0 {
		t.perfection++
		t.publishValue(events.EventStreakChanged, t.perfection)
	}

	t.damageTakenTurn = 0
	t.damageDealtTurn = 0
	t.healingTurn = 0
	t.playedTurn = 0
	t.zeroCostTurn = 0
}

// OnTurnEnd closes the turn and ages the stance. Holding a non-None stance
// through the configured number of turn ends expires it back to None.
func (t *Tracker) OnTurnEnd() {
	if !t.turnOpen {
		t.logger.Warn("turn end without open turn, ignoring",
			zap.Int64("owner_id", t.ownerID),
		)
		return
	}
	t.turnOpen = false
	t.turnsCompleted++

	if t.stance != StanceNone {
		t.stanceDuration++
		if t.stanceDuration >= t.stanceHoldTurns {
			t.SetStance(StanceNone)
		}
	}
}

// ResetForNewFight zeroes the fight-scoped counters and all derived state.
// Called exactly once per fight start.
func (t *Tracker) ResetForNewFight() {
	t.stunned = false
	t.limitBreak = false
	t.combo = 0
	t.perfection = 0
	t.strengthStacks = 0
	t.stance = StanceNone
	t.stanceDuration = 0
	t.lastPlayedType = CardTypeNone

	t.damageTakenTurn = 0
	t.damageDealtTurn = 0
	t.healingTurn = 0
	t.playedTurn = 0
	t.zeroCostTurn = 0

	t.damageTakenFight = 0
	t.damageDealtFight = 0
	t.healingFight = 0
	t.playedFight = 0
	t.zeroCostFight = 0

	t.turnOpen = false
	t.turnsCompleted = 0

	t.broadcastStance()
	t.broadcastCombo()
}

// RecordDamageTaken accumulates incoming damage. Any nonzero damage resets
// the perfection streak on this call, not at the turn boundary.
func (t *Tracker) RecordDamageTaken(amount int) {
	if amount <= 0 {
		return
	}
	t.damageTakenTurn += amount
	t.damageTakenFight += amount
	if t.perfection != 0 {
		t.perfection = 0
		t.publishValue(events.EventStreakChanged, 0)
	}
}

// RecordDamageDealt accumulates outgoing damage.
func (t *Tracker) RecordDamageDealt(amount int) {
	if amount <= 0 {
		return
	}
	t.damageDealtTurn += amount
	t.damageDealtFight += amount
}

// RecordHealing accumulates healing received.
func (t *Tracker) RecordHealing(amount int) {
	if amount <= 0 {
		return
	}
	t.healingTurn += amount
	t.healingFight += amount
}

// RecordCardPlayed updates the play counters and the combo count. A
// combo-modifier card increments the combo; a non-combo, non-finisher card
// without the modifier resets it; Combo and Finisher cards without the
// modifier leave it untouched.
func (t *Tracker) RecordCardPlayed(cardType CardType, comboModifier bool, cost int) {
	t.playedTurn++
	t.playedFight++
	if cost == 0 {
		t.zeroCostTurn++
		t.zeroCostFight++
	}
	t.lastPlayedType = cardType

	before := t.combo
	switch {
	case comboModifier:
		t.combo++
	case cardType != CardTypeCombo && cardType != CardTypeFinisher:
		t.combo = 0
	}
	if t.combo != before {
		t.publishValue(events.EventComboChanged, t.combo)
		t.broadcastCombo()
	}

	if t.bus != nil {
		evt := events.NewEvent(events.EventCardPlayed, t.ownerID, 0)
		evt.Amount = cost
		evt.Data = cardType.String()
		t.bus.Publish(evt)
	}
}

// SetStance switches the combat stance, resetting the stance duration on
// every change including the auto-clear.
func (t *Tracker) SetStance(stance Stance) {
	t.stance = stance
	t.stanceDuration = 0
	if t.bus != nil {
		evt := events.NewEvent(events.EventStanceChanged, t.ownerID, 0)
		evt.Data = stance.String()
		t.bus.Publish(evt)
	}
	t.broadcastStance()
}

// SetStunned toggles the stunned flag (set by Stun effects, cleared on
// their expiry).
func (t *Tracker) SetStunned(stunned bool) {
	t.stunned = stunned
}

// SetLimitBreak toggles the limit-break flag.
func (t *Tracker) SetLimitBreak(active bool) {
	t.limitBreak = active
}

// AddStrength accumulates strength stacks.
func (t *Tracker) AddStrength(stacks int) {
	if stacks <= 0 {
		return
	}
	t.strengthStacks += stacks
}

// Accessors for the read-only mirror of this state.

func (t *Tracker) Stunned() bool             { return t.stunned }
func (t *Tracker) LimitBreak() bool          { return t.limitBreak }
func (t *Tracker) Combo() int                { return t.combo }
func (t *Tracker) PerfectionStreak() int     { return t.perfection }
func (t *Tracker) StrengthStacks() int       { return t.strengthStacks }
func (t *Tracker) Stance() Stance            { return t.stance }
func (t *Tracker) StanceDuration() int       { return t.stanceDuration }
func (t *Tracker) LastPlayedType() CardType  { return t.lastPlayedType }
func (t *Tracker) DamageTakenThisTurn() int  { return t.damageTakenTurn }
func (t *Tracker) DamageDealtThisTurn() int  { return t.damageDealtTurn }
func (t *Tracker) CardsPlayedThisTurn() int  { return t.playedTurn }
func (t *Tracker) CardsPlayedThisFight() int { return t.playedFight }

func (t *Tracker) publishValue(eventType events.EventType, value int) {
	if t.bus == nil {
		return
	}
	evt := events.NewEvent(eventType, t.ownerID, 0)
	evt.After = value
	t.bus.Publish(evt)
}

func (t *Tracker) broadcastStance() {
	msg, err := replication.NewMessage(t.ownerID, t.ownerID, replication.FieldStance, replication.StancePayload{
		OwnerID: t.ownerID,
		Stance:  t.stance.String(),
	})
	if err == nil {
		t.broadcaster.Broadcast(msg)
	}
}

func (t *Tracker) broadcastCombo() {
	msg, err := replication.NewMessage(t.ownerID, t.ownerID, replication.FieldCombo, replication.ComboPayload{
		OwnerID: t.ownerID,
		Combo:   t.combo,
	})
	if err == nil {
		t.broadcaster.Broadcast(msg)
	}
}
