package battle

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/beastbond/arena-server-go/internal/directory"
	"github.com/beastbond/arena-server-go/internal/effects"
	"github.com/beastbond/arena-server-go/internal/entity"
	"github.com/beastbond/arena-server-go/internal/events"
	"github.com/beastbond/arena-server-go/internal/replication"
	"github.com/beastbond/arena-server-go/internal/tracking"
	"github.com/beastbond/arena-server-go/internal/zones"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options tunes battle behavior. Zero values fall back to defaults.
type Options struct {
	Zones              zones.Options
	StanceHoldTurns    int
	DiscardStepTimeout time.Duration
}

// CardPlay describes the card being played, as resolved by the external
// card-effect interpreter.
type CardPlay struct {
	Instance      uuid.UUID
	Type          tracking.CardType
	ComboModifier bool
	Cost          int
}

// Combatant bundles the per-entity simulation state: the authoritative
// stat store, card zones, effect ledger, and combat tracking counters.
type Combatant struct {
	Store    *entity.Store
	Zones    *zones.Tracker
	Effects  *effects.Ledger
	Tracking *tracking.Tracker
}

// combatantSink routes effect-driven damage and healing for one combatant
// back through the battle's full damage pipeline, so shields and thorns
// apply to damage-over-time exactly as they do to direct hits.
type combatantSink struct {
	battle  *Battle
	ownerID int64
}

func (s *combatantSink) DealDamage(amount int, sourceID int64) {
	s.battle.dealDamageLocked(s.ownerID, sourceID, amount, false)
}

func (s *combatantSink) Heal(amount int) {
	s.battle.healLocked(s.ownerID, amount)
}

// Battle is the authoritative simulation for one fight: a set of player/pet
// combatants, mutated synchronously inside a single action loop. Observers
// never touch it; they converge through the replication layer.
type Battle struct {
	id          string
	auth        *entity.Authority
	bus         *events.Bus
	broadcaster replication.Broadcaster
	dir         *directory.Directory
	logger      *zap.Logger
	opts        Options
	rng         *rand.Rand

	mu         sync.Mutex
	combatants map[int64]*Combatant
	order      []int64
	turnNumber int
	started    bool
}

// New creates an empty battle bound to the authority handle.
func New(id string, auth *entity.Authority, bus *events.Bus, broadcaster replication.Broadcaster, dir *directory.Directory, opts Options, rng *rand.Rand, logger *zap.Logger) *Battle {
	if auth == nil {
		panic("battle: authority handle is required")
	}
	if bus == nil {
		bus = events.NewBus()
	}
	if broadcaster == nil {
		broadcaster = replication.NopBroadcaster{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Battle{
		id:          id,
		auth:        auth,
		bus:         bus,
		broadcaster: broadcaster,
		dir:         dir,
		logger:      logger,
		opts:        opts,
		rng:         rng,
		combatants:  make(map[int64]*Combatant),
	}
}

// ID returns the battle identifier.
func (b *Battle) ID() string { return b.id }

// Bus exposes the battle's event bus for presentation subscribers.
func (b *Battle) Bus() *events.Bus { return b.bus }

// AddCombatant admits an entity into the fight, building its zone tracker,
// effect ledger, and tracking counters. The entity must already be
// registered in the directory.
func (b *Battle) AddCombatant(e *entity.Entity) (*Combatant, error) {
	if e == nil {
		return nil, fmt.Errorf("battle %s: nil entity", b.id)
	}
	if !e.Kind.IsMain() {
		return nil, fmt.Errorf("battle %s: entity %d kind %s cannot fight", b.id, e.ID, e.Kind)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.combatants[e.ID]; ok {
		return nil, fmt.Errorf("battle %s: entity %d already admitted", b.id, e.ID)
	}

	store := entity.NewStore(b.auth, e, b.bus, b.broadcaster, b.logger)
	tracker := zones.NewTracker(e.ID, b.opts.Zones, b.rng, b.bus, b.broadcaster, b.logger)
	counters := tracking.NewTracker(e.ID, b.opts.StanceHoldTurns, func() int {
		return e.CurrentEnergy
	}, b.bus, b.broadcaster, b.logger)

	sink := &combatantSink{battle: b, ownerID: e.ID}
	ledger := effects.NewLedger(e.ID, sink, b.bus, b.broadcaster, b.logger)
	ledger.SetExpiryFunc(func(record effects.Record, category effects.Category) {
		switch category {
		case effects.CategoryStun:
			counters.SetStunned(false)
		case effects.CategoryLimitBreak:
			counters.SetLimitBreak(false)
		}
	})

	c := &Combatant{
		Store:    store,
		Zones:    tracker,
		Effects:  ledger,
		Tracking: counters,
	}
	b.combatants[e.ID] = c
	b.order = append(b.order, e.ID)
	return c, nil
}

// Combatant returns a combatant by entity ID.
func (b *Battle) Combatant(id int64) (*Combatant, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.combatants[id]
	return c, ok
}

// SetupDeck populates a combatant's combat deck from persistent collection
// card IDs. Double setup is refused by the zone tracker's guard.
func (b *Battle) SetupDeck(entityID int64, cardIDs []int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.combatants[entityID]
	if !ok {
		return fmt.Errorf("battle %s: no combatant %d", b.id, entityID)
	}
	if !c.Zones.SetupDeck(cardIDs) {
		return fmt.Errorf("battle %s: deck for %d already set up", b.id, entityID)
	}
	return nil
}

// Begin starts the fight: tracking counters reset, opening hands dealt.
func (b *Battle) Begin() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return fmt.Errorf("battle %s: already started", b.id)
	}
	for id, c := range b.combatants {
		if !c.Zones.SetupComplete() {
			return fmt.Errorf("battle %s: deck for %d not set up", b.id, id)
		}
	}

	b.started = true
	b.turnNumber = 0
	for _, id := range b.order {
		c := b.combatants[id]
		c.Tracking.ResetForNewFight()
		c.Zones.DrawOpening()
	}
	return nil
}

// StartTurn opens a combatant's turn: energy replenishes, the tracking
// counters roll their turn boundary, and the hand refills to target size.
func (b *Battle) StartTurn(entityID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.combatants[entityID]
	if !ok {
		b.logger.Warn("turn start for unknown combatant ignored",
			zap.String("battle_id", b.id),
			zap.Int64("entity_id", entityID),
		)
		return
	}

	b.turnNumber++
	c.Store.ReplenishEnergy()
	c.Tracking.OnTurnStart()
	c.Zones.RefillHand()

	b.bus.Publish(events.NewEvent(events.EventTurnStarted, entityID, 0))
}

// EndTurn closes a combatant's turn: end-of-turn effects tick, then the
// tracking counters age the stance.
func (b *Battle) EndTurn(entityID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.combatants[entityID]
	if !ok {
		b.logger.Warn("turn end for unknown combatant ignored",
			zap.String("battle_id", b.id),
			zap.Int64("entity_id", entityID),
		)
		return
	}

	c.Effects.ProcessEndOfTurnEffects()
	c.Tracking.OnTurnEnd()

	b.bus.Publish(events.NewEvent(events.EventTurnEnded, entityID, 0))
}

// PlayCard resolves a card play: energy is checked and deducted, the card
// moves Hand to Discard, and the combo counters update. Refusals are logged
// no-ops so a stale or duplicated play message cannot stall the loop.
func (b *Battle) PlayCard(entityID int64, play CardPlay) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.combatants[entityID]
	if !ok {
		b.logger.Warn("card play for unknown combatant ignored",
			zap.String("battle_id", b.id),
			zap.Int64("entity_id", entityID),
		)
		return false
	}
	if c.Tracking.Stunned() {
		b.logger.Debug("card play while stunned refused",
			zap.String("battle_id", b.id),
			zap.Int64("entity_id", entityID),
		)
		return false
	}
	if play.Cost > 0 && c.Store.Entity().CurrentEnergy < play.Cost {
		b.logger.Debug("card play refused, insufficient energy",
			zap.String("battle_id", b.id),
			zap.Int64("entity_id", entityID),
			zap.Int("cost", play.Cost),
			zap.Int("energy", c.Store.Entity().CurrentEnergy),
		)
		return false
	}
	if !c.Zones.DiscardFromHand(play.Instance) {
		return false
	}

	if play.Cost > 0 {
		c.Store.ChangeEnergy(-play.Cost)
	}
	c.Tracking.RecordCardPlayed(play.Type, play.ComboModifier, play.Cost)
	return true
}

// DealDamage runs the full damage pipeline against a combatant: shield
// absorption, then health deduction, then thorns reflection back to the
// attacker. The ordering keeps reflected and absorbed amounts consistent
// with what was actually dealt.
func (b *Battle) DealDamage(targetID, sourceID int64, amount int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dealDamageLocked(targetID, sourceID, amount, true)
}

// Heal restores a combatant's health through its store.
func (b *Battle) Heal(entityID int64, amount int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.healLocked(entityID, amount)
}

// ApplyEffect routes a status effect onto a combatant, raising any tracking
// flags tied to its category.
func (b *Battle) ApplyEffect(targetID int64, name string, potency, duration int, sourceID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.combatants[targetID]
	if !ok {
		b.logger.Warn("effect for unknown combatant ignored",
			zap.String("battle_id", b.id),
			zap.Int64("entity_id", targetID),
			zap.String("effect", name),
		)
		return
	}

	c.Effects.AddEffect(name, potency, duration, sourceID)

	switch effects.CategoryOf(name) {
	case effects.CategoryStun:
		c.Tracking.SetStunned(true)
	case effects.CategoryLimitBreak:
		c.Tracking.SetLimitBreak(true)
		c.Tracking.SetStance(tracking.StanceLimitBreak)
	}
}

// SetStance switches a combatant's stance.
func (b *Battle) SetStance(entityID int64, stance tracking.Stance) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.combatants[entityID]
	if !ok {
		return
	}
	c.Tracking.SetStance(stance)
}

// ResetForNewFight rewinds every combatant for a fresh fight: effects wiped,
// counters zeroed, deck setup flags cleared for the next SetupDeck.
func (b *Battle) ResetForNewFight() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.started = false
	b.turnNumber = 0
	for _, c := range b.combatants {
		c.Effects.ClearAll()
		c.Tracking.ResetForNewFight()
		c.Zones.DespawnAll()
		c.Zones.ResetSetupFlag()
	}
}

// End despawns every card instance and closes the fight.
func (b *Battle) End() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.started = false
	for _, c := range b.combatants {
		c.Zones.DespawnAll()
		c.Effects.ClearAll()
	}
}

// ForceResync re-broadcasts the full state of every combatant for a
// late-joining observer: stats, the active effect ledger, every card's zone,
// stance, and combo travel in one resync message per combatant, so a mirror
// that missed the incremental stream converges from this message alone.
func (b *Battle) ForceResync() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range b.order {
		b.resyncLocked(b.combatants[id])
	}
}

// BeginDiscard prepares a step-confirmed batch discard over a combatant's
// hand cards, paced by the configured confirmation timeout. The caller runs
// the returned sequence on a goroutine of its choice; each discard step takes
// the battle lock only for the move itself, so confirmation waits never stall
// other actions.
func (b *Battle) BeginDiscard(entityID int64, instances []uuid.UUID) (*zones.DiscardSequence, bool) {
	b.mu.Lock()
	c, ok := b.combatants[entityID]
	b.mu.Unlock()
	if !ok {
		b.logger.Warn("discard batch for unknown combatant ignored",
			zap.String("battle_id", b.id),
			zap.Int64("entity_id", entityID),
		)
		return nil, false
	}
	return zones.NewDiscardSequence(&lockedDiscarder{battle: b, combatant: c}, instances, b.opts.DiscardStepTimeout, b.logger), true
}

// lockedDiscarder serializes sequence discard steps against the battle loop.
type lockedDiscarder struct {
	battle    *Battle
	combatant *Combatant
}

func (d *lockedDiscarder) DiscardFromHand(instance uuid.UUID) bool {
	d.battle.mu.Lock()
	defer d.battle.mu.Unlock()
	return d.combatant.Zones.DiscardFromHand(instance)
}

func (b *Battle) resyncLocked(c *Combatant) {
	e := c.Store.Entity()
	payload := replication.ResyncPayload{
		OwnerID:       e.ID,
		Name:          e.Name,
		Kind:          e.Kind.String(),
		CurrentHealth: e.CurrentHealth,
		MaxHealth:     e.MaxHealth,
		CurrentEnergy: e.CurrentEnergy,
		MaxEnergy:     e.MaxEnergy,
		Currency:      e.Currency,
		StatusTag:     e.StatusTag,
		Stance:        c.Tracking.Stance().String(),
		Combo:         c.Tracking.Combo(),
	}
	for _, rec := range c.Effects.Effects() {
		payload.Effects = append(payload.Effects, replication.EffectPayload{
			OwnerID:  e.ID,
			Name:     rec.Name,
			Potency:  rec.Potency,
			Duration: rec.Duration,
			SourceID: rec.SourceID,
		})
	}
	for _, group := range [][]*zones.Card{c.Zones.Deck(), c.Zones.Hand(), c.Zones.Discard()} {
		for _, card := range group {
			payload.Cards = append(payload.Cards, replication.ZoneMovePayload{
				OwnerID:  e.ID,
				Instance: card.Instance,
				CardID:   card.CardID,
				Zone:     card.Zone.String(),
			})
		}
	}

	msg, err := replication.NewMessage(e.ID, e.ID, replication.FieldResync, payload)
	if err != nil {
		b.logger.Error("dropping unencodable resync message",
			zap.String("battle_id", b.id),
			zap.Int64("entity_id", e.ID),
			zap.Error(err),
		)
		return
	}
	b.broadcaster.Broadcast(msg)
}

func (b *Battle) dealDamageLocked(targetID, sourceID int64, amount int, reflect bool) {
	if amount <= 0 {
		b.logger.Debug("ignoring non-positive damage",
			zap.String("battle_id", b.id),
			zap.Int64("target_id", targetID),
			zap.Int("amount", amount),
		)
		return
	}

	target, ok := b.combatants[targetID]
	if !ok {
		b.logger.Warn("damage for unknown combatant ignored",
			zap.String("battle_id", b.id),
			zap.Int64("target_id", targetID),
		)
		return
	}

	remaining := target.Effects.ProcessShieldAbsorption(amount)
	if remaining > 0 {
		target.Store.TakeDamage(remaining, sourceID)
		target.Tracking.RecordDamageTaken(remaining)
		if source, ok := b.combatants[sourceID]; ok {
			source.Tracking.RecordDamageDealt(remaining)
		}
	}

	if !reflect {
		return
	}
	reflected := target.Effects.ProcessThornsReflection(sourceID, remaining)
	if reflected <= 0 {
		return
	}
	attacker, ok := b.combatants[sourceID]
	if !ok {
		b.logger.Debug("thorns reflection with absent attacker dropped",
			zap.String("battle_id", b.id),
			zap.Int64("attacker_id", sourceID),
		)
		return
	}
	// Reflected damage is applied one hop only; it does not re-enter the
	// pipeline, so two thorns bearers cannot ping-pong forever.
	attacker.Store.TakeDamage(reflected, targetID)
	attacker.Tracking.RecordDamageTaken(reflected)
}

func (b *Battle) healLocked(entityID int64, amount int) {
	c, ok := b.combatants[entityID]
	if !ok {
		b.logger.Warn("heal for unknown combatant ignored",
			zap.String("battle_id", b.id),
			zap.Int64("entity_id", entityID),
		)
		return
	}
	c.Store.Heal(amount)
	c.Tracking.RecordHealing(amount)
}
