package entity

import (
	"github.com/beastbond/arena-server-go/internal/events"
	"github.com/beastbond/arena-server-go/internal/replication"
	"go.uber.org/zap"
)

// Store is the authoritative write surface over one entity. Every committed
// change is published on the local event bus (with before/after values) and
// broadcast to observers through the replication layer. Mutators clamp into
// [0, max] and degrade to logged no-ops on bad input; nothing here panics,
// because store mutations run inside the shared simulation loop.
type Store struct {
	entity      *Entity
	bus         *events.Bus
	broadcaster replication.Broadcaster
	logger      *zap.Logger
}

// NewStore binds an entity to the authority handle. The handle is required
// by construction so that observer-side code, which has none, cannot build a
// mutation path at all.
func NewStore(auth *Authority, e *Entity, bus *events.Bus, broadcaster replication.Broadcaster, logger *zap.Logger) *Store {
	if auth == nil {
		panic("entity: store requires the authority handle")
	}
	if broadcaster == nil {
		broadcaster = replication.NopBroadcaster{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		entity:      e,
		bus:         bus,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Entity returns the underlying entity for read access.
func (s *Store) Entity() *Entity {
	return s.entity
}

// ID returns the entity's stable network ID.
func (s *Store) ID() int64 {
	return s.entity.ID
}

// ApplyDefaults applies the spawner's stat template. For player and pet
// kinds the values are held back from observers until stats are finalized;
// satellite kinds replicate immediately.
func (s *Store) ApplyDefaults(tpl StatTemplate) {
	e := s.entity
	if e.Phase != PhaseUninitialized {
		s.logger.Warn("defaults applied twice, ignoring",
			zap.Int64("entity_id", e.ID),
			zap.String("phase", e.Phase.String()),
		)
		return
	}

	e.Name = tpl.Name
	e.MaxHealth = tpl.MaxHealth
	e.CurrentHealth = tpl.MaxHealth
	e.MaxEnergy = tpl.MaxEnergy
	e.CurrentEnergy = tpl.MaxEnergy
	if e.Kind == KindPlayer {
		e.Currency = tpl.Currency
	}
	e.Phase = PhaseDefaultsApplied

	if !e.Kind.IsMain() {
		s.broadcastResync()
		e.Phase = PhaseStatsFinalized
	}
}

// ApplySelection records the character/pet selection payload. Stats supplied
// by the selection override the template defaults.
func (s *Store) ApplySelection(sel SelectionData) {
	e := s.entity
	if e.Phase != PhaseDefaultsApplied {
		s.logger.Warn("selection applied out of phase, ignoring",
			zap.Int64("entity_id", e.ID),
			zap.String("phase", e.Phase.String()),
		)
		return
	}

	e.SelectionIndex = sel.Index
	e.AssetPath = sel.AssetPath
	if sel.Name != "" {
		e.Name = sel.Name
	}
	if sel.MaxHealth > 0 {
		e.MaxHealth = sel.MaxHealth
		e.CurrentHealth = sel.MaxHealth
	}
	if sel.MaxEnergy > 0 {
		e.MaxEnergy = sel.MaxEnergy
		e.CurrentEnergy = sel.MaxEnergy
	}
	if e.Kind == KindPlayer && sel.Currency > 0 {
		e.Currency = sel.Currency
	}
	e.Phase = PhaseSelectionApplied

	s.broadcast(replication.FieldSelection, replication.SelectionPayload{
		OwnerID:   e.ID,
		Index:     sel.Index,
		AssetPath: sel.AssetPath,
	})
}

// FinalizeStats completes two-phase initialization. Every field is
// re-broadcast through the explicit resync message even when unchanged, so a
// late-joining or early-synced observer converges without any dirty-forcing
// tricks.
func (s *Store) FinalizeStats() {
	e := s.entity
	if e.Phase != PhaseSelectionApplied {
		s.logger.Warn("stats finalized out of phase, ignoring",
			zap.Int64("entity_id", e.ID),
			zap.String("phase", e.Phase.String()),
		)
		return
	}
	e.Phase = PhaseStatsFinalized

	s.broadcastResync()
	s.publish(events.NewEvent(events.EventStatsFinalized, e.ID, 0))
}

// ForceResync re-broadcasts the full entity state regardless of phase. Used
// when a new observer finishes connecting after state was already computed.
func (s *Store) ForceResync() {
	s.broadcastResync()
}

// TakeDamage deducts health, clamping at zero. Reaching zero health marks
// the entity dead and publishes a death event for the combat manager.
func (s *Store) TakeDamage(amount int, sourceID int64) {
	e := s.entity
	if amount <= 0 {
		s.logger.Debug("ignoring non-positive damage",
			zap.Int64("entity_id", e.ID),
			zap.Int("amount", amount),
		)
		return
	}

	before := e.CurrentHealth
	e.CurrentHealth = clamp(e.CurrentHealth-amount, 0, e.MaxHealth)

	evt := events.NewValueEvent(events.EventDamageTaken, e.ID, amount, before, e.CurrentHealth)
	evt.SourceID = sourceID
	s.publish(evt)
	s.broadcastHealth()

	if e.CurrentHealth == 0 && !e.Dead {
		e.Dead = true
		died := events.NewEvent(events.EventEntityDied, e.ID, sourceID)
		s.publish(died)
	}
}

// Heal restores health, clamping at max.
func (s *Store) Heal(amount int) {
	e := s.entity
	if amount <= 0 {
		s.logger.Debug("ignoring non-positive heal",
			zap.Int64("entity_id", e.ID),
			zap.Int("amount", amount),
		)
		return
	}

	before := e.CurrentHealth
	e.CurrentHealth = clamp(e.CurrentHealth+amount, 0, e.MaxHealth)
	if e.CurrentHealth > 0 {
		e.Dead = false
	}

	s.publish(events.NewValueEvent(events.EventHealingReceived, e.ID, amount, before, e.CurrentHealth))
	s.broadcastHealth()
}

// ChangeEnergy applies a positive or negative energy delta, clamped into
// [0, max]. A zero delta is ignored.
func (s *Store) ChangeEnergy(delta int) {
	e := s.entity
	if delta == 0 {
		s.logger.Debug("ignoring zero energy delta", zap.Int64("entity_id", e.ID))
		return
	}

	before := e.CurrentEnergy
	e.CurrentEnergy = clamp(e.CurrentEnergy+delta, 0, e.MaxEnergy)

	s.publish(events.NewValueEvent(events.EventEnergyChanged, e.ID, delta, before, e.CurrentEnergy))
	s.broadcastEnergy()
}

// ReplenishEnergy restores energy to max, typically at turn start.
func (s *Store) ReplenishEnergy() {
	e := s.entity
	if e.CurrentEnergy == e.MaxEnergy {
		return
	}
	before := e.CurrentEnergy
	e.CurrentEnergy = e.MaxEnergy

	s.publish(events.NewValueEvent(events.EventEnergyChanged, e.ID, e.MaxEnergy-before, before, e.CurrentEnergy))
	s.broadcastEnergy()
}

// IncreaseMaxHealth raises the health cap and heals by the same amount.
func (s *Store) IncreaseMaxHealth(amount int) {
	e := s.entity
	if amount <= 0 {
		s.logger.Debug("ignoring non-positive max health increase",
			zap.Int64("entity_id", e.ID),
			zap.Int("amount", amount),
		)
		return
	}

	before := e.MaxHealth
	e.MaxHealth += amount
	e.CurrentHealth = clamp(e.CurrentHealth+amount, 0, e.MaxHealth)

	s.publish(events.NewValueEvent(events.EventMaxHealthRaised, e.ID, amount, before, e.MaxHealth))
	s.broadcastHealth()
}

// IncreaseMaxEnergy raises the energy cap and refills by the same amount.
func (s *Store) IncreaseMaxEnergy(amount int) {
	e := s.entity
	if amount <= 0 {
		s.logger.Debug("ignoring non-positive max energy increase",
			zap.Int64("entity_id", e.ID),
			zap.Int("amount", amount),
		)
		return
	}

	before := e.MaxEnergy
	e.MaxEnergy += amount
	e.CurrentEnergy = clamp(e.CurrentEnergy+amount, 0, e.MaxEnergy)

	s.publish(events.NewValueEvent(events.EventMaxEnergyRaised, e.ID, amount, before, e.MaxEnergy))
	s.broadcastEnergy()
}

// AddCurrency credits the player's currency balance. Pets carry no currency.
func (s *Store) AddCurrency(amount int) {
	e := s.entity
	if e.Kind != KindPlayer {
		s.logger.Debug("currency mutation on non-player entity ignored",
			zap.Int64("entity_id", e.ID),
			zap.String("kind", e.Kind.String()),
		)
		return
	}
	if amount <= 0 {
		s.logger.Debug("ignoring non-positive currency credit",
			zap.Int64("entity_id", e.ID),
			zap.Int("amount", amount),
		)
		return
	}
	s.setCurrency(e.Currency + amount)
}

// DeductCurrency debits the player's currency balance, clamping at zero.
func (s *Store) DeductCurrency(amount int) {
	e := s.entity
	if e.Kind != KindPlayer {
		s.logger.Debug("currency mutation on non-player entity ignored",
			zap.Int64("entity_id", e.ID),
			zap.String("kind", e.Kind.String()),
		)
		return
	}
	if amount <= 0 {
		s.logger.Debug("ignoring non-positive currency debit",
			zap.Int64("entity_id", e.ID),
			zap.Int("amount", amount),
		)
		return
	}
	next := e.Currency - amount
	if next < 0 {
		next = 0
	}
	s.setCurrency(next)
}

// SetCurrency overwrites the player's currency balance.
func (s *Store) SetCurrency(amount int) {
	if s.entity.Kind != KindPlayer {
		s.logger.Debug("currency mutation on non-player entity ignored",
			zap.Int64("entity_id", s.entity.ID),
			zap.String("kind", s.entity.Kind.String()),
		)
		return
	}
	if amount < 0 {
		amount = 0
	}
	s.setCurrency(amount)
}

// SetName updates the display name.
func (s *Store) SetName(name string) {
	e := s.entity
	if name == "" || name == e.Name {
		return
	}
	e.Name = name
	evt := events.NewEvent(events.EventNameChanged, e.ID, 0)
	evt.Data = name
	s.publish(evt)
	s.broadcast(replication.FieldName, replication.NamePayload{OwnerID: e.ID, Name: name})
}

// SetStatusTag updates the freeform status tag.
func (s *Store) SetStatusTag(tag string) {
	e := s.entity
	if tag == e.StatusTag {
		return
	}
	e.StatusTag = tag
	evt := events.NewEvent(events.EventStatusTagSet, e.ID, 0)
	evt.Data = tag
	s.publish(evt)
	s.broadcast(replication.FieldStatusTag, replication.StatusTagPayload{OwnerID: e.ID, Tag: tag})
}

func (s *Store) setCurrency(amount int) {
	e := s.entity
	before := e.Currency
	e.Currency = amount
	s.publish(events.NewValueEvent(events.EventCurrencyChanged, e.ID, amount-before, before, amount))
	s.broadcast(replication.FieldCurrency, replication.CurrencyPayload{OwnerID: e.ID, Amount: amount})
}

func (s *Store) broadcastHealth() {
	e := s.entity
	s.broadcast(replication.FieldHealth, replication.StatPayload{
		OwnerID: e.ID,
		Current: e.CurrentHealth,
		Max:     e.MaxHealth,
	})
}

func (s *Store) broadcastEnergy() {
	e := s.entity
	s.broadcast(replication.FieldEnergy, replication.StatPayload{
		OwnerID: e.ID,
		Current: e.CurrentEnergy,
		Max:     e.MaxEnergy,
	})
}

func (s *Store) broadcastResync() {
	e := s.entity
	s.broadcast(replication.FieldResync, replication.ResyncPayload{
		OwnerID:       e.ID,
		Name:          e.Name,
		Kind:          e.Kind.String(),
		CurrentHealth: e.CurrentHealth,
		MaxHealth:     e.MaxHealth,
		CurrentEnergy: e.CurrentEnergy,
		MaxEnergy:     e.MaxEnergy,
		Currency:      e.Currency,
		StatusTag:     e.StatusTag,
	})
}

func (s *Store) broadcast(field replication.Field, payload any) {
	msg, err := replication.NewMessage(s.entity.ID, s.entity.ID, field, payload)
	if err != nil {
		s.logger.Error("dropping unencodable replication message",
			zap.Int64("entity_id", s.entity.ID),
			zap.String("field", string(field)),
			zap.Error(err),
		)
		return
	}
	s.broadcaster.Broadcast(msg)
}

func (s *Store) publish(evt events.Event) {
	if s.bus != nil {
		s.bus.Publish(evt)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
