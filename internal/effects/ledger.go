package effects

import (
	"sort"

	"github.com/beastbond/arena-server-go/internal/events"
	"github.com/beastbond/arena-server-go/internal/replication"
	"go.uber.org/zap"
)

// Sink receives the health consequences of effect processing. The battle
// layer implements it over the owning entity's store, keeping the ledger
// free of entity references.
type Sink interface {
	DealDamage(amount int, sourceID int64)
	Heal(amount int)
}

// ExpiryFunc runs when an entry expires or is removed, letting the combat
// tracking counters clear flags tied to the effect (stun, limit break).
type ExpiryFunc func(record Record, category Category)

// Ledger is the keyed collection of active status effects for one entity.
// Single writer: only the authority's battle loop mutates it.
type Ledger struct {
	ownerID     int64
	entries     map[string]Record
	sink        Sink
	onExpiry    ExpiryFunc
	bus         *events.Bus
	broadcaster replication.Broadcaster
	logger      *zap.Logger
}

// NewLedger creates an empty effect ledger for one entity.
func NewLedger(ownerID int64, sink Sink, bus *events.Bus, broadcaster replication.Broadcaster, logger *zap.Logger) *Ledger {
	if broadcaster == nil {
		broadcaster = replication.NopBroadcaster{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		ownerID:     ownerID,
		entries:     make(map[string]Record),
		sink:        sink,
		bus:         bus,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// SetExpiryFunc installs the expiry side-effect hook.
func (l *Ledger) SetExpiryFunc(fn ExpiryFunc) {
	l.onExpiry = fn
}

// AddEffect inserts or overwrites an entry. Instant categories resolve
// synchronously through the sink before any durational entry is persisted;
// an instant record with no remaining duration leaves no entry behind.
func (l *Ledger) AddEffect(name string, potency, duration int, sourceID int64) {
	record := Record{Name: name, Potency: potency, Duration: duration, SourceID: sourceID}
	category := record.Category()

	if category.IsInstant() {
		l.applyInstant(record, category)
		if duration <= 0 {
			return
		}
	}

	if err := record.Validate(); err != nil {
		l.logger.Error("rejecting malformed effect record",
			zap.Int64("owner_id", l.ownerID),
			zap.Error(err),
		)
		return
	}

	l.entries[name] = record
	l.publishEffect(events.EventEffectAdded, record)
	l.broadcastSet(record)
}

// Restore loads a serialized entry, skipping malformed records so one bad
// record never poisons the rest of the ledger.
func (l *Ledger) Restore(data []byte) bool {
	record, err := DecodeRecord(data)
	if err != nil {
		l.logger.Error("skipping malformed serialized effect",
			zap.Int64("owner_id", l.ownerID),
			zap.Error(err),
		)
		return false
	}
	l.entries[record.Name] = record
	l.broadcastSet(record)
	return true
}

// RemoveEffect deletes an entry by name, running its expiry side effects.
func (l *Ledger) RemoveEffect(name string) {
	record, ok := l.entries[name]
	if !ok {
		return
	}
	delete(l.entries, name)
	l.expire(record)
}

// ClearAll drops every entry without running per-entry expiry side effects;
// the fight is over and the tracking counters reset wholesale.
func (l *Ledger) ClearAll() {
	if len(l.entries) == 0 {
		return
	}
	l.entries = make(map[string]Record)
	if l.bus != nil {
		l.bus.Publish(events.NewEvent(events.EventEffectsClear, l.ownerID, 0))
	}
	msg, err := replication.NewMessage(l.ownerID, l.ownerID, replication.FieldEffectWipe, replication.EffectDropPayload{OwnerID: l.ownerID})
	if err == nil {
		l.broadcaster.Broadcast(msg)
	}
}

// ProcessEndOfTurnEffects applies each entry's per-turn behavior, decrements
// durations, and expires entries that reach zero. Iteration is sorted by
// name so authority and any re-simulation agree on ordering.
func (l *Ledger) ProcessEndOfTurnEffects() {
	names := make([]string, 0, len(l.entries))
	for name := range l.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		record, ok := l.entries[name]
		if !ok {
			continue
		}

		switch record.Category() {
		case CategoryDamageOverTime:
			if l.sink != nil && record.Potency > 0 {
				l.sink.DealDamage(record.Potency, record.SourceID)
			}
		case CategoryHealOverTime:
			if l.sink != nil && record.Potency > 0 {
				l.sink.Heal(record.Potency)
			}
		default:
			// Shield, Thorns, Stun and other passives tick down only.
		}

		record.Duration--
		if record.Duration <= 0 {
			delete(l.entries, name)
			l.expire(record)
			continue
		}
		l.entries[name] = record
		l.broadcastSet(record)
	}
}

// ProcessShieldAbsorption reduces an active shield by the incoming damage and
// returns the unabsorbed remainder. Must run before thorns reflection and
// before any health deduction on every damage path.
func (l *Ledger) ProcessShieldAbsorption(incoming int) int {
	if incoming <= 0 {
		return 0
	}

	name, record, ok := l.findCategory(CategoryShield)
	if !ok {
		return incoming
	}

	absorbed := record.Potency
	if absorbed > incoming {
		absorbed = incoming
	}
	record.Potency -= absorbed

	if record.Potency <= 0 {
		delete(l.entries, name)
		l.expire(record)
	} else {
		l.entries[name] = record
		l.broadcastSet(record)
	}

	return incoming - absorbed
}

// ProcessThornsReflection returns the damage to reflect back at the attacker:
// min(thorns potency, damage actually dealt). The caller applies it, so
// reflected damage never re-enters this entity's own pipeline.
func (l *Ledger) ProcessThornsReflection(attackerID int64, damageDealt int) int {
	if damageDealt <= 0 {
		return 0
	}
	_, record, ok := l.findCategory(CategoryThorns)
	if !ok {
		return 0
	}
	reflected := record.Potency
	if reflected > damageDealt {
		reflected = damageDealt
	}
	l.logger.Debug("thorns reflection",
		zap.Int64("owner_id", l.ownerID),
		zap.Int64("attacker_id", attackerID),
		zap.Int("reflected", reflected),
	)
	return reflected
}

// HasEffect reports whether an entry with the exact name exists.
func (l *Ledger) HasEffect(name string) bool {
	_, ok := l.entries[name]
	return ok
}

// HasCategory reports whether any entry of the given category exists.
func (l *Ledger) HasCategory(category Category) bool {
	_, _, ok := l.findCategory(category)
	return ok
}

// EffectPotency returns the potency of the named entry, zero when absent.
func (l *Ledger) EffectPotency(name string) int {
	return l.entries[name].Potency
}

// Effects returns the active entries sorted by name.
func (l *Ledger) Effects() []Record {
	out := make([]Record, 0, len(l.entries))
	for _, record := range l.entries {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of active entries.
func (l *Ledger) Count() int {
	return len(l.entries)
}

func (l *Ledger) findCategory(category Category) (string, Record, bool) {
	names := make([]string, 0, len(l.entries))
	for name := range l.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if CategoryOf(name) == category {
			return name, l.entries[name], true
		}
	}
	return "", Record{}, false
}

func (l *Ledger) applyInstant(record Record, category Category) {
	if l.sink == nil || record.Potency <= 0 {
		return
	}
	switch category {
	case CategoryInstantDamage:
		l.sink.DealDamage(record.Potency, record.SourceID)
	case CategoryInstantHeal:
		l.sink.Heal(record.Potency)
	}
}

func (l *Ledger) expire(record Record) {
	if l.onExpiry != nil {
		l.onExpiry(record, record.Category())
	}
	l.publishEffect(events.EventEffectRemoved, record)
	msg, err := replication.NewMessage(l.ownerID, l.ownerID, replication.FieldEffectDrop, replication.EffectDropPayload{
		OwnerID: l.ownerID,
		Name:    record.Name,
	})
	if err == nil {
		l.broadcaster.Broadcast(msg)
	}
}

func (l *Ledger) publishEffect(eventType events.EventType, record Record) {
	if l.bus == nil {
		return
	}
	evt := events.NewEvent(eventType, l.ownerID, record.SourceID)
	evt.Amount = record.Potency
	evt.Data = record.Name
	l.bus.Publish(evt)
}

func (l *Ledger) broadcastSet(record Record) {
	msg, err := replication.NewMessage(l.ownerID, l.ownerID, replication.FieldEffectSet, replication.EffectPayload{
		OwnerID:  l.ownerID,
		Name:     record.Name,
		Potency:  record.Potency,
		Duration: record.Duration,
		SourceID: record.SourceID,
	})
	if err != nil {
		l.logger.Error("dropping unencodable effect message",
			zap.Int64("owner_id", l.ownerID),
			zap.Error(err),
		)
		return
	}
	l.broadcaster.Broadcast(msg)
}
