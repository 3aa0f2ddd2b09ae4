package replication

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReplicaCard is the observer-side view of one card instance.
type ReplicaCard struct {
	Instance uuid.UUID
	CardID   int
	Zone     string
}

// Replica is an observer-local mirror of one entity's replicated state. It is
// read-only for consumers; only Mirror.Apply writes to it.
type Replica struct {
	ID      int64
	OwnerID int64
	Kind    string

	Name          string
	CurrentHealth int
	MaxHealth     int
	CurrentEnergy int
	MaxEnergy     int
	Currency      int
	StatusTag     string

	SelectionIndex int
	AssetPath      string

	Effects map[string]EffectPayload
	Cards   map[uuid.UUID]*ReplicaCard

	DeckCount    int
	DiscardCount int
	HandCount    int

	Stance string
	Combo  int

	AllyID    int64
	HandID    int64
	StatsUIID int64
}

func newReplica(id, ownerID int64) *Replica {
	return &Replica{
		ID:      id,
		OwnerID: ownerID,
		Effects: make(map[string]EffectPayload),
		Cards:   make(map[uuid.UUID]*ReplicaCard),
	}
}

// Mirror holds the observer-side replicas for every entity this process
// knows about. Every broadcast message is offered to every replica; a replica
// applies it only when the message's target-entity ID matches its own ID and
// the payload's claimed owner matches its locally known owner. Both checks
// fail open to logged no-ops: mismatches are expected under broadcast-to-all
// delivery and must never raise.
type Mirror struct {
	mu       sync.RWMutex
	replicas map[int64]*Replica
	logger   *zap.Logger

	applied  int
	rejected int
}

// NewMirror creates an empty observer mirror.
func NewMirror(logger *zap.Logger) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{
		replicas: make(map[int64]*Replica),
		logger:   logger,
	}
}

// Track registers a local replica instance for an entity. OwnerID is the
// entity this instance considers its owner: the entity itself for main
// entities, the main entity for hand/stats-UI satellites.
func (m *Mirror) Track(id, ownerID int64) *Replica {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.replicas[id]; ok {
		return existing
	}
	r := newReplica(id, ownerID)
	m.replicas[id] = r
	return r
}

// Forget drops a replica at entity destruction.
func (m *Mirror) Forget(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.replicas, id)
}

// Replica returns the tracked replica for an entity, when present.
func (m *Mirror) Replica(id int64) (*Replica, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.replicas[id]
	return r, ok
}

// AppliedCount reports how many messages mutated a replica. Used by
// convergence checks and tests.
func (m *Mirror) AppliedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.applied
}

// Apply routes one broadcast message to the matching replica instance.
// Messages targeting an entity this process does not mirror are discarded
// silently; that is the normal case for every other observer's traffic.
func (m *Mirror) Apply(msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.replicas[msg.TargetEntityID]
	if !ok {
		return
	}
	if r.ID != msg.TargetEntityID {
		return
	}

	if m.applyToReplica(r, msg) {
		m.applied++
	} else {
		m.rejected++
	}
}

// ApplyRaw decodes a wire frame and applies it.
func (m *Mirror) ApplyRaw(data []byte) {
	msg, err := DecodeMessage(data)
	if err != nil {
		m.logger.Warn("discarding undecodable replication frame", zap.Error(err))
		return
	}
	m.Apply(msg)
}

func (m *Mirror) applyToReplica(r *Replica, msg Message) bool {
	switch msg.Field {
	case FieldName:
		var p NamePayload
		if !m.decode(msg, &p) || !m.ownerMatches(r, p.OwnerID, msg) {
			return false
		}
		r.Name = p.Name

	case FieldHealth:
		var p StatPayload
		if !m.decode(msg, &p) || !m.ownerMatches(r, p.OwnerID, msg) {
			return false
		}
		r.CurrentHealth = p.Current
		r.MaxHealth = p.Max

	case FieldEnergy:
		var p StatPayload
		if !m.decode(msg, &p) || !m.ownerMatches(r, p.OwnerID, msg) {
			return false
		}
		r.CurrentEnergy = p.Current
		r.MaxEnergy = p.Max

	case FieldCurrency:
		var p CurrencyPayload
		if !m.decode(msg, &p) || !m.ownerMatches(r, p.OwnerID, msg) {
			return false
		}
		r.Currency = p.Amount

	case FieldStatusTag:
		var p StatusTagPayload
		if !m.decode(msg, &p) || !m.ownerMatches(r, p.OwnerID, msg) {
			return false
		}
		r.StatusTag = p.Tag

	case FieldSelection:
		var p SelectionPayload
		if !m.decode(msg, &p) || !m.ownerMatches(r, p.OwnerID, msg) {
			return false
		}
		r.SelectionIndex = p.Index
		r.AssetPath = p.AssetPath

	case FieldEffectSet:
		var p EffectPayload
		if !m.decode(msg, &p) || !m.ownerMatches(r, p.OwnerID, msg) {
			return false
		}
		r.Effects[p.Name] = p

	case FieldEffectDrop:
		var p EffectDropPayload
		if !m.decode(msg, &p) || !m.ownerMatches(r, p.OwnerID, msg) {
			return false
		}
		delete(r.Effects, p.Name)

	case FieldEffectWipe:
		var p EffectDropPayload
		if !m.decode(msg, &p) || !m.ownerMatches(r, p.OwnerID, msg) {
			return false
		}
		r.Effects = make(map[string]EffectPayload)

	case FieldZoneMove:
		var p ZoneMovePayload
		if !m.decode(msg, &p) || !m.ownerMatches(r, p.OwnerID, msg) {
			return false
		}
		card, ok := r.Cards[p.Instance]
		if !ok {
			// The structural dependency (the card replica) is missing
			// locally; create the minimal stand-in rather than dropping
			// the whole update.
			card = &ReplicaCard{Instance: p.Instance, CardID: p.CardID}
			r.Cards[p.Instance] = card
		}
		if card.Zone == p.Zone {
			// Duplicate delivery: the card already carries this zone tag.
			m.logger.Debug("ignoring redundant zone move",
				zap.Int64("entity_id", r.ID),
				zap.String("instance", p.Instance.String()),
				zap.String("zone", p.Zone),
			)
			return false
		}
		card.Zone = p.Zone

	case FieldZoneCounts:
		var p ZoneCountsPayload
		if !m.decode(msg, &p) || !m.ownerMatches(r, p.OwnerID, msg) {
			return false
		}
		r.DeckCount = p.Deck
		r.DiscardCount = p.Discard
		r.HandCount = p.Hand

	case FieldDespawn:
		r.Cards = make(map[uuid.UUID]*ReplicaCard)
		r.DeckCount = 0
		r.DiscardCount = 0
		r.HandCount = 0

	case FieldStance:
		var p StancePayload
		if !m.decode(msg, &p) || !m.ownerMatches(r, p.OwnerID, msg) {
			return false
		}
		r.Stance = p.Stance

	case FieldCombo:
		var p ComboPayload
		if !m.decode(msg, &p) || !m.ownerMatches(r, p.OwnerID, msg) {
			return false
		}
		r.Combo = p.Combo

	case FieldAllyEdge:
		var p EdgePayload
		if !m.decode(msg, &p) || !m.ownerMatches(r, p.OwnerID, msg) {
			return false
		}
		r.AllyID = p.LinkedID

	case FieldHandEdge:
		var p EdgePayload
		if !m.decode(msg, &p) || !m.ownerMatches(r, p.OwnerID, msg) {
			return false
		}
		r.HandID = p.LinkedID

	case FieldStatsEdge:
		var p EdgePayload
		if !m.decode(msg, &p) || !m.ownerMatches(r, p.OwnerID, msg) {
			return false
		}
		r.StatsUIID = p.LinkedID

	case FieldResync:
		var p ResyncPayload
		if !m.decode(msg, &p) || !m.ownerMatches(r, p.OwnerID, msg) {
			return false
		}
		r.Name = p.Name
		r.Kind = p.Kind
		r.CurrentHealth = p.CurrentHealth
		r.MaxHealth = p.MaxHealth
		r.CurrentEnergy = p.CurrentEnergy
		r.MaxEnergy = p.MaxEnergy
		r.Currency = p.Currency
		r.StatusTag = p.StatusTag
		if p.Stance != "" {
			r.Stance = p.Stance
		}
		r.Combo = p.Combo
		r.Effects = make(map[string]EffectPayload, len(p.Effects))
		for _, eff := range p.Effects {
			r.Effects[eff.Name] = eff
		}
		r.Cards = make(map[uuid.UUID]*ReplicaCard, len(p.Cards))
		for _, c := range p.Cards {
			r.Cards[c.Instance] = &ReplicaCard{Instance: c.Instance, CardID: c.CardID, Zone: c.Zone}
		}

	default:
		m.logger.Warn("unknown replication field, ignoring",
			zap.Int64("entity_id", r.ID),
			zap.String("field", string(msg.Field)),
		)
		return false
	}

	return true
}

func (m *Mirror) decode(msg Message, out any) bool {
	if err := json.Unmarshal(msg.Payload, out); err != nil {
		m.logger.Warn("discarding malformed payload",
			zap.Int64("target_id", msg.TargetEntityID),
			zap.String("field", string(msg.Field)),
			zap.Error(err),
		)
		return false
	}
	return true
}

// ownerMatches is the second defense against misdirected updates: a payload
// claiming a different owner than this instance knows about is ignored, even
// when the target ID matched. Guards races where edge data arrives out of
// order relative to field updates.
func (m *Mirror) ownerMatches(r *Replica, claimed int64, msg Message) bool {
	if claimed == r.OwnerID || claimed == r.ID {
		return true
	}
	m.logger.Warn("payload owner mismatch, ignoring",
		zap.Int64("entity_id", r.ID),
		zap.Int64("known_owner", r.OwnerID),
		zap.Int64("claimed_owner", claimed),
		zap.String("field", string(msg.Field)),
	)
	return false
}
