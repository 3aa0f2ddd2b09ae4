package replication

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Field identifies which replicated field or zone a message mutates.
type Field string

const (
	FieldName       Field = "NAME"
	FieldHealth     Field = "HEALTH"
	FieldEnergy     Field = "ENERGY"
	FieldCurrency   Field = "CURRENCY"
	FieldStatusTag  Field = "STATUS_TAG"
	FieldSelection  Field = "SELECTION"
	FieldResync     Field = "RESYNC"
	FieldEffectSet  Field = "EFFECT_SET"
	FieldEffectDrop Field = "EFFECT_DROP"
	FieldEffectWipe Field = "EFFECT_WIPE"
	FieldZoneMove   Field = "ZONE_MOVE"
	FieldZoneCounts Field = "ZONE_COUNTS"
	FieldDespawn    Field = "DESPAWN"
	FieldStance     Field = "STANCE"
	FieldCombo      Field = "COMBO"
	FieldAllyEdge   Field = "ALLY_EDGE"
	FieldHandEdge   Field = "HAND_EDGE"
	FieldStatsEdge  Field = "STATS_EDGE"
)

// Message is the unit of replication between the authority and its observers.
// Every message self-describes its intended recipient: TargetEntityID must
// match the receiving component instance's own entity ID or the message is
// discarded by that instance. Payloads carry absolute values so duplicate
// delivery is idempotent.
type Message struct {
	ID             uuid.UUID       `json:"id"`
	SourceEntityID int64           `json:"sourceEntityId"`
	TargetEntityID int64           `json:"targetEntityId"`
	Field          Field           `json:"field"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	SentAt         time.Time       `json:"sentAt"`
}

// NewMessage builds a message for the given target, marshaling the payload.
// A payload that fails to marshal yields an error instead of a half-built
// message; callers log and drop it rather than sending garbage.
func NewMessage(sourceID, targetID int64, field Field, payload any) (Message, error) {
	msg := Message{
		ID:             uuid.New(),
		SourceEntityID: sourceID,
		TargetEntityID: targetID,
		Field:          field,
		SentAt:         time.Now(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("marshal %s payload: %w", field, err)
		}
		msg.Payload = raw
	}
	return msg, nil
}

// Encode serializes the message for the wire.
func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode message %s: %w", m.ID, err)
	}
	return data, nil
}

// DecodeMessage parses a wire-format message.
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if msg.Field == "" {
		return Message{}, fmt.Errorf("decode message: missing field tag")
	}
	return msg, nil
}

// NamePayload replicates the display name.
type NamePayload struct {
	OwnerID int64  `json:"ownerId"`
	Name    string `json:"name"`
}

// StatPayload replicates a clamped current/max stat pair (health or energy).
type StatPayload struct {
	OwnerID int64 `json:"ownerId"`
	Current int   `json:"current"`
	Max     int   `json:"max"`
}

// CurrencyPayload replicates the player currency balance.
type CurrencyPayload struct {
	OwnerID int64 `json:"ownerId"`
	Amount  int   `json:"amount"`
}

// StatusTagPayload replicates the freeform status tag string.
type StatusTagPayload struct {
	OwnerID int64  `json:"ownerId"`
	Tag     string `json:"tag"`
}

// SelectionPayload replicates the character/pet selection applied post-spawn.
type SelectionPayload struct {
	OwnerID   int64  `json:"ownerId"`
	Index     int    `json:"index"`
	AssetPath string `json:"assetPath"`
}

// EffectPayload replicates a status effect entry (absolute state, not delta).
type EffectPayload struct {
	OwnerID  int64  `json:"ownerId"`
	Name     string `json:"name"`
	Potency  int    `json:"potency"`
	Duration int    `json:"duration"`
	SourceID int64  `json:"sourceId"`
}

// EffectDropPayload removes a status effect entry by name.
type EffectDropPayload struct {
	OwnerID int64  `json:"ownerId"`
	Name    string `json:"name"`
}

// ZoneMovePayload replicates a card zone transition. The zone tag is the
// absolute destination; a mirror that already has the card there ignores it.
type ZoneMovePayload struct {
	OwnerID  int64     `json:"ownerId"`
	Instance uuid.UUID `json:"instance"`
	CardID   int       `json:"cardId"`
	Zone     string    `json:"zone"`
}

// ZoneCountsPayload replicates deck/discard counts for UI satellites that
// never see card identities.
type ZoneCountsPayload struct {
	OwnerID int64 `json:"ownerId"`
	Deck    int   `json:"deck"`
	Discard int   `json:"discard"`
	Hand    int   `json:"hand"`
}

// StancePayload replicates the combat stance.
type StancePayload struct {
	OwnerID int64  `json:"ownerId"`
	Stance  string `json:"stance"`
}

// ComboPayload replicates the combo counter.
type ComboPayload struct {
	OwnerID int64 `json:"ownerId"`
	Combo   int   `json:"combo"`
}

// EdgePayload replicates a relationship edge (ally, hand, stats UI).
type EdgePayload struct {
	OwnerID  int64 `json:"ownerId"`
	LinkedID int64 `json:"linkedId"`
}

// ResyncPayload carries the full authoritative entity state: stats, active
// effects, card zones, stance, and combo. It is emitted by the explicit
// resync primitive (stats finalization, late join) and applied
// unconditionally by a matching mirror instance, replacing the effect and
// card sets wholesale.
type ResyncPayload struct {
	OwnerID       int64             `json:"ownerId"`
	Name          string            `json:"name"`
	Kind          string            `json:"kind"`
	CurrentHealth int               `json:"currentHealth"`
	MaxHealth     int               `json:"maxHealth"`
	CurrentEnergy int               `json:"currentEnergy"`
	MaxEnergy     int               `json:"maxEnergy"`
	Currency      int               `json:"currency"`
	StatusTag     string            `json:"statusTag"`
	Stance        string            `json:"stance,omitempty"`
	Combo         int               `json:"combo"`
	Effects       []EffectPayload   `json:"effects,omitempty"`
	Cards         []ZoneMovePayload `json:"cards,omitempty"`
}

// Broadcaster delivers messages from the authority to every connected
// observer. Delivery is broadcast-to-all; targeting is enforced on receipt.
type Broadcaster interface {
	Broadcast(msg Message)
}

// NopBroadcaster discards every message. Useful for tests and for running
// the simulation headless.
type NopBroadcaster struct{}

// Broadcast implements Broadcaster.
func (NopBroadcaster) Broadcast(Message) {}
