package battle

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/beastbond/arena-server-go/internal/effects"
	"github.com/beastbond/arena-server-go/internal/tracking"
)

// CardSnapshot captures one card instance and the zone holding it.
type CardSnapshot struct {
	Instance string
	CardID   int
	Zone     string
}

// CombatantSnapshot captures one combatant's full simulation state.
type CombatantSnapshot struct {
	ID             int64
	Kind           string
	Name           string
	CurrentHealth  int
	MaxHealth      int
	CurrentEnergy  int
	MaxEnergy      int
	Currency       int
	StatusTag      string
	Dead           bool
	Effects        []effects.Record
	Cards          []CardSnapshot
	Stance         tracking.Stance
	StanceDuration int
	Combo          int
	Perfection     int
	Strength       int
	Stunned        bool
	LimitBreak     bool
}

// Snapshot is a point-in-time copy of a battle, suitable for journaling,
// checksumming, and replay.
type Snapshot struct {
	BattleID   string
	TurnNumber int
	Started    bool
	Order      []int64
	Combatants map[int64]CombatantSnapshot
	Timestamp  time.Time
}

// Checksum carries a deterministic hash of a snapshot, used to detect
// divergence between replayed and live state.
type Checksum struct {
	Hash      string
	Timestamp string
	Version   int
}

// Snapshot copies the battle's current state. The copy shares nothing with
// the live battle and can outlive it.
func (b *Battle) Snapshot() *Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := &Snapshot{
		BattleID:   b.id,
		TurnNumber: b.turnNumber,
		Started:    b.started,
		Order:      append([]int64(nil), b.order...),
		Combatants: make(map[int64]CombatantSnapshot, len(b.combatants)),
		Timestamp:  time.Now(),
	}

	for id, c := range b.combatants {
		e := c.Store.Entity()
		cs := CombatantSnapshot{
			ID:             id,
			Kind:           e.Kind.String(),
			Name:           e.Name,
			CurrentHealth:  e.CurrentHealth,
			MaxHealth:      e.MaxHealth,
			CurrentEnergy:  e.CurrentEnergy,
			MaxEnergy:      e.MaxEnergy,
			Currency:       e.Currency,
			StatusTag:      e.StatusTag,
			Dead:           e.Dead,
			Effects:        c.Effects.Effects(),
			Stance:         c.Tracking.Stance(),
			StanceDuration: c.Tracking.StanceDuration(),
			Combo:          c.Tracking.Combo(),
			Perfection:     c.Tracking.PerfectionStreak(),
			Strength:       c.Tracking.StrengthStacks(),
			Stunned:        c.Tracking.Stunned(),
			LimitBreak:     c.Tracking.LimitBreak(),
		}
		for _, card := range c.Zones.Deck() {
			cs.Cards = append(cs.Cards, CardSnapshot{Instance: card.Instance.String(), CardID: card.CardID, Zone: card.Zone.String()})
		}
		for _, card := range c.Zones.Hand() {
			cs.Cards = append(cs.Cards, CardSnapshot{Instance: card.Instance.String(), CardID: card.CardID, Zone: card.Zone.String()})
		}
		for _, card := range c.Zones.Discard() {
			cs.Cards = append(cs.Cards, CardSnapshot{Instance: card.Instance.String(), CardID: card.CardID, Zone: card.Zone.String()})
		}
		snap.Combatants[id] = cs
	}
	return snap
}

// ComputeChecksum hashes a canonical representation of the snapshot.
// Timestamps are excluded so two snapshots of identical state always agree.
func (s *Snapshot) ComputeChecksum() (*Checksum, error) {
	hash := sha256.New()
	if _, err := hash.Write([]byte(s.buildDeterministicRepresentation())); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}
	return &Checksum{
		Hash:      hex.EncodeToString(hash.Sum(nil)),
		Timestamp: s.Timestamp.Format("2006-01-02T15:04:05.000Z"),
		Version:   1,
	}, nil
}

// VerifyChecksum reports whether the snapshot hashes to the expected value.
func (s *Snapshot) VerifyChecksum(expected *Checksum) (bool, error) {
	computed, err := s.ComputeChecksum()
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}
	return computed.Hash == expected.Hash, nil
}

// buildDeterministicRepresentation renders the snapshot as a canonical
// string, independent of map iteration order.
func (s *Snapshot) buildDeterministicRepresentation() string {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("BATTLE:%s|%d|%t\n", s.BattleID, s.TurnNumber, s.Started))

	orderParts := make([]string, len(s.Order))
	for i, id := range s.Order {
		orderParts[i] = fmt.Sprintf("%d", id)
	}
	buf.WriteString("ORDER:")
	buf.WriteString(strings.Join(orderParts, ","))
	buf.WriteString("\n")

	ids := make([]int64, 0, len(s.Combatants))
	for id := range s.Combatants {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		c := s.Combatants[id]
		buf.WriteString(fmt.Sprintf("COMBATANT:%d|%s|%s|%d/%d|%d/%d|%d|%s|%t\n",
			id,
			c.Kind,
			c.Name,
			c.CurrentHealth, c.MaxHealth,
			c.CurrentEnergy, c.MaxEnergy,
			c.Currency,
			c.StatusTag,
			c.Dead,
		))
		buf.WriteString(fmt.Sprintf("  TRACKING:%s|%d|%d|%d|%d|%t|%t\n",
			c.Stance,
			c.StanceDuration,
			c.Combo,
			c.Perfection,
			c.Strength,
			c.Stunned,
			c.LimitBreak,
		))

		records := append([]effects.Record(nil), c.Effects...)
		sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
		for _, r := range records {
			buf.WriteString(fmt.Sprintf("  EFFECT:%s|%d|%d|%d\n", r.Name, r.Potency, r.Duration, r.SourceID))
		}

		cards := append([]CardSnapshot(nil), c.Cards...)
		sort.Slice(cards, func(i, j int) bool { return cards[i].Instance < cards[j].Instance })
		for _, card := range cards {
			buf.WriteString(fmt.Sprintf("  CARD:%s|%d|%s\n", card.Instance, card.CardID, card.Zone))
		}
	}

	return buf.String()
}

// SerializeToBytes encodes the snapshot with gob, the encoding used for
// journal files.
func (s *Snapshot) SerializeToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeSnapshot decodes a gob-encoded snapshot.
func DeserializeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := gob.NewDecoder(bytes.NewBuffer(data)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}
