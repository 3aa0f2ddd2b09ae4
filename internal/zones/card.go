package zones

import (
	"fmt"

	"github.com/google/uuid"
)

// Zone is a card's logical location for one entity. A card instance belongs
// to exactly one zone at any time.
type Zone int

const (
	ZoneDeck Zone = iota
	ZoneHand
	ZoneDiscard
)

var zoneNames = map[Zone]string{
	ZoneDeck:    "DECK",
	ZoneHand:    "HAND",
	ZoneDiscard: "DISCARD",
}

func (z Zone) String() string {
	if name, ok := zoneNames[z]; ok {
		return name
	}
	return fmt.Sprintf("ZONE_%d", int(z))
}

// ParseZone maps a wire-format zone tag back to a Zone.
func ParseZone(s string) (Zone, bool) {
	switch s {
	case "DECK":
		return ZoneDeck, true
	case "HAND":
		return ZoneHand, true
	case "DISCARD":
		return ZoneDiscard, true
	default:
		return ZoneDeck, false
	}
}

// Card is one combat card instance. CardID keys into the persistent
// collection; Instance distinguishes duplicate copies of the same card.
type Card struct {
	Instance uuid.UUID
	CardID   int
	OwnerID  int64
	Zone     Zone
}

// NewCard mints a card instance in the deck zone.
func NewCard(cardID int, ownerID int64) *Card {
	return &Card{
		Instance: uuid.New(),
		CardID:   cardID,
		OwnerID:  ownerID,
		Zone:     ZoneDeck,
	}
}
