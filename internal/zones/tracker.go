package zones

import (
	"math/rand"

	"github.com/beastbond/arena-server-go/internal/events"
	"github.com/beastbond/arena-server-go/internal/replication"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options tunes a tracker's draw policy.
type Options struct {
	HandCapacity int
	// OpeningDraw is the number of cards dealt into an empty hand at combat
	// start. RefillTarget is the hand size subsequent turn-start draws top up
	// to. The two constants are deliberately separate; the split matches the
	// shipped draw behavior and is kept until product confirms otherwise.
	OpeningDraw  int
	RefillTarget int
}

// DefaultOptions mirror the shipped tuning values.
func DefaultOptions() Options {
	return Options{
		HandCapacity: 10,
		OpeningDraw:  5,
		RefillTarget: 5,
	}
}

// Tracker owns the authoritative card lists per zone for one entity. All
// transitions run through its methods so a card's zone tag and its list
// membership never disagree. Operations degrade to logged partial results
// instead of failing: they execute inside the replicated action context,
// where an error escaping would desynchronize authority and observers.
type Tracker struct {
	ownerID     int64
	opts        Options
	deck        []*Card
	hand        []*Card
	discard     []*Card
	setupDone   bool
	rng         *rand.Rand
	bus         *events.Bus
	broadcaster replication.Broadcaster
	logger      *zap.Logger
}

// NewTracker creates an empty tracker for one owning entity. The rng is
// injectable so shuffles are reproducible under test; a nil rng falls back
// to a time-seeded source.
func NewTracker(ownerID int64, opts Options, rng *rand.Rand, bus *events.Bus, broadcaster replication.Broadcaster, logger *zap.Logger) *Tracker {
	if opts.HandCapacity <= 0 {
		opts.HandCapacity = DefaultOptions().HandCapacity
	}
	if opts.OpeningDraw <= 0 {
		opts.OpeningDraw = DefaultOptions().OpeningDraw
	}
	if opts.RefillTarget <= 0 {
		opts.RefillTarget = DefaultOptions().RefillTarget
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	if broadcaster == nil {
		broadcaster = replication.NopBroadcaster{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		ownerID:     ownerID,
		opts:        opts,
		rng:         rng,
		bus:         bus,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// SetupDeck populates the combat deck from persistent collection card IDs and
// shuffles it. Setup is idempotent-guarded: a second call is ignored until
// ResetSetupFlag runs, so a duplicated setup RPC cannot double the deck.
func (t *Tracker) SetupDeck(cardIDs []int) bool {
	if t.setupDone {
		t.logger.Warn("combat deck already set up, ignoring",
			zap.Int64("owner_id", t.ownerID),
		)
		return false
	}

	t.deck = make([]*Card, 0, len(cardIDs))
	t.hand = nil
	t.discard = nil
	for _, id := range cardIDs {
		t.deck = append(t.deck, NewCard(id, t.ownerID))
	}
	t.shuffle(t.deck)
	t.setupDone = true

	for _, c := range t.deck {
		t.broadcastMove(c)
	}
	t.publishCounts()
	return true
}

// ResetSetupFlag allows a fresh SetupDeck between fights.
func (t *Tracker) ResetSetupFlag() {
	t.setupDone = false
}

// SetupComplete reports whether the combat deck has been populated.
func (t *Tracker) SetupComplete() bool {
	return t.setupDone
}

// Draw moves up to n cards from the front of the deck into the hand, in deck
// order. When the deck holds fewer than n cards and the discard is non-empty,
// the discard is recycled first; recycling is transparent to the caller.
// Cards past hand capacity are omitted, not errored. Returns the cards drawn.
func (t *Tracker) Draw(n int) []*Card {
	if n <= 0 {
		return nil
	}
	if !t.setupDone {
		t.logger.Error("draw requested before deck setup",
			zap.Int64("owner_id", t.ownerID),
		)
		return nil
	}

	if len(t.deck) < n && len(t.discard) > 0 {
		t.recycle()
	}

	drawn := make([]*Card, 0, n)
	for len(drawn) < n && len(t.deck) > 0 {
		if len(t.hand) >= t.opts.HandCapacity {
			t.logger.Debug("hand at capacity, omitting remaining draws",
				zap.Int64("owner_id", t.ownerID),
				zap.Int("requested", n),
				zap.Int("drawn", len(drawn)),
			)
			break
		}
		card := t.deck[0]
		t.deck = t.deck[1:]
		card.Zone = ZoneHand
		t.hand = append(t.hand, card)
		drawn = append(drawn, card)

		t.broadcastMove(card)
		t.publishCard(events.EventCardDrawn, card)
	}

	t.publishCounts()
	return drawn
}

// DrawOpening deals the opening hand. It only applies to an empty hand;
// refills mid-fight go through RefillHand.
func (t *Tracker) DrawOpening() []*Card {
	if len(t.hand) > 0 {
		return t.RefillHand()
	}
	return t.Draw(t.opts.OpeningDraw)
}

// RefillHand tops the hand up to the configured refill target.
func (t *Tracker) RefillHand() []*Card {
	need := t.opts.RefillTarget - len(t.hand)
	if need <= 0 {
		return nil
	}
	return t.Draw(need)
}

// DiscardFromHand moves one hand card into the discard pile. A card already
// in the discard is ignored; duplicate delivery of a discard message must not
// move anything twice.
func (t *Tracker) DiscardFromHand(instance uuid.UUID) bool {
	idx := indexOf(t.hand, instance)
	if idx < 0 {
		if found := indexOf(t.discard, instance); found >= 0 {
			t.logger.Debug("card already discarded, ignoring",
				zap.Int64("owner_id", t.ownerID),
				zap.String("instance", instance.String()),
			)
			return false
		}
		t.logger.Warn("discard of card not in hand ignored",
			zap.Int64("owner_id", t.ownerID),
			zap.String("instance", instance.String()),
		)
		return false
	}

	card := t.hand[idx]
	t.hand = append(t.hand[:idx], t.hand[idx+1:]...)
	card.Zone = ZoneDiscard
	t.discard = append(t.discard, card)

	t.broadcastMove(card)
	t.publishCard(events.EventCardDiscarded, card)
	t.publishCounts()
	return true
}

// ShuffleDeck permutes the full deck in place (Fisher-Yates). The multiset of
// card identifiers is unchanged.
func (t *Tracker) ShuffleDeck() {
	t.shuffle(t.deck)
	if t.bus != nil {
		t.bus.Publish(events.NewEvent(events.EventDeckShuffled, t.ownerID, 0))
	}
}

// DespawnAll destroys every card instance at combat end. All zones report
// empty afterwards.
func (t *Tracker) DespawnAll() {
	t.deck = nil
	t.hand = nil
	t.discard = nil

	msg, err := replication.NewMessage(t.ownerID, t.ownerID, replication.FieldDespawn, nil)
	if err == nil {
		t.broadcaster.Broadcast(msg)
	}
	if t.bus != nil {
		t.bus.Publish(events.NewEvent(events.EventCardsDespawned, t.ownerID, 0))
	}
	t.publishCounts()
}

// DeckCount returns the number of cards in the deck.
func (t *Tracker) DeckCount() int { return len(t.deck) }

// HandCount returns the number of cards in the hand.
func (t *Tracker) HandCount() int { return len(t.hand) }

// DiscardCount returns the number of cards in the discard pile.
func (t *Tracker) DiscardCount() int { return len(t.discard) }

// Hand returns the hand cards in order.
func (t *Tracker) Hand() []*Card {
	out := make([]*Card, len(t.hand))
	copy(out, t.hand)
	return out
}

// Deck returns the deck cards in draw order (index 0 drawn first).
func (t *Tracker) Deck() []*Card {
	out := make([]*Card, len(t.deck))
	copy(out, t.deck)
	return out
}

// Discard returns the discard pile contents.
func (t *Tracker) Discard() []*Card {
	out := make([]*Card, len(t.discard))
	copy(out, t.discard)
	return out
}

// FindCard locates a card instance across all zones.
func (t *Tracker) FindCard(instance uuid.UUID) (*Card, bool) {
	for _, pile := range [][]*Card{t.deck, t.hand, t.discard} {
		if idx := indexOf(pile, instance); idx >= 0 {
			return pile[idx], true
		}
	}
	return nil, false
}

// recycle moves the whole discard pile back into the deck. Cards already in
// the deck stay on top; the recycled cards are shuffled among themselves and
// appended below them.
func (t *Tracker) recycle() {
	if len(t.discard) == 0 {
		return
	}

	recycled := t.discard
	t.discard = nil
	t.shuffle(recycled)
	for _, card := range recycled {
		card.Zone = ZoneDeck
		t.deck = append(t.deck, card)
		t.broadcastMove(card)
	}

	t.logger.Debug("recycled discard into deck",
		zap.Int64("owner_id", t.ownerID),
		zap.Int("recycled", len(recycled)),
	)
	if t.bus != nil {
		evt := events.NewEvent(events.EventDeckRecycled, t.ownerID, 0)
		evt.Amount = len(recycled)
		t.bus.Publish(evt)
	}
}

func (t *Tracker) shuffle(cards []*Card) {
	for i := len(cards) - 1; i > 0; i-- {
		j := t.rng.Intn(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

func (t *Tracker) broadcastMove(card *Card) {
	msg, err := replication.NewMessage(t.ownerID, t.ownerID, replication.FieldZoneMove, replication.ZoneMovePayload{
		OwnerID:  card.OwnerID,
		Instance: card.Instance,
		CardID:   card.CardID,
		Zone:     card.Zone.String(),
	})
	if err != nil {
		t.logger.Error("dropping unencodable zone message",
			zap.Int64("owner_id", t.ownerID),
			zap.Error(err),
		)
		return
	}
	t.broadcaster.Broadcast(msg)
}

func (t *Tracker) publishCounts() {
	msg, err := replication.NewMessage(t.ownerID, t.ownerID, replication.FieldZoneCounts, replication.ZoneCountsPayload{
		OwnerID: t.ownerID,
		Deck:    len(t.deck),
		Discard: len(t.discard),
		Hand:    len(t.hand),
	})
	if err == nil {
		t.broadcaster.Broadcast(msg)
	}
	if t.bus != nil {
		evt := events.NewEvent(events.EventZoneCountsSync, t.ownerID, 0)
		evt.Amount = len(t.deck)
		evt.After = len(t.discard)
		t.bus.Publish(evt)
	}
}

func (t *Tracker) publishCard(eventType events.EventType, card *Card) {
	if t.bus == nil {
		return
	}
	evt := events.NewEvent(eventType, t.ownerID, 0)
	evt.Amount = card.CardID
	evt.Data = card.Instance.String()
	t.bus.Publish(evt)
}

func indexOf(cards []*Card, instance uuid.UUID) int {
	for i, c := range cards {
		if c.Instance == instance {
			return i
		}
	}
	return -1
}
