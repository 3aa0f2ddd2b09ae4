package events

import (
	"sync"
	"time"
)

// EventType indicates the category of a gameplay event.
type EventType string

const (
	// Entity state events
	EventDamageTaken     EventType = "DAMAGE_TAKEN"
	EventHealingReceived EventType = "HEALING_RECEIVED"
	EventEntityDied      EventType = "ENTITY_DIED"
	EventEnergyChanged   EventType = "ENERGY_CHANGED"
	EventMaxHealthRaised EventType = "MAX_HEALTH_RAISED"
	EventMaxEnergyRaised EventType = "MAX_ENERGY_RAISED"
	EventCurrencyChanged EventType = "CURRENCY_CHANGED"
	EventNameChanged     EventType = "NAME_CHANGED"
	EventStatusTagSet    EventType = "STATUS_TAG_SET"
	EventStatsFinalized  EventType = "STATS_FINALIZED"

	// Card zone events
	EventCardDrawn      EventType = "CARD_DRAWN"
	EventCardDiscarded  EventType = "CARD_DISCARDED"
	EventDeckRecycled   EventType = "DECK_RECYCLED"
	EventDeckShuffled   EventType = "DECK_SHUFFLED"
	EventZoneCountsSync EventType = "ZONE_COUNTS_SYNC"
	EventCardsDespawned EventType = "CARDS_DESPAWNED"

	// Effect ledger events
	EventEffectAdded   EventType = "EFFECT_ADDED"
	EventEffectRemoved EventType = "EFFECT_REMOVED"
	EventEffectsClear  EventType = "EFFECTS_CLEARED"

	// Combat tracking events
	EventStanceChanged EventType = "STANCE_CHANGED"
	EventComboChanged  EventType = "COMBO_CHANGED"
	EventStreakChanged EventType = "STREAK_CHANGED"
	EventCardPlayed    EventType = "CARD_PLAYED"

	// Relationship events
	EventAllyChanged    EventType = "ALLY_CHANGED"
	EventHandChanged    EventType = "HAND_CHANGED"
	EventStatsUIChanged EventType = "STATS_UI_CHANGED"

	// Turn boundary events
	EventTurnStarted EventType = "TURN_STARTED"
	EventTurnEnded   EventType = "TURN_ENDED"
)

// Event represents a state change that other subsystems may react to.
// Before/After carry the committed value pair for numeric field changes so
// consumers never have to re-derive deltas.
type Event struct {
	Type      EventType
	EntityID  int64
	SourceID  int64
	Amount    int
	Before    int
	After     int
	Data      string
	Timestamp time.Time
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

type typedListener struct {
	handle    int
	eventType EventType
	callback  func(Event)
}

// Bus provides a synchronous publish/subscribe implementation with type
// filtering. Consumers must not mutate source state from their callbacks.
type Bus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]typedListener
	nextHandle     int
}

// NewBus constructs a fresh event bus instance.
func NewBus() *Bus {
	return &Bus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]typedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (b *Bus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	handle := b.nextHandle
	b.nextHandle++
	b.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (b *Bus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	handle := b.nextHandle
	b.nextHandle++
	b.typedListeners[eventType] = append(b.typedListeners[eventType], typedListener{
		handle:    handle,
		eventType: eventType,
		callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle,
// whether it was registered for all events or for a single type.
func (b *Bus) Unsubscribe(handle int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, handle)
	for eventType, listeners := range b.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].handle == handle {
				b.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously.
// Listeners are snapshotted before invocation, so a callback may subscribe
// or unsubscribe without deadlocking the bus; registration changes take
// effect from the next publish.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	all := make([]Listener, 0, len(b.listeners))
	for _, listener := range b.listeners {
		all = append(all, listener)
	}
	typed := append([]typedListener(nil), b.typedListeners[event.Type]...)
	b.mu.RUnlock()

	for _, listener := range all {
		listener(event)
	}
	for _, listener := range typed {
		listener.callback(event)
	}
}

// NewEvent creates a new event with common fields populated.
func NewEvent(eventType EventType, entityID, sourceID int64) Event {
	return Event{
		Type:      eventType,
		EntityID:  entityID,
		SourceID:  sourceID,
		Timestamp: time.Now(),
	}
}

// NewValueEvent creates an event carrying a before/after value pair.
func NewValueEvent(eventType EventType, entityID int64, amount, before, after int) Event {
	evt := NewEvent(eventType, entityID, 0)
	evt.Amount = amount
	evt.Before = before
	evt.After = after
	return evt
}
