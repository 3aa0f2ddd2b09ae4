package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusPublishReachesAllListeners(t *testing.T) {
	bus := NewBus()

	var got []EventType
	bus.Subscribe(func(e Event) {
		got = append(got, e.Type)
	})
	bus.Subscribe(func(e Event) {
		got = append(got, e.Type)
	})

	bus.Publish(NewEvent(EventDamageTaken, 1, 2))

	assert.Equal(t, []EventType{EventDamageTaken, EventDamageTaken}, got)
}

func TestBusSubscribeTypedFiltersOtherEvents(t *testing.T) {
	bus := NewBus()

	var damage []Event
	bus.SubscribeTyped(EventDamageTaken, func(e Event) {
		damage = append(damage, e)
	})

	bus.Publish(NewValueEvent(EventDamageTaken, 7, 5, 20, 15))
	bus.Publish(NewEvent(EventHealingReceived, 7, 0))
	bus.Publish(NewEvent(EventTurnEnded, 7, 0))

	if len(damage) != 1 {
		t.Fatalf("expected 1 damage event, got %d", len(damage))
	}
	assert.Equal(t, int64(7), damage[0].EntityID)
	assert.Equal(t, 5, damage[0].Amount)
	assert.Equal(t, 20, damage[0].Before)
	assert.Equal(t, 15, damage[0].After)
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()

	count := 0
	handle := bus.Subscribe(func(Event) { count++ })

	bus.Publish(NewEvent(EventTurnStarted, 1, 0))
	bus.Unsubscribe(handle)
	bus.Publish(NewEvent(EventTurnStarted, 1, 0))

	assert.Equal(t, 1, count)
}

func TestBusListenerMayUnsubscribeItselfDuringPublish(t *testing.T) {
	bus := NewBus()

	count := 0
	var handle int
	handle = bus.Subscribe(func(Event) {
		count++
		bus.Unsubscribe(handle)
	})

	bus.Publish(NewEvent(EventTurnStarted, 1, 0))
	bus.Publish(NewEvent(EventTurnStarted, 1, 0))

	assert.Equal(t, 1, count, "the listener removed itself on first delivery")
}

func TestBusListenerMaySubscribeDuringPublish(t *testing.T) {
	bus := NewBus()

	lateCalls := 0
	bus.SubscribeTyped(EventTurnStarted, func(Event) {
		bus.SubscribeTyped(EventTurnStarted, func(Event) { lateCalls++ })
	})

	bus.Publish(NewEvent(EventTurnStarted, 1, 0))
	assert.Equal(t, 0, lateCalls, "a listener added mid-publish starts on the next publish")

	bus.Publish(NewEvent(EventTurnStarted, 1, 0))
	assert.Equal(t, 1, lateCalls)
}
