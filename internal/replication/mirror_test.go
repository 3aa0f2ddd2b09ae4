package replication

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func mustMessage(t *testing.T, sourceID, targetID int64, field Field, payload any) Message {
	t.Helper()
	msg, err := NewMessage(sourceID, targetID, field, payload)
	require.NoError(t, err)
	return msg
}

func TestApplyTargetsOnlyTheMatchingReplica(t *testing.T) {
	mirror := NewMirror(zaptest.NewLogger(t))
	mirror.Track(1, 1)
	mirror.Track(2, 2)

	mirror.Apply(mustMessage(t, 1, 1, FieldHealth, StatPayload{OwnerID: 1, Current: 40, Max: 100}))

	one, _ := mirror.Replica(1)
	two, _ := mirror.Replica(2)
	assert.Equal(t, 40, one.CurrentHealth)
	assert.Equal(t, 0, two.CurrentHealth, "broadcast traffic for other entities never mutates this replica")
}

func TestApplyForUntrackedTargetIsSilentlyDiscarded(t *testing.T) {
	mirror := NewMirror(zaptest.NewLogger(t))
	mirror.Track(1, 1)

	mirror.Apply(mustMessage(t, 99, 99, FieldHealth, StatPayload{OwnerID: 99, Current: 40, Max: 100}))

	assert.Equal(t, 0, mirror.AppliedCount())
}

func TestOwnerMismatchIsANoOp(t *testing.T) {
	mirror := NewMirror(zaptest.NewLogger(t))
	mirror.Track(5, 1) // satellite owned by entity 1

	mirror.Apply(mustMessage(t, 2, 5, FieldHealth, StatPayload{OwnerID: 2, Current: 40, Max: 100}))

	r, _ := mirror.Replica(5)
	assert.Equal(t, 0, r.CurrentHealth, "a payload claiming a different owner must not apply")
	assert.Equal(t, 0, mirror.AppliedCount())
}

func TestSatelliteAcceptsOwnerAndSelfPayloads(t *testing.T) {
	mirror := NewMirror(zaptest.NewLogger(t))
	mirror.Track(5, 1)

	mirror.Apply(mustMessage(t, 1, 5, FieldHealth, StatPayload{OwnerID: 1, Current: 40, Max: 100}))
	mirror.Apply(mustMessage(t, 5, 5, FieldEnergy, StatPayload{OwnerID: 5, Current: 2, Max: 3}))

	r, _ := mirror.Replica(5)
	assert.Equal(t, 40, r.CurrentHealth)
	assert.Equal(t, 2, r.CurrentEnergy)
	assert.Equal(t, 2, mirror.AppliedCount())
}

func TestAbsoluteValuePayloadsAreIdempotent(t *testing.T) {
	mirror := NewMirror(zaptest.NewLogger(t))
	mirror.Track(1, 1)

	msg := mustMessage(t, 1, 1, FieldHealth, StatPayload{OwnerID: 1, Current: 55, Max: 100})
	mirror.Apply(msg)
	mirror.Apply(msg)

	r, _ := mirror.Replica(1)
	assert.Equal(t, 55, r.CurrentHealth, "double delivery converges to the same state")
	assert.Equal(t, 100, r.MaxHealth)
}

func TestZoneMoveIsIdempotentAndCreatesMissingCards(t *testing.T) {
	mirror := NewMirror(zaptest.NewLogger(t))
	mirror.Track(1, 1)

	instance := uuid.New()
	move := mustMessage(t, 1, 1, FieldZoneMove, ZoneMovePayload{
		OwnerID: 1, Instance: instance, CardID: 7, Zone: "HAND",
	})

	mirror.Apply(move)
	r, _ := mirror.Replica(1)
	card, ok := r.Cards[instance]
	require.True(t, ok, "unknown card instance gets a local stand-in")
	assert.Equal(t, "HAND", card.Zone)
	assert.Equal(t, 7, card.CardID)
	applied := mirror.AppliedCount()

	mirror.Apply(move)
	assert.Equal(t, applied, mirror.AppliedCount(), "redundant zone tag is ignored")
	assert.Equal(t, "HAND", r.Cards[instance].Zone)
}

func TestEffectSetDropAndWipe(t *testing.T) {
	mirror := NewMirror(zaptest.NewLogger(t))
	mirror.Track(1, 1)

	mirror.Apply(mustMessage(t, 1, 1, FieldEffectSet, EffectPayload{OwnerID: 1, Name: "Burn", Potency: 3, Duration: 2}))
	mirror.Apply(mustMessage(t, 1, 1, FieldEffectSet, EffectPayload{OwnerID: 1, Name: "Shield", Potency: 5, Duration: 3}))

	r, _ := mirror.Replica(1)
	assert.Len(t, r.Effects, 2)

	mirror.Apply(mustMessage(t, 1, 1, FieldEffectDrop, EffectDropPayload{OwnerID: 1, Name: "Burn"}))
	assert.Len(t, r.Effects, 1)

	mirror.Apply(mustMessage(t, 1, 1, FieldEffectWipe, EffectDropPayload{OwnerID: 1}))
	assert.Empty(t, r.Effects)
}

func TestResyncOverwritesEverything(t *testing.T) {
	mirror := NewMirror(zaptest.NewLogger(t))
	mirror.Track(1, 1)

	mirror.Apply(mustMessage(t, 1, 1, FieldEffectSet, EffectPayload{OwnerID: 1, Name: "Stale", Potency: 1, Duration: 1}))
	staleCard := uuid.New()
	mirror.Apply(mustMessage(t, 1, 1, FieldZoneMove, ZoneMovePayload{OwnerID: 1, Instance: staleCard, CardID: 3, Zone: "HAND"}))

	instance := uuid.New()
	mirror.Apply(mustMessage(t, 1, 1, FieldResync, ResyncPayload{
		OwnerID:       1,
		Name:          "Aste",
		Kind:          "PLAYER",
		CurrentHealth: 80,
		MaxHealth:     100,
		CurrentEnergy: 3,
		MaxEnergy:     5,
		Currency:      25,
		Stance:        "FOCUSED",
		Combo:         2,
		Effects:       []EffectPayload{{OwnerID: 1, Name: "Thorns", Potency: 4, Duration: 2}},
		Cards: []ZoneMovePayload{
			{OwnerID: 1, Instance: instance, CardID: 9, Zone: "DECK"},
		},
	}))

	r, _ := mirror.Replica(1)
	assert.Equal(t, "Aste", r.Name)
	assert.Equal(t, 80, r.CurrentHealth)
	assert.Equal(t, 25, r.Currency)
	assert.Equal(t, "FOCUSED", r.Stance)
	assert.Equal(t, 2, r.Combo)
	assert.Len(t, r.Effects, 1, "resync replaces the effect set wholesale")
	assert.Contains(t, r.Effects, "Thorns")
	assert.Len(t, r.Cards, 1, "resync replaces the card set wholesale")
	require.Contains(t, r.Cards, instance)
	assert.Equal(t, "DECK", r.Cards[instance].Zone)
}

func TestZoneCountsAndDespawn(t *testing.T) {
	mirror := NewMirror(zaptest.NewLogger(t))
	mirror.Track(1, 1)

	mirror.Apply(mustMessage(t, 1, 1, FieldZoneCounts, ZoneCountsPayload{OwnerID: 1, Deck: 10, Discard: 2, Hand: 5}))
	r, _ := mirror.Replica(1)
	assert.Equal(t, 10, r.DeckCount)
	assert.Equal(t, 5, r.HandCount)

	mirror.Apply(mustMessage(t, 1, 1, FieldDespawn, nil))
	assert.Equal(t, 0, r.DeckCount)
	assert.Equal(t, 0, r.DiscardCount)
	assert.Equal(t, 0, r.HandCount)
	assert.Empty(t, r.Cards)
}

func TestApplyRawDropsUndecodableFrames(t *testing.T) {
	mirror := NewMirror(zaptest.NewLogger(t))
	mirror.Track(1, 1)

	mirror.ApplyRaw([]byte("not a frame"))
	mirror.ApplyRaw([]byte(`{"targetEntityId":1}`)) // missing field tag

	assert.Equal(t, 0, mirror.AppliedCount())
}

func TestWireRoundtrip(t *testing.T) {
	in := mustMessage(t, 1, 1, FieldCurrency, CurrencyPayload{OwnerID: 1, Amount: 30})

	data, err := in.Encode()
	require.NoError(t, err)

	out, err := DecodeMessage(data)
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Field, out.Field)

	mirror := NewMirror(zaptest.NewLogger(t))
	mirror.Track(1, 1)
	mirror.ApplyRaw(data)

	r, _ := mirror.Replica(1)
	assert.Equal(t, 30, r.Currency)
}
