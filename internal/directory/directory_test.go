package directory

import (
	"testing"

	"github.com/beastbond/arena-server-go/internal/entity"
	"github.com/beastbond/arena-server-go/internal/events"
	"github.com/beastbond/arena-server-go/internal/replication"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type captureBroadcaster struct {
	messages []replication.Message
}

func (c *captureBroadcaster) Broadcast(msg replication.Message) {
	c.messages = append(c.messages, msg)
}

func TestRegisterAndResolve(t *testing.T) {
	dir := New(events.NewBus(), nil, zaptest.NewLogger(t))

	player := entity.New(1, entity.KindPlayer)
	dir.Register(player)

	got, ok := dir.Resolve(1)
	require.True(t, ok)
	assert.Same(t, player, got)

	_, ok = dir.Resolve(2)
	assert.False(t, ok, "unknown id resolves to absent, not error")
}

func TestEdgeMutationRequiresAuthority(t *testing.T) {
	cast := &captureBroadcaster{}
	dir := New(events.NewBus(), cast, zaptest.NewLogger(t))
	dir.Register(entity.New(1, entity.KindPlayer))

	dir.SetAlly(nil, 1, 2)

	_, ok := dir.Ally(1)
	assert.False(t, ok)
	assert.Empty(t, cast.messages)
}

func TestEdgesLinkAndReplace(t *testing.T) {
	auth := entity.NewAuthority()
	cast := &captureBroadcaster{}
	dir := New(events.NewBus(), cast, zaptest.NewLogger(t))

	player := entity.New(1, entity.KindPlayer)
	pet := entity.New(2, entity.KindPet)
	dir.Register(player)
	dir.Register(pet)

	dir.SetAlly(auth, 1, 2)
	dir.SetAlly(auth, 2, 1)
	dir.SetHand(auth, 1, 10)
	dir.SetStatsUI(auth, 1, 11)

	allyID, ok := dir.Ally(1)
	require.True(t, ok)
	assert.Equal(t, int64(2), allyID)

	resolved, ok := dir.ResolveAlly(1)
	require.True(t, ok)
	assert.Same(t, pet, resolved)

	handID, ok := dir.Hand(1)
	require.True(t, ok)
	assert.Equal(t, int64(10), handID)

	statsID, ok := dir.StatsUI(1)
	require.True(t, ok)
	assert.Equal(t, int64(11), statsID)

	// setting a new ally replaces the old edge
	dir.Register(entity.New(3, entity.KindPet))
	dir.SetAlly(auth, 1, 3)
	allyID, _ = dir.Ally(1)
	assert.Equal(t, int64(3), allyID)

	assert.Len(t, cast.messages, 5, "every committed edge change replicates")
}

func TestEdgeForUnknownOwnerIsIgnored(t *testing.T) {
	dir := New(events.NewBus(), nil, zaptest.NewLogger(t))

	dir.SetHand(entity.NewAuthority(), 42, 10)

	_, ok := dir.Hand(42)
	assert.False(t, ok)
}

func TestUnregisterRemovesEdgesBothWays(t *testing.T) {
	auth := entity.NewAuthority()
	dir := New(events.NewBus(), nil, zaptest.NewLogger(t))
	dir.Register(entity.New(1, entity.KindPlayer))
	dir.Register(entity.New(2, entity.KindPet))
	dir.SetAlly(auth, 1, 2)
	dir.SetAlly(auth, 2, 1)

	dir.Unregister(2)

	_, ok := dir.Resolve(2)
	assert.False(t, ok)
	_, ok = dir.Ally(1)
	assert.False(t, ok, "edges pointing at the removed entity are dropped")
}
