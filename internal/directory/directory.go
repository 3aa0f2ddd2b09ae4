package directory

import (
	"sync"

	"github.com/beastbond/arena-server-go/internal/entity"
	"github.com/beastbond/arena-server-go/internal/events"
	"github.com/beastbond/arena-server-go/internal/replication"
	"go.uber.org/zap"
)

// Directory is the network-wide spawned-object registry plus the relationship
// edges between entities. Relationships are weak by construction: callers
// store IDs and resolve through the directory on every use, so a Player/Pet
// pair never holds pointers into each other's lifetime, and remote mirrors
// can express the same edges without real references.
type Directory struct {
	mu          sync.RWMutex
	entities    map[int64]*entity.Entity
	allies      map[int64]int64
	hands       map[int64]int64
	statsUIs    map[int64]int64
	bus         *events.Bus
	broadcaster replication.Broadcaster
	logger      *zap.Logger
}

// New creates an empty directory.
func New(bus *events.Bus, broadcaster replication.Broadcaster, logger *zap.Logger) *Directory {
	if broadcaster == nil {
		broadcaster = replication.NopBroadcaster{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{
		entities:    make(map[int64]*entity.Entity),
		allies:      make(map[int64]int64),
		hands:       make(map[int64]int64),
		statsUIs:    make(map[int64]int64),
		bus:         bus,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Register adds a spawned entity to the directory.
func (d *Directory) Register(e *entity.Entity) {
	if e == nil {
		d.logger.Warn("refusing to register nil entity")
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entities[e.ID] = e
}

// Unregister removes an entity and every edge referencing it.
func (d *Directory) Unregister(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entities, id)
	delete(d.allies, id)
	delete(d.hands, id)
	delete(d.statsUIs, id)
	for owner, linked := range d.allies {
		if linked == id {
			delete(d.allies, owner)
		}
	}
}

// Resolve looks up a resident entity by ID. Absence means "not yet known",
// not an error: the entity may still be spawning on this process.
func (d *Directory) Resolve(id int64) (*entity.Entity, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entities[id]
	return e, ok
}

// SetAlly links a Player/Pet pair. At most one ally edge exists per entity;
// setting a new one replaces the old.
func (d *Directory) SetAlly(auth *entity.Authority, ownerID, allyID int64) {
	if !d.setEdge(auth, d.setAllyLocked, ownerID, allyID) {
		return
	}
	d.notifyEdge(events.EventAllyChanged, replication.FieldAllyEdge, ownerID, allyID)
}

// SetHand links an entity to its hand-display satellite.
func (d *Directory) SetHand(auth *entity.Authority, ownerID, handID int64) {
	if !d.setEdge(auth, d.setHandLocked, ownerID, handID) {
		return
	}
	d.notifyEdge(events.EventHandChanged, replication.FieldHandEdge, ownerID, handID)
}

// SetStatsUI links an entity to its stats-UI satellite.
func (d *Directory) SetStatsUI(auth *entity.Authority, ownerID, statsID int64) {
	if !d.setEdge(auth, d.setStatsLocked, ownerID, statsID) {
		return
	}
	d.notifyEdge(events.EventStatsUIChanged, replication.FieldStatsEdge, ownerID, statsID)
}

// Ally resolves the ally edge for an entity.
func (d *Directory) Ally(ownerID int64) (int64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.allies[ownerID]
	return id, ok
}

// Hand resolves the hand-satellite edge for an entity.
func (d *Directory) Hand(ownerID int64) (int64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.hands[ownerID]
	return id, ok
}

// StatsUI resolves the stats-UI edge for an entity.
func (d *Directory) StatsUI(ownerID int64) (int64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.statsUIs[ownerID]
	return id, ok
}

// ResolveAlly resolves the ally edge straight to the entity, when resident.
func (d *Directory) ResolveAlly(ownerID int64) (*entity.Entity, bool) {
	allyID, ok := d.Ally(ownerID)
	if !ok {
		return nil, false
	}
	return d.Resolve(allyID)
}

// IDs returns the IDs of all resident entities.
func (d *Directory) IDs() []int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]int64, 0, len(d.entities))
	for id := range d.entities {
		ids = append(ids, id)
	}
	return ids
}

func (d *Directory) setEdge(auth *entity.Authority, set func(int64, int64), ownerID, linkedID int64) bool {
	if auth == nil {
		d.logger.Warn("edge mutation without authority handle ignored",
			zap.Int64("owner_id", ownerID),
			zap.Int64("linked_id", linkedID),
		)
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entities[ownerID]; !ok {
		d.logger.Warn("edge mutation for unknown owner ignored",
			zap.Int64("owner_id", ownerID),
			zap.Int64("linked_id", linkedID),
		)
		return false
	}
	set(ownerID, linkedID)
	return true
}

func (d *Directory) setAllyLocked(ownerID, allyID int64)   { d.allies[ownerID] = allyID }
func (d *Directory) setHandLocked(ownerID, handID int64)   { d.hands[ownerID] = handID }
func (d *Directory) setStatsLocked(ownerID, statsID int64) { d.statsUIs[ownerID] = statsID }

func (d *Directory) notifyEdge(eventType events.EventType, field replication.Field, ownerID, linkedID int64) {
	if d.bus != nil {
		evt := events.NewEvent(eventType, ownerID, linkedID)
		d.bus.Publish(evt)
	}
	msg, err := replication.NewMessage(ownerID, ownerID, field, replication.EdgePayload{
		OwnerID:  ownerID,
		LinkedID: linkedID,
	})
	if err != nil {
		d.logger.Error("dropping unencodable edge message",
			zap.Int64("owner_id", ownerID),
			zap.Error(err),
		)
		return
	}
	d.broadcaster.Broadcast(msg)
}
