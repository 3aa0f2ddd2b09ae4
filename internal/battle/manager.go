package battle

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/beastbond/arena-server-go/internal/directory"
	"github.com/beastbond/arena-server-go/internal/entity"
	"github.com/beastbond/arena-server-go/internal/events"
	"github.com/beastbond/arena-server-go/internal/replication"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Fighter is a spawned player or pet together with its satellite entities
// and the combatant admitted into a battle. The satellite stores replicate
// immediately on spawn; the main entity's store waits for FinalizeFighter.
type Fighter struct {
	Entity     *entity.Entity
	Hand       *entity.Entity
	StatsUI    *entity.Entity
	HandStore  *entity.Store
	StatsStore *entity.Store
	Combatant  *Combatant
}

// Manager owns the live battles on this server. It spawns entity groups,
// wires directory edges, and drives journaling.
type Manager struct {
	auth        *entity.Authority
	broadcaster replication.Broadcaster
	dir         *directory.Directory
	recorder    *Recorder
	opts        Options
	logger      *zap.Logger

	nextEntityID atomic.Int64

	mu       sync.RWMutex
	battles  map[string]*Battle
	fighters map[string][]*Fighter
}

// NewManager creates a battle manager holding the server's authority handle.
func NewManager(auth *entity.Authority, broadcaster replication.Broadcaster, dir *directory.Directory, recorder *Recorder, opts Options, logger *zap.Logger) *Manager {
	if auth == nil {
		panic("battle: authority handle is required")
	}
	if broadcaster == nil {
		broadcaster = replication.NopBroadcaster{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		auth:        auth,
		broadcaster: broadcaster,
		dir:         dir,
		recorder:    recorder,
		opts:        opts,
		logger:      logger,
		battles:     make(map[string]*Battle),
		fighters:    make(map[string][]*Fighter),
	}
	m.nextEntityID.Store(1)
	return m
}

// CreateBattle starts an empty battle under a fresh ID.
func (m *Manager) CreateBattle() *Battle {
	id := uuid.New().String()

	b := New(id, m.auth, events.NewBus(), m.broadcaster, m.dir, m.opts, rand.New(rand.NewSource(rand.Int63())), m.logger)

	m.mu.Lock()
	m.battles[id] = b
	m.mu.Unlock()

	m.logger.Info("battle created", zap.String("battle_id", id))
	return b
}

// Battle returns a live battle by ID.
func (m *Manager) Battle(id string) (*Battle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.battles[id]
	return b, ok
}

// BattleCount returns the number of live battles.
func (m *Manager) BattleCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.battles)
}

// SpawnFighter creates a main entity plus its hand and stats satellites,
// registers all three in the directory, links the edges, and admits the
// main entity into the battle.
func (m *Manager) SpawnFighter(b *Battle, kind entity.Kind, name string, tpl entity.StatTemplate) (*Fighter, error) {
	if !kind.IsMain() {
		return nil, fmt.Errorf("battle: kind %s cannot be spawned as a fighter", kind)
	}

	handKind := entity.KindPlayerHand
	statsKind := entity.KindPlayerStatsUI
	if kind == entity.KindPet {
		handKind = entity.KindPetHand
		statsKind = entity.KindPetStatsUI
	}

	if tpl.Name == "" {
		tpl.Name = name
	}
	main := entity.New(m.nextEntityID.Add(1), kind)
	hand := entity.New(m.nextEntityID.Add(1), handKind)
	stats := entity.New(m.nextEntityID.Add(1), statsKind)

	m.dir.Register(main)
	m.dir.Register(hand)
	m.dir.Register(stats)
	m.dir.SetHand(m.auth, main.ID, hand.ID)
	m.dir.SetStatsUI(m.auth, main.ID, stats.ID)

	c, err := b.AddCombatant(main)
	if err != nil {
		m.dir.Unregister(main.ID)
		m.dir.Unregister(hand.ID)
		m.dir.Unregister(stats.ID)
		return nil, err
	}
	c.Store.ApplyDefaults(tpl)

	// Satellites have no selection step; their defaults replicate on spawn
	// so observers can resolve them before the first zone frame.
	handStore := entity.NewStore(m.auth, hand, b.Bus(), m.broadcaster, m.logger)
	handStore.ApplyDefaults(entity.StatTemplate{Name: tpl.Name + " Hand"})
	statsStore := entity.NewStore(m.auth, stats, b.Bus(), m.broadcaster, m.logger)
	statsStore.ApplyDefaults(entity.StatTemplate{Name: tpl.Name + " Stats"})

	m.logger.Info("fighter spawned",
		zap.String("battle_id", b.ID()),
		zap.Int64("entity_id", main.ID),
		zap.String("kind", kind.String()),
		zap.String("name", name),
	)

	f := &Fighter{
		Entity:     main,
		Hand:       hand,
		StatsUI:    stats,
		HandStore:  handStore,
		StatsStore: statsStore,
		Combatant:  c,
	}
	m.mu.Lock()
	m.fighters[b.ID()] = append(m.fighters[b.ID()], f)
	m.mu.Unlock()
	return f, nil
}

// ResyncBattle re-broadcasts the full state of a battle: every combatant
// plus the satellite entities spawned alongside them. This is the single
// call a late-joining observer needs to converge.
func (m *Manager) ResyncBattle(id string) bool {
	m.mu.RLock()
	b, ok := m.battles[id]
	fighters := m.fighters[id]
	m.mu.RUnlock()
	if !ok {
		return false
	}

	b.ForceResync()
	for _, f := range fighters {
		f.HandStore.ForceResync()
		f.StatsStore.ForceResync()
	}
	return true
}

// FinalizeFighter applies the owner's character selection and completes
// two-phase initialization, pushing the fighter's first full stat broadcast
// to observers. Until this runs the main entity's stats stay unreplicated.
func (m *Manager) FinalizeFighter(f *Fighter, sel entity.SelectionData) {
	f.Combatant.Store.ApplySelection(sel)
	f.Combatant.Store.FinalizeStats()
}

// LinkAllies records the player/pet pairing in both directions.
func (m *Manager) LinkAllies(playerID, petID int64) {
	m.dir.SetAlly(m.auth, playerID, petID)
	m.dir.SetAlly(m.auth, petID, playerID)
}

// RecordTurn snapshots a battle into its journal. Call at turn boundaries.
func (m *Manager) RecordTurn(b *Battle) {
	if m.recorder == nil {
		return
	}
	m.recorder.RecordSnapshot(b.ID(), b.Snapshot())
}

// EndBattle closes a battle, flushes its journal, and drops it from the
// manager. Fighter entities stay registered so a rematch can reuse them.
func (m *Manager) EndBattle(id string) error {
	m.mu.Lock()
	b, ok := m.battles[id]
	delete(m.battles, id)
	delete(m.fighters, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("battle: no battle %s", id)
	}

	b.End()
	if m.recorder != nil {
		if _, has := m.recorder.Journal(id); has {
			if err := m.recorder.Finish(id); err != nil {
				m.logger.Error("failed to flush battle journal",
					zap.String("battle_id", id),
					zap.Error(err),
				)
			}
		}
	}

	m.logger.Info("battle ended", zap.String("battle_id", id))
	return nil
}
