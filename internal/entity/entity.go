package entity

import "fmt"

// Kind classifies a networked entity. Hand and stats-UI kinds are satellite
// placeholders that mirror a main entity's state for presentation.
type Kind int

const (
	KindPlayer Kind = iota
	KindPet
	KindPlayerHand
	KindPetHand
	KindPlayerStatsUI
	KindPetStatsUI
)

var kindNames = map[Kind]string{
	KindPlayer:        "PLAYER",
	KindPet:           "PET",
	KindPlayerHand:    "PLAYER_HAND",
	KindPetHand:       "PET_HAND",
	KindPlayerStatsUI: "PLAYER_STATS_UI",
	KindPetStatsUI:    "PET_STATS_UI",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("KIND_%d", int(k))
}

// IsMain reports whether the kind owns authoritative combat state.
func (k Kind) IsMain() bool {
	return k == KindPlayer || k == KindPet
}

// InitPhase tracks the two-phase initialization state machine. Player and pet
// stats stay unsynchronized until selection data arrives so observers never
// see placeholder defaults.
type InitPhase int

const (
	PhaseUninitialized InitPhase = iota
	PhaseDefaultsApplied
	PhaseSelectionApplied
	PhaseStatsFinalized
)

var initPhaseNames = map[InitPhase]string{
	PhaseUninitialized:    "UNINITIALIZED",
	PhaseDefaultsApplied:  "DEFAULTS_APPLIED",
	PhaseSelectionApplied: "SELECTION_APPLIED",
	PhaseStatsFinalized:   "STATS_FINALIZED",
}

func (p InitPhase) String() string {
	if name, ok := initPhaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("INIT_PHASE_%d", int(p))
}

// StatTemplate is the initial stat block supplied by the spawner.
type StatTemplate struct {
	Name      string
	MaxHealth int
	MaxEnergy int
	Currency  int
}

// SelectionData is the character/pet selection payload applied post-spawn.
type SelectionData struct {
	Index     int
	AssetPath string
	Name      string
	MaxHealth int
	MaxEnergy int
	Currency  int
}

// Entity holds the canonical numeric/string fields for one networked entity.
// The ID is the stable network-unique identity used by the replication layer
// and the object directory. Fields are mutated only through a Store bound to
// the authority handle; everything else reads.
type Entity struct {
	ID   int64
	Kind Kind

	Name          string
	CurrentHealth int
	MaxHealth     int
	CurrentEnergy int
	MaxEnergy     int
	Currency      int
	StatusTag     string

	SelectionIndex int
	AssetPath      string

	Phase InitPhase
	Dead  bool
}

// New creates an entity in the Uninitialized phase.
func New(id int64, kind Kind) *Entity {
	return &Entity{ID: id, Kind: kind, Phase: PhaseUninitialized}
}

// Authority is the capability to mutate simulation state. Only the hosting
// process constructs one and hands it to its stores; observer processes have
// no authority value, so a non-authority mutation cannot be expressed.
type Authority struct {
	role string
}

// NewAuthority mints the authority handle for the hosting process.
func NewAuthority() *Authority {
	return &Authority{role: "host"}
}
