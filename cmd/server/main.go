package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/beastbond/arena-server-go/internal/battle"
	"github.com/beastbond/arena-server-go/internal/config"
	"github.com/beastbond/arena-server-go/internal/directory"
	"github.com/beastbond/arena-server-go/internal/entity"
	"github.com/beastbond/arena-server-go/internal/events"
	"github.com/beastbond/arena-server-go/internal/replication"
	"github.com/beastbond/arena-server-go/internal/repository"
	"github.com/beastbond/arena-server-go/internal/zones"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting arena server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	// Create context that listens for termination signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize the collection store: PostgreSQL when configured, otherwise
	// the in-memory store
	var collections repository.CollectionStore
	if cfg.Database.Enabled {
		db, dbErr := repository.NewDB(ctx, cfg.Database, logger)
		if dbErr != nil {
			logger.Fatal("failed to connect to database", zap.Error(dbErr))
		}
		defer db.Close()

		stats := db.Stats()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)
		collections = repository.NewPostgresCollectionStore(db)
	} else {
		logger.Info("database disabled, using in-memory collection store")
		collections = repository.NewMemoryCollectionStore()
	}

	// The authority handle marks this process as the simulation writer.
	// Everything that mutates entity state requires it.
	auth := entity.NewAuthority()

	// Observer fan-out hub
	hub := replication.NewHub(logger)
	go hub.Run(ctx)

	bus := events.NewBus()
	dir := directory.New(bus, hub, logger)

	recorder := battle.NewRecorder(cfg.Game.JournalDir, logger)
	manager := battle.NewManager(auth, hub, dir, recorder, battle.Options{
		Zones: zones.Options{
			HandCapacity: cfg.Game.HandCapacity,
			OpeningDraw:  cfg.Game.OpeningDraw,
			RefillTarget: cfg.Game.RefillTarget,
		},
		StanceHoldTurns:    cfg.Game.StanceHoldTurns,
		DiscardStepTimeout: cfg.Game.DiscardStepTimeout,
	}, logger)
	logger.Info("battle manager initialized",
		zap.Int("hand_capacity", cfg.Game.HandCapacity),
		zap.Int("opening_draw", cfg.Game.OpeningDraw),
		zap.Int("refill_target", cfg.Game.RefillTarget),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok battles=%d", manager.BattleCount())
	})
	mux.HandleFunc("/battles", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req battleRequest
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
			http.Error(w, decodeErr.Error(), http.StatusBadRequest)
			return
		}

		b := manager.CreateBattle()
		player, err := manager.SpawnFighter(b, entity.KindPlayer, "Player", entity.StatTemplate{
			MaxHealth: 100, MaxEnergy: 5,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		pet, err := manager.SpawnFighter(b, entity.KindPet, "Pet", entity.StatTemplate{
			MaxHealth: 60, MaxEnergy: 3,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		manager.LinkAllies(player.Entity.ID, pet.Entity.ID)

		// Complete two-phase init with the caller's selections: observers see
		// the first full stat broadcast here, never the placeholder defaults.
		manager.FinalizeFighter(player, req.Player.selectionData())
		manager.FinalizeFighter(pet, req.Pet.selectionData())

		for _, f := range []*battle.Fighter{player, pet} {
			deck, deckErr := collections.DeckFor(r.Context(), f.Entity.ID)
			if errors.Is(deckErr, repository.ErrNoCollection) {
				deck = defaultDeck()
			} else if deckErr != nil {
				http.Error(w, deckErr.Error(), http.StatusInternalServerError)
				return
			}
			if setupErr := b.SetupDeck(f.Entity.ID, deck); setupErr != nil {
				http.Error(w, setupErr.Error(), http.StatusInternalServerError)
				return
			}
		}
		if err := b.Begin(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		manager.RecordTurn(b)

		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, "%s", b.ID())
	})

	mux.HandleFunc("/battles/resync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "missing battle id", http.StatusBadRequest)
			return
		}
		if !manager.ResyncBattle(id) {
			http.Error(w, "unknown battle", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: mux,
	}

	go func() {
		logger.Info("starting observer endpoint", zap.String("address", cfg.Server.Address))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(serveErr))
		}
	}()

	logger.Info("arena server initialized",
		zap.String("address", cfg.Server.Address),
		zap.String("version", version),
	)

	// Wait for termination signal
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", zap.Error(err))
	}

	logger.Info("arena server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// battleRequest is the optional POST /battles body carrying the character
// and pet selections. An empty body starts the fight with template stats.
type battleRequest struct {
	Player selectionRequest `json:"player"`
	Pet    selectionRequest `json:"pet"`
}

type selectionRequest struct {
	Index     int    `json:"index"`
	AssetPath string `json:"assetPath"`
	Name      string `json:"name"`
	MaxHealth int    `json:"maxHealth"`
	MaxEnergy int    `json:"maxEnergy"`
	Currency  int    `json:"currency"`
}

func (s selectionRequest) selectionData() entity.SelectionData {
	return entity.SelectionData{
		Index:     s.Index,
		AssetPath: s.AssetPath,
		Name:      s.Name,
		MaxHealth: s.MaxHealth,
		MaxEnergy: s.MaxEnergy,
		Currency:  s.Currency,
	}
}

// defaultDeck is the starter deck used when an owner has no stored collection.
func defaultDeck() []int {
	deck := make([]int, 0, 20)
	for id := 1; id <= 20; id++ {
		deck = append(deck, id)
	}
	return deck
}
