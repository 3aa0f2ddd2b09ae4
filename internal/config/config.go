package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Game     GameConfig     `mapstructure:"game"`
}

// ServerConfig configures the HTTP/WebSocket listener.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig configures the PostgreSQL pool. When Enabled is false the
// server runs with the in-memory collection store.
type DatabaseConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	URL            string        `mapstructure:"url"`
	MaxConns       int32         `mapstructure:"max_conns"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GameConfig tunes the combat rules.
type GameConfig struct {
	HandCapacity       int           `mapstructure:"hand_capacity"`
	OpeningDraw        int           `mapstructure:"opening_draw"`
	RefillTarget       int           `mapstructure:"refill_target"`
	StanceHoldTurns    int           `mapstructure:"stance_hold_turns"`
	DiscardStepTimeout time.Duration `mapstructure:"discard_step_timeout"`
	JournalDir         string        `mapstructure:"journal_dir"`
}

// Load reads configuration from the given file, applying defaults for any
// keys the file omits. ARENA_-prefixed environment variables override the
// file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ARENA")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// An explicit config file path surfaces absence as a path error, not
		// viper's not-found type. Both mean "run on defaults".
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("config: server.address is required")
	}
	if c.Database.Enabled && c.Database.URL == "" {
		return fmt.Errorf("config: database.url is required when database is enabled")
	}
	if c.Game.HandCapacity <= 0 {
		return fmt.Errorf("config: game.hand_capacity must be positive")
	}
	if c.Game.OpeningDraw <= 0 || c.Game.RefillTarget <= 0 {
		return fmt.Errorf("config: game draw counts must be positive")
	}
	if c.Game.OpeningDraw > c.Game.HandCapacity || c.Game.RefillTarget > c.Game.HandCapacity {
		return fmt.Errorf("config: game draw counts cannot exceed hand capacity")
	}
	if c.Game.StanceHoldTurns <= 0 {
		return fmt.Errorf("config: game.stance_hold_turns must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.connect_timeout", 5*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("game.hand_capacity", 10)
	v.SetDefault("game.opening_draw", 5)
	v.SetDefault("game.refill_target", 5)
	v.SetDefault("game.stance_hold_turns", 2)
	v.SetDefault("game.discard_step_timeout", 250*time.Millisecond)
	v.SetDefault("game.journal_dir", "journals")
}
