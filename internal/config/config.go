package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "MATCHBOX"

type Config struct {
	Mode             string        `mapstructure:"mode"`
	Port             int           `mapstructure:"port"`
	Secret           string        `mapstructure:"secret"`
	LogLevel         string        `mapstructure:"log_level"`
	ReadLimit        int64         `mapstructure:"read_limit"`
	SendBuffer       int           `mapstructure:"send_buffer"`
	PingPeriod       time.Duration `mapstructure:"ping_period"`
	PongWait         time.Duration `mapstructure:"pong_wait"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	Workers          int           `mapstructure:"workers"`
	QueueSize        int           `mapstructure:"queue_size"`

	Store       StoreConfig       `mapstructure:"store"`
	Matchmaking MatchmakingConfig `mapstructure:"matchmaking"`
	Signaling   SignalingConfig   `mapstructure:"signaling"`
}

type StoreConfig struct {
	Driver   string `mapstructure:"driver"` // memory | sqlite
	Path     string `mapstructure:"path"`
	PoolSize int    `mapstructure:"pool_size"`
}

type MatchmakingConfig struct {
	DefaultAlgorithm string `mapstructure:"default_algorithm"`
	// Applications is keyed by configuration token.
	Applications map[string]ApplicationConfig `mapstructure:"applications"`
}

type ApplicationConfig struct {
	Algorithm       string `mapstructure:"algorithm"`
	MaxParticipants int    `mapstructure:"max_participants"`
}

type SignalingConfig struct {
	RateLimit    int           `mapstructure:"rate_limit"`
	RateInterval time.Duration `mapstructure:"rate_interval"`
	HostOnly     []string      `mapstructure:"host_only"`
	ValidateSDP  bool          `mapstructure:"validate_sdp"`
	Backpressure string        `mapstructure:"backpressure"` // kick | drop
}

// Flags returns the command-line flags Load understands.
func Flags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("matchbox", pflag.ContinueOnError)
	flags.String("config", "", "config file (default config/config.$CONFIG_ENV.yaml)")
	flags.Int("port", 8080, "listen port")
	flags.String("mode", "release", "gin mode: debug | release")
	return flags
}

// Load reads defaults, then the config file, then MATCHBOX_* environment
// variables, then flags. A missing file is fine; a malformed one is not.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileName := ""
	if flags != nil {
		if err := v.BindPFlag("port", flags.Lookup("port")); err != nil {
			return nil, err
		}
		if err := v.BindPFlag("mode", flags.Lookup("mode")); err != nil {
			return nil, err
		}
		fileName, _ = flags.GetString("config")
	}
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("store", cfg.Store.Driver).Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("secret", "matchbox-dev-secret")
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("send_buffer", 64)
	v.SetDefault("ping_period", "30s")
	v.SetDefault("pong_wait", "10s")
	v.SetDefault("handshake_timeout", "30s")
	v.SetDefault("workers", 8)
	v.SetDefault("queue_size", 1024)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.path", "matchbox.db")
	v.SetDefault("store.pool_size", 4)

	v.SetDefault("matchmaking.default_algorithm", "earliest")
	v.SetDefault("matchmaking.applications", map[string]any{})

	v.SetDefault("signaling.rate_limit", 50)
	v.SetDefault("signaling.rate_interval", "1s")
	v.SetDefault("signaling.host_only", []string{"end"})
	v.SetDefault("signaling.validate_sdp", false)
	v.SetDefault("signaling.backpressure", "kick")
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		return errors.New("config: store.path is required for sqlite")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if c.PingPeriod <= 0 || c.PongWait <= 0 {
		return errors.New("config: ping_period and pong_wait must be positive")
	}
	return nil
}
