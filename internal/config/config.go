package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type RateLimitConfig struct {
	Messages int           `mapstructure:"messages"`
	Interval time.Duration `mapstructure:"interval"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type ModerationConfig struct {
	AllowOwnerless bool `mapstructure:"allow_ownerless"`
}

type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
	Buffer  int    `mapstructure:"buffer"`
}

type Config struct {
	Mode            string           `mapstructure:"mode"`
	Port            int              `mapstructure:"port"`
	Secret          string           `mapstructure:"secret"`
	ReadLimit       int64            `mapstructure:"read_limit"`
	PingPeriod      time.Duration    `mapstructure:"ping_period"`
	WriteWait       time.Duration    `mapstructure:"write_wait"`
	SendBuffer      int              `mapstructure:"send_buffer"`
	HistoryLimit    int              `mapstructure:"history_limit"`
	ShutdownTimeout time.Duration    `mapstructure:"shutdown_timeout"`
	RateLimit       RateLimitConfig  `mapstructure:"rate_limit"`
	JWT             JWTConfig        `mapstructure:"jwt"`
	Moderation      ModerationConfig `mapstructure:"moderation"`
	Archive         ArchiveConfig    `mapstructure:"archive"`
}

// PongWait is how long a connection may stay silent before it is considered dead.
func (c *Config) PongWait() time.Duration {
	return c.PingPeriod * 10 / 9
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("secret", "change-me")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 512)
	v.SetDefault("history_limit", 200)
	v.SetDefault("shutdown_timeout", "10s")
	v.SetDefault("rate_limit.messages", 20)
	v.SetDefault("rate_limit.interval", "1s")
	v.SetDefault("jwt.secret", "change-me")
	v.SetDefault("jwt.issuer", "relay")
	v.SetDefault("jwt.ttl", "24h")
	v.SetDefault("moderation.allow_ownerless", true)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.dsn", "relay-archive.db")
	v.SetDefault("archive.buffer", 1024)
}

// Load reads path, or config/config.<CONFIG_ENV>.yaml when path is empty.
// A missing file is not an error; every key has a default and RELAY_* env vars override.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		path = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(path)

	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		log.Warn().Str("module", "config").Str("file", path).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", path).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	sanitize(&cfg)
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Int("history_limit", cfg.HistoryLimit).Msg("config ready")
	return &cfg, nil
}

// sanitize keeps values usable. The send queue must hold a full history
// replay plus some live traffic, otherwise every join would overflow it.
func sanitize(cfg *Config) {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 200
	}
	if floor := cfg.HistoryLimit + 64; cfg.SendBuffer < floor {
		cfg.SendBuffer = floor
	}
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = 54 * time.Second
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 5 * time.Second
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 32768
	}
	if cfg.RateLimit.Messages <= 0 {
		cfg.RateLimit.Messages = 20
	}
	if cfg.RateLimit.Interval <= 0 {
		cfg.RateLimit.Interval = time.Second
	}
	if cfg.Archive.Buffer <= 0 {
		cfg.Archive.Buffer = 1024
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
}
