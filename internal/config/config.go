package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	Locks   LocksConfig   `mapstructure:"locks"`
	Rooms   RoomsConfig   `mapstructure:"rooms"`
	Session SessionConfig `mapstructure:"session"`
	Hub     HubConfig     `mapstructure:"hub"`
	Store   StoreConfig   `mapstructure:"store"`
	RTC     RTCConfig     `mapstructure:"rtc"`
}

type LocksConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	PriorityTimeout time.Duration `mapstructure:"priority_timeout"`
}

type RoomsConfig struct {
	MaxCapacity int `mapstructure:"max_capacity"`
}

type SessionConfig struct {
	MaxMessageLen int           `mapstructure:"max_message_len"`
	RateLimit     int           `mapstructure:"rate_limit"`
	RateInterval  time.Duration `mapstructure:"rate_interval"`
}

type HubConfig struct {
	SubscriberBuffer int `mapstructure:"subscriber_buffer"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type RTCConfig struct {
	ICEServers []string `mapstructure:"ice_servers"`
	MaxSDPLen  int      `mapstructure:"max_sdp_len"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "dev-only-change-me")
	v.SetDefault("log_level", "info")

	v.SetDefault("locks.timeout", "2s")
	v.SetDefault("locks.priority_timeout", "10s")
	v.SetDefault("rooms.max_capacity", 12)
	v.SetDefault("session.max_message_len", 2000)
	v.SetDefault("session.rate_limit", 20)
	v.SetDefault("session.rate_interval", "10s")
	v.SetDefault("hub.subscriber_buffer", 64)
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "buddyup.db")
	v.SetDefault("rtc.ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("rtc.max_sdp_len", 65536)
}

// Load reads file (or config/config.<CONFIG_ENV>.yaml when file is empty)
// into v and decodes it. A missing file is not an error; defaults apply.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetConfigType("yaml")

	if file == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		file = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(file)

	v.SetEnvPrefix("BUDDYUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", file).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", file).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("store", cfg.Store.Driver).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Rooms.MaxCapacity < 2 {
		return fmt.Errorf("rooms.max_capacity must be at least 2, got %d", c.Rooms.MaxCapacity)
	}
	return nil
}
