// Package config loads service settings from doublecube.yaml and
// DOUBLECUBE_* environment variables, with a default for every knob
// so a bare binary runs out of the box.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full settings tree for the service.
type Config struct {
	Server    Server    `mapstructure:"server"`
	Store     Store     `mapstructure:"store"`
	Analytics Analytics `mapstructure:"analytics"`
	Session   Session   `mapstructure:"session"`
	Clock     Clock     `mapstructure:"clock"`
	Bot       Bot       `mapstructure:"bot"`
	Log       Log       `mapstructure:"log"`
}

// Server configures the gateway listener and its two auth surfaces:
// player tokens on /ws and the admin bearer token.
type Server struct {
	Addr       string `mapstructure:"addr"`
	AdminToken string `mapstructure:"admin_token"`
	// AuthMode is "token" (HMAC player tokens) or "open" (trust the
	// player query parameter; development only).
	AuthMode   string `mapstructure:"auth_mode"`
	AuthSecret string `mapstructure:"auth_secret"`
}

// Store selects the persistence gateway.
type Store struct {
	// Backend is "memory", "badger" or "postgres".
	Backend     string `mapstructure:"backend"`
	BadgerDir   string `mapstructure:"badger_dir"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// Analytics configures the optional event sinks. Both default off;
// the recorder degrades to a no-op when nothing is enabled.
type Analytics struct {
	Kafka      Kafka      `mapstructure:"kafka"`
	ClickHouse ClickHouse `mapstructure:"clickhouse"`
}

type Kafka struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	ResultTopic string   `mapstructure:"result_topic"`
	MatchTopic  string   `mapstructure:"match_topic"`
}

type ClickHouse struct {
	Enabled       bool          `mapstructure:"enabled"`
	Addr          []string      `mapstructure:"addr"`
	Database      string        `mapstructure:"database"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	QueueSize     int           `mapstructure:"queue_size"`
}

// Session tunes lifecycle and chat.
type Session struct {
	TTL         time.Duration `mapstructure:"ttl"`
	Sweep       time.Duration `mapstructure:"sweep"`
	ChatHistory int           `mapstructure:"chat_history"`
}

// Clock toggles point clocks for new sessions.
type Clock struct {
	Enabled bool `mapstructure:"enabled"`
}

// Bot tunes the built-in opponents.
type Bot struct {
	Think    time.Duration `mapstructure:"think"`
	Deadline time.Duration `mapstructure:"deadline"`
}

// Log selects the zap profile.
type Log struct {
	Level string `mapstructure:"level"`
	Dev   bool   `mapstructure:"dev"`
}

// Load reads the config. With an explicit path the file must exist;
// otherwise doublecube.yaml is searched for in the working directory
// and /etc/doublecube, and a missing file just means defaults plus
// environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("doublecube")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/doublecube")
	}
	v.SetEnvPrefix("DOUBLECUBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8447")
	v.SetDefault("server.admin_token", "")
	v.SetDefault("server.auth_mode", "open")
	v.SetDefault("server.auth_secret", "")

	v.SetDefault("store.backend", "badger")
	v.SetDefault("store.badger_dir", "data/doublecube")
	v.SetDefault("store.postgres_dsn", "")

	v.SetDefault("analytics.kafka.enabled", false)
	v.SetDefault("analytics.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("analytics.kafka.result_topic", "doublecube.results")
	v.SetDefault("analytics.kafka.match_topic", "doublecube.matches")
	v.SetDefault("analytics.clickhouse.enabled", false)
	v.SetDefault("analytics.clickhouse.addr", []string{"localhost:9000"})
	v.SetDefault("analytics.clickhouse.database", "doublecube")
	v.SetDefault("analytics.clickhouse.username", "default")
	v.SetDefault("analytics.clickhouse.password", "")
	v.SetDefault("analytics.clickhouse.batch_size", 256)
	v.SetDefault("analytics.clickhouse.flush_interval", 5*time.Second)
	v.SetDefault("analytics.clickhouse.queue_size", 4096)

	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("session.sweep", time.Minute)
	v.SetDefault("session.chat_history", 64)

	v.SetDefault("clock.enabled", true)

	v.SetDefault("bot.think", 600*time.Millisecond)
	v.SetDefault("bot.deadline", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dev", false)
}

func (c Config) validate() error {
	switch c.Store.Backend {
	case "memory", "badger", "postgres":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == "badger" && c.Store.BadgerDir == "" {
		return errors.New("store.badger_dir required for the badger backend")
	}
	if c.Store.Backend == "postgres" && c.Store.PostgresDSN == "" {
		return errors.New("store.postgres_dsn required for the postgres backend")
	}
	switch c.Server.AuthMode {
	case "open":
	case "token":
		if c.Server.AuthSecret == "" {
			return errors.New("server.auth_secret required for token auth")
		}
	default:
		return fmt.Errorf("unknown auth mode %q", c.Server.AuthMode)
	}
	if c.Analytics.Kafka.Enabled && len(c.Analytics.Kafka.Brokers) == 0 {
		return errors.New("analytics.kafka.brokers required when kafka is enabled")
	}
	if c.Analytics.ClickHouse.Enabled && len(c.Analytics.ClickHouse.Addr) == 0 {
		return errors.New("analytics.clickhouse.addr required when clickhouse is enabled")
	}
	return nil
}
