package config

import (
	"time"

	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/flowcore/runner/pkg/logger"
)

// Config is the flow core's full runtime configuration: transport, storage,
// concurrency, and logging. Field names double as the env-var suffix
// (FLOWRUNNER_<SECTION>_<FIELD>) via the koanf env provider.
type Config struct {
	Runtime  RuntimeConfig  `koanf:"runtime"`
	Postgres PostgresConfig `koanf:"postgres"`
	NATS     NATSConfig     `koanf:"nats"`
	Cache    CacheConfig    `koanf:"cache"`
	Auth     AuthConfig     `koanf:"auth"`
}

type RuntimeConfig struct {
	LogLevel    logger.LogLevel `koanf:"log_level"`
	LogJSON     bool            `koanf:"log_json"`
	Concurrency int             `koanf:"concurrency"`
}

type PostgresConfig struct {
	Host            string        `koanf:"host"`
	Port            string        `koanf:"port"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	DBName          string        `koanf:"dbname"`
	SSLMode         string        `koanf:"sslmode"`
	MaxConns        int32         `koanf:"max_conns"`
	MinConns        int32         `koanf:"min_conns"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	HealthCheckFreq time.Duration `koanf:"health_check_period"`
}

type NATSConfig struct {
	URL          string        `koanf:"url"`
	StreamName   string        `koanf:"stream_name"`
	ConsumerName string        `koanf:"consumer_name"`
	Subject      string        `koanf:"subject"`
	FetchBatch   int           `koanf:"fetch_batch"`
	FetchTimeout time.Duration `koanf:"fetch_timeout"`
}

type CacheConfig struct {
	SecretsTTL  time.Duration `koanf:"secrets_ttl"`
	AccountsTTL time.Duration `koanf:"accounts_ttl"`
	MaxCost     int64         `koanf:"max_cost"`
}

// AuthConfig points the secrets/identity client at the external service
// serving decrypted secrets and cached OAuth accounts.
type AuthConfig struct {
	BaseURL string        `koanf:"base_url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

func Default() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			LogLevel:    logger.InfoLevel,
			LogJSON:     false,
			Concurrency: 50,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			DBName:          "flowrunner",
			SSLMode:         "disable",
			MaxConns:        10,
			MinConns:        2,
			ConnectTimeout:  5 * time.Second,
			HealthCheckFreq: 30 * time.Second,
		},
		NATS: NATSConfig{
			URL:          "nats://localhost:4222",
			StreamName:   "FLOWRUNNER",
			ConsumerName: "FLOWRUNNER_PROCESS",
			Subject:      "flowrunner.process",
			FetchBatch:   1,
			FetchTimeout: 5 * time.Second,
		},
		Cache: CacheConfig{
			SecretsTTL:  30 * time.Second,
			AccountsTTL: 30 * time.Second,
			MaxCost:     1 << 20,
		},
		Auth: AuthConfig{
			BaseURL: "http://localhost:8081",
			Timeout: 5 * time.Second,
		},
	}
}

// Load layers environment variables (prefix FLOWRUNNER_, "_" as the nesting
// delimiter) over the built-in defaults using koanf, mirroring the
// default-provider-then-env-provider layering the corpus's own config
// package uses.
func Load() (*Config, error) {
	cfg := Default()
	k := koanf.New("_")
	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider(env.Opt{
		Prefix: "FLOWRUNNER_",
		TransformFunc: func(k, v string) (string, any) {
			return k, v
		},
	}), nil); err != nil {
		return nil, err
	}
	out := &Config{}
	if err := k.Unmarshal("", out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PostgresConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}
