package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server ServerConfig `koanf:"server"`
	DB     DBConfig     `koanf:"db"`
	NATS   NATSConfig   `koanf:"nats"`
	Log    LogConfig    `koanf:"log"`
	API    APIConfig    `koanf:"api"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// DBConfig picks the database. DSN wins over the discrete postgres fields.
type DBConfig struct {
	Driver   string `koanf:"driver"` // "postgres" | "sqlite"
	DSN      string `koanf:"dsn"`
	Host     string `koanf:"host"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	Port     string `koanf:"port"`
	SSLMode  string `koanf:"sslmode"`
}

// NATSConfig enables the cross-instance change feed when URL is set.
type NATSConfig struct {
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "json" | "console"
	File   string `koanf:"file"`   // empty means stderr
}

// APIConfig is used by the client commands.
type APIConfig struct {
	URL string `koanf:"url"`
}

// env sections we read; everything else in the environment is ignored
var envSections = map[string]bool{
	"server": true, "db": true, "nats": true, "log": true, "api": true,
}

// Load reads .env (if any), then the optional YAML file, then the environment.
//
//	DB_HOST     -> db.host
//	NATS_URL    -> nats.url
//	SERVER_ADDR -> server.addr
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := k.Load(rawbytes.Provider(raw), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// envKey maps SECTION_FIELD_NAME to section.field_name, and drops variables
// outside our sections.
func envKey(s string) string {
	parts := strings.SplitN(strings.ToLower(s), "_", 2)
	if len(parts) != 2 || !envSections[parts[0]] {
		return ""
	}
	return parts[0] + "." + parts[1]
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.DB.Driver == "" {
		cfg.DB.Driver = "postgres"
	}
	if cfg.DB.Port == "" {
		cfg.DB.Port = "5432"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = "potluck.dishes.changes"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.API.URL == "" {
		cfg.API.URL = "http://localhost:8080"
	}
}
