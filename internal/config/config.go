package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/danhigham/tipcharm/internal/alert"
	"github.com/danhigham/tipcharm/internal/dedupe"
	"github.com/danhigham/tipcharm/internal/tips"
)

const (
	// DefaultAllowedBot is the bot whose messages carry tip events.
	DefaultAllowedBot = "EddieLives_bot"

	envPrefix = "TIPCHARM_"
)

type Config struct {
	Telegram        TelegramConfig `yaml:"telegram"`
	CredentialsPath string         `yaml:"credentials_path"`
	LogLevel        string         `yaml:"log_level"`
	Alert           alert.Config   `yaml:"alert"`
	Event           EventConfig    `yaml:"event"`
	Dedupe          DedupeConfig   `yaml:"dedupe"`
	Metrics         MetricsConfig  `yaml:"metrics"`
}

type TelegramConfig struct {
	// APIID and APIHash are used when the credential file is missing or
	// invalid.
	APIID          int           `yaml:"api_id"`
	APIHash        string        `yaml:"api_hash"`
	Phone          string        `yaml:"phone"`
	AllowedBot     string        `yaml:"allowed_bot"`
	SessionDir     string        `yaml:"session_dir"`
	DeviceModel    string        `yaml:"device_model"`
	ReceiveTimeout time.Duration `yaml:"receive_timeout"`
}

type EventConfig struct {
	Marker string `yaml:"marker"`
	Type   string `yaml:"type"`
	Symbol string `yaml:"symbol"`
}

// Parser builds the event parser for these settings.
func (e EventConfig) Parser() tips.Parser {
	return tips.Parser{Marker: e.Marker, EventType: e.Type, Symbol: e.Symbol}
}

type DedupeConfig struct {
	Backend  string        `yaml:"backend"`
	Capacity int           `yaml:"capacity"`
	TTL      time.Duration `yaml:"ttl"`
	Path     string        `yaml:"path"`
	RedisURL string        `yaml:"redis_url"`
	// Prune is a cron spec for expiring stored keys.
	Prune string `yaml:"prune"`
}

func (d DedupeConfig) Store() dedupe.Config {
	return dedupe.Config{
		Backend:  d.Backend,
		Capacity: d.Capacity,
		TTL:      d.TTL,
		Path:     d.Path,
		RedisURL: d.RedisURL,
	}
}

type MetricsConfig struct {
	// Listen is the HTTP address for /metrics; empty disables it.
	Listen string `yaml:"listen"`
}

func Dir() string {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		cfgDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(cfgDir, "tipcharm")
}

// Default returns the configuration used for anything a config file leaves
// out. Paths live under dir.
func Default(dir string) Config {
	return Config{
		Telegram: TelegramConfig{
			AllowedBot:     DefaultAllowedBot,
			SessionDir:     filepath.Join(dir, "tg_session"),
			DeviceModel:    "tipcharm",
			ReceiveTimeout: time.Second,
		},
		CredentialsPath: filepath.Join(dir, "credentials.json"),
		LogLevel:        "info",
		Alert:           alert.DefaultConfig(),
		Event: EventConfig{
			Marker: tips.DefaultMarker,
			Type:   tips.DefaultEventType,
			Symbol: tips.DefaultSymbol,
		},
		Dedupe: DedupeConfig{
			Backend:  dedupe.BackendMemory,
			Capacity: dedupe.DefaultCapacity,
			TTL:      dedupe.DefaultTTL,
			Path:     filepath.Join(dir, "dedupe.db"),
			Prune:    "@hourly",
		},
	}
}

// Load reads a YAML config over the defaults and then applies TIPCHARM_*
// overrides from <dir>/.env and the process environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return parse(path, data)
}

// LoadOrDefault is Load, except a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return parse(path, nil)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return parse(path, data)
}

func parse(path string, data []byte) (*Config, error) {
	dir := filepath.Dir(path)
	cfg := Default(dir)
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}

	env, err := readEnv(filepath.Join(dir, ".env"))
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if strings.TrimSpace(cfg.Alert.Template) == "" {
		cfg.Alert.Template = alert.DefaultTemplate
	}

	return &cfg, nil
}

// readEnv merges the .env file (if any) with the process environment,
// which wins.
func readEnv(path string) (map[string]string, error) {
	env := map[string]string{}
	if _, err := os.Stat(path); err == nil {
		env, err = godotenv.Read(path)
		if err != nil {
			return nil, errors.Wrap(err, "read .env")
		}
	}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, envPrefix) {
			env[k] = v
		}
	}
	return env, nil
}

func (c *Config) applyEnv(env map[string]string) error {
	get := func(name string) (string, bool) {
		v, ok := env[envPrefix+name]
		return v, ok && v != ""
	}

	if v, ok := get("API_ID"); ok {
		id, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "%sAPI_ID", envPrefix)
		}
		c.Telegram.APIID = id
	}
	if v, ok := get("API_HASH"); ok {
		c.Telegram.APIHash = strings.TrimSpace(v)
	}
	if v, ok := get("PHONE"); ok {
		c.Telegram.Phone = strings.TrimSpace(v)
	}
	if v, ok := get("ALLOWED_BOT"); ok {
		c.Telegram.AllowedBot = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := get("METRICS_LISTEN"); ok {
		c.Metrics.Listen = v
	}
	if v, ok := get("DEDUPE_BACKEND"); ok {
		c.Dedupe.Backend = v
	}
	if v, ok := get("REDIS_URL"); ok {
		c.Dedupe.RedisURL = v
	}
	return nil
}
