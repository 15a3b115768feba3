package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"callbingo/internal/core"
)

var validBackends = []string{"memory", "sqlite", "redis"}

type Config struct {
	// HTTP server
	Port string

	// Backend selection
	DataBackend  string
	SQLiteDBPath string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// AMQP, optional
	AMQPURL          string
	AMQPExchange     string
	AMQPEffectsQueue string
	AMQPLedgerQueue  string

	// Google Sheets ledger mirror, optional
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Caching and worker
	StandingsCacheTTL time.Duration
	ReconcileInterval time.Duration

	RateLimitPerMinute int
	LogLevel           string

	// ConfigPath is the optional YAML file with game content.
	ConfigPath string
	Game       Game
}

// Game is the content that can be customised from the YAML file.
type Game struct {
	CenterPhrase string
	Phrases      []string
	Quotes       []string
	InitialFunds core.InitialFunds
}

func DefaultGame() Game {
	return Game{
		CenterPhrase: core.DefaultCenterPhrase,
		Phrases:      slices.Clone(core.DefaultPhrases),
		Quotes:       slices.Clone(core.DefaultQuotes),
		InitialFunds: core.DefaultInitialFunds(),
	}
}

// Load reads the environment and, when BINGO_CONFIG_PATH is set, the YAML
// game file. Only an unreadable or malformed file is an error.
func Load() (*Config, error) {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/callbingo.db"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisPrefix:   getEnv("REDIS_PREFIX", "callbingo:"),

		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "callbingo"),
		AMQPEffectsQueue: getEnv("AMQP_EFFECTS_QUEUE", "bingo_effects"),
		AMQPLedgerQueue:  getEnv("AMQP_LEDGER_QUEUE", "bingo_ledger_sync"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Ledger"),

		StandingsCacheTTL: getEnvDuration("STANDINGS_CACHE_TTL", 5*time.Minute),
		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", 10*time.Minute),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		LogLevel:           getEnv("LOG_LEVEL", "info"),

		ConfigPath: getEnv("BINGO_CONFIG_PATH", ""),
		Game:       DefaultGame(),
	}

	if cfg.ConfigPath != "" {
		data, err := os.ReadFile(cfg.ConfigPath)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := cfg.applyYAML(data); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", cfg.ConfigPath, err)
		}
	}
	return cfg, nil
}

type fileConfig struct {
	Game struct {
		CenterPhrase string   `yaml:"center_phrase"`
		Phrases      []string `yaml:"phrases"`
		Quotes       []string `yaml:"quotes"`
	} `yaml:"game"`
	InitialFunds *core.InitialFunds `yaml:"initial_funds"`
}

// applyYAML overrides only the keys present in the file.
func (c *Config) applyYAML(data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}
	if s := strings.TrimSpace(fc.Game.CenterPhrase); s != "" {
		c.Game.CenterPhrase = s
	}
	if len(fc.Game.Phrases) > 0 {
		c.Game.Phrases = fc.Game.Phrases
	}
	if len(fc.Game.Quotes) > 0 {
		c.Game.Quotes = fc.Game.Quotes
	}
	if fc.InitialFunds != nil {
		c.Game.InitialFunds = *fc.InitialFunds
	}
	return nil
}

// AMQPEnabled reports whether a broker URL is configured.
func (c *Config) AMQPEnabled() bool { return c.AMQPURL != "" }

// Validate validates the configuration and returns every problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}
	if c.DataBackend == "sqlite" && strings.TrimSpace(c.SQLiteDBPath) == "" {
		errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
	}
	if c.DataBackend == "redis" {
		if strings.TrimSpace(c.RedisAddr) == "" {
			errors = append(errors, "Redis address cannot be empty when using redis backend")
		}
		if c.RedisDB < 0 {
			errors = append(errors, fmt.Sprintf("invalid redis db %d: must not be negative", c.RedisDB))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPEffectsQueue == "" || c.AMQPLedgerQueue == "" {
			errors = append(errors, "AMQP queue names cannot be empty when AMQP URL is provided")
		} else if c.AMQPEffectsQueue == c.AMQPLedgerQueue {
			errors = append(errors, "AMQP effects and ledger queues must differ")
		}
	}

	if c.StandingsCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid standings cache TTL %v: must not be negative", c.StandingsCacheTTL))
	}
	if c.ReconcileInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid reconcile interval %v: must be at least 1 second", c.ReconcileInterval))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMinute))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if n := distinctPhrases(c.Game.Phrases); n < core.GridSize-1 {
		errors = append(errors, fmt.Sprintf("phrase pool has %d distinct phrases: need at least %d", n, core.GridSize-1))
	}
	if strings.TrimSpace(c.Game.CenterPhrase) == "" {
		errors = append(errors, "center phrase cannot be empty")
	}
	f := c.Game.InitialFunds
	if f.Me < 0 || f.Opponent1 < 0 || f.Opponent2 < 0 {
		errors = append(errors, "initial funds must not be negative")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func distinctPhrases(pool []string) int {
	seen := map[string]struct{}{}
	for _, p := range pool {
		if p = strings.TrimSpace(p); p != "" {
			seen[p] = struct{}{}
		}
	}
	return len(seen)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
