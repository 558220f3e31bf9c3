package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds all application configuration. Precedence, lowest first:
// built-in defaults, an optional YAML file, environment variables.
type Config struct {
	// HTTP
	ListenAddr  string
	MetricsAddr string

	// Market
	TickInterval time.Duration
	EquityCount  int
	Seed         int64 // 0 seeds from the clock

	// Storage
	StoreBackend  string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Accounts
	Currency       string
	OpeningBalance decimal.Decimal
	MinWithdrawal  decimal.Decimal
	WebhookURL     string // deposits and withdrawals are POSTed here; empty logs them

	LogLevel string
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		ListenAddr:     ":8080",
		MetricsAddr:    ":9090",
		TickInterval:   2 * time.Second,
		EquityCount:    5000,
		StoreBackend:   BackendMemory,
		SQLitePath:     "data/tradesim.db",
		RedisAddr:      "localhost:6379",
		Currency:       "PKR",
		OpeningBalance: decimal.NewFromInt(100),
		MinWithdrawal:  decimal.NewFromInt(800),
		LogLevel:       "info",
	}
}

// Load reads configuration from environment variables over the defaults.
func Load() *Config {
	cfg := Defaults()
	cfg.applyEnv()
	return cfg
}

// fileConfig mirrors Config in the YAML file. Absent keys keep their
// current value.
type fileConfig struct {
	ListenAddr     *string `yaml:"listen_addr"`
	MetricsAddr    *string `yaml:"metrics_addr"`
	TickIntervalMS *int    `yaml:"tick_interval_ms"`
	EquityCount    *int    `yaml:"equity_count"`
	Seed           *int64  `yaml:"seed"`
	Store          struct {
		Backend    *string `yaml:"backend"`
		SQLitePath *string `yaml:"sqlite_path"`
		Redis      struct {
			Addr     *string `yaml:"addr"`
			Password *string `yaml:"password"`
			DB       *int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"store"`
	Accounts struct {
		Currency       *string `yaml:"currency"`
		OpeningBalance *string `yaml:"opening_balance"`
		MinWithdrawal  *string `yaml:"min_withdrawal"`
		WebhookURL     *string `yaml:"webhook_url"`
	} `yaml:"accounts"`
	LogLevel *string `yaml:"log_level"`
}

// LoadFile reads the YAML file at path over the defaults, then applies
// environment variables on top.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	cfg := Defaults()
	if err := cfg.applyFile(&fc); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyFile(fc *fileConfig) error {
	setString(&c.ListenAddr, fc.ListenAddr)
	setString(&c.MetricsAddr, fc.MetricsAddr)
	if fc.TickIntervalMS != nil {
		c.TickInterval = time.Duration(*fc.TickIntervalMS) * time.Millisecond
	}
	if fc.EquityCount != nil {
		c.EquityCount = *fc.EquityCount
	}
	if fc.Seed != nil {
		c.Seed = *fc.Seed
	}
	setString(&c.StoreBackend, fc.Store.Backend)
	setString(&c.SQLitePath, fc.Store.SQLitePath)
	setString(&c.RedisAddr, fc.Store.Redis.Addr)
	setString(&c.RedisPassword, fc.Store.Redis.Password)
	if fc.Store.Redis.DB != nil {
		c.RedisDB = *fc.Store.Redis.DB
	}
	setString(&c.Currency, fc.Accounts.Currency)
	if err := setDecimal(&c.OpeningBalance, fc.Accounts.OpeningBalance); err != nil {
		return fmt.Errorf("opening_balance: %w", err)
	}
	if err := setDecimal(&c.MinWithdrawal, fc.Accounts.MinWithdrawal); err != nil {
		return fmt.Errorf("min_withdrawal: %w", err)
	}
	setString(&c.WebhookURL, fc.Accounts.WebhookURL)
	setString(&c.LogLevel, fc.LogLevel)
	return nil
}

func (c *Config) applyEnv() {
	c.ListenAddr = getEnv("TRADESIM_LISTEN_ADDR", c.ListenAddr)
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)
	c.TickInterval = time.Duration(getEnvInt("TICK_INTERVAL_MS", int(c.TickInterval/time.Millisecond))) * time.Millisecond
	c.EquityCount = getEnvInt("EQUITY_COUNT", c.EquityCount)
	c.Seed = int64(getEnvInt("SIM_SEED", int(c.Seed)))

	c.StoreBackend = strings.ToLower(getEnv("STORE_BACKEND", c.StoreBackend))
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)

	c.Currency = strings.ToUpper(getEnv("CURRENCY", c.Currency))
	c.OpeningBalance = getEnvDecimal("OPENING_BALANCE", c.OpeningBalance)
	c.MinWithdrawal = getEnvDecimal("MIN_WITHDRAWAL", c.MinWithdrawal)
	c.WebhookURL = getEnv("WEBHOOK_URL", c.WebhookURL)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendRedis:
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("config: sqlite backend needs SQLITE_PATH")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.StoreBackend)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("config: tick interval must be positive, got %s", c.TickInterval)
	}
	if c.EquityCount <= 0 {
		return fmt.Errorf("config: equity count must be positive, got %d", c.EquityCount)
	}
	if !c.OpeningBalance.IsPositive() {
		return fmt.Errorf("config: opening balance must be positive, got %s", c.OpeningBalance)
	}
	if c.MinWithdrawal.IsNegative() {
		return fmt.Errorf("config: minimum withdrawal must not be negative, got %s", c.MinWithdrawal)
	}
	if c.Currency == "" {
		return fmt.Errorf("config: empty currency")
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDecimal(dst *decimal.Decimal, v *string) error {
	if v == nil {
		return nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(*v))
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		slog.Warn("config: ignoring invalid integer", "key", key, "value", v)
		return fallback
	}
	return n
}

func getEnvDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		slog.Warn("config: ignoring invalid decimal", "key", key, "value", v)
		return fallback
	}
	return d
}
