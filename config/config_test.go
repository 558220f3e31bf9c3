package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	if cfg.ListenAddr != ":8080" || cfg.TickInterval != 2*time.Second || cfg.EquityCount != 5000 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if !cfg.OpeningBalance.Equal(decimal.NewFromInt(100)) || !cfg.MinWithdrawal.Equal(decimal.NewFromInt(800)) {
		t.Errorf("unexpected account defaults %s / %s", cfg.OpeningBalance, cfg.MinWithdrawal)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("TICK_INTERVAL_MS", "500")
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("OPENING_BALANCE", "250.5")
	t.Setenv("EQUITY_COUNT", "not-a-number")
	t.Setenv("CURRENCY", "usd")

	cfg := Load()
	if cfg.TickInterval != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %s", cfg.TickInterval)
	}
	if cfg.StoreBackend != BackendSQLite {
		t.Errorf("expected sqlite, got %q", cfg.StoreBackend)
	}
	if !cfg.OpeningBalance.Equal(decimal.RequireFromString("250.5")) {
		t.Errorf("expected 250.5, got %s", cfg.OpeningBalance)
	}
	if cfg.EquityCount != 5000 {
		t.Errorf("invalid env value should keep default, got %d", cfg.EquityCount)
	}
	if cfg.Currency != "USD" {
		t.Errorf("expected USD, got %q", cfg.Currency)
	}
}

func TestLoadFile_OverlayThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tradesim.yaml")
	yml := `
listen_addr: ":9000"
tick_interval_ms: 1000
equity_count: 250
store:
  backend: redis
  redis:
    addr: "redis:6379"
    db: 2
accounts:
  opening_balance: "150"
  min_withdrawal: "500"
  webhook_url: "http://ops.local/hook"
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("REDIS_DB", "5")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.ListenAddr != ":9000" || cfg.TickInterval != time.Second || cfg.EquityCount != 250 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.StoreBackend != BackendRedis || cfg.RedisAddr != "redis:6379" {
		t.Errorf("store section not applied: %+v", cfg)
	}
	if cfg.RedisDB != 5 {
		t.Errorf("env should win over file, got db %d", cfg.RedisDB)
	}
	if !cfg.MinWithdrawal.Equal(decimal.NewFromInt(500)) {
		t.Errorf("expected min withdrawal 500, got %s", cfg.MinWithdrawal)
	}
	if cfg.WebhookURL != "http://ops.local/hook" {
		t.Errorf("expected webhook url from file, got %q", cfg.WebhookURL)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("absent key should keep default, got %q", cfg.MetricsAddr)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("accounts:\n  opening_balance: \"lots\"\n"), 0o644)
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for invalid decimal")
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.StoreBackend = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Error("expected unknown backend to fail")
	}
	cfg = Defaults()
	cfg.TickInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected zero tick interval to fail")
	}
}
