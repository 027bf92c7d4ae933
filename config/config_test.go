package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
AdminAddress = "lend1qqqsyqcyq5rqwzqfpg9scrgwpugpzysn3tn9vq"

[[assets]]
Symbol = "USDX"
Supported = true
InterestRateBps = 500
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":8645" {
		t.Fatalf("expected default RPC address, got %q", cfg.RPCAddress)
	}
	if cfg.DataDir != "./lendd-data" {
		t.Fatalf("expected default data dir, got %q", cfg.DataDir)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level, got %q", cfg.LogLevel)
	}
	if cfg.Oracle.MaxAgeSeconds != 300 {
		t.Fatalf("expected default oracle max age, got %d", cfg.Oracle.MaxAgeSeconds)
	}
	if cfg.Lending.LiquidationThresholdMilli != 1000 {
		t.Fatalf("expected default threshold, got %d", cfg.Lending.LiquidationThresholdMilli)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
RPCAddres = ":9999"
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "unrecognized keys") {
		t.Fatalf("expected unrecognized key error, got %v", err)
	}
}

func TestLoadRejectsDuplicateAssets(t *testing.T) {
	path := writeConfig(t, `
[[assets]]
Symbol = "USDX"

[[assets]]
Symbol = " usdx "
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "duplicate asset") {
		t.Fatalf("expected duplicate asset error, got %v", err)
	}
}

func TestValidateRejectsExcessiveBonus(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Lending.LiquidationBonusBps = 10_001
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected bonus validation failure")
	}
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Assets) == 0 {
		t.Fatalf("expected seeded default asset")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file written: %v", err)
	}

	// A second load reads the file back untouched.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Assets[0].Symbol != cfg.Assets[0].Symbol {
		t.Fatalf("expected reload to match, got %q vs %q", again.Assets[0].Symbol, cfg.Assets[0].Symbol)
	}
}
