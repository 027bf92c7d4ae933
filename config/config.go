package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config captures the runtime configuration for the lending daemon.
type Config struct {
	RPCAddress   string `toml:"RPCAddress"`
	DataDir      string `toml:"DataDir"`
	Environment  string `toml:"Environment"`
	LogLevel     string `toml:"LogLevel"`
	AdminAddress string `toml:"AdminAddress"`

	Oracle  OracleConfig  `toml:"oracle"`
	Lending LendingConfig `toml:"lending"`
	Assets  []AssetConfig `toml:"assets"`
}

// OracleConfig bounds quote freshness for the valuation oracle.
type OracleConfig struct {
	MaxAgeSeconds uint64 `toml:"MaxAgeSeconds"`
}

// LendingConfig carries the liquidation risk parameters.
type LendingConfig struct {
	// LiquidationThresholdMilli is the health factor boundary in
	// thousandths: 1000 means positions below 1.0 are liquidatable.
	LiquidationThresholdMilli uint64 `toml:"LiquidationThresholdMilli"`
	LiquidationBonusBps       uint64 `toml:"LiquidationBonusBps"`
}

// AssetConfig describes one supported reserve.
type AssetConfig struct {
	Symbol          string `toml:"Symbol"`
	Supported       bool   `toml:"Supported"`
	InterestRateBps uint64 `toml:"InterestRateBps"`
}

// Load reads the configuration from path, creating a default file when none
// exists. Unknown keys are rejected so typos fail loudly.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config: unrecognized keys: %s", strings.Join(keys, ", "))
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8645"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./lendd-data"
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = "info"
	}
	if c.Oracle.MaxAgeSeconds == 0 {
		c.Oracle.MaxAgeSeconds = 300
	}
	if c.Lending.LiquidationThresholdMilli == 0 {
		c.Lending.LiquidationThresholdMilli = 1000
	}
}

// Validate rejects configurations that cannot produce a working daemon.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir required")
	}
	if c.Lending.LiquidationBonusBps > 10_000 {
		return fmt.Errorf("config: LiquidationBonusBps must not exceed 10000")
	}
	seen := make(map[string]struct{}, len(c.Assets))
	for _, asset := range c.Assets {
		symbol := strings.ToUpper(strings.TrimSpace(asset.Symbol))
		if symbol == "" {
			return fmt.Errorf("config: asset symbol required")
		}
		if _, dup := seen[symbol]; dup {
			return fmt.Errorf("config: duplicate asset %s", symbol)
		}
		seen[symbol] = struct{}{}
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		Assets: []AssetConfig{{Symbol: "USDX", Supported: true, InterestRateBps: 500}},
	}
	cfg.applyDefaults()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
