package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config captures the daemon's runtime configuration.
type Config struct {
	ListenAddress      string  `toml:"ListenAddress"`
	DataDir            string  `toml:"DataDir"`
	AdminAddress       string  `toml:"AdminAddress"`
	FeeRateBps         uint32  `toml:"FeeRateBps"`
	MinTimelock        uint64  `toml:"MinTimelock"`
	MaxTimelock        uint64  `toml:"MaxTimelock"`
	RateLimitPerMinute float64 `toml:"RateLimitPerMinute"`
	RateLimitBurst     int     `toml:"RateLimitBurst"`
}

const defaultConfig = `# crossfill settlement daemon configuration.
ListenAddress = "127.0.0.1:8645"
DataDir = "./crossfill-data"
# Hex-encoded 20-byte admin address authorized for fee configuration and sweeps.
AdminAddress = ""
# Protocol fee in basis points, at most 1000 (10%).
FeeRateBps = 30
# Bounds on (timelock - now) at order creation, in ledger-time units.
MinTimelock = 100
MaxTimelock = 14400
# Per-client RPC rate limiting.
RateLimitPerMinute = 120.0
RateLimitBurst = 20
`

// Load reads the configuration from path, writing a commented default file
// when none exists yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if err := os.WriteFile(path, []byte(defaultConfig), 0o644); err != nil {
		return nil, err
	}
	cfg := &Config{}
	if _, err := toml.Decode(defaultConfig, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configured values against protocol bounds.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("ListenAddress must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir must not be empty")
	}
	if c.FeeRateBps > 1000 {
		return fmt.Errorf("FeeRateBps %d above maximum 1000", c.FeeRateBps)
	}
	if c.MinTimelock == 0 {
		return fmt.Errorf("MinTimelock must be positive")
	}
	if c.MaxTimelock <= c.MinTimelock {
		return fmt.Errorf("MaxTimelock must exceed MinTimelock")
	}
	if strings.TrimSpace(c.AdminAddress) != "" {
		if _, err := c.Admin(); err != nil {
			return err
		}
	}
	return nil
}

// Admin decodes the configured admin address.
func (c *Config) Admin() ([20]byte, error) {
	var admin [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(c.AdminAddress), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return admin, fmt.Errorf("AdminAddress: %w", err)
	}
	if len(raw) != 20 {
		return admin, fmt.Errorf("AdminAddress: expected 20 bytes, got %d", len(raw))
	}
	copy(admin[:], raw)
	return admin, nil
}
