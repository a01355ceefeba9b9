package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Env is the configuration read from the environment and .env files.
// Command line flags take precedence over it.
type Env struct {
	Network            string        `env:"SAFETX_NETWORK" envDefault:"mainnet"`
	NodeURL            string        `env:"SAFETX_NODE_URL"`
	SignerKey          string        `env:"SAFETX_SIGNER_KEY"`
	Keystore           string        `env:"SAFETX_KEYSTORE"`
	SafeAddress        string        `env:"SAFETX_SAFE_ADDRESS"`
	RelayURL           string        `env:"SAFETX_RELAY_URL"`
	NoRelay            bool          `env:"SAFETX_NO_RELAY"`
	GasPriceMultiplier float64       `env:"SAFETX_GAS_PRICE_MULTIPLIER" envDefault:"1.1"`
	ReceiptTimeout     time.Duration `env:"SAFETX_RECEIPT_TIMEOUT" envDefault:"3m"`
	RelayPollInterval  time.Duration `env:"SAFETX_RELAY_POLL_INTERVAL" envDefault:"5s"`
	Debug              bool          `env:"SAFETX_DEBUG"`
	Origin             string        `env:"SAFETX_ORIGIN" envDefault:"safetx"`
}

// Flag bound values, set by cmd before any command runs.
var (
	Network     string
	NodeURL     string
	SignerKey   string
	Keystores   []string
	SafeAddress string
	RelayURL    string
	NoRelay     bool
	Debug       bool
	Yes         bool

	GasPriceMultiplier float64
	ReceiptTimeout     time.Duration
)

// LoadDotEnv loads .env from the working directory and from the directory
// of the executable. Missing files are not an error, variables already set
// in the environment win.
func LoadDotEnv() []string {
	loaded := []string{}
	candidates := []string{".env"}
	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), ".env"))
	}
	for _, path := range candidates {
		if err := godotenv.Load(path); err == nil {
			loaded = append(loaded, path)
		}
	}
	return loaded
}

// Parse reads Env from the process environment.
func Parse() (Env, error) {
	cfg := Env{}
	if err := env.Parse(&cfg); err != nil {
		return Env{}, fmt.Errorf("couldn't parse environment: %w", err)
	}
	if cfg.GasPriceMultiplier <= 0 {
		return Env{}, fmt.Errorf("SAFETX_GAS_PRICE_MULTIPLIER must be positive, got %v", cfg.GasPriceMultiplier)
	}
	return cfg, nil
}
