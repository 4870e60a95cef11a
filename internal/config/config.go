package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/viper"
)

// Config is read once at startup. Nothing in the agent writes it back.
type Config struct {
	ControllerURL  string    `mapstructure:"controllerUrl"`
	TerminalIP     string    `mapstructure:"terminalIp"`
	TerminalPort   int       `mapstructure:"terminalPort"`
	TerminalDriver string    `mapstructure:"terminalDriver"` // "mock" or "vendor"
	HTTPAddr       string    `mapstructure:"httpAddr"`
	JournalPath    string    `mapstructure:"journalPath"`
	PresetAmounts  []float64 `mapstructure:"presetAmounts"`

	// Per-operation timeout overrides, seconds. 0 keeps the defaults.
	SaleTimeoutSec      int `mapstructure:"saleTimeoutSec"`
	CardCheckTimeoutSec int `mapstructure:"cardCheckTimeoutSec"`
	CancelTimeoutSec    int `mapstructure:"cancelTimeoutSec"`
}

// Load reads config/agent.json if present, then AGENT_* environment
// overrides. A missing file just means defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("agent")
	v.SetConfigType("json")
	v.AddConfigPath("config")
	v.AddConfigPath(".")

	v.SetDefault("controllerUrl", "ws://ws.localhost/terminal")
	v.SetDefault("terminalIp", "192.168.1.50")
	v.SetDefault("terminalPort", 20002)
	v.SetDefault("terminalDriver", "mock")
	v.SetDefault("httpAddr", ":8089")
	v.SetDefault("journalPath", "transactions.db")
	v.SetDefault("presetAmounts", []float64{5, 10, 20, 50})

	v.SetEnvPrefix("AGENT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *fs.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.TerminalDriver != "mock" && cfg.TerminalDriver != "vendor" {
		return nil, fmt.Errorf("unknown terminal driver %q", cfg.TerminalDriver)
	}
	return &cfg, nil
}
