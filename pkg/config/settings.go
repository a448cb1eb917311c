package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default operational values. The pacing delay matches the external gift-send
// rate the delivery transport tolerates; the settle delay covers the order
// source's own propagation lag before an order is re-read.
const (
	DefaultPacingDelayMs    = 2000
	DefaultSettleDelayMs    = 1000
	DefaultStorePath        = "fulfiller/store.json"
	DefaultDBPath           = "fulfiller/history.db"
	DefaultEventLogDir      = "fulfiller/events"
	DefaultOrderURLTemplate = "https://funpay.com/orders/%s/"
)

// Settings are the operational knobs for one service instance. Loaded once at
// startup from YAML; never mutated at runtime.
type Settings struct {
	PacingDelayMs    int    `yaml:"pacing_delay_ms"`
	SettleDelayMs    int    `yaml:"settle_delay_ms"`
	StorePath        string `yaml:"store_path"`
	DBPath           string `yaml:"db_path"`
	EventLogDir      string `yaml:"event_log_dir"`
	OrderURLTemplate string `yaml:"order_url_template"`
}

// DefaultSettings returns the shipped operational defaults.
func DefaultSettings() Settings {
	return Settings{
		PacingDelayMs:    DefaultPacingDelayMs,
		SettleDelayMs:    DefaultSettleDelayMs,
		StorePath:        DefaultStorePath,
		DBPath:           DefaultDBPath,
		EventLogDir:      DefaultEventLogDir,
		OrderURLTemplate: DefaultOrderURLTemplate,
	}
}

// PacingDelay is the pause between individual gift sends.
func (s Settings) PacingDelay() time.Duration {
	return time.Duration(s.PacingDelayMs) * time.Millisecond
}

// SettleDelay is the pause before an enqueued order is first re-read.
func (s Settings) SettleDelay() time.Duration {
	return time.Duration(s.SettleDelayMs) * time.Millisecond
}

// LoadSettings reads settings from a YAML file, filling any omitted field
// with its default. A missing file yields pure defaults.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return settings, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid settings %s: %w", path, err)
	}
	return settings, nil
}

// Validate rejects values that would stall or hammer the collaborators.
func (s Settings) Validate() error {
	if s.PacingDelayMs < 0 {
		return fmt.Errorf("pacing_delay_ms cannot be negative")
	}
	if s.SettleDelayMs < 0 {
		return fmt.Errorf("settle_delay_ms cannot be negative")
	}
	if s.StorePath == "" {
		return fmt.Errorf("store_path cannot be empty")
	}
	if s.DBPath == "" {
		return fmt.Errorf("db_path cannot be empty")
	}
	return nil
}
