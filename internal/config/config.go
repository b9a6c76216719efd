// Package config loads and validates the feed process's configuration:
// which exchange account to use, which symbols and k-line periods to
// track, and where to optionally bridge events to NATS.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BullionBear/sequex/internal/kline"
	"github.com/BullionBear/sequex/pkg/binance"
)

// ErrEmptyMarkets is returned by Validate when no symbols are configured.
var ErrEmptyMarkets = errors.New("config: markets list must not be empty")

// NATSConfig configures the optional event-bus-to-NATS bridge. A nil
// *NATSConfig on Config means the bridge is not started.
type NATSConfig struct {
	URL           string `json:"url"`
	SubjectPrefix string `json:"subject_prefix"`
}

// Config is the feed process's top-level configuration.
type Config struct {
	Binance binance.Config `json:"binance"`

	// Markets is the list of symbols to track, e.g. ["BTCUSDT", "ETHUSDT"].
	Markets []string `json:"markets"`
	// Periods is the set of k-line periods to track, in minutes. Each
	// value must be one of kline.Periods.
	Periods []int `json:"periods"`

	// TradeBookSize bounds each symbol's market and own-trades tapes.
	// 0 means unbounded.
	TradeBookSize int `json:"trade_book_size"`
	// KlineHistoryLimit bounds how many historical rows are requested per
	// period at startup.
	KlineHistoryLimit int `json:"kline_history_limit"`

	// SnapshotTimeout bounds each REST call the engine issues at startup.
	SnapshotTimeout time.Duration `json:"snapshot_timeout"`

	NATS *NATSConfig `json:"nats,omitempty"`

	Development bool `json:"development"`
}

// Default returns a Config with sane defaults and no markets configured;
// callers must set Markets and Periods before use.
func Default() *Config {
	return &Config{
		Binance:           *binance.DefaultConfig(),
		TradeBookSize:     1000,
		KlineHistoryLimit: 500,
		SnapshotTimeout:   10 * time.Second,
	}
}

// Load reads and validates a JSON config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for the errors the engine would
// otherwise only discover at start: an empty market list, or an
// unrecognized k-line period.
func (c *Config) Validate() error {
	if len(c.Markets) == 0 {
		return ErrEmptyMarkets
	}
	for _, p := range c.Periods {
		if _, err := kline.Humanize(kline.Period(p)); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

// KlinePeriods converts Periods to kline.Period values.
func (c *Config) KlinePeriods() []kline.Period {
	out := make([]kline.Period, len(c.Periods))
	for i, p := range c.Periods {
		out[i] = kline.Period(p)
	}
	return out
}
