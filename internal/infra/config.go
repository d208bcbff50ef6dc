package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"market_sentry/internal/domain"
)

const (
	// DefaultUserAgent is a browser-like user agent string to avoid bot detection
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Run modes for the orchestrator.
const (
	RunModeContinuous = "continuous"
	RunModeOnce       = "once"
)

// AssetGroup lists the monitored instruments of one frequency tier.
type AssetGroup struct {
	Stocks  []domain.InstrumentSpec `yaml:"stocks"`
	Crypto  []domain.InstrumentSpec `yaml:"crypto"`
	Futures []domain.InstrumentSpec `yaml:"futures"`
}

// All returns every instrument in the group.
func (g AssetGroup) All() []domain.InstrumentSpec {
	out := make([]domain.InstrumentSpec, 0, len(g.Stocks)+len(g.Crypto)+len(g.Futures))
	out = append(out, g.Stocks...)
	out = append(out, g.Crypto...)
	out = append(out, g.Futures...)
	return out
}

// Config holds all application settings. Sensitive values are overridden
// from environment variables after the YAML file is loaded.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
		RunMode string `yaml:"run_mode"`
	} `yaml:"app"`

	API struct {
		Binance struct {
			RestURL      string `yaml:"rest_url"`
			WSURL        string `yaml:"ws_url"`
			UseWebSocket bool   `yaml:"use_websocket"`
		} `yaml:"binance"`
		ITick struct {
			BaseURL string `yaml:"base_url"`
			Token   string `yaml:"token"`
		} `yaml:"itick"`
	} `yaml:"api"`

	WeCom struct {
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"wecom"`

	Monitor struct {
		Minute AssetGroup `yaml:"minute"`
		Daily  AssetGroup `yaml:"daily"`
		Weekly AssetGroup `yaml:"weekly"`
	} `yaml:"monitor"`

	Producers struct {
		IntervalSec     int  `yaml:"interval_sec"`
		RunAtStart      bool `yaml:"run_at_start"`
		DrainTimeoutSec int  `yaml:"drain_timeout_sec"`
	} `yaml:"producers"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Group returns the asset group configured for the given frequency.
func (c *Config) Group(freq domain.Frequency) AssetGroup {
	switch freq {
	case domain.FrequencyDaily:
		return c.Monitor.Daily
	case domain.FrequencyWeekly:
		return c.Monitor.Weekly
	default:
		return c.Monitor.Minute
	}
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.RunMode == "" {
		c.App.RunMode = RunModeContinuous
	}
	if c.API.Binance.RestURL == "" {
		c.API.Binance.RestURL = "https://api.binance.com"
	}
	if c.API.Binance.WSURL == "" {
		c.API.Binance.WSURL = "wss://stream.binance.com:9443"
	}
	if c.API.ITick.BaseURL == "" {
		c.API.ITick.BaseURL = "https://api.itick.org"
	}
	if c.Producers.IntervalSec == 0 {
		c.Producers.IntervalSec = 60
	}
	if c.Producers.DrainTimeoutSec == 0 {
		c.Producers.DrainTimeoutSec = 5
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/market_sentry.db"
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.App.RunMode != RunModeContinuous && c.App.RunMode != RunModeOnce {
		return &domain.ConfigError{Field: "app.run_mode",
			Err: fmt.Errorf("must be %q or %q, got %q", RunModeContinuous, RunModeOnce, c.App.RunMode)}
	}
	if c.Producers.IntervalSec <= 0 {
		return &domain.ConfigError{Field: "producers.interval_sec",
			Err: fmt.Errorf("must be positive, got %d", c.Producers.IntervalSec)}
	}

	total := 0
	for _, g := range []AssetGroup{c.Monitor.Minute, c.Monitor.Daily, c.Monitor.Weekly} {
		for _, inst := range g.All() {
			total++
			if inst.Symbol == "" {
				return &domain.ConfigError{Field: "monitor",
					Err: fmt.Errorf("instrument with empty symbol")}
			}
			if inst.Threshold < 0 {
				return &domain.ConfigError{Field: "monitor",
					Err: fmt.Errorf("negative threshold for %s", inst.Symbol)}
			}
		}
	}
	if total == 0 {
		return &domain.ConfigError{Field: "monitor",
			Err: fmt.Errorf("at least one monitored instrument is required")}
	}

	return nil
}

// overrideWithEnv replaces configured values when environment variables exist.
func overrideWithEnv(cfg *Config) {
	if url := os.Getenv("WECOM_WEBHOOK_URL"); url != "" {
		cfg.WeCom.WebhookURL = url
	}
	if token := os.Getenv("ITICK_TOKEN"); token != "" {
		cfg.API.ITick.Token = token
	}
	if path := os.Getenv("MARKET_SENTRY_DB_PATH"); path != "" {
		cfg.Database.Path = path
	}
}
