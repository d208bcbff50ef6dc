package infra

import (
	"os"
	"path/filepath"
	"testing"

	"market_sentry/internal/domain"
)

const validYAML = `
app:
  name: "Market Sentry"
  run_mode: "continuous"
monitor:
  minute:
    crypto:
      - { name: "比特币", symbol: "BTCUSDT", market: "CRYPTO", threshold: 2.0 }
    stocks:
      - { name: "贵州茅台", symbol: "600519", market: "SH", threshold: 2.0 }
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.App.Name != "Market Sentry" {
		t.Errorf("App.Name = %q", cfg.App.Name)
	}
	if len(cfg.Monitor.Minute.Crypto) != 1 || cfg.Monitor.Minute.Crypto[0].Symbol != "BTCUSDT" {
		t.Errorf("crypto instruments = %+v", cfg.Monitor.Minute.Crypto)
	}
	if cfg.Monitor.Minute.Stocks[0].Name != "贵州茅台" {
		t.Errorf("stock name = %q", cfg.Monitor.Minute.Stocks[0].Name)
	}

	// Defaults fill the omitted sections.
	if cfg.API.Binance.RestURL == "" || cfg.API.ITick.BaseURL == "" {
		t.Error("API URL defaults not applied")
	}
	if cfg.Producers.IntervalSec != 60 {
		t.Errorf("IntervalSec default = %d, want 60", cfg.Producers.IntervalSec)
	}
	if cfg.Producers.DrainTimeoutSec != 5 {
		t.Errorf("DrainTimeoutSec default = %d, want 5", cfg.Producers.DrainTimeoutSec)
	}
	if cfg.Database.Path == "" {
		t.Error("database path default not applied")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WECOM_WEBHOOK_URL", "https://example.invalid/hook")
	t.Setenv("ITICK_TOKEN", "secret-token")
	t.Setenv("MARKET_SENTRY_DB_PATH", "/tmp/override.db")

	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.WeCom.WebhookURL != "https://example.invalid/hook" {
		t.Errorf("WebhookURL = %q", cfg.WeCom.WebhookURL)
	}
	if cfg.API.ITick.Token != "secret-token" {
		t.Errorf("ITick.Token = %q", cfg.API.ITick.Token)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
}

func TestValidate(t *testing.T) {
	t.Run("rejects unknown run mode", func(t *testing.T) {
		bad := `
app:
  run_mode: "burst"
monitor:
  minute:
    crypto:
      - { symbol: "BTCUSDT", market: "CRYPTO" }
`
		if _, err := LoadConfig(writeConfig(t, bad)); err == nil {
			t.Error("unknown run mode accepted")
		}
	})

	t.Run("rejects empty monitor set", func(t *testing.T) {
		if _, err := LoadConfig(writeConfig(t, "app:\n  run_mode: once\n")); err == nil {
			t.Error("config without instruments accepted")
		}
	})

	t.Run("rejects instrument without symbol", func(t *testing.T) {
		bad := `
monitor:
  minute:
    crypto:
      - { name: "nameless", market: "CRYPTO", threshold: 2.0 }
`
		if _, err := LoadConfig(writeConfig(t, bad)); err == nil {
			t.Error("instrument without symbol accepted")
		}
	})

	t.Run("rejects negative threshold", func(t *testing.T) {
		bad := `
monitor:
  minute:
    crypto:
      - { symbol: "BTCUSDT", market: "CRYPTO", threshold: -1.0 }
`
		if _, err := LoadConfig(writeConfig(t, bad)); err == nil {
			t.Error("negative threshold accepted")
		}
	})
}

func TestGroup(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	minute := cfg.Group(domain.FrequencyMinute)
	if len(minute.All()) != 2 {
		t.Errorf("minute group size = %d, want 2", len(minute.All()))
	}
	if len(cfg.Group(domain.FrequencyDaily).All()) != 0 {
		t.Error("daily group should be empty")
	}
}

func TestAssetGroupAll(t *testing.T) {
	g := AssetGroup{
		Stocks:  []domain.InstrumentSpec{{Symbol: "600519", Market: "SH"}},
		Crypto:  []domain.InstrumentSpec{{Symbol: "BTCUSDT", Market: "CRYPTO"}},
		Futures: []domain.InstrumentSpec{{Symbol: "AU0", Market: "FUT"}},
	}
	all := g.All()
	if len(all) != 3 {
		t.Fatalf("All() len = %d, want 3", len(all))
	}
}
