package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testYAML = `
feeds:
  - name: dr
    url: https://www.dr.dk/nyheder/service/feeds/allenyheder
  - name: tv2
    url: https://nyhederne.tv2.dk/rss

keywords:
  priority: ["breaking"]
  general: ["danmark"]
  exclude: ["sponsoreret"]

scoring:
  priority_weight: 4
  video_bonus: 6

summary:
  min: 200
  max: 260

lookback_hours: 3
min_body_length: 250

selection:
  mode: balanced
  trial_queue_size: 5
`

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "newsbot.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_TOKEN", "tok")
	t.Setenv("TELEGRAM_CHAT_ID", "123")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SCHEDULE_CRON", "")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CONFIG_PATH", writeConfigFile(t, testYAML))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}

	if len(cfg.Feeds) != 2 || cfg.Feeds[0].Name != "dr" {
		t.Errorf("feeds = %v", cfg.Feeds)
	}
	if cfg.PriorityWeight != 4 {
		t.Errorf("PriorityWeight = %v, want file value 4", cfg.PriorityWeight)
	}
	if cfg.EconomicWeight != 0.5 {
		t.Errorf("EconomicWeight = %v, want default 0.5", cfg.EconomicWeight)
	}
	if cfg.VideoBonus != 6 || cfg.ImageBonus != 3 {
		t.Errorf("bonuses = %v/%v, want 6/3", cfg.VideoBonus, cfg.ImageBonus)
	}
	if cfg.SummaryMinLen != 200 || cfg.SummaryMaxLen != 260 {
		t.Errorf("summary band = [%d, %d], want [200, 260]", cfg.SummaryMinLen, cfg.SummaryMaxLen)
	}
	if cfg.Lookback != 3*time.Hour {
		t.Errorf("Lookback = %v, want 3h", cfg.Lookback)
	}
	if cfg.MinBodyLength != 250 {
		t.Errorf("MinBodyLength = %d, want 250", cfg.MinBodyLength)
	}
	if cfg.Selection.Mode != "balanced" || cfg.Selection.TrialQueueSize != 5 {
		t.Errorf("selection = %+v", cfg.Selection)
	}
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CONFIG_PATH", writeConfigFile(t, "feeds:\n  - name: dr\n    url: https://dr.dk/rss\n"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}

	if cfg.SummaryMinLen != 240 || cfg.SummaryMaxLen != 280 || cfg.PostHardLimit != 280 {
		t.Errorf("summary defaults = %d/%d/%d", cfg.SummaryMinLen, cfg.SummaryMaxLen, cfg.PostHardLimit)
	}
	if cfg.Lookback != 2*time.Hour {
		t.Errorf("Lookback default = %v", cfg.Lookback)
	}
	if cfg.MinBodyLength != 300 {
		t.Errorf("MinBodyLength default = %d", cfg.MinBodyLength)
	}
	if cfg.RunAttempts != 3 {
		t.Errorf("RunAttempts default = %d", cfg.RunAttempts)
	}
	if cfg.Selection.Mode != "linear" {
		t.Errorf("selection mode default = %q", cfg.Selection.Mode)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CONFIG_PATH", writeConfigFile(t, "feeds:\n  - name: dr\n    url: https://dr.dk/rss\n"))
	t.Setenv("HISTORY_RETENTION", "50")
	t.Setenv("RUN_ATTEMPTS", "5")
	t.Setenv("RUN_RETRY_DELAY", "10s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}
	if cfg.HistoryRetention != 50 {
		t.Errorf("HistoryRetention = %d, want 50", cfg.HistoryRetention)
	}
	if cfg.RunAttempts != 5 {
		t.Errorf("RunAttempts = %d, want 5", cfg.RunAttempts)
	}
	if cfg.RunRetryDelay != 10*time.Second {
		t.Errorf("RunRetryDelay = %v, want 10s", cfg.RunRetryDelay)
	}
}

func validConfig() *Config {
	return &Config{
		TelegramToken:  "tok",
		TelegramChatID: "123",
		GeminiAPIKey:   "key",
		Feeds:          []FeedSource{{Name: "dr", URL: "https://dr.dk/rss"}},
		SummaryMaxLen:  280,
		PostHardLimit:  280,
		RunAttempts:    3,
		Selection:      Selection{Mode: "linear"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing token", func(c *Config) { c.TelegramToken = "" }, true},
		{"missing chat id", func(c *Config) { c.TelegramChatID = "" }, true},
		{"no summarizer key", func(c *Config) { c.GeminiAPIKey = "" }, true},
		{"openai key suffices", func(c *Config) { c.GeminiAPIKey = ""; c.OpenAIAPIKey = "ok" }, false},
		{"no feeds", func(c *Config) { c.Feeds = nil }, true},
		{"summary exceeds hard limit", func(c *Config) { c.SummaryMaxLen = 300 }, true},
		{"zero run attempts", func(c *Config) { c.RunAttempts = 0 }, true},
		{"negative run attempts", func(c *Config) { c.RunAttempts = -1 }, true},
		{"unknown selection mode", func(c *Config) { c.Selection.Mode = "chaotic" }, true},
		{"strict-rotation mode", func(c *Config) { c.Selection.Mode = "strict-rotation" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
