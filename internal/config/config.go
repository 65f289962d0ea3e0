package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// FeedSource is one configured feed/channel.
type FeedSource struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Keywords holds the three weight classes plus the exclusion list.
type Keywords struct {
	Priority []string `yaml:"priority"`
	Economic []string `yaml:"economic"`
	General  []string `yaml:"general"`
	Exclude  []string `yaml:"exclude"`
}

// Selection configures the diversity selector.
type Selection struct {
	Mode                string  `yaml:"mode"` // linear | balanced | round-robin | strict-rotation
	DiversityPenalty    bool    `yaml:"diversity_penalty"`
	PenaltyWeight       float64 `yaml:"penalty_weight"`
	PenaltyWindow       int     `yaml:"penalty_window"`
	NoConsecutiveDomain bool    `yaml:"no_consecutive_domain"`
	NoConsecutiveFeed   bool    `yaml:"no_consecutive_feed"`
	MinDistinctDomains  int     `yaml:"min_distinct_domains"`
	DistinctWindow      int     `yaml:"distinct_window"`
	MaxDomainShare      float64 `yaml:"max_domain_share"`
	ShareWindow         int     `yaml:"share_window"`
	TrialQueueSize      int     `yaml:"trial_queue_size"`
}

type Config struct {
	// Publisher settings
	TelegramToken  string
	TelegramChatID string

	// Summarizer settings
	GeminiAPIKey       string
	OpenAIAPIKey       string // optional fallback
	MaxSummaryRequests int    // per-run budget (0 = unlimited)
	SummaryRetries     int    // regeneration budget per candidate
	SummaryMinLen      int
	SummaryMaxLen      int
	PostHardLimit      int

	// Feed/content settings
	Feeds         []FeedSource
	Keywords      Keywords
	Lookback      time.Duration
	MinBodyLength int

	// Scoring weights
	PriorityWeight float64
	EconomicWeight float64
	GeneralWeight  float64
	VideoBonus     float64
	ImageBonus     float64

	// Selection
	Selection Selection

	// History store
	DatabaseURL      string // optional; falls back to the file store
	HistoryFilePath  string
	HistoryRetention int

	// Publishing
	PublishRetries int
	MediaMaxBytes  int64
	MediaTimeout   time.Duration

	// Run settings
	RunAttempts    int
	RunRetryDelay  time.Duration
	RequestTimeout time.Duration
	PaceDelay      time.Duration

	// App settings
	ConfigPath   string
	ScheduleCron string
	Debug        bool
}

// fileConfig mirrors the YAML file layout.
type fileConfig struct {
	Feeds     []FeedSource `yaml:"feeds"`
	Keywords  Keywords     `yaml:"keywords"`
	Selection *Selection   `yaml:"selection"`
	Scoring   struct {
		PriorityWeight *float64 `yaml:"priority_weight"`
		EconomicWeight *float64 `yaml:"economic_weight"`
		GeneralWeight  *float64 `yaml:"general_weight"`
		VideoBonus     *float64 `yaml:"video_bonus"`
		ImageBonus     *float64 `yaml:"image_bonus"`
	} `yaml:"scoring"`
	Summary struct {
		Min     *int `yaml:"min"`
		Max     *int `yaml:"max"`
		Retries *int `yaml:"retries"`
	} `yaml:"summary"`
	LookbackHours *int `yaml:"lookback_hours"`
	MinBodyLength *int `yaml:"min_body_length"`
}

func Load() (*Config, error) {
	cfg := &Config{
		MaxSummaryRequests: 30,
		SummaryRetries:     3,
		SummaryMinLen:      240,
		SummaryMaxLen:      280,
		PostHardLimit:      280,
		Lookback:           2 * time.Hour,
		MinBodyLength:      300,
		PriorityWeight:     3,
		EconomicWeight:     0.5,
		GeneralWeight:      1,
		VideoBonus:         5,
		ImageBonus:         3,
		Selection: Selection{
			Mode:                "linear",
			DiversityPenalty:    true,
			PenaltyWeight:       1.0,
			PenaltyWindow:       20,
			NoConsecutiveDomain: true,
			NoConsecutiveFeed:   false,
			MinDistinctDomains:  3,
			DistinctWindow:      5,
			MaxDomainShare:      0.4,
			ShareWindow:         10,
			TrialQueueSize:      8,
		},
		HistoryFilePath:  "published_news.json",
		HistoryRetention: 1000,
		PublishRetries:   3,
		MediaMaxBytes:    10 << 20,
		MediaTimeout:     20 * time.Second,
		RunAttempts:      3,
		RunRetryDelay:    30 * time.Second,
		RequestTimeout:   30 * time.Second,
		PaceDelay:        500 * time.Millisecond,
		ConfigPath:       "configs/newsbot.yaml",
	}

	// Load from environment
	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	cfg.TelegramChatID = os.Getenv("TELEGRAM_CHAT_ID")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.ScheduleCron = os.Getenv("SCHEDULE_CRON")

	cfg.ConfigPath = getEnvOrDefault("CONFIG_PATH", cfg.ConfigPath)
	cfg.HistoryFilePath = getEnvOrDefault("HISTORY_FILE_PATH", cfg.HistoryFilePath)
	cfg.HistoryRetention = getEnvIntOrDefault("HISTORY_RETENTION", cfg.HistoryRetention)
	cfg.MaxSummaryRequests = getEnvIntOrDefault("MAX_SUMMARY_REQUESTS", cfg.MaxSummaryRequests)
	cfg.RunAttempts = getEnvIntOrDefault("RUN_ATTEMPTS", cfg.RunAttempts)

	if v := os.Getenv("RUN_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.RunRetryDelay = d
		}
	}
	if v := os.Getenv("PACE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.PaceDelay = d
		}
	}
	if debug := os.Getenv("DEBUG"); debug == "true" {
		cfg.Debug = true
	}

	if err := cfg.loadFile(cfg.ConfigPath); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

// loadFile merges the YAML file into cfg. A missing file is only an
// error when no feeds were configured any other way.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if len(fc.Feeds) > 0 {
		c.Feeds = fc.Feeds
	}
	if len(fc.Keywords.Priority)+len(fc.Keywords.Economic)+len(fc.Keywords.General)+len(fc.Keywords.Exclude) > 0 {
		c.Keywords = fc.Keywords
	}
	if fc.Selection != nil {
		c.Selection = *fc.Selection
		if c.Selection.TrialQueueSize <= 0 {
			c.Selection.TrialQueueSize = 8
		}
	}
	if fc.Scoring.PriorityWeight != nil {
		c.PriorityWeight = *fc.Scoring.PriorityWeight
	}
	if fc.Scoring.EconomicWeight != nil {
		c.EconomicWeight = *fc.Scoring.EconomicWeight
	}
	if fc.Scoring.GeneralWeight != nil {
		c.GeneralWeight = *fc.Scoring.GeneralWeight
	}
	if fc.Scoring.VideoBonus != nil {
		c.VideoBonus = *fc.Scoring.VideoBonus
	}
	if fc.Scoring.ImageBonus != nil {
		c.ImageBonus = *fc.Scoring.ImageBonus
	}
	if fc.Summary.Min != nil && *fc.Summary.Min > 0 {
		c.SummaryMinLen = *fc.Summary.Min
	}
	if fc.Summary.Max != nil && *fc.Summary.Max >= c.SummaryMinLen {
		c.SummaryMaxLen = *fc.Summary.Max
	}
	if fc.Summary.Retries != nil && *fc.Summary.Retries > 0 {
		c.SummaryRetries = *fc.Summary.Retries
	}
	if fc.LookbackHours != nil && *fc.LookbackHours > 0 {
		c.Lookback = time.Duration(*fc.LookbackHours) * time.Hour
	}
	if fc.MinBodyLength != nil && *fc.MinBodyLength > 0 {
		c.MinBodyLength = *fc.MinBodyLength
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if c.TelegramChatID == "" {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required")
	}
	if c.GeminiAPIKey == "" && c.OpenAIAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY or OPENAI_API_KEY is required")
	}
	if len(c.Feeds) == 0 {
		return fmt.Errorf("no feeds configured (check %s)", c.ConfigPath)
	}
	if c.SummaryMaxLen > c.PostHardLimit {
		return fmt.Errorf("summary max (%d) exceeds post hard limit (%d)", c.SummaryMaxLen, c.PostHardLimit)
	}
	if c.RunAttempts < 1 {
		return fmt.Errorf("RUN_ATTEMPTS must be at least 1, got %d", c.RunAttempts)
	}
	switch c.Selection.Mode {
	case "linear", "balanced", "round-robin", "strict-rotation":
	default:
		return fmt.Errorf("unknown selection mode %q", c.Selection.Mode)
	}
	return nil
}
