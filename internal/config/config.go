// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	RedisAddr   string // empty = in-process result cache
	BotToken    string // optional shared secret checked on chat upgrade

	CatalogBaseURL  string
	MaxPlaylistSize int
	CacheTTL        time.Duration

	ConversationTTL time.Duration
	ChallengeTTL    time.Duration

	Timeouts      Timeouts
	TranscriptLog TranscriptLogConfig
}

// Timeouts are the per-operation deadlines applied by the stage guards.
type Timeouts struct {
	Dispatch time.Duration
	Issue    time.Duration
	Accept   time.Duration
	Compare  time.Duration
	Fetch    time.Duration
}

// TranscriptLogConfig controls NDJSON chat transcript logging.
type TranscriptLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("TRANSCRIPT_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/tastebot.db"),
		RedisAddr:   getEnv("REDIS_ADDR", ""),
		BotToken:    getEnv("BOT_TOKEN", ""),

		CatalogBaseURL:  getEnv("CATALOG_BASE_URL", ""),
		MaxPlaylistSize: getEnvInt("MAX_PLAYLIST_SIZE", 200),
		CacheTTL:        getEnvDuration("CACHE_TTL", 3600*time.Second),

		ConversationTTL: getEnvDuration("CONVERSATION_TTL", 300*time.Second),
		ChallengeTTL:    getEnvDuration("CHALLENGE_TTL", 30*time.Minute),

		Timeouts: Timeouts{
			Dispatch: getEnvDuration("DISPATCH_TIMEOUT", 10*time.Second),
			Issue:    getEnvDuration("CHALLENGE_ISSUE_TIMEOUT", 30*time.Second),
			Accept:   getEnvDuration("CHALLENGE_ACCEPT_TIMEOUT", 60*time.Second),
			Compare:  getEnvDuration("COMPARE_TIMEOUT", 45*time.Second),
			Fetch:    getEnvDuration("PLAYLIST_FETCH_TIMEOUT", 20*time.Second),
		},
		TranscriptLog: TranscriptLogConfig{
			Enabled:       getEnvBool("TRANSCRIPT_LOG_ENABLED", true),
			Dir:           getEnv("TRANSCRIPT_LOG_DIR", "./data/logs/transcripts"),
			GlobalEnabled: getEnvBool("TRANSCRIPT_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("TRANSCRIPT_LOG_GLOBAL_PATH", "./data/logs/transcripts/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.MaxPlaylistSize <= 0 {
		return fmt.Errorf("MAX_PLAYLIST_SIZE must be > 0")
	}
	for name, d := range map[string]time.Duration{
		"DISPATCH_TIMEOUT":         c.Timeouts.Dispatch,
		"CHALLENGE_ISSUE_TIMEOUT":  c.Timeouts.Issue,
		"CHALLENGE_ACCEPT_TIMEOUT": c.Timeouts.Accept,
		"COMPARE_TIMEOUT":          c.Timeouts.Compare,
		"PLAYLIST_FETCH_TIMEOUT":   c.Timeouts.Fetch,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}
	if c.TranscriptLog.Dir == "" {
		return fmt.Errorf("TRANSCRIPT_LOG_DIR cannot be empty")
	}
	if c.TranscriptLog.GlobalPath == "" {
		return fmt.Errorf("TRANSCRIPT_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.TranscriptLog.QueueSize <= 0 {
		return fmt.Errorf("TRANSCRIPT_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	raw := strings.TrimSpace(value)
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	// Bare numbers are treated as seconds.
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
