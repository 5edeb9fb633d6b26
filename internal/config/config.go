package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the application's configuration model.
// It captures the platform connection, safety limits, session pacing and storage.
type Config struct {
	Platform PlatformConfig `yaml:"platform"`
	Policy   PolicyConfig   `yaml:"policy"`
	Session  SessionConfig  `yaml:"session"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type PlatformConfig struct {
	// Mode selects the client: "web" (browser cookie), "api" (OAuth script app) or "mock".
	Mode      string `yaml:"mode"`
	BaseURL   string `yaml:"baseURL"`
	UserAgent string `yaml:"userAgent"`
	// Session cookie for web mode. If empty, read from env REDDIT_COOKIE
	Cookie string `yaml:"cookie"`
	// OAuth script-app credentials for api mode. If empty, read REDDIT_CLIENT_ID etc.
	ClientID     string        `yaml:"clientID"`
	ClientSecret string        `yaml:"clientSecret"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	Timeout      time.Duration `yaml:"timeout"`
	// Client-side request pacing.
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	// Fixed wait before the single re-attempt after a 429.
	RateLimitBackoff time.Duration `yaml:"rateLimitBackoff"`
}

type PolicyConfig struct {
	MaxCommentsPerSession   int     `yaml:"maxCommentsPerSession"`
	MaxSessionsPerDay       int     `yaml:"maxSessionsPerDay"`
	MinHoursBetweenSessions float64 `yaml:"minHoursBetweenSessions"`
	MaxPostAgeHours         float64 `yaml:"maxPostAgeHours"`
	PostsPerSubreddit       int     `yaml:"postsPerSubreddit"`
	// Local hours during which no session may start.
	QuietHours []int `yaml:"quietHours"`
}

type SessionConfig struct {
	Subreddits []string `yaml:"subreddits"`
	// Seconds between consecutive comments.
	MinDelay int `yaml:"minDelay"`
	MaxDelay int `yaml:"maxDelay"`
	// Abort when the shadow-ban probe is positive or inconclusive.
	RequireHealthy bool `yaml:"requireHealthy"`
}

type StorageConfig struct {
	// Backend is "json" or "sqlite".
	Backend    string `yaml:"backend"`
	LedgerPath string `yaml:"ledgerPath"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Platform: PlatformConfig{
			Mode:              "web",
			BaseURL:           "https://www.reddit.com",
			UserAgent:         "cultivator/0.1",
			Timeout:           15 * time.Second,
			RequestsPerSecond: 0.5,
			RateLimitBackoff:  10 * time.Second,
		},
		Policy: PolicyConfig{
			MaxCommentsPerSession:   5,
			MaxSessionsPerDay:       2,
			MinHoursBetweenSessions: 6,
			MaxPostAgeHours:         6,
			PostsPerSubreddit:       10,
		},
		Session: SessionConfig{
			Subreddits:     []string{"indiehackers", "SideProject", "startups", "technology", "AskReddit"},
			MinDelay:       45,
			MaxDelay:       90,
			RequireHealthy: true,
		},
		Storage: StorageConfig{Backend: "json", LedgerPath: "~/.cultivator/ledger.json"},
	}
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	if v := os.Getenv("REDDIT_MODE"); v != "" {
		c.Platform.Mode = v
	}
	if c.Platform.Cookie == "" {
		c.Platform.Cookie = os.Getenv("REDDIT_COOKIE")
	}
	if c.Platform.ClientID == "" {
		c.Platform.ClientID = os.Getenv("REDDIT_CLIENT_ID")
	}
	if c.Platform.ClientSecret == "" {
		c.Platform.ClientSecret = os.Getenv("REDDIT_CLIENT_SECRET")
	}
	if c.Platform.Username == "" {
		c.Platform.Username = os.Getenv("REDDIT_USERNAME")
	}
	if c.Platform.Password == "" {
		c.Platform.Password = os.Getenv("REDDIT_PASSWORD")
	}
	if v := os.Getenv("REDDIT_USER_AGENT"); v != "" {
		c.Platform.UserAgent = v
	}
	if v := os.Getenv("CULTIVATE_LEDGER"); v != "" {
		c.Storage.LedgerPath = v
	}
	if v := os.Getenv("CULTIVATE_MAX_COMMENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Policy.MaxCommentsPerSession = n
		}
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = os.Getenv("METRICS_ADDR")
	}
}

// Validate rejects limits that would make the safety policy meaningless.
func (c Config) Validate() error {
	p := c.Policy
	switch {
	case p.MaxCommentsPerSession <= 0:
		return errors.New("policy.maxCommentsPerSession must be positive")
	case p.MaxSessionsPerDay <= 0:
		return errors.New("policy.maxSessionsPerDay must be positive")
	case p.MinHoursBetweenSessions < 0:
		return errors.New("policy.minHoursBetweenSessions must not be negative")
	case p.MaxPostAgeHours <= 0:
		return errors.New("policy.maxPostAgeHours must be positive")
	case p.PostsPerSubreddit <= 0:
		return errors.New("policy.postsPerSubreddit must be positive")
	}
	for _, h := range p.QuietHours {
		if h < 0 || h > 23 {
			return errors.New("policy.quietHours entries must be in 0..23")
		}
	}
	if c.Session.MinDelay < 0 || c.Session.MaxDelay < c.Session.MinDelay {
		return errors.New("session delays must satisfy 0 <= minDelay <= maxDelay")
	}
	switch c.Storage.Backend {
	case "json", "sqlite":
	default:
		return errors.New("storage.backend must be json or sqlite")
	}
	return nil
}

// LedgerPath returns the storage path with a leading ~ expanded.
func (c Config) LedgerPath() string { return ExpandHome(c.Storage.LedgerPath) }

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// Load reads YAML config from path on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields the defaults.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		cfg.ResolveEnv()
		return cfg, nil
	}
	return cfg, err
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
