package redditclient

import (
	"fmt"

	"cultivator/internal/config"
)

// New selects the client implementation from platform.mode.
func New(cfg config.PlatformConfig) (Client, error) {
	switch cfg.Mode {
	case "", "web":
		if cfg.Cookie == "" {
			return nil, fmt.Errorf("web mode needs a session cookie (platform.cookie or REDDIT_COOKIE)")
		}
		return NewWebClient(WebOptions{
			BaseURL:          cfg.BaseURL,
			Cookie:           cfg.Cookie,
			UserAgent:        cfg.UserAgent,
			Timeout:          cfg.Timeout,
			RequestsPerSec:   cfg.RequestsPerSecond,
			RateLimitBackoff: cfg.RateLimitBackoff,
		}), nil
	case "api":
		if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.Username == "" {
			return nil, fmt.Errorf("api mode needs REDDIT_CLIENT_ID, REDDIT_CLIENT_SECRET and REDDIT_USERNAME")
		}
		return NewAPIClient(cfg.ClientID, cfg.ClientSecret, cfg.Username, cfg.Password, cfg.UserAgent, cfg.Timeout, cfg.RequestsPerSecond)
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown platform mode: %s (use 'web', 'api', or 'mock')", cfg.Mode)
	}
}
