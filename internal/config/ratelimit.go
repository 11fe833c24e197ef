package config

import "time"

// RateLimitConfig defines the fixed-window request limiter applied to
// the booking endpoints.  Max requests are allowed per Window per key;
// the key combines client IP, user and route.
type RateLimitConfig struct {
	Enabled bool
	Max     int
	Window  time.Duration
	Prefix  string
}

// LoadRateLimitConfig reads environment variables to build a
// RateLimitConfig, clamping nonsensical values to usable ones.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled: envBool("RATE_LIMIT_ENABLED", true),
		Max:     envInt("RATE_LIMIT_MAX", 60),
		Window:  envDur("RATE_LIMIT_WINDOW", time.Minute),
		Prefix:  getenv("RATE_LIMIT_PREFIX", "rl"),
	}
	if cfg.Max < 1 {
		cfg.Max = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return cfg
}
