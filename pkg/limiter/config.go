package limiter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Default ceilings applied when no per-class override is configured.
const (
	DefaultFreeCeiling    int64 = 15
	DefaultPremiumCeiling int64 = 30
	DefaultWindow               = 60 * time.Minute
)

// Config holds every budget setting the limiter consults. It is built once
// at process start (usually via LoadConfig) and injected into New; the
// limiter never reads ambient environment state directly.
//
// Windows and Ceilings are keyed by the canonical lookup name of a resource
// class (see ResourceClass.LookupName). Absent entries fall back to the
// package defaults.
type Config struct {
	Enabled        bool
	DefaultWindow  time.Duration
	FreeCeiling    int64
	PremiumCeiling int64
	Windows        map[string]time.Duration
	Ceilings       map[string]map[Tier]int64
}

// DefaultConfig returns an enabled configuration with package defaults and
// no per-class overrides.
func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		DefaultWindow:  DefaultWindow,
		FreeCeiling:    DefaultFreeCeiling,
		PremiumCeiling: DefaultPremiumCeiling,
		Windows:        make(map[string]time.Duration),
		Ceilings:       make(map[string]map[Tier]int64),
	}
}

// window resolves the window size for a class. A configured value must be
// positive; zero or negative is a configuration error, not a fallback.
func (c *Config) window(class ResourceClass) (time.Duration, error) {
	if w, ok := c.Windows[class.LookupName()]; ok {
		if w <= 0 {
			return 0, fmt.Errorf("%w: window for %s is %s", ErrBadConfig, class.LookupName(), w)
		}
		return w, nil
	}
	if c.DefaultWindow <= 0 {
		return 0, fmt.Errorf("%w: default window is %s", ErrBadConfig, c.DefaultWindow)
	}
	return c.DefaultWindow, nil
}

// ceiling resolves the request ceiling for a (class, tier) pair. A negative
// value, configured or defaulted, is a configuration error.
func (c *Config) ceiling(class ResourceClass, tier Tier) (int64, error) {
	limit := c.FreeCeiling
	if tier == TierPremium {
		limit = c.PremiumCeiling
	}
	if overrides, ok := c.Ceilings[class.LookupName()]; ok {
		if v, ok := overrides[tier]; ok {
			limit = v
		}
	}
	if limit < 0 {
		return 0, fmt.Errorf("%w: ceiling for %s/%s is %d", ErrBadConfig, class.LookupName(), tier, limit)
	}
	return limit, nil
}

// Environment keys understood by LoadConfig. Per-class keys embed the
// canonical lookup name, e.g. QUOTA_LIMIT_GPT_4_FREE=25 or
// QUOTA_WINDOW_MINUTES_TOOLS=180.
const (
	envEnabled       = "QUOTA_ENABLED"
	envWindowDefault = "QUOTA_WINDOW_MINUTES"
	envWindowPrefix  = "QUOTA_WINDOW_MINUTES_"
	envLimitPrefix   = "QUOTA_LIMIT_"
	envFreeSuffix    = "_FREE"
	envPremiumSuffix = "_PREMIUM"
)

// LoadConfig builds a Config from environment-style "KEY=value" entries,
// typically os.Environ() after godotenv has loaded any .env file. Unknown
// keys are ignored; a malformed or negative value for a known key is an
// ErrBadConfig, never a silent default.
func LoadConfig(environ []string) (*Config, error) {
	cfg := DefaultConfig()
	for key, value := range envMap(environ) {
		switch {
		case key == envEnabled:
			parsed, err := strconv.ParseBool(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("%w: %s=%q", ErrBadConfig, key, value)
			}
			cfg.Enabled = parsed
		case key == envWindowDefault:
			minutes, err := parseMinutes(key, value)
			if err != nil {
				return nil, err
			}
			cfg.DefaultWindow = minutes
		case strings.HasPrefix(key, envWindowPrefix):
			minutes, err := parseMinutes(key, value)
			if err != nil {
				return nil, err
			}
			cfg.Windows[strings.TrimPrefix(key, envWindowPrefix)] = minutes
		case strings.HasPrefix(key, envLimitPrefix):
			name, tier, ok := splitLimitKey(strings.TrimPrefix(key, envLimitPrefix))
			if !ok {
				continue
			}
			limit, err := parseCeiling(key, value)
			if err != nil {
				return nil, err
			}
			if cfg.Ceilings[name] == nil {
				cfg.Ceilings[name] = make(map[Tier]int64)
			}
			cfg.Ceilings[name][tier] = limit
		}
	}
	return cfg, nil
}

func envMap(environ []string) map[string]string {
	values := make(map[string]string, len(environ))
	for _, entry := range environ {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			continue
		}
		values[strings.TrimSpace(parts[0])] = parts[1]
	}
	return values
}

func splitLimitKey(rest string) (name string, tier Tier, ok bool) {
	switch {
	case strings.HasSuffix(rest, envFreeSuffix):
		return strings.TrimSuffix(rest, envFreeSuffix), TierFree, true
	case strings.HasSuffix(rest, envPremiumSuffix):
		return strings.TrimSuffix(rest, envPremiumSuffix), TierPremium, true
	}
	return "", 0, false
}

func parseMinutes(key, value string) (time.Duration, error) {
	minutes, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || minutes <= 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrBadConfig, key, value)
	}
	return time.Duration(minutes) * time.Minute, nil
}

func parseCeiling(key, value string) (int64, error) {
	limit, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrBadConfig, key, value)
	}
	return limit, nil
}
