package limiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 60*time.Minute, cfg.DefaultWindow)
	assert.Equal(t, int64(15), cfg.FreeCeiling)
	assert.Equal(t, int64(30), cfg.PremiumCeiling)
	assert.Empty(t, cfg.Windows)
	assert.Empty(t, cfg.Ceilings)
}

func TestLoadConfig_Overrides(t *testing.T) {
	cfg, err := LoadConfig([]string{
		"QUOTA_ENABLED=false",
		"QUOTA_WINDOW_MINUTES=30",
		"QUOTA_WINDOW_MINUTES_GPT_4=180",
		"QUOTA_LIMIT_GPT_4_FREE=5",
		"QUOTA_LIMIT_GPT_4_PREMIUM=50",
		"PATH=/usr/bin", // unrelated entries are ignored
	})
	require.NoError(t, err)

	assert.False(t, cfg.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.DefaultWindow)
	assert.Equal(t, 180*time.Minute, cfg.Windows["GPT_4"])
	assert.Equal(t, int64(5), cfg.Ceilings["GPT_4"][TierFree])
	assert.Equal(t, int64(50), cfg.Ceilings["GPT_4"][TierPremium])
}

func TestLoadConfig_RejectsBadValues(t *testing.T) {
	cases := []string{
		"QUOTA_ENABLED=maybe",
		"QUOTA_WINDOW_MINUTES=0",
		"QUOTA_WINDOW_MINUTES=-5",
		"QUOTA_WINDOW_MINUTES_GPT_4=ten",
		"QUOTA_LIMIT_GPT_4_FREE=-1",
		"QUOTA_LIMIT_GPT_4_PREMIUM=lots",
	}
	for _, entry := range cases {
		t.Run(entry, func(t *testing.T) {
			_, err := LoadConfig([]string{entry})
			assert.ErrorIs(t, err, ErrBadConfig)
		})
	}
}

func TestConfig_CeilingResolution(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ceilings["GPT_4"] = map[Tier]int64{TierFree: 5}

	free, err := cfg.ceiling(ClassGPT4, TierFree)
	require.NoError(t, err)
	assert.Equal(t, int64(5), free)

	// Premium has no override for the class, so the tier default applies.
	premium, err := cfg.ceiling(ClassGPT4, TierPremium)
	require.NoError(t, err)
	assert.Equal(t, int64(30), premium)

	// Unknown classes resolve to tier defaults.
	other, err := cfg.ceiling("llama-2-70b", TierFree)
	require.NoError(t, err)
	assert.Equal(t, int64(15), other)
}

func TestConfig_NegativeCeilingIsFatal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ceilings["GPT_4"] = map[Tier]int64{TierFree: -3}

	_, err := cfg.ceiling(ClassGPT4, TierFree)
	assert.ErrorIs(t, err, ErrBadConfig)
}

func TestConfig_WindowValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Windows["GPT_4"] = -time.Minute

	_, err := cfg.window(ClassGPT4)
	assert.ErrorIs(t, err, ErrBadConfig)

	cfg = DefaultConfig()
	cfg.DefaultWindow = 0
	_, err = cfg.window(ClassGPT4)
	assert.ErrorIs(t, err, ErrBadConfig)
}
