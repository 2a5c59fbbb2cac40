package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REGPULSE_DATABASE_URL", "")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/regpulse")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.PollInterval)
	assert.Equal(t, []string{"09:00", "17:00"}, cfg.LeaderboardTimes)
	assert.Equal(t, 10, cfg.LeaderboardSize)
	assert.True(t, cfg.CutoffDate.IsZero())
	assert.True(t, cfg.RateLimitEnabled)
	assert.False(t, cfg.IsProduction())
}

func TestLoadCutoffDate(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/regpulse")

	t.Setenv("CUTOFF_DATE", "2026-06-01")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), cfg.CutoffDate)

	t.Setenv("CUTOFF_DATE", "2026-06-01T18:30:00Z")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 18, cfg.CutoffDate.Hour())

	t.Setenv("CUTOFF_DATE", "June 1st")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadLeaderboardTimes(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/regpulse")

	t.Setenv("LEADERBOARD_TIMES", "08:15, 20:45")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"08:15", "20:45"}, cfg.LeaderboardTimes)

	t.Setenv("LEADERBOARD_TIMES", "25:99")
	_, err = Load()
	require.Error(t, err)
}
