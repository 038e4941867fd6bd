package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.ListenAddr)
	assert.Equal(t, ModeInterval, cfg.Schedule.Mode)
	assert.Equal(t, UnitMinutes, cfg.Schedule.Unit)
	assert.Equal(t, 5, cfg.Schedule.Value)
	assert.Equal(t, "./emails.json", cfg.EmailsFile)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("SCHEDULE_MODE", "cron")
	t.Setenv("CRON_EXPRESSION", "0 */4 * * *;30 9 * * *")
	t.Setenv("EMAIL_RECIPIENTS", "a@example.com, b@example.com")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, ModeCron, cfg.Schedule.Mode)
	assert.Equal(t, "0 */4 * * *;30 9 * * *", cfg.Schedule.CronExpression)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.DefaultRecipients)
}

func TestLoadYAMLFileThenEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: \":9000\"\nschedule:\n  mode: interval\n  unit: hours\n  value: 2\n"), 0o644))

	t.Setenv("SCHEDULE_VALUE", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, UnitHours, cfg.Schedule.Unit)
	assert.Equal(t, 3, cfg.Schedule.Value, "env override beats file value")
}

func TestValidateRejectsCronModeWithoutExpression(t *testing.T) {
	t.Setenv("SCHEDULE_MODE", "cron")
	t.Setenv("CRON_EXPRESSION", "")

	_, err := Load("")
	require.Error(t, err)
}

func TestValidateCoercesBadIntervalSettings(t *testing.T) {
	t.Setenv("SCHEDULE_TYPE", "fortnights")
	t.Setenv("SCHEDULE_VALUE", "-1")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, UnitMinutes, cfg.Schedule.Unit)
	assert.Equal(t, 5, cfg.Schedule.Value)
	assert.NotEmpty(t, cfg.Warnings)
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	t.Setenv("SCHEDULE_MODE", "hourly")

	_, err := Load("")
	require.Error(t, err)
}
