package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zwlucas/dsn-needs/internal/domain/needs"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 20, cfg.Need(needs.NeedHygiene).Threshold)
	assert.Equal(t, 20, cfg.Need(needs.NeedSleep).Threshold)
	assert.Greater(t, cfg.SaveInterval, cfg.UpdateInterval)
}

func TestLoadYAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "needs.yml")
	raw := `
listen_addr: ":9090"
update_interval: 30s
needs:
  sleep:
    cooldown: 20m
    decrease: 3
    threshold: 15
    warning: "So tired..."
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.UpdateInterval)

	sleep := cfg.Need(needs.NeedSleep)
	assert.Equal(t, 20*time.Minute, sleep.Cooldown)
	assert.Equal(t, 3, sleep.Decrease)
	assert.Equal(t, 15, sleep.Threshold)
	assert.Equal(t, "So tired...", sleep.Warning)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("NEEDS_LISTEN_ADDR", ":7777")
	t.Setenv("NEEDS_UPDATE_INTERVAL", "45")
	t.Setenv("DB_DIALECT", "sqlite")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7777", cfg.ListenAddr)
	assert.Equal(t, 45*time.Second, cfg.UpdateInterval)
}

func TestValidateRejectsBadInput(t *testing.T) {
	cfg := Default()
	cfg.UpdateInterval = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Needs["hunger"] = NeedConfig{}
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.DBDialect = "oracle"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Locations = append(cfg.Locations, Location{Need: "thirst", Label: "Fountain"})
	assert.Error(t, cfg.Validate())
}
