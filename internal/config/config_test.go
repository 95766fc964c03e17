package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load("../../configs/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, ":9992", cfg.App.HTTPAddr)
	assert.Equal(t, "configs/strategies.yaml", cfg.Shadow.CatalogPath)
	assert.Equal(t, []string{"tech", "sentiment", "regime", "orderbook"}, cfg.Engine.ContextAgents)
	assert.Equal(t, []string{"risk", "liquidity"}, cfg.Engine.ContextVetoes)
	assert.Equal(t, 15*time.Minute, cfg.Resolver.EpochDuration())
	assert.Equal(t, 30*time.Second, cfg.Resolver.Offset())
	assert.Equal(t, 5*time.Second, cfg.Engine.AgentTimeout())
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "min.yaml", "app:\n  env: test\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, "data/journal.db", cfg.Journal.Path)
	assert.Equal(t, 5, cfg.Journal.BusyRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Journal.BusyBackoff())
	assert.True(t, cfg.Snapshots.Enabled)
	assert.Equal(t, 168*time.Hour, cfg.Snapshots.Retention())
	assert.Equal(t, 2, cfg.Engine.MinAgents)
	assert.Equal(t, 0.30, cfg.Engine.MinIndividualConfidence)
	assert.Equal(t, 0.70, cfg.Engine.BiasThreshold)
	assert.Equal(t, 168*time.Hour, cfg.Engine.AccuracyLookback())
	assert.Equal(t, 300*time.Second, cfg.Engine.BreakerCooldown())
	assert.Equal(t, 1000.0, cfg.Shadow.InitialBalance)
	assert.Equal(t, 10.0, cfg.Shadow.PositionSizeUSD)
	assert.Equal(t, 2*time.Hour, cfg.Shadow.RestoreMaxAge())
	assert.Empty(t, cfg.Shadow.CatalogPath)
	assert.True(t, cfg.Resolver.Enabled)
	assert.Equal(t, 8, cfg.Resolver.LookbackEpochs)
}

func TestLoad_ExplicitZeroValuesKept(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "zero.yaml", `
snapshots:
  enabled: false
  retention_hours: 0
resolver:
  enabled: false
  offset_seconds: 0
engine:
  breaker_threshold: 0
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Snapshots.Enabled)
	assert.Zero(t, cfg.Snapshots.RetentionHours)
	assert.False(t, cfg.Resolver.Enabled)
	assert.Equal(t, 0, cfg.Resolver.OffsetSeconds)
	assert.Equal(t, 0, cfg.Engine.BreakerThreshold)
}

func TestLoad_IncludesOverrideInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "journal:\n  path: base.db\nshadow:\n  initial_balance: 500\n")
	path := writeFile(t, dir, "main.yaml", "include:\n  - base.yaml\njournal:\n  path: main.db\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "main.db", cfg.Journal.Path)
	assert.Equal(t, 500.0, cfg.Shadow.InitialBalance)
}

func TestLoad_IncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "include:\n  - b.yaml\n")
	writeFile(t, dir, "b.yaml", "include:\n  - a.yaml\n")
	_, err := Load(filepath.Join(dir, "a.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include cycle")
}

func TestLoad_Validation(t *testing.T) {
	cases := map[string]string{
		"bad level":             "app:\n  log_level: loud\n",
		"bad epoch":             "resolver:\n  epoch: soon\n",
		"stake above balance":   "shadow:\n  initial_balance: 5\n  position_size_usd: 10\n",
		"entry price":           "shadow:\n  default_entry_price: 1.5\n",
		"bias threshold":        "engine:\n  bias_threshold: 0.4\n",
		"agent and veto":        "engine:\n  context_agents: [risk]\n  context_vetoes: [risk]\n",
		"resolver w/o snapshot": "snapshots:\n  enabled: false\n",
		"no retries":            "journal:\n  busy_retries: 0\n",
		"zero backoff":          "journal:\n  busy_backoff_ms: 0\n",
		"negative retention":    "snapshots:\n  retention_hours: -1\n",
		"zero min samples":      "engine:\n  accuracy_min_samples: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "c.yaml", body)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	assert.Equal(t, DefaultConfigPath, ResolvePath(""))
	t.Setenv(EnvConfigPath, "/etc/polyshadow.yaml")
	assert.Equal(t, "/etc/polyshadow.yaml", ResolvePath(" "))
	assert.Equal(t, "x.yaml", ResolvePath("x.yaml"))
}

func TestReloadOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "c.yaml", "app:\n  log_level: info\n")

	var got []*Config
	handler := reloadOnChange(path, func(cfg *Config) { got = append(got, cfg) })

	writeFile(t, dir, "c.yaml", "app:\n  log_level: debug\n")
	handler(fsnotify.Event{Name: path, Op: fsnotify.Write})
	require.Len(t, got, 1)
	assert.Equal(t, "debug", got[0].App.LogLevel)

	writeFile(t, dir, "c.yaml", "app:\n  log_level: shout\n")
	handler(fsnotify.Event{Name: path, Op: fsnotify.Write})
	assert.Len(t, got, 1, "invalid edit is ignored")

	handler(fsnotify.Event{Name: path, Op: fsnotify.Chmod})
	assert.Len(t, got, 1)

	assert.Error(t, Watch(path, nil))
}
