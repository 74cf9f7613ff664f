package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeYAML(t, `
mock:
  enabled: true
platforms:
  mt5:
    demo_url: http://localhost:5001
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Mock.Enabled)
	assert.Equal(t, "http://localhost:5001", cfg.Platforms.MT5.DemoURL)
	// Untouched fields keep their defaults.
	assert.Equal(t, ":8090", cfg.Server.Addr)
	assert.Equal(t, "https://live.ctraderapi.com", cfg.Platforms.CTrader.LiveURL)
	assert.Equal(t, 15, cfg.Platforms.MT5.TimeoutSeconds)
	assert.Equal(t, "data/brokergate.db", cfg.Store.Path)
}

func TestLoadRejectsBadURL(t *testing.T) {
	path := writeYAML(t, `
platforms:
  dxtrade:
    live_url: "not a url"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dxtrade")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	_, err = Load("")
	assert.Error(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, validate(cfg))
	assert.False(t, cfg.Mock.Enabled, "mock mode must be opt-in")
}

func TestBaseURLSelection(t *testing.T) {
	p := PlatformConfig{DemoURL: "https://demo.example", LiveURL: "https://live.example"}
	assert.Equal(t, "https://demo.example", p.BaseURL("demo"))
	assert.Equal(t, "https://demo.example", p.BaseURL(" DEMO "))
	assert.Equal(t, "https://live.example", p.BaseURL("live"))
	// Prop accounts ride the live endpoint.
	assert.Equal(t, "https://live.example", p.BaseURL("prop"))
}
