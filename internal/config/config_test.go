package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")

	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, m.Load())

	cfg := m.Get()
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "nix", cfg.Nix.Binary)
	assert.Equal(t, 10*time.Second, cfg.Nix.CacheTTL)
	assert.Equal(t, "/tmp/xdg-data/nix-browser/nix-browser.db", cfg.Database.Path)
	assert.Empty(t, m.ConfigFile())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
server:
  addr: ":9999"
  no_open: true
nix:
  cache_ttl: 1m
logging:
  level: debug
database:
  path: /var/lib/nb/state.db
theme:
  file: /etc/nb/theme.yaml
`), 0o644))

	m, err := NewManager(dir)
	require.NoError(t, err)
	require.NoError(t, m.Load())

	cfg := m.Get()
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.True(t, cfg.Server.NoOpen)
	assert.Equal(t, time.Minute, cfg.Nix.CacheTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/var/lib/nb/state.db", cfg.Database.Path)
	assert.Equal(t, "/etc/nb/theme.yaml", cfg.Theme.File)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), m.ConfigFile())
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("NIX_BROWSER_SERVER_ADDR", "0.0.0.0:1234")
	t.Setenv("NIX_BROWSER_NIX_BINARY", "/run/current-system/sw/bin/nix")

	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, m.Load())

	cfg := m.Get()
	assert.Equal(t, "0.0.0.0:1234", cfg.Server.Addr)
	assert.Equal(t, "/run/current-system/sw/bin/nix", cfg.Nix.Binary)
}

func TestLoad_BadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0o644))

	m, err := NewManager(dir)
	require.NoError(t, err)
	assert.Error(t, m.Load())
}

func TestSet_OverridesAndCopies(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, m.Load())

	require.NoError(t, m.Set("server.addr", ":7000"))
	cfg := m.Get()
	assert.Equal(t, ":7000", cfg.Server.Addr)

	cfg.Server.Addr = "mutated"
	assert.Equal(t, ":7000", m.Get().Server.Addr)
}

func TestWatch_RequiresFile(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, m.Load())
	assert.Error(t, m.Watch())
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("theme:\n  file: a.yaml\n"), 0o644))

	m, err := NewManager(dir)
	require.NoError(t, err)
	require.NoError(t, m.Load())

	changed := make(chan string, 16)
	m.OnConfigChange(func(c *Config) {
		select {
		case changed <- c.Theme.File:
		default:
		}
	})
	require.NoError(t, m.Watch())
	require.NoError(t, m.Watch(), "second Watch is a no-op")

	require.NoError(t, os.WriteFile(file, []byte("theme:\n  file: b.yaml\n"), 0o644))

	// An editor-style write can fire several events, some seeing a
	// truncated file; wait for the final content.
	deadline := time.After(5 * time.Second)
	for got := ""; got != "b.yaml"; {
		select {
		case got = <-changed:
		case <-deadline:
			t.Fatal("no reload after config change")
		}
	}
	assert.Equal(t, "b.yaml", m.Get().Theme.File)
}
