package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func writeCfg(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doom-server.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeCfg(t, "port: 9090\n")

	cfg, _, err := LoadConfig(path)
	assert.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 8, cfg.Session.MaxSessions)
	assert.Equal(t, 80, cfg.Stream.JPEGQuality)
	assert.Equal(t, 33333*time.Microsecond, cfg.Stream.FrameInterval)
	assert.Equal(t, "chocolate-doom", cfg.Doom.Binary)
}

func TestLoadConfigEnvExpansion(t *testing.T) {
	t.Setenv("TEST_DOOM_PORT", "7070")
	path := writeCfg(t, "port: ${TEST_DOOM_PORT:8080}\ndoom:\n  binary: \"${TEST_DOOM_BINARY:prboom}\"\n")

	cfg, _, err := LoadConfig(path)
	assert.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	// unset variable falls back to its default
	assert.Equal(t, "prboom", cfg.Doom.Binary)
}

func TestLoadConfigLegacyEnvWins(t *testing.T) {
	t.Setenv("DOOM_FRAMEBUFFER", "/dev/fb7")
	t.Setenv("DOOM_SERVER_PORT", "6060")
	t.Setenv("DOOM_DISABLE_SPAWN", "1")
	path := writeCfg(t, "port: 9090\ndoom:\n  framebuffer: /dev/fb0\n")

	cfg, _, err := LoadConfig(path)
	assert.NoError(t, err)
	assert.Equal(t, "/dev/fb7", cfg.Doom.Framebuffer)
	assert.Equal(t, 6060, cfg.Port)
	assert.True(t, cfg.Doom.DisableSpawn)
}

func TestLoadConfigDurations(t *testing.T) {
	path := writeCfg(t, "session:\n  idle_timeout: 5m\n  sweep_interval: 30s\nstream:\n  frame_interval: 16667us\n")

	cfg, _, err := LoadConfig(path)
	assert.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, 30*time.Second, cfg.Session.SweepInterval)
	assert.Equal(t, 16667*time.Microsecond, cfg.Stream.FrameInterval)
}

func TestLoadConfigBadDuration(t *testing.T) {
	path := writeCfg(t, "session:\n  idle_timeout: soon\n")

	_, _, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigInvalidQuality(t *testing.T) {
	path := writeCfg(t, "stream:\n  jpeg_quality: 101\n")

	_, _, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestDefaultSweepDerivedFromIdle(t *testing.T) {
	path := writeCfg(t, "session:\n  idle_timeout: 10m\n")

	cfg, _, err := LoadConfig(path)
	assert.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Session.SweepInterval)
}
