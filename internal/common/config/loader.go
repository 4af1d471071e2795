package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/poodlez/doom/internal/common/cnst"
	"github.com/poodlez/doom/pkg/helper"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads the server configuration from a YAML file with
// environment variable expansion (${VAR} and ${VAR:default}).
func LoadConfig(filename string) (*DoomServerConfig, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	data = resolveEnv(data)
	var cfg DoomServerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cfgPath, err
	}

	applyLegacyEnv(&cfg)
	if err := parseDurations(&cfg); err != nil {
		return nil, cfgPath, err
	}
	setDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, cfgPath, err
	}

	return &cfg, cfgPath, nil
}

// Default returns a fully defaulted configuration without reading any file.
func Default() *DoomServerConfig {
	cfg := &DoomServerConfig{}
	applyLegacyEnv(cfg)
	setDefaults(cfg)
	return cfg
}

// resolveEnv replaces environment variable placeholders in YAML content.
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}

// applyLegacyEnv honors the flat environment variables the original
// deployment scripts export. They win over YAML values so that an operator
// override never needs a config edit.
func applyLegacyEnv(cfg *DoomServerConfig) {
	if v := os.Getenv("DOOM_FRAMEBUFFER"); v != "" {
		cfg.Doom.Framebuffer = v
	}
	if v := os.Getenv("DOOM_SESSION_DIR"); v != "" {
		cfg.Session.Dir = v
	}
	if v := os.Getenv("DOOM_WAD_PATH"); v != "" {
		cfg.Doom.WADPath = v
	}
	if v := os.Getenv("DOOM_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 && port < 65536 {
			cfg.Port = port
		}
	}
	if v := os.Getenv("DOOM_DISABLE_SPAWN"); v == "1" {
		cfg.Doom.DisableSpawn = true
	}
}

// parseDurations resolves the duration strings the YAML carried. Empty
// strings are left for setDefaults.
func parseDurations(cfg *DoomServerConfig) error {
	for _, f := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"session.idle_timeout", cfg.Session.IdleTimeoutRaw, &cfg.Session.IdleTimeout},
		{"session.sweep_interval", cfg.Session.SweepIntervalRaw, &cfg.Session.SweepInterval},
		{"stream.frame_interval", cfg.Stream.FrameIntervalRaw, &cfg.Stream.FrameInterval},
	} {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", f.name, err)
		}
		*f.dst = d
	}
	return nil
}

func setDefaults(cfg *DoomServerConfig) {
	if cfg.Port == 0 {
		cfg.Port = cnst.DefaultPort
	}
	if cfg.PublicDir == "" {
		cfg.PublicDir = cnst.DefaultPublicDir
	}
	if cfg.Session.MaxSessions == 0 {
		cfg.Session.MaxSessions = cnst.DefaultMaxSessions
	}
	if cfg.Session.Dir == "" {
		cfg.Session.Dir = cnst.DefaultSessionDir
	}
	if cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = cfg.Session.IdleTimeout / 2
	}
	if cfg.Doom.Binary == "" {
		cfg.Doom.Binary = cnst.DefaultDoomBinary
	}
	if cfg.Doom.WADPath == "" {
		cfg.Doom.WADPath = cnst.DefaultWADPath
	}
	if cfg.Doom.Framebuffer == "" {
		cfg.Doom.Framebuffer = cnst.DefaultFramebuffer
	}
	if cfg.Stream.FrameInterval == 0 {
		cfg.Stream.FrameInterval = cnst.DefaultFrameInterval
	}
	if cfg.Stream.JPEGQuality == 0 {
		cfg.Stream.JPEGQuality = cnst.DefaultJPEGQuality
	}
	if cfg.Input.Rate == 0 {
		cfg.Input.Rate = 60
	}
	if cfg.Input.Burst == 0 {
		cfg.Input.Burst = 30
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "doom"
	}
}

func validate(cfg *DoomServerConfig) error {
	if cfg.Port <= 0 || cfg.Port >= 65536 {
		return fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Session.MaxSessions <= 0 {
		return fmt.Errorf("invalid max_sessions: %d", cfg.Session.MaxSessions)
	}
	if cfg.Stream.JPEGQuality < 1 || cfg.Stream.JPEGQuality > 100 {
		return fmt.Errorf("invalid jpeg_quality: %d", cfg.Stream.JPEGQuality)
	}
	return nil
}
