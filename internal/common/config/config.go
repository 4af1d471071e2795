package config

import "time"

type (
	// DoomServerConfig is the top-level configuration for the doom-server
	// binary.
	DoomServerConfig struct {
		Port      int           `yaml:"port"`
		PID       string        `yaml:"pid"` // optional pid file path
		PublicDir string        `yaml:"public_dir"`
		Logger    LoggerConfig  `yaml:"logger"`
		Metrics   MetricsConfig `yaml:"metrics"`
		Session   SessionConfig `yaml:"session"`
		Doom      DoomConfig    `yaml:"doom"`
		Stream    StreamConfig  `yaml:"stream"`
		Input     InputConfig   `yaml:"input"`
	}

	// SessionConfig controls the fixed-capacity session pool.
	SessionConfig struct {
		MaxSessions int    `yaml:"max_sessions"` // number of session slots
		Dir         string `yaml:"dir"`          // directory for session FIFOs
		// DisableCreate rejects requests that would allocate a new slot.
		// Existing sessions keep working.
		DisableCreate bool `yaml:"disable_create"`
		// IdleTimeoutRaw and SweepIntervalRaw come from YAML as duration
		// strings ("5m", "30s"). The parsed values live in IdleTimeout
		// and SweepInterval. Zero idle timeout disables the sweep.
		IdleTimeoutRaw   string        `yaml:"idle_timeout"`
		SweepIntervalRaw string        `yaml:"sweep_interval"`
		IdleTimeout      time.Duration `yaml:"-"`
		SweepInterval    time.Duration `yaml:"-"`
	}

	// DoomConfig describes the external DOOM process and its capture target.
	DoomConfig struct {
		Binary       string `yaml:"binary"`
		WADPath      string `yaml:"wad_path"`
		Framebuffer  string `yaml:"framebuffer"`
		DisableSpawn bool   `yaml:"disable_spawn"` // dry runs: sessions without a process
	}

	// StreamConfig controls the MJPEG production loop.
	StreamConfig struct {
		FrameIntervalRaw string        `yaml:"frame_interval"`
		FrameInterval    time.Duration `yaml:"-"`
		JPEGQuality      int           `yaml:"jpeg_quality"`
	}

	// InputConfig controls key-event injection.
	InputConfig struct {
		Rate  float64 `yaml:"rate"`  // events per second per session
		Burst int     `yaml:"burst"` // burst allowance
	}

	// LoggerConfig represents the logger configuration.
	LoggerConfig struct {
		Level      string `yaml:"level"`       // debug, info, warn, error
		Format     string `yaml:"format"`      // json, console
		Output     string `yaml:"output"`      // stdout, file
		FilePath   string `yaml:"file_path"`   // path to log file when output is file
		MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
		MaxBackups int    `yaml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
		Compress   bool   `yaml:"compress"`    // whether to compress backup files
		Color      bool   `yaml:"color"`       // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace"`  // whether to include stacktrace in error logs
	}

	// MetricsConfig represents the prometheus metrics configuration.
	MetricsConfig struct {
		Namespace string    `yaml:"namespace"`
		Buckets   []float64 `yaml:"buckets"`
	}
)
