package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/alexjbarnes/media-sync/internal/state"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the process-level configuration for media-sync. Sync
// settings that the user can change between runs (destination root,
// source, conflict policy, ...) live in state.Settings instead; they are
// persisted in bbolt and only overridden here when the matching
// environment variable is explicitly set.
type Config struct {
	// Base URL of the cloud storage server, e.g. https://cloud.example.com
	ServerURL string `env:"SERVER_URL"`

	// Bearer token for the API. When empty, the token cached in the state
	// database is used.
	AuthToken string `env:"AUTH_TOKEN"`

	// Watch keeps the process alive and re-syncs when the local folder
	// changes. Only meaningful for the folder source.
	Watch bool `env:"WATCH" envDefault:"false"`

	// Environment controls log format
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// LogLevel overrides the environment's default log level when set.
	LogLevel string `env:"LOG_LEVEL"`

	// DeviceName this client identifies as. Defaults to system hostname.
	DeviceName string `env:"DEVICE_NAME"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing the auth token to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.DeviceName == "" {
		hostname, err := os.Hostname()
		if err != nil || hostname == "" {
			hostname = "media-sync"
		}

		cfg.DeviceName = hostname
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("SERVER_URL is required")
	}

	if !strings.HasPrefix(c.ServerURL, "http://") && !strings.HasPrefix(c.ServerURL, "https://") {
		return fmt.Errorf("SERVER_URL must start with http:// or https://")
	}

	return nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Settings environment variable names. Each overrides the persisted
// value only when explicitly set, and the override is written back so
// the next run starts from it.
const (
	envDestRoot       = "DEST_ROOT"
	envBasePath       = "UPLOAD_BASE_PATH"
	envSource         = "SYNC_SOURCE"
	envLocalFolder    = "LOCAL_FOLDER"
	envCameraDir      = "CAMERA_DIR"
	envIncludeVideos  = "INCLUDE_VIDEOS"
	envMirrorDelete   = "MIRROR_DELETE"
	envConflictPolicy = "CONFLICT_POLICY"
)

// ApplySettingsOverrides overlays explicitly-set environment variables
// onto persisted settings. Returns true when anything changed, so the
// caller knows to persist the merged result.
func ApplySettingsOverrides(s *state.Settings) (bool, error) {
	changed := false

	if v, ok := os.LookupEnv(envDestRoot); ok && v != s.DestRoot {
		s.DestRoot = v
		changed = true
	}

	if v, ok := os.LookupEnv(envBasePath); ok && v != s.BasePath {
		s.BasePath = v
		changed = true
	}

	if v, ok := os.LookupEnv(envSource); ok {
		if v != "camera" && v != "folder" {
			return false, fmt.Errorf("%s must be \"camera\" or \"folder\", got %q", envSource, v)
		}
		if v != s.Source {
			s.Source = v
			changed = true
		}
	}

	if v, ok := os.LookupEnv(envLocalFolder); ok {
		abs, err := filepath.Abs(v)
		if err != nil {
			return false, fmt.Errorf("resolving %s to absolute path: %w", envLocalFolder, err)
		}
		if abs != s.LocalFolder {
			s.LocalFolder = abs
			changed = true
		}
	}

	if v, ok := os.LookupEnv(envCameraDir); ok {
		abs, err := filepath.Abs(v)
		if err != nil {
			return false, fmt.Errorf("resolving %s to absolute path: %w", envCameraDir, err)
		}
		if abs != s.CameraDir {
			s.CameraDir = abs
			changed = true
		}
	}

	if v, ok := os.LookupEnv(envIncludeVideos); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("parsing %s: %w", envIncludeVideos, err)
		}
		if b != s.IncludeVideos {
			s.IncludeVideos = b
			changed = true
		}
	}

	if v, ok := os.LookupEnv(envMirrorDelete); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("parsing %s: %w", envMirrorDelete, err)
		}
		if b != s.MirrorDelete {
			s.MirrorDelete = b
			changed = true
		}
	}

	if v, ok := os.LookupEnv(envConflictPolicy); ok {
		if v != "skip" && v != "overwrite" && v != "rename" {
			return false, fmt.Errorf("%s must be \"skip\", \"overwrite\" or \"rename\", got %q", envConflictPolicy, v)
		}
		if v != s.ConflictPolicy {
			s.ConflictPolicy = v
			changed = true
		}
	}

	return changed, nil
}
