package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"annotator/internal/ink"
)

// EnvDataDir overrides where the database and exports live.
const EnvDataDir = "ANNOTATOR_DATA_DIR"

// EnvMode selects the coordinate mode: "document" (default) or "container".
const EnvMode = "ANNOTATOR_MODE"

// EnvMCPApproval set to "off" lets the standalone MCP server run destructive
// tools without asking.
const EnvMCPApproval = "ANNOTATOR_MCP_APPROVAL"

// Config holds everything App needs to start.
type Config struct {
	DataDir string
	// DBPath defaults to DataDir/annotator.db.
	DBPath string
	Mode   ink.Mode

	SaveDelay time.Duration
	// Maintenance is a cron spec for snapshot pruning; empty disables it.
	Maintenance string
	// WatchInterval is the fallback poll for external writes; zero disables
	// polling and relies on fsnotify alone.
	WatchInterval time.Duration
	// FrameInterval drives pending renders; zero disables the frame clock.
	FrameInterval time.Duration
	// MCPApproval makes the standalone MCP server wait for a human answer
	// (annotator approve/reject) before destructive tools run.
	MCPApproval bool
}

// DefaultConfig reads the environment and falls back to
// ~/.local/share/annotator.
func DefaultConfig() (Config, error) {
	cfg := Config{
		Maintenance:   "@every 1h",
		WatchInterval: 2 * time.Second,
		FrameInterval: ink.DefaultFrameInterval,
		MCPApproval:   true,
	}

	cfg.DataDir = os.Getenv(EnvDataDir)
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve data dir: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".local", "share", "annotator")
	}

	switch m := strings.ToLower(strings.TrimSpace(os.Getenv(EnvMode))); m {
	case "", "document":
		cfg.Mode = ink.ModeDocument
	case "container":
		cfg.Mode = ink.ModeContainer
	default:
		return Config{}, fmt.Errorf("%s: unknown mode %q", EnvMode, m)
	}

	switch v := strings.ToLower(strings.TrimSpace(os.Getenv(EnvMCPApproval))); v {
	case "", "on", "1", "true":
	case "off", "0", "false":
		cfg.MCPApproval = false
	default:
		return Config{}, fmt.Errorf("%s: expected on or off, got %q", EnvMCPApproval, v)
	}
	return cfg, nil
}

func (c Config) dbPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.DataDir, "annotator.db")
}

func (c Config) exportDir() string {
	return filepath.Join(c.DataDir, "exports")
}
