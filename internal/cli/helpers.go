package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/aliquot/internal/config"
	"github.com/aretw0/aliquot/internal/logging"
	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/observability"
)

// Options are the flags shared by every command.
type Options struct {
	ConfigPath string
	Debug      bool
	LogLevel   string // overrides the configured level when set
}

// loadConfig reads the robot configuration and builds the logger it asks for.
func loadConfig(opts Options, stderr io.Writer) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return cfg, nil, err
	}
	level := cfg.Level()
	if opts.LogLevel != "" {
		if level, err = logging.ParseLevel(opts.LogLevel); err != nil {
			return cfg, nil, err
		}
	}
	if opts.Debug {
		level = slog.LevelDebug
	}
	return cfg, logging.NewTo(stderr, level), nil
}

// hooks returns the debug logging hooks when --debug is set.
func hooks(opts Options, logger *slog.Logger) domain.LifecycleHooks {
	if !opts.Debug {
		return domain.LifecycleHooks{}
	}
	return observability.LoggingHooks(logger)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
