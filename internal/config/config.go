// Package config loads the robot configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/aliquot/internal/logging"
	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/pipette"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for a configuration file.
const DefaultPath = "robot.yaml"

// EnvPath overrides DefaultPath.
const EnvPath = "ALIQUOT_CONFIG"

const (
	DriverSimulator = "simulator"
	DriverSmoothie  = "smoothie"

	TipStoreMemory = "memory"
	TipStoreRedis  = "redis"
)

// Config describes the robot a process drives.
type Config struct {
	Driver       string            `mapstructure:"driver"`
	Serial       Serial            `mapstructure:"serial"`
	Instruments  map[string]string `mapstructure:"instruments"`
	DefaultSpeed float64           `mapstructure:"default_speed"`
	TipStore     TipStore          `mapstructure:"tip_store"`
	LogLevel     string            `mapstructure:"log_level"`
	Listen       string            `mapstructure:"listen"`
	LockTTL      time.Duration     `mapstructure:"lock_ttl"`
}

// Serial configures the motion controller port.
type Serial struct {
	Port        string        `mapstructure:"port"`
	Baud        int           `mapstructure:"baud"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// TipStore selects where tip usage is tracked.
type TipStore struct {
	Kind  string `mapstructure:"kind"`
	Redis Redis  `mapstructure:"redis"`
}

// Redis configures the shared tip store and the session locks.
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// Default returns a simulated robot with a P300 on the left mount.
func Default() Config {
	return Config{
		Driver: DriverSimulator,
		Serial: Serial{
			Port:        "/dev/ttyACM0",
			Baud:        115200,
			ReadTimeout: 5 * time.Second,
		},
		Instruments:  map[string]string{"left": "p300_single_v1"},
		DefaultSpeed: 400,
		TipStore: TipStore{
			Kind:  TipStoreMemory,
			Redis: Redis{Addr: "localhost:6379", Prefix: "aliquot:"},
		},
		LogLevel: "info",
		Listen:   ":8080",
		LockTTL:  30 * time.Second,
	}
}

// Load reads a configuration file (YAML or JSON, by extension) over the
// defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	var raw map[string]any
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &raw); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		ZeroFields:       true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return cfg, err
	}
	if err := dec.Decode(raw); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", domain.ErrInvalidArgument, filepath.Base(path), err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// Validate rejects unknown drivers, stores, mounts and pipette models.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverSimulator, DriverSmoothie:
	default:
		return fmt.Errorf("%w: unknown driver %q", domain.ErrInvalidArgument, c.Driver)
	}
	switch c.TipStore.Kind {
	case TipStoreMemory, TipStoreRedis:
	default:
		return fmt.Errorf("%w: unknown tip store %q", domain.ErrInvalidArgument, c.TipStore.Kind)
	}
	if c.DefaultSpeed <= 0 {
		return fmt.Errorf("%w: default_speed must be > 0", domain.ErrInvalidArgument)
	}
	if c.Driver == DriverSmoothie && (c.Serial.Port == "" || c.Serial.Baud <= 0) {
		return fmt.Errorf("%w: smoothie driver needs a serial port and baud rate", domain.ErrInvalidArgument)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	for mount, model := range c.Instruments {
		if _, err := domain.ParseMount(mount); err != nil {
			return err
		}
		if _, err := pipette.Lookup(model); err != nil {
			return err
		}
	}
	return nil
}

// Level returns the configured log level.
func (c Config) Level() slog.Level {
	level, _ := logging.ParseLevel(c.LogLevel)
	return level
}

// Mounts returns the configured instruments keyed by mount.
func (c Config) Mounts() map[domain.Mount]string {
	out := make(map[domain.Mount]string, len(c.Instruments))
	for mount, model := range c.Instruments {
		if m, err := domain.ParseMount(mount); err == nil {
			out[m] = model
		}
	}
	return out
}
