package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/aliquot/internal/config"
	"github.com/aretw0/aliquot/internal/runtime"
	"github.com/aretw0/aliquot/pkg/adapters/memory"
	"github.com/aretw0/aliquot/pkg/adapters/redis"
	"github.com/aretw0/aliquot/pkg/adapters/simulator"
	"github.com/aretw0/aliquot/pkg/adapters/smoothie"
	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Backend holds what the configuration selects: the hardware, the tip
// store and, with Redis, the distributed locker.
type Backend struct {
	Config config.Config
	Store  ports.TipStore
	Locker ports.DistributedLocker

	hardware ports.Hardware // shared; nil for the simulator
	driver   *smoothie.Driver
	client   *backend.Client
	logger   *slog.Logger
}

// Connect opens the hardware and storage described by cfg.
func Connect(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Backend, error) {
	b := &Backend{Config: cfg, logger: logger}

	switch cfg.TipStore.Kind {
	case config.TipStoreRedis:
		b.client = backend.NewClient(&backend.Options{
			Addr:     cfg.TipStore.Redis.Addr,
			Password: cfg.TipStore.Redis.Password,
			DB:       cfg.TipStore.Redis.DB,
		})
		if err := b.client.Ping(ctx).Err(); err != nil {
			b.client.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.TipStore.Redis.Addr, err)
		}
		b.Store = redis.NewFromClient(b.client, redis.WithPrefix(cfg.TipStore.Redis.Prefix+"tips:"))
		b.Locker = redis.NewLocker(b.client, cfg.TipStore.Redis.Prefix)
	default:
		b.Store = memory.NewTipStore()
	}

	if cfg.Driver == config.DriverSmoothie {
		var opts []smoothie.Option
		for mount, model := range cfg.Mounts() {
			opts = append(opts, smoothie.WithInstrument(mount, model))
		}
		opts = append(opts, smoothie.WithLogger(logger))
		serialCfg := smoothie.SerialConfig{
			Path:        cfg.Serial.Port,
			BaudRate:    cfg.Serial.Baud,
			ReadTimeout: cfg.Serial.ReadTimeout,
		}
		d, err := smoothie.Open(ctx, serialCfg, opts...)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.driver = d
		b.hardware = d
		logger.Info("connected to motion controller", "port", cfg.Serial.Port)
	}
	return b, nil
}

// Shared reports whether every session drives the same physical robot.
func (b *Backend) Shared() bool {
	return b.hardware != nil
}

// Hardware returns the hardware for a new session: the shared driver, or a
// fresh simulator with the configured pipettes.
func (b *Backend) Hardware() (ports.Hardware, ports.ModuleController, error) {
	if b.hardware != nil {
		mc, _ := b.hardware.(ports.ModuleController)
		return b.hardware, mc, nil
	}
	opts := []simulator.Option{simulator.WithLogger(b.logger)}
	for mount, model := range b.Config.Mounts() {
		opts = append(opts, simulator.WithInstrument(mount, model))
	}
	sim, err := simulator.New(opts...)
	if err != nil {
		return nil, nil, err
	}
	return sim, sim, nil
}

// NewSession builds a session on this backend.
func (b *Backend) NewSession(_ context.Context, hooks domain.LifecycleHooks) (*runtime.Session, error) {
	hw, mc, err := b.Hardware()
	if err != nil {
		return nil, err
	}
	opts := []runtime.Option{
		runtime.WithLogger(b.logger),
		runtime.WithLifecycleHooks(hooks),
		runtime.WithTipStore(b.Store),
		runtime.WithDefaultSpeed(b.Config.DefaultSpeed),
	}
	if mc != nil {
		opts = append(opts, runtime.WithModuleController(mc))
	}
	return runtime.NewSession(hw, opts...)
}

// Close releases the serial port and the Redis connection.
func (b *Backend) Close() error {
	var errs []error
	if b.driver != nil {
		errs = append(errs, b.driver.Close())
	}
	if b.client != nil {
		errs = append(errs, b.client.Close())
	}
	return errors.Join(errs...)
}
