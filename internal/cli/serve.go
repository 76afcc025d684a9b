package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aretw0/aliquot/internal/runtime"
	httpAdapter "github.com/aretw0/aliquot/pkg/adapters/http"
	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/observability"
	"github.com/aretw0/aliquot/pkg/runner"
	"github.com/aretw0/aliquot/pkg/session"
)

// ServeOptions configures the serve command.
type ServeOptions struct {
	Options
	Listen string // overrides the configured address when set
}

const shutdownTimeout = 5 * time.Second

// Serve exposes robot sessions over HTTP until SIGINT or SIGTERM.
func Serve(opts ServeOptions, stdout, stderr io.Writer) error {
	cfg, logger, err := loadConfig(opts.Options, stderr)
	if err != nil {
		return err
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}

	sm := runner.NewSignalManager()
	defer sm.Stop()

	b, err := Connect(sm.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	metrics := observability.NewMetrics(observability.WithProcessCollectors())
	managerOpts := []session.Option{session.WithLogger(logger), session.WithLockTTL(cfg.LockTTL)}
	if b.Locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(b.Locker))
	}
	manager := session.NewManager(managerOpts...)

	extra := domain.MergeHooks(metrics.Hooks(), hooks(opts.Options, logger))
	factory := func(ctx context.Context, stream domain.LifecycleHooks) (*runtime.Session, error) {
		if b.Shared() {
			if ids := manager.List(); len(ids) > 0 {
				return nil, fmt.Errorf("%w: the robot is in use by session %s", domain.ErrInvalidArgument, ids[0])
			}
		}
		return b.NewSession(ctx, domain.MergeHooks(stream, extra))
	}

	handler := httpAdapter.NewHandler(manager, factory,
		httpAdapter.WithLogger(logger),
		httpAdapter.WithMetrics(metrics.Handler()),
	)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		fmt.Fprintf(stdout, "Starting aliquot server on %s (driver: %s)\n", srv.Addr, cfg.Driver)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-sm.Context().Done():
		fmt.Fprintln(stdout, "\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
			return srv.Close()
		}
		fmt.Fprintln(stdout, "aliquot server stopped gracefully")
		return nil
	}
}
