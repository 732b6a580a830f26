package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loykin/svcmon/internal/config"
	"github.com/loykin/svcmon/internal/crashlog"
	"github.com/loykin/svcmon/internal/detector"
	"github.com/loykin/svcmon/internal/dialog"
	"github.com/loykin/svcmon/internal/logger"
	"github.com/loykin/svcmon/internal/manager"
	"github.com/loykin/svcmon/internal/metrics"
	"github.com/loykin/svcmon/internal/process"
	"github.com/loykin/svcmon/internal/server"
	"github.com/prometheus/client_golang/prometheus"
)

// errNotRunning makes `svcmon check` exit non-zero when the process is absent.
var errNotRunning = errors.New("process is not running")

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, nil
}

// runSupervisor loads the configuration, wires every component and blocks
// until ctx is cancelled. Configuration faults are returned before anything
// starts.
func runSupervisor(ctx context.Context, configPath string, out io.Writer) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log, closer, err := logger.New(cfg.Log, out)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = closer.Close() }()

	metricsHandler := metricsHandlerFor(cfg, log)

	if cfg.CrashReport.Enabled {
		scanCrashes(ctx, log, crashlog.NewReader(), crashlog.Query{
			ExeName:  cfg.Monitor.ExecutableName,
			Lookback: cfg.CrashReport.Lookback,
		})
	}

	sup := manager.New(manager.Options{
		Name:          cfg.Monitor.ExecutableName,
		Path:          cfg.Monitor.ExecutablePath,
		CheckInterval: cfg.Monitor.CheckInterval(),
		ProbeInterval: cfg.Dialog.ProbeInterval,
		ProbeTimeout:  cfg.Dialog.ProbeTimeout,
	},
		detector.NewLocator(),
		process.NewLauncher(log),
		dialog.New(cfg.Dialog.Titles, cfg.Dialog.Labels, log),
		log,
	)

	if cfg.Server.Listen != "" {
		srv, err := server.NewServer(cfg.Server.Listen, cfg.Server.BasePath, sup, metricsHandler)
		if err != nil {
			return fmt.Errorf("failed to create HTTP server: %w", err)
		}
		log.Info("Status server listening", "addr", cfg.Server.Listen, "base_path", cfg.Server.BasePath)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	sup.Run(ctx)
	return nil
}

func metricsHandlerFor(cfg *config.Config, log *slog.Logger) http.Handler {
	if !cfg.Metrics.Enabled {
		return nil
	}
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Warn("Metrics registration failed", "error", err)
		return nil
	}
	return metrics.Handler()
}

// scanCrashes logs recent crash reports. Failures are logged, never fatal.
func scanCrashes(ctx context.Context, log *slog.Logger, r *crashlog.Reader, q crashlog.Query) {
	log.Info("Searching for fatal crashes", "name", q.ExeName, "lookback", q.Lookback)
	reports, err := r.Scan(ctx, q)
	if err != nil {
		if errors.Is(err, crashlog.ErrUnsupported) {
			log.Debug("Crash report scan skipped", "reason", err)
			return
		}
		log.Warn("Failed to read crash reports", "error", err)
		return
	}
	crashlog.Log(log, q, reports)
}

func runCheck(configPath string, out io.Writer) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	d := detector.NewImageDetector(cfg.Monitor.ExecutableName, cfg.Monitor.ExecutablePath)
	alive, err := d.Alive()
	if err != nil {
		return fmt.Errorf("%s: %w", d.Describe(), err)
	}
	if !alive {
		_, _ = fmt.Fprintf(out, "%s: not running\n", d.Describe())
		return errNotRunning
	}
	_, _ = fmt.Fprintf(out, "%s: running\n", d.Describe())
	return nil
}

func runCrashes(ctx context.Context, configPath string, flags CrashesFlags, out io.Writer) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log, closer, err := logger.New(cfg.Log, out)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = closer.Close() }()

	q := crashlog.Query{
		ExeName:        cfg.Monitor.ExecutableName,
		Lookback:       cfg.CrashReport.Lookback,
		IncludeReports: flags.IncludeReports,
	}
	if flags.Lookback > 0 {
		q.Lookback = flags.Lookback
	}
	if ctx == nil {
		ctx = context.Background()
	}
	reports, err := crashlog.NewReader().Scan(ctx, q)
	if err != nil {
		return err
	}
	crashlog.Log(log, q, reports)
	return nil
}
