package spawnd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/spawnd/internal/config"
	"github.com/loykin/spawnd/internal/history"
	"github.com/loykin/spawnd/internal/history/factory"
	"github.com/loykin/spawnd/internal/logger"
	"github.com/loykin/spawnd/internal/manager"
	"github.com/loykin/spawnd/internal/metrics"
	"github.com/loykin/spawnd/internal/process"
	"github.com/loykin/spawnd/internal/registry"
	"github.com/loykin/spawnd/internal/server"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Options = config.Options

type State = manager.State

type ProcessSnapshot = process.Snapshot

type Emitter = logger.Emitter

type HistorySink = history.Sink

type HistoryEvent = history.Event

// AdhocName is the record created for a command given on the command line.
const AdhocName = "adhoc"

// LoadOptions reads daemon options from defaults, the optional TOML file at
// path and SPAWND_* environment variables.
func LoadOptions(path string) (Options, error) {
	return config.Load(config.NewViper(), path)
}

// Config wires a Daemon.
type Config struct {
	Options Options
	Logger  *slog.Logger

	// Adhoc, when set, is supervised as AdhocName in addition to whatever
	// the config directory declares.
	Adhoc string
	// ConfDirOptional lets the daemon run without a config directory when
	// Adhoc is set.
	ConfDirOptional bool

	// Emitters receive every line next to the ones built from Options.Log.
	Emitters []Emitter
	// HistorySinks are used next to the ones built from Options.History.DSN.
	HistorySinks []HistorySink
}

// Daemon is a supervisor assembled from Options.
type Daemon struct {
	opts Options
	log  *slog.Logger

	emit logger.MultiEmitter
	src  *config.DirSource
	disp *history.Dispatcher
	mgr  *manager.Manager

	srv atomic.Pointer[server.Server]
}

// New builds the emitters, the registry, the config source and the history
// dispatcher. Nothing runs until Run.
func New(cfg Config) (_ *Daemon, err error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	d := &Daemon{opts: cfg.Options, log: log}
	defer func() {
		if err != nil {
			d.close()
		}
	}()

	d.emit = logger.MultiEmitter{logger.NewSlogEmitter(log)}
	if cfg.Options.Log.Dir != "" {
		fe, err := logger.NewFileEmitter(cfg.Options.Log.FileConfig)
		if err != nil {
			return nil, fmt.Errorf("log dir: %w", err)
		}
		d.emit = append(d.emit, fe)
	}
	if cfg.Options.Log.Syslog {
		se, err := logger.NewSyslogEmitter()
		if err != nil {
			return nil, fmt.Errorf("syslog: %w", err)
		}
		d.emit = append(d.emit, se)
	}
	d.emit = append(d.emit, cfg.Emitters...)

	reg := registry.New(d.emit)
	if cfg.Options.ConfDir != "" {
		src, err := config.NewDirSource(cfg.Options.ConfDir, cfg.Options.WatchConfDir, log)
		switch {
		case err == nil:
			d.src = src
			log.Info("reading process config", "dir", src.Dir(), "watch", cfg.Options.WatchConfDir)
		case cfg.Adhoc != "" && cfg.ConfDirOptional:
			log.Warn("config directory unavailable, supervising the ad hoc command only", "error", err)
		default:
			return nil, err
		}
	}
	if cfg.Adhoc != "" {
		enabled := true
		if err := reg.MergeConfig(AdhocName, registry.Declared{Command: &cfg.Adhoc, Enabled: &enabled}); err != nil {
			return nil, err
		}
	}

	sinks, err := factory.NewSinks(cfg.Options.History.DSN)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	sinks = append(sinks, cfg.HistorySinks...)

	mc := manager.Config{
		Options: manager.Options{
			ReloadInterval: cfg.Options.ReloadInterval,
			StartInterval:  cfg.Options.StartInterval,
			IdleSleep:      cfg.Options.IdleSleep,
			PollTimeout:    cfg.Options.PollTimeout,
			ShutdownGrace:  cfg.Options.ShutdownGrace,
		},
		Registry: reg,
		Emitter:  d.emit,
		Logger:   log,
	}
	if d.src != nil {
		mc.Source = d.src
	}
	if len(sinks) > 0 {
		d.disp = history.NewDispatcher(sinks, cfg.Options.History.QueueSize, log)
		mc.History = d.disp
	}
	d.mgr = manager.New(mc)
	return d, nil
}

// Run supervises until ctx is cancelled and the shutdown grace has passed
// or every child has exited. The admin server, when configured, runs for
// the same span.
func (d *Daemon) Run(ctx context.Context) error {
	if d.opts.Server.Listen != "" {
		srv, err := server.Start(d.mgr, server.Options{
			Listen:   d.opts.Server.Listen,
			BasePath: d.opts.Server.BasePath,
			Metrics:  d.opts.Server.Metrics,
			TLS:      d.opts.Server.TLS,
			Logger:   d.log,
		})
		if err != nil {
			if d.disp != nil {
				_ = d.disp.Close(context.Background())
			}
			d.close()
			return fmt.Errorf("admin server: %w", err)
		}
		d.srv.Store(srv)
	}

	runErr := d.mgr.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var errs []error
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		errs = append(errs, runErr)
	}
	if srv := d.srv.Load(); srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}
	if d.disp != nil {
		if err := d.disp.Close(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("history: %w", err))
		}
	}
	d.close()
	return errors.Join(errs...)
}

// Snapshot returns the state published by the last loop iteration.
func (d *Daemon) Snapshot() *State { return d.mgr.Snapshot() }

// Addr is the admin server address once Run has started it.
func (d *Daemon) Addr() string {
	srv := d.srv.Load()
	if srv == nil {
		return ""
	}
	return srv.Addr()
}

func (d *Daemon) close() {
	if d.src != nil {
		_ = d.src.Close()
	}
	if d.emit != nil {
		_ = d.emit.Close()
	}
}

// RegisterMetrics registers the supervisor collectors on r.
func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }

// MetricsHandler serves the default prometheus registry.
func MetricsHandler() http.Handler { return metrics.Handler() }
