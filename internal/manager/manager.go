// Package manager runs the reconciliation loop: it drains process output,
// detects exits, reloads configuration and starts enabled processes, all
// from a single goroutine.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/loykin/spawnd/internal/history"
	"github.com/loykin/spawnd/internal/logger"
	"github.com/loykin/spawnd/internal/metrics"
	"github.com/loykin/spawnd/internal/output"
	"github.com/loykin/spawnd/internal/process"
	"github.com/loykin/spawnd/internal/registry"
)

// Options are the loop timings.
type Options struct {
	ReloadInterval time.Duration
	StartInterval  time.Duration
	IdleSleep      time.Duration
	PollTimeout    time.Duration
	ShutdownGrace  time.Duration
}

// DefaultOptions returns the timings used when none are configured.
func DefaultOptions() Options {
	return Options{
		ReloadInterval: 5 * time.Second,
		StartInterval:  time.Second,
		IdleSleep:      time.Second,
		PollTimeout:    time.Second,
		ShutdownGrace:  5 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ReloadInterval <= 0 {
		o.ReloadInterval = d.ReloadInterval
	}
	if o.StartInterval <= 0 {
		o.StartInterval = d.StartInterval
	}
	if o.IdleSleep <= 0 {
		o.IdleSleep = d.IdleSleep
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = d.PollTimeout
	}
	if o.ShutdownGrace < 0 {
		o.ShutdownGrace = 0
	}
	return o
}

// Config wires a Manager. Only Emitter is required.
type Config struct {
	Options

	// Registry defaults to an empty one emitting to Emitter.
	Registry *registry.Registry
	// Source is reloaded every ReloadInterval. Nil disables reloads. A
	// source with a Changed() bool method pulls the next reload forward.
	Source  registry.Source
	Spawner process.Spawner
	Emitter logger.Emitter
	Logger  *slog.Logger
	History history.Publisher
}

// Manager is the reconciliation loop. Tick and Run must be called from one
// goroutine; Snapshot is safe from any.
type Manager struct {
	opts     Options
	reg      *registry.Registry
	src      registry.Source
	launcher *process.Launcher
	mux      *output.Multiplexer
	emit     logger.Emitter
	log      *slog.Logger
	hist     history.Publisher

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)

	nextReload   time.Time
	nextStart    time.Time
	stopping     bool
	stopDeadline time.Time

	snap atomic.Pointer[State]
}

func New(cfg Config) *Manager {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	emit := cfg.Emitter
	if emit == nil {
		emit = logger.NewSlogEmitter(log)
	}
	reg := cfg.Registry
	if reg == nil {
		reg = registry.New(emit)
	}
	hist := cfg.History
	if hist == nil {
		hist = history.Discard
	}
	opts := cfg.Options.withDefaults()
	m := &Manager{
		opts:     opts,
		reg:      reg,
		src:      cfg.Source,
		launcher: process.NewLauncher(cfg.Spawner, emit, log),
		mux:      output.New(opts.PollTimeout, emit),
		emit:     emit,
		log:      log,
		hist:     hist,
		now:      time.Now,
		sleep:    sleepCtx,
	}
	now := m.now()
	m.nextReload = now
	m.nextStart = now
	reg.OnChange(m.onChange)
	m.publish()
	return m
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Registry returns the record store driven by the loop.
func (m *Manager) Registry() *registry.Registry { return m.reg }

// TickResult describes what one iteration did.
type TickResult struct {
	Ready    int
	Stopped  int
	Reloaded bool
	Started  int
	Slept    bool
}

// Tick runs one iteration of the loop.
func (m *Manager) Tick(ctx context.Context) TickResult {
	var res TickResult
	recs := m.reg.Records()

	res.Ready = m.mux.WaitAndDrain(recs)
	res.Stopped = m.detectStops(recs)

	now := m.now()
	if m.src != nil {
		if w, ok := m.src.(interface{ Changed() bool }); ok && w.Changed() {
			m.nextReload = now
		}
		if !now.Before(m.nextReload) {
			m.reload()
			m.nextReload = now.Add(m.opts.ReloadInterval)
			res.Reloaded = true
		}
	}

	if !m.stopping && !now.Before(m.nextStart) {
		res.Started = m.startEligible()
		m.nextStart = now.Add(m.opts.StartInterval)
	}

	enabled := m.reg.EnabledCount()
	metrics.SetCounts(m.liveCount(), enabled)
	m.publish()

	if enabled == 0 || res.Ready == 0 {
		sctx := ctx
		if m.stopping {
			// keep pacing the drain loop after cancellation
			sctx = context.Background()
		}
		m.sleep(sctx, m.opts.IdleSleep)
		res.Slept = true
	}
	return res
}

// detectStops refreshes every live record and retires the ones whose
// process has exited.
func (m *Manager) detectStops(recs []*process.Record) int {
	stopped := 0
	for _, r := range recs {
		pid, ok := r.PID()
		if !ok {
			continue
		}
		if err := process.Refresh(r); err != nil {
			r.Failures.Do(func() {
				m.log.Debug("status query failed", "name", r.Name, "pid", pid, "error", err)
			})
			continue
		}
		if r.Running {
			continue
		}
		m.mux.Flush(r)
		code, _ := r.ExitCode()
		m.emit.Emit(fmt.Sprintf("process stopped %d exit code %d", pid, code), r.Name)
		if err := r.Detach(); err != nil {
			m.log.Debug("release process handle", "name", r.Name, "pid", pid, "error", err)
		}
		metrics.ObserveStop(r.Name, code)
		m.hist.Publish(history.Event{
			Type:       history.EventStop,
			OccurredAt: m.now().UTC(),
			Name:       r.Name,
			PID:        pid,
			ExitCode:   history.ExitCode(code),
		})
		stopped++
	}
	return stopped
}

func (m *Manager) reload() {
	if err := m.reg.ReloadAll(m.src); err != nil {
		metrics.IncReloadError()
		m.log.Warn("config reload failed", "error", err)
	}
}

func (m *Manager) startEligible() int {
	started := 0
	for _, r := range m.reg.Records() {
		if !m.launcher.Start(r) {
			continue
		}
		started++
		pid, _ := r.PID()
		metrics.IncStart(r.Name)
		m.hist.Publish(history.Event{
			Type:       history.EventStart,
			OccurredAt: m.now().UTC(),
			Name:       r.Name,
			PID:        pid,
			Command:    r.Command,
		})
	}
	return started
}

func (m *Manager) onChange(c registry.Change) {
	metrics.IncConfigChange(c.Name, c.Field)
	m.hist.Publish(history.Event{
		Type:       history.EventConfig,
		OccurredAt: m.now().UTC(),
		Name:       c.Name,
		Field:      c.Field,
		Old:        c.Old,
		New:        c.New,
	})
}

func (m *Manager) liveCount() int {
	n := 0
	for _, r := range m.reg.Records() {
		if r.Live() {
			n++
		}
	}
	return n
}

// Run loops until ctx is cancelled, then keeps draining output and
// detecting exits until no process is left or ShutdownGrace has elapsed.
// Children are never signalled.
func (m *Manager) Run(ctx context.Context) error {
	m.emit.Emit("supervisor started", logger.DaemonSource)
	for {
		if ctx.Err() != nil && !m.stopping {
			m.beginShutdown()
		}
		if m.stopping {
			live := m.liveCount()
			if live == 0 || !m.now().Before(m.stopDeadline) {
				m.emit.Emit(fmt.Sprintf("supervisor exiting, %d processes still running", live), logger.DaemonSource)
				return nil
			}
		}
		m.Tick(ctx)
	}
}

func (m *Manager) beginShutdown() {
	m.stopping = true
	m.stopDeadline = m.now().Add(m.opts.ShutdownGrace)
	m.emit.Emit(fmt.Sprintf("supervisor stopping, waiting up to %s for %d processes", m.opts.ShutdownGrace, m.liveCount()), logger.DaemonSource)
	m.publish()
}
