package process

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/loykin/spawnd/internal/logger"
)

// Spawner creates an OS process running command with stdout redirected
// into the given file.
type Spawner interface {
	Spawn(command string, stdout *os.File) (Handle, error)
}

// ExecSpawner spawns through os/exec. Standard input and error are
// inherited from the supervisor, as is the environment.
type ExecSpawner struct{}

func (ExecSpawner) Spawn(command string, stdout *os.File) (Handle, error) {
	cmd := BuildCommand(command)
	cmd.Stdin = os.Stdin
	cmd.Stdout = stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}
	return newOSHandle(cmd.Process), nil
}

// Launcher starts eligible records.
type Launcher struct {
	spawner Spawner
	emit    logger.Emitter
	log     *slog.Logger
}

func NewLauncher(sp Spawner, emit logger.Emitter, log *slog.Logger) *Launcher {
	if sp == nil {
		sp = ExecSpawner{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Launcher{spawner: sp, emit: emit, log: log}
}

// Start spawns r.Command if r is enabled and not running, and reports
// whether a process was started. Spawn failures leave the record untouched
// so the next start cycle retries.
func (l *Launcher) Start(r *Record) bool {
	if !r.Eligible() {
		return false
	}
	out, w, err := NewPipe()
	if err != nil {
		l.failed(r, err)
		return false
	}
	h, err := l.spawner.Spawn(r.Command, w)
	_ = w.Close()
	if err != nil {
		_ = out.Close()
		l.failed(r, err)
		return false
	}
	r.Attach(h, out)
	if err := Refresh(r); err != nil {
		l.failed(r, err)
	}
	l.emit.Emit(fmt.Sprintf("process started %d running %s", h.Pid(), r.Command), r.Name)
	return true
}

func (l *Launcher) failed(r *Record, err error) {
	r.Failures.Do(func() {
		l.log.Debug("start attempt failed", "name", r.Name, "command", r.Command, "error", err)
	})
}

// Refresh queries the OS for the record's live process and merges the
// result. Records without a live process are left alone. Query errors are
// returned and leave the record unchanged.
func Refresh(r *Record) error {
	if r.live == nil {
		return nil
	}
	st, err := r.live.handle.Query()
	if err != nil {
		return err
	}
	r.ApplyStatus(st)
	return nil
}
