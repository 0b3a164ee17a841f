//go:build unix

package process

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Handle is the supervisor's ownership of an unreaped OS process.
type Handle interface {
	Pid() int
	// Query reports the current state without blocking.
	Query() (Status, error)
	// Release frees the OS resources behind the handle.
	Release() error
}

// osHandle reaps with wait4(WNOHANG) so no goroutine ever blocks in Wait.
type osHandle struct {
	proc  *os.Process
	final *Status
}

func newOSHandle(p *os.Process) *osHandle { return &osHandle{proc: p} }

func (h *osHandle) Pid() int { return h.proc.Pid }

func (h *osHandle) Query() (Status, error) {
	if h.final != nil {
		return *h.final, nil
	}
	pid := h.proc.Pid
	var ws unix.WaitStatus
	for {
		wpid, err := unix.Wait4(pid, &ws, unix.WNOHANG, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return Status{}, fmt.Errorf("%w: pid %d: %w", ErrStatusQuery, pid, err)
		}
		if wpid == 0 {
			return Status{Running: true, PID: pid, ExitCode: ExitCodeRunning}, nil
		}
		break
	}
	if ws.Stopped() || ws.Continued() {
		return Status{Running: true, PID: pid, ExitCode: ExitCodeRunning}, nil
	}
	st := Status{
		Running:  false,
		PID:      pid,
		ExitCode: exitCodeFrom(ws.Exited(), ws.ExitStatus(), ws.Signaled(), int(ws.Signal())),
	}
	h.final = &st
	return st, nil
}

func (h *osHandle) Release() error { return h.proc.Release() }
