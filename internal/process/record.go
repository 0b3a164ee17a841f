package process

import (
	"bytes"
	"time"

	"golang.org/x/time/rate"
)

// MaxLineBytes bounds the partial line kept between drains. A longer
// unterminated run of bytes is emitted as a line of its own.
const MaxLineBytes = 64 << 10

// Record is the supervisor's view of one named process. It is owned by
// the reconciliation loop and must not be shared across goroutines.
type Record struct {
	Name    string
	Command string
	Enabled bool
	Running bool

	exitCode int
	exitSet  bool

	// live holds the pid, the OS handle and the output pipe together so
	// they can only ever be set or cleared as a unit.
	live *live

	pending []byte

	startedAt time.Time
	starts    int

	// Failures rate-limits debug logging of spawn and status errors.
	Failures rate.Sometimes
}

type live struct {
	handle Handle
	out    *Pipe
}

// NewRecord returns a stopped, disabled record.
func NewRecord(name string) *Record {
	return &Record{Name: name, Failures: rate.Sometimes{Interval: time.Minute}}
}

// PID returns the pid of the live process, if any.
func (r *Record) PID() (int, bool) {
	if r.live == nil {
		return 0, false
	}
	return r.live.handle.Pid(), true
}

// ExitCode returns the last merged exit code. The bool is false when no
// status has been merged yet.
func (r *Record) ExitCode() (int, bool) { return r.exitCode, r.exitSet }

// Live reports whether the record owns an unreaped process.
func (r *Record) Live() bool { return r.live != nil }

// Output returns the output pipe of the live process or nil.
func (r *Record) Output() *Pipe {
	if r.live == nil {
		return nil
	}
	return r.live.out
}

// Starts counts successful spawns over the life of the record.
func (r *Record) Starts() int { return r.starts }

// Eligible reports whether the record is a candidate for the next start.
func (r *Record) Eligible() bool { return r.Enabled && !r.Running && r.live == nil }

// Attach hands ownership of a freshly spawned process to the record.
func (r *Record) Attach(h Handle, out *Pipe) {
	r.live = &live{handle: h, out: out}
	r.pending = nil
	r.startedAt = time.Now()
	r.starts++
}

// Detach closes the output pipe and releases the process handle.
func (r *Record) Detach() error {
	if r.live == nil {
		return nil
	}
	l := r.live
	r.live = nil
	r.Running = false
	err := l.out.Close()
	if rerr := l.handle.Release(); err == nil {
		err = rerr
	}
	return err
}

// ApplyStatus merges a queried status into the record. A sentinel exit
// code never replaces a real one.
func (r *Record) ApplyStatus(st Status) {
	r.Running = st.Running
	if st.ExitCode == ExitCodeRunning && r.exitSet && r.exitCode != ExitCodeRunning {
		return
	}
	r.exitCode = st.ExitCode
	r.exitSet = true
}

// AppendOutput adds bytes read from the output pipe to the line buffer and
// returns every complete line. The trailing partial line is kept.
func (r *Record) AppendOutput(chunk []byte) []string {
	r.pending = append(r.pending, chunk...)
	var lines []string
	for {
		i := bytes.IndexByte(r.pending, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(r.pending[:i]))
		r.pending = r.pending[i+1:]
	}
	if len(r.pending) >= MaxLineBytes {
		lines = append(lines, string(r.pending))
		r.pending = nil
	}
	if len(r.pending) == 0 {
		r.pending = nil
	} else {
		r.pending = append([]byte(nil), r.pending...)
	}
	return lines
}

// FlushOutput returns and clears the buffered partial line.
func (r *Record) FlushOutput() (string, bool) {
	if len(r.pending) == 0 {
		return "", false
	}
	s := string(r.pending)
	r.pending = nil
	return s, true
}

// Snapshot is an immutable copy of a record for readers outside the loop.
type Snapshot struct {
	Name      string    `json:"name"`
	Command   string    `json:"command"`
	Enabled   bool      `json:"enabled"`
	Running   bool      `json:"running"`
	PID       int       `json:"pid,omitempty"`
	ExitCode  *int      `json:"exit_code,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Starts    int       `json:"starts"`
}

func (r *Record) Snapshot() Snapshot {
	s := Snapshot{
		Name:    r.Name,
		Command: r.Command,
		Enabled: r.Enabled,
		Running: r.Running,
		Starts:  r.starts,
	}
	if pid, ok := r.PID(); ok {
		s.PID = pid
		s.StartedAt = r.startedAt
	}
	if r.exitSet && r.exitCode != ExitCodeRunning {
		code := r.exitCode
		s.ExitCode = &code
	}
	return s
}
