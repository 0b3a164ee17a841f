//go:build unix

// Package output watches the stdout pipes of every supervised process from
// a single goroutine and turns the bytes into log lines.
package output

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"

	"github.com/loykin/spawnd/internal/logger"
	"github.com/loykin/spawnd/internal/metrics"
	"github.com/loykin/spawnd/internal/process"
)

const (
	readChunk        = 4096
	maxReadsPerDrain = 64
)

// Multiplexer waits for readiness across many output pipes with poll(2)
// and drains the ready ones into complete lines.
type Multiplexer struct {
	timeout time.Duration
	emit    logger.Emitter
	buf     []byte
	fds     []unix.PollFd
	recs    []*process.Record
}

// New returns a Multiplexer whose readiness wait is bounded by timeout.
func New(timeout time.Duration, emit logger.Emitter) *Multiplexer {
	return &Multiplexer{timeout: timeout, emit: emit, buf: make([]byte, readChunk)}
}

// Wait blocks for at most the configured timeout until one of the open
// streams has data, and returns the ready records. Records without an open
// stream, or whose stream already reached EOF, are not watched. With no
// stream to watch it returns immediately.
func (m *Multiplexer) Wait(recs []*process.Record) ([]*process.Record, error) {
	m.fds = m.fds[:0]
	m.recs = m.recs[:0]
	for _, r := range recs {
		p := r.Output()
		if p == nil || p.EOF() {
			continue
		}
		m.fds = append(m.fds, unix.PollFd{Fd: int32(p.Fd()), Events: unix.POLLIN})
		m.recs = append(m.recs, r)
	}
	if len(m.fds) == 0 {
		return nil, nil
	}
	n, err := unix.Poll(m.fds, int(m.timeout.Milliseconds()))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	ready := make([]*process.Record, 0, n)
	for i, fd := range m.fds {
		if fd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			ready = append(ready, m.recs[i])
		}
	}
	return ready, nil
}

// Drain reads everything currently available from each ready stream and
// emits one line per complete newline-terminated line. It returns how many
// streams produced data.
func (m *Multiplexer) Drain(ready []*process.Record) int {
	count := 0
	for _, r := range ready {
		if m.drainOne(r) > 0 {
			count++
		}
	}
	return count
}

// WaitAndDrain combines Wait and Drain. A failed wait counts as idle.
func (m *Multiplexer) WaitAndDrain(recs []*process.Record) int {
	ready, err := m.Wait(recs)
	if err != nil || len(ready) == 0 {
		return 0
	}
	return m.Drain(ready)
}

// Flush drains whatever the stream still holds and emits the trailing
// partial line. It is used right before a stopped process's stream is closed.
func (m *Multiplexer) Flush(r *process.Record) {
	if r.Output() != nil {
		m.drainOne(r)
	}
	if line, ok := r.FlushOutput(); ok {
		m.emitLines(r.Name, []string{line})
	}
}

func (m *Multiplexer) drainOne(r *process.Record) int {
	p := r.Output()
	if p == nil {
		return 0
	}
	total := 0
	// Bounded so one chatty child cannot starve the rest of the tick.
	for i := 0; i < maxReadsPerDrain; i++ {
		n, err := p.Read(m.buf)
		if n > 0 {
			total += n
			m.emitLines(r.Name, r.AppendOutput(m.buf[:n]))
		}
		if err != nil {
			break
		}
	}
	return total
}

func (m *Multiplexer) emitLines(name string, lines []string) {
	for _, line := range lines {
		m.emit.Emit(line, name)
	}
	if len(lines) > 0 {
		metrics.AddOutputLines(name, len(lines))
	}
}
