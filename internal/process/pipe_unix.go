//go:build unix

package process

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// Pipe is the supervisor's read end of a child's standard output. The
// descriptor is non-blocking so a silent child can never stall a read.
type Pipe struct {
	fd     int
	eof    bool
	closed bool
}

// NewPipe creates a pipe whose read end is non-blocking. The returned file
// is the write end, meant to become the child's stdout; the caller closes
// it once the child has been started.
func NewPipe() (*Pipe, *os.File, error) {
	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_CLOEXEC); err != nil {
		return nil, nil, err
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return nil, nil, err
	}
	return &Pipe{fd: fds[0]}, os.NewFile(uintptr(fds[1]), "|1"), nil
}

// Fd returns the read descriptor.
func (p *Pipe) Fd() int { return p.fd }

// EOF reports whether the write end has been closed by every holder.
func (p *Pipe) EOF() bool { return p.eof }

// Read reads available bytes without blocking. It returns ErrWouldBlock
// when the pipe is empty and io.EOF once the writer is gone.
func (p *Pipe) Read(b []byte) (int, error) {
	if p.closed {
		return 0, os.ErrClosed
	}
	if p.eof {
		return 0, io.EOF
	}
	for {
		n, err := unix.Read(p.fd, b)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, ErrWouldBlock
		case err != nil:
			return 0, err
		case n == 0 && len(b) > 0:
			p.eof = true
			return 0, io.EOF
		}
		return n, nil
	}
}

// Close releases the descriptor. It is safe to call more than once.
func (p *Pipe) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return unix.Close(p.fd)
}
