package process

import "errors"

var (
	// ErrSpawn wraps failures of the OS to create a process.
	ErrSpawn = errors.New("spawn failed")
	// ErrStatusQuery wraps failures to query a process handle.
	ErrStatusQuery = errors.New("status query failed")
	// ErrWouldBlock is returned by Pipe.Read when no bytes are available.
	ErrWouldBlock = errors.New("no data available")
)
