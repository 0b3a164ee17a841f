package client

import "time"

// ProcessStatus represents the status of a single supervised process
type ProcessStatus struct {
	Name      string    `json:"name"`
	Command   string    `json:"command"`
	Enabled   bool      `json:"enabled"`
	Running   bool      `json:"running"`
	PID       int       `json:"pid,omitempty"`
	ExitCode  *int      `json:"exit_code,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Starts    int       `json:"starts"`
	Usage     *Usage    `json:"usage,omitempty"`
}

// Usage is the resource reading attached to running processes
type Usage struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemoryRSS  uint64  `json:"memory_rss"`
	MemoryMB   float64 `json:"memory_mb"`
	NumThreads int32   `json:"num_threads"`
}

// Health is the daemon liveness report
type Health struct {
	OK        bool      `json:"ok"`
	Stopping  bool      `json:"stopping"`
	Processes int       `json:"processes"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}
