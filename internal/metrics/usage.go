package metrics

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Usage is a point-in-time resource reading for one running pid.
type Usage struct {
	PID        int32     `json:"pid"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryRSS  uint64    `json:"memory_rss"`
	MemoryMB   float64   `json:"memory_mb"`
	NumThreads int32     `json:"num_threads"`
	Timestamp  time.Time `json:"timestamp"`
}

// ReadUsage samples CPU and memory for pid. It never touches the process
// beyond reading /proc (or the platform equivalent).
func ReadUsage(ctx context.Context, pid int) (Usage, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return Usage{}, err
	}
	u := Usage{PID: p.Pid, Timestamp: time.Now()}
	if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
		u.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		u.MemoryRSS = mem.RSS
		u.MemoryMB = float64(mem.RSS) / 1024 / 1024
	}
	if n, err := p.NumThreadsWithContext(ctx); err == nil {
		u.NumThreads = n
	}
	return u, nil
}
