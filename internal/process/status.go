package process

// ExitCodeRunning is the exit code a status query reports while the
// process has not exited yet. Real exit codes are never negative.
const ExitCodeRunning = -1

// Status is the result of a single OS query for a spawned process.
type Status struct {
	Running  bool `json:"running"`
	PID      int  `json:"pid"`
	ExitCode int  `json:"exit_code"`
}

// exitCodeFrom maps a wait status to an exit code. Children killed by a
// signal are reported the way shells do: 128 + signal number.
func exitCodeFrom(exited bool, code int, signaled bool, sig int) int {
	switch {
	case exited:
		return code
	case signaled:
		return 128 + sig
	default:
		return ExitCodeRunning
	}
}
