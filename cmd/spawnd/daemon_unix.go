//go:build unix

package main

import (
	"os/exec"
	"syscall"
)

// configureDaemonAttrs starts the child in a new session so it outlives
// the terminal.
func configureDaemonAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
