package main

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// daemonize re-executes spawnd detached from the terminal and exits the
// parent. The child gets the same arguments minus --daemonize.
func daemonize(pidFile string, logFile string) error {
	// already reparented to init: we are the detached child
	if os.Getppid() == 1 {
		return nil
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("daemonize: %w", err)
	}

	// #nosec G204
	child := exec.Command(self, childArgs(os.Args[1:], pidFile, logFile)...)
	configureDaemonAttrs(child)
	if logFile != "" {
		// Children inherit stderr, so their diagnostics land next to ours.
		// #nosec G304
		out, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("daemonize: open log file: %w", err)
		}
		child.Stdout, child.Stderr = out, out
	}
	if err := child.Start(); err != nil {
		return fmt.Errorf("daemonize: start: %w", err)
	}
	if pidFile != "" {
		if err := writePidFile(pidFile, child.Process.Pid); err != nil {
			return fmt.Errorf("daemonize: %w", err)
		}
	}

	fmt.Printf("spawnd started in background with PID %d\n", child.Process.Pid)
	os.Exit(0)
	return nil
}

// childArgs drops --daemonize and re-appends the resolved pidfile and
// logfile so settings from the config file survive as flags.
func childArgs(args []string, pidFile, logFile string) []string {
	var out []string
	skipNext := false
	for _, arg := range args {
		if skipNext {
			skipNext = false
			continue
		}
		switch {
		case arg == "--daemonize" || arg == "--daemonize=true":
			continue
		case arg == "--pidfile" || arg == "--logfile":
			skipNext = true
			continue
		case strings.HasPrefix(arg, "--pidfile=") || strings.HasPrefix(arg, "--logfile="):
			continue
		}
		out = append(out, arg)
	}
	if pidFile != "" {
		out = append(out, "--pidfile", pidFile)
	}
	if logFile != "" {
		out = append(out, "--logfile", logFile)
	}
	return out
}

// writePidFile records pid, replacing any stale file.
func writePidFile(pidFile string, pid int) error {
	return os.WriteFile(pidFile, []byte(strconv.Itoa(pid)+"\n"), 0o644) // #nosec G306
}

// removePidFile is a no-op without a pidfile.
func removePidFile(pidFile string) error {
	if pidFile == "" {
		return nil
	}
	return os.Remove(pidFile)
}
