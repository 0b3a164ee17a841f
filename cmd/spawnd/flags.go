package main

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/loykin/spawnd/internal/config"
)

// GlobalFlags holds persistent flags shared by every command
type GlobalFlags struct {
	ConfigPath string
}

// ServeFlags holds the serve flags that are not daemon options.
// Daemon options are bound straight into viper, see addOptionFlags.
type ServeFlags struct {
	Adhoc     string
	Daemonize bool
}

type StatusFlags struct {
	Name string
	JSON bool
	// Remote daemon connection
	APIUrl     string
	APITimeout time.Duration
	Insecure   bool
	CACert     string
}

// addOptionFlags registers one flag per entry of config.FlagKeys. Defaults
// shown in help mirror the config defaults; unset flags never override
// the config file or environment.
func addOptionFlags(fs *pflag.FlagSet) {
	fs.String("conf-dir", config.DefaultConfDir, "directory of process declaration files")
	fs.Duration("reload-interval", 5*time.Second, "how often the config directory is re-read")
	fs.Duration("start-interval", time.Second, "how often stopped processes are started again")
	fs.Duration("idle-sleep", time.Second, "pause when nothing is enabled or no output arrived")
	fs.Duration("poll-timeout", time.Second, "how long to wait for process output each iteration")
	fs.Duration("shutdown-grace", 5*time.Second, "how long to keep relaying output after a stop signal")
	fs.Bool("watch", true, "re-read the config directory as soon as it changes")
	fs.String("pidfile", "", "write the daemon PID to this file")
	fs.String("logfile", "", "write daemon logs to this file instead of stderr")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.String("log-format", "color", "log format: color, text, json")
	fs.String("log-dir", "", "also append each process's lines to <dir>/<name>.log")
	fs.Bool("syslog", false, "also send every line to syslog")
	fs.StringSlice("history", nil, "history sink DSN (sqlite, postgres, clickhouse, opensearch); repeatable")
	fs.String("listen", "", "serve the status API on this address")
}
