package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	lj "gopkg.in/natefinch/lumberjack.v2"

	"github.com/loykin/spawnd"
	"github.com/loykin/spawnd/internal/config"
	"github.com/loykin/spawnd/internal/logger"
)

func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	serveFlags := &ServeFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the supervisor",
		Long: `Run the supervisor in the foreground until SIGINT or SIGTERM.

Every file in the config directory is a TOML document whose tables declare
processes:

  [web]
  command = "python3 -m http.server 8000"
  enabled = "yes"

A [spawnd] table holds daemon-wide settings instead of a process.`,
		Example: `  spawnd serve --conf-dir ./spawnd.d
  spawnd serve -f "ping -i 5 localhost"
  spawnd serve --daemonize --pidfile /run/spawnd.pid --logfile /var/log/spawnd.log`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, globalFlags, serveFlags)
		},
	}

	cmd.Flags().StringVarP(&serveFlags.Adhoc, "command", "f", "", "also supervise this command under the name \""+spawnd.AdhocName+"\"")
	cmd.Flags().BoolVar(&serveFlags.Daemonize, "daemonize", false, "run as daemon in background")
	addOptionFlags(cmd.Flags())
	return cmd
}

func runServe(cmd *cobra.Command, globalFlags *GlobalFlags, serveFlags *ServeFlags) error {
	v := config.NewViper()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	opts, err := config.Load(v, globalFlags.ConfigPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	if serveFlags.Daemonize {
		if err := daemonize(opts.PIDFile, opts.LogFile); err != nil {
			return err
		}
	}

	log, closeLog, err := setupLogger(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()
	slog.SetDefault(log)
	gin.SetMode(gin.ReleaseMode)

	if opts.PIDFile != "" {
		if err := writePidFile(opts.PIDFile, os.Getpid()); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = removePidFile(opts.PIDFile) }()
	}

	d, err := spawnd.New(spawnd.Config{
		Options:         opts,
		Logger:          log,
		Adhoc:           serveFlags.Adhoc,
		ConfDirOptional: !confDirExplicit(cmd, v),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return d.Run(ctx)
}

// confDirExplicit reports whether the config directory was chosen by the
// user rather than left at its default.
func confDirExplicit(cmd *cobra.Command, v *viper.Viper) bool {
	if cmd.Flags().Changed("conf-dir") || v.InConfig("conf_dir") {
		return true
	}
	_, ok := os.LookupEnv(config.EnvPrefix + "_CONF_DIR")
	return ok
}

// setupLogger builds the daemon logger. With a logfile the output rotates
// through lumberjack and color is replaced by plain text.
func setupLogger(opts config.Options, stderr io.Writer) (*slog.Logger, func() error, error) {
	level, err := logger.ParseLevel(opts.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	var w io.Writer = stderr
	closer := func() error { return nil }
	format := opts.Log.Format
	if opts.LogFile != "" {
		lw := &lj.Logger{
			Filename:   opts.LogFile,
			MaxSize:    valOr(opts.Log.MaxSizeMB, logger.DefaultMaxSizeMB),
			MaxBackups: valOr(opts.Log.MaxBackups, logger.DefaultMaxBackups),
			MaxAge:     valOr(opts.Log.MaxAgeDays, logger.DefaultMaxAgeDays),
			Compress:   opts.Log.Compress,
		}
		w = lw
		closer = lw.Close
		if format == "" || format == "color" {
			format = "text"
		}
	}
	l, err := logger.New(w, level, format)
	if err != nil {
		_ = closer()
		return nil, nil, err
	}
	return l, closer, nil
}

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
