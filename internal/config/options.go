package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/loykin/spawnd/internal/logger"
	tlsx "github.com/loykin/spawnd/internal/tls"
)

// EnvPrefix is the prefix of environment variables that override options.
const EnvPrefix = "SPAWND"

// DefaultConfDir is where process definitions live unless told otherwise.
const DefaultConfDir = "/etc/spawnd.d"

// Options are the daemon-level settings. Process definitions are not part
// of Options; they come from the files under ConfDir.
type Options struct {
	ConfDir        string        `mapstructure:"conf_dir"`
	ReloadInterval time.Duration `mapstructure:"reload_interval"`
	StartInterval  time.Duration `mapstructure:"start_interval"`
	IdleSleep      time.Duration `mapstructure:"idle_sleep"`
	PollTimeout    time.Duration `mapstructure:"poll_timeout"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace"`
	WatchConfDir   bool          `mapstructure:"watch_conf_dir"`
	PIDFile        string        `mapstructure:"pidfile"`
	LogFile        string        `mapstructure:"logfile"`

	Log     LogOptions     `mapstructure:"log"`
	History HistoryOptions `mapstructure:"history"`
	Server  ServerOptions  `mapstructure:"server"`
}

type LogOptions struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Syslog bool   `mapstructure:"syslog"`

	logger.FileConfig `mapstructure:",squash"`
}

type HistoryOptions struct {
	DSN       []string `mapstructure:"dsn"`
	QueueSize int      `mapstructure:"queue_size"`
}

type ServerOptions struct {
	Listen   string `mapstructure:"listen"`
	BasePath string `mapstructure:"base_path"`
	Metrics  bool   `mapstructure:"metrics"`

	TLS tlsx.Options `mapstructure:"tls"`
}

var defaults = map[string]any{
	"conf_dir":                 DefaultConfDir,
	"reload_interval":          5 * time.Second,
	"start_interval":           time.Second,
	"idle_sleep":               time.Second,
	"poll_timeout":             time.Second,
	"shutdown_grace":           5 * time.Second,
	"watch_conf_dir":           true,
	"pidfile":                  "",
	"logfile":                  "",
	"log.level":                "info",
	"log.format":               "color",
	"log.syslog":               false,
	"log.dir":                  "",
	"log.max_size_mb":          logger.DefaultMaxSizeMB,
	"log.max_backups":          logger.DefaultMaxBackups,
	"log.max_age_days":         logger.DefaultMaxAgeDays,
	"log.compress":             false,
	"history.dsn":              []string{},
	"history.queue_size":       256,
	"server.listen":            "",
	"server.base_path":         "/api",
	"server.metrics":           true,
	"server.tls.enabled":       false,
	"server.tls.cert_file":     "",
	"server.tls.key_file":      "",
	"server.tls.dir":           "",
	"server.tls.auto_generate": false,
	"server.tls.min_version":   "",
}

// FlagKeys maps command-line flag names to option keys.
var FlagKeys = map[string]string{
	"conf-dir":        "conf_dir",
	"reload-interval": "reload_interval",
	"start-interval":  "start_interval",
	"idle-sleep":      "idle_sleep",
	"poll-timeout":    "poll_timeout",
	"shutdown-grace":  "shutdown_grace",
	"watch":           "watch_conf_dir",
	"pidfile":         "pidfile",
	"logfile":         "logfile",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"log-dir":         "log.dir",
	"syslog":          "log.syslog",
	"history":         "history.dsn",
	"listen":          "server.listen",
}

// NewViper returns a viper instance carrying the defaults and SPAWND_*
// environment overrides.
func NewViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds every flag of fs listed in FlagKeys.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range FlagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the optional TOML file at path into v and decodes Options.
// Precedence, lowest first: defaults, file, environment, flags.
func Load(v *viper.Viper, path string) (Options, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return Options{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var o Options
	if err := v.Unmarshal(&o); err != nil {
		return Options{}, fmt.Errorf("decode config: %w", err)
	}
	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	return o, nil
}

// Validate rejects intervals the loop cannot run with.
func (o Options) Validate() error {
	for _, d := range []struct {
		name string
		val  time.Duration
	}{
		{"reload_interval", o.ReloadInterval},
		{"start_interval", o.StartInterval},
		{"idle_sleep", o.IdleSleep},
		{"poll_timeout", o.PollTimeout},
	} {
		if d.val <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.val)
		}
	}
	if o.ShutdownGrace < 0 {
		return fmt.Errorf("shutdown_grace must not be negative, got %s", o.ShutdownGrace)
	}
	if _, err := logger.ParseLevel(o.Log.Level); err != nil {
		return err
	}
	return nil
}
