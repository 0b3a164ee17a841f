package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation settings for per-source log files.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// FileConfig describes where per-source log files go and how they rotate.
// Each source gets Dir/<source>.log.
type FileConfig struct {
	Dir        string `mapstructure:"dir"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Writer returns a rotating writer for source, or nil when Dir is empty.
func (c FileConfig) Writer(source string) *lj.Logger {
	if c.Dir == "" {
		return nil
	}
	return &lj.Logger{
		Filename:   filepath.Join(c.Dir, fmt.Sprintf("%s.log", source)),
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

// FileEmitter appends formatted lines to one rotating file per source.
type FileEmitter struct {
	cfg     FileConfig
	mu      sync.Mutex
	writers map[string]*lj.Logger
}

// NewFileEmitter creates the log directory and returns an emitter writing into it.
func NewFileEmitter(cfg FileConfig) (*FileEmitter, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("log dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, err
	}
	return &FileEmitter{cfg: cfg, writers: make(map[string]*lj.Logger)}, nil
}

func (f *FileEmitter) Emit(line, source string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.writers[source]
	if !ok {
		w = f.cfg.Writer(source)
		f.writers[source] = w
	}
	_, _ = w.Write([]byte(Format(source, line) + "\n"))
}

func (f *FileEmitter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var first error
	for name, w := range f.writers {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
		delete(f.writers, name)
	}
	return first
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
