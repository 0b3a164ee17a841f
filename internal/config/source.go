package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/loykin/spawnd/internal/registry"
)

// DirSource enumerates the process definition files of one directory.
// Every regular, non-hidden file is read as TOML, in lexical order.
type DirSource struct {
	dir     string
	log     *slog.Logger
	watcher *fsnotify.Watcher
	changed chan struct{}
	wg      sync.WaitGroup
}

// NewDirSource fails when dir does not exist or is not a directory. When
// watch is set, filesystem events under dir are reported by Changed.
func NewDirSource(dir string, watch bool, log *slog.Logger) (*DirSource, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, &registry.ConfigError{Source: dir, Err: err}
	}
	if !fi.IsDir() {
		return nil, &registry.ConfigError{Source: dir, Err: errors.New("not a directory")}
	}
	if log == nil {
		log = slog.Default()
	}
	s := &DirSource{dir: dir, log: log, changed: make(chan struct{}, 1)}
	if !watch {
		return s, nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	s.watcher = w
	s.wg.Add(1)
	go s.watch()
	return s, nil
}

// Dir returns the watched directory.
func (s *DirSource) Dir() string { return s.dir }

func (s *DirSource) watch() {
	defer s.wg.Done()
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if hidden(filepath.Base(ev.Name)) {
				continue
			}
			s.log.Debug("config dir event", "path", ev.Name, "op", ev.Op.String())
			select {
			case s.changed <- struct{}{}:
			default:
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("config watcher error", "dir", s.dir, "error", err)
		}
	}
}

// Changed reports whether the directory saw an event since the last call.
// It never blocks.
func (s *DirSource) Changed() bool {
	select {
	case <-s.changed:
		return true
	default:
		return false
	}
}

// Close stops watching. It is safe to call on an unwatched source.
func (s *DirSource) Close() error {
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	s.wg.Wait()
	s.watcher = nil
	return err
}

// Files lists the definition files in enumeration order.
func (s *DirSource) Files() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &registry.ConfigError{Source: s.dir, Err: err}
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if hidden(e.Name()) {
			continue
		}
		p := filepath.Join(s.dir, e.Name())
		fi, err := os.Stat(p)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		files = append(files, p)
	}
	return files, nil
}

// Each implements registry.Source.
func (s *DirSource) Each(fn func(registry.Document) error) error {
	files, err := s.Files()
	if err != nil {
		return err
	}
	for _, p := range files {
		doc, err := ReadDocument(p)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

// ReadDocument parses one TOML file. Each top-level table is a section;
// sections are sorted by name. A top-level key that is not a table is an
// error.
func ReadDocument(path string) (registry.Document, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return registry.Document{}, &registry.ConfigError{Source: path, Err: err}
	}
	all := v.AllSettings()
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	doc := registry.Document{Path: path, Sections: make([]registry.Section, 0, len(names))}
	for _, name := range names {
		keys, ok := all[name].(map[string]any)
		if !ok {
			return registry.Document{}, &registry.ConfigError{
				Source:  path,
				Section: name,
				Err:     fmt.Errorf("expected a table, got %T", all[name]),
			}
		}
		doc.Sections = append(doc.Sections, registry.Section{Name: name, Keys: keys})
	}
	return doc, nil
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~")
}
