package registry

import (
	"errors"
	"fmt"
)

// GlobalSection is the reserved section name holding daemon-wide settings.
const GlobalSection = "spawnd"

// GlobalSettings is stored for collaborators; the core never interprets it.
type GlobalSettings map[string]any

// Section is one named table of a config document.
type Section struct {
	Name string
	Keys map[string]any
}

// Document is one parsed config file.
type Document struct {
	Path     string
	Sections []Section
}

// Source enumerates config documents in precedence order, lowest first.
// Enumeration stops at the first error returned by fn or by the source.
type Source interface {
	Each(fn func(Document) error) error
}

// ErrMissingCommand is reported when a newly declared process has no command.
var ErrMissingCommand = errors.New("command is required")

// ConfigError reports a config source that could not be read or a
// declaration that could not be applied.
type ConfigError struct {
	Source  string
	Section string
	Err     error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Source != "" && e.Section != "":
		return fmt.Sprintf("config %s [%s]: %v", e.Source, e.Section, e.Err)
	case e.Source != "":
		return fmt.Sprintf("config %s: %v", e.Source, e.Err)
	case e.Section != "":
		return fmt.Sprintf("config [%s]: %v", e.Section, e.Err)
	}
	return "config: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error { return e.Err }
