// Package registry owns the set of supervised process records and merges
// declared configuration into them.
package registry

import (
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/loykin/spawnd/internal/logger"
	"github.com/loykin/spawnd/internal/process"
)

// Change describes a field of an existing record altered by a merge.
type Change struct {
	Name  string
	Field string
	Old   string
	New   string
}

// Registry holds every record ever declared, keyed by name. Records are
// never removed. It is not safe for concurrent use.
type Registry struct {
	records  map[string]*process.Record
	order    []string
	global   GlobalSettings
	emit     logger.Emitter
	onChange func(Change)
}

func New(emit logger.Emitter) *Registry {
	return &Registry{
		records: make(map[string]*process.Record),
		global:  GlobalSettings{},
		emit:    emit,
	}
}

// OnChange installs a callback invoked after every change event is emitted.
func (r *Registry) OnChange(fn func(Change)) { r.onChange = fn }

// Get returns the record for name.
func (r *Registry) Get(name string) (*process.Record, bool) {
	rec, ok := r.records[name]
	return rec, ok
}

// Records returns all records in first-declared order.
func (r *Registry) Records() []*process.Record {
	out := make([]*process.Record, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.records[n])
	}
	return out
}

// Len returns the number of records.
func (r *Registry) Len() int { return len(r.order) }

// EnabledCount returns how many records are enabled.
func (r *Registry) EnabledCount() int {
	n := 0
	for _, rec := range r.records {
		if rec.Enabled {
			n++
		}
	}
	return n
}

// Global returns a copy of the global settings from the last complete reload.
func (r *Registry) Global() GlobalSettings { return maps.Clone(r.global) }

// MergeConfig applies declared fields to the record called name, creating
// it (disabled) on first sight. Only present fields are applied. Changing
// a field of an existing record emits a change event; populating a new
// record does not.
func (r *Registry) MergeConfig(name string, d Declared) error {
	if name == "" {
		return &ConfigError{Err: errors.New("process name is required")}
	}
	if d.Command != nil && strings.TrimSpace(*d.Command) == "" {
		return &ConfigError{Section: name, Err: ErrMissingCommand}
	}
	rec, ok := r.records[name]
	if !ok {
		if d.Command == nil {
			return &ConfigError{Section: name, Err: ErrMissingCommand}
		}
		rec = process.NewRecord(name)
		rec.Command = *d.Command
		if d.Enabled != nil {
			rec.Enabled = *d.Enabled
		}
		r.records[name] = rec
		r.order = append(r.order, name)
		return nil
	}
	if d.Command != nil && *d.Command != rec.Command {
		old := rec.Command
		rec.Command = *d.Command
		r.changed(Change{Name: name, Field: "command", Old: old, New: rec.Command})
	}
	if d.Enabled != nil && *d.Enabled != rec.Enabled {
		old := rec.Enabled
		rec.Enabled = *d.Enabled
		r.changed(Change{Name: name, Field: "enabled", Old: strconv.FormatBool(old), New: strconv.FormatBool(rec.Enabled)})
	}
	return nil
}

func (r *Registry) changed(c Change) {
	r.emit.Emit(fmt.Sprintf("config %s changed from %q to %q", c.Field, c.Old, c.New), c.Name)
	if r.onChange != nil {
		r.onChange(c)
	}
}

// ReloadAll merges every document of src in enumeration order, so later
// documents win per field. The first unreadable or invalid document aborts
// the pass with a *ConfigError; merges already applied in this pass stay.
// Global settings are replaced only when the whole pass succeeds.
func (r *Registry) ReloadAll(src Source) error {
	global := GlobalSettings{}
	err := src.Each(func(doc Document) error {
		for _, sec := range doc.Sections {
			if sec.Name == GlobalSection {
				maps.Copy(global, sec.Keys)
				continue
			}
			d, err := ParseDeclared(sec.Keys)
			if err != nil {
				return &ConfigError{Source: doc.Path, Section: sec.Name, Err: err}
			}
			if err := r.MergeConfig(sec.Name, d); err != nil {
				var ce *ConfigError
				if errors.As(err, &ce) && ce.Source == "" {
					ce.Source = doc.Path
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		var ce *ConfigError
		if !errors.As(err, &ce) {
			err = &ConfigError{Err: err}
		}
		return err
	}
	r.global = global
	return nil
}
