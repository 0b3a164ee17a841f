// Package sqlite stores history in a SQLite file through modernc.org/sqlite.
package sqlite

import (
	"context"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loykin/spawnd/internal/history"
)

// A single connection keeps ":memory:" one database.
var dialect = history.Dialect{
	Driver:    "sqlite",
	TimeType:  "TIMESTAMP",
	TimeNow:   "(CURRENT_TIMESTAMP)",
	MaxConns:  1,
	EmptyName: "SQLite",
}

type Sink struct {
	*history.SQLSink
}

// New accepts "sqlite:///abs/file.db", "sqlite://:memory:" or a bare path.
func New(dsn string) (*Sink, error) {
	path := strings.TrimSpace(dsn)
	if len(path) >= len("sqlite://") && strings.EqualFold(path[:len("sqlite://")], "sqlite://") {
		path = path[len("sqlite://"):]
	}
	s, err := history.OpenSQL(context.Background(), dialect, path)
	if err != nil {
		return nil, err
	}
	return &Sink{SQLSink: s}, nil
}
