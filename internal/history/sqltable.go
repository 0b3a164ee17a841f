package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Table is the relational layout shared by the database/sql sinks.
const Table = "process_history"

var columns = []string{"occurred_at", "event", "name", "pid", "command", "exit_code", "field", "old_value", "new_value"}

// Dialect is what differs between SQL engines storing history rows.
type Dialect struct {
	Driver    string
	TimeType  string
	TimeNow   string
	Numbered  bool // $1, $2 instead of ?
	MaxConns  int
	EmptyName string
}

// SQLSink appends events to Table over a database/sql handle.
type SQLSink struct {
	db     *sql.DB
	insert string
}

// OpenSQL connects with the dialect's driver and creates Table when absent.
func OpenSQL(ctx context.Context, d Dialect, dsn string) (*SQLSink, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("empty %s DSN", d.EmptyName)
	}
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, err
	}
	if d.MaxConns > 0 {
		db.SetMaxOpenConns(d.MaxConns)
	}
	for _, q := range d.schema() {
		if _, err := db.ExecContext(ctx, q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s schema: %w", d.EmptyName, err)
		}
	}
	return &SQLSink{db: db, insert: d.insertSQL()}, nil
}

func (d Dialect) schema() []string {
	create := "CREATE TABLE IF NOT EXISTS " + Table + " (\n" +
		"\toccurred_at " + d.TimeType + " NOT NULL DEFAULT " + d.TimeNow + ",\n" +
		"\tevent TEXT NOT NULL,\n" +
		"\tname TEXT NOT NULL,\n" +
		"\tpid INTEGER NOT NULL DEFAULT 0,\n" +
		"\tcommand TEXT NOT NULL DEFAULT '',\n" +
		"\texit_code INTEGER,\n" +
		"\tfield TEXT NOT NULL DEFAULT '',\n" +
		"\told_value TEXT NOT NULL DEFAULT '',\n" +
		"\tnew_value TEXT NOT NULL DEFAULT ''\n)"
	index := "CREATE INDEX IF NOT EXISTS " + Table + "_name_idx ON " + Table + " (name)"
	return []string{create, index}
}

func (d Dialect) insertSQL() string {
	marks := make([]string, len(columns))
	for i := range marks {
		marks[i] = "?"
		if d.Numbered {
			marks[i] = fmt.Sprintf("$%d", i+1)
		}
	}
	return "INSERT INTO " + Table + " (" + strings.Join(columns, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"
}

// Row lists e's column values in insert order. A missing exit code is NULL.
func Row(e Event) []any {
	var exit any
	if e.ExitCode != nil {
		exit = *e.ExitCode
	}
	return []any{e.OccurredAt.UTC(), string(e.Type), e.Name, e.PID, e.Command, exit, e.Field, e.Old, e.New}
}

func (s *SQLSink) Send(ctx context.Context, e Event) error {
	_, err := s.db.ExecContext(ctx, s.insert, Row(e)...)
	return err
}

// DB exposes the handle for reading the table back.
func (s *SQLSink) DB() *sql.DB { return s.db }

func (s *SQLSink) Close() error { return s.db.Close() }
