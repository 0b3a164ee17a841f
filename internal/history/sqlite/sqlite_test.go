package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/spawnd/internal/history"
)

func TestSQLiteSink_Integration(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	sink, err := New("sqlite://" + dbPath)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	ctx := context.Background()
	now := time.Now().UTC()
	events := []history.Event{
		{Type: history.EventStart, OccurredAt: now, Name: "web", PID: 4242, Command: "sleep 1"},
		{Type: history.EventStop, OccurredAt: now.Add(time.Second), Name: "web", PID: 4242, ExitCode: history.ExitCode(3)},
		{Type: history.EventConfig, OccurredAt: now.Add(2 * time.Second), Name: "web", Field: "command", Old: "sleep 1", New: "sleep 2"},
	}
	for _, e := range events {
		if err := sink.Send(ctx, e); err != nil {
			t.Fatalf("Failed to send %s event: %v", e.Type, err)
		}
	}

	rows, err := sink.DB().QueryContext(ctx,
		`SELECT event, pid, command, exit_code, field, new_value FROM process_history WHERE name = ? ORDER BY occurred_at`, "web")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer func() { _ = rows.Close() }()

	type row struct {
		event, command, field, newValue string
		pid                             int
		exit                            sql.NullInt64
	}
	var got []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.event, &r.pid, &r.command, &r.exit, &r.field, &r.newValue); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got = append(got, r)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	if got[0].event != "start" || got[0].pid != 4242 || got[0].command != "sleep 1" || got[0].exit.Valid {
		t.Errorf("unexpected start row: %+v", got[0])
	}
	if got[1].event != "stop" || !got[1].exit.Valid || got[1].exit.Int64 != 3 {
		t.Errorf("unexpected stop row: %+v", got[1])
	}
	if got[2].event != "config" || got[2].field != "command" || got[2].newValue != "sleep 2" {
		t.Errorf("unexpected config row: %+v", got[2])
	}
}

func TestSQLiteSink_InMemory(t *testing.T) {
	sink, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	e := history.Event{Type: history.EventStart, OccurredAt: time.Now(), Name: "mem", PID: 1, Command: "true"}
	if err := sink.Send(context.Background(), e); err != nil {
		t.Fatalf("Failed to send event: %v", err)
	}
	var n int
	if err := sink.DB().QueryRow(`SELECT COUNT(*) FROM process_history`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row, got %d", n)
	}
}

func TestSQLiteSink_ContextCancellation(t *testing.T) {
	sink, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := history.Event{Type: history.EventStart, OccurredAt: time.Now(), Name: "cancelled"}
	if err := sink.Send(ctx, e); err == nil {
		t.Fatal("expected error with cancelled context")
	}
}

func TestNew_EmptyDSN(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}
