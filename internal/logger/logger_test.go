package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFormat(t *testing.T) {
	if got := Format("web", "hello"); got != "supervisor[web]: hello" {
		t.Fatalf("unexpected format: %q", got)
	}
}

func TestWriter_Defaults(t *testing.T) {
	if w := (FileConfig{}).Writer("n"); w != nil {
		t.Fatalf("expected nil writer when Dir is empty")
	}
	w := FileConfig{Dir: "/tmp/x"}.Writer("n")
	if w.MaxSize != 10 || w.MaxBackups != 3 || w.MaxAge != 7 {
		t.Fatalf("unexpected defaults: size=%d backups=%d age=%d", w.MaxSize, w.MaxBackups, w.MaxAge)
	}
	if w.Filename != filepath.Join("/tmp/x", "n.log") {
		t.Fatalf("unexpected filename %s", w.Filename)
	}
}

func TestWriter_Overrides(t *testing.T) {
	w := FileConfig{Dir: "d", MaxSizeMB: 1, MaxBackups: 9, MaxAgeDays: 11, Compress: true}.Writer("n")
	if w.MaxSize != 1 || w.MaxBackups != 9 || w.MaxAge != 11 || !w.Compress {
		t.Fatalf("unexpected overrides: size=%d backups=%d age=%d compress=%t", w.MaxSize, w.MaxBackups, w.MaxAge, w.Compress)
	}
}

func TestFileEmitter_OneFilePerSource(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	fe, err := NewFileEmitter(FileConfig{Dir: dir})
	if err != nil {
		t.Fatalf("NewFileEmitter: %v", err)
	}
	fe.Emit("process started 1 running true", "web")
	fe.Emit("line two", "web")
	fe.Emit("daemon up", DaemonSource)
	if err := fe.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "web.log"))
	if err != nil {
		t.Fatalf("read web.log: %v", err)
	}
	want := "supervisor[web]: process started 1 running true\nsupervisor[web]: line two\n"
	if string(b) != want {
		t.Fatalf("web.log = %q, want %q", b, want)
	}
	if _, err := os.Stat(filepath.Join(dir, "spawnd.log")); err != nil {
		t.Fatalf("daemon log not created: %v", err)
	}
}

func TestNewFileEmitter_RequiresDir(t *testing.T) {
	if _, err := NewFileEmitter(FileConfig{}); err == nil {
		t.Fatal("expected error for empty dir")
	}
}

func TestMultiEmitter_FansOutInOrder(t *testing.T) {
	var got []string
	rec := func(tag string) Emitter {
		return EmitterFunc(func(line, source string) { got = append(got, tag+":"+source+":"+line) })
	}
	m := MultiEmitter{rec("a"), nil, rec("b")}
	m.Emit("x", "p")
	if strings.Join(got, ",") != "a:p:x,b:p:x" {
		t.Fatalf("unexpected fan-out: %v", got)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestSlogEmitter_UsesConvention(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, slog.LevelInfo, "json")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	NewSlogEmitter(l).Emit("hello", "web")
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if rec["msg"] != "supervisor[web]: hello" {
		t.Fatalf("unexpected msg %v", rec["msg"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"": slog.LevelInfo, "DEBUG": slog.LevelDebug, "warn": slog.LevelWarn, "error": slog.LevelError}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestColorTextHandler_PrefixesLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, slog.LevelDebug, "color")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.With("k", "v").Warn("careful")
	out := buf.String()
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "careful") || !strings.Contains(out, "k=v") {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := New(&buf, slog.LevelInfo, "xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
