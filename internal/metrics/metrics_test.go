package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIdempotentAndCountersWork(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}

	IncStart("a")
	IncStart("a")
	ObserveStop("a", 3)
	AddOutputLines("a", 5)
	IncConfigChange("a", "command")
	IncReloadError()
	IncHistoryDropped()
	SetCounts(1, 2)

	if got := testutil.ToFloat64(processStarts.WithLabelValues("a")); got != 2 {
		t.Fatalf("starts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(processExitCode.WithLabelValues("a")); got != 3 {
		t.Fatalf("exit code = %v, want 3", got)
	}
	if got := testutil.ToFloat64(outputLines.WithLabelValues("a")); got != 5 {
		t.Fatalf("output lines = %v, want 5", got)
	}
	if got := testutil.ToFloat64(enabled); got != 2 {
		t.Fatalf("enabled = %v, want 2", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	wantNames := map[string]bool{
		"spawnd_process_starts_total":       false,
		"spawnd_process_stops_total":        false,
		"spawnd_process_output_lines_total": false,
		"spawnd_config_changes_total":       false,
		"spawnd_config_reload_errors_total": false,
		"spawnd_history_dropped_total":      false,
		"spawnd_processes_running":          false,
	}
	for _, mf := range mfs {
		if _, ok := wantNames[mf.GetName()]; ok {
			wantNames[mf.GetName()] = true
		}
	}
	for n, ok := range wantNames {
		if !ok {
			t.Fatalf("expected to find metric %s", n)
		}
	}

	srv := httptest.NewServer(HandlerFor(reg))
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `spawnd_process_starts_total{name="a"} 2`) {
		t.Fatalf("scrape missing starts counter:\n%s", body)
	}
}

func TestReadUsage_Self(t *testing.T) {
	u, err := ReadUsage(context.Background(), os.Getpid())
	if err != nil {
		t.Fatalf("ReadUsage: %v", err)
	}
	if int(u.PID) != os.Getpid() || u.MemoryRSS == 0 {
		t.Fatalf("unexpected usage: %+v", u)
	}
}

func TestReadUsage_UnknownPID(t *testing.T) {
	if _, err := ReadUsage(context.Background(), 1<<22+12345); err == nil {
		t.Fatal("expected error for a pid that does not exist")
	}
}
