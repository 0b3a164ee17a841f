package factory

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/spawnd/internal/history/clickhouse"
	"github.com/loykin/spawnd/internal/history/opensearch"
	"github.com/loykin/spawnd/internal/history/sqlite"
)

func TestFactoryDSNTypes(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name        string
		dsn         string
		expectError bool
	}{
		{"Empty DSN", "", true},
		{"Invalid scheme", "invalid://test", true},
		{"OpenSearch DSN", "opensearch://localhost:9200/process-logs", false},
		{"Elasticsearch DSN", "elasticsearch://localhost:9200/events", false},
		{"SQLite file DSN", "sqlite://" + filepath.Join(dir, "a.db"), false},
		{"SQLite memory DSN", "sqlite://:memory:", false},
		{"SQLite bare path", filepath.Join(dir, "b.db"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink, err := NewSinkFromDSN(tt.dsn)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, sink)
			if closer, ok := sink.(interface{ Close() error }); ok {
				_ = closer.Close()
			}
		})
	}
}

func TestFactory_SinkKinds(t *testing.T) {
	s, err := NewSinkFromDSN(":memory:")
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Sink{}, s)
	_ = s.(*sqlite.Sink).Close()

	s, err = NewSinkFromDSN("opensearch://localhost:9200/x")
	require.NoError(t, err)
	assert.IsType(t, &opensearch.Sink{}, s)
}

func TestParseClickHouseDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want clickhouse.Config
	}{
		{"clickhouse://localhost:9000?table=events",
			clickhouse.Config{Addr: "localhost:9000", Table: "events"}},
		{"clickhouse://bob:secret@db:9440/metrics",
			clickhouse.Config{Addr: "db:9440", Database: "metrics", Username: "bob", Password: "secret", Table: clickhouse.DefaultTable}},
		{"clickhouse://",
			clickhouse.Config{Addr: "localhost:9000", Table: clickhouse.DefaultTable}},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			got, err := ParseClickHouseDSN(tt.dsn)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOpenSearchDSN(t *testing.T) {
	base, index, err := ParseOpenSearchDSN("opensearch://localhost:9200/process-logs")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9200", base)
	assert.Equal(t, "process-logs", index)

	base, index, err = ParseOpenSearchDSN("opensearch://search.local:443?tls=true")
	require.NoError(t, err)
	assert.Equal(t, "https://search.local:443", base)
	assert.Equal(t, "process-history", index)

	_, _, err = ParseOpenSearchDSN("opensearch:///idx")
	assert.Error(t, err)
}

func TestNewSinks(t *testing.T) {
	sinks, err := NewSinks([]string{":memory:", "opensearch://localhost:9200/x"})
	require.NoError(t, err)
	assert.Len(t, sinks, 2)
	_ = sinks[0].(*sqlite.Sink).Close()

	_, err = NewSinks([]string{":memory:", "bogus://x"})
	assert.Error(t, err)

	sinks, err = NewSinks(nil)
	require.NoError(t, err)
	assert.Empty(t, sinks)
}
