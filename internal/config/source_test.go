package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/spawnd/internal/registry"
)

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
	return p
}

func collect(t *testing.T, s registry.Source) []registry.Document {
	t.Helper()
	var out []registry.Document
	require.NoError(t, s.Each(func(d registry.Document) error {
		out = append(out, d)
		return nil
	}))
	return out
}

func TestNewDirSource_Missing(t *testing.T) {
	_, err := NewDirSource(filepath.Join(t.TempDir(), "nope"), false, nil)
	var ce *registry.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, os.ErrNotExist)

	f := writeFile(t, t.TempDir(), "file", "")
	_, err = NewDirSource(f, false, nil)
	assert.ErrorContains(t, err, "not a directory")
}

func TestDirSource_EnumerationOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "20-web.conf", "[web]\ncommand = \"two\"\n")
	writeFile(t, dir, "10-web.conf", "[web]\ncommand = \"one\"\nenabled = \"yes\"\n")
	writeFile(t, dir, ".hidden.conf", "[ghost]\ncommand = \"x\"\n")
	writeFile(t, dir, "backup.conf~", "[ghost]\ncommand = \"x\"\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.d"), 0o755))

	s, err := NewDirSource(dir, false, nil)
	require.NoError(t, err)
	assert.Equal(t, dir, s.Dir())
	docs := collect(t, s)

	require.Len(t, docs, 2)
	assert.Equal(t, filepath.Join(dir, "10-web.conf"), docs[0].Path)
	assert.Equal(t, filepath.Join(dir, "20-web.conf"), docs[1].Path)
	assert.Equal(t, "web", docs[0].Sections[0].Name)
	assert.Equal(t, "one", docs[0].Sections[0].Keys["command"])
	assert.Equal(t, "yes", docs[0].Sections[0].Keys["enabled"])
}

func TestReadDocument_Sections(t *testing.T) {
	p := writeFile(t, t.TempDir(), "a.conf", `
[spawnd]
note = "hello"

[Worker]
command = "sleep 1"
enabled = true

[api]
command = "./api"
`)
	doc, err := ReadDocument(p)
	require.NoError(t, err)

	var names []string
	for _, s := range doc.Sections {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"api", "spawnd", "worker"}, names, "sorted and case-folded")
	assert.Equal(t, true, doc.Sections[2].Keys["enabled"])
}

func TestReadDocument_Malformed(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.conf", "[web\ncommand = ")
	_, err := ReadDocument(bad)
	var ce *registry.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, bad, ce.Source)

	scalar := writeFile(t, dir, "scalar.conf", "command = \"oops\"\n")
	_, err = ReadDocument(scalar)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "command", ce.Section)
}

func TestDirSource_ReloadIntoRegistry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.conf", "[spawnd]\nflavor = \"x\"\n[web]\ncommand = \"one\"\n")
	writeFile(t, dir, "b.conf", "[web]\ncommand = \"two\"\nenabled = \"on\"\n")
	writeFile(t, dir, "c.conf", "[broken\n")

	s, err := NewDirSource(dir, false, nil)
	require.NoError(t, err)

	var changes []registry.Change
	reg := registry.New(nilEmitter{})
	reg.OnChange(func(c registry.Change) { changes = append(changes, c) })
	err = reg.ReloadAll(s)
	require.Error(t, err)

	web, ok := reg.Get("web")
	require.True(t, ok)
	assert.Equal(t, "two", web.Command)
	assert.True(t, web.Enabled)
	assert.Len(t, changes, 1)
	assert.Empty(t, reg.Global(), "aborted pass leaves global settings untouched")

	require.NoError(t, os.Remove(filepath.Join(dir, "c.conf")))
	require.NoError(t, reg.ReloadAll(s))
	assert.Equal(t, registry.GlobalSettings{"flavor": "x"}, reg.Global())
}

func TestDirSource_Changed(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDirSource(dir, true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	assert.False(t, s.Changed())
	writeFile(t, dir, "web.conf", "[web]\ncommand = \"true\"\n")
	require.Eventually(t, s.Changed, 2*time.Second, 10*time.Millisecond)

	writeFile(t, dir, ".swap", "x")
	time.Sleep(50 * time.Millisecond)
	// drain anything left from the first write before asserting quiet
	for s.Changed() {
	}
	writeFile(t, dir, ".swap2", "x")
	time.Sleep(50 * time.Millisecond)
	assert.False(t, s.Changed(), "hidden files are ignored")

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

type nilEmitter struct{}

func (nilEmitter) Emit(string, string) {}
