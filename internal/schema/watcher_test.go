package schema

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeTestSchema(t *testing.T, path, version string) {
	t.Helper()
	raw := []byte(`
name: watch-test
version: ` + version + `
structuredDatabase:
  collection: items
vectorCollections:
  - name: tools
    embeddingField: semantic
    dimension: 8
    enabled: true
`)
	require.NoError(t, os.WriteFile(path, raw, 0o644))
}

func TestWatchFile_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	writeTestSchema(t, path, "1.0.0")

	reloaded := make(chan *DomainSchema, 1)
	stop, err := WatchFile(path, nil, func(s *DomainSchema) { reloaded <- s })
	require.NoError(t, err)
	defer stop()

	writeTestSchema(t, path, "2.0.0")

	select {
	case s := <-reloaded:
		require.Equal(t, "2.0.0", s.Version)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for schema reload")
	}
}

func TestWatchFile_KeepsPreviousSchemaOnParseFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	writeTestSchema(t, path, "1.0.0")

	reloaded := make(chan *DomainSchema, 1)
	stop, err := WatchFile(path, nil, func(s *DomainSchema) { reloaded <- s })
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(path, []byte("not: [valid: yaml"), 0o644))

	select {
	case s := <-reloaded:
		t.Fatalf("expected no reload on malformed yaml, got version %q", s.Version)
	case <-time.After(500 * time.Millisecond):
		// expected: malformed edit is logged and dropped, not propagated
	}
}
