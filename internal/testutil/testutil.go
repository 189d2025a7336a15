// Package testutil provides shared test helpers for creating config files and synonym fixtures.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// DefaultSynonyms is a small solr rule file used by fixtures.
const DefaultSynonyms = `# test synonyms
fast, quick
i pod => ipod
`

// SynonymSource is one entry of the synonyms section of a test config.
type SynonymSource struct {
	Name     string
	Location string
	Format   string
}

// WriteSynonyms writes a synonym rule file under dir and returns its path.
func WriteSynonyms(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// SetupTestConfig creates a config file with the given sources and a yaml state store under tmpDir.
// A source without a location gets a local rule file with DefaultSynonyms.
// Returns the path to the generated config file.
func SetupTestConfig(t *testing.T, tmpDir string, sources ...SynonymSource) string {
	t.Helper()

	stateDir := filepath.Join(tmpDir, "state")
	require.NoError(t, os.MkdirAll(stateDir, 0755))

	var b strings.Builder
	fmt.Fprintf(&b, "state:\n  driver: yaml\n  directory: %s\n", stateDir)
	b.WriteString("synonyms:\n")
	for _, s := range sources {
		location := s.Location
		if location == "" {
			location = WriteSynonyms(t, tmpDir, filepath.Join("synonyms", s.Name+".txt"), DefaultSynonyms)
		}
		fmt.Fprintf(&b, "  - name: %s\n    synonyms_path: %s\n", s.Name, location)
		if s.Format != "" {
			fmt.Fprintf(&b, "    format: %s\n", s.Format)
		}
	}

	cfgPath := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(b.String()), 0644))
	return cfgPath
}
