package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sitecheck version")
}

func TestChecklistSummarisesEmbeddedCatalog(t *testing.T) {
	out, err := run(t, "checklist")
	require.NoError(t, err)
	assert.Contains(t, out, "CATEGORY")
	assert.Contains(t, out, "foundation")
	assert.Contains(t, out, "101")
}

func TestChecklistRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checklist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
categories:
  - id: only
    name: Only
    items:
      - {id: a, no: 2, name: A, kind: severity}
`), 0600))

	_, err := run(t, "checklist", path)
	assert.Error(t, err)
}

func TestChecklistJSON(t *testing.T) {
	out, err := run(t, "checklist", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"toggleExemptCategories"`)
}
