package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExport_WritesCanonicalJSON(t *testing.T) {
	dbPath := buildTestStore(t)
	dest := filepath.Join(t.TempDir(), "graph.json")

	_, _, err := runCLI(t, "--store", dbPath, "export", dest)
	require.NoError(t, err)

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Contains(t, string(content), `"scripts"`)
	require.Contains(t, string(content), `"control_files"`)
	require.Contains(t, string(content), `"procedures"`)
	require.Contains(t, string(content), `"edges"`)
}

func TestExport_CSVFlagWritesFlatEdgeList(t *testing.T) {
	dbPath := buildTestStore(t)
	dest := filepath.Join(t.TempDir(), "graph.csv")

	_, _, err := runCLI(t, "--store", dbPath, "export", "--csv", dest)
	require.NoError(t, err)

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Contains(t, string(content), "source")
}

func TestExport_CSVExtensionInferredWithoutFlag(t *testing.T) {
	dbPath := buildTestStore(t)
	dest := filepath.Join(t.TempDir(), "graph.csv")

	_, _, err := runCLI(t, "--store", dbPath, "export", dest)
	require.NoError(t, err)

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.NotContains(t, string(content), `"scripts"`)
}
