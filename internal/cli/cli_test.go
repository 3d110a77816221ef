package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildTestStore analyzes a small synthetic corpus into a fresh store and
// returns the store's path for subsequent query commands to open.
func buildTestStore(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeCorpusFile(t, root, "jobs/nightly.ksh", ""+
		"#!/bin/ksh\n"+
		". common.ksh\n"+
		"./worker.ksh\n"+
		"sqlplus -s <<SQL\n"+
		"select customer_pkg.process_customers() from dual;\n"+
		"SQL\n")
	writeCorpusFile(t, root, "jobs/worker.ksh", "#!/bin/ksh\necho working\n")
	writeCorpusFile(t, root, "jobs/common.ksh", "#!/bin/ksh\necho common\n")

	dbPath := filepath.Join(t.TempDir(), "deps.db")
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"analyze", "--store", dbPath, root})
	require.NoError(t, cmd.Execute())

	return dbPath
}

func runCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := NewRootCommand()
	var outBuf, errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}
