package walker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shelldep/shelldep/internal/model"
)

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	return full
}

func collect(t *testing.T, root string, kinds Kind) ([]Found, []Warning) {
	t.Helper()
	return collectCtx(t, context.Background(), root, kinds)
}

func collectCtx(t *testing.T, ctx context.Context, root string, kinds Kind) ([]Found, []Warning) {
	t.Helper()
	foundCh, warnCh := Walk(ctx, root, kinds)

	var found []Found
	var warnings []Warning
	done := make(chan struct{})
	go func() {
		defer close(done)
		for w := range warnCh {
			warnings = append(warnings, w)
		}
	}()
	for f := range foundCh {
		found = append(found, f)
	}
	<-done
	return found, warnings
}

func TestWalk_DiscoversScriptsAndControlFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "jobs/nightly.ksh", "#!/bin/ksh\n")
	writeFile(t, root, "jobs/cleanup.sh", "#!/bin/sh\n")
	writeFile(t, root, "data/customer.ctl", "LOAD DATA\n")
	writeFile(t, root, "notes.txt", "irrelevant\n")

	found, warnings := collect(t, root, KindScript|KindControlFile)
	require.Empty(t, warnings)
	require.Len(t, found, 3)

	byBase := map[string]Found{}
	for _, f := range found {
		byBase[f.Basename] = f
	}
	require.Equal(t, KindScript, byBase["nightly.ksh"].Kind)
	require.Equal(t, model.LangKsh, byBase["nightly.ksh"].Language)
	require.Equal(t, KindScript, byBase["cleanup.sh"].Kind)
	require.Equal(t, model.LangSh, byBase["cleanup.sh"].Language)
	require.Equal(t, KindControlFile, byBase["customer.ctl"].Kind)
	require.True(t, filepath.IsAbs(byBase["nightly.ksh"].AbsPath))
}

func TestWalk_KindFilterExcludesUnwantedClass(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.ksh", "")
	writeFile(t, root, "b.ctl", "")

	found, _ := collect(t, root, KindScript)
	require.Len(t, found, 1)
	require.Equal(t, "a.ksh", found[0].Basename)
}

func TestWalk_SkipsHiddenFilesAndDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".hidden.ksh", "")
	writeFile(t, root, ".git/config.ksh", "")
	writeFile(t, root, "visible.ksh", "")

	found, _ := collect(t, root, KindScript)
	require.Len(t, found, 1)
	require.Equal(t, "visible.ksh", found[0].Basename)
}

func TestWalk_SkipsExcludedDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "vendor/third_party.ksh", "")
	writeFile(t, root, "jobs/kept.ksh", "")

	foundCh, warnCh := Walk(context.Background(), root, KindScript, "vendor")
	var found []Found
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range warnCh {
		}
	}()
	for f := range foundCh {
		found = append(found, f)
	}
	<-done

	require.Len(t, found, 1)
	require.Equal(t, "kept.ksh", found[0].Basename)
}

func TestWalk_SkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	target := writeFile(t, root, "real.ksh", "#!/bin/ksh\n")
	link := filepath.Join(root, "link.ksh")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported in this environment: %v", err)
	}

	found, _ := collect(t, root, KindScript)
	require.Len(t, found, 1)
	require.Equal(t, "real.ksh", found[0].Basename)
}

func TestWalk_ContextCancellationStopsEarly(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 20; i++ {
		writeFile(t, root, filepath.Join("jobs", string(rune('a'+i))+".ksh"), "")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	found, _ := collectCtx(t, ctx, root, KindScript)
	require.Empty(t, found)
}
