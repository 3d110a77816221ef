package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shelldep/shelldep/internal/errs"
	"github.com/shelldep/shelldep/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shelldep.db")
	st, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpen_CreatesSchemaAndIsReopenable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shelldep.db")
	st, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, path, st.Path())
	require.NoError(t, st.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
}

func TestScanBracket_CommitPersistsWrites(t *testing.T) {
	st := openTestStore(t)

	require.NoError(t, st.BeginScan())
	id, err := st.UpsertScript(model.Script{AbsPath: "/corpus/a.ksh", Basename: "a.ksh", Size: 10, ModTime: 1, LineCount: 3, Language: model.LangKsh})
	require.NoError(t, err)
	require.NoError(t, st.CommitScan())

	sc, ok, err := st.GetScriptByID(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "/corpus/a.ksh", sc.AbsPath)
}

func TestScanBracket_AbortDiscardsWrites(t *testing.T) {
	st := openTestStore(t)

	require.NoError(t, st.BeginScan())
	_, err := st.UpsertScript(model.Script{AbsPath: "/corpus/b.ksh", Basename: "b.ksh", Size: 5, ModTime: 1, Language: model.LangKsh})
	require.NoError(t, err)
	require.NoError(t, st.AbortScan())

	_, ok, err := st.GetScriptByPath("/corpus/b.ksh")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUpsertScript_IsIdempotentByAbsPath(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.BeginScan())

	id1, err := st.UpsertScript(model.Script{AbsPath: "/corpus/c.ksh", Basename: "c.ksh", Size: 1, LineCount: 1, Language: model.LangKsh})
	require.NoError(t, err)
	id2, err := st.UpsertScript(model.Script{AbsPath: "/corpus/c.ksh", Basename: "c.ksh", Size: 99, LineCount: 9, Language: model.LangKsh})
	require.NoError(t, err)
	require.Equal(t, id1, id2)
	require.NoError(t, st.CommitScan())

	sc, ok, err := st.GetScriptByID(id1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(99), sc.Size)
	require.Equal(t, 9, sc.LineCount)
}

func TestScriptsByBasename_ReturnsAllMatchesSortedByPath(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.BeginScan())
	_, err := st.UpsertScript(model.Script{AbsPath: "/corpus/z/cleanup.ksh", Basename: "cleanup.ksh", Language: model.LangKsh})
	require.NoError(t, err)
	_, err = st.UpsertScript(model.Script{AbsPath: "/corpus/a/cleanup.ksh", Basename: "cleanup.ksh", Language: model.LangKsh})
	require.NoError(t, err)
	require.NoError(t, st.CommitScan())

	ids, err := st.ScriptsByBasename("cleanup.ksh")
	require.NoError(t, err)
	require.Len(t, ids, 2)

	scripts, err := st.GetScriptsByBasename("cleanup.ksh")
	require.NoError(t, err)
	require.Len(t, scripts, 2)
	require.Equal(t, "/corpus/a/cleanup.ksh", scripts[0].AbsPath)
	require.Equal(t, "/corpus/z/cleanup.ksh", scripts[1].AbsPath)
}

func TestReplaceEdgesOf_ReplacesAtomically(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.BeginScan())
	sourceID, err := st.UpsertScript(model.Script{AbsPath: "/corpus/runner.ksh", Basename: "runner.ksh", Language: model.LangKsh})
	require.NoError(t, err)
	targetID, err := st.UpsertScript(model.Script{AbsPath: "/corpus/worker.ksh", Basename: "worker.ksh", Language: model.LangKsh})
	require.NoError(t, err)

	err = st.ReplaceEdgesOf(sourceID, []model.Reference{
		{TargetID: targetID, TargetKind: model.TargetScript, Line: 4, RawText: "worker.ksh", Style: model.StyleBareName, Status: model.StatusResolved},
	})
	require.NoError(t, err)
	require.NoError(t, st.CommitScan())

	out, err := st.Outbound(sourceID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, targetID, out[0].TargetID)

	require.NoError(t, st.BeginScan())
	err = st.ReplaceEdgesOf(sourceID, []model.Reference{
		{TargetKind: model.TargetScript, Line: 9, RawText: "missing.ksh", Style: model.StyleBareName, Status: model.StatusUnresolved},
	})
	require.NoError(t, err)
	require.NoError(t, st.CommitScan())

	out, err = st.Outbound(sourceID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, model.StatusUnresolved, out[0].Status)
	require.Equal(t, int64(0), out[0].TargetID)
}

func TestReplaceEdgesOf_PersistsAmbiguousCandidates(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.BeginScan())
	sourceID, err := st.UpsertScript(model.Script{AbsPath: "/corpus/caller.ksh", Basename: "caller.ksh", Language: model.LangKsh})
	require.NoError(t, err)

	err = st.ReplaceEdgesOf(sourceID, []model.Reference{
		{TargetKind: model.TargetScript, Line: 1, RawText: "cleanup.ksh", Style: model.StyleBareName, Status: model.StatusAmbiguous, Candidates: []int64{3, 4}},
	})
	require.NoError(t, err)
	require.NoError(t, st.CommitScan())

	out, err := st.Outbound(sourceID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.ElementsMatch(t, []int64{3, 4}, out[0].Candidates)
}

func TestInbound_JoinsBySourceAndOrdersByPath(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.BeginScan())
	targetID, err := st.UpsertScript(model.Script{AbsPath: "/corpus/common.ksh", Basename: "common.ksh", Language: model.LangKsh})
	require.NoError(t, err)
	callerA, err := st.UpsertScript(model.Script{AbsPath: "/corpus/z-caller.ksh", Basename: "z-caller.ksh", Language: model.LangKsh})
	require.NoError(t, err)
	callerB, err := st.UpsertScript(model.Script{AbsPath: "/corpus/a-caller.ksh", Basename: "a-caller.ksh", Language: model.LangKsh})
	require.NoError(t, err)

	require.NoError(t, st.ReplaceEdgesOf(callerA, []model.Reference{
		{TargetID: targetID, TargetKind: model.TargetScript, Line: 2, RawText: "common.ksh", Style: model.StyleSourced, Status: model.StatusResolved},
	}))
	require.NoError(t, st.ReplaceEdgesOf(callerB, []model.Reference{
		{TargetID: targetID, TargetKind: model.TargetScript, Line: 7, RawText: "common.ksh", Style: model.StyleSourced, Status: model.StatusResolved},
	}))
	require.NoError(t, st.CommitScan())

	in, err := st.Inbound(targetID, model.TargetScript)
	require.NoError(t, err)
	require.Len(t, in, 2)
	require.Equal(t, callerB, in[0].SourceID) // a-caller.ksh sorts before z-caller.ksh
	require.Equal(t, callerA, in[1].SourceID)
}

func TestUpsertProcedure_SharesRowAcrossIdenticalQualifiedText(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.BeginScan())

	id1, err := st.UpsertProcedure("customer_pkg.process_customers", "", "customer_pkg", "process_customers")
	require.NoError(t, err)
	id2, err := st.UpsertProcedure("customer_pkg.process_customers", "", "customer_pkg", "process_customers")
	require.NoError(t, err)
	require.Equal(t, id1, id2)
	require.NoError(t, st.CommitScan())

	proc, ok, err := st.ProcedureByID(id1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "customer_pkg.process_customers", proc.Qualified)
}

func TestSearchProcedures_SubstringCaseInsensitiveLiteral(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.BeginScan())
	_, err := st.UpsertProcedure("customer_pkg.process_customers", "", "customer_pkg", "process_customers")
	require.NoError(t, err)
	_, err = st.UpsertProcedure("order_mgmt.validate_orders", "", "order_mgmt", "validate_orders")
	require.NoError(t, err)
	require.NoError(t, st.CommitScan())

	results, err := st.SearchProcedures("PROCESS_CUST")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "customer_pkg.process_customers", results[0].Qualified)

	// A needle containing LIKE metacharacters must be treated literally.
	none, err := st.SearchProcedures("process%cust")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestSummary_CountsAcrossTables(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.BeginScan())
	sourceID, err := st.UpsertScript(model.Script{AbsPath: "/corpus/caller.ksh", Basename: "caller.ksh", Language: model.LangKsh})
	require.NoError(t, err)
	_, err = st.UpsertControlFile(model.ControlFile{AbsPath: "/corpus/data.ctl", Basename: "data.ctl"})
	require.NoError(t, err)
	require.NoError(t, st.ReplaceEdgesOf(sourceID, []model.Reference{
		{TargetKind: model.TargetScript, Line: 1, RawText: "missing.ksh", Style: model.StyleBareName, Status: model.StatusUnresolved},
		{TargetKind: model.TargetScript, Line: 2, RawText: "dup.ksh", Style: model.StyleBareName, Status: model.StatusAmbiguous, Candidates: []int64{1, 2}},
	}))
	require.NoError(t, st.CommitScan())

	sum, err := st.Summary()
	require.NoError(t, err)
	require.Equal(t, 1, sum.Scripts)
	require.Equal(t, 1, sum.ControlFiles)
	require.Equal(t, 2, sum.References)
	require.Equal(t, 1, sum.Unresolved)
	require.Equal(t, 1, sum.Ambiguous)
	require.Equal(t, 2, sum.EdgeCountByKind[model.TargetScript])
	require.Equal(t, 0, sum.EdgeCountByKind[model.TargetControlFile])
	require.Equal(t, 0, sum.EdgeCountByKind[model.TargetProcedure])
}

func TestMarkStaleExcept_FlagsMissingScripts(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.BeginScan())
	keptID, err := st.UpsertScript(model.Script{AbsPath: "/corpus/kept.ksh", Basename: "kept.ksh", Language: model.LangKsh})
	require.NoError(t, err)
	removedID, err := st.UpsertScript(model.Script{AbsPath: "/corpus/removed.ksh", Basename: "removed.ksh", Language: model.LangKsh})
	require.NoError(t, err)
	require.NoError(t, st.MarkStaleExcept([]string{"/corpus/kept.ksh"}))
	require.NoError(t, st.CommitScan())

	kept, _, err := st.GetScriptByID(keptID)
	require.NoError(t, err)
	require.False(t, kept.Stale)

	removed, _, err := st.GetScriptByID(removedID)
	require.NoError(t, err)
	require.True(t, removed.Stale)
}

func TestStampScanID_Upserts(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.BeginScan())
	require.NoError(t, st.StampScanID("scan-1"))
	require.NoError(t, st.CommitScan())

	require.NoError(t, st.BeginScan())
	require.NoError(t, st.StampScanID("scan-2"))
	require.NoError(t, st.CommitScan())
}

func TestIterAllScripts_SkipsStaleAndOrdersByPath(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.BeginScan())
	_, err := st.UpsertScript(model.Script{AbsPath: "/corpus/z.ksh", Basename: "z.ksh", Language: model.LangKsh})
	require.NoError(t, err)
	_, err = st.UpsertScript(model.Script{AbsPath: "/corpus/a.ksh", Basename: "a.ksh", Language: model.LangKsh})
	require.NoError(t, err)
	require.NoError(t, st.MarkStaleExcept([]string{"/corpus/a.ksh"}))
	require.NoError(t, st.CommitScan())

	var paths []string
	require.NoError(t, st.IterAllScripts(func(sc model.Script) error {
		paths = append(paths, sc.AbsPath)
		return nil
	}))
	require.Equal(t, []string{"/corpus/a.ksh"}, paths)
}

func TestOpen_RefusesNewerSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.db")
	st, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE meta SET value = ? WHERE key = 'schema_version'`, schemaVersion+1)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path)
	require.Error(t, err)
	var serr *errs.Error
	require.ErrorAs(t, err, &serr)
	require.Equal(t, errs.StoreIncompatible, serr.Kind)
}
