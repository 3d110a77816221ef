// Package query implements the read-only query operations: forward and
// backward dependency lookup, procedure search, and a store-wide summary.
// The CLI's read subcommands and the optional HTTP front end run these
// queries through this package; they look up the starting script by
// basename or path directly on the Store before calling in.
package query

import (
	"sort"
	"strings"

	"github.com/shelldep/shelldep/internal/model"
	"github.com/shelldep/shelldep/internal/store"
)

// Store is the subset of internal/store the Query API depends on.
type Store interface {
	GetScriptByID(id int64) (model.Script, bool, error)
	ProcedureByID(id int64) (model.Procedure, bool, error)
	Outbound(scriptID int64) ([]model.Reference, error)
	Inbound(targetID int64, kind model.TargetKind) ([]model.Reference, error)
	SearchProcedures(needle string) ([]model.Procedure, error)
	ProcedureCallers(procedureID int64) ([]model.Reference, error)
	Summary() (store.Summary, error)
}

// ForwardRef is one outbound edge of a script, as returned by
// ForwardDependencies.
type ForwardRef struct {
	TargetKind model.TargetKind
	Target     string // resolved identity (path or qualified name); "" if unresolved
	Line       int
	Style      model.Style
	Status     model.Status
}

// ForwardDependencies returns scriptID's outbound edges ordered by (line,
// style).
func ForwardDependencies(st Store, scriptID int64) ([]ForwardRef, error) {
	refs, err := st.Outbound(scriptID)
	if err != nil {
		return nil, err
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Line != refs[j].Line {
			return refs[i].Line < refs[j].Line
		}
		return refs[i].Style < refs[j].Style
	})
	out := make([]ForwardRef, len(refs))
	for i, r := range refs {
		target, err := identityOf(st, r)
		if err != nil {
			return nil, err
		}
		out[i] = ForwardRef{TargetKind: r.TargetKind, Target: target, Line: r.Line, Style: r.Style, Status: r.Status}
	}
	return out, nil
}

func identityOf(st Store, r model.Reference) (string, error) {
	if r.Status != model.StatusResolved {
		return "", nil
	}
	switch r.TargetKind {
	case model.TargetProcedure:
		p, ok, err := st.ProcedureByID(r.TargetID)
		if err != nil || !ok {
			return "", err
		}
		return p.Qualified, nil
	case model.TargetControlFile:
		cfs, ok := st.(interface {
			ControlFileByID(id int64) (model.ControlFile, bool, error)
		})
		if !ok {
			return "", nil
		}
		cf, found, err := cfs.ControlFileByID(r.TargetID)
		if err != nil || !found {
			return "", err
		}
		return cf.AbsPath, nil
	default:
		sc, ok, err := st.GetScriptByID(r.TargetID)
		if err != nil || !ok {
			return "", err
		}
		return sc.AbsPath, nil
	}
}

// BackwardRef is one inbound edge onto a target, as returned by
// BackwardDependencies.
type BackwardRef struct {
	SourceScript string
	Line         int
	Style        model.Style
}

// BackwardDependencies returns every reference onto (targetID, kind),
// deduplicated by source script, ordered by source path.
func BackwardDependencies(st Store, targetID int64, kind model.TargetKind) ([]BackwardRef, error) {
	refs, err := st.Inbound(targetID, kind)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(refs))
	out := make([]BackwardRef, 0, len(refs))
	for _, r := range refs {
		sc, ok, err := st.GetScriptByID(r.SourceID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		key := sc.AbsPath
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, BackwardRef{SourceScript: sc.AbsPath, Line: r.Line, Style: r.Style})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceScript != out[j].SourceScript {
			return out[i].SourceScript < out[j].SourceScript
		}
		return out[i].Line < out[j].Line
	})
	return out, nil
}

// ProcedureCall is one call site matched by SearchProcedures.
type ProcedureCall struct {
	Procedure    string
	SourceScript string
	Line         int
}

// SearchProcedures performs a case-insensitive substring match against
// lowercased qualified procedure
// names, with the empty needle (after trimming) returning no results and
// no wildcard semantics applied to the needle's literal text. Results are
// ordered by (procedure, source path, line).
func SearchProcedures(st Store, needle string) ([]ProcedureCall, error) {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return nil, nil
	}
	procs, err := st.SearchProcedures(needle)
	if err != nil {
		return nil, err
	}
	var out []ProcedureCall
	for _, p := range procs {
		refs, err := st.ProcedureCallers(p.ID)
		if err != nil {
			return nil, err
		}
		for _, r := range refs {
			sc, ok, err := st.GetScriptByID(r.SourceID)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			out = append(out, ProcedureCall{Procedure: p.Qualified, SourceScript: sc.AbsPath, Line: r.Line})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Procedure != out[j].Procedure {
			return out[i].Procedure < out[j].Procedure
		}
		if out[i].SourceScript != out[j].SourceScript {
			return out[i].SourceScript < out[j].SourceScript
		}
		return out[i].Line < out[j].Line
	})
	return out, nil
}

// Summary mirrors store.Summary for the HTTP surface.
type Summary struct {
	ScriptCount      int
	ControlFileCount int
	ProcedureCount   int
	EdgeCount        int
	EdgeCountByKind  map[model.TargetKind]int
	UnresolvedCount  int
	AmbiguousCount   int
	StaleScriptCount int
}

// ComputeSummary computes store-wide counts for the /api/summary endpoint.
func ComputeSummary(st Store) (Summary, error) {
	s, err := st.Summary()
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		ScriptCount:      s.Scripts,
		ControlFileCount: s.ControlFiles,
		ProcedureCount:   s.Procedures,
		EdgeCount:        s.References,
		EdgeCountByKind:  s.EdgeCountByKind,
		UnresolvedCount:  s.Unresolved,
		AmbiguousCount:   s.Ambiguous,
		StaleScriptCount: s.Stale,
	}, nil
}
