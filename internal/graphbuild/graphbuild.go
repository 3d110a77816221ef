// Package graphbuild turns one file's extracted, resolved references into
// persisted graph state: an upserted node plus a wholesale replacement of
// its outbound edges.
package graphbuild

import (
	"github.com/shelldep/shelldep/internal/model"
)

// Writer is the subset of internal/store's write surface graphbuild needs,
// kept narrow so it can be exercised against a fake in tests.
type Writer interface {
	UpsertScript(model.Script) (int64, error)
	ReplaceEdgesOf(scriptID int64, refs []model.Reference) error
}

// ResolvedRef is one outbound reference after the resolver has run,
// carrying enough to become a model.Reference row.
type ResolvedRef struct {
	TargetKind model.TargetKind
	Line       int
	RawText    string
	Style      model.Style
	Background bool
	Status     model.Status
	TargetID   int64
	Candidates []int64
}

// Apply upserts sc's node and atomically replaces every one of its
// outbound edges with refs. When the caller passes unchanged, the node is
// still upserted but the edge replacement is skipped.
func Apply(w Writer, sc model.Script, refs []ResolvedRef, unchanged bool) (int64, error) {
	id, err := w.UpsertScript(sc)
	if err != nil {
		return 0, err
	}
	if unchanged {
		return id, nil
	}

	rows := make([]model.Reference, len(refs))
	for i, r := range refs {
		rows[i] = model.Reference{
			SourceID:   id,
			TargetID:   r.TargetID,
			TargetKind: r.TargetKind,
			Line:       r.Line,
			RawText:    r.RawText,
			Style:      r.Style,
			Background: r.Background,
			Status:     r.Status,
			Candidates: r.Candidates,
		}
	}
	if err := w.ReplaceEdgesOf(id, rows); err != nil {
		return 0, err
	}
	return id, nil
}
