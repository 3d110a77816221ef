// Package export serializes the full persisted graph to a portable form:
// canonical JSON as the primary format, and a CSV edge list as a
// secondary format. Both traverse scripts and references in a fixed,
// identity-sorted order so repeated exports of an unchanged store are
// byte-identical.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/shelldep/shelldep/internal/model"
)

// Store is the read surface export needs.
type Store interface {
	IterAllScripts(fn func(model.Script) error) error
	IterAllControlFiles(fn func(model.ControlFile) error) error
	IterAllProcedures(fn func(model.Procedure) error) error
	IterAllReferences(fn func(model.Reference) error) error
	GetScriptByID(id int64) (model.Script, bool, error)
	ControlFileByID(id int64) (model.ControlFile, bool, error)
	ProcedureByID(id int64) (model.Procedure, bool, error)
}

// Document is the canonical export shape: the full entity catalog (every
// script, control file, and procedure in the corpus, whether or not it is
// ever the target of a resolved reference) plus every edge, endpoints
// resolved to stable textual identities rather than internal row ids
// (which are not portable across stores).
type Document struct {
	Scripts      []ScriptDoc      `json:"scripts"`
	ControlFiles []ControlFileDoc `json:"control_files"`
	Procedures   []ProcedureDoc   `json:"procedures"`
	Edges        []ReferenceDoc   `json:"edges"`
}

// ScriptDoc is one exported script.
type ScriptDoc struct {
	Path      string `json:"path"`
	Language  string `json:"language"`
	LineCount int    `json:"line_count"`
}

// ControlFileDoc is one exported control file.
type ControlFileDoc struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// ProcedureDoc is one exported procedure, its qualified-name parts broken
// out the same way model.Procedure stores them.
type ProcedureDoc struct {
	Qualified string `json:"qualified"`
	Schema    string `json:"schema,omitempty"`
	Package   string `json:"package,omitempty"`
	Name      string `json:"name"`
}

// ReferenceDoc is one exported edge, endpoints as textual identities.
type ReferenceDoc struct {
	Source     string   `json:"source"`
	TargetKind string   `json:"target_kind"`
	Target     string   `json:"target,omitempty"`
	Line       int      `json:"line"`
	Style      string   `json:"style,omitempty"`
	Status     string   `json:"status"`
	Candidates []string `json:"candidates,omitempty"`
}

// Build assembles the canonical Document, sorted by identity: scripts,
// control files, and procedures each by their own identity, edges by
// (source, line, target).
func Build(st Store) (Document, error) {
	var doc Document

	if err := st.IterAllScripts(func(sc model.Script) error {
		doc.Scripts = append(doc.Scripts, ScriptDoc{Path: sc.AbsPath, Language: string(sc.Language), LineCount: sc.LineCount})
		return nil
	}); err != nil {
		return Document{}, err
	}
	sort.Slice(doc.Scripts, func(i, j int) bool { return doc.Scripts[i].Path < doc.Scripts[j].Path })

	if err := st.IterAllControlFiles(func(cf model.ControlFile) error {
		doc.ControlFiles = append(doc.ControlFiles, ControlFileDoc{Path: cf.AbsPath, Size: cf.Size})
		return nil
	}); err != nil {
		return Document{}, err
	}
	sort.Slice(doc.ControlFiles, func(i, j int) bool { return doc.ControlFiles[i].Path < doc.ControlFiles[j].Path })

	if err := st.IterAllProcedures(func(p model.Procedure) error {
		doc.Procedures = append(doc.Procedures, ProcedureDoc{Qualified: p.Qualified, Schema: p.SchemaPart, Package: p.PackagePart, Name: p.NamePart})
		return nil
	}); err != nil {
		return Document{}, err
	}
	sort.Slice(doc.Procedures, func(i, j int) bool { return doc.Procedures[i].Qualified < doc.Procedures[j].Qualified })

	if err := st.IterAllReferences(func(r model.Reference) error {
		rd, err := referenceDoc(st, r)
		if err != nil {
			return err
		}
		doc.Edges = append(doc.Edges, rd)
		return nil
	}); err != nil {
		return Document{}, err
	}
	sort.Slice(doc.Edges, func(i, j int) bool {
		a, b := doc.Edges[i], doc.Edges[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Target < b.Target
	})

	return doc, nil
}

func referenceDoc(st Store, r model.Reference) (ReferenceDoc, error) {
	source, _, err := st.GetScriptByID(r.SourceID)
	if err != nil {
		return ReferenceDoc{}, err
	}
	rd := ReferenceDoc{
		Source:     source.AbsPath,
		TargetKind: string(r.TargetKind),
		Line:       r.Line,
		Style:      string(r.Style),
		Status:     string(r.Status),
	}
	if r.Status == model.StatusResolved {
		identity, err := targetIdentity(st, r.TargetKind, r.TargetID)
		if err != nil {
			return ReferenceDoc{}, err
		}
		rd.Target = identity
	}
	for _, c := range r.Candidates {
		identity, err := targetIdentity(st, r.TargetKind, c)
		if err != nil {
			return ReferenceDoc{}, err
		}
		rd.Candidates = append(rd.Candidates, identity)
	}
	sort.Strings(rd.Candidates)
	return rd, nil
}

func targetIdentity(st Store, kind model.TargetKind, id int64) (string, error) {
	switch kind {
	case model.TargetProcedure:
		p, ok, err := st.ProcedureByID(id)
		if err != nil || !ok {
			return "", err
		}
		return p.Qualified, nil
	case model.TargetControlFile:
		cf, ok, err := st.ControlFileByID(id)
		if err != nil || !ok {
			return "", err
		}
		return cf.AbsPath, nil
	default:
		sc, ok, err := st.GetScriptByID(id)
		if err != nil || !ok {
			return "", err
		}
		return sc.AbsPath, nil
	}
}

// WriteJSON writes doc as indented, deterministic JSON.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteCSV writes doc's references as a flat edge list: the secondary
// export format, filling the gap the prior implementation's export
// signature gestured at but never implemented.
func WriteCSV(w io.Writer, doc Document) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"source", "target_kind", "target", "line", "style", "status"}); err != nil {
		return err
	}
	for _, r := range doc.Edges {
		if err := cw.Write([]string{r.Source, r.TargetKind, r.Target, fmt.Sprint(r.Line), r.Style, r.Status}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
