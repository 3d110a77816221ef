// Package model defines the entity and edge types of the dependency graph:
// Script, ControlFile, Procedure, and Reference, per the data model.
package model

// TargetKind identifies what kind of node a Reference points at.
type TargetKind string

const (
	TargetScript      TargetKind = "script"
	TargetControlFile TargetKind = "control_file"
	TargetProcedure   TargetKind = "procedure"
)

// Status is the resolution outcome of a Reference.
type Status string

const (
	StatusResolved   Status = "resolved"
	StatusUnresolved Status = "unresolved"
	StatusAmbiguous  Status = "ambiguous"
)

// Style is the shell syntax that produced a script Reference.
type Style string

const (
	StyleSourced     Style = "sourced"
	StyleDirectPath  Style = "direct_path"
	StyleBareName    Style = "bare_name"
	StyleInterpreter Style = "interpreter"
)

// Language is the shell dialect tag derived from file extension.
type Language string

const (
	LangKsh Language = "ksh"
	LangSh  Language = "sh"
)

// Script is a discovered .ksh/.sh source file.
type Script struct {
	ID        int64
	AbsPath   string
	Basename  string
	Size      int64
	ModTime   int64 // unix nanos
	LineCount int
	Language  Language
	Stale     bool
}

// ControlFile is a discovered .ctl bulk-loader control file.
type ControlFile struct {
	ID       int64
	AbsPath  string
	Basename string
	Size     int64
}

// Procedure is a named callable of the form schema.package.name,
// package.name, or name.
type Procedure struct {
	ID             int64
	Qualified      string // original case, as written
	QualifiedLower string
	SchemaPart     string
	PackagePart    string
	NamePart       string
}

// Reference is a directed edge from a Script to a Script, ControlFile, or
// Procedure. Immutable once written; a re-scan deletes and re-inserts all
// of a script's outbound edges atomically.
type Reference struct {
	ID         int64
	SourceID   int64
	TargetID   int64 // 0 when Status is Unresolved
	TargetKind TargetKind
	Line       int
	RawText    string
	Style      Style
	Background bool
	Status     Status
	Candidates []int64 // populated only when Status == StatusAmbiguous
}

// InactiveReference is a reference-shaped match found on a commented line.
// It never becomes a graph edge; it exists only for the scan report's
// debug surface.
type InactiveReference struct {
	Line       int
	RawText    string
	TargetKind TargetKind
	Style      Style
}
