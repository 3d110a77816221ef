// Package extract implements ordered reference-extraction patterns:
// stored-procedure calls, control-file references, and the five
// script-invocation styles. Patterns are tried in a fixed priority
// order and the first match on a given textual span wins — that span is
// then removed from consideration so one invocation never yields two
// reference records of different kinds.
package extract

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shelldep/shelldep/internal/lexer"
	"github.com/shelldep/shelldep/internal/model"
)

// Raw is an unresolved reference as emitted directly from a line, before
// the Resolver maps its basename/path to a concrete corpus entry.
type Raw struct {
	Line        int
	RawText     string
	TargetKind  model.TargetKind
	Style       model.Style
	Background  bool
	WrittenPath string // as written, for script/control-file targets; "" if bare
	Basename    string // basename to resolve, for script/control-file targets

	Qualified   string // procedure targets only
	SchemaPart  string
	PackagePart string
	NamePart    string
}

var (
	procedurePattern = regexp.MustCompile(`(?i)\bselect\s+([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*){0,2})\s*\(((?:[^()]|\([^()]*\))*)\)\s*from\s+dual\b`)
	controlPattern   = regexp.MustCompile(`(?i)\bcontrol\s*=\s*([\w./-]*\.ctl)\b`)

	sourcedPattern     = regexp.MustCompile(`^\s*(?:\.|source)\s+(\S+\.(?:ksh|sh))\b`)
	directPathPattern  = regexp.MustCompile(`(/?(?:[\w.-]+/)+[\w.-]+\.(?:ksh|sh))\b`)
	interpreterPattern = regexp.MustCompile(`\b(?:ksh|bash|sh)\s+(\S+\.(?:ksh|sh))\b`)
	bareNamePattern    = regexp.MustCompile(`^[\w.-]+\.(?:ksh|sh)$`)

	commandDelimSplit = regexp.MustCompile(`&&|\|\||[;|]|\(|\{`)
	trailingAmpersand  = regexp.MustCompile(`(?:^|[^&])&\s*$`)
)

// FromLines runs the extractor over a whole file's classified lines,
// returning active references (which become graph edges) and inactive
// ones found on commented lines (debug surface only, never edges).
func FromLines(lines []lexer.Line) (active []Raw, inactive []model.InactiveReference) {
	for _, ln := range lines {
		switch ln.Class {
		case lexer.Active:
			active = append(active, extractActive(ln)...)
		case lexer.HeredocBody:
			active = append(active, extractProcedureCalls(ln.Line, ln.Raw)...)
		case lexer.Comment:
			inactive = append(inactive, extractInactive(ln)...)
		}
	}
	return active, inactive
}

// extractActive applies the full ordered pattern family to one active
// line, using a claimed-span mask so higher-priority patterns shadow
// lower-priority ones on overlapping text.
func extractActive(ln lexer.Line) []Raw {
	masked := lexer.MaskSingleQuoted(ln.Text)
	claimed := make([]bool, len(masked)+1)

	var out []Raw

	claim := func(start, end int) bool {
		for i := start; i < end; i++ {
			if claimed[i] {
				return false
			}
		}
		for i := start; i < end; i++ {
			claimed[i] = true
		}
		return true
	}

	// A. Stored-procedure calls.
	for _, m := range procedurePattern.FindAllStringSubmatchIndex(masked, -1) {
		if !claim(m[0], m[1]) {
			continue
		}
		out = append(out, procedureRaw(ln.Line, ln.Text[m[0]:m[1]], ln.Text[m[2]:m[3]]))
	}

	// B. Control-file references.
	for _, m := range controlPattern.FindAllStringSubmatchIndex(masked, -1) {
		if !claim(m[0], m[1]) {
			continue
		}
		path := ln.Text[m[2]:m[3]]
		out = append(out, Raw{
			Line:        ln.Line,
			RawText:     ln.Text[m[0]:m[1]],
			TargetKind:  model.TargetControlFile,
			WrittenPath: path,
			Basename:    filepath.Base(path),
		})
	}

	// C1. Sourced.
	if m := sourcedPattern.FindStringSubmatchIndex(masked); m != nil && claim(m[0], m[1]) {
		out = append(out, scriptRaw(ln.Line, ln.Text[m[0]:m[1]], ln.Text[m[2]:m[3]], model.StyleSourced, hasTrailingAmpersand(masked)))
	}

	// C2. Direct path.
	for _, m := range directPathPattern.FindAllStringSubmatchIndex(masked, -1) {
		if !claim(m[0], m[1]) {
			continue
		}
		out = append(out, scriptRaw(ln.Line, ln.Text[m[0]:m[1]], ln.Text[m[2]:m[3]], model.StyleDirectPath, hasTrailingAmpersand(masked)))
	}

	// C3. Bare name at command position: only the first whitespace-delimited
	// token of each command-position span is a candidate.
	for _, span := range commandPositionSpans(masked) {
		segment := masked[span[0]:span[1]]
		trimmed := strings.TrimLeft(segment, " \t")
		leadWS := len(segment) - len(trimmed)
		fields := strings.Fields(trimmed)
		if len(fields) == 0 {
			continue
		}
		word := fields[0]
		if !bareNamePattern.MatchString(word) {
			continue
		}
		start := span[0] + leadWS
		end := start + len(word)
		if !claim(start, end) {
			continue
		}
		out = append(out, scriptRaw(ln.Line, ln.Text[start:end], ln.Text[start:end], model.StyleBareName, hasTrailingAmpersand(masked)))
	}

	// C4. Explicit interpreter.
	for _, m := range interpreterPattern.FindAllStringSubmatchIndex(masked, -1) {
		if !claim(m[0], m[1]) {
			continue
		}
		out = append(out, scriptRaw(ln.Line, ln.Text[m[0]:m[1]], ln.Text[m[2]:m[3]], model.StyleInterpreter, hasTrailingAmpersand(masked)))
	}

	return out
}

// extractInactive applies extractActive's procedure, control-file, sourced,
// direct-path, and interpreter patterns (not bare-name, and with no span
// claiming) over a commented line's raw text, only to populate the debug
// surface — callers must never turn these into graph edges.
func extractInactive(ln lexer.Line) []model.InactiveReference {
	masked := lexer.MaskSingleQuoted(ln.Raw)
	var out []model.InactiveReference

	for _, m := range procedurePattern.FindAllStringIndex(masked, -1) {
		out = append(out, model.InactiveReference{Line: ln.Line, RawText: ln.Raw[m[0]:m[1]], TargetKind: model.TargetProcedure})
	}
	for _, m := range controlPattern.FindAllStringIndex(masked, -1) {
		out = append(out, model.InactiveReference{Line: ln.Line, RawText: ln.Raw[m[0]:m[1]], TargetKind: model.TargetControlFile})
	}
	for _, pat := range []struct {
		re    *regexp.Regexp
		style model.Style
	}{
		{sourcedPattern, model.StyleSourced},
		{directPathPattern, model.StyleDirectPath},
		{interpreterPattern, model.StyleInterpreter},
	} {
		if m := pat.re.FindStringIndex(masked); m != nil {
			out = append(out, model.InactiveReference{Line: ln.Line, RawText: ln.Raw[m[0]:m[1]], TargetKind: model.TargetScript, Style: pat.style})
		}
	}
	return out
}

// extractProcedureCalls applies only pattern A, for heredoc-body lines.
func extractProcedureCalls(lineNum int, text string) []Raw {
	masked := lexer.MaskSingleQuoted(text)
	var out []Raw
	for _, m := range procedurePattern.FindAllStringSubmatchIndex(masked, -1) {
		out = append(out, procedureRaw(lineNum, text[m[0]:m[1]], text[m[2]:m[3]]))
	}
	return out
}

func procedureRaw(line int, raw, qualified string) Raw {
	parts := strings.Split(qualified, ".")
	r := Raw{Line: line, RawText: raw, TargetKind: model.TargetProcedure, Qualified: qualified}
	switch len(parts) {
	case 1:
		r.NamePart = parts[0]
	case 2:
		r.PackagePart, r.NamePart = parts[0], parts[1]
	case 3:
		r.SchemaPart, r.PackagePart, r.NamePart = parts[0], parts[1], parts[2]
	}
	return r
}

func scriptRaw(line int, raw, path string, style model.Style, background bool) Raw {
	return Raw{
		Line:        line,
		RawText:     raw,
		TargetKind:  model.TargetScript,
		Style:       style,
		Background:  background,
		WrittenPath: path,
		Basename:    filepath.Base(path),
	}
}

func hasTrailingAmpersand(line string) bool {
	return trailingAmpersand.MatchString(line)
}

// commandPositionSpans finds the byte ranges that occupy "command
// position": the start of the line, or immediately after &&, ||, ;, |, (,
// or {.
func commandPositionSpans(line string) [][2]int {
	var spans [][2]int
	start := 0
	locs := commandDelimSplit.FindAllStringIndex(line, -1)
	for _, loc := range locs {
		spans = append(spans, [2]int{start, loc[0]})
		start = loc[1]
	}
	spans = append(spans, [2]int{start, len(line)})
	return spans
}
