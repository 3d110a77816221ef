package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shelldep/shelldep/internal/model"
)

// ScriptByAbsPath satisfies resolve.Lookup.
func (s *Store) ScriptByAbsPath(absPath string) (int64, bool) {
	var id int64
	err := s.read.QueryRow(`SELECT id FROM scripts WHERE abs_path = ?`, absPath).Scan(&id)
	return id, err == nil
}

// ControlFileByAbsPath satisfies resolve.Lookup.
func (s *Store) ControlFileByAbsPath(absPath string) (int64, bool) {
	var id int64
	err := s.read.QueryRow(`SELECT id FROM control_files WHERE abs_path = ?`, absPath).Scan(&id)
	return id, err == nil
}

// ScriptsByBasename satisfies resolve.Lookup.
func (s *Store) ScriptsByBasename(basename string) ([]int64, error) {
	return queryIDs(s.read, `SELECT id FROM scripts WHERE basename = ? ORDER BY abs_path`, basename)
}

// ControlFilesByBasename satisfies resolve.Lookup.
func (s *Store) ControlFilesByBasename(basename string) ([]int64, error) {
	return queryIDs(s.read, `SELECT id FROM control_files WHERE basename = ? ORDER BY abs_path`, basename)
}

func queryIDs(db *sql.DB, query string, args ...any) ([]int64, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetScriptByPath returns the Script at absPath, if indexed.
func (s *Store) GetScriptByPath(absPath string) (model.Script, bool, error) {
	return s.getScript(`abs_path = ?`, absPath)
}

// GetScriptByID returns the Script with the given id.
func (s *Store) GetScriptByID(id int64) (model.Script, bool, error) {
	return s.getScript(`id = ?`, id)
}

func (s *Store) getScript(where string, arg any) (model.Script, bool, error) {
	row := s.read.QueryRow(`SELECT id, abs_path, basename, size, mtime, line_count, language, stale FROM scripts WHERE `+where, arg)
	var sc model.Script
	var stale int64
	err := row.Scan(&sc.ID, &sc.AbsPath, &sc.Basename, &sc.Size, &sc.ModTime, &sc.LineCount, &sc.Language, &stale)
	if err == sql.ErrNoRows {
		return model.Script{}, false, nil
	}
	if err != nil {
		return model.Script{}, false, err
	}
	sc.Stale = stale != 0
	return sc, true, nil
}

// GetScriptsByBasename returns every Script sharing basename, for the
// caller-facing ambiguous-candidate listing.
func (s *Store) GetScriptsByBasename(basename string) ([]model.Script, error) {
	rows, err := s.read.Query(`SELECT id, abs_path, basename, size, mtime, line_count, language, stale FROM scripts WHERE basename = ? ORDER BY abs_path`, basename)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Script
	for rows.Next() {
		var sc model.Script
		var stale int64
		if err := rows.Scan(&sc.ID, &sc.AbsPath, &sc.Basename, &sc.Size, &sc.ModTime, &sc.LineCount, &sc.Language, &stale); err != nil {
			return nil, err
		}
		sc.Stale = stale != 0
		out = append(out, sc)
	}
	return out, rows.Err()
}

// Outbound returns every Reference whose source is scriptID, ordered by
// line, for forward dependency lookup.
func (s *Store) Outbound(scriptID int64) ([]model.Reference, error) {
	return s.refs(`source_id = ?`, scriptID)
}

// Inbound returns every Reference whose target is (targetID, kind), ordered
// by source path then line, for backward dependency lookup.
func (s *Store) Inbound(targetID int64, kind model.TargetKind) ([]model.Reference, error) {
	rows, err := s.read.Query(`
		SELECT r.id, r.source_id, r.target_id, r.target_kind, r.line, r.raw_text, r.style, r.background, r.status, r.candidates
		FROM refs r JOIN scripts sc ON sc.id = r.source_id
		WHERE r.target_id = ? AND r.target_kind = ?
		ORDER BY sc.abs_path, r.line`, targetID, kind)
	if err != nil {
		return nil, err
	}
	return scanRefs(rows)
}

func (s *Store) refs(where string, args ...any) ([]model.Reference, error) {
	rows, err := s.read.Query(`
		SELECT id, source_id, target_id, target_kind, line, raw_text, style, background, status, candidates
		FROM refs WHERE `+where+` ORDER BY line`, args...)
	if err != nil {
		return nil, err
	}
	return scanRefs(rows)
}

func scanRefs(rows *sql.Rows) ([]model.Reference, error) {
	defer rows.Close()
	var out []model.Reference
	for rows.Next() {
		var r model.Reference
		var targetID sql.NullInt64
		var candidates sql.NullString
		var background int64
		if err := rows.Scan(&r.ID, &r.SourceID, &targetID, &r.TargetKind, &r.Line, &r.RawText, &r.Style, &background, &r.Status, &candidates); err != nil {
			return nil, err
		}
		r.TargetID = targetID.Int64
		r.Background = background != 0
		if candidates.Valid && candidates.String != "" {
			if err := json.Unmarshal([]byte(candidates.String), &r.Candidates); err != nil {
				return nil, fmt.Errorf("decode candidates for ref %d: %w", r.ID, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ControlFileByID returns the ControlFile with the given id.
func (s *Store) ControlFileByID(id int64) (model.ControlFile, bool, error) {
	row := s.read.QueryRow(`SELECT id, abs_path, basename, size FROM control_files WHERE id = ?`, id)
	var cf model.ControlFile
	err := row.Scan(&cf.ID, &cf.AbsPath, &cf.Basename, &cf.Size)
	if err == sql.ErrNoRows {
		return model.ControlFile{}, false, nil
	}
	if err != nil {
		return model.ControlFile{}, false, err
	}
	return cf, true, nil
}

// ProcedureByID returns the Procedure with the given id.
func (s *Store) ProcedureByID(id int64) (model.Procedure, bool, error) {
	row := s.read.QueryRow(`SELECT id, qualified, qualified_lower, schema_part, package_part, name_part FROM procedures WHERE id = ?`, id)
	var p model.Procedure
	var schemaPart, packagePart sql.NullString
	err := row.Scan(&p.ID, &p.Qualified, &p.QualifiedLower, &schemaPart, &packagePart, &p.NamePart)
	if err == sql.ErrNoRows {
		return model.Procedure{}, false, nil
	}
	if err != nil {
		return model.Procedure{}, false, err
	}
	p.SchemaPart, p.PackagePart = schemaPart.String, packagePart.String
	return p, true, nil
}

// SearchProcedures performs a substring search over procedure qualified
// names via the procedures_fts trigram index, with needle treated as a
// literal phrase (no MATCH query-syntax operators honored). A needle
// shorter than three characters, which the trigram index cannot match, is
// searched with instr() over procedures instead. Results are ordered by
// lowercased qualified name, then by id.
func (s *Store) SearchProcedures(needle string) ([]model.Procedure, error) {
	lower := strings.ToLower(needle)
	query := `
		SELECT p.id, p.qualified, p.qualified_lower, p.schema_part, p.package_part, p.name_part
		FROM procedures_fts f
		JOIN procedures p ON p.id = f.rowid
		WHERE f.qualified_lower MATCH ?
		ORDER BY p.qualified_lower, p.id`
	arg := `"` + strings.ReplaceAll(lower, `"`, `""`) + `"`
	if utf8.RuneCountInString(lower) < 3 {
		query = `
		SELECT id, qualified, qualified_lower, schema_part, package_part, name_part
		FROM procedures WHERE instr(qualified_lower, ?) > 0
		ORDER BY qualified_lower, id`
		arg = lower
	}
	rows, err := s.read.Query(query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Procedure
	for rows.Next() {
		var p model.Procedure
		var schemaPart, packagePart sql.NullString
		if err := rows.Scan(&p.ID, &p.Qualified, &p.QualifiedLower, &schemaPart, &packagePart, &p.NamePart); err != nil {
			return nil, err
		}
		p.SchemaPart, p.PackagePart = schemaPart.String, packagePart.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// ProcedureCallers returns every Reference calling procedureID, ordered by
// the calling script's path then line.
func (s *Store) ProcedureCallers(procedureID int64) ([]model.Reference, error) {
	return s.Inbound(procedureID, model.TargetProcedure)
}

// Summary counts scripts, control files, procedures, and references (the
// latter broken out by target kind), for the HTTP summary endpoint via
// query.ComputeSummary.
type Summary struct {
	Scripts         int
	ControlFiles    int
	Procedures      int
	References      int
	EdgeCountByKind map[model.TargetKind]int
	Unresolved      int
	Ambiguous       int
	Stale           int
}

// Summary computes store-wide counts.
func (s *Store) Summary() (Summary, error) {
	var sum Summary
	row := s.read.QueryRow(`SELECT
		(SELECT COUNT(*) FROM scripts),
		(SELECT COUNT(*) FROM control_files),
		(SELECT COUNT(*) FROM procedures),
		(SELECT COUNT(*) FROM refs),
		(SELECT COUNT(*) FROM refs WHERE status = 'unresolved'),
		(SELECT COUNT(*) FROM refs WHERE status = 'ambiguous'),
		(SELECT COUNT(*) FROM scripts WHERE stale = 1)`)
	if err := row.Scan(&sum.Scripts, &sum.ControlFiles, &sum.Procedures, &sum.References, &sum.Unresolved, &sum.Ambiguous, &sum.Stale); err != nil {
		return Summary{}, err
	}

	sum.EdgeCountByKind = map[model.TargetKind]int{
		model.TargetScript:      0,
		model.TargetControlFile: 0,
		model.TargetProcedure:   0,
	}
	rows, err := s.read.Query(`SELECT target_kind, COUNT(*) FROM refs GROUP BY target_kind`)
	if err != nil {
		return Summary{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var kind model.TargetKind
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return Summary{}, err
		}
		sum.EdgeCountByKind[kind] = n
	}
	if err := rows.Err(); err != nil {
		return Summary{}, err
	}
	return sum, nil
}

// IterAllScripts calls fn for every non-stale Script, ordered by abs path,
// for export.
func (s *Store) IterAllScripts(fn func(model.Script) error) error {
	rows, err := s.read.Query(`SELECT id, abs_path, basename, size, mtime, line_count, language, stale FROM scripts WHERE stale = 0 ORDER BY abs_path`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var sc model.Script
		var stale int64
		if err := rows.Scan(&sc.ID, &sc.AbsPath, &sc.Basename, &sc.Size, &sc.ModTime, &sc.LineCount, &sc.Language, &stale); err != nil {
			return err
		}
		sc.Stale = stale != 0
		if err := fn(sc); err != nil {
			return err
		}
	}
	return rows.Err()
}

// IterAllControlFiles calls fn for every ControlFile, ordered by abs path,
// for export — the full catalog, not just ones targeted by a resolved
// reference.
func (s *Store) IterAllControlFiles(fn func(model.ControlFile) error) error {
	rows, err := s.read.Query(`SELECT id, abs_path, basename, size FROM control_files ORDER BY abs_path`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var cf model.ControlFile
		if err := rows.Scan(&cf.ID, &cf.AbsPath, &cf.Basename, &cf.Size); err != nil {
			return err
		}
		if err := fn(cf); err != nil {
			return err
		}
	}
	return rows.Err()
}

// IterAllProcedures calls fn for every Procedure, ordered by qualified
// name, for export — the full catalog, not just ones targeted by a
// resolved reference.
func (s *Store) IterAllProcedures(fn func(model.Procedure) error) error {
	rows, err := s.read.Query(`SELECT id, qualified, qualified_lower, schema_part, package_part, name_part FROM procedures ORDER BY qualified`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var p model.Procedure
		var schemaPart, packagePart sql.NullString
		if err := rows.Scan(&p.ID, &p.Qualified, &p.QualifiedLower, &schemaPart, &packagePart, &p.NamePart); err != nil {
			return err
		}
		p.SchemaPart, p.PackagePart = schemaPart.String, packagePart.String
		if err := fn(p); err != nil {
			return err
		}
	}
	return rows.Err()
}

// IterAllReferences calls fn for every Reference, ordered by source path
// then line, for export.
func (s *Store) IterAllReferences(fn func(model.Reference) error) error {
	rows, err := s.read.Query(`
		SELECT r.id, r.source_id, r.target_id, r.target_kind, r.line, r.raw_text, r.style, r.background, r.status, r.candidates
		FROM refs r JOIN scripts sc ON sc.id = r.source_id
		ORDER BY sc.abs_path, r.line`)
	if err != nil {
		return err
	}
	refs, err := scanRefs(rows)
	if err != nil {
		return err
	}
	for _, r := range refs {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}
