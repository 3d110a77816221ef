package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/shelldep/shelldep/internal/errs"
	"github.com/shelldep/shelldep/internal/model"
)

// backoffSchedule implements a bounded retry policy: three attempts,
// exponential backoff, on a transient store-locked error.
var backoffSchedule = []time.Duration{50 * time.Millisecond, 100 * time.Millisecond}

func withRetry(path string, fn func() error) error {
	var err error
	for attempt := 0; attempt < len(backoffSchedule)+1; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isBusy(err) || attempt == len(backoffSchedule) {
			break
		}
		time.Sleep(backoffSchedule[attempt])
	}
	return errs.New(errs.StoreUnavailable, path, err)
}

func isBusy(err error) bool {
	code := sqlite.ErrCode(err)
	return code == sqlite.ResultBusy || code == sqlite.ResultLocked
}

// UpsertScript inserts or updates a Script keyed by absolute path,
// returning its id.
func (s *Store) UpsertScript(sc model.Script) (int64, error) {
	var id int64
	err := withRetry(s.path, func() error {
		return sqlitex.Execute(s.write, `
			INSERT INTO scripts (abs_path, basename, size, mtime, line_count, language, stale)
			VALUES (?, ?, ?, ?, ?, ?, 0)
			ON CONFLICT(abs_path) DO UPDATE SET
				basename = excluded.basename,
				size = excluded.size,
				mtime = excluded.mtime,
				line_count = excluded.line_count,
				language = excluded.language,
				stale = 0
			RETURNING id`,
			&sqlitex.ExecOptions{
				Args: []any{sc.AbsPath, sc.Basename, sc.Size, sc.ModTime, sc.LineCount, string(sc.Language)},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					id = stmt.ColumnInt64(0)
					return nil
				},
			})
	})
	return id, err
}

// UpsertControlFile inserts or updates a ControlFile keyed by absolute path.
func (s *Store) UpsertControlFile(cf model.ControlFile) (int64, error) {
	var id int64
	err := withRetry(s.path, func() error {
		return sqlitex.Execute(s.write, `
			INSERT INTO control_files (abs_path, basename, size)
			VALUES (?, ?, ?)
			ON CONFLICT(abs_path) DO UPDATE SET basename = excluded.basename, size = excluded.size
			RETURNING id`,
			&sqlitex.ExecOptions{
				Args: []any{cf.AbsPath, cf.Basename, cf.Size},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					id = stmt.ColumnInt64(0)
					return nil
				},
			})
	})
	return id, err
}

// UpsertProcedure inserts or finds a Procedure keyed by its fully-qualified
// textual form, so two call sites with identical qualified text share one
// row.
func (s *Store) UpsertProcedure(qualified, schemaPart, packagePart, namePart string) (int64, error) {
	var id int64
	err := withRetry(s.path, func() error {
		return sqlitex.Execute(s.write, `
			INSERT INTO procedures (qualified, qualified_lower, schema_part, package_part, name_part)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(qualified) DO UPDATE SET qualified = excluded.qualified
			RETURNING id`,
			&sqlitex.ExecOptions{
				Args: []any{qualified, strings.ToLower(qualified), nullable(schemaPart), nullable(packagePart), namePart},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					id = stmt.ColumnInt64(0)
					return nil
				},
			})
	})
	if err == nil {
		err = refreshProceduresFTS(s.write)
	}
	return id, err
}

// ReplaceEdgesOf deletes all existing outbound references of scriptID and
// inserts the supplied set, atomically. Call within a scan bracket; the
// caller still controls the outer commit/rollback.
func (s *Store) ReplaceEdgesOf(scriptID int64, refs []model.Reference) error {
	return withRetry(s.path, func() error {
		if err := sqlitex.Execute(s.write, `DELETE FROM refs WHERE source_id = ?`, &sqlitex.ExecOptions{
			Args: []any{scriptID},
		}); err != nil {
			return err
		}
		stmt, err := s.write.Prepare(`
			INSERT INTO refs (source_id, target_id, target_kind, line, raw_text, style, background, status, candidates)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare ref insert: %w", err)
		}
		defer func() { _ = stmt.Finalize() }()

		for _, r := range refs {
			stmt.BindInt64(1, scriptID)
			if r.TargetID != 0 {
				stmt.BindInt64(2, r.TargetID)
			} else {
				stmt.BindNull(2)
			}
			stmt.BindText(3, string(r.TargetKind))
			stmt.BindInt64(4, int64(r.Line))
			stmt.BindText(5, r.RawText)
			stmt.BindText(6, string(r.Style))
			stmt.BindInt64(7, boolToInt(r.Background))
			stmt.BindText(8, string(r.Status))
			if len(r.Candidates) > 0 {
				b, _ := json.Marshal(r.Candidates)
				stmt.BindText(9, string(b))
			} else {
				stmt.BindNull(9)
			}
			if _, err := stmt.Step(); err != nil {
				return fmt.Errorf("insert ref line %d: %w", r.Line, err)
			}
			if err := stmt.Reset(); err != nil {
				return err
			}
		}
		return nil
	})
}

// StampScanID records the identifier of the scan currently being
// committed, under the same meta table schema versioning uses, so an
// operator can correlate a store's contents with the progress log of the
// run that produced them.
func (s *Store) StampScanID(id string) error {
	return withRetry(s.path, func() error {
		return sqlitex.Execute(s.write, `
			INSERT INTO meta(key, value) VALUES('last_scan_id', ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			&sqlitex.ExecOptions{Args: []any{id}})
	})
}

// MarkStaleExcept flags every script not present in keepAbsPaths as stale,
// used by a pruning scan's "remove from the tree since last scan" pass. A
// removed script is marked stale but retained, never deleted outright.
func (s *Store) MarkStaleExcept(keepAbsPaths []string) error {
	return withRetry(s.path, func() error {
		if err := sqlitex.Execute(s.write, `UPDATE scripts SET stale = 0`, nil); err != nil {
			return err
		}
		if len(keepAbsPaths) == 0 {
			return sqlitex.Execute(s.write, `UPDATE scripts SET stale = 1`, nil)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keepAbsPaths)), ",")
		args := make([]any, len(keepAbsPaths))
		for i, p := range keepAbsPaths {
			args[i] = p
		}
		return sqlitex.Execute(s.write, fmt.Sprintf(`UPDATE scripts SET stale = 1 WHERE abs_path NOT IN (%s)`, placeholders), &sqlitex.ExecOptions{Args: args})
	})
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func refreshProceduresFTS(conn *sqlite.Conn) error {
	return sqlitex.Execute(conn, `INSERT INTO procedures_fts(procedures_fts) VALUES('rebuild')`, nil)
}
