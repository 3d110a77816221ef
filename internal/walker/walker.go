// Package walker enumerates script and control-file candidates under a
// root directory, classifying by extension and computing the stable
// identity tuple (path, size, mtime) recorded with each script.
package walker

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/shelldep/shelldep/internal/errs"
	"github.com/shelldep/shelldep/internal/model"
)

// Kind selects which file classes a Walk call should surface.
type Kind int

const (
	KindScript Kind = 1 << iota
	KindControlFile
)

// Found is one file discovered by Walk.
type Found struct {
	AbsPath  string
	Basename string
	Size     int64
	ModTime  int64 // unix nanos
	Kind     Kind
	Language model.Language // set when Kind == KindScript
}

// Warning is a non-fatal per-file problem surfaced alongside results.
// Non-readable files are reported as warnings and skipped.
type Warning struct {
	Path string
	Err  error
}

// Walk enumerates files under root matching kinds, depth-first, skipping
// symlinks (cycle guard), hidden files/directories, and any directory named
// in excludeDirs. It returns lazily via a channel so callers can check
// ctx.Err() between files; the channel is closed once the walk completes
// or ctx is cancelled. Warnings
// are delivered on a separate channel so a caller that doesn't care about
// them can simply range over results.
func Walk(ctx context.Context, root string, kinds Kind, excludeDirs ...string) (<-chan Found, <-chan Warning) {
	out := make(chan Found)
	warnings := make(chan Warning)

	excluded := make(map[string]bool, len(excludeDirs))
	for _, d := range excludeDirs {
		excluded[d] = true
	}

	go func() {
		defer close(out)
		defer close(warnings)

		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				warnings <- Warning{Path: path, Err: errs.New(errs.InputUnreadable, path, err)}
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			base := d.Name()
			if base != "." && strings.HasPrefix(base, ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				if excluded[base] {
					return filepath.SkipDir
				}
				return nil
			}

			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}

			kind, lang := classify(base)
			if kind == 0 || kind&kinds == 0 {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				warnings <- Warning{Path: path, Err: errs.New(errs.InputUnreadable, path, err)}
				return nil
			}

			abs, err := filepath.Abs(path)
			if err != nil {
				abs = path
			}

			out <- Found{
				AbsPath:  abs,
				Basename: base,
				Size:     info.Size(),
				ModTime:  info.ModTime().UnixNano(),
				Kind:     kind,
				Language: lang,
			}
			return nil
		})
	}()

	return out, warnings
}

// classify returns the Kind and (for scripts) Language implied by a
// basename's lowercase extension.
func classify(basename string) (Kind, model.Language) {
	ext := strings.ToLower(filepath.Ext(basename))
	switch ext {
	case ".ksh":
		return KindScript, model.LangKsh
	case ".sh":
		return KindScript, model.LangSh
	case ".ctl":
		return KindControlFile, ""
	default:
		return 0, ""
	}
}
