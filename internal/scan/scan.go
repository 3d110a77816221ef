// Package scan orchestrates one end-to-end analyzer run: walk the corpus,
// classify and extract references per file in parallel, then resolve and
// write everything through a single writer inside one scan-wide
// transaction.
//
// Resolution is deliberately done against an in-memory index built from
// this scan's own walk, not against the store's read pool: the write
// connection holds an open, uncommitted transaction for the whole scan, so
// a freshly discovered sibling script would not yet be visible to a
// separate reader even under WAL. Building the index once, up front, also
// means every reference in a scan resolves against the same consistent
// corpus snapshot regardless of file processing order.
package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shelldep/shelldep/internal/errs"
	"github.com/shelldep/shelldep/internal/extract"
	"github.com/shelldep/shelldep/internal/graphbuild"
	"github.com/shelldep/shelldep/internal/lexer"
	"github.com/shelldep/shelldep/internal/model"
	"github.com/shelldep/shelldep/internal/reportlog"
	"github.com/shelldep/shelldep/internal/resolve"
	"github.com/shelldep/shelldep/internal/store"
	"github.com/shelldep/shelldep/internal/walker"
)

// Options tunes one scan run.
type Options struct {
	Root       string
	Workers    int // 0 means runtime.NumCPU()
	Prune      bool
	ExcludeDir []string
}

// Result summarizes what a scan did.
type Result struct {
	ScriptsScanned int
	Report         *reportlog.Report
}

type parsedScript struct {
	script model.Script
	raw    []extract.Raw
}

// Run executes one full scan against st, logging progress through prog.
func Run(ctx context.Context, st *store.Store, opts Options, prog *reportlog.Progress) (Result, error) {
	report := reportlog.NewReport()

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	scripts, controls, err := walkAndParse(ctx, opts.Root, workers, opts.ExcludeDir, report)
	if err != nil {
		return Result{}, err
	}
	scanID := uuid.New().String()
	prog.Log("scan %s: discovered %d scripts, %d control files", scanID, len(scripts), len(controls))

	if err := st.BeginScan(); err != nil {
		return Result{}, err
	}

	idx := newIndex()
	keepPaths := make([]string, 0, len(scripts))

	for _, cf := range controls {
		id, err := st.UpsertControlFile(cf)
		if err != nil {
			_ = st.AbortScan()
			return Result{}, err
		}
		idx.addControlFile(cf.AbsPath, cf.Basename, id)
	}

	for _, p := range scripts {
		id, err := st.UpsertScript(p.script)
		if err != nil {
			_ = st.AbortScan()
			return Result{}, err
		}
		idx.addScript(p.script.AbsPath, p.script.Basename, id)
		keepPaths = append(keepPaths, p.script.AbsPath)
	}

	resolver := resolve.New(idx)

	for _, p := range scripts {
		if err := ctx.Err(); err != nil {
			_ = st.AbortScan()
			return Result{}, err
		}
		if err := resolveAndWrite(st, resolver, p, report); err != nil {
			_ = st.AbortScan()
			return Result{}, err
		}
	}

	if opts.Prune {
		if err := st.MarkStaleExcept(keepPaths); err != nil {
			_ = st.AbortScan()
			return Result{}, err
		}
	}

	if err := st.StampScanID(scanID); err != nil {
		_ = st.AbortScan()
		return Result{}, err
	}

	if err := st.CommitScan(); err != nil {
		return Result{}, err
	}

	prog.Log("scan %s complete: %d scripts, %d non-fatal errors", scanID, len(scripts), report.Total())
	return Result{ScriptsScanned: len(scripts), Report: report}, nil
}

// walkAndParse discovers every candidate file and, for scripts, classifies
// and extracts its references — all read-only work, safe to parallelize
// across a worker pool with no store involvement.
func walkAndParse(ctx context.Context, root string, workers int, excludeDirs []string, report *reportlog.Report) ([]parsedScript, []model.ControlFile, error) {
	found, warnings := walker.Walk(ctx, root, walker.KindScript|walker.KindControlFile, excludeDirs...)

	var scripts []parsedScript
	var controls []model.ControlFile

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	resultCh := make(chan any, workers*2)

	// warnings must be drained concurrently with found, not after: Walk's
	// single walking goroutine sends both from the same loop, so a blocked
	// warnings send would stall the walk and found would never close.
	warnDone := make(chan struct{})
	go func() {
		defer close(warnDone)
		for w := range warnings {
			report.Add(errs.InputUnreadable, w.Path)
		}
	}()

	g.Go(func() error {
		defer close(resultCh)
		inner, innerCtx := errgroup.WithContext(gctx)
		inner.SetLimit(workers)
		for f := range found {
			f := f
			inner.Go(func() error {
				return parseOne(innerCtx, f, resultCh, report)
			})
		}
		return inner.Wait()
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range resultCh {
			switch v := r.(type) {
			case parsedScript:
				scripts = append(scripts, v)
			case model.ControlFile:
				controls = append(controls, v)
			}
		}
	}()

	err := g.Wait()
	<-done
	<-warnDone

	if err != nil {
		return nil, nil, err
	}
	return scripts, controls, nil
}

func parseOne(ctx context.Context, f walker.Found, out chan<- any, report *reportlog.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if f.Kind == walker.KindControlFile {
		select {
		case out <- model.ControlFile{AbsPath: f.AbsPath, Basename: f.Basename, Size: f.Size}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	}

	content, err := os.ReadFile(f.AbsPath)
	if err != nil {
		report.Add(errs.InputUnreadable, f.AbsPath)
		return nil
	}

	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, string(utf8.RuneError))
		report.Add(errs.ParseAnomaly, f.AbsPath)
	}

	lines, unterminated := lexer.Classify(text)
	active, inactive := extract.FromLines(lines)
	if unterminated {
		report.Add(errs.ParseAnomaly, f.AbsPath)
	}
	for _, ref := range inactive {
		report.AddInactive(f.AbsPath, ref)
	}

	sc := model.Script{
		AbsPath:   f.AbsPath,
		Basename:  f.Basename,
		Size:      f.Size,
		ModTime:   f.ModTime,
		LineCount: len(lines),
		Language:  f.Language,
	}

	select {
	case out <- parsedScript{script: sc, raw: active}:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func resolveAndWrite(st *store.Store, resolver *resolve.Resolver, p parsedScript, report *reportlog.Report) error {
	referringDir := filepath.Dir(p.script.AbsPath)
	refs := make([]graphbuild.ResolvedRef, 0, len(p.raw))

	for _, raw := range p.raw {
		rr := graphbuild.ResolvedRef{
			TargetKind: raw.TargetKind,
			Line:       raw.Line,
			RawText:    raw.RawText,
			Style:      raw.Style,
			Background: raw.Background,
		}

		if raw.TargetKind == model.TargetProcedure {
			id, err := st.UpsertProcedure(raw.Qualified, raw.SchemaPart, raw.PackagePart, raw.NamePart)
			if err != nil {
				return err
			}
			rr.TargetID = id
			rr.Status = model.StatusResolved
			refs = append(refs, rr)
			continue
		}

		result, err := resolver.Resolve(raw.TargetKind, raw.WrittenPath, raw.Basename, referringDir)
		if err != nil {
			return err
		}
		rr.Status = result.Status
		rr.TargetID = result.TargetID
		rr.Candidates = result.Candidates

		switch result.Status {
		case model.StatusUnresolved:
			report.Add(errs.UnresolvedReference, fmt.Sprintf("%s:%d", p.script.AbsPath, raw.Line))
		case model.StatusAmbiguous:
			report.Add(errs.AmbiguousReference, fmt.Sprintf("%s:%d", p.script.AbsPath, raw.Line))
		}
		refs = append(refs, rr)
	}

	_, err := graphbuild.Apply(st, p.script, refs, false)
	return err
}
