// Package reportlog provides an elapsed-time progress logger plus a
// per-error-kind scan report: non-fatal errors are counted and sampled
// rather than surfaced one line per occurrence.
package reportlog

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/shelldep/shelldep/internal/errs"
	"github.com/shelldep/shelldep/internal/model"
)

// Progress reports pipeline progress to stderr with an elapsed-time
// prefix.
type Progress struct {
	start   time.Time
	verbose bool
	logger  *slog.Logger
}

// NewProgress creates a progress reporter writing structured records
// through logger and a human-readable elapsed-time line to stderr.
func NewProgress(verbose bool, logger *slog.Logger) *Progress {
	if logger == nil {
		logger = slog.Default()
	}
	return &Progress{start: time.Now(), verbose: verbose, logger: logger}
}

// Log prints a progress message with an elapsed [mm:ss] prefix.
func (p *Progress) Log(format string, args ...any) {
	elapsed := time.Since(p.start)
	mins := int(elapsed.Minutes())
	secs := int(elapsed.Seconds()) % 60
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "[%02d:%02d] %s\n", mins, secs, msg)
}

// Verbose prints only when verbose mode is enabled.
func (p *Progress) Verbose(format string, args ...any) {
	if p.verbose {
		p.Log(format, args...)
	}
}

// Errorf logs a structured record at slog's Error level, keyed by kind so
// downstream log aggregation can count without parsing text.
func (p *Progress) Errorf(kind errs.Kind, path string, err error) {
	p.logger.Error("scan error", "kind", string(kind), "path", path, "err", err)
}

const samplesPerKind = 10

// Report accumulates non-fatal scan errors by kind: a scan continues past
// non-fatal errors, and the final report counts them by kind with a
// bounded sample of affected paths, rather than growing unbounded on a
// pathological corpus.
//
// Add is called concurrently from the parse-phase worker pool, so all
// access is guarded by mu.
type Report struct {
	mu            sync.Mutex
	counts        map[errs.Kind]int
	samples       map[errs.Kind][]string
	inactive      []InactiveRecord
	inactiveTotal int
}

// InactiveRecord is one reference-shaped match found on a commented line,
// surfaced only for operator-facing debugging — never a graph edge.
type InactiveRecord struct {
	Path string
	Ref  model.InactiveReference
}

const inactiveSamplesMax = 50

// NewReport creates an empty Report.
func NewReport() *Report {
	return &Report{counts: map[errs.Kind]int{}, samples: map[errs.Kind][]string{}}
}

// Add records one non-fatal error against its kind.
func (r *Report) Add(kind errs.Kind, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[kind]++
	if len(r.samples[kind]) < samplesPerKind {
		r.samples[kind] = append(r.samples[kind], path)
	}
}

// Count returns how many errors of kind were recorded.
func (r *Report) Count(kind errs.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[kind]
}

// Total returns the total number of non-fatal errors recorded.
func (r *Report) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.counts {
		total += n
	}
	return total
}

// Kinds returns every kind with at least one recorded error, sorted for
// deterministic reporting.
func (r *Report) Kinds() []errs.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]errs.Kind, 0, len(r.counts))
	for k := range r.counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Samples returns the (bounded) sample of paths recorded against kind.
func (r *Report) Samples(kind errs.Kind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.samples[kind]...)
}

// AddInactive records a reference-shaped match found on a commented line in
// path, bounded to inactiveSamplesMax total so a heavily-commented corpus
// can't grow this unbounded; the count is still reflected in InactiveTotal.
func (r *Report) AddInactive(path string, ref model.InactiveReference) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inactiveTotal++
	if len(r.inactive) < inactiveSamplesMax {
		r.inactive = append(r.inactive, InactiveRecord{Path: path, Ref: ref})
	}
}

// InactiveReferences returns the bounded sample of inactive references
// recorded this scan: reference-shaped matches found on commented lines,
// never turned into graph edges, surfaced here purely for operator
// debugging.
func (r *Report) InactiveReferences() []InactiveRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]InactiveRecord(nil), r.inactive...)
}

// InactiveTotal returns how many inactive references were found this scan,
// including any beyond the bounded sample InactiveReferences returns.
func (r *Report) InactiveTotal() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inactiveTotal
}
