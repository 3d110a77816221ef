// Package resolve maps a reference's written path and/or basename to zero,
// one, or many concrete corpus entries.
package resolve

import (
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/shelldep/shelldep/internal/model"
)

// Candidate is a store-resolvable target: either a Script or ControlFile id.
type Candidate struct {
	ID   int64
	Kind model.TargetKind
}

// Lookup is the read surface the Resolver needs from the Store. It is
// satisfied by internal/store, kept narrow so the resolver can be tested
// against a fake.
type Lookup interface {
	ScriptByAbsPath(absPath string) (id int64, ok bool)
	ControlFileByAbsPath(absPath string) (id int64, ok bool)
	ScriptsByBasename(basename string) ([]int64, error)
	ControlFilesByBasename(basename string) ([]int64, error)
}

// Result is the outcome of resolving one raw reference's basename/path.
type Result struct {
	Status     model.Status
	TargetID   int64
	Candidates []int64
}

// Resolver resolves basenames against a Lookup, fronted by a bounded LRU
// cache since a scan of thousands of files re-resolves the same handful of
// hot basenames (config.ksh, common.ksh, ...) over and over. internal/scan
// builds a fresh Resolver for each scan; Reset clears the cache of one that
// is reused.
type Resolver struct {
	store Lookup
	cache *lru.Cache[cacheKey, []int64]
}

type cacheKey struct {
	basename string
	kind     model.TargetKind
}

// New creates a Resolver backed by store, with a cache sized for a large
// corpus's distinct basenames.
func New(store Lookup) *Resolver {
	cache, _ := lru.New[cacheKey, []int64](4096)
	return &Resolver{store: store, cache: cache}
}

// Reset clears the basename cache; call once per scan so stale candidate
// lists from a prior scan never leak into the new one.
func (r *Resolver) Reset() {
	r.cache.Purge()
}

// Resolve runs the three-step resolution algorithm for a script or
// control-file reference: absolute path, then path lexically normalized
// against referringDir, then basename fallback.
func (r *Resolver) Resolve(kind model.TargetKind, writtenPath, basename, referringDir string) (Result, error) {
	if writtenPath != "" {
		if filepath.IsAbs(writtenPath) {
			if id, ok := r.byAbsPath(kind, writtenPath); ok {
				return Result{Status: model.StatusResolved, TargetID: id}, nil
			}
			// Absolute and outside the corpus: recorded unresolved, not
			// guessed at via basename.
			return Result{Status: model.StatusUnresolved}, nil
		}
		normalized := filepath.Clean(filepath.Join(referringDir, writtenPath))
		if id, ok := r.byAbsPath(kind, normalized); ok {
			return Result{Status: model.StatusResolved, TargetID: id}, nil
		}
	}

	ids, err := r.byBasename(kind, basename)
	if err != nil {
		return Result{}, err
	}
	switch len(ids) {
	case 0:
		return Result{Status: model.StatusUnresolved}, nil
	case 1:
		return Result{Status: model.StatusResolved, TargetID: ids[0]}, nil
	default:
		return Result{Status: model.StatusAmbiguous, Candidates: ids}, nil
	}
}

func (r *Resolver) byAbsPath(kind model.TargetKind, absPath string) (int64, bool) {
	switch kind {
	case model.TargetControlFile:
		return r.store.ControlFileByAbsPath(absPath)
	default:
		return r.store.ScriptByAbsPath(absPath)
	}
}

func (r *Resolver) byBasename(kind model.TargetKind, basename string) ([]int64, error) {
	key := cacheKey{basename: basename, kind: kind}
	if ids, ok := r.cache.Get(key); ok {
		return ids, nil
	}
	var ids []int64
	var err error
	switch kind {
	case model.TargetControlFile:
		ids, err = r.store.ControlFilesByBasename(basename)
	default:
		ids, err = r.store.ScriptsByBasename(basename)
	}
	if err != nil {
		return nil, err
	}
	r.cache.Add(key, ids)
	return ids, nil
}
