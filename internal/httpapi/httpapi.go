// Package httpapi is an optional read-only HTTP front end over the query
// package, for an external viewer, built on the chi router and its
// standard middleware stack.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shelldep/shelldep/internal/model"
	"github.com/shelldep/shelldep/internal/query"
	"github.com/shelldep/shelldep/internal/store"
)

// NewRouter builds the chi router serving /api/* over st.
func NewRouter(st *store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/summary", handleSummary(st))
		r.Get("/forward", handleForward(st))
		r.Get("/backward", handleBackward(st))
		r.Get("/search", handleSearch(st))
	})

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func handleSummary(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := query.ComputeSummary(st)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, sum)
	}
}

func handleForward(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		sc, ok, err := st.GetScriptByPath(path)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "script not found", http.StatusNotFound)
			return
		}
		refs, err := query.ForwardDependencies(st, sc.ID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, refs)
	}
}

func handleBackward(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		kind := model.TargetKind(r.URL.Query().Get("kind"))
		if kind == "" {
			kind = model.TargetScript
		}

		var targetID int64
		switch kind {
		case model.TargetControlFile:
			id, ok := st.ControlFileByAbsPath(path)
			if !ok {
				http.Error(w, "control file not found", http.StatusNotFound)
				return
			}
			targetID = id
		default:
			sc, ok, err := st.GetScriptByPath(path)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if !ok {
				http.Error(w, "script not found", http.StatusNotFound)
				return
			}
			targetID = sc.ID
		}

		refs, err := query.BackwardDependencies(st, targetID, kind)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, refs)
	}
}

func handleSearch(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		needle := r.URL.Query().Get("q")
		calls, err := query.SearchProcedures(st, needle)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, calls)
	}
}
