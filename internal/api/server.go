// Package api serves recorded episodes: their events as JSON, a timeline
// chart per episode and the OWL experiment documents written next to them.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/semlog/internal/db"
	"github.com/banshee-data/semlog/internal/events"
	"github.com/banshee-data/semlog/internal/fsutil"
	"github.com/banshee-data/semlog/internal/httputil"
	"github.com/banshee-data/semlog/internal/monitoring"
	"github.com/banshee-data/semlog/internal/owl"
	"github.com/banshee-data/semlog/internal/security"
	"github.com/banshee-data/semlog/internal/timeline"
	"github.com/banshee-data/semlog/internal/version"
)

const (
	colorReset     = "\033[0m"
	colorCyan      = "\033[36m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

type Server struct {
	db     *db.DB
	fs     fsutil.FileSystem
	owlDir string
}

// NewServer serves episodes from store and OWL documents from owlDir on
// fsys. An empty owlDir disables the document routes.
func NewServer(store *db.DB, fsys fsutil.FileSystem, owlDir string) *Server {
	return &Server{db: store, fs: fsys, owlDir: owlDir}
}

// ServeMux returns the routes of the server.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/version", s.showVersion)
	mux.HandleFunc("GET /api/episodes", s.listEpisodes)
	mux.HandleFunc("GET /api/episodes/{id}", s.showEpisode)
	mux.HandleFunc("GET /api/episodes/{id}/events", s.listEvents)
	mux.HandleFunc("GET /episodes/{id}/timeline", s.showTimeline)
	mux.HandleFunc("GET /api/owl", s.listDocuments)
	mux.HandleFunc("GET /owl/{name}", s.showDocument)
	return mux
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(code int) string {
	switch {
	case code >= 200 && code < 300:
		return colorBoldGreen + strconv.Itoa(code) + colorReset
	case code >= 300 && code < 400:
		return colorYellow + strconv.Itoa(code) + colorReset
	case code >= 400:
		return colorBoldRed + strconv.Itoa(code) + colorReset
	default:
		return strconv.Itoa(code)
	}
}

// LoggingMiddleware logs method, path, status and duration of each request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf("[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6)
	})
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}

func (s *Server) listEpisodes(w http.ResponseWriter, r *http.Request) {
	eps, err := s.db.Episodes(r.Context())
	if err != nil {
		httputil.InternalServerError(w, "failed to list episodes", err)
		return
	}
	if eps == nil {
		eps = []db.Episode{}
	}
	httputil.WriteJSONOK(w, eps)
}

// episode resolves the {id} path value, answering 404 itself when the
// episode does not exist.
func (s *Server) episode(w http.ResponseWriter, r *http.Request) (db.Episode, bool) {
	ep, err := s.db.Episode(r.Context(), r.PathValue("id"))
	if errors.Is(err, db.ErrEpisodeNotFound) {
		httputil.NotFound(w, err.Error())
		return ep, false
	}
	if err != nil {
		httputil.InternalServerError(w, "failed to load episode", err)
		return ep, false
	}
	return ep, true
}

func (s *Server) showEpisode(w http.ResponseWriter, r *http.Request) {
	if ep, ok := s.episode(w, r); ok {
		httputil.WriteJSONOK(w, ep)
	}
}

// episodeEvents loads the events of the {id} episode, keeping only the
// kinds named by repeated ?kind= parameters.
func (s *Server) episodeEvents(w http.ResponseWriter, r *http.Request) ([]events.Event, bool) {
	ep, ok := s.episode(w, r)
	if !ok {
		return nil, false
	}
	evs, err := s.db.EpisodeEvents(r.Context(), ep.EpisodeID)
	if err != nil {
		httputil.InternalServerError(w, "failed to load events", err)
		return nil, false
	}
	kinds := r.URL.Query()["kind"]
	if len(kinds) == 0 {
		return evs, true
	}
	want := make(map[events.Kind]bool, len(kinds))
	for _, k := range kinds {
		if events.OWLClass(events.Kind(k)) == "" {
			httputil.BadRequest(w, "unknown event kind "+strconv.Quote(k))
			return nil, false
		}
		want[events.Kind(k)] = true
	}
	filtered := evs[:0]
	for _, ev := range evs {
		if want[ev.Kind] {
			filtered = append(filtered, ev)
		}
	}
	return filtered, true
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	evs, ok := s.episodeEvents(w, r)
	if !ok {
		return
	}
	if evs == nil {
		evs = []events.Event{}
	}
	httputil.WriteJSONOK(w, evs)
}

func (s *Server) showTimeline(w http.ResponseWriter, r *http.Request) {
	evs, ok := s.episodeEvents(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := timeline.RenderHTML(w, "Episode "+r.PathValue("id"), evs); err != nil {
		monitoring.Errorf("failed to render timeline of %s: %v", r.PathValue("id"), err)
	}
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	if s.owlDir == "" {
		httputil.NotFound(w, "no OWL directory configured")
		return
	}
	names, err := s.fs.List(s.owlDir, owl.FileSuffix)
	if err != nil {
		httputil.InternalServerError(w, "failed to list OWL documents", err)
		return
	}
	if names == nil {
		names = []string{}
	}
	httputil.WriteJSONOK(w, names)
}

func (s *Server) showDocument(w http.ResponseWriter, r *http.Request) {
	if s.owlDir == "" {
		httputil.NotFound(w, "no OWL directory configured")
		return
	}
	path, err := security.ResolveWithin(s.owlDir, r.PathValue("name"))
	if err != nil {
		httputil.BadRequest(w, "invalid document name")
		return
	}
	data, err := s.fs.ReadFile(path)
	if err != nil {
		httputil.NotFound(w, "document not found")
		return
	}
	w.Header().Set("Content-Type", "application/rdf+xml")
	if _, err := w.Write(data); err != nil {
		monitoring.Warnf("failed to write %s: %v", path, err)
	}
}
