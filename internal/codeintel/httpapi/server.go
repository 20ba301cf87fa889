// Package httpapi is the HTTP surface of the api-server process: upload
// spooling plus the Definitions/References/Hover/Exists query endpoints,
// backed by the Backend Facade.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sourcegraph/log"

	"github.com/sourcegraph/precise-code-intel/internal/codeintel/backend"
)

// UploadHandler spools an LSIF upload to disk and enqueues a convert job for
// it. It is implemented by the api-server's upload package, kept separate
// from this router so the router has no dependency on the queue or
// filesystem layout.
type UploadHandler interface {
	HandleUpload(w http.ResponseWriter, r *http.Request)
}

// NewRouter builds the api-server's HTTP surface.
func NewRouter(b *backend.Backend, uploads UploadHandler, logger log.Logger) http.Handler {
	s := &server{backend: b, logger: logger}

	r := mux.NewRouter()
	r.Path("/healthz").Methods(http.MethodGet).HandlerFunc(s.handleHealthz)
	r.Path("/upload").Methods(http.MethodPost).HandlerFunc(uploads.HandleUpload)
	r.Path("/repos/{repository}/commits/{commit}/exists").Methods(http.MethodGet).HandlerFunc(s.handleExists)
	r.Path("/repos/{repository}/commits/{commit}/definitions").Methods(http.MethodGet).HandlerFunc(s.handleDefinitions)
	r.Path("/repos/{repository}/commits/{commit}/references").Methods(http.MethodGet).HandlerFunc(s.handleReferences)
	r.Path("/repos/{repository}/commits/{commit}/hover").Methods(http.MethodGet).HandlerFunc(s.handleHover)

	return r
}

type server struct {
	backend *backend.Backend
	logger  log.Logger
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *server) handleExists(w http.ResponseWriter, r *http.Request) {
	repository, commit := mux.Vars(r)["repository"], mux.Vars(r)["commit"]
	path := r.URL.Query().Get("path")

	ok, err := s.backend.Exists(r.Context(), repository, commit, path)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, map[string]bool{"exists": ok})
}

func (s *server) handleDefinitions(w http.ResponseWriter, r *http.Request) {
	repository, commit := mux.Vars(r)["repository"], mux.Vars(r)["commit"]
	path, line, character, err := parsePosition(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	locations, err := s.backend.Definitions(r.Context(), repository, commit, path, line, character)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, locations)
}

func (s *server) handleReferences(w http.ResponseWriter, r *http.Request) {
	repository, commit := mux.Vars(r)["repository"], mux.Vars(r)["commit"]
	path, line, character, err := parsePosition(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	locations, err := s.backend.References(r.Context(), repository, commit, path, line, character)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, locations)
}

func (s *server) handleHover(w http.ResponseWriter, r *http.Request) {
	repository, commit := mux.Vars(r)["repository"], mux.Vars(r)["commit"]
	path, line, character, err := parsePosition(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	text, rng, ok, err := s.backend.Hover(r.Context(), repository, commit, path, line, character)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	s.writeJSON(w, map[string]interface{}{"text": text, "range": rng})
}

func parsePosition(r *http.Request) (path string, line, character int, err error) {
	q := r.URL.Query()
	path = q.Get("path")

	line, err = strconv.Atoi(q.Get("line"))
	if err != nil {
		return "", 0, 0, err
	}
	character, err = strconv.Atoi(q.Get("character"))
	if err != nil {
		return "", 0, 0, err
	}

	return path, line, character, nil
}

func (s *server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", log.Error(err))
	}
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", log.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
