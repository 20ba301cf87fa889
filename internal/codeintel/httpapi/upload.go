package httpapi

import (
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sourcegraph/log"

	"github.com/sourcegraph/precise-code-intel/internal/codeintel/paths"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/queue"
)

// Uploads spools incoming LSIF payloads to storageDir and enqueues a convert
// job for each one.
type Uploads struct {
	Queue      *queue.Queue
	StorageDir string
	Logger     log.Logger
}

var _ UploadHandler = &Uploads{}

// HandleUpload implements UploadHandler. It expects repository, commit, and
// root as query parameters and the gzipped LSIF dump as the request body.
func (u *Uploads) HandleUpload(w http.ResponseWriter, r *http.Request) {
	repository := r.URL.Query().Get("repository")
	commit := r.URL.Query().Get("commit")
	root := r.URL.Query().Get("root")

	if repository == "" || commit == "" {
		http.Error(w, "repository and commit are required", http.StatusBadRequest)
		return
	}
	if _, err := hex.DecodeString(commit); len(commit) != 40 || err != nil {
		http.Error(w, "commit must be a 40-character hex sha", http.StatusBadRequest)
		return
	}

	jobID := uuid.New().String()
	filename := paths.UploadFilename(u.StorageDir, jobID)

	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		u.Logger.Error("failed to prepare upload directory", log.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := spool(filename, r.Body); err != nil {
		u.Logger.Error("failed to spool upload", log.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	payload := queue.ConvertPayload{Repository: repository, Commit: commit, Root: root, Filename: filename}
	if _, err := u.Queue.Enqueue(r.Context(), queue.KindConvert, payload); err != nil {
		u.Logger.Error("failed to enqueue convert job", log.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func spool(filename string, body io.Reader) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(f, body)
	return err
}
