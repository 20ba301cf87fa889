package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/sourcegraph/log/logtest"

	"github.com/sourcegraph/precise-code-intel/internal/codeintel/backend"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/bundles/persistence"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/bundles/types"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/cache"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/store"
)

// fakeStore resolves every (repository, commit) pair to a single fixed dump,
// just enough of store.Store for the router's query endpoints to exercise
// the Backend Facade without a live Postgres connection.
type fakeStore struct {
	store.Store
	dump store.Dump
}

func (f *fakeStore) FindClosestDump(ctx context.Context, repository, commit, path string) (store.Dump, bool, error) {
	if repository != f.dump.Repository || commit != f.dump.Commit {
		return store.Dump{}, false, nil
	}
	return f.dump, true, nil
}

type fakeUploadHandler struct{ called bool }

func (f *fakeUploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	f.called = true
	w.WriteHeader(http.StatusAccepted)
}

func newTestRouter(t *testing.T) (http.Handler, *fakeUploadHandler) {
	t.Helper()

	bundle := &types.GroupedBundleData{
		Meta: types.MetaData{NumResultChunks: 1},
		Documents: map[string]types.DocumentData{
			"a.go": {
				Ranges: map[types.ID]types.RangeData{
					1: {
						StartLine: 0, StartCharacter: 0,
						EndLine: 0, EndCharacter: 3,
						DefinitionResultID: types.NoID,
						ReferenceResultID:  types.NoID,
						HoverResultID:      types.NoID,
					},
				},
			},
		},
		ResultChunks: map[int]types.ResultChunkData{0: {}},
	}

	filename := filepath.Join(t.TempDir(), "test.lsif.db")
	if err := persistence.WriteBundle(context.Background(), filename, "0.4.3", bundle); err != nil {
		t.Fatalf("unexpected error writing bundle: %s", err)
	}

	fs := &fakeStore{dump: store.Dump{ID: 1, Repository: "repoA", Commit: "c1", Root: ""}}
	tier := cache.NewTier(cache.DefaultConfig)
	b := backend.New(fs, tier, func(int) string { return filename })

	uploads := &fakeUploadHandler{}
	router := NewRouter(b, uploads, logtest.Scoped(t))

	return router, uploads
}

func TestHandleHealthz(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("unexpected status: %d", rr.Code)
	}
}

func TestHandleExists(t *testing.T) {
	router, _ := newTestRouter(t)

	u := "/repos/repoA/commits/c1/exists?" + url.Values{"path": {"a.go"}}.Encode()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, u, nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d, body=%s", rr.Code, rr.Body.String())
	}
	if want := `{"exists":true}` + "\n"; rr.Body.String() != want {
		t.Errorf("unexpected body: want=%q have=%q", want, rr.Body.String())
	}
}

func TestHandleExistsUnknownRepository(t *testing.T) {
	router, _ := newTestRouter(t)

	u := "/repos/other/commits/c1/exists?" + url.Values{"path": {"a.go"}}.Encode()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, u, nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d, body=%s", rr.Code, rr.Body.String())
	}
	if want := `{"exists":false}` + "\n"; rr.Body.String() != want {
		t.Errorf("unexpected body: want=%q have=%q", want, rr.Body.String())
	}
}

func TestHandleDefinitionsRejectsBadPosition(t *testing.T) {
	router, _ := newTestRouter(t)

	u := "/repos/repoA/commits/c1/definitions?" + url.Values{"path": {"a.go"}, "line": {"not-a-number"}, "character": {"0"}}.Encode()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, u, nil))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a non-numeric line, got %d", rr.Code)
	}
}

func TestHandleUploadDelegatesToUploadHandler(t *testing.T) {
	router, uploads := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/upload?repository=repoA&commit=c1", nil))

	if !uploads.called {
		t.Error("expected the router to delegate /upload to the UploadHandler")
	}
	if rr.Code != http.StatusAccepted {
		t.Errorf("unexpected status: %d", rr.Code)
	}
}
