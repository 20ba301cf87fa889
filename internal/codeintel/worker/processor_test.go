package worker

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sourcegraph/log/logtest"

	"github.com/sourcegraph/precise-code-intel/internal/codeintel/bundles/types"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/gitserver"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/queue"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/store"
)

// fakeStore is a minimal in-memory store.Store recording the calls a test
// cares about, standing in for Postgres.
type fakeStore struct {
	store.Store

	addedRepository, addedCommit, addedRoot string
	addedPackages                           []types.Package

	updatedCommitsRepository string
	updatedCommitsGraph      map[string][]string
	updatedTipsRepository    string
	updatedTipsCommit        string
}

func (f *fakeStore) Transact(ctx context.Context) (store.Store, error) { return f, nil }
func (f *fakeStore) Done(err error) error                              { return err }

func (f *fakeStore) AddPackagesAndReferences(ctx context.Context, repository, commit, root string, packages []types.Package, packageReferences []types.PackageReference) (int, error) {
	f.addedRepository, f.addedCommit, f.addedRoot = repository, commit, root
	f.addedPackages = packages
	return 1, nil
}

func (f *fakeStore) UpdateCommits(ctx context.Context, repository string, commits map[string][]string) error {
	f.updatedCommitsRepository = repository
	f.updatedCommitsGraph = commits
	return nil
}

func (f *fakeStore) UpdateTips(ctx context.Context, repository, tipCommit string) error {
	f.updatedTipsRepository = repository
	f.updatedTipsCommit = tipCommit
	return nil
}

// initRepo creates a throwaway git repository with one commit and returns
// its path.
func initRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(cmd.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		if err := cmd.Run(); err != nil {
			t.Fatalf("git %v: %s", args, err)
		}
	}

	run("init", "-q", "-b", "main")
	run("commit", "-q", "--allow-empty", "-m", "initial commit")

	return dir
}

func gzipUpload(t *testing.T, dir string, lines ...string) string {
	t.Helper()

	filename := filepath.Join(dir, "upload.lsif.gz")
	f, err := os.Create(filename)
	if err != nil {
		t.Fatalf("unexpected error creating upload file: %s", err)
	}
	defer f.Close()

	w := gzip.NewWriter(f)
	if _, err := w.Write([]byte(strings.Join(lines, "\n") + "\n")); err != nil {
		t.Fatalf("unexpected error writing gzip stream: %s", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("unexpected error closing gzip writer: %s", err)
	}

	return filename
}

func TestProcessConvert(t *testing.T) {
	repoDir := initRepo(t)
	uploadDir := t.TempDir()
	dbDir := t.TempDir()

	uploadFilename := gzipUpload(t, uploadDir,
		`{"id":"1","type":"vertex","label":"metaData","version":"0.4.3","projectRoot":"file:///proj"}`,
		`{"id":"2","type":"vertex","label":"document","uri":"main.go"}`,
		`{"id":"3","type":"vertex","label":"range","start":{"line":0,"character":0},"end":{"line":0,"character":1}}`,
		`{"id":"4","type":"edge","label":"contains","outV":"2","inVs":["3"]}`,
	)

	fs := &fakeStore{}
	client := gitserver.New(func(repository string) (string, error) { return repoDir, nil })
	storageDir := func(dumpID int) string { return filepath.Join(dbDir, "1.lsif.db") }

	p := NewProcessor(fs, client, storageDir, logtest.Scoped(t))

	payload, err := json.Marshal(queue.ConvertPayload{Repository: "repoA", Commit: "c1", Root: "", Filename: uploadFilename})
	if err != nil {
		t.Fatalf("unexpected error marshaling payload: %s", err)
	}

	err = p.Process(context.Background(), queue.Job{Kind: queue.KindConvert, Payload: payload})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if fs.addedRepository != "repoA" || fs.addedCommit != "c1" {
		t.Errorf("unexpected AddPackagesAndReferences call: repository=%q commit=%q", fs.addedRepository, fs.addedCommit)
	}
	if fs.updatedCommitsRepository != "repoA" {
		t.Errorf("expected UpdateCommits to be called for repoA, got %q", fs.updatedCommitsRepository)
	}
	if fs.updatedTipsRepository != "repoA" {
		t.Errorf("expected UpdateTips to be called for repoA, got %q", fs.updatedTipsRepository)
	}

	if _, err := os.Stat(uploadFilename); !os.IsNotExist(err) {
		t.Errorf("expected the spooled upload file to be removed, stat err=%v", err)
	}
	if _, err := os.Stat(storageDir(1)); err != nil {
		t.Errorf("expected a Dump Store file to be written: %s", err)
	}
}

func TestProcessUpdateTips(t *testing.T) {
	repoDir := initRepo(t)

	fs := &fakeStore{}
	client := gitserver.New(func(repository string) (string, error) { return repoDir, nil })
	p := NewProcessor(fs, client, func(int) string { return "" }, logtest.Scoped(t))

	payload, err := json.Marshal(queue.UpdateTipsPayload{Repository: "repoA"})
	if err != nil {
		t.Fatalf("unexpected error marshaling payload: %s", err)
	}

	if err := p.Process(context.Background(), queue.Job{Kind: queue.KindUpdateTips, Payload: payload}); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if fs.updatedCommitsRepository != "repoA" {
		t.Errorf("expected UpdateCommits to be called for repoA, got %q", fs.updatedCommitsRepository)
	}
	if fs.updatedTipsRepository != "repoA" || fs.updatedTipsCommit == "" {
		t.Errorf("expected UpdateTips to be called with a non-empty tip commit, got repository=%q commit=%q", fs.updatedTipsRepository, fs.updatedTipsCommit)
	}
}

func TestProcessRejectsUnrecognizedJobKind(t *testing.T) {
	p := NewProcessor(&fakeStore{}, gitserver.New(func(string) (string, error) { return "", nil }), func(int) string { return "" }, logtest.Scoped(t))

	if err := p.Process(context.Background(), queue.Job{Kind: "bogus"}); err == nil {
		t.Fatal("expected an error for an unrecognized job kind")
	}
}
