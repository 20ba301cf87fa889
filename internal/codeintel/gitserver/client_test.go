package gitserver

import (
	"context"
	"errors"
	"os/exec"
	"reflect"
	"testing"
)

// initRepo creates a throwaway git repository with one commit and returns
// its path, so Head/CommitGraph can be exercised against a real `git` binary
// rather than a mock.
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

func TestClientHeadAndCommitGraph(t *testing.T) {
	dir := initRepo(t)
	client := New(func(repository string) (string, error) { return dir, nil })

	head, err := client.Head(context.Background(), "repo")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(head) != 40 {
		t.Errorf("expected a 40-character commit sha, got %q", head)
	}

	graph, err := client.CommitGraph(context.Background(), "repo")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if parents, ok := graph[head]; !ok || len(parents) != 0 {
		t.Errorf("expected the single commit to have no parents, got %v (ok=%v)", parents, ok)
	}
}

func TestClientRepoDirError(t *testing.T) {
	client := New(func(repository string) (string, error) {
		return "", errors.New("no such repository")
	})

	if _, err := client.Head(context.Background(), "repo"); err == nil {
		t.Fatal("expected an error when RepoDir fails")
	}
}

func TestParseCommitGraph(t *testing.T) {
	lines := []string{
		"c3 c2",
		"c2 c1",
		"c1",
		"",
	}

	graph := ParseCommitGraph(lines)

	expected := map[string][]string{
		"c3": {"c2"},
		"c2": {"c1"},
		"c1": {},
	}

	if !reflect.DeepEqual(graph, expected) {
		t.Errorf("unexpected graph: want=%v have=%v", expected, graph)
	}
}

func TestParseCommitGraphMergeCommit(t *testing.T) {
	graph := ParseCommitGraph([]string{"m p1 p2"})

	if want := []string{"p1", "p2"}; !reflect.DeepEqual(graph["m"], want) {
		t.Errorf("unexpected parents for merge commit: want=%v have=%v", want, graph["m"])
	}
}
