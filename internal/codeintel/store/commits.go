package store

import (
	"context"

	"github.com/keegancsmith/sqlf"
	"github.com/lib/pq"
)

// UpdateCommits bulk-upserts the parent-commit edges learned from gitserver
// for repository. commits maps a commit to its (possibly empty) list of
// parent commits.
func (s *store) UpdateCommits(ctx context.Context, repository string, commits map[string][]string) error {
	var repositories, children, parents []string
	for commit, parentCommits := range commits {
		if len(parentCommits) == 0 {
			// Root commits still need a row so traversal can terminate on
			// them; record a self-edge-free marker via an empty parent.
			repositories = append(repositories, repository)
			children = append(children, commit)
			parents = append(parents, "")
			continue
		}
		for _, parent := range parentCommits {
			repositories = append(repositories, repository)
			children = append(children, commit)
			parents = append(parents, parent)
		}
	}

	if len(children) == 0 {
		return nil
	}

	return s.exec(ctx, sqlf.Sprintf(
		`INSERT INTO lsif_commits (repository, commit, parent_commit)
		 SELECT * FROM unnest(%s::text[], %s::text[], %s::text[])
		 ON CONFLICT DO NOTHING`,
		pq.Array(repositories), pq.Array(children), pq.Array(parents),
	))
}

// FindClosestDump returns the dump for repository whose root encloses path
// and whose commit is nearest to commit in the commit graph, preferring an
// ancestor of commit over a descendant at equal distance. The search does
// not walk past MaxTraversalLimit commits in either direction.
func (s *store) FindClosestDump(ctx context.Context, repository, commit, path string) (Dump, bool, error) {
	rows, err := s.query(ctx, sqlf.Sprintf(`
		WITH RECURSIVE ancestors(commit, depth) AS (
			SELECT %s::text, 0
			UNION ALL
			SELECT lc.parent_commit, a.depth + 1
			FROM ancestors a
			JOIN lsif_commits lc ON lc.repository = %s AND lc.commit = a.commit
			WHERE a.depth < %s AND lc.parent_commit != ''
		),
		descendants(commit, depth) AS (
			SELECT %s::text, 0
			UNION ALL
			SELECT lc.commit, d.depth + 1
			FROM descendants d
			JOIN lsif_commits lc ON lc.repository = %s AND lc.parent_commit = d.commit
			WHERE d.depth < %s
		),
		reachable(commit, depth, direction) AS (
			SELECT commit, depth, 0 FROM ancestors
			UNION ALL
			SELECT commit, depth, 1 FROM descendants WHERE depth > 0
		)
		SELECT `+dumpColumnsAliased+`
		FROM lsif_dumps d
		JOIN reachable r ON r.commit = d.commit
		WHERE d.repository = %s AND %s LIKE (d.root || '%%')
		ORDER BY r.depth ASC, r.direction ASC
		LIMIT 1`,
		commit, repository, MaxTraversalLimit,
		commit, repository, MaxTraversalLimit,
		repository, path,
	))

	return scanFirstDump(rows, err)
}

// UpdateTips recomputes visible_at_tip for every dump of repository: a dump
// is visible if its commit is an ancestor of tipCommit within
// MaxTraversalLimit commits.
func (s *store) UpdateTips(ctx context.Context, repository, tipCommit string) error {
	if err := s.exec(ctx, sqlf.Sprintf(
		`UPDATE lsif_dumps SET visible_at_tip = FALSE WHERE repository = %s`,
		repository,
	)); err != nil {
		return err
	}

	return s.exec(ctx, sqlf.Sprintf(`
		WITH RECURSIVE ancestors(commit, depth) AS (
			SELECT %s::text, 0
			UNION ALL
			SELECT lc.parent_commit, a.depth + 1
			FROM ancestors a
			JOIN lsif_commits lc ON lc.repository = %s AND lc.commit = a.commit
			WHERE a.depth < %s AND lc.parent_commit != ''
		)
		UPDATE lsif_dumps
		SET visible_at_tip = TRUE
		WHERE repository = %s AND commit IN (SELECT commit FROM ancestors)`,
		tipCommit, repository, MaxTraversalLimit,
		repository,
	))
}
