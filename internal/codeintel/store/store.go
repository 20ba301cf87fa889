// Package store implements the Cross-Repo Index: a relational index in
// Postgres over (package -> dump) and (dump -> imported package) edges, plus
// the commit graph used to pick the dump nearest a requested commit.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/hashicorp/go-multierror"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/keegancsmith/sqlf"

	"github.com/cockroachdb/errors"

	"github.com/sourcegraph/precise-code-intel/internal/codeintel/bundles/types"
)

// MaxTraversalLimit bounds how many commits FindClosestDump (in each
// direction) and UpdateTips will walk along the commit graph before giving up.
const MaxTraversalLimit = 100

// Store is the interface to Postgres for the Cross-Repo Index.
type Store interface {
	// Transact returns a store whose methods operate within a new
	// transaction (or, if already in one, a new savepoint).
	Transact(ctx context.Context) (Store, error)

	// Done commits the underlying transaction/savepoint on a nil error and
	// rolls it back otherwise. If this store does not wrap a transaction, a
	// non-nil err is returned unchanged and a nil err is replaced by an error
	// reporting that there is no transaction.
	Done(err error) error

	// AddPackagesAndReferences atomically replaces any existing dump for
	// (repository, commit, root), records the packages it defines and the
	// package references it imports, and returns the new dump's id.
	AddPackagesAndReferences(ctx context.Context, repository, commit, root string, packages []types.Package, packageReferences []types.PackageReference) (int, error)

	// GetDump returns a dump by id.
	GetDump(ctx context.Context, id int) (Dump, bool, error)

	// FindClosestDump returns the dump visible at or nearest to commit in
	// repository that encloses path, if any.
	FindClosestDump(ctx context.Context, repository, commit, path string) (Dump, bool, error)

	// FindDefiningDump returns the dump that exports the package with the
	// given scheme, name, and version.
	FindDefiningDump(ctx context.Context, scheme, name, version string) (Dump, bool, error)

	// FindReferencingDumps returns the dumps, other than excludeDumpID, that
	// import the package with the given scheme, name, and version and whose
	// bloom filter for that package may contain identifier.
	FindReferencingDumps(ctx context.Context, scheme, name, version, identifier string, excludeDumpID int) ([]Dump, error)

	// UpdateCommits bulk upserts commit/parent-commit edges for repository.
	UpdateCommits(ctx context.Context, repository string, commits map[string][]string) error

	// UpdateTips recomputes visible_at_tip for every dump of repository
	// reachable from tipCommit.
	UpdateTips(ctx context.Context, repository, tipCommit string) error
}

// Dump is a row of lsif_dumps.
type Dump struct {
	ID           int
	Repository   string
	Commit       string
	Root         string
	VisibleAtTip bool
	UploadedAt   time.Time
}

type store struct {
	db dbHandle
}

var _ Store = &store{}

// New opens a Store connected to the given Postgres DSN via the pgx stdlib
// adapter.
func New(postgresDSN string) (Store, error) {
	db, err := sql.Open("pgx", postgresDSN)
	if err != nil {
		return nil, errors.Wrap(err, "sql.Open")
	}
	return &store{db: &rootHandle{db: db}}, nil
}

// NewWithHandle wraps an already-open *sql.DB, primarily for tests.
func NewWithHandle(db *sql.DB) Store {
	return &store{db: &rootHandle{db: db}}
}

func (s *store) Transact(ctx context.Context) (Store, error) {
	handle, err := s.db.transact(ctx)
	if err != nil {
		return nil, err
	}
	return &store{db: handle}, nil
}

func (s *store) Done(err error) error {
	return s.db.done(err)
}

func (s *store) query(ctx context.Context, query *sqlf.Query) (*sql.Rows, error) {
	return s.db.handle().QueryContext(ctx, query.Query(sqlf.PostgresBindVar), query.Args()...)
}

func (s *store) exec(ctx context.Context, query *sqlf.Query) error {
	_, err := s.db.handle().ExecContext(ctx, query.Query(sqlf.PostgresBindVar), query.Args()...)
	return err
}

func (s *store) queryRow(ctx context.Context, query *sqlf.Query) *sql.Row {
	return s.db.handle().QueryRowContext(ctx, query.Query(sqlf.PostgresBindVar), query.Args()...)
}

func closeRows(rows *sql.Rows, err error) error {
	if closeErr := rows.Close(); closeErr != nil {
		err = multierror.Append(err, closeErr)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		err = multierror.Append(err, rowsErr)
	}
	return err
}
