package persistence

import (
	"context"
	"database/sql"

	"github.com/hashicorp/go-multierror"
	"github.com/jmoiron/sqlx"
	"github.com/keegancsmith/sqlf"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cockroachdb/errors"

	"github.com/sourcegraph/precise-code-intel/internal/codeintel/bundles/serializer"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/bundles/types"
)

// ErrNoMetadata is returned by ReadMeta when a Dump Store's meta table is
// empty, which should never happen for a store that completed Flush.
var ErrNoMetadata = errors.New("no rows in meta table")

// Reader answers queries against an already-written Dump Store. A Reader may
// be shared by many concurrent goroutines; all of its methods open read-only
// queries against the underlying file.
type Reader interface {
	ReadMeta(ctx context.Context) (types.MetaData, error)
	ReadDocument(ctx context.Context, path string) (types.DocumentData, bool, error)
	ReadResultChunk(ctx context.Context, id int) (types.ResultChunkData, bool, error)
	ReadDefinitions(ctx context.Context, scheme, identifier string) ([]types.LocationData, error)
	ReadReferences(ctx context.Context, scheme, identifier string) ([]types.LocationData, error)
	Close() error
}

type sqliteReader struct {
	db         *sqlx.DB
	serializer serializer.Serializer
}

var _ Reader = &sqliteReader{}

// OpenReader opens filename for read-only queries. The file must already
// have been produced by a Writer's Flush.
func OpenReader(filename string) (Reader, error) {
	db, err := sqlx.Open("sqlite3", "file:"+filename+"?mode=ro&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	return &sqliteReader{db: db, serializer: serializer.New()}, nil
}

func (r *sqliteReader) ReadMeta(ctx context.Context) (types.MetaData, error) {
	query := sqlf.Sprintf(`SELECT numResultChunks FROM meta LIMIT 1`)

	var numResultChunks int
	err := r.db.QueryRowContext(ctx, query.Query(sqlf.SimpleBindVar), query.Args()...).Scan(&numResultChunks)
	if errors.Is(err, sql.ErrNoRows) {
		return types.MetaData{}, ErrNoMetadata
	}
	if err != nil {
		return types.MetaData{}, err
	}

	return types.MetaData{NumResultChunks: numResultChunks}, nil
}

func (r *sqliteReader) ReadDocument(ctx context.Context, path string) (types.DocumentData, bool, error) {
	query := sqlf.Sprintf(`SELECT data FROM documents WHERE path = %s LIMIT 1`, path)

	data, exists, err := r.scanBytes(ctx, query)
	if err != nil || !exists {
		return types.DocumentData{}, false, err
	}

	document, err := r.serializer.UnmarshalDocumentData(data)
	if err != nil {
		return types.DocumentData{}, false, errors.Wrap(err, "serializer.UnmarshalDocumentData")
	}

	return document, true, nil
}

func (r *sqliteReader) ReadResultChunk(ctx context.Context, id int) (types.ResultChunkData, bool, error) {
	query := sqlf.Sprintf(`SELECT data FROM resultChunks WHERE id = %s LIMIT 1`, id)

	data, exists, err := r.scanBytes(ctx, query)
	if err != nil || !exists {
		return types.ResultChunkData{}, false, err
	}

	resultChunk, err := r.serializer.UnmarshalResultChunkData(data)
	if err != nil {
		return types.ResultChunkData{}, false, errors.Wrap(err, "serializer.UnmarshalResultChunkData")
	}

	return resultChunk, true, nil
}

func (r *sqliteReader) ReadDefinitions(ctx context.Context, scheme, identifier string) ([]types.LocationData, error) {
	return r.readMonikerLocations(ctx, "definitions", scheme, identifier)
}

func (r *sqliteReader) ReadReferences(ctx context.Context, scheme, identifier string) ([]types.LocationData, error) {
	return r.readMonikerLocations(ctx, `"references"`, scheme, identifier)
}

func (r *sqliteReader) readMonikerLocations(ctx context.Context, tableName, scheme, identifier string) ([]types.LocationData, error) {
	query := sqlf.Sprintf(
		`SELECT data FROM `+tableName+` WHERE scheme = %s AND identifier = %s LIMIT 1`,
		scheme,
		identifier,
	)

	data, exists, err := r.scanBytes(ctx, query)
	if err != nil || !exists {
		return nil, err
	}

	locations, err := r.serializer.UnmarshalLocations(data)
	if err != nil {
		return nil, errors.Wrap(err, "serializer.UnmarshalLocations")
	}

	return locations, nil
}

func (r *sqliteReader) scanBytes(ctx context.Context, query *sqlf.Query) ([]byte, bool, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, query.Query(sqlf.SimpleBindVar), query.Args()...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (r *sqliteReader) Close() (err error) {
	if closeErr := r.db.Close(); closeErr != nil {
		err = multierror.Append(err, closeErr)
	}
	return err
}
