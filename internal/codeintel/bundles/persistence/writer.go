package persistence

import (
	"context"
	"database/sql"

	"github.com/hashicorp/go-multierror"
	"github.com/jmoiron/sqlx"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sourcegraph/precise-code-intel/internal/codeintel/bundles/persistence/sqliteutil"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/bundles/serializer"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/bundles/types"
)

// Writer builds a single Dump Store file. Writes happen once, inside a single
// transaction; Flush commits and builds indexes, after which the store is
// read-only.
type Writer interface {
	WriteMeta(ctx context.Context, lsifVersion string, numResultChunks int) error
	WriteDocuments(ctx context.Context, documents map[string]types.DocumentData) error
	WriteResultChunks(ctx context.Context, resultChunks map[int]types.ResultChunkData) error
	WriteDefinitions(ctx context.Context, definitions []types.MonikerLocations) error
	WriteReferences(ctx context.Context, references []types.MonikerLocations) error
	Flush(ctx context.Context) error
	Close() error
}

type sqliteWriter struct {
	serializer          serializer.Serializer
	db                  *sqlx.DB
	tx                  *sql.Tx
	metaInserter        *sqliteutil.BatchInserter
	documentInserter    *sqliteutil.BatchInserter
	resultChunkInserter *sqliteutil.BatchInserter
	definitionInserter  *sqliteutil.BatchInserter
	referenceInserter   *sqliteutil.BatchInserter
}

var _ Writer = &sqliteWriter{}

// NewWriter opens filename as a fresh Dump Store and begins the single
// transaction every subsequent write is batched into.
func NewWriter(ctx context.Context, filename string) (_ Writer, err error) {
	db, err := sqlx.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if closeErr := db.Close(); closeErr != nil {
				err = multierror.Append(err, closeErr)
			}
		}
	}()

	if _, err := db.ExecContext(ctx, tableDefinitions); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	metaColumns := []string{"lsifVersion", "sourcegraphVersion", "numResultChunks", "encodingVersion"}
	documentColumns := []string{"path", "data"}
	resultChunkColumns := []string{"id", "data"}
	monikerLocationColumns := []string{"scheme", "identifier", "data"}

	return &sqliteWriter{
		serializer:          serializer.New(),
		db:                  db,
		tx:                  tx,
		metaInserter:        sqliteutil.NewBatchInserter(tx, "meta", metaColumns...),
		documentInserter:    sqliteutil.NewBatchInserter(tx, "documents", documentColumns...),
		resultChunkInserter: sqliteutil.NewBatchInserter(tx, "resultChunks", resultChunkColumns...),
		definitionInserter:  sqliteutil.NewBatchInserter(tx, "definitions", monikerLocationColumns...),
		referenceInserter:   sqliteutil.NewBatchInserter(tx, `"references"`, monikerLocationColumns...),
	}, nil
}

func (w *sqliteWriter) WriteMeta(ctx context.Context, lsifVersion string, numResultChunks int) error {
	return w.metaInserter.Insert(ctx, lsifVersion, InternalVersion, numResultChunks, serializer.EncodingVersion)
}

func (w *sqliteWriter) WriteDocuments(ctx context.Context, documents map[string]types.DocumentData) error {
	for path, document := range documents {
		data, err := w.serializer.MarshalDocumentData(document)
		if err != nil {
			return err
		}
		if err := w.documentInserter.Insert(ctx, path, data); err != nil {
			return err
		}
	}
	return nil
}

func (w *sqliteWriter) WriteResultChunks(ctx context.Context, resultChunks map[int]types.ResultChunkData) error {
	for id, resultChunk := range resultChunks {
		data, err := w.serializer.MarshalResultChunkData(resultChunk)
		if err != nil {
			return err
		}
		if err := w.resultChunkInserter.Insert(ctx, id, data); err != nil {
			return err
		}
	}
	return nil
}

func (w *sqliteWriter) WriteDefinitions(ctx context.Context, definitions []types.MonikerLocations) error {
	return w.writeMonikerLocations(ctx, w.definitionInserter, definitions)
}

func (w *sqliteWriter) WriteReferences(ctx context.Context, references []types.MonikerLocations) error {
	return w.writeMonikerLocations(ctx, w.referenceInserter, references)
}

func (w *sqliteWriter) writeMonikerLocations(ctx context.Context, inserter *sqliteutil.BatchInserter, rows []types.MonikerLocations) error {
	for _, row := range rows {
		data, err := w.serializer.MarshalLocations(row.Locations)
		if err != nil {
			return err
		}
		if err := inserter.Insert(ctx, row.Scheme, row.Identifier, data); err != nil {
			return err
		}
	}
	return nil
}

// InternalVersion is recorded in every Dump Store's meta row, distinct from
// the lsifVersion of the indexer that produced the dump.
const InternalVersion = "0.1.0"

func (w *sqliteWriter) Flush(ctx context.Context) error {
	inserters := []*sqliteutil.BatchInserter{
		w.metaInserter,
		w.documentInserter,
		w.resultChunkInserter,
		w.definitionInserter,
		w.referenceInserter,
	}

	for _, inserter := range inserters {
		if err := inserter.Flush(ctx); err != nil {
			return err
		}
	}

	if err := w.tx.Commit(); err != nil {
		return err
	}

	if _, err := w.db.ExecContext(ctx, indexDefinitions); err != nil {
		return err
	}

	return nil
}

func (w *sqliteWriter) Close() (err error) {
	if closeErr := w.db.Close(); closeErr != nil {
		err = multierror.Append(err, closeErr)
	}
	return err
}

// WriteBundle runs every write stage of bundle against filename and flushes.
// It is the entry point the worker's conversion processor calls once the
// emit pass (correlation.Group) has produced a GroupedBundleData.
func WriteBundle(ctx context.Context, filename string, lsifVersion string, bundle *types.GroupedBundleData) (err error) {
	writer, err := NewWriter(ctx, filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := writer.Close(); closeErr != nil {
			err = multierror.Append(err, closeErr)
		}
	}()

	if err := writer.WriteMeta(ctx, lsifVersion, bundle.Meta.NumResultChunks); err != nil {
		return err
	}
	if err := writer.WriteDocuments(ctx, bundle.Documents); err != nil {
		return err
	}
	if err := writer.WriteResultChunks(ctx, bundle.ResultChunks); err != nil {
		return err
	}
	if err := writer.WriteDefinitions(ctx, bundle.Definitions); err != nil {
		return err
	}
	if err := writer.WriteReferences(ctx, bundle.References); err != nil {
		return err
	}

	return writer.Flush(ctx)
}
