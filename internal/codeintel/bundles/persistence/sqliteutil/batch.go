// Package sqliteutil holds small helpers used by the Dump Store writer that
// are specific to embedding SQLite rather than general-purpose database
// utilities.
package sqliteutil

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// maxSQLiteVariables is SQLite's default compiled-in limit on the number of
// host parameters in a single statement (SQLITE_MAX_VARIABLE_NUMBER).
const maxSQLiteVariables = 999

// Execable is satisfied by *sql.Tx and *sql.DB; the batch inserter only ever
// needs to run parameterized INSERT statements.
type Execable interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// BatchInserter accumulates rows and flushes them as multi-row INSERT
// statements, amortizing per-statement overhead across many rows. Insert and
// Flush are not safe for concurrent use on the same BatchInserter.
type BatchInserter struct {
	execable     Execable
	tableName    string
	columns      []string
	maxBatchRows int
	pending      []interface{}
}

// NewBatchInserter creates a batch inserter that writes into tableName's
// columns, in order, from values passed to Insert.
func NewBatchInserter(execable Execable, tableName string, columns ...string) *BatchInserter {
	maxBatchRows := maxSQLiteVariables / len(columns)

	return &BatchInserter{
		execable:     execable,
		tableName:    tableName,
		columns:      columns,
		maxBatchRows: maxBatchRows,
	}
}

// Insert queues a row for insertion, flushing the pending batch first if it
// has grown large enough.
func (i *BatchInserter) Insert(ctx context.Context, values ...interface{}) error {
	if len(values) != len(i.columns) {
		return errors.Newf("expected %d values, got %d", len(i.columns), len(values))
	}

	i.pending = append(i.pending, values...)

	if len(i.pending)/len(i.columns) >= i.maxBatchRows {
		return i.Flush(ctx)
	}

	return nil
}

// Flush writes any queued rows to the table in a single statement.
func (i *BatchInserter) Flush(ctx context.Context) error {
	if len(i.pending) == 0 {
		return nil
	}

	numRows := len(i.pending) / len(i.columns)
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s",
		i.tableName,
		strings.Join(i.columns, ", "),
		strings.TrimSuffix(strings.Repeat(valuesPlaceholder(len(i.columns))+", ", numRows), ", "),
	)

	if _, err := i.execable.ExecContext(ctx, query, i.pending...); err != nil {
		return errors.Wrap(err, "batch insert")
	}

	i.pending = i.pending[:0]
	return nil
}

func valuesPlaceholder(numColumns int) string {
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", numColumns), ", ") + ")"
}
