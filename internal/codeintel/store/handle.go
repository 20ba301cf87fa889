package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/cockroachdb/errors"
)

// sqlHandle is the subset of *sql.DB / *sql.Tx the store needs to run
// queries.
type sqlHandle interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// dbHandle provides nested transactions through savepoints, mirroring the
// root-handle/tx-handle/savepoint-handle split the rest of the codebase uses
// for its Postgres stores.
type dbHandle interface {
	handle() sqlHandle
	transact(ctx context.Context) (dbHandle, error)
	done(err error) error
}

var errNotInTransaction = errors.New("store: not in a transaction")

type rootHandle struct {
	db *sql.DB
}

func (h *rootHandle) handle() sqlHandle { return h.db }

func (h *rootHandle) transact(ctx context.Context) (dbHandle, error) {
	tx, err := h.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, errors.Wrap(err, "BeginTx")
	}
	return &txHandle{tx: tx}, nil
}

func (h *rootHandle) done(err error) error {
	if err == nil {
		return errNotInTransaction
	}
	return err
}

type txHandle struct {
	tx *sql.Tx
}

func (h *txHandle) handle() sqlHandle { return h.tx }

func (h *txHandle) transact(ctx context.Context) (dbHandle, error) {
	savepointID, err := newSavepoint(ctx, h.tx)
	if err != nil {
		return nil, err
	}
	return &savepointHandle{tx: h.tx, savepointID: savepointID}, nil
}

func (h *txHandle) done(err error) error {
	if err == nil {
		return h.tx.Commit()
	}
	if rollbackErr := h.tx.Rollback(); rollbackErr != nil {
		return multierror.Append(err, rollbackErr)
	}
	return err
}

type savepointHandle struct {
	tx          *sql.Tx
	savepointID string
}

func (h *savepointHandle) handle() sqlHandle { return h.tx }

func (h *savepointHandle) transact(ctx context.Context) (dbHandle, error) {
	savepointID, err := newSavepoint(ctx, h.tx)
	if err != nil {
		return nil, err
	}
	return &savepointHandle{tx: h.tx, savepointID: savepointID}, nil
}

func (h *savepointHandle) done(err error) error {
	if err == nil {
		_, execErr := h.tx.Exec(fmt.Sprintf("RELEASE SAVEPOINT %s", h.savepointID))
		return execErr
	}
	_, execErr := h.tx.Exec(fmt.Sprintf("ROLLBACK TO SAVEPOINT %s", h.savepointID))
	if execErr != nil {
		return multierror.Append(err, execErr)
	}
	return err
}

func newSavepoint(ctx context.Context, tx *sql.Tx) (string, error) {
	savepointID := "s" + uuid.New().String()[:8]
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SAVEPOINT %s", savepointID)); err != nil {
		return "", errors.Wrap(err, "SAVEPOINT")
	}
	return savepointID, nil
}
