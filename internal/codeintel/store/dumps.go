package store

import (
	"context"
	"database/sql"

	"github.com/keegancsmith/sqlf"

	"github.com/sourcegraph/precise-code-intel/internal/codeintel/bundles/types"
)

func scanDumps(rows *sql.Rows, queryErr error) (_ []Dump, err error) {
	if queryErr != nil {
		return nil, queryErr
	}
	defer func() { err = closeRows(rows, err) }()

	var dumps []Dump
	for rows.Next() {
		var d Dump
		if err := rows.Scan(&d.ID, &d.Repository, &d.Commit, &d.Root, &d.VisibleAtTip, &d.UploadedAt); err != nil {
			return nil, err
		}
		dumps = append(dumps, d)
	}
	return dumps, nil
}

func scanFirstDump(rows *sql.Rows, err error) (Dump, bool, error) {
	dumps, err := scanDumps(rows, err)
	if err != nil || len(dumps) == 0 {
		return Dump{}, false, err
	}
	return dumps[0], true, nil
}

const dumpColumns = `id, repository, commit, root, visible_at_tip, uploaded_at`
const dumpColumnsAliased = `d.id, d.repository, d.commit, d.root, d.visible_at_tip, d.uploaded_at`

func (s *store) GetDump(ctx context.Context, id int) (Dump, bool, error) {
	rows, err := s.query(ctx, sqlf.Sprintf(`SELECT `+dumpColumns+` FROM lsif_dumps WHERE id = %s`, id))
	return scanFirstDump(rows, err)
}

// AddPackagesAndReferences runs in a transaction: it deletes any dump already
// occupying (repository, commit, root), inserts the new one, and bulk-inserts
// the packages it defines and the package references (with bloom filters)
// it imports.
func (s *store) AddPackagesAndReferences(ctx context.Context, repository, commit, root string, packages []types.Package, packageReferences []types.PackageReference) (_ int, err error) {
	tx, err := s.Transact(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { err = tx.Done(err) }()

	txs := tx.(*store)

	if err := txs.exec(ctx, sqlf.Sprintf(
		`DELETE FROM lsif_dumps WHERE repository = %s AND commit = %s AND root = %s`,
		repository, commit, root,
	)); err != nil {
		return 0, err
	}

	var dumpID int
	err = txs.queryRow(ctx, sqlf.Sprintf(
		`INSERT INTO lsif_dumps (repository, commit, root) VALUES (%s, %s, %s) RETURNING id`,
		repository, commit, root,
	)).Scan(&dumpID)
	if err != nil {
		return 0, err
	}

	for _, pkg := range packages {
		if err := txs.exec(ctx, sqlf.Sprintf(
			`INSERT INTO lsif_packages (scheme, name, version, dump_id) VALUES (%s, %s, %s, %s)`,
			pkg.Scheme, pkg.Name, pkg.Version, dumpID,
		)); err != nil {
			return 0, err
		}
	}

	for _, ref := range packageReferences {
		if err := txs.exec(ctx, sqlf.Sprintf(
			`INSERT INTO lsif_references (scheme, name, version, dump_id, filter) VALUES (%s, %s, %s, %s, %s)`,
			ref.Scheme, ref.Name, ref.Version, dumpID, ref.Filter,
		)); err != nil {
			return 0, err
		}
	}

	return dumpID, nil
}

func (s *store) FindDefiningDump(ctx context.Context, scheme, name, version string) (Dump, bool, error) {
	rows, err := s.query(ctx, sqlf.Sprintf(
		`SELECT `+dumpColumnsAliased+`
		 FROM lsif_packages p
		 JOIN lsif_dumps d ON d.id = p.dump_id
		 WHERE p.scheme = %s AND p.name = %s AND p.version = %s
		 ORDER BY d.uploaded_at DESC
		 LIMIT 1`,
		scheme, name, version,
	))
	return scanFirstDump(rows, err)
}

func (s *store) FindReferencingDumps(ctx context.Context, scheme, name, version, identifier string, excludeDumpID int) ([]Dump, error) {
	rows, err := s.query(ctx, sqlf.Sprintf(
		`SELECT `+dumpColumnsAliased+`, r.filter
		 FROM lsif_references r
		 JOIN lsif_dumps d ON d.id = r.dump_id
		 WHERE r.scheme = %s AND r.name = %s AND r.version = %s AND d.id != %s AND d.visible_at_tip`,
		scheme, name, version, excludeDumpID,
	))
	if err != nil {
		return nil, err
	}
	defer func() { err = closeRows(rows, err) }()

	var dumps []Dump
	for rows.Next() {
		var d Dump
		var filterBytes []byte
		if err := rows.Scan(&d.ID, &d.Repository, &d.Commit, &d.Root, &d.VisibleAtTip, &d.UploadedAt, &filterBytes); err != nil {
			return nil, err
		}

		filter, err := decodeFilter(filterBytes)
		if err != nil {
			return nil, err
		}
		if filter.Test(identifier) {
			dumps = append(dumps, d)
		}
	}

	return dumps, nil
}
