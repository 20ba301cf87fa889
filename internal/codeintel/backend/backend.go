// Package backend implements the Backend Facade (C7): given a repository,
// commit, and path, it resolves the Dump Store that answers queries about
// that path and dispatches Definitions/References/Hover/Exists against it,
// extending References across dumps via the Cross-Repo Index.
package backend

import (
	"context"
	"path"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/sourcegraph/precise-code-intel/internal/codeintel/bundles/persistence"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/bundles/types"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/cache"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/database"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/store"
)

// Location is a LocationData anchored to the dump and repository it was
// found in, so a caller can map it back to a file in a particular commit.
type Location struct {
	Dump store.Dump
	types.LocationData
}

// StorageDir maps a dump id to its Dump Store filename.
type StorageDir func(dumpID int) string

// Backend answers code intelligence queries for a single Cross-Repo Index
// and cache tier, across every dump they know about.
type Backend struct {
	store      store.Store
	cache      *cache.Tier
	storageDir StorageDir
}

// New builds a Backend over store s, opening Dump Store files through tier
// and locating them with storageDir.
func New(s store.Store, tier *cache.Tier, storageDir StorageDir) *Backend {
	return &Backend{store: s, cache: tier, storageDir: storageDir}
}

// Exists reports whether path is recorded in the dump closest to commit in
// repository.
func (b *Backend) Exists(ctx context.Context, repository, commit, p string) (bool, error) {
	dump, db, ok, err := b.resolve(ctx, repository, commit, p)
	if err != nil || !ok {
		return false, err
	}
	return db.Exists(ctx, dumpRelativePath(dump, p))
}

// Definitions resolves the definition(s) of the symbol at (path, line,
// character) in the dump closest to commit.
func (b *Backend) Definitions(ctx context.Context, repository, commit, p string, line, character int) ([]Location, error) {
	dump, db, ok, err := b.resolve(ctx, repository, commit, p)
	if err != nil || !ok {
		return nil, err
	}

	locations, err := db.Definitions(ctx, dumpRelativePath(dump, p), line, character)
	if err != nil {
		return nil, errors.Wrap(err, "database.Definitions")
	}

	return attachDump(dump, locations), nil
}

// Hover resolves the hover text at (path, line, character) in the dump
// closest to commit.
func (b *Backend) Hover(ctx context.Context, repository, commit, p string, line, character int) (string, types.RangeData, bool, error) {
	dump, db, ok, err := b.resolve(ctx, repository, commit, p)
	if err != nil || !ok {
		return "", types.RangeData{}, false, err
	}
	return db.Hover(ctx, dumpRelativePath(dump, p), line, character)
}

// References resolves the reference(s) of the symbol at (path, line,
// character) in the dump closest to commit, then extends that local result
// set with references from every other dump that imports a package whose
// bloom filter may contain one of the symbol's monikers.
func (b *Backend) References(ctx context.Context, repository, commit, p string, line, character int) ([]Location, error) {
	dump, db, ok, err := b.resolve(ctx, repository, commit, p)
	if err != nil || !ok {
		return nil, err
	}

	relPath := dumpRelativePath(dump, p)

	local, err := db.References(ctx, relPath, line, character)
	if err != nil {
		return nil, errors.Wrap(err, "database.References")
	}
	results := attachDump(dump, local)

	monikers, err := db.MonikersAt(ctx, relPath, line, character)
	if err != nil {
		return nil, errors.Wrap(err, "database.MonikersAt")
	}

	for _, moniker := range monikers {
		if moniker.Kind == "local" {
			continue
		}

		var name, version string
		if moniker.PackageInformationID != types.NoID {
			info, ok, err := db.PackageInformation(ctx, relPath, moniker.PackageInformationID)
			if err != nil {
				return nil, errors.Wrap(err, "database.PackageInformation")
			}
			if ok {
				name, version = info.Name, info.Version
			}
		}

		referencingDumps, err := b.store.FindReferencingDumps(ctx, moniker.Scheme, name, version, moniker.Identifier, dump.ID)
		if err != nil {
			return nil, errors.Wrap(err, "store.FindReferencingDumps")
		}

		for _, referencingDump := range referencingDumps {
			remote, err := b.referencesByMonikerInDump(ctx, referencingDump, moniker.Scheme, moniker.Identifier)
			if err != nil {
				return nil, err
			}
			results = append(results, remote...)
		}
	}

	return results, nil
}

func (b *Backend) referencesByMonikerInDump(ctx context.Context, dump store.Dump, scheme, identifier string) ([]Location, error) {
	var locations []types.LocationData
	err := b.cache.WithReader(b.storageDir(dump.ID), func(r persistence.Reader) error {
		var err error
		locations, err = r.ReadReferences(ctx, scheme, identifier)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading references from referencing dump")
	}

	return attachDump(dump, locations), nil
}

// resolve finds the dump closest to (repository, commit) that covers path
// and opens a Database over it.
func (b *Backend) resolve(ctx context.Context, repository, commit, p string) (store.Dump, *database.Database, bool, error) {
	dump, ok, err := b.store.FindClosestDump(ctx, repository, commit, p)
	if err != nil {
		return store.Dump{}, nil, false, errors.Wrap(err, "store.FindClosestDump")
	}
	if !ok {
		return store.Dump{}, nil, false, nil
	}

	return dump, database.New(dump.ID, b.storageDir(dump.ID), b.cache), true, nil
}

func dumpRelativePath(dump store.Dump, p string) string {
	rel := strings.TrimPrefix(p, dump.Root)
	return strings.TrimPrefix(rel, "/")
}

func attachDump(dump store.Dump, locations []types.LocationData) []Location {
	out := make([]Location, 0, len(locations))
	for _, l := range locations {
		l.URI = path.Join(dump.Root, l.URI)
		out = append(out, Location{Dump: dump, LocationData: l})
	}
	return out
}
