package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sourcegraph/precise-code-intel/internal/codeintel/bundles/persistence"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/bundles/types"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/cache"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/store"
)

// fakeStore is a minimal in-memory store.Store standing in for Postgres in
// tests, holding the dumps and reference edges a test sets up directly.
type fakeStore struct {
	store.Store // nil embed: panics if a test exercises an unimplemented method

	dumps             map[int]store.Dump
	referencingByName map[string][]int // "scheme/identifier" -> dump ids
}

func (f *fakeStore) FindClosestDump(ctx context.Context, repository, commit, path string) (store.Dump, bool, error) {
	for _, dump := range f.dumps {
		if dump.Repository == repository && dump.Commit == commit {
			return dump, true, nil
		}
	}
	return store.Dump{}, false, nil
}

func (f *fakeStore) FindReferencingDumps(ctx context.Context, scheme, name, version, identifier string, excludeDumpID int) ([]store.Dump, error) {
	var out []store.Dump
	for _, id := range f.referencingByName[scheme+"/"+identifier] {
		if id == excludeDumpID {
			continue
		}
		out = append(out, f.dumps[id])
	}
	return out, nil
}

func writeBundle(t *testing.T, dir string, name string, bundle *types.GroupedBundleData) string {
	t.Helper()
	filename := filepath.Join(dir, name)
	if err := persistence.WriteBundle(context.Background(), filename, "0.4.3", bundle); err != nil {
		t.Fatalf("unexpected error writing bundle %s: %s", name, err)
	}
	return filename
}

func TestReferencesExtendsAcrossDumps(t *testing.T) {
	dir := t.TempDir()

	dumpAFile := writeBundle(t, dir, "a.lsif.db", &types.GroupedBundleData{
		Meta: types.MetaData{NumResultChunks: 1},
		Documents: map[string]types.DocumentData{
			"a.go": {
				Ranges: map[types.ID]types.RangeData{
					1: {
						StartLine: 5, StartCharacter: 0,
						EndLine: 5, EndCharacter: 3,
						DefinitionResultID: types.NoID,
						ReferenceResultID:  types.NoID,
						HoverResultID:      types.NoID,
						MonikerIDs:         []types.ID{1},
					},
				},
				Monikers: map[types.ID]types.MonikerData{
					1: {Kind: "import", Scheme: "gomod", Identifier: "pkg.Foo", PackageInformationID: types.NoID},
				},
			},
		},
		ResultChunks: map[int]types.ResultChunkData{0: {}},
	})

	dumpBFile := writeBundle(t, dir, "b.lsif.db", &types.GroupedBundleData{
		Meta:         types.MetaData{NumResultChunks: 1},
		Documents:    map[string]types.DocumentData{},
		ResultChunks: map[int]types.ResultChunkData{0: {}},
		References: []types.MonikerLocations{
			{Scheme: "gomod", Identifier: "pkg.Foo", Locations: []types.LocationData{
				{URI: "other.go", StartLine: 1, StartCharacter: 0, EndLine: 1, EndCharacter: 3},
			}},
		},
	})

	fs := &fakeStore{
		dumps: map[int]store.Dump{
			1: {ID: 1, Repository: "repoA", Commit: "c1", Root: ""},
			2: {ID: 2, Repository: "repoA", Commit: "c2", Root: "sub/"},
		},
		referencingByName: map[string][]int{
			"gomod/pkg.Foo": {2},
		},
	}

	filenames := map[int]string{1: dumpAFile, 2: dumpBFile}
	tier := cache.NewTier(cache.DefaultConfig)
	b := New(fs, tier, func(dumpID int) string { return filenames[dumpID] })

	locations, err := b.References(context.Background(), "repoA", "c1", "a.go", 5, 1)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if len(locations) != 1 {
		t.Fatalf("expected exactly one cross-dump reference, got %+v", locations)
	}
	if locations[0].Dump.ID != 2 {
		t.Errorf("unexpected source dump: %+v", locations[0].Dump)
	}
	if want := "sub/other.go"; locations[0].URI != want {
		t.Errorf("unexpected URI: want=%s have=%s", want, locations[0].URI)
	}
}
