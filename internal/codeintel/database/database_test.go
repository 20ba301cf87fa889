package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sourcegraph/precise-code-intel/internal/codeintel/bundles/persistence"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/bundles/types"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/cache"
)

func testDatabase(t *testing.T) *Database {
	t.Helper()

	bundle := &types.GroupedBundleData{
		Meta: types.MetaData{NumResultChunks: 1},
		Documents: map[string]types.DocumentData{
			"main.go": {
				Ranges: map[types.ID]types.RangeData{
					1: {
						StartLine: 10, StartCharacter: 5,
						EndLine: 10, EndCharacter: 8,
						DefinitionResultID: 100,
						ReferenceResultID:  types.NoID,
						HoverResultID:      200,
						MonikerIDs:         []types.ID{1},
					},
					// An enclosing, larger range at the same position, to
					// exercise innermost-range selection.
					2: {
						StartLine: 9, StartCharacter: 0,
						EndLine: 11, EndCharacter: 0,
						DefinitionResultID: types.NoID,
						ReferenceResultID:  types.NoID,
						HoverResultID:      types.NoID,
					},
				},
				HoverResults: map[types.ID]string{200: "hover text"},
				Monikers: map[types.ID]types.MonikerData{
					1: {Kind: "export", Scheme: "gomod", Identifier: "pkg.Foo", PackageInformationID: 1},
				},
				PackageInformation: map[types.ID]types.PackageInformationData{
					1: {Name: "example.com/pkg", Version: "v1.0.0"},
				},
			},
		},
		ResultChunks: map[int]types.ResultChunkData{
			0: {
				DocumentPaths: map[types.ID]string{0: "main.go"},
				DocumentIDRangeIDs: map[types.ID][]types.DocumentIDRangeID{
					100: {{DocumentID: 0, RangeID: 1}},
				},
			},
		},
		Definitions: []types.MonikerLocations{
			{Scheme: "gomod", Identifier: "pkg.Foo", Locations: []types.LocationData{
				{URI: "main.go", StartLine: 10, StartCharacter: 5, EndLine: 10, EndCharacter: 8},
			}},
		},
		References: []types.MonikerLocations{
			{Scheme: "gomod", Identifier: "pkg.Foo", Locations: []types.LocationData{
				{URI: "other.go", StartLine: 3, StartCharacter: 1, EndLine: 3, EndCharacter: 4},
			}},
		},
	}

	filename := filepath.Join(t.TempDir(), "test.lsif.db")
	if err := persistence.WriteBundle(context.Background(), filename, "0.4.3", bundle); err != nil {
		t.Fatalf("unexpected error writing bundle: %s", err)
	}

	tier := cache.NewTier(cache.DefaultConfig)
	return New(1, filename, tier)
}

func TestExists(t *testing.T) {
	db := testDatabase(t)

	ok, err := db.Exists(context.Background(), "main.go")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !ok {
		t.Error("expected main.go to exist")
	}

	ok, err = db.Exists(context.Background(), "missing.go")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if ok {
		t.Error("expected missing.go to not exist")
	}
}

func TestDefinitionsSelectsInnermostRange(t *testing.T) {
	db := testDatabase(t)

	locations, err := db.Definitions(context.Background(), "main.go", 10, 6)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if len(locations) != 1 || locations[0].URI != "main.go" {
		t.Errorf("unexpected definitions: %+v", locations)
	}
}

func TestHover(t *testing.T) {
	db := testDatabase(t)

	text, rng, ok, err := db.Hover(context.Background(), "main.go", 10, 6)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !ok {
		t.Fatal("expected a hover result")
	}
	if text != "hover text" {
		t.Errorf("unexpected hover text: %q", text)
	}
	if rng.StartLine != 10 {
		t.Errorf("unexpected range: %+v", rng)
	}
}

func TestMonikersAtAndByMoniker(t *testing.T) {
	db := testDatabase(t)

	monikers, err := db.MonikersAt(context.Background(), "main.go", 10, 6)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(monikers) != 1 || monikers[0].Identifier != "pkg.Foo" {
		t.Fatalf("unexpected monikers: %+v", monikers)
	}

	info, ok, err := db.PackageInformation(context.Background(), "main.go", monikers[0].PackageInformationID)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !ok || info.Name != "example.com/pkg" {
		t.Fatalf("unexpected package information: %+v", info)
	}

	references, err := db.ReferencesByMoniker(context.Background(), "gomod", "pkg.Foo")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(references) != 1 || references[0].URI != "other.go" {
		t.Errorf("unexpected references: %+v", references)
	}
}

func TestPositionOutsideAnyRange(t *testing.T) {
	db := testDatabase(t)

	locations, err := db.Definitions(context.Background(), "main.go", 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(locations) != 0 {
		t.Errorf("expected no definitions outside any range, got %+v", locations)
	}
}
