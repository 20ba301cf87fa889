// Package database implements the Query Database: given an open Dump Store
// and its dump id, it resolves definitions, references, and hover text for a
// file position.
package database

import (
	"context"
	"hash/fnv"
	"sort"

	"github.com/sourcegraph/precise-code-intel/internal/codeintel/bundles/persistence"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/bundles/types"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/cache"
)

// Database answers code-intelligence queries against a single dump. It is
// opened on demand by the Backend Facade and is safe for concurrent use — all
// state lives in the shared cache.Tier, not on the Database value itself.
type Database struct {
	dumpID   int
	filename string
	cache    *cache.Tier
}

// New opens a Query Database for the dump stored at filename. Opening is
// lazy: the underlying Dump Store connection is not acquired until the first
// query runs.
func New(dumpID int, filename string, tier *cache.Tier) *Database {
	return &Database{dumpID: dumpID, filename: filename, cache: tier}
}

// Exists reports whether path is a document in this dump.
func (d *Database) Exists(ctx context.Context, path string) (bool, error) {
	exists := false

	err := d.cache.WithReader(d.filename, func(r persistence.Reader) error {
		document, err := d.document(ctx, r, path)
		if err != nil {
			return err
		}
		exists = document != nil
		return nil
	})

	return exists, err
}

// Definitions resolves the definition locations for the symbol at (path,
// line, character).
func (d *Database) Definitions(ctx context.Context, path string, line, character int) ([]types.LocationData, error) {
	var locations []types.LocationData

	err := d.cache.WithReader(d.filename, func(r persistence.Reader) error {
		rng, ok, err := d.innermostRange(ctx, r, path, line, character)
		if err != nil || !ok || rng.DefinitionResultID == types.NoID {
			return err
		}

		locations, err = d.locationsForResult(ctx, r, rng.DefinitionResultID)
		return err
	})

	return locations, err
}

// References resolves the reference locations local to this dump for the
// symbol at (path, line, character). Cross-dump references are the Backend
// Facade's responsibility — it resolves MonikersAt through the Cross-Repo
// Index and merges them with this dump's local results.
func (d *Database) References(ctx context.Context, path string, line, character int) ([]types.LocationData, error) {
	var locations []types.LocationData

	err := d.cache.WithReader(d.filename, func(r persistence.Reader) error {
		rng, ok, err := d.innermostRange(ctx, r, path, line, character)
		if err != nil || !ok || rng.ReferenceResultID == types.NoID {
			return err
		}

		locations, err = d.locationsForResult(ctx, r, rng.ReferenceResultID)
		return err
	})

	return locations, err
}

// Hover resolves the hover text and range for the symbol at (path, line,
// character). ok is false if no range contains the position or the range
// has no attached hover text.
func (d *Database) Hover(ctx context.Context, path string, line, character int) (text string, rng types.RangeData, ok bool, err error) {
	err = d.cache.WithReader(d.filename, func(r persistence.Reader) error {
		found, foundOk, ferr := d.innermostRange(ctx, r, path, line, character)
		if ferr != nil || !foundOk || found.HoverResultID == types.NoID {
			return ferr
		}

		document, derr := d.document(ctx, r, path)
		if derr != nil {
			return derr
		}

		hoverText, exists := document.HoverResults[found.HoverResultID]
		if !exists {
			return nil
		}

		text, rng, ok = hoverText, found, true
		return nil
	})

	return text, rng, ok, err
}

// MonikersAt returns the monikers attached to the innermost range containing
// (path, line, character), in the order they should be tried for cross-dump
// resolution.
func (d *Database) MonikersAt(ctx context.Context, path string, line, character int) ([]types.MonikerData, error) {
	var monikers []types.MonikerData

	err := d.cache.WithReader(d.filename, func(r persistence.Reader) error {
		rng, ok, err := d.innermostRange(ctx, r, path, line, character)
		if err != nil || !ok {
			return err
		}

		document, err := d.document(ctx, r, path)
		if err != nil {
			return err
		}

		for _, monikerID := range rng.MonikerIDs {
			if moniker, exists := document.Monikers[monikerID]; exists {
				monikers = append(monikers, moniker)
			}
		}

		return nil
	})

	return monikers, err
}

// PackageInformation resolves the package name and version a moniker found
// in path belongs to, by id. The Backend Facade uses this to learn which
// package a moniker's cross-dump references are scoped to.
func (d *Database) PackageInformation(ctx context.Context, path string, id types.ID) (types.PackageInformationData, bool, error) {
	var info types.PackageInformationData
	var ok bool

	err := d.cache.WithReader(d.filename, func(r persistence.Reader) error {
		document, err := d.document(ctx, r, path)
		if err != nil {
			return err
		}
		info, ok = document.PackageInformation[id]
		return nil
	})

	return info, ok, err
}

// DefinitionsByMoniker and ReferencesByMoniker resolve a moniker directly
// against this dump's definitions/references tables, bypassing any
// particular range. The Backend Facade does not call them; it reads a
// referencing dump's rows through persistence.Reader.ReadReferences.
func (d *Database) DefinitionsByMoniker(ctx context.Context, scheme, identifier string) ([]types.LocationData, error) {
	var locations []types.LocationData
	err := d.cache.WithReader(d.filename, func(r persistence.Reader) (err error) {
		locations, err = r.ReadDefinitions(ctx, scheme, identifier)
		return err
	})
	return locations, err
}

func (d *Database) ReferencesByMoniker(ctx context.Context, scheme, identifier string) ([]types.LocationData, error) {
	var locations []types.LocationData
	err := d.cache.WithReader(d.filename, func(r persistence.Reader) (err error) {
		locations, err = r.ReadReferences(ctx, scheme, identifier)
		return err
	})
	return locations, err
}

func (d *Database) document(ctx context.Context, r persistence.Reader, path string) (*types.DocumentData, error) {
	key := cache.DocumentKey{DumpID: d.dumpID, Path: path}

	var result *types.DocumentData
	found := false

	err := d.cache.Documents.WithEntry(key, func() (types.DocumentData, error) {
		document, ok, err := r.ReadDocument(ctx, path)
		if err != nil {
			return types.DocumentData{}, err
		}
		if !ok {
			return types.DocumentData{}, errNotFound
		}
		return document, nil
	}, func(document types.DocumentData) error {
		result, found = &document, true
		return nil
	})

	if err == errNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return result, nil
}

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

const errNotFound = sentinelError("not found")

func (d *Database) innermostRange(ctx context.Context, r persistence.Reader, path string, line, character int) (types.RangeData, bool, error) {
	document, err := d.document(ctx, r, path)
	if err != nil || document == nil {
		return types.RangeData{}, false, err
	}

	candidates := findRanges(document.Ranges, line, character)
	if len(candidates) == 0 {
		return types.RangeData{}, false, nil
	}

	return candidates[0], true, nil
}

func (d *Database) locationsForResult(ctx context.Context, r persistence.Reader, resultID types.ID) ([]types.LocationData, error) {
	meta, err := r.ReadMeta(ctx)
	if err != nil {
		return nil, err
	}

	chunkIndex := hashKey(int(resultID), meta.NumResultChunks)

	chunk, ok, err := d.resultChunk(ctx, r, chunkIndex)
	if err != nil || !ok {
		return nil, err
	}

	pairs, ok := chunk.DocumentIDRangeIDs[resultID]
	if !ok {
		return nil, nil
	}

	locations := make([]types.LocationData, 0, len(pairs))
	for _, pair := range pairs {
		path, ok := chunk.DocumentPaths[pair.DocumentID]
		if !ok {
			continue
		}

		document, err := d.document(ctx, r, path)
		if err != nil {
			return nil, err
		}
		if document == nil {
			continue
		}

		rng, ok := document.Ranges[pair.RangeID]
		if !ok {
			continue
		}

		locations = append(locations, types.LocationData{
			URI:            path,
			StartLine:      rng.StartLine,
			StartCharacter: rng.StartCharacter,
			EndLine:        rng.EndLine,
			EndCharacter:   rng.EndCharacter,
		})
	}

	return locations, nil
}

func (d *Database) resultChunk(ctx context.Context, r persistence.Reader, index int) (*types.ResultChunkData, bool, error) {
	key := cache.ResultChunkKey{DumpID: d.dumpID, ChunkID: index}

	var result *types.ResultChunkData
	found := false

	err := d.cache.ResultChunks.WithEntry(key, func() (types.ResultChunkData, error) {
		chunk, ok, err := r.ReadResultChunk(ctx, index)
		if err != nil {
			return types.ResultChunkData{}, err
		}
		if !ok {
			return types.ResultChunkData{}, errNotFound
		}
		return chunk, nil
	}, func(chunk types.ResultChunkData) error {
		result, found = &chunk, true
		return nil
	})

	if err == errNotFound {
		return nil, false, nil
	}
	return result, found, err
}

// hashKey reproduces the importer's shard assignment (see
// correlation.hashKey) so a query resolves a result id to the same chunk it
// was written into.
func hashKey(id int, numResultChunks int) int {
	h := fnv.New32a()
	h.Write([]byte{byte(id), byte(id >> 8), byte(id >> 16), byte(id >> 24)})
	return int(h.Sum32()) % numResultChunks
}

// findRanges returns the ranges containing (line, character), ordered
// innermost first: smallest area wins, ties broken by earliest start.
func findRanges(ranges map[types.ID]types.RangeData, line, character int) []types.RangeData {
	var candidates []types.RangeData
	for _, r := range ranges {
		if containsPosition(r, line, character) {
			candidates = append(candidates, r)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		ai, aj := rangeArea(candidates[i]), rangeArea(candidates[j])
		if ai != aj {
			return ai < aj
		}
		if candidates[i].StartLine != candidates[j].StartLine {
			return candidates[i].StartLine < candidates[j].StartLine
		}
		return candidates[i].StartCharacter < candidates[j].StartCharacter
	})

	return candidates
}

// containsPosition reports whether (line, character) falls within r, which
// is half-open on its end character.
func containsPosition(r types.RangeData, line, character int) bool {
	if line < r.StartLine || line > r.EndLine {
		return false
	}
	if line == r.StartLine && character < r.StartCharacter {
		return false
	}
	if line == r.EndLine && character >= r.EndCharacter {
		return false
	}
	return true
}

// rangeArea is a coarse area proxy: line span dominates, character span
// breaks ties within a single line.
func rangeArea(r types.RangeData) int {
	if r.EndLine != r.StartLine {
		return (r.EndLine-r.StartLine)*1_000_000 + r.EndCharacter
	}
	return r.EndCharacter - r.StartCharacter
}
