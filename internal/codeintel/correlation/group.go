package correlation

import (
	"hash/fnv"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/sourcegraph/precise-code-intel/internal/codeintel/bloomfilter"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/bundles/types"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/datastructures"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/lsif"
)

// MaxNumResultChunks bounds the number of shards a single dump's result set
// is partitioned into, regardless of how many results it has.
const MaxNumResultChunks = 1000

// ResultsPerResultChunk is the target number of results per shard; the
// number of shards grows roughly linearly with the number of results up to
// MaxNumResultChunks.
const ResultsPerResultChunk = 500

// Group runs the emit pass: it converts a canonicalized correlation State
// into the exact data written to a Dump Store, plus the package summaries
// handed to the Cross-Repo Index. Interned ids from the state's Interner are
// already dense per-dump integers, so no further id remapping is performed.
func Group(state *State) (*types.GroupedBundleData, error) {
	numResults := len(state.DefinitionData) + len(state.ReferenceData)
	numResultChunks := numResultChunks(numResults)

	documents := groupDocuments(state)
	resultChunks := groupResultChunks(state, numResultChunks)

	definitions := groupMonikerLocations(state, state.DefinitionData, func(r lsif.Range) int { return r.DefinitionResultID })
	references := groupMonikerLocations(state, state.ReferenceData, func(r lsif.Range) int { return r.ReferenceResultID })

	packages := groupPackages(state)
	packageReferences, err := groupPackageReferences(state)
	if err != nil {
		return nil, errors.Wrap(err, "grouping package references")
	}

	return &types.GroupedBundleData{
		Meta:              types.MetaData{NumResultChunks: numResultChunks},
		Documents:         documents,
		ResultChunks:      resultChunks,
		Definitions:       definitions,
		References:        references,
		Packages:          packages,
		PackageReferences: packageReferences,
	}, nil
}

func numResultChunks(numResults int) int {
	n := numResults / ResultsPerResultChunk
	if n < 1 {
		n = 1
	}
	if n > MaxNumResultChunks {
		n = MaxNumResultChunks
	}
	return n
}

// hashKey maps a result id to its shard in [0, numResultChunks).
func hashKey(id int, numResultChunks int) int {
	h := fnv.New32a()
	h.Write([]byte{byte(id), byte(id >> 8), byte(id >> 16), byte(id >> 24)})
	return int(h.Sum32()) % numResultChunks
}

func groupDocuments(state *State) map[string]types.DocumentData {
	documents := make(map[string]types.DocumentData, len(state.DocumentData))

	for documentID, doc := range state.DocumentData {
		if strings.HasPrefix(doc.URI, "..") {
			continue
		}
		documents[doc.URI] = serializeDocument(state, documentID, doc)
	}

	return documents
}

func serializeDocument(state *State, documentID int, doc lsif.Document) types.DocumentData {
	data := types.DocumentData{
		Ranges:             make(map[types.ID]types.RangeData, len(doc.Contains)),
		HoverResults:       map[types.ID]string{},
		Monikers:           map[types.ID]types.MonikerData{},
		PackageInformation: map[types.ID]types.PackageInformationData{},
	}

	for rangeID := range doc.Contains {
		r := state.RangeData[rangeID]

		monikerIDs := make([]types.ID, 0, len(r.MonikerIDs))
		for monikerID := range r.MonikerIDs {
			monikerIDs = append(monikerIDs, types.ID(monikerID))

			moniker := state.MonikerData[monikerID]
			data.Monikers[types.ID(monikerID)] = types.MonikerData{
				Kind:                 moniker.Kind,
				Scheme:               moniker.Scheme,
				Identifier:           moniker.Identifier,
				PackageInformationID: types.ID(moniker.PackageInformationID),
			}

			if moniker.PackageInformationID != lsif.NoID {
				pkg := state.PackageInformationData[moniker.PackageInformationID]
				data.PackageInformation[types.ID(moniker.PackageInformationID)] = types.PackageInformationData{
					Name:    pkg.Name,
					Version: pkg.Version,
				}
			}
		}

		data.Ranges[types.ID(rangeID)] = types.RangeData{
			StartLine:          r.StartLine,
			StartCharacter:     r.StartCharacter,
			EndLine:            r.EndLine,
			EndCharacter:       r.EndCharacter,
			DefinitionResultID: types.ID(r.DefinitionResultID),
			ReferenceResultID:  types.ID(r.ReferenceResultID),
			HoverResultID:      types.ID(r.HoverResultID),
			MonikerIDs:         monikerIDs,
		}

		if r.HoverResultID != lsif.NoID {
			data.HoverResults[types.ID(r.HoverResultID)] = state.HoverData[r.HoverResultID]
		}
	}

	return data
}

func groupResultChunks(state *State, numResultChunks int) map[int]types.ResultChunkData {
	chunks := map[int]types.ResultChunkData{}

	assign := func(resultID int, documentRanges datastructures.DefaultIDSetMap) {
		index := hashKey(resultID, numResultChunks)

		chunk, ok := chunks[index]
		if !ok {
			chunk = types.ResultChunkData{
				DocumentPaths:      map[types.ID]string{},
				DocumentIDRangeIDs: map[types.ID][]types.DocumentIDRangeID{},
			}
		}

		var pairs []types.DocumentIDRangeID
		for documentID, rangeIDs := range documentRanges {
			chunk.DocumentPaths[types.ID(documentID)] = state.DocumentData[documentID].URI

			for rangeID := range rangeIDs {
				pairs = append(pairs, types.DocumentIDRangeID{
					DocumentID: types.ID(documentID),
					RangeID:    types.ID(rangeID),
				})
			}
		}

		sort.Slice(pairs, func(i, j int) bool {
			pathI := chunk.DocumentPaths[pairs[i].DocumentID]
			pathJ := chunk.DocumentPaths[pairs[j].DocumentID]
			if pathI != pathJ {
				return pathI < pathJ
			}
			ri := state.RangeData[int(pairs[i].RangeID)]
			rj := state.RangeData[int(pairs[j].RangeID)]
			if ri.StartLine != rj.StartLine {
				return ri.StartLine < rj.StartLine
			}
			return ri.StartCharacter < rj.StartCharacter
		})

		chunk.DocumentIDRangeIDs[types.ID(resultID)] = pairs
		chunks[index] = chunk
	}

	for resultID, documentRanges := range state.DefinitionData {
		assign(resultID, documentRanges)
	}
	for resultID, documentRanges := range state.ReferenceData {
		assign(resultID, documentRanges)
	}

	return chunks
}

// groupMonikerLocations gathers, for every (scheme, identifier) moniker
// attached to any range pointing at a definition or reference result, the
// full set of source locations that result resolves to. One row is written
// per distinct moniker, holding every location as a single serialized blob —
// this matches the Dump Store's definitions/references table shape of
// (scheme, identifier, data).
func groupMonikerLocations(state *State, data map[int]datastructures.DefaultIDSetMap, getResultID func(lsif.Range) int) []types.MonikerLocations {
	monikersByResult := datastructures.DefaultIDSetMap{}
	for _, r := range state.RangeData {
		if resultID := getResultID(r); resultID != lsif.NoID {
			monikersByResult.GetOrCreate(resultID).AddAll(r.MonikerIDs)
		}
	}

	type key struct{ scheme, identifier string }
	locationsByMoniker := map[key][]types.LocationData{}

	for resultID, documentRanges := range data {
		for monikerID := range monikersByResult[resultID] {
			moniker := state.MonikerData[monikerID]
			k := key{moniker.Scheme, moniker.Identifier}

			for documentID, rangeIDs := range documentRanges {
				uri := state.DocumentData[documentID].URI
				if strings.HasPrefix(uri, "..") {
					continue
				}

				for rangeID := range rangeIDs {
					r := state.RangeData[rangeID]
					locationsByMoniker[k] = append(locationsByMoniker[k], types.LocationData{
						URI:            uri,
						StartLine:      r.StartLine,
						StartCharacter: r.StartCharacter,
						EndLine:        r.EndLine,
						EndCharacter:   r.EndCharacter,
					})
				}
			}
		}
	}

	rows := make([]types.MonikerLocations, 0, len(locationsByMoniker))
	for k, locations := range locationsByMoniker {
		sort.Slice(locations, func(i, j int) bool {
			if locations[i].URI != locations[j].URI {
				return locations[i].URI < locations[j].URI
			}
			if locations[i].StartLine != locations[j].StartLine {
				return locations[i].StartLine < locations[j].StartLine
			}
			return locations[i].StartCharacter < locations[j].StartCharacter
		})

		rows = append(rows, types.MonikerLocations{
			Scheme:     k.scheme,
			Identifier: k.identifier,
			Locations:  locations,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Scheme != rows[j].Scheme {
			return rows[i].Scheme < rows[j].Scheme
		}
		return rows[i].Identifier < rows[j].Identifier
	})

	return rows
}

func groupPackages(state *State) []types.Package {
	uniques := map[string]types.Package{}

	for id := range state.ExportedMonikers {
		moniker := state.MonikerData[id]
		pkg := state.PackageInformationData[moniker.PackageInformationID]

		uniques[packageKey(moniker.Scheme, pkg.Name, pkg.Version)] = types.Package{
			Scheme:  moniker.Scheme,
			Name:    pkg.Name,
			Version: pkg.Version,
		}
	}

	packages := make([]types.Package, 0, len(uniques))
	for _, pkg := range uniques {
		packages = append(packages, pkg)
	}
	return packages
}

func groupPackageReferences(state *State) ([]types.PackageReference, error) {
	type expanded struct {
		scheme, name, version string
		identifiers           []string
	}

	uniques := map[string]*expanded{}

	for id := range state.ImportedMonikers {
		moniker := state.MonikerData[id]
		pkg := state.PackageInformationData[moniker.PackageInformationID]

		key := packageKey(moniker.Scheme, pkg.Name, pkg.Version)
		e, ok := uniques[key]
		if !ok {
			e = &expanded{scheme: moniker.Scheme, name: pkg.Name, version: pkg.Version}
			uniques[key] = e
		}
		e.identifiers = append(e.identifiers, moniker.Identifier)
	}

	var refs []types.PackageReference
	for _, e := range uniques {
		filter, err := bloomfilter.CreateFilter(e.identifiers)
		if err != nil {
			return nil, errors.Wrap(err, "bloomfilter.CreateFilter")
		}

		refs = append(refs, types.PackageReference{
			Scheme:  e.scheme,
			Name:    e.name,
			Version: e.version,
			Filter:  filter,
		})
	}

	return refs, nil
}

func packageKey(scheme, name, version string) string {
	return scheme + ":" + name + ":" + version
}
