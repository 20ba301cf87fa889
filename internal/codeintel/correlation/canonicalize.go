package correlation

import (
	"sort"

	"github.com/sourcegraph/precise-code-intel/internal/codeintel/datastructures"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/lsif"
)

// canonicalize deduplicates data in the raw correlation state and collapses
// range, result set, and moniker data that form chains via next edges.
func canonicalize(state *State) {
	fns := []func(state *State){
		canonicalizeDocuments,
		canonicalizeReferenceResults,
		canonicalizeResultSets,
		canonicalizeRanges,
	}

	for _, fn := range fns {
		fn(state)
	}
}

// canonicalizeDocuments determines if multiple documents are defined with
// the same URI. This can happen with indexers that index dependent projects
// into the same index as the target project. For each set of documents that
// share a path, one document is chosen as the canonical representative and
// the contains, definition, and reference data is merged into it.
func canonicalizeDocuments(state *State) {
	documentIDs := map[string][]int{}
	for documentID, doc := range state.DocumentData {
		documentIDs[doc.URI] = append(documentIDs[doc.URI], documentID)
	}
	for _, v := range documentIDs {
		sort.Ints(v)
	}

	for documentID, doc := range state.DocumentData {
		canonicalID := documentIDs[doc.URI][0]
		if documentID == canonicalID {
			continue
		}

		canonicalDoc := state.DocumentData[canonicalID]
		for id := range doc.Contains {
			canonicalDoc.Contains.Add(id)
		}
		state.DocumentData[canonicalID] = canonicalDoc

		canonicalizeDocumentsInDefinitionReferences(state.DefinitionData, documentID, canonicalID)
		canonicalizeDocumentsInDefinitionReferences(state.ReferenceData, documentID, canonicalID)

		delete(state.DocumentData, documentID)
	}
}

// canonicalizeDocumentsInDefinitionReferences moves definition or reference
// result data from documentID to canonicalID and removes all references to
// the non-canonical document.
func canonicalizeDocumentsInDefinitionReferences(data map[int]datastructures.DefaultIDSetMap, documentID, canonicalID int) {
	for _, documentRanges := range data {
		rangeIDs, ok := documentRanges[documentID]
		if !ok {
			continue
		}

		documentRanges.GetOrCreate(canonicalID).AddAll(rangeIDs)
		delete(documentRanges, documentID)
	}
}

// canonicalizeReferenceResults determines which reference results are linked
// together. For each set of linked reference results, one is chosen as the
// canonical representative and the rest are merged into it and removed.
func canonicalizeReferenceResults(state *State) {
	canonicalIDs := map[int]int{}

	for referenceResultID := range state.LinkedReferenceResults {
		if _, ok := canonicalIDs[referenceResultID]; ok {
			continue
		}

		linkedIDs := state.LinkedReferenceResults.ExtractSet(referenceResultID)
		canonicalID, _ := linkedIDs.Choose()
		canonicalReferenceResult := state.ReferenceData[canonicalID]

		for linkedID := range linkedIDs {
			canonicalIDs[linkedID] = canonicalID

			if linkedID != canonicalID {
				for documentID, rangeIDs := range state.ReferenceData[linkedID] {
					canonicalReferenceResult.GetOrCreate(documentID).AddAll(rangeIDs)
				}
			}
		}
	}

	for id, item := range state.RangeData {
		if canonicalID, ok := canonicalIDs[item.ReferenceResultID]; ok {
			state.RangeData[id] = item.SetReferenceResultID(canonicalID)
		}
	}

	for id, item := range state.ResultSetData {
		if canonicalID, ok := canonicalIDs[item.ReferenceResultID]; ok {
			state.ResultSetData[id] = item.SetReferenceResultID(canonicalID)
		}
	}

	inverseMap := map[int]struct{}{}
	for _, canonicalID := range canonicalIDs {
		inverseMap[canonicalID] = struct{}{}
	}

	for referenceResultID := range canonicalIDs {
		if _, ok := inverseMap[referenceResultID]; !ok {
			delete(state.ReferenceData, referenceResultID)
		}
	}
}

// canonicalizeResultSets collapses "next" chains between result sets so
// that a chain of any length merges down into the first element.
func canonicalizeResultSets(state *State) {
	for resultSetID, resultSetData := range state.ResultSetData {
		canonicalizeResultSetData(state, resultSetID, resultSetData)
	}

	for resultSetID, resultSetData := range state.ResultSetData {
		state.ResultSetData[resultSetID] = resultSetData.SetMonikerIDs(gatherMonikers(state, resultSetData.MonikerIDs))
	}
}

// canonicalizeRanges merges down the definition, reference, and hover result
// identifiers from a range's "next" result set, if any, and gathers the
// transitive moniker closure onto the range.
//
// Must run after canonicalizeResultSets: a range's next element may not
// otherwise carry all the data it needs to canonicalize against.
func canonicalizeRanges(state *State) {
	for rangeID, rangeData := range state.RangeData {
		if _, nextItem, ok := next(state, rangeID); ok {
			rangeData = mergeNextRangeData(rangeData, nextItem)
			delete(state.NextData, rangeID)
		}

		state.RangeData[rangeID] = rangeData.SetMonikerIDs(gatherMonikers(state, rangeData.MonikerIDs))
	}
}

func canonicalizeResultSetData(state *State, id int, item lsif.ResultSet) lsif.ResultSet {
	if nextID, nextItem, ok := next(state, id); ok {
		nextItem = canonicalizeResultSetData(state, nextID, nextItem)
		item = mergeNextResultSetData(item, nextItem)
		delete(state.NextData, id)
	}

	state.ResultSetData[id] = item
	return item
}

func mergeNextResultSetData(item, nextItem lsif.ResultSet) lsif.ResultSet {
	if item.DefinitionResultID == lsif.NoID {
		item = item.SetDefinitionResultID(nextItem.DefinitionResultID)
	}
	if item.ReferenceResultID == lsif.NoID {
		item = item.SetReferenceResultID(nextItem.ReferenceResultID)
	}
	if item.HoverResultID == lsif.NoID {
		item = item.SetHoverResultID(nextItem.HoverResultID)
	}

	merged := datastructures.NewIDSet()
	merged.AddAll(item.MonikerIDs)
	merged.AddAll(nextItem.MonikerIDs)
	return item.SetMonikerIDs(merged)
}

func mergeNextRangeData(item lsif.Range, nextItem lsif.ResultSet) lsif.Range {
	if item.DefinitionResultID == lsif.NoID {
		item = item.SetDefinitionResultID(nextItem.DefinitionResultID)
	}
	if item.ReferenceResultID == lsif.NoID {
		item = item.SetReferenceResultID(nextItem.ReferenceResultID)
	}
	if item.HoverResultID == lsif.NoID {
		item = item.SetHoverResultID(nextItem.HoverResultID)
	}

	merged := datastructures.NewIDSet()
	merged.AddAll(item.MonikerIDs)
	merged.AddAll(nextItem.MonikerIDs)
	return item.SetMonikerIDs(merged)
}

// gatherMonikers returns the transitive closure of moniker ids linked (via
// nextMoniker edges) to any moniker id in source, excluding "local" monikers.
func gatherMonikers(state *State, source datastructures.IDSet) datastructures.IDSet {
	monikers := datastructures.NewIDSet()
	for sourceID := range source {
		linked := state.LinkedMonikers.ExtractSet(sourceID)
		for id := range linked {
			if state.MonikerData[id].Kind != "local" {
				monikers.Add(id)
			}
		}
	}

	return monikers
}

// next returns the "next" identifier and result set element for id, if any.
func next(state *State, id int) (int, lsif.ResultSet, bool) {
	nextID, ok := state.NextData[id]
	if !ok {
		return 0, lsif.ResultSet{}, false
	}

	return nextID, state.ResultSetData[nextID], true
}
