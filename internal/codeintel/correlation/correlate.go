package correlation

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/sourcegraph/precise-code-intel/internal/codeintel/datastructures"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/lsif"
)

// Correlate reads a gzipped, line-delimited LSIF stream and returns the
// ingested and canonicalized correlation state. It is the ingest pass plus
// canonicalize pass of the importer (§4.3 of the design); the emit pass lives
// in group.go.
func Correlate(ctx context.Context, r io.Reader) (*State, error) {
	pairs, err := lsif.Read(ctx, r)
	if err != nil {
		return nil, errors.Wrap(err, "lsif.Read")
	}

	state := NewState()
	sawMetaData := false

	for pair := range pairs {
		if pair.Err != nil {
			if errors.Is(pair.Err, context.Canceled) || errors.Is(pair.Err, context.DeadlineExceeded) {
				return nil, pair.Err
			}
			return nil, errors.Mark(errors.Wrap(pair.Err, "reading lsif element"), ErrMalformedInput)
		}

		if pair.Element.Label == "metaData" {
			sawMetaData = true
		}

		if err := correlateElement(state, pair); err != nil {
			return nil, err
		}
	}

	if !sawMetaData {
		return nil, errors.Mark(errors.New("missing metaData vertex"), ErrMalformedInput)
	}

	if err := checkDanglingReferences(state); err != nil {
		return nil, err
	}

	canonicalize(state)

	return state, nil
}

func correlateElement(state *State, pair lsif.Pair) error {
	if pair.Element.Type == "edge" {
		return correlateEdge(state, pair.Element.Label, pair.Payload.(lsif.Edge))
	}

	return correlateVertex(state, pair.Element.ID, pair.Element.Label, pair.Payload)
}

func correlateVertex(state *State, id int, label string, payload interface{}) error {
	switch label {
	case "metaData":
		meta := payload.(lsif.MetaData)
		if !isSupportedVersion(meta.Version) {
			return errors.Mark(errors.Newf("lsif version %q is not supported", meta.Version), ErrUnsupportedVersion)
		}
		state.LSIFVersion = meta.Version
		state.ProjectRoot = meta.ProjectRoot

	case "document":
		state.DocumentData[id] = payload.(lsif.Document)

	case "range":
		state.RangeData[id] = payload.(lsif.Range)

	case "resultSet":
		state.ResultSetData[id] = payload.(lsif.ResultSet)

	case "hoverResult":
		state.HoverData[id] = payload.(string)

	case "moniker":
		moniker := payload.(lsif.Moniker)
		state.MonikerData[id] = moniker

		switch moniker.Kind {
		case "import":
			state.ImportedMonikers.Add(id)
		case "export":
			state.ExportedMonikers.Add(id)
		}

	case "packageInformation":
		state.PackageInformationData[id] = payload.(lsif.PackageInformation)

	case "diagnosticResult":
		state.DiagnosticResults[id] = payload.(lsif.DiagnosticResult).Result

	case "definitionResult":
		state.DefinitionData[id] = datastructures.DefaultIDSetMap{}

	case "referenceResult":
		state.ReferenceData[id] = datastructures.DefaultIDSetMap{}
	}

	return nil
}

func correlateEdge(state *State, label string, edge lsif.Edge) error {
	switch label {
	case "contains":
		return correlateContains(state, edge)

	case "next":
		state.NextData[edge.OutV] = edge.InV

	case "nextMoniker":
		state.LinkedMonikers.Union(edge.OutV, edge.InV)

	case "moniker":
		attachMoniker(state, edge.OutV, edge.InV)

	case "packageInformation":
		return attachPackageInformation(state, edge)

	case "item":
		return correlateItem(state, edge)

	case "textDocument/definition":
		if rs, ok := state.ResultSetData[edge.OutV]; ok {
			state.ResultSetData[edge.OutV] = rs.SetDefinitionResultID(edge.InV)
		} else {
			state.RangeData[edge.OutV] = withDefinitionResultID(state, edge)
		}

	case "textDocument/references":
		if rs, ok := state.ResultSetData[edge.OutV]; ok {
			state.ResultSetData[edge.OutV] = rs.SetReferenceResultID(edge.InV)
		} else {
			state.RangeData[edge.OutV] = withReferenceResultID(state, edge)
		}

	case "textDocument/hover":
		if rs, ok := state.ResultSetData[edge.OutV]; ok {
			state.ResultSetData[edge.OutV] = rs.SetHoverResultID(edge.InV)
		} else {
			state.RangeData[edge.OutV] = withHoverResultID(state, edge)
		}
	}

	return nil
}

func attachMoniker(state *State, elementID, monikerID int) {
	if r, ok := state.RangeData[elementID]; ok {
		monikers := datastructures.NewIDSet()
		monikers.AddAll(r.MonikerIDs)
		monikers.Add(monikerID)
		state.RangeData[elementID] = r.SetMonikerIDs(monikers)
		return
	}

	if rs, ok := state.ResultSetData[elementID]; ok {
		monikers := datastructures.NewIDSet()
		monikers.AddAll(rs.MonikerIDs)
		monikers.Add(monikerID)
		state.ResultSetData[elementID] = rs.SetMonikerIDs(monikers)
	}
}

// attachPackageInformation records which packageInformation vertex a moniker
// was emitted alongside, via a "packageInformation" edge (outV = moniker, inV
// = packageInformation).
func attachPackageInformation(state *State, edge lsif.Edge) error {
	moniker, ok := state.MonikerData[edge.OutV]
	if !ok {
		return errors.Mark(errors.Newf("packageInformation edge %d names unknown moniker", edge.OutV), ErrDanglingReference)
	}

	moniker.PackageInformationID = edge.InV
	state.MonikerData[edge.OutV] = moniker
	return nil
}

func withDefinitionResultID(state *State, edge lsif.Edge) lsif.Range {
	r := state.RangeData[edge.OutV]
	return r.SetDefinitionResultID(edge.InV)
}

func withReferenceResultID(state *State, edge lsif.Edge) lsif.Range {
	r := state.RangeData[edge.OutV]
	return r.SetReferenceResultID(edge.InV)
}

func withHoverResultID(state *State, edge lsif.Edge) lsif.Range {
	r := state.RangeData[edge.OutV]
	return r.SetHoverResultID(edge.InV)
}

// correlateContains attaches the ranges named by a "contains" edge (outV =
// document, inVs = ranges) to that document's Contains set.
func correlateContains(state *State, edge lsif.Edge) error {
	doc, ok := state.DocumentData[edge.OutV]
	if !ok {
		return errors.Mark(errors.Newf("contains edge %d names unknown document", edge.OutV), ErrDanglingReference)
	}

	for _, rangeID := range edge.InVs {
		doc.Contains.Add(rangeID)
	}
	state.DocumentData[edge.OutV] = doc

	return nil
}

// correlateItem attaches the (document, range) members named by an "item"
// edge to the definition or reference result it points from. Item edges
// with property "references" additionally link their target result with any
// other reference result previously linked to the same source, so that
// canonicalizeReferenceResults can merge them.
func correlateItem(state *State, edge lsif.Edge) error {
	if set, ok := state.DefinitionData[edge.OutV]; ok {
		set.GetOrCreate(edge.Document).AddAll(idSetOf(edge.InVs))
		return nil
	}

	if set, ok := state.ReferenceData[edge.OutV]; ok {
		set.GetOrCreate(edge.Document).AddAll(idSetOf(edge.InVs))

		if edge.Property == "references" {
			for _, inV := range edge.InVs {
				if _, ok := state.ReferenceData[inV]; ok {
					state.LinkedReferenceResults.Union(edge.OutV, inV)
				}
			}
		}

		return nil
	}

	return errors.Mark(errors.Newf("item edge %d names unknown result", edge.OutV), ErrDanglingReference)
}

func idSetOf(ids []int) datastructures.IDSet {
	s := datastructures.NewIDSet()
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// checkDanglingReferences verifies that every definition/reference result
// and moniker id attached directly to a range, and every result set named by
// a next edge, was actually declared somewhere in the stream.
func checkDanglingReferences(state *State) error {
	for _, resultSetID := range state.NextData {
		if _, ok := state.ResultSetData[resultSetID]; !ok {
			return errors.Mark(errors.Newf("dangling next reference to id %d", resultSetID), ErrDanglingReference)
		}
	}

	check := func(id int, ok bool) error {
		if id != lsif.NoID && !ok {
			return errors.Mark(errors.Newf("dangling reference to id %d", id), ErrDanglingReference)
		}
		return nil
	}

	for _, r := range state.RangeData {
		if r.DefinitionResultID != lsif.NoID {
			_, ok := state.DefinitionData[r.DefinitionResultID]
			if err := check(r.DefinitionResultID, ok); err != nil {
				return err
			}
		}
		if r.ReferenceResultID != lsif.NoID {
			_, ok := state.ReferenceData[r.ReferenceResultID]
			if err := check(r.ReferenceResultID, ok); err != nil {
				return err
			}
		}
		for monikerID := range r.MonikerIDs {
			if _, ok := state.MonikerData[monikerID]; !ok {
				return errors.Mark(errors.Newf("dangling moniker reference %d", monikerID), ErrDanglingReference)
			}
		}
	}

	return nil
}
