package correlation

import (
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/datastructures"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/lsif"
)

// State is the arena that accumulates a single dump's LSIF graph during the
// ingest pass, keyed throughout by the dense ids assigned by the lsif.Interner
// that produced the stream. It is mutated in place by the canonicalize pass
// and read (never mutated) by the emit pass.
type State struct {
	LSIFVersion string
	ProjectRoot string

	DocumentData           map[int]lsif.Document
	RangeData              map[int]lsif.Range
	ResultSetData          map[int]lsif.ResultSet
	MonikerData            map[int]lsif.Moniker
	PackageInformationData map[int]lsif.PackageInformation
	HoverData              map[int]string
	DiagnosticResults      map[int][]lsif.Diagnostic

	// NextData maps a range or result set id to the result set id reached by
	// its outgoing "next" edge.
	NextData map[int]int

	// DefinitionData and ReferenceData map a definitionResult/referenceResult
	// id to the set of (document, range) pairs that make up that result.
	DefinitionData map[int]datastructures.DefaultIDSetMap
	ReferenceData  map[int]datastructures.DefaultIDSetMap

	// LinkedReferenceResults and LinkedMonikers record equivalences declared
	// by "item" edges with property "references" and by "nextMoniker" edges,
	// respectively.
	LinkedReferenceResults datastructures.DisjointIDSetMap
	LinkedMonikers         datastructures.DisjointIDSetMap

	ImportedMonikers datastructures.IDSet
	ExportedMonikers datastructures.IDSet
}

// NewState creates an empty correlation arena.
func NewState() *State {
	return &State{
		DocumentData:           map[int]lsif.Document{},
		RangeData:              map[int]lsif.Range{},
		ResultSetData:          map[int]lsif.ResultSet{},
		MonikerData:            map[int]lsif.Moniker{},
		PackageInformationData: map[int]lsif.PackageInformation{},
		HoverData:              map[int]string{},
		DiagnosticResults:      map[int][]lsif.Diagnostic{},
		NextData:               map[int]int{},
		DefinitionData:         map[int]datastructures.DefaultIDSetMap{},
		ReferenceData:          map[int]datastructures.DefaultIDSetMap{},
		LinkedReferenceResults: datastructures.DisjointIDSetMap{},
		LinkedMonikers:         datastructures.DisjointIDSetMap{},
		ImportedMonikers:       datastructures.NewIDSet(),
		ExportedMonikers:       datastructures.NewIDSet(),
	}
}
