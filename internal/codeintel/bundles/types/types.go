// Package types holds the data model written to and read from a per-dump
// Dump Store (the embedded SQLite file described in the design's §4.1).
package types

// ID is a dense integer identifier assigned by the lsif Interner while the
// stream is read and kept unchanged by the emit pass, scoped to a single dump. It is distinct from the database's auto-assigned dump id.
type ID int

// NoID marks a RangeData's DefinitionResultID, ReferenceResultID, or
// HoverResultID as absent.
const NoID ID = -1

// DocumentData represents a single document within an index. The data here
// can answer definitions, references, and hover queries if the results are
// all contained in the same document.
type DocumentData struct {
	Ranges             map[ID]RangeData
	HoverResults       map[ID]string // hover text, already normalized to markdown
	Monikers           map[ID]MonikerData
	PackageInformation map[ID]PackageInformationData
}

// RangeData represents a range vertex within an index. The data that was
// reachable via a result set has been collapsed into this object during
// conversion.
type RangeData struct {
	StartLine          int // 0-indexed, inclusive
	StartCharacter     int // 0-indexed, inclusive
	EndLine             int // 0-indexed, inclusive
	EndCharacter        int // 0-indexed, exclusive
	DefinitionResultID ID  // possibly empty
	ReferenceResultID  ID  // possibly empty
	HoverResultID      ID  // possibly empty
	MonikerIDs         []ID
}

// MonikerData represents a unique name (eventually) attached to a range.
type MonikerData struct {
	Kind                 string // local, import, export
	Scheme               string
	Identifier           string
	PackageInformationID ID // possibly empty
}

// PackageInformationData indicates a globally unique namespace for a moniker.
type PackageInformationData struct {
	Name    string
	Version string
}

// ResultChunkData represents a row of the resultChunks table: a subset of
// definition and reference result data in the index, partitioned by hash of
// the result id so each chunk holds a roughly proportional share.
type ResultChunkData struct {
	// DocumentPaths maps a document identifier (as it appears in
	// DocumentIDRangeIDs) to its path, which is the key used to fetch
	// document data from the documents table.
	DocumentPaths map[ID]string

	// DocumentIDRangeIDs maps a definition or reference result identifier to
	// the set of ranges that compose that result set.
	DocumentIDRangeIDs map[ID][]DocumentIDRangeID
}

// DocumentIDRangeID is a pair of document and range identifiers.
type DocumentIDRangeID struct {
	DocumentID ID
	RangeID    ID
}

// Package pairs a package name and the dump that provides it.
type Package struct {
	DumpID  int
	Scheme  string
	Name    string
	Version string
}

// PackageReference pairs a package name/version with a dump that depends on
// it, plus a bloom filter over the identifiers that dump imports from it.
type PackageReference struct {
	DumpID  int
	Scheme  string
	Name    string
	Version string
	Filter  []byte
}

// MetaData is the per-dump constants row.
type MetaData struct {
	NumResultChunks int
}

// KeyedDocumentData pairs a document's path with its decoded contents.
type KeyedDocumentData struct {
	Path     string
	Document DocumentData
}

// IndexedResultChunkData pairs a result chunk's shard index with its
// contents.
type IndexedResultChunkData struct {
	Index       int
	ResultChunk ResultChunkData
}

// MonikerLocations pairs a (scheme, identifier) moniker with every location
// where it is defined or referenced within the dump.
type MonikerLocations struct {
	Scheme     string
	Identifier string
	Locations  []LocationData
}

// LocationData is a source location within a single document.
type LocationData struct {
	URI            string
	StartLine      int
	StartCharacter int
	EndLine        int
	EndCharacter   int
}

// GroupedBundleData is everything the emit pass produces from a correlated
// State: the exact content written to a Dump Store, plus the cross-repo
// summaries (Packages, PackageReferences) handed to the Cross-Repo Index.
type GroupedBundleData struct {
	Meta              MetaData
	Documents         map[string]DocumentData
	ResultChunks      map[int]ResultChunkData
	Definitions       []MonikerLocations
	References        []MonikerLocations
	Packages          []Package
	PackageReferences []PackageReference
}
