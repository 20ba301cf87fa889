package lsif

import "github.com/sourcegraph/precise-code-intel/internal/codeintel/datastructures"

// NoID is the sentinel value for an absent definition/reference/hover result
// identifier. Interned identifiers are always >= 0, so -1 cannot collide.
const NoID = -1

// Element is the common envelope of every vertex or edge in an LSIF dump.
type Element struct {
	ID    int
	Type  string // "vertex" or "edge"
	Label string
}

// Edge is a fully parsed LSIF edge. Not every field is populated for every
// edge label; callers inspect Label to know which fields apply.
type Edge struct {
	OutV     int
	InV      int
	InVs     []int
	Document int
	Property string // for "item" edges: "" | "definitions" | "references"
}

// MetaData is the payload of a metaData vertex.
type MetaData struct {
	Version     string
	ProjectRoot string
}

// Document is the payload of a document vertex plus the accumulated set of
// range ids it contains (populated by "contains" edges during ingest).
type Document struct {
	URI         string
	Contains    datastructures.IDSet
	Diagnostics datastructures.IDSet
}

// Range is the payload of a range vertex, plus the definition/reference/hover
// result and moniker ids resolved onto it during canonicalization.
type Range struct {
	StartLine          int
	StartCharacter     int
	EndLine            int
	EndCharacter       int
	DefinitionResultID int
	ReferenceResultID  int
	HoverResultID      int
	MonikerIDs         datastructures.IDSet
}

func newRange(startLine, startCharacter, endLine, endCharacter int) Range {
	return Range{
		StartLine:          startLine,
		StartCharacter:     startCharacter,
		EndLine:            endLine,
		EndCharacter:       endCharacter,
		DefinitionResultID: NoID,
		ReferenceResultID:  NoID,
		HoverResultID:      NoID,
		MonikerIDs:         datastructures.NewIDSet(),
	}
}

// SetDefinitionResultID returns a copy of r with DefinitionResultID set to id.
func (r Range) SetDefinitionResultID(id int) Range {
	r.DefinitionResultID = id
	return r
}

// SetReferenceResultID returns a copy of r with ReferenceResultID set to id.
func (r Range) SetReferenceResultID(id int) Range {
	r.ReferenceResultID = id
	return r
}

// SetHoverResultID returns a copy of r with HoverResultID set to id.
func (r Range) SetHoverResultID(id int) Range {
	r.HoverResultID = id
	return r
}

// SetMonikerIDs returns a copy of r with MonikerIDs replaced by ids.
func (r Range) SetMonikerIDs(ids datastructures.IDSet) Range {
	r.MonikerIDs = ids
	return r
}

// ResultSet is the payload of a resultSet vertex. It never appears directly
// in a Document; its data is merged onto the ranges and result sets that
// point to it via "next" edges during canonicalization.
type ResultSet struct {
	DefinitionResultID int
	ReferenceResultID  int
	HoverResultID      int
	MonikerIDs         datastructures.IDSet
}

func newResultSet() ResultSet {
	return ResultSet{
		DefinitionResultID: NoID,
		ReferenceResultID:  NoID,
		HoverResultID:      NoID,
		MonikerIDs:         datastructures.NewIDSet(),
	}
}

// SetDefinitionResultID returns a copy of rs with DefinitionResultID set to id.
func (rs ResultSet) SetDefinitionResultID(id int) ResultSet {
	rs.DefinitionResultID = id
	return rs
}

// SetReferenceResultID returns a copy of rs with ReferenceResultID set to id.
func (rs ResultSet) SetReferenceResultID(id int) ResultSet {
	rs.ReferenceResultID = id
	return rs
}

// SetHoverResultID returns a copy of rs with HoverResultID set to id.
func (rs ResultSet) SetHoverResultID(id int) ResultSet {
	rs.HoverResultID = id
	return rs
}

// SetMonikerIDs returns a copy of rs with MonikerIDs replaced by ids.
func (rs ResultSet) SetMonikerIDs(ids datastructures.IDSet) ResultSet {
	rs.MonikerIDs = ids
	return rs
}

// Moniker is the payload of a moniker vertex.
type Moniker struct {
	Kind                 string // "local", "import", "export"
	Scheme               string
	Identifier           string
	PackageInformationID int
}

// PackageInformation is the payload of a packageInformation vertex.
type PackageInformation struct {
	Name    string
	Version string
}

// Diagnostic is a single entry of a diagnosticResult vertex's Result list.
type Diagnostic struct {
	Severity       int
	Code           string
	Message        string
	Source         string
	StartLine      int
	StartCharacter int
	EndLine        int
	EndCharacter   int
}

// DiagnosticResult is the payload of a diagnosticResult vertex.
type DiagnosticResult struct {
	Result []Diagnostic
}
