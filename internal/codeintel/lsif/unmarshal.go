package lsif

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/sourcegraph/precise-code-intel/internal/codeintel/datastructures"
)

// rawID accepts either a JSON string or a JSON number, matching LSIF sources
// that emit either convention for vertex/edge identifiers.
type rawID string

func (id *rawID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = rawID(s)
		return nil
	}

	*id = rawID(string(data))
	return nil
}

type rawElement struct {
	ID    rawID           `json:"id"`
	Type  string          `json:"type"`
	Label string          `json:"label"`
	Raw   json.RawMessage `json:"-"`
}

// unmarshalElement parses only the envelope fields common to every line.
func unmarshalElement(interner *Interner, line []byte) (Element, error) {
	var raw rawElement
	if err := json.Unmarshal(line, &raw); err != nil {
		return Element{}, errors.Wrap(err, "unmarshalling element")
	}

	return Element{
		ID:    interner.Intern(string(raw.ID)),
		Type:  raw.Type,
		Label: raw.Label,
	}, nil
}

type rawEdge struct {
	OutV     rawID  `json:"outV"`
	InV      rawID  `json:"inV"`
	InVs     []rawID `json:"inVs"`
	Document rawID  `json:"document"`
	Property string `json:"property"`
}

func unmarshalEdge(interner *Interner, line []byte) (Edge, error) {
	var raw rawEdge
	if err := json.Unmarshal(line, &raw); err != nil {
		return Edge{}, errors.Wrap(err, "unmarshalling edge")
	}

	edge := Edge{Property: raw.Property}

	if raw.OutV != "" {
		edge.OutV = interner.Intern(string(raw.OutV))
	}
	if raw.InV != "" {
		edge.InV = interner.Intern(string(raw.InV))
	}
	if raw.Document != "" {
		edge.Document = interner.Intern(string(raw.Document))
	}
	for _, id := range raw.InVs {
		edge.InVs = append(edge.InVs, interner.Intern(string(id)))
	}

	return edge, nil
}

type rawMetaData struct {
	Version     string `json:"version"`
	ProjectRoot string `json:"projectRoot"`
}

func unmarshalMetaData(line []byte) (MetaData, error) {
	var raw rawMetaData
	if err := json.Unmarshal(line, &raw); err != nil {
		return MetaData{}, errors.Wrap(err, "unmarshalling metadata")
	}

	return MetaData{Version: raw.Version, ProjectRoot: raw.ProjectRoot}, nil
}

type rawDocument struct {
	URI string `json:"uri"`
}

func unmarshalDocument(line []byte) (Document, error) {
	var raw rawDocument
	if err := json.Unmarshal(line, &raw); err != nil {
		return Document{}, errors.Wrap(err, "unmarshalling document")
	}

	return Document{
		URI:         raw.URI,
		Contains:    datastructures.NewIDSet(),
		Diagnostics: datastructures.NewIDSet(),
	}, nil
}

type rawPosition struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type rawRange struct {
	Start rawPosition `json:"start"`
	End   rawPosition `json:"end"`
}

func unmarshalRange(line []byte) (Range, error) {
	var raw rawRange
	if err := json.Unmarshal(line, &raw); err != nil {
		return Range{}, errors.Wrap(err, "unmarshalling range")
	}

	return newRange(raw.Start.Line, raw.Start.Character, raw.End.Line, raw.End.Character), nil
}

type rawHoverResult struct {
	Result struct {
		Contents json.RawMessage `json:"contents"`
	} `json:"result"`
}

type markedString struct {
	Kind     string `json:"kind"`
	Value    string `json:"value"`
	Language string `json:"language"`
}

// unmarshalHover normalizes the LSP Hover#contents union (a string, a marked
// string, or a list of either) into a single markdown document, joining
// multiple code blocks with a horizontal rule.
func unmarshalHover(line []byte) (string, error) {
	var raw rawHoverResult
	if err := json.Unmarshal(line, &raw); err != nil {
		return "", errors.Wrap(err, "unmarshalling hover result")
	}

	var single string
	if err := json.Unmarshal(raw.Result.Contents, &single); err == nil {
		return single, nil
	}

	var one markedString
	if err := json.Unmarshal(raw.Result.Contents, &one); err == nil && (one.Value != "" || one.Kind != "") {
		return renderMarkedString(one), nil
	}

	var many []markedString
	if err := json.Unmarshal(raw.Result.Contents, &many); err != nil {
		return "", errors.Wrap(err, "unmarshalling hover contents")
	}

	parts := make([]string, 0, len(many))
	for _, m := range many {
		parts = append(parts, renderMarkedString(m))
	}
	return strings.Join(parts, "\n\n---\n\n"), nil
}

func renderMarkedString(m markedString) string {
	if m.Language != "" {
		return fmt.Sprintf("```%s\n%s\n```", m.Language, m.Value)
	}
	return m.Value
}

type rawMoniker struct {
	Kind       string `json:"kind"`
	Scheme     string `json:"scheme"`
	Identifier string `json:"identifier"`
}

func unmarshalMoniker(line []byte) (Moniker, error) {
	var raw rawMoniker
	if err := json.Unmarshal(line, &raw); err != nil {
		return Moniker{}, errors.Wrap(err, "unmarshalling moniker")
	}

	kind := raw.Kind
	if kind == "" {
		kind = "local"
	}

	return Moniker{Kind: kind, Scheme: raw.Scheme, Identifier: raw.Identifier, PackageInformationID: NoID}, nil
}

type rawPackageInformation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func unmarshalPackageInformation(line []byte) (PackageInformation, error) {
	var raw rawPackageInformation
	if err := json.Unmarshal(line, &raw); err != nil {
		return PackageInformation{}, errors.Wrap(err, "unmarshalling package information")
	}

	return PackageInformation{Name: raw.Name, Version: raw.Version}, nil
}

type rawDiagnostic struct {
	Severity int    `json:"severity"`
	Code     json.Number `json:"code"`
	Message  string `json:"message"`
	Source   string `json:"source"`
	Range    rawRange `json:"range"`
}

type rawDiagnosticResult struct {
	Result []rawDiagnostic `json:"result"`
}

func unmarshalDiagnosticResult(line []byte) (DiagnosticResult, error) {
	var raw rawDiagnosticResult
	if err := json.Unmarshal(line, &raw); err != nil {
		return DiagnosticResult{}, errors.Wrap(err, "unmarshalling diagnostic result")
	}

	result := make([]Diagnostic, 0, len(raw.Result))
	for _, d := range raw.Result {
		result = append(result, Diagnostic{
			Severity:       d.Severity,
			Code:           d.Code.String(),
			Message:        d.Message,
			Source:         d.Source,
			StartLine:      d.Range.Start.Line,
			StartCharacter: d.Range.Start.Character,
			EndLine:        d.Range.End.Line,
			EndCharacter:   d.Range.End.Character,
		})
	}

	return DiagnosticResult{Result: result}, nil
}
