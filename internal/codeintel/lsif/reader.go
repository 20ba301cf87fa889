package lsif

import (
	"bufio"
	"compress/gzip"
	"context"
	"io"

	"github.com/cockroachdb/errors"
)

// Pair couples a parsed element envelope with its label-specific payload (one
// of MetaData, Document, Range, ResultSet, Moniker, PackageInformation,
// DiagnosticResult, string (hover text), or Edge) and any error encountered
// unmarshalling that one line. A non-nil Err means Payload is nil.
type Pair struct {
	Element Element
	Payload interface{}
	Err     error
}

// MaxLineSize bounds a single LSIF line; dumps with larger individual
// vertices/edges are rejected rather than allowed to exhaust memory.
const MaxLineSize = 64 * 1024 * 1024

// Read decompresses r as gzip and streams each decoded JSON line as a Pair on
// the returned channel. The channel is closed when the stream is exhausted or
// ctx is cancelled. Read does not buffer the whole input in memory.
func Read(ctx context.Context, r io.Reader) (<-chan Pair, error) {
	gzipReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening gzip stream")
	}

	ch := make(chan Pair)

	go func() {
		defer close(ch)
		defer gzipReader.Close()

		interner := NewInterner()
		scanner := bufio.NewScanner(gzipReader)
		scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				ch <- Pair{Err: ctx.Err()}
				return
			default:
			}

			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			pair := unmarshalLine(interner, line)

			select {
			case ch <- pair:
			case <-ctx.Done():
				return
			}

			if pair.Err != nil {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			ch <- Pair{Err: errors.Wrap(err, "scanning lsif stream")}
		}
	}()

	return ch, nil
}

func unmarshalLine(interner *Interner, line []byte) Pair {
	element, err := unmarshalElement(interner, line)
	if err != nil {
		return Pair{Err: errors.Wrap(err, "malformed element")}
	}

	if element.Type == "edge" {
		edge, err := unmarshalEdge(interner, line)
		if err != nil {
			return Pair{Element: element, Err: errors.Wrap(err, "malformed edge")}
		}
		return Pair{Element: element, Payload: edge}
	}

	payload, err := unmarshalVertexPayload(element.Label, line)
	if err != nil {
		return Pair{Element: element, Err: err}
	}

	return Pair{Element: element, Payload: payload}
}

func unmarshalVertexPayload(label string, line []byte) (interface{}, error) {
	switch label {
	case "metaData":
		return unmarshalMetaData(line)
	case "document":
		return unmarshalDocument(line)
	case "range":
		return unmarshalRange(line)
	case "resultSet":
		return newResultSet(), nil
	case "definitionResult", "referenceResult":
		return nil, nil
	case "hoverResult":
		return unmarshalHover(line)
	case "moniker":
		return unmarshalMoniker(line)
	case "packageInformation":
		return unmarshalPackageInformation(line)
	case "diagnosticResult":
		return unmarshalDiagnosticResult(line)
	default:
		// Unrecognized vertex labels are ignored rather than rejected: LSIF
		// sources are free to emit vendor extensions.
		return nil, nil
	}
}
