// Package serializer converts the in-memory Dump Store value types to and
// from the gzip-compressed JSON blobs stored in the documents, resultChunks,
// definitions, and references tables.
package serializer

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/sourcegraph/precise-code-intel/internal/codeintel/bundles/types"
)

// EncodingVersion is recorded in the meta table of every Dump Store this
// package writes to, so a future change to the blob layout can branch on it.
const EncodingVersion = 1

// Serializer marshals and unmarshals the blob columns of a Dump Store.
type Serializer interface {
	MarshalDocumentData(document types.DocumentData) ([]byte, error)
	UnmarshalDocumentData(data []byte) (types.DocumentData, error)
	MarshalResultChunkData(resultChunk types.ResultChunkData) ([]byte, error)
	UnmarshalResultChunkData(data []byte) (types.ResultChunkData, error)
	MarshalLocations(locations []types.LocationData) ([]byte, error)
	UnmarshalLocations(data []byte) ([]types.LocationData, error)
}

type defaultSerializer struct{}

// New creates the default gzip+JSON serializer.
func New() Serializer {
	return &defaultSerializer{}
}

func (defaultSerializer) MarshalDocumentData(document types.DocumentData) ([]byte, error) {
	return marshal(document)
}

func (defaultSerializer) UnmarshalDocumentData(data []byte) (types.DocumentData, error) {
	var payload types.DocumentData
	err := unmarshal(data, &payload)
	return payload, err
}

func (defaultSerializer) MarshalResultChunkData(resultChunk types.ResultChunkData) ([]byte, error) {
	return marshal(resultChunk)
}

func (defaultSerializer) UnmarshalResultChunkData(data []byte) (types.ResultChunkData, error) {
	var payload types.ResultChunkData
	err := unmarshal(data, &payload)
	return payload, err
}

func (defaultSerializer) MarshalLocations(locations []types.LocationData) ([]byte, error) {
	return marshal(locations)
}

func (defaultSerializer) UnmarshalLocations(data []byte) ([]types.LocationData, error) {
	var payload []types.LocationData
	err := unmarshal(data, &payload)
	return payload, err
}

func marshal(v interface{}) ([]byte, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "json.Marshal")
	}

	return compress(encoded)
}

func unmarshal(data []byte, target interface{}) error {
	decompressed, err := decompress(data)
	if err != nil {
		return errors.Wrap(err, "decompress")
	}

	if err := json.Unmarshal(decompressed, target); err != nil {
		return errors.Wrap(err, "json.Unmarshal")
	}

	return nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}
