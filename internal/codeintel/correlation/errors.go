package correlation

import "github.com/cockroachdb/errors"

// ErrMalformedInput is returned when a line of the LSIF stream does not
// conform to the expected vertex/edge schema.
var ErrMalformedInput = errors.New("malformed lsif input")

// ErrUnsupportedVersion is returned when the metaData vertex's version field
// falls outside the range this importer understands.
var ErrUnsupportedVersion = errors.New("unsupported lsif version")

// ErrDanglingReference is returned when an edge refers to a vertex id that
// was never observed in the stream.
var ErrDanglingReference = errors.New("dangling lsif reference")

// minSupportedVersion is the lowest accepted metaData.version.
// isSupportedVersion accepts any version beginning with "0.4".
const minSupportedVersion = "0.4.0"

func isSupportedVersion(version string) bool {
	return len(version) >= 3 && version[:3] == "0.4"
}
