package store

import "github.com/sourcegraph/precise-code-intel/internal/codeintel/bloomfilter"

func decodeFilter(data []byte) (*bloomfilter.Filter, error) {
	return bloomfilter.Decode(data)
}
