package cache

import (
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/bundles/persistence"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/bundles/types"
)

// DocumentKey identifies one cached decoded document.
type DocumentKey struct {
	DumpID int
	Path   string
}

// ResultChunkKey identifies one cached decoded result chunk.
type ResultChunkKey struct {
	DumpID  int
	ChunkID int
}

// Tier bundles the three caches a Query Database needs: open Dump Store
// connections, decoded documents, and decoded result chunks. One Tier is
// shared by every Query Database in the api-server process.
type Tier struct {
	Connections  *Cache[string, persistence.Reader]
	Documents    *Cache[DocumentKey, types.DocumentData]
	ResultChunks *Cache[ResultChunkKey, types.ResultChunkData]
}

// Config sizes each of the three caches, in entry counts.
type Config struct {
	ConnectionCacheCapacity  int
	DocumentCacheCapacity    int
	ResultChunkCacheCapacity int
}

// DefaultConfig matches the capacities the teacher's bundle manager process
// defaults to for its analogous in-memory caches.
var DefaultConfig = Config{
	ConnectionCacheCapacity:  100,
	DocumentCacheCapacity:    4096,
	ResultChunkCacheCapacity: 8192,
}

// NewTier constructs the three caches. The connection cache closes evicted
// Dump Store readers; the document and result-chunk caches hold plain values
// with nothing to release.
func NewTier(config Config) *Tier {
	return &Tier{
		Connections: New[string, persistence.Reader](config.ConnectionCacheCapacity, func(r persistence.Reader) error {
			return r.Close()
		}),
		Documents:    New[DocumentKey, types.DocumentData](config.DocumentCacheCapacity, nil),
		ResultChunks: New[ResultChunkKey, types.ResultChunkData](config.ResultChunkCacheCapacity, nil),
	}
}

// WithReader pins the Dump Store reader for filename, opening it via
// persistence.OpenReader on a miss.
func (t *Tier) WithReader(filename string, user func(persistence.Reader) error) error {
	return t.Connections.WithEntry(filename, func() (persistence.Reader, error) {
		return persistence.OpenReader(filename)
	}, user)
}
