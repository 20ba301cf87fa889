// Package bloomfilter implements a compact, serializable membership filter
// used to prune candidate dumps before a cross-repo reference lookup opens
// the defining dump's file.
package bloomfilter

import (
	"bytes"
	"encoding/binary"
	"hash/fnv"

	"github.com/cockroachdb/errors"
)

// numHashFunctions is fixed rather than derived from the expected element
// count: callers size filters for small-to-moderate per-dump identifier
// counts (hundreds to low thousands), where a fixed false-positive rate in
// the low single-digit percent range is an acceptable trade against keeping
// the encoding trivial to pin.
const numHashFunctions = 7

// bitsPerElement controls filter size (bits = bitsPerElement * len(identifiers)),
// rounded up to a whole number of bytes and bounded below.
const bitsPerElement = 10

const minBits = 64

// CreateFilter builds a bloom filter over identifiers and returns its
// serialized encoding.
func CreateFilter(identifiers []string) ([]byte, error) {
	numBits := len(identifiers) * bitsPerElement
	if numBits < minBits {
		numBits = minBits
	}
	numBits = ((numBits + 7) / 8) * 8

	bits := make([]byte, numBits/8)
	for _, identifier := range identifiers {
		for _, idx := range bitIndexes(identifier, numBits) {
			bits[idx/8] |= 1 << (idx % 8)
		}
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(numBits)); err != nil {
		return nil, errors.Wrap(err, "encoding filter size")
	}
	buf.Write(bits)

	return buf.Bytes(), nil
}

// Filter is a decoded bloom filter ready for membership tests.
type Filter struct {
	numBits int
	bits    []byte
}

// Decode parses the encoding produced by CreateFilter.
func Decode(data []byte) (*Filter, error) {
	if len(data) < 4 {
		return nil, errors.New("bloom filter encoding too short")
	}

	numBits := int(binary.BigEndian.Uint32(data[:4]))
	bits := data[4:]
	if len(bits) < (numBits+7)/8 {
		return nil, errors.New("bloom filter encoding truncated")
	}

	return &Filter{numBits: numBits, bits: bits}, nil
}

// Test returns true if identifier may be a member of the filter. False
// positives are possible; false negatives are not.
func (f *Filter) Test(identifier string) bool {
	for _, idx := range bitIndexes(identifier, f.numBits) {
		if f.bits[idx/8]&(1<<(idx%8)) == 0 {
			return false
		}
	}
	return true
}

// bitIndexes derives numHashFunctions independent bit positions for value
// from two FNV hashes via double hashing (Kirsch-Mitzenmacher), avoiding the
// cost of numHashFunctions independent hash computations.
func bitIndexes(value string, numBits int) []int {
	h1 := fnv.New64a()
	h1.Write([]byte(value))
	a := h1.Sum64()

	h2 := fnv.New64()
	h2.Write([]byte(value))
	b := h2.Sum64()

	indexes := make([]int, numHashFunctions)
	for i := 0; i < numHashFunctions; i++ {
		combined := a + uint64(i)*b
		indexes[i] = int(combined % uint64(numBits))
	}
	return indexes
}
