package graph

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes the node coordinates and the edge list with weights.
// Two graphs built from the same input in the same order share a fingerprint.
func Fingerprint(g *Graph) uint64 {
	h := xxhash.New()
	var buf [8]byte

	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}

	writeU64(uint64(g.NumNodes))
	for _, p := range g.Coords {
		writeU64(math.Float64bits(p[0]))
		writeU64(math.Float64bits(p[1]))
	}
	writeU64(uint64(g.NumEdges))
	for _, e := range g.Edges {
		writeU64(uint64(e.U)<<32 | uint64(e.V))
		writeU64(math.Float64bits(e.Weight))
	}
	return h.Sum64()
}
