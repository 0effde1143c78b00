package isomorph

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
)

// variantRNG derives the per-variant generator from (record id, variant
// index, global seed). The derivation is fixed so variant sequences are
// reproducible independent of any runtime RNG: SHA-256 over the
// NUL-separated key tuple, first 16 bytes read as two little-endian uint64
// seeding a PCG stream.
func variantRNG(recordID string, index int, seed int64) *rand.Rand {
	h := sha256.Sum256(fmt.Appendf(nil, "%s\x00%d\x00%d", recordID, index, seed))
	lo := binary.LittleEndian.Uint64(h[0:8])
	hi := binary.LittleEndian.Uint64(h[8:16])
	return rand.New(rand.NewPCG(lo, hi))
}
